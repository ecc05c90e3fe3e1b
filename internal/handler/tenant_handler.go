package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
)

// requirePlatformAdmin gates the /infra surface.
func requirePlatformAdmin(c echo.Context) (*tenant.Context, error) {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return nil, err
	}
	if !tc.IsPlatformAdmin {
		return nil, apperror.AccessDenied("platform admin required")
	}
	return tc, nil
}

// ListTenants returns all tenants, platform admin only.
func ListTenants(c echo.Context) error {
	if _, err := requirePlatformAdmin(c); err != nil {
		return err
	}

	var tenants []model.Tenant
	if err := database.GetDB().Order("id ASC").Find(&tenants).Error; err != nil {
		return apperror.External("failed to list tenants", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": tenants, "total": len(tenants)})
}

// CreateTenant provisions an empty tenant without users.
func CreateTenant(c echo.Context) error {
	if _, err := requirePlatformAdmin(c); err != nil {
		return err
	}

	var req struct {
		Name     string `json:"name"`
		Domain   string `json:"domain"`
		Plan     string `json:"plan"`
		MaxUsers int    `json:"max_users"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.Name == "" {
		return apperror.Validation("name is required")
	}

	tn := model.Tenant{
		UUID:   uuid.New().String(),
		Name:   req.Name,
		Domain: req.Domain,
		Status: model.TenantStatusActive,
		Plan:   req.Plan,
	}
	if req.MaxUsers > 0 {
		tn.MaxUsers = req.MaxUsers
	}
	if err := database.GetDB().Create(&tn).Error; err != nil {
		return apperror.BusinessLogic("domain is already registered")
	}

	logger.FromEcho(c).Info("Tenant created", zap.String("tenant_uuid", tn.UUID))
	return c.JSON(http.StatusCreated, tn)
}

// GetTenant returns one tenant by uuid.
func GetTenant(c echo.Context) error {
	if _, err := requirePlatformAdmin(c); err != nil {
		return err
	}

	var tn model.Tenant
	if err := database.GetDB().Where("uuid = ?", c.Param("uuid")).First(&tn).Error; err != nil {
		return apperror.NotFound("tenant not found")
	}
	return c.JSON(http.StatusOK, tn)
}

// UpdateTenantStatus moves a tenant between active, inactive and suspended.
// Tenants are never hard-deleted.
func UpdateTenantStatus(c echo.Context) error {
	if _, err := requirePlatformAdmin(c); err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	switch req.Status {
	case model.TenantStatusActive, model.TenantStatusInactive, model.TenantStatusSuspended:
	default:
		return apperror.Validation("status must be active, inactive or suspended")
	}

	var tn model.Tenant
	if err := database.GetDB().Where("uuid = ?", c.Param("uuid")).First(&tn).Error; err != nil {
		return apperror.NotFound("tenant not found")
	}
	tn.Status = req.Status
	if err := database.GetDB().Save(&tn).Error; err != nil {
		return apperror.External("failed to update tenant", err)
	}

	logger.FromEcho(c).Info("Tenant status updated",
		zap.String("tenant_uuid", tn.UUID), zap.String("status", tn.Status))
	return c.JSON(http.StatusOK, tn)
}
