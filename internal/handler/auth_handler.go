package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/auth"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/jwtutil"
	"github.com/riveredge/platform/pkg/logger"
)

func clientMeta(c echo.Context) auth.ClientMeta {
	return auth.ClientMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// Login authenticates a username/password pair, optionally scoped to a
// tenant. When the username exists in several tenants the response lists
// them with requires_tenant_selection set instead of a token.
func Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	result, err := auth.Login(&req, clientMeta(c))
	if err != nil {
		return err
	}

	if result.RequiresTenantSelection {
		log.Info("Login requires tenant selection", zap.String("username", req.Username))
	}
	return c.JSON(http.StatusOK, result)
}

// RegisterPersonal provisions a personal workspace tenant with the
// requester as its admin.
func RegisterPersonal(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	req.TenantName = ""
	req.Domain = ""

	result, err := auth.Register(&req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// RegisterOrganization provisions an organisation tenant with a name and
// optional unique domain.
func RegisterOrganization(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.TenantName == "" {
		return apperror.Validation("tenant_name is required")
	}

	result, err := auth.Register(&req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// Refresh issues a fresh token for the authenticated user.
func Refresh(c echo.Context) error {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok {
		return apperror.Auth("authentication required")
	}

	result, err := auth.Refresh(claims)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// GuestLogin issues a read-only guest token for a tenant.
func GuestLogin(c echo.Context) error {
	var req struct {
		TenantID uint `json:"tenant_id"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	if req.TenantID == 0 {
		return apperror.Validation("tenant_id is required")
	}

	result, err := auth.GuestLogin(req.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Profile returns the authenticated user's own record.
func Profile(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	if tc.IsGuest {
		return c.JSON(http.StatusOK, echo.Map{"username": "guest", "is_guest": true})
	}

	var user model.User
	if err := database.GetDB().First(&user, tc.UserID).Error; err != nil {
		return apperror.NotFound("user not found")
	}
	return c.JSON(http.StatusOK, user)
}
