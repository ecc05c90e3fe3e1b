package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/menu"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/registry"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
)

// ApplicationHandler serves the application registry surface.
type ApplicationHandler struct {
	registry  *registry.Service
	menuCache *menu.Cache
}

// NewApplicationHandler wires the registry handlers.
func NewApplicationHandler(reg *registry.Service, cache *menu.Cache) *ApplicationHandler {
	return &ApplicationHandler{registry: reg, menuCache: cache}
}

// List returns the tenant's applications ordered for display.
func (h *ApplicationHandler) List(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var apps []model.Application
	err = database.GetDB().Scopes(tenant.Scoped(tc)).
		Order("sort_order ASC, id ASC").
		Find(&apps).Error
	if err != nil {
		return apperror.External("failed to list applications", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": apps, "total": len(apps)})
}

// Get returns one application by uuid.
func (h *ApplicationHandler) Get(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}

	var app model.Application
	err = database.GetDB().Scopes(tenant.Scoped(tc)).
		Where("uuid = ?", c.Param("uuid")).
		First(&app).Error
	if err != nil {
		return apperror.NotFound("application not found")
	}
	return c.JSON(http.StatusOK, app)
}

// Install installs the application for the tenant.
func (h *ApplicationHandler) Install(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	app, err := h.registry.Install(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

// Uninstall removes the application's routes and menus.
func (h *ApplicationHandler) Uninstall(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	app, err := h.registry.Uninstall(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

// Enable reactivates a disabled application.
func (h *ApplicationHandler) Enable(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	app, err := h.registry.Enable(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

// Disable deactivates an application without uninstalling it.
func (h *ApplicationHandler) Disable(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	app, err := h.registry.Disable(tc, c.Param("uuid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

// Delete soft-deletes a non-system application.
func (h *ApplicationHandler) Delete(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	if err := h.registry.Delete(tc, c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Reload rescans the plugin directory, platform admin only.
func (h *ApplicationHandler) Reload(c echo.Context) error {
	if _, err := requirePlatformAdmin(c); err != nil {
		return err
	}
	if err := h.registry.Reconcile(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "reconciled"})
}

// Menus returns the tenant's navigation tree from the read-through cache.
func (h *ApplicationHandler) Menus(c echo.Context) error {
	tc, err := tenant.FromEcho(c)
	if err != nil {
		return err
	}
	tree, err := h.menuCache.Tree(tc.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": tree})
}
