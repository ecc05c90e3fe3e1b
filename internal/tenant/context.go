package tenant

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/riveredge/platform/internal/apperror"
)

// ContextKey is the echo context key the auth middleware stores the
// resolved tenant context under.
const ContextKey = "tenant_context"

// Context is the per-request identity every data access is scoped by.
// TenantID is zero only for platform admins acting without a selected
// tenant; such requests are rejected by RequireTenantContext before
// they reach tenant-scoped handlers.
type Context struct {
	TenantID        uint
	UserID          uint
	Username        string
	IsPlatformAdmin bool
	IsTenantAdmin   bool
	IsGuest         bool
}

// HasTenant reports whether the request is bound to a concrete tenant.
func (tc *Context) HasTenant() bool {
	return tc.TenantID != 0
}

// FromEcho returns the tenant context set by the auth middleware.
func FromEcho(c echo.Context) (*Context, error) {
	tc, ok := c.Get(ContextKey).(*Context)
	if !ok || tc == nil {
		return nil, apperror.Auth("authentication required")
	}
	return tc, nil
}

// MustFromEcho is FromEcho for handlers already behind the auth middleware,
// where a missing context is a programming error.
func MustFromEcho(c echo.Context) *Context {
	tc, err := FromEcho(c)
	if err != nil {
		panic("tenant context missing: handler registered outside auth middleware")
	}
	return tc
}

// Scoped returns a gorm scope restricting a query to the request's tenant.
// Apply it to every query over tenant-owned tables:
//
//	db.Scopes(tenant.Scoped(tc)).Find(&apps)
func Scoped(tc *Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tc.TenantID)
	}
}
