package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/config"
	"github.com/riveredge/platform/pkg/jwtutil"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationMinutes: 5})
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestJWTAuthMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := invoke(t, JWTAuthMiddleware(), req)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus())
}

func TestJWTAuthBindsTenantContext(t *testing.T) {
	tenantID := uint(9)
	token, err := jwtutil.GenerateToken(3, "bob", &tenantID, false, true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c, err := invoke(t, JWTAuthMiddleware(), req)
	require.NoError(t, err)

	tc, err := tenant.FromEcho(c)
	require.NoError(t, err)
	assert.Equal(t, uint(9), tc.TenantID)
	assert.Equal(t, "bob", tc.Username)
	assert.True(t, tc.IsTenantAdmin)
}

func TestJWTAuthPlatformAdminHeaderOverride(t *testing.T) {
	token, err := jwtutil.GenerateToken(1, "root", nil, true, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", "12")
	c, err := invoke(t, JWTAuthMiddleware(), req)
	require.NoError(t, err)

	tc, err := tenant.FromEcho(c)
	require.NoError(t, err)
	assert.Equal(t, uint(12), tc.TenantID)
	assert.True(t, tc.IsPlatformAdmin)
}

func TestRequireTenantContextRejectsUnbound(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(tenant.ContextKey, &tenant.Context{UserID: 1, IsPlatformAdmin: true})

	handler := RequireTenantContext()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := handler(c)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.HTTPStatus())
}

func TestRequireTenantContextPasses(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(tenant.ContextKey, &tenant.Context{UserID: 1, TenantID: 4})

	handler := RequireTenantContext()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
