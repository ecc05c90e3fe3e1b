package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromEchoMissing(t *testing.T) {
	c := newTestContext(t)

	_, err := FromEcho(c)
	assert.Error(t, err)
}

func TestFromEchoRoundTrip(t *testing.T) {
	c := newTestContext(t)
	c.Set(ContextKey, &Context{TenantID: 7, UserID: 42, Username: "alice", IsTenantAdmin: true})

	tc, err := FromEcho(c)
	require.NoError(t, err)
	assert.Equal(t, uint(7), tc.TenantID)
	assert.Equal(t, uint(42), tc.UserID)
	assert.True(t, tc.IsTenantAdmin)
	assert.True(t, tc.HasTenant())
}

func TestHasTenantPlatformAdmin(t *testing.T) {
	tc := &Context{UserID: 1, IsPlatformAdmin: true}
	assert.False(t, tc.HasTenant())
}
