package approute

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveredge/platform/internal/apperror"
)

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRegisterAndLookup(t *testing.T) {
	m := NewManager()
	m.Register("crm", []Route{
		{Method: http.MethodGet, Path: "/customers", Handler: okHandler},
		{Method: http.MethodGet, Path: "/customers/:id", Handler: okHandler},
	})

	_, _, ok := m.Lookup("crm", http.MethodGet, "customers")
	assert.True(t, ok)

	_, params, ok := m.Lookup("crm", http.MethodGet, "customers/42")
	require.True(t, ok)
	assert.Equal(t, "42", params["id"])

	_, _, ok = m.Lookup("crm", http.MethodPost, "customers")
	assert.False(t, ok)

	_, _, ok = m.Lookup("mes", http.MethodGet, "customers")
	assert.False(t, ok)
}

func TestRegisterReplacesAtomically(t *testing.T) {
	m := NewManager()
	m.Register("crm", []Route{{Method: http.MethodGet, Path: "/old", Handler: okHandler}})
	m.Register("crm", []Route{{Method: http.MethodGet, Path: "/new", Handler: okHandler}})

	_, _, ok := m.Lookup("crm", http.MethodGet, "old")
	assert.False(t, ok)
	_, _, ok = m.Lookup("crm", http.MethodGet, "new")
	assert.True(t, ok)
}

func TestDeregisterEmptiesRouteSet(t *testing.T) {
	m := NewManager()
	m.Register("crm", []Route{{Method: http.MethodGet, Path: "/customers", Handler: okHandler}})
	require.True(t, m.Mounted("crm"))

	m.Deregister("crm")
	assert.False(t, m.Mounted("crm"))
	_, _, ok := m.Lookup("crm", http.MethodGet, "customers")
	assert.False(t, ok)

	// idempotent
	m.Deregister("crm")
	assert.False(t, m.Mounted("crm"))
}

func TestReloadAll(t *testing.T) {
	m := NewManager()
	m.Register("crm", []Route{{Method: http.MethodGet, Path: "/a", Handler: okHandler}})

	m.ReloadAll(map[string][]Route{
		"mes": {{Method: http.MethodGet, Path: "/b", Handler: okHandler}},
		"eam": nil,
	})

	assert.False(t, m.Mounted("crm"))
	assert.True(t, m.Mounted("mes"))
	assert.False(t, m.Mounted("eam"))
}

func TestMatchPathWildcard(t *testing.T) {
	params, ok := matchPath("/files/*", "files/reports/2026/q1.pdf")
	require.True(t, ok)
	assert.Equal(t, "reports/2026/q1.pdf", params["*"])

	_, ok = matchPath("/files/:id", "files/1/extra")
	assert.False(t, ok)

	params, ok = matchPath("/", "")
	require.True(t, ok)
	assert.Empty(t, params)
}

func TestDispatchHandler(t *testing.T) {
	m := NewManager()
	m.Register("crm", []Route{{
		Method: http.MethodGet,
		Path:   "/customers/:id",
		Handler: func(c echo.Context) error {
			return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "app": c.Param("code")})
		},
	}})

	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler
	e.Any("/api/v1/apps/:code/*", m.DispatchHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/crm/customers/7", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"7"`)

	m.Deregister("crm")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
