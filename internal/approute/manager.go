package approute

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/pkg/logger"
)

// Route is one mountable endpoint of an application, relative to the app's
// mount prefix. Path segments starting with ':' are parameters; a trailing
// '*' matches the remainder.
type Route struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
}

// Manager owns the dynamic route table for installed applications. The table
// is an immutable snapshot swapped atomically, so readers never observe a
// half-updated table and writers never block in-flight requests.
type Manager struct {
	mu    sync.Mutex // serializes writers only
	table atomic.Value
}

type routeTable map[string][]Route

// NewManager returns a Manager with an empty route table.
func NewManager() *Manager {
	m := &Manager{}
	m.table.Store(routeTable{})
	return m
}

func (m *Manager) snapshot() routeTable {
	return m.table.Load().(routeTable)
}

// Register mounts the routes for an application code, replacing any existing
// entry in one swap. Registering an empty slice is equivalent to Deregister.
func (m *Manager) Register(code string, routes []Route) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snapshot()
	next := make(routeTable, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	if len(routes) == 0 {
		delete(next, code)
	} else {
		next[code] = routes
	}
	m.table.Store(next)

	logger.GetLogger().Info("Application routes registered",
		zap.String("app_code", code),
		zap.Int("route_count", len(routes)))
}

// Deregister unmounts all routes for an application code. In-flight requests
// already dispatched keep their handler and finish normally.
func (m *Manager) Deregister(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snapshot()
	if _, ok := old[code]; !ok {
		return
	}
	next := make(routeTable, len(old))
	for k, v := range old {
		if k != code {
			next[k] = v
		}
	}
	m.table.Store(next)

	logger.GetLogger().Info("Application routes deregistered", zap.String("app_code", code))
}

// ReloadAll replaces the whole table with the given projection in one swap.
// Used at startup and after mass registry changes.
func (m *Manager) ReloadAll(tables map[string][]Route) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(routeTable, len(tables))
	for code, routes := range tables {
		if len(routes) > 0 {
			next[code] = routes
		}
	}
	m.table.Store(next)

	logger.GetLogger().Info("Application route table reloaded", zap.Int("app_count", len(next)))
}

// Mounted reports whether any routes are mounted for the application code.
func (m *Manager) Mounted(code string) bool {
	_, ok := m.snapshot()[code]
	return ok
}

// Codes returns the application codes with mounted routes.
func (m *Manager) Codes() []string {
	snap := m.snapshot()
	codes := make([]string, 0, len(snap))
	for code := range snap {
		codes = append(codes, code)
	}
	return codes
}

// Lookup finds the handler for a method and app-relative path. The returned
// params map holds ':' segment bindings plus "*" for a wildcard remainder.
func (m *Manager) Lookup(code, method, path string) (echo.HandlerFunc, map[string]string, bool) {
	routes, ok := m.snapshot()[code]
	if !ok {
		return nil, nil, false
	}
	for _, r := range routes {
		if r.Method != method {
			continue
		}
		if params, ok := matchPath(r.Path, path); ok {
			return r.Handler, params, true
		}
	}
	return nil, nil, false
}

// matchPath matches a registered pattern against a concrete path.
func matchPath(pattern, path string) (map[string]string, bool) {
	ps := splitPath(pattern)
	ts := splitPath(path)

	params := map[string]string{}
	for i, seg := range ps {
		if seg == "*" {
			params["*"] = strings.Join(ts[i:], "/")
			return params, true
		}
		if i >= len(ts) {
			return nil, false
		}
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = ts[i]
			continue
		}
		if seg != ts[i] {
			return nil, false
		}
	}
	if len(ts) != len(ps) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// DispatchHandler adapts the manager to echo's catch-all route for
// /api/v1/apps/:code/*. Unmounted apps and unmatched paths both 404.
func (m *Manager) DispatchHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		code := c.Param("code")
		rest := c.Param("*")

		handler, params, ok := m.Lookup(code, c.Request().Method, rest)
		if !ok {
			return apperror.NotFound("application route not found")
		}

		names := make([]string, 0, len(params)+1)
		values := make([]string, 0, len(params)+1)
		names = append(names, "code")
		values = append(values, code)
		for k, v := range params {
			if k == "*" {
				continue
			}
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)

		return handler(c)
	}
}
