package handler

import (
	"net/http"
	"os"
	"runtime"

	"github.com/labstack/echo/v4"

	"github.com/riveredge/platform/internal/notify"
	"github.com/riveredge/platform/pkg/config"
	"github.com/riveredge/platform/pkg/database"
)

// HealthCheck answers 200 whenever the process is alive.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "riveredge-platform",
	})
}

// HealthServices reports aggregated subsystem status. The endpoint itself
// stays 200; consumers read the per-service fields.
func HealthServices(cfg *config.Config, hub *notify.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		services := echo.Map{}
		healthy := true

		if err := database.Ping(); err != nil {
			services["database"] = echo.Map{"status": "unhealthy", "detail": err.Error()}
			healthy = false
		} else {
			services["database"] = echo.Map{"status": "healthy"}
		}

		if _, err := os.Stat(cfg.Plugins.Dir); err != nil {
			services["plugins"] = echo.Map{"status": "degraded", "detail": "plugin directory unavailable"}
		} else {
			services["plugins"] = echo.Map{"status": "healthy"}
		}

		services["websocket"] = echo.Map{
			"status":      "healthy",
			"connections": hub.ConnectionCount(),
		}

		status := "healthy"
		if !healthy {
			status = "unhealthy"
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":     status,
			"services":   services,
			"goroutines": runtime.NumGoroutine(),
		})
	}
}
