package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/approute"
	"github.com/riveredge/platform/internal/approval"
	"github.com/riveredge/platform/internal/dataset"
	"github.com/riveredge/platform/internal/handler"
	"github.com/riveredge/platform/internal/menu"
	"github.com/riveredge/platform/internal/middleware"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/notify"
	"github.com/riveredge/platform/internal/registry"
	"github.com/riveredge/platform/internal/relation"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/config"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/jwtutil"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// systemApps are auto-installed on first reconciliation and cannot be
// uninstalled.
var systemApps = []string{"system"}

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "riveredge-platform",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting platform runtime...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Initialize Prometheus metrics
	httpMetrics := metrics.NewHTTPMetrics("riveredge-platform")

	// Notification fan-out
	hub := notify.NewHub()
	go hub.Run()
	notifier := notify.NewService(hub)

	// Menu cache + synchronizer
	menuCache := menu.NewCache()
	menus := menu.NewSynchronizer(menuCache)

	// Application registry + route manager
	dispatcher := registry.NewDispatcher()
	reg := registry.NewService(cfg.Plugins.Dir, systemApps, menus, dispatcher)
	routeManager := approute.NewManager()
	dispatcher.Subscribe(routeSubscriber(reg, routeManager))

	// Approval engine
	approvalSvc := approval.NewService(notifier, nil)

	// Document relations
	relationSvc := relation.NewService(relation.NewGormStore())

	// Dataset engine
	datasetSvc := dataset.NewService(&cfg.Dataset)

	// Startup plugin scan, then mount everything installed and active
	if err := reg.Reconcile(); err != nil {
		log.Error("Plugin reconciliation failed at startup", zap.Error(err))
	}
	if err := reloadAppRoutes(reg, routeManager); err != nil {
		log.Error("Failed to mount application routes at startup", zap.Error(err))
	}

	// Handlers
	appHandler := handler.NewApplicationHandler(reg, menuCache)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	relationHandler := handler.NewRelationHandler(relationSvc)
	datasetHandler := handler.NewDatasetHandler(datasetSvc)
	messageHandler := handler.NewMessageHandler(hub)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/health/services", handler.HealthServices(cfg, hub))
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	// Authentication routes
	authGroup := e.Group("/api/v1/auth")
	authGroup.POST("/login", handler.Login)
	authGroup.POST("/register-personal", handler.RegisterPersonal)
	authGroup.POST("/register-organization", handler.RegisterOrganization)
	authGroup.POST("/guest", handler.GuestLogin)
	authGroup.POST("/refresh", handler.Refresh, middleware.JWTAuthMiddleware())
	authGroup.GET("/profile", handler.Profile, middleware.JWTAuthMiddleware())

	// Platform admin surface - authenticated, no tenant context required
	infra := e.Group("/api/v1/infra")
	infra.Use(middleware.JWTAuthMiddleware())
	infra.GET("/tenants", handler.ListTenants)
	infra.POST("/tenants", handler.CreateTenant)
	infra.GET("/tenants/:uuid", handler.GetTenant)
	infra.PATCH("/tenants/:uuid/status", handler.UpdateTenantStatus)
	infra.POST("/applications/reload", appHandler.Reload)

	// Tenant-scoped core surface
	core := e.Group("/api/v1/core")
	core.Use(middleware.JWTAuthMiddleware())
	core.Use(middleware.RequireTenantContext())

	core.GET("/applications", appHandler.List)
	core.GET("/applications/:uuid", appHandler.Get)
	core.POST("/applications/:uuid/install", appHandler.Install)
	core.POST("/applications/:uuid/uninstall", appHandler.Uninstall)
	core.POST("/applications/:uuid/enable", appHandler.Enable)
	core.POST("/applications/:uuid/disable", appHandler.Disable)
	core.DELETE("/applications/:uuid", appHandler.Delete)
	core.GET("/menus", appHandler.Menus)

	core.POST("/approval-processes", approvalHandler.CreateProcess)
	core.GET("/approval-processes", approvalHandler.ListProcesses)
	core.POST("/approvals", approvalHandler.Submit)
	core.GET("/approvals", approvalHandler.ListInstances)
	core.GET("/approvals/status", approvalHandler.StatusByEntity)
	core.POST("/approvals/start", approvalHandler.StartByEntity)
	core.POST("/approvals/cancel-by-entity", approvalHandler.CancelByEntity)
	core.GET("/approvals/:uuid", approvalHandler.GetInstance)
	core.GET("/approvals/:uuid/history", approvalHandler.History)
	core.POST("/approvals/:uuid/approve", approvalHandler.Approve)
	core.POST("/approvals/:uuid/reject", approvalHandler.Reject)
	core.POST("/approvals/:uuid/cancel", approvalHandler.Cancel)
	core.POST("/approvals/:uuid/transfer", approvalHandler.Transfer)

	core.POST("/document-relations", relationHandler.Create)
	core.DELETE("/document-relations/:uuid", relationHandler.Delete)
	core.GET("/document-relations", relationHandler.Relations)
	core.GET("/document-relations/trace", relationHandler.Trace)
	core.GET("/document-relations/impact", relationHandler.ChangeImpact)

	core.POST("/data-sources", datasetHandler.CreateDataSource)
	core.GET("/data-sources", datasetHandler.ListDataSources)
	core.POST("/data-sources/:uuid/test", datasetHandler.TestDataSource)
	core.POST("/datasets", datasetHandler.CreateDataset)
	core.GET("/datasets", datasetHandler.ListDatasets)
	core.POST("/datasets/:uuid/execute", datasetHandler.Execute)
	core.POST("/apis", datasetHandler.CreateAPI)
	core.GET("/apis", datasetHandler.ListAPIs)
	core.POST("/apis/:uuid/test", datasetHandler.TestAPI)

	core.GET("/messages", messageHandler.List)
	core.POST("/messages/:uuid/read", messageHandler.MarkRead)
	core.POST("/messages/read-all", messageHandler.MarkAllRead)
	core.GET("/messages/subscribe", messageHandler.Subscribe)

	// Dynamically mounted application routes
	apps := e.Group("/api/v1/apps")
	apps.Use(middleware.JWTAuthMiddleware())
	apps.Use(middleware.RequireTenantContext())
	apps.Any("/:code/*", routeManager.DispatchHandler())

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}

// routeSubscriber keeps the route table in lockstep with lifecycle events.
// Routes are shared across tenants, so an app unmounts only when no tenant
// has it installed and active anymore.
func routeSubscriber(reg *registry.Service, rm *approute.Manager) registry.Subscriber {
	return func(ev registry.Event) error {
		if ev.Mounted {
			rm.Register(ev.App.Code, appRoutes(ev.App.Code))
			return nil
		}
		stillMounted, err := reg.IsCodeMounted(ev.App.Code)
		if err != nil {
			return err
		}
		if !stillMounted {
			rm.Deregister(ev.App.Code)
		}
		return nil
	}
}

// reloadAppRoutes rebuilds the whole route table from the registry's
// current projection.
func reloadAppRoutes(reg *registry.Service, rm *approute.Manager) error {
	codes, err := reg.MountedCodes()
	if err != nil {
		return err
	}
	tables := make(map[string][]approute.Route, len(codes))
	for _, code := range codes {
		tables[code] = appRoutes(code)
	}
	rm.ReloadAll(tables)
	return nil
}

// appRoutes is the route set mounted for a discovered application. Plugins
// are manifest-driven; until an app ships compiled handlers its surface is
// the metadata endpoints below.
func appRoutes(code string) []approute.Route {
	return []approute.Route{
		{Method: http.MethodGet, Path: "/", Handler: appInfoHandler(code)},
		{Method: http.MethodGet, Path: "/ping", Handler: appPingHandler(code)},
	}
}

func appInfoHandler(code string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tc, err := tenant.FromEcho(c)
		if err != nil {
			return err
		}
		var app model.Application
		err = database.GetDB().Scopes(tenant.Scoped(tc)).
			Where("code = ? AND is_installed = ? AND is_active = ?", code, true, true).
			First(&app).Error
		if err != nil {
			return apperror.NotFound("application not installed for this tenant")
		}
		return c.JSON(http.StatusOK, app)
	}
}

func appPingHandler(code string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"app": code, "status": "ok"})
	}
}
