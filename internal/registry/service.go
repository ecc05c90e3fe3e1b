package registry

import (
	"bytes"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/menu"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// Service owns core_applications: nothing else writes that table. It scans
// the plugin directory, reconciles records per tenant, keeps menus in
// lockstep through the synchronizer, and emits lifecycle events.
type Service struct {
	pluginsDir string
	builtins   map[string]bool
	menus      *menu.Synchronizer
	dispatcher *Dispatcher
}

// NewService builds a registry over the plugin directory. Codes listed in
// builtins are auto-installed system apps.
func NewService(pluginsDir string, builtins []string, menus *menu.Synchronizer, dispatcher *Dispatcher) *Service {
	set := make(map[string]bool, len(builtins))
	for _, code := range builtins {
		set[code] = true
	}
	return &Service{pluginsDir: pluginsDir, builtins: set, menus: menus, dispatcher: dispatcher}
}

// Dispatcher exposes the lifecycle event dispatcher for subscriber wiring.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Reconcile scans the plugin directory and reconciles application records
// for every active tenant. It is idempotent: a scan with no manifest
// changes performs no writes and no cache flush. Menu caches of touched
// tenants are flushed once at the end of the batch.
func (s *Service) Reconcile() error {
	db := database.GetDB()
	log := logger.GetLogger()
	metrics.PluginReconcileCounter.Inc()

	manifests, err := ScanPlugins(s.pluginsDir)
	if err != nil {
		return apperror.External("failed to scan plugin directory", err)
	}

	var tenants []model.Tenant
	if err := db.Where("status = ?", model.TenantStatusActive).Find(&tenants).Error; err != nil {
		return apperror.External("failed to list tenants", err)
	}

	dirty := map[uint]bool{}
	for _, tn := range tenants {
		for _, m := range manifests {
			touched, err := s.reconcileOne(db, tn.ID, m)
			if err != nil {
				log.Warn("Failed to reconcile application",
					zap.Uint("tenant_id", tn.ID),
					zap.String("code", m.Code),
					zap.Error(err))
				continue
			}
			if touched {
				dirty[tn.ID] = true
			}
		}
	}

	for tenantID := range dirty {
		s.menus.Invalidate(tenantID)
	}

	log.Info("Plugin reconciliation complete",
		zap.Int("manifest_count", len(manifests)),
		zap.Int("tenant_count", len(tenants)),
		zap.Int("tenants_touched", len(dirty)))
	return nil
}

// reconcileOne upserts a single (tenant, manifest) pair and reports whether
// it changed anything that warrants a menu cache flush.
func (s *Service) reconcileOne(db *gorm.DB, tenantID uint, m *Manifest) (bool, error) {
	var app model.Application
	err := db.Where("tenant_id = ? AND code = ?", tenantID, m.Code).First(&app).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		app = model.Application{
			UUID:           uuid.New().String(),
			TenantID:       tenantID,
			Code:           m.Code,
			Name:           m.Name,
			Description:    m.Description,
			Icon:           m.Icon,
			Version:        m.Version,
			RoutePath:      m.RoutePath,
			EntryPoint:     m.EntryPoint,
			MenuConfig:     datatypes.JSON(m.MenuConfig),
			PermissionCode: m.PermissionCode,
			SortOrder:      m.SortOrder,
			IsSystem:       s.builtins[m.Code],
			IsInstalled:    s.builtins[m.Code],
			IsActive:       true,
		}
		if err := db.Create(&app).Error; err != nil {
			return false, err
		}
		if app.IsInstalled {
			if err := s.menus.SyncApp(tenantID, &app); err != nil {
				return false, err
			}
		}
		s.dispatcher.Dispatch(Event{Type: EventSynced, TenantID: tenantID, App: &app, Mounted: app.IsInstalled && app.IsActive})
		return true, nil

	case err != nil:
		return false, err
	}

	menuChanged := !bytes.Equal(app.MenuConfig, m.MenuConfig)
	metaChanged := app.Name != m.Name ||
		app.Description != m.Description ||
		app.Icon != m.Icon ||
		app.Version != m.Version ||
		app.RoutePath != m.RoutePath ||
		app.EntryPoint != m.EntryPoint ||
		app.PermissionCode != m.PermissionCode ||
		app.SortOrder != m.SortOrder

	if !menuChanged && !metaChanged {
		return false, nil
	}

	app.Name = m.Name
	app.Description = m.Description
	app.Icon = m.Icon
	app.Version = m.Version
	app.RoutePath = m.RoutePath
	app.EntryPoint = m.EntryPoint
	app.MenuConfig = datatypes.JSON(m.MenuConfig)
	app.PermissionCode = m.PermissionCode
	app.SortOrder = m.SortOrder
	if err := db.Save(&app).Error; err != nil {
		return false, err
	}

	if menuChanged && app.IsInstalled {
		if err := s.menus.SyncApp(tenantID, &app); err != nil {
			return false, err
		}
	}
	s.dispatcher.Dispatch(Event{Type: EventSynced, TenantID: tenantID, App: &app, Mounted: app.IsInstalled && app.IsActive})
	return menuChanged, nil
}

// load fetches a tenant-scoped application by uuid.
func (s *Service) load(tc *tenant.Context, appUUID string) (*model.Application, error) {
	var app model.Application
	err := database.GetDB().Scopes(tenant.Scoped(tc)).Where("uuid = ?", appUUID).First(&app).Error
	if err != nil {
		return nil, apperror.NotFound("application not found")
	}
	return &app, nil
}

// Install marks the application installed, syncs its menus, and mounts its
// routes. Installing an installed app is a no-op.
func (s *Service) Install(tc *tenant.Context, appUUID string) (*model.Application, error) {
	app, err := s.load(tc, appUUID)
	if err != nil {
		return nil, err
	}
	if app.IsInstalled {
		return app, nil
	}

	app.IsInstalled = true
	if err := database.GetDB().Save(app).Error; err != nil {
		return nil, apperror.External("failed to install application", err)
	}
	if err := s.menus.SyncApp(tc.TenantID, app); err != nil {
		logger.GetLogger().Warn("Menu sync failed after install",
			zap.String("app_code", app.Code), zap.Error(err))
	}
	s.menus.Invalidate(tc.TenantID)
	s.dispatcher.Dispatch(Event{Type: EventInstalled, TenantID: tc.TenantID, App: app, Mounted: app.IsActive})
	return app, nil
}

// Uninstall removes the application's menus and routes. System apps cannot
// be uninstalled.
func (s *Service) Uninstall(tc *tenant.Context, appUUID string) (*model.Application, error) {
	app, err := s.load(tc, appUUID)
	if err != nil {
		return nil, err
	}
	if app.IsSystem {
		return nil, apperror.BusinessLogic("system applications cannot be uninstalled")
	}
	if !app.IsInstalled {
		return app, nil
	}

	app.IsInstalled = false
	if err := database.GetDB().Save(app).Error; err != nil {
		return nil, apperror.External("failed to uninstall application", err)
	}
	if err := s.menus.RemoveApp(tc.TenantID, app.UUID); err != nil {
		logger.GetLogger().Warn("Menu removal failed after uninstall",
			zap.String("app_code", app.Code), zap.Error(err))
	}
	s.menus.Invalidate(tc.TenantID)
	s.dispatcher.Dispatch(Event{Type: EventUninstalled, TenantID: tc.TenantID, App: app, Mounted: false})
	return app, nil
}

// Enable activates an installed application and reactivates its menus.
func (s *Service) Enable(tc *tenant.Context, appUUID string) (*model.Application, error) {
	return s.setActive(tc, appUUID, true)
}

// Disable deactivates an application; its routes unmount and its menus hide
// but nothing is deleted.
func (s *Service) Disable(tc *tenant.Context, appUUID string) (*model.Application, error) {
	return s.setActive(tc, appUUID, false)
}

func (s *Service) setActive(tc *tenant.Context, appUUID string, active bool) (*model.Application, error) {
	app, err := s.load(tc, appUUID)
	if err != nil {
		return nil, err
	}
	if app.IsActive == active {
		return app, nil
	}

	app.IsActive = active
	if err := database.GetDB().Save(app).Error; err != nil {
		return nil, apperror.External("failed to update application", err)
	}
	if err := s.menus.SetAppActive(tc.TenantID, app.UUID, active); err != nil {
		logger.GetLogger().Warn("Menu state update failed",
			zap.String("app_code", app.Code), zap.Error(err))
	}
	s.menus.Invalidate(tc.TenantID)

	evType := EventDisabled
	if active {
		evType = EventEnabled
	}
	s.dispatcher.Dispatch(Event{Type: evType, TenantID: tc.TenantID, App: app, Mounted: app.IsInstalled && active})
	return app, nil
}

// Delete soft-deletes a non-system application together with its menus.
func (s *Service) Delete(tc *tenant.Context, appUUID string) error {
	app, err := s.load(tc, appUUID)
	if err != nil {
		return err
	}
	if app.IsSystem {
		return apperror.BusinessLogic("system applications cannot be deleted")
	}

	if err := database.GetDB().Delete(app).Error; err != nil {
		return apperror.External("failed to delete application", err)
	}
	if err := s.menus.RemoveApp(tc.TenantID, app.UUID); err != nil {
		logger.GetLogger().Warn("Menu removal failed after delete",
			zap.String("app_code", app.Code), zap.Error(err))
	}
	s.menus.Invalidate(tc.TenantID)
	s.dispatcher.Dispatch(Event{Type: EventDeleted, TenantID: tc.TenantID, App: app, Mounted: false})
	return nil
}

// MountedCodes returns the application codes installed and active for at
// least one tenant; the route table is the union across tenants, with
// per-tenant install state enforced at the handler layer.
func (s *Service) MountedCodes() ([]string, error) {
	var codes []string
	err := database.GetDB().Model(&model.Application{}).
		Where("is_installed = ? AND is_active = ?", true, true).
		Distinct().Pluck("code", &codes).Error
	if err != nil {
		return nil, apperror.External("failed to list mounted applications", err)
	}
	return codes, nil
}

// IsCodeMounted reports whether any tenant still has the code installed and
// active. Used before unmounting shared routes.
func (s *Service) IsCodeMounted(code string) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.Application{}).
		Where("code = ? AND is_installed = ? AND is_active = ?", code, true, true).
		Count(&count).Error
	if err != nil {
		return false, apperror.External("failed to check application state", err)
	}
	return count > 0, nil
}
