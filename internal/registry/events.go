package registry

import (
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/logger"
)

// Lifecycle event types emitted when an application's installed or active
// state changes.
const (
	EventInstalled   = "installed"
	EventUninstalled = "uninstalled"
	EventEnabled     = "enabled"
	EventDisabled    = "disabled"
	EventDeleted     = "deleted"
	EventSynced      = "synced"
)

// Event is an in-process notification about an application state change.
// Mounted reflects the app's installed-and-active state after the change.
type Event struct {
	Type     string
	TenantID uint
	App      *model.Application
	Mounted  bool
}

// Subscriber consumes lifecycle events. A subscriber error is logged and
// never propagated; the registry's database write stays authoritative.
type Subscriber func(Event) error

// Dispatcher delivers lifecycle events in-process and synchronously, in the
// tenant context of the triggering action.
type Dispatcher struct {
	subscribers []Subscriber
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe appends a subscriber. Not safe for use after dispatch starts;
// wire all subscribers during startup.
func (d *Dispatcher) Subscribe(s Subscriber) {
	d.subscribers = append(d.subscribers, s)
}

// Dispatch delivers the event to every subscriber, logging failures.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, s := range d.subscribers {
		if err := s(ev); err != nil {
			logger.GetLogger().Warn("Lifecycle subscriber failed",
				zap.String("event", ev.Type),
				zap.Uint("tenant_id", ev.TenantID),
				zap.String("app_code", ev.App.Code),
				zap.Error(err))
		}
	}
}
