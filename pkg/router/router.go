// Package router dispatches vault lifecycle events to matching automations.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vaultpilot/automations/pkg/eventbus"
	"github.com/vaultpilot/automations/pkg/events"
	"github.com/vaultpilot/automations/pkg/glob"
	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

// RunFunc executes one (automation, trigger) pair. Each event match produces
// an independent, concurrently-fired run with no ordering guarantee.
type RunFunc func(automationID string, trigger models.Trigger)

// Router subscribes once, at initialization, to the vault's content and
// lifecycle events and routes them to the enabled automations whose triggers
// match.
type Router struct {
	registry *registry.Registry
	tags     *TagCache
	run      RunFunc
	logger   *slog.Logger
}

func NewRouter(reg *registry.Registry, run RunFunc, logger *slog.Logger) *Router {
	return &Router{
		registry: reg,
		tags:     NewTagCache(),
		run:      run,
		logger:   logger.With("module", "event_router"),
	}
}

// Bind registers the router's handlers on the bus. Call once before the bus
// starts delivering.
func (r *Router) Bind(bus eventbus.EventBus) {
	bus.Handle(events.NoteCreatedEvent, r.handleEvent)
	bus.Handle(events.NoteModifiedEvent, r.handleEvent)
	bus.Handle(events.NoteDeletedEvent, r.handleEvent)
	bus.Handle(events.TagsChangedEvent, r.handleEvent)
	bus.Handle(events.VaultOpenedEvent, r.handleEvent)
	bus.Handle(events.StartupEvent, r.handleEvent)
}

func (r *Router) handleEvent(_ context.Context, event any) error {
	switch e := event.(type) {
	case *events.NoteCreated:
		r.routeFileEvent(models.TriggerFileCreated, e.Path)
	case *events.NoteModified:
		r.routeFileEvent(models.TriggerFileModified, e.Path)
	case *events.NoteDeleted:
		r.routeFileEvent(models.TriggerFileDeleted, e.Path)
		r.tags.Forget(e.Path)
	case *events.TagsChanged:
		r.routeTagEvent(e.Path, e.Tags)
	case *events.VaultOpened:
		r.FireLifecycle(models.TriggerVaultOpened)
	case *events.Startup:
		r.FireLifecycle(models.TriggerStartup)
	default:
		return fmt.Errorf("unexpected event %T", event)
	}

	return nil
}

func (r *Router) routeFileEvent(triggerType models.TriggerType, path string) {
	for _, automation := range r.registry.Enabled() {
		for _, trigger := range automation.Config.Triggers {
			if trigger.Type != triggerType {
				continue
			}

			if !glob.Match(trigger.Pattern, path) {
				continue
			}

			r.dispatch(automation.ID, trigger, "path", path)
		}
	}
}

func (r *Router) routeTagEvent(path string, tags []string) {
	added := r.tags.Diff(path, tags)
	if len(added) == 0 {
		return
	}

	addedSet := make(map[string]struct{}, len(added))
	for _, tag := range added {
		addedSet[tag] = struct{}{}
	}

	for _, automation := range r.registry.Enabled() {
		for _, trigger := range automation.Config.Triggers {
			if trigger.Type != models.TriggerTagAdded {
				continue
			}

			if _, ok := addedSet[normalizeTag(trigger.Tag)]; !ok {
				continue
			}

			r.dispatch(automation.ID, trigger, "path", path)
		}
	}
}

// FireLifecycle runs every enabled automation holding the given lifecycle
// trigger. Fired once when the host signals readiness; never re-armed.
func (r *Router) FireLifecycle(triggerType models.TriggerType) {
	for _, automation := range r.registry.Enabled() {
		for _, trigger := range automation.Config.Triggers {
			if trigger.Type != triggerType {
				continue
			}

			r.dispatch(automation.ID, trigger)
		}
	}
}

func (r *Router) dispatch(automationID string, trigger models.Trigger, logArgs ...any) {
	args := append([]any{"id", automationID, "trigger", trigger.Describe()}, logArgs...)
	r.logger.Debug("Dispatching automation", args...)

	go r.run(automationID, trigger)
}
