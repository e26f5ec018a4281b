// Package engine wires the registry, scheduler, router, pipeline, and
// definition sync into one automation engine instance.
//
// The engine is an explicit object constructed once at application start and
// passed by reference to all call sites; tests reset by constructing a new
// one.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaultpilot/automations/pkg/definitions"
	"github.com/vaultpilot/automations/pkg/eventbus"
	"github.com/vaultpilot/automations/pkg/history"
	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/persistence"
	"github.com/vaultpilot/automations/pkg/pipeline"
	"github.com/vaultpilot/automations/pkg/protocol"
	"github.com/vaultpilot/automations/pkg/registry"
	"github.com/vaultpilot/automations/pkg/router"
	"github.com/vaultpilot/automations/pkg/scheduler"
)

// Options configures a new engine.
type Options struct {
	Store           persistence.Store
	Bus             eventbus.EventBus
	Collaborators   protocol.Collaborators
	AuditLogPath    string
	HistoryCapacity int
	Logger          *slog.Logger
}

type Engine struct {
	logger    *slog.Logger
	store     persistence.Store
	bus       eventbus.EventBus
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	router    *router.Router
	pipeline  *pipeline.Pipeline
	sync      *definitions.Sync
	ring      *history.Ring

	runCtx    context.Context
	cancelRun context.CancelFunc
	persistCh chan struct{}
	persistWG chan struct{}
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("module", "engine")

	e := &Engine{
		logger:    logger,
		store:     opts.Store,
		bus:       opts.Bus,
		ring:      history.NewRing(opts.HistoryCapacity),
		persistCh: make(chan struct{}, 1),
		persistWG: make(chan struct{}),
	}

	e.registry = registry.NewRegistry(logger)
	e.registry.OnChange = e.schedulePersist

	audit := history.NewAuditLog(opts.AuditLogPath)
	e.pipeline = pipeline.NewPipeline(e.registry, opts.Collaborators, e.ring, audit, opts.Bus, logger)

	e.scheduler = scheduler.NewScheduler(e.registry, e.runScheduled, logger)
	e.router = router.NewRouter(e.registry, e.runRouted, logger)

	e.sync = definitions.NewSync(e.registry, definitions.Hooks{
		Activate:   e.activate,
		Deactivate: e.deactivate,
		RunNow:     e.runOnInstall,
	}, logger)

	return e
}

// Initialize loads persisted state (falling back to an empty default on load
// failure), subscribes the router to the event bus, activates enabled
// automations, and starts definition sync over the given directories.
func (e *Engine) Initialize(ctx context.Context, directories []string) error {
	e.runCtx, e.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	go e.persistLoop()

	state, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error("Failed to load engine state, starting empty", "error", err)
		state = persistence.NewState()
	}

	for _, automation := range state.Automations {
		if err := e.registry.Register(automation); err != nil {
			e.logger.Warn("Skipping invalid persisted automation", "id", automation.ID, "error", err)
		}
	}

	e.ring.Restore(state.History)

	if e.bus != nil {
		e.router.Bind(e.bus)

		if err := e.bus.Subscribe(e.runCtx); err != nil {
			return err
		}
	}

	for _, automation := range e.registry.Enabled() {
		e.activate(automation)
	}

	if err := e.sync.SetDirectories(e.runCtx, directories); err != nil {
		return err
	}

	e.logger.Info("Engine initialized",
		"automations", len(e.registry.All()),
		"directories", len(directories))

	return nil
}

// Shutdown cancels pending timers, stops the watcher, and writes a final
// state snapshot. The event bus stays owned by the caller.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.scheduler.Stop()

	if err := e.sync.Close(); err != nil {
		e.logger.Warn("Failed to close definition sync", "error", err)
	}

	if e.cancelRun != nil {
		e.cancelRun()
		<-e.persistWG
	}

	if err := e.store.Save(ctx, e.snapshot()); err != nil {
		e.logger.Error("Failed to persist final engine state", "error", err)
	}

	e.logger.Info("Engine shut down")

	return nil
}

// UpdateDirectories replaces the watched definition directory set. The
// watcher's lifetime stays bound to the engine's run context, not any
// caller's.
func (e *Engine) UpdateDirectories(directories []string) error {
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	return e.sync.SetDirectories(ctx, directories)
}

// activate arms the automation's schedule triggers. Event triggers need no
// arming; the router checks enabled state per event.
func (e *Engine) activate(automation *models.Automation) {
	if len(automation.ScheduleTriggers()) > 0 {
		e.scheduler.Schedule(automation)
	}
}

func (e *Engine) deactivate(id string) {
	e.scheduler.Unschedule(id)
}

// runScheduled is the scheduler's callback; it runs in the timer goroutine
// so the next occurrence is re-armed only after the run completes.
func (e *Engine) runScheduled(automationID string, trigger models.Trigger) {
	e.execute(automationID, trigger)
}

// runRouted is the router's callback; the router already dispatches each
// match on its own goroutine.
func (e *Engine) runRouted(automationID string, trigger models.Trigger) {
	e.execute(automationID, trigger)
}

func (e *Engine) runOnInstall(automation *models.Automation) {
	trigger := automation.Config.Triggers[0]

	go e.execute(automation.ID, trigger)
}

func (e *Engine) execute(automationID string, trigger models.Trigger) {
	automation, err := e.registry.Get(automationID)
	if err != nil || !automation.Enabled {
		return
	}

	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	e.pipeline.Execute(ctx, automation, trigger)
}

func (e *Engine) snapshot() *persistence.State {
	state := persistence.NewState()

	for _, automation := range e.registry.All() {
		state.Automations[automation.ID] = automation
	}

	state.History = e.ring.Snapshot()

	return state
}

// schedulePersist coalesces persist requests; the persist loop writes the
// full state. Save failures are logged and swallowed, leaving the in-memory
// state authoritative.
func (e *Engine) schedulePersist() {
	select {
	case e.persistCh <- struct{}{}:
	default:
	}
}

func (e *Engine) persistLoop() {
	defer close(e.persistWG)

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-e.persistCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

			if err := e.store.Save(ctx, e.snapshot()); err != nil {
				e.logger.Error("Failed to persist engine state", "error", err)
			}

			cancel()
		}
	}
}
