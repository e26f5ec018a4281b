// Package scheduler arms one-shot timers for cron-scheduled automations.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

// SchedulingError wraps an unparsable cron expression. It is caught at the
// scheduler boundary and logged; the automation stays registered but
// unscheduled until the next explicit (re)activation.
type SchedulingError struct {
	AutomationID string
	Expression   string
	Err          error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("cannot schedule automation %s: invalid cron expression %q: %v", e.AutomationID, e.Expression, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// RunFunc executes one (automation, trigger) pair. The scheduler calls it
// from the timer goroutine; the engine runs the pipeline asynchronously.
type RunFunc func(automationID string, trigger models.Trigger)

// Scheduler maintains exactly one pending timer per scheduled automation id.
// Timers are one-shot and self-rescheduling: on fire the next occurrence is
// recomputed from wall-clock time, so drift does not accumulate and clock
// changes are absorbed each cycle.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	registry *registry.Registry
	run      RunFunc
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewScheduler(reg *registry.Registry, run RunFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers:   make(map[string]*time.Timer),
		registry: reg,
		run:      run,
		logger:   logger.With("module", "scheduler"),
		now:      time.Now,
	}
}

// NextOccurrence computes the earliest next fire time strictly after now
// across the automation's schedule triggers, along with the trigger that
// fires then. Triggers with invalid cron expressions contribute nothing and
// are reported through the returned error (the last one encountered).
func (s *Scheduler) NextOccurrence(automation *models.Automation, now time.Time) (time.Time, *models.Trigger, error) {
	var (
		best        time.Time
		bestTrigger *models.Trigger
		lastErr     error
	)

	for _, trigger := range automation.ScheduleTriggers() {
		schedule, err := cron.ParseStandard(trigger.CronExpression)
		if err != nil {
			lastErr = &SchedulingError{
				AutomationID: automation.ID,
				Expression:   trigger.CronExpression,
				Err:          err,
			}

			continue
		}

		next := schedule.Next(now)
		if next.IsZero() {
			continue
		}

		if best.IsZero() || next.Before(best) {
			best = next
			t := trigger
			bestTrigger = &t
		}
	}

	return best, bestTrigger, lastErr
}

// Schedule arms (or re-arms, replacing any pending timer) the automation's
// timer. Invalid cron expressions are logged and leave it unscheduled.
func (s *Scheduler) Schedule(automation *models.Automation) {
	now := s.now()

	next, trigger, err := s.NextOccurrence(automation, now)
	if err != nil {
		s.logger.Error("Scheduling failed", "id", automation.ID, "error", err)
	}

	if trigger == nil {
		s.Unschedule(automation.ID)

		return
	}

	id := automation.ID
	firing := *trigger
	delay := next.Sub(now)

	s.mu.Lock()

	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}

	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id, firing)
	})
	s.mu.Unlock()

	s.registry.SetNextRun(id, &next)
	s.logger.Debug("Armed schedule timer", "id", id, "next_run", next, "delay", delay)
}

// fire runs the pair and immediately re-arms from fresh registry state. The
// automation may have been disabled or unregistered while the timer was
// pending; then the cycle simply ends.
func (s *Scheduler) fire(id string, trigger models.Trigger) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	automation, err := s.registry.Get(id)
	if err != nil || !automation.Enabled {
		return
	}

	s.run(id, trigger)
	s.Schedule(automation)
}

// Unschedule cancels the pending timer, if any, and clears NextRun.
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()

	timer, ok := s.timers[id]
	if ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if ok {
		s.registry.SetNextRun(id, nil)
		s.logger.Debug("Cancelled schedule timer", "id", id)
	}
}

// Stop cancels every pending timer; used on shutdown so no callback fires
// into a torn-down engine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
