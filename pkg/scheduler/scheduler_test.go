package scheduler

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

func scheduledAutomation(id, cronExpr string) *models.Automation {
	return &models.Automation{
		ID:      id,
		Name:    "Scheduled",
		Enabled: true,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{{Type: models.TriggerSchedule, CronExpression: cronExpr}},
			Actions:  []models.Action{{Type: models.ActionRunShell, Command: "true"}},
		},
	}
}

func newTestScheduler(t *testing.T, run RunFunc) (*Scheduler, *registry.Registry) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	if run == nil {
		run = func(string, models.Trigger) {}
	}

	return NewScheduler(reg, run, slog.Default()), reg
}

func TestNextOccurrenceDailyNineAM(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	automation := scheduledAutomation("a1", "0 9 * * *")
	now := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	next, trigger, err := s.NextOccurrence(automation, now)
	require.NoError(t, err)
	require.NotNil(t, trigger)

	assert.True(t, next.After(now))
	assert.Equal(t, time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceStrictlyAfterNow(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	automation := scheduledAutomation("a1", "0 9 * * *")
	// Exactly at 09:00: the next occurrence is tomorrow, not now.
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	next, _, err := s.NextOccurrence(automation, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrencePicksEarliestTrigger(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	automation := scheduledAutomation("a1", "0 9 * * *")
	automation.Config.Triggers = append(automation.Config.Triggers,
		models.Trigger{Type: models.TriggerSchedule, CronExpression: "*/5 * * * *"})

	now := time.Date(2026, 5, 4, 10, 31, 0, 0, time.UTC)

	next, trigger, err := s.NextOccurrence(automation, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 10, 35, 0, 0, time.UTC), next)
	assert.Equal(t, "*/5 * * * *", trigger.CronExpression)
}

func TestNextOccurrenceInvalidCron(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	automation := scheduledAutomation("a1", "every day at nine")

	_, trigger, err := s.NextOccurrence(automation, time.Now())
	require.Error(t, err)
	assert.Nil(t, trigger)

	var schedErr *SchedulingError
	assert.ErrorAs(t, err, &schedErr)
	assert.Equal(t, "a1", schedErr.AutomationID)
}

func TestScheduleKeepsOneTimerPerAutomation(t *testing.T) {
	s, reg := newTestScheduler(t, nil)

	automation := scheduledAutomation("a1", "0 0 1 1 *")
	require.NoError(t, reg.Register(automation))

	s.Schedule(automation)
	s.Schedule(automation)

	s.mu.Lock()
	assert.Len(t, s.timers, 1)
	s.mu.Unlock()

	got, err := reg.Get("a1")
	require.NoError(t, err)
	assert.NotNil(t, got.NextRun)

	s.Unschedule("a1")

	s.mu.Lock()
	assert.Empty(t, s.timers)
	s.mu.Unlock()

	got, err = reg.Get("a1")
	require.NoError(t, err)
	assert.Nil(t, got.NextRun)
}

func TestScheduleInvalidCronLeavesUnscheduled(t *testing.T) {
	s, reg := newTestScheduler(t, nil)

	// An unparsable expression is not a registration error; the automation
	// stays registered and enabled.
	automation := scheduledAutomation("a1", "not a cron")
	require.NoError(t, reg.Register(automation))

	s.Schedule(automation)

	s.mu.Lock()
	assert.Empty(t, s.timers)
	s.mu.Unlock()

	got, err := reg.Get("a1")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.NextRun)
}

func TestFireRunsAndRearms(t *testing.T) {
	var (
		mu   sync.Mutex
		runs []string
	)

	run := func(id string, trigger models.Trigger) {
		mu.Lock()
		runs = append(runs, id)
		mu.Unlock()
	}

	s, reg := newTestScheduler(t, run)

	automation := scheduledAutomation("a1", "0 0 1 1 *")
	require.NoError(t, reg.Register(automation))

	s.fire("a1", automation.Config.Triggers[0])

	mu.Lock()
	assert.Equal(t, []string{"a1"}, runs)
	mu.Unlock()

	// The cycle re-armed a fresh timer.
	s.mu.Lock()
	assert.Len(t, s.timers, 1)
	s.mu.Unlock()

	s.Stop()

	s.mu.Lock()
	assert.Empty(t, s.timers)
	s.mu.Unlock()
}

func TestFireSkipsDisabledAutomation(t *testing.T) {
	ran := false
	s, reg := newTestScheduler(t, func(string, models.Trigger) { ran = true })

	automation := scheduledAutomation("a1", "0 0 1 1 *")
	automation.Enabled = false
	require.NoError(t, reg.Register(automation))

	s.fire("a1", automation.Config.Triggers[0])

	assert.False(t, ran)
}
