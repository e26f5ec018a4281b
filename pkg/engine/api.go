package engine

import (
	"context"
	"fmt"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

// RegisterAutomation adds a new automation and activates it when enabled.
func (e *Engine) RegisterAutomation(automation *models.Automation) error {
	if err := e.registry.Register(automation); err != nil {
		return err
	}

	if automation.Enabled {
		e.activate(automation)
	}

	return nil
}

// UnregisterAutomation deactivates and removes the automation. Removing an
// unknown id is an idempotent no-op.
func (e *Engine) UnregisterAutomation(id string) {
	e.deactivate(id)
	e.registry.Unregister(id)
}

// EnableAutomation sets the enabled flag and activates the automation.
func (e *Engine) EnableAutomation(id string) error {
	automation, err := e.registry.SetEnabled(id, true)
	if err != nil {
		return err
	}

	e.activate(automation)

	return nil
}

// DisableAutomation deactivates the automation and clears the enabled flag.
func (e *Engine) DisableAutomation(id string) error {
	e.deactivate(id)

	_, err := e.registry.SetEnabled(id, false)

	return err
}

// UpdateAutomation deactivates, merges the partial update, and reactivates
// if the automation is still enabled.
func (e *Engine) UpdateAutomation(id string, req registry.UpdateRequest) (*models.Automation, error) {
	e.deactivate(id)

	automation, err := e.registry.Update(id, req)
	if err != nil {
		return nil, err
	}

	if automation.Enabled {
		e.activate(automation)
	}

	return automation, nil
}

// RunAutomation executes the automation now and returns the result. When
// trigger is nil the automation's first configured trigger is recorded as
// the triggering trigger.
func (e *Engine) RunAutomation(ctx context.Context, id string, trigger *models.Trigger) (*models.ExecutionResult, error) {
	automation, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}

	var firing models.Trigger
	if trigger != nil {
		firing = *trigger
	} else if len(automation.Config.Triggers) > 0 {
		firing = automation.Config.Triggers[0]
	} else {
		return nil, fmt.Errorf("%w: automation %s has no triggers", models.ErrValidation, id)
	}

	return e.pipeline.Execute(ctx, automation, firing), nil
}

// GetAutomation returns the automation for the id.
func (e *Engine) GetAutomation(id string) (*models.Automation, error) {
	return e.registry.Get(id)
}

// GetAllAutomations returns every registered automation.
func (e *Engine) GetAllAutomations() []*models.Automation {
	return e.registry.All()
}

// GetHistory returns up to limit history entries, newest first.
func (e *Engine) GetHistory(limit int) []models.HistoryEntry {
	return e.ring.All(limit)
}

// GetHistoryForAutomation returns up to limit entries for one automation.
func (e *Engine) GetHistoryForAutomation(id string, limit int) []models.HistoryEntry {
	return e.ring.ForAutomation(id, limit)
}

// ClearHistory discards all history entries and persists the empty history.
func (e *Engine) ClearHistory() {
	e.ring.Clear()
	e.schedulePersist()
}

// IsAutomationRunning reports whether a run is in flight for the id.
func (e *Engine) IsAutomationRunning(id string) bool {
	return e.pipeline.IsRunning(id)
}

// GetRunningAutomationIDs returns the ids with runs in flight.
func (e *Engine) GetRunningAutomationIDs() []string {
	return e.pipeline.RunningIDs()
}
