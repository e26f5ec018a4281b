// Package models defines the core domain models for trigger-action automations.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation is the root of all configuration validation failures.
var ErrValidation = errors.New("invalid automation configuration")

// Origin records how an automation entered the registry.
type Origin string

const (
	OriginManual     Origin = "manual"
	OriginExtension  Origin = "extension"
	OriginDefinition Origin = "external-definition"
)

// AutomationConfig is the declared part of an automation: what fires it and
// what it does. Triggers and actions keep their declared order.
type AutomationConfig struct {
	Triggers     []Trigger `json:"triggers"      validate:"required,min=1,dive"`
	Actions      []Action  `json:"actions"       validate:"required,min=1,dive"`
	Enabled      bool      `json:"enabled"`
	RunOnInstall bool      `json:"run_on_install,omitempty"`
}

// Automation is a named bundle of triggers and actions plus the runtime
// state the engine maintains for it. Runtime fields are mutated only by the
// engine; provenance fields are set once at registration.
type Automation struct {
	ID          string           `json:"id"   validate:"required"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description,omitempty"`
	Config      AutomationConfig `json:"config"`

	// Runtime state.
	Enabled        bool             `json:"enabled"`
	LastRun        *time.Time       `json:"last_run,omitempty"`
	NextRun        *time.Time       `json:"next_run,omitempty"`
	LastResult     *ExecutionResult `json:"last_result,omitempty"`
	ExecutionCount int64            `json:"execution_count"`

	// Provenance.
	Origin       Origin `json:"origin"`
	SourcePath   string `json:"source_path,omitempty"`
	SourceFormat string `json:"source_format,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the automation and its full config.
func (a *Automation) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: automation id is required", ErrValidation)
	}

	if a.Name == "" {
		return fmt.Errorf("%w: automation name is required", ErrValidation)
	}

	return a.Config.Validate()
}

// Validate enforces the minimum validity rules: at least one trigger, at
// least one action, and every trigger/action carrying its identifying fields.
func (c *AutomationConfig) Validate() error {
	if len(c.Triggers) == 0 {
		return fmt.Errorf("%w: at least one trigger is required", ErrValidation)
	}

	if len(c.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrValidation)
	}

	for i := range c.Triggers {
		if err := c.Triggers[i].Validate(); err != nil {
			return fmt.Errorf("trigger %d: %w", i, err)
		}
	}

	for i := range c.Actions {
		if err := c.Actions[i].Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	return nil
}

// ScheduleTriggers returns the subset of triggers that are cron-scheduled.
func (a *Automation) ScheduleTriggers() []Trigger {
	var out []Trigger

	for _, t := range a.Config.Triggers {
		if t.Type == TriggerSchedule {
			out = append(out, t)
		}
	}

	return out
}

// HasTrigger reports whether the automation declares a trigger of the given type.
func (a *Automation) HasTrigger(tt TriggerType) bool {
	for _, t := range a.Config.Triggers {
		if t.Type == tt {
			return true
		}
	}

	return false
}
