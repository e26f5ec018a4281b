package models

import "fmt"

// TriggerType discriminates the trigger union.
type TriggerType string

const (
	TriggerSchedule     TriggerType = "schedule"
	TriggerFileCreated  TriggerType = "file-created"
	TriggerFileModified TriggerType = "file-modified"
	TriggerFileDeleted  TriggerType = "file-deleted"
	TriggerTagAdded     TriggerType = "tag-added"
	TriggerVaultOpened  TriggerType = "vault-opened"
	TriggerStartup      TriggerType = "startup"
)

// Trigger is a tagged union: Type selects which of the optional fields are
// meaningful. A trigger never outlives its owning automation.
type Trigger struct {
	Type TriggerType `json:"type" validate:"required"`

	// Schedule triggers.
	CronExpression string `json:"schedule,omitempty"`
	DelayMs        int64  `json:"delay,omitempty"`

	// File triggers.
	Pattern string `json:"pattern,omitempty"`

	// Tag triggers.
	Tag string `json:"tag,omitempty"`
}

// Validate checks the trigger's identifying field for its type. The switch is
// exhaustive over TriggerType; new kinds must be added here.
func (t *Trigger) Validate() error {
	switch t.Type {
	case TriggerSchedule:
		// Only presence is validated here. Whether the expression parses is
		// the scheduler's concern: an unparsable cron leaves the automation
		// registered and enabled, just unscheduled.
		if t.CronExpression == "" {
			return fmt.Errorf("%w: schedule trigger requires a schedule expression", ErrValidation)
		}

		return nil
	case TriggerFileCreated, TriggerFileModified, TriggerFileDeleted:
		if t.Pattern == "" {
			return fmt.Errorf("%w: %s trigger requires a pattern", ErrValidation, t.Type)
		}

		return nil
	case TriggerTagAdded:
		if t.Tag == "" {
			return fmt.Errorf("%w: tag-added trigger requires a tag", ErrValidation)
		}

		return nil
	case TriggerVaultOpened, TriggerStartup:
		return nil
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrValidation, t.Type)
	}
}

// Describe renders a short human-readable summary for logs and the audit log.
func (t *Trigger) Describe() string {
	switch t.Type {
	case TriggerSchedule:
		return fmt.Sprintf("schedule %q", t.CronExpression)
	case TriggerFileCreated, TriggerFileModified, TriggerFileDeleted:
		return fmt.Sprintf("%s %q", t.Type, t.Pattern)
	case TriggerTagAdded:
		return fmt.Sprintf("tag-added #%s", t.Tag)
	case TriggerVaultOpened, TriggerStartup:
		return string(t.Type)
	default:
		return string(t.Type)
	}
}
