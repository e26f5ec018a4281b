package models

import "fmt"

// ActionType discriminates the action union.
type ActionType string

const (
	ActionRunAgent   ActionType = "run-agent"
	ActionRunPrompt  ActionType = "run-prompt"
	ActionRunSkill   ActionType = "run-skill"
	ActionCreateNote ActionType = "create-note"
	ActionUpdateNote ActionType = "update-note"
	ActionRunShell   ActionType = "run-shell"
)

// PreviousOutputKey is the input key under which the pipeline merges the
// previous successful action's output when chaining steps.
const PreviousOutputKey = "previousOutput"

// Action is a tagged union: Type selects which identifying field is required.
// Input is an optional free-form map handed to the collaborator executing the
// action, enriched with PreviousOutputKey by the pipeline.
type Action struct {
	Type ActionType `json:"type" validate:"required"`

	AgentID  string `json:"agent_id,omitempty"`
	PromptID string `json:"prompt_id,omitempty"`
	SkillID  string `json:"skill_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Template string `json:"template,omitempty"`
	Command  string `json:"command,omitempty"`

	Input map[string]any `json:"input,omitempty"`
}

// Validate checks the action's identifying field for its type. The switch is
// exhaustive over ActionType; new kinds must be added here.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionRunAgent:
		if a.AgentID == "" {
			return fmt.Errorf("%w: run-agent action requires an agent_id", ErrValidation)
		}

		return nil
	case ActionRunPrompt:
		if a.PromptID == "" {
			return fmt.Errorf("%w: run-prompt action requires a prompt_id", ErrValidation)
		}

		return nil
	case ActionRunSkill:
		if a.SkillID == "" {
			return fmt.Errorf("%w: run-skill action requires a skill_id", ErrValidation)
		}

		return nil
	case ActionCreateNote, ActionUpdateNote:
		if a.Path == "" {
			return fmt.Errorf("%w: %s action requires a path", ErrValidation, a.Type)
		}

		return nil
	case ActionRunShell:
		if a.Command == "" {
			return fmt.Errorf("%w: run-shell action requires a command", ErrValidation)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrValidation, a.Type)
	}
}

// Describe renders a short human-readable summary for logs and the audit log.
func (a *Action) Describe() string {
	switch a.Type {
	case ActionRunAgent:
		return fmt.Sprintf("run-agent %s", a.AgentID)
	case ActionRunPrompt:
		return fmt.Sprintf("run-prompt %s", a.PromptID)
	case ActionRunSkill:
		return fmt.Sprintf("run-skill %s", a.SkillID)
	case ActionCreateNote, ActionUpdateNote:
		return fmt.Sprintf("%s %s", a.Type, a.Path)
	case ActionRunShell:
		return fmt.Sprintf("run-shell %q", a.Command)
	default:
		return string(a.Type)
	}
}
