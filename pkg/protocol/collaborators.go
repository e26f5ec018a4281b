// Package protocol defines the boundary interfaces between the automation
// engine and its external collaborators in the host application.
package protocol

import "context"

// AgentRunner resolves and runs a configured AI agent.
type AgentRunner interface {
	RunAgent(ctx context.Context, agentID string, input map[string]any) (any, error)
}

// PromptRunner renders and submits a stored prompt to the AI provider.
type PromptRunner interface {
	RunPrompt(ctx context.Context, promptID string, input map[string]any) (any, error)
}

// SkillRunner executes a registered skill/tool.
type SkillRunner interface {
	RunSkill(ctx context.Context, skillID string, input map[string]any) (any, error)
}

// NoteStore is the content-store boundary used by note actions.
type NoteStore interface {
	CreateNote(ctx context.Context, path, content string) error
	UpdateNote(ctx context.Context, path, content string) error
}

// ShellRunner invokes an external process for run-shell actions.
type ShellRunner interface {
	RunCommand(ctx context.Context, command string, input map[string]any) (any, error)
}

// Notifier surfaces user-visible notifications in the host UI.
type Notifier interface {
	Notify(title, message string)
}

// Collaborators bundles everything the execution pipeline dispatches to.
type Collaborators struct {
	Agents   AgentRunner
	Prompts  PromptRunner
	Skills   SkillRunner
	Notes    NoteStore
	Shell    ShellRunner
	Notifier Notifier
}
