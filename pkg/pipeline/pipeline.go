// Package pipeline runs an automation's action list sequentially for one
// triggering event.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpilot/automations/pkg/eventbus"
	"github.com/vaultpilot/automations/pkg/events"
	"github.com/vaultpilot/automations/pkg/history"
	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/protocol"
	"github.com/vaultpilot/automations/pkg/registry"
)

// executionContext is the ephemeral per-run state. It is owned exclusively
// by one Execute call and never shared or persisted.
type executionContext struct {
	id        string
	trigger   models.Trigger
	startedAt time.Time
	results   []models.ActionResult
}

// Pipeline executes automations and records their outcomes. Multiple runs
// may be in flight concurrently, including for the same automation id;
// runtime-field updates apply in completion order, last writer wins.
type Pipeline struct {
	registry      *registry.Registry
	collaborators protocol.Collaborators
	ring          *history.Ring
	audit         *history.AuditLog
	bus           eventbus.EventBus
	logger        *slog.Logger

	mu       sync.Mutex
	inflight map[string]int
}

func NewPipeline(
	reg *registry.Registry,
	collaborators protocol.Collaborators,
	ring *history.Ring,
	audit *history.AuditLog,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		registry:      reg,
		collaborators: collaborators,
		ring:          ring,
		audit:         audit,
		bus:           bus,
		logger:        logger.With("module", "pipeline"),
		inflight:      make(map[string]int),
	}
}

// IsRunning reports whether at least one run for the id is in flight.
func (p *Pipeline) IsRunning(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.inflight[id] > 0
}

// RunningIDs returns the ids with at least one run in flight.
func (p *Pipeline) RunningIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.inflight))
	for id := range p.inflight {
		out = append(out, id)
	}

	return out
}

// Execute runs the automation's actions in order for the triggering trigger.
// Action failures are converted into a failed result, never propagated; the
// remaining actions are not attempted. Persistence and audit-log failures
// are logged and swallowed, leaving in-memory state authoritative.
func (p *Pipeline) Execute(ctx context.Context, automation *models.Automation, trigger models.Trigger) *models.ExecutionResult {
	p.enter(automation.ID)
	defer p.leave(automation.ID)

	execCtx := &executionContext{
		id:        "exec-" + uuid.New().String()[:8],
		trigger:   trigger,
		startedAt: time.Now().UTC(),
	}

	logger := p.logger.With("id", automation.ID, "execution_id", execCtx.id, "trigger", trigger.Describe())
	logger.Info("Starting automation run")

	p.publish(ctx, automation.ID, events.AutomationTriggered{
		BaseEvent:    p.baseEvent(events.AutomationTriggeredEvent),
		AutomationID: automation.ID,
		Trigger:      trigger,
	})

	if trigger.DelayMs > 0 {
		p.sleep(ctx, time.Duration(trigger.DelayMs)*time.Millisecond)
	}

	result := p.runActions(ctx, automation, execCtx, logger)

	p.registry.RecordRun(automation.ID, *result)

	p.ring.Push(models.HistoryEntry{
		AutomationID: automation.ID,
		Result:       *result,
		Timestamp:    result.Timestamp,
	})

	if err := p.audit.Append(automation, result); err != nil {
		logger.Warn("Failed to append audit log entry", "error", err)
	}

	duration := time.Since(execCtx.startedAt)

	if result.Success {
		logger.Info("Automation run finished", "duration", duration, "actions", len(result.ActionResults))
		p.publish(ctx, automation.ID, events.AutomationFinished{
			BaseEvent:    p.baseEvent(events.AutomationFinishedEvent),
			AutomationID: automation.ID,
			Duration:     duration,
		})
	} else {
		logger.Warn("Automation run failed", "duration", duration, "error", result.Error)
		p.publish(ctx, automation.ID, events.AutomationFailed{
			BaseEvent:    p.baseEvent(events.AutomationFailedEvent),
			AutomationID: automation.ID,
			Error:        result.Error,
			Duration:     duration,
		})

		if p.collaborators.Notifier != nil {
			p.collaborators.Notifier.Notify(
				"Automation failed",
				fmt.Sprintf("%s: %s", automation.Name, result.Error),
			)
		}
	}

	return result
}

// runActions executes the configured actions sequentially, chaining each
// successful output into the next action's input and halting at the first
// failure.
func (p *Pipeline) runActions(ctx context.Context, automation *models.Automation, execCtx *executionContext, logger *slog.Logger) *models.ExecutionResult {
	result := &models.ExecutionResult{
		Success:   true,
		Timestamp: execCtx.startedAt,
		Trigger:   execCtx.trigger,
	}

	var previousOutput any

	for i, action := range automation.Config.Actions {
		input := chainInput(action.Input, i > 0, previousOutput)

		start := time.Now()
		output, err := p.runAction(ctx, action, input)
		actionResult := models.ActionResult{
			Action:   action,
			Success:  err == nil,
			Duration: time.Since(start),
		}

		if err != nil {
			actionResult.Error = err.Error()
			result.ActionResults = append(result.ActionResults, actionResult)
			result.Success = false
			result.Error = (&ActionError{Index: i, Action: action, Err: err}).Error()

			logger.Warn("Action failed, halting pipeline", "action", action.Describe(), "error", err)

			break
		}

		actionResult.Result = output
		result.ActionResults = append(result.ActionResults, actionResult)
		previousOutput = output

		logger.Debug("Action completed", "action", action.Describe(), "duration", actionResult.Duration)
	}

	execCtx.results = result.ActionResults

	return result
}

// runAction dispatches the action to its collaborator. The switch is
// exhaustive over ActionType.
func (p *Pipeline) runAction(ctx context.Context, action models.Action, input map[string]any) (any, error) {
	switch action.Type {
	case models.ActionRunAgent:
		if p.collaborators.Agents == nil {
			return nil, fmt.Errorf("no agent runner configured")
		}

		return p.collaborators.Agents.RunAgent(ctx, action.AgentID, input)
	case models.ActionRunPrompt:
		if p.collaborators.Prompts == nil {
			return nil, fmt.Errorf("no prompt runner configured")
		}

		return p.collaborators.Prompts.RunPrompt(ctx, action.PromptID, input)
	case models.ActionRunSkill:
		if p.collaborators.Skills == nil {
			return nil, fmt.Errorf("no skill runner configured")
		}

		return p.collaborators.Skills.RunSkill(ctx, action.SkillID, input)
	case models.ActionCreateNote:
		if p.collaborators.Notes == nil {
			return nil, fmt.Errorf("no note store configured")
		}

		content := renderTemplate(action.Template, input)
		if err := p.collaborators.Notes.CreateNote(ctx, action.Path, content); err != nil {
			return nil, err
		}

		return map[string]any{"path": action.Path}, nil
	case models.ActionUpdateNote:
		if p.collaborators.Notes == nil {
			return nil, fmt.Errorf("no note store configured")
		}

		content := renderTemplate(action.Template, input)
		if err := p.collaborators.Notes.UpdateNote(ctx, action.Path, content); err != nil {
			return nil, err
		}

		return map[string]any{"path": action.Path}, nil
	case models.ActionRunShell:
		if p.collaborators.Shell == nil {
			return nil, fmt.Errorf("no shell runner configured")
		}

		return p.collaborators.Shell.RunCommand(ctx, action.Command, input)
	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}
}

// chainInput copies the configured input and, from the second action on,
// merges the previous action's output under the previousOutput key.
func chainInput(configured map[string]any, chain bool, previousOutput any) map[string]any {
	if len(configured) == 0 && (!chain || previousOutput == nil) {
		return nil
	}

	input := make(map[string]any, len(configured)+1)
	for k, v := range configured {
		input[k] = v
	}

	if chain && previousOutput != nil {
		input[models.PreviousOutputKey] = previousOutput
	}

	return input
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (p *Pipeline) enter(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight[id]++
}

func (p *Pipeline) leave(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight[id]--
	if p.inflight[id] <= 0 {
		delete(p.inflight, id)
	}
}

func (p *Pipeline) baseEvent(eventType events.EventType) events.BaseEvent {
	id := ""
	if p.bus != nil {
		id = p.bus.GenerateID()
	}

	return events.BaseEvent{ID: id, Type: eventType, Timestamp: time.Now().UTC()}
}

func (p *Pipeline) publish(ctx context.Context, key string, event eventbus.Event) {
	if p.bus == nil {
		return
	}

	if err := p.bus.Publish(ctx, key, event); err != nil {
		p.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
