package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultpilot/automations/pkg/models"
)

// Registry is the single source of truth for automation instances. All other
// components mutate automations through it. Accessors return detached copies,
// so readers never share memory with the stored automation; a copy reflects
// the state at the time of the call. Every mutating call invokes the OnChange
// hook, which the engine uses to schedule a full state persist.
type Registry struct {
	mu          sync.RWMutex
	automations map[string]*models.Automation
	logger      *slog.Logger

	// OnChange, if set, is called after every successful mutation.
	OnChange func()
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		automations: make(map[string]*models.Automation),
		logger:      logger.With("module", "registry"),
	}
}

// UpdateRequest carries the fields Update may merge; nil fields are left
// untouched.
type UpdateRequest struct {
	Name        *string
	Description *string
	Config      *models.AutomationConfig
	Enabled     *bool
}

// Register adds a new automation. Fails with ErrAutomationAlreadyExists if
// the id is taken.
func (r *Registry) Register(automation *models.Automation) error {
	if err := automation.Validate(); err != nil {
		return err
	}

	r.mu.Lock()

	if _, exists := r.automations[automation.ID]; exists {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrAutomationAlreadyExists, automation.ID)
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now
	r.automations[automation.ID] = snapshot(automation)
	r.mu.Unlock()

	r.logger.Info("Registered automation", "id", automation.ID, "name", automation.Name, "origin", automation.Origin)
	r.changed()

	return nil
}

// Unregister removes an automation. Removing an unknown id is an idempotent,
// logged no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()

	if _, exists := r.automations[id]; !exists {
		r.mu.Unlock()
		r.logger.Warn("Unregister of unknown automation ignored", "id", id)

		return
	}

	delete(r.automations, id)
	r.mu.Unlock()

	r.logger.Info("Unregistered automation", "id", id)
	r.changed()
}

// SetEnabled flips the enabled flag. The caller handles (de)activation.
func (r *Registry) SetEnabled(id string, enabled bool) (*models.Automation, error) {
	r.mu.Lock()

	automation, exists := r.automations[id]
	if !exists {
		r.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrAutomationNotFound, id)
	}

	automation.Enabled = enabled
	automation.UpdatedAt = time.Now().UTC()
	out := snapshot(automation)
	r.mu.Unlock()

	r.changed()

	return out, nil
}

// Update merges the non-nil fields of the request into the automation.
func (r *Registry) Update(id string, req UpdateRequest) (*models.Automation, error) {
	r.mu.Lock()

	automation, exists := r.automations[id]
	if !exists {
		r.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrAutomationNotFound, id)
	}

	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			r.mu.Unlock()

			return nil, err
		}

		automation.Config = *req.Config
	}

	if req.Name != nil {
		automation.Name = *req.Name
	}

	if req.Description != nil {
		automation.Description = *req.Description
	}

	if req.Enabled != nil {
		automation.Enabled = *req.Enabled
	}

	automation.UpdatedAt = time.Now().UTC()
	out := snapshot(automation)
	r.mu.Unlock()

	r.logger.Info("Updated automation", "id", id)
	r.changed()

	return out, nil
}

// Get returns the automation for the id.
func (r *Registry) Get(id string) (*models.Automation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	automation, exists := r.automations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAutomationNotFound, id)
	}

	return snapshot(automation), nil
}

// All returns every registered automation.
func (r *Registry) All() []*models.Automation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Automation, 0, len(r.automations))
	for _, a := range r.automations {
		out = append(out, snapshot(a))
	}

	return out
}

// Enabled returns every enabled automation.
func (r *Registry) Enabled() []*models.Automation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Automation, 0, len(r.automations))

	for _, a := range r.automations {
		if a.Enabled {
			out = append(out, snapshot(a))
		}
	}

	return out
}

// RecordRun applies a completed execution to the automation's runtime
// fields. Concurrent runs apply in completion order, last writer wins.
func (r *Registry) RecordRun(id string, result models.ExecutionResult) {
	r.mu.Lock()

	automation, exists := r.automations[id]
	if !exists {
		// Unregistered while the run was in flight; nothing to update.
		r.mu.Unlock()

		return
	}

	ts := result.Timestamp
	automation.LastRun = &ts
	automation.LastResult = &result
	automation.ExecutionCount++
	r.mu.Unlock()

	r.changed()
}

// SetNextRun records the scheduler's next computed fire time.
func (r *Registry) SetNextRun(id string, next *time.Time) {
	r.mu.Lock()

	automation, exists := r.automations[id]
	if !exists {
		r.mu.Unlock()

		return
	}

	automation.NextRun = next
	r.mu.Unlock()

	r.changed()
}

func (r *Registry) changed() {
	if r.OnChange != nil {
		r.OnChange()
	}
}

// snapshot shallow-copies an automation. Mutations always replace whole
// fields on the stored struct, never write through its pointers or slices,
// so a shallow copy is race-free.
func snapshot(a *models.Automation) *models.Automation {
	c := *a

	return &c
}
