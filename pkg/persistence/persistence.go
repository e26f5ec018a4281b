package persistence

import (
	"context"

	"github.com/vaultpilot/automations/pkg/models"
)

// State is the full persisted engine state. It is rewritten wholesale on
// every mutating operation; there is no incremental format.
type State struct {
	Automations map[string]*models.Automation `json:"automations"`
	History     []models.HistoryEntry         `json:"history"`
}

// NewState returns an empty default state.
func NewState() *State {
	return &State{
		Automations: make(map[string]*models.Automation),
		History:     []models.HistoryEntry{},
	}
}

type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Close(ctx context.Context) error
}
