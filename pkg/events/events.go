// Package events defines the vault and engine lifecycle events carried on the
// event bus.
package events

import (
	"time"

	"github.com/vaultpilot/automations/pkg/models"
)

type EventType string

// Topic is the single in-process topic all engine events travel on.
const Topic = "vaultpilot.automations.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Vault content events, published by the host application.
	NoteCreatedEvent  EventType = "note.created"
	NoteModifiedEvent EventType = "note.modified"
	NoteDeletedEvent  EventType = "note.deleted"
	TagsChangedEvent  EventType = "note.tags_changed"

	// Host lifecycle signals, published once per session.
	VaultOpenedEvent EventType = "vault.opened"
	StartupEvent     EventType = "host.startup"

	// Execution lifecycle events, published by the engine so the host can
	// observe runs.
	AutomationTriggeredEvent EventType = "automation.triggered"
	AutomationFinishedEvent  EventType = "automation.finished"
	AutomationFailedEvent    EventType = "automation.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type NoteCreated struct {
	BaseEvent

	Path string `json:"path"`
}

func (e NoteCreated) GetType() EventType { return NoteCreatedEvent }

type NoteModified struct {
	BaseEvent

	Path string `json:"path"`
}

func (e NoteModified) GetType() EventType { return NoteModifiedEvent }

type NoteDeleted struct {
	BaseEvent

	Path string `json:"path"`
}

func (e NoteDeleted) GetType() EventType { return NoteDeletedEvent }

// TagsChanged carries the full current tag set of a note; consumers diff it
// against their own cache to detect additions.
type TagsChanged struct {
	BaseEvent

	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

func (e TagsChanged) GetType() EventType { return TagsChangedEvent }

type VaultOpened struct {
	BaseEvent

	VaultPath string `json:"vault_path,omitempty"`
}

func (e VaultOpened) GetType() EventType { return VaultOpenedEvent }

type Startup struct {
	BaseEvent
}

func (e Startup) GetType() EventType { return StartupEvent }

type AutomationTriggered struct {
	BaseEvent

	AutomationID string         `json:"automation_id"`
	Trigger      models.Trigger `json:"trigger"`
}

func (e AutomationTriggered) GetType() EventType { return AutomationTriggeredEvent }

type AutomationFinished struct {
	BaseEvent

	AutomationID string        `json:"automation_id"`
	Duration     time.Duration `json:"duration"`
}

func (e AutomationFinished) GetType() EventType { return AutomationFinishedEvent }

type AutomationFailed struct {
	BaseEvent

	AutomationID string        `json:"automation_id"`
	Error        string        `json:"error"`
	Duration     time.Duration `json:"duration"`
}

func (e AutomationFailed) GetType() EventType { return AutomationFailedEvent }
