package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/automations/pkg/history"
	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/protocol"
	"github.com/vaultpilot/automations/pkg/registry"
)

type fakeSkills struct {
	mu     sync.Mutex
	calls  []string
	inputs map[string]map[string]any
	fail   map[string]error
	block  chan struct{}
}

func newFakeSkills() *fakeSkills {
	return &fakeSkills{
		inputs: make(map[string]map[string]any),
		fail:   make(map[string]error),
	}
}

func (f *fakeSkills) RunSkill(_ context.Context, skillID string, input map[string]any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, skillID)
	f.inputs[skillID] = input
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if err := f.fail[skillID]; err != nil {
		return nil, err
	}

	return "output-of-" + skillID, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, title+": "+message)
}

func skillAutomation(id string, skillIDs ...string) *models.Automation {
	config := models.AutomationConfig{
		Triggers: []models.Trigger{{Type: models.TriggerStartup}},
	}

	for _, skillID := range skillIDs {
		config.Actions = append(config.Actions, models.Action{
			Type:    models.ActionRunSkill,
			SkillID: skillID,
		})
	}

	return &models.Automation{
		ID:      id,
		Name:    "Skill runner",
		Enabled: true,
		Config:  config,
	}
}

func newTestPipeline(t *testing.T, collaborators protocol.Collaborators) (*Pipeline, *registry.Registry, *history.Ring) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	ring := history.NewRing(history.DefaultCapacity)
	audit := history.NewAuditLog(filepath.Join(t.TempDir(), "audit.md"))

	return NewPipeline(reg, collaborators, ring, audit, nil, slog.Default()), reg, ring
}

func TestExecuteHaltsAtFirstFailure(t *testing.T) {
	skills := newFakeSkills()
	skills.fail["s2"] = errors.New("skill exploded")

	p, reg, ring := newTestPipeline(t, protocol.Collaborators{Skills: skills})

	automation := skillAutomation("a1", "s1", "s2", "s3")
	require.NoError(t, reg.Register(automation))

	result := p.Execute(context.Background(), automation, automation.Config.Triggers[0])

	assert.False(t, result.Success)
	require.Len(t, result.ActionResults, 2)
	assert.True(t, result.ActionResults[0].Success)
	assert.False(t, result.ActionResults[1].Success)
	assert.Contains(t, result.Error, "skill exploded")

	// The third action was never attempted.
	assert.Equal(t, []string{"s1", "s2"}, skills.calls)

	// Runtime fields and history were still updated.
	got, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ExecutionCount)
	require.NotNil(t, got.LastResult)
	assert.False(t, got.LastResult.Success)
	assert.Equal(t, 1, ring.Len())
}

func TestExecuteChainsPreviousOutput(t *testing.T) {
	skills := newFakeSkills()

	p, reg, _ := newTestPipeline(t, protocol.Collaborators{Skills: skills})

	automation := skillAutomation("a1", "s1", "s2")
	automation.Config.Actions[1].Input = map[string]any{"mode": "fast"}
	require.NoError(t, reg.Register(automation))

	result := p.Execute(context.Background(), automation, automation.Config.Triggers[0])
	require.True(t, result.Success)

	// First action sees no previous output.
	_, hasPrev := skills.inputs["s1"][models.PreviousOutputKey]
	assert.False(t, hasPrev)

	// Second action sees its configured input plus the chained output.
	assert.Equal(t, "fast", skills.inputs["s2"]["mode"])
	assert.Equal(t, "output-of-s1", skills.inputs["s2"][models.PreviousOutputKey])
}

func TestExecuteAppliesTriggerDelay(t *testing.T) {
	skills := newFakeSkills()

	p, reg, _ := newTestPipeline(t, protocol.Collaborators{Skills: skills})

	automation := skillAutomation("a1", "s1")
	automation.Config.Triggers = []models.Trigger{{
		Type:           models.TriggerSchedule,
		CronExpression: "0 9 * * *",
		DelayMs:        60,
	}}
	require.NoError(t, reg.Register(automation))

	start := time.Now()
	result := p.Execute(context.Background(), automation, automation.Config.Triggers[0])

	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestExecuteNotifiesOnFailure(t *testing.T) {
	skills := newFakeSkills()
	skills.fail["s1"] = errors.New("boom")
	notifier := &fakeNotifier{}

	p, reg, _ := newTestPipeline(t, protocol.Collaborators{Skills: skills, Notifier: notifier})

	automation := skillAutomation("a1", "s1")
	automation.Name = "Morning digest"
	require.NoError(t, reg.Register(automation))

	p.Execute(context.Background(), automation, automation.Config.Triggers[0])

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Morning digest")
	assert.Contains(t, notifier.messages[0], "boom")
}

func TestExecuteMissingCollaborator(t *testing.T) {
	p, reg, _ := newTestPipeline(t, protocol.Collaborators{})

	automation := &models.Automation{
		ID:      "a1",
		Name:    "Agent automation",
		Enabled: true,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{{Type: models.TriggerStartup}},
			Actions:  []models.Action{{Type: models.ActionRunAgent, AgentID: "summarizer"}},
		},
	}
	require.NoError(t, reg.Register(automation))

	result := p.Execute(context.Background(), automation, automation.Config.Triggers[0])

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no agent runner configured")
}

func TestInFlightTracking(t *testing.T) {
	skills := newFakeSkills()
	skills.block = make(chan struct{})

	p, reg, _ := newTestPipeline(t, protocol.Collaborators{Skills: skills})

	automation := skillAutomation("a1", "s1")
	require.NoError(t, reg.Register(automation))

	done := make(chan struct{})

	go func() {
		p.Execute(context.Background(), automation, automation.Config.Triggers[0])
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.IsRunning("a1")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a1"}, p.RunningIDs())

	close(skills.block)
	<-done

	assert.False(t, p.IsRunning("a1"))
	assert.Empty(t, p.RunningIDs())
}

func TestExecuteNoteActions(t *testing.T) {
	store := &fakeNotes{notes: make(map[string]string)}

	p, reg, _ := newTestPipeline(t, protocol.Collaborators{Notes: store})

	automation := &models.Automation{
		ID:      "a1",
		Name:    "Note writer",
		Enabled: true,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{{Type: models.TriggerStartup}},
			Actions: []models.Action{
				{
					Type:     models.ActionCreateNote,
					Path:     "daily/today.md",
					Template: "# Daily — {{tone}}",
					Input:    map[string]any{"tone": "calm"},
				},
			},
		},
	}
	require.NoError(t, reg.Register(automation))

	result := p.Execute(context.Background(), automation, automation.Config.Triggers[0])

	require.True(t, result.Success)
	assert.Equal(t, "# Daily — calm", store.notes["daily/today.md"])
}

type fakeNotes struct {
	mu    sync.Mutex
	notes map[string]string
}

func (f *fakeNotes) CreateNote(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.notes[path]; exists {
		return fmt.Errorf("note %q already exists", path)
	}

	f.notes[path] = content

	return nil
}

func (f *fakeNotes) UpdateNote(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notes[path] = content

	return nil
}
