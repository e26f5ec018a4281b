package definitions

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

type hookRecorder struct {
	mu          sync.Mutex
	activated   []string
	deactivated []string
	ranNow      []string
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		Activate: func(a *models.Automation) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.activated = append(h.activated, a.ID)
		},
		Deactivate: func(id string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.deactivated = append(h.deactivated, id)
		},
		RunNow: func(a *models.Automation) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.ranNow = append(h.ranNow, a.ID)
		},
	}
}

func (h *hookRecorder) snapshot() (activated, deactivated, ranNow []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.activated...),
		append([]string(nil), h.deactivated...),
		append([]string(nil), h.ranNow...)
}

func writeDefinition(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func definitionContent(name, description string, runOnInstall bool) string {
	content := "---\nname: " + name + "\n"
	if description != "" {
		content += "description: " + description + "\n"
	}

	content += "triggers:\n  - type: startup\nactions:\n  - type: run-shell\n    command: \"true\"\n"
	if runOnInstall {
		content += "runOnInstall: true\n"
	}

	return content + "---\n"
}

func newTestSync(t *testing.T) (*Sync, *registry.Registry, *hookRecorder) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	rec := &hookRecorder{}
	s := NewSync(reg, rec.hooks(), slog.Default())
	t.Cleanup(func() { _ = s.Close() })

	return s, reg, rec
}

func TestRescanInstallsDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest", "", true))

	s, reg, rec := newTestSync(t)
	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	id := DeriveID(path)
	automation, err := reg.Get(id)
	require.NoError(t, err)

	assert.Equal(t, "Daily digest", automation.Name)
	assert.Equal(t, models.OriginDefinition, automation.Origin)
	assert.Equal(t, path, automation.SourcePath)
	assert.Equal(t, SourceFormat, automation.SourceFormat)
	assert.True(t, automation.Enabled)

	activated, _, ranNow := rec.snapshot()
	assert.Equal(t, []string{id}, activated)
	assert.Equal(t, []string{id}, ranNow)
}

func TestRescanSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "broken.automation.md", "---\nname: [oops\n---\n")
	good := writeDefinition(t, dir, "good.automation.md", definitionContent("Good", "", false))

	s, reg, _ := newTestSync(t)
	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	assert.Len(t, reg.All(), 1)

	_, err := reg.Get(DeriveID(good))
	assert.NoError(t, err)
}

func TestUpdatePreservesRuntimeState(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest", "old", false))

	s, reg, _ := newTestSync(t)
	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	id := DeriveID(path)
	reg.RecordRun(id, models.ExecutionResult{Success: true, Timestamp: time.Now().UTC()})

	writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest v2", "new", false))
	s.Rescan(context.Background())

	automation, err := reg.Get(id)
	require.NoError(t, err)

	assert.Equal(t, "Daily digest v2", automation.Name)
	assert.Equal(t, "new", automation.Description)
	// An edited file keeps the automation's identity and run history.
	assert.Equal(t, int64(1), automation.ExecutionCount)
	assert.NotNil(t, automation.LastRun)
}

func TestUpdateKeepsUserEnabledToggle(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest", "", false))

	s, reg, _ := newTestSync(t)
	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	id := DeriveID(path)
	_, err := reg.SetEnabled(id, false)
	require.NoError(t, err)

	// The file still declares enabled (implicitly true); the user's toggle
	// takes precedence on re-scan.
	writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest v2", "", false))
	s.Rescan(context.Background())

	automation, err := reg.Get(id)
	require.NoError(t, err)
	assert.False(t, automation.Enabled)
}

func TestReconcileSkipsForeignIDCollision(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "digest.automation.md", definitionContent("From file", "", false))

	s, reg, _ := newTestSync(t)

	original := &models.Automation{
		ID:      DeriveID(path),
		Name:    "Manually created",
		Enabled: true,
		Origin:  models.OriginManual,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{{Type: models.TriggerStartup}},
			Actions:  []models.Action{{Type: models.ActionRunShell, Command: "true"}},
		},
	}
	require.NoError(t, reg.Register(original))

	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	automation, err := reg.Get(original.ID)
	require.NoError(t, err)
	assert.Equal(t, "Manually created", automation.Name)
	assert.Equal(t, models.OriginManual, automation.Origin)
}

func TestSweepRemovesAutomationsWithMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "digest.automation.md", definitionContent("Daily digest", "", false))

	s, reg, rec := newTestSync(t)
	require.NoError(t, s.SetDirectories(context.Background(), []string{dir}))

	id := DeriveID(path)
	_, err := reg.Get(id)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	s.Rescan(context.Background())

	_, err = reg.Get(id)
	assert.True(t, registry.IsNotFound(err))

	_, deactivated, _ := rec.snapshot()
	assert.Contains(t, deactivated, id)
}

func TestRemoveIgnoresForeignOrigins(t *testing.T) {
	s, reg, rec := newTestSync(t)

	original := &models.Automation{
		ID:      DeriveID("somewhere/x.automation.md"),
		Name:    "Manually created",
		Enabled: true,
		Origin:  models.OriginManual,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{{Type: models.TriggerStartup}},
			Actions:  []models.Action{{Type: models.ActionRunShell, Command: "true"}},
		},
	}
	require.NoError(t, reg.Register(original))

	s.Remove("somewhere/x.automation.md")

	_, err := reg.Get(original.ID)
	assert.NoError(t, err)

	_, deactivated, _ := rec.snapshot()
	assert.Empty(t, deactivated)
}
