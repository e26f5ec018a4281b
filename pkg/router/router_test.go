package router

import (
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

type runRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *runRecorder) run(id string, trigger models.Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, id+"/"+string(trigger.Type))
}

func (r *runRecorder) wait(t *testing.T, n int) []string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.runs) >= n {
			out := append([]string(nil), r.runs...)
			r.mu.Unlock()
			sort.Strings(out)

			return out
		}
		r.mu.Unlock()

		time.Sleep(5 * time.Millisecond)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t.Fatalf("expected %d runs, got %d: %v", n, len(r.runs), r.runs)

	return nil
}

func (r *runRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.runs)
}

func automationWithTrigger(id string, trigger models.Trigger) *models.Automation {
	return &models.Automation{
		ID:      id,
		Name:    "Automation " + id,
		Enabled: true,
		Config: models.AutomationConfig{
			Triggers: []models.Trigger{trigger},
			Actions:  []models.Action{{Type: models.ActionRunShell, Command: "true"}},
		},
	}
}

func TestRouteFileEventMatchesGlob(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	rec := &runRecorder{}
	r := NewRouter(reg, rec.run, slog.Default())

	require.NoError(t, reg.Register(automationWithTrigger("match",
		models.Trigger{Type: models.TriggerFileCreated, Pattern: "notes/**/*.md"})))
	require.NoError(t, reg.Register(automationWithTrigger("other-pattern",
		models.Trigger{Type: models.TriggerFileCreated, Pattern: "projects/*.md"})))
	require.NoError(t, reg.Register(automationWithTrigger("other-type",
		models.Trigger{Type: models.TriggerFileDeleted, Pattern: "notes/**/*.md"})))

	r.routeFileEvent(models.TriggerFileCreated, "notes/a/b.md")

	runs := rec.wait(t, 1)
	assert.Equal(t, []string{"match/file-created"}, runs)
}

func TestRouteFileEventSkipsDisabled(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	rec := &runRecorder{}
	r := NewRouter(reg, rec.run, slog.Default())

	automation := automationWithTrigger("a1",
		models.Trigger{Type: models.TriggerFileModified, Pattern: "**"})
	automation.Enabled = false
	require.NoError(t, reg.Register(automation))

	r.routeFileEvent(models.TriggerFileModified, "notes/x.md")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestRouteTagEventFiresOnlyOnNewTags(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	rec := &runRecorder{}
	r := NewRouter(reg, rec.run, slog.Default())

	require.NoError(t, reg.Register(automationWithTrigger("a1",
		models.Trigger{Type: models.TriggerTagAdded, Tag: "urgent"})))

	r.routeTagEvent("notes/x.md", []string{"urgent", "todo"})
	rec.wait(t, 1)

	// Same tag set again: no new additions, no new run.
	r.routeTagEvent("notes/x.md", []string{"urgent", "todo"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	// Tag removed then re-added counts as newly added.
	r.routeTagEvent("notes/x.md", []string{"todo"})
	r.routeTagEvent("notes/x.md", []string{"todo", "urgent"})
	rec.wait(t, 2)
}

func TestFireLifecycleRunsAllHolders(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	rec := &runRecorder{}
	r := NewRouter(reg, rec.run, slog.Default())

	require.NoError(t, reg.Register(automationWithTrigger("a1",
		models.Trigger{Type: models.TriggerStartup})))
	require.NoError(t, reg.Register(automationWithTrigger("a2",
		models.Trigger{Type: models.TriggerStartup})))
	require.NoError(t, reg.Register(automationWithTrigger("a3",
		models.Trigger{Type: models.TriggerVaultOpened})))

	r.FireLifecycle(models.TriggerStartup)

	runs := rec.wait(t, 2)
	assert.Equal(t, []string{"a1/startup", "a2/startup"}, runs)
}

func TestTagCacheDiff(t *testing.T) {
	cache := NewTagCache()

	added := cache.Diff("notes/x.md", []string{"#a", "#b"})
	assert.ElementsMatch(t, []string{"a", "b"}, added)

	added = cache.Diff("notes/x.md", []string{"#a", "#b", "#c"})
	assert.Equal(t, []string{"c"}, added)

	// Cache is overwritten unconditionally, so a removed tag reappearing is
	// added again.
	cache.Diff("notes/x.md", []string{"#a"})
	added = cache.Diff("notes/x.md", []string{"#a", "#b"})
	assert.Equal(t, []string{"b"}, added)

	cache.Forget("notes/x.md")
	added = cache.Diff("notes/x.md", []string{"#a"})
	assert.Equal(t, []string{"a"}, added)
}
