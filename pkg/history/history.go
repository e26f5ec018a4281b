// Package history keeps a bounded in-memory ring of execution summaries and
// an unbounded append-only audit log.
package history

import (
	"sync"

	"github.com/vaultpilot/automations/pkg/models"
)

// DefaultCapacity is the default ring size; beyond it the oldest entry is
// evicted first.
const DefaultCapacity = 100

// Ring is a bounded FIFO of history entries. Safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []models.HistoryEntry
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Ring{capacity: capacity}
}

// Push appends an entry, evicting the oldest when the ring is full.
func (r *Ring) Push(entry models.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
}

// All returns up to limit entries, newest first. limit <= 0 returns all.
func (r *Ring) All(limit int) []models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return collect(r.entries, limit, func(models.HistoryEntry) bool { return true })
}

// ForAutomation returns up to limit entries for one automation, newest first.
func (r *Ring) ForAutomation(automationID string, limit int) []models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return collect(r.entries, limit, func(e models.HistoryEntry) bool {
		return e.AutomationID == automationID
	})
}

// Clear discards all entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
}

// Len returns the current number of entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Snapshot returns the entries oldest first, for persistence.
func (r *Ring) Snapshot() []models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.HistoryEntry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Restore replaces the ring contents from persisted entries, keeping only
// the newest capacity entries.
func (r *Ring) Restore(entries []models.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(entries) > r.capacity {
		entries = entries[len(entries)-r.capacity:]
	}

	r.entries = make([]models.HistoryEntry, len(entries))
	copy(r.entries, entries)
}

func collect(entries []models.HistoryEntry, limit int, match func(models.HistoryEntry) bool) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0)

	for i := len(entries) - 1; i >= 0; i-- {
		if !match(entries[i]) {
			continue
		}

		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}
