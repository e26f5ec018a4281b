package router

import (
	"strings"
	"sync"
)

// TagCache remembers the last observed tag set per path so tag-diff events
// can be turned into "newly added" sets. A single router owns it; the mutex
// keeps it safe if event handling is ever parallelized.
type TagCache struct {
	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func NewTagCache() *TagCache {
	return &TagCache{tags: make(map[string]map[string]struct{})}
}

// Diff returns the tags present in current but absent from the cached set
// for the path, then overwrites the cache entry unconditionally, even when
// downstream handling of the additions fails.
func (c *TagCache) Diff(path string, current []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.tags[path]
	next := make(map[string]struct{}, len(current))

	var added []string

	for _, tag := range current {
		tag = normalizeTag(tag)
		next[tag] = struct{}{}

		if _, seen := previous[tag]; !seen {
			added = append(added, tag)
		}
	}

	c.tags[path] = next

	return added
}

// Forget drops the cache entry for a deleted path.
func (c *TagCache) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tags, path)
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(tag, "#")
}
