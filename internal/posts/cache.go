// Package posts caches blog post summaries in display order (newest first)
// and serves the paginated views.
package posts

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/model"
)

// DefaultPageSize applies when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Cache holds post summaries ordered by CreatedAt descending plus an id map.
type Cache struct {
	mu      sync.RWMutex
	ordered []model.PostInfo
	byID    map[uuid.UUID]int // position in ordered
}

// NewCache creates an empty post cache.
func NewCache() *Cache {
	return &Cache{byID: make(map[uuid.UUID]int)}
}

// Replace swaps in a full snapshot. Input order does not matter; tags are
// normalized here so every entry point yields the same shape.
func (c *Cache) Replace(rows []model.PostInfo) {
	ordered := make([]model.PostInfo, len(rows))
	copy(ordered, rows)
	for i := range ordered {
		ordered[i].Tags = NormalizeTags(ordered[i].Tags)
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].CreatedAt.After(ordered[b].CreatedAt)
	})

	c.mu.Lock()
	c.ordered = ordered
	c.byID = reindex(ordered)
	c.mu.Unlock()
}

func reindex(ordered []model.PostInfo) map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(ordered))
	for i, p := range ordered {
		m[p.PostID] = i
	}
	return m
}

// Insert adds one post, keeping display order. An existing id is replaced.
func (c *Cache) Insert(p model.PostInfo) {
	p.Tags = NormalizeTags(p.Tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.byID[p.PostID]; ok {
		c.ordered = append(c.ordered[:i], c.ordered[i+1:]...)
	}
	at := sort.Search(len(c.ordered), func(i int) bool {
		return !c.ordered[i].CreatedAt.After(p.CreatedAt)
	})
	c.ordered = append(c.ordered, model.PostInfo{})
	copy(c.ordered[at+1:], c.ordered[at:])
	c.ordered[at] = p
	c.byID = reindex(c.ordered)
}

// Update overwrites the post in place. CreatedAt edits re-sort; returns false
// when the id is not cached.
func (c *Cache) Update(p model.PostInfo) bool {
	p.Tags = NormalizeTags(p.Tags)

	c.mu.Lock()
	i, ok := c.byID[p.PostID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if c.ordered[i].CreatedAt.Equal(p.CreatedAt) {
		c.ordered[i] = p
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	c.Insert(p)
	return true
}

// Delete removes the post; returns false when the id is not cached.
func (c *Cache) Delete(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[id]
	if !ok {
		return false
	}
	c.ordered = append(c.ordered[:i], c.ordered[i+1:]...)
	c.byID = reindex(c.ordered)
	return true
}

// Get returns the cached post by id.
func (c *Cache) Get(id uuid.UUID) (model.PostInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.byID[id]; ok {
		return c.ordered[i], true
	}
	return model.PostInfo{}, false
}

// Len returns the number of cached posts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// Page returns the 1-based page of the display view plus the total page
// count. A page past the end returns an empty slice, never an error; the end
// index is clamped so a short final page slices cleanly.
func (c *Cache) Page(page, size int) ([]model.PostInfo, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	total := (len(c.ordered) + size - 1) / size
	start := (page - 1) * size
	if start >= len(c.ordered) {
		return []model.PostInfo{}, total
	}
	end := start + size
	if end > len(c.ordered) {
		end = len(c.ordered)
	}
	out := make([]model.PostInfo, end-start)
	copy(out, c.ordered[start:end])
	return out, total
}

// SearchDoc is the projection handed to the search index.
type SearchDoc struct {
	ID    uuid.UUID
	Title string
	Tags  []string
}

// ForSearch returns the searchable projection of one post.
func (c *Cache) ForSearch(id uuid.UUID) (SearchDoc, bool) {
	p, ok := c.Get(id)
	if !ok {
		return SearchDoc{}, false
	}
	return SearchDoc{ID: p.PostID, Title: p.Title, Tags: p.Tags}, true
}

// AllForSearch returns the searchable projection of every cached post.
func (c *Cache) AllForSearch() []SearchDoc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SearchDoc, 0, len(c.ordered))
	for _, p := range c.ordered {
		out = append(out, SearchDoc{ID: p.PostID, Title: p.Title, Tags: p.Tags})
	}
	return out
}

// NormalizeTags lowercases, trims, and deduplicates tags, preserving first
// occurrence order. Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
