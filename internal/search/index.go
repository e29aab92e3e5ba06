// Package search maintains the persistent full-text index over post titles
// and tags. The index is derivative state: the post cache is the authority
// and SyncWithPosts reconciles any divergence.
package search

import (
	"fmt"
	"log"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/posts"
)

type indexDoc struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Index wraps the on-disk bleve index. Mutations are batch-committed before
// returning; bleve serializes writers internally.
type Index struct {
	idx  bleve.Index
	path string
}

func buildMapping() *mapping.IndexMappingImpl {
	title := bleve.NewTextFieldMapping()
	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", title)
	doc.AddFieldMappingsAt("tags", tags)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens the index at path, creating it when absent. An unreadable index
// is treated as corrupt: the directory is removed and recreated empty, and
// the next sync repopulates it from the post cache.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("search: create index at %s: %w", path, err)
		}
		return &Index{idx: idx, path: path}, nil
	}
	if err != nil {
		log.Printf("[search] index at %s unreadable (%v), rebuilding empty", path, err)
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("search: remove corrupt index: %w", err)
		}
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("search: recreate index at %s: %w", path, err)
		}
	}
	return &Index{idx: idx, path: path}, nil
}

// Close releases the index files.
func (s *Index) Close() error {
	if err := s.idx.Close(); err != nil {
		return fmt.Errorf("search: close index: %w", err)
	}
	return nil
}

// DocCount returns the number of indexed posts.
func (s *Index) DocCount() (uint64, error) {
	n, err := s.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("search: doc count: %w", err)
	}
	return n, nil
}

// IndexPost adds or replaces one post document.
func (s *Index) IndexPost(doc posts.SearchDoc) error {
	b := s.idx.NewBatch()
	if err := b.Index(doc.ID.String(), indexDoc{Title: doc.Title, Tags: doc.Tags}); err != nil {
		return fmt.Errorf("search: index post %s: %w", doc.ID, err)
	}
	if err := s.idx.Batch(b); err != nil {
		return fmt.Errorf("search: commit index of %s: %w", doc.ID, err)
	}
	return nil
}

// UpdatePost reindexes one post: delete then index in a single batch.
func (s *Index) UpdatePost(doc posts.SearchDoc) error {
	b := s.idx.NewBatch()
	b.Delete(doc.ID.String())
	if err := b.Index(doc.ID.String(), indexDoc{Title: doc.Title, Tags: doc.Tags}); err != nil {
		return fmt.Errorf("search: reindex post %s: %w", doc.ID, err)
	}
	if err := s.idx.Batch(b); err != nil {
		return fmt.Errorf("search: commit reindex of %s: %w", doc.ID, err)
	}
	return nil
}

// DeletePost removes one post document. Deleting an absent id is a no-op.
func (s *Index) DeletePost(id uuid.UUID) error {
	b := s.idx.NewBatch()
	b.Delete(id.String())
	if err := s.idx.Batch(b); err != nil {
		return fmt.Errorf("search: delete post %s: %w", id, err)
	}
	return nil
}

// SyncWithPosts reconciles the index against the authoritative post set:
// posts absent from the index are added, indexed ids with no backing post are
// removed. Both applied in one batch; a no-op when nothing diverged.
// Returns (added, removed).
func (s *Index) SyncWithPosts(docs []posts.SearchDoc) (int, int, error) {
	indexed, err := s.indexedIDs()
	if err != nil {
		return 0, 0, err
	}

	want := make(map[string]posts.SearchDoc, len(docs))
	for _, d := range docs {
		want[d.ID.String()] = d
	}

	b := s.idx.NewBatch()
	added, removed := 0, 0
	for id, d := range want {
		if _, ok := indexed[id]; ok {
			continue
		}
		if err := b.Index(id, indexDoc{Title: d.Title, Tags: d.Tags}); err != nil {
			return 0, 0, fmt.Errorf("search: sync index %s: %w", id, err)
		}
		added++
	}
	for id := range indexed {
		if _, ok := want[id]; ok {
			continue
		}
		b.Delete(id)
		removed++
	}
	if added == 0 && removed == 0 {
		return 0, 0, nil
	}
	if err := s.idx.Batch(b); err != nil {
		return 0, 0, fmt.Errorf("search: commit sync batch: %w", err)
	}
	return added, removed, nil
}

// indexedIDs enumerates every document id via a match-all query sized to the
// current doc count.
func (s *Index) indexedIDs() (map[string]struct{}, error) {
	n, err := s.DocCount()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, n)
	if n == 0 {
		return ids, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(n), 0, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: enumerate indexed ids: %w", err)
	}
	for _, hit := range res.Hits {
		ids[hit.ID] = struct{}{}
	}
	return ids, nil
}
