package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
)

// Result is one page of matching post ids plus the total hit count.
type Result struct {
	IDs   []uuid.UUID
	Total uint64
}

// SearchTitle queries post titles. A single-token query matches as a prefix
// so partial words hit while typing; multi-token queries use full match
// semantics over the analyzed title.
func (s *Index) SearchTitle(q string, offset, limit int) (Result, error) {
	return s.run(titleQuery(q), offset, limit)
}

// SearchTag returns posts carrying the exact tag.
func (s *Index) SearchTag(tag string, offset, limit int) (Result, error) {
	return s.run(tagQuery(tag), offset, limit)
}

// SearchTags returns posts carrying every one of the tags.
func (s *Index) SearchTags(tags []string, offset, limit int) (Result, error) {
	qs := make([]query.Query, 0, len(tags))
	for _, tag := range tags {
		qs = append(qs, tagQuery(tag))
	}
	return s.run(bleve.NewConjunctionQuery(qs...), offset, limit)
}

// SearchTitleAndTags returns posts whose title matches q and which carry
// every one of the tags.
func (s *Index) SearchTitleAndTags(q string, tags []string, offset, limit int) (Result, error) {
	qs := make([]query.Query, 0, len(tags)+1)
	qs = append(qs, titleQuery(q))
	for _, tag := range tags {
		qs = append(qs, tagQuery(tag))
	}
	return s.run(bleve.NewConjunctionQuery(qs...), offset, limit)
}

func titleQuery(q string) query.Query {
	tokens := strings.Fields(q)
	if len(tokens) == 1 {
		pq := bleve.NewPrefixQuery(strings.ToLower(tokens[0]))
		pq.SetField("title")
		return pq
	}
	mq := bleve.NewMatchQuery(q)
	mq.SetField("title")
	return mq
}

func tagQuery(tag string) query.Query {
	tq := bleve.NewTermQuery(strings.ToLower(strings.TrimSpace(tag)))
	tq.SetField("tags")
	return tq
}

func (s *Index) run(q query.Query, offset, limit int) (Result, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return Result{}, fmt.Errorf("search: query: %w", err)
	}
	out := Result{Total: res.Total, IDs: make([]uuid.UUID, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			// Foreign doc ids should not exist; skip rather than fail the page.
			continue
		}
		out.IDs = append(out.IDs, id)
	}
	return out, nil
}
