package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/posts"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "idx"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(title string, tags ...string) posts.SearchDoc {
	return posts.SearchDoc{ID: uuid.New(), Title: title, Tags: tags}
}

func seed(t *testing.T, s *Index) (goDoc, rustDoc, photoDoc posts.SearchDoc) {
	t.Helper()
	goDoc = doc("Generics in Go explained", "go", "programming")
	rustDoc = doc("Borrow checker field notes", "rust", "programming")
	photoDoc = doc("Golden hour photography", "photography")
	for _, d := range []posts.SearchDoc{goDoc, rustDoc, photoDoc} {
		if err := s.IndexPost(d); err != nil {
			t.Fatalf("IndexPost: %v", err)
		}
	}
	return
}

func containsID(ids []uuid.UUID, want uuid.UUID) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestSearchTitle(t *testing.T) {
	s := openTestIndex(t)
	goDoc, _, photoDoc := seed(t, s)

	// Single token matches as a prefix.
	res, err := s.SearchTitle("gener", 0, 10)
	if err != nil {
		t.Fatalf("SearchTitle: %v", err)
	}
	if res.Total != 1 || !containsID(res.IDs, goDoc.ID) {
		t.Fatalf("prefix search: %+v", res)
	}

	// Multi-token uses match semantics.
	res, err = s.SearchTitle("golden hour", 0, 10)
	if err != nil {
		t.Fatalf("SearchTitle: %v", err)
	}
	if !containsID(res.IDs, photoDoc.ID) {
		t.Fatalf("match search missed: %+v", res)
	}

	res, _ = s.SearchTitle("nonexistentword", 0, 10)
	if res.Total != 0 {
		t.Fatalf("expected no hits, got %+v", res)
	}
}

func TestSearchTags(t *testing.T) {
	s := openTestIndex(t)
	goDoc, rustDoc, _ := seed(t, s)

	res, err := s.SearchTag("programming", 0, 10)
	if err != nil {
		t.Fatalf("SearchTag: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("tag hits = %d, want 2", res.Total)
	}

	// Conjunction: every tag must match.
	res, err = s.SearchTags([]string{"programming", "go"}, 0, 10)
	if err != nil {
		t.Fatalf("SearchTags: %v", err)
	}
	if res.Total != 1 || !containsID(res.IDs, goDoc.ID) {
		t.Fatalf("conjunction: %+v", res)
	}

	res, err = s.SearchTitleAndTags("borrow", []string{"rust"}, 0, 10)
	if err != nil {
		t.Fatalf("SearchTitleAndTags: %v", err)
	}
	if res.Total != 1 || !containsID(res.IDs, rustDoc.ID) {
		t.Fatalf("title+tags: %+v", res)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := openTestIndex(t)
	d := doc("Original title", "go")
	if err := s.IndexPost(d); err != nil {
		t.Fatalf("IndexPost: %v", err)
	}

	d.Title = "Renamed entirely"
	if err := s.UpdatePost(d); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if res, _ := s.SearchTitle("original", 0, 10); res.Total != 0 {
		t.Fatal("stale title still matches")
	}
	if res, _ := s.SearchTitle("renamed", 0, 10); res.Total != 1 {
		t.Fatal("new title does not match")
	}

	if err := s.DeletePost(d.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if n, _ := s.DocCount(); n != 0 {
		t.Fatalf("doc count = %d after delete, want 0", n)
	}
	// Absent id deletes are no-ops.
	if err := s.DeletePost(uuid.New()); err != nil {
		t.Fatalf("DeletePost of absent id: %v", err)
	}
}

func TestSyncWithPosts(t *testing.T) {
	s := openTestIndex(t)
	goDoc, rustDoc, photoDoc := seed(t, s)

	// Index drifted: one extra doc indexed, one post missing.
	stray := doc("Ghost entry", "stale")
	if err := s.IndexPost(stray); err != nil {
		t.Fatalf("IndexPost: %v", err)
	}
	newPost := doc("Fresh post", "new")

	added, removed, err := s.SyncWithPosts([]posts.SearchDoc{goDoc, rustDoc, photoDoc, newPost})
	if err != nil {
		t.Fatalf("SyncWithPosts: %v", err)
	}
	if added != 1 || removed != 1 {
		t.Fatalf("added=%d removed=%d, want 1/1", added, removed)
	}
	if n, _ := s.DocCount(); n != 4 {
		t.Fatalf("doc count = %d, want 4", n)
	}
	if res, _ := s.SearchTitle("ghost", 0, 10); res.Total != 0 {
		t.Fatal("stray doc survived sync")
	}
	if res, _ := s.SearchTitle("fresh", 0, 10); res.Total != 1 {
		t.Fatal("missing post not indexed by sync")
	}

	// Converged state: sync is a no-op.
	added, removed, err = s.SyncWithPosts([]posts.SearchDoc{goDoc, rustDoc, photoDoc, newPost})
	if err != nil || added != 0 || removed != 0 {
		t.Fatalf("second sync: added=%d removed=%d err=%v", added, removed, err)
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d := doc("Survives restart", "go")
	if err := s.IndexPost(d); err != nil {
		t.Fatalf("IndexPost: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if res, _ := s2.SearchTitle("survives", 0, 10); res.Total != 1 {
		t.Fatal("document lost across reopen")
	}
}

func TestOpenRebuildsCorruptIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// A directory that is not a bleve index at all.
	if err := os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open should rebuild, got %v", err)
	}
	defer s.Close()
	if n, _ := s.DocCount(); n != 0 {
		t.Fatalf("rebuilt index not empty: %d docs", n)
	}
}

func TestPagination(t *testing.T) {
	s := openTestIndex(t)
	for i := 0; i < 7; i++ {
		if err := s.IndexPost(doc("pagination sample", "page")); err != nil {
			t.Fatalf("IndexPost: %v", err)
		}
	}

	res, err := s.SearchTag("page", 0, 3)
	if err != nil {
		t.Fatalf("SearchTag: %v", err)
	}
	if res.Total != 7 || len(res.IDs) != 3 {
		t.Fatalf("page 1: total=%d len=%d", res.Total, len(res.IDs))
	}
	res, _ = s.SearchTag("page", 6, 3)
	if res.Total != 7 || len(res.IDs) != 1 {
		t.Fatalf("last page: total=%d len=%d", res.Total, len(res.IDs))
	}
}
