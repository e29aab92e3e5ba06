package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/model"
	"github.com/cyhdev/site/internal/wasm"
)

// Writer operations persist first, then update the derived state. A cache or
// index failure after a successful DB write is logged and flags a full
// resync; it never fails the operation, since the DB already holds the truth.

// CreatePost persists a post and folds it into the cache and search index.
func (s *State) CreatePost(ctx context.Context, post model.PostInfo) error {
	if err := s.pool.InsertPost(ctx, post); err != nil {
		return err
	}
	s.posts.Insert(post)
	if doc, ok := s.posts.ForSearch(post.PostID); ok {
		if err := s.search.IndexPost(doc); err != nil {
			s.flagResync("index post "+post.PostID.String(), err)
		}
	}
	return nil
}

// UpdatePost persists an edit and updates the derived state.
func (s *State) UpdatePost(ctx context.Context, post model.PostInfo) error {
	if err := s.pool.UpdatePost(ctx, post); err != nil {
		return err
	}
	if !s.posts.Update(post) {
		// Not cached yet (cache behind the DB); treat as insert.
		s.posts.Insert(post)
	}
	if doc, ok := s.posts.ForSearch(post.PostID); ok {
		if err := s.search.UpdatePost(doc); err != nil {
			s.flagResync("reindex post "+post.PostID.String(), err)
		}
	}
	return nil
}

// DeletePost removes a post everywhere.
func (s *State) DeletePost(ctx context.Context, id uuid.UUID) error {
	if err := s.pool.DeletePost(ctx, id); err != nil {
		return err
	}
	s.posts.Delete(id)
	if err := s.search.DeletePost(id); err != nil {
		s.flagResync("unindex post "+id.String(), err)
	}
	return nil
}

// UpsertI18nString persists one localized string and refreshes the cache.
func (s *State) UpsertI18nString(ctx context.Context, row model.I18nString) error {
	if err := s.pool.UpsertI18nString(ctx, row); err != nil {
		return err
	}
	// Row-level cache surgery is not worth the index bookkeeping; reload.
	if err := s.SyncI18n(ctx); err != nil {
		s.flagResync(fmt.Sprintf("reload i18n after upsert %d", row.ID), err)
	}
	return nil
}

// UpsertWasmModule normalizes an upload, persists it, and caches the bundle.
func (s *State) UpsertWasmModule(ctx context.Context, id uuid.UUID, name string, raw []byte, hint wasm.Kind) (wasm.Bundle, error) {
	gz, contentType, err := wasm.Normalize(raw, hint)
	if err != nil {
		return wasm.Bundle{}, err
	}
	row := model.WasmModuleRow{
		ModuleID:    id,
		Name:        name,
		GzBytes:     gz,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.pool.UpsertWasmModule(ctx, row); err != nil {
		return wasm.Bundle{}, err
	}
	return s.wasm.Upsert(id, gz, contentType), nil
}

// DeleteWasmModule removes a bundle from storage and cache.
func (s *State) DeleteWasmModule(ctx context.Context, id uuid.UUID) error {
	if err := s.pool.DeleteWasmModule(ctx, id); err != nil {
		return err
	}
	s.wasm.Invalidate(id)
	return nil
}

// RecordVisit persists a geo-located visit and counts it on the board.
func (s *State) RecordVisit(ctx context.Context, lat, lon float64) error {
	if err := s.pool.InsertVisitation(ctx, lat, lon, time.Now().UTC()); err != nil {
		return err
	}
	s.visitors.Record(lat, lon)
	return nil
}

// PurgeUnverifiedUsers deletes users that never verified within the grace
// window, plus their dangling tokens.
func (s *State) PurgeUnverifiedUsers(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.pool.PurgeUnverifiedUsers(ctx, cutoff)
}

func (s *State) flagResync(op string, err error) {
	s.resyncNeeded.Store(true)
	log.Printf("[server] %s failed after DB write, full resync pending: %v", op, err)
}
