// Package server wires the backend core together: database pool, in-memory
// caches, search index, geo database, scheduler, and outbound clients. The
// database is the authority for persisted state; caches converge to it via
// write-through updates and the scheduled full syncs.
package server

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cyhdev/site/internal/config"
	"github.com/cyhdev/site/internal/db"
	"github.com/cyhdev/site/internal/geoip"
	"github.com/cyhdev/site/internal/i18n"
	"github.com/cyhdev/site/internal/logfiles"
	"github.com/cyhdev/site/internal/mail"
	"github.com/cyhdev/site/internal/model"
	"github.com/cyhdev/site/internal/netutil"
	"github.com/cyhdev/site/internal/posts"
	"github.com/cyhdev/site/internal/refdata"
	"github.com/cyhdev/site/internal/schedule"
	"github.com/cyhdev/site/internal/search"
	"github.com/cyhdev/site/internal/session"
	"github.com/cyhdev/site/internal/sysinfo"
	"github.com/cyhdev/site/internal/visitor"
	"github.com/cyhdev/site/internal/wasm"
)

// State is the assembled backend core handed to the HTTP layer.
type State struct {
	cfg *config.EnvConfig

	pool     *db.Pool
	sessions *session.Store
	geo      *geoip.DB
	refdata  *refdata.Cache
	i18n     *i18n.Cache
	posts    *posts.Cache
	search   *search.Index
	wasm     *wasm.Cache
	visitors *visitor.Board

	stats     *sysinfo.StatsHistory
	sampler   *sysinfo.Sampler
	fastfetch *sysinfo.FastfetchCache

	sched *schedule.Scheduler
	mail  *mail.Client
	fetch netutil.Fetcher
	logw  *logfiles.Writer

	// resyncNeeded flags that a cache update failed after its DB write
	// succeeded; the next scheduled sync clears the divergence.
	resyncNeeded atomic.Bool
}

// --- session operations ---

// NewSession creates a login session for the user.
func (s *State) NewSession(user session.User, emailVerified bool, ttl time.Duration) (uuid.UUID, error) {
	return s.sessions.New(user, emailVerified, ttl)
}

// GetSession returns the live session for id.
func (s *State) GetSession(id uuid.UUID) (model.Session, bool) {
	return s.sessions.Get(id)
}

// RemoveSession ends the session (logout).
func (s *State) RemoveSession(id uuid.UUID) (model.Session, int, bool) {
	return s.sessions.Remove(id)
}

// --- read accessors ---

// Locate resolves an IP to its geo location.
func (s *State) Locate(ip netip.Addr) (geoip.Location, bool) { return s.geo.Lookup(ip) }

// RefData exposes the reference-data cache.
func (s *State) RefData() *refdata.Cache { return s.refdata }

// I18n exposes the localized-string cache.
func (s *State) I18n() *i18n.Cache { return s.i18n }

// Posts exposes the post cache.
func (s *State) Posts() *posts.Cache { return s.posts }

// Search exposes the search index.
func (s *State) Search() *search.Index { return s.search }

// Wasm exposes the WASM bundle cache.
func (s *State) Wasm() *wasm.Cache { return s.wasm }

// Visitors exposes the visitor board.
func (s *State) Visitors() *visitor.Board { return s.visitors }

// Stats exposes the rolling system-stats history.
func (s *State) Stats() *sysinfo.StatsHistory { return s.stats }

// Fastfetch exposes the cached fastfetch banner.
func (s *State) Fastfetch() *sysinfo.FastfetchCache { return s.fastfetch }

// Mail returns the transactional mail client; nil when SMTP is unconfigured.
func (s *State) Mail() *mail.Client { return s.mail }

// Fetch returns the outbound request client.
func (s *State) Fetch() netutil.Fetcher { return s.fetch }

// DeployEnv returns the running deployment environment.
func (s *State) DeployEnv() config.DeployEnv { return s.cfg.CurrentEnv }

// DB exposes the pool for the handler layers that need direct queries.
func (s *State) DB() *db.Pool { return s.pool }

// ResyncNeeded reports whether a cache diverged from the DB since the last
// full sync.
func (s *State) ResyncNeeded() bool { return s.resyncNeeded.Load() }

// --- full syncs (read-through refresh) ---

// SyncPosts reloads the post cache from the DB and reconciles the search
// index against it.
func (s *State) SyncPosts(ctx context.Context) error {
	rows, err := s.pool.LoadPosts(ctx)
	if err != nil {
		return fmt.Errorf("server: sync posts: %w", err)
	}
	s.posts.Replace(rows)

	added, removed, err := s.search.SyncWithPosts(s.posts.AllForSearch())
	if err != nil {
		return fmt.Errorf("server: sync search index: %w", err)
	}
	if added > 0 || removed > 0 {
		log.Printf("[server] search index reconciled: +%d -%d", added, removed)
	}
	s.resyncNeeded.Store(false)
	return nil
}

// SyncI18n reloads the localized-string cache.
func (s *State) SyncI18n(ctx context.Context) error {
	rows, err := s.pool.LoadI18nStrings(ctx)
	if err != nil {
		return fmt.Errorf("server: sync i18n: %w", err)
	}
	s.i18n.Replace(rows)
	return nil
}

// SyncCountryData reloads the ISO reference tables. The four loads run in
// parallel; any failure aborts the swap.
func (s *State) SyncCountryData(ctx context.Context) error {
	var (
		countries    []model.Country
		subdivisions []model.Subdivision
		languages    []model.Language
		currencies   []model.Currency
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { countries, err = s.pool.LoadCountries(gctx); return })
	g.Go(func() (err error) { subdivisions, err = s.pool.LoadSubdivisions(gctx); return })
	g.Go(func() (err error) { languages, err = s.pool.LoadLanguages(gctx); return })
	g.Go(func() (err error) { currencies, err = s.pool.LoadCurrencies(gctx); return })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: sync country data: %w", err)
	}
	if err := s.refdata.Replace(countries, subdivisions, languages, currencies); err != nil {
		return fmt.Errorf("server: sync country data: %w", err)
	}
	return nil
}

// SyncVisitors rebuilds the visitor board from persisted visits.
func (s *State) SyncVisitors(ctx context.Context) error {
	rows, err := s.pool.LoadVisitations(ctx)
	if err != nil {
		return fmt.Errorf("server: sync visitors: %w", err)
	}
	s.visitors.Replace(rows)
	return nil
}

// SyncWasm reloads the WASM bundle cache from storage.
func (s *State) SyncWasm(ctx context.Context) error {
	rows, err := s.pool.LoadWasmModules(ctx)
	if err != nil {
		return fmt.Errorf("server: sync wasm: %w", err)
	}
	s.wasm.Replace(rows)
	return nil
}

// SyncAll runs every full sync; used at startup.
func (s *State) SyncAll(ctx context.Context) error {
	for _, sync := range []func(context.Context) error{
		s.SyncCountryData, s.SyncI18n, s.SyncPosts, s.SyncVisitors, s.SyncWasm,
	} {
		if err := sync(ctx); err != nil {
			return err
		}
	}
	return nil
}
