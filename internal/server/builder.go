package server

import (
	"fmt"
	"log"
	"time"

	"github.com/cyhdev/site/internal/config"
	"github.com/cyhdev/site/internal/db"
	"github.com/cyhdev/site/internal/geoip"
	"github.com/cyhdev/site/internal/i18n"
	"github.com/cyhdev/site/internal/logfiles"
	"github.com/cyhdev/site/internal/mail"
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

const (
	defaultFetchTimeout = 30 * time.Second
	mailFrom            = "noreply@cyhdev.com"
	logBaseDir          = "./log"
)

// Builder assembles a State from configuration. Optional pieces (log writer,
// geo database) can be swapped before Build; tests inject their own.
type Builder struct {
	cfg *config.EnvConfig

	geo  *geoip.DB
	logw *logfiles.Writer
}

// NewBuilder starts a build from validated configuration.
func NewBuilder(cfg *config.EnvConfig) *Builder {
	return &Builder{cfg: cfg}
}

// WithGeoDB overrides the embedded geo database.
func (b *Builder) WithGeoDB(g *geoip.DB) *Builder {
	b.geo = g
	return b
}

// WithLogWriter routes process logs through an already-open writer.
func (b *Builder) WithLogWriter(w *logfiles.Writer) *Builder {
	b.logw = w
	return b
}

// Build opens every subsystem and returns the assembled State. On failure,
// everything opened so far is closed.
func (b *Builder) Build() (*State, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("server: nil config")
	}

	spec, err := connSpec(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(spec)
	if err != nil {
		return nil, err
	}

	idx, err := search.Open(cfg.SearchIndexPath)
	if err != nil {
		pool.Close()
		return nil, err
	}

	geo := b.geo
	if geo == nil {
		geo, err = geoip.LoadEmbedded()
		if err != nil {
			idx.Close()
			pool.Close()
			return nil, fmt.Errorf("server: load geo database: %w", err)
		}
	}

	var mailClient *mail.Client
	if cfg.SESSMTPURL != "" {
		mailClient, err = mail.NewClient(cfg.SESSMTPURL, cfg.SESUsername, cfg.SESAccessKey, mailFrom)
		if err != nil {
			idx.Close()
			pool.Close()
			return nil, err
		}
	} else {
		log.Printf("[server] SMTP unconfigured, transactional mail disabled")
	}

	userAgent := cfg.AppNameVersion
	fetch := &netutil.RetryClient{
		Inner: netutil.NewClient(
			func() time.Duration { return defaultFetchTimeout },
			func() string { return userAgent },
		),
		Attempts: 3,
		Backoff:  time.Second,
	}

	s := &State{
		cfg:       cfg,
		pool:      pool,
		sessions:  session.NewStore(),
		geo:       geo,
		refdata:   refdata.NewCache(),
		i18n:      i18n.NewCache(),
		posts:     posts.NewCache(),
		search:    idx,
		wasm:      wasm.NewCache(),
		visitors:  visitor.NewBoard(),
		stats:     sysinfo.NewStatsHistory(0),
		sampler:   sysinfo.NewSampler(),
		fastfetch: sysinfo.NewFastfetchCache(),
		sched:     schedule.New(),
		mail:      mailClient,
		fetch:     fetch,
		logw:      b.logw,
	}
	return s, nil
}

// OpenLogWriter opens the date-rolling log file for the app and points the
// standard logger at it.
func OpenLogWriter(cfg *config.EnvConfig) (*logfiles.Writer, error) {
	w, err := logfiles.NewWriter(logBaseDir, cfg.AppNameVersion)
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)
	return w, nil
}

func connSpec(cfg *config.EnvConfig) (db.ConnSpec, error) {
	if cfg.DBURL != "" {
		return db.ParseURL(cfg.DBURL)
	}
	return db.FromParts(cfg.DBHost, cfg.DBPort, cfg.DBUsername, cfg.DBPassword, cfg.DBName)
}

// Close stops the job loops and releases every subsystem.
func (s *State) Close() error {
	s.sched.Stop()
	s.i18n.Close()

	var firstErr error
	if err := s.search.Close(); err != nil {
		firstErr = err
	}
	if err := s.pool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.logw != nil {
		if err := s.logw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
