package server

import (
	"context"
	"log"
	"time"

	"github.com/cyhdev/site/internal/logfiles"
)

const (
	jobTimeout = 5 * time.Minute

	// Users get a day to click the verification link.
	unverifiedGrace = 24 * time.Hour
)

// StartJobs starts the periodic maintenance loops. Offsets stagger the daily
// syncs into the quiet early-morning window.
func (s *State) StartJobs() {
	s.sched.EveryHour("reap sessions", 30, 0, func() {
		pruned, remaining := s.sessions.PurgeExpired()
		if pruned > 0 {
			log.Printf("[server] reaped %d expired sessions, %d live", pruned, remaining)
		}
	})

	s.sched.EveryHour("purge unverified users", 30, 0, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := s.pool.PurgeUnverifiedUsers(ctx, time.Now().Add(-unverifiedGrace))
		if err != nil {
			log.Printf("[server] purge unverified users: %v", err)
			return
		}
		if _, err := s.pool.PurgeExpiredPasswordResets(ctx, time.Now()); err != nil {
			log.Printf("[server] purge password resets: %v", err)
		}
		if n > 0 {
			log.Printf("[server] purged %d unverified users", n)
		}
	})

	s.sched.EveryDay("sync reference data", 2, 10, 0, s.syncJob("reference data", s.SyncCountryData))
	s.sched.EveryDay("sync i18n", 2, 20, 0, s.syncJob("i18n", s.SyncI18n))
	s.sched.EveryDay("sync posts", 2, 30, 0, s.syncJob("posts", s.SyncPosts))

	s.sched.EverySecond("sample stats", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		st, err := s.sampler.Sample(ctx)
		if err != nil {
			log.Printf("[server] stats sample: %v", err)
			return
		}
		s.stats.Push(st)
	})

	s.sched.EveryDay("compress old logs", 0, 5, 0, func() {
		if s.logw == nil {
			return
		}
		n, err := logfiles.CompressOld(s.logw.Dir(), time.Now())
		if err != nil {
			log.Printf("[server] compress logs: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[server] compressed %d old log files", n)
		}
	})

	s.sched.EveryHour("refresh fastfetch", 15, 0, func() {
		if err := s.fastfetch.Refresh(context.Background()); err != nil {
			log.Printf("[server] %v", err)
		}
	})
}

func (s *State) syncJob(name string, sync func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := sync(ctx); err != nil {
			log.Printf("[server] scheduled %s sync: %v", name, err)
		}
	}
}
