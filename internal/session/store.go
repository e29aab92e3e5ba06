// Package session owns in-memory login sessions: creation, lookup, removal,
// and expiry reaping. Sessions never touch the database; handlers hold only
// copies of the value-typed records.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/cyhdev/site/internal/model"
)

// DefaultTTL applies when a caller does not request a lifetime.
const DefaultTTL = time.Hour

// User carries the identity fields copied into a new session.
type User struct {
	ID       uuid.UUID
	Name     string
	Country  int32
	Language int32
}

// Store is a concurrent map of live sessions keyed by session id.
type Store struct {
	sessions *xsync.Map[uuid.UUID, model.Session]

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: xsync.NewMap[uuid.UUID, model.Session](),
		now:      time.Now,
	}
}

// New creates a session for the user and returns its id. ttl <= 0 selects
// DefaultTTL. A generated id colliding with a live session is an error; the
// existing session is never clobbered.
func (s *Store) New(user User, emailVerified bool, ttl time.Duration) (uuid.UUID, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("session: generate id: %w", err)
	}
	now := s.now()
	sess := model.Session{
		SessionID:       id,
		UserID:          user.ID,
		UserName:        user.Name,
		UserCountry:     user.Country,
		UserLanguage:    user.Language,
		IsEmailVerified: emailVerified,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	if _, loaded := s.sessions.LoadOrStore(id, sess); loaded {
		return uuid.Nil, fmt.Errorf("session: id collision on %s", id)
	}
	return id, nil
}

// Get returns a copy of the session, or false if absent or already expired.
// An expired-but-unreaped session is removed on sight.
func (s *Store) Get(id uuid.UUID) (model.Session, bool) {
	sess, ok := s.sessions.Load(id)
	if !ok {
		return model.Session{}, false
	}
	if sess.Expired(s.now()) {
		s.expireOne(id)
		return model.Session{}, false
	}
	return sess, true
}

// Remove deletes the session (logout). Returns the removed session, the
// remaining live count, and whether anything was removed.
func (s *Store) Remove(id uuid.UUID) (model.Session, int, bool) {
	var removed model.Session
	ok := false
	s.sessions.Compute(id, func(old model.Session, loaded bool) (model.Session, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		removed = old
		ok = true
		return old, xsync.DeleteOp
	})
	return removed, s.sessions.Size(), ok
}

// PurgeExpired removes every session whose deadline has passed.
// Returns (pruned, remaining).
func (s *Store) PurgeExpired() (int, int) {
	now := s.now()
	pruned := 0
	s.sessions.Range(func(id uuid.UUID, sess model.Session) bool {
		if !sess.Expired(now) {
			return true
		}
		// Double-check inside Compute: the session may have been replaced
		// between Range observation and deletion.
		s.sessions.Compute(id, func(cur model.Session, loaded bool) (model.Session, xsync.ComputeOp) {
			if !loaded || !cur.Expired(now) {
				return cur, xsync.CancelOp
			}
			pruned++
			return cur, xsync.DeleteOp
		})
		return true
	})
	return pruned, s.sessions.Size()
}

// Touch extends a live session's deadline by ttl from now (DefaultTTL when
// ttl <= 0). Returns false if the session is absent or already expired.
func (s *Store) Touch(id uuid.UUID, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now()
	ok := false
	s.sessions.Compute(id, func(cur model.Session, loaded bool) (model.Session, xsync.ComputeOp) {
		if !loaded || cur.Expired(now) {
			return cur, xsync.CancelOp
		}
		cur.ExpiresAt = now.Add(ttl)
		ok = true
		return cur, xsync.UpdateOp
	})
	return ok
}

// Count returns the number of stored sessions, expired ones included.
func (s *Store) Count() int { return s.sessions.Size() }

// Range iterates a point-in-time view of the sessions.
func (s *Store) Range(fn func(model.Session) bool) {
	s.sessions.Range(func(_ uuid.UUID, sess model.Session) bool {
		return fn(sess)
	})
}

func (s *Store) expireOne(id uuid.UUID) {
	now := s.now()
	s.sessions.Compute(id, func(cur model.Session, loaded bool) (model.Session, xsync.ComputeOp) {
		if !loaded || !cur.Expired(now) {
			return cur, xsync.CancelOp
		}
		return cur, xsync.DeleteOp
	})
}
