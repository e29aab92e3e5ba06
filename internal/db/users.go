package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PurgeUnverifiedUsers deletes users that never verified their email within
// the grace window, together with their dangling verification tokens.
// Both deletes run in one transaction so a failure strands neither side.
// Returns the number of users removed.
func (p *Pool) PurgeUnverifiedUsers(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := p.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(tx.Rebind(`
			DELETE FROM email_verification_tokens
			WHERE user_id IN (
				SELECT user_id FROM users
				WHERE is_email_verified = FALSE AND created_at < ?
			)`), cutoff); err != nil {
			return fmt.Errorf("db: purge verification tokens: %w", err)
		}
		res, err := tx.Exec(tx.Rebind(`
			DELETE FROM users
			WHERE is_email_verified = FALSE AND created_at < ?`), cutoff)
		if err != nil {
			return fmt.Errorf("db: purge unverified users: %w", err)
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// PurgeExpiredPasswordResets removes stale password-reset tokens.
func (p *Pool) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.execCtx(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("db: purge password resets: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
