package db

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"
)

// AcquireTimeout bounds how long a query waits for a pooled connection.
const AcquireTimeout = 2 * time.Second

// Pool wraps the connection pool. Queries are written with '?' placeholders
// and rebound to the driver's bindvar style at call time.
type Pool struct {
	sdb     *sqlx.DB
	timeout time.Duration
}

// Open connects according to spec and configures pool limits:
// max open = 10x cores, idle = cores. SQLite is held to one connection since
// writes serialize anyway and an in-memory DB is per-connection.
func Open(spec ConnSpec) (*Pool, error) {
	var driverName, dsn string
	switch spec.Driver {
	case DriverPostgres:
		driverName, dsn = "pgx", spec.URL()
	case DriverSQLite:
		driverName, dsn = "sqlite", spec.Host
	default:
		return nil, fmt.Errorf("db: driver %q parses but is not bundled", spec.Driver)
	}

	sdb, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", spec.Driver, err)
	}

	cores := runtime.NumCPU()
	if spec.Driver == DriverSQLite {
		sdb.SetMaxOpenConns(1)
		sdb.SetMaxIdleConns(1)
	} else {
		sdb.SetMaxOpenConns(10 * cores)
		sdb.SetMaxIdleConns(cores)
		sdb.SetConnMaxIdleTime(5 * time.Minute)
	}

	p := &Pool{sdb: sdb, timeout: AcquireTimeout}

	ctx, cancel := p.opCtx(context.Background())
	defer cancel()
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("db: ping %s: %w", spec.Driver, err)
	}
	return p, nil
}

// Close releases the pool.
func (p *Pool) Close() error { return p.sdb.Close() }

// Stats exposes pool counters for diagnostics.
func (p *Pool) Stats() sql.DBStats { return p.sdb.Stats() }

// opCtx attaches the acquire/query timeout unless the caller already set a
// deadline.
func (p *Pool) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Pool) selectCtx(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	return p.sdb.SelectContext(ctx, dest, p.sdb.Rebind(query), args...)
}

func (p *Pool) getCtx(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	return p.sdb.GetContext(ctx, dest, p.sdb.Rebind(query), args...)
}

func (p *Pool) execCtx(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	return p.sdb.ExecContext(ctx, p.sdb.Rebind(query), args...)
}

// withTx runs fn inside a transaction, rolling back on error.
func (p *Pool) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()
	tx, err := p.sdb.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

// Rebind converts '?' placeholders to the active driver's style; exported for
// the rare caller composing ad-hoc SQL.
func (p *Pool) Rebind(query string) string { return p.sdb.Rebind(query) }

// Exec runs a statement under the pool's operation timeout.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.execCtx(ctx, query, args...)
}
