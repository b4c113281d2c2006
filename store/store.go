// Package store is the embedded job repository: a single-writer SQLite
// database (modernc.org/sqlite, pure Go) holding jobs, prediction samples,
// and learned residuals, with schema migrations applied at startup.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the job repository. Writes funnel through a single connection
// (write) so SQLite's single-writer model is respected; reads use a
// separate pool (read) that can run concurrently.
type Store struct {
	write *sqlx.DB
	read  *sqlx.DB
}

// Open connects to the SQLite file at path, applies pending migrations,
// and returns a ready Store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	write, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open write handle: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open read handle: %w", err)
	}
	read.SetMaxOpenConns(4)

	if err := write.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(write.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{write: write, read: read}, nil
}

// Close releases both connection handles.
func (s *Store) Close() error {
	werr := s.write.Close()
	rerr := s.read.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Ping verifies the repository is reachable, used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

// withWriteRetry retries a failed write up to five times with exponential
// backoff, which covers SQLITE_BUSY surfacing transiently under WAL
// checkpoint pressure even with a single writer connection and
// busy_timeout set. It does not tell error kinds apart: every error is
// retried unless fn wraps it in backoff.Permanent.
func withWriteRetry(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, 5), ctx)
	return backoff.Retry(fn, policy)
}
