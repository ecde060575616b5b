// Package pgstore provides a PostgreSQL-backed contact store.
//
// Unlike the SQLite store, which serializes every unit of work on the
// database write lock, pgstore lets unrelated reconciliations run in
// parallel. InTx takes a transaction-scoped advisory lock for each lock key
// (normalized email or phone) before fn runs, so two reconciliations that
// share a value are serialized and the second one sees the first one's
// rows. LockIdentities adds a lock per identity the unit of work resolved,
// so a merge and a write into one of the merged identities never
// interleave even when their observations share nothing. The locks are
// released at commit or rollback.
//
// Identity locks are taken after the observation locks and in more than one
// batch, so two units of work can deadlock. Postgres aborts one of them and
// InTx runs it again.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/roach88/contactgraph/internal/contact"
)

//go:embed schema.sql
var schemaSQL string

// maxAttempts bounds how often InTx runs a unit of work that Postgres
// aborted as a deadlock victim or serialization failure.
const maxAttempts = 3

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Store provides durable storage for contacts on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger attaches a logger for transaction diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to dsn and applies the schema. The schema is idempotent.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// No arguments: pgx sends this over the simple protocol, which accepts
	// multiple statements.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		pool:   pool,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn inside one read-committed transaction holding an advisory
// lock per key. Keys are locked in sorted order so two transactions with
// overlapping keys cannot deadlock on them.
//
// A transaction aborted with a deadlock or serialization failure is rolled
// back and fn runs again from scratch, up to maxAttempts times.
func (s *Store) InTx(ctx context.Context, lockKeys []string, fn func(contact.Store) error) error {
	keys := append([]string(nil), lockKeys...)
	sort.Strings(keys)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runTx(ctx, keys, fn)
		if !retryable(err) {
			return err
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Strs("lock_keys", keys).Msg("transaction aborted")
	}
	return err
}

func (s *Store) runTx(ctx context.Context, keys []string, fn func(contact.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	for _, key := range keys {
		if err := advisoryLock(ctx, tx, key); err != nil {
			return err
		}
	}
	s.logger.Debug().Strs("lock_keys", keys).Msg("transaction started")

	if err := fn(&contacts{q: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func advisoryLock(ctx context.Context, q querier, key string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}

// retryable reports whether err aborted the transaction in a way that
// running it again can fix.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateDeadlockDetected || pgErr.Code == sqlStateSerializationFailure
}

// Truncate removes every contact and resets the id sequence.
// Used by integration tests.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE contacts RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate contacts: %w", err)
	}
	return nil
}
