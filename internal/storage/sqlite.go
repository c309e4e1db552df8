package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "eventbot/pkg/logx"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const driverName = "sqlite"

// SQLite is the Store implementation. It is safe for concurrent use; all
// statements go through a single connection.
type SQLite struct {
	db     *sqlx.DB
	log    logx.Logger
	now    func() time.Time
	closed atomic.Bool
}

type Option func(*SQLite)

// WithNow sets the time source used for bookkeeping columns (created_at).
// Time-window predicates always take an explicit instant from the caller.
func WithNow(now func() time.Time) Option {
	return func(s *SQLite) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (and creates if needed) the database and applies the schema.
func Open(ctx context.Context, cfg Config, log logx.Logger, opts ...Option) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; one connection also keeps a
	// ":memory:" database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	st := New(db, log, opts...)
	if err := st.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("storage opened", logx.String("path", path))
	return st, nil
}

// New wraps an existing handle without touching the schema.
func New(db *sqlx.DB, log logx.Logger, opts ...Option) *SQLite {
	if log.IsZero() {
		log = logx.Nop()
	}
	st := &SQLite{db: db, log: log, now: time.Now}
	for _, o := range opts {
		if o != nil {
			o(st)
		}
	}
	return st
}

// Migrate applies the embedded schema. It is idempotent.
func (s *SQLite) Migrate(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLite) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) conn() (*sqlx.DB, error) {
	if s == nil || s.db == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *SQLite) stamp() string { return FormatTimestamp(s.now()) }

// exec runs a single guarded statement and reports affected rows.
func (s *SQLite) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n, nil
}

// inTx runs fn inside one transaction. fn must not call out of process.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func clampLimit(limit, def, maxN int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxN {
		return maxN
	}
	return limit
}
