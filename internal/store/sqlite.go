package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	counter    INTEGER NOT NULL DEFAULT 0,
	value      BLOB,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS kv_expires_at ON kv(expires_at) WHERE expires_at != 0;
`

// busyRetries bounds retries when another process holds the write lock past busy_timeout.
const busyRetries = 3

// SQLite is a Store shared by every process that opens the same database file.
// Counter increments are single UPSERT statements, so concurrent workers never
// lose updates.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and creates if needed) the store at path.
// WAL journaling and a busy timeout are applied to every pooled connection,
// and transactions take the write lock up front.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// SetClock overrides the time source (tests).
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

// IncrBy resets an expired counter to delta instead of adding to it.
func (s *SQLite) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	now := s.now()
	var v int64
	err := s.retryBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
INSERT INTO kv (key, counter, expires_at) VALUES (?1, ?2, ?3)
ON CONFLICT(key) DO UPDATE SET
	counter    = CASE WHEN kv.expires_at != 0 AND kv.expires_at <= ?4 THEN excluded.counter ELSE kv.counter + excluded.counter END,
	value      = CASE WHEN kv.expires_at != 0 AND kv.expires_at <= ?4 THEN NULL ELSE kv.value END,
	expires_at = CASE WHEN kv.expires_at != 0 AND kv.expires_at <= ?4 THEN excluded.expires_at ELSE kv.expires_at END
RETURNING counter`,
			key, delta, expiry(now, ttl), now.UnixNano()).Scan(&v)
	})
	if err != nil {
		return 0, fmt.Errorf("store: incr %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) Counter(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT counter FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.now().UnixNano()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: counter %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) TTL(ctx context.Context, key string) (time.Duration, error) {
	now := s.now().UnixNano()
	var exp int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, now).Scan(&exp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: ttl %s: %w", key, err)
	}
	if exp == 0 {
		return 0, nil
	}
	return time.Duration(exp - now), nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND value IS NOT NULL AND (expires_at = 0 OR expires_at > ?)`,
		key, s.now().UnixNano()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.retryBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, counter, value, expires_at) VALUES (?, 0, ?, ?)
ON CONFLICT(key) DO UPDATE SET counter = 0, value = excluded.value, expires_at = excluded.expires_at`,
			key, value, expiry(s.now(), ttl))
		return err
	})
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside an immediate transaction so the read-modify-write is atomic across processes.
func (s *SQLite) Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	err := s.retryBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := s.now()
		var (
			old []byte
			exp int64
		)
		err = tx.QueryRowContext(ctx,
			`SELECT value, expires_at FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
			key, now.UnixNano()).Scan(&old, &exp)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			old, exp = nil, expiry(now, ttl)
		case err != nil:
			return err
		}

		next, err := fn(old)
		if err != nil {
			return &callbackError{err}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO kv (key, counter, value, expires_at) VALUES (?, 0, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
			key, next, exp); err != nil {
			return err
		}
		return tx.Commit()
	})
	var cbErr *callbackError
	if errors.As(err, &cbErr) {
		return cbErr.err
	}
	if err != nil {
		return fmt.Errorf("store: update %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	err := s.retryBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Purge removes expired rows and returns how many were deleted.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at != 0 AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// callbackError marks errors returned by an Update callback so they are not retried or wrapped.
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }

func (s *SQLite) retryBusy(ctx context.Context, fn func() error) error {
	var err error
	for i := range busyRetries {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return err
}

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

var _ Store = (*SQLite)(nil)
