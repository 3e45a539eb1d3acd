package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long a writer waits for another process holding the
// database lock before giving up with SQLITE_BUSY.
const busyTimeoutMS = 5000

// SQLiteKV stores documents in the collections table of a SQLite database.
type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(dbPath string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection per process; other processes are fenced by BEGIN IMMEDIATE.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return getCollection(ctx, s.db, key)
}

func (s *SQLiteKV) PutAll(ctx context.Context, entries map[string][]byte) error {
	return s.Atomic(ctx, func(txn Txn) error {
		return txn.PutAll(ctx, entries)
	})
}

// Atomic runs fn between BEGIN IMMEDIATE and COMMIT on a dedicated
// connection. The reserved lock is taken before fn reads anything, so a
// concurrent writer in another process waits instead of reading a ledger
// that is about to change.
func (s *SQLiteKV) Atomic(ctx context.Context, fn func(Txn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback must run even when ctx is already cancelled.
	rollback := func() { conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK") }

	if err := fn(&sqliteTxn{q: conn}); err != nil {
		rollback()
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTxn struct {
	q querier
}

func (t *sqliteTxn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return getCollection(ctx, t.q, key)
}

func (t *sqliteTxn) PutAll(ctx context.Context, entries map[string][]byte) error {
	for key, data := range entries {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO collections (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			key, string(data))
		if err != nil {
			return fmt.Errorf("put collection %s: %w", key, err)
		}
	}
	slog.DebugContext(ctx, "Collections saved to SQLite", "count", len(entries))
	return nil
}

func getCollection(ctx context.Context, q querier, key string) ([]byte, bool, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM collections WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get collection %s: %w", key, err)
	}
	return []byte(data), true, nil
}
