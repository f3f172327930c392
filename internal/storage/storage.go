// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrOrderNotFound = errors.New("order not found")

// Config selects the backing database. Driver is "sqlite" (default) or "postgres".
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Storage owns the process-wide connection pool. It is shared by every
// request and closed once at shutdown.
type Storage struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name       string
	positional bool
	// nativeTime is set when the driver stores and scans time.Time itself.
	nativeTime bool
	schema     string
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(cfg Config) (*Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.Path)
	case "postgres", "pgx":
		return NewPostgresStorage(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Driver() string {
	return s.dialect.name
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Tx is one transaction scope. It is only valid inside the WithTx callback.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
}

// WithTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; an error, a panic or a cancelled context rolls it back.
func (s *Storage) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
