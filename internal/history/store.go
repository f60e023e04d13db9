// Package history persists turn-by-turn dialogue keyed by a
// (user, organization, session) scope and retrieves it under a caller
// supplied token budget. One Store exposes every operation in both a
// blocking and a non-blocking (context-suspending) form; the two modes
// run on separately configured engines over the same tables and share a
// single query layer.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite" // SQLite driver registration

	"github.com/hanbit-ai/chatmemory-go/internal/logger"
	"github.com/hanbit-ai/chatmemory-go/internal/tokens"
)

// Options configure a Store. Either DSN may be empty; operations of the
// corresponding mode then fail with ErrUninitialized.
type Options struct {
	// DSN backs the blocking operations. Configuring it materializes the
	// chat_history schema if absent.
	DSN string

	// AsyncDSN backs the non-blocking operations. Both DSNs may point at
	// the same database; the modes then observe the same rows.
	AsyncDSN string

	// Counter prices record content for the token-limited retrievals.
	Counter tokens.Counter
}

// Store owns the backing database handles and the pooled connections
// behind them. Callers pass Message and Scope values in; nothing handed
// out is shared mutable state.
type Store struct {
	syncDB  *sql.DB
	asyncDB *sql.DB
	counter tokens.Counter
	log     *slog.Logger
}

// New opens the configured engines. A store with neither engine is legal;
// it rejects every operation with ErrUninitialized.
func New(opts Options) (*Store, error) {
	s := &Store{counter: opts.Counter, log: logger.With("history")}

	if opts.DSN != "" {
		db, err := open(opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := createSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.syncDB = db
		s.log.Info("blocking engine configured")
	}

	if opts.AsyncDSN != "" {
		db, err := open(opts.AsyncDSN)
		if err != nil {
			if s.syncDB != nil {
				_ = s.syncDB.Close()
			}
			return nil, err
		}
		s.asyncDB = db
		s.log.Info("non-blocking engine configured")
	}

	return s, nil
}

// Close releases both engines.
func (s *Store) Close() error {
	var errs []error
	if s.syncDB != nil {
		if err := s.syncDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.asyncDB != nil {
		if err := s.asyncDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dsn, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set busy_timeout: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("history: create schema: %w", err)
		}
	}
	return nil
}

// Append persists one message as a single transaction.
func (s *Store) Append(msg Message, scope Scope) error {
	return appendAll(context.Background(), s.syncDB, []Message{msg}, scope)
}

// AppendBatch persists a non-empty ordered batch atomically: either every
// row is durably written or none is.
func (s *Store) AppendBatch(msgs []Message, scope Scope) error {
	return appendAll(context.Background(), s.syncDB, msgs, scope)
}

// History returns every turn in the scope, oldest first. Timestamp ties
// are broken by insertion id so the order is total even with coarse
// timestamp resolution. An unknown scope yields an empty slice, not an
// error.
func (s *Store) History(scope Scope) ([]Turn, error) {
	return selectTurns(context.Background(), s.syncDB, scope)
}

// HistoryWithTokenLimit returns the oldest-first prefix of the scoped
// history whose summed token cost stays within maxTokens. See truncate for
// the exact policy.
func (s *Store) HistoryWithTokenLimit(scope Scope, maxTokens int) ([]Turn, error) {
	turns, err := selectTurns(context.Background(), s.syncDB, scope)
	if err != nil {
		return nil, err
	}
	return s.truncate(turns, maxTokens)
}

// ClearHistory deletes every row in the scope. Clearing an empty scope is
// a no-op.
func (s *Store) ClearHistory(scope Scope) error {
	return clearAll(context.Background(), s.syncDB, scope)
}
