/*
Package sqlite provides a SQLite-backed implementation of the ledger stores.

PURPOSE:
  Implements ledger.TxStore over the two durable relations: the append-only
  grants log and the per-user totals table. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement touches the grants table. The only mutation
  anywhere is the totals upsert, and that is a single atomic
  "total = total + ?" - never a read-modify-write from Go.

TABLES:
  grants: immutable log of grant events, keyed by an auto-incrementing id
  totals: materialized running total per user

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

ERROR MAPPING:
  Driver and connection failures are wrapped in ledger.ErrStorageUnavailable
  so callers can classify without knowing the storage engine.

USAGE:
  store, err := sqlite.New("./data/stars.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gleam/stars-engine/ledger"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases from fragmenting
	// across the pool and serializes writers ahead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Grants (append-only event log)
	CREATE TABLE IF NOT EXISTS grants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		display_name TEXT NOT NULL,
		amount INTEGER NOT NULL,
		granted_at TEXT NOT NULL
	);

	-- Windowed leaderboard scans (hot path)
	CREATE INDEX IF NOT EXISTS idx_grants_granted_at
		ON grants(granted_at);
	CREATE INDEX IF NOT EXISTS idx_grants_user
		ON grants(user_id);

	-- Totals (materialized view over grants)
	CREATE TABLE IF NOT EXISTS totals (
		user_id INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EVENT STORE (ledger.EventStore interface)
// =============================================================================

// AppendEvent adds an event to the grants log.
func (s *Store) AppendEvent(ctx context.Context, ev ledger.GrantEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendEvent(ctx, s.db, ev)
}

func appendEvent(ctx context.Context, db execer, ev ledger.GrantEvent) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO grants (user_id, display_name, amount, granted_at) VALUES (?, ?, ?, ?)`,
		ev.UserID, ev.DisplayName, ev.Amount,
		ev.GrantedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, storageErr("append grant", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("append grant id", err)
	}
	return id, nil
}

// EventsSince returns all events at or after the given instant, ascending
// by timestamp with append order breaking same-second ties.
func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]ledger.GrantEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return eventsSince(ctx, s.db, since)
}

func eventsSince(ctx context.Context, db execer, since time.Time) ([]ledger.GrantEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, display_name, amount, granted_at
		 FROM grants
		 WHERE granted_at >= ?
		 ORDER BY granted_at ASC, id ASC`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, storageErr("query grants", err)
	}
	defer rows.Close()

	var events []ledger.GrantEvent
	for rows.Next() {
		var ev ledger.GrantEvent
		var grantedAt string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.DisplayName, &ev.Amount, &grantedAt); err != nil {
			return nil, storageErr("scan grant", err)
		}
		ev.GrantedAt, _ = time.Parse(time.RFC3339, grantedAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// TOTALS STORE (ledger.TotalsStore interface)
// =============================================================================

// Total returns a user's running total, 0 if the user has no row.
func (s *Store) Total(ctx context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return total(ctx, s.db, userID)
}

func total(ctx context.Context, db execer, userID int64) (int64, error) {
	var t int64
	err := db.QueryRowContext(ctx,
		"SELECT total FROM totals WHERE user_id = ?", userID,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("query total", err)
	}
	return t, nil
}

// AddToTotal atomically increments a user's total, creating the row if
// absent, and returns the new total. The increment happens inside SQLite
// ("total = total + ?"), so concurrent callers cannot lose updates.
func (s *Store) AddToTotal(ctx context.Context, userID int64, displayName string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return addToTotal(ctx, s.db, userID, displayName, delta)
}

func addToTotal(ctx context.Context, db execer, userID int64, displayName string, delta int64) (int64, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO totals (user_id, display_name, total)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			total = totals.total + excluded.total,
			display_name = excluded.display_name`,
		userID, displayName, delta,
	)
	if err != nil {
		return 0, storageErr("upsert total", err)
	}

	return total(ctx, db, userID)
}

// AllTotalsDescending returns every totals row ordered by total descending,
// ties broken by ascending user id for determinism.
func (s *Store) AllTotalsDescending(ctx context.Context) ([]ledger.UserTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return allTotalsDescending(ctx, s.db)
}

func allTotalsDescending(ctx context.Context, db execer) ([]ledger.UserTotal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT user_id, display_name, total
		 FROM totals
		 ORDER BY total DESC, user_id ASC`,
	)
	if err != nil {
		return nil, storageErr("query totals", err)
	}
	defer rows.Close()

	var result []ledger.UserTotal
	for rows.Next() {
		var row ledger.UserTotal
		if err := rows.Scan(&row.UserID, &row.DisplayName, &row.Total); err != nil {
			return nil, storageErr("scan total", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The engine uses this to
// commit a grant's event append and total increment as one unit.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendEvent(ctx context.Context, ev ledger.GrantEvent) (int64, error) {
	return appendEvent(ctx, ts.tx, ev)
}

func (ts *txStore) EventsSince(ctx context.Context, since time.Time) ([]ledger.GrantEvent, error) {
	return eventsSince(ctx, ts.tx, since)
}

func (ts *txStore) Total(ctx context.Context, userID int64) (int64, error) {
	return total(ctx, ts.tx, userID)
}

func (ts *txStore) AddToTotal(ctx context.Context, userID int64, displayName string, delta int64) (int64, error) {
	return addToTotal(ctx, ts.tx, userID, displayName, delta)
}

func (ts *txStore) AllTotalsDescending(ctx context.Context) ([]ledger.UserTotal, error) {
	return allTotalsDescending(ctx, ts.tx)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ledger.ErrStorageUnavailable, op, err)
}
