/*
store.go - Persistence interfaces for the two ledger relations

PURPOSE:
  Defines the boundary between the engine and the database: an append-only
  grants log and a per-user totals table. Different implementations can use
  SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  EventStore has exactly one write operation, AppendEvent. There is no
  Update or Delete; a user's grant history is permanent.

ATOMIC COMPOSITION:
  TotalsStore.AddToTotal must not be called standalone from concurrent
  contexts: a naive read-modify-write loses updates under racing grants to
  the same user. The engine always composes it with AppendEvent inside a
  single TxStore.WithTx unit, and implementations must make the increment
  itself atomic (SQL "total = total + ?", or under the store lock).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - ledger/store/memory.go: in-memory for testing

SEE ALSO:
  - engine.go: the only writer through these interfaces
*/
package ledger

import (
	"context"
	"time"
)

// EventStore is the durable append-only log of grant events.
type EventStore interface {
	// AppendEvent persists an event and returns its assigned ID.
	// The append is atomic: a concurrent EventsSince never observes a
	// half-written event.
	AppendEvent(ctx context.Context, ev GrantEvent) (int64, error)

	// EventsSince returns all events with GrantedAt >= since, ordered by
	// timestamp ascending. Each call re-scans from the bound; no cursor
	// state is retained between calls.
	EventsSince(ctx context.Context, since time.Time) ([]GrantEvent, error)
}

// TotalsStore is the materialized per-user running totals view.
type TotalsStore interface {
	// Total returns a user's all-time total, 0 if the user has no row.
	Total(ctx context.Context, userID int64) (int64, error)

	// AddToTotal atomically adds delta to a user's total, creating the row
	// if absent, and returns the new total. The display name snapshot is
	// refreshed on every call.
	AddToTotal(ctx context.Context, userID int64, displayName string, delta int64) (int64, error)

	// AllTotalsDescending returns every totals row ordered by total
	// descending, ties broken by ascending user ID for determinism.
	AllTotalsDescending(ctx context.Context) ([]UserTotal, error)
}

// Store combines both relations.
type Store interface {
	EventStore
	TotalsStore
}

// TxStore wraps Store with transaction support. The engine uses WithTx to
// commit the event append and the total increment together or not at all.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error, the
	// transaction is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
