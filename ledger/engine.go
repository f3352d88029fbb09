/*
engine.go - The Stars Ledger Engine

PURPOSE:
  Exposes the four public operations over the two stores:

    Grant        - append event + increment total, atomically
    CurrentTotal - all-time total for one user
    Rank         - 1-based position in the all-time standings
    WindowedTop  - leaderboard over a trailing time window

CONCURRENCY DISCIPLINE:
  Concurrent Grant calls for the SAME user must be linearizable with
  respect to that user's total and event sequence - no lost updates. The
  engine serializes them on a per-user mutex; grants to different users
  proceed fully in parallel. The underlying store additionally performs
  the increment as a single atomic statement, so neither layer alone is
  load-bearing for correctness.

  Reads run concurrently with writes. They observe a consistent snapshot
  (an event is never visible without its totals update - both commit in
  one transaction) but are not guaranteed to see in-flight grants.

FAILURE SEMANTICS:
  Grant failures are surfaced verbatim; the engine never retries. A
  partial commit is impossible: WithTx rolls back both writes on error
  and the caller gets ErrLedgerCommitFailed.

SEE ALSO:
  - store.go: the interfaces the engine drives
  - replay.go: rebuilding totals from the event log
*/
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Engine owns the transaction and concurrency discipline over a TxStore.
// Construct one per process and pass it to adapters explicitly; there are
// no package-level singletons.
type Engine struct {
	store TxStore

	// userLocks serializes writers per user. Entries are never removed;
	// the map is bounded by chat membership.
	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex

	// Now is injectable for tests; defaults to UTC wall clock.
	Now func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store TxStore) *Engine {
	return &Engine{
		store:     store,
		userLocks: make(map[int64]*sync.Mutex),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// Grant awards amount stars to a user: one event appended, the running
// total incremented, both in a single transaction. Returns the event ID
// and the new total.
//
// Fails with ErrInvalidAmount for amount <= 0 (nothing written) and
// ErrLedgerCommitFailed when the atomic unit cannot commit.
func (e *Engine) Grant(ctx context.Context, userID int64, displayName string, amount int64) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, &InvalidAmountError{Amount: amount}
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	var receipt Receipt
	err := e.store.WithTx(ctx, func(s Store) error {
		eventID, err := s.AppendEvent(ctx, GrantEvent{
			UserID:      userID,
			DisplayName: displayName,
			Amount:      amount,
			GrantedAt:   e.Now(),
		})
		if err != nil {
			return err
		}

		newTotal, err := s.AddToTotal(ctx, userID, displayName, amount)
		if err != nil {
			return err
		}

		receipt = Receipt{EventID: eventID, NewTotal: newTotal}
		return nil
	})
	if err != nil {
		return Receipt{}, &CommitError{Cause: err}
	}
	return receipt, nil
}

// CurrentTotal returns a user's all-time star total, 0 if they have none.
func (e *Engine) CurrentTotal(ctx context.Context, userID int64) (int64, error) {
	return e.store.Total(ctx, userID)
}

// Rank returns a user's 1-based position in the all-time standings.
//
// This is a scan-based rank: it fetches the full descending totals list
// and locates the user, O(U log U) per call. Acceptable because U is
// bounded by chat membership. A reimplementation targeting large U should
// maintain an order statistic structure incrementally instead.
func (e *Engine) Rank(ctx context.Context, userID int64) (Rank, error) {
	totals, err := e.store.AllTotalsDescending(ctx)
	if err != nil {
		return Rank{}, err
	}

	for i, row := range totals {
		if row.UserID == userID {
			return Rank{Position: i + 1, TotalUsers: len(totals)}, nil
		}
	}
	return Rank{}, ErrNotRanked
}

// WindowedTop returns up to limit leaderboard entries for events with
// GrantedAt >= windowStart, sorted by windowed total descending. Ties
// break by earliest event timestamp within the window. An empty window
// yields an empty slice, not an error.
func (e *Engine) WindowedTop(ctx context.Context, windowStart time.Time, limit int) ([]WindowEntry, error) {
	events, err := e.store.EventsSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		displayName string
		total       int64
		firstAt     time.Time
	}

	// Fold by user. Events arrive in ascending timestamp order, so the
	// first event seen per user is the tie-break key.
	buckets := make(map[int64]*bucket)
	var order []int64
	for _, ev := range events {
		b, ok := buckets[ev.UserID]
		if !ok {
			b = &bucket{firstAt: ev.GrantedAt}
			buckets[ev.UserID] = b
			order = append(order, ev.UserID)
		}
		b.total += ev.Amount
		b.displayName = ev.DisplayName
	}

	sort.SliceStable(order, func(i, j int) bool {
		bi, bj := buckets[order[i]], buckets[order[j]]
		if bi.total != bj.total {
			return bi.total > bj.total
		}
		return bi.firstAt.Before(bj.firstAt)
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(order) {
		order = order[:limit]
	}

	entries := make([]WindowEntry, 0, len(order))
	for _, userID := range order {
		b := buckets[userID]
		entries = append(entries, WindowEntry{DisplayName: b.displayName, Total: b.total})
	}
	return entries, nil
}
