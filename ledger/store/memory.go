// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gleam/stars-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	events []ledger.GrantEvent
	totals map[int64]ledger.UserTotal
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{
		totals: make(map[int64]ledger.UserTotal),
		nextID: 1,
	}
}

// AppendEvent adds a single event. Append-only.
func (m *Memory) AppendEvent(_ context.Context, ev ledger.GrantEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(ev), nil
}

func (m *Memory) appendLocked(ev ledger.GrantEvent) int64 {
	ev.ID = m.nextID
	m.nextID++

	// Binary search for the insertion point so EventsSince stays a plain
	// slice scan. Live appends arrive in timestamp order; test fixtures
	// with backdated events do not.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].GrantedAt.After(ev.GrantedAt)
	})
	m.events = append(m.events, ledger.GrantEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = ev

	return ev.ID
}

func (m *Memory) EventsSince(_ context.Context, since time.Time) ([]ledger.GrantEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.GrantEvent
	for _, ev := range m.events {
		if !ev.GrantedAt.Before(since) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (m *Memory) Total(_ context.Context, userID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals[userID].Total, nil
}

func (m *Memory) AddToTotal(_ context.Context, userID int64, displayName string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addToTotalLocked(userID, displayName, delta), nil
}

func (m *Memory) addToTotalLocked(userID int64, displayName string, delta int64) int64 {
	row := m.totals[userID]
	row.UserID = userID
	row.DisplayName = displayName
	row.Total += delta
	m.totals[userID] = row
	return row.Total
}

func (m *Memory) AllTotalsDescending(_ context.Context) ([]ledger.UserTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]ledger.UserTotal, 0, len(m.totals))
	for _, row := range m.totals {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn holding the store lock, simulated with a snapshot and
// rollback on error. Good enough for tests; the sqlite store uses real
// database transactions.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	events []ledger.GrantEvent
	totals map[int64]ledger.UserTotal
	nextID int64
}

func (m *Memory) snapshot() memorySnapshot {
	eventsCopy := append([]ledger.GrantEvent{}, m.events...)
	totalsCopy := make(map[int64]ledger.UserTotal, len(m.totals))
	for k, v := range m.totals {
		totalsCopy[k] = v
	}
	return memorySnapshot{events: eventsCopy, totals: totalsCopy, nextID: m.nextID}
}

func (m *Memory) restore(s memorySnapshot) {
	m.events = s.events
	m.totals = s.totals
	m.nextID = s.nextID
}

// txMemoryView bypasses the parent's locks; the parent holds its write lock
// for the whole WithTx call.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendEvent(_ context.Context, ev ledger.GrantEvent) (int64, error) {
	return tv.parent.appendLocked(ev), nil
}

func (tv *txMemoryView) EventsSince(_ context.Context, since time.Time) ([]ledger.GrantEvent, error) {
	var result []ledger.GrantEvent
	for _, ev := range tv.parent.events {
		if !ev.GrantedAt.Before(since) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Total(_ context.Context, userID int64) (int64, error) {
	return tv.parent.totals[userID].Total, nil
}

func (tv *txMemoryView) AddToTotal(_ context.Context, userID int64, displayName string, delta int64) (int64, error) {
	return tv.parent.addToTotalLocked(userID, displayName, delta), nil
}

func (tv *txMemoryView) AllTotalsDescending(ctx context.Context) ([]ledger.UserTotal, error) {
	rows := make([]ledger.UserTotal, 0, len(tv.parent.totals))
	for _, row := range tv.parent.totals {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}
