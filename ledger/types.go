/*
types.go - Core domain types for the stars ledger

PURPOSE:
  Defines the two records the whole system revolves around:

  GrantEvent - an immutable fact: "user X received N stars at time T".
               Owned exclusively by the event log; append-only.
  UserTotal  - the materialized running total derived from those events.
               A view, never an independent source of truth.

THE INVARIANT:
  For every user, UserTotal.Total == sum of GrantEvent.Amount over that
  user's events in the log. The engine maintains this by committing the
  event append and the total increment in one transaction (see engine.go).

SEE ALSO:
  - store.go: persistence interfaces over these types
  - engine.go: the operations that produce and query them
*/
package ledger

import "time"

// GrantEvent is a single act of awarding stars. Once appended it is never
// mutated or deleted.
type GrantEvent struct {
	// ID is assigned by the event store on append (monotonic sequence).
	ID int64

	UserID int64

	// DisplayName is a snapshot of the recipient's name at grant time.
	// Later grants may carry a newer name; the event keeps the old one.
	DisplayName string

	// Amount is always a positive integer. Validated by the engine.
	Amount int64

	// GrantedAt is the UTC instant of the grant.
	GrantedAt time.Time
}

// UserTotal is one row of the materialized totals view: the all-time star
// count for a user, with the latest display name snapshot.
type UserTotal struct {
	UserID      int64
	DisplayName string
	Total       int64
}

// Rank is a user's 1-based position in the all-time standings.
type Rank struct {
	Position   int
	TotalUsers int
}

// WindowEntry is one leaderboard row for a trailing time window. Total here
// is the windowed sum, which is generally different from UserTotal.Total.
type WindowEntry struct {
	DisplayName string
	Total       int64
}

// Receipt is returned by a successful Grant.
type Receipt struct {
	EventID  int64
	NewTotal int64
}
