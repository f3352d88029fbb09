/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All ledger error types in one place. Adapters should classify with
  errors.Is / errors.As, never by string matching.

ERROR CATEGORIES:
  1. Validation errors - rejected before any write (ErrInvalidAmount)
  2. Storage errors    - durable medium unreachable or timed out
  3. Commit errors     - the event+total pair could not commit together

PROPAGATION:
  The engine returns these verbatim and performs no retries. Retry
  policy, if any, belongs to the calling adapter.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a grant amount is zero or negative.
	// Nothing is written when this is returned.
	ErrInvalidAmount = errors.New("invalid amount: must be a positive integer")

	// ErrStorageUnavailable is returned when the durable store cannot be
	// read or written, including caller-deadline timeouts.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrLedgerCommitFailed is returned when the event append and the total
	// increment could not be committed as one unit. The transaction is
	// rolled back; the caller must not consider the grant committed.
	ErrLedgerCommitFailed = errors.New("ledger commit failed")

	// ErrNotRanked is returned by Rank for a user with no totals row.
	ErrNotRanked = errors.New("user not ranked")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports the rejected amount.
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d: must be a positive integer", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// CommitError wraps the underlying storage failure behind a commit abort.
type CommitError struct {
	Cause error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("ledger commit failed: %v", e.Cause)
}

func (e *CommitError) Unwrap() error {
	return ErrLedgerCommitFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// IsStorageError returns true if the error indicates a storage-side failure
// that might succeed later.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrLedgerCommitFailed)
}
