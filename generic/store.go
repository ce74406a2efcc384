/*
store.go - Persistence interface for usage transactions

PURPOSE:
  Defines the interface between the usage ledger and the database.
  The Store keeps append-only semantics; the leave repositories in
  store/sqlite and store/memory implement it next to their request and
  approval-record tables so that a state transition and its ledger entry
  share one database transaction.

KEY INTERFACE:
  Store: append, entity-wide reads across every leave type, exists

IDEMPOTENCY:
  Every consumption write carries an idempotency key derived from the
  request id. A replayed final approval cannot double-count usage.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for tests

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions. No Update, No Delete.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// LoadByEntity returns ALL transactions for an entity across all
	// policies with EffectiveAt in [from, to], ordered by EffectiveAt.
	LoadByEntity(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
