/*
ledger.go - Append-only usage log

PURPOSE:
  The Ledger records leave actually taken. When a request reaches a
  terminal approved state, one consumption transaction is appended for it.
  Usage snapshots handed to validation are always folded from these
  transactions; there is no separate counter that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A wrong entry is neutralised with a TxReversal of opposite sign. Both
  stay in the ledger.

SEE ALSO:
  - store.go: Low-level persistence interface
  - timeoff/ledger.go: Builds consumption entries and folds usage
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for leave usage.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// EntityTransactions returns every transaction for entityID with
	// EffectiveAt in [from, to], across all policies, chronologically.
	EntityTransactions(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Transaction, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) EntityTransactions(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadByEntity(ctx, entityID, from, to)
}
