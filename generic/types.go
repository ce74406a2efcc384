/*
Package generic provides the shared primitives of the leave engine.

PURPOSE:
  Domain-agnostic building blocks used by the leave lifecycle: decimal
  quantities, typed identifiers, append-only usage transactions, time
  helpers, and the error taxonomy. Nothing in here knows what a leave
  type or an approval chain is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours, 3 days)
  - Transaction: An immutable usage-ledger entry
  - Entity/Policy IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing entity/policy IDs

USAGE:
  tx := generic.Transaction{
      EntityID: "emp-123",
      PolicyID: "annual",
      Delta:    generic.NewAmount(-2, generic.UnitDays),
      Type:     generic.TxConsumption,
  }

SEE ALSO:
  - ledger.go: Transaction persistence interface
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays    Unit = "days"
	UnitHours   Unit = "hours"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

// MustParseDecimal parses s, returning zero for malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type PolicyID string
type TransactionID string

// ResourceType identifies what kind of quantity a transaction draws on.
// Domain packages supply the concrete type (timeoff.Code for leave types).
type ResourceType interface {
	ResourceID() string
	ResourceDomain() string
}

// rawResource is used when a stored resource id is read back without a
// domain type to map it to.
type rawResource string

func (r rawResource) ResourceID() string     { return string(r) }
func (r rawResource) ResourceDomain() string { return "" }

// ResourceFromID wraps a persisted resource id.
func ResourceFromID(id string) ResourceType { return rawResource(id) }

// =============================================================================
// TRANSACTION - Atomic change recorded in the usage ledger
// =============================================================================

type TransactionType string

const (
	TxConsumption TransactionType = "consumption" // Leave taken (request reached approved)
	TxReversal    TransactionType = "reversal"    // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	PolicyID       PolicyID
	ResourceType   ResourceType
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt TimePoint
}
