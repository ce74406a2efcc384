/*
ledger.go - Usage ledger for approved leave

PURPOSE:
  Records leave that reached approved and folds those records back into
  the LeaveUsage snapshot validation consumes. Validation itself never
  touches storage; the snapshot is built here and handed over read-only.

WRITE PATH:
  One TxConsumption per approved request, appended in the same database
  transaction as the status change:

    ID / IdempotencyKey  usage-<request id>
    EntityID             requester
    PolicyID             leave type code
    EffectiveAt          first day of the request
    Delta                -days (see Engine.RequestedDays)
    Metadata             month, relationship, child_birth_date, hours

  The idempotency key means a replayed approval cannot count twice.

READ PATH:
  FoldUsage(txs, asOf):
    UsedDays          net days per type within asOf's year
    MenstrualByMonth  net menstrual days per "YYYY-MM"
    BereavementDays   net days per relationship within asOf's year
    MarriageUsed      any net marriage usage, ever
    PaternityDays     net paternity days, ever

  Reversals (positive deltas) net out the consumption they undo.

  FoldPending(u, requests, daysOf) adds still-pending requests on top, so
  that quota and one-time checks count leave already asked for.

YEAR BOUNDARY:
  A request is charged whole to the year (and month) of its first day.
  Dec 30 -> Jan 3 counts against the old year's annual and bereavement
  totals; the new year starts clean. Hours are computed over the whole
  range, so there is no exact per-year split to record.

SEE ALSO:
  - generic/ledger.go: Base ledger interface
  - request.go: Calls RecordApproval inside the transition transaction
*/
package timeoff

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/shopspring/decimal"
)

const (
	metaMonth          = "month"
	metaRelationship   = "relationship"
	metaChildBirthDate = "child_birth_date"
	metaHours          = "hours"
)

// UsageKey is the idempotency key of a request's consumption entry.
func UsageKey(requestID string) string {
	return "usage-" + requestID
}

// ConsumptionFor builds the ledger entry for an approved request.
func ConsumptionFor(req LeaveRequest, days decimal.Decimal, actorID string, now time.Time) generic.Transaction {
	meta := map[string]string{
		metaMonth: MonthKey(req.Start),
		metaHours: req.Hours.String(),
	}
	if req.Extras.Relationship != "" {
		meta[metaRelationship] = string(req.Extras.Relationship)
	}
	if req.Extras.ChildBirthDate != nil {
		meta[metaChildBirthDate] = req.Extras.ChildBirthDate.Format("2006-01-02")
	}

	return generic.Transaction{
		ID:             generic.TransactionID(UsageKey(req.ID)),
		EntityID:       generic.EntityID(req.RequesterID),
		PolicyID:       generic.PolicyID(req.LeaveType),
		ResourceType:   req.LeaveType,
		EffectiveAt:    generic.DayOf(req.Start),
		Delta:          generic.Amount{Value: days.Neg(), Unit: generic.UnitDays},
		Type:           generic.TxConsumption,
		ReferenceID:    req.ID,
		Reason:         req.Reason,
		IdempotencyKey: UsageKey(req.ID),
		Metadata:       meta,
		CreatedBy:      actorID,
		CreatedAt:      generic.TimePoint{Time: now, Granularity: generic.GranularityMinute},
	}
}

// =============================================================================
// USAGE LEDGER
// =============================================================================

// UsageLedger records approved leave and builds usage snapshots.
type UsageLedger struct {
	inner generic.Ledger
}

// NewUsageLedger wraps store.
func NewUsageLedger(store generic.Store) *UsageLedger {
	return &UsageLedger{inner: generic.NewLedger(store)}
}

// RecordApproval appends the consumption entry for an approved request.
func (l *UsageLedger) RecordApproval(ctx context.Context, req LeaveRequest, days decimal.Decimal, actorID string, now time.Time) error {
	if req.Status != StatusApproved {
		return fmt.Errorf("record usage for %s: %w", req.ID, &generic.InvalidStateError{
			RequestID: req.ID, Status: string(req.Status), Level: req.Level, ExpectedLevel: req.Level,
		})
	}
	if err := l.inner.Append(ctx, ConsumptionFor(req, days, actorID, now)); err != nil {
		return fmt.Errorf("record usage for %s: %w", req.ID, err)
	}
	return nil
}

// Snapshot folds every entry for employeeID up to the end of asOf's year.
func (l *UsageLedger) Snapshot(ctx context.Context, employeeID string, asOf time.Time) (LeaveUsage, error) {
	txs, err := l.inner.EntityTransactions(ctx, generic.EntityID(employeeID), generic.TimePoint{}, generic.EndOfYear(asOf.Year()))
	if err != nil {
		return LeaveUsage{}, fmt.Errorf("load usage for %s: %w", employeeID, err)
	}
	return FoldUsage(txs, asOf), nil
}

// =============================================================================
// FOLDING
// =============================================================================

// FoldUsage builds a LeaveUsage from ledger entries.
func FoldUsage(txs []generic.Transaction, asOf time.Time) LeaveUsage {
	u := LeaveUsage{
		Year:             asOf.Year(),
		UsedDays:         make(map[Code]decimal.Decimal),
		MenstrualByMonth: make(map[string]decimal.Decimal),
		BereavementDays:  make(map[Relationship]decimal.Decimal),
	}
	marriage := decimal.Zero
	year := generic.YearPeriod(asOf)

	for _, tx := range txs {
		if tx.Delta.Unit != generic.UnitDays || tx.ResourceType == nil {
			continue
		}
		code := Code(tx.ResourceType.ResourceID())
		used := tx.Delta.Value.Neg()
		thisYear := year.Contains(tx.EffectiveAt)

		if thisYear {
			u.UsedDays[code] = u.UsedDays[code].Add(used)
		}
		switch code {
		case CodeMenstrual:
			month := tx.Metadata[metaMonth]
			if month == "" {
				month = MonthKey(tx.EffectiveAt.Time)
			}
			u.MenstrualByMonth[month] = u.MenstrualByMonth[month].Add(used)
		case CodeBereavement:
			if rel := Relationship(tx.Metadata[metaRelationship]); rel != "" && thisYear {
				u.BereavementDays[rel] = u.BereavementDays[rel].Add(used)
			}
		case CodeMarriage:
			marriage = marriage.Add(used)
		case CodePaternity:
			u.PaternityDays = u.PaternityDays.Add(used)
		}
	}

	for k, d := range u.UsedDays {
		u.UsedDays[k] = nonNegative(d)
	}
	for k, d := range u.MenstrualByMonth {
		u.MenstrualByMonth[k] = nonNegative(d)
	}
	for k, d := range u.BereavementDays {
		u.BereavementDays[k] = nonNegative(d)
	}
	u.PaternityDays = nonNegative(u.PaternityDays)
	u.MarriageUsed = marriage.IsPositive()
	return u
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FoldPending adds the days held by the pending requests in requests to u.
// Requests in any other status are skipped; approved ones are already in
// the ledger. daysOf converts a request to quota days (Engine.RequestedDays).
func FoldPending(u LeaveUsage, requests []LeaveRequest, daysOf func(LeaveRequest) decimal.Decimal) LeaveUsage {
	out := LeaveUsage{
		Year:             u.Year,
		UsedDays:         maps.Clone(u.UsedDays),
		MenstrualByMonth: maps.Clone(u.MenstrualByMonth),
		BereavementDays:  maps.Clone(u.BereavementDays),
		MarriageUsed:     u.MarriageUsed,
		PaternityDays:    u.PaternityDays,
	}
	if out.UsedDays == nil {
		out.UsedDays = make(map[Code]decimal.Decimal)
	}
	if out.MenstrualByMonth == nil {
		out.MenstrualByMonth = make(map[string]decimal.Decimal)
	}
	if out.BereavementDays == nil {
		out.BereavementDays = make(map[Relationship]decimal.Decimal)
	}

	year := generic.YearPeriod(time.Date(u.Year, time.January, 1, 0, 0, 0, 0, time.UTC))
	for _, r := range requests {
		if r.Status != StatusPending {
			continue
		}
		held := daysOf(r)
		thisYear := year.Contains(generic.DayOf(r.Start))

		if thisYear {
			out.UsedDays[r.LeaveType] = out.UsedDays[r.LeaveType].Add(held)
		}
		switch r.LeaveType {
		case CodeMenstrual:
			month := MonthKey(r.Start)
			out.MenstrualByMonth[month] = out.MenstrualByMonth[month].Add(held)
		case CodeBereavement:
			if rel := r.Extras.Relationship; rel != "" && thisYear {
				out.BereavementDays[rel] = out.BereavementDays[rel].Add(held)
			}
		case CodeMarriage:
			out.MarriageUsed = true
		case CodePaternity:
			out.PaternityDays = out.PaternityDays.Add(held)
		}
	}
	return out
}
