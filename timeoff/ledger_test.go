package timeoff

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
)

var ledgerNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func approvedRequest(id string, code Code, day string, days int) LeaveRequest {
	start := at(day, "09:00")
	return LeaveRequest{
		ID:          id,
		RequesterID: "emp",
		LeaveType:   code,
		Start:       start,
		End:         start.AddDate(0, 0, days-1).Add(9 * time.Hour),
		Hours:       decimal.NewFromInt(int64(8 * days)),
		Reason:      "family",
		Status:      StatusApproved,
	}
}

func consumption(req LeaveRequest, days int) generic.Transaction {
	return ConsumptionFor(req, decimal.NewFromInt(int64(days)), "mgr", ledgerNow)
}

func reversalOf(tx generic.Transaction) generic.Transaction {
	tx.ID = "rev-" + tx.ID
	tx.IdempotencyKey = "rev-" + tx.IdempotencyKey
	tx.Type = generic.TxReversal
	tx.Delta = tx.Delta.Neg()
	return tx
}

func TestConsumptionFor(t *testing.T) {
	birth := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	req := approvedRequest("r1", CodeBereavement, "2025-06-10", 3)
	req.Extras = Extras{Relationship: RelParent, ChildBirthDate: &birth}

	tx := ConsumptionFor(req, decimal.NewFromInt(3), "mgr", ledgerNow)

	assert.Equal(t, "usage-r1", tx.IdempotencyKey)
	assert.Equal(t, generic.TransactionID("usage-r1"), tx.ID)
	assert.Equal(t, generic.EntityID("emp"), tx.EntityID)
	assert.Equal(t, generic.PolicyID("bereavement"), tx.PolicyID)
	assert.Equal(t, generic.TxConsumption, tx.Type)
	assert.True(t, tx.Delta.Value.Equal(decimal.NewFromInt(-3)))
	assert.Equal(t, generic.UnitDays, tx.Delta.Unit)
	assert.Equal(t, "2025-06-10", tx.EffectiveAt.String())
	assert.Equal(t, "2025-06", tx.Metadata["month"])
	assert.Equal(t, "parent", tx.Metadata["relationship"])
	assert.Equal(t, "2025-05-20", tx.Metadata["child_birth_date"])
	assert.Equal(t, "24", tx.Metadata["hours"])
	assert.Equal(t, "r1", tx.ReferenceID)
	assert.Equal(t, "mgr", tx.CreatedBy)
}

func TestFoldUsage(t *testing.T) {
	// GIVEN: A mix of approved leave over two years
	bereavement := approvedRequest("b1", CodeBereavement, "2025-03-03", 3)
	bereavement.Extras.Relationship = RelGrandparent

	cancelledSick := consumption(approvedRequest("s2", CodeSick, "2025-04-07", 2), 2)

	txs := []generic.Transaction{
		consumption(approvedRequest("p1", CodePersonal, "2025-02-03", 2), 2),
		consumption(approvedRequest("p0", CodePersonal, "2024-11-04", 5), 5),
		consumption(approvedRequest("s1", CodeSick, "2025-04-01", 1), 1),
		cancelledSick,
		reversalOf(cancelledSick),
		consumption(approvedRequest("m1", CodeMenstrual, "2025-06-02", 1), 1),
		consumption(approvedRequest("m0", CodeMenstrual, "2025-05-05", 1), 1),
		consumption(bereavement, 3),
		consumption(approvedRequest("w0", CodeMarriage, "2023-10-02", 8), 8),
		consumption(approvedRequest("pa0", CodePaternity, "2024-12-02", 3), 3),
		consumption(approvedRequest("pa1", CodePaternity, "2025-01-06", 2), 2),
	}

	// WHEN: Folding as of mid-2025
	u := FoldUsage(txs, ledgerNow)

	// THEN: Yearly totals only count 2025, lifetime limits count everything
	assert.Equal(t, 2025, u.Year)
	assert.Equal(t, "2", u.Used(CodePersonal).String(), "2024 usage is outside the year")
	assert.Equal(t, "1", u.Used(CodeSick).String(), "reversal nets out the cancelled entry")
	assert.Equal(t, "1", u.MenstrualInMonth(at("2025-06-20", "00:00")).String())
	assert.Equal(t, "1", u.MenstrualInMonth(at("2025-05-20", "00:00")).String())
	assert.True(t, u.MenstrualInMonth(at("2025-07-01", "00:00")).IsZero())
	assert.Equal(t, "3", u.BereavementDays[RelGrandparent].String())
	assert.True(t, u.MarriageUsed, "marriage leave counts whenever it was taken")
	assert.Equal(t, "5", u.PaternityDays.String(), "paternity is cumulative across years")
	assert.Equal(t, "2", u.Used(CodePaternity).String())
}

func TestFoldUsage_IgnoresForeignEntries(t *testing.T) {
	tx := consumption(approvedRequest("p1", CodePersonal, "2025-02-03", 2), 2)
	hoursEntry := tx
	hoursEntry.Delta.Unit = generic.UnitHours
	untyped := tx
	untyped.ResourceType = nil

	u := FoldUsage([]generic.Transaction{hoursEntry, untyped}, ledgerNow)

	assert.True(t, u.Used(CodePersonal).IsZero())
}

func TestFoldUsage_NeverNegative(t *testing.T) {
	tx := consumption(approvedRequest("p1", CodePersonal, "2025-02-03", 2), 2)

	u := FoldUsage([]generic.Transaction{reversalOf(tx)}, ledgerNow)

	assert.True(t, u.Used(CodePersonal).IsZero())
}

func TestUsageLedger_RecordApprovalRequiresApproved(t *testing.T) {
	req := approvedRequest("p1", CodePersonal, "2025-02-03", 1)
	req.Status = StatusPending
	req.Level = 1

	err := NewUsageLedger(nil).RecordApproval(context.Background(), req, decimal.NewFromInt(1), "mgr", ledgerNow)

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidStateTransition)
}

func TestFoldPending(t *testing.T) {
	// GIVEN: Approved usage and a mix of open and closed requests
	approved := FoldUsage([]generic.Transaction{
		consumption(approvedRequest("p0", CodePersonal, "2025-02-03", 2), 2),
	}, ledgerNow)

	pending := func(id string, code Code, day string, days int) LeaveRequest {
		r := approvedRequest(id, code, day, days)
		r.Status = StatusPending
		return r
	}
	bereavement := pending("b1", CodeBereavement, "2025-06-16", 2)
	bereavement.Extras.Relationship = RelSibling
	rejected := pending("p9", CodePersonal, "2025-06-20", 5)
	rejected.Status = StatusRejected
	requests := []LeaveRequest{
		pending("p1", CodePersonal, "2025-06-10", 3),
		pending("p2", CodePersonal, "2024-12-30", 1),
		rejected,
		approvedRequest("p3", CodePersonal, "2025-03-03", 4),
		pending("m1", CodeMenstrual, "2025-06-12", 1),
		pending("w1", CodeMarriage, "2025-09-01", 8),
		pending("pa1", CodePaternity, "2025-07-07", 3),
		bereavement,
	}
	daysOf := func(r LeaveRequest) decimal.Decimal { return r.Hours.Div(decimal.NewFromInt(8)) }

	// WHEN: Pending requests are folded in
	u := FoldPending(approved, requests, daysOf)

	// THEN: Only pending requests add to the totals
	assert.Equal(t, "5", u.Used(CodePersonal).String(), "approved 2 + pending 3; other years and closed requests skipped")
	assert.Equal(t, "1", u.MenstrualInMonth(at("2025-06-01", "00:00")).String())
	assert.True(t, u.MarriageUsed)
	assert.Equal(t, "3", u.PaternityDays.String())
	assert.Equal(t, "2", u.BereavementDays[RelSibling].String())

	// AND: The input snapshot is left untouched
	assert.Equal(t, "2", approved.Used(CodePersonal).String())
	assert.False(t, approved.MarriageUsed)
}

func TestFoldPending_EmptySnapshot(t *testing.T) {
	r := approvedRequest("p1", CodePersonal, "2025-06-10", 1)
	r.Status = StatusPending

	u := FoldPending(LeaveUsage{Year: 2025}, []LeaveRequest{r}, func(LeaveRequest) decimal.Decimal { return decimal.NewFromInt(1) })

	assert.Equal(t, "1", u.Used(CodePersonal).String())
}

func TestFoldUsage_ChargesTheStartYear(t *testing.T) {
	// GIVEN: Personal leave from Dec 30 to Jan 3
	tx := consumption(approvedRequest("ny", CodePersonal, "2024-12-30", 5), 5)

	// WHEN: Folding in either year
	old := FoldUsage([]generic.Transaction{tx}, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	fresh := FoldUsage([]generic.Transaction{tx}, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	// THEN: The whole request counts against the year it starts in
	assert.Equal(t, "5", old.Used(CodePersonal).String())
	assert.True(t, fresh.Used(CodePersonal).IsZero())
}
