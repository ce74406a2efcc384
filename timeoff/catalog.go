/*
catalog.go - Leave type configuration

PURPOSE:
  A Catalog is the set of LeaveTypes a deployment offers. It is an
  explicit value handed to the validation Engine; there is no package
  registry. factory/catalog.go builds one from a YAML or JSON file.

BUILT-IN TYPES:
  annual        Paid, tiered by seniority (see entitlement.go)
  personal      Unpaid, 14 days/year
  sick          Half-paid, 30 days/year combined with menstrual
  menstrual     1 day/month, counted against the sick ceiling
  marriage      Paid, 8 days, once
  bereavement   Paid, ceiling per relationship
  maternity     Paid, exactly 56 calendar days
  paternity     Paid, 7 days cumulative
  parental      Unpaid, until the child turns 3, 730 days per child
  occupational  Paid, attachment required, outside the sick tally

SEE ALSO:
  - rules.go: Per-type rules keyed by Code
  - factory/catalog.go: File-based catalogs
*/
package timeoff

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LeaveType is the configuration of one leave category.
type LeaveType struct {
	Code               Code
	Name               string
	Paid               bool
	RequiresAttachment bool
	ResetsAnnually     bool
	MaxDaysPerYear     *decimal.Decimal
}

// Catalog holds leave types by code.
type Catalog struct {
	types map[Code]LeaveType
}

// NewCatalog builds a catalog. A later entry with the same code replaces
// an earlier one.
func NewCatalog(types ...LeaveType) *Catalog {
	c := &Catalog{types: make(map[Code]LeaveType, len(types))}
	for _, t := range types {
		c.types[t.Code] = t
	}
	return c
}

// Lookup returns the leave type for code.
func (c *Catalog) Lookup(code Code) (LeaveType, bool) {
	if c == nil {
		return LeaveType{}, false
	}
	t, ok := c.types[code]
	return t, ok
}

// All returns every leave type ordered by code.
func (c *Catalog) All() []LeaveType {
	out := make([]LeaveType, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Merge returns a catalog with other's entries layered over c's.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	merged := NewCatalog(c.All()...)
	if other != nil {
		for _, t := range other.All() {
			merged.types[t.Code] = t
		}
	}
	return merged
}

// =============================================================================
// BUILT-IN CATALOG
// =============================================================================

func days(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

// DefaultCatalog returns the built-in leave types.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		LeaveType{Code: CodeAnnual, Name: "Annual Leave", Paid: true, ResetsAnnually: true, MaxDaysPerYear: days(AnnualMaxDays)},
		LeaveType{Code: CodePersonal, Name: "Personal Leave", ResetsAnnually: true, MaxDaysPerYear: days(PersonalCapDays)},
		LeaveType{Code: CodeSick, Name: "Sick Leave", Paid: true, ResetsAnnually: true, MaxDaysPerYear: days(SickCombinedCapDays)},
		LeaveType{Code: CodeMenstrual, Name: "Menstrual Leave", Paid: true, ResetsAnnually: true, MaxDaysPerYear: days(12)},
		LeaveType{Code: CodeMarriage, Name: "Marriage Leave", Paid: true, MaxDaysPerYear: days(MarriageMaxDays)},
		LeaveType{Code: CodeBereavement, Name: "Bereavement Leave", Paid: true},
		LeaveType{Code: CodeMaternity, Name: "Maternity Leave", Paid: true},
		LeaveType{Code: CodePaternity, Name: "Paternity Leave", Paid: true, MaxDaysPerYear: days(PaternityMaxDays)},
		LeaveType{Code: CodeParental, Name: "Parental Leave"},
		LeaveType{Code: CodeOccupational, Name: "Occupational Injury Leave", Paid: true, RequiresAttachment: true},
	)
}

// =============================================================================
// BEREAVEMENT CEILINGS
// =============================================================================

// BereavementCeiling returns the allowed days for a relationship.
func BereavementCeiling(rel Relationship) (int, bool) {
	switch rel {
	case RelParent, RelSpouse:
		return 8, true
	case RelGrandparent, RelChild, RelSpouseParent:
		return 6, true
	case RelGreatGrandparent, RelSibling, RelSpouseGrandparent:
		return 3, true
	default:
		return 0, false
	}
}
