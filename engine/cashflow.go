/*
cashflow.go - Plan vs pace projection for one period

PURPOSE:
  Answers "where will my balance be at the end of this period?" two ways:

    PLAN: starting balance + expected income - expected fixed
          - expected variable - expected savings
    PACE: same, but variable spending is the actual-to-date extrapolated
          linearly to the full period, and savings are
          max(expected, actual) since money already banked stays banked.

  Actuals are counted over [period start, effective date]:

    period state   effective date
    ------------   --------------
    past           period end
    current        as-of date
    future         period start

KEY CONCEPTS:
  - Fixed vs variable actuals: an expense whose category is planned only by
    "expense" rules is fixed; anything else (budget categories, unplanned
    categories, uncategorized) is variable spending.
  - Divergence: pace and plan only count as different beyond a tolerance of
    max(floor, 10% of expected variable) so the flag doesn't flicker.
  - Missing anchor: balances are nil, never zero.

SEE ALSO:
  - anchor.go: Starting balance reconstruction
  - overlay.go: What-if overrides substituted into the rules
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultDivergenceFloor is the minimum plan/pace gap (in cents) reported as
// divergent.
const DefaultDivergenceFloor Cents = 1000

// UncategorizedKey buckets transactions and rules without a category.
const UncategorizedKey CategoryID = "uncategorized"

var divergenceShare = decimal.RequireFromString("0.1")

// CashFlowInput is everything the projector needs. Nothing here is modified.
type CashFlowInput struct {
	Period       Period
	AsOf         Date
	Rules        []Rule
	Transactions []Transaction
	Anchors      *AnchorSet

	// Overlay is substituted into Rules before expansion.
	Overlay Overlay

	// DivergenceFloor defaults to DefaultDivergenceFloor when zero.
	DivergenceFloor Cents
}

// ActualTotals are recorded transactions bucketed like KindTotals, plus
// adjustments which have no planned counterpart.
type ActualTotals struct {
	KindTotals
	Adjustments Cents `json:"adjustments"`
}

// CategoryFlow is one spending category's expected vs actual.
type CategoryFlow struct {
	CategoryID CategoryID `json:"category_id"`
	Fixed      bool       `json:"fixed"`
	Expected   Cents      `json:"expected"`
	Actual     Cents      `json:"actual"`
	Remaining  Cents      `json:"remaining"`

	// BurnRate is actual / expected; invalid when nothing was expected.
	BurnRate decimal.NullDecimal `json:"burn_rate"`
}

// CashFlowProjection is the projector's output record.
type CashFlowProjection struct {
	Period        Period      `json:"period"`
	AsOf          Date        `json:"as_of"`
	State         PeriodState `json:"state"`
	EffectiveDate Date        `json:"effective_date"`
	ElapsedDays   int         `json:"elapsed_days"`
	TotalDays     int         `json:"total_days"`

	Expected KindTotals   `json:"expected"`
	Actual   ActualTotals `json:"actual"`

	// Remaining is only set for the current period.
	Remaining  *KindTotals    `json:"remaining,omitempty"`
	Categories []CategoryFlow `json:"categories"`

	// Balances are nil when no anchor makes them knowable.
	StartingBalance        *Cents `json:"starting_balance"`
	StartingBalanceDerived bool   `json:"starting_balance_derived"`
	CurrentBalance         *Cents `json:"current_balance"`
	PlannedEndBalance      *Cents `json:"planned_end_balance"`
	PaceEndBalance         *Cents `json:"pace_end_balance,omitempty"`

	// Pace figures are only set for the current period.
	PaceVariable        *Cents `json:"pace_variable,omitempty"`
	PaceSavings         *Cents `json:"pace_savings,omitempty"`
	Divergence          Cents  `json:"divergence"`
	DivergenceTolerance Cents  `json:"divergence_tolerance"`
	Divergent           bool   `json:"divergent"`
}

// ProjectCashFlow computes the plan vs pace projection for in.Period.
func ProjectCashFlow(in CashFlowInput) (*CashFlowProjection, error) {
	if err := in.Period.Validate(); err != nil {
		return nil, err
	}
	if in.AsOf.IsZero() {
		return nil, fmt.Errorf("%w: as-of date required", ErrInvalidPeriod)
	}

	rules := in.Overlay.ApplyToRules(in.Rules)
	p := in.Period
	state := p.StateAt(in.AsOf)
	effective := p.EffectiveDate(in.AsOf)

	proj := &CashFlowProjection{
		Period:        p,
		AsOf:          in.AsOf,
		State:         state,
		EffectiveDate: effective,
		ElapsedDays:   p.ElapsedDays(in.AsOf),
		TotalDays:     p.LengthDays(),
		Expected:      ExpandTotalsByKind(rules, p.Start, p.End),
	}

	fixed := fixedCategories(rules)
	actualWindow := Period{Start: p.Start, End: effective}
	proj.Actual = actualTotals(in.Transactions, actualWindow, fixed)
	proj.Categories = categoryFlows(rules, in.Transactions, p, actualWindow, fixed, state == PeriodCurrent)

	if state == PeriodCurrent {
		proj.Remaining = &KindTotals{
			Income:           max(0, proj.Expected.Income-proj.Actual.Income),
			FixedExpenses:    max(0, proj.Expected.FixedExpenses-proj.Actual.FixedExpenses),
			VariableExpenses: max(0, proj.Expected.VariableExpenses-proj.Actual.VariableExpenses),
			Savings:          max(0, proj.Expected.Savings-proj.Actual.Savings),
		}
	}

	planNet := proj.Expected.Net()
	paceNet := planNet
	if state == PeriodCurrent {
		paceVariable := extrapolate(proj.Actual.VariableExpenses, proj.ElapsedDays, proj.TotalDays)
		paceSavings := max(proj.Expected.Savings, proj.Actual.Savings)
		proj.PaceVariable = &paceVariable
		proj.PaceSavings = &paceSavings
		paceNet = proj.Expected.Income - proj.Expected.FixedExpenses - paceVariable - paceSavings
	}

	floor := in.DivergenceFloor
	if floor <= 0 {
		floor = DefaultDivergenceFloor
	}
	proj.Divergence = paceNet - planNet
	proj.DivergenceTolerance = max(floor, CentsFromDecimal(proj.Expected.VariableExpenses.Decimal().Mul(divergenceShare)))
	proj.Divergent = proj.Divergence.Abs() > proj.DivergenceTolerance

	start, derived, ok := startingBalance(in.Anchors, in.Transactions, p, effective)
	if !ok {
		return proj, nil
	}
	proj.StartingBalance = &start
	proj.StartingBalanceDerived = derived

	// A starting balance implies an anchor on or before effective
	if current, ok := in.Anchors.BalanceAsOf(in.Transactions, GlobalScope(), effective); ok {
		proj.CurrentBalance = &current
	}

	planned := start + planNet
	proj.PlannedEndBalance = &planned
	if state == PeriodCurrent {
		pace := start + paceNet
		proj.PaceEndBalance = &pace
	}
	return proj, nil
}

// startingBalance is the global balance at the end of the day before the
// period. Without an anchor before the period, the earliest anchor inside
// [start, effective] is rewound to the period start.
func startingBalance(anchors *AnchorSet, txs []Transaction, p Period, effective Date) (Cents, bool, bool) {
	dayBefore := p.Start.AddDays(-1)
	if balance, ok := anchors.BalanceAsOf(txs, GlobalScope(), dayBefore); ok {
		return balance, false, true
	}
	anchor, ok := anchors.FirstWithin(GlobalScope(), Period{Start: p.Start, End: effective})
	if !ok {
		return 0, false, false
	}
	return RewindBalance(anchor, txs, dayBefore), true, true
}

// extrapolate scales actual-to-date to the whole period. With nothing
// elapsed there is no rate to extrapolate and actual is returned as is.
func extrapolate(actual Cents, elapsedDays, totalDays int) Cents {
	if elapsedDays <= 0 {
		return actual
	}
	return CentsFromDecimal(actual.Decimal().
		Mul(decimal.NewFromInt(int64(totalDays))).
		Div(decimal.NewFromInt(int64(elapsedDays))))
}

// fixedCategories returns the categories planned exclusively by expense rules.
func fixedCategories(rules []Rule) map[CategoryID]bool {
	kinds := make(map[CategoryID]map[RuleKind]bool)
	for _, r := range rules {
		if r.CategoryID == "" {
			continue
		}
		if kinds[r.CategoryID] == nil {
			kinds[r.CategoryID] = make(map[RuleKind]bool)
		}
		kinds[r.CategoryID][r.Kind] = true
	}

	fixed := make(map[CategoryID]bool)
	for cat, set := range kinds {
		if len(set) == 1 && set[KindExpense] {
			fixed[cat] = true
		}
	}
	return fixed
}

func actualTotals(txs []Transaction, window Period, fixed map[CategoryID]bool) ActualTotals {
	var totals ActualTotals
	for _, tx := range txs {
		if !window.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case TxIncome:
			totals.Income += tx.AmountCents
		case TxSavings:
			totals.Savings += tx.AmountCents
		case TxAdjustment:
			totals.Adjustments += tx.AmountCents
		case TxExpense:
			if fixed[tx.CategoryID] {
				totals.FixedExpenses += tx.AmountCents
			} else {
				totals.VariableExpenses += tx.AmountCents
			}
		}
	}
	return totals
}

// categoryFlows reports every spending category that is either planned
// (budget or expense rules) or has expense actuals in the window.
func categoryFlows(rules []Rule, txs []Transaction, p, window Period, fixed map[CategoryID]bool, current bool) []CategoryFlow {
	flows := make(map[CategoryID]*CategoryFlow)
	flowFor := func(id CategoryID) *CategoryFlow {
		if id == "" {
			id = UncategorizedKey
		}
		f, ok := flows[id]
		if !ok {
			f = &CategoryFlow{CategoryID: id, Fixed: fixed[id]}
			flows[id] = f
		}
		return f
	}

	for _, r := range rules {
		if r.Kind != KindBudget && r.Kind != KindExpense {
			continue
		}
		flowFor(r.CategoryID).Expected += ExpandForTotal(r, p.Start, p.End)
	}
	for _, tx := range txs {
		if tx.Type != TxExpense || !window.Contains(tx.Date) {
			continue
		}
		flowFor(tx.CategoryID).Actual += tx.AmountCents
	}

	out := make([]CategoryFlow, 0, len(flows))
	for _, f := range flows {
		if current {
			f.Remaining = max(0, f.Expected-f.Actual)
		}
		if f.Expected > 0 {
			f.BurnRate = decimal.NewNullDecimal(f.Actual.Decimal().Div(f.Expected.Decimal()).Round(4))
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}
