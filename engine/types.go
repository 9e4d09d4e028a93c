/*
Package engine provides the recurring-rule expansion and cash-flow projection engine.

PURPOSE:
  Turns sparse recurring plan rules plus dated balance snapshots ("anchors")
  into dense, date-accurate projections, reconciles them against recorded
  actuals, applies what-if overrides without mutating stored data, and
  produces forward balance and goal-completion forecasts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: Money in minor units (fractional math goes through decimal)
  - Rule: A recurring plan entry (income, fixed expense, budget, savings)
  - Transaction: An actual ledger entry; the record of the past
  - BalanceAnchor: A known-correct balance on a date, global or per goal
  - Forecast: A dated occurrence derived from a rule (never stored)

DESIGN PRINCIPLES:
  1. Purity: every operation is a deterministic function of its inputs
  2. Explicit "as of": nothing in this package reads the wall clock
  3. Absent is not zero: missing balances are reported as unavailable
  4. Non-destructive: rules and transactions are never mutated

USAGE:
  rule := engine.Rule{
      ID:          "rent",
      Kind:        engine.KindExpense,
      AmountCents: 180000,
      Cadence:     engine.CadenceMonthly,
      DayOfMonth:  1,
  }
  total := engine.ExpandForTotal(rule, jan1, dec31) // 2160000

SEE ALSO:
  - cadence.go: Occurrence counting and dated occurrence generation
  - expand.go: Rule totals and forecast lists
  - anchor.go: Balance reconstruction from anchors and the ledger
  - cashflow.go: Plan vs pace projection for a period
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Cents is an amount of money in minor units.
type Cents int64

func (c Cents) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(c)) }
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// CentsFromDecimal rounds half away from zero to whole cents.
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(0).IntPart())
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// =============================================================================
// IDENTIFIERS - Distinct types so a category ID can't be passed as a rule ID
// =============================================================================

type (
	RuleID        string
	ScenarioID    string
	CategoryID    string
	GoalID        string
	TransactionID string
)

// =============================================================================
// ENUMS
// =============================================================================

// RuleKind classifies what a rule plans for.
type RuleKind string

const (
	KindIncome  RuleKind = "income"
	KindExpense RuleKind = "expense" // fixed expense (rent, subscriptions)
	KindSavings RuleKind = "savings"
	KindBudget  RuleKind = "budget" // variable spending allowance
)

func (k RuleKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindSavings, KindBudget:
		return true
	}
	return false
}

// TransactionType is the type a rule's occurrences are booked as.
func (k RuleKind) TransactionType() TransactionType {
	switch k {
	case KindIncome:
		return TxIncome
	case KindSavings:
		return TxSavings
	default:
		return TxExpense
	}
}

type Cadence string

const (
	CadenceWeekly      Cadence = "weekly"
	CadenceFortnightly Cadence = "fortnightly"
	CadenceMonthly     Cadence = "monthly"
	CadenceQuarterly   Cadence = "quarterly"
	CadenceYearly      Cadence = "yearly"
)

func (c Cadence) Valid() bool {
	switch c {
	case CadenceWeekly, CadenceFortnightly, CadenceMonthly, CadenceQuarterly, CadenceYearly:
		return true
	}
	return false
}

// TransactionType is the direction of an actual ledger entry. Amounts are
// always non-negative; the sign is implied by the type.
type TransactionType string

const (
	TxIncome     TransactionType = "income"
	TxExpense    TransactionType = "expense"
	TxSavings    TransactionType = "savings"
	TxAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxSavings, TxAdjustment:
		return true
	}
	return false
}

type SourceType string

const (
	SourceRule     SourceType = "rule"
	SourceInterest SourceType = "interest"
)

// =============================================================================
// RULE - Recurring plan entry
// =============================================================================

// Rule is a recurring budget or forecast entry scoped to a scenario.
//
// Zero values for the schedule fields mean "unset": DayOfMonth 0 lands on the
// 1st, MonthOfYear 0 on January, DayOfWeek 0 on Sunday. MonthOfQuarter is an
// offset (0..2) into each quarter. Zero StartDate/EndDate leave the window open.
type Rule struct {
	ID            RuleID     `json:"id"`
	ScenarioID    ScenarioID `json:"scenario_id"`
	CategoryID    CategoryID `json:"category_id,omitempty"`
	SourceID      string     `json:"source_id,omitempty"`
	SavingsGoalID GoalID     `json:"savings_goal_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	LineageID     string     `json:"lineage_id,omitempty"`

	Kind        RuleKind `json:"kind"`
	AmountCents Cents    `json:"amount_cents"`
	Cadence     Cadence  `json:"cadence"`

	DayOfWeek      time.Weekday `json:"day_of_week,omitempty"`
	DayOfMonth     int          `json:"day_of_month,omitempty"`
	MonthOfQuarter int          `json:"month_of_quarter,omitempty"`
	MonthOfYear    time.Month   `json:"month_of_year,omitempty"`

	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`
}

// Validate checks the rule's structural invariants.
func (r Rule) Validate() error {
	fail := func(field, msg string) error { return &RuleError{RuleID: r.ID, Field: field, Message: msg} }

	switch {
	case !r.Kind.Valid():
		return fail("kind", fmt.Sprintf("unknown kind %q", r.Kind))
	case !r.Cadence.Valid():
		return fail("cadence", fmt.Sprintf("unknown cadence %q", r.Cadence))
	case r.AmountCents < 0:
		return fail("amount_cents", "must be >= 0")
	case r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday:
		return fail("day_of_week", "must be 0-6")
	case r.DayOfMonth < 0 || r.DayOfMonth > 31:
		return fail("day_of_month", "must be 1-31")
	case r.MonthOfQuarter < 0 || r.MonthOfQuarter > 2:
		return fail("month_of_quarter", "must be 0-2")
	case r.MonthOfYear < 0 || r.MonthOfYear > time.December:
		return fail("month_of_year", "must be 1-12")
	case !r.StartDate.IsZero() && !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate):
		return fail("end_date", "must not be before start_date")
	}
	return nil
}

// ActiveOn reports whether the rule's validity window includes d.
func (r Rule) ActiveOn(d Date) bool {
	if !r.StartDate.IsZero() && d.Before(r.StartDate) {
		return false
	}
	if !r.EndDate.IsZero() && d.After(r.EndDate) {
		return false
	}
	return true
}

// clampWindow intersects the rule's validity window with [start, end].
func (r Rule) clampWindow(start, end Date) (Date, Date, bool) {
	query := Period{Start: start, End: end}
	validity := query
	if !r.StartDate.IsZero() {
		validity.Start = r.StartDate
	}
	if !r.EndDate.IsZero() {
		validity.End = r.EndDate
	}
	window, ok := query.Intersect(validity)
	return window.Start, window.End, ok
}

func (r Rule) dayOfMonth() int {
	if r.DayOfMonth < 1 {
		return 1
	}
	return r.DayOfMonth
}

func (r Rule) monthOfYear() time.Month {
	if r.MonthOfYear < time.January || r.MonthOfYear > time.December {
		return time.January
	}
	return r.MonthOfYear
}

// =============================================================================
// LEDGER RECORDS
// =============================================================================

type Transaction struct {
	ID            TransactionID   `json:"id"`
	Date          Date            `json:"date"`
	Type          TransactionType `json:"type"`
	AmountCents   Cents           `json:"amount_cents"`
	CategoryID    CategoryID      `json:"category_id,omitempty"`
	SavingsGoalID GoalID          `json:"savings_goal_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// BalanceAnchor is a known-correct balance at the end of Date. An empty
// SavingsGoalID is the global cash anchor.
type BalanceAnchor struct {
	Date          Date   `json:"date"`
	BalanceCents  Cents  `json:"balance_cents"`
	SavingsGoalID GoalID `json:"savings_goal_id,omitempty"`
}

func (a BalanceAnchor) Scope() Scope { return Scope{SavingsGoalID: a.SavingsGoalID} }

// Scope selects which balance is being reconstructed. The zero value is
// global cash.
type Scope struct {
	SavingsGoalID GoalID
}

func GlobalScope() Scope        { return Scope{} }
func GoalScope(id GoalID) Scope { return Scope{SavingsGoalID: id} }
func (s Scope) IsGlobal() bool  { return s.SavingsGoalID == "" }
func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "goal:" + string(s.SavingsGoalID)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type SavingsGoal struct {
	ID                   GoalID          `json:"id"`
	Name                 string          `json:"name"`
	TargetAmountCents    Cents           `json:"target_amount_cents"`
	Deadline             Date            `json:"deadline"`
	AnnualInterestRate   decimal.Decimal `json:"annual_interest_rate"`
	InterestRateSchedule []RateChange    `json:"interest_rate_schedule,omitempty"`
}

// RateChange sets a goal's annual rate (percent) from EffectiveDate onward.
type RateChange struct {
	EffectiveDate Date            `json:"effective_date"`
	AnnualRate    decimal.Decimal `json:"annual_rate"`
}

type Scenario struct {
	ID        ScenarioID `json:"id"`
	Name      string     `json:"name"`
	IsDefault bool       `json:"is_default"`
}

type Category struct {
	ID   CategoryID `json:"id"`
	Name string     `json:"name"`
}

// Forecast is a dated occurrence of a rule (or of goal interest).
type Forecast struct {
	Date          Date            `json:"date"`
	AmountCents   Cents           `json:"amount_cents"`
	Type          TransactionType `json:"type"`
	SourceID      string          `json:"source_id"`
	SourceType    SourceType      `json:"source_type"`
	CategoryID    CategoryID      `json:"category_id,omitempty"`
	SavingsGoalID GoalID          `json:"savings_goal_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// =============================================================================
// TOTALS
// =============================================================================

// TotalKind names one of the headline totals compared across scenarios.
type TotalKind string

const (
	TotalIncome           TotalKind = "income"
	TotalFixedExpenses    TotalKind = "fixed_expenses"
	TotalVariableExpenses TotalKind = "variable_expenses"
	TotalSavings          TotalKind = "savings"
	TotalSurplus          TotalKind = "surplus"
)

// AllTotalKinds lists every kind in display order.
var AllTotalKinds = []TotalKind{
	TotalIncome, TotalFixedExpenses, TotalVariableExpenses, TotalSavings, TotalSurplus,
}

// KindTotals holds one amount per rule kind.
type KindTotals struct {
	Income           Cents `json:"income"`
	FixedExpenses    Cents `json:"fixed_expenses"`
	VariableExpenses Cents `json:"variable_expenses"`
	Savings          Cents `json:"savings"`
}

// Net is income minus everything going out.
func (t KindTotals) Net() Cents {
	return t.Income - t.FixedExpenses - t.VariableExpenses - t.Savings
}

// Add books amount under the total that a rule of the given kind feeds.
func (t *KindTotals) Add(kind RuleKind, amount Cents) {
	switch kind {
	case KindIncome:
		t.Income += amount
	case KindExpense:
		t.FixedExpenses += amount
	case KindBudget:
		t.VariableExpenses += amount
	case KindSavings:
		t.Savings += amount
	}
}

func (t KindTotals) Get(kind TotalKind) Cents {
	switch kind {
	case TotalIncome:
		return t.Income
	case TotalFixedExpenses:
		return t.FixedExpenses
	case TotalVariableExpenses:
		return t.VariableExpenses
	case TotalSavings:
		return t.Savings
	case TotalSurplus:
		return t.Net()
	}
	return 0
}
