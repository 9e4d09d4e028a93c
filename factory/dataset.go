/*
Package factory provides JSON to engine record conversion.

PURPOSE:
  Converts hand-written JSON (dataset files, API request bodies) into engine
  records. Money is written in dollars ("1500.00"), weekdays and months by
  name, dates as YYYY-MM-DD; the factory turns that into cents, enums and
  engine.Date, and validates what it builds.

JSON SCHEMA (dataset):
  {
    "scenarios":   [{"id": "base", "name": "Base plan", "default": true}],
    "categories":  [{"id": "groceries", "name": "Groceries"}],
    "goals":       [{"id": "house", "name": "House deposit", "target": "20000",
                     "deadline": "2026-06-30", "annual_interest_rate": "4.5",
                     "rate_schedule": [{"effective_date": "2025-01-01", "annual_rate": "5"}]}],
    "rules": [{
      "id": "pay", "scenario": "base", "kind": "income", "amount": "2500.00",
      "cadence": "fortnightly", "day_of_week": "friday",
      "start_date": "2024-01-05", "description": "Salary", "lineage": "salary"
    }],
    "transactions": [{"date": "2024-01-05", "type": "income", "amount": "2500"}],
    "anchors":      [{"date": "2023-12-31", "balance": "1200.50"}]
  }

KEY FEATURES:
  - Dollars to cents with half-away-from-zero rounding
  - day_of_week / month_of_year accept names or numbers
  - Every rule is validated (engine.Rule.Validate)
  - Missing IDs are generated (uuid)
  - Import writes records in dependency order

USAGE:
  ds, err := factory.LoadFile("budget.json")
  err = ds.Import(ctx, store)

SEE ALSO:
  - demo.go: Built-in demo datasets
  - engine/types.go: Record definitions
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/planner"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DatasetJSON is the JSON representation of a whole budget.
type DatasetJSON struct {
	Scenarios    []ScenarioJSON    `json:"scenarios"`
	Categories   []CategoryJSON    `json:"categories,omitempty"`
	Goals        []GoalJSON        `json:"goals,omitempty"`
	Rules        []RuleJSON        `json:"rules"`
	Transactions []TransactionJSON `json:"transactions,omitempty"`
	Anchors      []AnchorJSON      `json:"anchors,omitempty"`
}

type ScenarioJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}

type CategoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GoalJSON struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Target             Money            `json:"target"`
	Deadline           string           `json:"deadline,omitempty"`
	AnnualInterestRate string           `json:"annual_interest_rate,omitempty"` // percent
	RateSchedule       []RateChangeJSON `json:"rate_schedule,omitempty"`
}

type RateChangeJSON struct {
	EffectiveDate string `json:"effective_date"`
	AnnualRate    string `json:"annual_rate"`
}

// RuleJSON is a rule as written by a person.
type RuleJSON struct {
	ID             string  `json:"id,omitempty"`
	Scenario       string  `json:"scenario"`
	Kind           string  `json:"kind"`
	Amount         Money   `json:"amount"`
	Cadence        string  `json:"cadence"`
	DayOfWeek      Weekday `json:"day_of_week,omitempty"`
	DayOfMonth     int     `json:"day_of_month,omitempty"`
	MonthOfQuarter int     `json:"month_of_quarter,omitempty"`
	MonthOfYear    Month   `json:"month_of_year,omitempty"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	Category       string  `json:"category,omitempty"`
	Goal           string  `json:"goal,omitempty"`
	Source         string  `json:"source,omitempty"`
	Description    string  `json:"description,omitempty"`
	Lineage        string  `json:"lineage,omitempty"`
}

type TransactionJSON struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category,omitempty"`
	Goal        string `json:"goal,omitempty"`
	Description string `json:"description,omitempty"`
}

type AnchorJSON struct {
	Date    string `json:"date"`
	Balance Money  `json:"balance"`
	Goal    string `json:"goal,omitempty"`
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is a parsed, validated budget ready to import.
type Dataset struct {
	Scenarios    []engine.Scenario
	Categories   []engine.Category
	Goals        []engine.SavingsGoal
	Rules        []engine.Rule
	Transactions []engine.Transaction
	Anchors      []engine.BalanceAnchor
}

// ParseDataset parses and validates a JSON dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var dj DatasetJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	return FromJSON(dj)
}

// LoadFile reads and parses a dataset file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// FromJSON converts a DatasetJSON into engine records.
func FromJSON(dj DatasetJSON) (*Dataset, error) {
	ds := &Dataset{}

	for _, sj := range dj.Scenarios {
		ds.Scenarios = append(ds.Scenarios, sj.Scenario())
	}
	for _, cj := range dj.Categories {
		ds.Categories = append(ds.Categories, engine.Category{ID: engine.CategoryID(orNewID(cj.ID)), Name: cj.Name})
	}
	for _, gj := range dj.Goals {
		g, err := gj.Goal()
		if err != nil {
			return nil, err
		}
		ds.Goals = append(ds.Goals, g)
	}
	for i, rj := range dj.Rules {
		if rj.Scenario == "" && len(ds.Scenarios) == 1 {
			rj.Scenario = string(ds.Scenarios[0].ID)
		}
		r, err := rj.Rule()
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		ds.Rules = append(ds.Rules, r)
	}
	for i, tj := range dj.Transactions {
		tx, err := tj.Transaction()
		if err != nil {
			return nil, fmt.Errorf("transactions[%d]: %w", i, err)
		}
		ds.Transactions = append(ds.Transactions, tx)
	}
	for i, aj := range dj.Anchors {
		a, err := aj.Anchor()
		if err != nil {
			return nil, fmt.Errorf("anchors[%d]: %w", i, err)
		}
		ds.Anchors = append(ds.Anchors, a)
	}

	// Anchor uniqueness is checked up front so a bad file imports nothing
	if _, err := engine.NewAnchorSet(ds.Anchors); err != nil {
		return nil, err
	}
	return ds, nil
}

// Import writes the dataset through w. Scenarios go first so rules can
// reference them.
func (ds *Dataset) Import(ctx context.Context, w planner.Writer) error {
	for _, s := range ds.Scenarios {
		if err := w.SaveScenario(ctx, s); err != nil {
			return fmt.Errorf("saving scenario %s: %w", s.ID, err)
		}
	}
	for _, c := range ds.Categories {
		if err := w.SaveCategory(ctx, c); err != nil {
			return fmt.Errorf("saving category %s: %w", c.ID, err)
		}
	}
	for _, g := range ds.Goals {
		if err := w.SaveSavingsGoal(ctx, g); err != nil {
			return fmt.Errorf("saving goal %s: %w", g.ID, err)
		}
	}
	for _, r := range ds.Rules {
		if err := w.SaveRule(ctx, r); err != nil {
			return fmt.Errorf("saving rule %s: %w", r.ID, err)
		}
	}
	for _, tx := range ds.Transactions {
		if err := w.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("appending transaction %s: %w", tx.ID, err)
		}
	}
	for _, a := range ds.Anchors {
		if err := w.SaveAnchor(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// RECORD CONVERSION
// =============================================================================

func (sj ScenarioJSON) Scenario() engine.Scenario {
	return engine.Scenario{ID: engine.ScenarioID(orNewID(sj.ID)), Name: sj.Name, IsDefault: sj.Default}
}

func (gj GoalJSON) Goal() (engine.SavingsGoal, error) {
	g := engine.SavingsGoal{
		ID:                engine.GoalID(orNewID(gj.ID)),
		Name:              gj.Name,
		TargetAmountCents: gj.Target.Cents(),
	}
	var err error
	if g.Deadline, err = parseOptionalDate("deadline", gj.Deadline); err != nil {
		return g, err
	}
	if g.AnnualInterestRate, err = parseRate(gj.AnnualInterestRate); err != nil {
		return g, err
	}
	for _, rc := range gj.RateSchedule {
		eff, err := engine.ParseDate(rc.EffectiveDate)
		if err != nil {
			return g, fmt.Errorf("goal %s: invalid effective_date: %w", g.ID, err)
		}
		rate, err := parseRate(rc.AnnualRate)
		if err != nil {
			return g, err
		}
		g.InterestRateSchedule = append(g.InterestRateSchedule, engine.RateChange{EffectiveDate: eff, AnnualRate: rate})
	}
	return g, nil
}

// Rule converts and validates a rule.
func (rj RuleJSON) Rule() (engine.Rule, error) {
	r := engine.Rule{
		ID:             engine.RuleID(orNewID(rj.ID)),
		ScenarioID:     engine.ScenarioID(rj.Scenario),
		CategoryID:     engine.CategoryID(rj.Category),
		SavingsGoalID:  engine.GoalID(rj.Goal),
		SourceID:       rj.Source,
		Description:    rj.Description,
		LineageID:      rj.Lineage,
		Kind:           engine.RuleKind(strings.ToLower(rj.Kind)),
		AmountCents:    rj.Amount.Cents(),
		Cadence:        engine.Cadence(strings.ToLower(rj.Cadence)),
		DayOfWeek:      time.Weekday(rj.DayOfWeek),
		DayOfMonth:     rj.DayOfMonth,
		MonthOfQuarter: rj.MonthOfQuarter,
		MonthOfYear:    time.Month(rj.MonthOfYear),
	}
	if r.ScenarioID == "" {
		return r, &engine.RuleError{RuleID: r.ID, Field: "scenario", Message: "required"}
	}

	var err error
	if r.StartDate, err = parseOptionalDate("start_date", rj.StartDate); err != nil {
		return r, &engine.RuleError{RuleID: r.ID, Field: "start_date", Message: err.Error()}
	}
	if r.EndDate, err = parseOptionalDate("end_date", rj.EndDate); err != nil {
		return r, &engine.RuleError{RuleID: r.ID, Field: "end_date", Message: err.Error()}
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// Transaction converts a ledger entry.
func (tj TransactionJSON) Transaction() (engine.Transaction, error) {
	date, err := engine.ParseDate(tj.Date)
	if err != nil {
		return engine.Transaction{}, &InputError{Field: "date", Err: err}
	}
	typ := engine.TransactionType(strings.ToLower(tj.Type))
	if !typ.Valid() {
		return engine.Transaction{}, &InputError{Field: "type", Err: fmt.Errorf("unknown transaction type %q", tj.Type)}
	}
	if tj.Amount.IsNegative() {
		return engine.Transaction{}, &InputError{Field: "amount", Err: fmt.Errorf("must be >= 0")}
	}
	return engine.Transaction{
		ID:            engine.TransactionID(orNewID(tj.ID)),
		Date:          date,
		Type:          typ,
		AmountCents:   tj.Amount.Cents(),
		CategoryID:    engine.CategoryID(tj.Category),
		SavingsGoalID: engine.GoalID(tj.Goal),
		Description:   tj.Description,
	}, nil
}

// Anchor converts a balance anchor. Balances may be negative (overdrawn).
func (aj AnchorJSON) Anchor() (engine.BalanceAnchor, error) {
	date, err := engine.ParseDate(aj.Date)
	if err != nil {
		return engine.BalanceAnchor{}, &InputError{Field: "date", Err: err}
	}
	return engine.BalanceAnchor{
		Date:          date,
		BalanceCents:  aj.Balance.Cents(),
		SavingsGoalID: engine.GoalID(aj.Goal),
	}, nil
}

// InputError is a malformed field in hand-written input.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// =============================================================================
// FLEXIBLE SCALARS
// =============================================================================

// Money is a dollar amount written as a JSON string or number.
type Money struct {
	decimal.Decimal
}

// Dollars builds Money from a decimal string; it panics on bad input.
func Dollars(s string) Money {
	return Money{decimal.RequireFromString(s)}
}

// Cents rounds to whole cents, half away from zero.
func (m Money) Cents() engine.Cents {
	return engine.CentsFromDecimal(m.Shift(2))
}

// ParseOverrides builds a what-if overlay from dollar amounts keyed by rule
// or category ID, e.g. {"fun": "150"}. Amounts must be >= 0.
func ParseOverrides(pairs map[string]string) (engine.Overlay, error) {
	var overlay engine.Overlay
	for _, key := range slices.Sorted(maps.Keys(pairs)) {
		amount, err := decimal.NewFromString(strings.TrimSpace(pairs[key]))
		if err != nil || amount.IsNegative() {
			return engine.Overlay{}, &InputError{
				Field: "override " + key,
				Err:   fmt.Errorf("want a dollar amount >= 0, got %q", pairs[key]),
			}
		}
		overlay = overlay.With(key, Money{amount}.Cents())
	}
	return overlay, nil
}

// Weekday accepts "friday", "fri" or 0-6.
type Weekday int

func (w *Weekday) UnmarshalJSON(data []byte) error {
	n, err := nameOrNumber(data, weekdayNames)
	if err != nil {
		return fmt.Errorf("day_of_week: %w", err)
	}
	*w = Weekday(n)
	return nil
}

// Month accepts "july", "jul" or 1-12.
type Month int

func (m *Month) UnmarshalJSON(data []byte) error {
	n, err := nameOrNumber(data, monthNames)
	if err != nil {
		return fmt.Errorf("month_of_year: %w", err)
	}
	*m = Month(n)
	return nil
}

var weekdayNames = map[string]int{}
var monthNames = map[string]int{}

func init() {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		weekdayNames[name] = int(d)
		weekdayNames[name[:3]] = int(d)
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = int(m)
		monthNames[name[:3]] = int(m)
	}
}

func nameOrNumber(data []byte, names map[string]int) (int, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return 0, fmt.Errorf("expected name or number, got %s", data)
		}
		return n, nil
	}
	if n, ok := names[strings.ToLower(s)]; ok {
		return n, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown name %q", s)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func parseOptionalDate(field, s string) (engine.Date, error) {
	if s == "" {
		return engine.Date{}, nil
	}
	d, err := engine.ParseDate(s)
	if err != nil {
		return engine.Date{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InputError{Field: "annual_interest_rate", Err: err}
	}
	if rate.IsNegative() {
		return decimal.Zero, &InputError{Field: "annual_interest_rate", Err: fmt.Errorf("must be >= 0")}
	}
	return rate, nil
}
