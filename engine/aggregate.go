package engine

import (
	"sort"
)

// =============================================================================
// PERIOD AGGREGATOR - Per-month and per-day rollups for dashboards
// =============================================================================
//
// Actuals and forecasts never overlap: forecasts are filtered to
// date > today before they're bucketed, so a month that is half over shows
// actuals for the elapsed half and forecasts for the rest.

// FlowTotals are amounts bucketed by transaction type.
type FlowTotals struct {
	Income      Cents `json:"income"`
	Expenses    Cents `json:"expenses"`
	Savings     Cents `json:"savings"`
	Adjustments Cents `json:"adjustments"`
}

func (t *FlowTotals) add(typ TransactionType, amount Cents) {
	switch typ {
	case TxIncome:
		t.Income += amount
	case TxExpense:
		t.Expenses += amount
	case TxSavings:
		t.Savings += amount
	case TxAdjustment:
		t.Adjustments += amount
	}
}

// Surplus is income - expenses - savings. Adjustments are corrections, not
// cash flow, and are left out.
func (t FlowTotals) Surplus() Cents { return t.Income - t.Expenses - t.Savings }

// BalanceChange is the effect on global cash, adjustments included.
func (t FlowTotals) BalanceChange() Cents { return t.Surplus() + t.Adjustments }

// CategoryTotal is one (type, category) bucket of a month.
type CategoryTotal struct {
	Type       TransactionType `json:"type"`
	CategoryID CategoryID      `json:"category_id"`
	Actual     Cents           `json:"actual"`
	Forecast   Cents           `json:"forecast"`
}

// MonthSummary is one calendar month of a dashboard span.
type MonthSummary struct {
	Month    YearMonth   `json:"month"`
	State    PeriodState `json:"state"`
	Actual   FlowTotals  `json:"actual"`
	Forecast FlowTotals  `json:"forecast"`
	Planned  KindTotals  `json:"planned"`

	Categories []CategoryTotal `json:"categories"`

	Surplus           Cents `json:"surplus"`
	PlannedSurplus    Cents `json:"planned_surplus"`
	CumulativeSurplus Cents `json:"cumulative_surplus"`

	// Only set when the input carries a starting balance.
	OpeningBalance *Cents `json:"opening_balance,omitempty"`
	ClosingBalance *Cents `json:"closing_balance,omitempty"`
}

// AggregateInput spans whole calendar months From..To inclusive.
type AggregateInput struct {
	From         YearMonth
	To           YearMonth
	Today        Date
	Rules        []Rule
	Transactions []Transaction

	// StartingBalance is the global balance at the end of the day before
	// From. Optional.
	StartingBalance *Cents

	// Overlay previews what-if amounts. Forecasts take the override per
	// occurrence; Planned rescales each rule's monthly total.
	Overlay Overlay
}

// AggregateMonths rolls actuals and future forecasts up per month.
func AggregateMonths(in AggregateInput) []MonthSummary {
	if in.To.Before(in.From) {
		return nil
	}

	span := Period{Start: in.From.Start(), End: in.To.End()}
	forecasts := futureForecasts(in.Overlay.ApplyToRules(in.Rules), span, in.Today)

	type bucketKey struct {
		typ TransactionType
		cat CategoryID
	}

	months := make([]MonthSummary, 0, in.From.MonthsUntil(in.To)+1)
	index := make(map[YearMonth]int)
	buckets := make([]map[bucketKey]*CategoryTotal, 0, cap(months))

	for ym := in.From; !ym.After(in.To); ym = ym.Add(1) {
		period := ym.Period()
		planned := plannedTotals(in.Rules, in.Overlay, period)
		index[ym] = len(months)
		months = append(months, MonthSummary{
			Month:          ym,
			State:          period.StateAt(in.Today),
			Planned:        planned,
			PlannedSurplus: planned.Net(),
		})
		buckets = append(buckets, make(map[bucketKey]*CategoryTotal))
	}

	bucket := func(i int, typ TransactionType, cat CategoryID) *CategoryTotal {
		if cat == "" {
			cat = UncategorizedKey
		}
		key := bucketKey{typ, cat}
		b, ok := buckets[i][key]
		if !ok {
			b = &CategoryTotal{Type: typ, CategoryID: cat}
			buckets[i][key] = b
		}
		return b
	}

	for _, tx := range in.Transactions {
		if !span.Contains(tx.Date) {
			continue
		}
		i := index[YearMonthOf(tx.Date)]
		months[i].Actual.add(tx.Type, tx.AmountCents)
		bucket(i, tx.Type, tx.CategoryID).Actual += tx.AmountCents
	}
	for _, f := range forecasts {
		i := index[YearMonthOf(f.Date)]
		months[i].Forecast.add(f.Type, f.AmountCents)
		bucket(i, f.Type, f.CategoryID).Forecast += f.AmountCents
	}

	var cumulative Cents
	balance := in.StartingBalance
	for i := range months {
		m := &months[i]
		m.Categories = sortedBuckets(buckets[i])

		change := m.Actual.BalanceChange()
		if m.State == PeriodPast {
			m.Surplus = m.Actual.Surplus()
		} else {
			m.Surplus = m.Actual.Surplus() + m.Forecast.Surplus()
			change += m.Forecast.BalanceChange()
		}
		cumulative += m.Surplus
		m.CumulativeSurplus = cumulative

		if balance != nil {
			opening := *balance
			closing := opening + change
			m.OpeningBalance = &opening
			m.ClosingBalance = &closing
			balance = &closing
		}
	}
	return months
}

func sortedBuckets[K comparable](m map[K]*CategoryTotal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// plannedTotals expands each rule over p and rescales the per-rule totals
// by the overlay before summing them by kind.
func plannedTotals(rules []Rule, overlay Overlay, p Period) KindTotals {
	perRule := make(map[RuleID]Cents, len(rules))
	for _, r := range rules {
		perRule[r.ID] = ExpandForTotal(r, p.Start, p.End)
	}
	if !overlay.IsEmpty() {
		perRule = overlay.RescaleTotals(rules, perRule)
	}

	var totals KindTotals
	for _, r := range rules {
		totals.Add(r.Kind, perRule[r.ID])
	}
	return totals
}

// futureForecasts expands rules over span and keeps only date > today.
func futureForecasts(rules []Rule, span Period, today Date) []Forecast {
	all := ExpandToForecasts(rules, span.Start, span.End)
	out := all[:0]
	for _, f := range all {
		if f.Date.After(today) {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// DAILY CASH FLOW
// =============================================================================

// DaySummary is one day of a short-range cash-flow view.
type DaySummary struct {
	Date     Date       `json:"date"`
	Actual   FlowTotals `json:"actual"`
	Forecast FlowTotals `json:"forecast"`

	// Due lists every rule occurrence on this day, today's included.
	Due []Forecast `json:"due,omitempty"`

	Change  Cents  `json:"change"`
	Balance *Cents `json:"balance,omitempty"`
}

// DailyInput spans [Period.Start, Period.End].
type DailyInput struct {
	Period       Period
	Today        Date
	Rules        []Rule
	Transactions []Transaction

	// StartingBalance is the global balance at the end of the day before
	// Period.Start. Optional.
	StartingBalance *Cents
}

// DailyCashFlow returns one summary per day of the period, gaps included,
// oldest first.
func DailyCashFlow(in DailyInput) []DaySummary {
	if in.Period.Validate() != nil {
		return nil
	}

	days := make([]DaySummary, 0, in.Period.LengthDays())
	for _, d := range in.Period.Days() {
		days = append(days, DaySummary{Date: d})
	}
	at := func(d Date) *DaySummary { return &days[DaysBetween(in.Period.Start, d)] }

	for _, tx := range in.Transactions {
		if in.Period.Contains(tx.Date) {
			at(tx.Date).Actual.add(tx.Type, tx.AmountCents)
		}
	}
	for _, f := range ExpandToForecasts(in.Rules, in.Period.Start, in.Period.End) {
		day := at(f.Date)
		day.Due = append(day.Due, f)
		if f.Date.After(in.Today) {
			day.Forecast.add(f.Type, f.AmountCents)
		}
	}

	balance := in.StartingBalance
	for i := range days {
		day := &days[i]
		day.Change = day.Actual.BalanceChange() + day.Forecast.BalanceChange()
		if balance != nil {
			next := *balance + day.Change
			day.Balance = &next
			balance = &next
		}
	}
	return days
}
