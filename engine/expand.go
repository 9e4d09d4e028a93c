package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE EXPANDER - Rule + range -> total or dated forecasts
// =============================================================================

// ExpandForTotal returns the amount a rule contributes to [queryStart, queryEnd]
// after clamping to the rule's validity window.
func ExpandForTotal(rule Rule, queryStart, queryEnd Date) Cents {
	start, end, ok := rule.clampWindow(queryStart, queryEnd)
	if !ok {
		return 0
	}
	return rule.AmountCents * Cents(CountOccurrences(rule.Cadence, start, end))
}

// ExpandTotalsByKind sums ExpandForTotal over rules, bucketed by kind.
func ExpandTotalsByKind(rules []Rule, queryStart, queryEnd Date) KindTotals {
	var totals KindTotals
	for _, r := range rules {
		totals.Add(r.Kind, ExpandForTotal(r, queryStart, queryEnd))
	}
	return totals
}

// ExpandToForecasts places every rule's dated occurrences within the query
// range. Output is sorted by date; same-day forecasts keep rule input order.
func ExpandToForecasts(rules []Rule, queryStart, queryEnd Date) []Forecast {
	var out []Forecast
	for _, r := range rules {
		start, end, ok := r.clampWindow(queryStart, queryEnd)
		if !ok {
			continue
		}
		for d := range OccurrenceDates(r, start, end) {
			out = append(out, forecastFor(r, d))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func forecastFor(r Rule, d Date) Forecast {
	source := r.SourceID
	if source == "" {
		source = string(r.ID)
	}
	return Forecast{
		Date:          d,
		AmountCents:   r.AmountCents,
		Type:          r.Kind.TransactionType(),
		SourceID:      source,
		SourceType:    SourceRule,
		CategoryID:    r.CategoryID,
		SavingsGoalID: r.SavingsGoalID,
		Description:   r.Description,
	}
}

// Approximate occurrences per month. NOT calendar-exact: use ExpandForTotal
// with month boundaries wherever exact monthly totals matter.
var monthlyFactors = map[Cadence]decimal.Decimal{
	CadenceWeekly:      decimal.RequireFromString("4.33"),
	CadenceFortnightly: decimal.RequireFromString("2.17"),
	CadenceMonthly:     decimal.NewFromInt(1),
}

// Cadences longer than a month divide instead of multiplying by a rounded
// fraction.
var monthlyDivisors = map[Cadence]decimal.Decimal{
	CadenceQuarterly: decimal.NewFromInt(3),
	CadenceYearly:    decimal.NewFromInt(12),
}

// ToMonthlyEquivalent normalises an amount to an approximate monthly figure
// for cross-cadence comparison.
func ToMonthlyEquivalent(amount Cents, cadence Cadence) Cents {
	if divisor, ok := monthlyDivisors[cadence]; ok {
		return CentsFromDecimal(amount.Decimal().Div(divisor))
	}
	if factor, ok := monthlyFactors[cadence]; ok {
		return CentsFromDecimal(amount.Decimal().Mul(factor))
	}
	return 0
}
