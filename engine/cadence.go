package engine

import (
	"iter"
	"slices"
	"time"
)

// =============================================================================
// CADENCE CALENDAR - Occurrence counting and dated occurrences
// =============================================================================
//
// Two questions, two answers:
//
//   CountOccurrences: "how many periods does this cadence touch in [s, e]?"
//     Cheap, day-agnostic. Used for amount totals.
//
//   OccurrenceDates: "on which days exactly does this rule land in [s, e]?"
//     Exact, uses the rule's day-of-week / day-of-month. Used for calendars.
//
// The two can disagree near range edges (a monthly rule due on the 31st
// counts once for Mar 1-15 but has no dated occurrence there). That is the
// intended trade of precision for a cheap total.

// CountOccurrences returns how many times a cadence recurs within
// [rangeStart, rangeEnd], both inclusive. Returns 0 when start > end.
func CountOccurrences(cadence Cadence, rangeStart, rangeEnd Date) int {
	if rangeStart.After(rangeEnd) {
		return 0
	}

	switch cadence {
	case CadenceWeekly:
		return ceilDiv(DaysBetween(rangeStart, rangeEnd)+1, 7)
	case CadenceFortnightly:
		return ceilDiv(DaysBetween(rangeStart, rangeEnd)+1, 14)
	case CadenceMonthly:
		return YearMonthOf(rangeStart).MonthsUntil(YearMonthOf(rangeEnd)) + 1
	case CadenceQuarterly:
		years := rangeEnd.Year() - rangeStart.Year()
		return years*4 + quarterIndex(rangeEnd.Month()) - quarterIndex(rangeStart.Month()) + 1
	case CadenceYearly:
		return rangeEnd.Year() - rangeStart.Year() + 1
	}
	return 0
}

// OccurrenceDates yields the exact dates the rule lands on within
// [rangeStart, rangeEnd]. The sequence is lazy, finite and can be ranged over
// any number of times. The rule's own validity window is NOT applied here;
// callers clamp the range first (see ExpandToForecasts).
func OccurrenceDates(rule Rule, rangeStart, rangeEnd Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if rangeStart.After(rangeEnd) {
			return
		}

		switch rule.Cadence {
		case CadenceWeekly:
			stepDays(rule.DayOfWeek, 7, rangeStart, rangeEnd, yield)
		case CadenceFortnightly:
			stepDays(rule.DayOfWeek, 14, rangeStart, rangeEnd, yield)
		case CadenceMonthly:
			stepMonths(YearMonthOf(rangeStart), 1, rule.dayOfMonth(), rangeStart, rangeEnd, yield)
		case CadenceQuarterly:
			first := YearMonth{Year: rangeStart.Year(), Month: quarterStart(rangeStart.Month())}
			stepMonths(first.Add(rule.MonthOfQuarter), 3, rule.dayOfMonth(), rangeStart, rangeEnd, yield)
		case CadenceYearly:
			first := YearMonth{Year: rangeStart.Year(), Month: rule.monthOfYear()}
			stepMonths(first, 12, rule.dayOfMonth(), rangeStart, rangeEnd, yield)
		}
	}
}

// CollectOccurrences materialises OccurrenceDates.
func CollectOccurrences(rule Rule, rangeStart, rangeEnd Date) []Date {
	return slices.Collect(OccurrenceDates(rule, rangeStart, rangeEnd))
}

// stepDays yields every step-th day starting at the first weekday match on or
// after start.
func stepDays(weekday time.Weekday, step int, start, end Date, yield func(Date) bool) {
	offset := (int(weekday) - int(start.Weekday()) + 7) % 7
	for d := start.AddDays(offset); !d.After(end); d = d.AddDays(step) {
		if !yield(d) {
			return
		}
	}
}

// stepMonths yields day-clamped dates every step months from first, skipping
// candidates before start and stopping at the first one past end.
func stepMonths(first YearMonth, step, day int, start, end Date, yield func(Date) bool) {
	for ym := first; ; ym = ym.Add(step) {
		d := NewDate(ym.Year, ym.Month, min(day, DaysInMonth(ym.Year, ym.Month)))
		if d.After(end) {
			return
		}
		if d.Before(start) {
			continue
		}
		if !yield(d) {
			return
		}
	}
}

func quarterIndex(m time.Month) int { return (int(m) - 1) / 3 }

func quarterStart(m time.Month) time.Month { return time.Month(quarterIndex(m)*3 + 1) }

func ceilDiv(a, b int) int { return (a + b - 1) / b }
