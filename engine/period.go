package engine

import "time"

// =============================================================================
// PERIOD - The window every projection is computed for
// =============================================================================

// Period is an inclusive calendar range [Start, End].
//
// Examples:
//   - A budget month: Mar 1 - Mar 31
//   - A pay cycle starting on the 15th: Mar 15 - Apr 14
//   - A dashboard span: Jan 1 - Dec 31
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return &PeriodError{Period: p}
	}
	return nil
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// LengthDays counts the days in the period, both ends included.
func (p Period) LengthDays() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Months returns every calendar month the period touches, in order.
func (p Period) Months() []YearMonth {
	var months []YearMonth
	last := YearMonthOf(p.End)
	for ym := YearMonthOf(p.Start); !ym.After(last); ym = ym.Add(1) {
		months = append(months, ym)
	}
	return months
}

// Intersect clamps p to other. ok is false when they do not overlap.
func (p Period) Intersect(other Period) (Period, bool) {
	out := Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}
	return out, !out.End.Before(out.Start)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD STATE - Where "today" sits relative to a period
// =============================================================================

type PeriodState string

const (
	PeriodPast    PeriodState = "past"
	PeriodCurrent PeriodState = "current"
	PeriodFuture  PeriodState = "future"
)

// StateAt classifies the period relative to asOf.
func (p Period) StateAt(asOf Date) PeriodState {
	switch {
	case asOf.Before(p.Start):
		return PeriodFuture
	case asOf.After(p.End):
		return PeriodPast
	default:
		return PeriodCurrent
	}
}

// EffectiveDate is the last day for which actuals are counted: asOf for the
// current period, Start for a wholly future one and End for a wholly past one.
func (p Period) EffectiveDate(asOf Date) Date {
	switch p.StateAt(asOf) {
	case PeriodFuture:
		return p.Start
	case PeriodPast:
		return p.End
	default:
		return asOf
	}
}

// ElapsedDays counts days of the period that have happened by asOf.
func (p Period) ElapsedDays(asOf Date) int {
	switch p.StateAt(asOf) {
	case PeriodFuture:
		return 0
	case PeriodPast:
		return p.LengthDays()
	default:
		return DaysBetween(p.Start, asOf) + 1
	}
}

// =============================================================================
// PERIOD CONFIG - Which budget period a date falls into
// =============================================================================

// PeriodType defines how budget periods are cut.
type PeriodType string

const (
	PeriodCalendarMonth   PeriodType = "calendar_month"   // 1st - last day of month
	PeriodCalendarQuarter PeriodType = "calendar_quarter" // Jan-Mar, Apr-Jun, ...
	PeriodCalendarYear    PeriodType = "calendar_year"    // Jan 1 - Dec 31
	PeriodPayCycle        PeriodType = "pay_cycle"        // monthly, starting on StartDay
)

// PeriodConfig defines how to calculate the budget period around a date.
type PeriodConfig struct {
	Type PeriodType `json:"type" toml:"type"`

	// For pay cycles: day of month (1-28) the cycle starts on.
	StartDay int `json:"start_day,omitempty" toml:"start_day"`
}

// PeriodFor returns the period that contains the given date.
func (pc PeriodConfig) PeriodFor(date Date) Period {
	switch pc.Type {
	case PeriodCalendarQuarter:
		first := time.Month((int(date.Month())-1)/3*3 + 1)
		start := StartOfMonth(date.Year(), first)
		return Period{Start: start, End: start.AddMonths(3).AddDays(-1)}

	case PeriodCalendarYear:
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}

	case PeriodPayCycle:
		return pc.payCyclePeriod(date)

	default:
		return YearMonthOf(date).Period()
	}
}

func (pc PeriodConfig) payCyclePeriod(date Date) Period {
	day := pc.StartDay
	if day < 1 || day > 28 {
		day = 1
	}
	start := NewDate(date.Year(), date.Month(), day)
	// Before this month's start day we're still in the previous cycle
	if date.Day() < day {
		start = start.AddMonths(-1)
	}
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

// NextPeriod returns the period following p under the same config.
func (pc PeriodConfig) NextPeriod(p Period) Period {
	return pc.PeriodFor(p.End.AddDays(1))
}

// PreviousPeriod returns the period before p under the same config.
func (pc PeriodConfig) PreviousPeriod(p Period) Period {
	return pc.PeriodFor(p.Start.AddDays(-1))
}
