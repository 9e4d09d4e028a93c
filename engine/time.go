package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (this engine has no sub-day resolution)
// =============================================================================

// DateLayout is the ISO calendar-day layout used on every boundary.
const DateLayout = "2006-01-02"

// Date is a calendar day pinned to UTC midnight. The zero value means "absent"
// (an open rule window, a goal without a deadline).
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

// Today reads the wall clock. Only the outer layers (HTTP, CLI) call it; engine
// operations always take their "as of" date as a parameter.
func Today() Date { return DateOf(time.Now()) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t}, nil
}

// MustParseDate panics on malformed input. Intended for fixtures and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// AddMonths moves by whole months, clamping the day to the target month's
// length (Jan 31 + 1 month = Feb 28/29), unlike time.AddDate which overflows.
func (d Date) AddMonths(n int) Date {
	ym := YearMonthOf(d).Add(n)
	return NewDate(ym.Year, ym.Month, min(d.Day(), DaysInMonth(ym.Year, ym.Month)))
}

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// YEAR-MONTH - Calendar month key for aggregation
// =============================================================================

// YearMonthLayout is the "YYYY-MM" layout used for month keys.
const YearMonthLayout = "2006-01"

type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(d Date) YearMonth { return YearMonth{Year: d.Year(), Month: d.Month()} }

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(YearMonthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// index counts months from year 0 so month arithmetic is plain integer math.
func (ym YearMonth) index() int { return ym.Year*12 + int(ym.Month) - 1 }

func yearMonthFromIndex(i int) YearMonth {
	return YearMonth{Year: i / 12, Month: time.Month(i%12 + 1)}
}

func (ym YearMonth) Add(n int) YearMonth        { return yearMonthFromIndex(ym.index() + n) }
func (ym YearMonth) Before(o YearMonth) bool    { return ym.index() < o.index() }
func (ym YearMonth) After(o YearMonth) bool     { return ym.index() > o.index() }
func (ym YearMonth) MonthsUntil(o YearMonth) int { return o.index() - ym.index() }
func (ym YearMonth) Start() Date                { return StartOfMonth(ym.Year, ym.Month) }
func (ym YearMonth) End() Date                  { return EndOfMonth(ym.Year, ym.Month) }
func (ym YearMonth) Period() Period             { return Period{Start: ym.Start(), End: ym.End()} }
func (ym YearMonth) String() string             { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

func (ym YearMonth) MarshalJSON() ([]byte, error) { return json.Marshal(ym.String()) }

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns to - from in whole days (negative when to is earlier).
// Dates are UTC midnights, so the Unix difference is an exact multiple of a
// day and is not bounded by time.Duration's range.
func DaysBetween(from, to Date) int {
	return int((to.Time.Unix() - from.Time.Unix()) / secondsPerDay)
}

func StartOfYear(year int) Date                  { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date                    { return NewDate(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// DaysInMonth handles leap years via time normalisation (day 0 of next month).
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}
