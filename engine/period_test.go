package engine_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/engine"
)

func TestDate_AddMonthsClampsDay(t *testing.T) {
	assert.Equal(t, d("2024-02-29"), d("2024-01-31").AddMonths(1))
	assert.Equal(t, d("2023-02-28"), d("2023-01-31").AddMonths(1))
	assert.Equal(t, d("2023-11-30"), d("2024-01-30").AddMonths(-2))
}

func TestDate_JSONNullIsZero(t *testing.T) {
	var rule engine.Rule
	require.NoError(t, json.Unmarshal([]byte(`{"start_date":null,"end_date":"2024-03-01"}`), &rule))

	assert.True(t, rule.StartDate.IsZero())
	assert.Equal(t, d("2024-03-01"), rule.EndDate)

	_, err := engine.ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestDaysBetween_SpansCenturies(t *testing.T) {
	// 400 Gregorian years hold exactly 146097 days
	assert.Equal(t, 146097, engine.DaysBetween(d("1700-01-01"), d("2100-01-01")))
	assert.Equal(t, -146097, engine.DaysBetween(d("2100-01-01"), d("1700-01-01")))
	assert.Equal(t, 0, engine.DaysBetween(d("2024-02-29"), d("2024-02-29")))

	p := engine.Period{Start: d("1700-01-01"), End: d("2100-01-01")}
	assert.Equal(t, 146098, p.LengthDays())
	assert.Equal(t, 146098, p.ElapsedDays(d("2200-01-01")))
}

func TestPeriod_StateAndElapsed(t *testing.T) {
	p := january()

	assert.Equal(t, engine.PeriodFuture, p.StateAt(d("2023-12-31")))
	assert.Equal(t, engine.PeriodCurrent, p.StateAt(d("2024-01-01")))
	assert.Equal(t, engine.PeriodCurrent, p.StateAt(d("2024-01-31")))
	assert.Equal(t, engine.PeriodPast, p.StateAt(d("2024-02-01")))

	assert.Equal(t, 0, p.ElapsedDays(d("2023-12-31")))
	assert.Equal(t, 1, p.ElapsedDays(d("2024-01-01")))
	assert.Equal(t, 31, p.ElapsedDays(d("2024-03-01")))
}

func TestPeriod_ValidateMonthsIntersect(t *testing.T) {
	p := engine.Period{Start: d("2023-12-15"), End: d("2024-02-01")}
	require.NoError(t, p.Validate())

	assert.Equal(t, []engine.YearMonth{
		{Year: 2023, Month: time.December},
		{Year: 2024, Month: time.January},
		{Year: 2024, Month: time.February},
	}, p.Months())

	overlap, ok := p.Intersect(january())
	require.True(t, ok)
	assert.Equal(t, january(), overlap)

	_, ok = p.Intersect(engine.Period{Start: d("2025-01-01"), End: d("2025-01-02")})
	assert.False(t, ok)

	assert.ErrorIs(t, engine.Period{Start: d("2024-02-01"), End: d("2024-01-01")}.Validate(), engine.ErrInvalidPeriod)
}

func TestPeriodConfig_PeriodFor(t *testing.T) {
	tests := []struct {
		name   string
		config engine.PeriodConfig
		date   string
		start  string
		end    string
	}{
		{"calendar month", engine.PeriodConfig{Type: engine.PeriodCalendarMonth}, "2024-02-10", "2024-02-01", "2024-02-29"},
		{"calendar quarter", engine.PeriodConfig{Type: engine.PeriodCalendarQuarter}, "2024-05-20", "2024-04-01", "2024-06-30"},
		{"calendar year", engine.PeriodConfig{Type: engine.PeriodCalendarYear}, "2024-05-20", "2024-01-01", "2024-12-31"},
		{"pay cycle before start day", engine.PeriodConfig{Type: engine.PeriodPayCycle, StartDay: 15}, "2024-03-10", "2024-02-15", "2024-03-14"},
		{"pay cycle on start day", engine.PeriodConfig{Type: engine.PeriodPayCycle, StartDay: 15}, "2024-03-15", "2024-03-15", "2024-04-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.PeriodFor(d(tt.date))
			assert.Equal(t, engine.Period{Start: d(tt.start), End: d(tt.end)}, got)
		})
	}
}

func TestPeriodConfig_NextAndPrevious(t *testing.T) {
	config := engine.PeriodConfig{Type: engine.PeriodPayCycle, StartDay: 25}
	p := config.PeriodFor(d("2024-01-30"))

	assert.Equal(t, engine.Period{Start: d("2024-02-25"), End: d("2024-03-24")}, config.NextPeriod(p))
	assert.Equal(t, engine.Period{Start: d("2023-12-25"), End: d("2024-01-24")}, config.PreviousPeriod(p))
}
