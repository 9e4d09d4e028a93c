package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SAVINGS GOAL PROJECTOR - When will the goal be reached?
// =============================================================================
//
// Month-by-month simulation:
//
//   balance += avgMonthlyContribution
//   balance += balance * annualRate / 12 / 100
//
// capped at MaxProjectionMonths. Unreachable and too-far goals return nil;
// that's a business answer, not an error.

// MaxProjectionMonths is the simulation horizon (50 years).
const MaxProjectionMonths = 600

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// GoalProjection is when a goal is expected to be reached.
type GoalProjection struct {
	Month      YearMonth `json:"month"`
	MonthsAway int       `json:"months_away"`
	Reached    bool      `json:"reached"`
}

// ProjectCompletion simulates monthly contributions plus compounding from
// the month from. Returns nil when the goal can't be reached by the current
// plan or lies beyond MaxProjectionMonths.
func ProjectCompletion(current, target, avgMonthly Cents, annualRate decimal.Decimal, from YearMonth) *GoalProjection {
	if current >= target {
		return &GoalProjection{Month: from, MonthsAway: 0, Reached: true}
	}
	if avgMonthly <= 0 && !annualRate.IsPositive() {
		return nil
	}

	monthlyRate := monthlyRate(annualRate)
	balance := current.Decimal()
	goal := target.Decimal()
	contribution := avgMonthly.Decimal()

	for months := 1; months <= MaxProjectionMonths; months++ {
		balance = balance.Add(contribution)
		balance = balance.Add(balance.Mul(monthlyRate))
		if balance.GreaterThanOrEqual(goal) {
			return &GoalProjection{Month: from.Add(months), MonthsAway: months}
		}
	}
	return nil
}

func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(monthsPerYear).Div(hundred)
}

// AverageMonthlyContribution is the empirical monthly inflow to a goal over a
// sample of actuals and forecasts: (Σ actual + Σ forecast) / monthCount.
// Withdrawals count negatively. Interest forecasts are excluded since the
// projection compounds separately.
func AverageMonthlyContribution(actuals []Transaction, forecasts []Forecast, goalID GoalID, monthCount int) Cents {
	if monthCount <= 0 {
		return 0
	}

	scope := GoalScope(goalID)
	var sum Cents
	for _, tx := range actuals {
		if tx.SavingsGoalID == goalID {
			sum += SignedAmount(tx, scope)
		}
	}
	for _, f := range forecasts {
		if f.SavingsGoalID != goalID || f.SourceType == SourceInterest {
			continue
		}
		sum += SignedAmount(Transaction{Type: f.Type, AmountCents: f.AmountCents, SavingsGoalID: f.SavingsGoalID}, scope)
	}
	return CentsFromDecimal(sum.Decimal().Div(decimal.NewFromInt(int64(monthCount))))
}

// RateOn returns the goal's annual rate in effect on d: the latest schedule
// entry on or before d, else the flat AnnualInterestRate.
func RateOn(goal SavingsGoal, d Date) decimal.Decimal {
	rate := goal.AnnualInterestRate
	var latest Date
	for _, change := range goal.InterestRateSchedule {
		if change.EffectiveDate.After(d) {
			continue
		}
		if latest.IsZero() || change.EffectiveDate.After(latest) {
			latest = change.EffectiveDate
			rate = change.AnnualRate
		}
	}
	return rate
}

// RequiredMonthlyContribution is the flat monthly amount (interest ignored)
// that reaches target by the deadline month, counted from the month after
// from. ok is false when the deadline has already passed.
func RequiredMonthlyContribution(current, target Cents, from YearMonth, deadline Date) (Cents, bool) {
	if current >= target {
		return 0, true
	}
	months := from.MonthsUntil(YearMonthOf(deadline))
	if months <= 0 {
		return 0, false
	}
	shortfall := int64(target - current)
	return Cents(ceilDiv64(shortfall, int64(months))), true
}

func ceilDiv64(a, b int64) int64 { return (a + b - 1) / b }

// =============================================================================
// GOAL PROGRESS - Everything a goal card shows
// =============================================================================

type GoalProgress struct {
	GoalID          GoalID          `json:"goal_id"`
	Name            string          `json:"name"`
	Target          Cents           `json:"target"`
	Balance         Cents           `json:"balance"`
	Remaining       Cents           `json:"remaining"`
	PercentComplete decimal.Decimal `json:"percent_complete"`
	AvgMonthly      Cents           `json:"avg_monthly"`
	AnnualRate      decimal.Decimal `json:"annual_rate"`
	Projection      *GoalProjection `json:"projection"`
	Deadline        Date            `json:"deadline"`
	Required        *Cents          `json:"required_monthly,omitempty"`
	OnTrack         bool            `json:"on_track"`
}

// NewGoalProgress projects goal from balance and avgMonthly as of asOf.
//
// OnTrack: reachable at all, and no later than the deadline month when a
// deadline is set.
func NewGoalProgress(goal SavingsGoal, balance, avgMonthly Cents, asOf Date) GoalProgress {
	from := YearMonthOf(asOf)
	rate := RateOn(goal, asOf)

	progress := GoalProgress{
		GoalID:     goal.ID,
		Name:       goal.Name,
		Target:     goal.TargetAmountCents,
		Balance:    balance,
		Remaining:  max(0, goal.TargetAmountCents-balance),
		AvgMonthly: avgMonthly,
		AnnualRate: rate,
		Deadline:   goal.Deadline,
		Projection: ProjectCompletion(balance, goal.TargetAmountCents, avgMonthly, rate, from),
	}
	if goal.TargetAmountCents > 0 {
		progress.PercentComplete = balance.Decimal().Mul(hundred).Div(goal.TargetAmountCents.Decimal()).Round(1)
	}

	progress.OnTrack = progress.Projection != nil
	if !goal.Deadline.IsZero() {
		if required, ok := RequiredMonthlyContribution(balance, goal.TargetAmountCents, from, goal.Deadline); ok {
			progress.Required = &required
		}
		if progress.Projection != nil && progress.Projection.Month.After(YearMonthOf(goal.Deadline)) {
			progress.OnTrack = false
		}
	}
	return progress
}

// =============================================================================
// INTEREST FORECASTS
// =============================================================================

// InterestForecasts places month-end interest on a goal over [start, end],
// compounding monthly at the rate scheduled for each month end. Planned
// contributions (forecasts tagged with the goal) are added in the month they
// fall in before that month's interest is computed.
func InterestForecasts(goal SavingsGoal, startingBalance Cents, contributions []Forecast, start, end Date) []Forecast {
	if start.After(end) {
		return nil
	}

	scope := GoalScope(goal.ID)
	balance := startingBalance
	var out []Forecast

	for ym := YearMonthOf(start); !ym.After(YearMonthOf(end)); ym = ym.Add(1) {
		month := ym.Period()
		for _, f := range contributions {
			if f.SavingsGoalID != goal.ID || f.SourceType == SourceInterest || !month.Contains(f.Date) {
				continue
			}
			balance += SignedAmount(Transaction{Type: f.Type, AmountCents: f.AmountCents, SavingsGoalID: f.SavingsGoalID}, scope)
		}

		monthEnd := ym.End()
		interest := CentsFromDecimal(balance.Decimal().Mul(monthlyRate(RateOn(goal, monthEnd))))
		if interest <= 0 {
			continue
		}
		balance += interest
		if monthEnd.After(end) {
			break
		}
		out = append(out, Forecast{
			Date:          monthEnd,
			AmountCents:   interest,
			Type:          TxIncome,
			SourceID:      string(goal.ID),
			SourceType:    SourceInterest,
			SavingsGoalID: goal.ID,
			Description:   goal.Name + " interest",
		})
	}
	return out
}
