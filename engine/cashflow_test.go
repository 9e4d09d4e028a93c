package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func january() engine.Period {
	return engine.Period{Start: d("2024-01-01"), End: d("2024-01-31")}
}

func januaryPlan() []engine.Rule {
	rent := monthly("rent", engine.KindExpense, 200000)
	rent.CategoryID = "rent"
	food := monthly("groceries", engine.KindBudget, 60000)
	food.CategoryID = "groceries"
	save := monthly("save", engine.KindSavings, 50000)
	save.SavingsGoalID = "house"
	return []engine.Rule{monthly("salary", engine.KindIncome, 500000), rent, food, save}
}

func januaryActuals() []engine.Transaction {
	rent := tx("2024-01-01", engine.TxExpense, 200000)
	rent.CategoryID = "rent"
	food := tx("2024-01-10", engine.TxExpense, 45000)
	food.CategoryID = "groceries"
	late := tx("2024-01-20", engine.TxExpense, 9999)
	late.CategoryID = "groceries"
	return []engine.Transaction{
		tx("2024-01-01", engine.TxIncome, 500000),
		rent,
		goalTx("2024-01-02", engine.TxSavings, 50000, "house"),
		food,
		late,
	}
}

func januaryInput(t *testing.T, asOf string) engine.CashFlowInput {
	return engine.CashFlowInput{
		Period:       january(),
		AsOf:         d(asOf),
		Rules:        januaryPlan(),
		Transactions: januaryActuals(),
		Anchors:      anchorSet(t, engine.BalanceAnchor{Date: d("2023-12-31"), BalanceCents: 100000}),
	}
}

// =============================================================================
// CURRENT PERIOD
// =============================================================================

func TestProjectCashFlow_CurrentPeriodPlanVsPace(t *testing.T) {
	// GIVEN: January, as of Jan 15 (15 of 31 days elapsed), 450.00 of a 600.00
	//        grocery budget spent, rent and savings already paid
	// WHEN: Projecting the period
	// THEN: Plan ends at 2900.00, pace (groceries extrapolated to 930.00)
	//       ends at 2570.00 and the gap exceeds the 10% tolerance

	proj, err := engine.ProjectCashFlow(januaryInput(t, "2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, engine.PeriodCurrent, proj.State)
	assert.Equal(t, d("2024-01-15"), proj.EffectiveDate)
	assert.Equal(t, 15, proj.ElapsedDays)
	assert.Equal(t, 31, proj.TotalDays)

	assert.Equal(t, engine.KindTotals{Income: 500000, FixedExpenses: 200000, VariableExpenses: 60000, Savings: 50000}, proj.Expected)
	assert.Equal(t, engine.Cents(500000), proj.Actual.Income)
	assert.Equal(t, engine.Cents(200000), proj.Actual.FixedExpenses)
	assert.Equal(t, engine.Cents(45000), proj.Actual.VariableExpenses)
	assert.Equal(t, engine.Cents(50000), proj.Actual.Savings)

	require.NotNil(t, proj.Remaining)
	assert.Equal(t, engine.KindTotals{VariableExpenses: 15000}, *proj.Remaining)

	require.NotNil(t, proj.StartingBalance)
	assert.Equal(t, engine.Cents(100000), *proj.StartingBalance)
	assert.False(t, proj.StartingBalanceDerived)
	require.NotNil(t, proj.CurrentBalance)
	assert.Equal(t, engine.Cents(305000), *proj.CurrentBalance)
	require.NotNil(t, proj.PlannedEndBalance)
	assert.Equal(t, engine.Cents(290000), *proj.PlannedEndBalance)

	require.NotNil(t, proj.PaceVariable)
	assert.Equal(t, engine.Cents(93000), *proj.PaceVariable)
	require.NotNil(t, proj.PaceEndBalance)
	assert.Equal(t, engine.Cents(257000), *proj.PaceEndBalance)

	assert.Equal(t, engine.Cents(-33000), proj.Divergence)
	assert.Equal(t, engine.Cents(6000), proj.DivergenceTolerance)
	assert.True(t, proj.Divergent)
}

func TestProjectCashFlow_CategoryFlows(t *testing.T) {
	proj, err := engine.ProjectCashFlow(januaryInput(t, "2024-01-15"))
	require.NoError(t, err)

	require.Len(t, proj.Categories, 2)

	food := proj.Categories[0]
	assert.Equal(t, engine.CategoryID("groceries"), food.CategoryID)
	assert.False(t, food.Fixed)
	assert.Equal(t, engine.Cents(60000), food.Expected)
	assert.Equal(t, engine.Cents(45000), food.Actual)
	assert.Equal(t, engine.Cents(15000), food.Remaining)
	require.True(t, food.BurnRate.Valid)
	assert.True(t, food.BurnRate.Decimal.Equal(decimal.RequireFromString("0.75")))

	rent := proj.Categories[1]
	assert.True(t, rent.Fixed)
	assert.Zero(t, rent.Remaining)
}

func TestProjectCashFlow_UnplannedCategoryHasNoBurnRate(t *testing.T) {
	in := januaryInput(t, "2024-01-15")
	gift := tx("2024-01-05", engine.TxExpense, 3000)
	in.Transactions = append(in.Transactions, gift)

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	var uncategorized *engine.CategoryFlow
	for i := range proj.Categories {
		if proj.Categories[i].CategoryID == engine.UncategorizedKey {
			uncategorized = &proj.Categories[i]
		}
	}
	require.NotNil(t, uncategorized)
	assert.Equal(t, engine.Cents(3000), uncategorized.Actual)
	assert.False(t, uncategorized.BurnRate.Valid)
	assert.Equal(t, engine.Cents(48000), proj.Actual.VariableExpenses, "uncategorized spending is variable")
}

func TestProjectCashFlow_PaceKeepsBankedSavings(t *testing.T) {
	// GIVEN: 800.00 saved against a 500.00 plan
	// THEN: Pace uses the larger actual savings

	in := januaryInput(t, "2024-01-15")
	in.Transactions = append(in.Transactions, goalTx("2024-01-03", engine.TxSavings, 30000, "house"))

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	require.NotNil(t, proj.PaceSavings)
	assert.Equal(t, engine.Cents(80000), *proj.PaceSavings)
}

func TestProjectCashFlow_WithinToleranceNotDivergent(t *testing.T) {
	// GIVEN: Spending exactly on pro-rata pace (15/31 of 620.00 = 300.00)
	// THEN: Pace equals plan and nothing diverges

	in := januaryInput(t, "2024-01-15")
	in.Rules[2].AmountCents = 62000
	in.Transactions[3].AmountCents = 30000

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	assert.Zero(t, proj.Divergence)
	assert.False(t, proj.Divergent)
}

func TestProjectCashFlow_OverlaySubstitutedBeforeExpansion(t *testing.T) {
	in := januaryInput(t, "2024-01-15")
	in.Overlay = engine.Overlay{}.With("groceries", 30000)

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	assert.Equal(t, engine.Cents(30000), proj.Expected.VariableExpenses)
	assert.Equal(t, engine.Cents(320000), *proj.PlannedEndBalance)
	assert.Equal(t, engine.Cents(60000), in.Rules[2].AmountCents, "input rules untouched")
}

// =============================================================================
// BALANCE AVAILABILITY
// =============================================================================

func TestProjectCashFlow_NoAnchorMeansNilBalances(t *testing.T) {
	// GIVEN: No anchor at all
	// THEN: Balances are nil, never zero, but plan/pace figures still compute

	in := januaryInput(t, "2024-01-15")
	in.Anchors = nil

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	assert.Nil(t, proj.StartingBalance)
	assert.Nil(t, proj.CurrentBalance)
	assert.Nil(t, proj.PlannedEndBalance)
	assert.Nil(t, proj.PaceEndBalance)
	assert.True(t, proj.Divergent)
}

func TestProjectCashFlow_StartDerivedFromAnchorInsidePeriod(t *testing.T) {
	// GIVEN: The only anchor is Jan 5 (3000.00); Jan 1-5 moved +5000 -2000 -500
	// THEN: Starting balance is rewound to 3000 - 2500 = 500.00

	in := januaryInput(t, "2024-01-15")
	in.Anchors = anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-05"), BalanceCents: 300000})

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	require.NotNil(t, proj.StartingBalance)
	assert.True(t, proj.StartingBalanceDerived)
	assert.Equal(t, engine.Cents(50000), *proj.StartingBalance)
	assert.Equal(t, engine.Cents(255000), *proj.CurrentBalance)
}

// =============================================================================
// PAST AND FUTURE PERIODS
// =============================================================================

func TestProjectCashFlow_PastPeriod(t *testing.T) {
	proj, err := engine.ProjectCashFlow(januaryInput(t, "2024-02-10"))
	require.NoError(t, err)

	assert.Equal(t, engine.PeriodPast, proj.State)
	assert.Equal(t, d("2024-01-31"), proj.EffectiveDate)
	assert.Equal(t, 31, proj.ElapsedDays)
	assert.Equal(t, engine.Cents(54999), proj.Actual.VariableExpenses)
	assert.Nil(t, proj.Remaining)
	assert.Nil(t, proj.PaceEndBalance)
	assert.False(t, proj.Divergent)
	assert.Equal(t, engine.Cents(295001), *proj.CurrentBalance)
}

func TestProjectCashFlow_FuturePeriod(t *testing.T) {
	in := januaryInput(t, "2024-01-15")
	in.Period = engine.Period{Start: d("2024-02-01"), End: d("2024-02-29")}

	proj, err := engine.ProjectCashFlow(in)
	require.NoError(t, err)

	assert.Equal(t, engine.PeriodFuture, proj.State)
	assert.Equal(t, d("2024-02-01"), proj.EffectiveDate)
	assert.Zero(t, proj.ElapsedDays)
	assert.Zero(t, proj.Actual.Income)
	// Starting balance replays all of January, including Jan 20
	assert.Equal(t, engine.Cents(295001), *proj.StartingBalance)
	assert.Equal(t, engine.Cents(295001+190000), *proj.PlannedEndBalance)
}

func TestProjectCashFlow_InvalidPeriod(t *testing.T) {
	in := januaryInput(t, "2024-01-15")
	in.Period = engine.Period{Start: d("2024-02-01"), End: d("2024-01-01")}

	_, err := engine.ProjectCashFlow(in)

	assert.ErrorIs(t, err, engine.ErrInvalidPeriod)
}
