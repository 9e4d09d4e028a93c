// Package plannertest holds the behaviour every planner.ReadWriter must share.
package plannertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/planner"
)

// RunStoreSuite runs the shared store tests; newStore must return an empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) planner.ReadWriter) {
	t.Run("FirstScenarioBecomesDefault", func(t *testing.T) {
		testFirstScenarioBecomesDefault(t, newStore(t))
	})
	t.Run("SetDefaultScenario", func(t *testing.T) {
		testSetDefaultScenario(t, newStore(t))
	})
	t.Run("RuleRequiresScenario", func(t *testing.T) {
		testRuleRequiresScenario(t, newStore(t))
	})
	t.Run("InvalidRuleRejected", func(t *testing.T) {
		testInvalidRuleRejected(t, newStore(t))
	})
	t.Run("RuleUpsertAndScenarioFilter", func(t *testing.T) {
		testRuleUpsertAndScenarioFilter(t, newStore(t))
	})
	t.Run("TransactionsOrderedByDate", func(t *testing.T) {
		testTransactionsOrderedByDate(t, newStore(t))
	})
	t.Run("DuplicateAnchorRejected", func(t *testing.T) {
		testDuplicateAnchorRejected(t, newStore(t))
	})
	t.Run("GoalsAndCategories", func(t *testing.T) {
		testGoalsAndCategories(t, newStore(t))
	})
	t.Run("Reset", func(t *testing.T) {
		testReset(t, newStore(t))
	})
}

func d(s string) engine.Date { return engine.MustParseDate(s) }

func testFirstScenarioBecomesDefault(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()

	// GIVEN: An empty store
	_, err := s.DefaultScenario(ctx)
	require.ErrorIs(t, err, engine.ErrNoDefaultScenario)

	// WHEN: Two scenarios are saved without a default flag
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base", Name: "Base"}))
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "lean", Name: "Lean"}))

	// THEN: The first one is the default
	def, err := s.DefaultScenario(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.ScenarioID("base"), def.ID)

	// AND: Re-saving the default without the flag keeps it default
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base", Name: "Renamed"}))
	def, err = s.DefaultScenario(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", def.Name)
	assert.True(t, def.IsDefault)
}

func testSetDefaultScenario(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base"}))
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "lean"}))

	require.NoError(t, s.SetDefaultScenario(ctx, "lean"))

	scenarios, err := s.Scenarios(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, sc := range scenarios {
		if sc.IsDefault {
			defaults++
			assert.Equal(t, engine.ScenarioID("lean"), sc.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	assert.ErrorIs(t, s.SetDefaultScenario(ctx, "nope"), engine.ErrScenarioNotFound)

	_, err = s.Scenario(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrScenarioNotFound)
}

func testRuleRequiresScenario(t *testing.T, s planner.ReadWriter) {
	err := s.SaveRule(context.Background(), engine.Rule{
		ID: "r1", ScenarioID: "missing", Kind: engine.KindIncome, AmountCents: 100, Cadence: engine.CadenceMonthly,
	})

	assert.ErrorIs(t, err, engine.ErrScenarioNotFound)
}

func testInvalidRuleRejected(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base"}))

	err := s.SaveRule(ctx, engine.Rule{ID: "r1", ScenarioID: "base", Kind: "bogus", Cadence: engine.CadenceMonthly})

	assert.ErrorIs(t, err, engine.ErrInvalidRule)
	assert.True(t, engine.IsClientError(err))
}

func testRuleUpsertAndScenarioFilter(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base"}))
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "lean"}))

	rent := engine.Rule{
		ID: "rent", ScenarioID: "base", Kind: engine.KindExpense, AmountCents: 150000,
		Cadence: engine.CadenceMonthly, DayOfMonth: 1, StartDate: d("2024-01-01"),
		CategoryID: "housing", Description: "Rent", LineageID: "rent",
	}
	require.NoError(t, s.SaveRule(ctx, rent))
	require.NoError(t, s.SaveRule(ctx, engine.Rule{
		ID: "pay", ScenarioID: "lean", Kind: engine.KindIncome, AmountCents: 500000, Cadence: engine.CadenceFortnightly,
		DayOfWeek: 5,
	}))

	rent.AmountCents = 160000
	require.NoError(t, s.SaveRule(ctx, rent))

	rules, err := s.Rules(ctx, "base")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, engine.Cents(160000), rules[0].AmountCents)
	assert.Equal(t, rent.StartDate, rules[0].StartDate)
	assert.True(t, rules[0].EndDate.IsZero())
	assert.Equal(t, "rent", rules[0].LineageID)

	lean, err := s.Rules(ctx, "lean")
	require.NoError(t, err)
	require.Len(t, lean, 1)
	assert.Equal(t, engine.CadenceFortnightly, lean[0].Cadence)
}

func testTransactionsOrderedByDate(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	for _, tx := range []engine.Transaction{
		{ID: "b", Date: d("2024-01-10"), Type: engine.TxExpense, AmountCents: 200},
		{ID: "a", Date: d("2024-01-05"), Type: engine.TxIncome, AmountCents: 100},
		{ID: "c", Date: d("2024-01-10"), Type: engine.TxSavings, AmountCents: 300, SavingsGoalID: "g1"},
		{ID: "d", Date: d("2024-02-01"), Type: engine.TxAdjustment, AmountCents: 5},
	} {
		require.NoError(t, s.AppendTransaction(ctx, tx))
	}

	all, err := s.Transactions(ctx)
	require.NoError(t, err)
	var ids []engine.TransactionID
	for _, tx := range all {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []engine.TransactionID{"a", "b", "c", "d"}, ids)
	assert.Equal(t, engine.GoalID("g1"), all[2].SavingsGoalID)

	jan, err := s.TransactionsInRange(ctx, d("2024-01-06"), d("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, jan, 2)
}

func testDuplicateAnchorRejected(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()

	// GIVEN: A global anchor on Jan 31
	require.NoError(t, s.SaveAnchor(ctx, engine.BalanceAnchor{Date: d("2024-01-31"), BalanceCents: 1000}))

	// WHEN: A goal anchor lands on the same day
	// THEN: It is accepted (different scope)
	require.NoError(t, s.SaveAnchor(ctx, engine.BalanceAnchor{Date: d("2024-01-31"), BalanceCents: 50, SavingsGoalID: "g1"}))

	// WHEN: A second global anchor lands on the same day
	err := s.SaveAnchor(ctx, engine.BalanceAnchor{Date: d("2024-01-31"), BalanceCents: 2000})

	// THEN: It is rejected as a conflict
	require.ErrorIs(t, err, engine.ErrDuplicateAnchor)
	assert.True(t, engine.IsConflict(err))

	anchors, err := s.Anchors(ctx)
	require.NoError(t, err)
	require.Len(t, anchors, 2)
	assert.Equal(t, engine.Cents(1000), anchors[0].BalanceCents)
	assert.Equal(t, engine.GoalID("g1"), anchors[1].SavingsGoalID)
}

func testGoalsAndCategories(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	goal := engine.SavingsGoal{
		ID: "house", Name: "House", TargetAmountCents: 2000000, Deadline: d("2026-06-30"),
		AnnualInterestRate: engine.Cents(45).Decimal().Shift(-1),
		InterestRateSchedule: []engine.RateChange{
			{EffectiveDate: d("2025-01-01"), AnnualRate: engine.Cents(5).Decimal()},
		},
	}
	require.NoError(t, s.SaveSavingsGoal(ctx, goal))
	require.NoError(t, s.SaveCategory(ctx, engine.Category{ID: "food", Name: "Food"}))

	got, err := s.SavingsGoal(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, "House", got.Name)
	assert.Equal(t, "4.5", got.AnnualInterestRate.String())
	assert.Equal(t, goal.Deadline, got.Deadline)
	require.Len(t, got.InterestRateSchedule, 1)
	assert.Equal(t, "5", got.InterestRateSchedule[0].AnnualRate.String())

	_, err = s.SavingsGoal(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrGoalNotFound)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []engine.Category{{ID: "food", Name: "Food"}}, cats)
}

func testReset(t *testing.T, s planner.ReadWriter) {
	ctx := context.Background()
	require.NoError(t, s.SaveScenario(ctx, engine.Scenario{ID: "base"}))
	require.NoError(t, s.AppendTransaction(ctx, engine.Transaction{ID: "t", Date: d("2024-01-01"), Type: engine.TxIncome, AmountCents: 1}))
	require.NoError(t, s.SaveAnchor(ctx, engine.BalanceAnchor{Date: d("2024-01-01")}))

	require.NoError(t, s.Reset(ctx))

	scenarios, err := s.Scenarios(ctx)
	require.NoError(t, err)
	assert.Empty(t, scenarios)
	txs, err := s.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	// Anchors can be re-recorded after a reset
	assert.NoError(t, s.SaveAnchor(ctx, engine.BalanceAnchor{Date: d("2024-01-01")}))
}
