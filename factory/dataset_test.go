package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/factory"
	"github.com/benschem/safelyspend-sub000/store/memory"
)

const budgetJSON = `{
  "scenarios": [{"id": "base", "name": "Base plan"}],
  "categories": [{"id": "groceries", "name": "Groceries"}],
  "goals": [{
    "id": "house", "name": "House", "target": "20000", "deadline": "2026-06-30",
    "annual_interest_rate": "4.5",
    "rate_schedule": [{"effective_date": "2025-01-01", "annual_rate": "5"}]
  }],
  "rules": [
    {"id": "pay", "kind": "income", "amount": "2500.00", "cadence": "fortnightly",
     "day_of_week": "friday", "start_date": "2024-01-05", "description": "Salary", "lineage": "salary"},
    {"id": "insurance", "kind": "Expense", "amount": 960, "cadence": "yearly",
     "month_of_year": "mar", "day_of_month": 1},
    {"id": "food", "kind": "budget", "amount": "150.005", "cadence": "weekly",
     "day_of_week": 6, "category": "groceries"}
  ],
  "transactions": [
    {"id": "t1", "date": "2024-01-05", "type": "income", "amount": "2500"},
    {"id": "t2", "date": "2024-01-06", "type": "expense", "amount": "142.37", "category": "groceries"}
  ],
  "anchors": [
    {"date": "2023-12-31", "balance": "-120.50"},
    {"date": "2023-12-31", "balance": "5000", "goal": "house"}
  ]
}`

func TestParseDataset(t *testing.T) {
	ds, err := factory.ParseDataset([]byte(budgetJSON))
	require.NoError(t, err)

	require.Len(t, ds.Rules, 3)

	pay := ds.Rules[0]
	assert.Equal(t, engine.ScenarioID("base"), pay.ScenarioID, "single scenario is implied")
	assert.Equal(t, engine.Cents(250000), pay.AmountCents)
	assert.Equal(t, time.Friday, pay.DayOfWeek)
	assert.Equal(t, engine.MustParseDate("2024-01-05"), pay.StartDate)
	assert.True(t, pay.EndDate.IsZero())

	insurance := ds.Rules[1]
	assert.Equal(t, engine.KindExpense, insurance.Kind)
	assert.Equal(t, engine.Cents(96000), insurance.AmountCents)
	assert.Equal(t, time.March, insurance.MonthOfYear)

	food := ds.Rules[2]
	assert.Equal(t, engine.Cents(15001), food.AmountCents, "half a cent rounds away from zero")
	assert.Equal(t, time.Saturday, food.DayOfWeek)

	assert.Equal(t, engine.Cents(14237), ds.Transactions[1].AmountCents)
	assert.Equal(t, engine.Cents(-12050), ds.Anchors[0].BalanceCents)
	assert.Equal(t, engine.GoalID("house"), ds.Anchors[1].SavingsGoalID)

	require.Len(t, ds.Goals, 1)
	assert.Equal(t, engine.Cents(2000000), ds.Goals[0].TargetAmountCents)
	assert.Equal(t, "4.5", ds.Goals[0].AnnualInterestRate.String())
	require.Len(t, ds.Goals[0].InterestRateSchedule, 1)
}

func TestParseDataset_Errors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name:    "malformed json",
			json:    `{"rules": [`,
			wantErr: "failed to parse dataset JSON",
		},
		{
			name:    "unknown cadence",
			json:    `{"scenarios": [{"id": "a"}], "rules": [{"kind": "income", "amount": "1", "cadence": "daily"}]}`,
			wantErr: "unknown cadence",
		},
		{
			name:    "negative amount",
			json:    `{"scenarios": [{"id": "a"}], "rules": [{"kind": "income", "amount": "-1", "cadence": "monthly"}]}`,
			wantErr: "amount_cents",
		},
		{
			name:    "rule without scenario when ambiguous",
			json:    `{"scenarios": [{"id": "a"}, {"id": "b"}], "rules": [{"kind": "income", "amount": "1", "cadence": "monthly"}]}`,
			wantErr: "scenario",
		},
		{
			name:    "bad weekday name",
			json:    `{"rules": [{"day_of_week": "someday"}]}`,
			wantErr: "day_of_week",
		},
		{
			name:    "bad date",
			json:    `{"transactions": [{"date": "05/01/2024", "type": "income", "amount": "1"}]}`,
			wantErr: "invalid date",
		},
		{
			name:    "unknown transaction type",
			json:    `{"transactions": [{"date": "2024-01-01", "type": "transfer", "amount": "1"}]}`,
			wantErr: "unknown transaction type",
		},
		{
			name:    "duplicate anchors",
			json:    `{"anchors": [{"date": "2024-01-01", "balance": "1"}, {"date": "2024-01-01", "balance": "2"}]}`,
			wantErr: "duplicate balance anchor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseDataset([]byte(tt.json))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseDataset_InvalidRuleIsClientError(t *testing.T) {
	_, err := factory.ParseDataset([]byte(`{"scenarios": [{"id": "a"}], "rules": [{"kind": "loan", "amount": "1", "cadence": "monthly"}]}`))

	assert.ErrorIs(t, err, engine.ErrInvalidRule)
	assert.True(t, engine.IsClientError(err))
}

func TestLoadFileAndImport(t *testing.T) {
	// GIVEN: A dataset file on disk
	path := filepath.Join(t.TempDir(), "budget.json")
	require.NoError(t, os.WriteFile(path, []byte(budgetJSON), 0o600))

	// WHEN: It is loaded and imported into a store
	ds, err := factory.LoadFile(path)
	require.NoError(t, err)
	store := memory.New()
	require.NoError(t, ds.Import(context.Background(), store))

	// THEN: Everything is readable back
	ctx := context.Background()
	def, err := store.DefaultScenario(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.ScenarioID("base"), def.ID)

	rules, err := store.Rules(ctx, "base")
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	anchors, err := store.Anchors(ctx)
	require.NoError(t, err)
	assert.Len(t, anchors, 2)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := factory.LoadFile(filepath.Join(t.TempDir(), "nope.json"))

	assert.ErrorContains(t, err, "reading dataset")
}

func TestDollars(t *testing.T) {
	assert.Equal(t, engine.Cents(123456), factory.Dollars("1234.56").Cents())
	assert.Equal(t, engine.Cents(-1), factory.Dollars("-0.005").Cents())
}

func TestParseOverrides(t *testing.T) {
	overlay, err := factory.ParseOverrides(map[string]string{"fun": "150", "base-rent": " 1800.50 "})
	require.NoError(t, err)

	assert.Equal(t, []string{"base-rent", "fun"}, overlay.Keys())
	amount, ok := overlay.Lookup("base-rent")
	require.True(t, ok)
	assert.Equal(t, engine.Cents(180050), amount)

	empty, err := factory.ParseOverrides(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	for _, bad := range []string{"lots", "-1", ""} {
		_, err := factory.ParseOverrides(map[string]string{"fun": bad})
		var inputErr *factory.InputError
		assert.ErrorAs(t, err, &inputErr, bad)
	}
}
