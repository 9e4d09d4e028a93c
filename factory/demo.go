/*
demo.go - Built-in demo datasets

PURPOSE:
  Provides ready-made budgets for demos and manual testing. Every demo is
  built relative to a "today" so the current period always has history
  behind it and forecasts ahead of it.

AVAILABLE DEMOS:
  steady:      One scenario, spending on plan, an emergency fund goal
  overspend:   Same plan, variable spending running 40% hot (divergent)
  what-if:     Base plan plus a "lean" scenario to diff against

HOW DEMOS ARE BUILT:
  1. Rules are written for the base scenario
  2. Three months of actuals are generated by expanding the rules up to today
  3. A global anchor is placed the day before the history starts
*/
package factory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/benschem/safelyspend-sub000/engine"
)

// DemoInfo describes a demo dataset.
type DemoInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var Demos = []DemoInfo{
	{ID: "steady", Name: "Steady", Description: "Fortnightly salary, rent, budgets on plan, emergency fund"},
	{ID: "overspend", Name: "Overspend", Description: "Variable spending 40% over budget; the projection diverges"},
	{ID: "what-if", Name: "What-If", Description: "Base plan plus a lean scenario with a side income"},
}

const demoHistoryMonths = 3

// Demo builds the named demo dataset as of today.
func Demo(id string, today engine.Date) (*Dataset, error) {
	switch id {
	case "steady":
		return demoDataset(today, decimal.NewFromInt(1), false), nil
	case "overspend":
		return demoDataset(today, decimal.RequireFromString("1.4"), false), nil
	case "what-if":
		return demoDataset(today, decimal.NewFromInt(1), true), nil
	default:
		return nil, fmt.Errorf("unknown demo %q", id)
	}
}

func demoDataset(today engine.Date, variableScale decimal.Decimal, withLean bool) *Dataset {
	historyStart := engine.YearMonthOf(today).Add(-demoHistoryMonths).Start()

	ds := &Dataset{
		Scenarios: []engine.Scenario{{ID: "base", Name: "Base plan", IsDefault: true}},
		Categories: []engine.Category{
			{ID: "housing", Name: "Housing"},
			{ID: "utilities", Name: "Utilities"},
			{ID: "groceries", Name: "Groceries"},
			{ID: "fun", Name: "Eating out & fun"},
		},
		Goals: []engine.SavingsGoal{{
			ID:                 "emergency",
			Name:               "Emergency fund",
			TargetAmountCents:  1000000,
			Deadline:           engine.YearMonthOf(today).Add(18).End(),
			AnnualInterestRate: decimal.RequireFromString("4.5"),
		}},
		Rules: baseRules("base", historyStart),
		Anchors: []engine.BalanceAnchor{
			{Date: historyStart.AddDays(-1), BalanceCents: 320000},
			{Date: historyStart.AddDays(-1), BalanceCents: 150000, SavingsGoalID: "emergency"},
		},
	}

	for _, f := range engine.ExpandToForecasts(ds.Rules, historyStart, today) {
		amount := f.AmountCents
		if f.CategoryID == "groceries" || f.CategoryID == "fun" {
			amount = engine.CentsFromDecimal(amount.Decimal().Mul(variableScale))
		}
		ds.Transactions = append(ds.Transactions, engine.Transaction{
			ID:            engine.TransactionID(fmt.Sprintf("demo-%s-%s", f.SourceID, f.Date)),
			Date:          f.Date,
			Type:          f.Type,
			AmountCents:   amount,
			CategoryID:    f.CategoryID,
			SavingsGoalID: f.SavingsGoalID,
			Description:   f.Description,
		})
	}

	if withLean {
		ds.Scenarios = append(ds.Scenarios, engine.Scenario{ID: "lean", Name: "Lean"})
		for _, r := range baseRules("lean", historyStart) {
			switch r.LineageID {
			case "fun":
				r.AmountCents = 15000
			case "savings":
				r.AmountCents = 80000
			}
			ds.Rules = append(ds.Rules, r)
		}
		ds.Rules = append(ds.Rules, engine.Rule{
			ID: "lean-side-gig", ScenarioID: "lean", Kind: engine.KindIncome, AmountCents: 40000,
			Cadence: engine.CadenceMonthly, DayOfMonth: 20, StartDate: today,
			Description: "Side gig", LineageID: "side-gig",
		})
	}
	return ds
}

func baseRules(scenario engine.ScenarioID, start engine.Date) []engine.Rule {
	rule := func(id string, r engine.Rule) engine.Rule {
		r.ID = engine.RuleID(string(scenario) + "-" + id)
		r.ScenarioID = scenario
		r.LineageID = id
		r.StartDate = start
		return r
	}

	return []engine.Rule{
		rule("salary", engine.Rule{
			Kind: engine.KindIncome, AmountCents: 250000, Cadence: engine.CadenceFortnightly,
			DayOfWeek: 5, Description: "Salary",
		}),
		rule("rent", engine.Rule{
			Kind: engine.KindExpense, AmountCents: 180000, Cadence: engine.CadenceMonthly,
			DayOfMonth: 1, CategoryID: "housing", Description: "Rent",
		}),
		rule("power", engine.Rule{
			Kind: engine.KindExpense, AmountCents: 45000, Cadence: engine.CadenceQuarterly,
			MonthOfQuarter: 1, DayOfMonth: 10, CategoryID: "utilities", Description: "Power bill",
		}),
		rule("insurance", engine.Rule{
			Kind: engine.KindExpense, AmountCents: 96000, Cadence: engine.CadenceYearly,
			MonthOfYear: 3, DayOfMonth: 1, CategoryID: "housing", Description: "Contents insurance",
		}),
		rule("groceries", engine.Rule{
			Kind: engine.KindBudget, AmountCents: 15000, Cadence: engine.CadenceWeekly,
			DayOfWeek: 6, CategoryID: "groceries", Description: "Groceries",
		}),
		rule("fun", engine.Rule{
			Kind: engine.KindBudget, AmountCents: 30000, Cadence: engine.CadenceMonthly,
			DayOfMonth: 1, CategoryID: "fun", Description: "Eating out",
		}),
		rule("savings", engine.Rule{
			Kind: engine.KindSavings, AmountCents: 50000, Cadence: engine.CadenceMonthly,
			DayOfMonth: 2, SavingsGoalID: "emergency", Description: "Emergency fund",
		}),
	}
}
