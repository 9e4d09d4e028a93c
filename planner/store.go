/*
store.go - The read snapshot and write interfaces around the engine

PURPOSE:
  The engine never does I/O. The planner reads a snapshot of rules,
  transactions, anchors, goals and categories through Store, runs the pure
  engine operations over it, and hands plain records back to the HTTP and
  CLI layers.

KEY INTERFACES:
  Store:      Read-only snapshot queries (context-first)
  Writer:     Record creation used by the API, dataset import and tests
  ReadWriter: Both, implemented by every concrete store

INVARIANTS ENFORCED ON WRITE:
  - Exactly one default scenario once any scenario exists
  - At most one anchor per (date, savings goal); a second is rejected with
    engine.ErrDuplicateAnchor
  - Rules are validated (engine.Rule.Validate) and must reference an
    existing scenario

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and dataset files
  - store/sqlite: SQLite-backed, for the server
*/
package planner

import (
	"context"

	"github.com/benschem/safelyspend-sub000/engine"
)

// Store is the read side. Lists are returned in a stable order.
type Store interface {
	Scenarios(ctx context.Context) ([]engine.Scenario, error)

	// Scenario returns engine.ErrScenarioNotFound for an unknown ID.
	Scenario(ctx context.Context, id engine.ScenarioID) (engine.Scenario, error)

	// DefaultScenario returns engine.ErrNoDefaultScenario when none exists.
	DefaultScenario(ctx context.Context) (engine.Scenario, error)

	Rules(ctx context.Context, scenarioID engine.ScenarioID) ([]engine.Rule, error)

	// Transactions are ordered by date, then insertion.
	Transactions(ctx context.Context) ([]engine.Transaction, error)
	TransactionsInRange(ctx context.Context, from, to engine.Date) ([]engine.Transaction, error)

	Anchors(ctx context.Context) ([]engine.BalanceAnchor, error)

	SavingsGoals(ctx context.Context) ([]engine.SavingsGoal, error)

	// SavingsGoal returns engine.ErrGoalNotFound for an unknown ID.
	SavingsGoal(ctx context.Context, id engine.GoalID) (engine.SavingsGoal, error)

	Categories(ctx context.Context) ([]engine.Category, error)
}

// Writer is the write side.
type Writer interface {
	// SaveScenario inserts or replaces a scenario. Saving with IsDefault
	// clears the flag elsewhere; the first scenario saved becomes default.
	SaveScenario(ctx context.Context, s engine.Scenario) error
	SetDefaultScenario(ctx context.Context, id engine.ScenarioID) error

	// SaveRule inserts or replaces a rule.
	SaveRule(ctx context.Context, r engine.Rule) error

	// AppendTransaction adds to the ledger. The ledger is append-only.
	AppendTransaction(ctx context.Context, tx engine.Transaction) error

	SaveAnchor(ctx context.Context, a engine.BalanceAnchor) error
	SaveSavingsGoal(ctx context.Context, g engine.SavingsGoal) error
	SaveCategory(ctx context.Context, c engine.Category) error

	// Reset removes everything.
	Reset(ctx context.Context) error
}

// ReadWriter is implemented by every concrete store.
type ReadWriter interface {
	Store
	Writer
}
