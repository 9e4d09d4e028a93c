/*
Package sqlite provides a SQLite-backed planner.ReadWriter.

PURPOSE:
  Persists scenarios, rules, the transaction ledger, balance anchors,
  savings goals and categories for the HTTP server. The engine only ever
  sees the snapshot returned by the read methods.

KEY TABLES:
  scenarios:     Named rule sets, exactly one flagged is_default
  rules:         Recurring plan entries, one row per rule
  transactions:  Append-only ledger, ordered by (date, seq)
  anchors:       Known balances, one per (date, savings_goal_id)
  savings_goals: Goals with their interest rate schedule as JSON
  categories:    Category names

INDEXES:
  - idx_unique_anchor_scope: Enforces one anchor per day per scope. A
    violation surfaces as engine.ErrDuplicateAnchor.
  - idx_transactions_date: Ledger replay (hot path)
  - idx_rules_scenario: Rule loading per scenario

MONEY:
  Amounts are INTEGER cents. Interest rates are stored as decimal TEXT so
  they round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.
  ":memory:" databases are pinned to a single connection, since each
  connection would otherwise get its own empty database.

USAGE:
  store, err := sqlite.New("./safelyspend.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  p := planner.New(store)

SEE ALSO:
  - planner/store.go: Interface definitions
  - store/memory: In-memory implementation for tests and dataset files
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/planner"
)

var _ planner.ReadWriter = (*Store)(nil)

// Store implements planner.ReadWriter using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		savings_goal_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		lineage_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		cadence TEXT NOT NULL,
		day_of_week INTEGER NOT NULL DEFAULT 0,
		day_of_month INTEGER NOT NULL DEFAULT 0,
		month_of_quarter INTEGER NOT NULL DEFAULT 0,
		month_of_year INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_scenario
		ON rules(scenario_id);

	-- Ledger (append-only); seq keeps insertion order within a day
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		savings_goal_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date, seq);

	CREATE TABLE IF NOT EXISTS anchors (
		date TEXT NOT NULL,
		savings_goal_id TEXT NOT NULL DEFAULT '',
		balance_cents INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one anchor per day per scope ('' is global cash)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_anchor_scope
		ON anchors(date, savings_goal_id);

	CREATE TABLE IF NOT EXISTS savings_goals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_amount_cents INTEGER NOT NULL,
		deadline TEXT NOT NULL DEFAULT '',
		annual_interest_rate TEXT NOT NULL DEFAULT '0',
		rate_schedule_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCENARIOS
// =============================================================================

// SaveScenario upserts a scenario, keeping exactly one default.
func (s *Store) SaveScenario(ctx context.Context, sc engine.Scenario) error {
	if sc.ID == "" {
		sc.ID = engine.ScenarioID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var total, wasDefault int
	err = sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN id = ? THEN is_default ELSE 0 END), 0) FROM scenarios",
		sc.ID,
	).Scan(&total, &wasDefault)
	if err != nil {
		return fmt.Errorf("failed to count scenarios: %w", err)
	}
	if total == 0 || wasDefault == 1 {
		sc.IsDefault = true
	}

	if sc.IsDefault {
		if _, err := sqlTx.ExecContext(ctx, "UPDATE scenarios SET is_default = 0"); err != nil {
			return fmt.Errorf("failed to clear default scenario: %w", err)
		}
	}

	query := `
		INSERT INTO scenarios (id, name, is_default, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_default = excluded.is_default
	`
	if _, err := sqlTx.ExecContext(ctx, query, sc.ID, sc.Name, sc.IsDefault, now()); err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}

	return sqlTx.Commit()
}

func (s *Store) SetDefaultScenario(ctx context.Context, id engine.ScenarioID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	if err := sqlTx.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenarios WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check scenario: %w", err)
	}
	if exists == 0 {
		return engine.ErrScenarioNotFound
	}

	if _, err := sqlTx.ExecContext(ctx, "UPDATE scenarios SET is_default = (id = ?)", id); err != nil {
		return fmt.Errorf("failed to set default scenario: %w", err)
	}

	return sqlTx.Commit()
}

func (s *Store) Scenarios(ctx context.Context) ([]engine.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryScenarios(ctx, "SELECT id, name, is_default FROM scenarios ORDER BY rowid")
}

func (s *Store) Scenario(ctx context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryScenarios(ctx, "SELECT id, name, is_default FROM scenarios WHERE id = ?", id)
	if err != nil {
		return engine.Scenario{}, err
	}
	if len(list) == 0 {
		return engine.Scenario{}, engine.ErrScenarioNotFound
	}
	return list[0], nil
}

func (s *Store) DefaultScenario(ctx context.Context) (engine.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryScenarios(ctx, "SELECT id, name, is_default FROM scenarios WHERE is_default = 1 LIMIT 1")
	if err != nil {
		return engine.Scenario{}, err
	}
	if len(list) == 0 {
		return engine.Scenario{}, engine.ErrNoDefaultScenario
	}
	return list[0], nil
}

func (s *Store) queryScenarios(ctx context.Context, query string, args ...any) ([]engine.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []engine.Scenario
	for rows.Next() {
		var sc engine.Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// =============================================================================
// RULES
// =============================================================================

// SaveRule validates and upserts a rule.
func (s *Store) SaveRule(ctx context.Context, r engine.Rule) error {
	if r.ID == "" {
		r.ID = engine.RuleID(uuid.NewString())
	}
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenarios WHERE id = ?", r.ScenarioID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check scenario: %w", err)
	}
	if exists == 0 {
		return engine.ErrScenarioNotFound
	}

	query := `
		INSERT INTO rules
		(id, scenario_id, category_id, source_id, savings_goal_id, description, lineage_id,
		 kind, amount_cents, cadence, day_of_week, day_of_month, month_of_quarter, month_of_year,
		 start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			category_id = excluded.category_id,
			source_id = excluded.source_id,
			savings_goal_id = excluded.savings_goal_id,
			description = excluded.description,
			lineage_id = excluded.lineage_id,
			kind = excluded.kind,
			amount_cents = excluded.amount_cents,
			cadence = excluded.cadence,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			month_of_quarter = excluded.month_of_quarter,
			month_of_year = excluded.month_of_year,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ScenarioID, r.CategoryID, r.SourceID, r.SavingsGoalID, r.Description, r.LineageID,
		r.Kind, int64(r.AmountCents), r.Cadence,
		int(r.DayOfWeek), r.DayOfMonth, r.MonthOfQuarter, int(r.MonthOfYear),
		r.StartDate.String(), r.EndDate.String(), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (s *Store) Rules(ctx context.Context, scenarioID engine.ScenarioID) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, scenario_id, category_id, source_id, savings_goal_id, description, lineage_id,
		       kind, amount_cents, cadence, day_of_week, day_of_month, month_of_quarter, month_of_year,
		       start_date, end_date
		FROM rules
		WHERE scenario_id = ?
		ORDER BY rowid
	`

	rows, err := s.db.QueryContext(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []engine.Rule
	for rows.Next() {
		var (
			r                  engine.Rule
			dayOfWeek, month   int
			startDate, endDate string
		)
		err := rows.Scan(
			&r.ID, &r.ScenarioID, &r.CategoryID, &r.SourceID, &r.SavingsGoalID, &r.Description, &r.LineageID,
			&r.Kind, &r.AmountCents, &r.Cadence, &dayOfWeek, &r.DayOfMonth, &r.MonthOfQuarter, &month,
			&startDate, &endDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.DayOfWeek = time.Weekday(dayOfWeek)
		r.MonthOfYear = time.Month(month)
		if r.StartDate, err = parseDate(startDate); err != nil {
			return nil, err
		}
		if r.EndDate, err = parseDate(endDate); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendTransaction adds a transaction to the ledger. Append-only.
func (s *Store) AppendTransaction(ctx context.Context, tx engine.Transaction) error {
	if tx.ID == "" {
		tx.ID = engine.TransactionID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions
		(id, date, tx_type, amount_cents, category_id, savings_goal_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.Date.String(), tx.Type, int64(tx.AmountCents),
		tx.CategoryID, tx.SavingsGoalID, tx.Description, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) Transactions(ctx context.Context) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, date, tx_type, amount_cents, category_id, savings_goal_id, description
		FROM transactions
		ORDER BY date ASC, seq ASC
	`
	return s.queryTransactions(ctx, query)
}

// TransactionsInRange returns transactions with from <= date <= to.
func (s *Store) TransactionsInRange(ctx context.Context, from, to engine.Date) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, date, tx_type, amount_cents, category_id, savings_goal_id, description
		FROM transactions
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, seq ASC
	`
	return s.queryTransactions(ctx, query, from.String(), to.String())
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]engine.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []engine.Transaction
	for rows.Next() {
		var (
			tx   engine.Transaction
			date string
		)
		err := rows.Scan(&tx.ID, &date, &tx.Type, &tx.AmountCents, &tx.CategoryID, &tx.SavingsGoalID, &tx.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// ANCHORS
// =============================================================================

// SaveAnchor records a known balance. A second anchor for the same day and
// scope is rejected with *engine.DuplicateAnchorError.
func (s *Store) SaveAnchor(ctx context.Context, a engine.BalanceAnchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO anchors (date, savings_goal_id, balance_cents, created_at) VALUES (?, ?, ?, ?)",
		a.Date.String(), a.SavingsGoalID, int64(a.BalanceCents), now(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &engine.DuplicateAnchorError{Date: a.Date, Scope: a.Scope()}
		}
		return fmt.Errorf("failed to save anchor: %w", err)
	}
	return nil
}

func (s *Store) Anchors(ctx context.Context) ([]engine.BalanceAnchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT date, savings_goal_id, balance_cents FROM anchors ORDER BY date, savings_goal_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query anchors: %w", err)
	}
	defer rows.Close()

	var anchors []engine.BalanceAnchor
	for rows.Next() {
		var (
			a    engine.BalanceAnchor
			date string
		)
		if err := rows.Scan(&date, &a.SavingsGoalID, &a.BalanceCents); err != nil {
			return nil, fmt.Errorf("failed to scan anchor: %w", err)
		}
		if a.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}

// =============================================================================
// SAVINGS GOALS & CATEGORIES
// =============================================================================

func (s *Store) SaveSavingsGoal(ctx context.Context, g engine.SavingsGoal) error {
	if g.ID == "" {
		g.ID = engine.GoalID(uuid.NewString())
	}
	scheduleJSON, err := json.Marshal(g.InterestRateSchedule)
	if err != nil {
		return fmt.Errorf("failed to encode rate schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO savings_goals
		(id, name, target_amount_cents, deadline, annual_interest_rate, rate_schedule_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target_amount_cents = excluded.target_amount_cents,
			deadline = excluded.deadline,
			annual_interest_rate = excluded.annual_interest_rate,
			rate_schedule_json = excluded.rate_schedule_json
	`

	_, err = s.db.ExecContext(ctx, query,
		g.ID, g.Name, int64(g.TargetAmountCents), g.Deadline.String(),
		g.AnnualInterestRate.String(), string(scheduleJSON), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save savings goal: %w", err)
	}
	return nil
}

func (s *Store) SavingsGoals(ctx context.Context) ([]engine.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryGoals(ctx, goalColumns+" ORDER BY rowid")
}

func (s *Store) SavingsGoal(ctx context.Context, id engine.GoalID) (engine.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goals, err := s.queryGoals(ctx, goalColumns+" WHERE id = ?", id)
	if err != nil {
		return engine.SavingsGoal{}, err
	}
	if len(goals) == 0 {
		return engine.SavingsGoal{}, engine.ErrGoalNotFound
	}
	return goals[0], nil
}

const goalColumns = `
	SELECT id, name, target_amount_cents, deadline, annual_interest_rate, rate_schedule_json
	FROM savings_goals`

func (s *Store) queryGoals(ctx context.Context, query string, args ...any) ([]engine.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings goals: %w", err)
	}
	defer rows.Close()

	var goals []engine.SavingsGoal
	for rows.Next() {
		var (
			g              engine.SavingsGoal
			deadline, rate string
			scheduleJSON   sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmountCents, &deadline, &rate, &scheduleJSON); err != nil {
			return nil, fmt.Errorf("failed to scan savings goal: %w", err)
		}
		if g.Deadline, err = parseDate(deadline); err != nil {
			return nil, err
		}
		if g.AnnualInterestRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invalid interest rate %q for goal %s: %w", rate, g.ID, err)
		}
		if scheduleJSON.Valid && scheduleJSON.String != "" {
			if err := json.Unmarshal([]byte(scheduleJSON.String), &g.InterestRateSchedule); err != nil {
				return nil, fmt.Errorf("invalid rate schedule for goal %s: %w", g.ID, err)
			}
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *Store) SaveCategory(ctx context.Context, c engine.Category) error {
	if c.ID == "" {
		c.ID = engine.CategoryID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		c.ID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]engine.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []engine.Category
	for rows.Next() {
		var c engine.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"rules", "scenarios", "transactions", "anchors", "savings_goals", "categories"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// parseDate reads the DateLayout form; "" is the zero date.
func parseDate(s string) (engine.Date, error) {
	if s == "" {
		return engine.Date{}, nil
	}
	d, err := engine.ParseDate(s)
	if err != nil {
		return engine.Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
