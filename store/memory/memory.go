// Package memory is an in-memory planner.ReadWriter, used by tests and for
// JSON dataset files.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/planner"
)

var _ planner.ReadWriter = (*Memory)(nil)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	scenarios    []engine.Scenario
	rules        []engine.Rule
	transactions []engine.Transaction
	anchors      map[anchorKey]engine.BalanceAnchor
	goals        []engine.SavingsGoal
	categories   []engine.Category
}

type anchorKey struct {
	date string
	goal engine.GoalID
}

func New() *Memory {
	return &Memory{anchors: make(map[anchorKey]engine.BalanceAnchor)}
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) SaveScenario(_ context.Context, s engine.Scenario) error {
	if s.ID == "" {
		s.ID = engine.ScenarioID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The default can move but never disappear
	i := slices.IndexFunc(m.scenarios, func(x engine.Scenario) bool { return x.ID == s.ID })
	if len(m.scenarios) == 0 || (i >= 0 && m.scenarios[i].IsDefault) {
		s.IsDefault = true
	}
	if s.IsDefault {
		for i := range m.scenarios {
			m.scenarios[i].IsDefault = false
		}
	}
	m.scenarios = upsert(m.scenarios, s, func(x engine.Scenario) bool { return x.ID == s.ID })
	return nil
}

func (m *Memory) SetDefaultScenario(_ context.Context, id engine.ScenarioID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.ContainsFunc(m.scenarios, func(s engine.Scenario) bool { return s.ID == id }) {
		return engine.ErrScenarioNotFound
	}
	for i := range m.scenarios {
		m.scenarios[i].IsDefault = m.scenarios[i].ID == id
	}
	return nil
}

func (m *Memory) SaveRule(_ context.Context, r engine.Rule) error {
	if r.ID == "" {
		r.ID = engine.RuleID(uuid.NewString())
	}
	if err := r.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.ContainsFunc(m.scenarios, func(s engine.Scenario) bool { return s.ID == r.ScenarioID }) {
		return engine.ErrScenarioNotFound
	}
	m.rules = upsert(m.rules, r, func(x engine.Rule) bool { return x.ID == r.ID })
	return nil
}

// AppendTransaction inserts tx after every transaction on the same date.
func (m *Memory) AppendTransaction(_ context.Context, tx engine.Transaction) error {
	if tx.ID == "" {
		tx.ID = engine.TransactionID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Binary search for the first transaction dated after tx
	i := sort.Search(len(m.transactions), func(i int) bool {
		return m.transactions[i].Date.After(tx.Date)
	})
	m.transactions = slices.Insert(m.transactions, i, tx)
	return nil
}

func (m *Memory) SaveAnchor(_ context.Context, a engine.BalanceAnchor) error {
	k := anchorKey{date: a.Date.String(), goal: a.SavingsGoalID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.anchors[k]; exists {
		return &engine.DuplicateAnchorError{Date: a.Date, Scope: a.Scope()}
	}
	m.anchors[k] = a
	return nil
}

func (m *Memory) SaveSavingsGoal(_ context.Context, g engine.SavingsGoal) error {
	if g.ID == "" {
		g.ID = engine.GoalID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = upsert(m.goals, g, func(x engine.SavingsGoal) bool { return x.ID == g.ID })
	return nil
}

func (m *Memory) SaveCategory(_ context.Context, c engine.Category) error {
	if c.ID == "" {
		c.ID = engine.CategoryID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = upsert(m.categories, c, func(x engine.Category) bool { return x.ID == c.ID })
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scenarios = nil
	m.rules = nil
	m.transactions = nil
	m.anchors = make(map[anchorKey]engine.BalanceAnchor)
	m.goals = nil
	m.categories = nil
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) Scenarios(_ context.Context) ([]engine.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.scenarios), nil
}

func (m *Memory) Scenario(_ context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.scenarios {
		if s.ID == id {
			return s, nil
		}
	}
	return engine.Scenario{}, engine.ErrScenarioNotFound
}

func (m *Memory) DefaultScenario(_ context.Context) (engine.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.scenarios {
		if s.IsDefault {
			return s, nil
		}
	}
	return engine.Scenario{}, engine.ErrNoDefaultScenario
}

func (m *Memory) Rules(_ context.Context, scenarioID engine.ScenarioID) ([]engine.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Rule
	for _, r := range m.rules {
		if r.ScenarioID == scenarioID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *Memory) Transactions(_ context.Context) ([]engine.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.transactions), nil
}

func (m *Memory) TransactionsInRange(_ context.Context, from, to engine.Date) ([]engine.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Transaction
	for _, tx := range m.transactions {
		if from.BeforeOrEqual(tx.Date) && tx.Date.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

// Anchors are returned by date, global before goal anchors on the same day.
func (m *Memory) Anchors(_ context.Context) ([]engine.BalanceAnchor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.BalanceAnchor, 0, len(m.anchors))
	for _, a := range m.anchors {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].SavingsGoalID < result[j].SavingsGoalID
	})
	return result, nil
}

func (m *Memory) SavingsGoals(_ context.Context) ([]engine.SavingsGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.goals), nil
}

func (m *Memory) SavingsGoal(_ context.Context, id engine.GoalID) (engine.SavingsGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return engine.SavingsGoal{}, engine.ErrGoalNotFound
}

func (m *Memory) Categories(_ context.Context) ([]engine.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.categories), nil
}

// upsert replaces the first element matching same, or appends v.
func upsert[T any](list []T, v T, same func(T) bool) []T {
	if i := slices.IndexFunc(list, same); i >= 0 {
		list[i] = v
		return list
	}
	return append(list, v)
}
