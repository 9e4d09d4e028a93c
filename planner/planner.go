/*
planner.go - Snapshot loading and engine orchestration

PURPOSE:
  Planner is the only place that combines storage with the engine. Each
  method loads the records it needs through Store, resolves the scenario,
  and calls exactly one engine operation. Nothing is cached: every call
  sees the current snapshot.

SCENARIO RESOLUTION:
  An empty scenario ID means the default scenario. Unknown IDs surface
  engine.ErrScenarioNotFound.

BALANCES:
  Starting balances for month and day views are the global balance at the
  end of the day before the span, when an anchor makes it knowable.

SEE ALSO:
  - store.go: Store and Writer interfaces
  - engine/: The pure computations
  - api/handlers.go: HTTP surface
*/
package planner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/logger"
)

const (
	// A goal's average covers the goalLookbackMonths before the as-of month
	// and goalLookaheadMonths starting with it. Inside that window recorded
	// contributions count up to as-of and planned ones after it.
	goalLookbackMonths  = 3
	goalLookaheadMonths = 3

	// interestHorizonMonths of month-end interest are forecast per goal.
	interestHorizonMonths = 12
)

// Planner runs engine operations against a Store snapshot.
type Planner struct {
	Store Store
	Log   zerolog.Logger

	// DivergenceFloor is passed to the cash-flow projector.
	DivergenceFloor engine.Cents

	// Period decides the default budget period for cash-flow queries.
	Period engine.PeriodConfig
}

// New creates a Planner with engine defaults and a silent logger.
func New(store Store) *Planner {
	return &Planner{
		Store:           store,
		Log:             logger.Nop(),
		DivergenceFloor: engine.DefaultDivergenceFloor,
		Period:          engine.PeriodConfig{Type: engine.PeriodCalendarMonth},
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ResolveScenario returns the scenario for id, or the default when id is empty.
func (p *Planner) ResolveScenario(ctx context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	if id == "" {
		return p.Store.DefaultScenario(ctx)
	}
	return p.Store.Scenario(ctx, id)
}

// ScenarioRules resolves a scenario and loads its rules.
func (p *Planner) ScenarioRules(ctx context.Context, id engine.ScenarioID) (engine.Scenario, []engine.Rule, error) {
	scenario, err := p.ResolveScenario(ctx, id)
	if err != nil {
		return engine.Scenario{}, nil, err
	}
	rules, err := p.Store.Rules(ctx, scenario.ID)
	if err != nil {
		return engine.Scenario{}, nil, fmt.Errorf("loading rules for %s: %w", scenario.ID, err)
	}
	return scenario, rules, nil
}

// Diff compares the active scenario's rules against the default scenario.
func (p *Planner) Diff(ctx context.Context, activeID engine.ScenarioID, asOf engine.Date) (engine.Comparison, error) {
	base, baseRules, err := p.ScenarioRules(ctx, "")
	if err != nil {
		return engine.Comparison{}, err
	}
	active, activeRules, err := p.ScenarioRules(ctx, activeID)
	if err != nil {
		return engine.Comparison{}, err
	}

	diff := engine.NewScenarioDiff(base, baseRules, active.ID, asOf)
	return diff.Compare(activeRules), nil
}

// =============================================================================
// FORECASTS & CASH FLOW
// =============================================================================

// Forecasts expands a scenario's rules into dated occurrences in [from, to].
func (p *Planner) Forecasts(ctx context.Context, scenarioID engine.ScenarioID, from, to engine.Date) ([]engine.Forecast, error) {
	if err := (engine.Period{Start: from, End: to}).Validate(); err != nil {
		return nil, err
	}
	_, rules, err := p.ScenarioRules(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	return engine.ExpandToForecasts(rules, from, to), nil
}

// CashFlowRequest selects a budget period and an optional what-if overlay.
type CashFlowRequest struct {
	ScenarioID engine.ScenarioID
	AsOf       engine.Date

	// Period defaults to the configured period containing AsOf.
	Period engine.Period

	// Overlay previews what-if amounts keyed by rule ID or category ID.
	Overlay engine.Overlay
}

// CashFlow projects the plan vs pace for one budget period.
func (p *Planner) CashFlow(ctx context.Context, req CashFlowRequest) (*engine.CashFlowProjection, error) {
	if req.AsOf.IsZero() {
		req.AsOf = engine.Today()
	}
	if req.Period.Start.IsZero() && req.Period.End.IsZero() {
		req.Period = p.Period.PeriodFor(req.AsOf)
	}

	scenario, rules, err := p.ScenarioRules(ctx, req.ScenarioID)
	if err != nil {
		return nil, err
	}
	txs, anchors, err := p.ledger(ctx)
	if err != nil {
		return nil, err
	}

	projection, err := engine.ProjectCashFlow(engine.CashFlowInput{
		Period:          req.Period,
		AsOf:            req.AsOf,
		Rules:           rules,
		Transactions:    txs,
		Anchors:         anchors,
		Overlay:         req.Overlay,
		DivergenceFloor: p.DivergenceFloor,
	})
	if err != nil {
		return nil, err
	}

	p.Log.Debug().
		Str("scenario", string(scenario.ID)).
		Str("period", req.Period.String()).
		Strs("overrides", req.Overlay.Keys()).
		Bool("divergent", projection.Divergent).
		Msg("cash flow projected")
	return projection, nil
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Months rolls a scenario up per calendar month from..to, previewing the
// overlay's what-if amounts when it is not empty.
func (p *Planner) Months(ctx context.Context, scenarioID engine.ScenarioID, from, to engine.YearMonth, asOf engine.Date, overlay engine.Overlay) ([]engine.MonthSummary, error) {
	if to.Before(from) {
		return nil, &engine.PeriodError{Period: engine.Period{Start: from.Start(), End: to.End()}}
	}
	_, rules, err := p.ScenarioRules(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	txs, anchors, err := p.ledger(ctx)
	if err != nil {
		return nil, err
	}

	months := engine.AggregateMonths(engine.AggregateInput{
		From:            from,
		To:              to,
		Today:           asOf,
		Rules:           rules,
		Transactions:    txs,
		StartingBalance: balanceBefore(anchors, txs, from.Start()),
		Overlay:         overlay,
	})

	p.Log.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Strs("overrides", overlay.Keys()).
		Msg("months aggregated")
	return months, nil
}

// Daily returns one summary per day of period.
func (p *Planner) Daily(ctx context.Context, scenarioID engine.ScenarioID, period engine.Period, asOf engine.Date) ([]engine.DaySummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	_, rules, err := p.ScenarioRules(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	txs, anchors, err := p.ledger(ctx)
	if err != nil {
		return nil, err
	}

	return engine.DailyCashFlow(engine.DailyInput{
		Period:          period,
		Today:           asOf,
		Rules:           rules,
		Transactions:    txs,
		StartingBalance: balanceBefore(anchors, txs, period.Start),
	}), nil
}

// Balance reconstructs the balance of scope at the end of asOf. It returns
// nil when no anchor makes a global balance knowable.
func (p *Planner) Balance(ctx context.Context, scope engine.Scope, asOf engine.Date) (*engine.Cents, error) {
	if !scope.IsGlobal() {
		if _, err := p.Store.SavingsGoal(ctx, scope.SavingsGoalID); err != nil {
			return nil, err
		}
	}
	txs, anchors, err := p.ledger(ctx)
	if err != nil {
		return nil, err
	}
	balance, ok := anchors.BalanceAsOf(txs, scope, asOf)
	if !ok {
		return nil, nil
	}
	return &balance, nil
}

// =============================================================================
// SAVINGS GOALS
// =============================================================================

// GoalDetail is a goal's progress plus its projected interest.
type GoalDetail struct {
	engine.GoalProgress
	Interest []engine.Forecast `json:"interest"`
}

// Goals reports progress for every savings goal.
func (p *Planner) Goals(ctx context.Context, scenarioID engine.ScenarioID, asOf engine.Date) ([]engine.GoalProgress, error) {
	goals, err := p.Store.SavingsGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading goals: %w", err)
	}
	snap, err := p.goalSnapshot(ctx, scenarioID, asOf)
	if err != nil {
		return nil, err
	}

	out := make([]engine.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, snap.progress(g))
	}
	return out, nil
}

// GoalProjection reports one goal's progress and month-end interest for the
// year after asOf.
func (p *Planner) GoalProjection(ctx context.Context, scenarioID engine.ScenarioID, goalID engine.GoalID, asOf engine.Date) (*GoalDetail, error) {
	goal, err := p.Store.SavingsGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	snap, err := p.goalSnapshot(ctx, scenarioID, asOf)
	if err != nil {
		return nil, err
	}

	progress := snap.progress(goal)
	start := asOf.AddDays(1)
	end := engine.YearMonthOf(asOf).Add(interestHorizonMonths).End()
	contributions := engine.ExpandToForecasts(snap.rules, start, end)

	return &GoalDetail{
		GoalProgress: progress,
		Interest:     engine.InterestForecasts(goal, progress.Balance, contributions, start, end),
	}, nil
}

type goalSnapshot struct {
	asOf      engine.Date
	rules     []engine.Rule
	txs       []engine.Transaction
	anchors   *engine.AnchorSet
	actuals   []engine.Transaction
	forecasts []engine.Forecast
}

func (p *Planner) goalSnapshot(ctx context.Context, scenarioID engine.ScenarioID, asOf engine.Date) (*goalSnapshot, error) {
	_, rules, err := p.ScenarioRules(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	txs, anchors, err := p.ledger(ctx)
	if err != nil {
		return nil, err
	}

	month := engine.YearMonthOf(asOf)
	lookback := month.Add(-goalLookbackMonths).Start()
	lookahead := month.Add(goalLookaheadMonths - 1).End()
	var actuals []engine.Transaction
	for _, tx := range txs {
		if !tx.Date.Before(lookback) && !tx.Date.After(asOf) {
			actuals = append(actuals, tx)
		}
	}

	return &goalSnapshot{
		asOf:      asOf,
		rules:     rules,
		txs:       txs,
		anchors:   anchors,
		actuals:   actuals,
		forecasts: engine.ExpandToForecasts(rules, asOf.AddDays(1), lookahead),
	}, nil
}

func (s *goalSnapshot) progress(g engine.SavingsGoal) engine.GoalProgress {
	balance, _ := s.anchors.BalanceAsOf(s.txs, engine.GoalScope(g.ID), s.asOf)
	avg := engine.AverageMonthlyContribution(s.actuals, s.forecasts, g.ID, goalLookbackMonths+goalLookaheadMonths)
	return engine.NewGoalProgress(g, balance, avg, s.asOf)
}

// =============================================================================
// HELPERS
// =============================================================================

func (p *Planner) ledger(ctx context.Context) ([]engine.Transaction, *engine.AnchorSet, error) {
	txs, err := p.Store.Transactions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading transactions: %w", err)
	}
	raw, err := p.Store.Anchors(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading anchors: %w", err)
	}
	anchors, err := engine.NewAnchorSet(raw)
	if err != nil {
		return nil, nil, err
	}
	return txs, anchors, nil
}

// balanceBefore is the global balance at the end of the day before start.
func balanceBefore(anchors *engine.AnchorSet, txs []engine.Transaction, start engine.Date) *engine.Cents {
	balance, ok := anchors.BalanceAsOf(txs, engine.GlobalScope(), start.AddDays(-1))
	if !ok {
		return nil
	}
	return &balance
}
