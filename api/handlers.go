/*
handlers.go - HTTP API handlers for the budget projection engine

PURPOSE:
  Exposes the planner via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the planner and the store.

ENDPOINTS:
  Scenarios:
    GET    /api/scenarios                  List scenarios
    POST   /api/scenarios                  Create or replace a scenario
    POST   /api/scenarios/{id}/default     Make a scenario the default
    GET    /api/scenarios/{id}/rules       Rules of one scenario
    GET    /api/scenarios/{id}/diff        Compare against the default

  Ledger:
    POST   /api/rules                      Create or replace a rule
    GET    /api/transactions               Ledger, optionally ?from=&to=
    POST   /api/transactions               Record a transaction
    GET    /api/anchors                    Balance anchors
    POST   /api/anchors                    Record an anchor (409 on duplicate)
    GET    /api/goals                      Goal progress
    POST   /api/goals                      Create or replace a goal
    GET    /api/goals/{id}/projection      Progress plus interest forecast
    GET    /api/categories                 Categories
    POST   /api/categories                 Create or replace a category

  Projections:
    GET    /api/forecasts                  Expanded rule occurrences
    POST   /api/cashflow                   Plan vs pace, with what-if overrides
    GET    /api/months                     Monthly actual/forecast rollup
    GET    /api/daily                      Day-by-day balances
    GET    /api/balance                    Reconstructed balance
    GET    /api/alerts                     Latest divergence alert

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown scenario or goal, no default scenario
  - 409: Duplicate balance anchor
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - demo.go: Demo dataset loading and reset
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/factory"
	"github.com/benschem/safelyspend-sub000/logger"
	"github.com/benschem/safelyspend-sub000/planner"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   planner.ReadWriter
	Planner *planner.Planner

	// Monitor serves /api/alerts when set.
	Monitor *DivergenceMonitor

	// Now is the default as-of date.
	Now func() engine.Date

	mu          sync.Mutex
	currentDemo string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store planner.ReadWriter) *Handler {
	return &Handler{
		Store:   store,
		Planner: planner.New(store),
		Now:     engine.Today,
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.Store.Scenarios(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

// CreateScenario creates or replaces a scenario.
// POST /api/scenarios
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	scenario := req.Scenario()
	if err := h.Store.SaveScenario(r.Context(), scenario); err != nil {
		h.fail(w, r, "Failed to save scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, scenario)
}

// SetDefaultScenario makes {id} the default scenario.
// POST /api/scenarios/{id}/default
func (h *Handler) SetDefaultScenario(w http.ResponseWriter, r *http.Request) {
	id := engine.ScenarioID(chi.URLParam(r, "id"))
	if err := h.Store.SetDefaultScenario(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to set default scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"default": id})
}

// ListRules returns the rules of one scenario.
// GET /api/scenarios/{id}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	scenario, rules, err := h.Planner.ScenarioRules(r.Context(), engine.ScenarioID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": scenario, "rules": rules, "count": len(rules)})
}

// GetDiff compares scenario {id} with the default scenario.
// GET /api/scenarios/{id}/diff?as_of=
func (h *Handler) GetDiff(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	report, err := h.Planner.Diff(r.Context(), engine.ScenarioID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		h.fail(w, r, "Failed to compare scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// CreateRule creates or replaces a recurring rule.
// POST /api/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := req.Rule()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}
	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		h.fail(w, r, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// ListTransactions returns the ledger, optionally limited to ?from=&to=.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	var txs []engine.Transaction
	var err error
	switch {
	case fromStr == "" && toStr == "":
		txs, err = h.Store.Transactions(ctx)
	case fromStr == "" || toStr == "":
		writeError(w, http.StatusBadRequest, "from and to must be given together", nil)
		return
	default:
		var period engine.Period
		if period, err = parsePeriod(fromStr, toStr); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date range", err)
			return
		}
		txs, err = h.Store.TransactionsInRange(ctx, period.Start, period.End)
	}
	if err != nil {
		h.fail(w, r, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionsResponse{Transactions: txs, Count: len(txs)})
}

// CreateTransaction records a ledger entry.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	tx, err := req.Transaction()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}
	if err := h.Store.AppendTransaction(r.Context(), tx); err != nil {
		h.fail(w, r, "Failed to save transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListAnchors returns every balance anchor, global first, each scope by date.
func (h *Handler) ListAnchors(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Store.Anchors(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list anchors", err)
		return
	}
	set, err := engine.NewAnchorSet(raw)
	if err != nil {
		h.fail(w, r, "Failed to list anchors", err)
		return
	}
	anchors := set.All()
	writeJSON(w, http.StatusOK, map[string]any{"anchors": anchors, "count": len(anchors)})
}

// CreateAnchor records a balance anchor. A second anchor for the same day
// and scope is a conflict.
// POST /api/anchors
func (h *Handler) CreateAnchor(w http.ResponseWriter, r *http.Request) {
	var req CreateAnchorRequest
	if !decode(w, r, &req) {
		return
	}
	anchor, err := req.Anchor()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid anchor", err)
		return
	}
	if anchor.SavingsGoalID != "" {
		if _, err := h.Store.SavingsGoal(r.Context(), anchor.SavingsGoalID); err != nil {
			h.fail(w, r, "Failed to save anchor", err)
			return
		}
	}
	if err := h.Store.SaveAnchor(r.Context(), anchor); err != nil {
		h.fail(w, r, "Failed to save anchor", err)
		return
	}
	writeJSON(w, http.StatusCreated, anchor)
}

// ListGoals returns the progress of every savings goal.
// GET /api/goals?scenario=&as_of=
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	goals, err := h.Planner.Goals(r.Context(), scenarioParam(r), asOf)
	if err != nil {
		h.fail(w, r, "Failed to project goals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals, "count": len(goals)})
}

// CreateGoal creates or replaces a savings goal.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decode(w, r, &req) {
		return
	}
	goal, err := req.Goal()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid goal", err)
		return
	}
	if err := h.Store.SaveSavingsGoal(r.Context(), goal); err != nil {
		h.fail(w, r, "Failed to save goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// GetGoalProjection returns one goal's progress and interest forecast.
// GET /api/goals/{id}/projection?scenario=&as_of=
func (h *Handler) GetGoalProjection(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	detail, err := h.Planner.GoalProjection(r.Context(), scenarioParam(r), engine.GoalID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		h.fail(w, r, "Failed to project goal", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListCategories returns every category.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.Categories(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories, "count": len(categories)})
}

// CreateCategory creates or replaces a category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Category id is required", nil)
		return
	}
	category := engine.Category{ID: engine.CategoryID(req.ID), Name: req.Name}
	if err := h.Store.SaveCategory(r.Context(), category); err != nil {
		h.fail(w, r, "Failed to save category", err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// =============================================================================
// PROJECTION HANDLERS
// =============================================================================

// GetForecasts expands a scenario's rules over ?from=&to=, defaulting to the
// budget period containing as_of.
// GET /api/forecasts?scenario=&from=&to=&as_of=
func (h *Handler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	scenario, err := h.Planner.ResolveScenario(r.Context(), scenarioParam(r))
	if err != nil {
		h.fail(w, r, "Failed to resolve scenario", err)
		return
	}
	forecasts, err := h.Planner.Forecasts(r.Context(), scenario.ID, period.Start, period.End)
	if err != nil {
		h.fail(w, r, "Failed to expand rules", err)
		return
	}
	writeJSON(w, http.StatusOK, ForecastsResponse{
		Scenario:  scenario.ID,
		From:      period.Start,
		To:        period.End,
		Forecasts: forecasts,
		Count:     len(forecasts),
	})
}

// ProjectCashFlow runs the plan vs pace projection.
// POST /api/cashflow
func (h *Handler) ProjectCashFlow(w http.ResponseWriter, r *http.Request) {
	var req CashFlowRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	pr := planner.CashFlowRequest{ScenarioID: engine.ScenarioID(req.Scenario), AsOf: h.Now()}
	if req.AsOf != "" {
		asOf, err := engine.ParseDate(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
		pr.AsOf = asOf
	}
	if req.Start != "" || req.End != "" {
		period, err := parsePeriod(req.Start, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		pr.Period = period
	}
	for key, amount := range req.Overrides {
		if amount.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid override", fmt.Errorf("%s: amount must be >= 0", key))
			return
		}
		pr.Overlay = pr.Overlay.With(key, amount.Cents())
	}

	projection, err := h.Planner.CashFlow(r.Context(), pr)
	if err != nil {
		h.fail(w, r, "Failed to project cash flow", err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

// GetMonths rolls a scenario up by month. from/to are YYYY-MM and default
// to three months either side of as_of. Each override=key:dollars previews a
// what-if amount for a rule or category.
// GET /api/months?scenario=&from=&to=&as_of=&override=
func (h *Handler) GetMonths(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	current := engine.YearMonthOf(asOf)
	from, err := yearMonthParam(r, "from", current.Add(-3))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := yearMonthParam(r, "to", current.Add(3))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}

	overlay, err := overrideParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid override", err)
		return
	}

	months, err := h.Planner.Months(r.Context(), scenarioParam(r), from, to, asOf, overlay)
	if err != nil {
		h.fail(w, r, "Failed to aggregate months", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months, "count": len(months)})
}

// maxDailySpanDays bounds /api/daily, which returns one entry per day.
const maxDailySpanDays = 366

// GetDaily returns day-by-day flows and balances.
// GET /api/daily?scenario=&from=&to=&as_of=
func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	period, err := h.periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	if n := period.LengthDays(); n > maxDailySpanDays {
		writeError(w, http.StatusBadRequest, "Date range too long",
			fmt.Errorf("%s spans %d days, at most %d allowed", period, n, maxDailySpanDays))
		return
	}
	days, err := h.Planner.Daily(r.Context(), scenarioParam(r), period, asOf)
	if err != nil {
		h.fail(w, r, "Failed to build daily cash flow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "count": len(days)})
}

// GetBalance reconstructs the global balance, or a goal's with ?goal=.
// GET /api/balance?as_of=&goal=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	scope := engine.GoalScope(engine.GoalID(r.URL.Query().Get("goal")))
	balance, err := h.Planner.Balance(r.Context(), scope, asOf)
	if err != nil {
		h.fail(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{AsOf: asOf, Scope: scope.String(), Balance: balance, Known: balance != nil})
}

// GetAlerts returns the monitor's latest divergence alert, if any.
// GET /api/alerts
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []Alert
	if h.Monitor != nil {
		if alert := h.Monitor.Latest(); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) asOf(r *http.Request) (engine.Date, error) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return h.Now(), nil
	}
	return engine.ParseDate(s)
}

// periodParams reads ?from=&to=, defaulting to the configured budget period
// containing as_of.
func (h *Handler) periodParams(r *http.Request) (engine.Period, error) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		asOf, err := h.asOf(r)
		if err != nil {
			return engine.Period{}, err
		}
		return h.Planner.Period.PeriodFor(asOf), nil
	}
	return parsePeriod(from, to)
}

func parsePeriod(from, to string) (engine.Period, error) {
	start, err := engine.ParseDate(from)
	if err != nil {
		return engine.Period{}, fmt.Errorf("from: %w", err)
	}
	end, err := engine.ParseDate(to)
	if err != nil {
		return engine.Period{}, fmt.Errorf("to: %w", err)
	}
	p := engine.Period{Start: start, End: end}
	return p, p.Validate()
}

func yearMonthParam(r *http.Request, name string, fallback engine.YearMonth) (engine.YearMonth, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback, nil
	}
	return engine.ParseYearMonth(s)
}

// overrideParams reads repeated override=key:dollars query values.
func overrideParams(r *http.Request) (engine.Overlay, error) {
	values := r.URL.Query()["override"]
	if len(values) == 0 {
		return engine.Overlay{}, nil
	}
	pairs := make(map[string]string, len(values))
	for _, v := range values {
		key, amount, ok := strings.Cut(v, ":")
		if !ok || key == "" {
			return engine.Overlay{}, fmt.Errorf("override %q: want key:dollars", v)
		}
		pairs[key] = amount
	}
	return factory.ParseOverrides(pairs)
}

func scenarioParam(r *http.Request) engine.ScenarioID {
	return engine.ScenarioID(r.URL.Query().Get("scenario"))
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps domain errors to a status and logs anything unexpected.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	var inputErr *factory.InputError
	switch {
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err), errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
