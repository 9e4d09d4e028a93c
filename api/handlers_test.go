package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/api"
	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/logger"
	"github.com/benschem/safelyspend-sub000/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	handler *api.Handler
	router  http.Handler
	store   *memory.Memory
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	h := api.NewHandler(store)
	h.Now = func() engine.Date { return engine.MustParseDate("2024-01-15") }

	logs := &bytes.Buffer{}
	return &testServer{
		handler: h,
		router:  api.NewRouter(h, logger.NewWithWriter(logs), nil),
		store:   store,
		logs:    logs,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates a base scenario with pay and a fun budget, an anchor of
// 1000.00 on Dec 31 and January's pay.
func (s *testServer) seed(t *testing.T) {
	t.Helper()
	for _, step := range []struct{ path, body string }{
		{"/api/scenarios", `{"id": "base", "name": "Base"}`},
		{"/api/rules", `{"id": "pay", "scenario": "base", "kind": "income", "amount": "3000", "cadence": "monthly", "day_of_month": 1}`},
		{"/api/rules", `{"id": "fun", "scenario": "base", "kind": "budget", "amount": "300", "cadence": "monthly", "category": "fun"}`},
		{"/api/anchors", `{"date": "2023-12-31", "balance": "1000"}`},
		{"/api/transactions", `{"id": "t1", "date": "2024-01-01", "type": "income", "amount": "3000"}`},
	} {
		rec := s.do(t, http.MethodPost, step.path, step.body)
		require.Equal(t, http.StatusCreated, rec.Code, "%s: %s", step.path, rec.Body.String())
	}
}

// =============================================================================
// SCENARIOS & RULES
// =============================================================================

func TestScenarios_FirstIsDefault(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Scenarios []engine.Scenario `json:"scenarios"`
		Count     int               `json:"count"`
	}](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.True(t, resp.Scenarios[0].IsDefault)
}

func TestSetDefaultScenario(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/scenarios", `{"id": "lean", "name": "Lean"}`).Code)

	rec := s.do(t, http.MethodPost, "/api/scenarios/lean/default", "")
	require.Equal(t, http.StatusOK, rec.Code)

	def, err := s.store.DefaultScenario(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.ScenarioID("lean"), def.ID)

	rec = s.do(t, http.MethodPost, "/api/scenarios/nope/default", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRules(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios/base/rules", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Rules []engine.Rule `json:"rules"`
	}](t, rec)
	require.Len(t, resp.Rules, 2)
	assert.Equal(t, engine.Cents(300000), resp.Rules[0].AmountCents)
}

func TestCreateRule_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"kind": `, http.StatusBadRequest},
		{"unknown kind", `{"scenario": "base", "kind": "loan", "amount": "1", "cadence": "monthly"}`, http.StatusBadRequest},
		{"missing scenario field", `{"kind": "income", "amount": "1", "cadence": "monthly"}`, http.StatusBadRequest},
		{"unknown scenario", `{"scenario": "nope", "kind": "income", "amount": "1", "cadence": "monthly"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/rules", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeBody[api.ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestDiff(t *testing.T) {
	// GIVEN: A lean scenario that halves the fun budget
	s := newTestServer(t)
	s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/scenarios", `{"id": "lean", "name": "Lean"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/rules",
		`{"id": "lean-fun", "scenario": "lean", "kind": "budget", "amount": "150", "cadence": "monthly", "category": "fun"}`).Code)

	// WHEN: Lean is compared with the default
	rec := s.do(t, http.MethodGet, "/api/scenarios/lean/diff?as_of=2024-01-15", "")

	// THEN: Variable spending is 150.00 lower
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[engine.Comparison](t, rec)
	assert.Equal(t, engine.ScenarioID("base"), report.DefaultID)
	for _, total := range report.Totals {
		if total.Kind == engine.TotalVariableExpenses {
			assert.Equal(t, engine.Cents(-15000), total.Delta)
		}
	}

	// AND: Unknown scenarios are 404s
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/scenarios/nope/diff", "").Code)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestCreateAnchor_DuplicateIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/anchors", `{"date": "2023-12-31", "balance": "5"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate balance anchor")
}

func TestListAnchors_OrderedByDate(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/anchors", `{"date": "2023-11-30", "balance": "900"}`).Code)

	rec := s.do(t, http.MethodGet, "/api/anchors", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Anchors []engine.BalanceAnchor `json:"anchors"`
		Count   int                    `json:"count"`
	}](t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, engine.MustParseDate("2023-11-30"), resp.Anchors[0].Date)
	assert.Equal(t, engine.MustParseDate("2023-12-31"), resp.Anchors[1].Date)
}

func TestCreateAnchor_UnknownGoal(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/anchors", `{"date": "2023-12-31", "balance": "5", "goal": "nope"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/transactions",
		`{"date": "2024-02-03", "type": "expense", "amount": "42.10", "category": "fun"}`).Code)

	t.Run("all", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/transactions", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decodeBody[api.TransactionsResponse](t, rec).Count)
	})

	t.Run("range", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/transactions?from=2024-02-01&to=2024-02-29", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[api.TransactionsResponse](t, rec)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, engine.Cents(4210), resp.Transactions[0].AmountCents)
	})

	t.Run("half a range", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/transactions?from=2024-02-01", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad type", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/transactions", `{"date": "2024-02-03", "type": "transfer", "amount": "1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGoalsAndCategories(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/goals",
		`{"id": "trip", "name": "Trip", "target": "2000", "annual_interest_rate": "4"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/categories", `{"id": "fun", "name": "Fun"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/categories", `{"name": "No id"}`).Code)

	rec := s.do(t, http.MethodGet, "/api/goals", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	goals := decodeBody[struct {
		Goals []engine.GoalProgress `json:"goals"`
	}](t, rec)
	require.Len(t, goals.Goals, 1)
	assert.Equal(t, engine.Cents(200000), goals.Goals[0].Target)

	rec = s.do(t, http.MethodGet, "/api/goals/trip/projection?as_of=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"interest"`)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/goals/nope/projection", "").Code)

	rec = s.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

// =============================================================================
// PROJECTIONS
// =============================================================================

func TestGetBalance(t *testing.T) {
	s := newTestServer(t)

	t.Run("unknown without anchor", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/balance", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[api.BalanceResponse](t, rec)
		assert.False(t, resp.Known)
		assert.Nil(t, resp.Balance)
		assert.Equal(t, "global", resp.Scope)
	})

	s.seed(t)

	t.Run("reconstructed from anchor", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/balance?as_of=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[api.BalanceResponse](t, rec)
		require.True(t, resp.Known)
		assert.Equal(t, engine.Cents(400000), *resp.Balance)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/balance?as_of=31/01/2024", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetForecasts(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	t.Run("defaults to the current period", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/forecasts", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[api.ForecastsResponse](t, rec)
		assert.Equal(t, engine.MustParseDate("2024-01-01"), resp.From)
		assert.Equal(t, engine.MustParseDate("2024-01-31"), resp.To)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("reversed range", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/forecasts?from=2024-02-01&to=2024-01-01", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown scenario", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/forecasts?scenario=nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProjectCashFlow(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	t.Run("current period", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cashflow", `{"as_of": "2024-01-15"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		proj := decodeBody[engine.CashFlowProjection](t, rec)
		assert.Equal(t, engine.PeriodCurrent, proj.State)
		assert.Equal(t, engine.Cents(300000), proj.Expected.Income)
		assert.Equal(t, engine.Cents(30000), proj.Expected.VariableExpenses)
		require.NotNil(t, proj.StartingBalance)
		assert.Equal(t, engine.Cents(100000), *proj.StartingBalance)
	})

	t.Run("empty body uses today", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cashflow", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		proj := decodeBody[engine.CashFlowProjection](t, rec)
		assert.Equal(t, engine.MustParseDate("2024-01-15"), proj.AsOf)
	})

	t.Run("what-if override", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cashflow", `{"overrides": {"fun": "50"}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		proj := decodeBody[engine.CashFlowProjection](t, rec)
		assert.Equal(t, engine.Cents(5000), proj.Expected.VariableExpenses)
	})

	t.Run("explicit period", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cashflow", `{"start": "2024-02-01", "end": "2024-02-29"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		proj := decodeBody[engine.CashFlowProjection](t, rec)
		assert.Equal(t, engine.PeriodFuture, proj.State)
	})

	t.Run("negative override", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cashflow", `{"overrides": {"fun": "-1"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetMonthsAndDaily(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/months?from=2024-01&to=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	months := decodeBody[struct {
		Months []engine.MonthSummary `json:"months"`
	}](t, rec)
	require.Len(t, months.Months, 3)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/months?from=2024-03&to=2024-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/months?from=March", "").Code)

	rec = s.do(t, http.MethodGet, "/api/daily?from=2024-01-01&to=2024-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decodeBody[struct {
		Days []engine.DaySummary `json:"days"`
	}](t, rec)
	require.Len(t, days.Days, 7)
	require.NotNil(t, days.Days[0].Balance)
	assert.Equal(t, engine.Cents(400000), *days.Days[0].Balance)
}

func TestGetMonths_WhatIfOverrides(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	// WHEN: The fun budget is previewed at 50.00
	rec := s.do(t, http.MethodGet, "/api/months?from=2024-01&to=2024-02&override=fun:50", "")

	// THEN: Each month plans the override, pay is untouched
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[struct {
		Months []engine.MonthSummary `json:"months"`
	}](t, rec)
	require.Len(t, resp.Months, 2)
	for _, m := range resp.Months {
		assert.Equal(t, engine.Cents(5000), m.Planned.VariableExpenses)
		assert.Equal(t, engine.Cents(300000), m.Planned.Income)
	}

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/months?override=fun:-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/months?override=fun", "").Code)
}

func TestGetDaily_RangeTooLong(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/daily?from=2024-01-01&to=2024-12-31", "").Code)

	for _, q := range []string{"from=2024-01-01&to=2025-01-01", "from=1700-01-01&to=2100-01-01"} {
		rec := s.do(t, http.MethodGet, "/api/daily?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), "Date range too long")
	}
}

// =============================================================================
// DEMOS & MIDDLEWARE
// =============================================================================

func TestDemoLoadAndReset(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: The demo list
	rec := s.do(t, http.MethodGet, "/api/demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"what-if"`)

	// WHEN: The what-if demo is loaded
	rec = s.do(t, http.MethodPost, "/api/demo/load", `{"demo_id": "what-if"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[api.DemoResponse](t, rec)
	assert.Equal(t, 2, resp.Counts["scenarios"])

	// THEN: Both scenarios are diffable and the demo is current
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/scenarios/lean/diff", "").Code)
	assert.Contains(t, s.do(t, http.MethodGet, "/api/demo", "").Body.String(), `"current":"what-if"`)

	// AND: Reset clears the store
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reset", "").Code)
	scenarios, err := s.store.Scenarios(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}

func TestLoadDemo_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/demo/load", `{"demo_id": "lottery"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodGet, "/api/scenarios", "")

	assert.Contains(t, s.logs.String(), `"message":"HTTP request"`)
	assert.Contains(t, s.logs.String(), `"path":"/api/scenarios"`)
	assert.Contains(t, s.logs.String(), `"request_id"`)
}

func TestRecovery(t *testing.T) {
	logs := &bytes.Buffer{}
	h := api.Recovery(logger.NewWithWriter(logs))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "Panic recovered")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/cashflow", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
