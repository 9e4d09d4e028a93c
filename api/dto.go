/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request bodies reuse
  the factory's hand-written JSON forms (dollars, weekday names) so the API
  and dataset files accept the same shapes. Responses are engine records,
  which already carry snake_case JSON tags.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done by the factory and the stores, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/dataset.go: RuleJSON, TransactionJSON and friends
*/
package api

import (
	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/factory"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type (
	CreateScenarioRequest    = factory.ScenarioJSON
	CreateRuleRequest        = factory.RuleJSON
	CreateTransactionRequest = factory.TransactionJSON
	CreateAnchorRequest      = factory.AnchorJSON
	CreateGoalRequest        = factory.GoalJSON
	CreateCategoryRequest    = factory.CategoryJSON
)

// CashFlowRequest asks for a plan vs pace projection. Start/End default to
// the configured budget period containing AsOf, and AsOf defaults to today.
type CashFlowRequest struct {
	Scenario string `json:"scenario,omitempty"`
	AsOf     string `json:"as_of,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`

	// Overrides is the what-if overlay, keyed by rule or category ID.
	Overrides map[string]factory.Money `json:"overrides,omitempty"`
}

// LoadDemoRequest selects a demo dataset.
type LoadDemoRequest struct {
	DemoID string `json:"demo_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ForecastsResponse struct {
	Scenario  engine.ScenarioID `json:"scenario"`
	From      engine.Date       `json:"from"`
	To        engine.Date       `json:"to"`
	Forecasts []engine.Forecast `json:"forecasts"`
	Count     int               `json:"count"`
}

type TransactionsResponse struct {
	Transactions []engine.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

// BalanceResponse carries a reconstructed balance. Balance is null when no
// anchor makes it knowable.
type BalanceResponse struct {
	AsOf    engine.Date   `json:"as_of"`
	Scope   string        `json:"scope"`
	Balance *engine.Cents `json:"balance"`
	Known   bool          `json:"known"`
}

// DemoResponse reports which demo is loaded.
type DemoResponse struct {
	Demo   *factory.DemoInfo `json:"demo"`
	Counts map[string]int    `json:"counts,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
