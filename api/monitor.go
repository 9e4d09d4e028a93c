/*
monitor.go - Background divergence monitor

PURPOSE:
  Periodically projects the default scenario's current budget period and
  raises an alert when spending pace has drifted away from the plan.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on start
  - Keeps only the latest alert; a non-divergent check clears it
  - A store without a default scenario is skipped quietly

USAGE:
  monitor := NewDivergenceMonitor(planner, log)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: GetAlerts endpoint
  - engine/cashflow.go: divergence tolerance
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/planner"
)

// Alert reports a divergent budget period.
type Alert struct {
	CheckedAt         time.Time     `json:"checked_at"`
	Period            engine.Period `json:"period"`
	AsOf              engine.Date   `json:"as_of"`
	Divergence        engine.Cents  `json:"divergence"`
	Tolerance         engine.Cents  `json:"tolerance"`
	PlannedEndBalance *engine.Cents `json:"planned_end_balance"`
	PaceEndBalance    *engine.Cents `json:"pace_end_balance"`
}

// DivergenceMonitor checks the current period on a ticker.
type DivergenceMonitor struct {
	Planner       *planner.Planner
	Log           zerolog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is the as-of date for each check.
	Now func() engine.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	alertMu sync.RWMutex
	latest  *Alert
}

// NewDivergenceMonitor creates a monitor checking hourly.
func NewDivergenceMonitor(p *planner.Planner, log zerolog.Logger) *DivergenceMonitor {
	return &DivergenceMonitor{
		Planner:       p,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           engine.Today,
		stop:          make(chan struct{}),
	}
}

// Start begins the monitor.
func (m *DivergenceMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled || m.CheckInterval <= 0 {
		m.Log.Info().Msg("Divergence monitor disabled")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.Log.Info().Dur("interval", m.CheckInterval).Msg("Divergence monitor started")
}

// Stop stops the monitor and waits for an in-flight check.
func (m *DivergenceMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		m.Log.Info().Msg("Divergence monitor stopped")
	}
}

func (m *DivergenceMonitor) run() {
	defer m.wg.Done()

	m.RunNow(context.Background())

	for {
		select {
		case <-m.ticker.C:
			m.RunNow(context.Background())
		case <-m.stop:
			return
		}
	}
}

// RunNow performs one check immediately.
func (m *DivergenceMonitor) RunNow(ctx context.Context) {
	projection, err := m.Planner.CashFlow(ctx, planner.CashFlowRequest{AsOf: m.Now()})
	if err != nil {
		if errors.Is(err, engine.ErrNoDefaultScenario) {
			m.Log.Debug().Msg("Divergence check skipped: no default scenario")
			return
		}
		m.Log.Error().Err(err).Msg("Divergence check failed")
		return
	}

	if !projection.Divergent {
		m.setLatest(nil)
		return
	}

	alert := &Alert{
		CheckedAt:         time.Now(),
		Period:            projection.Period,
		AsOf:              projection.AsOf,
		Divergence:        projection.Divergence,
		Tolerance:         projection.DivergenceTolerance,
		PlannedEndBalance: projection.PlannedEndBalance,
		PaceEndBalance:    projection.PaceEndBalance,
	}
	m.setLatest(alert)

	m.Log.Warn().
		Str("period", projection.Period.String()).
		Int64("divergence", int64(projection.Divergence)).
		Int64("tolerance", int64(projection.DivergenceTolerance)).
		Msg("Spending pace diverges from plan")
}

// Latest returns the most recent alert, or nil when on plan.
func (m *DivergenceMonitor) Latest() *Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	return m.latest
}

func (m *DivergenceMonitor) setLatest(a *Alert) {
	m.alertMu.Lock()
	m.latest = a
	m.alertMu.Unlock()
}
