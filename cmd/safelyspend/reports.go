package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/benschem/safelyspend-sub000/cli"
	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/factory"
	"github.com/benschem/safelyspend-sub000/planner"
)

// =============================================================================
// FORECAST
// =============================================================================

func newForecastCmd(opts *options) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "List expected rule occurrences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(s *session) error {
				period, err := periodFlags(s, from, to)
				if err != nil {
					return err
				}
				forecasts, err := s.planner.Forecasts(cmd.Context(), s.scenario, period.Start, period.End)
				if err != nil {
					return err
				}
				return renderForecasts(cmd.OutOrStdout(), period, forecasts)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (default: start of the current budget period)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (default: end of the current budget period)")
	return cmd
}

func renderForecasts(w io.Writer, period engine.Period, forecasts []engine.Forecast) error {
	fmt.Fprintln(w, cli.RenderTitle("FORECAST  "+period.String()))
	if len(forecasts) == 0 {
		fmt.Fprintln(w, "\n  Nothing scheduled.")
		return nil
	}

	rows := make([][]string, 0, len(forecasts))
	for _, f := range forecasts {
		label := f.Description
		if label == "" {
			label = f.SourceID
		}
		rows = append(rows, []string{
			f.Date.String(),
			label,
			string(f.CategoryID),
			string(f.Type),
			cli.FormatCents(f.AmountCents),
		})
	}
	_, err := fmt.Fprint(w, cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Description", "Category", "Type", "Amount"},
		Rows:    rows,
	}))
	return err
}

// =============================================================================
// CASH FLOW
// =============================================================================

func newCashFlowCmd(opts *options) *cobra.Command {
	var from, to string
	var next, previous bool
	var overrides map[string]string
	cmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Plan vs pace for a budget period",
		Long:  "Projects the budget period's cash flow. --override rule-or-category=dollars previews a what-if without changing the plan.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(s *session) error {
				req := planner.CashFlowRequest{ScenarioID: s.scenario, AsOf: s.asOf}
				current := s.planner.Period.PeriodFor(s.asOf)
				switch {
				case next:
					req.Period = s.planner.Period.NextPeriod(current)
				case previous:
					req.Period = s.planner.Period.PreviousPeriod(current)
				case from != "" || to != "":
					period, err := periodFlags(s, from, to)
					if err != nil {
						return err
					}
					req.Period = period
				}
				overlay, err := factory.ParseOverrides(overrides)
				if err != nil {
					return fmt.Errorf("--override: %w", err)
				}
				req.Overlay = overlay

				proj, err := s.planner.CashFlow(cmd.Context(), req)
				if err != nil {
					return err
				}
				renderCashFlow(cmd.OutOrStdout(), proj)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Period start (default: current budget period)")
	cmd.Flags().StringVar(&to, "to", "", "Period end")
	cmd.Flags().BoolVar(&next, "next", false, "Project the budget period after the current one")
	cmd.Flags().BoolVar(&previous, "previous", false, "Project the budget period before the current one")
	cmd.Flags().StringToStringVar(&overrides, "override", nil, "What-if amount per rule or category, e.g. fun=150")
	cmd.MarkFlagsMutuallyExclusive("next", "previous", "from")
	cmd.MarkFlagsMutuallyExclusive("next", "previous", "to")
	return cmd
}

func renderCashFlow(w io.Writer, p *engine.CashFlowProjection) {
	fmt.Fprintln(w, cli.RenderTitle(fmt.Sprintf("CASH FLOW  %s  (%s, day %d of %d)", p.Period, p.State, p.ElapsedDays, p.TotalDays)))

	rows := [][]string{
		{"Income", cli.FormatCents(p.Expected.Income), cli.FormatCents(p.Actual.Income)},
		{"Fixed expenses", cli.FormatCents(p.Expected.FixedExpenses), cli.FormatCents(p.Actual.FixedExpenses)},
		{"Variable expenses", cli.FormatCents(p.Expected.VariableExpenses), cli.FormatCents(p.Actual.VariableExpenses)},
		{"Savings", cli.FormatCents(p.Expected.Savings), cli.FormatCents(p.Actual.Savings)},
	}
	fmt.Fprint(w, cli.RenderTable(cli.Table{Headers: []string{"", "Expected", "Actual"}, Rows: rows}))

	status := cli.Good("on plan")
	if p.Divergent {
		status = cli.Bad("diverging " + cli.FormatDelta(p.Divergence))
	}
	pairs := [][2]string{
		{"Starting balance", cli.FormatOptionalCents(p.StartingBalance)},
		{"Current balance", cli.FormatOptionalCents(p.CurrentBalance)},
		{"Planned end", cli.FormatOptionalCents(p.PlannedEndBalance)},
	}
	if p.PaceEndBalance != nil {
		pairs = append(pairs, [2]string{"Pace end", cli.FormatCents(*p.PaceEndBalance)})
	}
	pairs = append(pairs, [2]string{"Pace", status})
	fmt.Fprint(w, cli.RenderKeyValues(pairs))

	if len(p.Categories) == 0 {
		return
	}
	cats := make([][]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		burn := "-"
		if c.BurnRate.Valid {
			burn = cli.FormatPercent(c.BurnRate.Decimal.Shift(2))
		}
		cats = append(cats, []string{
			string(c.CategoryID),
			cli.FormatCents(c.Expected),
			cli.FormatCents(c.Actual),
			cli.FormatCents(c.Remaining),
			burn,
		})
	}
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Title:   "Categories",
		Headers: []string{"Category", "Expected", "Actual", "Remaining", "Used"},
		Rows:    cats,
	}))
}

// =============================================================================
// MONTHS
// =============================================================================

func newMonthsCmd(opts *options) *cobra.Command {
	var from, to string
	var overrides map[string]string
	cmd := &cobra.Command{
		Use:   "months",
		Short: "Monthly actuals and forecasts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(s *session) error {
				current := engine.YearMonthOf(s.asOf)
				first, err := yearMonthFlag(from, current.Add(-3))
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				last, err := yearMonthFlag(to, current.Add(3))
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}

				overlay, err := factory.ParseOverrides(overrides)
				if err != nil {
					return fmt.Errorf("--override: %w", err)
				}

				months, err := s.planner.Months(cmd.Context(), s.scenario, first, last, s.asOf, overlay)
				if err != nil {
					return err
				}
				renderMonths(cmd.OutOrStdout(), months)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First month YYYY-MM (default: three months ago)")
	cmd.Flags().StringVar(&to, "to", "", "Last month YYYY-MM (default: three months ahead)")
	cmd.Flags().StringToStringVar(&overrides, "override", nil, "What-if amount per rule or category, e.g. rent=1500")
	return cmd
}

func renderMonths(w io.Writer, months []engine.MonthSummary) {
	fmt.Fprintln(w, cli.RenderTitle("MONTHS"))

	rows := make([][]string, 0, len(months))
	for _, m := range months {
		rows = append(rows, []string{
			m.Month.String(),
			string(m.State),
			cli.FormatCents(m.Actual.Income + m.Forecast.Income),
			cli.FormatCents(m.Actual.Expenses + m.Forecast.Expenses),
			cli.FormatCents(m.Actual.Savings + m.Forecast.Savings),
			cli.FormatDelta(m.Surplus),
			cli.FormatDelta(m.PlannedSurplus),
			cli.FormatOptionalCents(m.ClosingBalance),
		})
	}
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Headers: []string{"Month", "State", "Income", "Expenses", "Savings", "Surplus", "Planned", "Closing"},
		Rows:    rows,
	}))
}

// =============================================================================
// GOALS
// =============================================================================

func newGoalsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "goals",
		Short: "Savings goal progress and projected completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(s *session) error {
				goals, err := s.planner.Goals(cmd.Context(), s.scenario, s.asOf)
				if err != nil {
					return err
				}
				renderGoals(cmd.OutOrStdout(), goals)
				return nil
			})
		},
	}
}

func renderGoals(w io.Writer, goals []engine.GoalProgress) {
	fmt.Fprintln(w, cli.RenderTitle("SAVINGS GOALS"))
	if len(goals) == 0 {
		fmt.Fprintln(w, "\n  No savings goals.")
		return
	}

	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		eta := "unreachable"
		if g.Projection != nil {
			eta = g.Projection.Month.String() + " (" + cli.FormatMonths(g.Projection.MonthsAway) + ")"
		}
		status := cli.Bad("behind")
		if g.OnTrack {
			status = cli.Good("on track")
		}
		rows = append(rows, []string{
			g.Name,
			cli.FormatCents(g.Balance),
			cli.FormatCents(g.Target),
			cli.FormatPercent(g.PercentComplete),
			cli.FormatCents(g.AvgMonthly),
			eta,
			status,
		})
	}
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Headers: []string{"Goal", "Balance", "Target", "Done", "Avg/month", "ETA", "Status"},
		Rows:    rows,
	}))
}

// =============================================================================
// DIFF
// =============================================================================

func newDiffCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <scenario>",
		Short: "Compare a scenario's monthly totals and rules with the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(s *session) error {
				report, err := s.planner.Diff(cmd.Context(), engine.ScenarioID(args[0]), s.asOf)
				if err != nil {
					return err
				}
				renderDiff(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func renderDiff(w io.Writer, c engine.Comparison) {
	fmt.Fprintln(w, cli.RenderTitle(fmt.Sprintf("DIFF  %s vs %s (monthly)", c.ActiveID, c.DefaultID)))

	totals := make([][]string, 0, len(c.Totals))
	for _, t := range c.Totals {
		totals = append(totals, []string{
			string(t.Kind),
			cli.FormatCents(t.Default),
			cli.FormatCents(t.Current),
			cli.FormatDelta(t.Delta),
		})
	}
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Headers: []string{"Total", string(c.DefaultID), string(c.ActiveID), "Delta"},
		Rows:    totals,
	}))

	var changed [][]string
	for _, r := range c.Rules {
		switch {
		case r.IsNew:
			changed = append(changed, []string{r.Identity, "-", cli.FormatCents(r.Monthly), cli.Warn("new")})
		case r.IsDifferent:
			changed = append(changed, []string{r.Identity, cli.FormatOptionalCents(r.Default), cli.FormatCents(r.Monthly), cli.Warn("changed")})
		}
	}
	if len(changed) == 0 {
		fmt.Fprintln(w, "\n  No rule differences.")
		return
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i][0] < changed[j][0] })
	fmt.Fprint(w, cli.RenderTable(cli.Table{
		Title:   "Rules",
		Headers: []string{"Rule", "Default", "Scenario", ""},
		Rows:    changed,
	}))
}

// =============================================================================
// BALANCE
// =============================================================================

func newBalanceCmd(opts *options) *cobra.Command {
	var goal string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Reconstruct the balance from anchors and the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(s *session) error {
				scope := engine.GoalScope(engine.GoalID(goal))
				balance, err := s.planner.Balance(cmd.Context(), scope, s.asOf)
				if err != nil {
					return err
				}
				value := cli.FormatOptionalCents(balance)
				if balance == nil {
					value = cli.Warn("unknown (no balance anchor)")
				}
				fmt.Fprint(cmd.OutOrStdout(), cli.RenderKeyValues([][2]string{
					{"Scope", scope.String()},
					{"As of", s.asOf.String()},
					{"Balance", value},
				}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "Savings goal ID (default: global cash)")
	return cmd
}

// =============================================================================
// FLAG HELPERS
// =============================================================================

// periodFlags parses --from/--to, defaulting to the budget period of as-of.
func periodFlags(s *session, from, to string) (engine.Period, error) {
	period := s.planner.Period.PeriodFor(s.asOf)
	var err error
	if from != "" {
		if period.Start, err = engine.ParseDate(from); err != nil {
			return period, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if period.End, err = engine.ParseDate(to); err != nil {
			return period, fmt.Errorf("--to: %w", err)
		}
	}
	return period, period.Validate()
}

func yearMonthFlag(s string, fallback engine.YearMonth) (engine.YearMonth, error) {
	if s == "" {
		return fallback, nil
	}
	return engine.ParseYearMonth(s)
}
