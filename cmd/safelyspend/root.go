package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benschem/safelyspend-sub000/config"
	"github.com/benschem/safelyspend-sub000/engine"
	"github.com/benschem/safelyspend-sub000/factory"
	"github.com/benschem/safelyspend-sub000/logger"
	"github.com/benschem/safelyspend-sub000/planner"
	"github.com/benschem/safelyspend-sub000/store/memory"
	"github.com/benschem/safelyspend-sub000/store/sqlite"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	dataFile   string
	dbPath     string
	demo       string
	scenario   string
	asOf       string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "safelyspend",
		Short:         "Budget forecasts and cash-flow projections",
		Long:          "Expand recurring rules, project plan vs pace, and track savings goals from a dataset file or a SQLite database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default $SAFELYSPEND_CONFIG or ~/.config/safelyspend/config.toml)")
	pf.StringVar(&opts.dataFile, "data", "", "JSON dataset file")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database (default from config)")
	pf.StringVar(&opts.demo, "demo", "", "Use a built-in demo dataset (steady, overspend, what-if)")
	pf.StringVarP(&opts.scenario, "scenario", "s", "", "Scenario ID (default scenario if empty)")
	pf.StringVar(&opts.asOf, "as-of", "", "As-of date YYYY-MM-DD (default today)")
	root.MarkFlagsMutuallyExclusive("data", "db", "demo")

	root.AddCommand(
		newForecastCmd(opts),
		newCashFlowCmd(opts),
		newMonthsCmd(opts),
		newGoalsCmd(opts),
		newDiffCmd(opts),
		newBalanceCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// session is an opened store with the planner configured from config.
type session struct {
	planner  *planner.Planner
	asOf     engine.Date
	scenario engine.ScenarioID
	close    func()
}

// open loads config and the selected data source. Exactly one of --demo,
// --data or --db is used; with none the config's db_path is opened.
func (o *options) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	asOf := engine.Today()
	if o.asOf != "" {
		if asOf, err = engine.ParseDate(o.asOf); err != nil {
			return nil, fmt.Errorf("--as-of: %w", err)
		}
	}

	var store planner.Store
	closeFn := func() {}
	switch {
	case o.demo != "":
		ds, err := factory.Demo(o.demo, asOf)
		if err != nil {
			return nil, err
		}
		mem := memory.New()
		if err := ds.Import(ctx, mem); err != nil {
			return nil, err
		}
		store = mem

	case o.dataFile != "":
		ds, err := factory.LoadFile(o.dataFile)
		if err != nil {
			return nil, err
		}
		mem := memory.New()
		if err := ds.Import(ctx, mem); err != nil {
			return nil, err
		}
		store = mem

	default:
		path := o.dbPath
		if path == "" {
			path = cfg.Server.DBPath
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		store = db
		closeFn = func() { db.Close() }
	}

	p := planner.New(store)
	p.Log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	p.DivergenceFloor = cfg.DivergenceFloor()
	p.Period = cfg.Engine.Period

	return &session{planner: p, asOf: asOf, scenario: engine.ScenarioID(o.scenario), close: closeFn}, nil
}

// withSession opens a session for the duration of fn.
func (o *options) withSession(cmd *cobra.Command, fn func(*session) error) error {
	s, err := o.open(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
