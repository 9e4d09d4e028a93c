package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benschem/safelyspend-sub000/cli"
	"github.com/benschem/safelyspend-sub000/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(opts)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			status := "loaded"
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				status = "using defaults (no config file)"
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, cli.RenderTitle("CONFIG"))
			fmt.Fprint(w, cli.RenderKeyValues([][2]string{
				{"Config file", path},
				{"Status", status},
				{"Database", cfg.Server.DBPath},
				{"Port", fmt.Sprint(cfg.Server.Port)},
				{"Monitor interval", cfg.Server.MonitorInterval},
				{"Divergence floor", cli.FormatCents(cfg.DivergenceFloor())},
				{"Budget period", string(cfg.Engine.Period.Type)},
				{"Log level", cfg.Log.Level},
			}))
			return nil
		},
	}
	cmd.AddCommand(newConfigInitCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(opts)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

// configPath is --config, else the default location.
func configPath(opts *options) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	return config.Path()
}
