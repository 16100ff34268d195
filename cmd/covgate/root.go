package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/covgate/config"
	"github.com/hazyhaar/covgate/coverage"
)

// errRejected makes `covgate check` exit non-zero when coverage dropped.
var errRejected = errors.New("coverage check rejected")

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "covgate",
		Short:         "Record code coverage per branch and gate merges on it",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to the YAML config file")
	root.PersistentFlags().String("db", "", "ledger database path (overrides config)")
	root.PersistentFlags().String("log-level", "", "debug | info | warn | error (overrides config)")

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newSaveCmd(),
		newHistoryCmd(),
		newLsCmd(),
	)
	return root
}

// loadConfig reads --config and applies the --db and --log-level flags.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Coverage.DBPath = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		if _, err := config.ParseLevel(lvl); err != nil {
			return nil, "", fmt.Errorf("--log-level: %w", err)
		}
		cfg.Server.LogLevel = lvl
	}
	return cfg, path, nil
}

// openLedger opens the coverage service for one-shot CLI commands. Logs go
// to stderr so stdout stays machine-readable.
func openLedger(cmd *cobra.Command) (*coverage.Service, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	lvl, _ := config.ParseLevel(cfg.Server.LogLevel)
	if lvl < slog.LevelWarn {
		lvl = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	return coverage.New(&cfg.Coverage, logger)
}

func keyArgs(args []string) coverage.Key {
	return coverage.Key{ProjectName: args[0], Branch: args[1], TestName: args[2]}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
