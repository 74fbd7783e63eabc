// Package cli wires the shiftd command tree: serve, jobs, and seed.
// Shared flags (database path, pricing overrides) live on the root command;
// each subcommand opens its own store so one-shot commands never collide
// with a running server on the same database file thanks to WAL mode.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/payroll"
	"github.com/warp/shift-engine/store/sqlite"
)

var (
	dbPath             string
	defaultTaskPenalty string
)

var rootCmd = &cobra.Command{
	Use:   "shiftd",
	Short: "Shift lifecycle and payroll adjustment engine",
	Long: `shiftd tracks hourly shifts from planning through close and turns the
finished shifts into priced payroll statements.

The serve command runs the HTTP API with a background scheduler driving
the daily auto_close -> adjustments -> payroll chain. The jobs commands
run the same chain by hand, for catch-up or replay.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, printing errors to stderr.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗ %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db",
		envOr("SHIFT_DB", "shift.db"),
		`SQLite database path (":memory:" for in-memory)`)
	rootCmd.PersistentFlags().StringVar(&defaultTaskPenalty, "default-task-penalty",
		envOr("SHIFT_DEFAULT_TASK_PENALTY", ""),
		"penalty for skipped mandatory tasks without their own amount")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database %q: %w", dbPath, err)
	}
	return store, nil
}

func engineConfig() payroll.Config {
	config := payroll.DefaultConfig()
	if defaultTaskPenalty != "" {
		config.DefaultTaskPenalty = core.ParseMoney(defaultTaskPenalty)
	}
	return config
}
