package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xraph/tally/internal/config"
	"github.com/xraph/tally/internal/logger"
)

var version = "dev"

// app holds what every subcommand shares once flags are parsed.
var app struct {
	cfg *config.Config
	log *zap.Logger
}

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Ledger and stock reconciliation service",
	Long: `tally keeps client balances, the shared invoice counter and stock levels
consistent with the invoices that move them.

Configuration is read from tally.yaml (or --config) and TALLY_* environment
variables; a .env file is loaded first when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		log, err := logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return err
		}

		app.cfg = cfg
		app.log = log.With(zap.String("env", cfg.Env))
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if app.log != nil {
			_ = app.log.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if app.log != nil {
			app.log.Error("command failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: tally.yaml in . or /etc/tally)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config")
}
