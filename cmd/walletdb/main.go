package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"walletstore/internal/app"
	"walletstore/internal/config"
	"walletstore/internal/walletdb"
)

// Build info - injected via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:           "walletdb",
	Short:         "Wallet SQLite store",
	Long:          `walletdb opens, checks and serves diagnostics for the wallet database.`,
	Version:       fmt.Sprintf("%s (%s)", Version, Commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newApp loads config; --db overrides DB_PATH.
func newApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	return app.NewWithConfig(cfg), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides DB_PATH)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Open the database and run maintenance and diagnostics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the database if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Init(cmd.Context(), cmd.OutOrStdout())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the DDL of the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "-- schema version %d\n", walletdb.Version)
			for _, t := range walletdb.Tables() {
				fmt.Fprintf(out, "%s;\n", t.CreateStatement())
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Run PRAGMA quick_check",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Check(cmd.Context(), cmd.OutOrStdout())
		},
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
