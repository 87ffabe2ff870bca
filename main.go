package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	api "github.com/redfeatherdev/AI-Meeting-Agent-Backend/cmd/api"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/config"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/database"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const serviceName = "meeting-agent"

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Calendar sync and meeting recording backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciliation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *api.App) error {
				app.Scheduler.Start()
				defer app.Scheduler.Stop()
				return app.Handler.Start(ctx, ":"+app.Config.Port)
			})
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *api.App) error {
				// shares the serve loop's lock, so a pass never overlaps a scheduled one
				report, err := app.Scheduler.Run(ctx)
				if err != nil {
					return err
				}
				app.Logger.Info().
					Int("accounts", report.Accounts).
					Int("failed_accounts", report.FailedAccounts).
					Int("dispatched", report.Dispatched).
					Int("matched", report.Match.Matched).
					Int64("high_water_mark", report.Match.Mark).
					Msg("reconcile finished")
				return report.MatchErr
			})
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.NewPostgresConnection(cfg)
			if err != nil {
				return err
			}
			if err := api.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("database schema is up to date")
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, reconcileCmd, migrateCmd)
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(serviceName, cfg.LogLevel, cfg.LogPretty), nil
}

func withApp(ctx context.Context, run func(ctx context.Context, app *api.App) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	app, err := api.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	return run(ctx, app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
