// Command reminders sends the midday, evening and weekly reminder email.
//
//	reminders run midday|evening|weekly   one run, for an external cron
//	reminders schedule                    long-running loop on the configured times
//
// Run failures are logged and counted; they never produce a non-zero exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/config"
	"habitroom-backend/internal/database"
	"habitroom-backend/internal/logging"
	"habitroom-backend/internal/mailer"
	"habitroom-backend/internal/notify"
	"habitroom-backend/internal/repository"
	"habitroom-backend/internal/scheduler"
	"habitroom-backend/internal/tokens"
)

var (
	cfg    config.Config
	logger *zap.Logger
	dryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Send Habit Rooms reminder and weekly-winner email",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		return cfg.ValidateJob()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:       "run midday|evening|weekly",
	Short:     "Execute a single reminder run and exit",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(notify.KindMidday), string(notify.KindEvening), string(notify.KindWeekly)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := notify.ParseKind(args[0])
		if err != nil {
			return err
		}
		return withJob(cmd.Context(), func(ctx context.Context, job *notify.Job) {
			if dryRun {
				planOnly(ctx, job, kind)
				return
			}
			job.Run(ctx, kind)
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run forever, firing each reminder run at its configured local time",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := scheduler.FromConfig(cfg.Schedule)
		if err != nil {
			return err
		}
		return withJob(cmd.Context(), func(ctx context.Context, job *notify.Job) {
			s := scheduler.New(entries, cfg.Location, calendar.System{}, func(ctx context.Context, kind notify.Kind) {
				job.Run(ctx, kind)
			}, logger)
			if err := s.Run(ctx); err != nil {
				logger.Error("scheduler stopped", zap.Error(err))
			}
		})
	},
}

// withJob connects to Mongo and hands fn a ready Job. Only setup errors are
// returned; whatever fn does is logged, not propagated.
func withJob(ctx context.Context, fn func(context.Context, *notify.Job)) error {
	client, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName, logger)
	if err != nil {
		logger.Error("❌ Failed to connect to MongoDB", zap.Error(err))
		return nil
	}
	defer disconnect(client)

	clock := calendar.System{}
	composer := notify.NewComposer(cfg.HTTP.AppURL, cfg.HTTP.BaseURL, tokens.NewIssuer(cfg.JWTSecret, clock))
	job := notify.NewJob(
		repository.NewDirectory(),
		mailer.New(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, logger),
		composer,
		clock,
		notify.JobConfig{
			FromName:    cfg.Email.FromName,
			Concurrency: cfg.Email.Concurrency,
			Location:    cfg.Location,
		},
		logger,
	)
	fn(ctx, job)
	return nil
}

func planOnly(ctx context.Context, job *notify.Job, kind notify.Kind) {
	today := calendar.Today(calendar.System{}, cfg.Location)
	msgs, err := job.Plan(ctx, kind, today)
	if err != nil {
		logger.Error("plan failed", zap.Error(err))
		return
	}
	for _, m := range msgs {
		fmt.Printf("%-16s %-32s %s\n", m.Variant, m.To, m.Subject)
	}
	fmt.Printf("%d messages planned for %s run on %s\n", len(msgs), kind, today)
}

func disconnect(client *mongo.Client) {
	if err := client.Disconnect(context.Background()); err != nil {
		logger.Warn("disconnect mongo", zap.Error(err))
	}
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the planned messages without sending")
	rootCmd.AddCommand(runCmd, scheduleCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
