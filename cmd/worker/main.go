package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/setup"
	"github.com/robalyx/starboard/internal/setup/telemetry"
	"github.com/robalyx/starboard/internal/worker/core"
	"github.com/robalyx/starboard/internal/worker/premium"
	"github.com/urfave/cli/v3"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// PremiumWorker autoredeems and expires guild premium.
	PremiumWorker = redis.WorkerPremium
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a starboard background worker",
		Commands: []*cli.Command{
			{
				Name:  PremiumWorker,
				Usage: "Start the premium expiry worker",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single sweep and exit",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runPremium(ctx, c.Bool("once"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, os.Args)
}

// runPremium sweeps expiring premium until interrupted.
func runPremium(ctx context.Context, once bool) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir, PremiumWorker)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.WithoutCancel(ctx))

	status, err := app.RedisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return fmt.Errorf("failed to get worker status client: %w", err)
	}

	logger := app.LogManager.GetWorkerLogger(PremiumWorker + "_worker")
	cfg := app.Config.Worker

	worker := premium.New(
		app.DB.Service().Premium(),
		time.Duration(cfg.PremiumLookahead)*time.Hour,
		logger,
	)

	if once {
		if err := worker.Run(ctx); err != nil {
			return err
		}
		return redis.MarkWorkerRun(ctx, status, PremiumWorker, time.Now())
	}

	core.RunPeriodic(ctx, core.Task{
		Name:         PremiumWorker,
		Interval:     time.Duration(cfg.PremiumInterval) * time.Second,
		StartupDelay: time.Duration(cfg.StartupDelay) * time.Millisecond,
		Run:          worker.Run,
	}, status, logger)

	log.Println("Premium worker stopped.")

	return nil
}
