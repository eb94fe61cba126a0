package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/sweep"
	"github.com/urfave/cli/v3"
)

// sweepAction loads the plan, runs every backtest and prints the ranked report.
func sweepAction(ctx context.Context, cmd *cli.Command) error {
	plan, err := sweep.LoadPlan(cmd.String("plan"))
	if err != nil {
		return err
	}

	if cmd.IsSet("parallel") {
		plan.Parallel = int(cmd.Int("parallel"))
	}

	if cmd.IsSet("output") {
		plan.OutputDir = cmd.String("output")
	}

	if cmd.Bool("dry-run") {
		for _, job := range plan.Jobs() {
			fmt.Printf("%s\t%v\n", job.Name(), job.Pairs)
		}

		return nil
	}

	lg, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	webhook := plan.WebhookURL
	if cmd.IsSet("webhook") {
		webhook = cmd.String("webhook")
	}

	var notifier alerts.Channel
	if webhook != "" {
		notifier = alerts.NewWebhookChannel(webhook, 10*time.Second)
	}

	runner, err := sweep.NewRunner(sweep.Options{
		Plan:     plan,
		Executor: sweep.ProcessExecutor{},
		Notifier: notifier,
		Progress: os.Stderr,
		Logger:   lg,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if report != nil {
		if werr := report.WriteText(os.Stdout); werr != nil {
			return werr
		}

		fmt.Printf("\nReport written to %s\n", report.Dir)
	}

	return err
}

func main() {
	cmd := &cli.Command{
		Name:  "sweep",
		Usage: "Run engine backtests over timeranges, symbol groups and stakes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "plan",
				Aliases:  []string{"p"},
				Usage:    "Path to the sweep plan `YAML` file",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "Backtests run at the same time (overrides the plan)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory receiving the run folder (overrides the plan)",
			},
			&cli.StringFlag{
				Name:  "webhook",
				Usage: "URL notified when the sweep completes (overrides the plan)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Only list the jobs",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn or error",
			},
		},
		Action: sweepAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
