package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/core"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	return config.Load(path)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}

	lg, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("Starting monitor",
		zap.String("version", version.Version),
		zap.Strings("engine", cfg.Engine.BaseURLs),
		zap.Int("symbols", len(cfg.Universe.Symbols)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := core.New(runCtx, core.Options{Config: cfg, Logger: lg})
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("Failed to close store", zap.Error(err))
		}
	}()

	l, err := c.Listen()
	if err != nil {
		return err
	}

	// first signal finishes the tick in flight, a second one aborts it
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			lg.Info("Shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-runCtx.Done():
			return
		}

		if sig, ok := <-sigs; ok {
			lg.Warn("Aborting in-flight work", zap.String("signal", sig.String()))
			c.Abort()
		}
	}()

	if err := c.Run(runCtx, l); err != nil {
		return err
	}

	lg.Info("Monitor stopped")

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func checkConfigAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pairs, _ := cfg.Pairs()

	fmt.Printf("Config OK: %d symbols, %d buy / %d sell rules (k_buy=%d, k_sell=%d), tick %s\n",
		len(pairs), len(cfg.Rules.Buy), len(cfg.Rules.Sell), cfg.Rules.KBuy, cfg.Rules.KSell, cfg.TickPeriod())

	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the monitor `YAML` config. Defaults apply when omitted.",
		Sources: cli.EnvVars("MONITOR_CONFIG"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "monitor",
		Usage:   "Monitor and control a trading engine",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the scheduler, HTTP API and chat bot",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Override the configured log level (debug, info, warn, error)",
					},
				},
				Action: serveAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
			{
				Name:   "check-config",
				Usage:  "Load and validate the config file",
				Flags:  []cli.Flag{configFlag()},
				Action: checkConfigAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
