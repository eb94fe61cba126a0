package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

func dashboardAction(_ context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("url"), requestTimeout)

	p := tea.NewProgram(NewModel(client, cmd.Duration("interval")), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "dashboard",
		Usage: "Terminal dashboard for a running monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "Monitor base URL",
				Value:   "http://127.0.0.1:8500",
				Sources: cli.EnvVars("MONITOR_URL"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Poll interval",
				Value:   5 * time.Second,
			},
		},
		Action: dashboardAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
