package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/exchange"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

type downloader interface {
	Download(ctx context.Context, pair types.Pair, timeframe string, start, end time.Time, onProgress exchange.OnDownloadProgress) ([]types.Candle, error)
}

func newDownloader(provider, baseURL, apiKey, timeframe string) (downloader, error) {
	switch provider {
	case "binance":
		if err := exchange.ValidateInterval(timeframe); err != nil {
			return nil, err
		}

		return exchange.NewBinanceClient(baseURL), nil
	case "polygon":
		client, err := exchange.NewPolygonClient(apiKey)
		if err != nil {
			return nil, err
		}

		return client, nil
	}

	return nil, fmt.Errorf("unknown provider %q, expected binance or polygon", provider)
}

// downloadAction fetches klines for every pair and stores them as engine
// data files.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	timeframe := cmd.String("timeframe")
	dataDir := cmd.String("data")
	quote := cmd.String("quote")

	pairs := make([]types.Pair, 0)

	for _, raw := range cmd.StringSlice("pairs") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}

			pair, err := types.ParsePair(part, quote)
			if err != nil {
				return err
			}

			pairs = append(pairs, pair)
		}
	}

	if len(pairs) == 0 {
		return fmt.Errorf("no pairs given")
	}

	client, err := newDownloader(cmd.String("provider"), cmd.String("base-url"), cmd.String("api-key"), timeframe)
	if err != nil {
		return err
	}

	log.Printf("Downloading %d pairs (%s) via %s from %s to %s into %s",
		len(pairs), timeframe, cmd.String("provider"), start.Format("2006-01-02"), end.Format("2006-01-02"), dataDir)

	for _, pair := range pairs {
		bar := progressbar.NewOptions64(
			end.Sub(start).Milliseconds(),
			progressbar.OptionSetDescription(pair.String()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)

		candles, err := client.Download(ctx, pair, timeframe, start, end, func(current, _ float64, _ string) {
			_ = bar.Set64(int64(current))
		})
		if err != nil {
			return fmt.Errorf("download of %s failed: %w", pair, err)
		}

		_ = bar.Finish()

		path, rows, err := exchange.WriteDataFile(dataDir, pair, timeframe, candles)
		if err != nil {
			return err
		}

		log.Printf("%s: %d new candles, %d in %s", pair, len(candles), rows, path)
	}

	log.Println("Download completed successfully.")

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download exchange klines into engine data files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "pairs",
				Aliases:  []string{"p"},
				Usage:    "Pairs such as BTC/USDC, repeated or comma separated",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to now.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"t"},
				Usage:   "Kline interval",
				Value:   "5m",
			},
			&cli.StringFlag{
				Name:  "quote",
				Usage: "Required quote currency; empty accepts any",
				Value: "USDC",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Engine data directory, e.g. user_data/data/binance",
				Value:   "user_data/data/binance",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Market data provider: binance or polygon",
				Value: "binance",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Binance REST endpoint; empty uses production",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Polygon API key",
				Sources: cli.EnvVars("MONITOR_POLYGON_API_KEY"),
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
