// Package exchange reads candles straight from the exchange. The monitor uses
// it as a fallback when the engine cannot serve pair_candles, and the
// downloader uses it to fetch history.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// pageSize is the Binance klines page limit.
const pageSize = 1000

// CandleSource returns the latest candles of a pair, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, pair types.Pair, timeframe string, limit int) ([]types.Candle, error)
}

// OnDownloadProgress is called after each fetched page with the covered and
// total span in milliseconds.
type OnDownloadProgress func(current float64, total float64, message string)

type BinanceClient struct {
	client *binance.Client
}

var _ CandleSource = (*BinanceClient)(nil)

// NewBinanceClient creates a public (unsigned) client. An empty baseURL uses
// the production endpoint.
func NewBinanceClient(baseURL string) *BinanceClient {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return &BinanceClient{client: client}
}

// Candles returns the latest limit candles of pair.
func (c *BinanceClient) Candles(ctx context.Context, pair types.Pair, timeframe string, limit int) ([]types.Candle, error) {
	if err := ValidateInterval(timeframe); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}

	klines, err := c.client.NewKlinesService().
		Symbol(pair.ExchangeSymbol()).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeUnreachable, err, "failed to fetch %s klines from Binance", pair)
	}

	return convertKlines(klines)
}

// Download fetches every candle of pair between start and end, page by page.
func (c *BinanceClient) Download(ctx context.Context, pair types.Pair, timeframe string, start, end time.Time, onProgress OnDownloadProgress) ([]types.Candle, error) {
	if err := ValidateInterval(timeframe); err != nil {
		return nil, err
	}

	if !end.After(start) {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "end must be after start")
	}

	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()
	current := startMillis

	out := make([]types.Candle, 0)

	for {
		klines, err := c.client.NewKlinesService().
			Symbol(pair.ExchangeSymbol()).
			Interval(timeframe).
			StartTime(current).
			EndTime(endMillis).
			Limit(pageSize).
			Do(ctx)
		if err != nil {
			return out, errors.Wrapf(errors.ErrCodeUnreachable, err, "failed to fetch %s klines from Binance", pair)
		}

		page, err := convertKlines(klines)
		if err != nil {
			return out, err
		}

		out = append(out, page...)

		if onProgress != nil {
			onProgress(float64(current-startMillis), float64(endMillis-startMillis), fmt.Sprintf("Downloading %s klines", pair))
		}

		if len(klines) < pageSize {
			break
		}

		// close time of the last kline + 1ms avoids duplicates
		current = klines[len(klines)-1].CloseTime + 1
		if current >= endMillis {
			break
		}
	}

	return out, nil
}

func convertKlines(klines []*binance.Kline) ([]types.Candle, error) {
	out := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		values := make([]float64, 5)

		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeDecodeError, err, "invalid kline value %q", raw)
			}

			values[i] = v
		}

		c := types.Candle{
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			Volume:   values[4],
		}

		if len(out) > 0 && !c.OpenTime.After(out[len(out)-1].OpenTime) {
			return nil, errors.Newf(errors.ErrCodeSchemaMismatch, "kline at %s is out of order", c.OpenTime.Format(time.RFC3339))
		}

		out = append(out, c)
	}

	return out, nil
}

var intervals = map[string]struct{}{
	"1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "3d": {}, "1w": {}, "1M": {},
}

// ValidateInterval checks timeframe against the intervals Binance serves.
func ValidateInterval(timeframe string) error {
	if _, ok := intervals[timeframe]; !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported Binance interval %q", timeframe)
	}

	return nil
}
