package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// aggsLimit is the largest page Polygon serves for aggregates.
const aggsLimit = 50000

// AggsIterator is the subset of the Polygon iterator the client reads.
type AggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPI lists aggregates. The REST client satisfies it through
// polygonAPI; tests provide their own.
type PolygonAPI interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) AggsIterator
}

type polygonAPI struct {
	client *polygon.Client
}

func (a polygonAPI) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) AggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

// PolygonClient reads crypto aggregates (tickers such as X:BTCUSDC).
type PolygonClient struct {
	api PolygonAPI
	now func() time.Time
}

var _ CandleSource = (*PolygonClient)(nil)

func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return NewPolygonClientWithAPI(polygonAPI{client: polygon.New(apiKey)}), nil
}

func NewPolygonClientWithAPI(api PolygonAPI) *PolygonClient {
	return &PolygonClient{api: api, now: time.Now}
}

// PolygonTicker maps a pair onto Polygon's crypto ticker.
func PolygonTicker(pair types.Pair) string {
	return "X:" + pair.Base() + pair.Quote()
}

// polygonSpan splits a timeframe such as 5m or 4h into multiplier and
// timespan.
func polygonSpan(timeframe string) (int, models.Timespan, time.Duration, error) {
	if len(timeframe) < 2 {
		return 0, "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported Polygon timeframe %q", timeframe)
	}

	n, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil || n <= 0 {
		return 0, "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported Polygon timeframe %q", timeframe)
	}

	switch timeframe[len(timeframe)-1] {
	case 'm':
		return n, models.Minute, time.Duration(n) * time.Minute, nil
	case 'h':
		return n, models.Hour, time.Duration(n) * time.Hour, nil
	case 'd':
		return n, models.Day, time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return n, models.Week, time.Duration(n) * 7 * 24 * time.Hour, nil
	}

	return 0, "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported Polygon timeframe %q", timeframe)
}

// Candles returns the latest limit candles of pair.
func (c *PolygonClient) Candles(ctx context.Context, pair types.Pair, timeframe string, limit int) ([]types.Candle, error) {
	_, _, step, err := polygonSpan(timeframe)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = pageSize
	}

	end := c.now().UTC()
	start := end.Add(-time.Duration(limit+1) * step)

	candles, err := c.Download(ctx, pair, timeframe, start, end, nil)
	if err != nil {
		return nil, err
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}

// Download fetches every aggregate of pair between start and end. The
// iterator follows Polygon's pagination.
func (c *PolygonClient) Download(ctx context.Context, pair types.Pair, timeframe string, start, end time.Time, onProgress OnDownloadProgress) ([]types.Candle, error) {
	multiplier, timespan, _, err := polygonSpan(timeframe)
	if err != nil {
		return nil, err
	}

	if !end.After(start) {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "end must be after start")
	}

	ticker := PolygonTicker(pair)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Asc).WithLimit(aggsLimit)

	iter := c.api.ListAggs(ctx, params)

	total := float64(end.Sub(start).Milliseconds())
	out := make([]types.Candle, 0)

	for iter.Next() {
		agg := iter.Item()

		candle := types.Candle{
			OpenTime: time.Time(agg.Timestamp).UTC(),
			Open:     agg.Open,
			High:     agg.High,
			Low:      agg.Low,
			Close:    agg.Close,
			Volume:   agg.Volume,
		}

		if len(out) > 0 && !candle.OpenTime.After(out[len(out)-1].OpenTime) {
			return out, errors.Newf(errors.ErrCodeSchemaMismatch, "aggregate at %s is out of order", candle.OpenTime.Format(time.RFC3339))
		}

		out = append(out, candle)

		if onProgress != nil && len(out)%1000 == 0 {
			onProgress(float64(candle.OpenTime.Sub(start).Milliseconds()), total, fmt.Sprintf("Downloading %s", ticker))
		}
	}

	if err := iter.Err(); err != nil {
		return out, errors.Wrapf(errors.ErrCodeUnreachable, err, "failed to fetch %s aggregates from Polygon", ticker)
	}

	if onProgress != nil {
		onProgress(total, total, fmt.Sprintf("Downloaded %s", ticker))
	}

	return out, nil
}
