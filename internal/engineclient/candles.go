package engineclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

type pairCandlesResponse struct {
	Pair      string              `json:"pair"`
	Timeframe string              `json:"timeframe"`
	Columns   []string            `json:"columns"`
	Data      [][]json.RawMessage `json:"data"`
	Length    int                 `json:"length"`
}

var candleColumns = []string{"date", "open", "high", "low", "close", "volume"}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// candles maps rows to candles. Columns are located by name when the engine
// sends them, otherwise the first six cells are taken in OHLCV order.
func (r pairCandlesResponse) candles(endpoint string) ([]types.Candle, error) {
	index := make([]int, len(candleColumns))
	for i := range index {
		index[i] = i
	}

	if len(r.Columns) > 0 {
		pos := make(map[string]int, len(r.Columns))
		for i, name := range r.Columns {
			pos[strings.ToLower(name)] = i
		}

		for i, name := range candleColumns {
			p, ok := pos[name]
			if !ok {
				return nil, newSchemaError(endpoint, fmt.Sprintf("missing column %q", name))
			}

			index[i] = p
		}
	}

	out := make([]types.Candle, 0, len(r.Data))

	for n, row := range r.Data {
		c, err := decodeRow(row, index)
		if err != nil {
			return nil, newSchemaError(endpoint, fmt.Sprintf("row %d: %v", n, err))
		}

		if len(out) > 0 && !c.OpenTime.After(out[len(out)-1].OpenTime) {
			return nil, newSchemaError(endpoint, fmt.Sprintf("row %d: open time %s is not after previous candle", n, c.OpenTime.Format(time.RFC3339)))
		}

		out = append(out, c)
	}

	return out, nil
}

func decodeRow(row []json.RawMessage, index []int) (types.Candle, error) {
	for _, i := range index {
		if i >= len(row) {
			return types.Candle{}, fmt.Errorf("row has %d cells", len(row))
		}
	}

	ts, err := decodeTime(row[index[0]])
	if err != nil {
		return types.Candle{}, err
	}

	values := make([]float64, 5)

	for i := range values {
		v, err := decodeNumber(row[index[i+1]])
		if err != nil {
			return types.Candle{}, fmt.Errorf("%s: %w", candleColumns[i+1], err)
		}

		values[i] = v
	}

	return types.Candle{
		OpenTime: ts,
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

func decodeTime(raw json.RawMessage) (time.Time, error) {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("date is neither a string nor a number")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number")
	}

	return strconv.ParseFloat(s, 64)
}
