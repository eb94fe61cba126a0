package exchange

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// DataFileName is the engine's JSON candle file name for pair and timeframe,
// e.g. BTC_USDC-5m.json.
func DataFileName(pair types.Pair, timeframe string) string {
	return pair.FileStem() + "-" + timeframe + ".json"
}

// WriteDataFile stores candles in the engine's JSON data format, one
// [open_ms, open, high, low, close, volume] row per candle. Candles already
// in the file are kept; on equal open time the new candle wins. Returns the
// path and the number of rows in the file.
func WriteDataFile(dir string, pair types.Pair, timeframe string, candles []types.Candle) (string, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, errors.Wrapf(errors.ErrCodeInternal, err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, DataFileName(pair, timeframe))

	existing, err := ReadDataFile(path)
	if err != nil && !errors.HasCode(err, errors.ErrCodeNotFound) {
		return "", 0, err
	}

	merged := mergeCandles(existing, candles)

	rows := make([][6]float64, 0, len(merged))
	for _, c := range merged {
		rows = append(rows, [6]float64{float64(c.OpenTime.UnixMilli()), c.Open, c.High, c.Low, c.Close, c.Volume})
	}

	b, err := json.Marshal(rows)
	if err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeInternal, "failed to encode candles", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", 0, errors.Wrapf(errors.ErrCodeInternal, err, "failed to write %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		return "", 0, errors.Wrapf(errors.ErrCodeInternal, err, "failed to replace %s", path)
	}

	return path, len(rows), nil
}

// ReadDataFile loads a JSON candle file, oldest first.
func ReadDataFile(path string) ([]types.Candle, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Newf(errors.ErrCodeNotFound, "%s does not exist", path)
	}

	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInternal, err, "failed to read %s", path)
	}

	var rows [][]float64
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDecodeError, err, "%s is not a candle file", path)
	}

	out := make([]types.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 6 {
			return nil, errors.Newf(errors.ErrCodeDecodeError, "%s row %d has %d columns", path, i, len(r))
		}

		out = append(out, types.Candle{
			OpenTime: time.UnixMilli(int64(r[0])).UTC(),
			Open:     r[1],
			High:     r[2],
			Low:      r[3],
			Close:    r[4],
			Volume:   r[5],
		})
	}

	return out, nil
}

func mergeCandles(old, fresh []types.Candle) []types.Candle {
	byTime := make(map[int64]types.Candle, len(old)+len(fresh))

	for _, c := range old {
		byTime[c.OpenTime.UnixMilli()] = c
	}

	for _, c := range fresh {
		byTime[c.OpenTime.UnixMilli()] = c
	}

	out := make([]types.Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })

	return out
}
