package sweep

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

const (
	// ResultFile is the export file name each job asks the engine for.
	ResultFile = "backtest-result.json"
	// lastResultFile is the pointer the engine keeps to its newest export.
	lastResultFile = ".last_result.json"
)

// StrategyResult is the part of an engine backtest export the report uses.
type StrategyResult struct {
	TotalTrades        int     `json:"total_trades"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	Draws              int     `json:"draws"`
	Winrate            float64 `json:"winrate"`
	ProfitTotal        float64 `json:"profit_total"`
	ProfitTotalAbs     float64 `json:"profit_total_abs"`
	MaxDrawdownAccount float64 `json:"max_drawdown_account"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	ProfitFactor       float64 `json:"profit_factor"`
	Sharpe             float64 `json:"sharpe"`
	HoldingAvg         string  `json:"holding_avg"`
}

// DrawdownPct returns the account drawdown in percent. Older exports only
// carry max_drawdown.
func (r StrategyResult) DrawdownPct() float64 {
	if r.MaxDrawdownAccount != 0 {
		return r.MaxDrawdownAccount * 100
	}

	return r.MaxDrawdown * 100
}

type export struct {
	Strategy map[string]StrategyResult `json:"strategy"`
}

type lastResult struct {
	LatestBacktest string `json:"latest_backtest"`
}

// ReadResult loads the strategy's result from dir. It reads ResultFile and
// falls back to the file named by the engine's last-result pointer, which
// may be a JSON file or a zip holding one.
func ReadResult(dir, strategy string) (StrategyResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		data, err = readLatest(dir)
		if err != nil {
			return StrategyResult{}, err
		}
	}

	return ParseResult(data, strategy)
}

// ParseResult decodes an export and picks strategy. With an empty strategy
// name a single-strategy export is accepted.
func ParseResult(data []byte, strategy string) (StrategyResult, error) {
	var e export
	if err := json.Unmarshal(data, &e); err != nil {
		return StrategyResult{}, errors.Wrap(errors.ErrCodeResultParseError, "backtest export is not valid JSON", err)
	}

	if len(e.Strategy) == 0 {
		return StrategyResult{}, errors.New(errors.ErrCodeResultParseError, "backtest export has no strategy section")
	}

	if res, ok := e.Strategy[strategy]; ok {
		return res, nil
	}

	if strategy == "" && len(e.Strategy) == 1 {
		for _, res := range e.Strategy {
			return res, nil
		}
	}

	return StrategyResult{}, errors.Newf(errors.ErrCodeResultParseError, "backtest export has no result for strategy %q", strategy)
}

func readLatest(dir string) ([]byte, error) {
	ptr, err := os.ReadFile(filepath.Join(dir, lastResultFile))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultParseError, "no backtest export found", err)
	}

	var last lastResult
	if err := json.Unmarshal(ptr, &last); err != nil || last.LatestBacktest == "" {
		return nil, errors.New(errors.ErrCodeResultParseError, "last result pointer is unreadable")
	}

	path := filepath.Join(dir, filepath.Base(last.LatestBacktest))

	if strings.HasSuffix(path, ".zip") {
		return readZipped(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeResultParseError, err, "failed to read %s", path)
	}

	return data, nil
}

// readZipped returns the export inside a zip archive: the JSON member named
// like the archive, or else the first JSON member that is not a config or
// metadata file.
func readZipped(path string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeResultParseError, err, "failed to open %s", path)
	}
	defer zr.Close()

	want := strings.TrimSuffix(filepath.Base(path), ".zip") + ".json"

	var pick *zip.File

	for _, f := range zr.File {
		if f.Name == want {
			pick = f

			break
		}

		if pick == nil && strings.HasSuffix(f.Name, ".json") &&
			!strings.HasSuffix(f.Name, "_config.json") && !strings.HasSuffix(f.Name, ".meta.json") {
			pick = f
		}
	}

	if pick == nil {
		return nil, errors.Newf(errors.ErrCodeResultParseError, "%s holds no backtest export", path)
	}

	rc, err := pick.Open()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeResultParseError, err, "failed to open %s in %s", pick.Name, path)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeResultParseError, err, "failed to read %s in %s", pick.Name, path)
	}

	return data, nil
}
