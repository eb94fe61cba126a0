package sweep

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const planYAML = `
command: [freqtrade, backtesting]
base_config: %BASE%
strategy: RsiStrategy
output_dir: %OUT%
timeranges: ["20240101-20240201", "20240201-20240301"]
symbol_groups:
  majors: [BTC/USDC, eth/usdc]
  alts: [SOL/USDC]
stakes: [10, 20]
parallel: 2
`

func exportJSON(strategy string, profit float64, trades int) []byte {
	b, _ := json.Marshal(map[string]any{
		"strategy": map[string]any{
			strategy: map[string]any{
				"total_trades":         trades,
				"wins":                 trades / 2,
				"losses":               trades - trades/2,
				"winrate":              0.5,
				"profit_total":         profit,
				"profit_total_abs":     profit * 1000,
				"max_drawdown_account": 0.05,
			},
		},
	})

	return b
}

// fakeExecutor writes an export into the directory named by
// --export-filename. Jobs of the alts group fail.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []Command
}

func (f *fakeExecutor) Run(_ context.Context, cmd Command) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	var (
		export string
		config string
	)

	for i := 0; i < len(cmd.Args)-1; i++ {
		switch cmd.Args[i] {
		case "--export-filename":
			export = cmd.Args[i+1]
		case "--config":
			config = cmd.Args[i+1]
		}
	}

	cfgBytes, _ := os.ReadFile(config)
	if strings.Contains(string(cfgBytes), "SOL/USDC") {
		return Output{Stderr: []byte("no data for SOL/USDC"), ExitCode: 2, Elapsed: time.Second},
			errors.New(errors.ErrCodeBacktestFailed, "exit 2")
	}

	var cfg map[string]any
	_ = json.Unmarshal(cfgBytes, &cfg)
	stake, _ := cfg["stake_amount"].(float64)

	if err := os.WriteFile(export, exportJSON("RsiStrategy", stake/100, 10), 0o600); err != nil {
		return Output{}, err
	}

	return Output{Stdout: []byte("done"), Elapsed: 2 * time.Second}, nil
}

type recordingChannel struct {
	messages []alerts.Message
}

func (r *recordingChannel) Kind() types.ChannelKind { return types.ChannelWebhook }

func (r *recordingChannel) Send(_ context.Context, msg alerts.Message) error {
	r.messages = append(r.messages, msg)

	return nil
}

type SweepTestSuite struct {
	suite.Suite
	dir  string
	base string
}

func TestSweepSuite(t *testing.T) {
	suite.Run(t, new(SweepTestSuite))
}

func (suite *SweepTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.base = filepath.Join(suite.dir, "base.json")

	base := map[string]any{
		"stake_currency": "USDC",
		"exchange":       map[string]any{"name": "binance", "pair_whitelist": []any{"XRP/USDC"}},
		"pairlists":      []any{map[string]any{"method": "VolumePairList"}},
	}

	b, err := json.Marshal(base)
	suite.Require().NoError(err)
	suite.Require().NoError(os.WriteFile(suite.base, b, 0o600))
}

func (suite *SweepTestSuite) plan() *Plan {
	yaml := strings.NewReplacer("%BASE%", suite.base, "%OUT%", filepath.Join(suite.dir, "out")).Replace(planYAML)

	plan, err := ParsePlan([]byte(yaml))
	suite.Require().NoError(err)

	return plan
}

func (suite *SweepTestSuite) TestJobsEnumerateEveryTriple() {
	jobs := suite.plan().Jobs()

	suite.Require().Len(jobs, 8)
	// groups in name order, stakes innermost
	suite.Equal("alts", jobs[0].Group)
	suite.Equal(10.0, jobs[0].Stake)
	suite.Equal(20.0, jobs[1].Stake)
	suite.Equal("majors", jobs[2].Group)
	suite.Equal([]string{"BTC/USDC", "ETH/USDC"}, jobs[2].Pairs)
	suite.Equal("20240201-20240301", jobs[4].Timerange)
	suite.Equal("001_20240101-20240201_alts_10", jobs[0].Name())
}

func (suite *SweepTestSuite) TestPlanValidation() {
	_, err := ParsePlan([]byte("strategy: X\nbase_config: b.json\ntimeranges: [2024]\nsymbol_groups: {a: [BTC/USDC]}\nstakes: [1]\n"))
	suite.True(errors.HasCode(err, errors.ErrCodeSweepConfigError))

	_, err = ParsePlan([]byte("strategy: X\nbase_config: b.json\ntimeranges: [20240101-]\nsymbol_groups: {a: [BTC/EUR]}\nstakes: [1]\n"))
	suite.True(errors.HasCode(err, errors.ErrCodeSweepConfigError))

	_, err = ParsePlan([]byte("strategy: X\nbase_config: b.json\ntimeranges: [20240101-]\nsymbol_groups: {a: [BTC/USDC]}\nstakes: [0]\n"))
	suite.True(errors.HasCode(err, errors.ErrCodeSweepConfigError))
}

func (suite *SweepTestSuite) TestMergeConfigLeavesBaseUntouched() {
	plan := suite.plan()
	base, err := LoadBaseConfig(suite.base)
	suite.Require().NoError(err)

	merged := MergeConfig(base, plan.Jobs()[2], plan)

	suite.Equal([]any{"BTC/USDC", "ETH/USDC"}, merged["exchange"].(map[string]any)["pair_whitelist"])
	suite.Equal("binance", merged["exchange"].(map[string]any)["name"])
	suite.Equal(10.0, merged["stake_amount"])
	suite.Equal(3, merged["max_open_trades"])
	suite.Equal([]any{map[string]any{"method": "StaticPairList"}}, merged["pairlists"])

	suite.Equal([]any{"XRP/USDC"}, base["exchange"].(map[string]any)["pair_whitelist"])
	suite.NotContains(base, "stake_amount")
}

func (suite *SweepTestSuite) TestReadResultFallsBackToPointer() {
	dir := suite.T().TempDir()

	suite.Require().NoError(os.WriteFile(filepath.Join(dir, "backtest-result-2024.json"), exportJSON("S", 0.12, 4), 0o600))
	suite.Require().NoError(os.WriteFile(filepath.Join(dir, ".last_result.json"), []byte(`{"latest_backtest":"backtest-result-2024.json"}`), 0o600))

	res, err := ReadResult(dir, "S")
	suite.Require().NoError(err)
	suite.Equal(4, res.TotalTrades)
	suite.InDelta(0.12, res.ProfitTotal, 1e-9)
}

func (suite *SweepTestSuite) TestReadResultFromZip() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "backtest-result-2025.zip")

	f, err := os.Create(path)
	suite.Require().NoError(err)

	zw := zip.NewWriter(f)
	meta, err := zw.Create("backtest-result-2025_config.json")
	suite.Require().NoError(err)
	_, _ = meta.Write([]byte(`{}`))
	w, err := zw.Create("backtest-result-2025.json")
	suite.Require().NoError(err)
	_, err = w.Write(exportJSON("S", 0.3, 7))
	suite.Require().NoError(err)
	suite.Require().NoError(zw.Close())
	suite.Require().NoError(f.Close())

	suite.Require().NoError(os.WriteFile(filepath.Join(dir, ".last_result.json"), []byte(`{"latest_backtest":"backtest-result-2025.zip"}`), 0o600))

	res, err := ReadResult(dir, "S")
	suite.Require().NoError(err)
	suite.Equal(7, res.TotalTrades)
}

func (suite *SweepTestSuite) TestReadResultMissing() {
	_, err := ReadResult(suite.T().TempDir(), "S")
	suite.True(errors.HasCode(err, errors.ErrCodeResultParseError))

	_, err = ParseResult(exportJSON("Other", 0.1, 1), "S")
	suite.True(errors.HasCode(err, errors.ErrCodeResultParseError))

	res, err := ParseResult(exportJSON("Only", 0.1, 1), "")
	suite.Require().NoError(err)
	suite.Equal(1, res.TotalTrades)
}

func (suite *SweepTestSuite) TestRunWritesReport() {
	exec := &fakeExecutor{}
	notifier := &recordingChannel{}

	runner, err := NewRunner(Options{
		Plan:     suite.plan(),
		Executor: exec,
		Notifier: notifier,
		Logger:   logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	report, err := runner.Run(context.Background())
	suite.Require().NoError(err)

	suite.Len(exec.calls, 8)
	suite.Equal("freqtrade", exec.calls[0].Name)
	suite.Contains(exec.calls[0].Args, "backtesting")
	suite.Contains(exec.calls[0].Args, "RsiStrategy")

	suite.Len(report.Rows, 8)
	suite.Equal(4, report.Failed())

	ranked := report.Ranked()
	suite.Equal(StatusOK, ranked[0].Status)
	suite.Equal(20.0, ranked[0].Stake)
	suite.InDelta(20.0, ranked[0].ProfitPct, 1e-9)
	suite.Equal(StatusFailed, ranked[7].Status)
	suite.Contains(ranked[7].Error, "backtest_failed")
	suite.Contains(ranked[7].Error, "no data for SOL/USDC")

	f, err := os.Open(filepath.Join(report.Dir, "report.csv"))
	suite.Require().NoError(err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	suite.Require().NoError(err)
	suite.Len(records, 9)
	suite.Equal("job", records[0][0])

	text, err := os.ReadFile(filepath.Join(report.Dir, "report.txt"))
	suite.Require().NoError(err)
	suite.Contains(string(text), "PROFIT%")
	suite.Contains(string(text), "8 backtests, 4 failed")

	suite.Require().Len(notifier.messages, 1)
	suite.Equal(types.KindBacktestComplete, notifier.messages[0].Notification.Kind)
}

func (suite *SweepTestSuite) TestRunMissingBaseConfig() {
	plan := suite.plan()
	plan.BaseConfig = filepath.Join(suite.dir, "missing.json")

	runner, err := NewRunner(Options{Plan: plan, Executor: &fakeExecutor{}, Logger: logger.NewNopLogger()})
	suite.Require().NoError(err)

	_, err = runner.Run(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeSweepConfigError))
}
