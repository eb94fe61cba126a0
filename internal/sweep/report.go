package sweep

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Row is one line of the sweep report.
type Row struct {
	Job            string  `csv:"job"`
	Timerange      string  `csv:"timerange"`
	Group          string  `csv:"group"`
	Pairs          string  `csv:"pairs"`
	Stake          float64 `csv:"stake"`
	Status         string  `csv:"status"`
	Trades         int     `csv:"trades"`
	Wins           int     `csv:"wins"`
	Losses         int     `csv:"losses"`
	Draws          int     `csv:"draws"`
	WinRatePct     float64 `csv:"win_rate_pct"`
	ProfitPct      float64 `csv:"profit_pct"`
	ProfitAbs      float64 `csv:"profit_abs"`
	MaxDrawdownPct float64 `csv:"max_drawdown_pct"`
	ProfitFactor   float64 `csv:"profit_factor"`
	Sharpe         float64 `csv:"sharpe"`
	ElapsedS       float64 `csv:"elapsed_s"`
	Error          string  `csv:"error"`
}

func newRow(job Job) Row {
	return Row{
		Job:       job.Name(),
		Timerange: job.Timerange,
		Group:     job.Group,
		Pairs:     strings.Join(job.Pairs, " "),
		Stake:     job.Stake,
		Status:    StatusFailed,
	}
}

func (r *Row) apply(res StrategyResult) {
	r.Status = StatusOK
	r.Trades = res.TotalTrades
	r.Wins = res.Wins
	r.Losses = res.Losses
	r.Draws = res.Draws
	r.WinRatePct = res.Winrate * 100
	r.ProfitPct = res.ProfitTotal * 100
	r.ProfitAbs = res.ProfitTotalAbs
	r.MaxDrawdownPct = res.DrawdownPct()
	r.ProfitFactor = res.ProfitFactor
	r.Sharpe = res.Sharpe
}

// Report is the outcome of one sweep.
type Report struct {
	Dir  string
	Rows []Row
}

// Ranked returns the successful rows by profit, best first, followed by the
// failed rows in job order.
func (r *Report) Ranked() []Row {
	var ok, failed []Row

	for _, row := range r.Rows {
		if row.Status == StatusOK {
			ok = append(ok, row)
		} else {
			failed = append(failed, row)
		}
	}

	sort.SliceStable(ok, func(i, j int) bool { return ok[i].ProfitPct > ok[j].ProfitPct })

	return append(ok, failed...)
}

// Failed counts the rows that produced no result.
func (r *Report) Failed() int {
	n := 0

	for _, row := range r.Rows {
		if row.Status != StatusOK {
			n++
		}
	}

	return n
}

// Summary is the short text used for the completion notification.
func (r *Report) Summary() string {
	ranked := r.Ranked()

	var b strings.Builder

	fmt.Fprintf(&b, "%d backtests, %d failed", len(r.Rows), r.Failed())

	if len(ranked) > 0 && ranked[0].Status == StatusOK {
		best := ranked[0]
		fmt.Fprintf(&b, "\nBest: %s %s stake %g: %+.2f%% over %d trades (drawdown %.2f%%)",
			best.Group, best.Timerange, best.Stake, best.ProfitPct, best.Trades, best.MaxDrawdownPct)
	}

	return b.String()
}

// WriteCSV writes the ranked rows to path.
func (r *Report) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to create %s", path)
	}
	defer f.Close()

	rows := r.Ranked()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to write %s", path)
	}

	return nil
}

// WriteText renders the ranked rows as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "JOB\tTIMERANGE\tGROUP\tSTAKE\tTRADES\tWIN%\tPROFIT%\tPROFIT\tDD%\tSTATUS\t")

	for _, row := range r.Ranked() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%d\t%.1f\t%+.2f\t%+.2f\t%.2f\t%s\t\n",
			row.Job, row.Timerange, row.Group, row.Stake, row.Trades,
			row.WinRatePct, row.ProfitPct, row.ProfitAbs, row.MaxDrawdownPct, row.Status)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n", r.Summary())

	return err
}

// Write stores report.csv and report.txt in the report directory.
func (r *Report) Write() error {
	if err := r.WriteCSV(filepath.Join(r.Dir, "report.csv")); err != nil {
		return err
	}

	path := filepath.Join(r.Dir, "report.txt")

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to create %s", path)
	}
	defer f.Close()

	if err := r.WriteText(f); err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to write %s", path)
	}

	return nil
}
