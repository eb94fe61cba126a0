package sweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Plan     *Plan
	Executor Executor
	// Notifier receives the completion message. Optional.
	Notifier alerts.Channel
	// Progress receives the progress bar. Nil hides it.
	Progress io.Writer
	Logger   *logger.Logger
}

type Runner struct {
	plan     *Plan
	executor Executor
	notifier alerts.Channel
	progress io.Writer
	logger   *logger.Logger
	now      func() time.Time
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Plan == nil || opts.Executor == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "sweep needs a plan and an executor")
	}

	return &Runner{
		plan:     opts.Plan,
		executor: opts.Executor,
		notifier: opts.Notifier,
		progress: opts.Progress,
		logger:   opts.Logger.Named("sweep"),
		now:      time.Now,
	}, nil
}

// Args builds the engine arguments for a job whose files live in dir.
func (r *Runner) Args(job Job, configPath, dir string) []string {
	args := append([]string{}, r.plan.Command[1:]...)

	args = append(args,
		"--config", configPath,
		"--strategy", r.plan.Strategy,
		"--timerange", job.Timerange,
		"--export", "trades",
		"--export-filename", filepath.Join(dir, ResultFile),
	)

	if r.plan.Timeframe != "" {
		args = append(args, "--timeframe", r.plan.Timeframe)
	}

	return args
}

// Run executes every job and writes the report. A failing job becomes a
// failed row; only setup problems abort the sweep.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	base, err := LoadBaseConfig(r.plan.BaseConfig)
	if err != nil {
		return nil, err
	}

	jobs := r.plan.Jobs()
	runDir := filepath.Join(r.plan.OutputDir, fmt.Sprintf("%s-%s", r.now().UTC().Format("20060102-150405"), uuid.NewString()[:8]))

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInternal, err, "failed to create %s", runDir)
	}

	r.logger.Info("Starting sweep",
		zap.Int("jobs", len(jobs)),
		zap.String("dir", runDir),
		zap.String("strategy", r.plan.Strategy),
	)

	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionSetDescription("Backtests"),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.progress) }),
		)
	}

	rows := make([]Row, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.plan.Parallel))

	for i, job := range jobs {
		g.Go(func() error {
			rows[i] = r.runJob(gctx, base, job, runDir)

			if bar != nil {
				_ = bar.Add(1)
			}

			return nil
		})
	}

	_ = g.Wait()

	report := &Report{Dir: runDir, Rows: rows}

	if err := report.Write(); err != nil {
		return report, err
	}

	r.logger.Info("Sweep finished",
		zap.Int("jobs", len(rows)),
		zap.Int("failed", report.Failed()),
		zap.String("report", filepath.Join(runDir, "report.csv")),
	)

	r.notify(ctx, report)

	return report, ctx.Err()
}

func (r *Runner) runJob(ctx context.Context, base map[string]any, job Job, runDir string) Row {
	row := newRow(job)
	log := r.logger.With(zap.String("job", job.Name()))

	if err := ctx.Err(); err != nil {
		row.Error = "cancelled"

		return row
	}

	dir := filepath.Join(runDir, job.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		row.Error = err.Error()

		return row
	}

	configPath, err := WriteConfig(dir, MergeConfig(base, job, r.plan))
	if err != nil {
		row.Error = err.Error()

		return row
	}

	jobCtx := ctx
	if timeout := r.plan.Timeout(); timeout > 0 {
		var cancel context.CancelFunc

		jobCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := r.executor.Run(jobCtx, Command{
		Name: r.plan.Command[0],
		Args: r.Args(job, configPath, dir),
		Dir:  "",
	})
	row.ElapsedS = out.Elapsed.Seconds()

	if logErr := os.WriteFile(filepath.Join(dir, "engine.log"), append(out.Stdout, out.Stderr...), 0o600); logErr != nil {
		log.Debug("Failed to keep engine output", zap.Error(logErr))
	}

	if err != nil {
		log.Warn("Backtest failed", zap.Error(err), zap.String("stderr", tail(out.Stderr, 400)))

		detail := tail(out.Stderr, 200)
		if detail == "" {
			detail = err.Error()
		}

		row.Error = errors.Kind(err) + ": " + detail

		return row
	}

	res, err := ReadResult(dir, r.plan.Strategy)
	if err != nil {
		log.Warn("Backtest result unreadable", zap.Error(err))

		row.Error = errors.Kind(err) + ": " + err.Error()

		return row
	}

	row.apply(res)
	log.Debug("Backtest done",
		zap.Int("trades", row.Trades),
		zap.Float64("profit_pct", row.ProfitPct),
	)

	return row
}

func (r *Runner) notify(ctx context.Context, report *Report) {
	if r.notifier == nil {
		return
	}

	msg := alerts.Message{
		Title: "Backtest sweep complete: " + r.plan.Strategy,
		Body:  report.Summary(),
		Notification: types.Notification{
			Kind:   types.KindBacktestComplete,
			Action: types.NotificationActionAlert,
			Title:  "Backtest sweep complete",
			Body:   report.Summary(),
			TS:     r.now(),
		},
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := r.notifier.Send(sendCtx, msg); err != nil {
		r.logger.Warn("Completion notification failed", zap.Error(err))
	}
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}

	return strings.ReplaceAll(s, "\n", " ")
}
