// Package sweep runs batches of engine backtests over every combination of
// timerange, symbol group and stake, and aggregates the results into a flat
// report. It shares no state with the monitor.
package sweep

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"gopkg.in/yaml.v3"
)

var timerangePattern = regexp.MustCompile(`^\d{8}-\d{8}$|^\d{8}-$|^-\d{8}$`)

// Plan is the sweep definition file.
type Plan struct {
	// Command is the engine backtest entry point, e.g. [freqtrade, backtesting].
	Command       []string            `yaml:"command" validate:"required,min=1"`
	BaseConfig    string              `yaml:"base_config" validate:"required"`
	Strategy      string              `yaml:"strategy" validate:"required"`
	OutputDir     string              `yaml:"output_dir"`
	Timeframe     string              `yaml:"timeframe"`
	Quote         string              `yaml:"quote"`
	Timeranges    []string            `yaml:"timeranges" validate:"required,min=1"`
	SymbolGroups  map[string][]string `yaml:"symbol_groups" validate:"required,min=1"`
	Stakes        []float64           `yaml:"stakes" validate:"required,min=1,dive,gt=0"`
	MaxOpenTrades int                 `yaml:"max_open_trades" validate:"gte=0"`
	TimeoutMin    int                 `yaml:"timeout_min" validate:"gte=0"`
	Parallel      int                 `yaml:"parallel" validate:"gte=0"`
	WebhookURL    string              `yaml:"webhook_url" validate:"omitempty,url"`
}

// DefaultPlan holds the values used for absent keys.
func DefaultPlan() Plan {
	return Plan{
		Command:       []string{"freqtrade", "backtesting"},
		OutputDir:     "sweeps",
		Timeframe:     "5m",
		Quote:         "USDC",
		MaxOpenTrades: 3,
		TimeoutMin:    30,
		Parallel:      1,
	}
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSweepConfigError, err, "failed to read sweep plan %s", path)
	}

	return ParsePlan(b)
}

// ParsePlan decodes YAML over the defaults and validates.
func ParsePlan(data []byte) (*Plan, error) {
	plan := DefaultPlan()

	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSweepConfigError, "failed to parse sweep plan", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (p *Plan) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeSweepConfigError, "invalid sweep plan", err)
	}

	for _, tr := range p.Timeranges {
		if !timerangePattern.MatchString(tr) {
			return errors.Newf(errors.ErrCodeSweepConfigError, "timerange %q is not YYYYMMDD-YYYYMMDD", tr)
		}
	}

	for name, pairs := range p.SymbolGroups {
		if len(pairs) == 0 {
			return errors.Newf(errors.ErrCodeSweepConfigError, "symbol group %q is empty", name)
		}

		for _, raw := range pairs {
			if _, err := types.ParsePair(raw, p.Quote); err != nil {
				return errors.Wrapf(errors.ErrCodeSweepConfigError, err, "symbol group %q", name)
			}
		}
	}

	return nil
}

// Timeout is the per-job limit. Zero means none.
func (p *Plan) Timeout() time.Duration {
	return time.Duration(p.TimeoutMin) * time.Minute
}

// Job is one backtest of the sweep.
type Job struct {
	ID        string
	Index     int
	Timerange string
	Group     string
	Pairs     []string
	Stake     float64
}

// Name is a file-system safe label of the job.
func (j Job) Name() string {
	stake := strings.ReplaceAll(fmt.Sprintf("%g", j.Stake), ".", "_")

	return fmt.Sprintf("%03d_%s_%s_%s", j.Index, j.Timerange, j.Group, stake)
}

// Jobs enumerates timerange × symbol group × stake. Groups are taken in name
// order so the enumeration is stable.
func (p *Plan) Jobs() []Job {
	groups := make([]string, 0, len(p.SymbolGroups))
	for name := range p.SymbolGroups {
		groups = append(groups, name)
	}

	sort.Strings(groups)

	jobs := make([]Job, 0, len(p.Timeranges)*len(groups)*len(p.Stakes))

	for _, tr := range p.Timeranges {
		for _, group := range groups {
			pairs := make([]string, 0, len(p.SymbolGroups[group]))
			for _, raw := range p.SymbolGroups[group] {
				pair, _ := types.ParsePair(raw, p.Quote)
				pairs = append(pairs, pair.String())
			}

			for _, stake := range p.Stakes {
				jobs = append(jobs, Job{
					ID:        uuid.NewString(),
					Index:     len(jobs) + 1,
					Timerange: tr,
					Group:     group,
					Pairs:     pairs,
					Stake:     stake,
				})
			}
		}
	}

	return jobs
}
