package sweep

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// LoadBaseConfig reads the engine configuration every job starts from.
func LoadBaseConfig(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSweepConfigError, err, "failed to read base config %s", path)
	}

	var base map[string]any
	if err := json.Unmarshal(b, &base); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSweepConfigError, err, "base config %s is not a JSON object", path)
	}

	return base, nil
}

// MergeConfig returns a copy of base with the job's whitelist, stake and
// open-trade limit. base is not changed.
func MergeConfig(base map[string]any, job Job, plan *Plan) map[string]any {
	out := deepCopy(base).(map[string]any)

	exchange, _ := out["exchange"].(map[string]any)
	if exchange == nil {
		exchange = map[string]any{}
	}

	whitelist := make([]any, 0, len(job.Pairs))
	for _, p := range job.Pairs {
		whitelist = append(whitelist, p)
	}

	exchange["pair_whitelist"] = whitelist
	out["exchange"] = exchange
	out["stake_amount"] = job.Stake

	if plan.MaxOpenTrades > 0 {
		out["max_open_trades"] = plan.MaxOpenTrades
	}

	if _, ok := out["stake_currency"]; !ok && plan.Quote != "" {
		out["stake_currency"] = plan.Quote
	}

	// a static list keeps the engine from replacing the whitelist
	out["pairlists"] = []any{map[string]any{"method": "StaticPairList"}}

	return out
}

// WriteConfig writes cfg as indented JSON to dir/config.json.
func WriteConfig(dir string, cfg map[string]any) (string, error) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSweepConfigError, "failed to encode job config", err)
	}

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", errors.Wrapf(errors.ErrCodeSweepConfigError, err, "failed to write %s", path)
	}

	return path, nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}

		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}

		return s
	default:
		return v
	}
}
