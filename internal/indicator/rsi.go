package indicator

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// RSI represents the Relative Strength Index indicator.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: 14, // Default period
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() IndicatorType {
	return IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
	if len(params) != 1 {
		return fmt.Errorf("Config expects 1 parameter: period (int)")
	}

	period, ok := intParam(params[0])
	if !ok {
		return fmt.Errorf("invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return fmt.Errorf("period must be a positive integer, got %d", period)
	}

	r.period = period

	return nil
}

// Calculate returns the Wilder-smoothed RSI of the series. A window with no
// losses yields 100; a window with neither gains nor losses yields NaN so the
// caller can substitute its neutral default.
func (r *RSI) Calculate(closes []float64) (float64, error) {
	if len(closes) < r.period+1 {
		return math.NaN(), errors.Newf(errors.ErrCodeDataStale,
			"insufficient data for RSI(%d): need %d closes, got %d", r.period, r.period+1, len(closes))
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := 0.0
	avgLoss := 0.0

	// First average
	for i := 0; i < r.period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)

	// Subsequent averages using Wilder's smoothing method
	for i := r.period; i < len(gains); i++ {
		avgGain = (avgGain*float64(r.period-1) + gains[i]) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + losses[i]) / float64(r.period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN(), nil
		}

		return 100, nil // Perfect uptrend
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs)), nil
}
