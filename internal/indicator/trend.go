package indicator

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Trend scores direction as the Pearson correlation between the last window
// closes and their index 0..window-1. The score is in [-1, 1].
type Trend struct {
	window int
}

// NewTrend creates a new trend indicator over a 20-close window.
func NewTrend() Indicator {
	return &Trend{
		window: 20,
	}
}

// Name returns the name of the indicator.
func (t *Trend) Name() IndicatorType {
	return IndicatorTypeTrend
}

// Config expects one parameter: window (int, at least 2).
func (t *Trend) Config(params ...any) error {
	if len(params) != 1 {
		return fmt.Errorf("Config expects 1 parameter: window (int)")
	}

	window, ok := intParam(params[0])
	if !ok {
		return fmt.Errorf("invalid type for window parameter, expected int")
	}

	if window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", window)
	}

	t.window = window

	return nil
}

// Calculate returns the correlation score. A constant window has no defined
// correlation and scores 0.
func (t *Trend) Calculate(closes []float64) (float64, error) {
	if len(closes) < t.window {
		return 0, errors.Newf(errors.ErrCodeDataStale,
			"insufficient data for trend(%d): got %d closes", t.window, len(closes))
	}

	ys := closes[len(closes)-t.window:]
	n := float64(t.window)

	meanX := (n - 1) / 2
	meanY := 0.0

	for _, y := range ys {
		meanY += y
	}

	meanY /= n

	var cov, varX, varY float64

	for i, y := range ys {
		dx := float64(i) - meanX
		dy := y - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, nil
	}

	r := cov / math.Sqrt(varX*varY)

	return math.Max(-1, math.Min(1, r)), nil
}
