package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// MA indicator implements Simple Moving Average calculation.
type MA struct {
	period int
}

// NewMA creates a new MA indicator with default configuration.
func NewMA() Indicator {
	return &MA{
		period: 15, // Default period
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() IndicatorType {
	return IndicatorTypeMA
}

// Expected parameters: period (int).
func (m *MA) Config(params ...any) error {
	if len(params) != 1 {
		return fmt.Errorf("Config expects 1 parameter: period (int)")
	}

	period, ok := intParam(params[0])
	if !ok {
		return fmt.Errorf("invalid type for period parameter, expected int or float")
	}

	if period <= 0 {
		return fmt.Errorf("period must be a positive integer, got %d", period)
	}

	m.period = period

	return nil
}

// Calculate returns the mean of the last period closes.
func (m *MA) Calculate(closes []float64) (float64, error) {
	if len(closes) < m.period {
		return 0, errors.Newf(errors.ErrCodeDataStale,
			"insufficient data for MA(%d): got %d closes", m.period, len(closes))
	}

	sum := 0.0
	for _, c := range closes[len(closes)-m.period:] {
		sum += c
	}

	return sum / float64(m.period), nil
}
