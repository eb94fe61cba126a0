package indicator

type IndicatorType string

const (
	IndicatorTypeRSI   IndicatorType = "rsi"
	IndicatorTypeMA    IndicatorType = "ma"
	IndicatorTypeTrend IndicatorType = "trend"
)

// Indicator interface defines methods that any technical indicator must implement
type Indicator interface {
	// Name returns the name of the indicator
	Name() IndicatorType
	// Calculate returns the indicator value for a close series ordered oldest first
	Calculate(closes []float64) (float64, error)
	// Config sets the indicator parameters
	Config(params ...any) error
}

func intParam(v any) (int, bool) {
	switch p := v.(type) {
	case int:
		return p, true
	case float64:
		return int(p), true
	default:
		return 0, false
	}
}
