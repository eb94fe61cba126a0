package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// CandleGenerator produces candle windows for tests and the mock engine.
type CandleGenerator struct {
	rng *rand.Rand
}

// NewCandleGenerator creates a generator with the given seed. A fixed seed
// gives reproducible windows.
func NewCandleGenerator(seed int64) *CandleGenerator {
	return &CandleGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures a generated window.
type GeneratorConfig struct {
	// StartTime is the open time of the first candle
	StartTime time.Time
	// Interval is the timeframe
	Interval time.Duration
	// Count is the number of candles
	Count int
	// InitialPrice is the first open
	InitialPrice float64
	// Volatility is the per-candle standard deviation (0.01 = 1%)
	Volatility float64
	// Trend is the total drift over the window (-0.2 to 0.2 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per candle
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns a 5m window of 200 candles.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       5 * time.Minute,
		Count:          200,
		InitialPrice:   100.0,
		Volatility:     0.004,
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates an ordered window following a geometric Brownian motion.
func (g *CandleGenerator) Generate(config GeneratorConfig) []types.Candle {
	candles := make([]types.Candle, config.Count)
	price := config.InitialPrice
	openTime := config.StartTime

	for i := range config.Count {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)

		closePrice := open * (1 + config.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		candles[i] = types.Candle{
			OpenTime: openTime,
			Open:     roundToDecimals(open, 4),
			High:     roundToDecimals(high, 4),
			Low:      roundToDecimals(low, 4),
			Close:    roundToDecimals(closePrice, 4),
			Volume:   roundToDecimals(volume, 2),
		}

		price = closePrice
		openTime = openTime.Add(config.Interval)
	}

	return candles
}

// GenerateUniverse generates one window per pair with slightly different
// prices and volatility.
func (g *CandleGenerator) GenerateUniverse(pairs []types.Pair, base GeneratorConfig) map[types.Pair][]types.Candle {
	out := make(map[types.Pair][]types.Candle, len(pairs))

	for _, pair := range pairs {
		config := base
		config.InitialPrice = base.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = base.Volatility * (0.8 + g.rng.Float64()*0.4)

		out[pair] = g.Generate(config)
	}

	return out
}

// Ramp returns count candles whose close moves linearly from start to end.
// Useful to force oversold or overbought indicator readings.
func Ramp(startTime time.Time, interval time.Duration, count int, start, end float64) []types.Candle {
	candles := make([]types.Candle, count)

	step := 0.0
	if count > 1 {
		step = (end - start) / float64(count-1)
	}

	for i := range count {
		c := start + step*float64(i)
		o := c - step

		if i == 0 {
			o = c
		}

		candles[i] = types.Candle{
			OpenTime: startTime.Add(time.Duration(i) * interval),
			Open:     o,
			High:     math.Max(o, c),
			Low:      math.Min(o, c),
			Close:    c,
			Volume:   1000,
		}
	}

	return candles
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
