package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func candlesFrom(closes []float64) []types.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, len(closes))

	for i, c := range closes {
		out[i] = types.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   1,
		}
	}

	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}

	return out
}

func (suite *IndicatorTestSuite) TestRSIKnownValues() {
	rsi := NewRSI()
	suite.Require().NoError(rsi.Config(2))

	v, err := rsi.Calculate([]float64{1, 3, 2})
	suite.Require().NoError(err)
	suite.InDelta(66.6667, v, 0.001)

	v, err = rsi.Calculate([]float64{1, 2, 3, 2})
	suite.Require().NoError(err)
	suite.InDelta(50.0, v, 1e-9)
}

func (suite *IndicatorTestSuite) TestRSINoLossesIs100() {
	v, err := NewRSI().Calculate(ramp(20, 100, 1))
	suite.Require().NoError(err)
	suite.Equal(100.0, v)
}

func (suite *IndicatorTestSuite) TestRSIFlatWindowIsNaN() {
	v, err := NewRSI().Calculate(ramp(20, 100, 0))
	suite.Require().NoError(err)
	suite.True(math.IsNaN(v))
}

func (suite *IndicatorTestSuite) TestRSIInsufficientData() {
	_, err := NewRSI().Calculate(ramp(14, 100, 1))
	suite.True(errors.HasCode(err, errors.ErrCodeDataStale))
}

func (suite *IndicatorTestSuite) TestRSIConfig() {
	rsi := NewRSI()
	suite.Error(rsi.Config())
	suite.Error(rsi.Config("14"))
	suite.Error(rsi.Config(0))
	suite.NoError(rsi.Config(7.0))
	suite.Equal(7, rsi.(*RSI).period)
	suite.Equal(IndicatorTypeRSI, rsi.Name())
}

func (suite *IndicatorTestSuite) TestMA() {
	ma := NewMA()
	v, err := ma.Calculate(ramp(30, 1, 1))
	suite.Require().NoError(err)
	// mean of 16..30
	suite.InDelta(23.0, v, 1e-9)

	_, err = ma.Calculate(ramp(14, 1, 1))
	suite.True(errors.HasCode(err, errors.ErrCodeDataStale))
	suite.Error(ma.Config(-1))
}

func (suite *IndicatorTestSuite) TestTrend() {
	trend := NewTrend()

	up, err := trend.Calculate(ramp(25, 10, 2))
	suite.Require().NoError(err)
	suite.InDelta(1.0, up, 1e-9)

	down, err := trend.Calculate(ramp(25, 100, -3))
	suite.Require().NoError(err)
	suite.InDelta(-1.0, down, 1e-9)

	flat, err := trend.Calculate(ramp(25, 7, 0))
	suite.Require().NoError(err)
	suite.Equal(0.0, flat)

	suite.Error(trend.Config(1))
}

func (suite *IndicatorTestSuite) TestRegistry() {
	registry := NewIndicatorRegistry()
	suite.NoError(registry.RegisterIndicator("b", NewMA()))
	suite.NoError(registry.RegisterIndicator("a", NewRSI()))
	suite.Error(registry.RegisterIndicator("a", NewRSI()))
	suite.Equal([]string{"a", "b"}, registry.ListIndicators())

	ind, err := registry.GetIndicator("b")
	suite.NoError(err)
	suite.Equal(IndicatorTypeMA, ind.Name())

	suite.NoError(registry.RemoveIndicator("b"))
	suite.Error(registry.RemoveIndicator("b"))
	_, err = registry.GetIndicator("b")
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestSnapshotBoundary() {
	calc := NewCalculator()

	snap := calc.Compute(candlesFrom(ramp(29, 100, 1)))
	suite.True(snap.Stale)
	suite.Equal(types.Float(50), snap.RSI)
	suite.Equal(types.Float(50), snap.RSIFast)
	suite.Equal(types.Float(50), snap.PrevRSI)
	suite.Equal(types.Float(128), snap.SMA15)
	suite.Equal(types.Float(0), snap.Trend)
	suite.Equal(29, snap.CandleCount)

	snap = calc.Compute(candlesFrom(ramp(30, 100, 1)))
	suite.False(snap.Stale)
	suite.Equal(types.Float(100), snap.RSI)
	suite.Equal(types.Float(129), snap.Close)
	suite.InDelta(122.0, float64(snap.SMA15), 1e-9)
	suite.InDelta(129.0/122.0, float64(snap.CloseSMARatio), 1e-9)
	suite.InDelta(1.0, float64(snap.Trend), 1e-9)
}

func (suite *IndicatorTestSuite) TestSnapshotFlatWindowUsesNeutralRSI() {
	snap := NewCalculator().Compute(candlesFrom(ramp(40, 10, 0)))
	suite.False(snap.Stale)
	suite.Equal(types.Float(50), snap.RSI)
	suite.Equal(types.Float(50), snap.PrevRSI)
	suite.Equal(types.Float(10), snap.SMA15)
	suite.Equal(types.Float(0), snap.Trend)
}

func (suite *IndicatorTestSuite) TestSnapshotEmptyWindow() {
	snap := NewCalculator().Compute(nil)
	suite.True(snap.Stale)
	suite.Equal(types.Float(0), snap.Close)
	suite.Equal(types.Float(0), snap.SMA15)
}

func (suite *IndicatorTestSuite) TestSnapshotDeterministic() {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3)
	}

	calc := NewCalculator()
	suite.Equal(calc.Compute(candlesFrom(closes)), calc.Compute(candlesFrom(closes)))
}
