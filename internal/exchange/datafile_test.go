package exchange

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type DataFileTestSuite struct {
	suite.Suite
	dir string
	t0  time.Time
}

func TestDataFileSuite(t *testing.T) {
	suite.Run(t, new(DataFileTestSuite))
}

func (suite *DataFileTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *DataFileTestSuite) candle(minute int, closePrice float64) types.Candle {
	return types.Candle{
		OpenTime: suite.t0.Add(time.Duration(minute) * time.Minute),
		Open:     closePrice - 1,
		High:     closePrice + 1,
		Low:      closePrice - 2,
		Close:    closePrice,
		Volume:   10,
	}
}

func (suite *DataFileTestSuite) TestWriteAndRead() {
	path, n, err := WriteDataFile(suite.dir, types.Pair("BTC/USDC"), "1m", []types.Candle{
		suite.candle(0, 100),
		suite.candle(1, 101),
	})
	suite.Require().NoError(err)
	suite.Equal(2, n)
	suite.Equal(filepath.Join(suite.dir, "BTC_USDC-1m.json"), path)

	raw, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(raw), "[1735689600000,99,101,98,100,10]")

	got, err := ReadDataFile(path)
	suite.Require().NoError(err)
	suite.Require().Len(got, 2)
	suite.True(got[1].OpenTime.Equal(suite.t0.Add(time.Minute)))
	suite.Equal(101.0, got[1].Close)
}

func (suite *DataFileTestSuite) TestWriteMergesExistingRows() {
	pair := types.Pair("ETH/USDC")

	_, _, err := WriteDataFile(suite.dir, pair, "1m", []types.Candle{suite.candle(0, 10), suite.candle(1, 11)})
	suite.Require().NoError(err)

	path, n, err := WriteDataFile(suite.dir, pair, "1m", []types.Candle{suite.candle(2, 12), suite.candle(1, 99)})
	suite.Require().NoError(err)
	suite.Equal(3, n)

	got, err := ReadDataFile(path)
	suite.Require().NoError(err)
	suite.Equal([]float64{10, 99, 12}, []float64{got[0].Close, got[1].Close, got[2].Close})
}

func (suite *DataFileTestSuite) TestReadErrors() {
	_, err := ReadDataFile(filepath.Join(suite.dir, "missing.json"))
	suite.True(errors.HasCode(err, errors.ErrCodeNotFound))

	bad := filepath.Join(suite.dir, "bad.json")
	suite.Require().NoError(os.WriteFile(bad, []byte(`[[1,2,3]]`), 0o600))

	_, err = ReadDataFile(bad)
	suite.True(errors.HasCode(err, errors.ErrCodeDecodeError))
}
