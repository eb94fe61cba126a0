package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BinanceTestSuite struct {
	suite.Suite
	server  *httptest.Server
	start   int64
	total   int
	symbols []string
}

func TestBinanceSuite(t *testing.T) {
	suite.Run(t, new(BinanceTestSuite))
}

func (suite *BinanceTestSuite) SetupTest() {
	suite.start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	suite.total = 1500
	suite.symbols = nil

	suite.server = httptest.NewServer(http.HandlerFunc(suite.klines))
}

func (suite *BinanceTestSuite) TearDownTest() {
	suite.server.Close()
}

// klines serves one-minute candles from suite.start, honoring startTime and
// limit the way Binance does.
func (suite *BinanceTestSuite) klines(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v3/klines" {
		http.NotFound(w, r)

		return
	}

	q := r.URL.Query()
	suite.symbols = append(suite.symbols, q.Get("symbol"))

	limit, _ := strconv.Atoi(q.Get("limit"))
	from := suite.start

	if s := q.Get("startTime"); s != "" {
		from, _ = strconv.ParseInt(s, 10, 64)
	}

	rows := make([][]any, 0, limit)

	for i := 0; i < suite.total && len(rows) < limit; i++ {
		open := suite.start + int64(i)*60_000
		if open < from {
			continue
		}

		price := strconv.FormatFloat(100+float64(i), 'f', 2, 64)
		rows = append(rows, []any{open, price, price, price, price, "1.5", open + 59_999, "0", 1, "0", "0", "0"})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (suite *BinanceTestSuite) TestCandles() {
	c := NewBinanceClient(suite.server.URL)

	candles, err := c.Candles(context.Background(), "BTC/USDC", "1m", 30)
	suite.Require().NoError(err)
	suite.Len(candles, 30)
	suite.Equal(100.0, candles[0].Close)
	suite.Equal(1.5, candles[0].Volume)
	suite.Equal([]string{"BTCUSDC"}, suite.symbols)
}

func (suite *BinanceTestSuite) TestDownloadPaginates() {
	c := NewBinanceClient(suite.server.URL)

	start := time.UnixMilli(suite.start)
	end := start.Add(2 * 24 * time.Hour)

	var pages int

	candles, err := c.Download(context.Background(), "ETH/USDC", "1m", start, end, func(current, total float64, message string) {
		pages++
		suite.LessOrEqual(current, total)
	})
	suite.Require().NoError(err)
	suite.Len(candles, suite.total)
	suite.Equal(2, pages)

	for i := 1; i < len(candles); i++ {
		suite.True(candles[i].OpenTime.After(candles[i-1].OpenTime))
	}
}

func (suite *BinanceTestSuite) TestValidateInterval() {
	suite.NoError(ValidateInterval("5m"))
	suite.NoError(ValidateInterval("1M"))
	suite.True(errors.HasCode(ValidateInterval("7m"), errors.ErrCodeInvalidParameter))

	c := NewBinanceClient(suite.server.URL)
	_, err := c.Download(context.Background(), "ETH/USDC", "1m", time.Now(), time.Now().Add(-time.Hour), nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *BinanceTestSuite) TestUnreachable() {
	c := NewBinanceClient("http://127.0.0.1:1")

	_, err := c.Candles(context.Background(), "BTC/USDC", "5m", 10)
	suite.True(errors.HasCode(err, errors.ErrCodeUnreachable))
}
