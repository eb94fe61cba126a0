package engineclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	router   *mux.Router
	server   *httptest.Server
	requests atomic.Int64
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupTest() {
	suite.requests.Store(0)
	suite.router = mux.NewRouter()
	suite.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			suite.requests.Add(1)

			user, pass, ok := r.BasicAuth()
			if !ok || user != "freqtrader" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Unauthorized"}`))

				return
			}

			next.ServeHTTP(w, r)
		})
	})
	suite.server = httptest.NewServer(suite.router)
}

func (suite *ClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func deadURL() string {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	return url
}

func (suite *ClientTestSuite) client(urls ...string) *HTTPClient {
	c, err := New(Options{
		BaseURLs: urls,
		Username: "freqtrader",
		Password: "secret",
		Timeout:  2 * time.Second,
		MaxStake: 50,
		Logger:   logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	return c
}

func (suite *ClientTestSuite) TestNewRejectsBadURLs() {
	_, err := New(Options{})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = New(Options{BaseURLs: []string{"localhost"}})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ClientTestSuite) TestFallsThroughUnreachableAndPins() {
	suite.router.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": "2024.3"})
	}).Methods("GET")

	c := suite.client(deadURL(), suite.server.URL)

	v, err := c.Version(context.Background())
	suite.Require().NoError(err)
	suite.Equal("2024.3", v)
	suite.Equal(suite.server.URL, c.BaseURL())
	suite.Equal([]int{1, 0}, c.order())
}

func (suite *ClientTestSuite) TestAllUnreachable() {
	c := suite.client(deadURL(), deadURL())

	_, err := c.Status(context.Background())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnreachable))
	suite.Equal(KindUnreachable, KindOf(err))
	suite.True(errors.IsTransient(err))
}

func (suite *ClientTestSuite) TestAuthFailureDoesNotFallThrough() {
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Fail("second url must not be contacted")
	}))
	defer second.Close()

	suite.router.HandleFunc("/api/v1/balance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Balance{Total: 100})
	}).Methods("GET")

	c, err := New(Options{BaseURLs: []string{suite.server.URL, second.URL}, Username: "freqtrader", Password: "wrong"})
	suite.Require().NoError(err)

	_, err = c.Balance(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeAuthFailed))

	ee, ok := AsEngineError(err)
	suite.Require().True(ok)
	suite.Equal(http.StatusUnauthorized, ee.StatusCode)
	suite.Equal("Unauthorized", ee.Detail)
}

func (suite *ClientTestSuite) TestServerErrorDropsPin() {
	var fail atomic.Bool

	suite.router.HandleFunc("/api/v1/profit", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})

			return
		}

		writeJSON(w, http.StatusOK, Profit{TradeCount: 4, WinningTrades: 3})
	}).Methods("GET")

	c := suite.client(suite.server.URL)

	p, err := c.Profit(context.Background())
	suite.Require().NoError(err)
	suite.Equal(3, p.WinningTrades)
	suite.Equal(0, c.pinned)

	fail.Store(true)

	_, err = c.Profit(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeBadStatus))
	suite.Equal(-1, c.pinned)
	suite.Contains(Describe(err), "boom")
}

func (suite *ClientTestSuite) TestRateLimitedAndDecodeErrors() {
	suite.router.HandleFunc("/api/v1/whitelist", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "slow down"})
	}).Methods("GET")
	suite.router.HandleFunc("/api/v1/show_config", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}).Methods("GET")

	c := suite.client(suite.server.URL)

	_, err := c.Whitelist(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeRateLimited))

	_, err = c.ShowConfig(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeDecodeError))
	suite.False(errors.IsTransient(err))
}

func (suite *ClientTestSuite) TestTimeout() {
	suite.router.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, []Trade{})
	}).Methods("GET")

	c, err := New(Options{
		BaseURLs: []string{suite.server.URL},
		Username: "freqtrader",
		Password: "secret",
		Timeout:  50 * time.Millisecond,
	})
	suite.Require().NoError(err)

	_, err = c.Status(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeTimeout))
}

func (suite *ClientTestSuite) TestPairCandles() {
	suite.router.HandleFunc("/api/v1/pair_candles", func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("BTC/USDC", r.URL.Query().Get("pair"))
		suite.Equal("5m", r.URL.Query().Get("timeframe"))

		writeJSON(w, http.StatusOK, map[string]any{
			"pair":    "BTC/USDC",
			"columns": []string{"date", "open", "high", "low", "close", "volume", "__date_ts"},
			"data": [][]any{
				{"2025-03-01 00:00:00+00:00", 1, 2, 0.5, 1.5, 10, 1740787200000},
				{"2025-03-01 00:05:00+00:00", 1.5, 2.5, 1, 2, 11, 1740787500000},
				{"2025-03-01 00:10:00+00:00", 2, 3, 1.5, 2.5, 12, 1740787800000},
			},
		})
	}).Methods("GET")

	c := suite.client(suite.server.URL)

	candles, err := c.PairCandles(context.Background(), "BTC/USDC", "5m", 2)
	suite.Require().NoError(err)
	suite.Require().Len(candles, 2)
	suite.Equal(2.0, candles[0].Close)
	suite.Equal(time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC), candles[1].OpenTime)
}

func (suite *ClientTestSuite) TestPairCandlesRejectsUnorderedRows() {
	suite.router.HandleFunc("/api/v1/pair_candles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": [][]any{
				{1740787500000, 1, 2, 0.5, 1.5, 10},
				{1740787200000, 1, 2, 0.5, 1.5, 10},
			},
		})
	}).Methods("GET")

	c := suite.client(suite.server.URL)

	_, err := c.PairCandles(context.Background(), "BTC/USDC", "5m", 100)
	suite.True(errors.HasCode(err, errors.ErrCodeSchemaMismatch))
	suite.Equal(KindDecode, KindOf(err))
}

func (suite *ClientTestSuite) TestForceEntry() {
	suite.router.HandleFunc("/api/v1/forceenter", func(w http.ResponseWriter, r *http.Request) {
		var body forceEntryBody
		suite.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		suite.Equal("ETH/USDC", body.Pair)
		suite.Equal("long", body.Side)
		suite.Equal(25.0, body.StakeAmount)

		writeJSON(w, http.StatusOK, map[string]any{"trade_id": 7, "pair": body.Pair, "stake_amount": body.StakeAmount})
	}).Methods("POST")

	c := suite.client(suite.server.URL)

	res, err := c.ForceEntry(context.Background(), ForceEntryRequest{Pair: "ETH/USDC", StakeAmount: 25})
	suite.Require().NoError(err)
	suite.Equal(int64(7), res.TradeID)
}

func (suite *ClientTestSuite) TestForceEntryAboveCapMakesNoCall() {
	c := suite.client(suite.server.URL)

	_, err := c.ForceEntry(context.Background(), ForceEntryRequest{Pair: "ETH/USDC", StakeAmount: 50.01})
	suite.True(errors.HasCode(err, errors.ErrCodeStakeAboveCap))

	_, err = c.ForceEntry(context.Background(), ForceEntryRequest{Pair: "ETH/USDC", StakeAmount: 0})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
	suite.Equal(int64(0), suite.requests.Load())
}

func (suite *ClientTestSuite) TestWriteIsNotResentAfterBrokenResponse() {
	var fallbackHits atomic.Int64

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"trade_id": 2})
	}))
	defer fallback.Close()

	suite.router.HandleFunc("/api/v1/forceenter", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"trade_id":`))

		conn, _, err := http.NewResponseController(w).Hijack()
		suite.Require().NoError(err)
		_ = conn.Close()
	}).Methods("POST")

	c := suite.client(suite.server.URL, fallback.URL)

	_, err := c.ForceEntry(context.Background(), ForceEntryRequest{Pair: "ETH/USDC", StakeAmount: 20})
	suite.Equal(KindUnreachable, KindOf(err))
	suite.Equal(int64(1), suite.requests.Load())
	suite.Zero(fallbackHits.Load())
}

func (suite *ClientTestSuite) TestWriteFallsThroughWhenDialFails() {
	suite.router.HandleFunc("/api/v1/forceenter", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"trade_id": 3})
	}).Methods("POST")

	c := suite.client(deadURL(), suite.server.URL)

	res, err := c.ForceEntry(context.Background(), ForceEntryRequest{Pair: "ETH/USDC", StakeAmount: 20})
	suite.Require().NoError(err)
	suite.Equal(int64(3), res.TradeID)
	suite.Equal(int64(1), suite.requests.Load())
}

func (suite *ClientTestSuite) TestForceExitByPair() {
	var exited []string

	suite.router.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Trade{
			{TradeID: 1, Pair: "BTC/USDC", IsOpen: true},
			{TradeID: 2, Pair: "ETH/USDC", IsOpen: true},
			{TradeID: 3, Pair: "BTC/USDC", IsOpen: true},
		})
	}).Methods("GET")
	suite.router.HandleFunc("/api/v1/forceexit", func(w http.ResponseWriter, r *http.Request) {
		var body forceExitBody
		suite.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		exited = append(exited, body.TradeID)
		writeJSON(w, http.StatusOK, map[string]string{"result": "Created exit orders"})
	}).Methods("POST")

	c := suite.client(suite.server.URL)

	res, err := c.ForceExit(context.Background(), ForceExitRequest{Pair: "btc/usdc"})
	suite.Require().NoError(err)
	suite.Equal([]int64{1, 3}, res.Closed)
	suite.Equal([]string{"1", "3"}, exited)

	res, err = c.ForceExit(context.Background(), ForceExitRequest{TradeID: "all"})
	suite.Require().NoError(err)
	suite.Equal([]int64{1, 2, 3}, res.Closed)
	suite.Equal("all", exited[len(exited)-1])

	_, err = c.ForceExit(context.Background(), ForceExitRequest{Pair: "SOL/USDC"})
	suite.True(errors.HasCode(err, errors.ErrCodeNotFound))

	_, err = c.ForceExit(context.Background(), ForceExitRequest{TradeID: "x1"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ClientTestSuite) TestStopStart() {
	suite.router.HandleFunc("/api/v1/stop", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopping trader ..."})
	}).Methods("POST")
	suite.router.HandleFunc("/api/v1/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "starting trader ..."})
	}).Methods("POST")

	c := suite.client(suite.server.URL)

	s, err := c.StopEngine(context.Background())
	suite.Require().NoError(err)
	suite.Contains(s, "stopping")

	s, err = c.StartEngine(context.Background())
	suite.Require().NoError(err)
	suite.Contains(s, "starting")
}

func (suite *ClientTestSuite) TestObserverSeesEveryAttempt() {
	var kinds []Kind

	c, err := New(Options{
		BaseURLs: []string{deadURL(), suite.server.URL},
		Username: "freqtrader",
		Password: "secret",
		Observer: func(endpoint string, kind Kind, elapsed time.Duration) {
			kinds = append(kinds, kind)
		},
	})
	suite.Require().NoError(err)

	suite.router.HandleFunc("/api/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	}).Methods("GET")

	suite.Require().NoError(c.Ping(context.Background()))
	suite.Equal([]Kind{KindUnreachable, ""}, kinds)
}

func (suite *ClientTestSuite) TestClampStake() {
	suite.Equal(50.0, ClampStake(80, 50, 1000))
	suite.Equal(12.34, ClampStake(20, 50, 12.349))
	suite.Equal(0.0, ClampStake(20, 50, -5))
	suite.Equal(20.0, ClampStake(20, 0, 100))
}

func (suite *ClientTestSuite) TestTradeSummary() {
	closeTS := int64(1740787500000)
	tr := Trade{TradeID: 9, Pair: "BTC/USDC", OpenTimestamp: 1740787200000, CloseTimestamp: &closeTS, ProfitPct: 1.5}

	s := tr.Summary()
	suite.Equal(types.Float(1.5), s.ProfitPct)
	suite.Require().NotNil(s.CloseDate)
	suite.Equal(5*time.Minute, s.CloseDate.Sub(s.OpenDate))

	open := Trade{TradeID: 10}
	suite.Nil(open.ClosedAt())
}
