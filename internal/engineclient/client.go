// Package engineclient talks to the trading engine's REST API.
//
// The client holds an ordered list of base URLs. The first URL that answers is
// pinned and tried first on later calls; the pin is dropped when that URL
// becomes unreachable or answers with a server error. Every failure comes back
// as a *errors.Error whose cause is an *EngineError carrying the failure Kind.
package engineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client is the engine API used by the scheduler, the HTTP API and chat.
type Client interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	ShowConfig(ctx context.Context) (EngineConfig, error)
	Status(ctx context.Context) ([]Trade, error)
	Trades(ctx context.Context, limit int) ([]Trade, error)
	Balance(ctx context.Context) (Balance, error)
	Profit(ctx context.Context) (Profit, error)
	Whitelist(ctx context.Context) ([]string, error)
	PairCandles(ctx context.Context, pair types.Pair, timeframe string, limit int) ([]types.Candle, error)
	ForceEntry(ctx context.Context, req ForceEntryRequest) (ForceEntryResult, error)
	ForceExit(ctx context.Context, req ForceExitRequest) (ForceExitResult, error)
	StopEngine(ctx context.Context) (string, error)
	StartEngine(ctx context.Context) (string, error)
	BaseURL() string
}

// RequestObserver is told about every finished request.
type RequestObserver func(endpoint string, kind Kind, elapsed time.Duration)

// Options configures a HTTPClient.
type Options struct {
	BaseURLs []string
	Username string
	Password string
	Timeout  time.Duration
	// MaxStake is the ceiling for ForceEntry. Zero disables the check.
	MaxStake   float64
	HTTPClient *http.Client
	Logger     *logger.Logger
	Observer   RequestObserver
}

// HTTPClient implements Client over HTTP basic auth.
type HTTPClient struct {
	baseURLs []string
	username string
	password string
	maxStake decimal.Decimal
	http     *http.Client
	logger   *logger.Logger
	observer RequestObserver

	mu     sync.Mutex
	pinned int
}

var _ Client = (*HTTPClient)(nil)

// New creates a HTTPClient.
func New(opts Options) (*HTTPClient, error) {
	if len(opts.BaseURLs) == 0 {
		return nil, errors.New(errors.ErrCodeMissingParameter, "at least one engine base url is required")
	}

	urls := make([]string, 0, len(opts.BaseURLs))

	for _, raw := range opts.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid engine base url %q", raw)
		}

		urls = append(urls, strings.TrimRight(raw, "/"))
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		hc = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURLs: urls,
		username: opts.Username,
		password: opts.Password,
		maxStake: decimal.NewFromFloat(opts.MaxStake),
		http:     hc,
		logger:   opts.Logger.Named("engine"),
		observer: opts.Observer,
		mu:       sync.Mutex{},
		pinned:   -1,
	}, nil
}

// BaseURL returns the pinned URL, or the first configured one.
func (c *HTTPClient) BaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pinned >= 0 {
		return c.baseURLs[c.pinned]
	}

	return c.baseURLs[0]
}

func (c *HTTPClient) order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int, 0, len(c.baseURLs))
	if c.pinned >= 0 {
		out = append(out, c.pinned)
	}

	for i := range c.baseURLs {
		if i != c.pinned {
			out = append(out, i)
		}
	}

	return out
}

func (c *HTTPClient) pin(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pinned != idx && c.logger != nil {
		c.logger.Info("Pinned engine base url", zap.String("url", c.baseURLs[idx]))
	}

	c.pinned = idx
}

func (c *HTTPClient) unpin(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pinned == idx {
		c.pinned = -1
	}
}

// do runs one logical call. Only unreachable URLs fall through to the next
// candidate; any other failure is the answer. Writes fall through only when
// the request never left this process, so the engine sees each write once.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	var lastErr error

	for _, idx := range c.order() {
		start := time.Now()
		err := c.attempt(ctx, c.baseURLs[idx], method, endpoint, query, body, out)

		kind := KindOf(err)
		if c.observer != nil {
			c.observer(endpoint, kind, time.Since(start))
		}

		if err == nil {
			c.pin(idx)

			return nil
		}

		lastErr = err

		if kind == KindUnreachable {
			c.unpin(idx)

			if method != http.MethodGet && !neverSent(err) {
				return err
			}

			continue
		}

		if ee, ok := AsEngineError(err); ok && ee.Kind == KindBadStatus && ee.StatusCode >= http.StatusInternalServerError {
			c.unpin(idx)
		}

		return err
	}

	return lastErr
}

func (c *HTTPClient) attempt(ctx context.Context, base, method, endpoint string, query url.Values, body, out any) error {
	target := base + "/api/v1" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to encode request body", err)
		}

		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to build request", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newEngineError(KindUnreachable, endpoint, resp.StatusCode, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newEngineError(KindAuth, endpoint, resp.StatusCode, detailOf(raw), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return newEngineError(KindRateLimited, endpoint, resp.StatusCode, detailOf(raw), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return newEngineError(KindBadStatus, endpoint, resp.StatusCode, detailOf(raw), nil)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return newEngineError(KindDecode, endpoint, resp.StatusCode, "malformed response body", err)
	}

	return nil
}

// neverSent reports whether err is a failure to dial, after which the server
// cannot have seen the request.
func neverSent(err error) bool {
	var opErr *net.OpError

	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func classifyTransport(endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newEngineError(KindTimeout, endpoint, 0, "request timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newEngineError(KindTimeout, endpoint, 0, "request timed out", err)
	}

	if errors.Is(err, context.Canceled) {
		return newEngineError(KindTimeout, endpoint, 0, "request cancelled", err)
	}

	return newEngineError(KindUnreachable, endpoint, 0, err.Error(), err)
}

// detailOf extracts the engine's {"detail": ...} message, or a trimmed body.
func detailOf(raw []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}

	if err := json.Unmarshal(raw, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			b, _ := json.Marshal(d)

			return string(b)
		}

		if payload.Error != "" {
			return payload.Error
		}
	}

	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}

	return s
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out statusResponse

	return c.do(ctx, http.MethodGet, "/ping", nil, nil, &out)
}

func (c *HTTPClient) Version(ctx context.Context) (string, error) {
	var out versionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, nil, &out); err != nil {
		return "", err
	}

	return out.Version, nil
}

func (c *HTTPClient) ShowConfig(ctx context.Context) (EngineConfig, error) {
	var out EngineConfig
	err := c.do(ctx, http.MethodGet, "/show_config", nil, nil, &out)

	return out, err
}

// Status returns the open trades.
func (c *HTTPClient) Status(ctx context.Context) ([]Trade, error) {
	var out []Trade
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Trades returns up to limit most recent trades.
func (c *HTTPClient) Trades(ctx context.Context, limit int) ([]Trade, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var out tradesResponse
	if err := c.do(ctx, http.MethodGet, "/trades", query, nil, &out); err != nil {
		return nil, err
	}

	return out.Trades, nil
}

func (c *HTTPClient) Balance(ctx context.Context) (Balance, error) {
	var out Balance
	err := c.do(ctx, http.MethodGet, "/balance", nil, nil, &out)

	return out, err
}

func (c *HTTPClient) Profit(ctx context.Context) (Profit, error) {
	var out Profit
	err := c.do(ctx, http.MethodGet, "/profit", nil, nil, &out)

	return out, err
}

func (c *HTTPClient) Whitelist(ctx context.Context) ([]string, error) {
	var out whitelistResponse
	if err := c.do(ctx, http.MethodGet, "/whitelist", nil, nil, &out); err != nil {
		return nil, err
	}

	return out.Whitelist, nil
}

// PairCandles returns at most limit candles in strictly increasing time order.
func (c *HTTPClient) PairCandles(ctx context.Context, pair types.Pair, timeframe string, limit int) ([]types.Candle, error) {
	query := url.Values{}
	query.Set("pair", pair.String())
	query.Set("timeframe", timeframe)

	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var out pairCandlesResponse
	if err := c.do(ctx, http.MethodGet, "/pair_candles", query, nil, &out); err != nil {
		return nil, err
	}

	candles, err := out.candles("/pair_candles")
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}

// ForceEntry opens a trade. Stakes above the configured ceiling are refused
// without contacting the engine.
func (c *HTTPClient) ForceEntry(ctx context.Context, req ForceEntryRequest) (ForceEntryResult, error) {
	if req.Pair == "" {
		return ForceEntryResult{}, errors.New(errors.ErrCodeMissingParameter, "pair is required")
	}

	stake := decimal.NewFromFloat(req.StakeAmount)
	if !stake.IsPositive() {
		return ForceEntryResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "stake must be positive, got %s", stake.String())
	}

	if c.maxStake.IsPositive() && stake.GreaterThan(c.maxStake) {
		return ForceEntryResult{}, errors.Newf(errors.ErrCodeStakeAboveCap, "stake %s exceeds max_stake %s", stake.String(), c.maxStake.String())
	}

	side := req.Side
	if side == "" {
		side = "long"
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = "market"
	}

	body := forceEntryBody{
		Pair:        req.Pair.String(),
		Side:        side,
		OrderType:   orderType,
		StakeAmount: stake.InexactFloat64(),
	}

	var out ForceEntryResult
	if err := c.do(ctx, http.MethodPost, "/forceenter", nil, body, &out); err != nil {
		return ForceEntryResult{}, err
	}

	if out.Pair == "" {
		out.Pair = req.Pair.String()
	}

	return out, nil
}

// ForceExit closes one trade, every trade ("all"), or every open trade on a
// pair. The ids it closed are resolved from /status.
func (c *HTTPClient) ForceExit(ctx context.Context, req ForceExitRequest) (ForceExitResult, error) {
	if req.TradeID == "" && req.Pair == "" {
		return ForceExitResult{}, errors.New(errors.ErrCodeMissingParameter, "trade id or pair is required")
	}

	if req.TradeID != "" && req.TradeID != "all" {
		id, err := strconv.ParseInt(req.TradeID, 10, 64)
		if err != nil {
			return ForceExitResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid trade id %q", req.TradeID)
		}

		if err := c.exitOne(ctx, req.TradeID); err != nil {
			return ForceExitResult{}, err
		}

		return ForceExitResult{Closed: []int64{id}}, nil
	}

	open, err := c.Status(ctx)
	if err != nil {
		return ForceExitResult{}, err
	}

	if req.TradeID == "all" {
		ids := make([]int64, 0, len(open))
		for _, t := range open {
			ids = append(ids, t.TradeID)
		}

		if err := c.exitOne(ctx, "all"); err != nil {
			return ForceExitResult{}, err
		}

		return ForceExitResult{Closed: ids}, nil
	}

	closed := make([]int64, 0)

	for _, t := range open {
		if !strings.EqualFold(t.Pair, req.Pair) {
			continue
		}

		if err := c.exitOne(ctx, strconv.FormatInt(t.TradeID, 10)); err != nil {
			return ForceExitResult{Closed: closed}, err
		}

		closed = append(closed, t.TradeID)
	}

	if len(closed) == 0 {
		return ForceExitResult{}, errors.Newf(errors.ErrCodeNotFound, "no open trade on %s", req.Pair)
	}

	return ForceExitResult{Closed: closed}, nil
}

func (c *HTTPClient) exitOne(ctx context.Context, tradeID string) error {
	var out resultResponse

	return c.do(ctx, http.MethodPost, "/forceexit", nil, forceExitBody{TradeID: tradeID, OrderType: ""}, &out)
}

func (c *HTTPClient) StopEngine(ctx context.Context) (string, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodPost, "/stop", nil, struct{}{}, &out); err != nil {
		return "", err
	}

	return out.Status, nil
}

func (c *HTTPClient) StartEngine(ctx context.Context) (string, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodPost, "/start", nil, struct{}{}, &out); err != nil {
		return "", err
	}

	return out.Status, nil
}

// ClampStake bounds the requested stake to [0, capAmount] and to the free
// balance, rounded down to cents.
func ClampStake(requested, capAmount, available float64) float64 {
	v := decimal.NewFromFloat(requested)
	if c := decimal.NewFromFloat(capAmount); c.IsPositive() && v.GreaterThan(c) {
		v = c
	}

	if a := decimal.NewFromFloat(available); v.GreaterThan(a) {
		v = a
	}

	if v.IsNegative() {
		return 0
	}

	return v.RoundDown(2).InexactFloat64()
}

func (k Kind) String() string {
	return string(k)
}

// Describe renders err for operators without leaking internals.
func Describe(err error) string {
	if ee, ok := AsEngineError(err); ok {
		if ee.StatusCode > 0 {
			return fmt.Sprintf("%s (%d): %s", ee.Kind, ee.StatusCode, ee.Detail)
		}

		return fmt.Sprintf("%s: %s", ee.Kind, ee.Detail)
	}

	return err.Error()
}
