// Package mockserver provides in-process stand-ins for the trading engine's
// REST API and the chat Bot API, for end-to-end tests of the monitor.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/mocks"
)

// ForceEntry is one /forceenter request as the engine received it.
type ForceEntry struct {
	Pair        string  `json:"pair"`
	Side        string  `json:"side"`
	OrderType   string  `json:"ordertype"`
	StakeAmount float64 `json:"stakeamount"`
}

// Trade is the engine's trade record.
type Trade struct {
	TradeID       int64   `json:"trade_id"`
	Pair          string  `json:"pair"`
	IsOpen        bool    `json:"is_open"`
	OpenRate      float64 `json:"open_rate"`
	CurrentRate   float64 `json:"current_rate"`
	Amount        float64 `json:"amount"`
	StakeAmount   float64 `json:"stake_amount"`
	ProfitRatio   float64 `json:"profit_ratio"`
	ProfitPct     float64 `json:"profit_pct"`
	ProfitAbs     float64 `json:"profit_abs"`
	OpenTimestamp int64   `json:"open_timestamp"`
}

// ServerConfig holds the initial engine state.
type ServerConfig struct {
	Username   string
	Password   string
	APIVersion float64
	Version    string
	Balance    float64
	Stake      string
	Whitelist  []string
	Timeframe  string
}

// MockEngineServer answers the engine REST API from in-memory state.
type MockEngineServer struct {
	mu sync.RWMutex

	cfg          ServerConfig
	state        string
	unreachable  bool
	openTrades   []*Trade
	closedTrades []*Trade
	tradeIDSeq   int64
	candles      map[string][]types.Candle
	forceEntries []ForceEntry
	forceExits   []string
	calls        map[string]int

	httpServer *http.Server
	listener   net.Listener
}

// NewMockEngineServer creates a running-state engine with the given config.
func NewMockEngineServer(config ServerConfig) *MockEngineServer {
	if config.APIVersion == 0 {
		config.APIVersion = 2.34
	}

	if config.Version == "" {
		config.Version = "2024.3"
	}

	if config.Stake == "" {
		config.Stake = "USDC"
	}

	if config.Timeframe == "" {
		config.Timeframe = "5m"
	}

	return &MockEngineServer{
		mu:           sync.RWMutex{},
		cfg:          config,
		state:        "running",
		unreachable:  false,
		openTrades:   make([]*Trade, 0),
		closedTrades: make([]*Trade, 0),
		tradeIDSeq:   1,
		candles:      make(map[string][]types.Candle),
		forceEntries: make([]ForceEntry, 0),
		forceExits:   make([]string, 0),
		calls:        make(map[string]int),
		httpServer:   nil,
		listener:     nil,
	}
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockEngineServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()
	router.Use(s.dropWhenUnreachable, s.requireAuth, s.count)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/show_config", s.handleShowConfig).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/profit", s.handleProfit).Methods(http.MethodGet)
	api.HandleFunc("/whitelist", s.handleWhitelist).Methods(http.MethodGet)
	api.HandleFunc("/pair_candles", s.handlePairCandles).Methods(http.MethodGet)
	api.HandleFunc("/forceenter", s.handleForceEnter).Methods(http.MethodPost)
	api.HandleFunc("/forceexit", s.handleForceExit).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockEngineServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server is listening on.
func (s *MockEngineServer) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the engine base URL, without the /api/v1 prefix.
func (s *MockEngineServer) BaseURL() string {
	return "http://" + s.Address()
}

// SetUnreachable makes every request end with a dropped connection.
func (s *MockEngineServer) SetUnreachable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unreachable = down
}

// SetCandles replaces the candle window served for pair.
func (s *MockEngineServer) SetCandles(pair string, candles []types.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candles[pair] = append([]types.Candle{}, candles...)
}

// SeedRandom serves a reproducible random window for every pair.
func (s *MockEngineServer) SeedRandom(pairs []types.Pair, seed int64, count int) {
	cfg := mocks.DefaultConfig()
	cfg.Count = count
	cfg.StartTime = time.Now().UTC().Truncate(cfg.Interval).Add(-time.Duration(count) * cfg.Interval)

	windows := mocks.NewCandleGenerator(seed).GenerateUniverse(pairs, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	for pair, candles := range windows {
		s.candles[pair.String()] = candles
	}
}

// OpenTrade adds an open trade and returns its id.
func (s *MockEngineServer) OpenTrade(pair string, stake, openRate, currentRate float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.openTradeLocked(pair, stake, openRate, currentRate)
}

func (s *MockEngineServer) openTradeLocked(pair string, stake, openRate, currentRate float64) int64 {
	id := s.tradeIDSeq
	s.tradeIDSeq++

	ratio := 0.0
	if openRate > 0 {
		ratio = currentRate/openRate - 1
	}

	s.openTrades = append(s.openTrades, &Trade{
		TradeID:       id,
		Pair:          pair,
		IsOpen:        true,
		OpenRate:      openRate,
		CurrentRate:   currentRate,
		Amount:        stake / openRate,
		StakeAmount:   stake,
		ProfitRatio:   ratio,
		ProfitPct:     ratio * 100,
		ProfitAbs:     stake * ratio,
		OpenTimestamp: time.Now().UnixMilli(),
	})

	return id
}

// ForceEntries returns every accepted /forceenter request.
func (s *MockEngineServer) ForceEntries() []ForceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ForceEntry{}, s.forceEntries...)
}

// ForceExits returns the trade ids /forceexit was called with.
func (s *MockEngineServer) ForceExits() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.forceExits...)
}

// Calls returns how many authenticated requests reached endpoint, for
// example "/stop".
func (s *MockEngineServer) Calls(endpoint string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.calls[endpoint]
}

// State returns the bot state, "running" or "stopped".
func (s *MockEngineServer) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// dropWhenUnreachable hijacks and closes the connection so clients see a
// transport failure rather than an HTTP status.
func (s *MockEngineServer) dropWhenUnreachable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		down := s.unreachable
		s.mu.RUnlock()

		if !down {
			next.ServeHTTP(w, r)

			return
		}

		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	})
}

func (s *MockEngineServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.cfg.Username || pass != s.cfg.Password {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})

				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *MockEngineServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[strings.TrimPrefix(r.URL.Path, "/api/v1")]++
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *MockEngineServer) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
}

func (s *MockEngineServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.cfg.Version})
}

func (s *MockEngineServer) handleShowConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"api_version":     s.cfg.APIVersion,
		"version":         s.cfg.Version,
		"strategy":        "MockStrategy",
		"dry_run":         true,
		"stake_currency":  s.cfg.Stake,
		"timeframe":       s.cfg.Timeframe,
		"state":           s.state,
		"max_open_trades": 3,
		"exchange":        "binance",
	})
}

func (s *MockEngineServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	writeJSON(w, http.StatusOK, s.openTrades)
}

func (s *MockEngineServer) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Trade, 0, len(s.closedTrades)+len(s.openTrades))
	all = append(all, s.closedTrades...)
	all = append(all, s.openTrades...)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit < len(all) {
			all = all[len(all)-limit:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades":       all,
		"trades_count": len(all),
		"total_trades": len(s.closedTrades) + len(s.openTrades),
	})
}

func (s *MockEngineServer) handleBalance(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	used := 0.0
	for _, t := range s.openTrades {
		used += t.StakeAmount
	}

	free := s.cfg.Balance - used

	writeJSON(w, http.StatusOK, map[string]any{
		"currencies": []map[string]any{{
			"currency":  s.cfg.Stake,
			"free":      free,
			"balance":   s.cfg.Balance,
			"used":      used,
			"est_stake": s.cfg.Balance,
		}},
		"total":            s.cfg.Balance,
		"stake":            s.cfg.Stake,
		"starting_capital": s.cfg.Balance,
	})
}

func (s *MockEngineServer) handleProfit(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closedProfit, allProfit := 0.0, 0.0
	wins, losses := 0, 0

	for _, t := range s.closedTrades {
		closedProfit += t.ProfitAbs

		if t.ProfitAbs >= 0 {
			wins++
		} else {
			losses++
		}
	}

	allProfit = closedProfit
	for _, t := range s.openTrades {
		allProfit += t.ProfitAbs
	}

	winrate := 0.0
	if wins+losses > 0 {
		winrate = float64(wins) / float64(wins+losses)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profit_closed_coin":    closedProfit,
		"profit_closed_percent": 0,
		"profit_all_coin":       allProfit,
		"profit_all_percent":    0,
		"trade_count":           len(s.closedTrades) + len(s.openTrades),
		"closed_trade_count":    len(s.closedTrades),
		"winning_trades":        wins,
		"losing_trades":         losses,
		"winrate":               winrate,
	})
}

func (s *MockEngineServer) handleWhitelist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"whitelist": s.cfg.Whitelist,
		"length":    len(s.cfg.Whitelist),
		"method":    []string{"StaticPairList"},
	})
}

func (s *MockEngineServer) handlePairCandles(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "pair is required"})

		return
	}

	s.mu.RLock()
	candles, ok := s.candles[pair]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No data for " + pair})

		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit < len(candles) {
			candles = candles[len(candles)-limit:]
		}
	}

	rows := make([][]any, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, []any{c.OpenTime.UnixMilli(), c.Open, c.High, c.Low, c.Close, c.Volume})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pair":      pair,
		"timeframe": r.URL.Query().Get("timeframe"),
		"columns":   []string{"date", "open", "high", "low", "close", "volume"},
		"data":      rows,
		"length":    len(rows),
	})
}

func (s *MockEngineServer) handleForceEnter(w http.ResponseWriter, r *http.Request) {
	var req ForceEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != "running" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Bot is not in the correct state."})

		return
	}

	rate := 100.0
	if c := s.candles[req.Pair]; len(c) > 0 {
		rate = c[len(c)-1].Close
	}

	s.forceEntries = append(s.forceEntries, req)
	id := s.openTradeLocked(req.Pair, req.StakeAmount, rate, rate)

	writeJSON(w, http.StatusOK, map[string]any{
		"trade_id":     id,
		"pair":         req.Pair,
		"stake_amount": req.StakeAmount,
	})
}

func (s *MockEngineServer) handleForceExit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TradeID string `json:"tradeid"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.forceExits = append(s.forceExits, req.TradeID)

	keep := make([]*Trade, 0, len(s.openTrades))
	closed := 0

	for _, t := range s.openTrades {
		if req.TradeID == "all" || strconv.FormatInt(t.TradeID, 10) == req.TradeID {
			t.IsOpen = false
			s.closedTrades = append(s.closedTrades, t)
			closed++

			continue
		}

		keep = append(keep, t)
	}

	if closed == 0 && req.TradeID != "all" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid argument"})

		return
	}

	s.openTrades = keep

	writeJSON(w, http.StatusOK, map[string]string{"result": fmt.Sprintf("Created exit orders for %d trades.", closed)})
}

func (s *MockEngineServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = "stopped"

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping trader ..."})
}

func (s *MockEngineServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == "running" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already running"})

		return
	}

	s.state = "running"

	writeJSON(w, http.StatusOK, map[string]string{"status": "starting trader ..."})
}

// Series builds candles from closes, one every step starting at start. Open
// is the previous close and the range is ±0.5% around the body.
func Series(start time.Time, step time.Duration, closes []float64) []types.Candle {
	out := make([]types.Candle, 0, len(closes))

	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}

		out = append(out, types.Candle{
			OpenTime: start.Add(time.Duration(i) * step).UTC(),
			Open:     open,
			High:     max(open, c) * 1.005,
			Low:      min(open, c) * 0.995,
			Close:    c,
			Volume:   1000 + float64(i),
		})
	}

	return out
}
