package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/internal/version"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultAlertLimit = 10
	maxAlertLimit     = 200
	maxBodyBytes      = 1 << 16
)

// view returns the current dashboard with the degraded banner recomputed
// against the wall clock.
func (s *Server) view() *model.Dashboard {
	d := *s.model.Snapshot()
	d.Degraded = d.Portfolio.Degraded || d.StaleAt(s.now(), s.cfg.TickPeriod())

	return &d
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"published": s.model.Published(),
		"version":   version.Version,
	})
}

func (s *Server) handleAllData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().System)
}

func (s *Server) handleConditions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().Conditions)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().Portfolio)
}

func (s *Server) handleSentiment(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().Sentiment)
}

func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().Risk())
}

func (s *Server) handleSignals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view().Signals)
}

// handleAlerts answers the newest alerts first. The model ring serves small
// limits; larger ones read the store.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, errors.Newf(errors.ErrCodeInvalidParameter, "invalid limit %q", raw))

			return
		}

		limit = min(n, maxAlertLimit)
	}

	ring := s.model.Snapshot().AlertsRecent

	if limit > len(ring) && s.alerts != nil {
		stored, err := s.alerts.RecentAlerts(limit)
		if err == nil {
			writeJSON(w, http.StatusOK, stored)

			return
		}

		s.logger.Warn("Alert history unavailable, serving the in-memory ring", zap.Error(err))
	}

	out := make([]types.NewsAlert, 0, min(limit, len(ring)))
	for i := len(ring) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ring[i])
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	res := s.control.Refresh()
	if !res.Success {
		writeJSON(w, http.StatusServiceUnavailable, res)

		return
	}

	writeResult(w, res)
}

type forceTradeRequest struct {
	Pair string `json:"pair"`
}

func (s *Server) handleForceTrade(w http.ResponseWriter, r *http.Request) {
	var req forceTradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)

		return
	}

	res, err := s.control.ForceTrade(r.Context(), req.Pair)
	if err != nil {
		writeError(w, err)

		return
	}

	writeResult(w, res)
}

type forceExitRequest struct {
	TradeID json.RawMessage `json:"trade_id"`
	Pair    string          `json:"pair"`
}

// tradeID accepts the id as a JSON number or string.
func (f forceExitRequest) tradeID() (string, error) {
	raw := strings.TrimSpace(string(f.TradeID))
	if raw == "" || raw == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(f.TradeID, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(f.TradeID, &n); err != nil {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "invalid trade_id %s", raw)
	}

	return n.String(), nil
}

func (s *Server) handleForceExit(w http.ResponseWriter, r *http.Request) {
	var req forceExitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)

		return
	}

	id, err := req.tradeID()
	if err != nil {
		writeError(w, err)

		return
	}

	res, err := s.control.ForceExit(r.Context(), id, req.Pair)
	if err != nil {
		writeError(w, err)

		return
	}

	writeResult(w, res)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	res, err := s.control.EmergencyStop(r.Context())
	if err != nil {
		writeError(w, err)

		return
	}

	writeResult(w, res)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.control.ToggleAutoTrading(r.Context()))
}

func (s *Server) handleStartEngine(w http.ResponseWriter, r *http.Request) {
	res, err := s.control.StartEngine(r.Context())
	if err != nil {
		writeError(w, err)

		return
	}

	writeResult(w, res)
}

// decodeBody reads a JSON object. An empty body decodes to the zero value.
func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "failed to read request body", err)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "request body is not valid JSON", err)
	}

	return nil
}
