// Package api serves the dashboard model as JSON, forwards operator commands
// to the engine and pushes every published dashboard over a websocket.
package api

import (
	"context"
	"embed"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

//go:embed static
var staticFiles embed.FS

// AlertReader is the store fallback for alert history beyond the model ring.
type AlertReader interface {
	RecentAlerts(n int) ([]types.NewsAlert, error)
}

type Options struct {
	Config  *config.Config
	Model   *model.Model
	Control *control.Service
	Alerts  AlertReader
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Server struct {
	cfg     *config.Config
	model   *model.Model
	control *control.Service
	alerts  AlertReader
	metrics *metrics.Metrics
	logger  *logger.Logger
	hub     *Hub
	now     func() time.Time
}

func New(opts Options) *Server {
	log := opts.Logger.Named("api")

	return &Server{
		cfg:     opts.Config,
		model:   opts.Model,
		control: opts.Control,
		alerts:  opts.Alerts,
		metrics: opts.Metrics,
		logger:  log,
		hub:     NewHub(opts.Model, log),
		now:     time.Now,
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.HTTP.BindAddr, strconv.Itoa(s.cfg.HTTP.Port))
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	read := func(h http.HandlerFunc) http.Handler {
		timeout := time.Duration(s.cfg.HTTP.RequestTimeoutMs) * time.Millisecond

		return http.TimeoutHandler(s.requirePublished(h), timeout, `{"status":"timeout"}`)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/all-data", read(s.handleAllData)).Methods(http.MethodGet)
	api.Handle("/system-status", read(s.handleSystemStatus)).Methods(http.MethodGet)
	api.Handle("/strategy-conditions", read(s.handleConditions)).Methods(http.MethodGet)
	api.Handle("/portfolio-metrics", read(s.handlePortfolio)).Methods(http.MethodGet)
	api.Handle("/celebrity-alerts", read(s.handleAlerts)).Methods(http.MethodGet)
	api.Handle("/market-sentiment", read(s.handleSentiment)).Methods(http.MethodGet)
	api.Handle("/risk-metrics", read(s.handleRisk)).Methods(http.MethodGet)
	api.Handle("/trading-signals", read(s.handleSignals)).Methods(http.MethodGet)

	api.Handle("/refresh-data", s.requirePublished(s.handleRefresh)).Methods(http.MethodPost)
	api.Handle("/force-trade", s.requirePublished(s.handleForceTrade)).Methods(http.MethodPost)
	api.Handle("/force-exit", s.requirePublished(s.handleForceExit)).Methods(http.MethodPost)
	api.Handle("/toggle-auto-trading", s.requirePublished(s.handleToggle)).Methods(http.MethodPost)
	api.Handle("/start-engine", s.requirePublished(s.handleStartEngine)).Methods(http.MethodPost)
	// reachable before the first tick so an operator can always stop trading
	api.HandleFunc("/emergency-stop", s.handleEmergencyStop).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFiles, "static")
	r.PathPrefix("/").Handler(http.FileServer(http.FS(static))).Methods(http.MethodGet)

	return r
}

// Serve runs the hub and the HTTP server on l until ctx is done, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()

	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(l)
	}()

	s.logger.Info("HTTP API listening", zap.String("addr", l.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.Wrap(errors.ErrCodeInternal, "http server failed", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown did not finish cleanly", zap.Error(err))
	}

	return nil
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInternal, err, "failed to bind %s", s.Addr())
	}

	return s.Serve(ctx, l)
}

// requirePublished answers 503 until the scheduler published once.
func (s *Server) requirePublished(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.model.Published() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})

			return
		}

		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)

			return
		}

		started := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", s.now().Sub(started)),
		)
	})
}
