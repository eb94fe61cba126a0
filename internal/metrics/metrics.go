// Package metrics holds the Prometheus collectors of the monitor.
//
// Exposed series:
//   - monitor_ticks_total{outcome}                  scheduler ticks (productive|empty)
//   - monitor_tick_duration_seconds                 tick wall time
//   - monitor_engine_requests_total{endpoint,kind}  engine calls by outcome (ok or error kind)
//   - monitor_engine_request_duration_seconds{endpoint}
//   - monitor_engine_reachable                      1 when the last tick reached the engine
//   - monitor_ready_symbols{side}                   symbols ready to buy or sell
//   - monitor_signals_total{side}                   signals appended to the ring
//   - monitor_notifications_total{channel,status}   delivery attempts
//   - monitor_storage_errors_total                  failed store operations
//   - monitor_auto_trading_enabled                  operator flag
//   - monitor_news_alerts_total{sentiment}          classified feed items
//   - monitor_chat_commands_total{command,outcome}  chat commands handled
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/types"
)

const namespace = "monitor"

// Metrics owns a private registry so several cores can live in one process
// (tests do that).
type Metrics struct {
	registry *prometheus.Registry

	ticks           *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	engineRequests  *prometheus.CounterVec
	engineLatency   *prometheus.HistogramVec
	engineReachable prometheus.Gauge
	readySymbols    *prometheus.GaugeVec
	signals         *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	storageErrors   prometheus.Counter
	autoTrading     prometheus.Gauge
	newsAlerts      *prometheus.CounterVec
	chatCommands    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler tick.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		engineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Engine REST calls by endpoint and outcome.",
		}, []string{"endpoint", "kind"}),
		engineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Engine REST call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		engineReachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_reachable",
			Help:      "1 when the last tick reached the engine.",
		}),
		readySymbols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready_symbols",
			Help:      "Symbols currently ready to buy or sell.",
		}, []string{"side"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Readiness signals emitted.",
		}, []string{"side"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and status.",
		}, []string{"channel", "status"}),
		storageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Failed store operations.",
		}),
		autoTrading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_trading_enabled",
			Help:      "1 when news-driven auto entries are allowed.",
		}),
		newsAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_alerts_total",
			Help:      "Classified news alerts by sentiment.",
		}, []string{"sentiment"}),
		chatCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_commands_total",
			Help:      "Chat commands handled by outcome.",
		}, []string{"command", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.tickDuration, m.engineRequests, m.engineLatency, m.engineReachable,
		m.readySymbols, m.signals, m.notifications, m.storageErrors, m.autoTrading, m.newsAlerts,
		m.chatCommands,
	)

	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EngineObserver returns the hook passed to the engine client.
func (m *Metrics) EngineObserver() engineclient.RequestObserver {
	return func(endpoint string, kind engineclient.Kind, elapsed time.Duration) {
		label := string(kind)
		if label == "" {
			label = "ok"
		}

		m.engineRequests.WithLabelValues(endpoint, label).Inc()
		m.engineLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	}
}

// ObserveTick records one finished tick. Like every recorder below it is a
// no-op on a nil *Metrics.
func (m *Metrics) ObserveTick(productive bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "empty"
	if productive {
		outcome = "productive"
	}

	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetEngineReachable(ok bool) {
	if m == nil {
		return
	}

	m.engineReachable.Set(boolGauge(ok))
}

func (m *Metrics) SetReady(buy, sell int) {
	if m == nil {
		return
	}

	m.readySymbols.WithLabelValues(string(types.SideBuy)).Set(float64(buy))
	m.readySymbols.WithLabelValues(string(types.SideSell)).Set(float64(sell))
}

func (m *Metrics) AddSignal(side types.Side) {
	if m == nil {
		return
	}

	m.signals.WithLabelValues(string(side)).Inc()
}

func (m *Metrics) AddNotification(channel types.ChannelKind, status types.DeliveryStatus) {
	if m == nil {
		return
	}

	m.notifications.WithLabelValues(string(channel), string(status)).Inc()
}

func (m *Metrics) AddStorageError() {
	if m == nil {
		return
	}

	m.storageErrors.Inc()
}

func (m *Metrics) SetAutoTrading(on bool) {
	if m == nil {
		return
	}

	m.autoTrading.Set(boolGauge(on))
}

func (m *Metrics) AddNewsAlert(sentiment types.Sentiment) {
	if m == nil {
		return
	}

	m.newsAlerts.WithLabelValues(string(sentiment)).Inc()
}

func (m *Metrics) AddChatCommand(command string, ok bool) {
	if m == nil {
		return
	}

	outcome := "ok"
	if !ok {
		outcome = "error"
	}

	m.chatCommands.WithLabelValues(command, outcome).Inc()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}

	return 0
}
