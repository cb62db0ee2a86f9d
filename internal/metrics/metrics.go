// Package metrics exposes Prometheus counters for scan and backtest runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Run kinds used as the "run" label.
const (
	RunScan     = "scan"
	RunBacktest = "backtest"
)

// Metrics holds all Prometheus metrics for the scanner. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SymbolsTotal *prometheus.CounterVec // labels: run, outcome
	SetupsTotal  prometheus.Counter
	TradesTotal  prometheus.Counter
	BarsTotal    *prometheus.CounterVec // labels: run
	RunDuration  *prometheus.HistogramVec
	LastRunTime  *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setupscanner_symbols_total",
			Help: "Symbols processed, by run kind and outcome (ok, skipped)",
		}, []string{"run", "outcome"}),
		SetupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "setupscanner_setups_total",
			Help: "Passing setups reported by live scans",
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "setupscanner_backtest_trades_total",
			Help: "Trades generated by backtest replays",
		}),
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setupscanner_bars_evaluated_total",
			Help: "Bars passed through the setup evaluator",
		}, []string{"run"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "setupscanner_run_duration_seconds",
			Help:    "Wall time of a full scan or backtest run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"run"}),
		LastRunTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "setupscanner_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}, []string{"run"}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.SymbolsTotal,
		m.SetupsTotal,
		m.TradesTotal,
		m.BarsTotal,
		m.RunDuration,
		m.LastRunTime,
	)
	return m
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Symbol counts one processed symbol.
func (m *Metrics) Symbol(run string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "skipped"
	}
	m.SymbolsTotal.WithLabelValues(run, outcome).Inc()
}

// Bars counts evaluated bars.
func (m *Metrics) Bars(run string, n int) {
	if m == nil {
		return
	}
	m.BarsTotal.WithLabelValues(run).Add(float64(n))
}

// Setups counts reported setups.
func (m *Metrics) Setups(n int) {
	if m == nil {
		return
	}
	m.SetupsTotal.Add(float64(n))
}

// Trades counts backtest trades.
func (m *Metrics) Trades(n int) {
	if m == nil {
		return
	}
	m.TradesTotal.Add(float64(n))
}

// RunFinished records the duration of a run that started at start.
func (m *Metrics) RunFinished(run string, start time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(run).Observe(time.Since(start).Seconds())
	m.LastRunTime.WithLabelValues(run).SetToCurrentTime()
}

// Server exposes /metrics over HTTP.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server for m on addr.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
