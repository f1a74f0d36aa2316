package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the journal engine.
type Metrics struct {
	FillsTotal          *prometheus.CounterVec // labels: side
	RealizedTradesTotal prometheus.Counter
	OversellQtyTotal    prometheus.Counter
	StoreWriteDur       prometheus.Histogram
	WSReconnects        prometheus.Counter
	OpenLots            prometheus.Gauge
	ExitOrderFailures   prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_fills_total",
			Help: "Completed fills processed (by side)",
		}, []string{"side"}),
		RealizedTradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_realized_trades_total",
			Help: "Realized trade fragments appended to the journal",
		}),
		OversellQtyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_oversell_qty_total",
			Help: "Sell quantity dropped because no open inventory matched (inventory drift)",
		}),
		StoreWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journal_store_write_duration_seconds",
			Help:    "Ledger rewrite and journal append latency",
			Buckets: prometheus.DefBuckets,
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_ws_reconnects_total",
			Help: "Order-update WebSocket reconnection attempts",
		}),
		OpenLots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_open_lots",
			Help: "Open lots surviving after the last ledger rewrite",
		}),
		ExitOrderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_exit_order_failures_total",
			Help: "Protective exit (GTT) placements that failed",
		}),
	}

	prometheus.MustRegister(
		m.FillsTotal,
		m.RealizedTradesTotal,
		m.OversellQtyTotal,
		m.StoreWriteDur,
		m.WSReconnects,
		m.OpenLots,
		m.ExitOrderFailures,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	TokenLoaded    bool      `json:"token_loaded"`
	ListenerActive bool      `json:"listener_active"`
	LastFillTime   time.Time `json:"last_fill_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetTokenLoaded(v bool) {
	h.mu.Lock()
	h.TokenLoaded = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetListenerActive(v bool) {
	h.mu.Lock()
	h.ListenerActive = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastFillTime(t time.Time) {
	h.mu.Lock()
	h.LastFillTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// Snapshot returns a copy of the current status for the API layer.
func (h *HealthStatus) Snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthStatus{
		WSConnected:     h.WSConnected,
		TokenLoaded:     h.TokenLoaded,
		ListenerActive:  h.ListenerActive,
		LastFillTime:    h.LastFillTime,
		RedisConnected:  h.RedisConnected,
		SQLiteOK:        h.SQLiteOK,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt,
		StartedAt:       h.StartedAt,
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.Snapshot()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !snap.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !snap.WSConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	fillAge := ""
	if !snap.LastFillTime.IsZero() {
		fillAge = time.Since(snap.LastFillTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		TokenLoaded     bool    `json:"token_loaded"`
		ListenerActive  bool    `json:"listener_active"`
		LastFillTime    string  `json:"last_fill_time"`
		FillAge         string  `json:"fill_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(snap.StartedAt).Round(time.Second).String(),
		WSConnected:     snap.WSConnected,
		TokenLoaded:     snap.TokenLoaded,
		ListenerActive:  snap.ListenerActive,
		LastFillTime:    snap.LastFillTime.Format(time.RFC3339),
		FillAge:         fillAge,
		RedisConnected:  snap.RedisConnected,
		RedisLatencyMs:  snap.RedisLatencyMs,
		SQLiteOK:        snap.SQLiteOK,
		SQLiteLatencyMs: snap.SQLiteLatencyMs,
		LastCheckAt:     snap.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
