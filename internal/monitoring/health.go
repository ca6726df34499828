package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// HealthChecker tracks liveness of the market-data stream for the /healthz
// endpoint.
type HealthChecker struct {
	mu          sync.RWMutex
	lastBar     time.Time
	isConnected bool
}

// NewHealthChecker creates an empty health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetConnected records stream connection state.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	h.isConnected = connected
	h.mu.Unlock()
}

// RecordBar records that a bar event was processed.
func (h *HealthChecker) RecordBar() {
	h.mu.Lock()
	h.lastBar = time.Now()
	h.mu.Unlock()
}

type healthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastBar     time.Time `json:"last_bar"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
}

// ServeHTTP reports degraded state when the stream is disconnected or has
// been silent for too long.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || (!h.lastBar.IsZero() && time.Since(h.lastBar) > time.Hour) {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastBar:     h.lastBar,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
	})
}

// Serve exposes /metrics and /healthz on addr. Blocks until the server
// fails; intended to run in its own goroutine.
func Serve(addr string, health *HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)
	return http.ListenAndServe(addr, mux)
}
