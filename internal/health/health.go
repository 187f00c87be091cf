// Package health provides the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// HealthCheck aggregates dependency probes into /health and /ready.
type HealthCheck struct {
	checks map[string]Check
	logger *zap.Logger

	mu            sync.RWMutex
	ready         bool
	lastCheck     time.Time
	checkInterval time.Duration
}

// NewHealthCheck creates a health checker over the named dependency probes
// and starts the background probe loop.
func NewHealthCheck(checks map[string]Check, logger *zap.Logger) *HealthCheck {
	hc := &HealthCheck{
		checks:        checks,
		logger:        logger,
		checkInterval: 5 * time.Second,
	}

	go hc.backgroundCheck()

	return hc
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivenessResponse{Status: "healthy"})
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK only when every dependency probe passes.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statuses, healthy := hc.probe(ctx)

	hc.mu.Lock()
	hc.ready = healthy
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ReadinessResponse{Status: "not_ready", Checks: statuses})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadinessResponse{Status: "ready", Checks: statuses})
}

func (hc *HealthCheck) probe(ctx context.Context) (map[string]string, bool) {
	statuses := make(map[string]string, len(hc.checks))
	healthy := true
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			statuses[name] = "unhealthy"
			healthy = false
			hc.logger.Warn("dependency probe failed",
				zap.String("dependency", name),
				zap.Error(err))
		} else {
			statuses[name] = "healthy"
		}
	}
	return statuses, healthy
}

// backgroundCheck performs periodic dependency probes.
func (hc *HealthCheck) backgroundCheck() {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, healthy := hc.probe(ctx)
		cancel()

		hc.mu.Lock()
		hc.ready = healthy
		hc.lastCheck = time.Now()
		hc.mu.Unlock()
	}
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}
