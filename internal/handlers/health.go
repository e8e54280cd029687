package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// defaultCheckTimeout bounds each readiness check.
const defaultCheckTimeout = 2 * time.Second

// HealthResponse represents the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the response for the ready endpoint.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	mu      sync.RWMutex
	ready   bool
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		ready:   true,
		checks:  make(map[string]CheckFunc),
		timeout: defaultCheckTimeout,
	}
}

// Health handles GET /health. It only shows the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /ready. It fails while shutting down or when any
// registered check fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.ready
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := checks[name](ctx)
		cancel()
		if err != nil {
			results[name] = "fail"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(results) > 0 {
		resp.Checks = results
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// SetReady sets the ready state.
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current ready state.
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// AddCheck registers a dependency check.
func (h *HealthHandler) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}
