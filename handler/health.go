package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gatewaylab/payu-gateway/infra/config"
	"github.com/gatewaylab/payu-gateway/infra/response"
	"github.com/gatewaylab/payu-gateway/payment"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store     *payment.Store
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *payment.Store) *HealthHandler {
	return &HealthHandler{store: store, startTime: time.Now()}
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      string    `json:"uptime"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
	GoRoutines  int       `json:"goroutines"`
}

// Check reports service health including database reachability
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.store.Ping(); err != nil {
		dbStatus = "unavailable"
	}

	environment := "sandbox"
	if cfg := config.Get(); cfg != nil {
		environment = cfg.Environment
	}

	status := HealthStatus{
		Status:      "ok",
		Version:     "1.0.0",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: environment,
		Database:    dbStatus,
		GoRoutines:  runtime.NumGoroutine(),
	}

	code := http.StatusOK
	if dbStatus != "ok" {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response.Success(w, code, "Service health", status)
}
