package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/gateway/response"
	"github.com/mediscanner/api/pkg/observability/metrics"
)

const (
	ServiceName    = "MediScanner API"
	ServiceVersion = "1.0.0"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the unauthenticated service endpoints.
type SystemHandler struct {
	db      Pinger
	timeout time.Duration
}

func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{db: db, timeout: 3 * time.Second}
}

func (h *SystemHandler) Register(r *mux.Router) {
	r.HandleFunc("/", h.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.handleMetrics).Methods(http.MethodGet)
}

func (h *SystemHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Welcome to "+ServiceName, map[string]interface{}{
		"name":    ServiceName,
		"version": ServiceVersion,
		"endpoints": map[string]string{
			"auth":     "/auth",
			"medicine": "/medicine",
			"storage":  "/storage",
			"health":   "/health",
			"metrics":  "/metrics",
		},
	})
}

func (h *SystemHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("health check failed")
		response.Error(w, http.StatusServiceUnavailable, "Service unhealthy", map[string]interface{}{
			"database": "disconnected",
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func (h *SystemHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}
