package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"docnotary/config"
	core "docnotary/ingestion/service/core"
	"docnotary/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the gateway's http.Handler.
// m may be nil, in which case requests are not instrumented and no metrics route is mounted.
func NewRouter(svc *core.Service, m *metrics.Metrics, cfg config.GatewayConfig, logger *log.Logger) http.Handler {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger, cfg.Monitoring.HealthCheckPath))
	if m != nil {
		r.Use(MetricsMiddleware(m))
	}
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/files", h.FileRoutes(cfg.MaxUploadBytes))
		r.Mount("/notarizations", h.NotarizationRoutes())
		r.Post("/gas/estimate", h.EstimateGas)
		r.Get("/documents/{hash}", h.GetDocument)
	})

	healthPath := cfg.Monitoring.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Get(healthPath, h.HealthCheck)
	if m != nil && cfg.Monitoring.EnableMetrics {
		metricsPath := cfg.Monitoring.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Method(http.MethodGet, metricsPath, m.Handler())
	}
	return r
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	ChainID   string    `json:"chain_id,omitempty"`
	Account   string    `json:"account,omitempty"`
	Contract  string    `json:"contract,omitempty"`
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "notaryd",
	}
	if chain := h.svc.Transactions().Chain(); chain != nil {
		resp.ChainID = chain.ChainID()
		resp.Account = chain.Account()
		resp.Contract = chain.ContractAddress()
	} else {
		resp.Status = "degraded"
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// respondJSON sends JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("HTTP Handler: Failed to encode JSON response: %v", err)
	}
}

// respondError sends error response
func (h *Handler) respondError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}

	h.respondJSON(w, errorResp, statusCode)
}
