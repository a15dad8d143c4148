package api

import (
	"log/slog"

	"github.com/gorilla/mux"

	"github.com/sam-dm/deployment-manager/internal/api/handlers"
	"github.com/sam-dm/deployment-manager/internal/api/middleware"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	EnableRateLimit   bool
	EnableCompression bool
	EnableCORS        bool
	EnableMetrics     bool

	CORSConfig middleware.CORSConfig

	RateLimitPerMinute int
	RateLimitBurst     int

	Logger *slog.Logger

	Handlers *handlers.Deployments
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig(logger *slog.Logger, h *handlers.Deployments) RouterConfig {
	return RouterConfig{
		EnableRateLimit:    true,
		EnableCompression:  true,
		EnableCORS:         true,
		EnableMetrics:      true,
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
		CORSConfig:         middleware.DefaultCORSConfig(),
		Logger:             logger,
		Handlers:           h,
	}
}

// NewRouter builds the DMS HTTP API router.
//
// The middleware stack applies in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (if enabled)
//  4. CORS (if enabled)
//  5. Compression (if enabled)
//  6. Route-specific: client bearer auth (agent routes), rate limit (if
//     enabled); request bodies are validated inside the handlers
func NewRouter(config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(config.Logger))

	if config.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if config.EnableCORS {
		router.Use(middleware.CORSMiddleware(config.CORSConfig))
	}
	if config.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	router.HandleFunc("/health", config.Handlers.Health).Methods("GET")

	setupAgentRoutes(router, config)
	setupAdminRoutes(router, config)

	return router
}

// setupAgentRoutes configures the agent-facing endpoints, all gated by
// the client's X-API-Key bearer token.
func setupAgentRoutes(router *mux.Router, config RouterConfig) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.ClientAuthMiddleware(config.Handlers.Service))
	if config.EnableRateLimit {
		api.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}

	api.HandleFunc("/checkin", config.Handlers.Checkin).Methods("POST")
	api.HandleFunc("/update-result", config.Handlers.UpdateResult).Methods("POST")
	api.HandleFunc("/artifacts/{version}", config.Handlers.DownloadArtifact).Methods("GET")
}

// setupAdminRoutes configures the operator-facing endpoints. Per spec
// these are authenticated out-of-band (a deployment concern, e.g. a
// reverse proxy or VPN boundary) — the core only requires the
// agent-facing endpoints above to be token-gated.
func setupAdminRoutes(router *mux.Router, config RouterConfig) {
	api := router.PathPrefix("/api").Subrouter()
	if config.EnableRateLimit {
		api.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}

	api.HandleFunc("/clients", config.Handlers.RegisterClient).Methods("POST")
	api.HandleFunc("/clients", config.Handlers.ListClients).Methods("GET")
	api.HandleFunc("/clients/{id}", config.Handlers.GetClient).Methods("GET")
	api.HandleFunc("/clients/{id}/config", config.Handlers.UpdateClientConfig).Methods("PUT")
	api.HandleFunc("/clients/{id}/deploy", config.Handlers.Deploy).Methods("POST")

	api.HandleFunc("/versions", config.Handlers.ListVersions).Methods("GET")
	api.HandleFunc("/versions", config.Handlers.UploadVersion).Methods("POST")
	api.HandleFunc("/versions/{version}", config.Handlers.GetVersion).Methods("GET")
}
