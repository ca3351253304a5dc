package rest

import (
	"net/http"

	"go.uber.org/zap"
)

// RouterConfig wires the HTTP surface. Optional parts are skipped when nil.
type RouterConfig struct {
	Handler  *Handler
	Guard    *JWTGuard
	Health   *HealthService
	Observer HTTPObserver

	// Metrics serves the Prometheus exposition
	Metrics http.Handler
	// WebSocket serves the live event feed
	WebSocket http.Handler

	CORSOrigins []string
	// RateLimit is either RateLimiter.Middleware or RedisRateLimiter.Middleware
	RateLimit Middleware
	Contract    *ContractValidator
	Logger      *zap.Logger
}

// NewRouter builds the mux and middleware chain
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NewJWTGuard("", "", logger)
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, instrument(pattern, cfg.Observer, h))
	}
	h := cfg.Handler

	// Transactions
	handle("GET /api/transactions", http.HandlerFunc(h.handleListTransactions))
	handle("POST /api/transactions", http.HandlerFunc(h.handleCreateTransaction))
	handle("POST /api/transactions/single", http.HandlerFunc(h.handleCreateTransaction))
	handle("POST /api/transactions/batch", http.HandlerFunc(h.handleBatch))
	handle("POST /api/transactions/upload-csv", http.HandlerFunc(h.handleUploadCSV))
	handle("GET /api/transactions/flagged", http.HandlerFunc(h.handleListFlagged))
	handle("GET /api/transactions/risk/{level}", http.HandlerFunc(h.handleListByRiskLevel))
	handle("GET /api/transactions/{id}", http.HandlerFunc(h.handleGetTransaction))
	handle("PATCH /api/transactions/{id}/review", guard.Require(http.HandlerFunc(h.handleReviewTransaction)))

	// Alerts
	handle("GET /api/alerts", http.HandlerFunc(h.handleListAlerts))
	handle("GET /api/alerts/active", http.HandlerFunc(h.handleListActiveAlerts))
	handle("GET /api/alerts/priority/{priority}", http.HandlerFunc(h.handleListAlertsByPriority))
	handle("GET /api/alerts/{id}", http.HandlerFunc(h.handleGetAlert))
	handle("PATCH /api/alerts/{id}", guard.Require(http.HandlerFunc(h.handleUpdateAlert)))

	// Dashboard
	handle("GET /api/dashboard/stats", http.HandlerFunc(h.handleDashboardStats))
	handle("GET /api/metrics", http.HandlerFunc(h.handleListMetrics))
	handle("GET /api/metrics/latest", http.HandlerFunc(h.handleLatestMetrics))
	handle("POST /api/metrics", http.HandlerFunc(h.handleRecordMetric))

	// Ops
	handle("GET /api/openapi.yaml", http.HandlerFunc(handleOpenAPI))
	if cfg.WebSocket != nil {
		handle("GET /api/ws", cfg.WebSocket)
	}
	if cfg.Health != nil {
		handle("GET /health", cfg.Health.LivenessHandler())
		handle("GET /ready", cfg.Health.ReadinessHandler())
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	middlewares := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
		NewCORSMiddleware(DefaultCORSConfig(cfg.CORSOrigins)),
	}
	if cfg.RateLimit != nil {
		middlewares = append(middlewares, cfg.RateLimit)
	}
	if cfg.Contract != nil {
		middlewares = append(middlewares, cfg.Contract.Middleware(logger))
	}
	return Chain(mux, middlewares...)
}
