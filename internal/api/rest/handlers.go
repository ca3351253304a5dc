package rest

import (
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/domain/validation"
	"github.com/davidleathers/transaction-monitor/internal/service/dashboard"
	"github.com/davidleathers/transaction-monitor/internal/service/ingestion"
	"github.com/davidleathers/transaction-monitor/internal/service/review"
)

// Services holds the application services behind the REST API
type Services struct {
	Ingestion ingestion.Service
	Review    review.Service
	Dashboard dashboard.Service
}

// Handler serves the JSON API
type Handler struct {
	services       Services
	validator      *validation.Validator
	uploadMaxBytes int64
	maxErrorReport int
	logger         *zap.Logger
}

// NewHandler creates the API handler. uploadMaxBytes bounds CSV uploads and
// maxErrorReport caps the row errors returned by batch endpoints.
func NewHandler(services Services, uploadMaxBytes int64, maxErrorReport int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxErrorReport <= 0 {
		maxErrorReport = 10
	}
	return &Handler{
		services:       services,
		validator:      validation.New(),
		uploadMaxBytes: uploadMaxBytes,
		maxErrorReport: maxErrorReport,
		logger:         logger,
	}
}
