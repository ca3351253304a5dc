package rest

import (
	"github.com/shopspring/decimal"
)

// UpdateAlertRequest is the body of PATCH /api/alerts/{id}
type UpdateAlertRequest struct {
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE RESOLVED DISMISSED active resolved dismissed"`
	AssignedTo *string `json:"assignedTo,omitempty" validate:"omitempty,max=255"`
}

// ReviewRequest is the body of PATCH /api/transactions/{id}/review
type ReviewRequest struct {
	ReviewStatus string `json:"reviewStatus" validate:"required"`
}

// RecordMetricRequest is the body of POST /api/metrics
type RecordMetricRequest struct {
	MetricName  string          `json:"metricName" validate:"required,max=100"`
	MetricValue decimal.Decimal `json:"metricValue"`
}
