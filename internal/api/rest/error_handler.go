package rest

import (
	"context"
	"errors"
	"net/http"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the failure. Fields carries per-field validation
// messages keyed by JSON field path.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Fields  map[string]string      `json:"fields,omitempty"`
}

// mapError converts err into a status code and response body. Errors that are
// not AppErrors never leak their message.
func mapError(err error) (int, ErrorResponse) {
	if appErr, ok := domainerrors.As(err); ok {
		detail := ErrorDetail{Code: appErr.Code, Message: appErr.Message}
		if appErr.Type == domainerrors.ErrorTypeValidation && appErr.Code == "VALIDATION_FAILED" {
			detail.Fields = make(map[string]string, len(appErr.Details))
			for field, msg := range appErr.Details {
				if s, ok := msg.(string); ok {
					detail.Fields[field] = s
				}
			}
		} else if len(appErr.Details) > 0 {
			detail.Details = appErr.Details
		}

		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{Error: detail}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: ErrorDetail{
			Code: "REQUEST_TIMEOUT", Message: "Request timed out",
		}}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, ErrorResponse{Error: ErrorDetail{
			Code: "REQUEST_CANCELED", Message: "Request was canceled",
		}}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code: "INTERNAL_ERROR", Message: "An internal error occurred",
	}}
}
