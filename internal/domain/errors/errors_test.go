package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidationError("INVALID_AMOUNT", "amount must be positive"), ErrorTypeValidation, "INVALID_AMOUNT", http.StatusBadRequest},
		{"business", NewBusinessError("INVALID_TRANSITION", "alert already resolved"), ErrorTypeBusiness, "INVALID_TRANSITION", http.StatusUnprocessableEntity},
		{"not found", NewNotFoundError("transaction"), ErrorTypeNotFound, "RESOURCE_NOT_FOUND", http.StatusNotFound},
		{"conflict", NewConflictError("duplicate transactionId"), ErrorTypeConflict, "CONFLICT", http.StatusConflict},
		{"too large", NewPayloadTooLargeError("upload", 1024), ErrorTypeTooLarge, "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge},
		{"unauthorized", NewUnauthorizedError("missing bearer token"), ErrorTypeUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
		{"rate limit", NewRateLimitError(), ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "alert not found", NewNotFoundError("alert").Error())

	tooLarge := NewPayloadTooLargeError("request body", 16)
	assert.Equal(t, "request body exceeds 16 bytes", tooLarge.Message)
	assert.Equal(t, int64(16), tooLarge.Details["limitBytes"])
}

func TestWrappedErrorsKeepClassification(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	appErr := NewInternalError("failed to save transaction").WithCause(cause)
	wrapped := Wrap(appErr, "ingest")

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsType(wrapped, ErrorTypeInternal))

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "INTERNAL_ERROR", got.Code)
	assert.Contains(t, got.Error(), "dial tcp: refused")
}

func TestPlainErrors(t *testing.T) {
	plain := fmt.Errorf("plain")
	assert.False(t, IsType(plain, ErrorTypeValidation))
	assert.Nil(t, Wrap(nil, "noop"))
	_, ok := As(plain)
	assert.False(t, ok)
}
