package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
	"github.com/davidleathers/transaction-monitor/internal/metrics"
	"github.com/davidleathers/transaction-monitor/internal/service/dashboard"
	"github.com/davidleathers/transaction-monitor/internal/service/ingestion"
	"github.com/davidleathers/transaction-monitor/internal/service/review"
	"github.com/davidleathers/transaction-monitor/internal/service/risk"
)

const testSecret = "test-signing-secret"

type testEnv struct {
	router http.Handler
	store  *repository.MemoryStore
	guard  *JWTGuard
}

type envOption func(*RouterConfig, *Services)

func withGuard(secret string) envOption {
	return func(cfg *RouterConfig, _ *Services) {
		cfg.Guard = NewJWTGuard(secret, "transaction-monitor", cfg.Logger)
	}
}

func withUploadLimit(limit int64) envOption {
	return func(cfg *RouterConfig, s *Services) {
		cfg.Handler = NewHandler(*s, limit, 10, cfg.Logger)
	}
}

func withObserver(c *metrics.Collector) envOption {
	return func(cfg *RouterConfig, _ *Services) {
		cfg.Observer = c
		cfg.Metrics = c.Handler()
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()

	dash := dashboard.NewService(store, nil, 0, logger)
	services := Services{
		Ingestion: ingestion.NewService(ingestion.Dependencies{
			Store:    store.Transactions(),
			Pipeline: risk.NewPipeline(risk.NewEvaluator(store.Transactions(), risk.WithLogger(logger)), nil),
			Listener: dash,
			Logger:   logger,
			Workers:  2,
		}),
		Review:    review.NewService(store.Transactions(), store.Alerts(), nil, dash, logger),
		Dashboard: dash,
	}

	cfg := RouterConfig{
		Handler:     NewHandler(services, 10<<20, 10, logger),
		Health:      NewHealthService("test", time.Second, NewPingChecker("store", store.Ping)),
		CORSOrigins: []string{"*"},
		Logger:      logger,
	}
	for _, opt := range opts {
		opt(&cfg, &services)
	}

	return &testEnv{router: NewRouter(cfg), store: store, guard: cfg.Guard}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, filename, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	req := multipartRequest(t, "/api/transactions/upload-csv", csvFormField, filename, contentType, content)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path, field, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func txnBody(id, account string, amount interface{}) map[string]interface{} {
	return map[string]interface{}{
		"transactionId":         id,
		"accountId":             account,
		"amount":                amount,
		"timestamp":             "2025-06-10T14:00:00Z",
		"phoneVerified":         true,
		"socialProfilePresence": true,
	}
}

// mockReviewService is a testify mock of review.Service
type mockReviewService struct {
	mock.Mock
}

var _ review.Service = (*mockReviewService)(nil)

func (m *mockReviewService) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListTransactions(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, page)
	if v := args.Get(0); v != nil {
		return v.([]*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListFlagged(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, page)
	if v := args.Get(0); v != nil {
		return v.([]*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListByRiskLevel(ctx context.Context, level transaction.RiskLevel, page repository.Page) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, level, page)
	if v := args.Get(0); v != nil {
		return v.([]*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) SetReviewStatus(ctx context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error) {
	args := m.Called(ctx, id, status)
	if v := args.Get(0); v != nil {
		return v.(*transaction.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) GetAlert(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error) {
	args := m.Called(ctx, page)
	if v := args.Get(0); v != nil {
		return v.([]*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListActiveAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error) {
	args := m.Called(ctx, page)
	if v := args.Get(0); v != nil {
		return v.([]*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) ListAlertsByPriority(ctx context.Context, priority alert.Priority, page repository.Page) ([]*alert.Alert, error) {
	args := m.Called(ctx, priority, page)
	if v := args.Get(0); v != nil {
		return v.([]*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewService) UpdateAlert(ctx context.Context, id uuid.UUID, update review.AlertUpdate, actor string) (*alert.Alert, error) {
	args := m.Called(ctx, id, update, actor)
	if v := args.Get(0); v != nil {
		return v.(*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}
