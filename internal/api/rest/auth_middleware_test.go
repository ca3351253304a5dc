package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
)

func TestJWTGuard_IssueAndValidate(t *testing.T) {
	guard := NewJWTGuard(testSecret, "transaction-monitor", zaptest.NewLogger(t))
	require.True(t, guard.Enabled())

	token, err := guard.Issue("analyst-7", time.Hour)
	require.NoError(t, err)

	claims, err := guard.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst-7", claims.Subject)
	assert.Equal(t, "transaction-monitor", claims.Issuer)
}

func TestJWTGuard_ValidateRejects(t *testing.T) {
	logger := zaptest.NewLogger(t)
	guard := NewJWTGuard(testSecret, "transaction-monitor", logger)

	sign := func(secret string, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "analyst-7",
			Issuer:    "transaction-monitor",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	tests := []struct {
		name  string
		token func() string
	}{
		{name: "wrong secret", token: func() string { return sign("other-secret", valid()) }},
		{name: "expired", token: func() string {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return sign(testSecret, c)
		}},
		{name: "no expiry", token: func() string {
			c := valid()
			c.ExpiresAt = nil
			return sign(testSecret, c)
		}},
		{name: "missing subject", token: func() string {
			c := valid()
			c.Subject = ""
			return sign(testSecret, c)
		}},
		{name: "issuer mismatch", token: func() string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(testSecret, c)
		}},
		{name: "unsigned", token: func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return s
		}},
		{name: "garbage", token: func() string { return "not.a.token" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guard.Validate(tt.token())
			assert.Error(t, err)
		})
	}
}

func TestJWTGuard_Disabled(t *testing.T) {
	guard := NewJWTGuard("", "", zaptest.NewLogger(t))
	assert.False(t, guard.Enabled())

	_, err := guard.Issue("analyst-7", time.Hour)
	assert.Error(t, err)

	called := false
	h := guard.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Empty(t, actorFromContext(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/", nil))
	assert.True(t, called)
}

func TestJWTGuard_Require(t *testing.T) {
	guard := NewJWTGuard(testSecret, "", zaptest.NewLogger(t))
	token, err := guard.Issue("analyst-7", time.Hour)
	require.NoError(t, err)

	var actor string
	h := guard.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = actorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "scheme is case-insensitive", header: "bearer " + token, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = ""
			req := httptest.NewRequest(http.MethodPatch, "/api/alerts/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
				assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, w).Error.Code)
				assert.Empty(t, actor)
			} else {
				assert.Equal(t, "analyst-7", actor)
			}
		})
	}
}

func TestGuardedAlertUpdate_AssignsTokenSubject(t *testing.T) {
	env := newTestEnv(t, withGuard(testSecret))
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/transactions", txnBody("TXN-G", "ACC-1", 15000)).Code)
	alerts := decode[[]alert.Alert](t, env.do(t, http.MethodGet, "/api/alerts", nil))
	require.Len(t, alerts, 1)
	path := "/api/alerts/" + alerts[0].ID.String()

	w := env.do(t, http.MethodPatch, path, map[string]string{"assignedTo": ""})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := env.guard.Issue("analyst-9", time.Hour)
	require.NoError(t, err)

	w = env.do(t, http.MethodPatch, path, map[string]string{"assignedTo": ""}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "analyst-9", decode[alert.Alert](t, w).AssignedTo)
}
