package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedran77/pulse/internal/logging"
	"github.com/vedran77/pulse/internal/metrics"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, jwt.MapClaims{"sub": sub}).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuth(t *testing.T) {
	secret := "s3cret"
	userID := uuid.New()

	var seen uuid.UUID
	h := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), userID.String()), http.StatusUnauthorized},
		{"bad subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), "someone"), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), userID.String()), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), userID.String()), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
	assert.Equal(t, userID, seen)
}

func TestGetUserID_Missing(t *testing.T) {
	assert.Equal(t, uuid.Nil, GetUserID(context.Background()))
}

func TestRateLimiter_PerCaller(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(user uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != uuid.Nil {
			req = req.WithContext(WithUserID(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	a, b := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, call(a))
	assert.Equal(t, http.StatusOK, call(a))
	assert.Equal(t, http.StatusTooManyRequests, call(a))
	assert.Equal(t, http.StatusOK, call(b), "buckets are per user")
	assert.Equal(t, http.StatusOK, call(uuid.Nil), "anonymous callers share an IP bucket")

	limiter.Prune(time.Now().Add(time.Hour))
	assert.Equal(t, http.StatusOK, call(a), "pruned buckets start full")
}

func TestObserve_RecordsRoutePattern(t *testing.T) {
	m := metrics.NewNop()
	var logs bytes.Buffer
	log := logging.NewWithWriter(&logs, "info", "json")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Observe(log, m)(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /items/{id}", "418")))
	assert.True(t, strings.Contains(logs.String(), `"path":"/items/42"`))
}

func TestTimeout_BoundsContext(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
