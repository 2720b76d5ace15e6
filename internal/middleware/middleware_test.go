package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmendmentID(t *testing.T) {
	assert.NoError(t, ValidateAmendmentID("8f14e45f-ceea-467f-a5e0-8a1b2c3d4e5f"))
	assert.NoError(t, ValidateAmendmentID("2024_00123"))
	assert.Error(t, ValidateAmendmentID(""))
	assert.Error(t, ValidateAmendmentID("../etc/passwd"))
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(-23.55, -46.63))
	assert.Error(t, ValidateCoordinates(91, 0))
	assert.Error(t, ValidateCoordinates(0, -181))
	assert.Error(t, ValidateCoordinates(math.NaN(), 0))
}

func TestValidateTolerance(t *testing.T) {
	km, err := ValidateTolerance(0)
	require.NoError(t, err)
	assert.Zero(t, km)
	_, err = ValidateTolerance(-1)
	assert.Error(t, err)
	_, err = ValidateTolerance(1000)
	assert.Error(t, err)
}

func TestValidateUFAndURL(t *testing.T) {
	assert.NoError(t, ValidateUF("sp"))
	assert.Error(t, ValidateUF("SPX"))
	assert.NoError(t, ValidateURL("https://portal.gov.br/doc.pdf"))
	assert.Error(t, ValidateURL("ftp://x"))
}

func TestSanitizeAndLimits(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString(" a\x00b\x07c "))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 1, ValidatePage(-3))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/amendments", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{204, 204, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/v1/amendments", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 2, rl.Cleanup(time.Now().Add(time.Hour)))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	bad := CheckFunc(func(context.Context) error { return errors.New("chain broken at block 3") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"db": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"db": ok, "ledger": bad})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "chain broken at block 3")
}

func TestLoggingAndMetricsMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := LoggingMiddleware(logger)(MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("x"))
	})))

	before := GetMetrics()["requests_failed"].(uint64)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger/verify", nil))

	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/v1/ledger/verify")
	assert.Equal(t, before+1, GetMetrics()["requests_failed"].(uint64))

	RecordAnalysis(true, 2, nil)
	m := GetMetrics()
	assert.GreaterOrEqual(t, m["analyses_partial"].(uint64), uint64(1))
	assert.GreaterOrEqual(t, m["alerts_raised"].(uint64), uint64(2))
}
