package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kartoza/stats-workbench/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Version = "test"
	cfg.Backends.CalculatorBaseURL = "http://127.0.0.1:1"

	srv, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestAPIHealthAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestSPAFallback(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/calculator", "/some/deep/link"} {
		w := serve(srv, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		body, _ := io.ReadAll(w.Body)
		assert.Contains(t, string(body), "<title>Stats Workbench</title>", path)
	}
}

func TestUnknownAPIPathIsJSON(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	serve(srv, httptest.NewRequest("GET", "/api/health", nil))
	serve(srv, httptest.NewRequest("POST", "/api/calculate", strings.NewReader(`{"num1":1,"num2":2,"operation":"add"}`)))

	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `workbench_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, body, `workbench_backend_calls_total{operation="calculate",outcome="connect_error",service="calculator"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/calculate", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Client-ID")

	w := serve(srv, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-client-id")
}
