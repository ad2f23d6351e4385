package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/handlers"
	"interview-analyzer/internal/metrics"
	"interview-analyzer/internal/pipeline"
	"interview-analyzer/internal/prefs"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, up pipeline.Upload, _ analysis.EvaluationConfig) (*analysis.Response, error) {
	if _, err := io.Copy(io.Discard, up.Body); err != nil {
		return nil, err
	}
	return &analysis.Response{}, nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	metrics.Register()

	dir := t.TempDir()
	prompts := prefs.NewPromptStore(dir, nil)
	models := prefs.NewModelStore(dir, "gemini-2.5-flash", nil)

	r := chi.NewRouter()
	SetupRouter(r, zaptest.NewLogger(t), Options{
		CORSOrigins:    []string{"http://localhost:5173"},
		RequestTimeout: time.Minute,
		MaxUploadBytes: 1 << 20,
	},
		handlers.NewAnalyzeHandler(stubRunner{}, prompts, models),
		handlers.NewPrefsHandler(prompts, models, prefs.AvailableModels),
	)
	return r
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/health", "/healthz"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allowed origin %q", got)
	}
}

func TestRouterUploadLimit(t *testing.T) {
	r := newTestRouter(t)

	body := "--b\r\nContent-Disposition: form-data; name=\"video\"; filename=\"a.mp4\"\r\n\r\n" +
		strings.Repeat("x", 2<<20) + "\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "http_request_duration_seconds") {
		t.Fatalf("expected http latency histogram in metrics output")
	}
}
