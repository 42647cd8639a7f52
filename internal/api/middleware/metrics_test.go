package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestRoutePattern проверяет, что в лейбл попадает шаблон маршрута.
func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			got = routePattern(req)
		})
	})
	r.Get("/api/v1/nodes/{node}/text/{key}", func(w http.ResponseWriter, _ *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes/0xabc/text/url", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "/api/v1/nodes/{node}/text/{key}" {
		t.Errorf("routePattern() = %q", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); p != unmatchedPath {
		t.Errorf("routePattern() без chi = %q, ожидалось %q", p, unmatchedPath)
	}
}

// TestRequestLogger_Levels проверяет уровень логирования по статус-коду.
func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusForbidden, "level=WARN"},
		{http.StatusServiceUnavailable, "level=ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("ok"))
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/statistics", nil))

		out := buf.String()
		if !strings.Contains(out, tt.level) || !strings.Contains(out, "bytes=2") {
			t.Errorf("статус %d: лог %q", tt.status, out)
		}
	}
}
