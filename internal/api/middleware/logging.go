// logging.go — middleware логирования входящих HTTP-запросов через slog.
// Перехватывает статус-код, размер ответа, длительность обработки
// и адрес вызывающего, установленный JWT middleware.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// responseWriter — обёртка для перехвата статус-кода и размера ответа.
// Используется и логированием, и метриками.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestInfo — данные запроса, известные только внутренним middleware.
// RequestLogger кладёт его в контекст до маршрутизации, JWT middleware
// заполняет адрес вызывающего после проверки токена.
type requestInfo struct {
	caller    model.Address
	hasCaller bool
}

// ContextKeyRequestInfo — ключ для requestInfo в контексте запроса.
const ContextKeyRequestInfo contextKey = "request_info"

// noteCaller записывает вызывающего в requestInfo, если RequestLogger активен.
func noteCaller(ctx context.Context, caller model.Address) {
	if info, ok := ctx.Value(ContextKeyRequestInfo).(*requestInfo); ok {
		info.caller, info.hasCaller = caller, true
	}
}

// RequestLogger возвращает middleware, логирующий каждый HTTP-запрос:
// метод, путь, статус, длительность, размер ответа и remote_addr.
// Для аутентифицированных запросов добавляется адрес вызывающего.
// Уровень логирования зависит от статус-кода: INFO (1xx-3xx), WARN (4xx), ERROR (5xx).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			info := &requestInfo{}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), ContextKeyRequestInfo, info)))

			level := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				level = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if info.hasCaller {
				attrs = append(attrs, slog.String("caller", info.caller.Hex()))
			}
			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
