// handler.go — основной обработчик API Resolver Module.
// Маршруты регистрируются вручную на chi: чтение публичное,
// мутации и администрирование — за JWT middleware (sub = адрес вызывающего).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/resolver-module/internal/api/errors"
	"github.com/bigkaa/goartstore/resolver-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/mode"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

// maxBodyBytes — ограничение размера тела запроса.
const maxBodyBytes = 1 << 20

// APIHandler — основной обработчик API Resolver Module.
// Делегирует запросы в ResolverService.
type APIHandler struct {
	resolver *service.ResolverService
	health   *HealthHandler
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	resolver *service.ResolverService,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		resolver: resolver,
		health:   health,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// Register регистрирует все маршруты. auth — middleware аутентификации
// для мутирующих и административных маршрутов.
func (h *APIHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NotFound(w, fmt.Sprintf("Маршрут %s не найден", r.URL.Path))
	})

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		// Публичное чтение
		r.Get("/statistics", h.GetStatistics)
		r.Get("/namehash", h.GetNamehash)
		r.Get("/admin/collaborators", h.GetCollaborators)
		r.Get("/admin/mode", h.GetMode)
		r.Get("/admin/callers", h.ListCallers)
		r.Get("/admin/ttl", h.GetTTLConfig)

		r.Route("/nodes/{node}", func(r chi.Router) {
			r.Get("/", h.GetRecord)
			r.Get("/addr", h.GetAddr)
			r.Get("/name", h.GetName)
			r.Get("/contenthash", h.GetContenthash)
			r.Get("/pubkey", h.GetPubkey)
			r.Get("/text", h.GetTexts)
			r.Get("/text/{key}", h.GetText)
			r.Get("/cache", h.GetCacheInfo)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Put("/addr", h.SetAddr)
				r.Put("/name", h.SetName)
				r.Put("/contenthash", h.SetContenthash)
				r.Put("/pubkey", h.SetPubkey)
				r.Put("/text", h.SetTexts)
				r.Put("/text/{key}", h.SetText)
				r.Post("/sync/dao", h.SyncDAO)
				r.Post("/sync/contract", h.SyncContract)
				r.Delete("/cache", h.ClearCache)
				r.Post("/cache/refresh", h.RefreshCache)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/multicall", h.Multicall)
			r.Post("/admin/callers/{caller}", h.AddCaller)
			r.Delete("/admin/callers/{caller}", h.RemoveCaller)
			r.Put("/admin/collaborators", h.SetCollaborators)
			r.Put("/admin/ttl", h.SetTTLConfig)
			r.Post("/admin/pause", h.Pause)
			r.Post("/admin/unpause", h.Unpause)
			r.Delete("/admin/cache", h.ClearAllCache)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON строго декодирует тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %v", err))
		return false
	}
	return true
}

// nodeParam разбирает {node} из URL. При ошибке пишет 400.
// Нулевой node допустим: чтение вернёт значения по умолчанию,
// мутация получит INVALID_NODE от сервиса.
func nodeParam(w http.ResponseWriter, r *http.Request) (model.Node, bool) {
	node, err := model.ParseNode(chi.URLParam(r, "node"))
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный node: %v", err))
		return model.Node{}, false
	}
	return node, true
}

// addressParam разбирает адрес из URL-параметра name.
func addressParam(w http.ResponseWriter, r *http.Request, name string) (model.Address, bool) {
	addr, err := model.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный адрес %s: %v", name, err))
		return model.Address{}, false
	}
	return addr, true
}

// maxTTLSeconds — наибольшее число секунд, представимое в time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// secondsToTTL переводит секунды из тела запроса в time.Duration.
// Отрицательное значение — ErrInvalidTTLConfig, непредставимое — tooLarge.
func secondsToTTL(secs int64, tooLarge error) (time.Duration, error) {
	switch {
	case secs < 0:
		return 0, fmt.Errorf("%w: ttl_seconds=%d", service.ErrInvalidTTLConfig, secs)
	case secs > maxTTLSeconds:
		return 0, fmt.Errorf("%w: ttl_seconds=%d", tooLarge, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

// callerFrom возвращает адрес вызывающего из контекста (JWT middleware).
func callerFrom(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Вызывающий не аутентифицирован")
		return model.Address{}, false
	}
	return caller, true
}

// writeDomainError пишет ответ для ошибки сервиса и логирует неожиданные ошибки.
func (h *APIHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var te *mode.TransitionError
	if service.ErrorCode(err) == service.CodeInternal && !errors.As(err, &te) {
		h.logger.ErrorContext(r.Context(), "Внутренняя ошибка обработки запроса",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierrors.FromDomain(w, err)
}
