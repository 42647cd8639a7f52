// admin.go — административные операции: авторизация вызывающих,
// коллабораторы, TTL кэша и режим резолвера.
// Изменения доступны только владельцу, проверка выполняется в сервисе.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/mode"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

type callersResponse struct {
	Owner   model.Address   `json:"owner"`
	Callers []model.Address `json:"callers"`
}

type ttlConfigBody struct {
	DefaultTTLSeconds int64 `json:"default_ttl_seconds"`
	MaxTTLSeconds     int64 `json:"max_ttl_seconds"`
}

type modeResponse struct {
	Mode    mode.Mode               `json:"mode"`
	History []mode.TransitionRecord `json:"history,omitempty"`
}

// ListCallers возвращает владельца и список авторизованных вызывающих.
func (h *APIHandler) ListCallers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, callersResponse{
		Owner:   h.resolver.Owner(),
		Callers: h.resolver.AuthorizedCallers(),
	})
}

// AddCaller авторизует адрес из URL. Повторное добавление не ошибка.
func (h *APIHandler) AddCaller(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	target, ok := addressParam(w, r, "caller")
	if !ok {
		return
	}
	h.finishWrite(w, r, h.resolver.AddAuthorizedCaller(r.Context(), caller, target))
}

// RemoveCaller отзывает авторизацию адреса из URL.
func (h *APIHandler) RemoveCaller(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	target, ok := addressParam(w, r, "caller")
	if !ok {
		return
	}
	h.finishWrite(w, r, h.resolver.RemoveAuthorizedCaller(r.Context(), caller, target))
}

// GetCollaborators возвращает адреса реестра DAO и сервиса метаданных.
func (h *APIHandler) GetCollaborators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.resolver.Collaborators())
}

// SetCollaborators заменяет адреса коллабораторов.
func (h *APIHandler) SetCollaborators(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var body service.Collaborators
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetCollaborators(r.Context(), caller, body))
}

// GetTTLConfig возвращает TTL кэша по умолчанию и потолок.
func (h *APIHandler) GetTTLConfig(w http.ResponseWriter, _ *http.Request) {
	def, ceiling := h.resolver.TTLConfig()
	writeJSON(w, http.StatusOK, ttlConfigBody{
		DefaultTTLSeconds: int64(def / time.Second),
		MaxTTLSeconds:     int64(ceiling / time.Second),
	})
}

// SetTTLConfig меняет TTL кэша по умолчанию и потолок.
func (h *APIHandler) SetTTLConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var body ttlConfigBody
	if !decodeJSON(w, r, &body) {
		return
	}
	defaultTTL, err := secondsToTTL(body.DefaultTTLSeconds, service.ErrInvalidTTLConfig)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	maxTTL, err := secondsToTTL(body.MaxTTLSeconds, service.ErrInvalidTTLConfig)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.finishWrite(w, r, h.resolver.SetTTLConfig(r.Context(), caller, defaultTTL, maxTTL))
}

// GetMode возвращает текущий режим и историю переходов.
func (h *APIHandler) GetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modeResponse{
		Mode:    h.resolver.Mode(),
		History: h.resolver.ModeHistory(),
	})
}

// Pause приостанавливает мутации. Чтение остаётся доступным.
func (h *APIHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.switchMode(w, r, h.resolver.Pause)
}

// Unpause возобновляет мутации.
func (h *APIHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.switchMode(w, r, h.resolver.Unpause)
}

func (h *APIHandler) switchMode(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, caller model.Address) error,
) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), caller); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: h.resolver.Mode()})
}
