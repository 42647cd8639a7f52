// cache.go — просмотр и администрирование слота кэша узла.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

// cacheInfoResponse — состояние слота кэша узла.
// Поля слота заполняются, только если слот существует.
type cacheInfoResponse struct {
	Node       model.Node  `json:"node"`
	Exists     bool        `json:"exists"`
	IsValid    bool        `json:"is_valid"`
	Field      model.Field `json:"field,omitempty"`
	Data       *model.Word `json:"data,omitempty"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
	TTLSeconds int64       `json:"ttl_seconds,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
}

type refreshCacheRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type refreshCacheResponse struct {
	Refreshed bool `json:"refreshed"`
}

// GetCacheInfo возвращает слот кэша узла и флаг валидности.
func (h *APIHandler) GetCacheInfo(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	info := h.resolver.CacheInfo(node)
	resp := cacheInfoResponse{Node: node, Exists: info.Exists, IsValid: info.IsValid}
	if info.Exists {
		entry := info.Entry
		ts := entry.Timestamp.UTC()
		exp := entry.ExpiresAt().UTC()
		resp.Field = entry.Field
		resp.Data = &entry.Data
		resp.Timestamp = &ts
		resp.TTLSeconds = int64(entry.TTL / time.Second)
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearCache удаляет слот кэша узла.
func (h *APIHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	h.finishWrite(w, r, h.resolver.ClearCache(r.Context(), caller, node))
}

// RefreshCache продлевает существующий слот узла с указанным TTL.
func (h *APIHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body refreshCacheRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	ttl, err := secondsToTTL(body.TTLSeconds, service.ErrTTLExceedsMaximum)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	refreshed, err := h.resolver.RefreshCache(r.Context(), caller, node, ttl)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshCacheResponse{Refreshed: refreshed})
}

// ClearAllCache очищает весь кэш и счётчики попаданий. Только владелец.
func (h *APIHandler) ClearAllCache(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	h.finishWrite(w, r, h.resolver.ClearAllCache(r.Context(), caller))
}
