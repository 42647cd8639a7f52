// multicall.go — атомарный пакет операций.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/goartstore/resolver-module/internal/api/errors"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

type multicallRequest struct {
	Operations []service.Operation `json:"operations"`
}

type multicallResponse struct {
	Results []any `json:"results"`
}

// Multicall выполняет пакет операций как единое целое.
// Ошибка любой операции откатывает весь пакет: 422 с индексом и причиной.
func (h *APIHandler) Multicall(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var body multicallRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Operations == nil {
		apierrors.ValidationError(w, "Поле operations обязательно")
		return
	}

	results, err := h.resolver.Multicall(r.Context(), caller, body.Operations)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, multicallResponse{Results: results})
}
