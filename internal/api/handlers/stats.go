// stats.go — статистика резолвера и вычисление namehash.
package handlers

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/resolver-module/internal/api/errors"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/namehash"
)

type namehashResponse struct {
	Name string     `json:"name"`
	Node model.Node `json:"node"`
}

// GetStatistics возвращает счётчики записей и кэша.
func (h *APIHandler) GetStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.resolver.Statistics())
}

// GetNamehash вычисляет node для ?name=. Пустое имя даёт корневой (нулевой) node.
func (h *APIHandler) GetNamehash(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	node, err := namehash.Of(name)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное имя: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, namehashResponse{Name: name, Node: node})
}
