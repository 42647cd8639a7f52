// records.go — чтение и запись полей записей узлов.
// Чтение публичное и никогда не возвращает 404: неизвестный узел
// отдаёт значения по умолчанию, наличие записи видно по has_record.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/resolver-module/internal/api/errors"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// recordResponse — снимок записи с признаком активности.
type recordResponse struct {
	model.RecordInfo
	HasRecord bool `json:"has_record"`
}

type addrBody struct {
	Node model.Node    `json:"node"`
	Addr model.Address `json:"addr"`
}

type nameBody struct {
	Node model.Node `json:"node"`
	Name string     `json:"name"`
}

type contenthashBody struct {
	Node        model.Node     `json:"node"`
	Contenthash model.HexBytes `json:"contenthash"`
}

type pubkeyBody struct {
	Node model.Node `json:"node"`
	X    model.Word `json:"x"`
	Y    model.Word `json:"y"`
}

type textBody struct {
	Node  model.Node `json:"node"`
	Key   string     `json:"key,omitempty"`
	Value string     `json:"value"`
}

type textsBody struct {
	Node   model.Node `json:"node"`
	Keys   []string   `json:"keys"`
	Values []string   `json:"values"`
}

// Тела мутирующих запросов: узел берётся только из URL.

type setAddrRequest struct {
	Addr model.Address `json:"addr"`
}

type setNameRequest struct {
	Name string `json:"name"`
}

type setContenthashRequest struct {
	Contenthash model.HexBytes `json:"contenthash"`
}

type setPubkeyRequest struct {
	X model.Word `json:"x"`
	Y model.Word `json:"y"`
}

type setTextRequest struct {
	Value string `json:"value"`
}

type setTextsRequest struct {
	Keys   []string `json:"keys"`
	Values []string `json:"values"`
}

type syncDAOBody struct {
	DAOID string `json:"dao_id"`
}

type syncContractBody struct {
	Contract model.Address `json:"contract"`
}

// --- Чтение ---

// GetRecord возвращает снимок записи (без текстовых полей).
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	info := h.resolver.RecordInfo(node)
	writeJSON(w, http.StatusOK, recordResponse{RecordInfo: info, HasRecord: info.IsActive})
}

// GetAddr возвращает адрес узла (через кэш).
func (h *APIHandler) GetAddr(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, addrBody{Node: node, Addr: h.resolver.Address(node)})
}

// GetName возвращает отображаемое имя узла.
func (h *APIHandler) GetName(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nameBody{Node: node, Name: h.resolver.Name(node)})
}

// GetContenthash возвращает content hash узла.
func (h *APIHandler) GetContenthash(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, contenthashBody{Node: node, Contenthash: h.resolver.ContentHash(node)})
}

// GetPubkey возвращает публичный ключ узла.
func (h *APIHandler) GetPubkey(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	pk := h.resolver.PublicKey(node)
	writeJSON(w, http.StatusOK, pubkeyBody{Node: node, X: pk.X, Y: pk.Y})
}

// GetTexts возвращает значения нескольких ключей: ?key=a&key=b.
func (h *APIHandler) GetTexts(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		apierrors.ValidationError(w, "Не указан ни один параметр key")
		return
	}
	writeJSON(w, http.StatusOK, textsBody{Node: node, Keys: keys, Values: h.resolver.TextBatch(node, keys)})
}

// GetText возвращает значение одного текстового ключа.
func (h *APIHandler) GetText(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	writeJSON(w, http.StatusOK, textBody{Node: node, Key: key, Value: h.resolver.Text(node, key)})
}

// --- Запись ---

// SetAddr устанавливает адрес узла.
func (h *APIHandler) SetAddr(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setAddrRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetAddress(r.Context(), caller, node, body.Addr))
}

// SetName устанавливает отображаемое имя узла.
func (h *APIHandler) SetName(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setNameRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetName(r.Context(), caller, node, body.Name))
}

// SetContenthash устанавливает content hash узла.
func (h *APIHandler) SetContenthash(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setContenthashRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetContentHash(r.Context(), caller, node, body.Contenthash))
}

// SetPubkey устанавливает публичный ключ узла.
func (h *APIHandler) SetPubkey(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setPubkeyRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetPublicKey(r.Context(), caller, node, body.X, body.Y))
}

// SetText устанавливает значение текстового ключа из URL.
func (h *APIHandler) SetText(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setTextRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	key := chi.URLParam(r, "key")
	h.finishWrite(w, r, h.resolver.SetText(r.Context(), caller, node, key, body.Value))
}

// SetTexts устанавливает пакет текстовых ключей атомарно.
func (h *APIHandler) SetTexts(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body setTextsRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SetTextBatch(r.Context(), caller, node, body.Keys, body.Values))
}

// SyncDAO — хук синхронизации записи от реестра DAO.
func (h *APIHandler) SyncDAO(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body syncDAOBody
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SyncDAORecord(r.Context(), caller, node, body.DAOID))
}

// SyncContract — хук синхронизации метаданных контракта.
func (h *APIHandler) SyncContract(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.writeTarget(w, r)
	if !ok {
		return
	}
	var body syncContractBody
	if !decodeJSON(w, r, &body) {
		return
	}
	h.finishWrite(w, r, h.resolver.SyncContractMetadata(r.Context(), caller, node, body.Contract))
}

// writeTarget извлекает вызывающего и узел для мутирующего запроса.
func (h *APIHandler) writeTarget(w http.ResponseWriter, r *http.Request) (model.Address, model.Node, bool) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return model.Address{}, model.Node{}, false
	}
	node, ok := nodeParam(w, r)
	if !ok {
		return model.Address{}, model.Node{}, false
	}
	return caller, node, true
}

// finishWrite завершает мутацию: 204 или ответ ошибки.
func (h *APIHandler) finishWrite(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
