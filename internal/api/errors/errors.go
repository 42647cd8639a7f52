// Пакет errors — конструкторы стандартных ошибок в формате Artstore.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError или FromDomain.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/mode"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

// Коды ошибок транспортного уровня.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки. Поля cause/index/method заполняются
// только для неудачного пакета multicall.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Method  string `json:"method,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате Artstore.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, errorDetail{Code: code, Message: message})
}

func writeBody(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// domainStatus — HTTP-статус для кода доменной ошибки.
var domainStatus = map[string]int{
	service.CodeInvalidNode:       http.StatusBadRequest,
	service.CodeInvalidTextRecord: http.StatusBadRequest,
	service.CodeInvalidName:       http.StatusBadRequest,
	service.CodeArityMismatch:     http.StatusBadRequest,
	service.CodeEmptyBatch:        http.StatusBadRequest,
	service.CodeInvalidCaller:     http.StatusBadRequest,
	service.CodeTTLExceedsMaximum: http.StatusBadRequest,
	service.CodeInvalidTTLConfig:  http.StatusBadRequest,
	service.CodeInvalidSyncSource: http.StatusBadRequest,
	service.CodeInvalidOperation:  http.StatusBadRequest,
	service.CodeUnauthorized:      http.StatusForbidden,
	service.CodePaused:            http.StatusServiceUnavailable,
	service.CodeMulticallFailed:   http.StatusUnprocessableEntity,
	service.CodeCancelled:         http.StatusRequestTimeout,
}

// FromDomain записывает ответ для ошибки сервисного слоя.
// Для неудачного multicall добавляет код причины, индекс и метод операции.
func FromDomain(w http.ResponseWriter, err error) {
	var te *mode.TransitionError
	if stderrors.As(err, &te) {
		writeBody(w, http.StatusConflict, errorDetail{Code: te.Code, Message: te.Message})
		return
	}

	code := service.ErrorCode(err)
	status, ok := domainStatus[code]
	if !ok {
		InternalError(w, "внутренняя ошибка сервера")
		return
	}

	detail := errorDetail{Code: code, Message: err.Error()}
	if code == service.CodeMulticallFailed {
		var mErr *service.MulticallError
		if stderrors.As(err, &mErr) {
			index := mErr.Index
			detail.Index = &index
			detail.Method = mErr.Method
			detail.Cause = service.ErrorCode(mErr.Cause())
		} else {
			detail.Cause = service.CodeInvalidOperation
		}
	}
	writeBody(w, status, detail)
}
