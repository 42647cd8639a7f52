// errors.go — таксономия ошибок резолвера.
// Все ошибки валидации синхронные и локальные, повторы не выполняются.
package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисного слоя.
var (
	// ErrInvalidNode — нулевой идентификатор узла.
	ErrInvalidNode = errors.New("недопустимый node")
	// ErrInvalidTextRecord — пустой ключ, пустое значение или значение длиннее 1000 байт.
	ErrInvalidTextRecord = errors.New("недопустимая текстовая запись")
	// ErrInvalidName — отображаемое имя длиннее 255 байт.
	ErrInvalidName = errors.New("недопустимое имя")
	// ErrArityMismatch — длины массивов ключей и значений не совпадают.
	ErrArityMismatch = errors.New("длины массивов ключей и значений не совпадают")
	// ErrEmptyBatch — пустой пакет текстовых записей.
	ErrEmptyBatch = errors.New("пустой пакет текстовых записей")
	// ErrUnauthorized — вызывающий не владелец и не в списке авторизованных.
	ErrUnauthorized = errors.New("вызывающий не авторизован")
	// ErrInvalidCaller — нулевой идентификатор в операциях списка авторизации.
	ErrInvalidCaller = errors.New("недопустимый идентификатор вызывающего")
	// ErrTTLExceedsMaximum — TTL превышает настроенный потолок.
	ErrTTLExceedsMaximum = errors.New("TTL превышает максимум")
	// ErrInvalidTTLConfig — отрицательный TTL, нулевой TTL в конфигурации
	// или TTL по умолчанию выше потолка.
	ErrInvalidTTLConfig = errors.New("недопустимая конфигурация TTL")
	// ErrInvalidSyncSource — пустой DAO id или нулевой адрес контракта при синхронизации.
	ErrInvalidSyncSource = errors.New("недопустимый источник синхронизации")
	// ErrPaused — резолвер на паузе, мутации отклоняются.
	ErrPaused = errors.New("резолвер на паузе")
	// ErrInvalidOperation — операция пакета не декодируется или неизвестна.
	ErrInvalidOperation = errors.New("недопустимая операция")
	// ErrMulticallFailed — пакетное выполнение отменено, эффекты откатены.
	ErrMulticallFailed = errors.New("пакетное выполнение не удалось")
)

// Машиночитаемые коды ошибок (используются в метриках и HTTP-ответах).
const (
	CodeInvalidNode       = "INVALID_NODE"
	CodeInvalidTextRecord = "INVALID_TEXT_RECORD"
	CodeInvalidName       = "INVALID_NAME"
	CodeArityMismatch     = "ARITY_MISMATCH"
	CodeEmptyBatch        = "EMPTY_BATCH"
	CodeUnauthorized      = "UNAUTHORIZED_CALLER"
	CodeInvalidCaller     = "INVALID_CALLER"
	CodeTTLExceedsMaximum = "TTL_EXCEEDS_MAXIMUM"
	CodeInvalidTTLConfig  = "INVALID_TTL_CONFIG"
	CodeInvalidSyncSource = "INVALID_SYNC_SOURCE"
	CodePaused            = "PAUSED"
	CodeInvalidOperation  = "INVALID_OPERATION"
	CodeMulticallFailed   = "MULTICALL_FAILED"
	CodeCancelled         = "CANCELLED"
	CodeInternal          = "INTERNAL_ERROR"
)

// errorCodes — соответствие sentinel-ошибок кодам. Порядок важен:
// MulticallError раскрывается в обе ошибки, первой проверяется ErrMulticallFailed.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMulticallFailed, CodeMulticallFailed},
	{ErrInvalidNode, CodeInvalidNode},
	{ErrInvalidTextRecord, CodeInvalidTextRecord},
	{ErrInvalidName, CodeInvalidName},
	{ErrArityMismatch, CodeArityMismatch},
	{ErrEmptyBatch, CodeEmptyBatch},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidCaller, CodeInvalidCaller},
	{ErrTTLExceedsMaximum, CodeTTLExceedsMaximum},
	{ErrInvalidTTLConfig, CodeInvalidTTLConfig},
	{ErrInvalidSyncSource, CodeInvalidSyncSource},
	{ErrPaused, CodePaused},
	{ErrInvalidOperation, CodeInvalidOperation},
}

// ErrorCode возвращает машиночитаемый код ошибки.
// Для неизвестных ошибок — INTERNAL_ERROR.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	if isContextError(err) {
		return CodeCancelled
	}
	return CodeInternal
}

// MulticallError — ошибка пакетного выполнения.
// Оборачивает первую неудачную операцию; errors.Is находит
// как ErrMulticallFailed, так и исходную причину.
type MulticallError struct {
	// TransactionID — идентификатор пакета в журнале
	TransactionID string
	// Index — порядковый номер неудачной операции (с нуля)
	Index int
	// Method — имя неудачной операции
	Method string
	// Err — исходная причина
	Err error
}

func (e *MulticallError) Error() string {
	return fmt.Sprintf("%s: операция #%d (%s): %v", ErrMulticallFailed.Error(), e.Index, e.Method, e.Err)
}

// Unwrap раскрывает ErrMulticallFailed и исходную причину.
func (e *MulticallError) Unwrap() []error {
	return []error{ErrMulticallFailed, e.Err}
}

// Cause возвращает исходную причину без обёртки.
func (e *MulticallError) Cause() error {
	return e.Err
}
