// Пакет errors — конструкторы стандартных ошибок API Slidecast.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib осознанный, пакет используется с алиасом

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeUnsupportedType  = "UNSUPPORTED_TYPE"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeStorageFailure   = "STORAGE_FAILURE"
	CodeConversionFailed = "CONVERSION_FAILED"
	CodeSynthesisFailed  = "SYNTHESIS_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден (или путь вне корня хранилища).
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// UnsupportedType — 415 расширение вне белого списка.
func UnsupportedType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedType, message)
}

// PayloadTooLarge — 413 файл превышает лимит размера.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// StorageFailure — 500 ошибка ввода-вывода хранилища.
func StorageFailure(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageFailure, message)
}

// ConversionFailed — 502 внешний конвертер завершился ошибкой.
func ConversionFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeConversionFailed, message)
}

// SynthesisFailed — 502 провайдер синтеза речи завершился ошибкой.
func SynthesisFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeSynthesisFailed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
