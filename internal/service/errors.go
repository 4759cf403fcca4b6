// errors.go — общие ошибки и хелперы сервисного слоя.
package service

import "errors"

// ErrConversionFailed — внешний конвертер завершился неудачей.
var ErrConversionFailed = errors.New("ошибка конвертации")

// fileURL строит публичный URL файла по относительному пути.
func fileURL(baseURL, relPath string) string {
	return baseURL + "/api/v1/files/" + relPath
}
