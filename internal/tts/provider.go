// Пакет tts — синтез речи через внешних провайдеров.
// Провайдер — узкий интерфейс возможности (текст → аудиопоток),
// реализации выбираются по имени через таблицу фабрик.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// ErrUnknownProvider — запрошенный провайдер отсутствует в таблице фабрик.
var ErrUnknownProvider = errors.New("неизвестный провайдер синтеза")

// Request — параметры одного запроса синтеза.
type Request struct {
	// Text — текст для озвучивания
	Text string
	// Voice — имя голоса провайдера (пусто = голос по умолчанию)
	Voice string
	// Model — модель синтеза (пусто = модель по умолчанию)
	Model string
	// Instructions — стилистические указания (поддерживаются не всеми моделями)
	Instructions string
}

// Provider — возможность синтеза речи.
// Synthesize возвращает поток аудиоданных (mp3); вызывающий код
// обязан закрыть ReadCloser.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (io.ReadCloser, error)
}

// Transcriber — опциональная возможность провайдера: распознавание
// готовой аудиодорожки в субтитры SRT. Проверяется type assertion
// на Provider; провайдер без этой возможности просто не даёт субтитров.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (io.ReadCloser, error)
}

// Config — параметры создания провайдера.
type Config struct {
	// APIKey — ключ API провайдера
	APIKey string
	// BaseURL — базовый URL API (для совместимых прокси)
	BaseURL string
	// Timeout — таймаут одного запроса синтеза
	Timeout time.Duration
}

// factory — конструктор провайдера по конфигурации.
type factory func(cfg Config, logger *slog.Logger) (Provider, error)

// registry — таблица фабрик провайдеров. Новый провайдер добавляется
// одной строкой здесь плюс файлом с реализацией.
var registry = map[string]factory{
	"openai": newOpenAIProvider,
}

// New создаёт провайдера по имени. Неизвестное имя — ошибка
// со списком поддерживаемых провайдеров.
func New(name string, cfg Config, logger *slog.Logger) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q, поддерживаются: %v", ErrUnknownProvider, name, Providers())
	}
	return f(cfg, logger)
}

// IsUnknownProvider сообщает, вызвана ли ошибка запросом
// незарегистрированного провайдера.
func IsUnknownProvider(err error) bool {
	return errors.Is(err, ErrUnknownProvider)
}

// Providers возвращает отсортированный список имён поддерживаемых провайдеров.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
