// openai.go — провайдер синтеза речи через OpenAI Audio API.
// Работает и с OpenAI-совместимыми прокси через Config.BaseURL.
// Модель и кодеки — чёрный ящик за HTTP-интерфейсом.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Значения по умолчанию для OpenAI Audio API.
const (
	openAIDefaultModel    = "gpt-4o-mini-tts"
	openAIDefaultVoice    = "alloy"
	openAIFormat          = "mp3"
	openAITranscribeModel = "whisper-1"
	openAISubtitleFormat  = "srt"
)

// openAIProvider — реализация Provider поверх OpenAI Audio API.
type openAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// speechRequest — тело запроса POST /v1/audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format"`
}

// newOpenAIProvider создаёт провайдера OpenAI.
func newOpenAIProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("не задан API-ключ провайдера openai (SC_TTS_API_KEY или OPENAI_API_KEY)")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &openAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "tts_openai")),
	}, nil
}

// Name возвращает имя провайдера.
func (p *openAIProvider) Name() string {
	return "openai"
}

// Synthesize выполняет запрос синтеза и возвращает поток mp3-данных.
// Ответ стримится без буферизации в памяти: тело HTTP-ответа отдаётся
// вызывающему коду как есть.
func (p *openAIProvider) Synthesize(ctx context.Context, req Request) (io.ReadCloser, error) {
	body := speechRequest{
		Model:          req.Model,
		Voice:          req.Voice,
		Input:          req.Text,
		Instructions:   req.Instructions,
		ResponseFormat: openAIFormat,
	}
	if body.Model == "" {
		body.Model = openAIDefaultModel
	}
	if body.Voice == "" {
		body.Voice = openAIDefaultVoice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к OpenAI: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Тело ошибки читаем с лимитом: нам нужен только фрагмент для лога
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		p.logger.Error("OpenAI вернул ошибку",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)),
		)
		return nil, fmt.Errorf("OpenAI вернул статус %d: %s", resp.StatusCode, string(msg))
	}

	return resp.Body, nil
}

// Transcribe распознаёт аудиодорожку в субтитры SRT через
// POST /v1/audio/transcriptions. Аудио уходит multipart-формой,
// ответ — текст SRT потоком.
func (p *openAIProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (io.ReadCloser, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if err := mw.WriteField("model", openAITranscribeModel); err != nil {
		return nil, fmt.Errorf("ошибка формирования multipart: %w", err)
	}
	if err := mw.WriteField("response_format", openAISubtitleFormat); err != nil {
		return nil, fmt.Errorf("ошибка формирования multipart: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования multipart: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("ошибка чтения аудио для распознавания: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("ошибка формирования multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к OpenAI: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		p.logger.Error("OpenAI вернул ошибку распознавания",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)),
		)
		return nil, fmt.Errorf("OpenAI вернул статус %d: %s", resp.StatusCode, string(msg))
	}

	return resp.Body, nil
}
