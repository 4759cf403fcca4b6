// tts.go — обработчики синтеза речи.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/slidecast-io/slidecast/internal/api/errors"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/service"
	"github.com/slidecast-io/slidecast/internal/tts"
)

// TTSHandler — обработчик endpoints синтеза речи.
type TTSHandler struct {
	synthesisSvc *service.SynthesisService
}

// NewTTSHandler создаёт обработчик синтеза речи.
func NewTTSHandler(synthesisSvc *service.SynthesisService) *TTSHandler {
	return &TTSHandler{synthesisSvc: synthesisSvc}
}

// synthesizeRequest — тело POST /api/v1/tts.
type synthesizeRequest struct {
	Text         string `json:"text"`
	Provider     string `json:"provider,omitempty"`
	Voice        string `json:"voice,omitempty"`
	Model        string `json:"model,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Synthesize обрабатывает POST /api/v1/tts.
// Синтезирует речь и сохраняет mp3 в партицию tts/; если провайдер
// умеет распознавание, рядом кладутся субтитры SRT. Ошибка провайдера
// (сеть, статус API) — 502, неизвестный провайдер — 400.
func (h *TTSHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		errors.ValidationError(w, "Поле 'text' обязательно")
		return
	}

	result, err := h.synthesisSvc.Synthesize(r.Context(), req.Provider, tts.Request{
		Text:         req.Text,
		Voice:        req.Voice,
		Model:        req.Model,
		Instructions: req.Instructions,
	})
	if err != nil {
		if tts.IsUnknownProvider(err) {
			errors.ValidationError(w, err.Error())
			return
		}
		errors.SynthesisFailed(w, "Провайдер синтеза речи завершился ошибкой")
		return
	}

	resp := synthesizeResponse{Descriptor: result.Audio}
	if result.Subtitle != nil {
		resp.SubtitlePath = result.Subtitle.RelativePath
		resp.SubtitleURL = result.Subtitle.URL
	}
	writeJSON(w, http.StatusCreated, resp)
}

// synthesizeResponse — ответ POST /api/v1/tts: дескриптор аудио
// плюс пути субтитров, когда они сгенерированы.
type synthesizeResponse struct {
	*model.Descriptor
	SubtitlePath string `json:"subtitle_path,omitempty"`
	SubtitleURL  string `json:"subtitle_url,omitempty"`
}

// providersResponse — ответ GET /api/v1/tts/providers.
type providersResponse struct {
	Providers []string `json:"providers"`
	Default   string   `json:"default"`
}

// ListProviders обрабатывает GET /api/v1/tts/providers.
func (h *TTSHandler) ListProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, providersResponse{
		Providers: h.synthesisSvc.Providers(),
		Default:   h.synthesisSvc.DefaultProvider(),
	})
}
