// video.go — обработчик сборки видеороликов.
package handlers

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slidecast-io/slidecast/internal/api/errors"
	"github.com/slidecast-io/slidecast/internal/service"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// maxComposeSlides — предел количества слайдов в одном ролике.
const maxComposeSlides = 500

// VideoHandler — обработчик endpoints сборки видео.
type VideoHandler struct {
	composeSvc *service.ComposeService
}

// NewVideoHandler создаёт обработчик сборки видео.
func NewVideoHandler(composeSvc *service.ComposeService) *VideoHandler {
	return &VideoHandler{composeSvc: composeSvc}
}

// composeSlide — слайд в запросе сборки.
type composeSlide struct {
	// Path — относительный путь изображения в хранилище
	Path string `json:"path"`
	// DurationSeconds — показ слайда в секундах (0 = по умолчанию)
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// composeRequest — тело POST /api/v1/video/compose.
type composeRequest struct {
	Slides []composeSlide `json:"slides"`
	// AudioPath — относительный путь аудиодорожки (пусто = без звука)
	AudioPath string `json:"audio_path,omitempty"`
	// SubtitlePath — относительный путь SRT-файла, вжигаемого в кадры
	// (пусто = без субтитров)
	SubtitlePath string `json:"subtitle_path,omitempty"`
}

// Compose обрабатывает POST /api/v1/video/compose.
// Все входы должны лежать в хранилище; результат — mp4 в партиции video/.
func (h *VideoHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if len(req.Slides) == 0 {
		errors.ValidationError(w, "Список 'slides' не может быть пустым")
		return
	}
	if len(req.Slides) > maxComposeSlides {
		errors.ValidationError(w, fmt.Sprintf("Слишком много слайдов, максимум %d", maxComposeSlides))
		return
	}

	slides := make([]service.ComposeSlide, 0, len(req.Slides))
	for i, s := range req.Slides {
		if s.Path == "" {
			errors.ValidationError(w, fmt.Sprintf("Слайд %d: поле 'path' обязательно", i))
			return
		}
		if s.DurationSeconds < 0 {
			errors.ValidationError(w, fmt.Sprintf("Слайд %d: длительность не может быть отрицательной", i))
			return
		}
		slides = append(slides, service.ComposeSlide{
			Path:     s.Path,
			Duration: time.Duration(s.DurationSeconds * float64(time.Second)),
		})
	}

	desc, err := h.composeSvc.Compose(r.Context(), slides, req.AudioPath, req.SubtitlePath)
	if err != nil {
		switch {
		case goerrors.Is(err, uploadstore.ErrNotFound):
			errors.NotFound(w, "Один из входных файлов не найден в хранилище")
		case goerrors.Is(err, service.ErrConversionFailed):
			errors.ConversionFailed(w, "Сборщик видео завершился ошибкой")
		default:
			errors.StorageFailure(w, "Ошибка сохранения собранного ролика")
		}
		return
	}

	writeJSON(w, http.StatusCreated, desc)
}
