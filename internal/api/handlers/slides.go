// slides.go — обработчик растеризации презентаций.
package handlers

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slidecast-io/slidecast/internal/api/errors"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/service"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// SlidesHandler — обработчик endpoints растеризации.
type SlidesHandler struct {
	slidesSvc *service.SlidesService
}

// NewSlidesHandler создаёт обработчик растеризации.
func NewSlidesHandler(slidesSvc *service.SlidesService) *SlidesHandler {
	return &SlidesHandler{slidesSvc: slidesSvc}
}

// rasterizeRequest — тело POST /api/v1/slides/rasterize.
type rasterizeRequest struct {
	// Path — относительный путь презентации в хранилище
	Path string `json:"path"`
}

// rasterizeResponse — результат растеризации.
type rasterizeResponse struct {
	Pages []model.Descriptor `json:"pages"`
	Count int                `json:"count"`
}

// Rasterize обрабатывает POST /api/v1/slides/rasterize.
// Источник должен лежать в хранилище (ppt, pptx или pdf); страницы
// сохраняются в партицию slides/ в порядке следования слайдов.
func (h *SlidesHandler) Rasterize(w http.ResponseWriter, r *http.Request) {
	var req rasterizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if strings.TrimSpace(req.Path) == "" {
		errors.ValidationError(w, "Поле 'path' обязательно")
		return
	}
	if !rasterizableExt(req.Path) {
		errors.ValidationError(w, "Растеризация поддерживается для ppt, pptx и pdf")
		return
	}

	pages, err := h.slidesSvc.Rasterize(r.Context(), req.Path)
	if err != nil {
		switch {
		case goerrors.Is(err, uploadstore.ErrNotFound):
			errors.NotFound(w, fmt.Sprintf("Файл %s не найден", req.Path))
		case goerrors.Is(err, service.ErrConversionFailed):
			errors.ConversionFailed(w, "Конвертер презентаций завершился ошибкой")
		default:
			errors.StorageFailure(w, "Ошибка сохранения страниц презентации")
		}
		return
	}

	writeJSON(w, http.StatusCreated, rasterizeResponse{
		Pages: pages,
		Count: len(pages),
	})
}

// rasterizableExt проверяет расширение источника растеризации.
func rasterizableExt(p string) bool {
	switch {
	case strings.HasSuffix(strings.ToLower(p), ".ppt"),
		strings.HasSuffix(strings.ToLower(p), ".pptx"),
		strings.HasSuffix(strings.ToLower(p), ".pdf"):
		return true
	}
	return false
}
