package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/convert"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// FeatureSlides — раздел хранилища для постраничных изображений слайдов.
const FeatureSlides = "slides"

// SlidesService — растеризация презентаций в постраничные PNG.
type SlidesService struct {
	store      *uploadstore.Store
	listing    *ListingService
	rasterizer *convert.Rasterizer
	baseURL    string
	logger     *slog.Logger
}

// NewSlidesService создаёт сервис растеризации.
func NewSlidesService(store *uploadstore.Store, listing *ListingService, rasterizer *convert.Rasterizer, baseURL string, logger *slog.Logger) *SlidesService {
	return &SlidesService{
		store:      store,
		listing:    listing,
		rasterizer: rasterizer,
		baseURL:    baseURL,
		logger:     logger.With(slog.String("component", "slides-service")),
	}
}

// Rasterize растеризует презентацию, лежащую в хранилище по пути relPath,
// и сохраняет каждую страницу отдельным PNG в разделе slides.
// Возвращает дескрипторы страниц в порядке следования слайдов.
func (s *SlidesService) Rasterize(ctx context.Context, relPath string) ([]model.Descriptor, error) {
	src, _, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, uploadstore.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("rasterize", "not_found").Inc()
		} else {
			middleware.OperationsTotal.WithLabelValues("rasterize", "error").Inc()
		}
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "slidecast-slides-*")
	if err != nil {
		src.Close()
		middleware.OperationsTotal.WithLabelValues("rasterize", "error").Inc()
		return nil, fmt.Errorf("ошибка создания рабочей директории: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Конвертеры работают с путями, поэтому копируем источник в workDir.
	inputPath := filepath.Join(workDir, "input"+filepath.Ext(relPath))
	if err := copyToFile(src, inputPath); err != nil {
		src.Close()
		middleware.OperationsTotal.WithLabelValues("rasterize", "error").Inc()
		return nil, err
	}
	src.Close()

	pages, err := s.rasterizer.Rasterize(ctx, inputPath, workDir)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("rasterize", "conversion_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	descriptors := make([]model.Descriptor, 0, len(pages))
	for _, page := range pages {
		desc, err := s.storePage(page)
		if err != nil {
			middleware.OperationsTotal.WithLabelValues("rasterize", "error").Inc()
			return nil, err
		}
		descriptors = append(descriptors, desc)
	}

	s.listing.Invalidate()
	middleware.OperationsTotal.WithLabelValues("rasterize", "success").Inc()
	s.logger.Info("презентация растеризована",
		slog.String("source", relPath),
		slog.Int("pages", len(descriptors)),
	)

	return descriptors, nil
}

// storePage кладёт один постраничный PNG в хранилище.
func (s *SlidesService) storePage(pagePath string) (model.Descriptor, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("ошибка открытия страницы %s: %w", pagePath, err)
	}
	defer f.Close()

	desc, err := s.store.Save(FeatureSlides, f, filepath.Base(pagePath))
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("ошибка сохранения страницы: %w", err)
	}
	desc.URL = fileURL(s.baseURL, desc.RelativePath)
	return *desc, nil
}

// copyToFile записывает содержимое reader в файл dst.
func copyToFile(src io.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания файла %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", dst, err)
	}
	return nil
}
