package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
	"github.com/slidecast-io/slidecast/internal/video"
)

// FeatureVideo — партиция собранных видеороликов.
const FeatureVideo = "video"

// defaultSlideDuration — показ слайда, если длительность не задана.
const defaultSlideDuration = 5 * time.Second

// ComposeSlide — слайд будущего ролика: путь изображения в хранилище
// и длительность показа.
type ComposeSlide struct {
	Path     string
	Duration time.Duration
}

// ComposeService — сборка видеороликов из файлов хранилища.
type ComposeService struct {
	store      *uploadstore.Store
	listing    *ListingService
	compositor *video.Compositor
	baseURL    string
	logger     *slog.Logger
}

// NewComposeService создаёт сервис сборки видео.
func NewComposeService(store *uploadstore.Store, listing *ListingService, compositor *video.Compositor, baseURL string, logger *slog.Logger) *ComposeService {
	return &ComposeService{
		store:      store,
		listing:    listing,
		compositor: compositor,
		baseURL:    baseURL,
		logger:     logger.With(slog.String("component", "compose_service")),
	}
}

// Compose собирает mp4 из слайдов хранилища и (опционально) аудиодорожки
// audioPath и субтитров subtitlePath, тоже лежащих в хранилище.
// Субтитры вжигаются в кадры. Результат сохраняется в партиции video/.
// Отсутствие любого из входов — ErrNotFound.
func (s *ComposeService) Compose(ctx context.Context, slides []ComposeSlide, audioPath, subtitlePath string) (*model.Descriptor, error) {
	if len(slides) == 0 {
		return nil, fmt.Errorf("список слайдов пуст")
	}

	workDir, err := os.MkdirTemp("", "slidecast-video-*")
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("compose", "error").Inc()
		return nil, fmt.Errorf("ошибка создания рабочей директории: %w", err)
	}
	defer os.RemoveAll(workDir)

	segments := make([]video.Segment, 0, len(slides))
	for i, slide := range slides {
		local, err := s.materialize(slide.Path, workDir, fmt.Sprintf("slide-%03d", i))
		if err != nil {
			middleware.OperationsTotal.WithLabelValues("compose", "not_found").Inc()
			return nil, err
		}
		dur := slide.Duration
		if dur <= 0 {
			dur = defaultSlideDuration
		}
		segments = append(segments, video.Segment{ImagePath: local, Duration: dur})
	}

	localAudio := ""
	if audioPath != "" {
		localAudio, err = s.materialize(audioPath, workDir, "audio")
		if err != nil {
			middleware.OperationsTotal.WithLabelValues("compose", "not_found").Inc()
			return nil, err
		}
	}

	localSubtitle := ""
	if subtitlePath != "" {
		localSubtitle, err = s.materialize(subtitlePath, workDir, "subs")
		if err != nil {
			middleware.OperationsTotal.WithLabelValues("compose", "not_found").Inc()
			return nil, err
		}
	}

	outPath := filepath.Join(workDir, "out.mp4")
	if err := s.compositor.Compose(ctx, segments, localAudio, localSubtitle, outPath); err != nil {
		middleware.OperationsTotal.WithLabelValues("compose", "conversion_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	out, err := os.Open(outPath)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("compose", "error").Inc()
		return nil, fmt.Errorf("ошибка открытия собранного ролика: %w", err)
	}
	defer out.Close()

	desc, err := s.store.Save(FeatureVideo, out, "composed.mp4")
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("compose", "error").Inc()
		return nil, fmt.Errorf("ошибка сохранения ролика: %w", err)
	}
	desc.URL = fileURL(s.baseURL, desc.RelativePath)

	s.listing.Invalidate()
	middleware.OperationsTotal.WithLabelValues("compose", "success").Inc()

	s.logger.Info("Видеоролик собран",
		slog.Int("slides", len(slides)),
		slog.Bool("with_audio", audioPath != ""),
		slog.Bool("with_subtitles", subtitlePath != ""),
		slog.String("path", desc.RelativePath),
		slog.Int64("size", desc.Size),
	)

	return desc, nil
}

// materialize копирует файл хранилища во временный файл workDir,
// сохраняя расширение: ffmpeg определяет формат входа по нему.
func (s *ComposeService) materialize(relPath, workDir, name string) (string, error) {
	src, _, err := s.store.Open(relPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	local := filepath.Join(workDir, name+filepath.Ext(relPath))
	if err := copyToFile(src, local); err != nil {
		return "", err
	}
	return local, nil
}
