// Пакет service — бизнес-логика Slidecast.
// upload.go — сервис загрузки и удаления файлов.
package service

import (
	"errors"
	"io"
	"log/slog"

	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// FeatureUpload — партиция пользовательских загрузок.
const FeatureUpload = "upload"

// UploadService — сервис загрузки и удаления файлов.
type UploadService struct {
	store   *uploadstore.Store
	listing *ListingService
	baseURL string
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
// listing нужен для инвалидации кэша листинга при мутациях.
func NewUploadService(
	store *uploadstore.Store,
	listing *ListingService,
	baseURL string,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		store:   store,
		listing: listing,
		baseURL: baseURL,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет один файл в указанную партицию feature.
// Валидация (белый список, лимит размера) выполняется хранилищем
// до появления файла в финальном пути. Возвращает дескриптор
// с заполненным публичным URL.
func (s *UploadService) Upload(feature string, reader io.Reader, declaredFilename string) (*model.Descriptor, error) {
	desc, err := s.store.Save(feature, reader, declaredFilename)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, uploadstore.ErrUnsupportedType):
			result = "unsupported_type"
		case errors.Is(err, uploadstore.ErrPayloadTooLarge):
			result = "too_large"
		}
		middleware.OperationsTotal.WithLabelValues("upload", result).Inc()

		s.logger.Warn("Загрузка отклонена",
			slog.String("filename", declaredFilename),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	desc.URL = s.FileURL(desc.RelativePath)
	s.listing.Invalidate()

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadBytesTotal.Add(float64(desc.Size))

	s.logger.Info("Файл загружен",
		slog.String("id", desc.ID),
		slog.String("filename", declaredFilename),
		slog.String("path", desc.RelativePath),
		slog.Int64("size", desc.Size),
		slog.String("category", string(desc.Category)),
	)

	return desc, nil
}

// Delete удаляет файл по относительному пути и подчищает опустевшие
// партиции. Путь вне корня хранилища — ErrNotFound.
func (s *UploadService) Delete(relPath string) error {
	if err := s.store.Delete(relPath); err != nil {
		result := "error"
		if errors.Is(err, uploadstore.ErrNotFound) {
			result = "not_found"
		}
		middleware.OperationsTotal.WithLabelValues("delete", result).Inc()
		return err
	}

	s.listing.Invalidate()
	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()

	s.logger.Info("Файл удалён", slog.String("path", relPath))
	return nil
}

// FileURL строит публичный URL файла по относительному пути.
// При пустом baseURL возвращает абсолютный путь API без хоста.
func (s *UploadService) FileURL(relPath string) string {
	return fileURL(s.baseURL, relPath)
}
