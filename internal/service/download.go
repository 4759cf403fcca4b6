// download.go — сервис отдачи файлов клиенту.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// DownloadService — сервис отдачи файлов.
type DownloadService struct {
	store  *uploadstore.Store
	logger *slog.Logger
}

// NewDownloadService создаёт сервис отдачи файлов.
func NewDownloadService(store *uploadstore.Store, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:  store,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Range requests (206) и If-Modified-Since обрабатываются стандартной
// библиотекой. Путь вне корня хранилища или отсутствующий файл — 404.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, relPath string) error {
	file, info, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, uploadstore.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("fetch", "not_found").Inc()
			return err
		}
		middleware.OperationsTotal.WithLabelValues("fetch", "error").Inc()
		s.logger.Error("Ошибка открытия файла",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ошибка чтения файла: %w", err)
	}
	defer file.Close()

	name := path.Base(relPath)
	w.Header().Set("Content-Type", model.ContentTypeForFilename(name))
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, name, info.ModTime(), file)

	middleware.OperationsTotal.WithLabelValues("fetch", "success").Inc()

	s.logger.Debug("Файл отдан",
		slog.String("path", relPath),
		slog.Int64("size", info.Size()),
	)

	return nil
}
