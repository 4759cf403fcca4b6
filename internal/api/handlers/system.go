// system.go — обработчик GET /api/v1/info.
// Публичный endpoint для service discovery и мониторинга.
package handlers

import (
	"net/http"

	"github.com/slidecast-io/slidecast/internal/api/errors"
	"github.com/slidecast-io/slidecast/internal/config"
)

// DiskUsageFunc возвращает общий и свободный объём файловой системы,
// на которой расположен path. Платформозависимая реализация
// подключается из main.
type DiskUsageFunc func(path string) (totalBytes, availableBytes uint64, err error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	diskUsage DiskUsageFunc
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(cfg *config.Config, diskUsage DiskUsageFunc) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		diskUsage: diskUsage,
	}
}

// infoResponse — ответ GET /api/v1/info.
type infoResponse struct {
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	MaxFileSize  int64        `json:"max_file_size"`
	ListMaxDepth int          `json:"list_max_depth"`
	TTSProvider  string       `json:"tts_provider"`
	Capacity     capacityInfo `json:"capacity"`
}

// capacityInfo — сведения о ёмкости файловой системы данных.
type capacityInfo struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// GetInfo обрабатывает GET /api/v1/info.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	total, available, err := h.diskUsage(h.cfg.DataDir)
	if err != nil {
		errors.InternalError(w, "Ошибка получения сведений о файловой системе")
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Service:      config.Namespace,
		Version:      config.Version,
		MaxFileSize:  h.cfg.MaxFileSize,
		ListMaxDepth: h.cfg.ListMaxDepth,
		TTSProvider:  h.cfg.TTSProvider,
		Capacity: capacityInfo{
			TotalBytes:     total,
			UsedBytes:      total - available,
			AvailableBytes: available,
		},
	})
}
