// handler.go — APIHandler собирает доменные handlers в один объект
// и регистрирует маршруты на chi-роутере.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler — единый обработчик всех endpoints сервиса.
type APIHandler struct {
	files   *FilesHandler
	system  *SystemHandler
	tts     *TTSHandler
	slides  *SlidesHandler
	video   *VideoHandler
	health  *HealthHandler
	metrics http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	system *SystemHandler,
	tts *TTSHandler,
	slides *SlidesHandler,
	video *VideoHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		files:   files,
		system:  system,
		tts:     tts,
		slides:  slides,
		video:   video,
		health:  health,
		metrics: promhttp.Handler(),
	}
}

// RegisterProtected регистрирует endpoints, закрываемые аутентификацией.
func (h *APIHandler) RegisterProtected(r chi.Router) {
	r.Post("/api/v1/files", h.files.UploadFiles)
	r.Get("/api/v1/files", h.files.ListFiles)
	r.Get("/api/v1/files/*", h.files.DownloadFile)
	r.Delete("/api/v1/files/*", h.files.DeleteFile)

	r.Post("/api/v1/tts", h.tts.Synthesize)
	r.Get("/api/v1/tts/providers", h.tts.ListProviders)

	r.Post("/api/v1/slides/rasterize", h.slides.Rasterize)
	r.Post("/api/v1/video/compose", h.video.Compose)
}

// RegisterPublic регистрирует endpoints без аутентификации:
// health probes, метрики и service discovery.
func (h *APIHandler) RegisterPublic(r chi.Router) {
	r.Get("/api/v1/info", h.system.GetInfo)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.metrics.ServeHTTP)
}
