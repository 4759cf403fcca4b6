// Точка входа Slidecast — backend хранения медиафайлов и сборки
// озвученных видео из презентаций.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/slidecast-io/slidecast/internal/api/handlers"
	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/config"
	"github.com/slidecast-io/slidecast/internal/convert"
	"github.com/slidecast-io/slidecast/internal/server"
	"github.com/slidecast-io/slidecast/internal/service"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
	"github.com/slidecast-io/slidecast/internal/tts"
	"github.com/slidecast-io/slidecast/internal/video"
)

func main() {
	// .env удобен при локальной разработке; в проде файла нет
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Slidecast запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("tts_provider", cfg.TTSProvider),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище загрузок
	store, err := uploadstore.New(filepath.Join(cfg.DataDir, config.Namespace), cfg.MaxFileSize)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Сервисы
	listingSvc := service.NewListingService(
		store,
		cfg.ListCacheSize,
		cfg.ListCacheTTL,
		cfg.ListMaxDepth,
		cfg.BaseURL,
		logger,
	)
	uploadSvc := service.NewUploadService(store, listingSvc, cfg.BaseURL, logger)
	downloadSvc := service.NewDownloadService(store, logger)

	ttsCfg := tts.Config{
		APIKey:  cfg.TTSAPIKey,
		BaseURL: cfg.TTSBaseURL,
		Timeout: cfg.TTSTimeout,
	}
	synthesisSvc := service.NewSynthesisService(store, listingSvc, ttsCfg, cfg.TTSProvider, cfg.BaseURL, logger)

	rasterizer := convert.NewRasterizer(cfg.SofficeBin, cfg.PdftoppmBin, cfg.ConvertTimeout, logger)
	slidesSvc := service.NewSlidesService(store, listingSvc, rasterizer, cfg.BaseURL, logger)

	compositor := video.NewCompositor(cfg.FFmpegBin, cfg.ConvertTimeout, logger)
	composeSvc := service.NewComposeService(store, listingSvc, compositor, cfg.BaseURL, logger)

	// 3. Фоновые процессы
	ctx := context.Background()

	sweepSvc := service.NewSweepService(store, cfg.SweepInterval, cfg.SweepTmpMaxAge, logger)
	sweepSvc.Start(ctx)

	dephealthSvc := startDephealth(ctx, cfg, logger)

	// 4. Handlers
	filesHandler := handlers.NewFilesHandler(uploadSvc, downloadSvc, listingSvc)
	systemHandler := handlers.NewSystemHandler(cfg, getDiskUsage)
	ttsHandler := handlers.NewTTSHandler(synthesisSvc)
	slidesHandler := handlers.NewSlidesHandler(slidesSvc)
	videoHandler := handlers.NewVideoHandler(composeSvc)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir)

	apiHandler := handlers.NewAPIHandler(
		filesHandler,
		systemHandler,
		ttsHandler,
		slidesHandler,
		videoHandler,
		healthHandler,
	)

	// 5. JWT middleware — опционально: без SC_JWKS_URL сервис
	// работает открытым (локальная разработка)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: time.Hour,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", err.Error()),
			)
			jwtAuth = nil
		} else {
			logger.Info("JWT аутентификация настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	} else {
		logger.Warn("SC_JWKS_URL не задан, запуск без аутентификации")
	}

	// 6. Запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	sweepSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Slidecast остановлен")
}

// startDephealth запускает мониторинг внешних зависимостей.
// Мониторинг не критичен: при ошибке сервис стартует без него.
func startDephealth(ctx context.Context, cfg *config.Config, logger *slog.Logger) *service.DephealthService {
	var targets []service.DephealthTarget
	if cfg.TTSBaseURL != "" {
		targets = append(targets, service.DephealthTarget{
			Name:     "tts-api",
			URL:      cfg.TTSBaseURL,
			Critical: false,
		})
	}
	if cfg.JWKSUrl != "" {
		targets = append(targets, service.DephealthTarget{
			Name:     "jwks",
			URL:      cfg.JWKSUrl,
			Critical: true,
		})
	}
	if len(targets) == 0 {
		logger.Info("Нет внешних зависимостей для мониторинга")
		return nil
	}

	dephealthSvc, err := service.NewDephealthService(
		cfg.DephealthName,
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", err.Error()),
		)
		return nil
	}

	logger.Info("topologymetrics запущен",
		slog.Int("targets", len(targets)),
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return dephealthSvc
}
