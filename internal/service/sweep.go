// sweep.go — сервис фоновой уборки хранилища.
//
// Sweep выполняет две задачи:
//  1. Удаляет осиротевшие *.tmp файлы — следы записей, оборванных
//     падением процесса до rename. Трогает только файлы старше
//     порога возраста, чтобы не задеть идущую загрузку.
//  2. Подчищает опустевшие дата-партиции, оставшиеся после ручных
//     манипуляций с деревом.
//
// Запускается как горутина с периодическим тикером (SC_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// Prometheus метрики sweep
var (
	// sweepRunsTotal — количество запусков уборки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_sweep_runs_total",
		Help: "Общее количество запусков фоновой уборки",
	})

	// sweepTmpRemovedTotal — количество удалённых temp файлов.
	sweepTmpRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_sweep_tmp_removed_total",
		Help: "Общее количество удалённых осиротевших temp файлов",
	})

	// sweepDirsRemovedTotal — количество удалённых пустых директорий.
	sweepDirsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_sweep_dirs_removed_total",
		Help: "Общее количество удалённых пустых директорий",
	})

	// sweepDurationSeconds — длительность выполнения уборки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sc_sweep_duration_seconds",
		Help:    "Длительность выполнения фоновой уборки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// SweepResult — результат одного запуска уборки.
type SweepResult struct {
	// TmpRemoved — количество удалённых temp файлов
	TmpRemoved int
	// DirsRemoved — количество удалённых пустых директорий
	DirsRemoved int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweepService — сервис фоновой уборки хранилища.
type SweepService struct {
	store     *uploadstore.Store
	interval  time.Duration
	tmpMaxAge time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweepService создаёт сервис уборки.
func NewSweepService(
	store *uploadstore.Store,
	interval time.Duration,
	tmpMaxAge time.Duration,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		store:     store,
		interval:  interval,
		tmpMaxAge: tmpMaxAge,
		logger:    logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину уборки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (sw *SweepService) Start(ctx context.Context) {
	swCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel

	go sw.run(swCtx)

	sw.logger.Info("Фоновая уборка запущена",
		slog.String("interval", sw.interval.String()),
		slog.String("tmp_max_age", sw.tmpMaxAge.String()),
	)
}

// Stop останавливает фоновый процесс уборки.
func (sw *SweepService) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.logger.Info("Фоновая уборка остановлена")
}

// run — основной цикл фоновой горутины.
func (sw *SweepService) run(ctx context.Context) {
	// Первый запуск — сразу после старта: подчищаем следы
	// предыдущего падения процесса.
	sw.RunOnce()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce()
		}
	}
}

// RunOnce выполняет один проход уборки. Потокобезопасен:
// параллельные вызовы сериализуются.
func (sw *SweepService) RunOnce() SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	sweepRunsTotal.Inc()

	result := SweepResult{}
	cutoff := start.Add(-sw.tmpMaxAge)
	root := sw.store.Root()

	var emptyDirs []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors++
			return nil //nolint:nilerr // недоступные участки пропускаем, обход продолжается
		}
		if info.IsDir() {
			if path != root {
				emptyDirs = append(emptyDirs, path)
			}
			return nil
		}
		if strings.HasSuffix(path, uploadstore.TmpSuffix) && info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr != nil {
				result.Errors++
			} else {
				result.TmpRemoved++
				sweepTmpRemovedTotal.Inc()
			}
		}
		return nil
	})
	if err != nil {
		result.Errors++
	}

	// Пустые директории удаляем от листьев к корню: Walk выдаёт
	// родителей раньше детей, поэтому идём по списку с конца.
	for i := len(emptyDirs) - 1; i >= 0; i-- {
		entries, readErr := os.ReadDir(emptyDirs[i])
		if readErr != nil || len(entries) > 0 {
			continue
		}
		if rmErr := os.Remove(emptyDirs[i]); rmErr == nil {
			result.DirsRemoved++
			sweepDirsRemovedTotal.Inc()
		}
	}

	result.Duration = time.Since(start)
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.TmpRemoved > 0 || result.DirsRemoved > 0 || result.Errors > 0 {
		sw.logger.Info("Уборка завершена",
			slog.Int("tmp_removed", result.TmpRemoved),
			slog.Int("dirs_removed", result.DirsRemoved),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
