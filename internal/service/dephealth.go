// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Slidecast мониторит:
//   - API провайдера синтеза речи (HTTP GET, critical)
//   - JWKS endpoint IdP (HTTP GET, если аутентификация включена)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//
// Используется встроенный HTTP checker из dephealth SDK.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks" // Регистрация фабрик checker-ов (HTTP и др.)
)

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthTarget — одна мониторируемая зависимость.
type DephealthTarget struct {
	// Name — имя зависимости в метриках
	Name string
	// URL — проверяемый endpoint
	URL string
	// Critical — влияет ли зависимость на готовность сервиса
	Critical bool
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - name — имя вершины графа текущего приложения (DEPHEALTH_NAME)
//   - group — имя группы в метриках (SC_DEPHEALTH_GROUP)
//   - targets — список мониторируемых зависимостей
//   - checkInterval — интервал проверки (SC_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	name string,
	group string,
	targets []DephealthTarget,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
	}
	for _, t := range targets {
		opts = append(opts, dephealth.HTTP(t.Name,
			dephealth.FromURL(t.URL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(t.Critical),
		))
	}

	dh, err := dephealth.New(name, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
