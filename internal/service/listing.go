// listing.go — сервис листинга файлов с LRU-кэшем страниц.
// Кэш — обёртка над hashicorp/golang-lru/v2/expirable: страницы живут
// короткий TTL и целиком сбрасываются при любой мутации хранилища.
// Листинг — снапшот файловой системы без гарантий линеаризуемости,
// короткое кэширование этой семантики не меняет.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slidecast-io/slidecast/internal/config"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
)

// Prometheus-метрики кэша листинга.
var (
	listCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_list_cache_hits_total",
		Help: "Общее количество попаданий в кэш листинга",
	})
	listCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sc_list_cache_misses_total",
		Help: "Общее количество промахов кэша листинга",
	})
)

// listPage — закэшированная страница листинга.
type listPage struct {
	items []*model.Descriptor
	total int
}

// ListingService — сервис листинга файлов хранилища.
type ListingService struct {
	store           *uploadstore.Store
	cache           *expirable.LRU[string, listPage]
	defaultMaxDepth int
	baseURL         string
	logger          *slog.Logger
}

// NewListingService создаёт сервис листинга.
// cacheSize — максимальное количество страниц в кэше, ttl — их время жизни.
func NewListingService(
	store *uploadstore.Store,
	cacheSize int,
	ttl time.Duration,
	defaultMaxDepth int,
	baseURL string,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		store:           store,
		cache:           expirable.NewLRU[string, listPage](cacheSize, nil, ttl),
		defaultMaxDepth: defaultMaxDepth,
		baseURL:         baseURL,
		logger:          logger.With(slog.String("component", "listing_service")),
	}
}

// List возвращает страницу дескрипторов и общее количество файлов.
// limit вне диапазона 1..100 приводится к 100; maxDepth <= 0 заменяется
// значением по умолчанию из конфигурации.
func (s *ListingService) List(limit, offset, maxDepth int) ([]*model.Descriptor, int, error) {
	if limit <= 0 || limit > config.DefaultListLimit {
		limit = config.DefaultListLimit
	}
	if maxDepth <= 0 {
		maxDepth = s.defaultMaxDepth
	}

	key := fmt.Sprintf("%d:%d:%d", limit, offset, maxDepth)
	if page, ok := s.cache.Get(key); ok {
		listCacheHitsTotal.Inc()
		return page.items, page.total, nil
	}
	listCacheMissesTotal.Inc()

	items, total, err := s.store.List(limit, offset, maxDepth)
	if err != nil {
		return nil, 0, err
	}

	for _, d := range items {
		d.URL = fileURL(s.baseURL, d.RelativePath)
	}

	s.cache.Add(key, listPage{items: items, total: total})
	return items, total, nil
}

// Invalidate сбрасывает кэш листинга. Вызывается при любой мутации
// хранилища (загрузка, удаление, результаты конвейера).
func (s *ListingService) Invalidate() {
	s.cache.Purge()
}
