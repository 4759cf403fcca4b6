// synthesis.go — сервис синтеза речи: текст → mp3 в хранилище.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slidecast-io/slidecast/internal/api/middleware"
	"github.com/slidecast-io/slidecast/internal/domain/model"
	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
	"github.com/slidecast-io/slidecast/internal/tts"
)

// FeatureTTS — партиция результатов синтеза речи.
const FeatureTTS = "tts"

// SynthesisService — сервис синтеза речи.
// Провайдеры создаются лениво по имени и переиспользуются между запросами.
type SynthesisService struct {
	store           *uploadstore.Store
	listing         *ListingService
	providerCfg     tts.Config
	defaultProvider string
	baseURL         string
	logger          *slog.Logger

	mu        sync.Mutex
	providers map[string]tts.Provider
}

// NewSynthesisService создаёт сервис синтеза речи.
func NewSynthesisService(
	store *uploadstore.Store,
	listing *ListingService,
	providerCfg tts.Config,
	defaultProvider string,
	baseURL string,
	logger *slog.Logger,
) *SynthesisService {
	return &SynthesisService{
		store:           store,
		listing:         listing,
		providerCfg:     providerCfg,
		defaultProvider: defaultProvider,
		baseURL:         baseURL,
		logger:          logger.With(slog.String("component", "synthesis_service")),
		providers:       make(map[string]tts.Provider),
	}
}

// Providers возвращает список поддерживаемых провайдеров.
func (s *SynthesisService) Providers() []string {
	return tts.Providers()
}

// DefaultProvider возвращает имя провайдера по умолчанию.
func (s *SynthesisService) DefaultProvider() string {
	return s.defaultProvider
}

// SynthesisResult — результат одного запроса синтеза: аудиодорожка
// и, если провайдер умеет распознавание, субтитры SRT рядом с ней.
type SynthesisResult struct {
	Audio    *model.Descriptor
	Subtitle *model.Descriptor // nil, если субтитры не сгенерированы
}

// Synthesize синтезирует речь и сохраняет результат в партицию tts/.
// providerName пустой — используется провайдер по умолчанию.
// Аудиопоток провайдера пишется в хранилище напрямую, без буферизации
// в памяти; обрыв потока не оставляет частичного файла.
//
// После сохранения аудио сервис пытается получить субтитры SRT
// распознаванием готовой дорожки и кладёт их рядом с mp3 под тем же
// id. Ошибка на этом шаге не отменяет синтез: запрос завершается
// успешно без субтитров.
func (s *SynthesisService) Synthesize(ctx context.Context, providerName string, req tts.Request) (*SynthesisResult, error) {
	if providerName == "" {
		providerName = s.defaultProvider
	}

	provider, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}

	stream, err := provider.Synthesize(ctx, req)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("synthesize", "error").Inc()
		return nil, fmt.Errorf("синтез речи через %s: %w", providerName, err)
	}
	defer stream.Close()

	desc, err := s.store.Save(FeatureTTS, stream, "speech.mp3")
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("synthesize", "error").Inc()
		return nil, fmt.Errorf("сохранение результата синтеза: %w", err)
	}

	desc.URL = fileURL(s.baseURL, desc.RelativePath)
	subtitle := s.transcribe(ctx, provider, desc.RelativePath)

	s.listing.Invalidate()
	middleware.OperationsTotal.WithLabelValues("synthesize", "success").Inc()

	s.logger.Info("Речь синтезирована",
		slog.String("provider", providerName),
		slog.String("path", desc.RelativePath),
		slog.Int64("size", desc.Size),
		slog.Int("text_len", len(req.Text)),
		slog.Bool("subtitle", subtitle != nil),
	)

	return &SynthesisResult{Audio: desc, Subtitle: subtitle}, nil
}

// transcribe распознаёт сохранённую аудиодорожку в субтитры SRT
// и сохраняет их рядом с ней. Любая ошибка — предупреждение в лог
// и nil: субтитры не критичны для результата синтеза.
func (s *SynthesisService) transcribe(ctx context.Context, provider tts.Provider, audioRelPath string) *model.Descriptor {
	transcriber, ok := provider.(tts.Transcriber)
	if !ok {
		return nil
	}

	audio, _, err := s.store.Open(audioRelPath)
	if err != nil {
		s.logger.Warn("Не удалось открыть аудио для распознавания",
			slog.String("path", audioRelPath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer audio.Close()

	srt, err := transcriber.Transcribe(ctx, audio, "speech.mp3")
	if err != nil {
		s.logger.Warn("Не удалось сгенерировать субтитры",
			slog.String("path", audioRelPath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer srt.Close()

	sub, err := s.store.SaveSibling(audioRelPath, srt, ".srt")
	if err != nil {
		s.logger.Warn("Не удалось сохранить субтитры",
			slog.String("path", audioRelPath),
			slog.String("error", err.Error()),
		)
		return nil
	}

	sub.URL = fileURL(s.baseURL, sub.RelativePath)
	return sub
}

// provider возвращает закэшированного провайдера или создаёт нового.
func (s *SynthesisService) provider(name string) (tts.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[name]; ok {
		return p, nil
	}

	p, err := tts.New(name, s.providerCfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.providers[name] = p
	return p, nil
}
