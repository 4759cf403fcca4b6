package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slidecast-io/slidecast/internal/storage/uploadstore"
	"github.com/slidecast-io/slidecast/internal/tts"
)

// setupSynthesisTestEnv создаёт хранилище и сервис синтеза,
// направленный на подставной TTS API.
func setupSynthesisTestEnv(t *testing.T, handler http.HandlerFunc) (*uploadstore.Store, *SynthesisService) {
	t.Helper()

	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	root := filepath.Join(t.TempDir(), "slidecast")
	store, err := uploadstore.New(root, 1<<20)
	if err != nil {
		t.Fatalf("Ошибка создания хранилища: %v", err)
	}

	logger := testLogger()
	listing := NewListingService(store, 16, time.Minute, 5, "", logger)
	svc := NewSynthesisService(store, listing, tts.Config{
		APIKey:  "test-key",
		BaseURL: api.URL,
		Timeout: 5 * time.Second,
	}, "openai", "https://media.example.com", logger)

	return store, svc
}

// fakeTTSAPI отвечает на запросы синтеза и распознавания: audio на
// /v1/audio/speech, srt на /v1/audio/transcriptions (пустой srt — 500).
func fakeTTSAPI(t *testing.T, audio, srt string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			_, _ = w.Write([]byte(audio))
		case "/v1/audio/transcriptions":
			if srt == "" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(srt))
		default:
			t.Errorf("Неожиданный путь запроса: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestSynthesize_StoresAudio(t *testing.T) {
	audio := "байты mp3"
	srt := "1\n00:00:00,000 --> 00:00:01,000\nпривет\n"
	store, svc := setupSynthesisTestEnv(t, fakeTTSAPI(t, audio, srt))

	result, err := svc.Synthesize(t.Context(), "", tts.Request{Text: "привет"})
	if err != nil {
		t.Fatalf("Synthesize вернул ошибку: %v", err)
	}

	desc := result.Audio
	if !strings.HasPrefix(desc.RelativePath, FeatureTTS+"/") {
		t.Errorf("Результат должен лежать в партиции %s: %q", FeatureTTS, desc.RelativePath)
	}
	if !strings.HasSuffix(desc.RelativePath, ".mp3") {
		t.Errorf("Результат должен иметь расширение .mp3: %q", desc.RelativePath)
	}
	if desc.URL == "" {
		t.Error("Дескриптор должен содержать публичный URL")
	}

	f, _, err := store.Open(desc.RelativePath)
	if err != nil {
		t.Fatalf("Ошибка открытия результата: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("Ошибка чтения результата: %v", err)
	}
	if string(got) != audio {
		t.Errorf("Содержимое не совпадает с потоком провайдера: %q", got)
	}
}

func TestSynthesize_StoresSubtitleBesideAudio(t *testing.T) {
	srt := "1\n00:00:00,000 --> 00:00:01,000\nпривет\n"
	store, svc := setupSynthesisTestEnv(t, fakeTTSAPI(t, "байты mp3", srt))

	result, err := svc.Synthesize(t.Context(), "", tts.Request{Text: "привет"})
	if err != nil {
		t.Fatalf("Synthesize вернул ошибку: %v", err)
	}
	if result.Subtitle == nil {
		t.Fatal("Субтитры должны быть сгенерированы")
	}

	// Субтитры лежат рядом с mp3: тот же путь с точностью до расширения.
	wantPath := strings.TrimSuffix(result.Audio.RelativePath, ".mp3") + ".srt"
	if result.Subtitle.RelativePath != wantPath {
		t.Errorf("Путь субтитров: хотели %q, получили %q", wantPath, result.Subtitle.RelativePath)
	}
	if result.Subtitle.ID != result.Audio.ID {
		t.Errorf("Субтитры должны делить id с аудио: %q != %q", result.Subtitle.ID, result.Audio.ID)
	}
	if result.Subtitle.URL == "" {
		t.Error("Дескриптор субтитров должен содержать публичный URL")
	}

	f, _, err := store.Open(result.Subtitle.RelativePath)
	if err != nil {
		t.Fatalf("Ошибка открытия субтитров: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("Ошибка чтения субтитров: %v", err)
	}
	if string(got) != srt {
		t.Errorf("Содержимое субтитров не совпадает с ответом провайдера: %q", got)
	}
}

func TestSynthesize_SubtitleFailureNotFatal(t *testing.T) {
	// Распознавание отвечает 500: аудио всё равно сохраняется,
	// субтитров в результате нет.
	store, svc := setupSynthesisTestEnv(t, fakeTTSAPI(t, "байты mp3", ""))

	result, err := svc.Synthesize(t.Context(), "", tts.Request{Text: "привет"})
	if err != nil {
		t.Fatalf("Ошибка распознавания не должна отменять синтез: %v", err)
	}
	if result.Subtitle != nil {
		t.Errorf("Субтитров быть не должно: %+v", result.Subtitle)
	}

	f, _, err := store.Open(result.Audio.RelativePath)
	if err != nil {
		t.Fatalf("Аудио должно быть сохранено: %v", err)
	}
	f.Close()
}

func TestSynthesize_ProviderError(t *testing.T) {
	_, svc := setupSynthesisTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit"}`))
	})

	if _, err := svc.Synthesize(t.Context(), "", tts.Request{Text: "привет"}); err == nil {
		t.Error("Ошибка провайдера должна пробрасываться")
	}
}

func TestSynthesize_UnknownProvider(t *testing.T) {
	_, svc := setupSynthesisTestEnv(t, func(http.ResponseWriter, *http.Request) {})

	_, err := svc.Synthesize(t.Context(), "nope", tts.Request{Text: "привет"})
	if !tts.IsUnknownProvider(err) {
		t.Errorf("Хотели ошибку неизвестного провайдера, получили: %v", err)
	}
}
