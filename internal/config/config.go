// Пакет config — загрузка и валидация конфигурации Slidecast
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Namespace — сервисный подкаталог внутри SC_DATA_DIR.
// Изолирует файлы Slidecast от других сервисов на разделяемом томе.
const Namespace = "slidecast"

// DefaultListLimit — максимальный и одновременно дефолтный размер
// страницы листинга файлов.
const DefaultListLimit = 100

// Config содержит все параметры конфигурации Slidecast.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория хранения файлов (namespace добавляется внутри)
	DataDir string
	// Внешний базовый URL сервиса для генерации file_url (опционально)
	BaseURL string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Максимальная глубина обхода при листинге
	ListMaxDepth int
	// Размер LRU-кэша страниц листинга
	ListCacheSize int
	// TTL записи кэша листинга
	ListCacheTTL time.Duration
	// Интервал фоновой уборки (temp файлы, пустые партиции)
	SweepInterval time.Duration
	// Минимальный возраст temp файла для удаления sweep-ом
	SweepTmpMaxAge time.Duration
	// URL JWKS endpoint для проверки JWT (пусто = без аутентификации)
	JWKSUrl string
	// Путь к CA-сертификату для TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Провайдер синтеза речи по умолчанию
	TTSProvider string
	// API-ключ провайдера синтеза (OPENAI_API_KEY как fallback)
	TTSAPIKey string
	// Базовый URL API синтеза (для OpenAI-совместимых прокси)
	TTSBaseURL string
	// Таймаут одного запроса синтеза
	TTSTimeout time.Duration

	// Пути к внешним бинарям конвейера
	SofficeBin  string
	PdftoppmBin string
	FFmpegBin   string
	// Таймаут одного запуска внешнего конвертера
	ConvertTimeout time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя инстанса в метриках topologymetrics
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// SC_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SC_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("SC_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// SC_BASE_URL — внешний URL сервиса (опционально, без завершающего /)
	cfg.BaseURL = strings.TrimRight(getEnvDefault("SC_BASE_URL", ""), "/")

	// SC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 50 МБ)
	cfg.MaxFileSize, err = getEnvInt64("SC_MAX_FILE_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("SC_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("SC_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// SC_LIST_MAX_DEPTH — глубина обхода листинга (по умолчанию 5)
	cfg.ListMaxDepth, err = getEnvInt("SC_LIST_MAX_DEPTH", 5)
	if err != nil {
		return nil, fmt.Errorf("SC_LIST_MAX_DEPTH: %w", err)
	}
	if cfg.ListMaxDepth < 1 {
		return nil, fmt.Errorf("SC_LIST_MAX_DEPTH: значение должно быть не меньше 1")
	}

	// SC_LIST_CACHE_SIZE — размер кэша листинга (по умолчанию 64 страницы)
	cfg.ListCacheSize, err = getEnvInt("SC_LIST_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("SC_LIST_CACHE_SIZE: %w", err)
	}

	// SC_LIST_CACHE_TTL — TTL кэша листинга (по умолчанию 5s)
	cfg.ListCacheTTL, err = getEnvDuration("SC_LIST_CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_LIST_CACHE_TTL: %w", err)
	}

	// SC_SWEEP_INTERVAL — интервал фоновой уборки (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("SC_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SC_SWEEP_INTERVAL: %w", err)
	}

	// SC_SWEEP_TMP_MAX_AGE — возраст temp файла для удаления (по умолчанию 1h).
	// Должен заметно превышать время одной загрузки, чтобы sweep
	// не задел файл в процессе записи.
	cfg.SweepTmpMaxAge, err = getEnvDuration("SC_SWEEP_TMP_MAX_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SC_SWEEP_TMP_MAX_AGE: %w", err)
	}

	// SC_JWKS_URL — опционально; пусто = запуск без аутентификации
	cfg.JWKSUrl = getEnvDefault("SC_JWKS_URL", "")

	// SC_JWKS_CA_CERT — CA-сертификат JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("SC_JWKS_CA_CERT", "")

	// SC_JWT_LEEWAY — допуск времени JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("SC_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_JWT_LEEWAY: %w", err)
	}

	// SC_TLS_CERT / SC_TLS_KEY — опциональны, но только парой
	cfg.TLSCert = getEnvDefault("SC_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("SC_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("SC_TLS_CERT и SC_TLS_KEY должны задаваться вместе")
	}

	// SC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SC_LOG_LEVEL: %w", err)
	}

	// SC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// SC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("SC_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// SC_TTS_PROVIDER — провайдер синтеза (по умолчанию openai)
	cfg.TTSProvider = getEnvDefault("SC_TTS_PROVIDER", "openai")

	// SC_TTS_API_KEY → OPENAI_API_KEY — ключ API синтеза
	cfg.TTSAPIKey = getEnvDefault("SC_TTS_API_KEY", os.Getenv("OPENAI_API_KEY"))

	// SC_TTS_BASE_URL — базовый URL API синтеза
	cfg.TTSBaseURL = strings.TrimRight(getEnvDefault("SC_TTS_BASE_URL", "https://api.openai.com"), "/")

	// SC_TTS_TIMEOUT — таймаут запроса синтеза (по умолчанию 2m)
	cfg.TTSTimeout, err = getEnvDuration("SC_TTS_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_TTS_TIMEOUT: %w", err)
	}

	// Пути к внешним бинарям (по умолчанию ищутся в PATH)
	cfg.SofficeBin = getEnvDefault("SC_SOFFICE_BIN", "soffice")
	cfg.PdftoppmBin = getEnvDefault("SC_PDFTOPPM_BIN", "pdftoppm")
	cfg.FFmpegBin = getEnvDefault("SC_FFMPEG_BIN", "ffmpeg")

	// SC_CONVERT_TIMEOUT — таймаут запуска конвертера (по умолчанию 5m)
	cfg.ConvertTimeout, err = getEnvDuration("SC_CONVERT_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_CONVERT_TIMEOUT: %w", err)
	}

	// SC_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("SC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// SC_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("SC_DEPHEALTH_GROUP", "slidecast")

	// DEPHEALTH_NAME — имя инстанса для метрик topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "slidecast")

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
