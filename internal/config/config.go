package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"photopost-bot/internal/captions"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store and storage drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	StorageS3    = "s3"
	StorageLocal = "local"

	ProviderGemini = "gemini"
	ProviderYandex = "yandex"
)

// DefaultCaptionFooter is appended to every published caption.
const DefaultCaptionFooter = `📍 Заказы и консультации: напишите нам в личные сообщения
🚚 Доставка по городу ежедневно`

// S3 holds the object storage settings.
type S3 struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
	PublicURL string
}

// Config holds the application configuration.
type Config struct {
	AppEnv    string
	Debug     bool
	Version   string
	LogLevel  string
	SentryDSN string

	BotToken        string
	ChannelID       int64
	ChannelUsername string
	AdminIDs        []int64
	DefaultLanguage string

	PostTimes      []string
	TimezoneOffset int

	StoreDriver     string
	MongoDBURI      string
	MongoDBDatabase string
	PostgresURI     string

	StorageDriver   string
	StoragePrefix   string
	LocalStorageDir string
	S3              S3

	CaptionProvider string
	GeminiAPIKey    string
	GeminiModels    []string
	YandexAPIKey    string
	YandexFolderID  string
	YandexModels    []string
	RateLimitPause  time.Duration
	CaptionFooter   string

	HealthPort int
}

// LoadConfig loads configuration from environment variables.
// A .env file is loaded first when present; variables already set in the
// environment take precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	debug, err := strconv.ParseBool(getEnv("DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEBUG: %w", err)
	}
	pathStyle, err := strconv.ParseBool(getEnv("S3_PATH_STYLE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PATH_STYLE: %w", err)
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Debug:     debug,
		Version:   getEnv("VERSION", "dev"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SentryDSN: getEnv("SENTRY_DSN", ""),

		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "ru"),

		PostTimes: splitList(getEnv("POST_TIMES", "09:00,18:00")),

		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		PostgresURI:     getEnv("POSTGRES_URI", ""),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", StorageS3)),
		StoragePrefix:   getEnv("STORAGE_PREFIX", "photos/"),
		LocalStorageDir: getEnv("LOCAL_STORAGE_DIR", "data/photos"),
		S3: S3{
			Endpoint:  getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			Region:    getEnv("S3_REGION", "ru-central1"),
			Bucket:    strings.TrimSpace(getEnv("YC_BUCKET_NAME", "")),
			AccessKey: strings.TrimSpace(getEnv("YC_ACCESS_KEY", "")),
			SecretKey: strings.TrimSpace(getEnv("YC_SECRET_KEY", "")),
			PathStyle: pathStyle,
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},

		CaptionProvider: strings.ToLower(getEnv("CAPTION_PROVIDER", ProviderGemini)),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModels:    splitList(getEnv("GEMINI_MODELS", "gemini-2.5-flash,gemini-2.5-pro,gemini-3.0-flash-preview,gemini-3.1-pro-preview")),
		YandexAPIKey:    getEnv("YANDEX_API_KEY", ""),
		YandexFolderID:  getEnv("YANDEX_FOLDER_ID", getEnv("YANDEX_FOLDER", "")),
		YandexModels:    splitList(getEnv("YANDEX_MODELS", "yandexgpt-lite,yandexgpt")),
		CaptionFooter:   getEnv("CAPTION_FOOTER", DefaultCaptionFooter),
	}

	cfg.ChannelID, cfg.ChannelUsername, err = parseChannel(getEnv("CHANNEL_ID", ""))
	if err != nil {
		return nil, err
	}
	if cfg.AdminIDs, err = parseIDs(getEnv("ADMIN_IDS", "")); err != nil {
		return nil, err
	}
	if cfg.TimezoneOffset, err = strconv.Atoi(getEnv("POST_TZ_OFFSET", "7")); err != nil {
		return nil, fmt.Errorf("invalid POST_TZ_OFFSET: %w", err)
	}
	if cfg.RateLimitPause, err = time.ParseDuration(getEnv("CAPTION_RATE_LIMIT_PAUSE", "5s")); err != nil {
		return nil, fmt.Errorf("invalid CAPTION_RATE_LIMIT_PAUSE: %w", err)
	}
	if cfg.HealthPort, err = strconv.Atoi(getEnv("PORT", "10000")); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the mandatory settings for the selected drivers.
func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.ChannelID == 0 && c.ChannelUsername == "" {
		return fmt.Errorf("CHANNEL_ID is required")
	}
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS is required")
	}
	if len(c.PostTimes) == 0 {
		return fmt.Errorf("POST_TIMES must contain at least one time")
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(c.CaptionFooter)); n > captions.MaxCaptionRunes {
		return fmt.Errorf("CAPTION_FOOTER is %d characters, the caption limit is %d", n, captions.MaxCaptionRunes)
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
		if c.MongoDBDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required")
		}
	case StorePostgres:
		if c.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required")
		}
	case StoreMemory:
		log.Warn().Msg("STORE_DRIVER=memory: photo records are lost on restart")
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.StorageDriver {
	case StorageS3:
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" || c.S3.Bucket == "" {
			return fmt.Errorf("YC_ACCESS_KEY, YC_SECRET_KEY and YC_BUCKET_NAME are required for s3 storage")
		}
	case StorageLocal:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.CaptionProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY is not set. Captions will use the fallback text.")
		}
	case ProviderYandex:
		if c.YandexAPIKey == "" || c.YandexFolderID == "" {
			log.Warn().Msg("YANDEX_API_KEY or YANDEX_FOLDER_ID is not set. Captions will use the fallback text.")
		}
	default:
		return fmt.Errorf("unknown CAPTION_PROVIDER %q", c.CaptionProvider)
	}

	if c.SentryDSN == "" {
		log.Warn().Msg("SENTRY_DSN is not set. Error tracking disabled.")
	}
	return nil
}

// parseChannel accepts either a numeric chat id or an @username.
func parseChannel(raw string) (int64, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", nil
	}
	if strings.HasPrefix(raw, "@") {
		return 0, raw, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid CHANNEL_ID: %w", err)
	}
	return id, "", nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
