package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// It is built once at start-up and passed to every component that needs it.
type Config struct {
	AppEnv           string
	LogLevel         string
	Port             string
	DatabaseURL      string
	DBMaxConns       int
	JWTSecret        string
	StoragePath      string
	StorageBaseURL   string
	GeoIPDBPath      string
	SentryDSN        string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIImageModel  string
	OpenAISpeechModel string

	GeminiAPIKey     string
	GeminiImageModel string
	GeminiVideoModel string

	ReplicateAPIToken   string
	ReplicateBaseURL    string
	ReplicateImageModel string
	ReplicateVideoModel string

	QwenAPIKey  string
	QwenBaseURL string
	QwenModel   string

	SyntheticProviders bool

	ImageTimeout time.Duration
	VideoTimeout time.Duration
	AudioTimeout time.Duration

	RecommendedImage string
	RecommendedVideo string
	RecommendedAudio string

	ProviderRateLimitPerMin int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Port:             port,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StoragePath:      strings.TrimSpace(os.Getenv("STORAGE_PATH")),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 360)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIImageModel:  getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAISpeechModel: getEnv("OPENAI_SPEECH_MODEL", "tts-1"),

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001"),
		GeminiVideoModel: getEnv("GEMINI_VIDEO_MODEL", "veo-2.0-generate-001"),

		ReplicateAPIToken:   strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:    getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateImageModel: getEnv("REPLICATE_IMAGE_MODEL", "black-forest-labs/flux-schnell"),
		ReplicateVideoModel: getEnv("REPLICATE_VIDEO_MODEL", "minimax/video-01"),

		QwenAPIKey:  strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY")),
		QwenBaseURL: os.Getenv("DASHSCOPE_BASE_URL"),
		QwenModel:   getEnv("QWEN_IMAGE_MODEL", "qwen-image-plus"),

		SyntheticProviders: getEnvBool("SYNTHETIC_PROVIDERS", false),

		RecommendedImage: getEnv("RECOMMENDED_IMAGE_PROVIDER", "openai-dalle3"),
		RecommendedVideo: getEnv("RECOMMENDED_VIDEO_PROVIDER", "gemini-veo"),
		RecommendedAudio: getEnv("RECOMMENDED_AUDIO_PROVIDER", "openai-tts"),

		ProviderRateLimitPerMin: getEnvInt("PROVIDER_RATE_LIMIT_PER_MINUTE", 0),
	}

	var err error
	if cfg.ImageTimeout, err = getEnvDuration("IMAGE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.VideoTimeout, err = getEnvDuration("VIDEO_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AudioTimeout, err = getEnvDuration("AUDIO_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.RateLimitPerMin < 0 || cfg.ProviderRateLimitPerMin < 0 {
		return nil, fmt.Errorf("rate limits must not be negative")
	}

	return cfg, nil
}

// HistoryEnabled reports whether generation outcomes should be persisted.
func (c *Config) HistoryEnabled() bool {
	return c != nil && c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
