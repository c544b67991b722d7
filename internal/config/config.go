package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	LogLevel  string
	LogFormat string

	// VoiceProvider is one of auto, bridge, google or mock.
	VoiceProvider      string
	SpeechLanguage     string
	STTSampleRate      int
	STTMaxAlternatives int

	// StoreBackend is one of auto, memory, sqlite, postgres or redis.
	StoreBackend   string
	StorePath      string
	StoreKeyPrefix string
	StoreRedactPII bool
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	QuizIntroPause   time.Duration
	QuizListenDelay  time.Duration
	QuizAdvanceDelay time.Duration
	QuizSkipDelay    time.Duration

	ResponseDelay      time.Duration
	StatusDismissAfter time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "fundora"),
		AllowAnyOrigin:     false,
		LogLevel:           strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(envOrDefault("LOG_FORMAT", "json")),
		VoiceProvider:      strings.ToLower(envOrDefault("VOICE_PROVIDER", "auto")),
		SpeechLanguage:     envOrDefault("SPEECH_LANGUAGE", "en-IN"),
		STTSampleRate:      16000,
		STTMaxAlternatives: 3,
		StoreBackend:       strings.ToLower(envOrDefault("STORE_BACKEND", "auto")),
		StorePath:          envOrDefault("STORE_PATH", ".data/fundora.db"),
		StoreKeyPrefix:     envOrDefault("STORE_KEY_PREFIX", "fundora"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		RedisAddr:          stringsTrimSpace("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		QuizIntroPause:           2 * time.Second,
		QuizListenDelay:          time.Second,
		QuizAdvanceDelay:         1500 * time.Millisecond,
		QuizSkipDelay:            time.Second,
		ResponseDelay:            time.Second,
		StatusDismissAfter:       10 * time.Second,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"QUIZ_INTRO_PAUSE", &cfg.QuizIntroPause},
		{"QUIZ_LISTEN_DELAY", &cfg.QuizListenDelay},
		{"QUIZ_ADVANCE_DELAY", &cfg.QuizAdvanceDelay},
		{"QUIZ_SKIP_DELAY", &cfg.QuizSkipDelay},
		{"RESPONSE_DELAY", &cfg.ResponseDelay},
		{"STATUS_DISMISS_AFTER", &cfg.StatusDismissAfter},
	}
	for _, d := range durations {
		v, err := durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
		if v < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", d.key)
		}
		*d.dst = v
	}

	var err error
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreRedactPII, err = boolFromEnv("STORE_REDACT_PII", cfg.StoreRedactPII)
	if err != nil {
		return Config{}, err
	}
	cfg.STTSampleRate, err = intFromEnv("STT_SAMPLE_RATE", cfg.STTSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.STTMaxAlternatives, err = intFromEnv("STT_MAX_ALTERNATIVES", cfg.STTMaxAlternatives)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.STTSampleRate <= 0 {
		return Config{}, fmt.Errorf("STT_SAMPLE_RATE must be positive")
	}
	if cfg.STTMaxAlternatives <= 0 {
		return Config{}, fmt.Errorf("STT_MAX_ALTERNATIVES must be positive")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be >= 0")
	}
	switch cfg.VoiceProvider {
	case "auto", "bridge", "google", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER %q is not one of auto, bridge, google, mock", cfg.VoiceProvider)
	}
	switch cfg.StoreBackend {
	case "auto", "memory", "sqlite", "postgres", "redis":
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND %q is not one of auto, memory, sqlite, postgres, redis", cfg.StoreBackend)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
