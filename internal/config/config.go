package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AnalysisModeSteps    = "steps"
	AnalysisModeCombined = "combined"
)

type Config struct {
	OpenAIAPIKey  string
	OpenAIAPIBase string

	Port          string
	StudioAPIBase string

	ChatModel        string
	ImageModel       string
	AnalysisMode     string
	AnalysisParallel bool

	TelegramToken      string
	MaxConcurrent      int
	MediaGroupDebounce time.Duration

	Locale   string
	LogLevel string
	Debug    bool

	PreferIPv4     bool
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIAPIBase:      strings.TrimRight(getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
		Port:               getEnv("PORT", "3001"),
		ChatModel:          getEnv("CHAT_MODEL", "gpt-5.2"),
		ImageModel:         getEnv("IMAGE_MODEL", "gpt-image-1"),
		AnalysisMode:       strings.ToLower(getEnv("ANALYSIS_MODE", AnalysisModeSteps)),
		AnalysisParallel:   getEnvBool("ANALYSIS_PARALLEL", true),
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		Locale:             strings.ToLower(getEnv("LOCALE", "en")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	// The studio talks to its own gateway unless pointed elsewhere.
	cfg.StudioAPIBase = strings.TrimRight(getEnv("STUDIO_API_BASE", "http://localhost:"+cfg.Port+"/api"), "/")

	switch cfg.AnalysisMode {
	case AnalysisModeSteps, AnalysisModeCombined:
	default:
		return Config{}, fmt.Errorf("ANALYSIS_MODE must be %q or %q, got %q", AnalysisModeSteps, AnalysisModeCombined, cfg.AnalysisMode)
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MediaGroupDebounce <= 0 {
		cfg.MediaGroupDebounce = 1200 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 60 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 300 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
