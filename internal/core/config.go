package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the main configuration for GenieNews
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`
	Auth     AuthConfig     `json:"auth"`
	Features FeatureConfig  `json:"features"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig holds the admin credentials guarding trigger endpoints.
// PasswordHash is a bcrypt hash and wins over Password when both are set.
type AuthConfig struct {
	AdminUser     string `json:"admin_user"`
	AdminPassword string `json:"-"`
	PasswordHash  string `json:"-"`
}

// FeatureConfig contains feature-specific configuration
type FeatureConfig struct {
	News NewsConfig `json:"news"`
}

// NewsConfig is the raw environment view of the news feature settings
type NewsConfig struct {
	Enabled bool `json:"enabled"`

	SchedulerEnabled bool          `json:"scheduler_enabled"`
	IngestInterval   time.Duration `json:"ingest_interval"`
	CurateInterval   time.Duration `json:"curate_interval"`
	MaxWorkers       int           `json:"max_workers"`

	UserAgents     []string      `json:"user_agents"`
	FeedTimeout    time.Duration `json:"feed_timeout"`
	ContentTimeout time.Duration `json:"content_timeout"`
	RateMinDelay   time.Duration `json:"rate_min_delay"`
	RateMaxDelay   time.Duration `json:"rate_max_delay"`
	RecencyDays    int           `json:"recency_days"`
	ExtractContent bool          `json:"extract_content"`

	CurationBatch int `json:"curation_batch"`
	ContentBudget int `json:"content_budget"`

	AI AIConfig `json:"ai"`

	AudioDir   string `json:"audio_dir"`
	DigestSize int    `json:"digest_size"`
}

// AIConfig describes the AI backend
type AIConfig struct {
	Provider            string   `json:"provider"`
	OpenAIAPIKey        string   `json:"-"`
	OpenAIBaseURL       string   `json:"openai_base_url"`
	GeminiAPIKey        string   `json:"-"`
	Model               string   `json:"model"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingDimensions int      `json:"embedding_dimensions"`
	Temperature         float64  `json:"temperature"`
	MaxTokens           int      `json:"max_tokens"`
	RelevanceKeywords   []string `json:"relevance_keywords"`
	TTSModel            string   `json:"tts_model"`
	TTSVoice            string   `json:"tts_voice"`
	TTSFallbackVoice    string   `json:"tts_fallback_voice"`
	TTSSpeed            float64  `json:"tts_speed"`
	RequestsPerMinute   int      `json:"requests_per_minute"`
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var defaultRelevanceKeywords = []string{
	"ai", "artificial intelligence", "machine learning", "deep learning", "neural network",
	"llm", "large language model", "gpt", "openai", "anthropic", "gemini", "chatgpt",
	"transformer", "computer vision", "nlp", "robotics", "generative", "model", "agent",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("NEWS_PORT", 4000),
			Host: getEnvOrDefault("NEWS_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path: getEnvOrDefault("NEWS_DB_PATH", "./genienews.db"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		Auth: AuthConfig{
			AdminUser:     getEnvOrDefault("NEWS_ADMIN_USER", "admin"),
			AdminPassword: getEnvOrDefault("NEWS_ADMIN_PASSWORD", ""),
			PasswordHash:  getEnvOrDefault("NEWS_ADMIN_PASSWORD_HASH", ""),
		},
		Features: FeatureConfig{
			News: NewsConfig{
				Enabled:          getEnvAsBool("NEWS_ENABLED", true),
				SchedulerEnabled: getEnvAsBool("NEWS_SCHEDULER_ENABLED", true),
				IngestInterval:   getEnvAsDuration("NEWS_INGEST_INTERVAL", time.Hour),
				CurateInterval:   getEnvAsDuration("NEWS_CURATE_INTERVAL", 30*time.Minute),
				MaxWorkers:       getEnvAsInt("NEWS_MAX_WORKERS", 5),
				UserAgents:       getEnvAsList("NEWS_USER_AGENTS", defaultUserAgents),
				FeedTimeout:      getEnvAsDuration("NEWS_FEED_TIMEOUT", 30*time.Second),
				ContentTimeout:   getEnvAsDuration("NEWS_CONTENT_TIMEOUT", 60*time.Second),
				RateMinDelay:     getEnvAsDuration("NEWS_RATE_MIN_DELAY", 2*time.Second),
				RateMaxDelay:     getEnvAsDuration("NEWS_RATE_MAX_DELAY", 5*time.Second),
				RecencyDays:      getEnvAsInt("NEWS_RECENCY_DAYS", 30),
				ExtractContent:   getEnvAsBool("NEWS_EXTRACT_CONTENT", true),
				CurationBatch:    getEnvAsInt("NEWS_CURATION_BATCH", 20),
				ContentBudget:    getEnvAsInt("NEWS_CONTENT_BUDGET", 4000),
				AI: AIConfig{
					Provider:            strings.ToLower(getEnvOrDefault("AI_PROVIDER", "openai")),
					OpenAIAPIKey:        getEnvOrDefault("OPENAI_API_KEY", ""),
					OpenAIBaseURL:       getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
					GeminiAPIKey:        getEnvOrDefault("GEMINI_API_KEY", ""),
					Model:               getEnvOrDefault("AI_MODEL", "gpt-4o-mini"),
					EmbeddingModel:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
					EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
					Temperature:         getEnvAsFloat("AI_TEMPERATURE", 0.3),
					MaxTokens:           getEnvAsInt("AI_MAX_TOKENS", 1000),
					RelevanceKeywords:   getEnvAsList("AI_RELEVANCE_KEYWORDS", defaultRelevanceKeywords),
					TTSModel:            getEnvOrDefault("TTS_MODEL", "tts-1"),
					TTSVoice:            getEnvOrDefault("TTS_VOICE", "nova"),
					TTSFallbackVoice:    getEnvOrDefault("TTS_FALLBACK_VOICE", "alloy"),
					TTSSpeed:            getEnvAsFloat("TTS_SPEED", 1.0),
					RequestsPerMinute:   getEnvAsInt("AI_REQUESTS_PER_MINUTE", 0),
				},
				AudioDir:   getEnvOrDefault("NEWS_AUDIO_DIR", "./media/audio"),
				DigestSize: getEnvAsInt("NEWS_DIGEST_SIZE", 8),
			},
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	news := c.Features.News
	if !news.Enabled {
		return nil
	}

	if news.RateMaxDelay < news.RateMinDelay {
		return fmt.Errorf("rate limit max delay (%s) is below min delay (%s)", news.RateMaxDelay, news.RateMinDelay)
	}

	if news.MaxWorkers < 1 || news.MaxWorkers > 50 {
		return fmt.Errorf("max workers must be between 1 and 50")
	}

	switch news.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown AI provider %q", news.AI.Provider)
	}

	if news.AI.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	if news.AI.Temperature < 0 || news.AI.Temperature > 2 {
		return fmt.Errorf("AI temperature must be between 0 and 2")
	}

	return nil
}

// IsFeatureEnabled checks if a feature is enabled
func (c *Config) IsFeatureEnabled(featureName string) bool {
	switch strings.ToLower(featureName) {
	case "news":
		return c.Features.News.Enabled
	default:
		return false
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
