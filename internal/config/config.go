package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DataFile     string

	// AMQP (optional entry-change events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Advice generation
	AIProvider        string
	AIAPIKey          string
	AIBaseURL         string
	AIModel           string
	AITimeout         time.Duration
	AITemperature     float64
	AIMaxOutputTokens int

	AdviceRateLimitPerMinute int
	AdviceRateLimitBurst     int

	// Google Sheets export (worker)
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSheetPrefix        string

	// Month view cache
	CacheTTL time.Duration
}

var (
	validBackends  = []string{"sqlite", "file", "memory"}
	validProviders = []string{"gemini", "groq"}
)

func Load() *Config {
	provider := strings.ToLower(getEnv("AI_PROVIDER", "gemini"))
	defaultBaseURL := "https://generativelanguage.googleapis.com/v1beta"
	defaultModel := "gemini-3-flash-preview"
	if provider == "groq" {
		defaultBaseURL = "https://api.groq.com/openai/v1"
		defaultModel = "llama-3.1-8b-instant"
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/orcamento.db"),
		DataFile:     getEnv("DATA_FILE", "./data/budget_entries.json"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "orcamento"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_events"),

		AIProvider:        provider,
		AIAPIKey:          firstEnv("AI_API_KEY", "GEMINI_API_KEY", "API_KEY"),
		AIBaseURL:         getEnv("AI_BASE_URL", defaultBaseURL),
		AIModel:           getEnv("AI_MODEL", defaultModel),
		AITimeout:         getEnvDuration("AI_TIMEOUT", 30*time.Second),
		AITemperature:     getEnvFloat("AI_TEMPERATURE", 0.7),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 800),

		AdviceRateLimitPerMinute: getEnvInt("ADVICE_RATE_LIMIT_PER_MINUTE", 6),
		AdviceRateLimitBurst:     getEnvInt("ADVICE_RATE_LIMIT_BURST", 2),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: firstEnv("GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"),
		GoogleSheetPrefix:        getEnv("GOOGLE_SHEET_PREFIX", "Orçamento"),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case "file":
		if c.DataFile == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		} else if msg := ensureDir(c.DataFile); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validProviders, c.AIProvider) {
		errors = append(errors, fmt.Sprintf("invalid AI provider '%s': must be one of %v", c.AIProvider, validProviders))
	}
	if u, err := url.Parse(c.AIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid AI base URL '%s'", c.AIBaseURL))
	}
	if strings.TrimSpace(c.AIModel) == "" {
		errors = append(errors, "AI model cannot be empty")
	}
	if c.AITimeout < time.Second || c.AITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be between 1s and 5m", c.AITimeout))
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid AI temperature %v: must be between 0 and 2", c.AITemperature))
	}
	if c.AIMaxOutputTokens < 1 || c.AIMaxOutputTokens > 65536 {
		errors = append(errors, fmt.Sprintf("invalid AI max output tokens %d: must be between 1 and 65536", c.AIMaxOutputTokens))
	}
	if c.AdviceRateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid advice rate limit %d: must be at least 1", c.AdviceRateLimitPerMinute))
	}
	if c.AdviceRateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid advice rate limit burst %d: must be at least 1", c.AdviceRateLimitBurst))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.CacheTTL < time.Second || c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 1s and 24h", c.CacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the extra settings the export worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.DataBackend != "sqlite" {
		errors = append(errors, "the export worker requires the sqlite backend")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the export worker")
	}
	// Without a spreadsheet the worker runs as a dry run.
	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// HasAICredential reports whether an API key was configured.
func (c *Config) HasAICredential() bool {
	return strings.TrimSpace(c.AIAPIKey) != ""
}

func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create data directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
