package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8000"
	defaultGeminiModel    = "gemini-3-flash-preview"
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultOllamaModel    = "llava"
	defaultMaxUpload      = 20 << 20
	defaultRequestTimeout = 180
	defaultRetentionDays  = 30
	defaultSessionIdleMin = 60
	defaultMaxSessions    = 1000
)

type Config struct {
	Port string `yaml:"port"`

	LLMProvider    string `yaml:"llm_provider"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`
	AnthropicKey   string `yaml:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIModel    string `yaml:"openai_model"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`
	StrictSchema   bool   `yaml:"strict_schema"`

	MaxUploadBytes        int64 `yaml:"max_upload_bytes"`
	RequestTimeoutSeconds int   `yaml:"request_timeout_seconds"`

	// in-memory sessions: dropped after SessionIdleMinutes without use, at most MaxSessions kept
	SessionIdleMinutes int `yaml:"session_idle_minutes"`
	MaxSessions        int `yaml:"max_sessions"`

	DatabaseURL       string `yaml:"database_url"`
	RetentionSchedule string `yaml:"retention_schedule"`
	RetentionDays     int    `yaml:"retention_days"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	WebhookURL       string `yaml:"webhook_url"`
}

// Load reads config.yaml (or CONFIG_PATH), then .env, then the process environment.
// Invalid configuration is fatal.
func Load() *Config {
	cfg, err := load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func load() (*Config, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}

	var cfg Config
	path := getEnv("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Printf("config: loaded %s", path)
	}

	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	envOverride(&cfg.GeminiAPIKey, "API_KEY")
	envOverride(&cfg.GeminiModel, "GEMINI_MODEL")
	envOverride(&cfg.AnthropicKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envOverride(&cfg.OpenAIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIModel, "OPENAI_MODEL")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.OllamaURL, "OLLAMA_URL")
	envOverride(&cfg.OllamaModel, "OLLAMA_MODEL")
	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.RetentionSchedule, "RETENTION_SCHEDULE")
	envOverride(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envOverride(&cfg.WebhookURL, "WEBHOOK_URL")
	if err := envOverrideBool(&cfg.StrictSchema, "STRICT_SCHEMA"); err != nil {
		return nil, err
	}
	if err := envOverrideInt64(&cfg.MaxUploadBytes, "MAX_UPLOAD_BYTES"); err != nil {
		return nil, err
	}
	if err := envOverrideInt(&cfg.RequestTimeoutSeconds, "REQUEST_TIMEOUT_SECONDS"); err != nil {
		return nil, err
	}
	if err := envOverrideInt(&cfg.RetentionDays, "RETENTION_DAYS"); err != nil {
		return nil, err
	}
	if err := envOverrideInt(&cfg.SessionIdleMinutes, "SESSION_IDLE_MINUTES"); err != nil {
		return nil, err
	}
	if err := envOverrideInt(&cfg.MaxSessions, "MAX_SESSIONS"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = defaultPort
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "gemini"
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = defaultGeminiModel
	}
	if cfg.AnthropicModel == "" {
		cfg.AnthropicModel = defaultAnthropicModel
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = defaultOpenAIModel
	}
	if cfg.OllamaModel == "" {
		cfg.OllamaModel = defaultOllamaModel
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.RequestTimeoutSeconds == 0 && strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_SECONDS")) == "" {
		cfg.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.SessionIdleMinutes == 0 {
		cfg.SessionIdleMinutes = defaultSessionIdleMin
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromPostgresEnv()
	}

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("API_KEY (or GEMINI_API_KEY) is required when llm_provider=gemini")
		}
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required when llm_provider=openai")
		}
	case "ollama":
		if cfg.OllamaURL == "" {
			cfg.OllamaURL = "http://localhost:11434"
		}
	default:
		return nil, fmt.Errorf("llm_provider must be gemini, anthropic, openai or ollama, got %q", cfg.LLMProvider)
	}
	if cfg.MaxUploadBytes < 0 {
		return nil, fmt.Errorf("invalid max_upload_bytes %d: must be > 0", cfg.MaxUploadBytes)
	}
	if cfg.RequestTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds %d: must be >= 0", cfg.RequestTimeoutSeconds)
	}
	if cfg.SessionIdleMinutes < 0 {
		return nil, fmt.Errorf("invalid session_idle_minutes %d: must be > 0", cfg.SessionIdleMinutes)
	}
	if cfg.MaxSessions < 0 {
		return nil, fmt.Errorf("invalid max_sessions %d: must be > 0", cfg.MaxSessions)
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("invalid retention_days %d: must be > 0", cfg.RetentionDays)
	}
	return &cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envOverride(field *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*field = v
	}
}

func envOverrideBool(field *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = b
	return nil
}

func envOverrideInt(field *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = n
	return nil
}

func envOverrideInt64(field *int64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = n
	return nil
}

// dsnFromPostgresEnv builds a DSN from POSTGRES_* / PG* only when POSTGRES_DB or PGHOST is set;
// otherwise the recognition log stays disabled.
func dsnFromPostgresEnv() string {
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if db == "" && host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "alpd"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "alpd"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SessionIdleTTL is how long an unused session is kept in memory.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// RecognitionLogEnabled reports whether a database is configured.
func (c *Config) RecognitionLogEnabled() bool { return strings.TrimSpace(c.DatabaseURL) != "" }

// SafeDSNSummary renders the DSN without the password, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
