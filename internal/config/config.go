package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	DBHost      string `yaml:"db_host"`
	DBPort      string `yaml:"db_port"`
	DBUser      string `yaml:"db_user"`
	DBPassword  string `yaml:"db_password"`
	DBName      string `yaml:"db_name"`
	DBSSLMode   string `yaml:"db_sslmode"`

	JWTSecret   string   `yaml:"jwt_secret"`
	ServerPort  string   `yaml:"server_port"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`

	AI       AIConfig       `yaml:"ai"`
	Telegram TelegramConfig `yaml:"telegram"`

	DraftTTL time.Duration `yaml:"draft_ttl"`
}

// AIConfig selects and configures the text generation provider.
type AIConfig struct {
	Provider      string  `yaml:"provider"` // gemini, openai
	GeminiAPIKey  string  `yaml:"gemini_api_key"`
	GeminiModel   string  `yaml:"gemini_model"`
	StreamModel   string  `yaml:"stream_model"`
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIAPIURL  string  `yaml:"openai_api_url"`
	OpenAIModel   string  `yaml:"openai_model"`
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

// TelegramConfig enables the respondent bot when BotToken is set.
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	APIURL        string `yaml:"api_url"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func Default() *Config {
	return &Config{
		DBHost:      "localhost",
		DBPort:      "5432",
		DBUser:      "postgres",
		DBPassword:  "postgres",
		DBName:      "chatforms",
		DBSSLMode:   "disable",
		JWTSecret:   "super-secret-key-change-me",
		ServerPort:  "8080",
		CORSOrigins: []string{"*"},
		LogLevel:    "info",
		AI: AIConfig{
			Provider:      "gemini",
			GeminiModel:   "gemini-1.5-pro-002",
			StreamModel:   "gemini-1.5-pro-002",
			OpenAIAPIURL:  "https://api.openai.com/v1",
			OpenAIModel:   "gpt-4o-mini",
			RatePerMinute: 20,
			Burst:         5,
		},
		DraftTTL: 2 * time.Hour,
	}
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment overrides on top of it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.AI.Provider = getEnv("AI_PROVIDER", c.AI.Provider)
	c.AI.GeminiAPIKey = getEnv("GOOGLE_GENERATIVE_AI_API_KEY", c.AI.GeminiAPIKey)
	c.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.AI.GeminiAPIKey)
	c.AI.GeminiModel = getEnv("GEMINI_MODEL", c.AI.GeminiModel)
	c.AI.StreamModel = getEnv("GEMINI_STREAM_MODEL", c.AI.StreamModel)
	c.AI.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIAPIURL = getEnv("OPENAI_API_URL", c.AI.OpenAIAPIURL)
	c.AI.OpenAIModel = getEnv("OPENAI_MODEL", c.AI.OpenAIModel)

	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.APIURL = getEnv("TELEGRAM_API_URL", c.Telegram.APIURL)
	c.Telegram.WebhookURL = getEnv("TELEGRAM_WEBHOOK_URL", c.Telegram.WebhookURL)
	c.Telegram.WebhookSecret = getEnv("TELEGRAM_WEBHOOK_SECRET", c.Telegram.WebhookSecret)

	if v, err := strconv.ParseFloat(os.Getenv("AI_RATE_PER_MINUTE"), 64); err == nil {
		c.AI.RatePerMinute = v
	}
	if v, err := strconv.Atoi(os.Getenv("AI_BURST")); err == nil {
		c.AI.Burst = v
	}
	if v, err := time.ParseDuration(os.Getenv("DRAFT_TTL")); err == nil {
		c.DraftTTL = v
	}
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret must not be empty")
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram webhook url set without a bot token")
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("draft ttl must be positive")
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a keyword DSN built from the
// individual DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
