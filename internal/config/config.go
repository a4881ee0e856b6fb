package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Ai        AIConfig
}

type AppConfig struct {
	Port            string
	Environment     string
	LogFilePath     string
	RealtimeLogPath string
	CorsOrigin      string
	NatsURL         string
	RedisURL        string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string // "postgres" or "memory"
	Connection  string
	AutoMigrate bool
}

type AuthConfig struct {
	JwtSecret    string
	CookieSecret string
	CookieDomain string
	TokenTTL     time.Duration
}

type RateLimitConfig struct {
	AuthLimit int
	ChatLimit int
	WsLimit   int
	Window    time.Duration
	Sweep     time.Duration
}

type AIConfig struct {
	LLMProvider   string // "groq", "openai", "ollama"
	LLMModel      string
	LLMBaseURL    string
	GroqAPIKey    string
	OllamaBaseURL string
	Timeout       time.Duration
	ContextWindow int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:            getEnv("PORT", "5000"),
			Environment:     getEnv("GO_ENV", "development"),
			LogFilePath:     getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogPath: getEnv("REALTIME_LOG_PATH", "logs/realtime.log"),
			CorsOrigin:      getEnv("CORS_ORIGIN", "http://localhost:5173"),
			NatsURL:         getEnv("NATS_URL", ""),
			RedisURL:        getEnv("REDIS_URL", ""),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("STORAGE_DRIVER", StorageDriverPostgres),
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			JwtSecret:    getEnv("JWT_SECRET", ""),
			CookieSecret: getEnv("COOKIE_SECRET", ""),
			CookieDomain: getEnv("COOKIE_DOMAIN", ""),
			TokenTTL:     getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			AuthLimit: getEnvAsInt("AUTH_RATE_LIMIT", 10),
			ChatLimit: getEnvAsInt("CHAT_RATE_LIMIT", 6),
			WsLimit:   getEnvAsInt("WS_RATE_LIMIT", 6),
			Window:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			Sweep:     getEnvAsDuration("RATE_LIMIT_SWEEP", 5*time.Minute),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "groq"),
			LLMModel:      getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			ContextWindow: getEnvAsInt("CONTEXT_WINDOW", 8),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate reports configuration that would make the server unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JwtSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.Auth.CookieSecret == "" {
		errs = append(errs, errors.New("COOKIE_SECRET is not set"))
	}
	switch c.Database.Driver {
	case StorageDriverPostgres:
		if c.Database.Connection == "" {
			errs = append(errs, errors.New("DB_CONNECTION_STRING is not set"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be postgres or memory"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.ToLower(getEnv(key, ""))
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
