package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"soul-journal-be/internal/apperr"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	AI       AIConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

// PipelineConfig tunes the query pipeline without recompiling.
type PipelineConfig struct {
	EmbedEntryTopic string
	RequestBudget   time.Duration
	ThreadTTL       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		AI: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Pipeline: PipelineConfig{
			EmbedEntryTopic: getEnv("EMBED_ENTRY_TOPIC_NAME", "EMBED_JOURNAL_ENTRY"),
			RequestBudget:   getEnvAsDuration("PIPELINE_REQUEST_BUDGET", 45*time.Second),
			ThreadTTL:       getEnvAsDuration("CHAT_THREAD_TTL", 720*time.Hour),
		},
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.Connection == "" {
		return apperr.New(apperr.KindConfiguration, "DB_CONNECTION_STRING is required")
	}
	if c.App.JWTSecret == "" {
		return apperr.New(apperr.KindConfiguration, "JWT_SECRET is required")
	}
	if c.AI.EmbeddingProvider == "gemini" && c.Keys.GoogleGemini == "" {
		return apperr.New(apperr.KindConfiguration, "GOOGLE_GEMINI_API_KEY is required for the gemini embedding provider")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
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
