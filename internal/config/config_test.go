package config

import (
	"testing"
	"time"
)

func TestLoadAIProviderSettings(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_MODEL", "gemini-1.5-flash")

	cfg := Load()

	if cfg.AI.EmbeddingProvider != "ollama" {
		t.Errorf("AI.EmbeddingProvider = %q, want ollama", cfg.AI.EmbeddingProvider)
	}
	if cfg.AI.OllamaBaseURL != "http://ollama:11434" {
		t.Errorf("AI.OllamaBaseURL = %q", cfg.AI.OllamaBaseURL)
	}
	if cfg.AI.LLMProvider != "gemini" {
		t.Errorf("AI.LLMProvider = %q, want gemini", cfg.AI.LLMProvider)
	}
	if cfg.AI.LLMModel != "gemini-1.5-flash" {
		t.Errorf("AI.LLMModel = %q", cfg.AI.LLMModel)
	}
}

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("PIPELINE_REQUEST_BUDGET", "")
	t.Setenv("CHAT_THREAD_TTL", "")

	cfg := Load()

	if cfg.Pipeline.RequestBudget != 45*time.Second {
		t.Errorf("Pipeline.RequestBudget = %s, want 45s", cfg.Pipeline.RequestBudget)
	}
	if cfg.Pipeline.ThreadTTL != 720*time.Hour {
		t.Errorf("Pipeline.ThreadTTL = %s, want 720h", cfg.Pipeline.ThreadTTL)
	}
}

func TestValidateRequiresGeminiKey(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{JWTSecret: "secret"},
		Database: DatabaseConfig{Connection: "postgres://localhost/journal"},
		AI:       AIConfig{EmbeddingProvider: "gemini"},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted gemini provider without an API key")
	}

	cfg.Keys.GoogleGemini = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected complete config: %v", err)
	}
}
