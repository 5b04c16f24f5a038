package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Embedding(t *testing.T) {
	t.Run("GENAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GENAI_API_KEY sets provider if ollama", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{
			Embedding: EmbeddingConfig{Provider: "ollama"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GENAI_API_KEY does not override other providers", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{
			Embedding: EmbeddingConfig{Provider: "mock"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "mock", cfg.Embedding.Provider)
	})

	t.Run("GEMINI_API_KEY fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("GENAI_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GENAI_API_KEY priority over GEMINI_API_KEY", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
	})

	t.Run("explicit provider override", func(t *testing.T) {
		t.Setenv("JAYBRAIN_EMBEDDING_PROVIDER", "mock")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "mock", cfg.Embedding.Provider)
	})

	t.Run("Ollama overrides", func(t *testing.T) {
		t.Setenv("OLLAMA_ENDPOINT", "http://custom:11434")
		t.Setenv("OLLAMA_EMBEDDING_MODEL", "custom-model")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://custom:11434", cfg.Embedding.OllamaEndpoint)
		assert.Equal(t, "custom-model", cfg.Embedding.OllamaModel)
	})
}

func TestEnvOverrides_Thresholds(t *testing.T) {
	t.Run("half life", func(t *testing.T) {
		t.Setenv("JAYBRAIN_HALF_LIFE_DAYS", "45")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, float64(45), cfg.Retrieval.BaseHalfLifeDays)
	})

	t.Run("malformed number keeps default", func(t *testing.T) {
		t.Setenv("JAYBRAIN_HALF_LIFE_DAYS", "soon")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, float64(90), cfg.Retrieval.BaseHalfLifeDays)
	})

	t.Run("idle threshold", func(t *testing.T) {
		t.Setenv("JAYBRAIN_IDLE_THRESHOLD_MIN", "45")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 45, cfg.Jobs.IdleThresholdMinutes)
	})

	t.Run("study threshold and window", func(t *testing.T) {
		t.Setenv("JAYBRAIN_STUDY_THRESHOLD", "3")
		t.Setenv("JAYBRAIN_STUDY_WINDOW", "12h")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 3, cfg.Checks.StudyDueThreshold)
		assert.Equal(t, "12h", cfg.Checks.StudyWindow)
	})

	t.Run("exam date", func(t *testing.T) {
		t.Setenv("JAYBRAIN_EXAM_DATE", "2026-11-03")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "2026-11-03", cfg.Forge.ExamDate)
	})
}

func TestEnvOverrides_Lists(t *testing.T) {
	t.Run("allow hosts split and trimmed", func(t *testing.T) {
		t.Setenv("JAYBRAIN_ALLOW_HOSTS", "vault.lan, nas.lan ,")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"vault.lan", "nas.lan"}, cfg.Guard.AllowHosts)
	})

	t.Run("watch roots", func(t *testing.T) {
		t.Setenv("JAYBRAIN_WATCH_ROOTS", "/home/j/projects,/srv/code")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"/home/j/projects", "/srv/code"}, cfg.Vault.WatchRoots)
	})

	t.Run("file roots", func(t *testing.T) {
		t.Setenv("JAYBRAIN_FILE_ROOTS", "/srv/homelab")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"/srv/homelab"}, cfg.Homelab.FileRoots)
	})

	t.Run("webhook url", func(t *testing.T) {
		t.Setenv("JAYBRAIN_WEBHOOK_URL", "https://example.com/hook")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "https://example.com/hook", cfg.Notify.WebhookURL)
	})
}
