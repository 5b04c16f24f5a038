package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "10s", cfg.Store.BusyTimeout)
	assert.Equal(t, 10*time.Second, cfg.GetBusyTimeout())
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 0.6, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 0.4, cfg.Retrieval.KeywordWeight)
	assert.Equal(t, float64(90), cfg.Retrieval.BaseHalfLifeDays)
	assert.Equal(t, float64(730), cfg.Retrieval.MaxHalfLifeDays)
	assert.Equal(t, 30*time.Second, cfg.GetHeartbeatInterval())
	assert.Equal(t, 5*time.Minute, cfg.GetJobTimeout())
	assert.Equal(t, 4, cfg.Daemon.Workers)
	assert.Equal(t, "30m", cfg.Jobs.FeedPollEvery)
	assert.Equal(t, "15m", cfg.Jobs.GitShadowEvery)
	assert.Equal(t, 30*time.Minute, cfg.GetIdleThreshold())
	assert.Equal(t, 4096, cfg.Notify.MaxMessageLen)
	assert.Equal(t, 262144, cfg.Homelab.MaxReadBytes)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "10s", cfg.Store.BusyTimeout)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Embedding.Provider = "genai"
	cfg.Forge.ExamDate = "2026-11-03"
	cfg.Guard.AllowHosts = []string{"vault.lan"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "genai", loaded.Embedding.Provider)
	assert.Equal(t, "2026-11-03", loaded.Forge.ExamDate)
	assert.Equal(t, []string{"vault.lan"}, loaded.Guard.AllowHosts)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestResolveDataDir(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv("JAYBRAIN_DATA_DIR", "/env/dir")
		assert.Equal(t, "/flag/dir", ResolveDataDir("/flag/dir"))
	})

	t.Run("env when no flag", func(t *testing.T) {
		t.Setenv("JAYBRAIN_DATA_DIR", "/env/dir")
		assert.Equal(t, "/env/dir", ResolveDataDir(""))
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("JAYBRAIN_DATA_DIR", "")
		dir := ResolveDataDir("")
		assert.Contains(t, dir, ".jaybrain")
	})
}

func TestPathHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "jaybrain.db"), cfg.StorePath())
	assert.Equal(t, filepath.Join("/data", "daemon.pid"), cfg.LockFilePath())
	assert.Equal(t, filepath.Join("/data", ".active_session"), cfg.ActiveSessionPath())
	assert.Equal(t, filepath.Join("/data", "profile.yaml"), cfg.ProfilePath())
	assert.Equal(t, filepath.Join("/data", "vault"), cfg.VaultPath())

	cfg.Vault.Path = "/elsewhere/vault"
	assert.Equal(t, "/elsewhere/vault", cfg.VaultPath())
}

func TestGetExamDate(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.GetExamDate().IsZero())

	cfg.Forge.ExamDate = "2026-11-03"
	assert.Equal(t, time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC), cfg.GetExamDate())

	cfg.Forge.ExamDate = "garbage"
	assert.True(t, cfg.GetExamDate().IsZero())
}
