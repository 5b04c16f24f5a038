// Package config holds all jaybrain runtime configuration.
//
// Resolution order: built-in defaults, then an optional YAML file under the
// data directory, then environment variables. Every runtime threshold is
// overridable from the environment so hook scripts and the daemon can be
// tuned without editing files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all jaybrain configuration.
type Config struct {
	// DataDir is resolved at startup (flag > JAYBRAIN_DATA_DIR > ~/.jaybrain)
	// and never persisted to the config file.
	DataDir string `yaml:"-"`

	// Store settings
	Store StoreConfig `yaml:"store"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Retrieval decay and fusion parameters
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Cross-session pulse
	Pulse PulseConfig `yaml:"pulse"`

	// Scheduler daemon
	Daemon DaemonConfig `yaml:"daemon"`

	// Scheduled job triggers
	Jobs JobsConfig `yaml:"jobs"`

	// Heartbeat check thresholds and rate-limit windows
	Checks ChecksConfig `yaml:"checks"`

	// Spaced-repetition engine
	Forge ForgeConfig `yaml:"forge"`

	// Notification transport
	Notify NotifyConfig `yaml:"notify"`

	// Vault sync
	Vault VaultConfig `yaml:"vault"`

	// Trash scanning
	Trash TrashConfig `yaml:"trash"`

	// Homelab file operations
	Homelab HomelabConfig `yaml:"homelab"`

	// Browser automation
	Browser BrowserConfig `yaml:"browser"`

	// Outbound URL guard
	Guard GuardConfig `yaml:"guard"`
}

// StoreConfig configures the embedded store.
type StoreConfig struct {
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout string `yaml:"busy_timeout"` // Default: "10s"
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider string `yaml:"provider" json:"provider"`

	// Ollama Configuration (local embedding server)
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"` // Default: "http://localhost:11434"
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`       // Default: "embeddinggemma"

	// GenAI Configuration (Google cloud embedding)
	GenAIAPIKey string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model" json:"genai_model"` // Default: "gemini-embedding-001"

	// TaskType for GenAI embeddings (SEMANTIC_SIMILARITY, RETRIEVAL_QUERY, ...)
	TaskType string `yaml:"task_type" json:"task_type"`

	// Dimensions of stored vectors. Changing this invalidates the vector index.
	Dimensions int `yaml:"dimensions"` // Default: 384
}

// RetrievalConfig configures decay scoring and hybrid fusion.
type RetrievalConfig struct {
	BaseHalfLifeDays float64 `yaml:"base_half_life_days"` // Default: 90
	AccessBonusDays  float64 `yaml:"access_bonus_days"`   // Default: 30
	MaxHalfLifeDays  float64 `yaml:"max_half_life_days"`  // Default: 730
	MinDecay         float64 `yaml:"min_decay"`           // Default: 0.05
	VectorWeight     float64 `yaml:"vector_weight"`       // Default: 0.6
	KeywordWeight    float64 `yaml:"keyword_weight"`      // Default: 0.4
}

// PulseConfig configures the cross-session pulse reader.
type PulseConfig struct {
	// TranscriptsDir is where the assistant host writes per-session JSONL
	// transcripts. Default: ~/.claude/projects
	TranscriptsDir string `yaml:"transcripts_dir"`
}

// DaemonConfig configures the scheduler daemon.
type DaemonConfig struct {
	HeartbeatEvery string `yaml:"heartbeat_every"` // Default: "30s"
	Workers        int    `yaml:"workers"`         // Default: 4
	JobTimeout     string `yaml:"job_timeout"`     // Default: "5m"
}

// JobsConfig configures scheduled job triggers. Interval values are Go
// duration strings; *At values are HH:MM local times.
type JobsConfig struct {
	FeedPollEvery     string `yaml:"feed_poll_every"`     // Default: "30m"
	VaultSyncEvery    string `yaml:"vault_sync_every"`    // Default: "1h"
	TrashSweepEvery   string `yaml:"trash_sweep_every"`   // Default: "24h"
	GitShadowEvery    string `yaml:"git_shadow_every"`    // Default: "15m"
	SessionCrashEvery string `yaml:"session_crash_every"` // Default: "10m"
	WeeklyEvery       string `yaml:"weekly_every"`        // Default: "168h"

	StudyMorningAt string `yaml:"study_morning_at"` // Default: "08:00"
	StudyEveningAt string `yaml:"study_evening_at"` // Default: "20:00"
	BriefingAt     string `yaml:"briefing_at"`      // Default: "07:00"
	ArchiveAt      string `yaml:"archive_at"`       // Default: "02:00"

	// ArchiveMaxAgeDays bounds which transcripts the conversation archive
	// considers.
	ArchiveMaxAgeDays int `yaml:"archive_max_age_days"` // Default: 7

	// IdleThresholdMinutes is the max gap between activity rows still counted
	// as continuous work in time-allocation reports.
	IdleThresholdMinutes int `yaml:"idle_threshold_minutes"` // Default: 30

	// DomainPrefixes maps working directories to life domains. First match
	// wins, so order from most to least specific.
	DomainPrefixes []DomainPrefix `yaml:"domain_prefixes"`
}

// DomainPrefix maps a cwd prefix to a life domain name.
type DomainPrefix struct {
	Prefix string `yaml:"prefix"`
	Domain string `yaml:"domain"`
}

// ChecksConfig configures heartbeat check thresholds and notification
// rate-limit windows.
type ChecksConfig struct {
	// StudyDueThreshold is how many due concepts trigger a study nudge
	// outside the final pre-exam week.
	StudyDueThreshold int `yaml:"study_due_threshold"` // Default: 5

	// StaleApplicationDays flags applications sitting in 'applied'.
	StaleApplicationDays int `yaml:"stale_application_days"` // Default: 14

	// Rate-limit windows per check family.
	StudyWindow        string `yaml:"study_window"`         // Default: "20h"
	CountdownWindow    string `yaml:"countdown_window"`     // Default: "22h"
	StaleAppsWindow    string `yaml:"stale_apps_window"`    // Default: "22h"
	SessionCrashWindow string `yaml:"session_crash_window"` // Default: "2h"
	WeeklyWindow       string `yaml:"weekly_window"`        // Default: "160h"

	// Custom checks loaded from <data-dir>/checks/*.go via the interpreter.
	CustomEvery  string `yaml:"custom_every"`  // Default: "1h"
	CustomWindow string `yaml:"custom_window"` // Default: "6h"
}

// ForgeConfig configures the spaced-repetition engine.
type ForgeConfig struct {
	// ExamDate in YYYY-MM-DD; empty disables exam-aware behaviour.
	ExamDate string `yaml:"exam_date"`

	// QueueLimit caps the interleaved study queue length.
	QueueLimit int `yaml:"queue_limit"` // Default: 20
}

// NotifyConfig configures the outbound notification transport.
type NotifyConfig struct {
	// WebhookURL receives notification POSTs; empty falls back to stderr.
	WebhookURL string `yaml:"webhook_url"`

	// RatePerSecond and Burst shape outbound message flow.
	RatePerSecond float64 `yaml:"rate_per_second"` // Default: 1
	Burst         int     `yaml:"burst"`           // Default: 3

	// MaxMessageLen is the transport's hard length budget per message.
	MaxMessageLen int `yaml:"max_message_len"` // Default: 4096
}

// VaultConfig configures the markdown vault mirror.
type VaultConfig struct {
	// Path of the vault tree. Empty means <data-dir>/vault.
	Path string `yaml:"path"`

	// WatchRoots are directories the file-deletion watcher observes.
	WatchRoots []string `yaml:"watch_roots"`

	// GitShadowRepos are repositories the shadow snapshot job covers.
	GitShadowRepos []string `yaml:"git_shadow_repos"`
}

// TrashConfig configures the soft-delete recycle bin.
type TrashConfig struct {
	// ScanRoots are directories scan_files walks when looking for
	// auto-trashable artifacts.
	ScanRoots []string `yaml:"scan_roots"`
}

// HomelabConfig configures the file-operation tools.
type HomelabConfig struct {
	// FileRoots is the allowlist of directories file_read/file_write may
	// touch. Empty disables the tools.
	FileRoots []string `yaml:"file_roots"`

	// MaxReadBytes caps file_read responses.
	MaxReadBytes int `yaml:"max_read_bytes"` // Default: 262144
}

// BrowserConfig configures browser automation.
type BrowserConfig struct {
	Headless bool   `yaml:"headless"` // Default: true
	Timeout  string `yaml:"timeout"`  // Default: "30s"
}

// GuardConfig configures the outbound URL guard.
type GuardConfig struct {
	// AllowHosts bypass DNS validation entirely (e.g. a LAN-only vault host).
	AllowHosts []string `yaml:"allow_hosts"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			BusyTimeout: "10s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
			Dimensions:     384,
		},

		Retrieval: RetrievalConfig{
			BaseHalfLifeDays: 90,
			AccessBonusDays:  30,
			MaxHalfLifeDays:  730,
			MinDecay:         0.05,
			VectorWeight:     0.6,
			KeywordWeight:    0.4,
		},

		Pulse: PulseConfig{
			TranscriptsDir: defaultTranscriptsDir(),
		},

		Daemon: DaemonConfig{
			HeartbeatEvery: "30s",
			Workers:        4,
			JobTimeout:     "5m",
		},

		Jobs: JobsConfig{
			FeedPollEvery:        "30m",
			VaultSyncEvery:       "1h",
			TrashSweepEvery:      "24h",
			GitShadowEvery:       "15m",
			SessionCrashEvery:    "10m",
			WeeklyEvery:          "168h",
			StudyMorningAt:       "08:00",
			StudyEveningAt:       "20:00",
			BriefingAt:           "07:00",
			ArchiveAt:            "02:00",
			ArchiveMaxAgeDays:    7,
			IdleThresholdMinutes: 30,
		},

		Checks: ChecksConfig{
			StudyDueThreshold:    5,
			StaleApplicationDays: 14,
			StudyWindow:          "20h",
			CountdownWindow:      "22h",
			StaleAppsWindow:      "22h",
			SessionCrashWindow:   "2h",
			WeeklyWindow:         "160h",
			CustomEvery:          "1h",
			CustomWindow:         "6h",
		},

		Forge: ForgeConfig{
			QueueLimit: 20,
		},

		Notify: NotifyConfig{
			RatePerSecond: 1,
			Burst:         3,
			MaxMessageLen: 4096,
		},

		Browser: BrowserConfig{
			Headless: true,
			Timeout:  "30s",
		},

		Homelab: HomelabConfig{
			MaxReadBytes: 262144,
		},
	}
}

// defaultTranscriptsDir returns the assistant host's transcript directory.
func defaultTranscriptsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude/projects"
	}
	return filepath.Join(home, ".claude", "projects")
}

// ResolveDataDir resolves the data directory: explicit flag value, then
// JAYBRAIN_DATA_DIR, then ~/.jaybrain.
func ResolveDataDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv("JAYBRAIN_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".jaybrain")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadFromDataDir resolves the data directory, loads .env files (real
// environment wins over .env contents), then loads <data-dir>/config.yaml.
func LoadFromDataDir(dataDir string) (*Config, error) {
	dataDir = ResolveDataDir(dataDir)

	// godotenv never overwrites variables already set in the environment.
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))
	_ = godotenv.Load()

	cfg, err := Load(filepath.Join(dataDir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Embedding keys (GENAI_API_KEY preferred, GEMINI_API_KEY legacy)
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if provider := os.Getenv("JAYBRAIN_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if model := os.Getenv("OLLAMA_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}

	// Retrieval thresholds
	if v, ok := envFloat("JAYBRAIN_HALF_LIFE_DAYS"); ok {
		c.Retrieval.BaseHalfLifeDays = v
	}
	if v, ok := envFloat("JAYBRAIN_ACCESS_BONUS_DAYS"); ok {
		c.Retrieval.AccessBonusDays = v
	}
	if v, ok := envFloat("JAYBRAIN_MAX_HALF_LIFE_DAYS"); ok {
		c.Retrieval.MaxHalfLifeDays = v
	}

	// Pulse
	if dir := os.Getenv("JAYBRAIN_TRANSCRIPTS_DIR"); dir != "" {
		c.Pulse.TranscriptsDir = dir
	}

	// Jobs
	if v, ok := envInt("JAYBRAIN_IDLE_THRESHOLD_MIN"); ok {
		c.Jobs.IdleThresholdMinutes = v
	}

	// Checks
	if v, ok := envInt("JAYBRAIN_STUDY_THRESHOLD"); ok {
		c.Checks.StudyDueThreshold = v
	}
	if v, ok := envInt("JAYBRAIN_STALE_APP_DAYS"); ok {
		c.Checks.StaleApplicationDays = v
	}
	if w := os.Getenv("JAYBRAIN_STUDY_WINDOW"); w != "" {
		c.Checks.StudyWindow = w
	}

	// Forge
	if date := os.Getenv("JAYBRAIN_EXAM_DATE"); date != "" {
		c.Forge.ExamDate = date
	}

	// Notify
	if url := os.Getenv("JAYBRAIN_WEBHOOK_URL"); url != "" {
		c.Notify.WebhookURL = url
	}

	// Vault
	if dir := os.Getenv("JAYBRAIN_VAULT_DIR"); dir != "" {
		c.Vault.Path = dir
	}
	if roots := os.Getenv("JAYBRAIN_WATCH_ROOTS"); roots != "" {
		c.Vault.WatchRoots = splitList(roots)
	}
	if repos := os.Getenv("JAYBRAIN_GIT_SHADOW_REPOS"); repos != "" {
		c.Vault.GitShadowRepos = splitList(repos)
	}

	// Homelab
	if roots := os.Getenv("JAYBRAIN_FILE_ROOTS"); roots != "" {
		c.Homelab.FileRoots = splitList(roots)
	}

	// Guard
	if hosts := os.Getenv("JAYBRAIN_ALLOW_HOSTS"); hosts != "" {
		c.Guard.AllowHosts = splitList(hosts)
	}
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// Path helpers
// =============================================================================

// StorePath returns the primary database file path.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "jaybrain.db")
}

// TrashDir returns the recycle bin root.
func (c *Config) TrashDir() string {
	return filepath.Join(c.DataDir, "trash")
}

// SessionsDir returns where session handoff files are written.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// ActiveSessionPath returns the active-session pointer file.
func (c *Config) ActiveSessionPath() string {
	return filepath.Join(c.DataDir, ".active_session")
}

// LockFilePath returns the daemon singleton lock file. It doubles as the
// PID file: the owning daemon's PID, one line.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.DataDir, "daemon.pid")
}

// ProfilePath returns the user profile file.
func (c *Config) ProfilePath() string {
	return filepath.Join(c.DataDir, "profile.yaml")
}

// ChecksDir returns where interpreter-loaded custom checks live.
func (c *Config) ChecksDir() string {
	return filepath.Join(c.DataDir, "checks")
}

// ArchiveDir returns the conversation archive root.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

// VaultPath returns the vault root, defaulting under the data dir.
func (c *Config) VaultPath() string {
	if c.Vault.Path != "" {
		return c.Vault.Path
	}
	return filepath.Join(c.DataDir, "vault")
}

// =============================================================================
// Duration getters
// =============================================================================

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// GetBusyTimeout returns the store busy timeout as a duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return parseDurationOr(c.Store.BusyTimeout, 10*time.Second)
}

// GetHeartbeatInterval returns the daemon heartbeat interval.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return parseDurationOr(c.Daemon.HeartbeatEvery, 30*time.Second)
}

// GetJobTimeout returns the per-job execution timeout.
func (c *Config) GetJobTimeout() time.Duration {
	return parseDurationOr(c.Daemon.JobTimeout, 5*time.Minute)
}

// GetBrowserTimeout returns the browser automation timeout.
func (c *Config) GetBrowserTimeout() time.Duration {
	return parseDurationOr(c.Browser.Timeout, 30*time.Second)
}

// GetIdleThreshold returns the time-allocation idle gap threshold.
func (c *Config) GetIdleThreshold() time.Duration {
	return time.Duration(c.Jobs.IdleThresholdMinutes) * time.Minute
}

// GetExamDate parses the configured exam date. Returns zero time when unset
// or malformed.
func (c *Config) GetExamDate() time.Time {
	if c.Forge.ExamDate == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", c.Forge.ExamDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
