// Package logging provides categorized file-based logging for jaybrain.
// Logs are written to <data-dir>/logs/ with separate files per category.
// Logging is off unless JAYBRAIN_DEBUG=1; level and category filters come
// from JAYBRAIN_LOG_LEVEL and JAYBRAIN_LOG_CATEGORIES.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup/initialization
	CategoryStore     Category = "store"     // SQLite store operations
	CategoryEmbedding Category = "embedding" // Embedding engine
	CategoryRetrieval Category = "retrieval" // Hybrid recall, decay scoring
	CategoryHooks     Category = "hooks"     // Hook event ingest
	CategoryPulse     Category = "pulse"     // Cross-session activity reads
	CategoryDaemon    Category = "daemon"    // Scheduler daemon lifecycle
	CategoryChecks    Category = "checks"    // Heartbeat check evaluation
	CategoryForge     Category = "forge"     // Spaced-repetition engine
	CategoryGraph     Category = "graph"     // Knowledge graph
	CategoryTools     Category = "tools"     // Tool surface dispatch
	CategoryMCP       Category = "mcp"       // Stdio protocol framing
	CategoryJobs      Category = "jobs"      // Auxiliary scheduled jobs
	CategoryVault     Category = "vault"     // Vault sync / wiki-links
	CategoryTrash     Category = "trash"     // Recycle bin
	CategoryBrowser   Category = "browser"   // Browser automation
	CategoryNotify    Category = "notify"    // Notification transport
)

// loggingConfig is resolved once from the environment at Initialize time.
type loggingConfig struct {
	DebugMode  bool
	Categories map[string]bool
	Level      string
	JSONFormat bool
}

// StructuredLogEntry is the JSON log line shape used when JSON format is on.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`  // Unix milliseconds
	Category  string                 `json:"cat"` // Log category
	Level     string                 `json:"lvl"` // debug/info/warn/error
	Message   string                 `json:"msg"` // Log message
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and reads the env config.
// Should be called once at startup with the data directory path. Safe to
// skip entirely; everything degrades to a no-op.
func Initialize(dataDir string) error {
	if dataDir == "" {
		return fmt.Errorf("data directory required")
	}

	logsDir = filepath.Join(dataDir, "logs")
	loadConfig()

	// Production mode: no log dir, no files, silent no-op loggers.
	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== jaybrain logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", config.Level)
	if len(config.Categories) > 0 {
		boot.Info("Category filter: %v", config.Categories)
	}
	return nil
}

// loadConfig resolves logging behaviour from the environment.
func loadConfig() {
	configMu.Lock()
	defer configMu.Unlock()

	config = loggingConfig{
		DebugMode:  os.Getenv("JAYBRAIN_DEBUG") == "1" || strings.EqualFold(os.Getenv("JAYBRAIN_DEBUG"), "true"),
		Level:      os.Getenv("JAYBRAIN_LOG_LEVEL"),
		JSONFormat: os.Getenv("JAYBRAIN_LOG_JSON") == "1",
	}

	if cats := os.Getenv("JAYBRAIN_LOG_CATEGORIES"); cats != "" {
		config.Categories = make(map[string]bool)
		for _, c := range strings.Split(cats, ",") {
			if c = strings.TrimSpace(c); c != "" {
				config.Categories[c] = true
			}
		}
	}

	switch strings.ToLower(config.Level) {
	case "debug":
		logLevel = LevelDebug
	case "", "info":
		logLevel = LevelInfo
		config.Level = "info"
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
}

// ReloadConfig re-reads the environment. Mostly useful in tests.
func ReloadConfig() {
	loadConfig()
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true // All enabled by default in debug mode
	}
	return config.Categories[string(category)]
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date-prefixed file name for easy rotation
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Hook scripts may run with a read-only data dir; degrade silently.
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// logJSON writes a structured JSON log entry.
func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// StructuredLog writes a fully structured log entry with custom fields.
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	if config.JSONFormat {
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// StoreError logs error to the store category
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}

// Embedding logs to the embedding category
func Embedding(format string, args ...interface{}) {
	Get(CategoryEmbedding).Info(format, args...)
}

// EmbeddingDebug logs debug to the embedding category
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// Retrieval logs to the retrieval category
func Retrieval(format string, args ...interface{}) {
	Get(CategoryRetrieval).Info(format, args...)
}

// RetrievalDebug logs debug to the retrieval category
func RetrievalDebug(format string, args ...interface{}) {
	Get(CategoryRetrieval).Debug(format, args...)
}

// RetrievalWarn logs warning to the retrieval category
func RetrievalWarn(format string, args ...interface{}) {
	Get(CategoryRetrieval).Warn(format, args...)
}

// Hooks logs to the hooks category
func Hooks(format string, args ...interface{}) {
	Get(CategoryHooks).Info(format, args...)
}

// HooksDebug logs debug to the hooks category
func HooksDebug(format string, args ...interface{}) {
	Get(CategoryHooks).Debug(format, args...)
}

// Pulse logs to the pulse category
func Pulse(format string, args ...interface{}) {
	Get(CategoryPulse).Info(format, args...)
}

// PulseDebug logs debug to the pulse category
func PulseDebug(format string, args ...interface{}) {
	Get(CategoryPulse).Debug(format, args...)
}

// Daemon logs to the daemon category
func Daemon(format string, args ...interface{}) {
	Get(CategoryDaemon).Info(format, args...)
}

// DaemonDebug logs debug to the daemon category
func DaemonDebug(format string, args ...interface{}) {
	Get(CategoryDaemon).Debug(format, args...)
}

// DaemonWarn logs warning to the daemon category
func DaemonWarn(format string, args ...interface{}) {
	Get(CategoryDaemon).Warn(format, args...)
}

// DaemonError logs error to the daemon category
func DaemonError(format string, args ...interface{}) {
	Get(CategoryDaemon).Error(format, args...)
}

// Checks logs to the checks category
func Checks(format string, args ...interface{}) {
	Get(CategoryChecks).Info(format, args...)
}

// ChecksDebug logs debug to the checks category
func ChecksDebug(format string, args ...interface{}) {
	Get(CategoryChecks).Debug(format, args...)
}

// Forge logs to the forge category
func Forge(format string, args ...interface{}) {
	Get(CategoryForge).Info(format, args...)
}

// ForgeDebug logs debug to the forge category
func ForgeDebug(format string, args ...interface{}) {
	Get(CategoryForge).Debug(format, args...)
}

// Graph logs to the graph category
func Graph(format string, args ...interface{}) {
	Get(CategoryGraph).Info(format, args...)
}

// GraphDebug logs debug to the graph category
func GraphDebug(format string, args ...interface{}) {
	Get(CategoryGraph).Debug(format, args...)
}

// Tools logs to the tools category
func Tools(format string, args ...interface{}) {
	Get(CategoryTools).Info(format, args...)
}

// ToolsDebug logs debug to the tools category
func ToolsDebug(format string, args ...interface{}) {
	Get(CategoryTools).Debug(format, args...)
}

// ToolsError logs error to the tools category
func ToolsError(format string, args ...interface{}) {
	Get(CategoryTools).Error(format, args...)
}

// MCP logs to the mcp category
func MCP(format string, args ...interface{}) {
	Get(CategoryMCP).Info(format, args...)
}

// MCPDebug logs debug to the mcp category
func MCPDebug(format string, args ...interface{}) {
	Get(CategoryMCP).Debug(format, args...)
}

// MCPError logs an error to the mcp category
func MCPError(format string, args ...interface{}) {
	Get(CategoryMCP).Error(format, args...)
}

// Jobs logs to the jobs category
func Jobs(format string, args ...interface{}) {
	Get(CategoryJobs).Info(format, args...)
}

// JobsDebug logs debug to the jobs category
func JobsDebug(format string, args ...interface{}) {
	Get(CategoryJobs).Debug(format, args...)
}

// JobsWarn logs warning to the jobs category
func JobsWarn(format string, args ...interface{}) {
	Get(CategoryJobs).Warn(format, args...)
}

// Vault logs to the vault category
func Vault(format string, args ...interface{}) {
	Get(CategoryVault).Info(format, args...)
}

// VaultDebug logs debug to the vault category
func VaultDebug(format string, args ...interface{}) {
	Get(CategoryVault).Debug(format, args...)
}

// Trash logs to the trash category
func Trash(format string, args ...interface{}) {
	Get(CategoryTrash).Info(format, args...)
}

// TrashDebug logs debug to the trash category
func TrashDebug(format string, args ...interface{}) {
	Get(CategoryTrash).Debug(format, args...)
}

// TrashWarn logs a warning to the trash category
func TrashWarn(format string, args ...interface{}) {
	Get(CategoryTrash).Warn(format, args...)
}

// Browser logs to the browser category
func Browser(format string, args ...interface{}) {
	Get(CategoryBrowser).Info(format, args...)
}

// BrowserDebug logs debug to the browser category
func BrowserDebug(format string, args ...interface{}) {
	Get(CategoryBrowser).Debug(format, args...)
}

// Notify logs to the notify category
func Notify(format string, args ...interface{}) {
	Get(CategoryNotify).Info(format, args...)
}

// NotifyDebug logs debug to the notify category
func NotifyDebug(format string, args ...interface{}) {
	Get(CategoryNotify).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
