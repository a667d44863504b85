// Package logging provides category-scoped zap loggers for propchat.
// Each subsystem asks for its own named logger; categories can be switched
// off individually in config, and nothing is logged unless debug mode or a
// level at or above info is configured.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // CLI startup, config loading
	CategoryComposer     Category = "composer"     // Composer state transitions
	CategoryTyping       Category = "typing"       // Local typing indicator
	CategoryUpload       Category = "upload"       // Attachment upload orchestration
	CategoryConversation Category = "conversation" // Message store, merge, reconciliation
	CategoryTransport    Category = "transport"    // Transport adapters (memory, NATS)
	CategoryTUI          Category = "tui"          // Terminal surface
)

// AllCategories lists every known category.
var AllCategories = []Category{
	CategoryBoot,
	CategoryComposer,
	CategoryTyping,
	CategoryUpload,
	CategoryConversation,
	CategoryTransport,
	CategoryTUI,
}

// Config mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Config struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	DebugMode  bool            // forces debug level
	Categories map[string]bool // per-category toggles, missing means enabled
	OutputPath string          // empty means stderr
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	cfg     Config
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the root logger. Calling it again replaces the root and
// drops cached category loggers.
func Initialize(c Config) error {
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := parseLevel(c.Level)
	if err != nil {
		return err
	}
	if c.DebugMode {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if c.OutputPath != "" {
		zc.OutputPaths = []string{c.OutputPath}
		zc.ErrorOutputPaths = []string{c.OutputPath}
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	root = l
	cfg = c
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// Use installs an already-built logger as root, e.g. zaptest loggers.
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.Logger)
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l := zap.NewNop()
	if categoryEnabledLocked(category) {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}
