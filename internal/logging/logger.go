// Package logging provides categorized structured logging for canvasd.
//
// A single root zap.Logger is installed at startup. Each subsystem logs
// through a named child of that root ("tools", "dispatch", ...), and any
// category can be switched off in config without touching call sites.
// Output goes to stderr and, when a file is configured, to a
// size-rotated file managed by lumberjack.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and config
	CategoryAPI        Category = "api"        // Model API traffic
	CategoryPerception Category = "perception" // Model sessions and prompt loading
	CategoryTools      Category = "tools"      // Validator operations
	CategoryDispatch   Category = "dispatch"   // Turn dispatch
	CategoryImagery    Category = "imagery"    // Image search and validation
	CategoryServer     Category = "server"     // HTTP surface
	CategorySession    Category = "session"    // Session lifecycle
)

// Categories lists every known category.
var Categories = []Category{
	CategoryBoot,
	CategoryAPI,
	CategoryPerception,
	CategoryTools,
	CategoryDispatch,
	CategoryImagery,
	CategoryServer,
	CategorySession,
}

// Config controls how the root logger is built.
type Config struct {
	Level      string          `yaml:"level"`  // debug/info/warn/error
	Format     string          `yaml:"format"` // json or console
	File       string          `yaml:"file"`   // optional rotated file sink
	MaxSizeMB  int             `yaml:"max_size_mb"`
	MaxBackups int             `yaml:"max_backups"`
	MaxAgeDays int             `yaml:"max_age_days"`
	Categories map[string]bool `yaml:"categories"`
}

// Logger is a category-bound sugared logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// New builds a root logger from cfg without installing it.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if cfg.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

// Initialize builds a root logger from cfg and installs it.
func Initialize(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	Install(l, cfg.Categories)
	return l, nil
}

// Install replaces the root logger and the category filter. A nil logger
// silences everything. Categories absent from the filter are enabled.
func Install(l *zap.Logger, filter map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	categories = filter
	loggers = make(map[Category]*Logger)
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
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

	base := zap.NewNop()
	if categoryEnabledLocked(category) {
		base = root.Named(string(category))
	}
	l := &Logger{category: category, sugar: base.WithOptions(zap.AddCallerSkip(1)).Sugar()}
	loggers[category] = l
	return l
}

// Zap exposes the underlying structured logger for field-based logging.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar().WithOptions(zap.AddCallerSkip(-1))
}

// Category returns the category the logger is bound to.
func (l *Logger) Category() Category {
	return l.category
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...any) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...any) { Get(CategoryBoot).Debug(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...any) { Get(CategoryAPI).Debug(format, args...) }

// APIError logs an error to the api category
func APIError(format string, args ...any) { Get(CategoryAPI).Error(format, args...) }

// Perception logs to the perception category
func Perception(format string, args ...any) { Get(CategoryPerception).Info(format, args...) }

// PerceptionWarn logs a warning to the perception category
func PerceptionWarn(format string, args ...any) { Get(CategoryPerception).Warn(format, args...) }

// ToolsDebug logs debug to the tools category
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debug(format, args...) }

// ImageryWarn logs a warning to the imagery category
func ImageryWarn(format string, args ...any) { Get(CategoryImagery).Warn(format, args...) }

// Server logs to the server category
func Server(format string, args ...any) { Get(CategoryServer).Info(format, args...) }

