// Package logging builds the zap loggers used across sitepilot. Each
// subsystem logs under a category name, and categories can be switched off
// from the settings file.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names the subsystem a log line comes from.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup and teardown
	CategorySession Category = "session" // browser session lifecycle
	CategoryBrowser Category = "browser" // driver calls
	CategoryModel   Category = "model"   // pages, actions, scoring
	CategoryStore   Category = "store"   // site files
	CategorySecrets Category = "secrets"
	CategoryPrompt  Category = "prompt"
	CategoryServer  Category = "server"
)

// Categories lists every category.
func Categories() []Category {
	return []Category{
		CategoryBoot, CategorySession, CategoryBrowser, CategoryModel,
		CategoryStore, CategorySecrets, CategoryPrompt, CategoryServer,
	}
}

// Options configures New.
type Options struct {
	// Verbose lowers the level to debug.
	Verbose bool
	// JSON selects production encoding; console encoding otherwise.
	JSON bool
	// Level overrides the default level when Verbose is false.
	Level string
	// File, when set, receives a copy of every line.
	File string
	// Categories switches categories on or off. Missing ones are on.
	Categories map[string]bool
}

// New builds the root logger.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.JSON {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return Filter(logger, opts.Categories), nil
}

// Filter drops entries from categories switched off in categories.
func Filter(logger *zap.Logger, categories map[string]bool) *zap.Logger {
	if len(categories) == 0 {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &categoryCore{Core: core, enabled: categories}
	}))
}

// For returns the sub-logger for category.
func For(logger *zap.Logger, category Category) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(string(category))
}

type categoryCore struct {
	zapcore.Core
	enabled map[string]bool
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{Core: c.Core.With(fields), enabled: c.enabled}
}

func (c *categoryCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	name, _, _ := strings.Cut(entry.LoggerName, ".")
	if on, ok := c.enabled[name]; ok && !on {
		return checked
	}
	return c.Core.Check(entry, checked)
}

// Timer measures one operation.
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing op.
func StartTimer(logger *zap.Logger, op string) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{logger: logger, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("Completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold warns when the operation ran longer than threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn("Slow operation", zap.String("op", t.op),
			zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
		return elapsed
	}
	t.logger.Debug("Completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}
