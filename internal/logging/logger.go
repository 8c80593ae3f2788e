// Package logging provides categorized logging for sitectl on top of zap.
// Output goes to stderr, either as console text or as one JSON object per line
// (the --json mode), so stdout stays free for command results.
// Until Initialize or Use is called every logger is a no-op.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot       Category = "boot"       // CLI startup, config loading
	CategoryCMS        Category = "cms"        // Content repository queries
	CategoryRegistry   Category = "registry"   // Tenant discovery
	CategoryTenant     Category = "tenant"     // Configuration resolution, validation
	CategoryVisibility Category = "visibility" // Content-visibility decisions
	CategoryBuild      Category = "build"      // Single-tenant builds, artifacts
	CategoryFanout     Category = "fanout"     // Parallel build-all coordination
	CategoryDeploy     Category = "deploy"     // Deployment dispatch
	CategoryRunner     Category = "runner"     // Subprocess execution
	CategoryWatch      Category = "watch"      // Source watching and rebuilds
)

// Options configures the process-wide logger.
type Options struct {
	Level      string // debug, info, warn, error
	JSON       bool
	Color      bool      // colored levels in console output; off for pipes and CI
	Output     io.Writer // defaults to os.Stderr
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	jsonMode   bool
)

// Initialize builds the process-wide zap logger from opts.
func Initialize(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if opts.Color {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encCfg.EncodeCaller = nil
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))

	mu.Lock()
	jsonMode = opts.JSON
	mu.Unlock()

	Use(zap.New(core), opts.Categories)
	return nil
}

// Use installs an existing zap logger, e.g. zap.NewNop() or an observer in tests.
func Use(l *zap.Logger, enabled map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = enabled
}

// ParseLevel maps a config level string to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsJSON reports whether the logger emits JSON lines.
func IsJSON() bool {
	mu.RLock()
	defer mu.RUnlock()
	return jsonMode
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}

// IsCategoryEnabled returns whether a category is enabled (default true).
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns a logger for the given category.
// A disabled category gets a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	return &Logger{
		category: category,
		sugar:    L().With(zap.String("cat", string(category))).Sugar(),
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a structured logger carrying the category and extra fields.
func (l *Logger) With(fields ...zap.Field) *zap.Logger {
	return l.sugar.Desugar().With(fields...)
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func CMS(format string, args ...interface{})      { Get(CategoryCMS).Info(format, args...) }
func CMSDebug(format string, args ...interface{}) { Get(CategoryCMS).Debug(format, args...) }
func CMSWarn(format string, args ...interface{})  { Get(CategoryCMS).Warn(format, args...) }
func CMSError(format string, args ...interface{}) { Get(CategoryCMS).Error(format, args...) }

func Registry(format string, args ...interface{})      { Get(CategoryRegistry).Info(format, args...) }
func RegistryDebug(format string, args ...interface{}) { Get(CategoryRegistry).Debug(format, args...) }
func RegistryWarn(format string, args ...interface{})  { Get(CategoryRegistry).Warn(format, args...) }

func Tenant(format string, args ...interface{})      { Get(CategoryTenant).Info(format, args...) }
func TenantDebug(format string, args ...interface{}) { Get(CategoryTenant).Debug(format, args...) }
func TenantWarn(format string, args ...interface{})  { Get(CategoryTenant).Warn(format, args...) }

func VisibilityDebug(format string, args ...interface{}) { Get(CategoryVisibility).Debug(format, args...) }

func Build(format string, args ...interface{})      { Get(CategoryBuild).Info(format, args...) }
func BuildDebug(format string, args ...interface{}) { Get(CategoryBuild).Debug(format, args...) }
func BuildWarn(format string, args ...interface{})  { Get(CategoryBuild).Warn(format, args...) }
func BuildError(format string, args ...interface{}) { Get(CategoryBuild).Error(format, args...) }

func Fanout(format string, args ...interface{})      { Get(CategoryFanout).Info(format, args...) }
func FanoutDebug(format string, args ...interface{}) { Get(CategoryFanout).Debug(format, args...) }
func FanoutWarn(format string, args ...interface{})  { Get(CategoryFanout).Warn(format, args...) }
func FanoutError(format string, args ...interface{}) { Get(CategoryFanout).Error(format, args...) }

func Deploy(format string, args ...interface{})      { Get(CategoryDeploy).Info(format, args...) }
func DeployDebug(format string, args ...interface{}) { Get(CategoryDeploy).Debug(format, args...) }
func DeployWarn(format string, args ...interface{})  { Get(CategoryDeploy).Warn(format, args...) }
func DeployError(format string, args ...interface{}) { Get(CategoryDeploy).Error(format, args...) }

func Runner(format string, args ...interface{})      { Get(CategoryRunner).Info(format, args...) }
func RunnerDebug(format string, args ...interface{}) { Get(CategoryRunner).Debug(format, args...) }
func RunnerWarn(format string, args ...interface{})  { Get(CategoryRunner).Warn(format, args...) }
func RunnerError(format string, args ...interface{}) { Get(CategoryRunner).Error(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }
func WatchWarn(format string, args ...interface{})  { Get(CategoryWatch).Warn(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
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
