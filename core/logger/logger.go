package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/schoolbot/core/buildinfo"
	coreconfig "github.com/m3rciful/schoolbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newKeyedSampler(1, 50)
	traceOverride bool

	// L is the base logger exposed for compatibility while migrating to context-first logging.
	L *slog.Logger

	// DB logs database-related events for legacy call sites.
	DB *slog.Logger
	// TG logs Telegram transport events for legacy call sites.
	TG *slog.Logger
	// MIG logs database migration events for legacy call sites.
	MIG *slog.Logger
	// SEED logs directory seeding at startup.
	SEED *slog.Logger
	// STORE logs report and directory document storage.
	STORE *slog.Logger
)

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		set := resolveSettings(cfg)
		levelVar.Set(set.level)
		debugSampler.Set(set.sampleNum, set.sampleDen)
		traceOverride = set.trace

		sinks, closers, err := buildOutputs(cfg)
		initErr = err
		logClosers = closers
		logWriter = newAsyncWriter(64*1024, sinks...)

		handler := newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   set.format,
			keyOrder: set.keyOrder,
		})

		logger := slog.New(handler)
		L = logger
		slog.SetDefault(logger)

		wireLegacyComponents()
		logStartup(set)
	})
	return initErr
}

func wireLegacyComponents() {
	if L == nil {
		return
	}
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	MIG = L.With("component", "db.migrate")
	SEED = L.With("component", "directory.seed")
	STORE = L.With("component", "storage")
}

func logStartup(set settings) {
	if L == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build", buildinfo.String()),
	}
	attrs = append(attrs,
		slog.String("cfg_profile", set.profile),
		slog.String("level_name", set.level.String()),
		slog.Bool("trace", set.trace),
	)
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := logWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildOutputs opens stdout, the bot log and the errors log. The errors log
// only receives ERROR lines. A file that cannot be opened is reported and
// skipped; stdout always stays.
func buildOutputs(cfg *coreconfig.Config) ([]levelSink, []io.Closer, error) {
	sinks := []levelSink{allLevels(os.Stdout)}
	if cfg == nil || strings.TrimSpace(cfg.Logging.Dir) == "" {
		return sinks, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sinks, nil, fmt.Errorf("logger: create log dir: %w", err)
	}

	var (
		closers []io.Closer
		errs    []error
	)
	for _, out := range []struct {
		name string
		min  slog.Level
	}{
		{cfg.Logging.BotFile, slog.LevelDebug},
		{cfg.Logging.ErrorsFile, slog.LevelError},
	} {
		name := strings.TrimSpace(out.name)
		if name == "" {
			continue
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			errs = append(errs, fmt.Errorf("logger: open %s: %w", name, err))
			continue
		}
		sinks = append(sinks, levelSink{w: f, min: out.min})
		closers = append(closers, f)
	}
	return sinks, closers, errors.Join(errs...)
}

// Background returns context.Background() provided for compatibility with existing call sites.
func Background() context.Context {
	return context.Background()
}

// LogEvent preserves legacy helper to ensure event attribute presence with context-aware logging.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		logg = L
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		logg = FromContext(ctx)
		if logg != nil && strings.TrimSpace(component) != "" {
			logg = logg.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether the next debug detail for kind (an update
// kind such as "callback" or "message") should be logged.
func ShouldSampleDebug(kind string) bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow(kind)
}
