package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
)

func TestAsyncWriterRoutesByLevel(t *testing.T) {
	all, errs := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter(64, allLevels(all), levelSink{w: errs, min: slog.LevelError})

	_ = w.Write(slog.LevelDebug, []byte("debug line\n"))
	_ = w.Write(slog.LevelWarn, []byte("warn line\n"))
	_ = w.Write(slog.LevelError, []byte("error line\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := strings.Count(all.String(), "line"); got != 3 {
		t.Fatalf("full sink lines = %d: %q", got, all.String())
	}
	if errs.String() != "error line\n" {
		t.Fatalf("errors sink = %q", errs.String())
	}
}

func TestBuildOutputsOpensLogFiles(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Logging.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.BotFile = "bot.log"
	cfg.Logging.ErrorsFile = "errors.log"

	sinks, closers, err := buildOutputs(cfg)
	if err != nil {
		t.Fatalf("buildOutputs: %v", err)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if len(sinks) != 3 || len(closers) != 2 {
		t.Fatalf("sinks=%d closers=%d", len(sinks), len(closers))
	}
	if sinks[2].min != slog.LevelError {
		t.Fatalf("errors sink min = %v", sinks[2].min)
	}
	for _, name := range []string{"bot.log", "errors.log"} {
		if _, err := os.Stat(filepath.Join(cfg.Logging.Dir, name)); err != nil {
			t.Fatalf("%s not created: %v", name, err)
		}
	}
}

func TestBuildOutputsReportsBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := &coreconfig.Config{}
	cfg.Logging.Dir = file
	cfg.Logging.BotFile = "bot.log"

	sinks, _, err := buildOutputs(cfg)
	if err == nil {
		t.Fatalf("expected error for a log dir that is a file")
	}
	if len(sinks) != 1 {
		t.Fatalf("stdout sink should remain, got %d sinks", len(sinks))
	}
}
