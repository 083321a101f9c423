package logger

import (
	"log/slog"
	"testing"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
)

func TestResolveSettings(t *testing.T) {
	t.Setenv("TRACE", "")
	t.Setenv("LOG_TRACE", "")

	def := resolveSettings(nil)
	if def.level != slog.LevelInfo || def.format != formatJSON || def.profile != "prod" || def.sampleDen != 50 || def.trace {
		t.Fatalf("defaults = %+v", def)
	}

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Debug"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = "ts, level ,,event"
	cfg.Logging.DebugSample = "2/10"
	set := resolveSettings(cfg)
	if set.format != formatKV {
		t.Fatalf("debug profile should default to kv, got %s", set.format)
	}
	if set.level != slog.LevelWarn || set.profile != "debug" {
		t.Fatalf("level=%v profile=%s", set.level, set.profile)
	}
	if len(set.keyOrder) != 3 || set.keyOrder[1] != "level" {
		t.Fatalf("key order = %v", set.keyOrder)
	}
	if set.sampleNum != 2 || set.sampleDen != 10 {
		t.Fatalf("sample = %d/%d", set.sampleNum, set.sampleDen)
	}

	cfg.Logging.Format = "json"
	cfg.Logging.DebugSample = "garbage"
	set = resolveSettings(cfg)
	if set.format != formatJSON || set.sampleDen != 50 {
		t.Fatalf("explicit json / bad sample: %+v", set)
	}

	t.Setenv("LOG_TRACE", "yes")
	if !resolveSettings(nil).trace {
		t.Fatalf("LOG_TRACE not honored")
	}
}
