package logger

import (
	"log/slog"
	"os"
	"strings"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
)

// settings is the logging section resolved to concrete values.
type settings struct {
	level     slog.Level
	format    logFormat
	keyOrder  []string
	profile   string
	sampleNum int
	sampleDen int
	// trace logs every debug receipt regardless of sampling.
	trace bool
}

// resolveSettings applies defaults to cfg.Logging. A nil cfg yields JSON at
// INFO with the default key order.
func resolveSettings(cfg *coreconfig.Config) settings {
	set := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		profile:   "prod",
		sampleNum: 1,
		sampleDen: 50,
		trace:     envTruthy("TRACE") || envTruthy("LOG_TRACE"),
	}
	if cfg == nil {
		return set
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		set.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		set.format = formatKV
	case "json":
	default:
		if set.profile == "debug" || set.profile == "dev" {
			set.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		set.level = slog.LevelDebug
	case "warn", "warning":
		set.level = slog.LevelWarn
	case "error":
		set.level = slog.LevelError
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			set.keyOrder = order
		}
	}
	if strings.TrimSpace(lc.DebugSample) != "" {
		if num, den, ok := parseRatio(lc.DebugSample); ok {
			set.sampleNum, set.sampleDen = num, den
		}
	}
	return set
}

func envTruthy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
