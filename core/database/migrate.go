package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/schoolbot/core/logger"
)

// RunMigrations waits for the server and applies every pending up migration
// from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	if err := waitReady(context.Background(), cfg, readyTimeout); err != nil {
		logger.MIG.Error("db not ready", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return err
	}

	dir, err := filepath.Abs(cfg.migrationsDir())
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files, err := upMigrations(dir)
	if err != nil {
		logger.MIG.Error("migrations unreadable", slog.String("event", "resolve"), slog.String("path", dir), slog.String("err", err.Error()))
		return err
	}
	logger.MIG.Debug("migrations resolved", filesAttrs("resolve", files, slog.String("path", dir))...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		logger.MIG.Error("init failed", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	to, _, _ := m.Version()
	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", filesAttrs("apply", applied)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// upMigrations lists the *.up.sql files in dir, sorted by name.
func upMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// appliedBetween returns the files whose version lies in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func filesAttrs(event string, files []string, extra ...any) []any {
	attrs := append([]any{slog.String("event", event), slog.Int("files_total", len(files))}, extra...)
	preview, truncated := logger.SummarizeStrings(files, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}
