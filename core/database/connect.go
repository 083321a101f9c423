package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/schoolbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyPause     = 2 * time.Second
)

// Connect opens the pool, sizes it and pings the server once.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.DB.Error("db connect failed", append(serverAttrs(cfg, "db.connect"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	size := cfg.poolSize()
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.DB.Info("db connected", append(serverAttrs(cfg, "db.connect"),
		slog.Int("pool_open", size),
		slog.Duration("duration", took),
	)...)
	return db, nil
}

// waitReady pings the server until it answers, ctx ends or timeout passes.
// Migrations run before the bot starts, often alongside a container that is
// still booting.
func waitReady(ctx context.Context, cfg Config, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.Open("postgres", cfg.URL())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.DB.Debug("db not ready", append(serverAttrs(cfg, "db.wait"),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)...)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, err)
		case <-time.After(readyPause):
		}
	}
}

func serverAttrs(cfg Config, event string) []any {
	return []any{
		slog.String("event", event),
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.portOrDefault()),
		slog.String("db", cfg.Name),
	}
}
