package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/storage"
)

// Seeder loads reference data into the document backend.
type Seeder interface {
	Seed(ctx context.Context, backend storage.Backend) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, backend storage.Backend) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, backend storage.Backend) error {
	return f(ctx, backend)
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}

// Seed runs every seeder in order and stops at the first failure.
func (m Modules) Seed(ctx context.Context, backend storage.Backend) error {
	for i, s := range m.Seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		if err := s.Seed(ctx, backend); err != nil {
			return fmt.Errorf("seeder %d: %w", i, err)
		}
		if logger.SEED != nil {
			logger.SEED.Debug("seeder done",
				slog.String("event", "seed"),
				slog.Int("index", i),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
		}
	}
	return nil
}
