package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
	coredatabase "github.com/m3rciful/schoolbot/core/database"
	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/storage"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil unless the postgres storage driver is selected.
	DB      *sqlx.DB
	Backend storage.Backend
}

// Close releases the database connection, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, opens the document backend selected by
// storage.driver, applies migrations when it is postgres, and runs seeders.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	switch opts.Config.Storage.Driver {
	case coreconfig.StoragePostgres:
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
		res.Backend = storage.NewPostgresBackend(db)
	case coreconfig.StorageMemory:
		res.Backend = storage.NewMemoryBackend()
	default:
		res.Backend = storage.NewFileBackend(opts.Config.Storage.Dir)
	}
	if logger.STORE != nil {
		logger.STORE.Info("storage ready",
			slog.String("event", "storage.open"),
			slog.String("driver", opts.Config.Storage.Driver),
			slog.String("dir", opts.Config.Storage.Dir),
		)
	}

	if err := opts.Modules.Seed(context.Background(), res.Backend); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: seeding failed: %w", err)
	}
	return res, nil
}
