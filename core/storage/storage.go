// Package storage persists named JSON documents with whole-document
// read/modify/write semantics and version-stamped saves.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
)

var (
	// ErrConflict is returned by Save when expectedVersion is stale.
	ErrConflict = errors.New("storage: version conflict")
	// ErrInvalidName rejects document names that could escape the store.
	ErrInvalidName = errors.New("storage: invalid document name")
)

// Backend loads and saves raw documents. A missing document loads as
// (nil, 0, nil). Save succeeds only when the stored version equals
// expectedVersion and returns the new version.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, int64, error)
	Save(ctx context.Context, name string, data []byte, expectedVersion int64) (int64, error)
}

const maxConflictRetries = 5

var docLocks sync.Map

func lockFor(name string) *sync.Mutex {
	l, _ := docLocks.LoadOrStore(name, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Read decodes the named document into a fresh T. Missing documents yield the zero value.
func Read[T any](ctx context.Context, b Backend, name string) (T, error) {
	var doc T
	data, _, err := b.Load(ctx, name)
	if err != nil {
		return doc, fmt.Errorf("storage: load %s: %w", name, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return doc, nil
}

// Update runs load → mutate → save for the named document while holding the
// document's in-process lock. A version conflict from another process
// reloads and retries the mutation.
func Update[T any](ctx context.Context, b Backend, name string, mutate func(doc *T) error) error {
	l := lockFor(name)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		var doc T
		data, version, err := b.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("storage: load %s: %w", name, err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("storage: decode %s: %w", name, err)
			}
		}
		if err := mutate(&doc); err != nil {
			return err
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("storage: encode %s: %w", name, err)
		}
		newVersion, err := b.Save(ctx, name, out, version)
		if errors.Is(err, ErrConflict) && attempt < maxConflictRetries {
			logger.Warn(ctx, "storage", "save_conflict",
				slog.String("doc", name),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("storage: save %s: %w", name, err)
		}
		logger.Debug(ctx, "storage", "doc_saved",
			slog.String("doc", name),
			slog.Int64("version", newVersion),
			slog.Int("bytes", len(out)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return nil
	}
}
