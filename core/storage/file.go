package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileBackend keeps each document as <dir>/<name>.json. The version lives in
// a sidecar <name>.version file so the JSON document stays plain.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend returns a backend rooted at dir. The directory is created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: strings.TrimSpace(dir)}
}

// Dir returns the root directory.
func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) paths(name string) (string, string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	base := filepath.Join(f.dir, name)
	return base + ".json", base + ".version", nil
}

// Load implements Backend.
func (f *FileBackend) Load(ctx context.Context, name string) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	docPath, verPath, err := f.paths(name)
	if err != nil {
		return nil, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(docPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return data, readVersion(verPath), nil
}

// Save implements Backend.
func (f *FileBackend) Save(ctx context.Context, name string, data []byte, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	docPath, verPath, err := f.paths(name)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	current := int64(0)
	if _, err := os.Stat(docPath); err == nil {
		current = readVersion(verPath)
	}
	if current != expectedVersion {
		return 0, ErrConflict
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	if err := writeFileAtomic(docPath, data, 0o644); err != nil {
		return 0, err
	}
	next := current + 1
	if err := writeFileAtomic(verPath, []byte(strconv.FormatInt(next, 10)), 0o644); err != nil {
		return 0, err
	}
	return next, nil
}

func readVersion(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 1
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || v < 1 {
		return 1
	}
	return v
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
