package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type counterDoc struct {
	Count int `json:"count"`
}

func TestUpdateCreatesDirAndDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b := NewFileBackend(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := Update(ctx, b, "counter", func(d *counterDoc) error {
			d.Count++
			return nil
		}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	doc, err := Read[counterDoc](ctx, b, "counter")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Count != 3 {
		t.Fatalf("count = %d, want 3", doc.Count)
	}
	if _, err := os.Stat(filepath.Join(dir, "counter.json")); err != nil {
		t.Fatalf("document file missing: %v", err)
	}
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	b := NewFileBackend(t.TempDir())
	ctx := context.Background()
	v, err := b.Save(ctx, "doc", []byte(`{}`), 0)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := b.Save(ctx, "doc", []byte(`{"a":1}`), v); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if _, err := b.Save(ctx, "doc", []byte(`{"a":2}`), v); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMutateErrorLeavesDocumentUntouched(t *testing.T) {
	b := NewFileBackend(t.TempDir())
	ctx := context.Background()
	_ = Update(ctx, b, "counter", func(d *counterDoc) error { d.Count = 7; return nil })

	boom := errors.New("boom")
	err := Update(ctx, b, "counter", func(d *counterDoc) error {
		d.Count = 100
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	doc, _ := Read[counterDoc](ctx, b, "counter")
	if doc.Count != 7 {
		t.Fatalf("count = %d, want 7", doc.Count)
	}
}

func TestReadMissingDocument(t *testing.T) {
	doc, err := Read[map[string]int](context.Background(), NewFileBackend(t.TempDir()), "absent")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
}

func TestInvalidName(t *testing.T) {
	b := NewFileBackend(t.TempDir())
	if _, _, err := b.Load(context.Background(), "../etc"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
