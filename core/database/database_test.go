package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", User: "school bot", Password: "p@ss:/word", Name: "schoolbot", SSLMode: "disable"}
	got := cfg.URL()
	want := "postgres://school%20bot:p%40ss%3A%2Fword@db:5432/schoolbot?sslmode=disable"
	if got != want {
		t.Fatalf("URL() = %s\nwant    %s", got, want)
	}
	if cfg.poolSize() != 5 || cfg.migrationsDir() != "migrations" {
		t.Fatalf("defaults: pool=%d dir=%s", cfg.poolSize(), cfg.migrationsDir())
	}
}

func TestUpMigrationsAndAppliedBetween(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_index.up.sql", "0001_documents.up.sql", "0001_documents.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	files, err := upMigrations(dir)
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	if strings.Join(files, ",") != "0001_documents.up.sql,0002_index.up.sql" {
		t.Fatalf("files = %v", files)
	}
	if got := appliedBetween(files, 0, 2); len(got) != 2 {
		t.Fatalf("applied 0..2 = %v", got)
	}
	if got := appliedBetween(files, 1, 2); len(got) != 1 || got[0] != "0002_index.up.sql" {
		t.Fatalf("applied 1..2 = %v", got)
	}
	if got := appliedBetween(files, 2, 2); len(got) != 0 {
		t.Fatalf("applied 2..2 = %v", got)
	}
	if _, err := upMigrations(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("missing dir should fail")
	}
}
