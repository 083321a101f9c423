package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/core/storage"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

const seedBody = `instructor:
  - name: Sara Ahmadi
    phone: "۰۹۱۲ ۱۲۳ ۴۵۶۷"
    region: Shiraz
assistant:
  - id: "42"
    name: Ali
    region: Tehran
`

func TestDirectorySeederIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	seed := DirectorySeeder(writeSeed(t, seedBody), entity.DefaultKinds())

	for i := 0; i < 2; i++ {
		if err := seed(ctx, backend); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}

	instructors, err := entity.NewStore(entity.Instructors(), backend).List(ctx)
	if err != nil {
		t.Fatalf("list instructors: %v", err)
	}
	if len(instructors) != 1 {
		t.Fatalf("instructors = %+v", instructors)
	}
	wantID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("instructor:Sara Ahmadi")).String()
	got := instructors[0]
	if got.ID != wantID || got.Value("phone") != "09121234567" {
		t.Fatalf("instructor = %+v", got)
	}

	assistants, err := entity.NewStore(entity.Assistants(), backend).List(ctx)
	if err != nil {
		t.Fatalf("list assistants: %v", err)
	}
	if len(assistants) != 1 || assistants[0].ID != "42" || assistants[0].Fields["phone"] != "" {
		t.Fatalf("assistants = %+v", assistants)
	}
}

func TestDirectorySeederRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown kind": "janitor:\n  - name: Bob\n",
		"bad phone":    "student:\n  - name: Mina\n    phone: call-me\n",
		"no name":      "student:\n  - region: Tabriz\n",
		"bad yaml":     "student: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			seed := DirectorySeeder(writeSeed(t, body), entity.DefaultKinds())
			if err := seed(context.Background(), storage.NewMemoryBackend()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDirectorySeederMissingFile(t *testing.T) {
	ctx := context.Background()
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		if err := DirectorySeeder(path, entity.DefaultKinds())(ctx, storage.NewMemoryBackend()); err != nil {
			t.Fatalf("seed %q: %v", path, err)
		}
	}
}
