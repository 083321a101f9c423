package bot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/core/bootstrap"
	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/storage"
)

// seedRecord is one directory entry in the seed file. Records without an id
// get a stable id derived from kind and name, so reseeding is idempotent.
type seedRecord struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Phone  string `yaml:"phone"`
	Region string `yaml:"region"`
}

// DirectorySeeder loads the YAML seed file at path into the directories of
// kinds. The file maps a kind key (assistant, instructor, student) to a list
// of records. Records already present are left untouched. An empty path or a
// missing file is not an error.
func DirectorySeeder(path string, kinds []entity.Kind) bootstrap.SeederFunc {
	return func(ctx context.Context, backend storage.Backend) error {
		if strings.TrimSpace(path) == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, "directory.seed", "seed_file_missing", slog.String("path", path))
			return nil
		}
		if err != nil {
			return fmt.Errorf("seed: read %s: %w", path, err)
		}
		var doc map[string][]seedRecord
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("seed: parse %s: %w", path, err)
		}

		byKey := make(map[string]entity.Kind, len(kinds))
		for _, k := range kinds {
			byKey[k.Key] = k
		}
		keys := make([]string, 0, len(doc))
		for key := range doc {
			if _, ok := byKey[key]; !ok {
				return fmt.Errorf("seed: unknown directory %q", key)
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			k := byKey[key]
			n, err := seedKind(ctx, entity.NewStore(k, backend), k, doc[key])
			if err != nil {
				return err
			}
			logger.Info(ctx, "directory.seed", "seeded",
				slog.String("kind", k.Key),
				slog.Int("added", n),
				slog.Int("listed", len(doc[key])),
			)
		}
		return nil
	}
}

func seedKind(ctx context.Context, store *entity.Store, k entity.Kind, recs []seedRecord) (int, error) {
	existing, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: list %s: %w", k.Doc, err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		have[r.ID] = struct{}{}
	}

	var add []entity.Record
	for i, sr := range recs {
		raw := map[string]string{"name": sr.Name, "phone": sr.Phone, "region": sr.Region}
		fields := make(map[string]string, len(raw))
		for _, f := range k.Fields {
			v := strings.TrimSpace(raw[f.Key])
			if v == "" {
				if f.Key == "name" {
					return 0, fmt.Errorf("seed: %s #%d: name is required", k.Key, i+1)
				}
				continue
			}
			if f.Normalize != nil {
				if v, err = f.Normalize(v); err != nil {
					return 0, fmt.Errorf("seed: %s #%d: %w", k.Key, i+1, err)
				}
			}
			fields[f.Key] = v
		}
		id := strings.TrimSpace(sr.ID)
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(k.Key+":"+fields["name"])).String()
		}
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		add = append(add, entity.Record{ID: id, Fields: fields})
	}
	if len(add) == 0 {
		return 0, nil
	}
	if err := store.Import(ctx, add...); err != nil {
		return 0, fmt.Errorf("seed: import %s: %w", k.Doc, err)
	}
	return len(add), nil
}
