package entity

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/core/storage"
)

// ErrNotFound is returned for an unknown entity id.
var ErrNotFound = errors.New("entity: not found")

// Record is one stored entity.
type Record struct {
	ID        string            `json:"-"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Name returns the display name.
func (r Record) Name() string {
	if n := r.Fields["name"]; n != "" {
		return n
	}
	return "نامشخص"
}

// Value returns a field or the unknown placeholder.
func (r Record) Value(key string) string {
	if v := r.Fields[key]; v != "" {
		return v
	}
	return "نامشخص"
}

type document struct {
	Records     map[string]Record `json:"records"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// Store is the persisted directory of one Kind.
type Store struct {
	kind    Kind
	backend storage.Backend
	newID   func() string
	now     func() time.Time
}

// NewStore binds a Kind to a backend.
func NewStore(kind Kind, backend storage.Backend) *Store {
	return &Store{
		kind:    kind,
		backend: backend,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
}

// Kind returns the bound kind.
func (s *Store) Kind() Kind { return s.kind }

// List returns all records ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	doc, err := storage.Read[document](ctx, s.backend, s.kind.Doc)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(doc.Records))
	for id, r := range doc.Records {
		r.ID = id
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	doc, err := storage.Read[document](ctx, s.backend, s.kind.Doc)
	if err != nil {
		return Record{}, false, err
	}
	r, ok := doc.Records[id]
	r.ID = id
	return r, ok, nil
}

// Create stores a new record with a generated id.
func (s *Store) Create(ctx context.Context, fields map[string]string) (Record, error) {
	rec := Record{ID: s.newID(), Fields: copyFields(fields), CreatedAt: s.now()}
	err := storage.Update(ctx, s.backend, s.kind.Doc, func(doc *document) error {
		if doc.Records == nil {
			doc.Records = make(map[string]Record)
		}
		doc.Records[rec.ID] = rec
		doc.LastUpdated = rec.CreatedAt
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Import upserts records with caller-chosen ids, used for seeding directories.
func (s *Store) Import(ctx context.Context, recs ...Record) error {
	return storage.Update(ctx, s.backend, s.kind.Doc, func(doc *document) error {
		if doc.Records == nil {
			doc.Records = make(map[string]Record)
		}
		for _, r := range recs {
			if r.ID == "" {
				r.ID = s.newID()
			}
			if r.CreatedAt.IsZero() {
				r.CreatedAt = s.now()
			}
			r.Fields = copyFields(r.Fields)
			doc.Records[r.ID] = r
		}
		doc.LastUpdated = s.now()
		return nil
	})
}

// SetField changes one field of an existing record.
func (s *Store) SetField(ctx context.Context, id, key, value string) (Record, error) {
	var out Record
	err := storage.Update(ctx, s.backend, s.kind.Doc, func(doc *document) error {
		rec, ok := doc.Records[id]
		if !ok {
			return ErrNotFound
		}
		rec.Fields = copyFields(rec.Fields)
		rec.Fields[key] = value
		rec.UpdatedAt = s.now()
		doc.Records[id] = rec
		doc.LastUpdated = rec.UpdatedAt
		out = rec
		out.ID = id
		return nil
	})
	return out, err
}

// Delete removes a record and returns it.
func (s *Store) Delete(ctx context.Context, id string) (Record, error) {
	var out Record
	err := storage.Update(ctx, s.backend, s.kind.Doc, func(doc *document) error {
		rec, ok := doc.Records[id]
		if !ok {
			return ErrNotFound
		}
		delete(doc.Records, id)
		doc.LastUpdated = s.now()
		out = rec
		out.ID = id
		return nil
	})
	return out, err
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Target is a selectable reporting subject.
type Target struct {
	ID   string
	Name string
}

// Directory resolves targets by role across all kind stores.
type Directory struct {
	stores map[roles.Role]*Store
}

// NewDirectory indexes stores by their kind's role.
func NewDirectory(stores ...*Store) *Directory {
	d := &Directory{stores: make(map[roles.Role]*Store, len(stores))}
	for _, s := range stores {
		d.stores[s.kind.Role] = s
	}
	return d
}

// Store returns the store for role.
func (d *Directory) Store(role roles.Role) (*Store, bool) {
	s, ok := d.stores[role]
	return s, ok
}

// ListByRole lists every known entity bearing role. A role without a
// directory yields an empty list.
func (d *Directory) ListByRole(ctx context.Context, role roles.Role) ([]Target, error) {
	s, ok := d.stores[role]
	if !ok {
		return nil, nil
	}
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(recs))
	for _, r := range recs {
		out = append(out, Target{ID: r.ID, Name: r.Name()})
	}
	return out, nil
}

// Lookup finds one target by role and id.
func (d *Directory) Lookup(ctx context.Context, role roles.Role, id string) (Target, bool, error) {
	s, ok := d.stores[role]
	if !ok {
		return Target{}, false, nil
	}
	r, found, err := s.Get(ctx, id)
	if err != nil || !found {
		return Target{}, false, err
	}
	return Target{ID: r.ID, Name: r.Name()}, true, nil
}
