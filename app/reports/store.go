// Package reports persists committed daily and hierarchical reports keyed by
// date and reporting identity.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/storage"
)

// Document names.
const (
	DailyDoc        = "daily_reports"
	HierarchicalDoc = "hierarchical_reports"
)

// DateLayout is the calendar-day key format.
const DateLayout = "2006-01-02"

// DuplicatePolicy decides what happens to a second hierarchical report about
// the same target on the same day.
type DuplicatePolicy string

const (
	PolicyOverwrite DuplicatePolicy = "overwrite"
	PolicyReject    DuplicatePolicy = "reject"
)

// ParsePolicy maps config text to a policy; empty means overwrite.
func ParsePolicy(raw string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("reports: unknown duplicate policy %q", raw)
}

// ErrDuplicate is returned when a slot is already filled and the write may
// not replace it: a hierarchical slot under PolicyReject, or a daily slot
// outside the edit flow.
var ErrDuplicate = errors.New("reports: report already filed for this day")

// DailyRecord is one daily report.
type DailyRecord struct {
	UserName  string            `json:"userName"`
	Timestamp time.Time         `json:"timestamp"`
	Answers   map[string]string `json:"answers"`
}

// HierarchicalRecord is one report about a subordinate.
type HierarchicalRecord struct {
	ReporterRole string            `json:"reporterRole"`
	ReporterName string            `json:"reporterName"`
	TargetRole   string            `json:"targetRole"`
	TargetUserID string            `json:"targetUserId"`
	TargetName   string            `json:"targetName,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Answers      map[string]string `json:"answers"`
}

// Key is the per-reporter slot key "<ROLE>_<targetId>".
func (r HierarchicalRecord) Key() string {
	return TargetKey(r.TargetRole, r.TargetUserID)
}

// TargetKey builds the per-reporter slot key.
func TargetKey(role, targetID string) string {
	return role + "_" + targetID
}

// date → reporter id → record
type dailyDocument map[string]map[string]DailyRecord

// date → reporter id → "<ROLE>_<targetId>" → record
type hierarchicalDocument map[string]map[string]map[string]HierarchicalRecord

// Store reads and writes both report documents through a storage backend.
type Store struct {
	backend storage.Backend
	policy  DuplicatePolicy
	loc     *time.Location
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithPolicy sets the hierarchical duplicate policy.
func WithPolicy(p DuplicatePolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLocation sets the zone used to derive the calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds a Store over backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		policy:  PolicyOverwrite,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured duplicate policy.
func (s *Store) Policy() DuplicatePolicy { return s.policy }

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.now().In(s.loc) }

// Today returns the current calendar day key.
func (s *Store) Today() string { return s.Now().Format(DateLayout) }

func userKey(id int64) string { return strconv.FormatInt(id, 10) }

// AppendDaily stores the reporter's record for date. An existing record is
// only replaced when amend is set; otherwise ErrDuplicate is returned and the
// stored record is kept.
func (s *Store) AppendDaily(ctx context.Context, date string, reporterID int64, rec DailyRecord, amend bool) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.Now()
	}
	err := storage.Update(ctx, s.backend, DailyDoc, func(doc *dailyDocument) error {
		if *doc == nil {
			*doc = make(dailyDocument)
		}
		day := (*doc)[date]
		if day == nil {
			day = make(map[string]DailyRecord)
			(*doc)[date] = day
		}
		if _, exists := day[userKey(reporterID)]; exists && !amend {
			return ErrDuplicate
		}
		day[userKey(reporterID)] = rec
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "reports", "daily_appended",
		slog.String("date", date),
		slog.Int64("reporter_id", reporterID),
		slog.Bool("amend", amend),
	)
	return nil
}

// DailyFor returns the reporter's record for date.
func (s *Store) DailyFor(ctx context.Context, date string, reporterID int64) (DailyRecord, bool, error) {
	doc, err := storage.Read[dailyDocument](ctx, s.backend, DailyDoc)
	if err != nil {
		return DailyRecord{}, false, err
	}
	rec, ok := doc[date][userKey(reporterID)]
	return rec, ok, nil
}

// HasDaily reports whether the reporter already filed for date.
func (s *Store) HasDaily(ctx context.Context, date string, reporterID int64) (bool, error) {
	_, ok, err := s.DailyFor(ctx, date, reporterID)
	return ok, err
}

// AppendHierarchical stores rec under (date, reporter, role, target). Under
// PolicyReject an existing slot yields ErrDuplicate and nothing is written.
func (s *Store) AppendHierarchical(ctx context.Context, date string, reporterID int64, rec HierarchicalRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.Now()
	}
	replaced := false
	err := storage.Update(ctx, s.backend, HierarchicalDoc, func(doc *hierarchicalDocument) error {
		if *doc == nil {
			*doc = make(hierarchicalDocument)
		}
		day := (*doc)[date]
		if day == nil {
			day = make(map[string]map[string]HierarchicalRecord)
			(*doc)[date] = day
		}
		slots := day[userKey(reporterID)]
		if slots == nil {
			slots = make(map[string]HierarchicalRecord)
			day[userKey(reporterID)] = slots
		}
		if _, exists := slots[rec.Key()]; exists {
			if s.policy == PolicyReject {
				return ErrDuplicate
			}
			replaced = true
		}
		slots[rec.Key()] = rec
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "reports", "hierarchical_appended",
		slog.String("date", date),
		slog.Int64("reporter_id", reporterID),
		slog.String("target", rec.Key()),
		slog.Bool("replaced", replaced),
	)
	return nil
}

// HasHierarchical reports whether the slot for (date, reporter, role, target) is filled.
func (s *Store) HasHierarchical(ctx context.Context, date string, reporterID int64, role, targetID string) (bool, error) {
	doc, err := storage.Read[hierarchicalDocument](ctx, s.backend, HierarchicalDoc)
	if err != nil {
		return false, err
	}
	_, ok := doc[date][userKey(reporterID)][TargetKey(role, targetID)]
	return ok, nil
}

// Filter narrows a query. Zero fields match everything; dates are inclusive.
type Filter struct {
	From       string
	To         string
	ReporterID int64
	TargetRole string
}

func (f Filter) matchDate(date string) bool {
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	return true
}

func (f Filter) matchReporter(key string) bool {
	return f.ReporterID == 0 || key == userKey(f.ReporterID)
}

// DailyEntry is a daily record with its key.
type DailyEntry struct {
	Date       string
	ReporterID int64
	DailyRecord
}

// HierarchicalEntry is a hierarchical record with its key.
type HierarchicalEntry struct {
	Date       string
	ReporterID int64
	HierarchicalRecord
}

// QueryDaily scans daily records. TargetRole is ignored. Results are ordered by date then reporter.
func (s *Store) QueryDaily(ctx context.Context, f Filter) ([]DailyEntry, error) {
	doc, err := storage.Read[dailyDocument](ctx, s.backend, DailyDoc)
	if err != nil {
		return nil, err
	}
	var out []DailyEntry
	for date, day := range doc {
		if !f.matchDate(date) {
			continue
		}
		for uid, rec := range day {
			if !f.matchReporter(uid) {
				continue
			}
			id, _ := strconv.ParseInt(uid, 10, 64)
			out = append(out, DailyEntry{Date: date, ReporterID: id, DailyRecord: rec})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ReporterID < out[j].ReporterID
	})
	return out, nil
}

// QueryHierarchical scans hierarchical records. Results are ordered by date, reporter, then slot key.
func (s *Store) QueryHierarchical(ctx context.Context, f Filter) ([]HierarchicalEntry, error) {
	doc, err := storage.Read[hierarchicalDocument](ctx, s.backend, HierarchicalDoc)
	if err != nil {
		return nil, err
	}
	var out []HierarchicalEntry
	for date, day := range doc {
		if !f.matchDate(date) {
			continue
		}
		for uid, slots := range day {
			if !f.matchReporter(uid) {
				continue
			}
			id, _ := strconv.ParseInt(uid, 10, 64)
			for _, rec := range slots {
				if f.TargetRole != "" && rec.TargetRole != f.TargetRole {
					continue
				}
				out = append(out, HierarchicalEntry{Date: date, ReporterID: id, HierarchicalRecord: rec})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ReporterID != b.ReporterID {
			return a.ReporterID < b.ReporterID
		}
		return a.Key() < b.Key()
	})
	return out, nil
}
