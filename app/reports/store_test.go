package reports

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/schoolbot/core/storage"
)

func fixedStore(opts ...Option) *Store {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewStore(storage.NewMemoryBackend(), opts...)
}

func TestDailyAppendAndHas(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	if s.Today() != "2024-03-01" {
		t.Fatalf("today = %s", s.Today())
	}
	ok, err := s.HasDaily(ctx, s.Today(), 7)
	if err != nil || ok {
		t.Fatalf("HasDaily before append = %v, %v", ok, err)
	}
	rec := DailyRecord{UserName: "Sara", Answers: map[string]string{"attendance": "2", "satisfaction": "4", "issues": "همه چیز خوب بود"}}
	if err := s.AppendDaily(ctx, s.Today(), 7, rec, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, ok, err := s.DailyFor(ctx, s.Today(), 7)
	if err != nil || !ok {
		t.Fatalf("DailyFor = %v, %v", ok, err)
	}
	if got.Answers["satisfaction"] != "4" || got.Timestamp.IsZero() {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestDailySecondAppendNeedsAmend(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	first := DailyRecord{UserName: "Sara", Answers: map[string]string{"issues": "first"}}
	second := DailyRecord{UserName: "Sara", Answers: map[string]string{"issues": "second"}}
	if err := s.AppendDaily(ctx, s.Today(), 7, first, false); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.AppendDaily(ctx, s.Today(), 7, second, false); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second append err = %v", err)
	}
	got, _, _ := s.DailyFor(ctx, s.Today(), 7)
	if got.Answers["issues"] != "first" {
		t.Fatalf("rejected append replaced the record: %+v", got)
	}
	if err := s.AppendDaily(ctx, s.Today(), 7, second, true); err != nil {
		t.Fatalf("amend: %v", err)
	}
	got, _, _ = s.DailyFor(ctx, s.Today(), 7)
	if got.Answers["issues"] != "second" {
		t.Fatalf("amend not applied: %+v", got)
	}
}

func TestHierarchicalDistinctTargetsSameDay(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	for _, id := range []string{"42", "43"} {
		rec := HierarchicalRecord{ReporterRole: "COACH", TargetRole: "ASSISTANT", TargetUserID: id, Answers: map[string]string{"satisfaction": "4"}}
		if err := s.AppendHierarchical(ctx, s.Today(), 9, rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	entries, err := s.QueryHierarchical(ctx, Filter{ReporterID: 9})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 2 || entries[0].TargetUserID != "42" || entries[1].TargetUserID != "43" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHierarchicalDuplicatePolicy(t *testing.T) {
	ctx := context.Background()
	rec := HierarchicalRecord{TargetRole: "ASSISTANT", TargetUserID: "42", Answers: map[string]string{"satisfaction": "2"}}

	over := fixedStore()
	_ = over.AppendHierarchical(ctx, over.Today(), 9, rec)
	rec2 := rec
	rec2.Answers = map[string]string{"satisfaction": "5"}
	if err := over.AppendHierarchical(ctx, over.Today(), 9, rec2); err != nil {
		t.Fatalf("overwrite policy: %v", err)
	}
	got, _ := over.QueryHierarchical(ctx, Filter{})
	if len(got) != 1 || got[0].Answers["satisfaction"] != "5" {
		t.Fatalf("overwrite result %+v", got)
	}

	strict := fixedStore(WithPolicy(PolicyReject))
	_ = strict.AppendHierarchical(ctx, strict.Today(), 9, rec)
	if err := strict.AppendHierarchical(ctx, strict.Today(), 9, rec2); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	_ = s.AppendDaily(ctx, "2024-02-28", 1, DailyRecord{Answers: map[string]string{"satisfaction": "3"}}, false)
	_ = s.AppendDaily(ctx, "2024-03-01", 1, DailyRecord{Answers: map[string]string{"satisfaction": "5"}}, false)
	_ = s.AppendDaily(ctx, "2024-03-01", 2, DailyRecord{Answers: map[string]string{"satisfaction": "1"}}, false)

	got, err := s.QueryDaily(ctx, Filter{From: "2024-03-01"})
	if err != nil || len(got) != 2 {
		t.Fatalf("from filter: %d, %v", len(got), err)
	}
	got, _ = s.QueryDaily(ctx, Filter{ReporterID: 1})
	if len(got) != 2 || got[0].Date != "2024-02-28" {
		t.Fatalf("reporter filter: %+v", got)
	}
	st, err := s.DailyStats(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 2 || st.MeanSatisfaction != 3 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRollUpByTargetRole(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	add := func(reporter int64, role, id, sat, comm string) {
		rec := HierarchicalRecord{TargetRole: role, TargetUserID: id, Answers: map[string]string{"satisfaction": sat, "communication": comm}}
		if err := s.AppendHierarchical(ctx, s.Today(), reporter, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	add(1, "ASSISTANT", "42", "4", "communication_phone")
	add(2, "ASSISTANT", "42", "2", "communication_meeting")
	add(1, "STUDENT", "7", "5", "communication_none")

	ups, err := s.RollUp(ctx, Filter{})
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if len(ups) != 2 || ups[0].TargetRole != "ASSISTANT" {
		t.Fatalf("rollup = %+v", ups)
	}
	if ups[0].Count != 2 || ups[0].Targets != 1 || ups[0].MeanSatisfaction != 3 {
		t.Fatalf("assistant rollup = %+v", ups[0])
	}
	if ups[0].Communication["communication_phone"] != 1 {
		t.Fatalf("communication counts = %v", ups[0].Communication)
	}

	only, _ := s.RollUp(ctx, Filter{TargetRole: "STUDENT"})
	if len(only) != 1 || only[0].Count != 1 {
		t.Fatalf("filtered rollup = %+v", only)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyOverwrite {
		t.Fatalf("empty policy = %q, %v", p, err)
	}
	if p, err := ParsePolicy("Reject"); err != nil || p != PolicyReject {
		t.Fatalf("reject policy = %q, %v", p, err)
	}
	if _, err := ParsePolicy("merge"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConcurrentAppendsKeepEveryRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := NewStore(storage.NewFileBackend(t.TempDir()), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			rec := HierarchicalRecord{TargetRole: "STUDENT", TargetUserID: strconv.Itoa(i), Answers: map[string]string{"satisfaction": "3"}}
			errs <- s.AppendHierarchical(ctx, s.Today(), 9, rec)
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendDaily(ctx, s.Today(), int64(100+i), DailyRecord{Answers: map[string]string{"satisfaction": "4"}}, false)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	h, err := s.QueryHierarchical(ctx, Filter{})
	if err != nil || len(h) != n {
		t.Fatalf("hierarchical records = %d, %v", len(h), err)
	}
	d, err := s.QueryDaily(ctx, Filter{})
	if err != nil || len(d) != n {
		t.Fatalf("daily records = %d, %v", len(d), err)
	}
}

func TestPeriodStatsAndRanges(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	_ = s.AppendDaily(ctx, "2024-02-24", 1, DailyRecord{Answers: map[string]string{"attendance": "2", "satisfaction": "2"}}, false)
	_ = s.AppendDaily(ctx, "2024-02-28", 1, DailyRecord{Answers: map[string]string{"attendance": "2", "satisfaction": "4"}}, false)
	_ = s.AppendDaily(ctx, "2024-02-28", 2, DailyRecord{Answers: map[string]string{"attendance": "3", "satisfaction": "3"}}, false)
	_ = s.AppendDaily(ctx, "2024-03-02", 2, DailyRecord{Answers: map[string]string{"attendance": "1", "satisfaction": "5"}}, false)

	from, to := WeekRange(s.Now())
	if from != "2024-02-24" || to != "2024-03-01" {
		t.Fatalf("week range = %s..%s", from, to)
	}
	st, err := s.PeriodStats(ctx, from, to)
	if err != nil {
		t.Fatalf("period stats: %v", err)
	}
	if st.Count != 3 || st.Days != 2 || st.Reporters != 2 || st.MeanSatisfaction != 3 {
		t.Fatalf("week stats = %+v", st)
	}
	if st.Attendance["2"] != 2 || st.Attendance["3"] != 1 {
		t.Fatalf("week attendance = %v", st.Attendance)
	}

	from, to = MonthRange(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	if from != "2024-02-01" || to != "2024-02-29" {
		t.Fatalf("month range = %s..%s", from, to)
	}
	from, to = WeekRange(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))
	if from != "2024-03-02" || to != "2024-03-08" {
		t.Fatalf("saturday week range = %s..%s", from, to)
	}
}
