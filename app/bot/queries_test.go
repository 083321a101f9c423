package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/reports"
)

func TestSummaryRange(t *testing.T) {
	today := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		arg      string
		from, to string
	}{
		{"", "2024-03-01", "2024-03-01"},
		{"۲۰۲۴-۰۲-۲۰", "2024-02-20", "2024-02-20"},
		{"2024-02-01 2024/2/10", "2024-02-01", "2024-02-10"},
		{"week", "2024-02-24", "2024-03-01"},
		{"هفته 2024-03-05", "2024-03-02", "2024-03-08"},
		{"Month", "2024-03-01", "2024-03-31"},
		{"ماه 2024-02-10", "2024-02-01", "2024-02-29"},
	}
	for _, tc := range cases {
		from, to, err := SummaryRange(tc.arg, today)
		if err != nil {
			t.Fatalf("SummaryRange(%q): %v", tc.arg, err)
		}
		if from != tc.from || to != tc.to {
			t.Fatalf("SummaryRange(%q) = %s..%s, want %s..%s", tc.arg, from, to, tc.from, tc.to)
		}
	}

	for _, bad := range []string{"2024-03-05 2024-03-01", "yesterday", "week soon", "2024-03-01 2024-03-02 2024-03-03"} {
		if _, _, err := SummaryRange(bad, today); !errors.Is(err, ErrSummaryArgs) {
			t.Fatalf("SummaryRange(%q) err = %v", bad, err)
		}
	}
}

func TestRangeSummarySpansDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store := h.app.conv.reports

	for _, date := range []string{"2024-05-01", "2024-05-03"} {
		rec := reports.DailyRecord{UserName: "Reza", Answers: map[string]string{"attendance": "2", "satisfaction": "4"}}
		if err := store.AppendDaily(ctx, date, coachID, rec, false); err != nil {
			t.Fatalf("append daily %s: %v", date, err)
		}
	}
	if err := store.AppendDaily(ctx, "2024-05-09", coachID, reports.DailyRecord{Answers: map[string]string{"satisfaction": "1"}}, false); err != nil {
		t.Fatalf("append daily outside range: %v", err)
	}
	hier := reports.HierarchicalRecord{ReporterRole: "COACH", TargetRole: "ASSISTANT", TargetUserID: "42", TargetName: "Ali", Answers: map[string]string{"satisfaction": "5"}}
	if err := store.AppendHierarchical(ctx, "2024-05-02", coachID, hier); err != nil {
		t.Fatalf("append hierarchical: %v", err)
	}

	r, err := h.conv.RangeSummary(ctx, "2024-05-01", "2024-05-07")
	if err != nil {
		t.Fatalf("range summary: %v", err)
	}
	for _, want := range []string{"2024-05-01 تا 2024-05-07", "گزارش‌های روزانه: 2", "روزهای دارای گزارش: 2", "گزارش‌دهندگان: 1", "میانگین رضایت: 4.0", "دبیر: 1 گزارش درباره 1 نفر"} {
		if !strings.Contains(r.Text, want) {
			t.Fatalf("range summary lacks %q:\n%s", want, r.Text)
		}
	}

	if _, err := h.conv.RangeSummary(ctx, "2024-05-07", "2024-05-01"); !dialogue.IsValidation(err) {
		t.Fatalf("reversed range err = %v", err)
	}
}
