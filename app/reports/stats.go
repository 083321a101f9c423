package reports

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// DailyStats aggregates the daily reports of one day or an inclusive range.
type DailyStats struct {
	From             string
	To               string
	Count            int
	Days             int
	Reporters        int
	Attendance       map[string]int
	MeanSatisfaction float64
}

// DailyStats summarizes every daily report filed on date.
func (s *Store) DailyStats(ctx context.Context, date string) (DailyStats, error) {
	return s.PeriodStats(ctx, date, date)
}

// PeriodStats summarizes every daily report filed between from and to, inclusive.
func (s *Store) PeriodStats(ctx context.Context, from, to string) (DailyStats, error) {
	entries, err := s.QueryDaily(ctx, Filter{From: from, To: to})
	if err != nil {
		return DailyStats{}, err
	}
	st := DailyStats{From: from, To: to, Attendance: make(map[string]int)}
	days := make(map[string]struct{})
	reporters := make(map[int64]struct{})
	sum, n := 0, 0
	for _, e := range entries {
		st.Count++
		days[e.Date] = struct{}{}
		reporters[e.ReporterID] = struct{}{}
		if a := e.Answers["attendance"]; a != "" {
			st.Attendance[a]++
		}
		if v, err := strconv.Atoi(e.Answers["satisfaction"]); err == nil {
			sum += v
			n++
		}
	}
	st.Days = len(days)
	st.Reporters = len(reporters)
	if n > 0 {
		st.MeanSatisfaction = float64(sum) / float64(n)
	}
	return st, nil
}

// WeekRange returns the Saturday-to-Friday week containing day.
func WeekRange(day time.Time) (from, to string) {
	offset := (int(day.Weekday()) + 1) % 7
	start := day.AddDate(0, 0, -offset)
	return start.Format(DateLayout), start.AddDate(0, 0, 6).Format(DateLayout)
}

// MonthRange returns the first and last day of day's calendar month.
func MonthRange(day time.Time) (from, to string) {
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return start.Format(DateLayout), start.AddDate(0, 1, -1).Format(DateLayout)
}

// RoleRollUp aggregates hierarchical reports about one target role.
type RoleRollUp struct {
	TargetRole       string
	Count            int
	Targets          int
	MeanSatisfaction float64
	Communication    map[string]int
}

// RollUp groups matching hierarchical reports by target role, ordered by role tag.
func (s *Store) RollUp(ctx context.Context, f Filter) ([]RoleRollUp, error) {
	entries, err := s.QueryHierarchical(ctx, f)
	if err != nil {
		return nil, err
	}
	type acc struct {
		RoleRollUp
		sum, n  int
		targets map[string]struct{}
	}
	byRole := make(map[string]*acc)
	for _, e := range entries {
		a := byRole[e.TargetRole]
		if a == nil {
			a = &acc{
				RoleRollUp: RoleRollUp{TargetRole: e.TargetRole, Communication: make(map[string]int)},
				targets:    make(map[string]struct{}),
			}
			byRole[e.TargetRole] = a
		}
		a.Count++
		a.targets[e.TargetUserID] = struct{}{}
		if c := e.Answers["communication"]; c != "" {
			a.Communication[c]++
		}
		if v, err := strconv.Atoi(e.Answers["satisfaction"]); err == nil {
			a.sum += v
			a.n++
		}
	}
	out := make([]RoleRollUp, 0, len(byRole))
	for _, a := range byRole {
		r := a.RoleRollUp
		r.Targets = len(a.targets)
		if a.n > 0 {
			r.MeanSatisfaction = float64(a.sum) / float64(a.n)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetRole < out[j].TargetRole })
	return out, nil
}
