package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/schoolbot/app/daily"
	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/app/hierarchy"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"
)

// MainMenu is the "ثبت اطلاعات" entry point listing what the user may start.
func (c *Conversation) MainMenu(ctx context.Context, userID int64, userName string) (dialogue.Render, error) {
	role, ok := c.roles.UserRole(userID)
	if !ok || role == roles.Student {
		return dialogue.Text("❌ شما نمی‌توانید از این بخش استفاده کنید."),
			&dialogue.AuthorizationError{UserID: userID, Role: string(role), Kind: "menu"}
	}
	r := dialogue.Text(fmt.Sprintf("📝 ثبت اطلاعات\n\n👤 %s\n🎭 نقش: %s\n\nلطفاً نوع گزارش مورد نظر را انتخاب کنید:",
		userName, role.DisplayName()))
	r = r.WithRow(dialogue.Btn("📊 گزارش روزانه", daily.CallbackStart))
	if len(c.roles.Hierarchy().Reachable(role)) > 0 {
		r = r.WithRow(dialogue.Btn("👥 گزارش‌گیری سلسله‌مراتبی", hierarchy.CallbackStart))
	}
	if c.wizard != nil {
		if _, err := c.wizard.Menu(ctx, userID); err == nil {
			r = r.WithRow(dialogue.Btn("🗂️ مدیریت اطلاعات", entity.MenuCallback))
		}
	}
	return r, nil
}

// MyReports lists what userID filed on date.
func (c *Conversation) MyReports(ctx context.Context, userID int64, date string) (dialogue.Render, error) {
	if date == "" {
		date = c.reports.Today()
	}
	f := reports.Filter{From: date, To: date, ReporterID: userID}
	dailies, err := c.reports.QueryDaily(ctx, f)
	if err != nil {
		return readFailed(), &dialogue.PersistenceError{Op: "query daily", Err: err}
	}
	hier, err := c.reports.QueryHierarchical(ctx, f)
	if err != nil {
		return readFailed(), &dialogue.PersistenceError{Op: "query hierarchical", Err: err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 گزارش‌های شما در تاریخ %s\n", date)
	if len(dailies) == 0 && len(hier) == 0 {
		b.WriteString("\nگزارشی ثبت نشده است.")
		return dialogue.Text(b.String()).WithRow(dialogue.BackToMainButton()), nil
	}
	for _, d := range dailies {
		b.WriteString("\n📊 گزارش روزانه\n")
		b.WriteString(daily.Summary(d.Answers))
		b.WriteString("\n")
	}
	if len(hier) > 0 {
		b.WriteString("\n👥 گزارش‌های سلسله‌مراتبی\n")
		for _, h := range hier {
			fmt.Fprintf(&b, "\n• %s: %s\n", roles.Role(h.TargetRole).DisplayName(), h.TargetName)
			b.WriteString(hierarchy.Summary(h.Answers))
			b.WriteString("\n")
		}
	}
	return dialogue.Text(strings.TrimRight(b.String(), "\n")).WithRow(dialogue.BackToMainButton()), nil
}

// DaySummary aggregates every report filed on date, for the admin.
func (c *Conversation) DaySummary(ctx context.Context, date string) (dialogue.Render, error) {
	if date == "" {
		date = c.reports.Today()
	}
	return c.RangeSummary(ctx, date, date)
}

// RangeSummary aggregates every report filed between from and to, inclusive.
func (c *Conversation) RangeSummary(ctx context.Context, from, to string) (dialogue.Render, error) {
	if from == "" {
		from = c.reports.Today()
	}
	if to == "" {
		to = from
	}
	if to < from {
		return dialogue.Text("❌ تاریخ پایان باید بعد از تاریخ شروع باشد."),
			&dialogue.ValidationError{Reason: "summary range " + from + ".." + to + " is reversed"}
	}
	st, err := c.reports.PeriodStats(ctx, from, to)
	if err != nil {
		return readFailed(), &dialogue.PersistenceError{Op: "daily stats", Err: err}
	}
	rolls, err := c.reports.RollUp(ctx, reports.Filter{From: from, To: to})
	if err != nil {
		return readFailed(), &dialogue.PersistenceError{Op: "roll up", Err: err}
	}

	attendance := daily.Questions[0]
	var b strings.Builder
	if from == to {
		fmt.Fprintf(&b, "📈 خلاصه گزارش‌های %s\n\n", from)
	} else {
		fmt.Fprintf(&b, "📈 خلاصه گزارش‌های %s تا %s\n\n", from, to)
	}
	fmt.Fprintf(&b, "📊 گزارش‌های روزانه: %d\n", st.Count)
	if st.Count > 0 {
		if from != to {
			fmt.Fprintf(&b, "  روزهای دارای گزارش: %d\n  گزارش‌دهندگان: %d\n", st.Days, st.Reporters)
		}
		keys := make([]string, 0, len(st.Attendance))
		for k := range st.Attendance {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", attendance.Label(k), st.Attendance[k])
		}
		fmt.Fprintf(&b, "  میانگین رضایت: %.1f\n", st.MeanSatisfaction)
	}

	b.WriteString("\n👥 گزارش‌های سلسله‌مراتبی")
	if len(rolls) == 0 {
		b.WriteString(": 0\n")
	} else {
		b.WriteString("\n")
	}
	for _, r := range rolls {
		fmt.Fprintf(&b, "  %s: %d گزارش درباره %d نفر، میانگین رضایت %.1f\n",
			roles.Role(r.TargetRole).DisplayName(), r.Count, r.Targets, r.MeanSatisfaction)
	}
	return dialogue.Text(strings.TrimRight(b.String(), "\n")), nil
}

// ErrSummaryArgs is returned for a /summary argument SummaryRange cannot read.
var ErrSummaryArgs = errors.New("bot: invalid summary range")

// SummaryRange turns a /summary argument into an inclusive date range.
// Accepted: nothing (today), one date, two dates, or week/month (also هفته
// and ماه) optionally followed by a date inside the period.
func SummaryRange(arg string, today time.Time) (from, to string, err error) {
	fields := strings.Fields(dialogue.NormalizeDigits(arg))
	parse := func(s string) (time.Time, error) {
		d, ok := tghelpers.ParseFlexibleDate(s, today.Location())
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %q", ErrSummaryArgs, s)
		}
		return d, nil
	}
	day := func() string { return today.Format(reports.DateLayout) }

	if len(fields) == 0 {
		return day(), day(), nil
	}
	switch strings.ToLower(fields[0]) {
	case "week", "هفته", "month", "ماه":
		if len(fields) > 2 {
			return "", "", ErrSummaryArgs
		}
		at := today
		if len(fields) == 2 {
			if at, err = parse(fields[1]); err != nil {
				return "", "", err
			}
		}
		if k := strings.ToLower(fields[0]); k == "week" || k == "هفته" {
			from, to = reports.WeekRange(at)
		} else {
			from, to = reports.MonthRange(at)
		}
		return from, to, nil
	}
	if len(fields) > 2 {
		return "", "", ErrSummaryArgs
	}
	first, err := parse(fields[0])
	if err != nil {
		return "", "", err
	}
	from = first.Format(reports.DateLayout)
	to = from
	if len(fields) == 2 {
		last, err := parse(fields[1])
		if err != nil {
			return "", "", err
		}
		to = last.Format(reports.DateLayout)
	}
	if to < from {
		return "", "", fmt.Errorf("%w: %s is before %s", ErrSummaryArgs, to, from)
	}
	return from, to, nil
}

func readFailed() dialogue.Render {
	return dialogue.Text("❌ خطا در خواندن گزارش‌ها. لطفاً بعداً تلاش کنید.").WithRow(dialogue.BackToMainButton())
}
