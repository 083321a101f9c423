// Package daily is the three-question daily report dialogue.
package daily

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/events"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/logger"
)

// Callback identifiers. Every one starts with Prefix.
const (
	Prefix          = "daily_"
	CallbackStart   = "daily_report"
	CallbackConfirm = "daily_confirm"
	CallbackCancel  = "daily_cancel"
	CallbackEdit    = "daily_edit"
)

// Steps.
const (
	StepQ1         session.Step = "collecting_q1"
	StepQ2         session.Step = "collecting_q2"
	StepQ3         session.Step = "collecting_q3"
	StepConfirming session.Step = "confirming"
)

const (
	component = "dialogue.daily"
	metaDate  = "date"
	metaAmend = "amend"
)

func keycapButton(o dialogue.Option) string { return dialogue.Keycap(o.Value) }

// Questions is the fixed question table. Stored values are option indices.
var Questions = []dialogue.Question{
	{
		Key:    "attendance",
		Title:  "👥 تعداد حاضرین",
		Prompt: "🎯 امروز چند نفر در کلاس حضور داشتند؟",
		Options: []dialogue.Option{
			{Value: "1", Label: "کمتر از 5 نفر"},
			{Value: "2", Label: "5 تا 10 نفر"},
			{Value: "3", Label: "10 تا 15 نفر"},
			{Value: "4", Label: "بیشتر از 15 نفر"},
		},
		Callback:   "daily_answer_",
		ButtonText: keycapButton,
		PerRow:     2,
	},
	{
		Key:    "satisfaction",
		Title:  "😊 سطح رضایت",
		Prompt: "📚 سطح رضایت دانشجویان از کلاس امروز چقدر بود؟",
		Options: []dialogue.Option{
			{Value: "1", Label: "خیلی کم"},
			{Value: "2", Label: "کم"},
			{Value: "3", Label: "متوسط"},
			{Value: "4", Label: "زیاد"},
			{Value: "5", Label: "خیلی زیاد"},
		},
		Callback:   "daily_satisfaction_",
		ButtonText: keycapButton,
		PerRow:     3,
	},
	{
		Key:    "issues",
		Title:  "💭 مشکلات",
		Prompt: "💭 مشکلات و چالش‌های امروز در کلاس چه بود؟\n\nلطفاً توضیح دهید:",
		MinLen: dialogue.DefaultMinTextLen,
	},
}

var steps = []session.Step{StepQ1, StepQ2, StepQ3}

var ordinals = []string{"سوال اول", "سوال دوم", "سوال سوم"}

// Reports is the persistence the engine needs.
type Reports interface {
	Today() string
	HasDaily(ctx context.Context, date string, reporterID int64) (bool, error)
	AppendDaily(ctx context.Context, date string, reporterID int64, rec reports.DailyRecord, amend bool) error
}

// Engine runs the daily report dialogue.
type Engine struct {
	sessions *session.Store
	roles    roles.Lookup
	reports  Reports
	bus      events.Publisher
}

// NewEngine wires the engine's collaborators.
func NewEngine(sessions *session.Store, lookup roles.Lookup, store Reports, bus events.Publisher) *Engine {
	return &Engine{sessions: sessions, roles: lookup, reports: store, bus: bus}
}

func (e *Engine) authorize(userID int64) error {
	role, ok := e.roles.UserRole(userID)
	if !ok || role == roles.Student {
		return &dialogue.AuthorizationError{UserID: userID, Role: string(role), Kind: string(session.KindDaily)}
	}
	return nil
}

// Start opens the dialogue, or offers the edit flow when today's report exists.
func (e *Engine) Start(ctx context.Context, chatID, userID int64, userName string) (dialogue.Render, error) {
	return e.start(ctx, chatID, userID, userName, false)
}

func (e *Engine) start(ctx context.Context, chatID, userID int64, userName string, amend bool) (dialogue.Render, error) {
	if err := e.authorize(userID); err != nil {
		return dialogue.Denied(), err
	}
	unlock := e.sessions.Lock(chatID)
	defer unlock()

	if existing, ok := e.sessions.Get(chatID); ok {
		if existing.Kind == session.KindDaily {
			return e.Prompt(ctx, existing), nil
		}
		return dialogue.Conflict(existing.Kind.Title()), &dialogue.SessionConflictError{Active: string(existing.Kind), Requested: string(session.KindDaily)}
	}

	today := e.reports.Today()
	if !amend {
		done, err := e.reports.HasDaily(ctx, today, userID)
		if err != nil {
			return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", CallbackStart), dialogue.BackToMainButton()),
				&dialogue.PersistenceError{Op: "check daily", Err: err}
		}
		if done {
			return alreadyReported(), nil
		}
	}

	sess := session.New(chatID, userID, userName, session.KindDaily, StepQ1)
	sess.Meta[metaDate] = today
	if amend {
		sess.Meta[metaAmend] = "1"
	}
	if err := e.sessions.Create(sess); err != nil {
		return dialogue.StartOver(), err
	}
	logger.Info(ctx, component, "dialogue_started",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
		slog.Bool("amend", amend),
	)
	return e.Prompt(ctx, sess), nil
}

func alreadyReported() dialogue.Render {
	return dialogue.Text("📝 شما امروز گزارش داده‌اید. آیا می‌خواهید گزارش خود را ویرایش کنید؟").
		WithRow(dialogue.Btn("✏️ ویرایش گزارش", CallbackEdit), dialogue.Btn("❌ انصراف", CallbackCancel))
}

// Prompt renders the session's current step.
func (e *Engine) Prompt(_ context.Context, sess *session.Session) dialogue.Render {
	if sess.Step == StepConfirming {
		summary := dialogue.Summary(Questions, sess.Answers.Get)
		return dialogue.Text("📋 خلاصه گزارش شما:\n\n"+summary+"\n\n✅ آیا می‌خواهید این گزارش را ثبت کنید؟").
			WithRow(dialogue.Btn("✅ ثبت گزارش", CallbackConfirm), dialogue.Btn("❌ انصراف", CallbackCancel)).
			WithRow(dialogue.Btn("✏️ ویرایش", CallbackEdit))
	}
	i := stepIndex(sess.Step)
	if i < 0 {
		return dialogue.StartOver()
	}
	q := Questions[i]
	text := "📝 ثبت گزارش روزانه\n\n" + ordinals[i] + ":\n\n" + q.Prompt
	if opts := q.OptionsText(); opts != "" {
		text += "\n\n" + opts
	}
	r := dialogue.Render{Text: text, Keyboard: q.Buttons()}
	return r.WithRow(dialogue.Btn("❌ انصراف", CallbackCancel))
}

func stepIndex(s session.Step) int {
	for i, st := range steps {
		if st == s {
			return i
		}
	}
	return -1
}

// HandleCallback handles every daily_ button.
func (e *Engine) HandleCallback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	switch ev.Data {
	case CallbackStart:
		return e.Start(ctx, ev.ChatID, ev.UserID, ev.UserName)
	case CallbackCancel:
		return e.Cancel(ctx, ev.ChatID)
	case CallbackEdit:
		return e.edit(ctx, ev)
	}

	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	sess, ok := e.sessions.Get(ev.ChatID)
	if !ok || sess.Kind != session.KindDaily {
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}

	if ev.Data == CallbackConfirm {
		if sess.Step != StepConfirming {
			return dialogue.Invalid("❌ هنوز به همه سوالات پاسخ نداده‌اید.", e.Prompt(ctx, sess)),
				&dialogue.ValidationError{Reason: "confirm before last step"}
		}
		return e.commit(ctx, sess)
	}

	i := stepIndex(sess.Step)
	if i < 0 {
		return dialogue.Invalid("❌ خطا: دکمه نامعتبر.", e.Prompt(ctx, sess)), &dialogue.ValidationError{Reason: "no button expected at " + string(sess.Step)}
	}
	value, err := Questions[i].ParseCallback(ev.Data)
	if err != nil {
		return dialogue.Invalid(Questions[i].RetryHint(), e.Prompt(ctx, sess)), err
	}
	return e.advance(ctx, sess, i, value), nil
}

// HandleAnswer handles typed input for the current step.
func (e *Engine) HandleAnswer(ctx context.Context, ev dialogue.MessageEvent) (dialogue.Render, error) {
	if dialogue.IsCancel(ev.Text) {
		return e.Cancel(ctx, ev.ChatID)
	}
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	sess, ok := e.sessions.Get(ev.ChatID)
	if !ok || sess.Kind != session.KindDaily {
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}

	if sess.Step == StepConfirming {
		if dialogue.IsConfirm(ev.Text) {
			return e.commit(ctx, sess)
		}
		return dialogue.Invalid("❌ لطفاً یکی از گزینه‌های ✅ یا ❌ را انتخاب کنید.", e.Prompt(ctx, sess)),
			&dialogue.ValidationError{Reason: "expected confirmation"}
	}
	i := stepIndex(sess.Step)
	if i < 0 {
		e.sessions.Delete(ev.ChatID)
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}
	value, err := Questions[i].ParseText(ev.Text)
	if err != nil {
		return dialogue.Invalid(Questions[i].RetryHint(), e.Prompt(ctx, sess)), err
	}
	return e.advance(ctx, sess, i, value), nil
}

func (e *Engine) advance(ctx context.Context, sess *session.Session, i int, value string) dialogue.Render {
	sess.Answers.Set(Questions[i].Key, value)
	if i+1 < len(steps) {
		sess.Step = steps[i+1]
	} else {
		sess.Step = StepConfirming
	}
	e.sessions.Put(sess)
	logger.Debug(ctx, component, "step_advanced",
		slog.Int64("chat_id", sess.ChatID),
		slog.String("step", string(sess.Step)),
	)
	return e.Prompt(ctx, sess)
}

// edit restarts the questions. The session counts as an amendment only when
// a report for its date is on file.
func (e *Engine) edit(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	unlock := e.sessions.Lock(ev.ChatID)
	sess, ok := e.sessions.Get(ev.ChatID)
	if ok && sess.Kind == session.KindDaily {
		defer unlock()
		date := sess.Meta[metaDate]
		if date == "" {
			date = e.reports.Today()
		}
		done, err := e.reports.HasDaily(ctx, date, sess.UserID)
		if err != nil {
			return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", CallbackEdit), dialogue.Btn("❌ انصراف", CallbackCancel)),
				&dialogue.PersistenceError{Op: "check daily", Err: err}
		}
		sess.Step = StepQ1
		sess.Answers = session.NewAnswers()
		if done {
			sess.Meta[metaAmend] = "1"
		} else {
			delete(sess.Meta, metaAmend)
		}
		e.sessions.Put(sess)
		return e.Prompt(ctx, sess), nil
	}
	unlock()

	done, err := e.reports.HasDaily(ctx, e.reports.Today(), ev.UserID)
	if err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", CallbackEdit), dialogue.BackToMainButton()),
			&dialogue.PersistenceError{Op: "check daily", Err: err}
	}
	return e.start(ctx, ev.ChatID, ev.UserID, ev.UserName, done)
}

func (e *Engine) commit(ctx context.Context, sess *session.Session) (dialogue.Render, error) {
	date := sess.Meta[metaDate]
	if date == "" {
		date = e.reports.Today()
	}
	rec := reports.DailyRecord{UserName: sess.UserName, Answers: sess.Answers.Map()}
	amend := sess.Meta[metaAmend] != ""
	err := e.reports.AppendDaily(ctx, date, sess.UserID, rec, amend)
	if errors.Is(err, reports.ErrDuplicate) {
		// Filed from another chat after this session started.
		logger.Warn(ctx, component, "commit_duplicate",
			slog.Int64("chat_id", sess.ChatID),
			slog.Int64("user_id", sess.UserID),
			slog.String("date", date),
		)
		return alreadyReported(), &dialogue.ValidationError{Reason: "daily report already filed for " + date}
	}
	if err != nil {
		logger.Error(ctx, component, "commit_failed",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("error", err.Error()),
		)
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", CallbackConfirm), dialogue.Btn("❌ انصراف", CallbackCancel)),
			&dialogue.PersistenceError{Op: "append daily", Err: err}
	}
	e.sessions.Delete(sess.ChatID)
	logger.Info(ctx, component, "report_committed",
		slog.Int64("chat_id", sess.ChatID),
		slog.Int64("user_id", sess.UserID),
		slog.String("date", date),
	)
	if e.bus != nil {
		payload := sess.Answers.Map()
		payload["date"] = date
		payload["user_name"] = sess.UserName
		if amend {
			payload["amended"] = "true"
		}
		e.bus.Publish(ctx, events.Event{Topic: events.TopicDailySubmitted, ChatID: sess.ChatID, UserID: sess.UserID, Payload: payload})
	}
	return dialogue.Text("✅ گزارش شما با موفقیت ثبت شد و برای مدیر ارسال گردید.").WithRow(dialogue.BackToMainButton()), nil
}

// Cancel deletes the chat's daily session.
func (e *Engine) Cancel(ctx context.Context, chatID int64) (dialogue.Render, error) {
	unlock := e.sessions.Lock(chatID)
	defer unlock()
	if sess, ok := e.sessions.Get(chatID); ok && sess.Kind == session.KindDaily {
		e.sessions.Delete(chatID)
		logger.Info(ctx, component, "dialogue_cancelled", slog.Int64("chat_id", chatID))
	}
	return dialogue.Text("❌ ثبت گزارش لغو شد.").WithRow(dialogue.BackToMainButton()), nil
}

// Summary renders stored answers with display labels.
func Summary(answers map[string]string) string {
	return dialogue.Summary(Questions, func(k string) (string, bool) {
		v, ok := answers[k]
		return v, ok
	})
}
