// Package hierarchy is the role-hierarchical report dialogue: pick a
// subordinate role, then a subordinate, then answer three questions.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/app/events"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/logger"
)

// Callback identifiers and prefixes.
const (
	CallbackStart       = "hierarchical_report"
	PrefixSelectRole    = "select_role_"
	PrefixSelectUser    = "select_user_"
	PrefixCommunication = "communication_"
	PrefixSatisfaction  = "satisfaction_"
	PrefixBack          = "back_to_"
	CallbackSkip        = "skip_description"
	CallbackConfirm     = "confirm_report"
	CallbackCancel      = "cancel_report"
	BackToRoleSelection = "back_to_role_selection"
	BackToUserSelection = "back_to_user_selection"
	BackToCommunication = "back_to_communication"
	BackToSatisfaction  = "back_to_satisfaction"
	BackToDescription   = "back_to_description"
)

// Steps, in traversal order.
const (
	StepSelectRole       session.Step = "select_role"
	StepSelectTarget     session.Step = "select_target"
	StepAskCommunication session.Step = "ask_communication"
	StepAskSatisfaction  session.Step = "ask_satisfaction"
	StepAskDescription   session.Step = "ask_description"
	StepConfirm          session.Step = "confirm"
)

var order = []session.Step{
	StepSelectRole,
	StepSelectTarget,
	StepAskCommunication,
	StepAskSatisfaction,
	StepAskDescription,
	StepConfirm,
}

var backTargets = map[string]session.Step{
	BackToRoleSelection: StepSelectRole,
	BackToUserSelection: StepSelectTarget,
	BackToCommunication: StepAskCommunication,
	BackToSatisfaction:  StepAskSatisfaction,
	BackToDescription:   StepAskDescription,
}

// Answer keys.
const (
	KeyCommunication = "communication"
	KeySatisfaction  = "satisfaction"
	KeyDescription   = "description"
)

var (
	communication = dialogue.Question{
		Key:    KeyCommunication,
		Title:  "📞 ارتباط",
		Prompt: "📞 آیا با این %s ارتباط داشته‌اید؟",
		Options: []dialogue.Option{
			{Value: "communication_phone", Label: "تماس تلفنی"},
			{Value: "communication_meeting", Label: "ملاقات حضوری"},
			{Value: "communication_none", Label: "بدون ارتباط"},
		},
		ButtonText: func(o dialogue.Option) string {
			switch o.Value {
			case "communication_phone":
				return "✅ بله، تماس تلفنی"
			case "communication_meeting":
				return "🤝 بله، ملاقات حضوری"
			}
			return "❌ خیر، ارتباطی نداشته‌ام"
		},
		PerRow: 1,
	}
	satisfaction = dialogue.Question{
		Key:    KeySatisfaction,
		Title:  "😊 رضایت",
		Prompt: "😊 میزان رضایت از پیگیری این %s چقدر است؟",
		Options: []dialogue.Option{
			{Value: "1", Label: "خیلی کم"},
			{Value: "2", Label: "کم"},
			{Value: "3", Label: "متوسط"},
			{Value: "4", Label: "زیاد"},
			{Value: "5", Label: "خیلی زیاد"},
		},
		Callback:   PrefixSatisfaction,
		ButtonText: func(o dialogue.Option) string { return dialogue.Keycap(o.Value) + " " + o.Label },
		PerRow:     1,
	}
	description = dialogue.Question{
		Key:      KeyDescription,
		Title:    "💭 توضیحات",
		Prompt:   "💭 توضیحات اضافی (اختیاری):\n\nلطفاً توضیحات خود را وارد کنید یا «رد کردن» را انتخاب کنید:",
		MinLen:   dialogue.DefaultMinTextLen,
		Optional: true,
	}
)

// Questions is the fixed question sequence after target selection.
var Questions = []dialogue.Question{communication, satisfaction, description}

const (
	component      = "dialogue.hierarchy"
	metaRole       = "reporter_role"
	metaTargetName = "target_name"
	skipText       = "⏭️ رد کردن"
)

// Targets lists reportable subjects per role.
type Targets interface {
	ListByRole(ctx context.Context, role roles.Role) ([]entity.Target, error)
	Lookup(ctx context.Context, role roles.Role, id string) (entity.Target, bool, error)
}

// Reports is the persistence the engine needs.
type Reports interface {
	Today() string
	AppendHierarchical(ctx context.Context, date string, reporterID int64, rec reports.HierarchicalRecord) error
}

// Engine runs the hierarchical report dialogue.
type Engine struct {
	sessions *session.Store
	roles    roles.Source
	targets  Targets
	reports  Reports
	bus      events.Publisher
}

// NewEngine wires the engine's collaborators.
func NewEngine(sessions *session.Store, rs roles.Source, targets Targets, store Reports, bus events.Publisher) *Engine {
	return &Engine{sessions: sessions, roles: rs, targets: targets, reports: store, bus: bus}
}

// Start opens role selection for a non-student reporter.
func (e *Engine) Start(ctx context.Context, chatID, userID int64, userName string) (dialogue.Render, error) {
	role, ok := e.roles.UserRole(userID)
	if !ok || role == roles.Student {
		return dialogue.Denied(), &dialogue.AuthorizationError{UserID: userID, Role: string(role), Kind: string(session.KindHierarchical)}
	}
	if len(e.roles.Hierarchy().Reachable(role)) == 0 {
		return dialogue.Text("❌ شما نمی‌توانید از هیچ نقشی گزارش بگیرید.").WithRow(dialogue.BackToMainButton()),
			&dialogue.ConfigurationError{Reason: "role " + string(role) + " reaches no subordinate role"}
	}

	unlock := e.sessions.Lock(chatID)
	defer unlock()
	if existing, ok := e.sessions.Get(chatID); ok {
		if existing.Kind == session.KindHierarchical {
			return e.Prompt(ctx, existing), nil
		}
		return dialogue.Conflict(existing.Kind.Title()), &dialogue.SessionConflictError{Active: string(existing.Kind), Requested: string(session.KindHierarchical)}
	}

	sess := session.New(chatID, userID, userName, session.KindHierarchical, StepSelectRole)
	sess.Meta[metaRole] = string(role)
	if err := e.sessions.Create(sess); err != nil {
		return dialogue.StartOver(), err
	}
	logger.Info(ctx, component, "dialogue_started",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
		slog.String("role", string(role)),
	)
	return e.Prompt(ctx, sess), nil
}

// OfferedRoles returns the subordinate roles shown at role selection.
func (e *Engine) OfferedRoles(reporter roles.Role) []roles.Role {
	return e.roles.Hierarchy().Reachable(reporter)
}

func targetRole(sess *session.Session) roles.Role { return roles.Role(sess.SelectedRole) }

func header(sess *session.Session) string {
	return "📝 گزارش‌گیری از " + targetRole(sess).DisplayName()
}

// Prompt renders the session's current step.
func (e *Engine) Prompt(ctx context.Context, sess *session.Session) dialogue.Render {
	reporter := roles.Role(sess.Meta[metaRole])
	switch sess.Step {
	case StepSelectRole:
		r := dialogue.Text(fmt.Sprintf("📝 گزارش‌گیری سلسله‌مراتبی\n\n👤 شما به عنوان %s می‌توانید از نقش‌های زیر گزارش بگیرید:\n\nلطفاً نقش مورد نظر را انتخاب کنید:", reporter.DisplayName()))
		for _, role := range e.OfferedRoles(reporter) {
			r = r.WithRow(dialogue.Btn("👥 "+role.DisplayName()+"ها", PrefixSelectRole+string(role)))
		}
		return r.WithRow(dialogue.BackToMainButton())

	case StepSelectTarget:
		r, _ := e.targetList(ctx, targetRole(sess))
		return r

	case StepAskCommunication:
		name := targetRole(sess).DisplayName()
		r := dialogue.Render{
			Text:     fmt.Sprintf("%s\n\n👤 %s\n\nسوال اول:\n\n"+communication.Prompt, header(sess), sess.Meta[metaTargetName], name),
			Keyboard: communication.Buttons(),
		}
		return r.WithRow(dialogue.Btn("🔙 بازگشت", BackToUserSelection))

	case StepAskSatisfaction:
		name := targetRole(sess).DisplayName()
		r := dialogue.Render{
			Text: fmt.Sprintf("%s\n\n📞 ارتباط: %s\n\nسوال دوم:\n\n"+satisfaction.Prompt,
				header(sess), communication.Label(sess.Answers.Value(KeyCommunication)), name),
			Keyboard: satisfaction.Buttons(),
		}
		return r.WithRow(dialogue.Btn("🔙 بازگشت", BackToCommunication))

	case StepAskDescription:
		return dialogue.Text(fmt.Sprintf("%s\n\n😊 رضایت: %s\n\nسوال سوم:\n\n%s",
			header(sess), satisfaction.Label(sess.Answers.Value(KeySatisfaction)), description.Prompt)).
			WithRow(dialogue.Btn("⏭️ رد کردن", CallbackSkip)).
			WithRow(dialogue.Btn("🔙 بازگشت", BackToSatisfaction))

	case StepConfirm:
		text := fmt.Sprintf("📋 خلاصه گزارش شما:\n\n👤 %s: %s\n%s\n\n✅ آیا می‌خواهید این گزارش را ثبت کنید؟",
			targetRole(sess).DisplayName(), sess.Meta[metaTargetName],
			dialogue.Summary(Questions, sess.Answers.Get))
		return dialogue.Text(text).
			WithRow(dialogue.Btn("✅ ثبت گزارش", CallbackConfirm)).
			WithRow(dialogue.Btn("❌ انصراف", CallbackCancel)).
			WithRow(dialogue.Btn("🔙 بازگشت", BackToDescription))
	}
	return dialogue.StartOver()
}

// targetList renders the selectable subjects of role. An empty directory is
// a recoverable ConfigurationError with a path back to role selection.
func (e *Engine) targetList(ctx context.Context, role roles.Role) (dialogue.Render, error) {
	back := dialogue.Btn("🔙 بازگشت", BackToRoleSelection)
	targets, err := e.targets.ListByRole(ctx, role)
	if err != nil {
		return dialogue.Text("❌ خطا در بارگذاری لیست کاربران.").
			WithRow(dialogue.Btn("🔄 تلاش مجدد", PrefixSelectRole+string(role)), back),
			&dialogue.PersistenceError{Op: "list " + string(role), Err: err}
	}
	if len(targets) == 0 {
		return dialogue.Text(fmt.Sprintf("❌ هیچ %sی یافت نشد.", role.DisplayName())).WithRow(back),
			&dialogue.ConfigurationError{Reason: "no targets with role " + string(role)}
	}
	r := dialogue.Text(fmt.Sprintf("👥 انتخاب %s\n\nلطفاً %s مورد نظر را انتخاب کنید:", role.DisplayName(), role.DisplayName()))
	for _, t := range targets {
		r = r.WithRow(dialogue.Btn("👤 "+t.Name, PrefixSelectUser+t.ID))
	}
	return r.WithRow(back), nil
}

func (e *Engine) current(ctx context.Context, chatID int64) (*session.Session, dialogue.Render, error) {
	sess, ok := e.sessions.Get(chatID)
	if !ok || sess.Kind != session.KindHierarchical {
		return nil, dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: chatID}
	}
	return sess, dialogue.Render{}, nil
}

func (e *Engine) reject(ctx context.Context, sess *session.Session, reason string) (dialogue.Render, error) {
	return dialogue.Invalid("❌ خطا: انتخاب نامعتبر.", e.Prompt(ctx, sess)), &dialogue.ValidationError{Reason: reason}
}

// HandleCallback handles every button of the traversal.
func (e *Engine) HandleCallback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	switch ev.Data {
	case CallbackStart:
		return e.Start(ctx, ev.ChatID, ev.UserID, ev.UserName)
	case CallbackCancel:
		return e.Cancel(ctx, ev.ChatID)
	}

	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	sess, r, err := e.current(ctx, ev.ChatID)
	if err != nil {
		return r, err
	}

	data := ev.Data
	switch {
	case strings.HasPrefix(data, PrefixBack):
		return e.back(ctx, sess, data)

	case strings.HasPrefix(data, PrefixSelectRole):
		if sess.Step != StepSelectRole {
			return e.reject(ctx, sess, "role selection at "+string(sess.Step))
		}
		return e.selectRole(ctx, sess, roles.Role(strings.TrimPrefix(data, PrefixSelectRole)))

	case strings.HasPrefix(data, PrefixSelectUser):
		if sess.Step != StepSelectTarget {
			return e.reject(ctx, sess, "target selection at "+string(sess.Step))
		}
		return e.selectTarget(ctx, sess, strings.TrimPrefix(data, PrefixSelectUser))

	case strings.HasPrefix(data, PrefixCommunication):
		if sess.Step != StepAskCommunication {
			return e.reject(ctx, sess, "communication answer at "+string(sess.Step))
		}
		v, err := communication.ParseCallback(data)
		if err != nil {
			return dialogue.Invalid(communication.RetryHint(), e.Prompt(ctx, sess)), err
		}
		return e.answer(ctx, sess, KeyCommunication, v, StepAskSatisfaction), nil

	case strings.HasPrefix(data, PrefixSatisfaction):
		if sess.Step != StepAskSatisfaction {
			return e.reject(ctx, sess, "satisfaction answer at "+string(sess.Step))
		}
		v, err := satisfaction.ParseCallback(data)
		if err != nil {
			return dialogue.Invalid(satisfaction.RetryHint(), e.Prompt(ctx, sess)), err
		}
		return e.answer(ctx, sess, KeySatisfaction, v, StepAskDescription), nil

	case data == CallbackSkip:
		if sess.Step != StepAskDescription {
			return e.reject(ctx, sess, "skip at "+string(sess.Step))
		}
		return e.answer(ctx, sess, KeyDescription, "", StepConfirm), nil

	case data == CallbackConfirm:
		if sess.Step != StepConfirm {
			return e.reject(ctx, sess, "confirm at "+string(sess.Step))
		}
		return e.commit(ctx, sess)
	}
	return e.reject(ctx, sess, "unknown callback "+data)
}

func (e *Engine) selectRole(ctx context.Context, sess *session.Session, role roles.Role) (dialogue.Render, error) {
	reporter := roles.Role(sess.Meta[metaRole])
	if !e.roles.Hierarchy().CanReportOn(reporter, role) {
		return e.reject(ctx, sess, fmt.Sprintf("%s may not report on %s", reporter, role))
	}
	r, err := e.targetList(ctx, role)
	if dialogue.IsPersistence(err) {
		return r, err
	}
	sess.SelectedRole = string(role)
	sess.Step = StepSelectTarget
	e.sessions.Put(sess)
	return r, err
}

func (e *Engine) selectTarget(ctx context.Context, sess *session.Session, id string) (dialogue.Render, error) {
	t, ok, err := e.targets.Lookup(ctx, targetRole(sess), id)
	if err != nil {
		return dialogue.Invalid("❌ خطا در بارگذاری اطلاعات کاربر.", e.Prompt(ctx, sess)),
			&dialogue.PersistenceError{Op: "lookup target", Err: err}
	}
	if !ok {
		return e.reject(ctx, sess, "unknown target "+id)
	}
	sess.SelectedTargetID = t.ID
	sess.Meta[metaTargetName] = t.Name
	sess.Step = StepAskCommunication
	e.sessions.Put(sess)
	return e.Prompt(ctx, sess), nil
}

func (e *Engine) answer(ctx context.Context, sess *session.Session, key, value string, next session.Step) dialogue.Render {
	sess.Answers.Set(key, value)
	sess.Step = next
	e.sessions.Put(sess)
	logger.Debug(ctx, component, "step_advanced",
		slog.Int64("chat_id", sess.ChatID),
		slog.String("step", string(next)),
	)
	return e.Prompt(ctx, sess)
}

func stepIndex(s session.Step) int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// back returns to an earlier step. Answers of that step and later ones are
// dropped; earlier answers stay.
func (e *Engine) back(ctx context.Context, sess *session.Session, data string) (dialogue.Render, error) {
	target, ok := backTargets[data]
	if !ok {
		return e.reject(ctx, sess, "unknown back target "+data)
	}
	to, from := stepIndex(target), stepIndex(sess.Step)
	if to >= from {
		return e.reject(ctx, sess, fmt.Sprintf("cannot go back from %s to %s", sess.Step, target))
	}
	for i := to; i < len(order); i++ {
		switch order[i] {
		case StepSelectRole:
			sess.SelectedRole = ""
		case StepSelectTarget:
			sess.SelectedTargetID = ""
			delete(sess.Meta, metaTargetName)
		case StepAskCommunication:
			sess.Answers.Delete(KeyCommunication)
		case StepAskSatisfaction:
			sess.Answers.Delete(KeySatisfaction)
		case StepAskDescription:
			sess.Answers.Delete(KeyDescription)
		}
	}
	sess.Step = target
	e.sessions.Put(sess)
	r := e.Prompt(ctx, sess)
	return r, nil
}

// HandleAnswer handles typed input; only the description and confirm steps take text.
func (e *Engine) HandleAnswer(ctx context.Context, ev dialogue.MessageEvent) (dialogue.Render, error) {
	if dialogue.IsCancel(ev.Text) {
		return e.Cancel(ctx, ev.ChatID)
	}
	unlock := e.sessions.Lock(ev.ChatID)
	defer unlock()
	sess, r, err := e.current(ctx, ev.ChatID)
	if err != nil {
		return r, err
	}

	switch sess.Step {
	case StepAskDescription:
		if strings.TrimSpace(ev.Text) == skipText {
			return e.answer(ctx, sess, KeyDescription, "", StepConfirm), nil
		}
		v, err := description.ParseText(ev.Text)
		if err != nil {
			return dialogue.Invalid(description.RetryHint(), e.Prompt(ctx, sess)), err
		}
		return e.answer(ctx, sess, KeyDescription, v, StepConfirm), nil
	case StepAskSatisfaction:
		v, err := satisfaction.ParseText(ev.Text)
		if err != nil {
			return dialogue.Invalid(satisfaction.RetryHint(), e.Prompt(ctx, sess)), err
		}
		return e.answer(ctx, sess, KeySatisfaction, v, StepAskDescription), nil
	case StepConfirm:
		if dialogue.IsConfirm(ev.Text) {
			return e.commit(ctx, sess)
		}
		return dialogue.Invalid("❌ لطفاً یکی از گزینه‌های ✅ یا ❌ را انتخاب کنید.", e.Prompt(ctx, sess)),
			&dialogue.ValidationError{Reason: "expected confirmation"}
	}
	return dialogue.Invalid("❌ لطفاً از دکمه‌های زیر استفاده کنید.", e.Prompt(ctx, sess)),
		&dialogue.ValidationError{Reason: "text at " + string(sess.Step)}
}

func (e *Engine) commit(ctx context.Context, sess *session.Session) (dialogue.Render, error) {
	date := e.reports.Today()
	rec := reports.HierarchicalRecord{
		ReporterRole: sess.Meta[metaRole],
		ReporterName: sess.UserName,
		TargetRole:   sess.SelectedRole,
		TargetUserID: sess.SelectedTargetID,
		TargetName:   sess.Meta[metaTargetName],
		Answers: map[string]string{
			KeyCommunication: sess.Answers.Value(KeyCommunication),
			KeySatisfaction:  sess.Answers.Value(KeySatisfaction),
			KeyDescription:   sess.Answers.Value(KeyDescription),
		},
	}
	err := e.reports.AppendHierarchical(ctx, date, sess.UserID, rec)
	if errors.Is(err, reports.ErrDuplicate) {
		return dialogue.Text("⚠️ امروز قبلاً درباره این فرد گزارش ثبت کرده‌اید.").
			WithRow(dialogue.Btn("👥 انتخاب فرد دیگر", BackToUserSelection)).
			WithRow(dialogue.Btn("❌ انصراف", CallbackCancel)),
			&dialogue.ValidationError{Reason: "duplicate report about " + rec.Key()}
	}
	if err != nil {
		logger.Error(ctx, component, "commit_failed",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("error", err.Error()),
		)
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", CallbackConfirm), dialogue.Btn("❌ انصراف", CallbackCancel)),
			&dialogue.PersistenceError{Op: "append hierarchical", Err: err}
	}
	e.sessions.Delete(sess.ChatID)
	logger.Info(ctx, component, "report_committed",
		slog.Int64("chat_id", sess.ChatID),
		slog.Int64("user_id", sess.UserID),
		slog.String("target", rec.Key()),
		slog.String("date", date),
	)
	if e.bus != nil {
		payload := map[string]string{
			"date":          date,
			"reporter_role": rec.ReporterRole,
			"reporter_name": rec.ReporterName,
			"target_role":   rec.TargetRole,
			"target_id":     rec.TargetUserID,
			"target_name":   rec.TargetName,
		}
		for k, v := range rec.Answers {
			payload[k] = v
		}
		e.bus.Publish(ctx, events.Event{Topic: events.TopicHierarchicalSubmitted, ChatID: sess.ChatID, UserID: sess.UserID, Payload: payload})
	}
	return dialogue.Text("✅ گزارش شما با موفقیت ثبت شد و برای نقش بالاتر ارسال گردید.").WithRow(dialogue.BackToMainButton()), nil
}

// Cancel deletes the chat's hierarchical session.
func (e *Engine) Cancel(ctx context.Context, chatID int64) (dialogue.Render, error) {
	unlock := e.sessions.Lock(chatID)
	defer unlock()
	if sess, ok := e.sessions.Get(chatID); ok && sess.Kind == session.KindHierarchical {
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
