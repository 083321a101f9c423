package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/events"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/logger"
)

const (
	// MenuCallback opens the directory management menu.
	MenuCallback = "entity_menu"

	metaKind    = "entity"
	stepConfirm = session.Step("add_confirm")
	component   = "dialogue.entity"
)

// Wizard is the CRUD dialogue shared by every directory kind.
type Wizard struct {
	kinds    []Kind
	stores   map[string]*Store
	sessions *session.Store
	roles    roles.Source
	bus      events.Publisher
}

// NewWizard builds a wizard over the given stores. Kind order follows stores.
func NewWizard(sessions *session.Store, rs roles.Source, bus events.Publisher, stores ...*Store) *Wizard {
	w := &Wizard{
		stores:   make(map[string]*Store, len(stores)),
		sessions: sessions,
		roles:    rs,
		bus:      bus,
	}
	for _, s := range stores {
		w.kinds = append(w.kinds, s.kind)
		w.stores[s.kind.Key] = s
	}
	return w
}

// Prefixes lists the callback prefixes the wizard owns.
func (w *Wizard) Prefixes() []string {
	out := make([]string, 0, len(w.kinds))
	for _, k := range w.kinds {
		out = append(out, k.Prefix())
	}
	return out
}

func (w *Wizard) canManage(userID int64, k Kind) (roles.Role, bool) {
	role, ok := w.roles.UserRole(userID)
	if !ok {
		return "", false
	}
	return role, w.roles.Hierarchy().CanReportOn(role, k.Role)
}

func (w *Wizard) authorize(userID int64, k Kind) error {
	if role, ok := w.canManage(userID, k); !ok {
		return &dialogue.AuthorizationError{UserID: userID, Role: string(role), Kind: "entity." + k.Key}
	}
	return nil
}

// Menu lists the kinds the user may manage.
func (w *Wizard) Menu(_ context.Context, userID int64) (dialogue.Render, error) {
	r := dialogue.Text("🗂️ مدیریت اطلاعات\n\nبخش مورد نظر را انتخاب کنید:")
	n := 0
	for _, k := range w.kinds {
		if _, ok := w.canManage(userID, k); !ok {
			continue
		}
		r = r.WithRow(dialogue.Btn(k.Icon+" مدیریت "+k.Plural, k.cb("list")))
		n++
	}
	if n == 0 {
		role, _ := w.roles.UserRole(userID)
		return dialogue.Denied(), &dialogue.AuthorizationError{UserID: userID, Role: string(role), Kind: "entity"}
	}
	return r.WithRow(dialogue.BackToMainButton()), nil
}

func (w *Wizard) kindFor(data string) (Kind, string, bool) {
	for _, k := range w.kinds {
		if strings.HasPrefix(data, k.Prefix()) {
			return k, strings.TrimPrefix(data, k.Prefix()), true
		}
	}
	return Kind{}, "", false
}

// HandleCallback routes a kind-prefixed button press.
func (w *Wizard) HandleCallback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	if ev.Data == MenuCallback {
		return w.Menu(ctx, ev.UserID)
	}
	k, action, ok := w.kindFor(ev.Data)
	if !ok {
		return dialogue.StartOver(), &dialogue.ValidationError{Reason: "unknown entity callback " + ev.Data}
	}
	if err := w.authorize(ev.UserID, k); err != nil {
		return dialogue.Denied(), err
	}

	switch {
	case action == "list":
		return w.list(ctx, k, "")
	case action == "add":
		return w.startAdd(ctx, k, ev)
	case action == "back":
		w.dropOwnSession(ev.ChatID)
		return w.Menu(ctx, ev.UserID)
	case action == "cancel":
		w.dropOwnSession(ev.ChatID)
		return w.list(ctx, k, "❌ عملیات لغو شد.")
	case action == "save":
		return w.commitAdd(ctx, k, ev.ChatID)
	case strings.HasPrefix(action, "view_"):
		return w.view(ctx, k, strings.TrimPrefix(action, "view_"), "")
	case strings.HasPrefix(action, "edit_"):
		return w.startEdit(ctx, k, ev, strings.TrimPrefix(action, "edit_"))
	case strings.HasPrefix(action, "delete_"):
		return w.confirmDelete(ctx, k, strings.TrimPrefix(action, "delete_"))
	case strings.HasPrefix(action, "remove_"):
		return w.remove(ctx, k, ev, strings.TrimPrefix(action, "remove_"))
	}
	return w.list(ctx, k, "")
}

func (w *Wizard) dropOwnSession(chatID int64) {
	unlock := w.sessions.Lock(chatID)
	defer unlock()
	if sess, ok := w.sessions.Get(chatID); ok && sess.Kind == session.KindEntity {
		w.sessions.Delete(chatID)
	}
}

func (w *Wizard) list(ctx context.Context, k Kind, header string) (dialogue.Render, error) {
	recs, err := w.stores[k.Key].List(ctx)
	if err != nil {
		perr := &dialogue.PersistenceError{Op: "list " + k.Doc, Err: err}
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("list")), dialogue.BackToMainButton()), perr
	}
	var b strings.Builder
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	fmt.Fprintf(&b, "%s مدیریت %s\n\n", k.Icon, k.Plural)
	r := dialogue.Render{}
	if len(recs) == 0 {
		fmt.Fprintf(&b, "❌ هیچ %s ثبت نشده است.\nبرای شروع، %s جدید اضافه کنید:", k.Singular, k.Singular)
	} else {
		fmt.Fprintf(&b, "📋 لیست %s ثبت شده:\n\n", k.Plural)
		for _, rec := range recs {
			fmt.Fprintf(&b, "%s %s - %s\n📍 منطقه: %s\n\n", k.Icon, rec.Name(), rec.Value("phone"), rec.Value("region"))
			r = r.WithRow(dialogue.Btn(k.Icon+" "+rec.Name(), k.cb("view", rec.ID)))
		}
		b.WriteString("برای مشاهده جزئیات و ویرایش، روی مورد دلخواه کلیک کنید:")
	}
	r.Text = b.String()
	return r.
		WithRow(dialogue.Btn("📝 "+k.Singular+" جدید", k.cb("add"))).
		WithRow(dialogue.Btn("🔙 بازگشت", k.cb("back"))), nil
}

func (w *Wizard) details(k Kind, rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s جزئیات %s\n\n", k.Icon, k.Singular)
	for _, f := range k.Fields {
		fmt.Fprintf(&b, "%s %s: %s\n", f.Icon, f.Label, rec.Value(f.Key))
	}
	fmt.Fprintf(&b, "📅 تاریخ ثبت: %s", rec.CreatedAt.Format("2006-01-02"))
	return b.String()
}

func (w *Wizard) view(ctx context.Context, k Kind, id, header string) (dialogue.Render, error) {
	rec, ok, err := w.stores[k.Key].Get(ctx, id)
	if err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("view", id)), dialogue.Btn("🔙 بازگشت", k.cb("list"))),
			&dialogue.PersistenceError{Op: "get " + k.Doc, Err: err}
	}
	if !ok {
		return notFound(k), &dialogue.ValidationError{Reason: "unknown " + k.Key + " " + id}
	}
	text := w.details(k, rec)
	if header != "" {
		text = header + "\n\n" + text
	}
	r := dialogue.Text(text)
	for _, f := range k.Fields {
		r = r.WithRow(dialogue.Btn("✏️ ویرایش "+f.Label, k.cb("edit", f.Key, id)))
	}
	return r.
		WithRow(dialogue.Btn("🗑️ حذف "+k.Singular, k.cb("delete", id))).
		WithRow(dialogue.Btn("🔙 بازگشت", k.cb("list"))), nil
}

func notFound(k Kind) dialogue.Render {
	return dialogue.Text("❌ " + k.Singular + " یافت نشد").WithRow(dialogue.Btn("🔙 بازگشت", k.cb("list")))
}

// claim creates sess for the chat, resuming an identical entity step.
func (w *Wizard) claim(ctx context.Context, sess *session.Session) (dialogue.Render, bool, error) {
	existing, ok := w.sessions.Get(sess.ChatID)
	if !ok {
		if err := w.sessions.Create(sess); err != nil {
			return dialogue.Render{}, false, err
		}
		return dialogue.Render{}, true, nil
	}
	if existing.Kind == session.KindEntity && existing.Meta[metaKind] == sess.Meta[metaKind] &&
		existing.Step == sess.Step && existing.SelectedTargetID == sess.SelectedTargetID {
		return w.Prompt(ctx, existing), false, nil
	}
	return dialogue.Conflict(existing.Kind.Title()), false, &dialogue.SessionConflictError{Active: string(existing.Kind), Requested: string(session.KindEntity)}
}

func (w *Wizard) startAdd(ctx context.Context, k Kind, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	unlock := w.sessions.Lock(ev.ChatID)
	defer unlock()

	sess := session.New(ev.ChatID, ev.UserID, ev.UserName, session.KindEntity, addStep(k.Fields[0]))
	sess.Meta[metaKind] = k.Key
	r, created, err := w.claim(ctx, sess)
	if err != nil || !created {
		return r, err
	}
	logger.Info(ctx, component, "add_started", slog.String("kind", k.Key), slog.Int64("chat_id", ev.ChatID))
	return w.Prompt(ctx, sess), nil
}

func (w *Wizard) startEdit(ctx context.Context, k Kind, ev dialogue.CallbackEvent, rest string) (dialogue.Render, error) {
	var field Field
	var id string
	for _, f := range k.Fields {
		if strings.HasPrefix(rest, f.Key+"_") {
			field, id = f, strings.TrimPrefix(rest, f.Key+"_")
			break
		}
	}
	if field.Key == "" || id == "" {
		return notFound(k), &dialogue.ValidationError{Reason: "malformed edit callback " + rest}
	}
	if _, ok, err := w.stores[k.Key].Get(ctx, id); err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("edit", field.Key, id)), dialogue.Btn("🔙 بازگشت", k.cb("list"))),
			&dialogue.PersistenceError{Op: "get " + k.Doc, Err: err}
	} else if !ok {
		return notFound(k), &dialogue.ValidationError{Reason: "unknown " + k.Key + " " + id}
	}

	unlock := w.sessions.Lock(ev.ChatID)
	defer unlock()
	sess := session.New(ev.ChatID, ev.UserID, ev.UserName, session.KindEntity, editStep(field))
	sess.Meta[metaKind] = k.Key
	sess.SelectedTargetID = id
	r, created, err := w.claim(ctx, sess)
	if err != nil || !created {
		return r, err
	}
	return w.Prompt(ctx, sess), nil
}

func (w *Wizard) confirmDelete(ctx context.Context, k Kind, id string) (dialogue.Render, error) {
	rec, ok, err := w.stores[k.Key].Get(ctx, id)
	if err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("delete", id)), dialogue.Btn("🔙 بازگشت", k.cb("list"))),
			&dialogue.PersistenceError{Op: "get " + k.Doc, Err: err}
	}
	if !ok {
		return notFound(k), &dialogue.ValidationError{Reason: "unknown " + k.Key + " " + id}
	}
	return dialogue.Text(fmt.Sprintf("⚠️ آیا از حذف %s «%s» مطمئن هستید؟", k.Singular, rec.Name())).
		WithRow(dialogue.Btn("🗑️ بله، حذف شود", k.cb("remove", id)), dialogue.Btn("🔙 خیر", k.cb("view", id))), nil
}

func (w *Wizard) remove(ctx context.Context, k Kind, ev dialogue.CallbackEvent, id string) (dialogue.Render, error) {
	rec, err := w.stores[k.Key].Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFound(k), &dialogue.ValidationError{Reason: "unknown " + k.Key + " " + id}
	}
	if err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("remove", id)), dialogue.Btn("🔙 بازگشت", k.cb("list"))),
			&dialogue.PersistenceError{Op: "delete " + k.Doc, Err: err}
	}
	w.publish(ctx, events.TopicEntityDeleted, ev.ChatID, ev.UserID, k, rec)
	return w.list(ctx, k, fmt.Sprintf("🗑️ %s «%s» حذف شد.", k.Singular, rec.Name()))
}

func addStep(f Field) session.Step  { return session.Step("add_" + f.Key) }
func editStep(f Field) session.Step { return session.Step("edit_" + f.Key) }

func (w *Wizard) sessionKind(sess *session.Session) (Kind, bool) {
	s, ok := w.stores[sess.Meta[metaKind]]
	if !ok {
		return Kind{}, false
	}
	return s.kind, true
}

// Prompt renders the current step of an entity session.
func (w *Wizard) Prompt(_ context.Context, sess *session.Session) dialogue.Render {
	k, ok := w.sessionKind(sess)
	if !ok {
		return dialogue.StartOver()
	}
	if sess.Step == stepConfirm {
		var b strings.Builder
		fmt.Fprintf(&b, "📝 تایید %s جدید\n\n", k.Singular)
		for _, f := range k.Fields {
			fmt.Fprintf(&b, "%s %s: %s\n", f.Icon, f.Label, sess.Answers.Value(f.Key))
		}
		b.WriteString("\nآیا اطلاعات بالا را تایید می‌کنید؟")
		return dialogue.Text(b.String()).
			WithRow(dialogue.Btn("✅ ثبت", k.cb("save")), dialogue.Btn("❌ انصراف", k.cb("cancel")))
	}
	for _, f := range k.Fields {
		switch sess.Step {
		case addStep(f):
			return dialogue.Text(fmt.Sprintf("📝 اضافه کردن %s جدید\n\n%s", k.Singular, f.Prompt)).
				WithRow(dialogue.Btn("❌ انصراف", k.cb("cancel")))
		case editStep(f):
			return dialogue.Text(fmt.Sprintf("✏️ ویرایش %s %s\n\n%s", f.Label, k.Singular, f.Prompt)).
				WithRow(dialogue.Btn("🔙 بازگشت", k.cb("view", sess.SelectedTargetID)))
		}
	}
	return dialogue.StartOver()
}

// HandleAnswer consumes typed input for the add and edit steps.
func (w *Wizard) HandleAnswer(ctx context.Context, ev dialogue.MessageEvent) (dialogue.Render, error) {
	unlock := w.sessions.Lock(ev.ChatID)
	defer unlock()

	sess, ok := w.sessions.Get(ev.ChatID)
	if !ok || sess.Kind != session.KindEntity {
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}
	k, ok := w.sessionKind(sess)
	if !ok {
		w.sessions.Delete(ev.ChatID)
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}
	if dialogue.IsCancel(ev.Text) {
		w.sessions.Delete(ev.ChatID)
		return w.list(ctx, k, "❌ عملیات لغو شد.")
	}
	if sess.Step == stepConfirm {
		if dialogue.IsConfirm(ev.Text) {
			return w.commitAddLocked(ctx, k, sess)
		}
		return dialogue.Invalid("❌ برای ثبت از دکمه‌ها استفاده کنید.", w.Prompt(ctx, sess)), &dialogue.ValidationError{Reason: "expected confirmation"}
	}

	for i, f := range k.Fields {
		switch sess.Step {
		case addStep(f):
			v, err := f.Normalize(ev.Text)
			if err != nil {
				return dialogue.Invalid("❌ مقدار "+f.Label+" معتبر نیست.", w.Prompt(ctx, sess)), err
			}
			sess.Answers.Set(f.Key, v)
			if i+1 < len(k.Fields) {
				sess.Step = addStep(k.Fields[i+1])
			} else {
				sess.Step = stepConfirm
			}
			w.sessions.Put(sess)
			return w.Prompt(ctx, sess), nil
		case editStep(f):
			v, err := f.Normalize(ev.Text)
			if err != nil {
				return dialogue.Invalid("❌ مقدار "+f.Label+" معتبر نیست.", w.Prompt(ctx, sess)), err
			}
			rec, err := w.stores[k.Key].SetField(ctx, sess.SelectedTargetID, f.Key, v)
			if errors.Is(err, ErrNotFound) {
				w.sessions.Delete(ev.ChatID)
				return notFound(k), &dialogue.ValidationError{Reason: "unknown " + k.Key + " " + sess.SelectedTargetID}
			}
			if err != nil {
				return dialogue.Invalid("❌ خطا در ذخیره‌سازی. لطفاً دوباره ارسال کنید.", w.Prompt(ctx, sess)),
					&dialogue.PersistenceError{Op: "update " + k.Doc, Err: err}
			}
			w.sessions.Delete(ev.ChatID)
			w.publish(ctx, events.TopicEntityUpdated, ev.ChatID, ev.UserID, k, rec)
			return w.view(ctx, k, rec.ID, fmt.Sprintf("✅ %s %s ویرایش شد.", f.Label, k.Singular))
		}
	}
	w.sessions.Delete(ev.ChatID)
	return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
}

func (w *Wizard) commitAdd(ctx context.Context, k Kind, chatID int64) (dialogue.Render, error) {
	unlock := w.sessions.Lock(chatID)
	defer unlock()
	sess, ok := w.sessions.Get(chatID)
	if !ok || sess.Kind != session.KindEntity || sess.Meta[metaKind] != k.Key || sess.Step != stepConfirm {
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: chatID}
	}
	return w.commitAddLocked(ctx, k, sess)
}

func (w *Wizard) commitAddLocked(ctx context.Context, k Kind, sess *session.Session) (dialogue.Render, error) {
	rec, err := w.stores[k.Key].Create(ctx, sess.Answers.Map())
	if err != nil {
		return dialogue.StoreFailed(dialogue.Btn("🔄 تلاش مجدد", k.cb("save")), dialogue.Btn("❌ انصراف", k.cb("cancel"))),
			&dialogue.PersistenceError{Op: "create " + k.Doc, Err: err}
	}
	w.sessions.Delete(sess.ChatID)
	w.publish(ctx, events.TopicEntityCreated, sess.ChatID, sess.UserID, k, rec)
	r, _ := w.view(ctx, k, rec.ID, fmt.Sprintf("✅ %s جدید با موفقیت ثبت شد.", k.Singular))
	return r.WithRow(dialogue.Btn("📝 "+k.Singular+" دیگر", k.cb("add"))), nil
}

// Cancel drops the chat's entity session.
func (w *Wizard) Cancel(_ context.Context, chatID int64) (dialogue.Render, error) {
	unlock := w.sessions.Lock(chatID)
	defer unlock()
	if sess, ok := w.sessions.Get(chatID); ok && sess.Kind == session.KindEntity {
		w.sessions.Delete(chatID)
	}
	return dialogue.Cancelled(), nil
}

func (w *Wizard) publish(ctx context.Context, topic string, chatID, userID int64, k Kind, rec Record) {
	logger.Info(ctx, component, strings.ReplaceAll(topic, ".", "_"),
		slog.String("kind", k.Key),
		slog.String("id", rec.ID),
	)
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.Event{
		Topic:   topic,
		ChatID:  chatID,
		UserID:  userID,
		Payload: map[string]string{"kind": k.Key, "id": rec.ID, "name": rec.Name()},
	})
}
