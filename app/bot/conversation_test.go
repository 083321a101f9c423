package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/schoolbot/app/daily"
	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/app/hierarchy"
	"github.com/m3rciful/schoolbot/app/session"
	coreconfig "github.com/m3rciful/schoolbot/core/config"
	"github.com/m3rciful/schoolbot/core/storage"
)

const (
	adminID   int64 = 1
	coachID   int64 = 10
	studentID int64 = 12
	chatID    int64 = 500
)

type fakeOutbox struct {
	mu   sync.Mutex
	sent []Message
}

func (f *fakeOutbox) Deliver(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeOutbox) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "test", AdminID: adminID},
			Storage:  coreconfig.StorageConfig{Driver: coreconfig.StorageMemory},
		},
		Roles: RolesConfig{Users: map[string]string{
			"10": "COACH",
			"11": "ASSISTANT",
			"12": "STUDENT",
		}},
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

type harness struct {
	app    *App
	conv   *Conversation
	outbox *fakeOutbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	seed := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(seed, []byte("assistant:\n  - id: \"42\"\n    name: Ali\n    phone: \"09121234567\"\n    region: Tehran\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := DirectorySeeder(seed, entity.DefaultKinds())(ctx, backend); err != nil {
		t.Fatalf("seed: %v", err)
	}

	app, err := New(testConfig(t), backend)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	out := &fakeOutbox{}
	for _, u := range NewNotifier(adminID, out).Subscribe(app.Bus()) {
		t.Cleanup(u)
	}
	return &harness{app: app, conv: app.Conversation(), outbox: out}
}

func (h *harness) press(t *testing.T, userID int64, data string) (dialogue.Render, bool, error) {
	t.Helper()
	return h.conv.Callback(context.Background(), dialogue.CallbackEvent{
		ChatID:   chatID,
		UserID:   userID,
		UserName: "Reza",
		Data:     data,
	})
}

func (h *harness) say(t *testing.T, userID int64, text string) (dialogue.Render, error) {
	t.Helper()
	return h.conv.Message(context.Background(), dialogue.MessageEvent{
		ChatID:   chatID,
		UserID:   userID,
		UserName: "Reza",
		Text:     text,
	})
}

func TestMainMenuByRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.conv.MainMenu(ctx, coachID, "Reza")
	if err != nil {
		t.Fatalf("coach menu: %v", err)
	}
	for _, want := range []string{daily.CallbackStart, hierarchy.CallbackStart, entity.MenuCallback} {
		if !r.HasButton(want) {
			t.Fatalf("coach menu lacks %s: %v", want, r.CallbackData())
		}
	}

	if _, err := h.conv.MainMenu(ctx, studentID, "Sam"); !dialogue.IsAuthorization(err) {
		t.Fatalf("student menu err = %v", err)
	}
	if _, err := h.conv.MainMenu(ctx, 999, "Nobody"); !dialogue.IsAuthorization(err) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestBackToMainRendersMenu(t *testing.T) {
	h := newHarness(t)
	r, handled, err := h.press(t, coachID, dialogue.CallbackBackToMain)
	if err != nil || !handled {
		t.Fatalf("back_to_main: handled=%v err=%v", handled, err)
	}
	if !r.HasButton(daily.CallbackStart) {
		t.Fatalf("back_to_main render = %+v", r)
	}
}

func TestUnknownCallbackIsExpired(t *testing.T) {
	h := newHarness(t)
	r, handled, err := h.press(t, coachID, "legacy_button")
	if handled || err != nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if !r.HasButton(dialogue.CallbackBackToMain) {
		t.Fatalf("expired render = %+v", r)
	}
}

func TestDailyThroughTextAndMyReports(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.press(t, coachID, daily.CallbackStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !h.conv.InProgress(chatID) {
		t.Fatal("no session after start")
	}
	for _, text := range []string{"۲", "4️⃣", "پروژکتور کلاس خراب بود"} {
		if _, err := h.say(t, coachID, text); err != nil {
			t.Fatalf("answer %q: %v", text, err)
		}
	}
	if _, err := h.say(t, coachID, "تایید"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.conv.InProgress(chatID) {
		t.Fatal("session survived commit")
	}

	r, err := h.conv.MyReports(context.Background(), coachID, "")
	if err != nil {
		t.Fatalf("myreports: %v", err)
	}
	if !strings.Contains(r.Text, "5 تا 10 نفر") || !strings.Contains(r.Text, "پروژکتور") {
		t.Fatalf("myreports text = %q", r.Text)
	}

	msgs := h.outbox.messages()
	if len(msgs) != 1 || msgs[0].ChatID != adminID || !msgs[0].MarkdownV2 {
		t.Fatalf("admin notifications = %+v", msgs)
	}
}

func TestMessageWithoutSession(t *testing.T) {
	h := newHarness(t)
	if _, err := h.say(t, coachID, "سلام"); !dialogue.IsStateNotFound(err) {
		t.Fatalf("err = %v", err)
	}
	r, err := h.conv.Cancel(context.Background(), chatID)
	if err != nil || !r.HasButton(dialogue.CallbackBackToMain) {
		t.Fatalf("cancel without session: %+v %v", r, err)
	}
}

func TestConflictDiscardReplaysPress(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.press(t, coachID, daily.CallbackStart); err != nil {
		t.Fatalf("start daily: %v", err)
	}
	r, handled, err := h.press(t, coachID, hierarchy.CallbackStart)
	if !handled || !dialogue.IsConflict(err) {
		t.Fatalf("second start: handled=%v err=%v", handled, err)
	}
	if !r.HasButton(dialogue.CallbackSessionDiscard) || !r.HasButton(dialogue.CallbackSessionResume) {
		t.Fatalf("conflict render = %+v", r)
	}

	r, _, err = h.press(t, coachID, dialogue.CallbackSessionDiscard)
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if !r.HasButton(hierarchy.PrefixSelectRole + "ASSISTANT") {
		t.Fatalf("discard did not start hierarchy: %v", r.CallbackData())
	}
	sess, ok := h.app.conv.sessions.Get(chatID)
	if !ok || sess.Kind != session.KindHierarchical {
		t.Fatalf("session after discard = %+v", sess)
	}
}

func TestConflictResumeKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.press(t, coachID, daily.CallbackStart)
	if _, err := h.say(t, coachID, "3"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, _, err := h.press(t, coachID, entity.Assistants().Key+"_add"); !dialogue.IsConflict(err) {
		t.Fatalf("entity add over daily: %v", err)
	}

	r, _, err := h.press(t, coachID, dialogue.CallbackSessionResume)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !r.HasButton("daily_satisfaction_5") {
		t.Fatalf("resume render = %v", r.CallbackData())
	}
	// A later discard has nothing to replay.
	r, _, _ = h.press(t, coachID, dialogue.CallbackSessionDiscard)
	if !r.HasButton(daily.CallbackStart) {
		t.Fatalf("discard without pending = %v", r.CallbackData())
	}
}

func TestHierarchicalCommitNotifiesAndSummarizes(t *testing.T) {
	h := newHarness(t)
	for _, data := range []string{
		hierarchy.CallbackStart,
		hierarchy.PrefixSelectRole + "ASSISTANT",
		hierarchy.PrefixSelectUser + "42",
		"communication_phone",
		hierarchy.PrefixSatisfaction + "4",
		hierarchy.CallbackSkip,
		hierarchy.CallbackConfirm,
	} {
		if _, handled, err := h.press(t, coachID, data); err != nil || !handled {
			t.Fatalf("press %s: handled=%v err=%v", data, handled, err)
		}
	}

	msgs := h.outbox.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "Ali") {
		t.Fatalf("admin notifications = %+v", msgs)
	}

	r, err := h.conv.DaySummary(context.Background(), "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(r.Text, "دبیر: 1 گزارش درباره 1 نفر") {
		t.Fatalf("summary text = %q", r.Text)
	}
}

func TestExpiredSessionNotifiesChat(t *testing.T) {
	h := newHarness(t)
	sess := session.New(chatID, coachID, "Reza", session.KindDaily, daily.StepQ2)
	PublishExpired(h.app.Bus())(context.Background(), sess)

	msgs := h.outbox.messages()
	if len(msgs) != 1 || msgs[0].ChatID != chatID || msgs[0].MarkdownV2 {
		t.Fatalf("expiry notifications = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Text, session.KindDaily.Title()) {
		t.Fatalf("expiry text = %q", msgs[0].Text)
	}
}
