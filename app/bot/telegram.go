package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"
	"github.com/m3rciful/schoolbot/core/telegram/keyboard"
	"github.com/m3rciful/schoolbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// transport adapts the Conversation to telebot handlers.
type transport struct {
	conv *Conversation
	loc  *time.Location
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func callbackEvent(c tele.Context) dialogue.CallbackEvent {
	ev := dialogue.CallbackEvent{Data: callbacks.Identifier(c)}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.UserName = displayName(u)
	}
	if cb := c.Callback(); cb != nil {
		ev.QueryID = cb.ID
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
	}
	return ev
}

func messageEvent(c tele.Context) dialogue.MessageEvent {
	ev := dialogue.MessageEvent{Text: c.Text()}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.UserName = displayName(u)
	}
	return ev
}

// InProgress satisfies router.Conversation.
func (t *transport) InProgress(chatID int64) bool {
	return t.conv.InProgress(chatID)
}

// HandleText satisfies router.Conversation.
func (t *transport) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	r, err := t.conv.Message(ctx, messageEvent(c))
	return t.reply(ctx, c, r, err)
}

// HandleCallback is installed as the registry's callback handler.
func (t *transport) HandleCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ev := callbackEvent(c)
	r, handled, err := t.conv.Callback(ctx, ev)
	if !handled && err == nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "این دکمه دیگر فعال نیست"})
	} else {
		_ = c.Respond()
	}
	return t.reply(ctx, c, r, err)
}

// reply delivers r and decides which engine errors surface to the router.
// User-level failures already carry their render and are only logged here.
func (t *transport) reply(ctx context.Context, c tele.Context, r dialogue.Render, err error) error {
	if sendErr := deliver(ctx, c, r); sendErr != nil {
		logger.Warn(ctx, "bot.transport", "deliver_failed", slog.String("err", sendErr.Error()))
	}
	switch {
	case err == nil:
		return nil
	case dialogue.IsValidation(err), dialogue.IsAuthorization(err),
		dialogue.IsStateNotFound(err), dialogue.IsConflict(err):
		logger.Debug(ctx, "bot.transport", "dialogue_rejected", slog.String("reason", err.Error()))
		return nil
	}
	return err
}

func deliver(ctx context.Context, c tele.Context, r dialogue.Render) error {
	if r.Empty() {
		return nil
	}
	return tghelpers.EditOrSendText(c, r.Text, markup(ctx, r))
}

func markup(ctx context.Context, r dialogue.Render) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(r.Keyboard))
	for _, row := range r.Keyboard {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	if bad := keyboard.Oversized(rows...); len(bad) > 0 {
		logger.Warn(ctx, "bot.transport", "callback_data_too_long", slog.Any("data", bad))
	}
	return keyboard.InlineButtonsRows(rows...)
}

// dateArg reads an optional date argument, accepting Persian digits.
func (t *transport) dateArg(c tele.Context) (string, bool) {
	arg := dialogue.NormalizeDigits(tghelpers.CommandArg(c.Text()))
	if arg == "" {
		return "", true
	}
	d, ok := tghelpers.ParseFlexibleDate(arg, t.loc)
	if !ok {
		return "", false
	}
	return d.Format(reports.DateLayout), true
}

func (t *transport) who(c tele.Context) (int64, int64, string) {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	return chatID, userID, displayName(c.Sender())
}

func (t *transport) cmdMenu(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, userID, name := t.who(c)
	r, err := t.conv.MainMenu(ctx, userID, name)
	return t.reply(ctx, c, r, err)
}

// startVia runs the callback flow for identifier so conflicts stay replayable.
func (t *transport) startVia(identifier string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		chatID, userID, name := t.who(c)
		r, _, err := t.conv.Callback(ctx, dialogue.CallbackEvent{
			ChatID:   chatID,
			UserID:   userID,
			UserName: name,
			Data:     identifier,
		})
		return t.reply(ctx, c, r, err)
	}
}

func (t *transport) cmdCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chatID, _, _ := t.who(c)
	r, err := t.conv.Cancel(ctx, chatID)
	return t.reply(ctx, c, r, err)
}

func (t *transport) cmdMyReports(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	date, ok := t.dateArg(c)
	if !ok {
		return tghelpers.SendText(c, "❌ تاریخ نامعتبر است. نمونه: /myreports 2024-05-02")
	}
	_, userID, _ := t.who(c)
	r, err := t.conv.MyReports(ctx, userID, date)
	return t.reply(ctx, c, r, err)
}

func (t *transport) cmdSummary(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	from, to, err := SummaryRange(tghelpers.CommandArg(c.Text()), t.conv.reports.Now())
	if err != nil {
		return tghelpers.SendText(c, "❌ بازه نامعتبر است. نمونه‌ها:\n/summary 2024-05-02\n/summary 2024-05-01 2024-05-07\n/summary week\n/summary month 2024-05-02")
	}
	r, err := t.conv.RangeSummary(ctx, from, to)
	return t.reply(ctx, c, r, err)
}

func (t *transport) unknownText(c tele.Context) error {
	return tghelpers.SendText(c, "ℹ️ برای شروع /report را بزنید.")
}

// telegramOutbox delivers notifications through the async sender.
type telegramOutbox struct {
	bot  *tele.Bot
	disp *sender.Dispatcher
}

func (o *telegramOutbox) Deliver(ctx context.Context, m Message) error {
	if o == nil || o.bot == nil {
		return errors.New("bot: outbox not started")
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if m.MarkdownV2 {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	run := func() error {
		_, err := o.bot.Send(tele.ChatID(m.ChatID), m.Text, opts)
		return err
	}
	if o.disp == nil {
		return run()
	}
	return o.disp.Enqueue(ctx, sender.Job{Action: "send.notify", ChatID: m.ChatID, Run: run})
}
