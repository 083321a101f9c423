package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/telegram/netutil"
	"github.com/m3rciful/schoolbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action string, keyboard bool, run func() error) error {
	countReply(c, keyboard)
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if err := disp.Enqueue(ctx, sender.Job{Action: action, ChatID: chatID, Run: run}); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", sendOpts != nil && sendOpts.ReplyMarkup != nil, func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// EditOrSendText edits the message behind a callback in place, or sends a
// new message when there is nothing to edit. Text is sent without parse mode.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: markup, DisableWebPagePreview: true}
	if c.Callback() == nil || c.Callback().Message == nil {
		return SendText(c, text, opts)
	}
	return sendAsync(c, "edit.text", markup != nil, func() error {
		err := c.Edit(text, opts)
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		if err != nil && !netutil.ShouldRetry(err) {
			return c.Send(text, opts)
		}
		return err
	})
}
