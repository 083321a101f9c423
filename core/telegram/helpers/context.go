package helpers

import (
	"context"

	"github.com/m3rciful/schoolbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey      = "schoolbot.ctx"
	repliesKey  = "schoolbot.replies"
	keyboardKey = "schoolbot.keyboard"
)

// StoreContext caches ctx on c so later helpers log with the same fields.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxKey, ctx)
}

// ContextFrom returns the context cached by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the logging context for the update behind c, creating
// it on first use with the request id and the update, user and chat ids.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// ResetReplies zeroes the reply counters of the current update.
func ResetReplies(c tele.Context) {
	c.Set(repliesKey, 0)
	c.Set(keyboardKey, false)
}

// Replies reports how many replies the current update queued and whether any
// of them carried a keyboard.
func Replies(c tele.Context) (n int, keyboard bool) {
	n, _ = c.Get(repliesKey).(int)
	keyboard, _ = c.Get(keyboardKey).(bool)
	return n, keyboard
}

func countReply(c tele.Context, keyboard bool) {
	n, _ := c.Get(repliesKey).(int)
	c.Set(repliesKey, n+1)
	if keyboard {
		c.Set(keyboardKey, true)
	}
}
