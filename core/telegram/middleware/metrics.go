package middleware

import (
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MessageMetricsMiddleware starts the per-update reply counters that the
// handler summary log reports. Replies are counted when they are queued,
// since the sender delivers them after the handler has returned.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.ResetReplies(c)
		return next(c)
	}
}
