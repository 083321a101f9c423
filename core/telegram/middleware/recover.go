package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/schoolbot/core/logger"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const panicNotice = "⚠️ خطای داخلی رخ داد. لطفاً دوباره تلاش کنید."

// RecoverMiddleware turns a handler panic into an error log. A pressed button
// still gets an answer so the client stops its loading spinner.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("err", fmt.Sprint(r)),
				slog.String("kind", UpdateKind(c)),
				slog.String("stack", string(debug.Stack())),
			)
			if c.Callback() != nil {
				_ = c.Respond(&tele.CallbackResponse{Text: panicNotice})
			}
		}()
		return next(c)
	}
}
