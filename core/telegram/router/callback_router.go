package router

import (
	"log/slog"
	"strings"
	"time"

	tg "github.com/m3rciful/schoolbot/core/telegram"
	"github.com/m3rciful/schoolbot/core/telegram/callbacks"
	"github.com/m3rciful/schoolbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that hands every callback to the registry's
// callback handler.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(callbackFamily(key))
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler := reg.CallbackHandler()
		if cbHandler == nil {
			_ = c.Respond()
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, "", "", func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, "", "", func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// callbackFamily trims trailing id-like segments so handler names stay low
// cardinality: "select_user_42" becomes "select_user".
func callbackFamily(key string) string {
	parts := strings.Split(key, "_")
	for len(parts) > 1 {
		last := parts[len(parts)-1]
		if last == "" || strings.IndexFunc(last, func(r rune) bool { return r < '0' || r > '9' }) == -1 || len(last) >= 32 {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}
	return strings.Join(parts, "_")
}
