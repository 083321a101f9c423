package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers update ids for a short window so an update that
// passes the middleware twice is only logged once.
type seenUpdates struct {
	mu     sync.Mutex
	window time.Duration
	ids    map[int]time.Time
	swept  time.Time
}

var receipts = &seenUpdates{window: 10 * time.Second, ids: make(map[int]time.Time)}

// first reports whether id was not seen within the window, and records it.
func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.swept) > s.window {
		for k, at := range s.ids {
			if now.Sub(at) > s.window {
				delete(s.ids, k)
			}
		}
		s.swept = now
	}
	if at, ok := s.ids[id]; ok && now.Sub(at) <= s.window {
		return false
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware sets the request id, caches the logging context and logs
// a sampled debug receipt per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		c.Set("rid", logger.BuildRID(upd.ID, chatID, userID))
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		kind := UpdateKind(c)
		if logger.ShouldSampleDebug(kind) && receipts.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c, kind)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, kind string) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok"), slog.String("kind", kind)}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	} else if t := c.Text(); t != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
	}
	return attrs
}
