package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user rate limit.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude holds update kinds, as returned by UpdateKind, that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// userGate remembers when each user was last let through.
type userGate struct {
	interval time.Duration

	mu     sync.Mutex
	seen   map[int64]time.Time
	pruned time.Time
}

func newUserGate(interval time.Duration) *userGate {
	return &userGate{interval: interval, seen: make(map[int64]time.Time)}
}

// allow reports whether userID may pass at now and records the pass.
func (g *userGate) allow(userID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.seen[userID]; ok && now.Sub(last) < g.interval {
		return false
	}
	g.seen[userID] = now
	// Entries older than one interval no longer limit anyone.
	if now.Sub(g.pruned) > 100*g.interval {
		for id, t := range g.seen {
			if now.Sub(t) >= g.interval {
				delete(g.seen, id)
			}
		}
		g.pruned = now
	}
	return true
}

// RateLimitMiddleware drops updates from a user that arrive sooner than
// opts.Interval after their previous one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	gate := newUserGate(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c)
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if gate.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit", slog.String("kind", kind))
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
