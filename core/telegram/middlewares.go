package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
	"github.com/m3rciful/schoolbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain in the order it wraps every
// update: panic recovery, the optional per-user rate limit, the receipt log
// and the reply counters. onLimited, when set, answers a throttled update.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if opts, ok := rateLimitOptions(cfg); ok {
		opts.OnLimited = onLimited
		chain = append(chain, Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(opts)})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimitOptions(cfg *coreconfig.Config) (middleware.RateLimitOptions, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return middleware.RateLimitOptions{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return middleware.RateLimitOptions{
		Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:  exclude,
	}, true
}
