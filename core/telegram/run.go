package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
	"github.com/m3rciful/schoolbot/core/logger"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/schoolbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Dispatcher overrides the sender pool built from Config.Sender.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to work with.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is done. A cancelled ctx is a clean shutdown.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(cfg),
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, bot, time.Since(start))

	disp := opts.Dispatcher
	if disp == nil {
		disp = tgsender.NewDispatcher(DispatcherOptions(cfg))
	}
	tghelpers.SetDispatcher(disp)
	rt := Runtime{Bot: bot, Dispatcher: disp, Registry: reg}
	shutdown := func() {
		disp.Close()
		tghelpers.SetDispatcher(nil)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			shutdown()
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		bot.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	shutdown()
	if stopErr != nil {
		return stopErr
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// DispatcherOptions maps the sender section onto the pool options.
func DispatcherOptions(cfg *coreconfig.Config) tgsender.Options {
	if cfg == nil {
		return tgsender.Options{}
	}
	s := cfg.Sender
	return tgsender.Options{
		Workers:      s.Workers,
		QueueSize:    s.QueueSize,
		MaxRetries:   s.MaxRetries,
		RetryBackoff: time.Duration(s.RetryBackoffMS) * time.Millisecond,
	}
}

// logMode reports the update source. Long polling first drops any webhook
// left over from an earlier webhook deployment, since Telegram refuses
// getUpdates while one is set.
func logMode(ctx context.Context, bot *tele.Bot, took time.Duration) {
	if wh, ok := bot.Poller.(*tele.Webhook); ok {
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Bool("secret", wh.SecretToken != ""),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	var timeout time.Duration
	if lp, ok := bot.Poller.(*tele.LongPoller); ok {
		timeout = lp.Timeout
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
		slog.String("event", "mode"),
		slog.String("mode", "polling"),
		slog.Duration("timeout", timeout),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	if err := bot.RemoveWebhook(); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook",
			slog.String("event", "delete_webhook"),
			slog.String("err", err.Error()),
		)
	}
}
