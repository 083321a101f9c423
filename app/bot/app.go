package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/schoolbot/app/daily"
	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/app/events"
	"github.com/m3rciful/schoolbot/app/hierarchy"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/bootstrap"
	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/storage"
	coretelegram "github.com/m3rciful/schoolbot/core/telegram"
	"github.com/m3rciful/schoolbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"
	"github.com/m3rciful/schoolbot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// App owns the wired application graph.
type App struct {
	cfg     *Config
	infra   *bootstrap.Result
	bus     *events.Bus
	conv    *Conversation
	sweeper *session.Sweeper
	outbox  *telegramOutbox
	unsub   []func()
}

// Bootstrap runs the core bootstrap pipeline and builds the App on its backend.
func Bootstrap(cfg *Config) (*App, error) {
	kinds := entity.DefaultKinds()
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{DirectorySeeder(cfg.Seed.File, kinds)},
		},
	})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, infra.Backend)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	app.infra = infra
	return app, nil
}

// New builds the engines, conversation and notifier over backend.
func New(cfg *Config, backend storage.Backend) (*App, error) {
	dir := cfg.Directory()
	bus := events.NewBus()
	sessions := session.NewStore()
	store := reports.NewStore(backend, cfg.ReportOptions()...)

	kinds := entity.DefaultKinds()
	stores := make([]*entity.Store, 0, len(kinds))
	for _, k := range kinds {
		stores = append(stores, entity.NewStore(k, backend))
	}

	conv, err := NewConversation(sessions, dir, store, Engines{
		Daily:     daily.NewEngine(sessions, dir, store, bus),
		Hierarchy: hierarchy.NewEngine(sessions, dir, entity.NewDirectory(stores...), store, bus),
		Entity:    entity.NewWizard(sessions, dir, bus, stores...),
	})
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	sweeper, err := session.NewSweeper(sessions, cfg.Sessions.IdleTimeout, cfg.Sessions.SweepSpec, PublishExpired(bus))
	if err != nil {
		return nil, err
	}

	outbox := &telegramOutbox{}
	app := &App{
		cfg:     cfg,
		bus:     bus,
		conv:    conv,
		sweeper: sweeper,
		outbox:  outbox,
	}
	app.unsub = append(app.unsub, bus.Subscribe("*", events.LogSubscriber))
	app.unsub = append(app.unsub, NewNotifier(cfg.Telegram.AdminID, outbox).Subscribe(bus)...)
	return app, nil
}

// Conversation exposes the conversation router.
func (a *App) Conversation() *Conversation { return a.conv }

// Bus exposes the event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// registerCommands binds the slash commands to the transport.
func (a *App) registerCommands(reg *coretelegram.Registry, t *transport) {
	reg.RegisterCommand("/start", commands.Command{Handler: t.cmdMenu, Description: "منوی اصلی"})
	reg.RegisterCommand("/report", commands.Command{Handler: t.cmdMenu, Description: "ثبت اطلاعات", Aliases: []string{"📝 ثبت اطلاعات"}})
	reg.RegisterCommand("/daily", commands.Command{Handler: t.startVia(daily.CallbackStart), Description: "گزارش روزانه"})
	reg.RegisterCommand("/hierarchy", commands.Command{Handler: t.startVia(hierarchy.CallbackStart), Description: "گزارش‌گیری سلسله‌مراتبی"})
	reg.RegisterCommand("/manage", commands.Command{Handler: t.startVia(entity.MenuCallback), Description: "مدیریت اطلاعات"})
	reg.RegisterCommand("/myreports", commands.Command{Handler: t.cmdMyReports, Description: "گزارش‌های من"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: t.cmdCancel, Description: "لغو عملیات جاری"})
	reg.RegisterCommand("/summary", commands.Command{Handler: t.cmdSummary, Description: "خلاصه گزارش‌ها: روز، بازه، هفته یا ماه", AdminOnly: true})
}

// TelegramRunOptions wires routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	t := &transport{conv: a.conv, loc: a.cfg.Location()}

	reg := coretelegram.NewRegistry()
	a.registerCommands(reg, t)
	reg.SetCallbackHandler(t.HandleCallback)

	routes := []coretelegram.Route{router.CallbackRoute(reg, router.CallbackOptions{})}
	routes = append(routes, router.TextRoutes(t, reg, router.TextOptions{UnknownText: t.unknownText})...)
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
		IsAdmin: func(userID int64) bool {
			role, ok := a.conv.roles.UserRole(userID)
			return ok && role == roles.SchoolAdmin
		},
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "❌ این دستور فقط برای مدیر است.")
		},
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.outbox.bot = rt.Bot
			a.outbox.disp = rt.Dispatcher
			if err := a.sweeper.Start(); err != nil {
				return err
			}
			logger.Info(ctx, "app", "conversation_ready",
				slog.Any("engines", a.conv.Registry().Engines()),
				slog.Int("prefixes", len(a.conv.Registry().Prefixes())),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close stops background work and releases infrastructure.
func (a *App) Close() error {
	a.sweeper.Stop()
	for _, u := range a.unsub {
		u()
	}
	a.unsub = nil
	return a.infra.Close()
}
