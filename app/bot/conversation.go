// Package bot is the conversation layer: it routes chat input to the dialogue
// engines, renders the main menu and admin queries, and wires everything to
// the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/schoolbot/app/daily"
	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/dispatch"
	"github.com/m3rciful/schoolbot/app/entity"
	"github.com/m3rciful/schoolbot/app/hierarchy"
	"github.com/m3rciful/schoolbot/app/reports"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/logger"
)

// Engine ids known to the dispatch registry.
const (
	EngineMenu      = "menu"
	EngineDaily     = "daily"
	EngineHierarchy = "hierarchy"
	EngineEntity    = "entity"
)

const component = "bot.conversation"

type binding struct {
	exact  bool
	key    string
	engine string
}

// Engine is the text side every dialogue engine exposes.
type Engine interface {
	Prompt(ctx context.Context, sess *session.Session) dialogue.Render
	HandleAnswer(ctx context.Context, ev dialogue.MessageEvent) (dialogue.Render, error)
	Cancel(ctx context.Context, chatID int64) (dialogue.Render, error)
}

// Engines groups the dialogue engines the conversation routes to.
type Engines struct {
	Daily     *daily.Engine
	Hierarchy *hierarchy.Engine
	Entity    *entity.Wizard
}

// Conversation routes messages and button presses to the engine that owns
// them and remembers the press that hit a session conflict, so "discard and
// start" can replay it.
type Conversation struct {
	sessions *session.Store
	roles    roles.Source
	reports  *reports.Store
	registry *dispatch.Registry
	engines  map[session.Kind]Engine
	wizard   *entity.Wizard

	mu      sync.Mutex
	pending map[int64]dialogue.CallbackEvent
}

// NewConversation registers the engines and their callback bindings.
func NewConversation(sessions *session.Store, rs roles.Source, store *reports.Store, eng Engines) (*Conversation, error) {
	c := &Conversation{
		sessions: sessions,
		roles:    rs,
		reports:  store,
		registry: dispatch.NewRegistry(),
		engines: map[session.Kind]Engine{
			session.KindDaily:        eng.Daily,
			session.KindHierarchical: eng.Hierarchy,
			session.KindEntity:       eng.Entity,
		},
		wizard:  eng.Entity,
		pending: make(map[int64]dialogue.CallbackEvent),
	}

	reg := c.registry
	for id, h := range map[string]dispatch.Handler{
		EngineMenu:      dispatch.HandlerFunc(c.handleMenu),
		EngineDaily:     eng.Daily,
		EngineHierarchy: eng.Hierarchy,
		EngineEntity:    eng.Entity,
	} {
		if err := reg.RegisterEngine(id, h); err != nil {
			return nil, err
		}
	}

	bindings := []binding{
		{true, dialogue.CallbackBackToMain, EngineMenu},
		{true, dialogue.CallbackSessionResume, EngineMenu},
		{true, dialogue.CallbackSessionDiscard, EngineMenu},
		{true, hierarchy.CallbackStart, EngineHierarchy},
		{true, hierarchy.CallbackSkip, EngineHierarchy},
		{true, hierarchy.CallbackConfirm, EngineHierarchy},
		{true, hierarchy.CallbackCancel, EngineHierarchy},
		{true, entity.MenuCallback, EngineEntity},
		{false, daily.Prefix, EngineDaily},
		{false, hierarchy.PrefixSelectRole, EngineHierarchy},
		{false, hierarchy.PrefixSelectUser, EngineHierarchy},
		{false, hierarchy.PrefixCommunication, EngineHierarchy},
		{false, hierarchy.PrefixSatisfaction, EngineHierarchy},
		{false, hierarchy.PrefixBack, EngineHierarchy},
	}
	for _, p := range eng.Entity.Prefixes() {
		bindings = append(bindings, binding{false, p, EngineEntity})
	}
	for _, b := range bindings {
		var ok bool
		if b.exact {
			ok = reg.RegisterExact(b.key, b.engine)
		} else {
			ok = reg.RegisterPrefix(b.key, b.engine)
		}
		if !ok {
			return nil, fmt.Errorf("bot: cannot bind %q to %s", b.key, b.engine)
		}
	}
	return c, nil
}

// Registry exposes the callback registry for diagnostics.
func (c *Conversation) Registry() *dispatch.Registry { return c.registry }

// InProgress reports whether chatID has an open dialogue.
func (c *Conversation) InProgress(chatID int64) bool {
	_, ok := c.sessions.Get(chatID)
	return ok
}

// Message hands typed text to the engine owning the chat's session.
func (c *Conversation) Message(ctx context.Context, ev dialogue.MessageEvent) (dialogue.Render, error) {
	sess, ok := c.sessions.Get(ev.ChatID)
	if !ok {
		return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
	}
	eng, ok := c.engines[sess.Kind]
	if !ok || eng == nil {
		return dialogue.StartOver(), &dialogue.ConfigurationError{Reason: "no engine for session kind " + string(sess.Kind)}
	}
	ctx = logger.WithDialogue(ctx, string(sess.Kind), string(sess.Step))
	return eng.HandleAnswer(ctx, ev)
}

// Callback dispatches a button press. handled is false for identifiers no
// engine owns; the registry's render then tells the user the button has expired.
func (c *Conversation) Callback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, bool, error) {
	if sess, ok := c.sessions.Get(ev.ChatID); ok {
		ctx = logger.WithDialogue(ctx, string(sess.Kind), string(sess.Step))
	}
	out, handled := c.registry.Dispatch(ctx, ev)
	if dialogue.IsConflict(out.Err) {
		c.setPending(ev)
	}
	return out.Render, handled, out.Err
}

// Cancel cancels whatever dialogue the chat has open.
func (c *Conversation) Cancel(ctx context.Context, chatID int64) (dialogue.Render, error) {
	c.takePending(chatID)
	sess, ok := c.sessions.Get(chatID)
	if !ok {
		return dialogue.Text("ℹ️ هیچ عملیات فعالی وجود ندارد.").WithRow(dialogue.BackToMainButton()), nil
	}
	eng, ok := c.engines[sess.Kind]
	if !ok || eng == nil {
		c.sessions.Delete(chatID)
		return dialogue.Cancelled(), nil
	}
	return eng.Cancel(ctx, chatID)
}

func (c *Conversation) handleMenu(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	switch ev.Data {
	case dialogue.CallbackSessionResume:
		c.takePending(ev.ChatID)
		sess, ok := c.sessions.Get(ev.ChatID)
		if !ok {
			return dialogue.StartOver(), &dialogue.StateNotFoundError{ChatID: ev.ChatID}
		}
		eng, ok := c.engines[sess.Kind]
		if !ok || eng == nil {
			return dialogue.StartOver(), &dialogue.ConfigurationError{Reason: "no engine for session kind " + string(sess.Kind)}
		}
		return eng.Prompt(ctx, sess), nil

	case dialogue.CallbackSessionDiscard:
		unlock := c.sessions.Lock(ev.ChatID)
		sess, had := c.sessions.Get(ev.ChatID)
		c.sessions.Delete(ev.ChatID)
		unlock()
		if had {
			logger.Info(ctx, component, "session_discarded",
				slog.Int64("chat_id", ev.ChatID),
				slog.String("kind", string(sess.Kind)),
			)
		}
		if next, ok := c.takePending(ev.ChatID); ok {
			next.ChatID, next.UserID, next.UserName = ev.ChatID, ev.UserID, ev.UserName
			next.MessageID, next.QueryID = ev.MessageID, ev.QueryID
			r, _, err := c.Callback(ctx, next)
			return r, err
		}
		return c.MainMenu(ctx, ev.UserID, ev.UserName)
	}
	return c.MainMenu(ctx, ev.UserID, ev.UserName)
}

func (c *Conversation) setPending(ev dialogue.CallbackEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[ev.ChatID] = ev
}

func (c *Conversation) takePending(chatID int64) (dialogue.CallbackEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.pending[chatID]
	delete(c.pending, chatID)
	return ev, ok
}
