// Package dispatch routes inline-button identifiers to the dialogue engine
// that owns them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/core/logger"
)

const component = "dispatch"

// Handler is the callback side of a dialogue engine.
type Handler interface {
	HandleCallback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error)

// HandleCallback calls f.
func (f HandlerFunc) HandleCallback(ctx context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
	return f(ctx, ev)
}

type prefixBinding struct {
	prefix string
	engine string
}

// Registry maps callback identifiers to engine ids. Exact bindings win over
// prefix bindings; prefixes are tried in registration order.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]Handler
	exact    map[string]string
	prefixes []prefixBinding
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Handler),
		exact:   make(map[string]string),
	}
}

// RegisterEngine makes h addressable by id.
func (r *Registry) RegisterEngine(id string, h Handler) error {
	if r == nil || id == "" || h == nil {
		return errors.New("dispatch: invalid engine registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[id]; exists {
		return fmt.Errorf("dispatch: engine already registered: %s", id)
	}
	r.engines[id] = h
	return nil
}

// RegisterExact binds one literal identifier. Rebinding replaces the previous
// engine. It returns false when the binding cannot be made.
func (r *Registry) RegisterExact(identifier, engineID string) bool {
	if r == nil || identifier == "" || engineID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.exact[identifier]; ok && prev != engineID {
		logger.Debug(context.Background(), component, "exact_rebound",
			slog.String("identifier", identifier),
			slog.String("from", prev),
			slog.String("to", engineID),
		)
	}
	r.exact[identifier] = engineID
	return true
}

// RegisterPrefix binds every identifier starting with prefix. Earlier
// registrations take precedence over later overlapping ones; re-registering
// an existing prefix rebinds it in place and keeps its precedence.
func (r *Registry) RegisterPrefix(prefix, engineID string) bool {
	if r == nil || prefix == "" || engineID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.prefixes {
		if p.prefix != prefix {
			continue
		}
		if p.engine != engineID {
			logger.Debug(context.Background(), component, "prefix_rebound",
				slog.String("prefix", prefix),
				slog.String("from", p.engine),
				slog.String("to", engineID),
			)
		}
		r.prefixes[i].engine = engineID
		return true
	}
	r.prefixes = append(r.prefixes, prefixBinding{prefix: prefix, engine: engineID})
	return true
}

// Unregister removes every binding that points at engineID and the engine itself.
func (r *Registry) Unregister(engineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, engineID)
	for k, v := range r.exact {
		if v == engineID {
			delete(r.exact, k)
		}
	}
	kept := r.prefixes[:0]
	for _, p := range r.prefixes {
		if p.engine != engineID {
			kept = append(kept, p)
		}
	}
	r.prefixes = kept
}

// Resolve returns the engine id bound to identifier.
func (r *Registry) Resolve(identifier string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(identifier)
}

func (r *Registry) resolveLocked(identifier string) (string, bool) {
	if id, ok := r.exact[identifier]; ok {
		return id, true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(identifier, p.prefix) {
			return p.engine, true
		}
	}
	return "", false
}

// Outcome is the result of one dispatch.
type Outcome struct {
	Engine string
	Render dialogue.Render
	Err    error
}

// Dispatch resolves ev.Data and runs the owning engine. The bool is false for
// unresolved identifiers, which get the expired-button render, and for
// engines that panicked. Typed engine errors are carried in the Outcome
// alongside their render.
func (r *Registry) Dispatch(ctx context.Context, ev dialogue.CallbackEvent) (out Outcome, handled bool) {
	r.mu.RLock()
	engineID, ok := r.resolveLocked(ev.Data)
	h := r.engines[engineID]
	r.mu.RUnlock()

	if !ok || h == nil {
		logger.Warn(ctx, component, "callback_unresolved",
			slog.String("data", logger.SanitizeLimit(ev.Data, 64)),
			slog.Int64("chat_id", ev.ChatID),
			slog.Bool("bound", ok),
		)
		return Outcome{Engine: engineID, Render: dialogue.Expired()}, false
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, component, "engine_panic",
				slog.String("engine", engineID),
				slog.String("data", logger.SanitizeLimit(ev.Data, 64)),
				slog.Any("panic", rec),
			)
			out = Outcome{Engine: engineID, Render: dialogue.StartOver(), Err: fmt.Errorf("dispatch: engine %s panicked: %v", engineID, rec)}
			handled = false
		}
	}()

	render, err := h.HandleCallback(ctx, ev)
	if err != nil {
		logger.Debug(ctx, component, "engine_error",
			slog.String("engine", engineID),
			slog.String("code", errorCode(err)),
			slog.String("error", err.Error()),
		)
	}
	return Outcome{Engine: engineID, Render: render, Err: err}, true
}

// Engines lists registered engine ids, sorted.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Prefixes lists prefix bindings in precedence order as "prefix→engine".
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.prefixes))
	for _, p := range r.prefixes {
		out = append(out, p.prefix+"→"+p.engine)
	}
	return out
}

func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "INTERNAL"
}
