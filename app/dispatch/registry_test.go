package dispatch

import (
	"context"
	"testing"

	"github.com/m3rciful/schoolbot/app/dialogue"
)

func echo(name string) Handler {
	return HandlerFunc(func(_ context.Context, ev dialogue.CallbackEvent) (dialogue.Render, error) {
		return dialogue.Text(name + ":" + ev.Data), nil
	})
}

func TestExactBeatsPrefix(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterEngine("menu", echo("menu"))
	_ = r.RegisterEngine("hierarchy", echo("hierarchy"))
	r.RegisterPrefix("back_to_", "hierarchy")
	r.RegisterExact("back_to_main", "menu")

	if id, ok := r.Resolve("back_to_main"); !ok || id != "menu" {
		t.Fatalf("Resolve(back_to_main) = %q, %v", id, ok)
	}
	if id, ok := r.Resolve("back_to_role_selection"); !ok || id != "hierarchy" {
		t.Fatalf("Resolve(back_to_role_selection) = %q, %v", id, ok)
	}
}

func TestFirstPrefixWins(t *testing.T) {
	r := NewRegistry()
	r.RegisterPrefix("daily_", "daily")
	r.RegisterPrefix("daily_answer_", "other")
	if id, _ := r.Resolve("daily_answer_3"); id != "daily" {
		t.Fatalf("first registered prefix must win, got %q", id)
	}
	r.Unregister("daily")
	if id, _ := r.Resolve("daily_answer_3"); id != "other" {
		t.Fatalf("after unregister got %q", id)
	}
	if got := r.Prefixes(); len(got) != 1 {
		t.Fatalf("prefixes = %v", got)
	}
}

func TestPrefixRebindInPlace(t *testing.T) {
	r := NewRegistry()
	r.RegisterPrefix("foo_", "a")
	r.RegisterPrefix("bar_", "c")
	r.RegisterPrefix("foo_", "b")
	if id, _ := r.Resolve("foo_1"); id != "b" {
		t.Fatalf("Resolve(foo_1) = %q, want b", id)
	}
	got := r.Prefixes()
	if len(got) != 2 || got[0] != "foo_→b" || got[1] != "bar_→c" {
		t.Fatalf("prefixes = %v", got)
	}
}

func TestExactLastWriteWins(t *testing.T) {
	r := NewRegistry()
	if !r.RegisterExact("confirm_report", "a") || !r.RegisterExact("confirm_report", "b") {
		t.Fatal("rebinding should succeed")
	}
	if id, _ := r.Resolve("confirm_report"); id != "b" {
		t.Fatalf("Resolve = %q", id)
	}
	if r.RegisterExact("", "a") || r.RegisterPrefix("x_", "") {
		t.Fatal("empty bindings accepted")
	}
}

func TestDispatch(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterEngine("daily", echo("daily"))
	r.RegisterPrefix("daily_", "daily")
	ctx := context.Background()

	out, ok := r.Dispatch(ctx, dialogue.CallbackEvent{ChatID: 1, Data: "daily_answer_2"})
	if !ok || out.Engine != "daily" || out.Render.Text != "daily:daily_answer_2" {
		t.Fatalf("dispatch = %+v, %v", out, ok)
	}
	out, ok = r.Dispatch(ctx, dialogue.CallbackEvent{ChatID: 1, Data: "unknown"})
	if ok {
		t.Fatal("unresolved identifier reported as handled")
	}
	if !out.Render.HasButton(dialogue.CallbackBackToMain) || out.Err != nil {
		t.Fatalf("unresolved render = %+v", out)
	}

	// Bound to an engine id that was never registered.
	r.RegisterExact("orphan", "ghost")
	if out, ok := r.Dispatch(ctx, dialogue.CallbackEvent{Data: "orphan"}); ok || out.Render.Empty() {
		t.Fatalf("binding without engine: handled=%v render=%+v", ok, out.Render)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterEngine("bad", HandlerFunc(func(context.Context, dialogue.CallbackEvent) (dialogue.Render, error) {
		panic("boom")
	}))
	r.RegisterExact("explode", "bad")
	out, ok := r.Dispatch(context.Background(), dialogue.CallbackEvent{Data: "explode"})
	if ok || out.Err == nil || out.Render.Empty() {
		t.Fatalf("panic outcome = %+v, %v", out, ok)
	}
}

func TestRegisterEngineRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterEngine("a", echo("a")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterEngine("a", echo("a")); err == nil {
		t.Fatal("duplicate engine accepted")
	}
	if got := r.Engines(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("engines = %v", got)
	}
}
