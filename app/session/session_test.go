package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCreateRejectsSecondSession(t *testing.T) {
	st := NewStore()
	if err := st.Create(New(1, 10, "a", KindDaily, "q1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := st.Create(New(1, 10, "a", KindHierarchical, "select_role"))
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	got, ok := st.Get(1)
	if !ok || got.Kind != KindDaily {
		t.Fatalf("original session replaced: %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	st := NewStore()
	s := New(1, 10, "a", KindDaily, "q1")
	_ = st.Create(s)

	c, _ := st.Get(1)
	c.Step = "q2"
	c.Answers.Set("attendance", "2")

	again, _ := st.Get(1)
	if again.Step != "q1" || again.Answers.Len() != 0 {
		t.Fatalf("store mutated through copy: step=%s answers=%d", again.Step, again.Answers.Len())
	}
	st.Put(c)
	again, _ = st.Get(1)
	if again.Step != "q2" || again.Answers.Value("attendance") != "2" {
		t.Fatalf("put not applied: %+v", again)
	}
}

func TestAnswersKeepOrder(t *testing.T) {
	a := NewAnswers()
	a.Set("b", "1")
	a.Set("a", "2")
	a.Set("b", "3")
	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"b":"3","a":"2"}` {
		t.Fatalf("unexpected json %s", raw)
	}
	a.Delete("b")
	if keys := a.Keys(); len(keys) != 1 || keys[0] != "a" {
		t.Fatalf("keys after delete: %v", keys)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	st := NewStore()
	st.SetClock(func() time.Time { return now })
	_ = st.Create(New(1, 10, "a", KindDaily, "q1"))
	_ = st.Create(New(2, 20, "b", KindDaily, "q1"))

	now = now.Add(20 * time.Minute)
	st.Touch(2)
	now = now.Add(15 * time.Minute)

	var expired []int64
	sw, err := NewSweeper(st, 30*time.Minute, "", func(_ context.Context, s *Session) {
		expired = append(expired, s.ChatID)
	})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	if n := sw.Sweep(context.Background()); n != 1 {
		t.Fatalf("evicted %d sessions, want 1", n)
	}
	if len(expired) != 1 || expired[0] != 1 {
		t.Fatalf("expired = %v", expired)
	}
	if _, ok := st.Get(2); !ok {
		t.Fatal("recently touched session evicted")
	}
}

func TestNewSweeperRejectsBadSpec(t *testing.T) {
	if _, err := NewSweeper(NewStore(), time.Minute, "not a schedule", nil); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestEvictIdleDisabled(t *testing.T) {
	st := NewStore()
	_ = st.Create(New(1, 10, "a", KindDaily, "q1"))
	if got := st.EvictIdle(0); len(got) != 0 {
		t.Fatalf("zero timeout must disable eviction, got %d", len(got))
	}
}
