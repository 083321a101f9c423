package middleware

import (
	"testing"
	"time"
)

func TestUserGateSpacesEachUser(t *testing.T) {
	g := newUserGate(500 * time.Millisecond)
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	if !g.allow(1, t0) {
		t.Fatalf("first update rejected")
	}
	if g.allow(1, t0.Add(100*time.Millisecond)) {
		t.Fatalf("second update inside the interval passed")
	}
	if !g.allow(2, t0.Add(100*time.Millisecond)) {
		t.Fatalf("another user was limited")
	}
	if !g.allow(1, t0.Add(600*time.Millisecond)) {
		t.Fatalf("update after the interval rejected")
	}
}

func TestUserGatePrunesIdleUsers(t *testing.T) {
	g := newUserGate(time.Second)
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 10; id++ {
		g.allow(id, t0)
	}
	g.allow(99, t0.Add(5*time.Minute))
	if len(g.seen) != 1 {
		t.Fatalf("seen = %d entries, want only the active user", len(g.seen))
	}
}
