package roles

import "testing"

func TestDefaultHierarchyContainment(t *testing.T) {
	h := DefaultHierarchy()
	if err := h.Validate(); err != nil {
		t.Fatalf("default hierarchy invalid: %v", err)
	}
	if got := h.Reachable(Student); len(got) != 0 {
		t.Fatalf("student must not reach any role, got %v", got)
	}
	if !h.CanReportOn(Coach, Assistant) {
		t.Fatal("coach should report on assistant")
	}
	if h.CanReportOn(Assistant, Coach) {
		t.Fatal("assistant must not report on coach")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	h := Hierarchy{
		Coach:     {Assistant},
		Assistant: {Coach},
	}
	if err := h.Validate(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestParseHierarchy(t *testing.T) {
	h, err := ParseHierarchy(map[string][]string{
		"school_admin": {"coach"},
		"coach":        {"assistant"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !h.CanReportOn(SchoolAdmin, Coach) {
		t.Fatal("expected admin -> coach")
	}
	if _, err := ParseHierarchy(map[string][]string{"coach": {"janitor"}}); err == nil {
		t.Fatal("expected unknown role error")
	}
}

func TestDirectoryLookup(t *testing.T) {
	users, err := ParseUsers(map[string]string{"100": "coach", "200": "STUDENT"})
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}
	d := NewDirectory(users, nil)
	if r, ok := d.UserRole(100); !ok || r != Coach {
		t.Fatalf("UserRole(100) = %q, %v", r, ok)
	}
	if _, ok := d.UserRole(300); ok {
		t.Fatal("unknown user should have no role")
	}
	if _, err := ParseUsers(map[string]string{"abc": "coach"}); err == nil {
		t.Fatal("expected invalid id error")
	}
}
