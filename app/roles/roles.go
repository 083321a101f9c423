// Package roles maps users to role tags and describes which roles may report
// on which other roles.
package roles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Role is a static role tag assigned to a user.
type Role string

const (
	SchoolAdmin Role = "SCHOOL_ADMIN"
	Coach       Role = "COACH"
	Assistant   Role = "ASSISTANT"
	Student     Role = "STUDENT"
)

var displayNames = map[Role]string{
	SchoolAdmin: "مدیر",
	Coach:       "راهبر",
	Assistant:   "دبیر",
	Student:     "فعال",
}

// Known reports whether r is one of the supported role tags.
func (r Role) Known() bool {
	_, ok := displayNames[r]
	return ok
}

// DisplayName returns the Persian label for the role, or the raw tag.
func (r Role) DisplayName() string {
	if name, ok := displayNames[r]; ok {
		return name
	}
	return string(r)
}

// Parse normalizes a raw tag such as "coach" into a Role.
func Parse(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Known() {
		return "", fmt.Errorf("roles: unknown role %q", raw)
	}
	return r, nil
}

// Hierarchy maps a role to the ordered list of roles it may report on.
type Hierarchy map[Role][]Role

// DefaultHierarchy returns the reporting reach used when configuration omits one.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		SchoolAdmin: {Coach, Assistant, Student},
		Coach:       {Assistant, Student},
		Assistant:   {Student},
		Student:     {},
	}
}

// Reachable returns a copy of the roles r may report on.
func (h Hierarchy) Reachable(r Role) []Role {
	return append([]Role(nil), h[r]...)
}

// CanReportOn reports whether from may file reports about target.
func (h Hierarchy) CanReportOn(from, target Role) bool {
	for _, r := range h[from] {
		if r == target {
			return true
		}
	}
	return false
}

// Validate checks that every tag is known and that the graph has no cycles.
func (h Hierarchy) Validate() error {
	for from, targets := range h {
		if !from.Known() {
			return fmt.Errorf("roles: unknown role %q in hierarchy", from)
		}
		seen := make(map[Role]struct{}, len(targets))
		for _, t := range targets {
			if !t.Known() {
				return fmt.Errorf("roles: unknown role %q under %s", t, from)
			}
			if t == from {
				return fmt.Errorf("roles: %s reports on itself", from)
			}
			if _, dup := seen[t]; dup {
				return fmt.Errorf("roles: %s lists %s twice", from, t)
			}
			seen[t] = struct{}{}
		}
	}

	const (
		unvisited = iota
		active
		done
	)
	marks := make(map[Role]int, len(h))
	var visit func(r Role) error
	visit = func(r Role) error {
		switch marks[r] {
		case active:
			return fmt.Errorf("roles: hierarchy cycle through %s", r)
		case done:
			return nil
		}
		marks[r] = active
		for _, t := range h[r] {
			if err := visit(t); err != nil {
				return err
			}
		}
		marks[r] = done
		return nil
	}
	for _, r := range h.sortedRoles() {
		if err := visit(r); err != nil {
			return err
		}
	}
	return nil
}

func (h Hierarchy) sortedRoles() []Role {
	out := make([]Role, 0, len(h))
	for r := range h {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseHierarchy converts the config representation into a validated Hierarchy.
func ParseHierarchy(raw map[string][]string) (Hierarchy, error) {
	if len(raw) == 0 {
		return DefaultHierarchy(), nil
	}
	h := make(Hierarchy, len(raw))
	for from, targets := range raw {
		fr, err := Parse(from)
		if err != nil {
			return nil, err
		}
		list := make([]Role, 0, len(targets))
		for _, t := range targets {
			tr, err := Parse(t)
			if err != nil {
				return nil, err
			}
			list = append(list, tr)
		}
		h[fr] = list
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Lookup resolves a user's role.
type Lookup interface {
	UserRole(userID int64) (Role, bool)
}

// Source is a Lookup that also exposes the reporting graph.
type Source interface {
	Lookup
	Hierarchy() Hierarchy
}

// Directory is the static user→role table together with the hierarchy.
type Directory struct {
	users     map[int64]Role
	hierarchy Hierarchy
}

// NewDirectory builds a Directory. A nil hierarchy falls back to DefaultHierarchy.
func NewDirectory(users map[int64]Role, h Hierarchy) *Directory {
	if h == nil {
		h = DefaultHierarchy()
	}
	cp := make(map[int64]Role, len(users))
	for id, r := range users {
		cp[id] = r
	}
	return &Directory{users: cp, hierarchy: h}
}

// ParseUsers converts `"<telegram id>": "<ROLE>"` config entries.
func ParseUsers(raw map[string]string) (map[int64]Role, error) {
	out := make(map[int64]Role, len(raw))
	for idStr, roleStr := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("roles: invalid user id %q: %w", idStr, err)
		}
		r, err := Parse(roleStr)
		if err != nil {
			return nil, err
		}
		out[id] = r
	}
	return out, nil
}

// UserRole returns the role assigned to userID.
func (d *Directory) UserRole(userID int64) (Role, bool) {
	if d == nil {
		return "", false
	}
	r, ok := d.users[userID]
	return r, ok
}

// Hierarchy exposes the read-only reporting graph.
func (d *Directory) Hierarchy() Hierarchy {
	if d == nil {
		return DefaultHierarchy()
	}
	return d.hierarchy
}
