// Package session keeps the single in-progress dialogue of every chat.
package session

import (
	"errors"
	"sync"
	"time"
)

// Kind names the dialogue family that owns a session.
type Kind string

const (
	KindDaily        Kind = "daily"
	KindHierarchical Kind = "hierarchical"
	KindEntity       Kind = "entity"
)

// Title is a short Persian label used in conflict prompts.
func (k Kind) Title() string {
	switch k {
	case KindDaily:
		return "گزارش روزانه"
	case KindHierarchical:
		return "گزارش سلسله‌مراتبی"
	case KindEntity:
		return "مدیریت اطلاعات"
	}
	return string(k)
}

// Step is a kind-specific state name.
type Step string

// ErrSessionExists is returned by Create when the chat already has a session.
var ErrSessionExists = errors.New("session: chat already has an active session")

// Session is the volatile record of one chat's dialogue.
type Session struct {
	ChatID   int64
	UserID   int64
	UserName string
	Kind     Kind
	Step     Step
	Answers  *Answers

	SelectedRole     string
	SelectedTargetID string
	// Meta carries engine-private values such as resolved display names.
	Meta map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a session in its initial step.
func New(chatID, userID int64, userName string, kind Kind, step Step) *Session {
	return &Session{
		ChatID:   chatID,
		UserID:   userID,
		UserName: userName,
		Kind:     kind,
		Step:     step,
		Answers:  NewAnswers(),
		Meta:     make(map[string]string),
	}
}

// Clone returns a deep copy so callers can mutate without touching the store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = s.Answers.Clone()
	c.Meta = make(map[string]string, len(s.Meta))
	for k, v := range s.Meta {
		c.Meta[k] = v
	}
	return &c
}

// Store is the chat → session table. Readers get clones; a session changes
// only when a caller Puts it back, so a rejected input never leaks into state.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
	now      func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Lock takes the chat's exclusive lock for a read-modify-write cycle and
// returns the release func.
func (s *Store) Lock(chatID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get returns a copy of the chat's session.
func (s *Store) Get(chatID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Create inserts sess unless the chat already has one.
func (s *Store) Create(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ChatID]; ok {
		return ErrSessionExists
	}
	now := s.now()
	c := sess.Clone()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.sessions[sess.ChatID] = c
	return nil
}

// Put replaces the chat's session and refreshes its activity time.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := sess.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = s.now()
	s.sessions[sess.ChatID] = c
}

// Touch refreshes the activity time without other changes.
func (s *Store) Touch(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		sess.UpdatedAt = s.now()
	}
}

// Delete removes the chat's session and reports whether one existed.
func (s *Store) Delete(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	return ok
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions untouched for longer than idle and returns them.
// Each candidate is rechecked under its chat lock so an in-flight step wins.
func (s *Store) EvictIdle(idle time.Duration) []*Session {
	if idle <= 0 {
		return nil
	}
	s.mu.Lock()
	cutoff := s.now().Add(-idle)
	var candidates []int64
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()

	var evicted []*Session
	for _, id := range candidates {
		unlock := s.Lock(id)
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok && sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
		s.mu.Unlock()
		unlock()
	}
	return evicted
}
