// Package commands describes the bot's slash commands.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrIncomplete means the command lacks a name, handler or description.
	ErrIncomplete = errors.New("commands: name, handler and description are required")
	// ErrNoSlash means the name does not start with "/".
	ErrNoSlash = errors.New("commands: name must start with /")
)

// Command is one slash command with its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run behind the admin gate and stay out of the public menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are extra texts routed to the same handler, such as reply-keyboard labels.
	Aliases []string
}

// Validate checks that cmd can be registered under name.
func Validate(name string, cmd Command) error {
	if name == "" || cmd.Handler == nil || strings.TrimSpace(cmd.Description) == "" {
		return ErrIncomplete
	}
	if !strings.HasPrefix(name, "/") {
		return ErrNoSlash
	}
	return nil
}

// Listed reports whether the command belongs in the public command menu.
func (c Command) Listed() bool {
	return !c.Hidden && !c.AdminOnly
}

// Answers reports whether text invokes one of c's aliases. A leading slash on
// text is ignored.
func (c Command) Answers(text string) bool {
	bare := strings.TrimPrefix(text, "/")
	for _, alias := range c.Aliases {
		if alias == text || alias == bare {
			return true
		}
	}
	return false
}
