package commands

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestValidate(t *testing.T) {
	h := func(tele.Context) error { return nil }
	if err := Validate("/daily", Command{Handler: h, Description: "daily"}); err != nil {
		t.Fatalf("valid command: %v", err)
	}
	if err := Validate("daily", Command{Handler: h, Description: "daily"}); !errors.Is(err, ErrNoSlash) {
		t.Fatalf("missing slash err = %v", err)
	}
	if err := Validate("/daily", Command{Handler: h, Description: "  "}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("blank description err = %v", err)
	}
	if err := Validate("/daily", Command{Description: "daily"}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("nil handler err = %v", err)
	}
}

func TestListedAndAnswers(t *testing.T) {
	cmd := Command{Aliases: []string{"📝 ثبت اطلاعات", "report"}}
	if !cmd.Listed() {
		t.Fatalf("plain command should be listed")
	}
	if (Command{AdminOnly: true}).Listed() || (Command{Hidden: true}).Listed() {
		t.Fatalf("admin or hidden command listed")
	}
	for _, text := range []string{"📝 ثبت اطلاعات", "report", "/report"} {
		if !cmd.Answers(text) {
			t.Fatalf("Answers(%q) = false", text)
		}
	}
	if cmd.Answers("/daily") {
		t.Fatalf("Answers matched an unrelated text")
	}
}
