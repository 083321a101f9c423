package dialogue

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinTextLen is the minimum rune count for descriptive answers.
const DefaultMinTextLen = 10

// Option is one multiple-choice answer. Value is what gets persisted.
type Option struct {
	Value string
	Label string
}

// Question is one fixed step of a dialogue.
type Question struct {
	Key    string
	Title  string
	Prompt string
	// Options empty means free text.
	Options []Option
	// Callback is the prefix of option buttons; the option value follows it.
	// Empty means the option value is the whole callback identifier.
	Callback string
	// ButtonText overrides the option label on the button (e.g. keycap digits).
	ButtonText func(Option) string
	PerRow     int
	MinLen     int
	Optional   bool
}

// FreeText reports whether the question takes typed text.
func (q Question) FreeText() bool {
	return len(q.Options) == 0
}

// Label resolves a stored value back to its display label.
func (q Question) Label(value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// Buttons renders the option keyboard.
func (q Question) Buttons() [][]Button {
	if q.FreeText() {
		return nil
	}
	buttons := make([]Button, 0, len(q.Options))
	for _, o := range q.Options {
		text := o.Label
		if q.ButtonText != nil {
			text = q.ButtonText(o)
		}
		buttons = append(buttons, Btn(text, q.Callback+o.Value))
	}
	return Chunk(buttons, q.PerRow)
}

// OptionsText lists options as "1️⃣ label" lines for the prompt body.
func (q Question) OptionsText() string {
	if q.FreeText() {
		return ""
	}
	lines := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		lines = append(lines, fmt.Sprintf("%s %s", Keycap(o.Value), o.Label))
	}
	return strings.Join(lines, "\n")
}

// ParseCallback extracts the option value from callback data.
func (q Question) ParseCallback(data string) (string, error) {
	if q.FreeText() || !strings.HasPrefix(data, q.Callback) {
		return "", &ValidationError{Reason: fmt.Sprintf("button %q does not answer %s", data, q.Key)}
	}
	value := strings.TrimPrefix(data, q.Callback)
	for _, o := range q.Options {
		if o.Value == value {
			return value, nil
		}
	}
	return "", &ValidationError{Reason: fmt.Sprintf("option %q out of range for %s", value, q.Key)}
}

// ParseText validates typed input against the question shape.
func (q Question) ParseText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if q.FreeText() {
		minLen := q.MinLen
		if minLen <= 0 {
			minLen = DefaultMinTextLen
		}
		if utf8.RuneCountInString(text) < minLen {
			return "", &ValidationError{Reason: fmt.Sprintf("answer to %s shorter than %d characters", q.Key, minLen)}
		}
		return text, nil
	}
	value := NormalizeDigits(text)
	for _, o := range q.Options {
		if o.Value == value {
			return value, nil
		}
	}
	return "", &ValidationError{Reason: fmt.Sprintf("option %q out of range for %s", text, q.Key)}
}

// RetryHint is the user-facing text for a failed validation.
func (q Question) RetryHint() string {
	if q.FreeText() {
		minLen := q.MinLen
		if minLen <= 0 {
			minLen = DefaultMinTextLen
		}
		return fmt.Sprintf("❌ لطفاً توضیح کامل‌تری ارائه دهید (حداقل %d کاراکتر).", minLen)
	}
	first, last := q.Options[0].Value, q.Options[len(q.Options)-1].Value
	if Keycap(first) == first || Keycap(last) == last {
		return "❌ لطفاً یکی از گزینه‌ها را از دکمه‌های زیر انتخاب کنید."
	}
	return fmt.Sprintf("❌ لطفاً یکی از گزینه‌های %s تا %s را انتخاب کنید.", Keycap(first), Keycap(last))
}

// Keycap decorates a single digit with the keycap emoji.
func Keycap(value string) string {
	if len(value) == 1 && value[0] >= '0' && value[0] <= '9' {
		return value + "\uFE0F\u20E3"
	}
	return value
}

// NormalizeDigits strips keycap decoration and maps Persian/Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\uFE0F' || r == '\u20E3':
			continue
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var cancelTokens = map[string]struct{}{
	"❌ انصراف": {},
	"انصراف":   {},
	"لغو":      {},
	"/cancel":  {},
	"cancel":   {},
}

var confirmTokens = map[string]struct{}{
	"✅ ثبت گزارش": {},
	"ثبت گزارش":   {},
	"تایید":       {},
	"yes":         {},
	"confirm":     {},
}

// IsCancel reports whether text is a recognized cancel token.
func IsCancel(text string) bool {
	_, ok := cancelTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// IsConfirm reports whether text is an affirmative confirmation.
func IsConfirm(text string) bool {
	_, ok := confirmTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// Summary renders "title: label" lines for answered questions, in question order.
func Summary(questions []Question, answer func(key string) (string, bool)) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		v, ok := answer(q.Key)
		if !ok {
			continue
		}
		label := q.Label(v)
		if q.FreeText() && v == "" {
			label = "وارد نشده"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", q.Title, label))
	}
	return strings.Join(lines, "\n")
}
