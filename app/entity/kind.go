// Package entity implements the directories of reporting targets and one
// wizard that manages every directory kind.
package entity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m3rciful/schoolbot/app/dialogue"
	"github.com/m3rciful/schoolbot/app/roles"
)

// Field is one editable attribute of an entity.
type Field struct {
	Key    string
	Label  string
	Icon   string
	Prompt string
	// Normalize validates raw input and returns the stored value.
	Normalize func(raw string) (string, error)
}

// Kind describes one directory: its role, labels, storage document and fields.
type Kind struct {
	Key      string
	Role     roles.Role
	Singular string
	Plural   string
	Icon     string
	Doc      string
	Fields   []Field
}

// Field looks up a field by key.
func (k Kind) Field(key string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

func (k Kind) cb(parts ...string) string {
	return k.Key + "_" + strings.Join(parts, "_")
}

// Prefix is the callback prefix owned by this kind.
func (k Kind) Prefix() string { return k.Key + "_" }

func minRunes(label string, n int) func(string) (string, error) {
	return func(raw string) (string, error) {
		v := strings.Join(strings.Fields(raw), " ")
		if utf8.RuneCountInString(v) < n {
			return "", &dialogue.ValidationError{Reason: fmt.Sprintf("%s shorter than %d characters", label, n)}
		}
		return v, nil
	}
}

func normalizePhone(raw string) (string, error) {
	v := dialogue.NormalizeDigits(strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), "-", ""))
	if len(v) < 7 || len(v) > 15 {
		return "", &dialogue.ValidationError{Reason: "phone must be 7 to 15 characters"}
	}
	for i, r := range v {
		if r == '+' && i == 0 {
			continue
		}
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return "", &dialogue.ValidationError{Reason: "phone may contain digits and a leading +"}
		}
	}
	return v, nil
}

func contactFields(singular string) []Field {
	return []Field{
		{Key: "name", Label: "نام", Icon: "👤", Prompt: "👤 لطفاً نام و فامیل " + singular + " را وارد کنید:", Normalize: minRunes("name", 2)},
		{Key: "phone", Label: "تلفن", Icon: "📱", Prompt: "📞 لطفاً شماره تلفن " + singular + " را وارد کنید:", Normalize: normalizePhone},
		{Key: "region", Label: "منطقه", Icon: "📍", Prompt: "🌍 لطفاً منطقه " + singular + " را وارد کنید:", Normalize: minRunes("region", 2)},
	}
}

// Assistants is the ASSISTANT directory.
func Assistants() Kind {
	return Kind{Key: "assistant", Role: roles.Assistant, Singular: "دبیر", Plural: "دبیران", Icon: "👨‍🏫", Doc: "assistants", Fields: contactFields("دبیر")}
}

// Instructors is the COACH directory.
func Instructors() Kind {
	return Kind{Key: "instructor", Role: roles.Coach, Singular: "راهبر", Plural: "راهبران", Icon: "🧑‍💼", Doc: "instructors", Fields: contactFields("راهبر")}
}

// Students is the STUDENT directory.
func Students() Kind {
	return Kind{Key: "student", Role: roles.Student, Singular: "فعال", Plural: "فعالان", Icon: "🎓", Doc: "students", Fields: contactFields("فعال")}
}

// DefaultKinds returns every built-in directory kind.
func DefaultKinds() []Kind {
	return []Kind{Instructors(), Assistants(), Students()}
}
