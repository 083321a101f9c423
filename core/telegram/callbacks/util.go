package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Buttons built without a unique carry their data verbatim and come back as
// (data, "").
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	if len(raw) != len(cb.Data) {
		parts := strings.SplitN(raw, "|", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[0]), parts[1]
		}
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(raw), ""
}

// Identifier returns the callback identifier of the current update: the
// unique for Telebot-encoded buttons, otherwise the raw data.
func Identifier(c tele.Context) string {
	key, _ := ParseCallbackData(c.Callback())
	return key
}
