package middleware

import (
	coreconfig "github.com/m3rciful/schoolbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind names the update behind c the way rate_limit.exclude_updates
// and the receipt log spell it.
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	default:
		return "other"
	}
}
