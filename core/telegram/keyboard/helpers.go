package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
// With an empty Unique the Data string is sent to Telegram verbatim.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// MaxCallbackData is Telegram's limit on callback_data, in bytes.
const MaxCallbackData = 64

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
// Empty rows are dropped; nil is returned when nothing is left.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	markup.InlineKeyboard = inline
	return markup
}

// Oversized returns the callback data values that exceed MaxCallbackData.
func Oversized(rows ...[]InlineBtn) []string {
	var out []string
	for _, row := range rows {
		for _, b := range row {
			if len(b.Data) > MaxCallbackData {
				out = append(out, b.Data)
			}
		}
	}
	return out
}
