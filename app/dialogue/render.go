// Package dialogue holds the pieces shared by every guided dialogue: the
// outbound render, fixed question tables and the error taxonomy.
package dialogue

import "strings"

// Button is a single inline keyboard button.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Render is what an engine hands back for delivery.
type Render struct {
	Text     string     `json:"text"`
	Keyboard [][]Button `json:"keyboard,omitempty"`
}

// Text builds a render without keyboard.
func Text(s string) Render {
	return Render{Text: s}
}

// Btn is a shorthand constructor.
func Btn(text, data string) Button {
	return Button{Text: text, Data: data}
}

// WithRow returns a copy of r with an extra keyboard row appended.
func (r Render) WithRow(buttons ...Button) Render {
	if len(buttons) == 0 {
		return r
	}
	rows := make([][]Button, 0, len(r.Keyboard)+1)
	rows = append(rows, r.Keyboard...)
	rows = append(rows, append([]Button(nil), buttons...))
	r.Keyboard = rows
	return r
}

// Empty reports whether there is nothing to deliver.
func (r Render) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.Keyboard) == 0
}

// CallbackData lists every callback identifier on the keyboard, row by row.
func (r Render) CallbackData() []string {
	var out []string
	for _, row := range r.Keyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

// HasButton reports whether any button carries data.
func (r Render) HasButton(data string) bool {
	for _, d := range r.CallbackData() {
		if d == data {
			return true
		}
	}
	return false
}

// Chunk splits buttons into rows of at most n.
func Chunk(buttons []Button, n int) [][]Button {
	if n <= 1 {
		out := make([][]Button, 0, len(buttons))
		for _, b := range buttons {
			out = append(out, []Button{b})
		}
		return out
	}
	var rows [][]Button
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}
