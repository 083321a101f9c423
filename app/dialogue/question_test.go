package dialogue

import "testing"

var scale = Question{
	Key:      "satisfaction",
	Title:    "rating",
	Callback: "rate_",
	Options: []Option{
		{Value: "1", Label: "low"},
		{Value: "2", Label: "mid"},
		{Value: "3", Label: "high"},
	},
	PerRow: 2,
}

func TestParseTextNormalizesDigits(t *testing.T) {
	cases := map[string]string{
		"2":             "2",
		" 3 ":           "3",
		"2\uFE0F\u20E3": "2",
		"\u06F3":        "3",
		"\u0661":        "1",
	}
	for in, want := range cases {
		got, err := scale.ParseText(in)
		if err != nil {
			t.Fatalf("ParseText(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseText(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"4", "0", "mid", ""} {
		if _, err := scale.ParseText(bad); !IsValidation(err) {
			t.Fatalf("ParseText(%q) expected validation error, got %v", bad, err)
		}
	}
}

func TestParseCallback(t *testing.T) {
	if v, err := scale.ParseCallback("rate_3"); err != nil || v != "3" {
		t.Fatalf("ParseCallback = %q, %v", v, err)
	}
	for _, bad := range []string{"rate_9", "other_1", "rate_"} {
		if _, err := scale.ParseCallback(bad); !IsValidation(err) {
			t.Fatalf("ParseCallback(%q) expected validation error", bad)
		}
	}
}

func TestFreeTextMinimum(t *testing.T) {
	q := Question{Key: "notes"}
	if _, err := q.ParseText("too short"); !IsValidation(err) {
		t.Fatalf("9 runes accepted")
	}
	if v, err := q.ParseText("  ده حرف کامل است  "); err != nil || v != "ده حرف کامل است" {
		t.Fatalf("ParseText = %q, %v", v, err)
	}
}

func TestButtonsAndSummary(t *testing.T) {
	rows := scale.Buttons()
	if len(rows) != 2 || len(rows[0]) != 2 || rows[1][0].Data != "rate_3" {
		t.Fatalf("rows = %+v", rows)
	}
	answers := map[string]string{"satisfaction": "2"}
	got := Summary([]Question{scale, {Key: "notes", Title: "notes"}}, func(k string) (string, bool) {
		v, ok := answers[k]
		return v, ok
	})
	if got != "rating: mid" {
		t.Fatalf("summary = %q", got)
	}
}

func TestTokens(t *testing.T) {
	for _, s := range []string{"❌ انصراف", "/cancel", " Cancel "} {
		if !IsCancel(s) {
			t.Fatalf("IsCancel(%q) = false", s)
		}
	}
	if IsCancel("hello") || !IsConfirm("✅ ثبت گزارش") || IsConfirm("no") {
		t.Fatal("token classification wrong")
	}
}

func TestRenderWithRowCopies(t *testing.T) {
	base := Text("x").WithRow(Btn("a", "a"))
	derived := base.WithRow(Btn("b", "b"))
	if len(base.Keyboard) != 1 || len(derived.Keyboard) != 2 {
		t.Fatalf("WithRow mutated receiver: %d/%d", len(base.Keyboard), len(derived.Keyboard))
	}
	if !derived.HasButton("b") || base.HasButton("b") {
		t.Fatal("HasButton mismatch")
	}
}
