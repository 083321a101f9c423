package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	got, err := EscapeMarkdown("a_b (c) 4.5!", MarkdownV2)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	if want := `a\_b \(c\) 4\.5\!`; got != want {
		t.Fatalf("V2 = %q, want %q", got, want)
	}
	if got, _ := EscapeMarkdown("a_b (c)", MarkdownV1); got != `a\_b (c)` {
		t.Fatalf("V1 = %q", got)
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("unknown version accepted")
	}
	if got := BoldV2("علی-رضا"); got != `*علی\-رضا*` {
		t.Fatalf("BoldV2 = %q", got)
	}
}
