package logger

import (
	"context"
	"testing"
)

func TestContextMetadata(t *testing.T) {
	ctx := WithRID(context.Background(), "5:10:20")
	ctx = WithUpdateMeta(ctx, 5, 20, 10)
	ctx = WithHandler(ctx, "daily")
	ctx = WithHandler(ctx, "")
	ctx = WithDialogue(ctx, "daily", "collecting_q1")

	if RIDFrom(ctx) != "5:10:20" || UpdateIDFrom(ctx) != 5 || UserIDFrom(ctx) != 20 || ChatIDFrom(ctx) != 10 {
		t.Fatalf("update meta lost: rid=%s update=%d user=%d chat=%d", RIDFrom(ctx), UpdateIDFrom(ctx), UserIDFrom(ctx), ChatIDFrom(ctx))
	}
	if HandlerFrom(ctx) != "daily" {
		t.Fatalf("handler = %q", HandlerFrom(ctx))
	}
	if kind, step := DialogueFrom(ctx); kind != "daily" || step != "collecting_q1" {
		t.Fatalf("dialogue = %s/%s", kind, step)
	}
	if UserIDFrom(nil) != 0 || RIDFrom(context.Background()) != "" {
		t.Fatalf("empty contexts should yield zero values")
	}
}

func TestCompactRIDAndSanitize(t *testing.T) {
	if got := CompactRID("35:36:1000"); got != "z.10.rs" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("abc"); got != "abc" {
		t.Fatalf("CompactRID(abc) = %q", got)
	}
	if got := SanitizeLimit("a\x00b\u200ec\td", 4); got != "abc\t" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
