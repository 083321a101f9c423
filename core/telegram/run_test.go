package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/schoolbot/core/config"
	tgsender "github.com/m3rciful/schoolbot/core/telegram/sender"
)

func TestDispatcherOptionsFromConfig(t *testing.T) {
	cfg := &coreconfig.Config{Sender: coreconfig.SenderConfig{Workers: 2, QueueSize: 16, MaxRetries: 1, RetryBackoffMS: 750}}
	opts := DispatcherOptions(cfg)
	if opts.Workers != 2 || opts.QueueSize != 16 || opts.MaxRetries != 1 || opts.RetryBackoff != 750*time.Millisecond {
		t.Fatalf("options = %+v", opts)
	}
	if DispatcherOptions(nil) != (tgsender.Options{}) {
		t.Fatalf("nil config should give zero options")
	}
}
