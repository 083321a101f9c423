package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishOrderAndWildcard(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(TopicDailySubmitted, func(_ context.Context, ev Event) error {
		got = append(got, "topic:"+ev.Payload["date"])
		return nil
	})
	bus.Subscribe("*", func(_ context.Context, ev Event) error {
		got = append(got, "any:"+ev.Topic)
		return nil
	})

	bus.Publish(context.Background(), Event{Topic: TopicDailySubmitted, Payload: map[string]string{"date": "2024-03-01"}})
	bus.Publish(context.Background(), Event{Topic: TopicEntityCreated})

	want := []string{"topic:2024-03-01", "any:" + TopicDailySubmitted, "any:" + TopicEntityCreated}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFailingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.Subscribe(TopicEntityDeleted, func(context.Context, Event) error { panic("boom") })
	bus.Subscribe(TopicEntityDeleted, func(context.Context, Event) error { return errors.New("fail") })
	bus.Subscribe(TopicEntityDeleted, func(context.Context, Event) error { calls++; return nil })

	bus.Publish(context.Background(), Event{Topic: TopicEntityDeleted})
	if calls != 1 {
		t.Fatalf("last subscriber called %d times", calls)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := bus.Subscribe(TopicSessionExpired, func(context.Context, Event) error { calls++; return nil })
	cancel()
	bus.Publish(context.Background(), Event{Topic: TopicSessionExpired})
	if calls != 0 {
		t.Fatalf("unsubscribed handler called %d times", calls)
	}
}
