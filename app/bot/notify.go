package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/schoolbot/app/daily"
	"github.com/m3rciful/schoolbot/app/events"
	"github.com/m3rciful/schoolbot/app/hierarchy"
	"github.com/m3rciful/schoolbot/app/roles"
	"github.com/m3rciful/schoolbot/app/session"
	"github.com/m3rciful/schoolbot/core/telegram/format"
)

// Message is an outbound notification not tied to an inbound update.
type Message struct {
	ChatID     int64
	Text       string
	MarkdownV2 bool
}

// Outbox delivers notifications.
type Outbox interface {
	Deliver(ctx context.Context, m Message) error
}

// Notifier turns bus events into chat notifications.
type Notifier struct {
	adminID int64
	out     Outbox
}

// NewNotifier builds a notifier. A zero adminID disables admin notifications.
func NewNotifier(adminID int64, out Outbox) *Notifier {
	return &Notifier{adminID: adminID, out: out}
}

// Subscribe attaches the notifier to bus and returns the unsubscribe funcs.
func (n *Notifier) Subscribe(bus *events.Bus) []func() {
	return []func(){
		bus.Subscribe(events.TopicDailySubmitted, n.reportSubmitted),
		bus.Subscribe(events.TopicHierarchicalSubmitted, n.reportSubmitted),
		bus.Subscribe(events.TopicSessionExpired, n.sessionExpired),
	}
}

func (n *Notifier) reportSubmitted(ctx context.Context, ev events.Event) error {
	if n.adminID == 0 || n.out == nil {
		return nil
	}
	return n.out.Deliver(ctx, Message{ChatID: n.adminID, Text: AdminReportText(ev), MarkdownV2: true})
}

func (n *Notifier) sessionExpired(ctx context.Context, ev events.Event) error {
	if n.out == nil || ev.ChatID == 0 {
		return nil
	}
	title := session.Kind(ev.Payload["kind"]).Title()
	text := fmt.Sprintf("⏰ %s به دلیل عدم فعالیت بسته شد.\n\nبرای شروع دوباره /report را بزنید.", title)
	return n.out.Deliver(ctx, Message{ChatID: ev.ChatID, Text: text})
}

// AdminReportText formats a submitted report for the admin chat in MarkdownV2.
func AdminReportText(ev events.Event) string {
	p := ev.Payload
	var b strings.Builder
	switch ev.Topic {
	case events.TopicDailySubmitted:
		b.WriteString(format.BoldV2("📊 گزارش روزانه جدید"))
		if p["amended"] == "true" {
			b.WriteString(format.EscapeV2(" (ویرایش شده)"))
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "👤 %s\n", format.BoldV2(p["user_name"]))
		fmt.Fprintf(&b, "📅 %s\n\n", format.EscapeV2(p["date"]))
		b.WriteString(format.EscapeV2(daily.Summary(p)))
	case events.TopicHierarchicalSubmitted:
		b.WriteString(format.BoldV2("👥 گزارش سلسله‌مراتبی جدید"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "👤 %s %s\n", format.BoldV2(p["reporter_name"]),
			format.EscapeV2("("+roles.Role(p["reporter_role"]).DisplayName()+")"))
		fmt.Fprintf(&b, "🎯 %s %s\n", format.EscapeV2(roles.Role(p["target_role"]).DisplayName()+":"), format.BoldV2(p["target_name"]))
		fmt.Fprintf(&b, "📅 %s\n\n", format.EscapeV2(p["date"]))
		b.WriteString(format.EscapeV2(hierarchy.Summary(p)))
	default:
		b.WriteString(format.EscapeV2(ev.Topic))
	}
	return b.String()
}

// PublishExpired is the sweeper hook that announces evicted sessions on bus.
func PublishExpired(bus events.Publisher) session.ExpireFunc {
	return func(ctx context.Context, sess *session.Session) {
		bus.Publish(ctx, events.Event{
			Topic:  events.TopicSessionExpired,
			ChatID: sess.ChatID,
			UserID: sess.UserID,
			Payload: map[string]string{
				"kind": string(sess.Kind),
				"step": string(sess.Step),
			},
		})
	}
}
