// Package notify delivers operator alerts when smart order executions reach a
// terminal state. The Notifier renders an execution summary into a channel
// notification and fans it out to every configured sender (Telegram, Discord),
// filtered by event type so operators only hear about the transitions they
// subscribed to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// Lifecycle events the Notifier emits. These match the event names published
// on the execution bus and accepted in the notify.events config list.
const (
	EventCompleted = "execution_completed"
	EventFailed    = "execution_failed"
	EventCancelled = "execution_cancelled"
)

// Notification is one rendered alert. Senders apply their own channel markup
// to the title and body; Event lets them style by outcome (Discord embeds
// color failed executions red, completed green).
type Notification struct {
	Event string
	Title string
	Body  string
}

// Sender is one delivery channel for rendered notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	// Name identifies the channel in logs and aggregated errors.
	Name() string
}

// Notifier renders execution summaries and dispatches them to all senders.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types; empty means all
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// listed in events are forwarded; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify renders the execution summary and delivers it to every sender,
// provided the event passes the configured filter. Errors from individual
// senders are collected; one channel failing does not block the others.
func (n *Notifier) Notify(ctx context.Context, event string, sum domain.ExecutionSummary) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
			slog.String("execution_id", sum.ID),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	note := Notification{
		Event: event,
		Title: summaryTitle(sum),
		Body:  summaryBody(sum),
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, note); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("execution_id", sum.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("execution_id", sum.ID),
			slog.String("event", event),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func summaryTitle(sum domain.ExecutionSummary) string {
	return fmt.Sprintf("Execution %s: %s %s %s",
		sum.Status, sum.Side, sum.Symbol, sum.Algorithm)
}

// summaryBody renders the execution quality lines operators act on: how much
// filled, at what average price, and the realized slippage.
func summaryBody(sum domain.ExecutionSummary) string {
	var fillPct float64
	if sum.Quantity > 0 {
		fillPct = sum.FilledQuantity / sum.Quantity * 100
	}

	lines := []string{
		fmt.Sprintf("filled: %.4f / %.4f (%.1f%%)", sum.FilledQuantity, sum.Quantity, fillPct),
		fmt.Sprintf("avg fill price: %.4f", sum.AvgFillPrice),
		fmt.Sprintf("slippage: %+.4f%%", sum.SlippagePct),
	}
	if sum.EndedAt != nil {
		lines = append(lines, "duration: "+sum.EndedAt.Sub(sum.StartedAt).Round(time.Millisecond).String())
	}
	return strings.Join(lines, "\n")
}
