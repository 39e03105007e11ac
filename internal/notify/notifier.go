package notify

import (
	"context"
	"fmt"
	"time"

	"autotrade/pkg/config"
)

// QueueName is the durable queue notification messages are published to.
// The notifier worker (cmd/notifier) consumes it and delivers.
const QueueName = "action_notifications"

// Message kinds
const (
	KindActionTriggered = "action_triggered"
	KindExecutionFailed = "execution_failed"
)

// Message is one user-facing notification.
type Message struct {
	Kind     string    `json:"kind"`
	ActionID string    `json:"action_id"`
	UserID   string    `json:"user_id"`
	Symbol   string    `json:"symbol,omitempty"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Notifier dispatches messages to the external notification channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// QueueNotifier publishes messages to RabbitMQ. Delivery to the end channel
// (webhook, email) happens asynchronously in the notifier worker, so a slow
// downstream never blocks action processing.
type QueueNotifier struct {
	publisher *config.Publisher
}

func NewQueueNotifier(publisher *config.Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	if err := n.publisher.Publish(QueueName, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
