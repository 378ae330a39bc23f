// Package notify holds the delivery side of payment reminders. The scheduler
// hands reminders to a Notifier; in production that publishes to Kafka, where
// the consumer picks them up and pushes them through a Pusher. A real
// APNS/FCM client implements Pusher; the default one logs.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/internal/reminder"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

// Publisher is the producer surface the Kafka notifier needs.
type Publisher interface {
	Publish(topic string, key string, message any) error
}

// KafkaNotifier publishes reminders to the reminder topic, keyed by group so
// one group's reminders stay ordered.
type KafkaNotifier struct {
	producer Publisher
	topic    string
}

func NewKafkaNotifier(producer Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, r reminder.Reminder) error {
	return n.producer.Publish(n.topic, r.GroupID, r)
}

// LogNotifier is the degraded mode when no broker is configured: reminders
// are logged instead of queued.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, r reminder.Reminder) error {
	n.log.InfoContext(ctx, "payment reminder",
		zap.String("group_id", r.GroupID),
		zap.Int("cycle", r.CycleNumber),
		zap.String("user_id", r.UserID),
		zap.Int64("amount", r.Amount),
		zap.String("urgency", string(r.Urgency)),
		zap.Int("days_overdue", r.DaysOverdue))
	return nil
}

// Pusher delivers a reminder to the member's device. Transport internals are
// out of scope here; LogPusher stands in for a push-notification client.
type Pusher interface {
	Push(ctx context.Context, r reminder.Reminder) error
}

// LogPusher logs deliveries; the shape a real push client would fill.
type LogPusher struct {
	log *logger.Logger
}

func NewLogPusher(log *logger.Logger) *LogPusher {
	return &LogPusher{log: log}
}

func (p *LogPusher) Push(ctx context.Context, r reminder.Reminder) error {
	p.log.InfoContext(ctx, "reminder delivered",
		zap.String("group_id", r.GroupID),
		zap.String("user_id", r.UserID),
		zap.String("urgency", string(r.Urgency)))
	return nil
}
