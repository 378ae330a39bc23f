// Package consumer drains the Kafka topics the engine publishes to: reminder
// messages go out through a Pusher, cycle events fan out to WebSocket
// subscribers.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/internal/engine"
	"github.com/dapoalex/AjoPool/internal/notify"
	"github.com/dapoalex/AjoPool/internal/reminder"
	"github.com/dapoalex/AjoPool/internal/ws"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

// EventConsumer implements sarama.ConsumerGroupHandler for both topics.
type EventConsumer struct {
	reminderTopic string
	eventTopic    string
	pusher        notify.Pusher
	hub           *ws.Hub
	log           *logger.Logger
}

func NewEventConsumer(reminderTopic, eventTopic string, pusher notify.Pusher, hub *ws.Hub, log *logger.Logger) *EventConsumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventConsumer{
		reminderTopic: reminderTopic,
		eventTopic:    eventTopic,
		pusher:        pusher,
		hub:           hub,
		log:           log,
	}
}

func (c *EventConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *EventConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim loops over the claim's messages. Bad messages are marked and
// skipped; redelivering a poison message forever helps nobody.
func (c *EventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		switch message.Topic {
		case c.reminderTopic:
			c.handleReminder(session.Context(), message.Value)
		case c.eventTopic:
			c.handleEvent(message.Value)
		default:
			c.log.Warn("message on unexpected topic", zap.String("topic", message.Topic))
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *EventConsumer) handleReminder(ctx context.Context, value []byte) {
	var r reminder.Reminder
	if err := json.Unmarshal(value, &r); err != nil {
		c.log.Warn("failed to decode reminder message", zap.Error(err))
		return
	}
	if err := c.pusher.Push(ctx, r); err != nil {
		c.log.Error("failed to deliver reminder",
			zap.String("group_id", r.GroupID),
			zap.String("user_id", r.UserID),
			zap.Error(err))
	}
}

func (c *EventConsumer) handleEvent(value []byte) {
	var ev engine.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		c.log.Warn("failed to decode cycle event", zap.Error(err))
		return
	}
	if c.hub != nil {
		c.hub.BroadcastToGroup(ev.GroupID, ev)
	}
}

// StartConsumer joins the consumer group and keeps consuming until the
// context is cancelled. Consume returns on every rebalance, hence the loop.
func StartConsumer(ctx context.Context, brokers []string, groupID string, topics []string, handler sarama.ConsumerGroupHandler, log *logger.Logger) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			if err := client.Consume(ctx, topics, handler); err != nil {
				log.Error("consumer group error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return client, nil
}
