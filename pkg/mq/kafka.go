// Package mq is the Kafka producer used for reminder and cycle-event topics.
package mq

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Producer is a synchronous Kafka producer shared across topics.
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start sarama producer: %w", err)
	}
	return &Producer{producer: producer}, nil
}

// Publish JSON-encodes the message and sends it keyed so all events of one
// group land on the same partition, preserving their order.
func (p *Producer) Publish(topic, key string, message any) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to kafka: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
