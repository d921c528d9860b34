// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"bkfetch/src/logger"
)

// Broker abstracts message publishing and consumption.
// This interface supports both in-memory and distributed (Redpanda/Kafka) implementations.
type Broker interface {
	// Publish sends a message to a topic with an optional key for partitioning.
	// For in-memory broker, key is carried through but not used for routing.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka.
	// For in-memory broker, groupID is ignored.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}

// New returns a RedpandaBroker when broker addresses are configured and an
// InMemoryBroker otherwise.
func New(brokers []string, log logger.Logger) (Broker, error) {
	if len(brokers) == 0 {
		return NewInMemoryBroker(), nil
	}
	return NewRedpandaBroker(brokers, WithLogger(log))
}

// PublishJSON encodes event as JSON and publishes it.
func PublishJSON(ctx context.Context, b Broker, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", topic, err)
	}
	return b.Publish(ctx, topic, key, value)
}
