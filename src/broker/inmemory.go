package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

const subscriberBuffer = 100

// InMemoryBroker fans messages out to every subscriber of a topic within
// the process. It is the default when no Redpanda brokers are configured.
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Message
	closed      bool

	offsetMu sync.Mutex
	offsets  map[string]int64
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string][]chan Message),
		offsets:     make(map[string]int64),
	}
}

// Publish delivers the message to every current subscriber of topic.
// Publishing to a topic nobody listens on succeeds and drops the message,
// and so does a subscriber whose buffer is full: Publish never waits on a
// slow reader.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Channels are only closed under the write lock, so sending under the
	// read lock never hits a closed channel. Sends must not block here or
	// Close and Subscribe would wait behind a stalled reader.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    b.nextOffset(topic),
		Timestamp: time.Now().UnixMilli(),
	}

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *InMemoryBroker) nextOffset(topic string) int64 {
	b.offsetMu.Lock()
	defer b.offsetMu.Unlock()
	offset := b.offsets[topic]
	b.offsets[topic]++
	return offset
}

// Subscribe registers a buffered channel for topic. The channel is closed
// when ctx is done or the broker is closed.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan Message, subscriberBuffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, ch)
	}()

	return ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, c := range subs {
		if c == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscriber channel. Further calls are no-ops.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
	return nil
}
