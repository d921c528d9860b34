package broker

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"
	key := "test-key"
	value := []byte("test message")

	// Subscribe before publishing
	msgChan, err := broker.Subscribe(ctx, topic, "test-group")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Publish message
	if err := broker.Publish(ctx, topic, key, value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Receive message
	select {
	case msg := <-msgChan:
		if msg.Topic != topic {
			t.Errorf("Expected topic %s, got %s", topic, msg.Topic)
		}
		if msg.Key != key {
			t.Errorf("Expected key %s, got %s", key, msg.Key)
		}
		if string(msg.Value) != string(value) {
			t.Errorf("Expected value %s, got %s", string(value), string(msg.Value))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"

	// Create two subscribers
	sub1, err := broker.Subscribe(ctx, topic, "group1")
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}

	sub2, err := broker.Subscribe(ctx, topic, "group2")
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	// Publish message
	value := []byte("broadcast message")
	if err := broker.Publish(ctx, topic, "key", value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Both subscribers should receive the message
	for i, sub := range []<-chan Message{sub1, sub2} {
		select {
		case msg := <-sub:
			if string(msg.Value) != string(value) {
				t.Errorf("Subscriber %d: expected value %s, got %s", i+1, string(value), string(msg.Value))
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for message", i+1)
		}
	}
}

func TestInMemoryBroker_ClosedBroker(t *testing.T) {
	broker := NewInMemoryBroker()
	broker.Close()

	ctx := context.Background()

	// Publishing to closed broker should fail
	err := broker.Publish(ctx, "test", "key", []byte("value"))
	if err == nil {
		t.Error("Expected error when publishing to closed broker")
	}

	// Subscribing to closed broker should fail
	_, err = broker.Subscribe(ctx, "test", "group")
	if err == nil {
		t.Error("Expected error when subscribing to closed broker")
	}
}

func TestInMemoryBroker_TopicIsolation(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	snapshots, _ := broker.Subscribe(ctx, "bkfetch.snapshots", "g")
	follow, _ := broker.Subscribe(ctx, "bkfetch.follow", "g")

	if err := broker.Publish(ctx, "bkfetch.follow", "k", []byte("f")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-follow:
		if msg.Offset != 0 {
			t.Errorf("Expected offset 0, got %d", msg.Offset)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for follow message")
	}

	select {
	case msg := <-snapshots:
		t.Errorf("Unexpected message on snapshots topic: %+v", msg)
	default:
	}
}

func TestInMemoryBroker_UnsubscribeOnCancel(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := broker.Subscribe(ctx, "topic", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("Expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("Channel not closed after cancel")
	}

	if err := broker.Publish(context.Background(), "topic", "k", []byte("v")); err != nil {
		t.Errorf("Publish after unsubscribe failed: %v", err)
	}
}

func TestInMemoryBroker_StalledSubscriberDoesNotBlock(t *testing.T) {
	broker := NewInMemoryBroker()
	ctx := context.Background()

	// Never read from stalled.
	stalled, err := broker.Subscribe(ctx, "topic", "slow")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		for i := 0; i < subscriberBuffer+5; i++ {
			if err := broker.Publish(ctx, "topic", "k", []byte("v")); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	closed := make(chan struct{})
	go func() {
		broker.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a stalled subscriber")
	}

	var received int
	var last int64
	for msg := range stalled {
		received++
		last = msg.Offset
	}
	if received != subscriberBuffer {
		t.Errorf("received %d messages, want the %d buffered", received, subscriberBuffer)
	}
	if last != int64(subscriberBuffer-1) {
		t.Errorf("last buffered offset = %d, want %d", last, subscriberBuffer-1)
	}
}

func TestInMemoryBroker_PublishCancelledContext(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := broker.Publish(ctx, "topic", "k", []byte("v")); err != context.Canceled {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}

func TestNew_DefaultsToInMemory(t *testing.T) {
	b, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*InMemoryBroker); !ok {
		t.Errorf("Expected *InMemoryBroker, got %T", b)
	}
}

func TestPublishJSON(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	sub, _ := broker.Subscribe(ctx, "events", "g")

	event := struct {
		RunID string `json:"run_id"`
	}{RunID: "abc"}
	if err := PublishJSON(ctx, broker, "events", "abc", event); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	msg := <-sub
	if string(msg.Value) != `{"run_id":"abc"}` || msg.Key != "abc" {
		t.Errorf("Unexpected message: key=%s value=%s", msg.Key, msg.Value)
	}
}

func TestNewRedpandaBroker_RequiresBrokers(t *testing.T) {
	if _, err := NewRedpandaBroker(nil); err == nil {
		t.Error("Expected error with no broker addresses")
	}
}
