package server

import (
	"context"
	"testing"
	"time"
)

func TestRealtimeDispatcherDeliversToAllSubscribers(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()

	firstStream, firstCleanup := dispatcher.Subscribe(context.Background())
	defer firstCleanup()
	secondStream, secondCleanup := dispatcher.Subscribe(context.Background())
	defer secondCleanup()

	if got := dispatcher.SubscriberCount(); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}

	message := RealtimeMessage{EventType: RealtimeEventPostChanged, PostID: "post-1", Timestamp: time.Unix(1700000000, 0)}
	dispatcher.Publish(message)

	for _, stream := range []<-chan RealtimeMessage{firstStream, secondStream} {
		select {
		case received := <-stream:
			if received.PostID != "post-1" || received.EventType != RealtimeEventPostChanged {
				t.Fatalf("unexpected message %+v", received)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery")
		}
	}
}

func TestRealtimeDispatcherDropsWhenBufferFull(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	for i := 0; i < dispatcher.bufferSize+5; i++ {
		dispatcher.Publish(RealtimeMessage{EventType: RealtimeEventPostChanged, PostID: "post"})
	}

	received := 0
	for {
		select {
		case <-stream:
			received++
		default:
			if received != dispatcher.bufferSize {
				t.Fatalf("expected %d buffered messages, got %d", dispatcher.bufferSize, received)
			}
			return
		}
	}
}

func TestRealtimeDispatcherIgnoresEmptyEventType(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	dispatcher.Publish(RealtimeMessage{PostID: "post-1"})

	select {
	case message := <-stream:
		t.Fatalf("unexpected delivery %+v", message)
	default:
	}
}

func TestRealtimeDispatcherRemovesSubscriberOnContextCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	_, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	cancel()

	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber was not removed after context cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
