package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/falcongrasp/internal/domain/model"
)

func msg(i int) model.TelemetryMessage {
	return model.TelemetryMessage{Topic: "FalconGrasp/camera/0", Payload: fmt.Sprint(i)}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, msg(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	m := <-q.Dequeue(ctx)
	if m.Payload != "1" {
		t.Errorf("expected payload 1, got %q", m.Payload)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2), WithName("offline"), WithoutMetrics())
	ctx := context.Background()

	if !q.Enqueue(ctx, msg(1)) || !q.Enqueue(ctx, msg(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, msg(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_TryDequeueKeepsOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		q.Enqueue(ctx, msg(i))
	}

	for i := 1; i <= 3; i++ {
		m, ok := q.TryDequeue()
		if !ok || m.Payload != fmt.Sprint(i) {
			t.Fatalf("expected payload %d, got %q (ok=%v)", i, m.Payload, ok)
		}
	}
	if _, ok := q.TryDequeue(); ok {
		t.Error("expected empty queue")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	producers, perProducer := 10, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, msg(p*perProducer+j)) {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}

	received := 0
	done := make(chan struct{})
	go func() {
		for range q.Dequeue(ctx) {
			received++
			if received == producers*perProducer {
				close(done)
				return
			}
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("consumed %d of %d messages", received, producers*perProducer)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, msg(1))
	q.Enqueue(ctx, msg(2))

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, msg(3)) {
		t.Error("expected enqueue to fail after closing")
	}

	// Queued messages drain before the channel closes.
	var got []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				if len(got) != 2 {
					t.Errorf("expected 2 drained messages, got %v", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got = append(got, m.Payload)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
