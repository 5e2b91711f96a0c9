package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

func task(seq int) Task {
	return Task{Seq: seq, Job: model.FetchJob{ID: model.SnapshotID{Date: "20241111", Slot: "020000"}}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, task(7)) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Seq != 7 {
		t.Errorf("expected seq 7, got %d", got.Seq)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, task(1)) || !q.Enqueue(ctx, task(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, task(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, task(1)) {
		t.Error("expected enqueue to fail on a cancelled context")
	}
}

func TestInMemoryQueue_SharedConsumers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if !q.Enqueue(ctx, task(i)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	ch := q.Dequeue(ctx)
	seen := make([]bool, 100)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range ch {
				mu.Lock()
				seen[tk.Seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for i, ok := range seen {
		if !ok {
			t.Errorf("task %d never dequeued", i)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()
	q.Enqueue(ctx, task(1))

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, task(2)) {
		t.Error("expected enqueue to fail after close")
	}

	ch := q.Dequeue(ctx)
	select {
	case tk, ok := <-ch:
		if !ok || tk.Seq != 1 {
			t.Errorf("expected queued task to drain, got %v %v", tk, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining closed queue")
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel never closed")
	}
}
