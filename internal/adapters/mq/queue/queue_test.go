package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Put(ctx, Job{RunID: "run-1", DriverID: "drv-1"}); err != nil {
		t.Fatalf("expected put to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue()
	if j.DriverID != "drv-1" || j.RunID != "run-1" {
		t.Errorf("unexpected job %+v", j)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_TryPutRespectsCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	for i := 0; i < 2; i++ {
		if !q.TryPut(Job{DriverID: fmt.Sprintf("drv-%d", i)}) {
			t.Fatalf("expected try put %d to succeed", i)
		}
	}
	if q.TryPut(Job{DriverID: "drv-overflow"}) {
		t.Error("expected try put to fail when full")
	}
}

func TestInMemoryQueue_PutBlocksUntilContextDone(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	if err := q.Put(ctx, Job{DriverID: "drv-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Put(tctx, Job{DriverID: "drv-2"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_CloseUnblocksProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	_ = q.Put(ctx, Job{DriverID: "drv-1"})

	errc := make(chan error, 1)
	go func() { errc <- q.Put(ctx, Job{DriverID: "drv-2"}) }()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked producer was not released by Close")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = q.Put(ctx, Job{DriverID: fmt.Sprintf("drv-%d", i)})
	}
	_ = q.Close()
	_ = q.Close()

	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Put(ctx, Job{DriverID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	if q.TryPut(Job{DriverID: "late"}) {
		t.Error("expected try put to fail after close")
	}

	count := 0
	for range q.Dequeue() {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 buffered jobs after close, got %d", count)
	}
}
