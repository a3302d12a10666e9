package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New[int]()
	if q.Push(1) {
		t.Errorf("push with no listeners should not wake anyone")
	}

	l := q.Join(ctx)

	var got []int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := range l.Iter() {
			got = append(got, v)
			if len(got) == 3 {
				return
			}
		}
	}()

	q.Push(2)
	q.Push(3, 4)
	wg.Wait()

	want := []int{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestQueueEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New[int]()
	l := q.Join(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := l.Next(); ok {
			t.Errorf("evicted listener should report not ok")
		}
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("listener did not notice eviction")
	}
}

func TestQueueBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New[string]()
	l := q.Join(ctx)

	q.Push("a", "b")
	q.Push("c")

	batch := l.Batch()
	if len(batch) != 3 {
		t.Errorf("expected all pending events, got %v", batch)
	}
}

func TestQueueLateJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New[int]()
	q.Push(1)

	l := q.Join(ctx)
	q.Push(2)

	if v, ok := l.Next(); !ok || v != 2 {
		t.Errorf("late joiner should only see later events, got %v/%v", v, ok)
	}
}
