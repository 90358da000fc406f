package reconciler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"keel/internal/resource"
)

func testID(name string) resource.ID {
	return resource.NewID(resource.KindGateway, "edge", name)
}

func TestWorkQueue_AddAndGet(t *testing.T) {
	q := NewQueue()

	id := testID("public")
	q.Add(id)

	if q.Len() != 1 {
		t.Errorf("expected queue length 1, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if got != id {
		t.Errorf("got unexpected id: %v", got)
	}
	if q.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", q.InFlight())
	}

	q.Done(got)
	if q.InFlight() != 0 {
		t.Errorf("expected 0 in flight after Done, got %d", q.InFlight())
	}
}

func TestWorkQueue_Coalescing(t *testing.T) {
	q := NewQueue()

	q.Add(testID("public"))
	q.Add(testID("public"))
	q.Add(testID("internal"))

	if q.Len() != 2 {
		t.Errorf("expected queue length 2 after coalescing, got %d", q.Len())
	}
}

func TestWorkQueue_FIFO(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	want := []resource.ID{testID("c"), testID("a"), testID("b")}
	for _, id := range want {
		q.Add(id)
	}
	for i, w := range want {
		got, ok := q.Get(ctx)
		if !ok {
			t.Fatalf("expected item %d", i)
		}
		if got != w {
			t.Errorf("item %d: expected %v, got %v", i, w, got)
		}
		q.Done(got)
	}
}

func TestWorkQueue_DirtyRequeue(t *testing.T) {
	q := NewQueue()
	id := testID("public")
	q.Add(id)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}

	// Add the same id while processing: it must not be handed out twice.
	q.Add(id)
	if q.Len() != 0 {
		t.Errorf("expected queue length 0 while processing, got %d", q.Len())
	}

	q.Done(got)
	if q.Len() != 1 {
		t.Errorf("expected queue length 1 after done, got %d", q.Len())
	}

	got2, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get dirty item from queue")
	}
	if got2 != id {
		t.Errorf("expected %v, got %v", id, got2)
	}
	q.Done(got2)
}

func TestWorkQueue_GetRespectsContext(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, ok := q.Get(ctx); ok {
		t.Error("expected Get to fail on an empty queue once the context ends")
	}
}

func TestWorkQueue_Shutdown(t *testing.T) {
	q := NewQueue()

	done := make(chan bool)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	// Give the goroutine time to start waiting
	time.Sleep(50 * time.Millisecond)

	q.Shutdown()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to return false after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after shutdown")
	}
}

func TestWorkQueue_ConcurrentAccess(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	var wg sync.WaitGroup
	numProducers := 5
	numItemsPerProducer := 10

	for i := 0; i < numProducers; i++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for j := 0; j < numItemsPerProducer; j++ {
				q.Add(testID(fmt.Sprintf("gw-%d-%d", producerID, j)))
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[resource.ID]bool)
	for q.Len() > 0 {
		id, ok := q.Get(ctx)
		if !ok {
			t.Fatal("expected item")
		}
		if seen[id] {
			t.Errorf("id %v handed out twice", id)
		}
		seen[id] = true
		q.Done(id)
	}
	if len(seen) != numProducers*numItemsPerProducer {
		t.Errorf("expected %d distinct ids, got %d", numProducers*numItemsPerProducer, len(seen))
	}
}

func TestDelayedQueue_AddAfter(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	q := NewDelayedQueue(clk)
	defer q.Shutdown()

	id := testID("delayed")
	q.AddAfter(id, time.Minute)

	if q.Len() != 0 {
		t.Fatalf("expected nothing queued before the delay, got %d", q.Len())
	}
	if !q.Scheduled(id) {
		t.Error("expected a pending timer")
	}

	clk.Step(time.Minute)

	deadline := time.Now().Add(time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.Len() != 1 {
		t.Fatalf("expected id queued after the delay, got %d", q.Len())
	}
	if q.Scheduled(id) {
		t.Error("expected the timer to be cleared once fired")
	}
}

func TestDelayedQueue_AddAfterReplacesTimer(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	q := NewDelayedQueue(clk)
	defer q.Shutdown()

	id := testID("delayed")
	q.AddAfter(id, time.Minute)
	q.AddAfter(id, time.Hour)

	clk.Step(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	if q.Len() != 0 {
		t.Errorf("expected the replaced timer not to fire, got queue length %d", q.Len())
	}
	if !q.Scheduled(id) {
		t.Error("expected the later timer to stay pending")
	}
}

func TestDelayedQueue_NonPositiveDelayAddsImmediately(t *testing.T) {
	q := NewDelayedQueue(nil)
	defer q.Shutdown()

	q.AddAfter(testID("now"), 0)
	if q.Len() != 1 {
		t.Errorf("expected immediate add, got queue length %d", q.Len())
	}
}

func TestDelayedQueue_CancelPending(t *testing.T) {
	q := NewDelayedQueue(nil)

	q.AddAfter(testID("cancelled"), time.Hour)
	q.Shutdown()

	if q.Len() != 0 {
		t.Errorf("expected empty queue after shutdown, got %d", q.Len())
	}
}
