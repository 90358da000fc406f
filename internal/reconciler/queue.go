package reconciler

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"keel/internal/resource"
)

// workQueue implements ReconcileQueue with coalescing and per-identity
// serialisation.
type workQueue struct {
	mu sync.Mutex

	// queue holds pending ids in FIFO order
	queue []resource.ID

	// pending mirrors queue for O(1) membership checks
	pending map[resource.ID]bool

	// processing tracks ids currently being processed
	processing map[resource.ID]bool

	// dirty tracks ids enqueued while being processed
	dirty map[resource.ID]bool

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	return newWorkQueue()
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		pending:    make(map[resource.ID]bool),
		processing: make(map[resource.ID]bool),
		dirty:      make(map[resource.ID]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues id unless it is already pending.
func (q *workQueue) Add(id resource.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	// Being processed: run again once the current pass is done.
	if q.processing[id] {
		q.dirty[id] = true
		return
	}

	if q.pending[id] {
		return
	}

	q.queue = append(q.queue, id)
	q.pending[id] = true
	q.cond.Signal()
}

// Get retrieves the next id, blocking if necessary.
func (q *workQueue) Get(ctx context.Context) (resource.ID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return resource.ID{}, false
		default:
		}

		// Wake the Wait below when ctx ends. Closing done lets the goroutine
		// exit on a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return resource.ID{}, false
		default:
		}
	}

	if q.shuttingDown && len(q.queue) == 0 {
		return resource.ID{}, false
	}

	id := q.queue[0]
	q.queue = q.queue[1:]
	delete(q.pending, id)
	q.processing[id] = true

	return id, true
}

// Done marks id as processed and re-queues it if it was enqueued meanwhile.
func (q *workQueue) Done(id resource.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, id)

	if q.dirty[id] {
		delete(q.dirty, id)
		if !q.pending[id] && !q.shuttingDown {
			q.queue = append(q.queue, id)
			q.pending[id] = true
			q.cond.Signal()
		}
	}
}

// Len returns the queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// InFlight returns the number of ids being processed.
func (q *workQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.processing)
}

// Shutdown stops the queue.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedQueue wraps a queue with delayed requeue support.
type delayedQueue struct {
	queue      ReconcileQueue
	clock      clock.WithDelayedExecution
	mu         sync.Mutex
	delayedMap map[resource.ID]clock.Timer
	stopCh     chan struct{}
}

// NewDelayedQueue creates a queue that supports delayed requeuing. A nil
// clock uses the real clock.
func NewDelayedQueue(clk clock.WithDelayedExecution) *delayedQueue {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &delayedQueue{
		queue:      NewQueue(),
		clock:      clk,
		delayedMap: make(map[resource.ID]clock.Timer),
		stopCh:     make(chan struct{}),
	}
}

// Add adds an id immediately.
func (d *delayedQueue) Add(id resource.ID) {
	d.queue.Add(id)
}

// AddAfter adds id after delay, replacing any timer already pending for id.
func (d *delayedQueue) AddAfter(id resource.ID, delay time.Duration) {
	if delay <= 0 {
		d.Add(id)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.delayedMap[id]; ok {
		timer.Stop()
	}

	var timer clock.Timer
	timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.delayedMap[id] == timer {
			delete(d.delayedMap, id)
		}
		d.mu.Unlock()

		select {
		case <-d.stopCh:
			return
		default:
			d.queue.Add(id)
		}
	})
	d.delayedMap[id] = timer
}

// Scheduled reports whether a delayed add is pending for id.
func (d *delayedQueue) Scheduled(id resource.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.delayedMap[id]
	return ok
}

// Get retrieves the next id.
func (d *delayedQueue) Get(ctx context.Context) (resource.ID, bool) {
	return d.queue.Get(ctx)
}

// Done marks an id as completed.
func (d *delayedQueue) Done(id resource.ID) {
	d.queue.Done(id)
}

// Len returns the queue length.
func (d *delayedQueue) Len() int {
	return d.queue.Len()
}

// InFlight returns the number of ids being processed.
func (d *delayedQueue) InFlight() int {
	return d.queue.InFlight()
}

// Shutdown stops the queue and cancels pending timers.
func (d *delayedQueue) Shutdown() {
	close(d.stopCh)

	d.mu.Lock()
	for _, timer := range d.delayedMap {
		timer.Stop()
	}
	d.delayedMap = make(map[resource.ID]clock.Timer)
	d.mu.Unlock()

	d.queue.Shutdown()
}
