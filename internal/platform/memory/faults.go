package memory

import (
	"context"
	"sync"
	"time"
)

type fault struct {
	remaining int // negative means forever
	err       error
}

// Faults injects errors and latency into simulator operations. Operations are
// addressed by method name, e.g. "RegisterAccount".
type Faults struct {
	mu     sync.Mutex
	errs   map[string]*fault
	delays map[string]time.Duration
	calls  map[string]int
}

// FailNext makes the next n calls of op return err.
func (f *Faults) FailNext(op string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]*fault)
	}
	f.errs[op] = &fault{remaining: n, err: err}
}

// FailAlways makes every call of op return err until Clear.
func (f *Faults) FailAlways(op string, err error) {
	f.FailNext(op, -1, err)
}

// Delay makes every call of op wait d (or until its context ends).
func (f *Faults) Delay(op string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delays == nil {
		f.delays = make(map[string]time.Duration)
	}
	f.delays[op] = d
}

// Clear removes injected errors and delays for op.
func (f *Faults) Clear(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, op)
	delete(f.delays, op)
}

// Calls returns how many times op was invoked, including failed calls.
func (f *Faults) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faults) check(ctx context.Context, op string) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	delay := f.delays[op]
	var err error
	if ft, ok := f.errs[op]; ok && ft.remaining != 0 {
		err = ft.err
		if ft.remaining > 0 {
			ft.remaining--
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}
