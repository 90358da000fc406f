package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"keel/internal/dependency"
	"keel/internal/events"
	"keel/internal/resource"
	"keel/internal/state"
	"keel/internal/status"
	"keel/pkg/logging"
)

// finalization is a removed resource whose external state is being cleaned
// up.
type finalization struct {
	res      *resource.Resource
	attempts int
}

// Manager coordinates all reconciliation activities.
//
// It manages:
//   - The live resource store and the producer signal board
//   - Kind-specific reconcilers
//   - Work queue and worker pool
//   - Retry logic with exponential backoff
//   - Finalization of removed resources
//   - Periodic drift detection
type Manager struct {
	mu sync.RWMutex

	// applyMu serialises loads of the desired state
	applyMu sync.Mutex

	config ManagerConfig
	clock  clock.WithTickerAndDelayedExecution

	// reconcilers maps kinds to their reconcilers
	reconcilers map[resource.Kind]Reconciler

	store *state.Store
	board *dependency.Board
	plan  *dependency.Plan

	// queue is the work queue for reconciliation requests
	queue *delayedQueue

	// finalizing holds removed resources until their cleanup completes
	finalizing map[resource.ID]*finalization

	// parked holds resources declared again while their previous
	// incarnation is finalizing
	parked map[resource.ID]*resource.Resource

	recorder events.Recorder
	metrics  *Metrics

	// ctx is the manager's context
	ctx context.Context

	// cancelFunc cancels the manager's context
	cancelFunc context.CancelFunc

	// wg tracks running workers
	wg sync.WaitGroup

	// running indicates if the manager is active
	running bool
}

// NewManager creates a new reconciliation manager.
func NewManager(config ManagerConfig) *Manager {
	// Apply defaults
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.ReconcileTimeout <= 0 {
		config.ReconcileTimeout = 30 * time.Second
	}
	if config.DriftConcurrency <= 0 {
		config.DriftConcurrency = 4
	}
	if config.FinalizeAttempts <= 0 {
		config.FinalizeAttempts = 3
	}
	config.Backoff = config.Backoff.withDefaults()
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}
	if config.Store == nil {
		config.Store = state.NewStore(config.Clock)
	}
	if config.Recorder == nil {
		config.Recorder = events.Discard
	}
	if config.Metrics == nil {
		config.Metrics = NewMetrics(nil)
	}
	disabled := make(map[resource.Kind]bool, len(config.DisabledKinds))
	for k, v := range config.DisabledKinds {
		disabled[k] = v
	}
	config.DisabledKinds = disabled

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:      config,
		clock:       config.Clock,
		reconcilers: make(map[resource.Kind]Reconciler),
		store:       config.Store,
		board:       dependency.NewBoard(),
		queue:       NewDelayedQueue(config.Clock),
		finalizing:  make(map[resource.ID]*finalization),
		parked:      make(map[resource.ID]*resource.Resource),
		recorder:    config.Recorder,
		metrics:     config.Metrics,
		ctx:         ctx,
		cancelFunc:  cancel,
	}
}

// RegisterReconciler registers a reconciler for its kind.
func (m *Manager) RegisterReconciler(reconciler Reconciler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind := reconciler.Kind()
	if _, exists := m.reconcilers[kind]; exists {
		return fmt.Errorf("reconciler already registered for kind %s", kind)
	}
	m.reconcilers[kind] = reconciler
	logging.Debug("ReconcileManager", "Registered reconciler for %s", kind)
	return nil
}

// Start launches the worker pool and, when configured, the drift loop. Work
// enqueued by Apply before Start is processed once workers run.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("reconcile manager already running")
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return errors.New("reconcile manager was stopped")
	}
	m.running = true
	workers := m.config.Workers
	driftInterval := m.config.DriftInterval
	m.mu.Unlock()

	// Stop when the caller's context ends.
	go func() {
		select {
		case <-ctx.Done():
			m.cancelFunc()
		case <-m.ctx.Done():
		}
	}()

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	if driftInterval > 0 {
		m.wg.Add(1)
		go m.driftLoop(driftInterval)
	}

	logging.Info("ReconcileManager", "Started with %d workers", workers)
	return nil
}

// Stop stops the workers and the drift loop. In-flight results are
// discarded.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Stopping reconcile manager...")

	m.cancelFunc()
	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info("ReconcileManager", "Reconcile manager stopped")
	return nil
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Apply loads a new desired state.
//
// The dependency plan is resolved first; a cycle rejects the whole load and
// leaves the live state untouched. Otherwise the store is synchronised with
// the graph, removed resources start finalization, and every resource that
// needs attention is queued in dependency order.
func (m *Manager) Apply(g *resource.Graph) error {
	plan, cycles := dependency.Resolve(g)
	if len(cycles) > 0 {
		errs := make([]error, 0, len(cycles))
		for _, c := range cycles {
			errs = append(errs, c)
		}
		return utilerrors.NewAggregate(errs)
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	for id := range m.parked {
		if !g.Has(id) {
			delete(m.parked, id)
		}
	}
	var newlyParked []resource.ID
	desired := make([]*resource.Resource, 0, g.Len())
	for _, r := range g.List() {
		if _, ok := m.finalizing[r.ID]; ok {
			if _, already := m.parked[r.ID]; !already {
				newlyParked = append(newlyParked, r.ID)
			}
			m.parked[r.ID] = r.DeepCopy()
			continue
		}
		desired = append(desired, r)
	}
	changes := m.store.Sync(desired)
	m.plan = plan
	for _, r := range changes.Removed {
		r.Status.Finalizing = true
		m.finalizing[r.ID] = &finalization{res: r}
	}
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Applied %d resources: %d added, %d updated, %d removed",
		g.Len(), len(changes.Added), len(changes.Updated), len(changes.Removed))

	for _, id := range newlyParked {
		m.recorder.Record(id, events.ReasonParked, events.EventData{})
	}
	for _, r := range changes.Removed {
		m.board.Remove(r.ID)
		m.queue.Add(r.ID)
	}
	for _, id := range changes.Added {
		m.recorder.Record(id, events.ReasonAdmitted, events.EventData{Generation: 1})
	}
	for _, id := range changes.Updated {
		if r, ok := m.store.Get(id); ok {
			m.recorder.Record(id, events.ReasonSpecChanged, events.EventData{Generation: r.Generation})
		}
	}
	for _, id := range changes.Resynced {
		r, ok := m.store.Get(id)
		if !ok {
			continue
		}
		m.recorder.Record(id, events.ReasonDrift, events.EventData{
			Generation: r.Generation,
			Cause:      string(CauseSpecChange),
		})
		m.metrics.ObserveDrift(id.Kind, CauseSpecChange)
	}

	now := m.clock.Now()
	for _, id := range plan.Order() {
		r, ok := m.store.Get(id)
		if !ok {
			continue
		}
		m.board.Publish(id, signalOf(r))

		rec := m.reconcilerFor(id.Kind)
		_, aggregates := rec.(Aggregator)
		switch {
		case aggregates, !r.Ready() && !r.Status.Fatal, len(plan.Unsatisfied(id)) > 0:
			m.queue.Add(id)
		case r.Ready():
			if w, ok := rec.(Waker); ok && !m.queue.Scheduled(id) {
				if d, ok := w.NextWake(r, now); ok {
					m.queue.AddAfter(id, d)
				}
			}
		}
	}

	m.refreshGauges()
	return nil
}

// worker processes reconciliation requests from the queue.
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	logging.Debug("ReconcileManager", "Worker %d started", id)

	for {
		rid, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Worker %d shutting down", id)
			return
		}

		m.processRequest(rid)
		m.queue.Done(rid)
	}
}

func (m *Manager) reconcilerFor(kind resource.Kind) Reconciler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconcilers[kind]
}

// processRequest handles a single reconciliation request.
func (m *Manager) processRequest(id resource.ID) {
	m.mu.RLock()
	_, finalizing := m.finalizing[id]
	rec, ok := m.reconcilers[id.Kind]
	disabled := m.config.DisabledKinds[id.Kind]
	plan := m.plan
	timeout := m.config.ReconcileTimeout
	m.mu.RUnlock()

	if finalizing {
		m.finalize(id)
		return
	}
	if !ok {
		logging.Warn("ReconcileManager", "No reconciler for kind %s", id.Kind)
		return
	}
	if disabled {
		logging.Debug("ReconcileManager", "Skipping %s: reconciliation of %s is disabled", id, id.Kind)
		return
	}

	r, ok := m.store.Get(id)
	if !ok || r.Status.Fatal {
		return
	}

	// A resource backing off after a failure waits for its next attempt,
	// however it was queued.
	if next := r.Status.NextAttemptAt; !next.IsZero() {
		if remaining := next.Sub(m.clock.Now()); remaining > 0 {
			logging.Debug("ReconcileManager", "Deferring %s: next attempt in %v", id, remaining)
			m.queue.AddAfter(id, remaining)
			return
		}
	}

	_, aggregates := rec.(Aggregator)
	if !aggregates && plan != nil && !m.gate(plan, r) {
		return
	}

	if !aggregates && (r.Status.SyncState == resource.StateOutOfSync || r.Status.SyncState == resource.StateError) {
		if updated, ok := m.store.Update(id, func(cur *resource.Resource) bool {
			if cur.Generation != r.Generation {
				return false
			}
			m.store.SetState(cur, resource.StateSyncing)
			cur.Status.Blocked = false
			cur.Status.BlockedReason = ""
			return true
		}); ok {
			m.board.Publish(id, signalOf(updated))
		}
	}

	req := Request{
		Resource: r,
		Attempt:  r.Status.Attempts + 1,
		View:     m.view(),
	}

	logging.Debug("ReconcileManager", "Reconciling %s at generation %d (attempt %d)", id, r.Generation, req.Attempt)

	// Execute reconciliation with timeout to prevent hung reconcilers from blocking workers
	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	start := m.clock.Now()
	result := rec.Reconcile(ctx, req)
	timedOut := ctx.Err() == context.DeadlineExceeded
	cancel()

	if m.ctx.Err() != nil {
		logging.Debug("ReconcileManager", "Discarding result for %s: manager stopping", id)
		return
	}
	if timedOut && !IsFatal(result.Err) {
		result.Err = Transientf("reconcile timed out after %v", timeout)
	}

	kindResult := "success"
	if result.Err != nil {
		kindResult = outcome(Classify(result.Err))
	} else if result.State == resource.StateDegraded {
		kindResult = "degraded"
	}
	m.metrics.ObserveReconcile(id.Kind, kindResult, m.clock.Since(start), m.clock.Now())

	m.commit(req, result)
}

// gate checks the dependency preconditions of r. It returns true when r may
// be reconciled; otherwise r is marked blocked or waiting.
func (m *Manager) gate(plan *dependency.Plan, r *resource.Resource) bool {
	if reqs := plan.Unsatisfied(r.ID); len(reqs) > 0 {
		m.block(r, reqs[0].Reason)
		return false
	}

	signals := m.board.Snapshot()
	for _, p := range plan.Producers(r.ID) {
		sig, ok := signals.Get(p)
		if ok && sig.Fatal {
			m.block(r, fmt.Sprintf("producer %s failed permanently", p))
			return false
		}
		if !ok || !sig.Ready() {
			m.wait(r, p)
			return false
		}
	}
	return true
}

// block parks r until the topology changes. No retry timer is scheduled.
func (m *Manager) block(r *resource.Resource, reason string) {
	updated, ok := m.store.Update(r.ID, func(cur *resource.Resource) bool {
		if cur.Generation != r.Generation {
			return false
		}
		if cur.Status.Blocked && cur.Status.BlockedReason == reason {
			return false
		}
		m.store.SetState(cur, enforceQuorum(cur, resource.StateOutOfSync))
		cur.Status.Blocked = true
		cur.Status.BlockedReason = reason
		cur.Status.Message = "blocked: " + reason
		cur.Status.NextAttemptAt = time.Time{}
		return true
	})
	if !ok {
		return
	}

	logging.Info("ReconcileManager", "%s blocked: %s", r.ID, reason)
	m.recorder.Record(r.ID, events.ReasonBlocked, events.EventData{Generation: r.Generation, Error: reason})
	m.published(updated)
}

// wait marks r as waiting for producer. A resource that is already Ready
// keeps its state.
func (m *Manager) wait(r *resource.Resource, producer resource.ID) {
	if r.Ready() {
		return
	}
	msg := fmt.Sprintf("waiting for %s", producer)
	updated, ok := m.store.Update(r.ID, func(cur *resource.Resource) bool {
		if cur.Generation != r.Generation {
			return false
		}
		st := enforceQuorum(cur, resource.StateOutOfSync)
		if cur.Status.SyncState == st && !cur.Status.Blocked && cur.Status.Message == msg {
			return false
		}
		m.store.SetState(cur, st)
		cur.Status.Blocked = false
		cur.Status.BlockedReason = ""
		cur.Status.Message = msg
		return true
	})
	if ok {
		logging.Debug("ReconcileManager", "%s %s", r.ID, msg)
		m.published(updated)
	}
}

// commit applies a reconcile result to the store. The result is discarded
// when the resource's generation moved while the reconcile ran.
func (m *Manager) commit(req Request, res Result) {
	id := req.ID()
	gen := req.Resource.Generation
	now := m.clock.Now()
	err := Classify(res.Err)

	var (
		delay  time.Duration
		reason events.EventReason
		data   = events.EventData{Generation: gen}
	)

	updated, ok := m.store.Update(id, func(r *resource.Resource) bool {
		if r.Generation != gen {
			return false
		}
		prev := r.Status.SyncState
		if !res.Observed.IsZero() {
			r.Status.Observed = res.Observed.DeepCopy()
			r.Status.ObservedGeneration = gen
		}
		r.Status.Blocked = false
		r.Status.BlockedReason = ""
		r.Status.NextAttemptAt = time.Time{}

		switch {
		case err == nil:
			st := res.State
			if st == "" {
				st = resource.StateSynced
			}
			r.Status.Attempts = 0
			r.Status.ObservedGeneration = gen
			st = enforceQuorum(r, st)
			r.Status.Message = SanitizeErrorMessage(res.Message)
			m.store.SetState(r, st)
			switch {
			case st == resource.StateSynced:
				r.Status.LastSyncedTime = now
				if prev != resource.StateSynced {
					reason = events.ReasonSynced
				}
			case st == resource.StateDegraded && prev != resource.StateDegraded:
				reason = events.ReasonDegraded
				data.Error = r.Status.Message
			}
			delay = res.RequeueAfter

		case IsBlocked(err):
			var be *BlockedError
			errors.As(err, &be)
			m.store.SetState(r, enforceQuorum(r, resource.StateOutOfSync))
			r.Status.Blocked = true
			r.Status.BlockedReason = be.Reason
			r.Status.Message = SanitizeErrorMessage(err.Error())
			reason = events.ReasonBlocked
			data.Error = be.Reason

		case IsFatal(err):
			m.store.SetState(r, enforceQuorum(r, resource.StateError))
			r.Status.Fatal = true
			r.Status.Message = SanitizeErrorMessage(err.Error())
			reason = events.ReasonFailed
			data.Error = r.Status.Message

		default:
			r.Status.Attempts++
			r.Status.Message = SanitizeErrorMessage(err.Error())
			data.Attempt = r.Status.Attempts
			data.Error = r.Status.Message
			// A cluster below quorum stays Degraded and keeps retrying its
			// repair; the attempt ceiling does not apply to it.
			degraded := belowQuorum(r)
			m.store.SetState(r, enforceQuorum(r, resource.StateError))
			if r.Status.Attempts >= m.config.MaxAttempts && !degraded {
				r.Status.Fatal = true
				r.Status.Message = fmt.Sprintf("giving up after %d attempts: %s", r.Status.Attempts, r.Status.Message)
				reason = events.ReasonFailed
				data.Error = r.Status.Message
				break
			}
			delay = m.config.Backoff.Delay(r.Status.Attempts)
			r.Status.NextAttemptAt = now.Add(delay)
			reason = events.ReasonRetrying
			data.Delay = delay
		}
		return true
	})
	if !ok {
		logging.Debug("ReconcileManager", "Discarding result for %s: generation %d is no longer current", id, gen)
		return
	}

	switch {
	case err == nil:
		logging.Debug("ReconcileManager", "Reconciled %s: %s", id, updated.Status.SyncState)
	case IsFatal(err) || updated.Status.Fatal:
		logging.Error("ReconcileManager", err, "Reconcile of %s failed permanently", id)
	default:
		logging.Warn("ReconcileManager", "Reconcile of %s failed: %v", id, err)
	}

	if reason != "" {
		m.recorder.Record(id, reason, data)
	}
	if delay > 0 {
		logging.Debug("ReconcileManager", "Requeuing %s after %v", id, delay)
		m.queue.AddAfter(id, delay)
	}
	m.published(updated)
}

// enforceQuorum returns Degraded for a database cluster whose observation at
// its current generation is below quorum, and st otherwise.
func enforceQuorum(r *resource.Resource, st resource.SyncState) resource.SyncState {
	if belowQuorum(r) {
		return resource.StateDegraded
	}
	return st
}

func belowQuorum(r *resource.Resource) bool {
	db := r.Status.Observed.Database
	if db == nil || r.Spec.DatabaseCluster == nil || r.Status.ObservedGeneration != r.Generation {
		return false
	}
	return db.ObservedInstances < r.Spec.DatabaseCluster.QuorumThreshold()
}

// published publishes the signal of r and, when it changed, queues the
// resources that depend on it.
func (m *Manager) published(r *resource.Resource) {
	if m.board.Publish(r.ID, signalOf(r)) {
		m.propagate(r.ID)
	}
	m.refreshGauges()
}

// propagate queues the direct consumers of id and every aggregator whose
// closure contains it.
func (m *Manager) propagate(id resource.ID) {
	m.mu.RLock()
	plan := m.plan
	m.mu.RUnlock()
	if plan == nil {
		return
	}
	for _, c := range plan.Consumers(id) {
		m.queue.Add(c)
	}
	for _, d := range plan.Dependents(id) {
		if _, ok := m.reconcilerFor(d.Kind).(Aggregator); ok {
			m.queue.Add(d)
		}
	}
}

func signalOf(r *resource.Resource) dependency.Signal {
	return dependency.Signal{
		Generation:         r.Generation,
		ObservedGeneration: r.Status.ObservedGeneration,
		State:              r.Status.SyncState,
		Fatal:              r.Status.Fatal,
		Blocked:            r.Status.Blocked,
	}
}

func (m *Manager) refreshGauges() {
	m.metrics.SetResourceStates(m.store.List())
	m.metrics.SetQueueDepth(m.queue.Len())
}

// finalize runs the cleanup of a removed resource. Failures are retried with
// backoff up to the finalization budget; after that the resource is dropped
// anyway so that removal always completes.
func (m *Manager) finalize(id resource.ID) {
	m.mu.RLock()
	fin, ok := m.finalizing[id]
	rec := m.reconcilers[id.Kind]
	timeout := m.config.ReconcileTimeout
	var res *resource.Resource
	attempt := 0
	if ok {
		res = fin.res.DeepCopy()
		attempt = fin.attempts + 1
	}
	m.mu.RUnlock()
	if !ok {
		return
	}

	var err error
	if f, isFinalizer := rec.(Finalizer); isFinalizer {
		ctx, cancel := context.WithTimeout(m.ctx, timeout)
		err = f.Finalize(ctx, Request{Resource: res, Attempt: attempt, View: m.view()})
		cancel()
	}
	if m.ctx.Err() != nil {
		return
	}

	if err != nil {
		err = Classify(err)
		if attempt < m.config.FinalizeAttempts && !IsFatal(err) {
			m.mu.Lock()
			fin.attempts = attempt
			m.mu.Unlock()
			delay := m.config.Backoff.Delay(attempt)
			logging.Warn("ReconcileManager", "Finalizing %s failed (attempt %d), retrying in %v: %v", id, attempt, delay, err)
			m.queue.AddAfter(id, delay)
			return
		}
		logging.Error("ReconcileManager", err, "Abandoning finalization of %s after %d attempts", id, attempt)
		m.recorder.Record(id, events.ReasonFinalizationAbandoned, events.EventData{
			Generation: res.Generation,
			Attempt:    attempt,
			Error:      SanitizeErrorMessage(err.Error()),
		})
		m.metrics.ObserveFinalization(id.Kind, "abandoned")
	} else {
		logging.Info("ReconcileManager", "Finalized %s", id)
		m.recorder.Record(id, events.ReasonRemoved, events.EventData{Generation: res.Generation})
		m.metrics.ObserveFinalization(id.Kind, "success")
	}

	m.mu.Lock()
	delete(m.finalizing, id)
	next, isParked := m.parked[id]
	delete(m.parked, id)
	m.mu.Unlock()

	if isParked {
		m.admit(next)
	}
	m.refreshGauges()
}

// admit inserts a parked resource once its previous incarnation is gone.
func (m *Manager) admit(r *resource.Resource) {
	admitted, ok := m.store.Admit(r)
	if !ok {
		return
	}
	logging.Info("ReconcileManager", "Admitted %s after finalization", r.ID)
	m.recorder.Record(r.ID, events.ReasonAdmitted, events.EventData{Generation: admitted.Generation})
	m.board.Publish(r.ID, signalOf(admitted))
	m.queue.Add(r.ID)
	m.propagate(r.ID)
}

// liveView exposes the store and the current plan to reconcilers and the
// aggregator.
type liveView struct {
	store *state.Store
	plan  *dependency.Plan
}

func (v liveView) Get(id resource.ID) (*resource.Resource, bool) {
	return v.store.Get(id)
}

func (v liveView) Closure(id resource.ID) []resource.ID {
	if v.plan == nil {
		return nil
	}
	return v.plan.Closure(id)
}

func (m *Manager) view() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return liveView{store: m.store, plan: m.plan}
}

// Trigger queues id for a reconcile. A resource backing off after a failure
// is still reconciled no earlier than its next attempt time.
func (m *Manager) Trigger(id resource.ID) {
	logging.Debug("ReconcileManager", "Triggered reconcile of %s", id)
	m.queue.Add(id)
}

// Resources returns every live record plus resources being finalized, in
// deterministic order.
func (m *Manager) Resources() []*resource.Resource {
	out := m.store.List()
	m.mu.RLock()
	for _, f := range m.finalizing {
		r := f.res.DeepCopy()
		r.Status.Finalizing = true
		out = append(out, r)
	}
	m.mu.RUnlock()

	ids := make([]resource.ID, len(out))
	byID := make(map[resource.ID]*resource.Resource, len(out))
	for i, r := range out {
		ids[i] = r.ID
		byID[r.ID] = r
	}
	resource.SortIDs(ids)
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

// Get returns the live record for id.
func (m *Manager) Get(id resource.ID) (*resource.Resource, bool) {
	return m.store.Get(id)
}

// Status returns the aggregated status of an Application.
func (m *Manager) Status(app resource.ID) (status.AggregateStatus, error) {
	return status.Aggregate(m.view(), app)
}

// Plan returns the current dependency plan, nil before the first Apply.
func (m *Manager) Plan() *dependency.Plan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan
}

// Store returns the live store.
func (m *Manager) Store() *state.Store {
	return m.store
}

// Metrics returns the manager's metrics.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Settled reports whether the engine has nothing left to do without outside
// input: no queued or in-flight work, no pending finalization, and no
// resource that is syncing or waiting to retry.
func (m *Manager) Settled() bool {
	if m.queue.Len() > 0 || m.queue.InFlight() > 0 {
		return false
	}
	m.mu.RLock()
	pending := len(m.finalizing)
	m.mu.RUnlock()
	if pending > 0 {
		return false
	}
	for _, r := range m.store.List() {
		if _, ok := m.reconcilerFor(r.ID.Kind).(Aggregator); ok {
			continue
		}
		switch {
		case r.Status.SyncState == resource.StateSyncing:
			return false
		case r.Status.SyncState == resource.StateError && !r.Status.Fatal:
			return false
		}
	}
	return true
}

// Converged reports whether every resource is Synced at its current
// generation and nothing is being finalized.
func (m *Manager) Converged() bool {
	m.mu.RLock()
	pending := len(m.finalizing)
	m.mu.RUnlock()
	if pending > 0 {
		return false
	}
	for _, r := range m.store.List() {
		if !r.Ready() {
			return false
		}
	}
	return true
}

// WaitForSettled polls Settled every interval until it holds or ctx ends.
func (m *Manager) WaitForSettled(ctx context.Context, interval time.Duration) error {
	return wait.PollUntilContextCancel(ctx, interval, true, func(context.Context) (bool, error) {
		return m.Settled(), nil
	})
}

// GetQueueLength returns the current queue length.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}

// IsKindEnabled checks if reconciliation is enabled for a kind.
func (m *Manager) IsKindEnabled(kind resource.Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.config.DisabledKinds[kind]
}

// DisableKind disables reconciliation for a kind at runtime.
func (m *Manager) DisableKind(kind resource.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.DisabledKinds[kind] = true
	logging.Info("ReconcileManager", "Disabled reconciliation for %s", kind)
}

// EnableKind enables reconciliation for a kind at runtime and queues its
// resources.
func (m *Manager) EnableKind(kind resource.Kind) {
	m.mu.Lock()
	delete(m.config.DisabledKinds, kind)
	m.mu.Unlock()
	logging.Info("ReconcileManager", "Enabled reconciliation for %s", kind)

	for _, id := range m.store.IDs() {
		if id.Kind == kind {
			m.queue.Add(id)
		}
	}
}
