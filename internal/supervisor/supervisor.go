package supervisor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ContainerRuntime is the subset of the Container Orchestrator Adapter
// (C2) the supervisor needs to enforce liveness and shutdown cleanup.
type ContainerRuntime interface {
	IsRunning(ctx context.Context, handle string) bool
	Stop(ctx context.Context, handle string) error
	Remove(ctx context.Context, handle string) error
	PruneUnusedImages(ctx context.Context, keepN int) error
}

// Config bounds capacity and reap timing (spec.md §4.3 defaults).
type Config struct {
	MaxWorkers       int
	HeartbeatTimeout time.Duration
	IdleTimeout      time.Duration
	ReapInterval     time.Duration
}

// DefaultConfig matches spec.md §4.3's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       10,
		HeartbeatTimeout: 5 * time.Minute,
		IdleTimeout:      10 * time.Minute,
		ReapInterval:     60 * time.Second,
	}
}

// Stats is a point-in-time snapshot of supervised workers.
type Stats struct {
	Total        int
	NonExcluded  int
	ByState      map[State]int
	AtCapacity   bool
}

// Supervisor owns the WorkerRecord map exclusively; every mutation
// happens through its methods under a single mutex (spec.md §5
// "Lifecycle Supervisor owns the WorkerRecord map exclusively").
type Supervisor struct {
	mu      sync.Mutex
	cfg     Config
	workers map[string]*WorkerRecord
	runtime ContainerRuntime

	onRegistered        func(name string)
	onReaped            func(name, reason string)
	onCapacityPressure  func(n, max int)

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a supervisor bound to a container runtime adapter.
func New(cfg Config, runtime ContainerRuntime) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		workers: make(map[string]*WorkerRecord),
		runtime: runtime,
	}
}

// OnRegistered sets the callback invoked after a successful registration.
func (s *Supervisor) OnRegistered(cb func(name string)) { s.onRegistered = cb }

// OnReaped sets the callback invoked whenever a worker is reaped, with
// the pass name as reason ("stale", "idle", "capacity", "liveness", "shutdown").
func (s *Supervisor) OnReaped(cb func(name, reason string)) { s.onReaped = cb }

// OnCapacityPressure sets the callback invoked when registration is
// rejected for being at capacity.
func (s *Supervisor) OnCapacityPressure(cb func(n, max int)) { s.onCapacityPressure = cb }

// nonExcludedCountLocked counts workers counted against capacity.
// Caller must hold s.mu.
func (s *Supervisor) nonExcludedCountLocked() int {
	n := 0
	for _, w := range s.workers {
		if !w.ExcludeFromCount {
			n++
		}
	}
	return n
}

// Register adds a new worker record. Registration of a non-excluded
// worker fails when at capacity (spec.md §4.3's capacity rule).
func (s *Supervisor) Register(name, containerHandle, profileName string, persistent, excludeFromCount bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workers[name]; exists {
		return false
	}

	if !excludeFromCount && s.nonExcludedCountLocked() >= s.cfg.MaxWorkers {
		if s.onCapacityPressure != nil {
			s.onCapacityPressure(s.nonExcludedCountLocked(), s.cfg.MaxWorkers)
		}
		return false
	}

	now := time.Now().UTC()
	s.workers[name] = &WorkerRecord{
		Name:             name,
		ContainerHandle:  containerHandle,
		ProfileName:      profileName,
		Persistent:       persistent,
		ExcludeFromCount: excludeFromCount,
		State:            StateCreating,
		CreatedAt:        now,
		LastHeartbeatAt:  now,
	}

	if s.onRegistered != nil {
		s.onRegistered(name)
	}
	return true
}

// transitionLocked applies a state change, rejecting illegal ones
// silently (callers that care check the returned bool). Caller must
// hold s.mu.
func (s *Supervisor) transitionLocked(w *WorkerRecord, to State) bool {
	if !canTransition(w.State, to) {
		return false
	}
	w.State = to
	return true
}

// Unregister removes a worker from tracking outright, bypassing the
// state machine — used by explicit shutdown and by reap passes after
// the container has already been stopped/removed.
func (s *Supervisor) Unregister(name, reason string) {
	s.mu.Lock()
	_, ok := s.workers[name]
	delete(s.workers, name)
	s.mu.Unlock()

	if ok && s.onReaped != nil {
		s.onReaped(name, reason)
	}
}

// Heartbeat records liveness. Unknown names are silently ignored
// (spec.md §4.3: "workers may have been reaped concurrently").
func (s *Supervisor) Heartbeat(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[name]; ok {
		w.LastHeartbeatAt = time.Now().UTC()
		if w.State == StateStarting {
			s.transitionLocked(w, StateRunning)
		}
	}
}

// MarkTaskStarted transitions running/idle → working.
func (s *Supervisor) MarkTaskStarted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return
	}
	s.transitionLocked(w, StateWorking)
	w.LastTaskAt = time.Now().UTC()
}

// MarkTaskCompleted transitions working → idle.
func (s *Supervisor) MarkTaskCompleted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return
	}
	s.transitionLocked(w, StateIdle)
	w.LastTaskAt = time.Now().UTC()
}

// MarkError transitions any non-terminal state to error and
// increments the error count.
func (s *Supervisor) MarkError(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return
	}
	if s.transitionLocked(w, StateError) {
		w.ErrorCount++
	}
}

// MarkStarting transitions creating → starting, used immediately
// after the container handle is created but before it's confirmed running.
func (s *Supervisor) MarkStarting(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[name]; ok {
		s.transitionLocked(w, StateStarting)
	}
}

// Stats returns a snapshot of current worker population.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{ByState: make(map[State]int)}
	for _, w := range s.workers {
		st.Total++
		if !w.ExcludeFromCount {
			st.NonExcluded++
		}
		st.ByState[w.State]++
	}
	st.AtCapacity = st.NonExcluded >= s.cfg.MaxWorkers
	return st
}

// Workers returns a sorted, copied snapshot of every supervised worker,
// for callers (the CLI's `stats` table) that need per-worker detail
// rather than Stats' aggregate counts.
func (s *Supervisor) Workers() []WorkerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]WorkerRecord, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StartMonitoring launches the reap loop on cfg.ReapInterval. Safe to
// call once; a second call is a no-op.
func (s *Supervisor) StartMonitoring(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.monitorLoop(ctx)
}

// StopMonitoring halts the reap loop and reaps every non-persistent
// worker, then prunes unused images (spec.md §4.3 shutdown semantics).
func (s *Supervisor) StopMonitoring(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	s.reapAllNonPersistent(ctx, "shutdown")
	if s.runtime != nil {
		if err := s.runtime.PruneUnusedImages(ctx, 10); err != nil {
			slog.Warn("prune on shutdown failed", "component", "supervisor", "error", err)
		}
	}
}

func (s *Supervisor) monitorLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runReapPasses(ctx)
		}
	}
}

// runReapPasses evaluates the four reap passes in spec.md §4.3's
// order: stale, idle, capacity, liveness. The supervisor never
// panics out of this loop; container errors are logged and the pass
// continues (spec.md: "the supervisor never throws from its monitor
// loop; it logs and continues").
func (s *Supervisor) runReapPasses(ctx context.Context) {
	now := time.Now().UTC()
	s.reapStale(ctx, now)
	s.reapIdle(ctx, now)
	s.reapCapacity(ctx, now)
	s.reapLiveness(ctx)
}

func (s *Supervisor) reapStale(ctx context.Context, now time.Time) {
	for _, name := range s.candidatesLocked(func(w *WorkerRecord) bool {
		return !w.Persistent && now.Sub(w.LastHeartbeatAt) > s.cfg.HeartbeatTimeout
	}) {
		s.reapOne(ctx, name, "stale")
	}
}

func (s *Supervisor) reapIdle(ctx context.Context, now time.Time) {
	for _, name := range s.candidatesLocked(func(w *WorkerRecord) bool {
		return !w.Persistent && w.State == StateIdle && now.Sub(w.lastActivity()) > s.cfg.IdleTimeout
	}) {
		s.reapOne(ctx, name, "idle")
	}
}

// reapCapacity reaps oldest-activity idle non-persistent workers
// until the non-excluded count is below the configured maximum.
func (s *Supervisor) reapCapacity(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.nonExcludedCountLocked() < s.cfg.MaxWorkers {
		s.mu.Unlock()
		return
	}

	var idle []*WorkerRecord
	for _, w := range s.workers {
		if !w.Persistent && w.State == StateIdle {
			idle = append(idle, w)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].lastActivity().Before(idle[j].lastActivity()) })
	s.mu.Unlock()

	for _, w := range idle {
		s.mu.Lock()
		stillOver := s.nonExcludedCountLocked() >= s.cfg.MaxWorkers
		s.mu.Unlock()
		if !stillOver {
			return
		}
		s.reapOne(ctx, w.Name, "capacity")
	}
}

// reapLiveness observes containers in an active state that are no
// longer running and transitions them to error.
func (s *Supervisor) reapLiveness(ctx context.Context) {
	if s.runtime == nil {
		return
	}
	for _, name := range s.candidatesLocked(func(w *WorkerRecord) bool {
		switch w.State {
		case StateRunning, StateWorking, StateIdle:
			return !s.runtime.IsRunning(ctx, w.ContainerHandle)
		}
		return false
	}) {
		s.MarkError(name)
		if s.onReaped != nil {
			s.onReaped(name, "liveness")
		}
	}
}

// candidatesLocked snapshots worker names matching pred under the
// supervisor mutex, releasing it before returning so reapOne can
// re-acquire it safely.
func (s *Supervisor) candidatesLocked(pred func(*WorkerRecord) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name, w := range s.workers {
		if pred(w) {
			out = append(out, name)
		}
	}
	return out
}

// reapOne drives one worker through stopping → stopped, stops/removes
// its container, and unregisters it. Container errors transition the
// record to error but never abort the pass (spec.md §4.3 failure
// semantics).
func (s *Supervisor) reapOne(ctx context.Context, name, reason string) {
	s.mu.Lock()
	w, ok := s.workers[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(w, StateStopping)
	handle := w.ContainerHandle
	s.mu.Unlock()

	if s.runtime != nil {
		if err := s.runtime.Stop(ctx, handle); err != nil {
			slog.Warn("stop failed", "component", "supervisor", "worker", name, "error", err)
			s.MarkError(name)
		}
		if err := s.runtime.Remove(ctx, handle); err != nil {
			slog.Warn("remove failed", "component", "supervisor", "worker", name, "error", err)
			s.MarkError(name)
		}
	}

	s.mu.Lock()
	if w, ok := s.workers[name]; ok {
		s.transitionLocked(w, StateStopped)
	}
	s.mu.Unlock()

	s.Unregister(name, reason)
}

func (s *Supervisor) reapAllNonPersistent(ctx context.Context, reason string) {
	for _, name := range s.candidatesLocked(func(w *WorkerRecord) bool { return !w.Persistent }) {
		s.reapOne(ctx, name, reason)
	}
}
