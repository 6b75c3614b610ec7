package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	mu      sync.Mutex
	running map[string]bool
	stopped []string
	removed []string
	pruned  int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{running: make(map[string]bool)}
}

func (f *fakeRuntime) IsRunning(ctx context.Context, handle string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[handle]
}

func (f *fakeRuntime) Stop(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, handle)
	f.running[handle] = false
	return nil
}

func (f *fakeRuntime) Remove(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, handle)
	return nil
}

func (f *fakeRuntime) PruneUnusedImages(ctx context.Context, keepN int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	return nil
}

func TestSupervisor_Register_RejectsAtCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 1
	s := New(cfg, newFakeRuntime())

	assert.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	assert.False(t, s.Register("w2", "h2", "data_analyst", false, false))
}

func TestSupervisor_Register_ExcludedBypassesCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 1
	s := New(cfg, newFakeRuntime())

	assert.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	assert.True(t, s.Register("persistent-w", "h2", "data_analyst", true, true))
}

func TestSupervisor_StateMachine_HappyPath(t *testing.T) {
	s := New(DefaultConfig(), newFakeRuntime())
	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))

	s.MarkStarting("w1")
	s.Heartbeat("w1")
	s.MarkTaskStarted("w1")
	s.MarkTaskCompleted("w1")

	stats := s.Stats()
	assert.Equal(t, 1, stats.ByState[StateIdle])
}

func TestSupervisor_MarkError_ReachableFromAnyState(t *testing.T) {
	s := New(DefaultConfig(), newFakeRuntime())
	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	s.MarkError("w1")

	stats := s.Stats()
	assert.Equal(t, 1, stats.ByState[StateError])
}

func TestSupervisor_UnknownNameOperationsAreIgnored(t *testing.T) {
	s := New(DefaultConfig(), newFakeRuntime())
	assert.NotPanics(t, func() {
		s.Heartbeat("ghost")
		s.MarkTaskStarted("ghost")
		s.MarkTaskCompleted("ghost")
		s.MarkError("ghost")
	})
}

func TestSupervisor_ReapStale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatTimeout = 10 * time.Millisecond
	rt := newFakeRuntime()
	s := New(cfg, rt)

	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	rt.running["h1"] = true

	time.Sleep(20 * time.Millisecond)
	s.reapStale(context.Background(), time.Now().UTC())

	assert.Equal(t, 0, s.Stats().Total)
	assert.Contains(t, rt.stopped, "h1")
}

func TestSupervisor_PersistentWorkerExemptFromReap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatTimeout = 10 * time.Millisecond
	cfg.IdleTimeout = 10 * time.Millisecond
	s := New(cfg, newFakeRuntime())

	require.True(t, s.Register("persistent-w", "h1", "data_analyst", true, true))
	time.Sleep(20 * time.Millisecond)

	now := time.Now().UTC()
	s.reapStale(context.Background(), now)
	s.reapIdle(context.Background(), now)

	assert.Equal(t, 1, s.Stats().Total)
}

func TestSupervisor_ReapIdle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	s := New(cfg, newFakeRuntime())

	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	s.MarkStarting("w1")
	s.Heartbeat("w1")
	s.MarkTaskStarted("w1")
	s.MarkTaskCompleted("w1")

	time.Sleep(20 * time.Millisecond)
	s.reapIdle(context.Background(), time.Now().UTC())

	assert.Equal(t, 0, s.Stats().Total)
}

func TestSupervisor_ReapCapacity_OldestActivityFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 2
	rt := newFakeRuntime()
	s := New(cfg, rt)

	require.True(t, s.Register("old", "h-old", "data_analyst", false, false))
	s.MarkStarting("old")
	s.Heartbeat("old")
	s.MarkTaskStarted("old")
	s.MarkTaskCompleted("old")

	// Insert a second, more recently active idle worker directly so its
	// state and timestamps are controlled. Two workers at a maximum of 2
	// is at capacity; the pass reaps oldest-first until the count is below
	// the maximum, so only "old" goes.
	s.mu.Lock()
	s.workers["new"] = &WorkerRecord{
		Name:            "new",
		ContainerHandle: "h-new",
		State:           StateIdle,
		CreatedAt:       time.Now().UTC(),
		LastTaskAt:      time.Now().UTC(),
	}
	s.mu.Unlock()

	s.reapCapacity(context.Background(), time.Now().UTC())

	stats := s.Stats()
	assert.Equal(t, 1, stats.Total)
	_, stillThere := s.workers["new"]
	assert.True(t, stillThere)
}

func TestSupervisor_ReapLiveness_ContainerNotRunning(t *testing.T) {
	rt := newFakeRuntime()
	s := New(DefaultConfig(), rt)

	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	s.MarkStarting("w1")
	s.Heartbeat("w1")
	rt.running["h1"] = false

	s.reapLiveness(context.Background())

	stats := s.Stats()
	assert.Equal(t, 1, stats.ByState[StateError])
}

func TestSupervisor_StopMonitoring_ReapsAndPrunes(t *testing.T) {
	rt := newFakeRuntime()
	s := New(DefaultConfig(), rt)
	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))

	ctx := context.Background()
	s.StartMonitoring(ctx)
	s.StopMonitoring(ctx)

	assert.Equal(t, 0, s.Stats().Total)
	assert.Equal(t, 1, rt.pruned)
}

func TestSupervisor_CallbacksFire(t *testing.T) {
	s := New(DefaultConfig(), newFakeRuntime())

	var registered string
	var reapedName, reapedReason string
	s.OnRegistered(func(name string) { registered = name })
	s.OnReaped(func(name, reason string) { reapedName, reapedReason = name, reason })

	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	assert.Equal(t, "w1", registered)

	s.Unregister("w1", "manual")
	assert.Equal(t, "w1", reapedName)
	assert.Equal(t, "manual", reapedReason)
}

func TestSupervisor_CapacityPressureCallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 1
	s := New(cfg, newFakeRuntime())

	var pressured bool
	s.OnCapacityPressure(func(n, max int) { pressured = true })

	require.True(t, s.Register("w1", "h1", "data_analyst", false, false))
	assert.False(t, s.Register("w2", "h2", "data_analyst", false, false))
	assert.True(t, pressured)
}

func TestSupervisor_Workers_SortedSnapshot(t *testing.T) {
	s := New(DefaultConfig(), newFakeRuntime())
	require.True(t, s.Register("zeta", "h1", "data_analyst", false, false))
	require.True(t, s.Register("alpha", "h2", "code_writer", false, false))

	workers := s.Workers()
	require.Len(t, workers, 2)
	assert.Equal(t, "alpha", workers[0].Name)
	assert.Equal(t, "zeta", workers[1].Name)
	assert.Equal(t, "code_writer", workers[0].ProfileName)
}
