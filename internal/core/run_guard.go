package core

// run_guard.go implements the single-flight guard for pipeline runs.
//
// The guard is a one-slot semaphore. A run that cannot take the slot fails
// immediately with ErrRunInProgress rather than queueing, since a queued run
// would re-read a watermark the active run is about to advance.
// WaitForDrain blocks until the active run completes, for graceful shutdown.

import (
	"context"
	"sync"
	"time"
)

// RunGuard serializes pipeline runs within a process.
type RunGuard struct {
	slot chan struct{}

	mu      sync.RWMutex
	started time.Time
	runID   string
}

// NewRunGuard creates a guard with a single free slot.
func NewRunGuard() *RunGuard {
	return &RunGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the slot for runID or returns ErrRunInProgress.
// The caller MUST call Release when the run completes (use defer).
func (g *RunGuard) TryAcquire(runID string) error {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.started = time.Now()
		g.runID = runID
		g.mu.Unlock()
		return nil
	default:
		return ErrRunInProgress
	}
}

// Release frees the slot.
func (g *RunGuard) Release() {
	g.mu.Lock()
	g.started = time.Time{}
	g.runID = ""
	g.mu.Unlock()

	select {
	case <-g.slot:
	default:
		// Release without a matching acquire; nothing to free.
	}
}

// RunGuardStatus describes the active run, if any.
type RunGuardStatus struct {
	Active  bool
	RunID   string
	Started time.Time
}

// Status returns the current guard state.
func (g *RunGuard) Status() RunGuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return RunGuardStatus{
		Active:  g.runID != "",
		RunID:   g.runID,
		Started: g.started,
	}
}

// WaitForDrain blocks until no run holds the slot or ctx is done.
func (g *RunGuard) WaitForDrain(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		<-g.slot
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
