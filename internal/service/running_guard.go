package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningJobsGuard

// runningJobsGuard keeps at most one run in flight per job name. Scheduled
// ticks, config-change runs and manual runs all pass through it.
type runningJobsGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks name as running. It returns false if a run of name is
// already in flight.
func (g *runningJobsGuard) TryLock(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, busy := g.running[name]; busy {
		return false
	}
	g.running[name] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases name. Must follow a successful TryLock.
func (g *runningJobsGuard) Unlock(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, name)
	g.wg.Done()
}

// WaitAll blocks until no run is in flight or ctx is cancelled.
func (g *runningJobsGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
