package gc

import (
	"context"

	"github.com/dnfcore/dnfcore/lock"
)

// Module describes one GC participant with a typed snapshot S (e.g. the
// repo cache module's snapshot of cached package checksums, or the sack's
// snapshot of yumdb entries). Register wraps it into the package's internal
// runner interface so the Orchestrator can hold heterogeneous modules in a
// single slice.
type Module[S any] struct {
	Name string

	// Locker is used by GC to coordinate with active operations (a repo
	// refresh or transaction commit in progress). TryLock returning false
	// means the module is busy; GC skips it and retries on the next cycle.
	Locker lock.Locker

	// ReadDB reads the module's current index state. Called while the lock
	// is held — must not re-acquire it.
	ReadDB func(ctx context.Context) (S, error)

	// Resolve analyses this module's typed snapshot, with every other
	// successfully-read module's snapshot available as map[string]any, and
	// returns the resource IDs this module should collect.
	Resolve func(snap S, others map[string]any) []string

	// Collect removes the given resource IDs. Called while the lock is
	// held — must not re-acquire it. Called even with an empty ids slice so
	// a module can piggyback routine housekeeping (e.g. stale temp
	// directory cleanup) on the GC cycle.
	Collect func(ctx context.Context, ids []string) error
}

// moduleRunner adapts a Module[S] to the package-private runner interface.
type moduleRunner[S any] struct {
	m Module[S]
}

func (r moduleRunner[S]) getName() string       { return r.m.Name }
func (r moduleRunner[S]) getLocker() lock.Locker { return r.m.Locker }

func (r moduleRunner[S]) readSnapshot(ctx context.Context) (any, error) {
	return r.m.ReadDB(ctx)
}

func (r moduleRunner[S]) resolveTargets(snap any, others map[string]any) []string {
	typed, ok := snap.(S)
	if !ok {
		return nil
	}
	return r.m.Resolve(typed, others)
}

func (r moduleRunner[S]) collect(ctx context.Context, ids []string) error {
	return r.m.Collect(ctx, ids)
}
