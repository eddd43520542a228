package lock

import (
	"context"
	"sync"

	"github.com/dnfcore/dnfcore/errkind"
)

// ManagerLocker adapts one (Type, Mode, owner) triple on a Manager to the
// Locker interface, so C5/C7 callers that only know about Locker (e.g.
// repo.Repository) can be handed a lock backed by the shared process-wide
// table instead of an ad hoc mutex. Re-entrant Lock calls from the same
// ManagerLocker stack via the Manager's own refcounting.
type ManagerLocker struct {
	mgr   *Manager
	typ   Type
	mode  Mode
	owner string

	mu  sync.Mutex
	ids []ID // one per outstanding Lock call, LIFO release order
}

// ForManager returns a Locker bound to one lock slot in m.
func ForManager(m *Manager, typ Type, mode Mode, owner string) *ManagerLocker {
	return &ManagerLocker{mgr: m, typ: typ, mode: mode, owner: owner}
}

func (l *ManagerLocker) Lock(ctx context.Context) error {
	id, err := l.mgr.Take(ctx, l.typ, l.mode, l.owner)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
	return nil
}

// TryLock behaves identically to Lock: Manager.Take already fails
// immediately rather than blocking when the (type, mode) pair is held by a
// different owner (spec.md §4.1, "fails immediately").
func (l *ManagerLocker) TryLock(ctx context.Context) (bool, error) {
	if err := l.Lock(ctx); err != nil {
		if errkind.Is(err, errkind.LockBusy) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *ManagerLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if len(l.ids) == 0 {
		l.mu.Unlock()
		return nil
	}
	id := l.ids[len(l.ids)-1]
	l.ids = l.ids[:len(l.ids)-1]
	l.mu.Unlock()
	return l.mgr.Release(ctx, l.typ, l.mode, id)
}
