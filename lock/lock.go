package lock

import "context"

// Locker provides mutual exclusion with context support.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
}

// WithLock acquires l, runs fn, and releases l once acquired, even if fn
// panics. Acquisition failure (including a cancelled context) short circuits
// before fn runs and leaves nothing to release.
func WithLock(ctx context.Context, l Locker, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return fn()
}

// TryWithLock attempts a non-blocking acquisition of l. ok is false if the
// lock was busy; fn did not run in that case.
func TryWithLock(ctx context.Context, l Locker, fn func() error) (ok bool, err error) {
	locked, err := l.TryLock(ctx)
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return true, fn()
}

