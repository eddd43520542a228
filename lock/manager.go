package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/lock/flock"
	"github.com/dnfcore/dnfcore/utils"
	"github.com/projecteru2/core/log"
)

// Type names one of the four lock scopes from spec.md §3.
type Type string

const (
	RPMDB    Type = "rpmdb"
	Repo     Type = "repo"
	Metadata Type = "metadata"
	Config   Type = "config"
)

// Mode selects thread-confined (in-process only) or process-wide locking.
type Mode int

const (
	Thread Mode = iota
	Process
)

// ID identifies one successful take() call; pass it back to Release.
type ID string

// lockKey identifies one (type, mode) lock in the Manager's table. Within a
// single process dnfcore has exactly one lock per type per mode, matching
// the fixed "<lockdir>/<prog>-<type>.lock" file naming in spec.md §6.
type lockKey struct {
	typ  Type
	mode Mode
}

// entry is the bookkeeping record for one held-or-free (type, mode) lock.
type entry struct {
	mu       sync.Mutex
	refcount int
	owner    string // opaque caller-supplied token identifying the holding "thread"
	ids      map[ID]struct{}

	// process-mode only: the real cross-process advisory lock and its PID file.
	pflock   *flock.Lock
	pidFile  string
	acquired bool
}

// Manager is the process-wide lock table described in spec.md §4.1. Thread
// mode fails immediately when another owner already holds the (type, mode)
// pair; process mode additionally creates and holds a PID file under
// LockDir, failing with a busy error carrying the competing process's
// cmdline when the file refers to a still-live process.
type Manager struct {
	lockDir string
	prog    string

	mu      sync.Mutex
	entries map[lockKey]*entry

	// stateBits is a bitmask with bit(type) set while any mode of that type
	// is held by this process — the spec's "observable for UI" state.
	stateBits uint32
}

// NewManager creates a Manager rooted at lockDir, using prog as the lock
// file name prefix (e.g. the program name, "dnfcore").
func NewManager(lockDir, prog string) *Manager {
	return &Manager{
		lockDir: lockDir,
		prog:    prog,
		entries: make(map[lockKey]*entry),
	}
}

func (m *Manager) pidFilePath(typ Type) string {
	return filepath.Join(m.lockDir, fmt.Sprintf("%s-%s.lock", m.prog, typ))
}

func bitFor(typ Type) uint32 {
	switch typ {
	case RPMDB:
		return 1 << 0
	case Repo:
		return 1 << 1
	case Metadata:
		return 1 << 2
	case Config:
		return 1 << 3
	default:
		return 0
	}
}

// StateBits returns the current "bit(type)=held?" bitmask for UI display.
func (m *Manager) StateBits() uint32 {
	return atomic.LoadUint32(&m.stateBits)
}

func (m *Manager) getOrCreate(key lockKey) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{ids: make(map[ID]struct{})}
		m.entries[key] = e
	}
	return e
}

// Take acquires a (type, mode) lock for owner (an opaque token identifying
// the calling "thread" — Go has no native thread id, so callers pass a
// stable string, e.g. a goroutine-local request id). Reentrant: repeated
// takes by the same owner increment the refcount rather than blocking.
// A thread-mode lock already held by a *different* owner fails immediately
// with errkind.LockBusy; a process-mode lock additionally fails if the PID
// file names a still-live competing process.
func (m *Manager) Take(ctx context.Context, typ Type, mode Mode, owner string) (ID, error) {
	e := m.getOrCreate(lockKey{typ, mode})
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.refcount > 0 {
		if e.owner != owner {
			return "", errkind.Newf(errkind.LockBusy, "%s/%v lock held by %q", typ, mode, e.owner)
		}
		e.refcount++
		id := ID(uuid.NewString())
		e.ids[id] = struct{}{}
		return id, nil
	}

	if mode == Process {
		if err := m.acquireProcessLock(ctx, typ, e); err != nil {
			return "", err
		}
	}

	e.owner = owner
	e.refcount = 1
	id := ID(uuid.NewString())
	e.ids[id] = struct{}{}
	m.setBit(typ)
	return id, nil
}

// setBit ORs bit(typ) into stateBits. Must be an idempotent OR rather than
// an Add: the same type can reach a first-take independently in both Thread
// and Process mode, and two Adds of the same bit would carry into the next
// type's bit where clearBit's &^ could never remove it.
func (m *Manager) setBit(typ Type) {
	for {
		old := atomic.LoadUint32(&m.stateBits)
		next := old | bitFor(typ)
		if atomic.CompareAndSwapUint32(&m.stateBits, old, next) {
			return
		}
	}
}

func (m *Manager) acquireProcessLock(ctx context.Context, typ Type, e *entry) error {
	pidPath := m.pidFilePath(typ)
	if err := utils.EnsureDirs(m.lockDir); err != nil {
		return errkind.Wrap(errkind.Internal, "create lock dir", err)
	}

	if pid, err := utils.ReadPIDFile(pidPath); err == nil {
		if utils.IsProcessAlive(pid) {
			cmdline, _ := utils.ReadCmdline(pid)
			if cmdline == "" {
				cmdline = fmt.Sprintf("pid %d", pid)
			}
			return errkind.Newf(errkind.LockBusy, "%s lock held by %q", typ, cmdline)
		}
	}

	fl := flock.New(pidPath)
	ok, err := fl.TryLock(ctx)
	if err != nil {
		return errkind.Wrap(errkind.LockBusy, "acquire process lock", err)
	}
	if !ok {
		return errkind.Newf(errkind.LockBusy, "%s lock busy", typ)
	}
	if err := utils.WritePIDFile(pidPath, os.Getpid()); err != nil {
		_ = fl.Unlock(ctx)
		return errkind.Wrap(errkind.Internal, "write pid file", err)
	}

	e.pflock = fl
	e.pidFile = pidPath
	e.acquired = true
	return nil
}

// Release releases one reference to the lock identified by id. The PID file
// (process mode) is removed only when the refcount drops to zero.
func (m *Manager) Release(ctx context.Context, typ Type, mode Mode, id ID) error {
	e := m.getOrCreate(lockKey{typ, mode})
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.ids[id]; !ok {
		return errkind.Newf(errkind.Internal, "release unknown lock id %s for %s/%v", id, typ, mode)
	}
	delete(e.ids, id)
	e.refcount--
	if e.refcount > 0 {
		return nil
	}

	e.owner = ""
	m.clearBit(typ)

	if mode == Process && e.acquired {
		var err error
		if unlockErr := e.pflock.Unlock(ctx); unlockErr != nil {
			err = errkind.Wrap(errkind.Internal, "release process lock", unlockErr)
		}
		if rmErr := os.Remove(e.pidFile); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithFunc("lock.Release").Warnf(ctx, "remove pid file %s: %v", e.pidFile, rmErr)
		}
		e.pflock = nil
		e.acquired = false
		return err
	}
	return nil
}

func (m *Manager) clearBit(typ Type) {
	for {
		old := atomic.LoadUint32(&m.stateBits)
		next := old &^ bitFor(typ)
		if atomic.CompareAndSwapUint32(&m.stateBits, old, next) {
			return
		}
	}
}

// Close releases any locks still held at shutdown, logging each as a leak
// (spec.md §4.1: "On destruction any still-held locks must be released and
// logged as a leak").
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	keys := make([]lockKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	logger := log.WithFunc("lock.Close")
	for _, k := range keys {
		e := m.getOrCreate(k)
		e.mu.Lock()
		held := e.refcount > 0
		ids := make([]ID, 0, len(e.ids))
		for id := range e.ids {
			ids = append(ids, id)
		}
		e.mu.Unlock()
		if !held {
			continue
		}
		logger.Warnf(ctx, "leaked lock %s/%v (refcount=%d)", k.typ, k.mode, len(ids))
		for _, id := range ids {
			if err := m.Release(ctx, k.typ, k.mode, id); err != nil {
				logger.Warnf(ctx, "release leaked lock %s: %v", id, err)
			}
		}
	}
}
