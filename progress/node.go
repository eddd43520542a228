package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dnfcore/dnfcore/errkind"
)

// Event is published to a Node's Tracker whenever its reported percentage
// strictly increases, and whenever ActionStart sets an action (ActionStop
// publishes nothing).
type Event struct {
	Percent    int
	Action     string
	ActionHint string
}

// Node is one node of the hierarchical progress tree from spec.md §4.2. A
// node owns at most one live child at a time; a child's percentage maps
// linearly into the slice of its parent's own percentage range allocated to
// the parent's current step, and bubbles all the way up to the root, which
// is the only node holding a Tracker.
//
// Scheduling is single-threaded cooperative: every method is meant to be
// called from the one goroutine driving the enclosing operation, though the
// embedded mutex makes the bookkeeping itself safe to call from elsewhere
// (e.g. a download callback running in a worker goroutine).
type Node struct {
	mu sync.Mutex

	parent  *Node
	child   *Node
	tracker Tracker // non-nil only on the root

	steps   int
	weights []int // cumulative offsets, len(weights) == steps+1, weights[steps] == 100; nil => linear
	current int
	lastPct int

	action     string
	actionHint string

	speed speedWindow
}

// NewRoot creates a detached root node reporting to tracker (progress.Nop if
// the caller doesn't need updates).
func NewRoot(tracker Tracker) *Node {
	if tracker == nil {
		tracker = Nop
	}
	return &Node{tracker: tracker}
}

// SetNumberSteps configures n equal-weight steps. Must be called before the
// first Done() or NewChild().
func (n *Node) SetNumberSteps(steps int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = steps
	n.weights = nil
}

// SetSteps configures steps weighted by weights, which must sum to exactly
// 100 (spec.md §4.2 edge case: "Weights must sum to exactly 100; any other
// total is a programming error"). Must be called before the first Done() or
// NewChild().
func (n *Node) SetSteps(weights []int) {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum != 100 {
		panic(fmt.Sprintf("progress: weights must sum to 100, got %d", sum))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = len(weights)
	offsets := make([]int, len(weights)+1)
	for i, w := range weights {
		offsets[i+1] = offsets[i] + w
	}
	n.weights = offsets
}

// ActionStart pushes a one-level action label, optionally with a hint
// (e.g. the file currently being fetched), and republishes it to the root
// tracker regardless of whether the percentage changed.
func (n *Node) ActionStart(action string, hint ...string) {
	n.mu.Lock()
	n.action = action
	if len(hint) > 0 {
		n.actionHint = hint[0]
	} else {
		n.actionHint = ""
	}
	pct := n.lastPct
	n.mu.Unlock()
	n.propagate(pct, action, n.hintLocked(), true)
}

func (n *Node) hintLocked() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.actionHint
}

// ActionStop clears the current action.
func (n *Node) ActionStop() {
	n.mu.Lock()
	n.action = ""
	n.actionHint = ""
	n.mu.Unlock()
}

// Check consults cancellation without advancing progress.
func (n *Node) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Cancelled, "progress cancelled", err)
	}
	return nil
}

// Done increments the current step, recomputes the percentage, and
// propagates it (mapped through every ancestor's allocated slice) up to the
// root, emitting a change event there if the integer percentage strictly
// increased. Calling Done more than steps times is a programming error
// (spec.md §4.2 edge case).
//
// A child that reaches 100% is detached from its parent, but the parent's
// own step does not advance: whoever owns the parent calls Done on it.
func (n *Node) Done(ctx context.Context) error {
	if err := n.Check(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	if n.current >= n.steps {
		n.mu.Unlock()
		panic("progress: Done called more times than the configured step count")
	}
	n.current++
	pct := n.percentLocked()
	parent := n.parent
	if parent != nil {
		// The root records lastPct in propagate, whose strict-increase
		// check must still see the previous value.
		n.lastPct = pct
	}
	current := n.current
	steps := n.steps
	action, hint := n.action, n.actionHint
	n.mu.Unlock()

	n.propagate(pct, action, hint, false)

	if parent != nil && current >= steps {
		parent.detachChild(n)
	}
	return nil
}

// percentLocked computes the current integer percentage. Caller must hold n.mu.
func (n *Node) percentLocked() int {
	if n.steps == 0 {
		return 100
	}
	if n.weights != nil {
		return n.weights[n.current]
	}
	return n.current * 100 / n.steps
}

// Percent returns the last reported percentage.
func (n *Node) Percent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastPct
}

// NewChild creates the (single) live child of n, allocated the slice
// [offset(current), offset(current+1)) of n's own percentage range for n's
// current step. Creating a second child before the first reaches 100% and
// is released simply replaces the stale reference.
func (n *Node) NewChild() *Node {
	child := &Node{parent: n}
	n.mu.Lock()
	n.child = child
	n.mu.Unlock()
	return child
}

func (n *Node) detachChild(child *Node) {
	n.mu.Lock()
	if n.child == child {
		n.child = nil
	}
	n.mu.Unlock()
}

// propagate maps pct into n's own percentage space and, if n is the root,
// emits it to the tracker (gated on strict increase unless force is set);
// otherwise recurses into n's parent with the mapped value. action/hint
// travel unchanged from the node that originated the update — they identify
// whichever leaf is currently active, not the ancestor reporting it.
func (n *Node) propagate(pct int, action, hint string, force bool) {
	n.mu.Lock()
	parent := n.parent
	if parent == nil {
		changed := pct > n.lastPct
		if changed {
			n.lastPct = pct
		} else {
			pct = n.lastPct
		}
		tracker := n.tracker
		n.mu.Unlock()
		if changed || force {
			tracker.OnEvent(Event{Percent: pct, Action: action, ActionHint: hint})
		}
		return
	}
	n.mu.Unlock()

	parent.mu.Lock()
	lo, hi := parent.offsetRangeLocked()
	parent.mu.Unlock()

	mapped := lo + (pct*(hi-lo))/100
	parent.propagate(mapped, action, hint, force)
}

// offsetRangeLocked returns [offset(current), offset(current+1)). Caller must hold n.mu.
func (n *Node) offsetRangeLocked() (lo, hi int) {
	if n.steps == 0 {
		return 0, 100
	}
	if n.weights != nil {
		next := n.current + 1
		if next > n.steps {
			next = n.steps
		}
		return n.weights[n.current], n.weights[next]
	}
	lo = n.current * 100 / n.steps
	next := n.current + 1
	if next > n.steps {
		next = n.steps
	}
	hi = next * 100 / n.steps
	return lo, hi
}

// ReportBytes records a byte-delta sample (e.g. from a download callback)
// for the rolling 5-sample speed window.
func (n *Node) ReportBytes(delta int64) {
	n.speed.add(delta, time.Now())
}

// SpeedBytesPerSec returns the smoothed bytes/sec reading over the last (up
// to) five reported samples.
func (n *Node) SpeedBytesPerSec() float64 {
	return n.speed.bytesPerSec()
}

// Release detaches n from its parent. Releasing a node before it reaches
// 100% is logged by the caller (progress itself has no logger dependency)
// but the release still happens (spec.md §4.2 edge case).
func (n *Node) Release() (reachedFull bool) {
	n.mu.Lock()
	reachedFull = n.steps == 0 || n.current >= n.steps
	parent := n.parent
	n.mu.Unlock()
	if parent != nil {
		parent.detachChild(n)
	}
	return reachedFull
}
