// Package goal implements C7: goal assembly, depsolve, install-only
// retention, download batching, and commit (spec.md §4.7).
package goal

import (
	"strings"
	"sync"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/solver"
)

// Action names the high-level operation a Request asks the solver to
// perform, one per spec.md §4.7 "Goal assembly".
type Action int

const (
	ActionInstall Action = iota
	ActionErase
	ActionUpgrade
	ActionDowngradeTo
	ActionDistUpgrade
	ActionUserInstalled
)

// Request is one queued goal entry: an action, the selector it binds
// against at solve time, and whether a failed bind/solve is silent.
type Request struct {
	Action   Action
	Selector Selector
	Optional bool // suppresses the "no match" error and marks the solver job Weak (droppable instead of failing the solve)
}

// DefaultInstallOnlyNames is dnf's own default install-only package set
// (spec.md §4.7): the kernel by exact name, plus anything matching the
// "installonlypkg(*)" provides convention.
var DefaultInstallOnlyNames = []string{"kernel", "installonlypkg(*)"}

// Goal accumulates install/erase/update requests against a Sack and drives
// them through depsolve, retention, download, and commit. Thread-confined,
// matching the Sack it wraps (spec.md §5 "Sack internals: thread-confined").
type Goal struct {
	mu sync.Mutex

	sack     *sack.Sack
	requests []Request

	installOnlyNames []string
	installOnlyLimit int
}

// New creates a Goal bound to sk, with dnf-compatible install-only defaults
// (installonly_limit of 3).
func New(sk *sack.Sack) *Goal {
	return &Goal{
		sack:             sk,
		installOnlyNames: append([]string(nil), DefaultInstallOnlyNames...),
		installOnlyLimit: 3,
	}
}

// SetInstallOnlyLimit overrides the default installonly_limit.
func (g *Goal) SetInstallOnlyLimit(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.installOnlyLimit = n
}

// SetInstallOnlyNames overrides the default install-only name patterns.
func (g *Goal) SetInstallOnlyNames(names []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.installOnlyNames = append([]string(nil), names...)
}

// Install queues an ActionInstall request. UserInstall is the variant that
// queues ActionUserInstalled.
func (g *Goal) Install(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionInstall, Selector: sel, Optional: optional})
}

// UserInstall is Install but marks the resulting packages "reason=user" in
// yumdb regardless of whether they were pulled in as dependencies elsewhere.
func (g *Goal) UserInstall(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionUserInstalled, Selector: sel, Optional: optional})
}

// Erase queues a removal request.
func (g *Goal) Erase(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionErase, Selector: sel, Optional: optional})
}

// Upgrade queues an upgrade request.
func (g *Goal) Upgrade(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionUpgrade, Selector: sel, Optional: optional})
}

// DowngradeTo queues a downgrade-to request.
func (g *Goal) DowngradeTo(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionDowngradeTo, Selector: sel, Optional: optional})
}

// DistUpgrade queues a whole-system (or selector-scoped) distupgrade request.
func (g *Goal) DistUpgrade(sel Selector, optional bool) {
	g.enqueue(Request{Action: ActionDistUpgrade, Selector: sel, Optional: optional})
}

func (g *Goal) enqueue(r Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, r)
}

// Requests returns a snapshot of the queued requests.
func (g *Goal) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Request(nil), g.requests...)
}

// isInstallOnly reports whether name matches one of g's install-only
// patterns: an exact name match, or, for a configured "installonlypkg(*)"
// pattern, any name starting with "kernel". Package provides are not
// consulted.
func (g *Goal) isInstallOnly(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, pat := range g.installOnlyNames {
		if pat == name {
			return true
		}
		if pat == "installonlypkg(*)" && strings.HasPrefix(name, "kernel") {
			return true
		}
	}
	return false
}

// actionToJob maps a Request's Action to the solver.JobAction the external
// solver understands.
func actionToJob(a Action) solver.JobAction {
	switch a {
	case ActionErase:
		return solver.JobErase
	case ActionUpgrade:
		return solver.JobUpgrade
	case ActionDowngradeTo:
		return solver.JobDowngradeTo
	case ActionDistUpgrade:
		return solver.JobDistUpgrade
	case ActionUserInstalled:
		return solver.JobUserInstalled
	default:
		return solver.JobInstall
	}
}

// Problem is one solver/retention diagnostic, stable for the Goal's
// lifetime (spec.md §4.7 "describe_problem(i) must be stable").
type Problem struct {
	Description string
}

// Error wraps one or more Problems under an errkind.Kind, the shape
// spec.md §7's failure taxonomy assigns to pre-solve/solve failures.
type Error struct {
	Kind     errkind.Kind
	Problems []Problem
}

func (e *Error) Error() string {
	if len(e.Problems) == 0 {
		return string(e.Kind)
	}
	msg := string(e.Kind) + ": " + e.Problems[0].Description
	for _, p := range e.Problems[1:] {
		msg += "; " + p.Description
	}
	return msg
}

// DescribeProblem returns the i'th problem's description, or "" if out of range.
func (e *Error) DescribeProblem(i int) string {
	if i < 0 || i >= len(e.Problems) {
		return ""
	}
	return e.Problems[i].Description
}
