// Package solver defines the boundary to the SAT-based dependency solver
// dnfcore treats as an opaque external collaborator (spec.md §1: "a
// SAT-based dependency solver that operates on an in-memory pool of
// solvables" is out of scope for this core). Goal (C7) depends only on the
// Solver interface; solver/refsolver provides a small reference
// implementation used by this module's own tests.
package solver

import (
	"context"

	"github.com/dnfcore/dnfcore/types"
)

// JobAction names one depsolve job's intent.
type JobAction int

const (
	JobInstall JobAction = iota
	JobErase
	JobUpgrade
	JobDowngradeTo
	JobDistUpgrade
	JobUserInstalled
)

// Job is one entry in the depsolve queue: an action plus the candidate
// solvables it applies to (already resolved from a selector by the Sack).
type Job struct {
	Action     JobAction
	Candidates []types.SolvableID
	// Weak marks a job the solver may silently drop instead of failing the
	// whole transaction (e.g. a "best effort" upgrade candidate).
	Weak bool
}

// Flags tune solver behavior independent of any one job.
type Flags struct {
	AllowUninstall bool
	Best           bool // prefer the newest available EVR when multiple satisfy a requirement
	IgnoreBroken   bool
}

// Solution is the resolved transaction: solvables to install, upgrade,
// downgrade, erase, and reinstall, in dependency order, plus the installed
// solvables displaced as a side effect of an Obsoletes relationship carried
// by one of those (disjoint from Erase: an obsoleted package was never
// itself requested for removal).
type Solution struct {
	Install   []types.SolvableID
	Upgrade   []types.SolvableID
	Downgrade []types.SolvableID
	Erase     []types.SolvableID
	Reinstall []types.SolvableID
	Obsoleted []types.SolvableID
}

// Problem is one unsatisfiable-request diagnostic from a failed depsolve.
// Index is stable for the lifetime of the goal that produced it, per
// spec.md §4.7 ("describe_problem(i) must be stable for the lifetime of the
// goal").
type Problem struct {
	Index       int
	Description string
}

// Error is returned by Solve when the queue has no solution; it carries one
// Problem per independent conflict the solver found.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	if len(e.Problems) == 0 {
		return "depsolve failed: no solution"
	}
	return "depsolve failed: " + e.Problems[0].Description
}

// Pool is the read-only view of the sack's solvable universe the solver
// reasons over: providers/requires/obsoletes lookups keyed by solvable id.
type Pool interface {
	Provides(name string) []types.SolvableID
	Requires(id types.SolvableID) []string
	Obsoletes(id types.SolvableID) []string
	Installed(id types.SolvableID) bool
	InstallOnly(id types.SolvableID) bool
	BuildTime(id types.SolvableID) int64
	EVRCompare(a, b types.SolvableID) int // <0, 0, >0 like strcmp
}

// Solver resolves a job queue against a Pool into a Solution, or a
// *solver.Error naming the conflicting problems.
type Solver interface {
	Solve(ctx context.Context, pool Pool, jobs []Job, flags Flags) (Solution, error)
}
