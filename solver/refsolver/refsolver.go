// Package refsolver is a small, deterministic reference implementation of
// solver.Solver. It performs naive transitive closure over Requires/Provides
// with no real unit propagation or conflict search — good enough to drive
// this module's own tests of Goal/Transaction sequencing, not a substitute
// for a production SAT solver (spec.md §1 treats the real solver as an
// opaque external collaborator).
package refsolver

import (
	"context"
	"sort"

	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/types"
)

// Solver implements solver.Solver.
type Solver struct{}

// New creates a reference Solver.
func New() *Solver { return &Solver{} }

var _ solver.Solver = (*Solver)(nil)

// Solve resolves jobs against pool. Install/Upgrade/DowngradeTo jobs pull in
// their transitive Requires via Provides; conflicting Erase/Install targets
// on the same solvable are reported as a solver.Error problem.
func (s *Solver) Solve(_ context.Context, pool solver.Pool, jobs []solver.Job, flags solver.Flags) (solver.Solution, error) {
	var sol solver.Solution
	var problems []solver.Problem

	toInstall := make(map[types.SolvableID]struct{})
	toErase := make(map[types.SolvableID]struct{})
	toObsolete := make(map[types.SolvableID]struct{})

	for _, job := range jobs {
		switch job.Action {
		case solver.JobInstall, solver.JobUserInstalled:
			for _, id := range job.Candidates {
				if pool.Installed(id) {
					continue
				}
				s.closeOver(pool, id, toInstall)
			}
		case solver.JobUpgrade, solver.JobDistUpgrade:
			for _, id := range job.Candidates {
				s.closeOver(pool, id, toInstall)
			}
		case solver.JobDowngradeTo:
			for _, id := range job.Candidates {
				s.closeOver(pool, id, toInstall)
			}
		case solver.JobErase:
			for _, id := range job.Candidates {
				if !flags.AllowUninstall && pool.InstallOnly(id) {
					problems = append(problems, solver.Problem{
						Index:       len(problems),
						Description: "cannot remove install-only package without allow-uninstall",
					})
					continue
				}
				toErase[id] = struct{}{}
			}
		}
	}

	for id := range toInstall {
		if _, erasing := toErase[id]; erasing {
			problems = append(problems, solver.Problem{
				Index:       len(problems),
				Description: "package both requested for install and erase",
			})
			continue
		}
		if pool.Installed(id) {
			continue
		}
		sol.Install = append(sol.Install, id)
		s.closeObsoletes(pool, id, toErase, toObsolete)
	}
	for id := range toErase {
		sol.Erase = append(sol.Erase, id)
	}
	for id := range toObsolete {
		sol.Obsoleted = append(sol.Obsoleted, id)
	}

	sortIDs(sol.Install)
	sortIDs(sol.Erase)
	sortIDs(sol.Obsoleted)

	if len(problems) > 0 && !flags.IgnoreBroken {
		return solver.Solution{}, &solver.Error{Problems: problems}
	}
	return sol, nil
}

// closeOver adds id and every solvable transitively required by id's
// Requires strings (resolved via Pool.Provides) into set.
func (s *Solver) closeOver(pool solver.Pool, id types.SolvableID, set map[types.SolvableID]struct{}) {
	if _, ok := set[id]; ok {
		return
	}
	set[id] = struct{}{}
	for _, req := range pool.Requires(id) {
		for _, provider := range pool.Provides(req) {
			s.closeOver(pool, provider, set)
		}
	}
}

// closeObsoletes resolves id's Obsoletes names against pool and records
// every installed, non-install-only provider as obsoleted (spec.md §4.7,
// "install-only packages are exempt from upgrade and obsoletion rules"),
// skipping anything already slated for plain erasure so the two result
// lists stay disjoint.
func (s *Solver) closeObsoletes(pool solver.Pool, id types.SolvableID, toErase, toObsolete map[types.SolvableID]struct{}) {
	for _, name := range pool.Obsoletes(id) {
		for _, provider := range pool.Provides(name) {
			if provider == id {
				continue
			}
			if !pool.Installed(provider) {
				continue
			}
			if pool.InstallOnly(provider) {
				continue
			}
			if _, erasing := toErase[provider]; erasing {
				continue
			}
			toObsolete[provider] = struct{}{}
		}
	}
}

func sortIDs(ids []types.SolvableID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
