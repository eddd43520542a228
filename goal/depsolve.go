package goal

import (
	"context"
	"errors"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/types"
)

// Solution is the resolved transaction: the solver's result plus the
// install-only retention erasures appended on top of it (spec.md §4.7).
type Solution struct {
	Install   []types.SolvableID
	Upgrade   []types.SolvableID
	Downgrade []types.SolvableID
	Erase     []types.SolvableID
	Reinstall []types.SolvableID
	Obsoleted []types.SolvableID
}

// all returns every solvable this Solution touches, in commit order
// (installs/upgrades/reinstalls, then erases and obsoleted, then downgrades)
// per spec.md §4.7 "Commit".
func (s Solution) all() []types.SolvableID {
	out := make([]types.SolvableID, 0, len(s.Install)+len(s.Upgrade)+len(s.Reinstall)+len(s.Erase)+len(s.Obsoleted)+len(s.Downgrade))
	out = append(out, s.Install...)
	out = append(out, s.Upgrade...)
	out = append(out, s.Reinstall...)
	out = append(out, s.Erase...)
	out = append(out, s.Obsoleted...)
	out = append(out, s.Downgrade...)
	return out
}

// Depsolve resolves g's queued requests against sk via sv, then applies
// install-only retention. On solver failure every "problem" the solver
// reports becomes one Problem in the returned *Error (errkind.NoSolution);
// on a structurally invalid selector the failing request alone produces an
// errkind.BadSelector error without consulting the solver at all.
func (g *Goal) Depsolve(ctx context.Context, sk *sack.Sack, sv solver.Solver, flags solver.Flags) (Solution, error) {
	requests := g.Requests()

	var jobs []solver.Job
	for _, req := range requests {
		if !req.Selector.valid() {
			return Solution{}, &Error{Kind: errkind.BadSelector, Problems: []Problem{
				{Description: "malformed selector for request"},
			}}
		}

		ids := req.Selector.resolve(sk)
		if len(ids) == 0 {
			if req.Optional {
				continue
			}
			return Solution{}, &Error{Kind: errkind.BadSelector, Problems: []Problem{
				{Description: "selector matched no packages"},
			}}
		}

		jobs = append(jobs, solver.Job{Action: actionToJob(req.Action), Candidates: ids, Weak: req.Optional})
	}

	sol, err := sv.Solve(ctx, sk, jobs, flags)
	if err != nil {
		var solveErr *solver.Error
		if errors.As(err, &solveErr) {
			problems := make([]Problem, len(solveErr.Problems))
			for i, p := range solveErr.Problems {
				problems[i] = Problem{Description: p.Description}
			}
			return Solution{}, &Error{Kind: errkind.NoSolution, Problems: problems}
		}
		return Solution{}, &Error{Kind: errkind.NoSolution, Problems: []Problem{{Description: err.Error()}}}
	}

	out := Solution{
		Install:   sol.Install,
		Upgrade:   sol.Upgrade,
		Downgrade: sol.Downgrade,
		Erase:     sol.Erase,
		Reinstall: sol.Reinstall,
		Obsoleted: sol.Obsoleted,
	}

	retained, err := g.applyInstallOnlyRetention(sk, out)
	if err != nil {
		return Solution{}, err
	}
	return retained, nil
}
