package goal

import (
	"sort"

	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
)

// applyInstallOnlyRetention implements spec.md §4.7 "Install-only
// retention": after solve, if more than installonly_limit copies of an
// install-only name would exist post-transaction (installed minus erased,
// plus newly installed), erase the oldest excess copies, never the running
// kernel, ordered by build time ascending with id as tie-break.
func (g *Goal) applyInstallOnlyRetention(sk *sack.Sack, sol Solution) (Solution, error) {
	g.mu.Lock()
	limit := g.installOnlyLimit
	g.mu.Unlock()
	if limit <= 0 {
		return sol, nil
	}

	runningKernel, haveKernel := sk.RunningKernel()

	erasing := toSet(sol.Erase)
	byName := make(map[string][]types.SolvableID)

	collect := func(id types.SolvableID) {
		p, ok := sk.Package(id)
		if !ok || !p.InstallOnly {
			return
		}
		if _, dropped := erasing[id]; dropped {
			return
		}
		byName[p.NEVRA.Name] = append(byName[p.NEVRA.Name], id)
	}

	for i := 0; i < sk.Len(); i++ {
		id := types.SolvableID(i)
		p, ok := sk.Package(id)
		if ok && p.Origin == types.OriginInstalled {
			collect(id)
		}
	}
	for _, id := range sol.Install {
		collect(id)
	}
	for _, id := range sol.Upgrade {
		collect(id)
	}

	var extraErase []types.SolvableID
	for _, ids := range byName {
		if len(ids) <= limit {
			continue
		}
		sort.Slice(ids, func(i, j int) bool {
			bi, bj := sk.BuildTime(ids[i]), sk.BuildTime(ids[j])
			if bi != bj {
				return bi < bj
			}
			return ids[i] < ids[j]
		})

		excess := len(ids) - limit
		for _, id := range ids {
			if excess <= 0 {
				break
			}
			if haveKernel && id == runningKernel {
				continue
			}
			extraErase = append(extraErase, id)
			excess--
		}
	}

	sol.Erase = append(sol.Erase, extraErase...)
	return sol, nil
}

func toSet(ids []types.SolvableID) map[types.SolvableID]struct{} {
	out := make(map[types.SolvableID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
