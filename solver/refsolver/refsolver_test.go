package refsolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/types"
)

type fakePool struct {
	provides    map[string][]types.SolvableID
	requires    map[types.SolvableID][]string
	obsoletes   map[types.SolvableID][]string
	installed   map[types.SolvableID]bool
	installOnly map[types.SolvableID]bool
}

func (p *fakePool) Provides(name string) []types.SolvableID     { return p.provides[name] }
func (p *fakePool) Requires(id types.SolvableID) []string       { return p.requires[id] }
func (p *fakePool) Obsoletes(id types.SolvableID) []string      { return p.obsoletes[id] }
func (p *fakePool) Installed(id types.SolvableID) bool          { return p.installed[id] }
func (p *fakePool) InstallOnly(id types.SolvableID) bool        { return p.installOnly[id] }
func (p *fakePool) BuildTime(types.SolvableID) int64            { return 0 }
func (p *fakePool) EVRCompare(a, b types.SolvableID) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func TestSolve_InstallPullsTransitiveDeps(t *testing.T) {
	pool := &fakePool{
		provides: map[string][]types.SolvableID{
			"libfoo": {2},
		},
		requires: map[types.SolvableID][]string{
			1: {"libfoo"},
		},
		installed:   map[types.SolvableID]bool{},
		installOnly: map[types.SolvableID]bool{},
	}

	s := New()
	sol, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobInstall, Candidates: []types.SolvableID{1}},
	}, solver.Flags{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SolvableID{1, 2}, sol.Install)
}

func TestSolve_AlreadyInstalledSkipped(t *testing.T) {
	pool := &fakePool{
		provides:    map[string][]types.SolvableID{},
		requires:    map[types.SolvableID][]string{},
		installed:   map[types.SolvableID]bool{1: true},
		installOnly: map[types.SolvableID]bool{},
	}
	s := New()
	sol, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobInstall, Candidates: []types.SolvableID{1}},
	}, solver.Flags{})
	require.NoError(t, err)
	assert.Empty(t, sol.Install)
}

func TestSolve_EraseInstallOnlyWithoutAllowFails(t *testing.T) {
	pool := &fakePool{
		provides:    map[string][]types.SolvableID{},
		requires:    map[types.SolvableID][]string{},
		installed:   map[types.SolvableID]bool{1: true},
		installOnly: map[types.SolvableID]bool{1: true},
	}
	s := New()
	_, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobErase, Candidates: []types.SolvableID{1}},
	}, solver.Flags{})
	require.Error(t, err)

	var solveErr *solver.Error
	require.ErrorAs(t, err, &solveErr)
	assert.Len(t, solveErr.Problems, 1)
}

func TestSolve_ConflictingInstallAndErase(t *testing.T) {
	pool := &fakePool{
		provides:    map[string][]types.SolvableID{},
		requires:    map[types.SolvableID][]string{},
		installed:   map[types.SolvableID]bool{},
		installOnly: map[types.SolvableID]bool{},
	}
	s := New()
	_, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobInstall, Candidates: []types.SolvableID{1}},
		{Action: solver.JobErase, Candidates: []types.SolvableID{1}},
	}, solver.Flags{AllowUninstall: true})
	require.Error(t, err)
}

// TestSolve_UpgradeObsoletesInstalledPackage models the penny/fool
// obsoletion scenario: fool-1-5 carries Obsoletes: penny and upgrading it
// in displaces the installed penny-4-1, which must land in Obsoleted, not
// Erase.
func TestSolve_UpgradeObsoletesInstalledPackage(t *testing.T) {
	const penny, fool types.SolvableID = 1, 2
	pool := &fakePool{
		provides: map[string][]types.SolvableID{
			"penny": {penny},
			"fool":  {fool},
		},
		requires:    map[types.SolvableID][]string{},
		obsoletes:   map[types.SolvableID][]string{fool: {"penny"}},
		installed:   map[types.SolvableID]bool{penny: true},
		installOnly: map[types.SolvableID]bool{},
	}

	s := New()
	sol, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobUpgrade, Candidates: []types.SolvableID{fool}},
	}, solver.Flags{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SolvableID{fool}, sol.Install)
	assert.ElementsMatch(t, []types.SolvableID{penny}, sol.Obsoleted)
	assert.Empty(t, sol.Erase)
}

// TestSolve_ObsoletesExemptsInstallOnlyPackage confirms install-only
// packages (e.g. kernels) never get swept into Obsoleted.
func TestSolve_ObsoletesExemptsInstallOnlyPackage(t *testing.T) {
	const kernelOld, kernelNew types.SolvableID = 1, 2
	pool := &fakePool{
		provides: map[string][]types.SolvableID{
			"kernel": {kernelOld, kernelNew},
		},
		requires:    map[types.SolvableID][]string{},
		obsoletes:   map[types.SolvableID][]string{kernelNew: {"kernel"}},
		installed:   map[types.SolvableID]bool{kernelOld: true},
		installOnly: map[types.SolvableID]bool{kernelOld: true, kernelNew: true},
	}

	s := New()
	sol, err := s.Solve(context.Background(), pool, []solver.Job{
		{Action: solver.JobUpgrade, Candidates: []types.SolvableID{kernelNew}},
	}, solver.Flags{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SolvableID{kernelNew}, sol.Install)
	assert.Empty(t, sol.Obsoleted)
}
