package goal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/solver/refsolver"
	"github.com/dnfcore/dnfcore/types"
)

// TestDepsolve_UpgradeObsoletesInstalledPackage exercises the penny/fool
// scenario end to end through Goal: upgrading fool (which carries
// Obsoletes: penny) must report the installed penny-4-1 in Obsoleted, not
// Erase, while fool-1-5 lands in Install.
func TestDepsolve_UpgradeObsoletesInstalledPackage(t *testing.T) {
	sk := sack.New()
	sk.LoadInstalled([]types.Package{
		{NEVRA: nevra("penny", "4", "1"), ChecksumHex: "penny-sum"},
	})
	sk.LoadRepos([]sack.RepoLoad{{
		ID: "fedora", Priority: 99, Cost: 1000,
		Packages: []types.Package{
			{
				NEVRA:        nevra("fool", "1", "5"),
				RepoID:       "fedora",
				ChecksumHex:  "fool-sum",
				LocationHRef: "fool.rpm",
				Obsoletes:    []string{"penny"},
			},
		},
	}})

	var fool, penny types.SolvableID
	for i := 0; i < sk.Len(); i++ {
		id := types.SolvableID(i)
		p, _ := sk.Package(id)
		switch p.NEVRA.Name {
		case "fool":
			fool = id
		case "penny":
			penny = id
		}
	}

	g := New(sk)
	g.Upgrade(ByName("fool"), false)

	sol, err := g.Depsolve(context.Background(), sk, refsolver.New(), solver.Flags{})
	require.NoError(t, err)

	assert.Equal(t, []types.SolvableID{fool}, sol.Install)
	assert.Equal(t, []types.SolvableID{penny}, sol.Obsoleted)
	assert.Empty(t, sol.Erase)
}
