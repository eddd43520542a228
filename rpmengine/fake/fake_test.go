package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/rpmengine"
	"github.com/dnfcore/dnfcore/types"
)

func TestCheck_MissingPackageFileFails(t *testing.T) {
	e := New()
	err := e.Check(context.Background(), []rpmengine.Op{
		{Kind: rpmengine.OpInstall, Package: types.Package{NEVRA: types.NEVRA{Name: "foo", Version: "1", Release: "1", Arch: "x86_64"}}},
	}, rpmengine.Flags{})
	require.Error(t, err)
}

func TestOrder_InstallsBeforeErasesBeforeDowngrades(t *testing.T) {
	e := New()
	ops := []rpmengine.Op{
		{Kind: rpmengine.OpDowngrade, PackageFile: "a"},
		{Kind: rpmengine.OpErase},
		{Kind: rpmengine.OpInstall, PackageFile: "b"},
	}
	ordered, err := e.Order(context.Background(), ops, rpmengine.Flags{})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, rpmengine.OpInstall, ordered[0].Kind)
	assert.Equal(t, rpmengine.OpErase, ordered[1].Kind)
	assert.Equal(t, rpmengine.OpDowngrade, ordered[2].Kind)
}

func TestRun_AppliesAndStepsProgress(t *testing.T) {
	e := New()
	root := progress.NewRoot(progress.Nop)
	root.SetNumberSteps(2)

	ops := []rpmengine.Op{
		{Kind: rpmengine.OpInstall, PackageFile: "a"},
		{Kind: rpmengine.OpInstall, PackageFile: "b"},
	}
	err := e.Run(context.Background(), ops, rpmengine.Flags{}, root)
	require.NoError(t, err)
	assert.Len(t, e.Applied, 2)
	assert.Equal(t, 100, root.Percent())
}
