package goal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/repo"
	"github.com/dnfcore/dnfcore/rpmengine/fake"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
)

func TestCommit_WritesYumDBAndRunsOrderedTransaction(t *testing.T) {
	sk := sack.New()
	sk.LoadRepos([]sack.RepoLoad{{
		ID: "fedora", Priority: 99, Cost: 1000,
		Packages: []types.Package{
			{NEVRA: nevra("htop", "3.0", "1"), RepoID: "fedora", ChecksumHex: "abc123", LocationHRef: "htop.rpm"},
		},
	}})
	sk.LoadInstalled([]types.Package{
		{NEVRA: nevra("cowsay", "1.0", "1"), ChecksumHex: "def456"},
	})

	var installSolvable, eraseSolvable types.SolvableID
	for i := 0; i < sk.Len(); i++ {
		id := types.SolvableID(i)
		p, _ := sk.Package(id)
		switch p.NEVRA.Name {
		case "htop":
			installSolvable = id
		case "cowsay":
			eraseSolvable = id
		}
	}

	sol := Solution{
		Install: []types.SolvableID{installSolvable},
		Erase:   []types.SolvableID{eraseSolvable},
	}

	dir := t.TempDir()
	payload := filepath.Join(dir, "htop.rpm")
	require.NoError(t, os.WriteFile(payload, []byte("rpm-bytes"), 0o644))

	downloads := []repo.BatchResult{
		{Pkg: mustPkg(t, sk, installSolvable), Path: payload},
	}

	installroot := filepath.Join(dir, "root")
	g := New(sk)
	g.Install(ByName("htop"), false)

	engine := fake.New()
	node := progress.NewRoot(progress.Nop)

	err := g.Commit(context.Background(), sk, sol, downloads, engine, CommitOptions{Installroot: installroot}, CommitMetadata{InstalledBy: "0", ReleaseVer: "40"}, node)
	require.NoError(t, err)

	require.Len(t, engine.Applied, 2)

	fromRepoPath := yumdbPackageDir(installroot, mustPkg(t, sk, installSolvable))
	b, err := os.ReadFile(filepath.Join(fromRepoPath, "from_repo"))
	require.NoError(t, err)
	assert.Equal(t, "fedora", string(b))

	reasonBytes, err := os.ReadFile(filepath.Join(fromRepoPath, "reason"))
	require.NoError(t, err)
	assert.Equal(t, "user", string(reasonBytes))

	erasedDir := yumdbPackageDir(installroot, mustPkg(t, sk, eraseSolvable))
	_, statErr := os.Stat(erasedDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommit_ObsoletedPackageIsErasedAndYumDBRemoved(t *testing.T) {
	sk := sack.New()
	sk.LoadRepos([]sack.RepoLoad{{
		ID: "fedora", Priority: 99, Cost: 1000,
		Packages: []types.Package{
			{NEVRA: nevra("fool", "1", "5"), RepoID: "fedora", ChecksumHex: "abc123", LocationHRef: "fool.rpm"},
		},
	}})
	sk.LoadInstalled([]types.Package{
		{NEVRA: nevra("penny", "4", "1"), ChecksumHex: "def456"},
	})

	var installSolvable, obsoletedSolvable types.SolvableID
	for i := 0; i < sk.Len(); i++ {
		id := types.SolvableID(i)
		p, _ := sk.Package(id)
		switch p.NEVRA.Name {
		case "fool":
			installSolvable = id
		case "penny":
			obsoletedSolvable = id
		}
	}

	sol := Solution{
		Install:   []types.SolvableID{installSolvable},
		Obsoleted: []types.SolvableID{obsoletedSolvable},
	}

	dir := t.TempDir()
	payload := filepath.Join(dir, "fool.rpm")
	require.NoError(t, os.WriteFile(payload, []byte("rpm-bytes"), 0o644))

	downloads := []repo.BatchResult{
		{Pkg: mustPkg(t, sk, installSolvable), Path: payload},
	}

	installroot := filepath.Join(dir, "root")
	g := New(sk)

	engine := fake.New()
	node := progress.NewRoot(progress.Nop)

	err := g.Commit(context.Background(), sk, sol, downloads, engine, CommitOptions{Installroot: installroot}, CommitMetadata{InstalledBy: "0", ReleaseVer: "40"}, node)
	require.NoError(t, err)

	require.Len(t, engine.Applied, 2)

	obsoletedDir := yumdbPackageDir(installroot, mustPkg(t, sk, obsoletedSolvable))
	_, statErr := os.Stat(obsoletedDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommit_PreRunFailureIsNotUnfinished(t *testing.T) {
	sk := sack.New()
	sk.LoadRepos([]sack.RepoLoad{{
		ID: "fedora",
		Packages: []types.Package{
			{NEVRA: nevra("broken", "1.0", "1"), RepoID: "fedora", LocationHRef: "broken.rpm"},
		},
	}})

	var id types.SolvableID
	for i := 0; i < sk.Len(); i++ {
		p, _ := sk.Package(types.SolvableID(i))
		if p.NEVRA.Name == "broken" {
			id = types.SolvableID(i)
		}
	}

	sol := Solution{Install: []types.SolvableID{id}}
	g := New(sk)

	engine := fake.New()
	// no downloaded payload for the install: the commit fails while building
	// its ops, before Run ever begins, so it is not an unfinished CommitError.
	err := g.Commit(context.Background(), sk, sol, nil, engine, CommitOptions{Installroot: t.TempDir()}, CommitMetadata{}, nil)
	require.Error(t, err)

	var commitErr *CommitError
	assert.False(t, asCommitError(err, &commitErr))
}

func nevra(name, version, release string) types.NEVRA {
	return types.NEVRA{Name: name, Version: version, Release: release, Arch: "x86_64"}
}

func mustPkg(t *testing.T, sk *sack.Sack, id types.SolvableID) types.Package {
	t.Helper()
	p, ok := sk.Package(id)
	require.True(t, ok)
	return p
}

func asCommitError(err error, target **CommitError) bool {
	ce, ok := err.(*CommitError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
