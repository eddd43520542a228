package sack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/types"
)

func nevra(name, version, release string) types.NEVRA {
	return types.NEVRA{Name: name, Version: version, Release: release, Arch: "x86_64"}
}

func TestLoadOrder_InstalledThenReposByPriorityCostID(t *testing.T) {
	s := New()
	s.LoadInstalled([]types.Package{{NEVRA: nevra("bash", "5.1", "1")}})
	s.LoadRepos([]RepoLoad{
		{ID: "updates", Priority: 10, Cost: 1000, Packages: []types.Package{{NEVRA: nevra("foo", "2", "1")}}},
		{ID: "base", Priority: 99, Cost: 1000, Packages: []types.Package{{NEVRA: nevra("bar", "1", "1")}}},
	})

	require.Equal(t, 3, s.Len())
	p0, _ := s.Package(0)
	p1, _ := s.Package(1)
	p2, _ := s.Package(2)
	assert.Equal(t, "bash", p0.NEVRA.Name)
	assert.Equal(t, types.OriginInstalled, p0.Origin)
	assert.Equal(t, "bar", p1.NEVRA.Name, "base has higher priority than updates")
	assert.Equal(t, "foo", p2.NEVRA.Name)
}

func TestConsidered_ExcludesAndIncludes(t *testing.T) {
	s := New()
	s.LoadRepos([]RepoLoad{{ID: "base", Packages: []types.Package{
		{NEVRA: nevra("a", "1", "1")},
		{NEVRA: nevra("b", "1", "1")},
		{NEVRA: nevra("c", "1", "1")},
	}}})

	c := s.Considered()
	assert.Equal(t, uint(3), c.Count())

	s.AddExcludes(1)
	c = s.Considered()
	assert.False(t, c.Test(1))
	assert.Equal(t, uint(2), c.Count())

	s.AddIncludes(0)
	c = s.Considered()
	assert.True(t, c.Test(0))
	assert.False(t, c.Test(2), "non-included package dropped once includes is non-empty")
	assert.Equal(t, uint(1), c.Count())
}

func TestConsidered_UseIncludesOffExemptsRepo(t *testing.T) {
	s := New()
	s.LoadRepos([]RepoLoad{
		{ID: "base", Packages: []types.Package{{NEVRA: nevra("a", "1", "1")}}},
		{ID: "media", Packages: []types.Package{{NEVRA: nevra("m", "1", "1")}}},
	})
	s.SetUseIncludes("media", false)
	s.AddIncludes(0) // only "a" (base) explicitly included

	c := s.Considered()
	assert.True(t, c.Test(0))
	// media's solvable id depends on load order (priority tie -> id order: base, media)
	mediaPkg, _ := s.Package(1)
	require.Equal(t, "m", mediaPkg.NEVRA.Name)
	assert.True(t, c.Test(1), "media is exempt from the include filter")
}

func TestProvides_MatchesNameAndExplicitProvides(t *testing.T) {
	s := New()
	s.LoadRepos([]RepoLoad{{ID: "base", Packages: []types.Package{
		{NEVRA: nevra("libfoo", "1", "1"), Provides: []string{"libfoo.so.1()(64bit)"}},
	}}})
	ids := s.Provides("libfoo")
	require.Len(t, ids, 1)
	ids = s.Provides("libfoo.so.1()(64bit)")
	require.Len(t, ids, 1)
}

func TestEVRCompare_VersionOrdering(t *testing.T) {
	s := New()
	s.LoadRepos([]RepoLoad{{ID: "base", Packages: []types.Package{
		{NEVRA: nevra("foo", "1.2", "1")},
		{NEVRA: nevra("foo", "1.10", "1")},
		{NEVRA: nevra("foo", "1.2", "2")},
	}}})
	assert.Equal(t, -1, s.EVRCompare(0, 1), "1.2 < 1.10 numerically, not lexically")
	assert.Equal(t, -1, s.EVRCompare(0, 2), "release 1 < release 2")
	assert.Equal(t, 0, s.EVRCompare(0, 0))
}

func TestPackageSet_SetOps(t *testing.T) {
	a := NewPackageSet(8)
	a.Add(1)
	a.Add(2)
	b := NewPackageSet(8)
	b.Add(2)
	b.Add(3)

	union := a.Union(b)
	assert.ElementsMatch(t, []types.SolvableID{1, 2, 3}, union.ToSlice())

	inter := a.Intersect(b)
	assert.ElementsMatch(t, []types.SolvableID{2}, inter.ToSlice())

	diff := a.Subtract(b)
	assert.ElementsMatch(t, []types.SolvableID{1}, diff.ToSlice())
}
