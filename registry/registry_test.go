package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRepoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestPreFilterContinuations_JoinsWrappedLines(t *testing.T) {
	in := "baseurl=http://a/repo\n http://b/repo\ngpgcheck=1"
	out := preFilterContinuations(in)
	assert.Contains(t, out, "baseurl=http://a/repo;http://b/repo")
}

func TestScan_ParsesRepoFilesSortedByCost(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "fedora.repo", `[fedora]
name=Fedora $releasever
baseurl=https://example.com/fedora/$releasever/$basearch/
gpgcheck=1
gpgkey=https://example.com/key.gpg
cost=500
`)
	writeRepoFile(t, dir, "updates.repo", `[updates]
name=Fedora Updates
metalink=https://example.com/metalink?repo=updates
cost=10
`)

	reg := New(dir)
	reg.mountsFn = func() ([]string, error) { return nil, nil }

	changed, err := reg.Scan()
	require.NoError(t, err)
	assert.True(t, changed)

	entries := reg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "updates", entries[0].ID) // cost 10 sorts first
	assert.Equal(t, "fedora", entries[1].ID)
	assert.Equal(t, []string{"https://example.com/fedora/$releasever/$basearch/"}, entries[1].BaseURLs)
	assert.True(t, entries[1].GPGCheck)
}

func TestScan_MainSectionSuppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "dnf.conf.repo", `[main]
gpgcheck=1
cost=42

[custom]
name=Custom
baseurl=https://example.com/custom/
`)

	reg := New(dir)
	reg.mountsFn = func() ([]string, error) { return nil, nil }
	_, err := reg.Scan()
	require.NoError(t, err)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].GPGCheck)
	assert.Equal(t, 42, entries[0].Cost)
}

func TestScan_NoChangeOnIdenticalRescan(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.repo", "[a]\nbaseurl=https://example.com/a/\n")

	reg := New(dir)
	reg.mountsFn = func() ([]string, error) { return nil, nil }

	changed, err := reg.Scan()
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = reg.Scan()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDiscoverMediaRepos_RequiresTreeinfo(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mount, ".treeinfo"), []byte("[general]\n"), 0o644))

	repos := discoverMediaRepos([]string{mount})
	require.Len(t, repos, 1)
	assert.Equal(t, 100, repos[0].Cost)
	assert.True(t, repos[0].GPGCheck)
}

func TestEnableDisable_TogglesKnownRepo(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.repo", "[a]\nbaseurl=https://example.com/a/\nenabled=0\n")

	reg := New(dir)
	reg.mountsFn = func() ([]string, error) { return nil, nil }
	_, err := reg.Scan()
	require.NoError(t, err)

	entries := reg.Entries()
	require.False(t, entries[0].Enabled)

	assert.True(t, reg.Enable("a"))
	assert.True(t, reg.Entries()[0].Enabled)
	assert.False(t, reg.Enable("nonexistent"))
}
