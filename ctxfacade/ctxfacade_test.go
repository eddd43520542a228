package ctxfacade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/config"
	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/lock"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/rpmengine/fake"
	"github.com/dnfcore/dnfcore/solver/refsolver"
)

const testPrimaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="1">
  <package type="rpm">
    <name>htop</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="3.2.2" rel="1.fc40"/>
    <checksum type="sha256" pkgid="YES">e262f1de2c38fd96cb1a8a8410f58222f0e0b5681b84217b877e78c114eb9a31</checksum>
    <location href="Packages/htop.rpm"/>
    <time file="1700000000" build="1699000000"/>
    <format></format>
  </package>
</metadata>`

func testRepomdXML() string {
	return `<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <checksum type="sha256">dummy</checksum>
    <location href="repodata/primary.xml"/>
    <timestamp>1700000000</timestamp>
  </data>
</repomd>`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repodata/repomd.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testRepomdXML()))
	})
	mux.HandleFunc("/repodata/primary.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testPrimaryXML))
	})
	mux.HandleFunc("/Packages/htop.rpm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("rpm-bytes"))
	})
	return httptest.NewServer(mux)
}

func TestRun_InstallsPackageEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	root := t.TempDir()
	cacheDir := filepath.Join(root, "cache")
	reposDir := filepath.Join(root, "repos.d")
	lockDir := filepath.Join(root, "lock")
	installRoot := filepath.Join(root, "installroot")
	require.NoError(t, os.MkdirAll(reposDir, 0o755))

	repoFile := "[fedora]\nname=Fedora\nbaseurl=" + srv.URL + "/\ngpgcheck=0\ncost=10\n"
	require.NoError(t, os.WriteFile(filepath.Join(reposDir, "fedora.repo"), []byte(repoFile), 0o644))

	cfg := config.DefaultConfig()
	cfg.CacheDir = cacheDir
	cfg.ReposDir = reposDir
	cfg.LockDir = lockDir
	cfg.InstallRoot = installRoot
	cfg.MaxParallelDownloads = 1
	cfg.InstalledBy = 0
	cfg.ReleaseVer = "40"

	engine := fake.New()
	cx := New(cfg, refsolver.New(), engine, nil)

	require.NoError(t, cx.Setup())

	var invalidated string
	cx.OnInvalidate = func(reason string) { invalidated = reason }

	root2 := progress.NewRoot(progress.Nop)
	_, err := cx.SetupSack(context.Background(), nil, nil, root2.NewChild())
	require.NoError(t, err)

	require.NoError(t, cx.Install("htop", false))

	sol, err := cx.Run(context.Background(), progress.NewRoot(progress.Nop), RunOptions{
		MaxParallelDownloads: 1,
		Installroot:          installRoot,
		InstalledBy:          "0",
		ReleaseVer:           "40",
	})
	require.NoError(t, err)
	assert.Len(t, sol.Install, 1)
	assert.Len(t, engine.Applied, 1)
	assert.Equal(t, "commit succeeded", invalidated)

	yumdbRoot := filepath.Join(installRoot, "var", "lib", "yum", "yumdb")
	entries, err := os.ReadDir(filepath.Join(yumdbRoot, "h"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	cx.mu.Lock()
	var pkgDir string
	for _, r := range cx.repos {
		pkgDir = r.PackagesDir()
	}
	cx.mu.Unlock()
	require.NotEmpty(t, pkgDir)
	orphan := filepath.Join(pkgDir, "leftover.rpm")
	require.NoError(t, os.WriteFile(orphan, []byte("junk"), 0o644))

	require.NoError(t, cx.CollectGarbage(context.Background()))
	_, statErr := os.Stat(orphan)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(pkgDir, "htop.rpm"))
	assert.NoError(t, statErr)
}

// TestRun_RefusesWhenRPMDBLockBusy exercises the process-mode RPMDB lock
// spec.md §5 requires at the entry of run(): a competing process holding
// the same lock file must make Run fail instead of racing rpmdb mutation.
func TestRun_RefusesWhenRPMDBLockBusy(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	root := t.TempDir()
	cacheDir := filepath.Join(root, "cache")
	reposDir := filepath.Join(root, "repos.d")
	lockDir := filepath.Join(root, "lock")
	installRoot := filepath.Join(root, "installroot")
	require.NoError(t, os.MkdirAll(reposDir, 0o755))

	repoFile := "[fedora]\nname=Fedora\nbaseurl=" + srv.URL + "/\ngpgcheck=0\ncost=10\n"
	require.NoError(t, os.WriteFile(filepath.Join(reposDir, "fedora.repo"), []byte(repoFile), 0o644))

	cfg := config.DefaultConfig()
	cfg.CacheDir = cacheDir
	cfg.ReposDir = reposDir
	cfg.LockDir = lockDir
	cfg.InstallRoot = installRoot
	cfg.MaxParallelDownloads = 1

	engine := fake.New()
	cx := New(cfg, refsolver.New(), engine, nil)
	require.NoError(t, cx.Setup())

	root2 := progress.NewRoot(progress.Nop)
	_, err := cx.SetupSack(context.Background(), nil, nil, root2.NewChild())
	require.NoError(t, err)
	require.NoError(t, cx.Install("htop", false))

	competitor := lock.NewManager(lockDir, "dnfcore")
	_, err = competitor.Take(context.Background(), lock.RPMDB, lock.Process, "other-process")
	require.NoError(t, err)

	_, err = cx.Run(context.Background(), progress.NewRoot(progress.Nop), RunOptions{
		MaxParallelDownloads: 1,
		Installroot:          installRoot,
		InstalledBy:          "0",
		ReleaseVer:           "40",
	})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.LockBusy))
}
