package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/download"
	"github.com/dnfcore/dnfcore/utils"
)

// memLocker is an in-process stand-in for a lock.Manager-issued METADATA
// lock, sufficient for exercising Repository without a real lock file.
type memLocker struct {
	mu sync.Mutex
}

func (l *memLocker) Lock(context.Context) error { l.mu.Lock(); return nil }
func (l *memLocker) Unlock(context.Context) error {
	l.mu.Unlock()
	return nil
}
func (l *memLocker) TryLock(context.Context) (bool, error) { return l.mu.TryLock(), nil }

const primaryXML = `<?xml version="1.0"?><metadata packages="0"></metadata>`

func repomdXML(primaryHref, checksum string) string {
	return `<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <checksum type="sha256">` + checksum + `</checksum>
    <location href="` + primaryHref + `"/>
    <timestamp>1700000000</timestamp>
  </data>
</repomd>`
}

func newTestRepo(t *testing.T, cfg Config, baseCacheDir, baseURL string) *Repository {
	t.Helper()
	fetcher := download.New(download.Options{})
	cfg.BaseURLs = []string{baseURL}
	return New(cfg, baseCacheDir, utils.URLVars{}, fetcher, &memLocker{}, nil)
}

func TestCacheDirName_DeterministicAndDistinct(t *testing.T) {
	a := cacheDirName("fedora", "https://example.com/fedora")
	b := cacheDirName("fedora", "https://example.com/fedora")
	c := cacheDirName("fedora", "https://example.com/updates")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^fedora-[0-9a-f]{8}$`, a)
}

func TestIsFresh_NeverExpires(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repomd.xml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, isFresh(path, -1, time.Now().Add(100*365*24*time.Hour)))
}

func TestIsFresh_ExpiresAfterWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repomd.xml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	assert.False(t, isFresh(path, 3600, time.Now()))
	assert.True(t, isFresh(path, 24*3600, time.Now()))
}

func TestReviveViaByteCompare(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	b := filepath.Join(dir, "b.xml")
	c := filepath.Join(dir, "c.xml")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("different"), 0o644))

	ok, err := reviveViaByteCompare(a, b)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reviveViaByteCompare(a, c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureMetadata_FetchesAndLoadsFromCacheOnSecondCall(t *testing.T) {
	var primaryHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repodata/repomd.xml":
			sum := utils.SHA256Hex([]byte(primaryXML))
			_, _ = w.Write([]byte(repomdXML("repodata/primary.xml", sum)))
		case "/repodata/primary.xml":
			primaryHits++
			_, _ = w.Write([]byte(primaryXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	baseCacheDir := t.TempDir()
	cfg := Config{ID: "test", MetadataExpire: -1, Sync: SyncLazy}
	r := newTestRepo(t, cfg, baseCacheDir, srv.URL)

	require.NoError(t, r.EnsureMetadata(context.Background(), nil))
	assert.Equal(t, StateWritten, r.State())
	assert.Equal(t, 1, primaryHits)

	primaryPath, err := r.PrimaryPath(context.Background())
	require.NoError(t, err)
	assert.True(t, utils.ValidFile(primaryPath))

	r2 := newTestRepo(t, cfg, baseCacheDir, srv.URL)
	require.NoError(t, r2.EnsureMetadata(context.Background(), nil))
	assert.Equal(t, StateLoadedCache, r2.State())
	assert.Equal(t, 1, primaryHits, "lazy sync must not re-fetch once cache exists")
}

func TestEnsureMetadata_OnlyCacheFailsWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := Config{ID: "test", MetadataExpire: -1, Sync: SyncOnlyCache}
	r := newTestRepo(t, cfg, t.TempDir(), srv.URL)

	err := r.EnsureMetadata(context.Background(), nil)
	require.Error(t, err)
}

func TestEnsureMetadata_TryCacheRevivesOnMirrorListByteMatch(t *testing.T) {
	var repomdHits int
	sum := utils.SHA256Hex([]byte(primaryXML))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repodata/repomd.xml":
			repomdHits++
			_, _ = w.Write([]byte(repomdXML("repodata/primary.xml", sum)))
		case "/repodata/primary.xml":
			_, _ = w.Write([]byte(primaryXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	baseCacheDir := t.TempDir()
	cfg := Config{ID: "test", MetadataExpire: 1, Sync: SyncTryCache}
	r := newTestRepo(t, cfg, baseCacheDir, srv.URL)
	require.NoError(t, r.EnsureMetadata(context.Background(), nil))
	assert.Equal(t, 1, repomdHits)

	cachedRepomd := repodataPath(r.layout, "repomd.xml")
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(cachedRepomd, stale, stale))

	r2 := newTestRepo(t, cfg, baseCacheDir, srv.URL)
	require.NoError(t, r2.EnsureMetadata(context.Background(), nil))
	assert.Equal(t, StateLoadedCache, r2.State())
	assert.Equal(t, 2, repomdHits, "revival still fetches one repomd to compare")

	info, err := os.Stat(cachedRepomd)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), info.ModTime(), 10*time.Second)
}
