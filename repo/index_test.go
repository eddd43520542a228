package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/types"
)

func TestGCModule_CollectsOrphanedPackageFile(t *testing.T) {
	body := []byte("rpm-bytes")
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	mux := http.NewServeMux()
	mux.HandleFunc("/htop.rpm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cacheDir := t.TempDir()
	cfg := Config{ID: "fedora", Kind: KindRegular}
	r := newTestRepo(t, cfg, cacheDir, srv.URL)

	pkg := types.Package{
		NEVRA:        types.NEVRA{Name: "htop", Version: "3.2.2", Release: "1.fc40", Arch: "x86_64"},
		ChecksumType: "sha256",
		ChecksumHex:  checksum,
		LocationHRef: "htop.rpm",
	}

	ctx := context.Background()
	_, err := r.FetchPackage(ctx, PackageRequest{Pkg: pkg}, nil)
	require.NoError(t, err)

	// Drop a second, untracked file directly into the packages dir to
	// simulate an interrupted download / leftover file.
	orphan := filepath.Join(r.PackagesDir(), "stale.rpm")
	require.NoError(t, os.WriteFile(orphan, []byte("junk"), 0o644))

	mod := r.GCModule()
	snap, err := mod.ReadDB(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Packages, "htop.rpm")

	targets := mod.Resolve(snap, nil)
	assert.Equal(t, []string{orphan}, targets)

	require.NoError(t, mod.Collect(ctx, targets))
	_, statErr := os.Stat(orphan)
	assert.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(filepath.Join(r.PackagesDir(), "htop.rpm"))
	assert.NoError(t, statErr)
}
