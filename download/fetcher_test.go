package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnfcore/dnfcore/utils"
)

func TestFetch_LocalFileBypass(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.rpm")
	require.NoError(t, os.WriteFile(src, []byte("package-bytes"), 0o644))

	f := New(Options{})
	dest := filepath.Join(dir, "dest.rpm")
	err := f.Fetch(context.Background(), Target{URLs: []string{src}, Dest: dest}, nil, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(dest) //nolint:gosec // test fixture path
	require.NoError(t, err)
	assert.Equal(t, "package-bytes", string(got))
}

func TestFetch_HTTPMirrorFailover(t *testing.T) {
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badServer.Close()

	goodServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("good-content"))
	}))
	defer goodServer.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.xml")

	f := New(Options{Timeout: 2 * time.Second})
	err := f.Fetch(context.Background(), Target{
		URLs: []string{badServer.URL, goodServer.URL},
		Dest: dest,
	}, nil, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(dest) //nolint:gosec // test fixture path
	require.NoError(t, err)
	assert.Equal(t, "good-content", string(got))
}

func TestFetch_ChecksumMismatchRemovesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mutated-content"))
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.rpm")

	f := New(Options{})
	err := f.Fetch(context.Background(), Target{
		URLs:         []string{server.URL},
		Dest:         dest,
		ChecksumType: utils.SHA256,
		ChecksumHex:  "0000000000000000000000000000000000000000000000000000000000000",
	}, nil, nil)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestFetch_CacheHitSkipsDownload(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "cached.rpm")
	require.NoError(t, os.WriteFile(dest, []byte("already-here"), 0o644))
	sum, err := utils.FileChecksum(utils.SHA256, dest)
	require.NoError(t, err)

	f := New(Options{})
	err = f.Fetch(context.Background(), Target{
		URLs:         []string{"http://unreachable.invalid/should-not-be-hit"},
		Dest:         dest,
		ChecksumType: utils.SHA256,
		ChecksumHex:  sum,
	}, nil, nil)
	require.NoError(t, err)
}
