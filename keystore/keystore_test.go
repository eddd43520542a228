package keystore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	ent, err := openpgp.NewEntity("dnfcore test", "", "test@example.invalid", nil)
	require.NoError(t, err)
	return ent
}

func TestImportToPubring_RoundTrip(t *testing.T) {
	ent := generateTestEntity(t)
	var armored bytes.Buffer
	w, err := armor.Encode(&armored, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, ent.Serialize(w))
	require.NoError(t, w.Close())

	dir := t.TempDir()
	store := New(filepath.Join(dir, "pubring"))

	keys, err := store.ImportToPubring(context.Background(), bytes.NewReader(armored.Bytes()))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Len(t, keys[0].ID, 16)

	listed, err := store.ListPubring()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, keys[0].ID, listed[0].ID)
}

func TestVerifyDetached_NoKeysImported(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.VerifyDetached(bytes.NewReader([]byte("data")), bytes.NewReader([]byte("sig")))
	assert.Error(t, err)
}

func TestListPubring_MissingDirIsEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist"))
	keys, err := store.ListPubring()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
