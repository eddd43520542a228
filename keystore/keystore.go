// Package keystore implements C4 of the repository layer: an OpenPGP key
// store used to verify repomd.xml signatures and package checksums against
// imported gpgkey= material (spec.md §4.4).
package keystore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/utils"
)

// KeyID is the 64-bit OpenPGP long key id, formatted as 16 lowercase hex
// digits (spec.md's "key" identity used for pubring bookkeeping).
type KeyID string

// Key is one imported primary key together with the signing-capable subkeys
// dnfcore will accept detached signatures from.
type Key struct {
	ID          KeyID
	Fingerprint string
	UserIDs     []string
	entity      *openpgp.Entity
}

// Store manages a pubring directory: one ASCII-armored file per imported key,
// named <keyid>.asc, so it survives being inspected or backed up by hand.
type Store struct {
	pubringDir string
}

// New creates a Store rooted at pubringDir (created on first import).
func New(pubringDir string) *Store {
	return &Store{pubringDir: pubringDir}
}

// ImportKeysFromReader parses zero or more ASCII-armored or binary OpenPGP
// public keys from r without persisting them — used to validate a gpgkey=
// URL's content before it is committed to the pubring.
func ImportKeysFromReader(r io.Reader) ([]*Key, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "read key material", err)
	}

	el, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(buf))
	if err != nil {
		el, err = openpgp.ReadKeyRing(bytes.NewReader(buf))
		if err != nil {
			return nil, errkind.Wrap(errkind.BadGPG, "parse OpenPGP key material", err)
		}
	}

	keys := make([]*Key, 0, len(el))
	for _, ent := range el {
		keys = append(keys, fromEntity(ent))
	}
	return keys, nil
}

func fromEntity(ent *openpgp.Entity) *Key {
	k := &Key{
		ID:          KeyID(fmt.Sprintf("%016x", ent.PrimaryKey.KeyId)),
		Fingerprint: fmt.Sprintf("%x", ent.PrimaryKey.Fingerprint),
		entity:      ent,
	}
	for _, ident := range ent.Identities {
		k.UserIDs = append(k.UserIDs, ident.Name)
	}
	return k
}

// ImportToPubring persists every key parsed from r into the pubring,
// one <keyid>.asc file per primary key id. Re-importing an already-known key
// id overwrites it (refreshed gpgkey= content wins). The pubring directory
// and an empty gpg.conf in it are created when missing.
func (s *Store) ImportToPubring(_ context.Context, r io.Reader) ([]*Key, error) {
	keys, err := ImportKeysFromReader(r)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDirs(s.pubringDir); err != nil {
		return nil, errkind.Wrap(errkind.CannotWriteCache, "create pubring dir", err)
	}
	confPath := filepath.Join(s.pubringDir, "gpg.conf")
	if _, err := os.Stat(confPath); os.IsNotExist(err) {
		if err := os.WriteFile(confPath, nil, 0o644); err != nil {
			return nil, errkind.Wrap(errkind.CannotWriteCache, "create pubring gpg.conf", err)
		}
	}
	for _, k := range keys {
		path := s.keyPath(k.ID)
		var out bytes.Buffer
		w, err := armor.Encode(&out, openpgp.PublicKeyType, nil)
		if err != nil {
			return nil, errkind.Wrap(errkind.Internal, "open armor encoder", err)
		}
		if err := k.entity.Serialize(w); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "serialize key", err)
		}
		if err := w.Close(); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "close armor encoder", err)
		}
		if err := utils.AtomicWriteFile(path, out.Bytes(), 0o644); err != nil {
			return nil, errkind.Wrap(errkind.CannotWriteCache, "write pubring key", err)
		}
	}
	return keys, nil
}

func (s *Store) keyPath(id KeyID) string {
	return filepath.Join(s.pubringDir, string(id)+".asc")
}

// ListPubring returns every key currently persisted in the pubring.
func (s *Store) ListPubring() ([]*Key, error) {
	entries, err := os.ReadDir(s.pubringDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.Internal, "read pubring dir", err)
	}

	var keys []*Key
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".asc" {
			continue
		}
		f, err := os.Open(filepath.Join(s.pubringDir, e.Name())) //nolint:gosec // dnfcore-managed pubring path
		if err != nil {
			return nil, errkind.Wrap(errkind.Internal, "open pubring entry", err)
		}
		ks, err := ImportKeysFromReader(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks...)
	}
	return keys, nil
}

// KeyRing builds an openpgp.EntityList containing every key in the pubring,
// for use with VerifyDetached.
func (s *Store) KeyRing() (openpgp.EntityList, error) {
	keys, err := s.ListPubring()
	if err != nil {
		return nil, err
	}
	el := make(openpgp.EntityList, 0, len(keys))
	for _, k := range keys {
		el = append(el, k.entity)
	}
	return el, nil
}

// VerifyDetached checks sig as a detached OpenPGP signature over the content
// read from signed, against every key currently in the pubring. It reports
// the signing key id on success.
//
// A primary key is accepted to verify a signature produced by any of its
// signing-capable subkeys (the first such subkey per primary key is what
// openpgp.CheckDetachedSignature itself walks), matching how dnf trusts an
// imported gpgkey= even when the repository signs with a subkey.
func (s *Store) VerifyDetached(signed, sig io.Reader) (KeyID, error) {
	ring, err := s.KeyRing()
	if err != nil {
		return "", err
	}
	if len(ring) == 0 {
		return "", errkind.New(errkind.BadGPG, "no keys imported")
	}

	signer, err := openpgp.CheckDetachedSignature(ring, signed, sig, nil)
	if err != nil {
		return "", errkind.Wrap(errkind.BadGPG, "signature verification failed", err)
	}
	if signer == nil {
		return "", errkind.New(errkind.BadGPG, "signature verification produced no signer")
	}
	return KeyID(fmt.Sprintf("%016x", signer.PrimaryKey.KeyId)), nil
}
