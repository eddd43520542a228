package repo

import (
	"context"
	"os"

	"github.com/dnfcore/dnfcore/download"
	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/keystore"
)

// TrustKeyFunc lets the caller approve an imported gpgkey= before it is
// trusted, keyed on the same fields spec.md §4.5 names: key id, fingerprint,
// userids, and the URL it came from. A nil func trusts every key, matching
// dnf's non-interactive default.
type TrustKeyFunc func(key *keystore.Key, source string) bool

// verifyRepomdSignature checks sig (already on disk) as a detached OpenPGP
// signature over repomdPath, against store's current pubring.
func verifyRepomdSignature(store *keystore.Store, repomdPath, sigPath string) error {
	signed, err := os.Open(repomdPath) //nolint:gosec // dnfcore-managed cache path
	if err != nil {
		return errkind.Wrap(errkind.FileInvalid, "open repomd.xml for verification", err)
	}
	defer signed.Close() //nolint:errcheck

	sig, err := os.Open(sigPath) //nolint:gosec // dnfcore-managed cache path
	if err != nil {
		return errkind.Wrap(errkind.FileInvalid, "open repomd.xml.asc", err)
	}
	defer sig.Close() //nolint:errcheck

	_, err = store.VerifyDetached(signed, sig)
	return err
}

// importConfiguredKeys downloads every cfg.GPGKeys URL and imports it into
// store, honouring trust before each import (spec.md §4.5 GPG key-import
// dance). Used on the retry path after a BAD_GPG failure.
func importConfiguredKeys(ctx context.Context, fetcher *download.Fetcher, cfg Config, store *keystore.Store, trust TrustKeyFunc, scratchDir string) error {
	for _, keyURL := range cfg.GPGKeys {
		dest, err := os.CreateTemp(scratchDir, "gpgkey-*")
		if err != nil {
			return errkind.Wrap(errkind.Internal, "create gpgkey scratch file", err)
		}
		path := dest.Name()
		_ = dest.Close()

		target := download.Target{URLs: []string{keyURL}, Dest: path}
		if err := fetcher.Fetch(ctx, target, nil, nil); err != nil {
			_ = os.Remove(path)
			return errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "fetch gpgkey", err), keyURL)
		}

		f, err := os.Open(path) //nolint:gosec // dnfcore-managed scratch path
		if err != nil {
			return errkind.Wrap(errkind.Internal, "open fetched gpgkey", err)
		}
		keys, err := keystore.ImportKeysFromReader(f)
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
			return err
		}

		if trust != nil {
			for _, k := range keys {
				if !trust(k, keyURL) {
					_ = os.Remove(path)
					return errkind.Newf(errkind.BadGPG, "key %s from %s not trusted", k.ID, keyURL)
				}
			}
		}

		f2, err := os.Open(path) //nolint:gosec // dnfcore-managed scratch path
		if err != nil {
			return errkind.Wrap(errkind.Internal, "reopen fetched gpgkey", err)
		}
		_, err = store.ImportToPubring(ctx, f2)
		_ = f2.Close()
		_ = os.Remove(path)
		if err != nil {
			return err
		}
	}
	return nil
}
