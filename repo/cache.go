package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/utils"
)

// cacheDirName computes "<id>-<hash8>" where hash8 is the first 8 hex
// characters of sha256(sourceURL + "|" + id) (spec.md §4.5 cache layout).
func cacheDirName(id, sourceURL string) string {
	full := utils.SHA256Hex([]byte(sourceURL + "|" + id))
	return fmt.Sprintf("%s-%s", id, full[:8])
}

// layout resolves the fixed subdirectory names under a repository's cache
// directory.
type layout struct {
	root     string
	repodata string
	packages string
	pubring  string
}

func newLayout(baseCacheDir, id, sourceURL string) layout {
	root := filepath.Join(baseCacheDir, cacheDirName(id, sourceURL))
	return layout{
		root:     root,
		repodata: filepath.Join(root, "repodata"),
		packages: filepath.Join(root, "packages"),
		pubring:  filepath.Join(root, "pubring"),
	}
}

func (l layout) tmp() layout {
	tmp := l
	tmp.root += ".tmp"
	tmp.repodata = filepath.Join(tmp.root, "repodata")
	tmp.packages = filepath.Join(tmp.root, "packages")
	tmp.pubring = filepath.Join(tmp.root, "pubring")
	return tmp
}

func (l layout) ensureDirs() error {
	if err := utils.EnsureDirs(l.root, l.repodata, l.packages, l.pubring); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "create repo cache layout", err)
	}
	return nil
}

// swapIn atomically replaces final with tmp: removes any stale final
// directory, then renames tmp into place (spec.md §4.5, "atomically renamed
// into place (after removing the stale target) upon success").
func swapIn(tmpRoot, finalRoot string) error {
	if err := os.RemoveAll(finalRoot); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "remove stale cache dir", err)
	}
	if err := os.Rename(tmpRoot, finalRoot); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "rename refreshed cache into place", err)
	}
	return nil
}
