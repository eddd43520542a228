package goal

import (
	"context"
	"path/filepath"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/repo"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
	"github.com/dnfcore/dnfcore/utils"
)

// RepoResolver maps a package's origin repo id to the live *repo.Repository
// that must serve its download, the binding the Context facade (C9) owns.
type RepoResolver func(repoID string) (*repo.Repository, bool)

// cacheDirFor is overridable in tests; production callers always resolve
// through the owning repo's own PackagesDir.
var cacheDirFor = func(r *repo.Repository) string { return r.PackagesDir() }

// planDownloads enumerates (installs ∪ upgrades ∪ downgrades ∪ reinstalls),
// drops anything already present in the local cache by checksum match, and
// returns the remainder as repo.PackageFetch entries for DownloadBatch
// (spec.md §4.7 "Download").
func planDownloads(sk *sack.Sack, sol Solution, resolve RepoResolver) ([]repo.PackageFetch, error) {
	ids := append([]types.SolvableID(nil), sol.Install...)
	ids = append(ids, sol.Upgrade...)
	ids = append(ids, sol.Downgrade...)
	ids = append(ids, sol.Reinstall...)

	var fetches []repo.PackageFetch
	for _, id := range ids {
		p, ok := sk.Package(id)
		if !ok {
			continue
		}
		r, ok := resolve(p.RepoID)
		if !ok {
			return nil, errkind.Newf(errkind.CannotFetchSource, "no repository bound for %s (repo %q)", p.NEVRA.String(), p.RepoID)
		}

		destDir := cacheDirFor(r)
		dest := filepath.Join(destDir, filepath.Base(p.LocationHRef))
		if p.ChecksumHex != "" && utils.ValidFile(dest) {
			if ok, _ := utils.VerifyFileChecksum(utils.ChecksumType(p.ChecksumType), dest, p.ChecksumHex); ok {
				continue // already cached, checksum matches: skip per spec.md §4.7
			}
		}

		fetches = append(fetches, repo.NewPackageFetch(r, p, destDir))
	}
	return fetches, nil
}

// Download fetches every package sol's commit will need, skipping local
// cache hits, with up to maxParallel concurrent transfers. Failure of any
// single package fails the whole batch only when failFast is set;
// otherwise every per-package error is returned collected at the end
// (spec.md §4.7 "Download").
func (g *Goal) Download(ctx context.Context, sk *sack.Sack, sol Solution, resolve RepoResolver, maxParallel int, failFast bool, node *progress.Node) ([]repo.BatchResult, error) {
	fetches, err := planDownloads(sk, sol, resolve)
	if err != nil {
		return nil, err
	}
	if len(fetches) == 0 {
		if node != nil {
			node.SetNumberSteps(1)
			return nil, node.Done(ctx)
		}
		return nil, nil
	}

	results := repo.DownloadBatch(ctx, fetches, maxParallel, failFast, node)

	var failed []Problem
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, Problem{Description: res.Pkg.NEVRA.String() + ": " + res.Err.Error()})
		}
	}
	if len(failed) > 0 {
		return results, &Error{Kind: errkind.CannotFetchSource, Problems: failed}
	}
	return results, nil
}
