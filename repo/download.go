package repo

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/dnfcore/dnfcore/download"
	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/types"
	"github.com/dnfcore/dnfcore/utils"
)

// PackageRequest names one package to fetch (its location and checksum come
// from Pkg; mirror URLs come from the serving Repository) and an optional
// caller-provided destination directory (else the repo's own packages dir).
type PackageRequest struct {
	Pkg     types.Package
	DestDir string
}

// localFileRepo marks repositories whose href is already an absolute local
// path (command-line installs, media repos) — spec.md §4.5 "Local-file
// repos bypass the downloader and perform a verified copy".
func (r *Repository) localFileRepo() bool {
	return r.cfg.Kind == KindCommandline || r.cfg.Kind == KindMedia
}

// FetchPackage downloads one package's RPM file, trying every configured
// mirror before failing, and reports progress through child (nil-safe).
func (r *Repository) FetchPackage(ctx context.Context, req PackageRequest, child *progress.Node) (string, error) {
	destDir := req.DestDir
	if destDir == "" {
		destDir = r.layout.packages
	}
	if err := utils.EnsureDirs(destDir); err != nil {
		return "", errkind.Wrap(errkind.CannotWriteCache, "create package dest dir", err)
	}

	dest := filepath.Join(destDir, filepath.Base(req.Pkg.LocationHRef))

	var urls []string
	if r.localFileRepo() {
		urls = []string{req.Pkg.LocationHRef}
	} else {
		urls = r.mirrorURLs(req.Pkg.LocationHRef)
	}

	target := download.Target{
		URLs:         urls,
		Dest:         dest,
		ChecksumType: utils.ChecksumType(req.Pkg.ChecksumType),
		ChecksumHex:  req.Pkg.ChecksumHex,
	}

	var onProgress download.ProgressFunc
	if child != nil {
		onProgress = child.ReportBytes
	}
	if err := r.fetcher.Fetch(ctx, target, child, onProgress); err != nil {
		return "", err
	}

	if destDir == r.layout.packages {
		// Best-effort: a failure to record does not fail the download
		// itself, only makes the next GC cycle treat this file as an
		// orphan until the index catches up.
		_ = r.recordDownloaded(ctx, filepath.Base(dest), req.Pkg.ChecksumHex)
	}
	return dest, nil
}

// BatchResult is one package's outcome from DownloadBatch.
type BatchResult struct {
	Pkg  types.Package
	Path string
	Err  error
}

// DownloadBatch fetches every request in reqs with bounded parallelism
// (up to maxParallel concurrent transfers), reporting per-package progress
// through one child of parent and failing the whole batch immediately only
// when failFast is set — otherwise every error is collected into the
// returned slice alongside successes (spec.md §4.7 "Download").
//
// Concurrency is bounded by a github.com/panjf2000/ants/v2 pool sized at
// maxParallel, rather than spinning one raw goroutine per request.
func DownloadBatch(ctx context.Context, reqs []PackageFetch, maxParallel int, failFast bool, parent *progress.Node) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	if maxParallel <= 0 {
		maxParallel = 1
	}

	if parent != nil {
		parent.SetNumberSteps(len(reqs))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(maxParallel)
	if err != nil {
		for i := range results {
			results[i] = BatchResult{Pkg: reqs[i].pkg, Err: errkind.Wrap(errkind.Internal, "create download pool", err)}
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range reqs {
		idx := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fetch := reqs[idx]

			if runCtx.Err() != nil {
				results[idx] = BatchResult{Pkg: fetch.pkg, Err: errkind.Wrap(errkind.Cancelled, "batch aborted by earlier failure", runCtx.Err())}
				if parent != nil {
					_ = parent.Done(ctx)
				}
				return
			}

			var child *progress.Node
			if parent != nil {
				child = parent.NewChild()
				child.SetNumberSteps(1)
			}

			path, fetchErr := fetch.repo.FetchPackage(runCtx, PackageRequest{Pkg: fetch.pkg, DestDir: fetch.destDir}, child)
			results[idx] = BatchResult{Pkg: fetch.pkg, Path: path, Err: fetchErr}

			// child.Done() (run inside FetchPackage) only maps this
			// request's 100% into parent's current step slice; the parent
			// itself only advances once this request is fully accounted
			// for (spec.md §4.2, "at child 100% the parent advances one
			// step").
			if parent != nil {
				_ = parent.Done(ctx)
			}

			if fetchErr != nil && failFast {
				cancel()
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[idx] = BatchResult{Pkg: reqs[idx].pkg, Err: errkind.Wrap(errkind.Internal, "submit download task", err)}
		}
	}
	wg.Wait()

	return results
}

// PackageFetch binds a package to the Repository that must serve it,
// the shape DownloadBatch's callers (goal.Download) assemble from the
// solved transaction's per-package origin.
type PackageFetch struct {
	repo    *Repository
	pkg     types.Package
	destDir string
}

// NewPackageFetch builds a PackageFetch entry for DownloadBatch.
func NewPackageFetch(r *Repository, pkg types.Package, destDir string) PackageFetch {
	return PackageFetch{repo: r, pkg: pkg, destDir: destDir}
}
