package repo

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dnfcore/dnfcore/download"
	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/keystore"
	"github.com/dnfcore/dnfcore/lock"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/utils"
)

// Repository is one configured repository's runtime handle: its static
// Config, its cache directory placement, and the state accumulated by
// EnsureMetadata (spec.md §4.5).
type Repository struct {
	mu sync.Mutex

	cfg          Config
	baseCacheDir string
	vars         utils.URLVars
	fetcher      *download.Fetcher
	locker       lock.Locker
	trust        TrustKeyFunc

	layout layout
	store  *keystore.Store

	state State
	loc   Locations
}

// New creates a Repository. locker should be a lock.Manager-issued METADATA
// lock scoped to this repo's owning operation (spec.md §5 "Per-repo cache
// dir: mutated only under a process-mode METADATA lock").
func New(cfg Config, baseCacheDir string, vars utils.URLVars, fetcher *download.Fetcher, locker lock.Locker, trust TrustKeyFunc) *Repository {
	l := newLayout(baseCacheDir, cfg.ID, cfg.sourceURL())
	return &Repository{
		cfg:          cfg,
		baseCacheDir: baseCacheDir,
		vars:         vars,
		fetcher:      fetcher,
		locker:       locker,
		trust:        trust,
		layout:       l,
		store:        keystore.New(l.pubring),
	}
}

// ID returns the repository's configured id.
func (r *Repository) ID() string { return r.cfg.ID }

// Config returns the repository's static configuration view.
func (r *Repository) Config() Config { return r.cfg }

// State returns the repository's current lifecycle state.
func (r *Repository) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CacheDir returns the repository's cache root, "<basecachedir>/<id>-<hash8>".
func (r *Repository) CacheDir() string { return r.layout.root }

// PackagesDir returns the directory package downloads land in.
func (r *Repository) PackagesDir() string { return r.layout.packages }

func (r *Repository) mirrorURLs(href string) []string {
	urls := make([]string, 0, len(r.cfg.BaseURLs))
	for _, base := range r.cfg.BaseURLs {
		urls = append(urls, joinURL(r.vars.Substitute(base), href))
	}
	return urls
}

func joinURL(base, href string) string {
	if href == "" {
		return base
	}
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + href
	}
	return base + "/" + href
}

// EnsureMetadata brings the repository's cache up to date under cfg.Sync,
// acquiring the repo's METADATA lock for the duration (spec.md §5). node,
// if non-nil, receives one Done() on success.
func (r *Repository) EnsureMetadata(ctx context.Context, node *progress.Node) error {
	return lock.WithLock(ctx, r.locker, func() error {
		if err := r.ensureMetadataLocked(ctx); err != nil {
			return err
		}
		if node != nil {
			return node.Done(ctx)
		}
		return nil
	})
}

func (r *Repository) ensureMetadataLocked(ctx context.Context) error {
	if err := utils.EnsureDirs(r.baseCacheDir); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "create base cache dir", err)
	}

	cachedRepomd := repodataPath(r.layout, "repomd.xml")
	now := time.Now()

	switch r.cfg.Sync {
	case SyncOnlyCache:
		if !utils.ValidFile(cachedRepomd) {
			return errkind.Newf(errkind.CannotFetchSource, "no cached metadata for repo %s and only-cache is set", r.cfg.ID)
		}
		return r.loadFromCache(cachedRepomd, StateLoadedCache)

	case SyncLazy:
		if utils.ValidFile(cachedRepomd) {
			return r.loadFromCache(cachedRepomd, StateLoadedCache)
		}
		return r.fetchFull(ctx, now)

	default: // SyncTryCache
		if utils.ValidFile(cachedRepomd) && isFresh(cachedRepomd, r.cfg.MetadataExpire, now) {
			return r.loadFromCache(cachedRepomd, StateLoadedCache)
		}
		if utils.ValidFile(cachedRepomd) {
			revived, err := r.tryRevive(ctx, cachedRepomd, now)
			if err != nil {
				return err
			}
			if revived {
				return r.loadFromCache(cachedRepomd, StateLoadedCache)
			}
		}
		return r.fetchFull(ctx, now)
	}
}

func (r *Repository) loadFromCache(cachedRepomd string, state State) error {
	md, err := parseRepoMD(cachedRepomd)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.loc = locationsFromRepoMD(md)
	r.state = state
	r.mu.Unlock()
	return nil
}

// tryRevive implements spec.md §4.5 revival: download only the metalink (or
// the full repomd for mirror-list sources) into a scratch dir and compare
// against the cached repomd, without touching the rest of the cache.
func (r *Repository) tryRevive(ctx context.Context, cachedRepomd string, now time.Time) (bool, error) {
	scratch, err := os.MkdirTemp(r.baseCacheDir, "revive-*")
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "create revival scratch dir", err)
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	if r.cfg.Metalink != "" {
		mlPath := filepath.Join(scratch, "metalink.xml")
		target := download.Target{URLs: []string{r.vars.Substitute(r.cfg.Metalink)}, Dest: mlPath}
		if err := r.fetcher.Fetch(ctx, target, nil, nil); err != nil {
			return false, errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "fetch metalink for revival", err), r.cfg.Metalink)
		}
		ml, err := parseMetalink(mlPath)
		if err != nil {
			return false, err
		}
		ok, err := reviveViaMetalink(ml, cachedRepomd)
		if err != nil || !ok {
			return false, err
		}
		return true, touchForward(cachedRepomd, now)
	}

	freshPath := filepath.Join(scratch, "repomd.xml")
	target := download.Target{URLs: r.resolveRepomdURLs(), Dest: freshPath}
	if err := r.fetcher.Fetch(ctx, target, nil, nil); err != nil {
		return false, errkind.Wrap(errkind.CannotFetchSource, "fetch repomd for revival", err)
	}
	ok, err := reviveViaByteCompare(cachedRepomd, freshPath)
	if err != nil || !ok {
		return false, err
	}
	return true, touchForward(cachedRepomd, now)
}

func (r *Repository) resolveRepomdURLs() []string {
	if r.cfg.MirrorList != "" {
		return []string{r.vars.Substitute(r.cfg.MirrorList)}
	}
	return r.mirrorURLs("repodata/repomd.xml")
}

// fetchFull downloads the complete metadata set into a ".tmp" sibling
// directory and atomically swaps it into place, retrying exactly once after
// a key-import dance on a signature failure (spec.md §4.5 "GPG on metadata").
func (r *Repository) fetchFull(ctx context.Context, now time.Time) error {
	tmp := r.layout.tmp()
	if err := os.RemoveAll(tmp.root); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "clear stale tmp cache dir", err)
	}
	if err := tmp.ensureDirs(); err != nil {
		return err
	}

	md, err := r.downloadMetadataInto(ctx, tmp, true)
	if err != nil {
		if errkind.Is(err, errkind.BadGPG) && len(r.cfg.GPGKeys) > 0 {
			if impErr := importConfiguredKeys(ctx, r.fetcher, r.cfg, r.storeFor(tmp), r.trust, tmp.root); impErr != nil {
				return impErr
			}
			if rmErr := os.RemoveAll(tmp.repodata); rmErr != nil {
				return errkind.Wrap(errkind.CannotWriteCache, "purge repodata before GPG retry", rmErr)
			}
			if err := utils.EnsureDirs(tmp.repodata); err != nil {
				return errkind.Wrap(errkind.CannotWriteCache, "recreate repodata dir", err)
			}
			md, err = r.downloadMetadataInto(ctx, tmp, true)
		}
		if err != nil {
			os.RemoveAll(tmp.root) //nolint:errcheck
			return err
		}
	}

	if err := swapIn(tmp.root, r.layout.root); err != nil {
		return err
	}
	if err := touchForward(repodataPath(r.layout, "repomd.xml"), now); err != nil {
		return err
	}

	r.mu.Lock()
	r.loc = locationsFromRepoMD(md)
	r.state = StateWritten
	r.mu.Unlock()
	return nil
}

// storeFor returns the keystore Store rooted at l's pubring, used so a key
// imported mid-fetch lands in the scratch dir's pubring (carried forward by
// swapIn) rather than the not-yet-committed final one.
func (r *Repository) storeFor(l layout) *keystore.Store { return keystore.New(l.pubring) }

func (r *Repository) downloadMetadataInto(ctx context.Context, l layout, verify bool) (*repoMD, error) {
	repomdPath := repodataPath(l, "repomd.xml")
	target := download.Target{URLs: r.resolveRepomdURLs(), Dest: repomdPath}
	if err := r.fetcher.Fetch(ctx, target, nil, nil); err != nil {
		return nil, err
	}

	if verify && r.cfg.RepoGPGCheck {
		sigPath := repodataPath(l, "repomd.xml.asc")
		sigTarget := download.Target{URLs: r.mirrorURLs("repodata/repomd.xml.asc"), Dest: sigPath}
		if err := r.fetcher.Fetch(ctx, sigTarget, nil, nil); err != nil {
			return nil, errkind.Wrap(errkind.BadGPG, "fetch repomd signature", err)
		}
		if err := verifyRepomdSignature(r.storeFor(l), repomdPath, sigPath); err != nil {
			return nil, err
		}
	}

	md, err := parseRepoMD(repomdPath)
	if err != nil {
		return nil, err
	}
	loc := locationsFromRepoMD(md)
	if loc.Primary != "" {
		if err := r.downloadExtension(ctx, l, loc.Primary, loc.PrimaryCksum, loc.PrimarySum); err != nil {
			return nil, err
		}
	}
	return md, nil
}

func (r *Repository) downloadExtension(ctx context.Context, l layout, href string, cksumType utils.ChecksumType, cksumHex string) error {
	dest := repodataPath(l, href)
	target := download.Target{
		URLs:         r.mirrorURLs(href),
		Dest:         dest,
		ChecksumType: cksumType,
		ChecksumHex:  cksumHex,
	}
	return r.fetcher.Fetch(ctx, target, nil, nil)
}

// PrimaryPath returns the resolved local path of the primary.xml(.gz)
// metadata, fetching it on demand if the current load skipped it.
func (r *Repository) PrimaryPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.Primary })
}

// FilelistsPath returns the resolved local path of the filelists extension,
// downloading it lazily on first use.
func (r *Repository) FilelistsPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.Filelists })
}

// PrestodeltaPath returns the resolved local path of the prestodelta
// extension, downloading it lazily on first use.
func (r *Repository) PrestodeltaPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.Prestodelta })
}

// UpdateInfoPath returns the resolved local path of the updateinfo
// extension, downloading it lazily on first use.
func (r *Repository) UpdateInfoPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.UpdateInfo })
}

// GroupsPath returns the resolved local path of the comps/groups extension,
// downloading it lazily on first use.
func (r *Repository) GroupsPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.Groups })
}

// ModulesPath returns the resolved local path of the modulemd extension,
// downloading it lazily on first use.
func (r *Repository) ModulesPath(ctx context.Context) (string, error) {
	return r.extensionPath(ctx, func(l Locations) string { return l.Modules })
}

func (r *Repository) extensionPath(ctx context.Context, pick func(Locations) string) (string, error) {
	r.mu.Lock()
	href := pick(r.loc)
	r.mu.Unlock()
	if href == "" {
		return "", nil
	}

	dest := repodataPath(r.layout, href)
	if utils.ValidFile(dest) {
		return dest, nil
	}

	return dest, lock.WithLock(ctx, r.locker, func() error {
		if utils.ValidFile(dest) {
			return nil
		}
		return r.downloadExtension(ctx, r.layout, href, "", "")
	})
}
