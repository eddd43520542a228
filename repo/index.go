package repo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dnfcore/dnfcore/gc"
	storagejson "github.com/dnfcore/dnfcore/storage/json"
)

// PackageIndex records every package file this repository's cache believes
// it owns, keyed by file basename, so GC can tell a package on disk that is
// still referenced apart from one an interrupted download or a removed
// repo entry left behind.
type PackageIndex struct {
	Packages map[string]IndexEntry `json:"packages"`
}

// Init satisfies storage.Initer, so a fresh (file-absent) index starts with
// a non-nil map instead of panicking on first write.
func (p *PackageIndex) Init() {
	if p.Packages == nil {
		p.Packages = make(map[string]IndexEntry)
	}
}

// IndexEntry is one cached package file's bookkeeping record.
type IndexEntry struct {
	ChecksumHex string `json:"checksum"`
	Downloaded  int64  `json:"downloaded"` // unix seconds
}

func (r *Repository) indexStore() *storagejson.Store[PackageIndex] {
	return storagejson.New[PackageIndex](
		filepath.Join(r.layout.root, "index.lock"),
		filepath.Join(r.layout.root, "index.json"),
	)
}

// recordDownloaded registers a successfully fetched package file in this
// repository's index, so a later GC cycle recognizes it as referenced.
func (r *Repository) recordDownloaded(ctx context.Context, name, checksumHex string) error {
	return r.indexStore().Update(ctx, func(idx *PackageIndex) error {
		idx.Packages[name] = IndexEntry{ChecksumHex: checksumHex, Downloaded: time.Now().Unix()}
		return nil
	})
}

// GCModule returns a gc.Module[PackageIndex] for this repository: its
// snapshot is the package index, Resolve finds package files on disk with
// no corresponding index entry (left behind by an interrupted download or a
// repo that was since disabled and re-enabled under a new source URL), and
// Collect removes them. The module's Locker is the same METADATA lock
// EnsureMetadata takes, so GC never races a metadata refresh that is
// repopulating this repo's cache dir.
func (r *Repository) GCModule() gc.Module[PackageIndex] {
	return gc.Module[PackageIndex]{
		Name:   "repo:" + r.cfg.ID,
		Locker: r.locker,
		ReadDB: func(ctx context.Context) (PackageIndex, error) {
			var snap PackageIndex
			err := r.indexStore().With(ctx, func(idx *PackageIndex) error {
				snap = *idx
				return nil
			})
			return snap, err
		},
		Resolve: func(snap PackageIndex, _ map[string]any) []string {
			entries, err := os.ReadDir(r.layout.packages)
			if err != nil {
				return nil
			}
			var orphans []string
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if _, known := snap.Packages[e.Name()]; !known {
					orphans = append(orphans, filepath.Join(r.layout.packages, e.Name()))
				}
			}
			return orphans
		},
		Collect: func(ctx context.Context, paths []string) error {
			for _, p := range paths {
				if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
			return nil
		},
	}
}
