// Package repo implements C5, the Repository lifecycle: a static
// configuration view, cache directory placement, metadata freshness and
// revival, and per-package downloads with mirror failover (spec.md §4.5).
package repo

// SyncStrategy selects how Repository.EnsureMetadata treats a stale or
// absent cache (spec.md §4.5 "Sync strategies").
type SyncStrategy int

const (
	// SyncLazy uses the cache even if expired; only fetches when absent.
	SyncLazy SyncStrategy = iota
	// SyncTryCache uses the cache if fresh, otherwise revives or fetches.
	SyncTryCache
	// SyncOnlyCache never touches the network; fails if absent or stale.
	SyncOnlyCache
)

// Config is a repository's static configuration, the union of what a
// *.repo section and the registry's own defaults supply.
type Config struct {
	ID   string
	Name string

	// Exactly one of BaseURLs, Metalink, MirrorList should be set; BaseURLs
	// wins if more than one is present, matching dnf's own precedence.
	BaseURLs   []string
	Metalink   string
	MirrorList string

	Cost     int
	Priority int

	GPGCheck     bool // package-level signature checking
	RepoGPGCheck bool // repomd.xml signature checking
	GPGKeys      []string

	// MetadataExpire is in seconds; -1 means "never expires".
	MetadataExpire int64

	Sync SyncStrategy

	// Kind distinguishes ordinary network/file repos from media repos
	// discovered via .treeinfo scanning (spec.md §4.8).
	Kind Kind

	// Enabled mirrors the .repo file's enabled= key (or a media repo's
	// implicit enablement); repo_enable/repo_disable (C9) flip this.
	Enabled bool
}

// Kind names a repository's provenance.
type Kind int

const (
	KindRegular Kind = iota
	KindMedia
	KindCommandline
)

// sourceURL returns the URL EnsureMetadata treats as this repo's identity
// for cache-directory hashing: the first base URL, or the metalink/
// mirrorlist URL when baseurl is absent.
func (c Config) sourceURL() string {
	if len(c.BaseURLs) > 0 {
		return c.BaseURLs[0]
	}
	if c.Metalink != "" {
		return c.Metalink
	}
	return c.MirrorList
}
