package types

// PackageOrigin records where a solvable came from: the host rpmdb, a
// configured repository, or the synthetic "@commandline" repo used for
// file-path installs.
type PackageOrigin int

const (
	OriginUnknown PackageOrigin = iota
	OriginInstalled
	OriginRepo
	OriginCommandline
)

// Package is one solvable known to a sack: an installed package, a
// candidate from a repository, or a command-line RPM. Packages are
// borrowed from the sack's pool — a *Package must not outlive the sack
// that created it, per spec.md's ownership summary.
type Package struct {
	ID     SolvableID
	NEVRA  NEVRA
	Origin PackageOrigin

	// RepoID is the originating repository id; empty for installed
	// packages and "@commandline" entries.
	RepoID string

	// Provides/Requires/Obsoletes are dependency relation strings as the
	// external solver understands them (e.g. "semolina = 2-0",
	// "installonlypkg(kernel)"). dnfcore never interprets these beyond
	// handing them to solver.Solver — the solver owns dependency semantics.
	Provides  []string
	Requires  []string
	Obsoletes []string

	// ChecksumType/ChecksumHex identify the package's content digest as
	// advertised by repository metadata, used for cache-hit checks before
	// download and for post-download verification.
	ChecksumType string
	ChecksumHex  string

	// LocationHRef is the path (relative to the repo baseurl, or an
	// absolute file path for command-line/local-media packages) of the
	// package's RPM file.
	LocationHRef string

	// BuildTime is used to order install-only retention candidates
	// (oldest first) per spec.md §4.7.
	BuildTime int64

	// InstallOnly marks packages matching an install-only name/provides
	// pattern (e.g. the kernel); the solver is told to keep all copies.
	InstallOnly bool
}
