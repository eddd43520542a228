package goal

import (
	"os"
	"path/filepath"

	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
	"github.com/dnfcore/dnfcore/utils"
)

// InstallReason distinguishes packages a user asked for by name from those
// pulled in purely to satisfy a dependency (spec.md §6, yumdb "reason").
type InstallReason string

const (
	ReasonUser InstallReason = "user"
	ReasonDep  InstallReason = "dep"
)

// YumDBRecord is the set of per-package side-effect fields spec.md §6
// requires written under <installroot>/var/lib/yum/yumdb: which repo the
// package came from, what installed it, why it was installed, and the
// releasever active at install time.
type YumDBRecord struct {
	FromRepo    string
	InstalledBy string
	Reason      InstallReason
	ReleaseVer  string
}

// yumdbPackageDir returns <installroot>/var/lib/yum/yumdb/<name[0]>/
// <pkgid>-<name>-<version>-<release>-<arch>, the one-directory-per-package
// layout spec.md §6 specifies. pkgid is the package's checksum hex,
// truncated the way yum itself does (first 8 hex chars).
func yumdbPackageDir(installroot string, p types.Package) string {
	firstLetter := "_"
	if len(p.NEVRA.Name) > 0 {
		firstLetter = p.NEVRA.Name[:1]
	}
	pkgid := p.ChecksumHex
	if len(pkgid) > 8 {
		pkgid = pkgid[:8]
	}
	dirName := pkgid + "-" + p.NEVRA.Name + "-" + p.NEVRA.Version + "-" + p.NEVRA.Release + "-" + p.NEVRA.Arch
	return filepath.Join(installroot, "var", "lib", "yum", "yumdb", firstLetter, dirName)
}

// writeYumDBRecord writes one file per record field under the package's
// yumdb directory, no trailing newline, mode 0644 (spec.md §6), via
// utils.AtomicWriteFile so a crash mid-write never leaves a torn file.
func writeYumDBRecord(installroot string, p types.Package, rec YumDBRecord) error {
	dir := yumdbPackageDir(installroot, p)
	if err := utils.EnsureDirs(dir); err != nil {
		return err
	}

	fields := map[string]string{
		"from_repo":    rec.FromRepo,
		"installed_by": rec.InstalledBy,
		"reason":       string(rec.Reason),
		"releasever":   rec.ReleaseVer,
	}
	for key, val := range fields {
		if val == "" {
			continue
		}
		if err := utils.AtomicWriteFile(filepath.Join(dir, key), []byte(val), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// removeYumDBRecord deletes a package's yumdb directory entirely, called
// for every erased solvable during commit.
func removeYumDBRecord(installroot string, p types.Package) error {
	return os.RemoveAll(yumdbPackageDir(installroot, p))
}

// reasonFor reports whether id was explicitly requested by name (ReasonUser)
// or pulled in only to satisfy a dependency (ReasonDep), by checking
// whether any queued request's selector names it directly.
func (g *Goal) reasonFor(sk *sack.Sack, id types.SolvableID) InstallReason {
	p, ok := sk.Package(id)
	if !ok {
		return ReasonDep
	}
	for _, req := range g.Requests() {
		switch req.Selector.Kind {
		case SelectByName, SelectByNEVRA, SelectBySubNameVersion:
			if req.Selector.Name == p.NEVRA.Name {
				return ReasonUser
			}
		}
	}
	return ReasonDep
}
