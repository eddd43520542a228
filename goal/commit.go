package goal

import (
	"context"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/repo"
	"github.com/dnfcore/dnfcore/rpmengine"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
)

// CommitMetadata carries the per-transaction values yumdb records need
// that aren't derivable from a single solvable: who is driving the
// transaction and which releasever is active.
type CommitMetadata struct {
	InstalledBy string
	ReleaseVer  string
}

// CommitOptions mirrors the RPM transaction-set flags spec.md §4.7 names,
// plus the installroot commit's yumdb side effects are rooted under.
type CommitOptions struct {
	Installroot string
	NoDocs      bool
	InstallOnly bool // disables signature checks at the transaction level
	SkipCheck   bool
}

// pathByID indexes a download batch's results by the solvable they belong
// to, so commit can attach each install/upgrade/downgrade/reinstall op to
// its fetched payload.
func pathByID(results []repo.BatchResult) map[types.SolvableID]string {
	out := make(map[types.SolvableID]string, len(results))
	for _, r := range results {
		if r.Err == nil && r.Path != "" {
			out[r.Pkg.ID] = r.Path
		}
	}
	return out
}

// buildOps assembles one rpmengine.Op per solvable in sol, in the order
// spec.md §4.7 "Commit" names: installs and upgrades (as install+replaces),
// then erases (including install-only excess and obsoleted packages), then
// downgrades (as install+obsoletes). rpmengine.Engine.Order re-sorts this
// into its own canonical order; buildOps only needs to supply a complete,
// correctly kinded set.
func buildOps(sk *sack.Sack, sol Solution, paths map[types.SolvableID]string) ([]rpmengine.Op, error) {
	var ops []rpmengine.Op

	add := func(kind rpmengine.OpKind, ids []types.SolvableID, needsFile bool) error {
		for _, id := range ids {
			p, ok := sk.Package(id)
			if !ok {
				return errkind.Newf(errkind.NoSuchPackage, "solvable %d vanished from sack before commit", id)
			}
			file := paths[id]
			if needsFile && file == "" {
				return errkind.Newf(errkind.Internal, "no downloaded payload for %s", p.NEVRA.String())
			}
			ops = append(ops, rpmengine.Op{Kind: kind, Package: p, PackageFile: file})
		}
		return nil
	}

	if err := add(rpmengine.OpInstall, sol.Install, true); err != nil {
		return nil, err
	}
	if err := add(rpmengine.OpUpgrade, sol.Upgrade, true); err != nil {
		return nil, err
	}
	if err := add(rpmengine.OpReinstall, sol.Reinstall, true); err != nil {
		return nil, err
	}
	if err := add(rpmengine.OpErase, sol.Erase, false); err != nil {
		return nil, err
	}
	if err := add(rpmengine.OpErase, sol.Obsoleted, false); err != nil {
		return nil, err
	}
	if err := add(rpmengine.OpDowngrade, sol.Downgrade, true); err != nil {
		return nil, err
	}
	return ops, nil
}

// Commit runs sol's three-pass RPM transaction (check, order, run) through
// engine, then applies yumdb side effects for every installed and erased
// package (spec.md §4.7 "Commit", "yumdb side effects"). A failure during
// Run (after RPM has begun writing) is reported as *CommitError with
// Unfinished set, signalling callers to treat the installroot as needing
// manual recovery rather than retrying blindly.
func (g *Goal) Commit(ctx context.Context, sk *sack.Sack, sol Solution, downloads []repo.BatchResult, engine rpmengine.Engine, opts CommitOptions, meta CommitMetadata, node *progress.Node) error {
	paths := pathByID(downloads)
	ops, err := buildOps(sk, sol, paths)
	if err != nil {
		return err
	}

	flags := rpmengine.Flags{
		NoDocs:           opts.NoDocs,
		DisableSignature: opts.InstallOnly,
		SkipCheck:        opts.SkipCheck,
	}

	if err := engine.Check(ctx, ops, flags); err != nil {
		return &errkind.Error{Kind: errkind.Internal, Msg: "rpm check failed", Wrapped: err}
	}

	ordered, err := engine.Order(ctx, ops, flags)
	if err != nil {
		return &errkind.Error{Kind: errkind.Internal, Msg: "rpm order failed", Wrapped: err}
	}

	if node != nil {
		node.SetNumberSteps(len(ordered))
	}
	if runErr := engine.Run(ctx, ordered, flags, node); runErr != nil {
		return &CommitError{Unfinished: true, Wrapped: runErr}
	}

	return g.applyYumDB(sk, sol, opts.Installroot, meta)
}

// applyYumDB writes yumdb records for every installed/upgraded/reinstalled
// solvable and removes the yumdb directory for every erased or obsoleted
// one. Called only after Run has returned successfully.
func (g *Goal) applyYumDB(sk *sack.Sack, sol Solution, installroot string, meta CommitMetadata) error {
	write := func(ids []types.SolvableID) error {
		for _, id := range ids {
			p, ok := sk.Package(id)
			if !ok {
				continue
			}
			rec := YumDBRecord{
				FromRepo:    p.RepoID,
				InstalledBy: meta.InstalledBy,
				Reason:      g.reasonFor(sk, id),
				ReleaseVer:  meta.ReleaseVer,
			}
			if err := writeYumDBRecord(installroot, p, rec); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(sol.Install); err != nil {
		return err
	}
	if err := write(sol.Upgrade); err != nil {
		return err
	}
	if err := write(sol.Reinstall); err != nil {
		return err
	}
	if err := write(sol.Downgrade); err != nil {
		return err
	}

	for _, id := range append(append([]types.SolvableID(nil), sol.Erase...), sol.Obsoleted...) {
		p, ok := sk.Package(id)
		if !ok {
			continue
		}
		if err := removeYumDBRecord(installroot, p); err != nil {
			return err
		}
	}
	return nil
}

// CommitError reports a commit-phase failure. Unfinished is set once RPM
// has begun applying the ordered transaction (inside Run), per spec.md
// §4.7: "the transaction is marked unfinished; callers must treat the
// system as needing manual recovery."
type CommitError struct {
	Unfinished bool
	Wrapped    error
}

func (e *CommitError) Error() string {
	if e.Unfinished {
		return "rpm transaction unfinished: " + e.Wrapped.Error()
	}
	return "rpm transaction failed: " + e.Wrapped.Error()
}

func (e *CommitError) Unwrap() error { return e.Wrapped }
