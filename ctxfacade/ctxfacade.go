// Package ctxfacade implements C9, the Context facade that binds the lock
// manager (C1), repositories (C5), sack (C6), and goal (C7) into the
// install/remove/update surface spec.md §4.9 describes. Named ctxfacade,
// not context, to avoid colliding with the standard library package every
// method in this module already imports.
package ctxfacade

import (
	"context"
	"sync"

	"github.com/dnfcore/dnfcore/config"
	"github.com/dnfcore/dnfcore/download"
	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/gc"
	"github.com/dnfcore/dnfcore/goal"
	"github.com/dnfcore/dnfcore/lock"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/registry"
	"github.com/dnfcore/dnfcore/repo"
	"github.com/dnfcore/dnfcore/rpmengine"
	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/types"
)

// Context binds every component this module owns into the small surface a
// command layer drives: install/remove/update, repo enable/disable, and
// the setup/run/commit lifecycle (spec.md §4.9).
type Context struct {
	mu sync.Mutex

	cfg      *config.Config
	lockMgr  *lock.Manager
	registry *registry.Registry
	fetcher  *download.Fetcher
	trust    repo.TrustKeyFunc
	solver   solver.Solver
	engine   rpmengine.Engine

	metadataLock *lock.ManagerLocker
	rpmdbLock    *lock.ManagerLocker

	repos map[string]*repo.Repository

	sk *sack.Sack
	gl *goal.Goal

	// OnInvalidate fires once per successful Run, per spec.md §4.9: "an
	// invalidate(reason) signal is emitted so the context discards its
	// sack and goal; callers holding packages must re-query."
	OnInvalidate func(reason string)
}

// New builds a Context. sv and engine bind the two external collaborators
// this module treats as opaque (spec.md §1): the SAT solver and the host
// RPM transaction engine. trust decides whether an imported gpgkey is
// accepted (nil trusts every key, matching a caller that pre-validated
// gpgkey= URLs out of band).
func New(cfg *config.Config, sv solver.Solver, engine rpmengine.Engine, trust repo.TrustKeyFunc) *Context {
	mgr := lock.NewManager(cfg.LockDir, "dnfcore")
	return &Context{
		cfg:          cfg,
		lockMgr:      mgr,
		registry:     registry.New(cfg.ReposDir),
		fetcher:      download.New(download.Options{MaxMirrorTries: cfg.MaxMirrorTries}),
		trust:        trust,
		solver:       sv,
		engine:       engine,
		metadataLock: lock.ForManager(mgr, lock.Metadata, lock.Process, "dnfcore"),
		rpmdbLock:    lock.ForManager(mgr, lock.RPMDB, lock.Process, "dnfcore"),
		repos:        make(map[string]*repo.Repository),
	}
}

// Setup scans the repos registry and (re)builds the set of live
// *repo.Repository instances, one per enabled entry, discarding any
// previously built sack/goal since the repo set may have changed.
func (c *Context) Setup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.registry.Scan(); err != nil {
		return err
	}

	uuid := c.cfg.InstallRoot // stable per-installroot substitution value for $uuid
	vars := c.cfg.URLVars(uuid)

	repos := make(map[string]*repo.Repository)
	for _, rc := range c.registry.Entries() {
		if !rc.Enabled {
			continue
		}
		repos[rc.ID] = repo.New(rc, c.cfg.CacheDir, vars, c.fetcher, c.metadataLock, c.trust)
	}

	c.repos = repos
	c.sk = nil
	c.gl = nil
	return nil
}

// RepoEnable flips enabled=true for repoID and re-runs Setup so the live
// repository set reflects it.
func (c *Context) RepoEnable(repoID string) error {
	if !c.registry.Enable(repoID) {
		return errkind.Newf(errkind.NoSuchPackage, "no such repo %q", repoID)
	}
	return c.Setup()
}

// RepoDisable flips enabled=false for repoID and re-runs Setup.
func (c *Context) RepoDisable(repoID string) error {
	if !c.registry.Disable(repoID) {
		return errkind.Newf(errkind.NoSuchPackage, "no such repo %q", repoID)
	}
	return c.Setup()
}

// CollectGarbage runs one GC cycle across every live repository's package
// cache, removing downloaded files that no repository index claims
// (interrupted downloads, or files orphaned by a baseurl change). The
// METADATA lock shared by every repository guards each repo's cycle, so GC
// never races a concurrent EnsureMetadata.
func (c *Context) CollectGarbage(ctx context.Context) error {
	c.mu.Lock()
	repos := make([]*repo.Repository, 0, len(c.repos))
	for _, r := range c.repos {
		repos = append(repos, r)
	}
	c.mu.Unlock()

	orch := gc.New()
	for _, r := range repos {
		gc.Register(orch, r.GCModule())
	}
	return orch.Run(ctx)
}

// SetupSack fetches every live repository's metadata, parses its primary,
// and assembles a fresh *sack.Sack from installed plus repo plus
// command-line packages. installed and commandline are supplied by the
// caller: enumerating the host rpmdb and parsing a command-line RPM's
// header are both out of scope for this module (spec.md §1).
func (c *Context) SetupSack(ctx context.Context, installed, commandline []types.Package, node *progress.Node) (*sack.Sack, error) {
	c.mu.Lock()
	repos := make(map[string]*repo.Repository, len(c.repos))
	for id, r := range c.repos {
		repos[id] = r
	}
	c.mu.Unlock()

	if node != nil {
		node.SetNumberSteps(len(repos))
	}

	sk := sack.New()
	if len(installed) > 0 {
		sk.LoadInstalled(installed)
	}

	var loads []sack.RepoLoad
	for id, r := range repos {
		var child *progress.Node
		if node != nil {
			child = node.NewChild()
			child.SetNumberSteps(2)
		}
		if err := r.EnsureMetadata(ctx, child); err != nil {
			return nil, err
		}

		primaryPath, err := r.PrimaryPath(ctx)
		if err != nil {
			return nil, err
		}
		pkgs, err := repo.ParsePrimary(primaryPath, id)
		if err != nil {
			return nil, err
		}
		if child != nil {
			if err := child.Done(ctx); err != nil {
				return nil, err
			}
		}

		cfg := r.Config()
		loads = append(loads, sack.RepoLoad{ID: id, Priority: cfg.Priority, Cost: cfg.Cost, Packages: pkgs})

		if node != nil {
			if err := node.Done(ctx); err != nil {
				return nil, err
			}
		}
	}
	sk.LoadRepos(loads)

	if len(commandline) > 0 {
		sk.LoadCommandline(commandline)
	}

	c.mu.Lock()
	c.sk = sk
	c.gl = goal.New(sk)
	c.mu.Unlock()
	return sk, nil
}

// Install queues an install request for a package name or NEVRA.
func (c *Context) Install(nameOrNEVRA string, optional bool) error {
	return c.queue(func(g *goal.Goal, sel goal.Selector) { g.Install(sel, optional) }, nameOrNEVRA)
}

// Remove queues an erase request by name.
func (c *Context) Remove(name string, optional bool) error {
	return c.queue(func(g *goal.Goal, sel goal.Selector) { g.Erase(sel, optional) }, name)
}

// Update queues an upgrade request by name.
func (c *Context) Update(name string, optional bool) error {
	return c.queue(func(g *goal.Goal, sel goal.Selector) { g.Upgrade(sel, optional) }, name)
}

func (c *Context) queue(apply func(*goal.Goal, goal.Selector), target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gl == nil {
		return errkind.New(errkind.Internal, "setup_sack must run before queuing goal requests")
	}

	var sel goal.Selector
	if n, err := types.ParseNEVRA(target); err == nil {
		sel = goal.ByNEVRA(n)
	} else {
		sel = goal.ByName(target)
	}
	apply(c.gl, sel)
	return nil
}

// RunOptions configures one Run pass.
type RunOptions struct {
	MaxParallelDownloads int
	FailFast             bool
	Installroot          string
	InstalledBy          string
	ReleaseVer           string
	NoDocs               bool
	InstallOnly          bool
	SkipCheck            bool
	SolverFlags          solver.Flags
}

// Run sequences depsolve (5%), download (50%), and commit (45%) into root,
// the fixed weighting spec.md §4.9 specifies. A process-mode RPMDB lock is
// acquired at entry and held for the whole pass, per spec.md §5: "rpmdb:
// mutated only inside commit() under a process-mode RPMDB lock" and "locks
// are acquired at the entry of run()." On success it invokes OnInvalidate
// and discards the Context's sack and goal, per spec.md §4.9: "callers
// holding packages must re-query."
func (c *Context) Run(ctx context.Context, root *progress.Node, opts RunOptions) (goal.Solution, error) {
	c.mu.Lock()
	sk, gl := c.sk, c.gl
	repos := make(map[string]*repo.Repository, len(c.repos))
	for id, r := range c.repos {
		repos[id] = r
	}
	c.mu.Unlock()

	if sk == nil || gl == nil {
		return goal.Solution{}, errkind.New(errkind.Internal, "setup_sack must run before run()")
	}

	if err := c.rpmdbLock.Lock(ctx); err != nil {
		return goal.Solution{}, err
	}
	defer func() { _ = c.rpmdbLock.Unlock(ctx) }() //nolint:errcheck

	if root != nil {
		root.SetSteps([]int{5, 50, 45})
	}

	var depsolveNode, downloadNode, commitNode *progress.Node
	if root != nil {
		depsolveNode = root.NewChild()
		depsolveNode.SetNumberSteps(1)
	}
	sol, err := gl.Depsolve(ctx, sk, c.solver, opts.SolverFlags)
	if err != nil {
		return goal.Solution{}, err
	}
	if depsolveNode != nil {
		if err := depsolveNode.Done(ctx); err != nil {
			return goal.Solution{}, err
		}
	}
	if root != nil {
		if err := root.Done(ctx); err != nil {
			return goal.Solution{}, err
		}
	}

	resolve := func(repoID string) (*repo.Repository, bool) {
		r, ok := repos[repoID]
		return r, ok
	}
	if root != nil {
		downloadNode = root.NewChild()
	}
	downloads, err := gl.Download(ctx, sk, sol, resolve, opts.MaxParallelDownloads, opts.FailFast, downloadNode)
	if err != nil {
		return goal.Solution{}, err
	}
	if root != nil {
		if err := root.Done(ctx); err != nil {
			return goal.Solution{}, err
		}
		commitNode = root.NewChild()
	}
	commitOpts := goal.CommitOptions{
		Installroot: opts.Installroot,
		NoDocs:      opts.NoDocs,
		InstallOnly: opts.InstallOnly,
		SkipCheck:   opts.SkipCheck,
	}
	meta := goal.CommitMetadata{InstalledBy: opts.InstalledBy, ReleaseVer: opts.ReleaseVer}
	if err := gl.Commit(ctx, sk, sol, downloads, c.engine, commitOpts, meta, commitNode); err != nil {
		return goal.Solution{}, err
	}
	if root != nil {
		if err := root.Done(ctx); err != nil {
			return goal.Solution{}, err
		}
	}

	c.mu.Lock()
	c.sk = nil
	c.gl = nil
	onInvalidate := c.OnInvalidate
	c.mu.Unlock()

	if onInvalidate != nil {
		onInvalidate("commit succeeded")
	}
	return sol, nil
}
