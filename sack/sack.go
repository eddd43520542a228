package sack

import (
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/dnfcore/dnfcore/solver"
	"github.com/dnfcore/dnfcore/types"
)

// RepoLoad is one repository's contribution to the pool: its id, priority,
// cost (used to break load-order ties), and the packages its primary
// metadata enumerated.
type RepoLoad struct {
	ID       string
	Priority int
	Cost     int
	Packages []types.Package
}

// Sack owns the pool of every known solvable (installed, repo, command-line)
// and the include/exclude bitmap filters layered over it (spec.md §4.6).
// A Sack is thread-confined: it must not be shared across goroutines.
type Sack struct {
	mu sync.Mutex

	pool        []types.Package // index == types.SolvableID
	byNEVRA     map[types.NEVRA]types.SolvableID
	provideName map[string][]types.SolvableID

	excludes       *PackageSet
	includes       *PackageSet
	moduleExcludes *PackageSet
	useIncludesOff map[string]bool // repo id -> true if that repo's solvables are exempt from the include filter

	consideredDirty bool
	considered      *PackageSet

	runningKernelID types.SolvableID
	haveKernelID    bool
}

// New creates an empty Sack.
func New() *Sack {
	return &Sack{
		byNEVRA:        make(map[types.NEVRA]types.SolvableID),
		provideName:    make(map[string][]types.SolvableID),
		useIncludesOff: make(map[string]bool),
	}
}

// LoadInstalled appends the host rpmdb's packages to the pool. Per spec.md
// §4.6, installed packages load first, before any repository.
func (s *Sack) LoadInstalled(pkgs []types.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pkgs {
		p.Origin = types.OriginInstalled
		s.appendLocked(p)
	}
	s.markDirtyLocked()
}

// LoadRepos appends one or more repositories' packages to the pool in
// descending priority order (ties broken by cost, then by id lexically),
// the deterministic load order spec.md §4.6 requires.
func (s *Sack) LoadRepos(loads []RepoLoad) {
	sorted := make([]RepoLoad, len(loads))
	copy(sorted, loads)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.ID < b.ID
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, load := range sorted {
		for _, p := range load.Packages {
			p.Origin = types.OriginRepo
			p.RepoID = load.ID
			s.appendLocked(p)
		}
	}
	s.markDirtyLocked()
}

// LoadCommandline appends inline-parsed command-line RPM headers to the
// synthetic "@commandline" repo.
func (s *Sack) LoadCommandline(pkgs []types.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pkgs {
		p.Origin = types.OriginCommandline
		p.RepoID = "@commandline"
		s.appendLocked(p)
	}
	s.markDirtyLocked()
}

func (s *Sack) appendLocked(p types.Package) {
	id := types.SolvableID(len(s.pool))
	p.ID = id
	s.pool = append(s.pool, p)
	s.byNEVRA[p.NEVRA] = id
	for _, prov := range p.Provides {
		name := provideName(prov)
		s.provideName[name] = append(s.provideName[name], id)
	}
	s.provideName[p.NEVRA.Name] = append(s.provideName[p.NEVRA.Name], id)
}

// provideName strips a version constraint suffix ("libfoo = 2-0" -> "libfoo")
// the way dnf's Provides/Requires strings are conventionally matched on name.
func provideName(provides string) string {
	if i := strings.IndexAny(provides, " <>="); i >= 0 {
		return provides[:i]
	}
	return provides
}

// Package returns the solvable for id.
func (s *Sack) Package(id types.SolvableID) (types.Package, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.pool) {
		return types.Package{}, false
	}
	return s.pool[id], true
}

// Len returns the total pool size (unfiltered).
func (s *Sack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

func (s *Sack) markDirtyLocked() {
	s.consideredDirty = true
}

// AddExcludes, AddIncludes, AddModuleExcludes and their Remove/Set/Reset
// siblings mutate the corresponding bitmap and mark considered dirty
// (spec.md §4.6 "Filter discipline").
func (s *Sack) AddExcludes(ids ...types.SolvableID)       { s.mutateSet(&s.excludes, true, ids) }
func (s *Sack) RemoveExcludes(ids ...types.SolvableID)    { s.mutateSet(&s.excludes, false, ids) }
func (s *Sack) ResetExcludes()                            { s.resetSet(&s.excludes) }
func (s *Sack) AddIncludes(ids ...types.SolvableID)       { s.mutateSet(&s.includes, true, ids) }
func (s *Sack) RemoveIncludes(ids ...types.SolvableID)    { s.mutateSet(&s.includes, false, ids) }
func (s *Sack) ResetIncludes()                            { s.resetSet(&s.includes) }
func (s *Sack) AddModuleExcludes(ids ...types.SolvableID) { s.mutateSet(&s.moduleExcludes, true, ids) }
func (s *Sack) RemoveModuleExcludes(ids ...types.SolvableID) {
	s.mutateSet(&s.moduleExcludes, false, ids)
}
func (s *Sack) ResetModuleExcludes() { s.resetSet(&s.moduleExcludes) }

func (s *Sack) mutateSet(set **PackageSet, add bool, ids []types.SolvableID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *set == nil {
		*set = NewPackageSet(uint(len(s.pool)))
	}
	for _, id := range ids {
		if add {
			(*set).Add(id)
		} else {
			(*set).Remove(id)
		}
	}
	s.markDirtyLocked()
}

func (s *Sack) resetSet(set **PackageSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*set = nil
	s.markDirtyLocked()
}

// SetUseIncludes toggles whether repoID's solvables participate in the
// include filter; changing it marks considered dirty.
func (s *Sack) SetUseIncludes(repoID string, use bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useIncludesOff[repoID] = !use
	s.markDirtyLocked()
}

// Considered returns the mask "(ALL \ excludes \ module_excludes) ∩
// (includes if non-empty)", rebuilding it lazily if any filter changed since
// the last call (spec.md §4.6).
func (s *Sack) Considered() *PackageSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.considered == nil || s.consideredDirty {
		s.rebuildConsideredLocked()
	}
	return s.considered
}

func (s *Sack) rebuildConsideredLocked() {
	all := NewPackageSet(uint(len(s.pool)))
	for i := range s.pool {
		all.Add(types.SolvableID(i))
	}

	result := all
	if s.excludes != nil {
		result = result.Subtract(s.excludes)
	}
	if s.moduleExcludes != nil {
		result = result.Subtract(s.moduleExcludes)
	}
	if s.includes != nil && s.includes.Count() > 0 {
		// Packages from a repo with use_includes switched off bypass the
		// include filter entirely.
		exempt := NewPackageSet(uint(len(s.pool)))
		for i, p := range s.pool {
			if s.useIncludesOff[p.RepoID] {
				exempt.Add(types.SolvableID(i))
			}
		}
		result = result.Intersect(s.includes.Union(exempt))
	}

	s.considered = result
	s.consideredDirty = false
}

// RunningKernel discovers (and caches) the solvable id of the installed
// package matching the host's running kernel version, or false if none is
// installed or the running kernel's package cannot be identified.
func (s *Sack) RunningKernel() (types.SolvableID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveKernelID {
		return s.runningKernelID, true
	}

	release := hostKernelRelease()
	if release == "" {
		return 0, false
	}
	for i, p := range s.pool {
		if p.Origin != types.OriginInstalled {
			continue
		}
		if p.NEVRA.Name != "kernel" && !strings.HasPrefix(p.NEVRA.Name, "kernel-") {
			continue
		}
		if p.NEVRA.Version+"-"+p.NEVRA.Release == release {
			s.runningKernelID = types.SolvableID(i)
			s.haveKernelID = true
			return s.runningKernelID, true
		}
	}
	return 0, false
}

// hostKernelRelease returns the host's `uname -r`-equivalent release string.
var hostKernelRelease = func() string {
	b, err := os.ReadFile("/proc/version") //nolint:gosec // host introspection, not user-controlled
	if err != nil || runtime.GOOS != "linux" {
		return ""
	}
	fields := strings.Fields(string(b))
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

var _ solver.Pool = (*Sack)(nil)

// Provides implements solver.Pool: every solvable whose Provides (or name)
// matches name, restricted to the considered mask.
func (s *Sack) Provides(name string) []types.SolvableID {
	s.mu.Lock()
	ids := append([]types.SolvableID(nil), s.provideName[name]...)
	s.mu.Unlock()

	considered := s.Considered()
	out := ids[:0]
	for _, id := range ids {
		if considered.Test(id) {
			out = append(out, id)
		}
	}
	return out
}

// Requires implements solver.Pool.
func (s *Sack) Requires(id types.SolvableID) []string {
	p, ok := s.Package(id)
	if !ok {
		return nil
	}
	return p.Requires
}

// Obsoletes implements solver.Pool.
func (s *Sack) Obsoletes(id types.SolvableID) []string {
	p, ok := s.Package(id)
	if !ok {
		return nil
	}
	return p.Obsoletes
}

// Installed implements solver.Pool.
func (s *Sack) Installed(id types.SolvableID) bool {
	p, ok := s.Package(id)
	return ok && p.Origin == types.OriginInstalled
}

// InstallOnly implements solver.Pool.
func (s *Sack) InstallOnly(id types.SolvableID) bool {
	p, ok := s.Package(id)
	return ok && p.InstallOnly
}

// BuildTime implements solver.Pool.
func (s *Sack) BuildTime(id types.SolvableID) int64 {
	p, ok := s.Package(id)
	if !ok {
		return 0
	}
	return p.BuildTime
}

// EVRCompare implements solver.Pool using RPM version-comparison semantics
// (errkind.InvalidArch is never returned here; a missing id compares lower
// than a present one).
func (s *Sack) EVRCompare(a, b types.SolvableID) int {
	pa, okA := s.Package(a)
	pb, okB := s.Package(b)
	if !okA || !okB {
		if okA != okB {
			if okA {
				return 1
			}
			return -1
		}
		return 0
	}
	return compareEVR(pa.NEVRA, pb.NEVRA)
}

func compareEVR(a, b types.NEVRA) int {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return -1
		}
		return 1
	}
	if c := compareVersionSegment(a.Version, b.Version); c != 0 {
		return c
	}
	return compareVersionSegment(a.Release, b.Release)
}

// compareVersionSegment implements RPM's tilde-aware, alnum-run version
// comparator: split each string into alternating digit/alpha runs (a
// leading "~" sorts before everything, including the empty string), compare
// digit runs numerically and alpha runs lexically.
func compareVersionSegment(a, b string) int {
	for len(a) > 0 || len(b) > 0 {
		for len(a) > 0 && !isAlnum(a[0]) && a[0] != '~' {
			a = a[1:]
		}
		for len(b) > 0 && !isAlnum(b[0]) && b[0] != '~' {
			b = b[1:]
		}

		if strings.HasPrefix(a, "~") || strings.HasPrefix(b, "~") {
			aTilde, bTilde := strings.HasPrefix(a, "~"), strings.HasPrefix(b, "~")
			if aTilde && !bTilde {
				return -1
			}
			if !aTilde && bTilde {
				return 1
			}
			a, b = a[1:], b[1:]
			continue
		}

		if len(a) == 0 || len(b) == 0 {
			break
		}

		var aRun, bRun string
		if isDigit(a[0]) {
			aRun = takeWhile(a, isDigit)
		} else {
			aRun = takeWhile(a, isAlpha)
		}
		if isDigit(b[0]) {
			bRun = takeWhile(b, isDigit)
		} else {
			bRun = takeWhile(b, isAlpha)
		}

		aIsNum := len(aRun) > 0 && isDigit(aRun[0])
		bIsNum := len(bRun) > 0 && isDigit(bRun[0])
		if aIsNum != bIsNum {
			if aIsNum {
				return 1
			}
			return -1
		}

		if aIsNum {
			aTrim := strings.TrimLeft(aRun, "0")
			bTrim := strings.TrimLeft(bRun, "0")
			if len(aTrim) != len(bTrim) {
				if len(aTrim) > len(bTrim) {
					return 1
				}
				return -1
			}
			if aTrim != bTrim {
				if aTrim > bTrim {
					return 1
				}
				return -1
			}
		} else if aRun != bRun {
			if aRun > bRun {
				return 1
			}
			return -1
		}

		a = a[len(aRun):]
		b = b[len(bRun):]
	}
	if len(a) == len(b) {
		return 0
	}
	if len(a) > 0 {
		return 1
	}
	return -1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

func takeWhile(s string, pred func(byte) bool) string {
	i := 0
	for i < len(s) && pred(s[i]) {
		i++
	}
	return s[:i]
}
