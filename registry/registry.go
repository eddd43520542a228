package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/repo"
)

// Registry discovers repository configuration from *.repo files under a
// reposdir, plus media repos found on mounted ISO-9660 trees, and keeps
// the result sorted by ascending cost (spec.md §4.8).
type Registry struct {
	mu sync.Mutex

	reposDir string
	mountsFn func() ([]string, error) // overridable in tests; default scanProcMounts

	entries    []repo.Config
	lastMounts []string
	OnChanged  func(reason string)
}

// New creates a Registry rooted at reposDir (default
// /etc/yum.repos.d when empty).
func New(reposDir string) *Registry {
	if reposDir == "" {
		reposDir = "/etc/yum.repos.d"
	}
	return &Registry{reposDir: reposDir, mountsFn: scanProcMountsISO9660}
}

// Entries returns a snapshot of the registry's current repo configs,
// sorted ascending by cost (ties by id), per spec.md §4.8.
func (r *Registry) Entries() []repo.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repo.Config, len(r.entries))
	copy(out, r.entries)
	return out
}

// Scan re-reads every *.repo file under the reposdir and rescans mounted
// media for .treeinfo trees, replacing the registry's entries. It reports
// whether anything changed relative to the previous scan (by reposdir
// content or the mount set) and invokes OnChanged when it does.
func (r *Registry) Scan() (bool, error) {
	fileEntries, err := r.scanReposDir()
	if err != nil {
		return false, err
	}

	mounts, err := r.mountsFn()
	if err != nil {
		return false, err
	}
	mediaEntries := discoverMediaRepos(mounts)

	all := append(fileEntries, mediaEntries...)
	sortEntries(all)

	r.mu.Lock()
	changed := !equalConfigs(r.entries, all) || !equalStrings(r.lastMounts, mounts)
	r.entries = all
	r.lastMounts = mounts
	onChanged := r.OnChanged
	r.mu.Unlock()

	if changed && onChanged != nil {
		onChanged("reposdir or mount set changed")
	}
	return changed, nil
}

// scanReposDir reads every *.repo file under r.reposDir. Per-file parse
// errors are collected and returned together rather than aborting the
// whole scan on the first bad file.
func (r *Registry) scanReposDir() ([]repo.Config, error) {
	files, err := filepath.Glob(filepath.Join(r.reposDir, "*.repo"))
	if err != nil {
		return nil, errkind.Wrap(errkind.ConfigParse, "glob reposdir", err)
	}
	sort.Strings(files)

	var out []repo.Config
	var problems []string
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		sections, err := parseRepoFile(content)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		var main sectionDefaults
		for _, sec := range sections {
			if sec.name == "main" {
				main = newSectionDefaults(sec.keys)
				break
			}
		}

		for _, sec := range sections {
			if sec.name == "main" {
				continue
			}
			out = append(out, configFromSection(sec.name, sec.keys, main))
		}
	}
	if len(problems) > 0 {
		return out, errkind.Newf(errkind.ConfigParse, "repo file errors: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// Enable flips enabled=true for repoID, returning false if no such repo is
// currently known.
func (r *Registry) Enable(repoID string) bool { return r.setEnabled(repoID, true) }

// Disable flips enabled=false for repoID.
func (r *Registry) Disable(repoID string) bool { return r.setEnabled(repoID, false) }

func (r *Registry) setEnabled(repoID string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == repoID {
			r.entries[i].Enabled = enabled
			return true
		}
	}
	return false
}

func sortEntries(entries []repo.Config) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Cost != entries[j].Cost {
			return entries[i].Cost < entries[j].Cost
		}
		return entries[i].ID < entries[j].ID
	})
}

func equalConfigs(a, b []repo.Config) bool {
	return reflect.DeepEqual(a, b)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// scanProcMountsISO9660 reads /proc/mounts and returns every mount point
// whose filesystem type is iso9660, the read-only media spec.md §4.8
// names as the media-repo discovery source.
func scanProcMountsISO9660() ([]string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.Internal, "read /proc/mounts", err)
	}
	defer f.Close()

	var mounts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if fields[2] == "iso9660" {
			mounts = append(mounts, fields[1])
		}
	}
	sort.Strings(mounts)
	return mounts, scanner.Err()
}
