package registry

import (
	"path/filepath"

	"github.com/dnfcore/dnfcore/repo"
	"github.com/dnfcore/dnfcore/utils"
)

// discoverMediaRepos registers one media repo per mount point carrying a
// .treeinfo file, with the fixed attributes spec.md §4.8 specifies: kind
// MEDIA, cost 100, gpgcheck on, lazy sync (local files never go stale).
func discoverMediaRepos(mounts []string) []repo.Config {
	var out []repo.Config
	for _, mount := range mounts {
		treeinfo := filepath.Join(mount, ".treeinfo")
		if !utils.ValidFile(treeinfo) {
			continue
		}
		out = append(out, repo.Config{
			ID:       mediaRepoID(mount),
			Name:     "media: " + mount,
			BaseURLs: []string{mount},
			Cost:     100,
			Priority: 99,
			GPGCheck: true,
			Sync:     repo.SyncLazy,
			Kind:     repo.KindMedia,
			Enabled:  true,
		})
	}
	return out
}

// mediaRepoID derives a stable repo id from a mount path, sanitizing the
// path separators dnf's own media-repo naming scheme would otherwise choke
// on (repo ids are single path components elsewhere, e.g. cache dirs).
func mediaRepoID(mount string) string {
	id := "media-" + mount
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c == '/' || c == ' ' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}
