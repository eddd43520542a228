package repo

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"time"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/utils"
)

// repoMD mirrors the subset of repomd.xml this module consumes: one
// <data type="..."> entry per metadata extension, each carrying a checksum
// and a location relative to the repository root.
type repoMD struct {
	XMLName xml.Name `xml:"repomd"`
	Data    []struct {
		Type     string `xml:"type,attr"`
		Checksum struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"checksum"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
		Timestamp int64 `xml:"timestamp"`
	} `xml:"data"`
}

// Locations resolves the hrefs (relative to the repo's baseurl) for the
// extensions spec.md §4.5 names resolved local paths for.
type Locations struct {
	Primary      string
	Filelists    string
	Prestodelta  string
	UpdateInfo   string
	Groups       string
	Modules      string
	PrimaryCksum utils.ChecksumType
	PrimarySum   string
}

func parseRepoMD(path string) (*repoMD, error) {
	f, err := os.Open(path) //nolint:gosec // dnfcore-managed cache path
	if err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "open repomd.xml", err)
	}
	defer f.Close() //nolint:errcheck

	var md repoMD
	if err := xml.NewDecoder(f).Decode(&md); err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "parse repomd.xml", err)
	}
	return &md, nil
}

func locationsFromRepoMD(md *repoMD) Locations {
	var loc Locations
	for _, d := range md.Data {
		switch d.Type {
		case "primary":
			loc.Primary = d.Location.Href
			loc.PrimaryCksum = utils.ChecksumType(d.Checksum.Type)
			loc.PrimarySum = d.Checksum.Value
		case "filelists":
			loc.Filelists = d.Location.Href
		case "prestodelta":
			loc.Prestodelta = d.Location.Href
		case "updateinfo":
			loc.UpdateInfo = d.Location.Href
		case "group", "group_gz":
			loc.Groups = d.Location.Href
		case "modules":
			loc.Modules = d.Location.Href
		}
	}
	return loc
}

// metalink mirrors the subset of a metalink XML document this module needs
// to revive a stale cache: the per-algorithm hashes advertised for the
// target file (repomd.xml itself).
type metalink struct {
	XMLName xml.Name `xml:"metalink"`
	Files   struct {
		File struct {
			Hashes []struct {
				Type  string `xml:"type,attr"`
				Value string `xml:",chardata"`
			} `xml:"hash"`
			URLs []struct {
				URL string `xml:",chardata"`
			} `xml:"url"`
		} `xml:"file"`
	} `xml:"files"`
}

func parseMetalink(path string) (*metalink, error) {
	f, err := os.Open(path) //nolint:gosec // dnfcore-managed cache path
	if err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "open metalink", err)
	}
	defer f.Close() //nolint:errcheck

	var ml metalink
	if err := xml.NewDecoder(f).Decode(&ml); err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "parse metalink", err)
	}
	return &ml, nil
}

func (ml *metalink) mirrorURLs() []string {
	urls := make([]string, 0, len(ml.Files.File.URLs))
	for _, u := range ml.Files.File.URLs {
		urls = append(urls, u.URL)
	}
	return urls
}

// recognizedHashes returns the recognized (sha256, sha512) hashes a metalink
// advertises for its target file, keyed by algorithm.
func (ml *metalink) recognizedHashes() map[utils.ChecksumType]string {
	out := make(map[utils.ChecksumType]string)
	for _, h := range ml.Files.File.Hashes {
		switch utils.ChecksumType(h.Type) {
		case utils.SHA256, utils.SHA512:
			out[utils.ChecksumType(h.Type)] = h.Value
		}
	}
	return out
}

// isFresh implements spec.md §4.5 "Freshness" on the mtime of path: true
// forever when metadataExpire is -1, otherwise true while now-mtime(path) is
// within metadataExpire seconds. EnsureMetadata passes the cached
// repomd.xml (the file fetches and revivals touch forward); the primary
// file's own mtime is not consulted.
func isFresh(path string, metadataExpire int64, now time.Time) bool {
	if metadataExpire < 0 {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) <= time.Duration(metadataExpire)*time.Second
}

// reviveViaMetalink reports whether cachedRepomd may be declared fresh by
// recomputing every hash a metalink advertises over it; any mismatch, or an
// empty hash set, rejects revival (spec.md §4.5).
func reviveViaMetalink(ml *metalink, cachedRepomd string) (bool, error) {
	hashes := ml.recognizedHashes()
	if len(hashes) == 0 {
		return false, nil
	}
	for typ, want := range hashes {
		ok, err := utils.VerifyFileChecksum(typ, cachedRepomd, want)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// reviveViaByteCompare implements the mirror-list revival path: the freshly
// downloaded repomd must be byte-identical to the cached one.
func reviveViaByteCompare(cachedRepomd, freshRepomd string) (bool, error) {
	cachedSum, err := utils.SHA256File(cachedRepomd)
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "checksum cached repomd", err)
	}
	freshSum, err := utils.SHA256File(freshRepomd)
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "checksum fresh repomd", err)
	}
	return cachedSum == freshSum, nil
}

// touchForward advances path's mtime to now, used after a successful
// revival so the next isFresh check starts its expiry window over.
func touchForward(path string, now time.Time) error {
	if err := os.Chtimes(path, now, now); err != nil {
		return errkind.Wrap(errkind.Internal, "touch revived metadata", err)
	}
	return nil
}

func repodataPath(l layout, href string) string {
	return filepath.Join(l.repodata, filepath.Base(href))
}
