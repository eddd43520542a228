package repo

import (
	"compress/gzip"
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/types"
)

// primaryXML mirrors the subset of createrepo_c's primary.xml this module
// needs to populate a Sack: package identity, its dependency relations, and
// its cache-relevant location/checksum (spec.md §4.6, "each enabled
// repository's primary").
type primaryXML struct {
	XMLName  xml.Name `xml:"metadata"`
	Packages []struct {
		Name string `xml:"name"`
		Arch string `xml:"arch"`
		Version struct {
			Epoch string `xml:"epoch,attr"`
			Ver   string `xml:"ver,attr"`
			Rel   string `xml:"rel,attr"`
		} `xml:"version"`
		Checksum struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"checksum"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
		Time struct {
			File  int64 `xml:"file,attr"`
			Build int64 `xml:"build,attr"`
		} `xml:"time"`
		Format struct {
			Provides  entryList `xml:"provides"`
			Requires  entryList `xml:"requires"`
			Obsoletes entryList `xml:"obsoletes"`
		} `xml:"format"`
	} `xml:"package"`
}

type entryList struct {
	Entries []struct {
		Name  string `xml:"name,attr"`
		Flags string `xml:"flags,attr"`
		Ver   string `xml:"ver,attr"`
	} `xml:"entry"`
}

// renderEntries formats each <rpm:entry> the way solver.Pool callers expect
// a provides/requires/obsoletes string: "name" alone, or "name FLAGS ver"
// when a version constraint is present.
func renderEntries(list entryList) []string {
	out := make([]string, 0, len(list.Entries))
	for _, e := range list.Entries {
		if e.Ver == "" {
			out = append(out, e.Name)
			continue
		}
		out = append(out, e.Name+" "+e.Flags+" "+e.Ver)
	}
	return out
}

// openMaybeGzip opens path, transparently decompressing it if its first two
// bytes are the gzip magic number (createrepo_c ships primary.xml.gz, but a
// caller-supplied or test fixture file may be stored uncompressed).
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // dnfcore-managed cache path
	if err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "open primary metadata", err)
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, errkind.Wrap(errkind.FileInvalid, "gunzip primary metadata", err)
		}
		return gzipReadCloser{gz: gz, f: f}, nil
	}
	return f, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g gzipReadCloser) Close() error {
	_ = g.gz.Close()
	return g.f.Close()
}

// ParsePrimary reads path (optionally gzip-compressed) and returns one
// types.Package per <package> entry, tagged with repoID as Origin
// OriginRepo (spec.md §4.6 "each enabled repository's primary").
func ParsePrimary(path, repoID string) ([]types.Package, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	var doc primaryXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errkind.Wrap(errkind.FileInvalid, "parse primary.xml", err)
	}

	pkgs := make([]types.Package, 0, len(doc.Packages))
	for _, p := range doc.Packages {
		epoch := 0
		if p.Version.Epoch != "" {
			if e, err := strconv.Atoi(p.Version.Epoch); err == nil {
				epoch = e
			}
		}
		pkgs = append(pkgs, types.Package{
			NEVRA: types.NEVRA{
				Name:    p.Name,
				Epoch:   epoch,
				Version: p.Version.Ver,
				Release: p.Version.Rel,
				Arch:    p.Arch,
			},
			Origin:       types.OriginRepo,
			RepoID:       repoID,
			Provides:     renderEntries(p.Format.Provides),
			Requires:     renderEntries(p.Format.Requires),
			Obsoletes:    renderEntries(p.Format.Obsoletes),
			ChecksumType: p.Checksum.Type,
			ChecksumHex:  p.Checksum.Value,
			LocationHRef: p.Location.Href,
			BuildTime:    p.Time.Build,
		})
	}
	return pkgs, nil
}
