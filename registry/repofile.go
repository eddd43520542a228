// Package registry implements C8: discovery of repository configuration
// from *.repo files under a reposdir, plus media repos found on mounted
// ISO-9660 trees (spec.md §4.8).
package registry

import (
	"strings"

	"gopkg.in/ini.v1"

	"github.com/dnfcore/dnfcore/errkind"
)

// preFilterContinuations implements spec.md §4.8's line-continuation
// pre-pass: a line whose first character is whitespace is appended to the
// previous line, with the join point collapsed to a single ';' separator
// unless the previous line already ends in '=' (in which case the
// continuation is simply concatenated, matching how a baseurl value
// continues across lines).
//
// This is not standard INI — no continuation syntax exists in the format
// gopkg.in/ini.v1 parses — so it runs as a text pre-pass before the real
// parser ever sees the file.
func preFilterContinuations(raw string) string {
	lines := strings.Split(raw, "\n")
	var out []string
	for _, line := range lines {
		if len(out) > 0 && len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			prev := out[len(out)-1]
			cont := strings.TrimSpace(line)
			if strings.HasSuffix(strings.TrimRight(prev, " \t"), "=") {
				out[len(out)-1] = prev + cont
			} else {
				out[len(out)-1] = prev + ";" + cont
			}
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// rawSection is one [section]'s raw key/value pairs, pre-typed-conversion.
type rawSection struct {
	name string
	keys map[string]string
}

// parseRepoFile runs content through the continuation pre-filter and then
// gopkg.in/ini.v1, returning every section in file order. Unknown keys are
// tolerated (spec.md §6): only keys this package recognizes are read out
// of each section, the rest are silently ignored.
func parseRepoFile(content []byte) ([]rawSection, error) {
	filtered := preFilterContinuations(string(content))

	f, err := ini.Load([]byte(filtered))
	if err != nil {
		return nil, errkind.Wrap(errkind.ConfigParse, "parse repo file", err)
	}

	var sections []rawSection
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		keys := make(map[string]string, len(sec.Keys()))
		for _, k := range sec.Keys() {
			keys[k.Name()] = k.Value()
		}
		sections = append(sections, rawSection{name: sec.Name(), keys: keys})
	}
	return sections, nil
}
