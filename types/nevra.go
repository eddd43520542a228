// Package types holds the value types shared across dnfcore's packages:
// package identity (NEVRA), solvable handles, and the small enums the
// rest of the module builds on.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// SolvableID is the pool-assigned integer handle for a package. It is only
// valid for the lifetime of the *sack.Sack that issued it — never persist
// or compare IDs across two different pools.
type SolvableID uint32

// NEVRA is the canonical, pool-independent identity of a package:
// name-epoch:version-release.arch.
type NEVRA struct {
	Name    string
	Epoch   int // 0 means "no epoch", rendered without the "epoch:" prefix
	Version string
	Release string
	Arch    string
}

// String renders the NEVRA the way hawkey's hy_nevra does: the epoch
// prefix is omitted entirely when the epoch is zero.
func (n NEVRA) String() string {
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteByte('-')
	if n.Epoch != 0 {
		b.WriteString(strconv.Itoa(n.Epoch))
		b.WriteByte(':')
	}
	b.WriteString(n.Version)
	b.WriteByte('-')
	b.WriteString(n.Release)
	b.WriteByte('.')
	b.WriteString(n.Arch)
	return b.String()
}

// EVR renders epoch:version-release, the substring NEVRA comparisons key on.
func (n NEVRA) EVR() string {
	if n.Epoch == 0 {
		return n.Version + "-" + n.Release
	}
	return strconv.Itoa(n.Epoch) + ":" + n.Version + "-" + n.Release
}

// Equal reports whether two NEVRAs identify the same package.
func (n NEVRA) Equal(o NEVRA) bool {
	return n.Name == o.Name && n.Epoch == o.Epoch &&
		n.Version == o.Version && n.Release == o.Release && n.Arch == o.Arch
}

// ParseNEVRA parses "name-epoch:version-release.arch" (epoch optional),
// the inverse of String. Used when a caller hands us a NEVRA as free text
// (e.g. a command-line install target).
func ParseNEVRA(s string) (NEVRA, error) {
	arch := ""
	if i := strings.LastIndex(s, "."); i >= 0 {
		arch = s[i+1:]
		s = s[:i]
	}
	if arch == "" {
		return NEVRA{}, fmt.Errorf("parse nevra %q: missing arch", s)
	}

	relIdx := strings.LastIndex(s, "-")
	if relIdx < 0 {
		return NEVRA{}, fmt.Errorf("parse nevra %q: missing release", s)
	}
	release := s[relIdx+1:]
	rest := s[:relIdx]

	verIdx := strings.LastIndex(rest, "-")
	if verIdx < 0 {
		return NEVRA{}, fmt.Errorf("parse nevra %q: missing version", s)
	}
	name := rest[:verIdx]
	verPart := rest[verIdx+1:]

	epoch := 0
	version := verPart
	if ci := strings.Index(verPart, ":"); ci >= 0 {
		e, err := strconv.Atoi(verPart[:ci])
		if err != nil {
			return NEVRA{}, fmt.Errorf("parse nevra %q: bad epoch: %w", s, err)
		}
		epoch = e
		version = verPart[ci+1:]
	}

	if name == "" || version == "" || release == "" {
		return NEVRA{}, fmt.Errorf("parse nevra %q: incomplete", s)
	}
	return NEVRA{Name: name, Epoch: epoch, Version: version, Release: release, Arch: arch}, nil
}
