package goal

import (
	"strings"

	"github.com/dnfcore/dnfcore/sack"
	"github.com/dnfcore/dnfcore/types"
)

// SelectorKind names one of the typed filters spec.md §4.7 lists: by name,
// arch, evr, provides, file, repo, and a sub-name-with-version variant.
type SelectorKind int

const (
	SelectByName SelectorKind = iota
	SelectByNEVRA
	SelectByEVR
	SelectByProvides
	SelectByFile
	SelectByRepo
	SelectBySubNameVersion // name substring + exact version, e.g. "kernel" "5.14"
)

// Relation is the comparison operator a selector binds with. Only Equal is
// valid for SelectByName; anything else there is a BAD_SELECTOR (spec.md
// §4.7, "invalid selectors (e.g. relational operator other than equality on
// name ...)").
type Relation int

const (
	RelEqual Relation = iota
	RelLess
	RelGreater
	RelLessEqual
	RelGreaterEqual
)

// Selector is a typed filter that binds to zero or more solvables at
// solve-time against a *sack.Sack.
type Selector struct {
	Kind     SelectorKind
	Relation Relation

	Name     string
	Arch     string
	EVR      string
	Provides string
	File     string
	RepoID   string
	Version  string // SelectBySubNameVersion's exact-match version half
}

// ByName builds an exact-name selector.
func ByName(name string) Selector { return Selector{Kind: SelectByName, Name: name, Relation: RelEqual} }

// ByNEVRA builds a full-identity selector.
func ByNEVRA(n types.NEVRA) Selector {
	return Selector{Kind: SelectByNEVRA, Name: n.Name, Arch: n.Arch, EVR: n.EVR(), Relation: RelEqual}
}

// ByProvides builds a provides-string selector.
func ByProvides(provides string) Selector {
	return Selector{Kind: SelectByProvides, Provides: provides, Relation: RelEqual}
}

// ByFile builds a file-path selector. The Sack does not index file lists,
// so resolve matches no solvable for it.
func ByFile(path string) Selector { return Selector{Kind: SelectByFile, File: path, Relation: RelEqual} }

// ByRepo builds a selector matching every solvable from one repository.
func ByRepo(repoID string) Selector {
	return Selector{Kind: SelectByRepo, RepoID: repoID, Relation: RelEqual}
}

// valid reports whether sel is structurally well-formed: SelectByName only
// accepts RelEqual, and every kind requires its discriminating field set.
func (sel Selector) valid() bool {
	switch sel.Kind {
	case SelectByName:
		return sel.Relation == RelEqual && sel.Name != ""
	case SelectByNEVRA:
		return sel.Name != "" && sel.Arch != "" && sel.EVR != ""
	case SelectByProvides:
		return sel.Provides != ""
	case SelectByFile:
		return sel.File != ""
	case SelectByRepo:
		return sel.RepoID != ""
	case SelectBySubNameVersion:
		return sel.Name != "" && sel.Version != ""
	case SelectByEVR:
		return sel.Name != "" && sel.EVR != ""
	default:
		return false
	}
}

// resolve binds sel against sk's considered package set, honoring
// sel.Relation for SelectByEVR comparisons; SelectByNEVRA matches by exact
// equality.
func (sel Selector) resolve(sk *sack.Sack) []types.SolvableID {
	considered := sk.Considered()
	var out []types.SolvableID

	switch sel.Kind {
	case SelectByProvides:
		for _, id := range sk.Provides(sel.Provides) {
			if considered.Test(id) {
				out = append(out, id)
			}
		}
		return out
	case SelectByRepo:
		considered.Iterate(func(id types.SolvableID) bool {
			if p, ok := sk.Package(id); ok && p.RepoID == sel.RepoID {
				out = append(out, id)
			}
			return true
		})
		return out
	}

	considered.Iterate(func(id types.SolvableID) bool {
		p, ok := sk.Package(id)
		if !ok {
			return true
		}
		if matchSelector(sel, p) {
			out = append(out, id)
		}
		return true
	})
	return out
}

func matchSelector(sel Selector, p types.Package) bool {
	switch sel.Kind {
	case SelectByName:
		return p.NEVRA.Name == sel.Name
	case SelectByNEVRA:
		return p.NEVRA.Name == sel.Name && p.NEVRA.Arch == sel.Arch && p.NEVRA.EVR() == sel.EVR
	case SelectByEVR:
		return p.NEVRA.Name == sel.Name && compareRelation(sel.Relation, p.NEVRA.EVR(), sel.EVR)
	case SelectByFile:
		return false // the Sack does not index file lists; see ByFile doc
	case SelectBySubNameVersion:
		return strings.Contains(p.NEVRA.Name, sel.Name) && p.NEVRA.Version == sel.Version
	default:
		return false
	}
}

// compareRelation is a lexical fallback used only for diagnostics/tests
// when a caller bypasses the solver's own EVR comparator; real EVR
// filtering for depsolve goes through Sack.EVRCompare.
func compareRelation(rel Relation, have, want string) bool {
	switch rel {
	case RelEqual:
		return have == want
	case RelLess:
		return have < want
	case RelGreater:
		return have > want
	case RelLessEqual:
		return have <= want
	case RelGreaterEqual:
		return have >= want
	default:
		return false
	}
}
