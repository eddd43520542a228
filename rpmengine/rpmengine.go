// Package rpmengine defines the boundary to the host's RPM transaction
// engine, the third external collaborator from spec.md §1 ("the host's RPM
// transaction engine"). Goal's commit() (C7) depends only on the Engine
// interface; rpmengine/fake provides an in-memory implementation used by
// this module's own tests.
package rpmengine

import (
	"context"

	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/types"
)

// OpKind names one planned transaction element's effect, matching the
// ordering spec.md §4.7 requires for Commit: installs/upgrades, then
// erases, then downgrades.
type OpKind int

const (
	OpInstall OpKind = iota
	OpUpgrade
	OpErase
	OpDowngrade
	OpReinstall
)

// Op is one planned RPM transaction element: the target solvable, its
// action, and the path to its payload (empty for OpErase).
type Op struct {
	Kind        OpKind
	Package     types.Package
	PackageFile string // absolute path to the downloaded/cached RPM; empty for erase
}

// Flags mirror the RPM transaction-set flags spec.md §4.7 names.
type Flags struct {
	NoDocs           bool
	DisableSignature bool // install-only mode: caller already validated
	SkipCheck        bool
}

// Problem is one diagnostic from a failed check/order/run pass.
type Problem struct {
	Description string
}

// Error wraps one or more engine-reported Problems (spec.md §7: "Commit:
// INTERNAL_ERROR with the RPM problem list appended verbatim").
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	if len(e.Problems) == 0 {
		return "rpm transaction failed"
	}
	msg := "rpm transaction failed: " + e.Problems[0].Description
	for _, p := range e.Problems[1:] {
		msg += "; " + p.Description
	}
	return msg
}

// Engine runs an ordered RPM transaction against the installroot. Check,
// Order, and Run correspond to spec.md §4.7's three-pass Commit sequence.
// Per-callback progress is reported through node, matching operations
// against ops by package identity.
type Engine interface {
	Check(ctx context.Context, ops []Op, flags Flags) error
	Order(ctx context.Context, ops []Op, flags Flags) ([]Op, error)
	Run(ctx context.Context, ops []Op, flags Flags, node *progress.Node) error
}
