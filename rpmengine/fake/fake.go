// Package fake is an in-memory rpmengine.Engine used by this module's own
// tests: Check validates ordering and payload presence, Order sorts into
// install/upgrade/reinstall, erase, downgrade buckets per spec.md §4.7,
// and Run "applies" the transaction by recording it rather than touching a
// real rpmdb.
package fake

import (
	"context"
	"sort"

	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/rpmengine"
)

// Engine is a deterministic, non-persistent stand-in for the host RPM
// transaction engine.
type Engine struct {
	Applied []rpmengine.Op
}

// New creates an empty fake Engine.
func New() *Engine { return &Engine{} }

var _ rpmengine.Engine = (*Engine)(nil)

// Check verifies every non-erase op names a package file.
func (e *Engine) Check(_ context.Context, ops []rpmengine.Op, flags rpmengine.Flags) error {
	if flags.SkipCheck {
		return nil
	}
	var problems []rpmengine.Problem
	for _, op := range ops {
		if op.Kind != rpmengine.OpErase && op.PackageFile == "" {
			problems = append(problems, rpmengine.Problem{
				Description: "missing package file for " + op.Package.NEVRA.String(),
			})
		}
	}
	if len(problems) > 0 {
		return &rpmengine.Error{Problems: problems}
	}
	return nil
}

// Order sorts ops into installs/upgrades/reinstalls first, then erases,
// then downgrades, matching spec.md §4.7's commit ordering.
func (e *Engine) Order(_ context.Context, ops []rpmengine.Op, _ rpmengine.Flags) ([]rpmengine.Op, error) {
	rank := func(k rpmengine.OpKind) int {
		switch k {
		case rpmengine.OpInstall, rpmengine.OpUpgrade, rpmengine.OpReinstall:
			return 0
		case rpmengine.OpErase:
			return 1
		case rpmengine.OpDowngrade:
			return 2
		default:
			return 3
		}
	}
	ordered := make([]rpmengine.Op, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Kind) < rank(ordered[j].Kind)
	})
	return ordered, nil
}

// Run "applies" ops by recording them in Applied and stepping node once per
// op, in the order given (callers must pass the output of Order).
func (e *Engine) Run(ctx context.Context, ops []rpmengine.Op, _ rpmengine.Flags, node *progress.Node) error {
	for _, op := range ops {
		e.Applied = append(e.Applied, op)
		if node != nil {
			if err := node.Done(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
