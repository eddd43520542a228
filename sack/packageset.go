// Package sack owns the pool of known packages (installed, repository, and
// command-line) and the bitmap-filtered views over it (spec.md §4.6).
package sack

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/dnfcore/dnfcore/types"
)

// PackageSet is an immutable-feeling, copy-on-write view over a bitmap of
// types.SolvableID membership, backed by github.com/bits-and-blooms/bitset
// for O(1) test/set and popcount-table-based counting (spec.md §4.6,
// "counting via a popcount table").
type PackageSet struct {
	bits *bitset.BitSet
}

// NewPackageSet creates an empty set sized to hold ids up to capacity-1.
func NewPackageSet(capacity uint) *PackageSet {
	return &PackageSet{bits: bitset.New(capacity)}
}

// Add sets id's membership bit.
func (s *PackageSet) Add(id types.SolvableID) {
	s.bits.Set(uint(id))
}

// Remove clears id's membership bit.
func (s *PackageSet) Remove(id types.SolvableID) {
	s.bits.Clear(uint(id))
}

// Test reports whether id is a member.
func (s *PackageSet) Test(id types.SolvableID) bool {
	return s.bits.Test(uint(id))
}

// Count returns the number of members.
func (s *PackageSet) Count() uint {
	return s.bits.Count()
}

// Clone returns an independent copy.
func (s *PackageSet) Clone() *PackageSet {
	return &PackageSet{bits: s.bits.Clone()}
}

// Union returns a new set containing members of both s and other.
func (s *PackageSet) Union(other *PackageSet) *PackageSet {
	return &PackageSet{bits: s.bits.Union(other.bits)}
}

// Intersect returns a new set containing members present in both s and other.
func (s *PackageSet) Intersect(other *PackageSet) *PackageSet {
	return &PackageSet{bits: s.bits.Intersection(other.bits)}
}

// Subtract returns a new set containing members of s not present in other.
func (s *PackageSet) Subtract(other *PackageSet) *PackageSet {
	return &PackageSet{bits: s.bits.Difference(other.bits)}
}

// Iterate calls fn for every member id in ascending order, stopping early if
// fn returns false.
func (s *PackageSet) Iterate(fn func(id types.SolvableID) bool) {
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		if !fn(types.SolvableID(i)) {
			return
		}
	}
}

// ToSlice materializes the set's members in ascending id order, the shape
// the callback-based "enumerate current matches" API (spec.md §4.6) wraps.
func (s *PackageSet) ToSlice() []types.SolvableID {
	out := make([]types.SolvableID, 0, s.Count())
	s.Iterate(func(id types.SolvableID) bool {
		out = append(out, id)
		return true
	})
	return out
}

// At returns the id at the given ascending index among current members,
// backing the index-to-id lookup spec.md §4.6 names.
func (s *PackageSet) At(index int) (types.SolvableID, bool) {
	i := 0
	var found types.SolvableID
	ok := false
	s.Iterate(func(id types.SolvableID) bool {
		if i == index {
			found, ok = id, true
			return false
		}
		i++
		return true
	})
	return found, ok
}
