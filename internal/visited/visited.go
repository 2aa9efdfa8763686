// Package visited tracks graph nodes seen during a traversal.
package visited

import "github.com/bits-and-blooms/bitset"

// VisitedSet tracks visited nodes using a bitset and a dirty list for fast reset.
type VisitedSet struct {
	bits  *bitset.BitSet
	dirty []uint
}

// New creates a new visited set sized for capacity nodes.
func New(capacity int) *VisitedSet {
	return &VisitedSet{
		bits:  bitset.New(uint(capacity)),
		dirty: make([]uint, 0, 128),
	}
}

// Visit marks a node as visited and reports whether it was new.
// The set grows as needed.
func (v *VisitedSet) Visit(id uint32) bool {
	i := uint(id)
	if v.bits.Test(i) {
		return false
	}
	v.bits.Set(i)
	v.dirty = append(v.dirty, i)
	return true
}

// Visited returns true if the node has been visited.
func (v *VisitedSet) Visited(id uint32) bool {
	return v.bits.Test(uint(id))
}

// Count returns the number of nodes visited since the last reset.
func (v *VisitedSet) Count() int {
	return len(v.dirty)
}

// Reset clears the visited status for all nodes visited in the current session.
func (v *VisitedSet) Reset() {
	for _, i := range v.dirty {
		v.bits.Clear(i)
	}
	v.dirty = v.dirty[:0]
}
