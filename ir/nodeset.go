package ir

import "iter"

// NodeSet is a set of nodes that iterates in insertion order. Removal leaves
// a tombstone so that deletion is O(1); tombstones are compacted once they
// outnumber live entries.
type NodeSet struct {
	index map[*Node]int
	list  []*Node
}

// NewNodeSet creates an empty set.
func NewNodeSet() *NodeSet {
	return &NodeSet{index: make(map[*Node]int)}
}

// Add inserts n if absent and reports whether it was inserted.
func (s *NodeSet) Add(n *Node) bool {
	if _, ok := s.index[n]; ok {
		return false
	}
	s.index[n] = len(s.list)
	s.list = append(s.list, n)
	return true
}

// Remove deletes n if present and reports whether it was present.
func (s *NodeSet) Remove(n *Node) bool {
	i, ok := s.index[n]
	if !ok {
		return false
	}
	delete(s.index, n)
	s.list[i] = nil
	if len(s.list) > 2*len(s.index) && len(s.list) > 16 {
		s.compact()
	}
	return true
}

// Contains reports whether n is in the set.
func (s *NodeSet) Contains(n *Node) bool {
	_, ok := s.index[n]
	return ok
}

// Len returns the number of live entries.
func (s *NodeSet) Len() int { return len(s.index) }

// All iterates the set in insertion order.
func (s *NodeSet) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range s.list {
			if n == nil {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}
}

// Snapshot returns the live entries in insertion order as a fresh slice.
func (s *NodeSet) Snapshot() []*Node {
	out := make([]*Node, 0, len(s.index))
	for _, n := range s.list {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *NodeSet) compact() {
	packed := s.list[:0]
	for _, n := range s.list {
		if n != nil {
			s.index[n] = len(packed)
			packed = append(packed, n)
		}
	}
	s.list = packed
}
