package opt

import (
	"go.uber.org/multierr"

	"github.com/loom-lang/loom/ir"
)

// NodeMap groups rules by interest so a node can cheaply find only the
// rules that could possibly match it. It is built once and then read-only:
// Get performs no locking and no allocation beyond the result slice.
type NodeMap struct {
	buckets map[Interest][]Rule
}

// NewNodeMap creates an empty rule index.
func NewNodeMap() *NodeMap {
	return &NodeMap{buckets: make(map[Interest][]Rule)}
}

// Register indexes rule under the given interests, or under the rule's own
// interest when none are given. Invalid interests are rejected immediately.
func (m *NodeMap) Register(rule Rule, interests ...Interest) error {
	if len(interests) == 0 {
		interests = []Interest{rule.Interest()}
	}
	for _, i := range interests {
		if err := i.validate(); err != nil {
			return err
		}
	}
	for _, i := range interests {
		m.buckets[i] = append(m.buckets[i], rule)
	}
	return nil
}

// RegisterAll registers every rule under its own interest, collecting all
// definition errors instead of stopping at the first.
func (m *NodeMap) RegisterAll(rules ...Rule) error {
	var err error
	for _, r := range rules {
		err = multierr.Append(err, m.Register(r))
	}
	return err
}

// Get returns the candidate rules for node: wildcard rules first, then the
// rules indexed under the node's application interest, each bucket in
// insertion order.
func (m *NodeMap) Get(node *ir.Node) []Rule {
	res := m.buckets[Wildcard]
	i, ok := nodeInterest(node)
	if !ok {
		return res
	}
	bucket := m.buckets[i]
	if len(bucket) == 0 {
		return res
	}
	out := make([]Rule, 0, len(res)+len(bucket))
	out = append(out, res...)
	out = append(out, bucket...)
	return out
}
