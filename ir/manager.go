package ir

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotLive is returned by Replace when the node being replaced is no
// longer in the manager's live set.
var ErrNotLive = errors.New("node is not live")

// Use records that User references some node at input position Index
// (position 0 is the operator of an apply node).
type Use struct {
	User  *Node
	Index int
}

// Manager tracks the live nodes of a set of graphs and the use relation
// between them. All mutation of managed graphs funnels through it: Replace
// rewires every use of a node atomically, keeps graph outputs in sync,
// releases nodes that lost their last use, and emits change notifications
// consumed by incremental indexes.
//
// A Manager is not safe for concurrent use; the engine is single-threaded
// by contract.
type Manager struct {
	log *zap.Logger

	// Events fires synchronously on every live-set change.
	Events Events

	live    *NodeSet
	uses    map[*Node][]Use
	graphs  map[*Graph]struct{}
	outputs map[*Node]map[*Graph]struct{}
}

// NewManager creates an empty manager. A nil logger disables logging.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:     log,
		live:    NewNodeSet(),
		uses:    make(map[*Node][]Use),
		graphs:  make(map[*Graph]struct{}),
		outputs: make(map[*Node]map[*Graph]struct{}),
	}
}

// Manage is a convenience that creates a manager and adds the given graphs.
func Manage(log *zap.Logger, graphs ...*Graph) *Manager {
	m := NewManager(log)
	for _, g := range graphs {
		m.AddGraph(g)
	}
	return m
}

// AddGraph brings g (and everything reachable from its output) under
// management. Adding a graph twice is a no-op. Graphs referenced by constant
// nodes are adopted automatically when those constants become live.
func (m *Manager) AddGraph(g *Graph) {
	if _, ok := m.graphs[g]; ok {
		return
	}
	m.graphs[g] = struct{}{}
	g.manager = m
	for _, p := range g.params {
		if m.live.Add(p) {
			m.Events.AddNode.emit(p)
		}
	}
	if g.output != nil {
		m.addOutput(g.output, g)
		m.acquire(g.output)
	}
}

// HasGraph reports whether g is under management.
func (m *Manager) HasGraph(g *Graph) bool {
	_, ok := m.graphs[g]
	return ok
}

// Contains reports whether n is in the live set.
func (m *Manager) Contains(n *Node) bool { return m.live.Contains(n) }

// Nodes returns a snapshot of the live set in insertion order.
func (m *Manager) Nodes() []*Node { return m.live.Snapshot() }

// NodeCount returns the size of the live set.
func (m *Manager) NodeCount() int { return m.live.Len() }

// Uses returns the uses of n in registration order. Callers must not mutate
// the returned slice.
func (m *Manager) Uses(n *Node) []Use { return m.uses[n] }

// Users returns the distinct nodes that reference n, in first-use order.
func (m *Manager) Users(n *Node) []*Node {
	var out []*Node
	seen := make(map[*Node]struct{})
	for _, u := range m.uses[n] {
		if _, ok := seen[u.User]; ok {
			continue
		}
		seen[u.User] = struct{}{}
		out = append(out, u.User)
	}
	return out
}

// Replace substitutes new for old everywhere old is used, including as a
// graph output. The rewrite is atomic with respect to the use relation: by
// the time Replace returns, every use and any pending notifications reflect
// the new shape, and old has been released if nothing keeps it alive.
func (m *Manager) Replace(old, new *Node) error {
	if old == new {
		return nil
	}
	if !m.live.Contains(old) {
		return errors.Wrapf(ErrNotLive, "replace %s", old)
	}

	// Snapshot the uses and outputs to rewire before acquiring new: if new
	// references old (a wrapping rewrite), acquire registers that edge on
	// old, and it must stay there to keep old alive under the wrapper
	// rather than being rewired into a self-cycle.
	moved := m.uses[old]
	delete(m.uses, old)
	var outs []*Graph
	for g := range m.outputs[old] {
		outs = append(outs, g)
	}
	delete(m.outputs, old)

	m.acquire(new)

	for _, u := range moved {
		u.User.inputs[u.Index] = new
		m.uses[new] = append(m.uses[new], u)
	}
	for _, g := range outs {
		g.output = new
		m.addOutput(new, g)
	}

	m.log.Debug("replaced node",
		zap.Stringer("old", old),
		zap.Stringer("new", new))

	m.release(old)
	return nil
}

func (m *Manager) setOutput(g *Graph, n *Node) {
	old := g.output
	if old == n {
		return
	}
	m.acquire(n)
	g.output = n
	m.addOutput(n, g)
	if old != nil {
		m.removeOutput(old, g)
		m.release(old)
	}
}

// acquire makes n live, registering uses of its inputs and adopting any
// graph it references as a constant.
func (m *Manager) acquire(n *Node) {
	if !m.live.Add(n) {
		return
	}
	for i, in := range n.inputs {
		m.addUse(in, Use{User: n, Index: i})
		m.acquire(in)
	}
	if g := n.ConstantGraph(); g != nil {
		m.AddGraph(g)
	}
	m.Events.AddNode.emit(n)
}

// release drops n if it has no remaining uses and is neither a parameter
// nor a graph output, then releases its inputs recursively.
func (m *Manager) release(n *Node) {
	if !m.live.Contains(n) || len(m.uses[n]) > 0 {
		return
	}
	if n.kind == KindParameter {
		return
	}
	if len(m.outputs[n]) > 0 {
		return
	}
	m.live.Remove(n)
	delete(m.uses, n)
	for i, in := range n.inputs {
		m.removeUse(in, Use{User: n, Index: i})
	}
	m.Events.DropNode.emit(n)
	for _, in := range n.inputs {
		m.release(in)
	}
}

func (m *Manager) addUse(target *Node, u Use) {
	m.uses[target] = append(m.uses[target], u)
}

func (m *Manager) removeUse(target *Node, u Use) {
	us := m.uses[target]
	for i, have := range us {
		if have == u {
			m.uses[target] = append(us[:i], us[i+1:]...)
			return
		}
	}
}

func (m *Manager) addOutput(n *Node, g *Graph) {
	gs := m.outputs[n]
	if gs == nil {
		gs = make(map[*Graph]struct{})
		m.outputs[n] = gs
	}
	gs[g] = struct{}{}
}

func (m *Manager) removeOutput(n *Node, g *Graph) {
	gs := m.outputs[n]
	delete(gs, g)
	if len(gs) == 0 {
		delete(m.outputs, n)
	}
}
