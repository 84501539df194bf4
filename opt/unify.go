package opt

import (
	"github.com/loom-lang/loom/ir"
)

// VarKind selects the binding semantics of a pattern variable.
type VarKind int

const (
	// VarNode binds a node; repeated occurrences must bind the same node.
	VarNode VarKind = iota
	// VarValue binds a constant node; repeated occurrences must bind
	// constants with equal embedded values.
	VarValue
)

// Var is a pattern variable. Identity matters: two Vars with the same name
// are distinct variables; reuse the same *Var to demand consistent binding.
type Var struct {
	name   string
	kind   VarKind
	filter func(*ir.Node) bool
}

// NewVar declares a node variable.
func NewVar(name string) *Var {
	return &Var{name: name}
}

// NewValueVar declares a variable that only matches constants and compares
// repeated occurrences by embedded value.
func NewValueVar(name string) *Var {
	return &Var{name: name, kind: VarValue}
}

// NewFilterVar declares a node variable that only matches nodes accepted by
// pred.
func NewFilterVar(name string, pred func(*ir.Node) bool) *Var {
	return &Var{name: name, filter: pred}
}

// Name returns the variable's display name.
func (v *Var) Name() string { return v.name }

func (v *Var) String() string { return "?" + v.name }

// Bindings is the accumulator threaded through one match attempt. It maps
// each variable to the node it bound.
type Bindings map[*Var]*ir.Node

// Get returns the node bound to v.
func (b Bindings) Get(v *Var) *ir.Node { return b[v] }

// Unify matches node against pattern and returns the variable bindings.
// Matching is purely structural and has no side effects.
//
// Pattern nodes are ordinary ir nodes; a constant embedding a *Var is a
// variable leaf. When multigraph is false the match fails if it would cross
// a graph boundary: every application matched below the root must belong to
// the root's own graph.
func Unify(pattern, node *ir.Node, multigraph bool) (Bindings, bool) {
	m := &matcher{bindings: make(Bindings), multigraph: multigraph}
	if node.IsApply() {
		m.rootGraph = node.Graph()
	}
	if !m.unify(pattern, node, true) {
		return nil, false
	}
	return m.bindings, true
}

type matcher struct {
	bindings   Bindings
	rootGraph  *ir.Graph
	multigraph bool
}

func (m *matcher) unify(pattern, node *ir.Node, root bool) bool {
	if v, ok := pattern.Value().(*Var); ok && pattern.IsConstant() {
		return m.bindVar(v, node)
	}
	switch pattern.Kind() {
	case ir.KindApply:
		if !node.IsApply() {
			return false
		}
		if !root && !m.multigraph && node.Graph() != m.rootGraph {
			return false
		}
		pin, nin := pattern.Inputs(), node.Inputs()
		if len(pin) != len(nin) {
			return false
		}
		for i := range pin {
			if !m.unify(pin[i], nin[i], false) {
				return false
			}
		}
		return true
	case ir.KindConstant:
		return node.IsConstant() && ir.ValueEqual(pattern.Value(), node.Value())
	default:
		// Parameters (or any pre-built node embedded in a pattern) match
		// only themselves.
		return pattern == node
	}
}

func (m *matcher) bindVar(v *Var, node *ir.Node) bool {
	if v.kind == VarValue && !node.IsConstant() {
		return false
	}
	if v.filter != nil && !v.filter(node) {
		return false
	}
	prev, bound := m.bindings[v]
	if !bound {
		m.bindings[v] = node
		return true
	}
	if v.kind == VarValue {
		return ir.ValueEqual(prev.Value(), node.Value())
	}
	return prev == node
}

// Reify instantiates a replacement template under the given bindings. New
// application nodes are created in graph g (the graph of the matched root);
// nodes bound from the original match are reused unchanged, which preserves
// sharing instead of copying subtrees.
func Reify(template *ir.Node, b Bindings, g *ir.Graph) *ir.Node {
	if v, ok := template.Value().(*Var); ok && template.IsConstant() {
		return b[v]
	}
	if !template.IsApply() {
		return template
	}
	tin := template.Inputs()
	inputs := make([]*ir.Node, len(tin))
	for i, in := range tin {
		inputs[i] = Reify(in, b, g)
	}
	return ir.NewApply(g, inputs[0], inputs[1:]...)
}
