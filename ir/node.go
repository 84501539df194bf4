// Package ir defines the dataflow graph representation the rewrite engine
// operates on: tagged-variant nodes, graphs with parameters and a single
// output, and a Manager that owns the live-node set and the use relation.
//
// Node identity is pointer identity. Nodes are immutable once created; the
// only way to change the shape of a managed graph is Manager.Replace, which
// rewires every use atomically and emits add/drop notifications.
package ir

import (
	"fmt"
	"reflect"
)

// Kind discriminates the node variants.
type Kind int

const (
	// KindApply is an operator applied to an ordered list of arguments.
	KindApply Kind = iota
	// KindConstant is an embedded value, possibly a *Graph or *Primitive.
	KindConstant
	// KindParameter is a formal parameter of a graph.
	KindParameter
)

func (k Kind) String() string {
	switch k {
	case KindApply:
		return "apply"
	case KindConstant:
		return "constant"
	case KindParameter:
		return "parameter"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Primitive is an interned operator. Two primitives are the same operator
// exactly when they are the same pointer; the rewrite engine's interest
// index keys on this identity rather than on name equality.
type Primitive struct {
	Name string
}

// NewPrimitive interns a fresh operator identity.
func NewPrimitive(name string) *Primitive {
	return &Primitive{Name: name}
}

func (p *Primitive) String() string { return p.Name }

// Node is one vertex of a dataflow graph.
//
// For an apply node, inputs[0] is the operator and inputs[1:] are the
// arguments. Constants own an embedded value and belong to no graph.
type Node struct {
	kind   Kind
	graph  *Graph
	inputs []*Node
	value  any
	index  int
}

// NewApply creates an application of operator to args, owned by g.
// Templates used by the pattern matcher may pass a nil graph.
func NewApply(g *Graph, operator *Node, args ...*Node) *Node {
	inputs := make([]*Node, 0, len(args)+1)
	inputs = append(inputs, operator)
	inputs = append(inputs, args...)
	return &Node{kind: KindApply, graph: g, inputs: inputs}
}

// NewConstant creates a constant node embedding v.
func NewConstant(v any) *Node {
	return &Node{kind: KindConstant, value: v}
}

func newParameter(g *Graph, index int) *Node {
	return &Node{kind: KindParameter, graph: g, index: index}
}

// Kind returns the node's variant tag.
func (n *Node) Kind() Kind { return n.kind }

// Graph returns the owning graph. Constants return nil.
func (n *Node) Graph() *Graph { return n.graph }

// Inputs returns the input list of an apply node (operator first).
// Callers must not mutate the returned slice.
func (n *Node) Inputs() []*Node { return n.inputs }

// Operator returns the operator of an apply node, or nil.
func (n *Node) Operator() *Node {
	if n.kind != KindApply {
		return nil
	}
	return n.inputs[0]
}

// Args returns the argument list of an apply node (without the operator).
func (n *Node) Args() []*Node {
	if n.kind != KindApply {
		return nil
	}
	return n.inputs[1:]
}

// Value returns the embedded value of a constant node.
func (n *Node) Value() any { return n.value }

// Index returns the position of a parameter within its graph.
func (n *Node) Index() int { return n.index }

// IsApply reports whether the node is an application.
func (n *Node) IsApply() bool { return n.kind == KindApply }

// IsConstant reports whether the node is a constant.
func (n *Node) IsConstant() bool { return n.kind == KindConstant }

// IsParameter reports whether the node is a graph parameter.
func (n *Node) IsParameter() bool { return n.kind == KindParameter }

// IsConstantGraph reports whether the node is a constant referencing a graph.
func (n *Node) IsConstantGraph() bool {
	_, ok := n.value.(*Graph)
	return n.kind == KindConstant && ok
}

// IsConstantPrimitive reports whether the node is a constant primitive operator.
func (n *Node) IsConstantPrimitive() bool {
	_, ok := n.value.(*Primitive)
	return n.kind == KindConstant && ok
}

// ConstantGraph returns the referenced graph of a constant-graph node, or nil.
func (n *Node) ConstantGraph() *Graph {
	g, _ := n.value.(*Graph)
	return g
}

// ConstantPrimitive returns the primitive of a constant-primitive node, or nil.
func (n *Node) ConstantPrimitive() *Primitive {
	p, _ := n.value.(*Primitive)
	return p
}

func (n *Node) String() string {
	switch n.kind {
	case KindApply:
		return fmt.Sprintf("apply(%s/%d)", n.inputs[0], len(n.inputs)-1)
	case KindConstant:
		return fmt.Sprintf("%v", n.value)
	case KindParameter:
		return fmt.Sprintf("%s.%d", n.graph.Name(), n.index)
	default:
		return "invalid"
	}
}

// ValueEqual compares two embedded constant values. Graphs and primitives
// compare by identity, everything else by deep equality.
func ValueEqual(a, b any) bool {
	if ga, ok := a.(*Graph); ok {
		gb, ok := b.(*Graph)
		return ok && ga == gb
	}
	if pa, ok := a.(*Primitive); ok {
		pb, ok := b.(*Primitive)
		return ok && pa == pb
	}
	return reflect.DeepEqual(a, b)
}
