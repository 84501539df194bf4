package ir

import "fmt"

var graphSeq int

// Graph owns an ordered list of parameters and a single output node. A graph
// with a non-nil parent is a closure: nodes reachable from its output may
// belong to an ancestor graph's scope (free variables).
type Graph struct {
	name    string
	params  []*Node
	output  *Node
	parent  *Graph
	manager *Manager
}

// NewGraph creates an empty, unmanaged graph. The name is only used for
// rendering; an empty name gets a generated one.
func NewGraph(name string) *Graph {
	if name == "" {
		graphSeq++
		name = fmt.Sprintf("g%d", graphSeq)
	}
	return &Graph{name: name}
}

// NewClosure creates a graph nested inside parent. The parent link is
// non-owning; it only widens the scope the graph's nodes may reference.
func NewClosure(name string, parent *Graph) *Graph {
	g := NewGraph(name)
	g.parent = parent
	return g
}

// AddParameter appends a fresh parameter node and returns it. Parameters
// must be added before the graph is handed to a Manager.
func (g *Graph) AddParameter() *Node {
	if g.manager != nil {
		panic("ir: AddParameter on a managed graph")
	}
	p := newParameter(g, len(g.params))
	g.params = append(g.params, p)
	return p
}

// Parameters returns the parameter list. Callers must not mutate it.
func (g *Graph) Parameters() []*Node { return g.params }

// Output returns the graph's output node.
func (g *Graph) Output() *Node { return g.output }

// SetOutput sets the graph's output. On a managed graph this funnels through
// the Manager so that use tracking and notifications stay consistent.
func (g *Graph) SetOutput(n *Node) {
	if g.manager != nil {
		g.manager.setOutput(g, n)
		return
	}
	g.output = n
}

// Parent returns the enclosing graph, or nil if the graph is not a closure.
func (g *Graph) Parent() *Graph { return g.parent }

// HasAncestor reports whether a is g or one of g's ancestors.
func (g *Graph) HasAncestor(a *Graph) bool {
	for p := g; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

// Name returns the graph's debug name.
func (g *Graph) Name() string { return g.name }

func (g *Graph) String() string { return g.name }
