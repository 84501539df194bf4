package ir

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Format renders a graph as an indented tree rooted at its output. Shared
// subtrees are printed once and referenced by a stable per-render id, so the
// output is deterministic for a given graph shape and usable both in debug
// logs and in test failure messages.
func Format(g *Graph) string {
	f := &formatter{ids: make(map[*Node]int)}
	root := treeprint.New()
	root.SetValue(fmt.Sprintf("graph %s(%d params)", g.Name(), len(g.Parameters())))
	if g.Output() == nil {
		root.AddNode("<no output>")
	} else {
		f.walk(root, g.Output())
	}
	return root.String()
}

// FormatNode renders the subtree rooted at n.
func FormatNode(n *Node) string {
	f := &formatter{ids: make(map[*Node]int)}
	root := treeprint.New()
	root.SetValue("node")
	f.walk(root, n)
	return root.String()
}

type formatter struct {
	ids  map[*Node]int
	next int
}

func (f *formatter) walk(branch treeprint.Tree, n *Node) {
	if id, ok := f.ids[n]; ok {
		branch.AddNode(fmt.Sprintf("^%d", id))
		return
	}
	switch n.Kind() {
	case KindApply:
		f.next++
		f.ids[n] = f.next
		b := branch.AddBranch(fmt.Sprintf("@%d %s", f.ids[n], f.label(n.Operator())))
		if op := n.Operator(); op != nil && !op.IsConstant() {
			f.walk(b, op)
		}
		for _, in := range n.Args() {
			f.walk(b, in)
		}
	case KindConstant:
		if g := n.ConstantGraph(); g != nil {
			branch.AddNode(fmt.Sprintf("graph:%s", g.Name()))
			return
		}
		branch.AddNode(fmt.Sprintf("const:%v", n.Value()))
	case KindParameter:
		branch.AddNode(fmt.Sprintf("param:%s.%d", n.Graph().Name(), n.Index()))
	}
}

func (f *formatter) label(op *Node) string {
	if op == nil {
		return "?"
	}
	if p := op.ConstantPrimitive(); p != nil {
		return p.Name
	}
	if g := op.ConstantGraph(); g != nil {
		return "call " + g.Name()
	}
	if op.IsConstant() {
		return fmt.Sprintf("const:%v", op.Value())
	}
	return op.Kind().String()
}
