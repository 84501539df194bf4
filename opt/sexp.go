package opt

import (
	"github.com/loom-lang/loom/ir"
)

// SExp is an application pattern written as a nested slice: the first
// element is the operator, the rest are arguments. Elements may be:
//
//   - *Var: a pattern variable
//   - SExp: a nested application
//   - *ir.Node: a pre-built node spliced into the pattern as-is
//   - *ir.Primitive, *ir.Graph, or any other value: a constant leaf
type SExp []any

// S builds an application s-expression.
func S(items ...any) SExp { return SExp(items) }

// PatternNode converts a pattern or template literal into the node form
// Unify and Reify consume. PatternRule does this internally; the export is
// for callers driving the matcher directly.
func PatternNode(s any) *ir.Node { return sexpToNode(s) }

// sexpToNode converts an s-expression (or a single leaf) into a pattern
// template tree. Application nodes in templates carry no owning graph; Reify
// re-creates them in the graph of the matched root.
func sexpToNode(s any) *ir.Node {
	switch v := s.(type) {
	case SExp:
		if len(v) == 0 {
			return ir.NewConstant(nil)
		}
		inputs := make([]*ir.Node, len(v))
		for i, item := range v {
			inputs[i] = sexpToNode(item)
		}
		return ir.NewApply(nil, inputs[0], inputs[1:]...)
	case []any:
		return sexpToNode(SExp(v))
	case *ir.Node:
		return v
	default:
		// Vars ride along as constant leaves; Unify and Reify treat a
		// constant embedding a *Var as a variable.
		return ir.NewConstant(v)
	}
}
