// Package opt implements the rewrite engine: structural pattern matching
// with variable binding, pattern rules grouped by interest, a live node
// index kept consistent through graph-change notifications, and two pass
// strategies (worklist and sweep) for driving rules to a fixpoint.
package opt

import (
	"github.com/pkg/errors"

	"github.com/loom-lang/loom/ir"
)

// ErrInvalidRule marks rule definitions rejected at construction or
// registration time, e.g. an interest that names no operator.
var ErrInvalidRule = errors.New("invalid rule definition")

// InterestKind discriminates the interest variants.
type InterestKind int

const (
	// KindWildcard matches every node.
	KindWildcard InterestKind = iota
	// KindOperator matches applications of one specific primitive operator.
	KindOperator
	// KindGraphCall matches applications whose operator is a constant graph.
	KindGraphCall
	// KindAnyApply matches applications whose operator is itself computed.
	KindAnyApply
)

// Interest classifies which nodes a rule could possibly match. It is purely
// an indexing key: matching correctness never depends on it. Interests are
// comparable and usable as map keys.
type Interest struct {
	Kind     InterestKind
	Operator *ir.Primitive
}

// Reserved interests.
var (
	Wildcard  = Interest{Kind: KindWildcard}
	GraphCall = Interest{Kind: KindGraphCall}
	AnyApply  = Interest{Kind: KindAnyApply}
)

// OperatorInterest returns the interest for applications of p.
func OperatorInterest(p *ir.Primitive) Interest {
	return Interest{Kind: KindOperator, Operator: p}
}

func (i Interest) validate() error {
	switch i.Kind {
	case KindWildcard, KindGraphCall, KindAnyApply:
		if i.Operator != nil {
			return errors.Wrapf(ErrInvalidRule, "interest %s does not take an operator", i)
		}
		return nil
	case KindOperator:
		if i.Operator == nil {
			return errors.Wrap(ErrInvalidRule, "operator interest without an operator")
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidRule, "unknown interest kind %d", int(i.Kind))
	}
}

func (i Interest) String() string {
	switch i.Kind {
	case KindWildcard:
		return "wildcard"
	case KindOperator:
		if i.Operator == nil {
			return "operator:?"
		}
		return "operator:" + i.Operator.Name
	case KindGraphCall:
		return "graph-call"
	case KindAnyApply:
		return "any-apply"
	default:
		return "invalid"
	}
}

// nodeInterest returns the one non-wildcard interest n qualifies for, or
// false for non-application nodes. The three application interests are
// mutually exclusive: the operator is exactly one of constant primitive,
// constant graph, or computed.
func nodeInterest(n *ir.Node) (Interest, bool) {
	if !n.IsApply() {
		return Interest{}, false
	}
	op := n.Operator()
	if p := op.ConstantPrimitive(); p != nil {
		return OperatorInterest(p), true
	}
	if op.IsConstantGraph() {
		return GraphCall, true
	}
	if !op.IsConstant() {
		return AnyApply, true
	}
	// Applications of other constant values index nowhere specific; only
	// wildcard rules see them.
	return Interest{}, false
}
