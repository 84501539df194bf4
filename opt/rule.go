package opt

import (
	"github.com/pkg/errors"

	"github.com/loom-lang/loom/ir"
)

// Result is the outcome of one rule application.
//
// The zero Result means the pattern did not match (or a guard rejected the
// binding). Changed with a nil Replacement means the rule's callback already
// performed its effect in place and there is no single node to substitute.
// A non-nil Replacement asks the caller to substitute it for the matched
// node everywhere it is used.
type Result struct {
	Replacement *ir.Node
	Changed     bool
}

// Rule is one reusable pattern→action binding.
type Rule interface {
	Name() string
	Interest() Interest
	Apply(mng *ir.Manager, node *ir.Node) Result
}

// Callback is a rule action invoked with the matched node and the variable
// bindings. Callbacks may mutate the manager (including recursively running
// an optimizer) and signal in-place change via Result{Changed: true}.
type Callback func(mng *ir.Manager, node *ir.Node, b Bindings) Result

// Guard vets a successful match; returning false turns it into a non-match.
type Guard func(b Bindings) bool

// PatternRule replaces one pattern by another. The replacement is either a
// template reusing the pattern's variables or a Callback. Immutable after
// construction.
type PatternRule struct {
	name        string
	pattern     *ir.Node
	replacement *ir.Node
	callback    Callback
	guard       Guard
	interest    Interest
	multigraph  bool
}

// RuleOption configures a PatternRule.
type RuleOption func(*PatternRule)

// WithGuard attaches a condition that must accept the bindings.
func WithGuard(g Guard) RuleOption {
	return func(r *PatternRule) { r.guard = g }
}

// WithInterest overrides the computed interest.
func WithInterest(i Interest) RuleOption {
	return func(r *PatternRule) { r.interest = i }
}

// WithMultigraph sets whether the pattern may span graph boundaries, e.g.
// match a node in a closure against a free variable owned by an ancestor.
// Patterns are multigraph by default.
func WithMultigraph(multigraph bool) RuleOption {
	return func(r *PatternRule) { r.multigraph = multigraph }
}

// NewPatternRule builds a rule from a pattern s-expression and a replacement
// template. Interest is computed once here: if the pattern's root is an
// application of a fixed primitive operator, the rule is indexed under that
// operator, otherwise under wildcard.
func NewPatternRule(name string, pattern any, replacement any, opts ...RuleOption) (*PatternRule, error) {
	r := &PatternRule{
		name:       name,
		pattern:    sexpToNode(pattern),
		multigraph: true,
	}
	r.replacement = sexpToNode(replacement)
	r.interest = computeInterest(r.pattern)
	for _, opt := range opts {
		opt(r)
	}
	if err := r.interest.validate(); err != nil {
		return nil, errors.Wrapf(err, "rule %q", name)
	}
	return r, nil
}

// NewCallbackRule builds a rule whose action is a callback instead of a
// replacement template.
func NewCallbackRule(name string, pattern any, fn Callback, opts ...RuleOption) (*PatternRule, error) {
	if fn == nil {
		return nil, errors.Wrapf(ErrInvalidRule, "rule %q: nil callback", name)
	}
	r := &PatternRule{
		name:       name,
		pattern:    sexpToNode(pattern),
		callback:   fn,
		multigraph: true,
	}
	r.interest = computeInterest(r.pattern)
	for _, opt := range opts {
		opt(r)
	}
	if err := r.interest.validate(); err != nil {
		return nil, errors.Wrapf(err, "rule %q", name)
	}
	return r, nil
}

// MustPatternRule is NewPatternRule for declarative rule tables; it panics
// on definition errors.
func MustPatternRule(name string, pattern any, replacement any, opts ...RuleOption) *PatternRule {
	r, err := NewPatternRule(name, pattern, replacement, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func computeInterest(pattern *ir.Node) Interest {
	if pattern.IsApply() {
		if p := pattern.Operator().ConstantPrimitive(); p != nil {
			return OperatorInterest(p)
		}
	}
	return Wildcard
}

// Name returns the rule's name, used in logs and metrics.
func (r *PatternRule) Name() string { return r.name }

// Interest returns the rule's indexing key.
func (r *PatternRule) Interest() Interest { return r.interest }

// Apply matches the rule against node and, on success, produces the
// replacement (reified in the graph of the matched root) or runs the
// callback. A failed match or a guard rejection yields the zero Result.
func (r *PatternRule) Apply(mng *ir.Manager, node *ir.Node) Result {
	b, ok := Unify(r.pattern, node, r.multigraph)
	if !ok {
		return Result{}
	}
	if r.callback != nil {
		return r.callback(mng, node, b)
	}
	if r.guard != nil && !r.guard(b) {
		return Result{}
	}
	return Result{
		Replacement: Reify(r.replacement, b, node.Graph()),
		Changed:     true,
	}
}

func (r *PatternRule) String() string { return "rule:" + r.name }
