package opt

import (
	"go.uber.org/zap"

	"github.com/loom-lang/loom/ir"
)

// OptimizerOption configures an optimizer.
type OptimizerOption func(*optimizerConfig)

type optimizerConfig struct {
	metrics *Metrics
}

// WithMetrics attaches rule/pass counters.
func WithMetrics(m *Metrics) OptimizerOption {
	return func(c *optimizerConfig) { c.metrics = m }
}

// LocalOptimizer applies an indexed rule set in BFS order from a graph's
// output, driving every visited node to a local fixpoint. When a node
// changes, all of its current users are re-queued, since a user's own
// applicable rules may depend on the node's new shape. This re-queueing is
// deliberately conservative; see the package tests for the fixpoint
// guarantees it buys.
//
// Termination is the rule authors' responsibility: the optimizer does not
// detect non-confluent or non-terminating rule sets.
type LocalOptimizer struct {
	log     *zap.Logger
	rules   *NodeMap
	metrics *Metrics
}

// NewLocalOptimizer creates a worklist optimizer over the given rule index.
// A nil logger disables logging.
func NewLocalOptimizer(log *zap.Logger, rules *NodeMap, opts ...OptimizerOption) *LocalOptimizer {
	if log == nil {
		log = zap.NewNop()
	}
	var cfg optimizerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LocalOptimizer{log: log, rules: rules, metrics: cfg.metrics}
}

// Run optimizes g under mng until no queued node has an applicable rule.
// It reports whether any change occurred.
func (o *LocalOptimizer) Run(mng *ir.Manager, g *ir.Graph) bool {
	mng.AddGraph(g)
	o.metrics.pass("local")

	seen := make(map[*ir.Node]struct{})
	seenGraphs := map[*ir.Graph]struct{}{g: {}}
	var todo nodeDeque
	todo.pushBack(g.Output())

	changes := false
	for todo.len() > 0 {
		n := todo.popFront()
		if _, ok := seen[n]; ok {
			continue
		}
		if !mng.Contains(n) {
			// Dropped while queued; acting on it would use stale data.
			continue
		}
		seen[n] = struct{}{}

		n, changed := o.applyRules(mng, n)
		changes = changes || changed

		if sub := n.ConstantGraph(); sub != nil {
			// Entering a closure: optimize its body too.
			if _, ok := seenGraphs[sub]; !ok {
				seenGraphs[sub] = struct{}{}
				todo.pushFront(sub.Output())
			}
		} else {
			inputs := n.Inputs()
			for i := len(inputs) - 1; i >= 0; i-- {
				todo.pushFront(inputs[i])
			}
		}

		if changed {
			// The users were captured after the rewrite: they now point at
			// the replacement and must be reconsidered against its shape.
			for _, user := range mng.Users(n) {
				delete(seen, user)
				todo.pushFront(user)
			}
		}
	}

	o.log.Debug("local pass finished",
		zap.String("graph", g.Name()),
		zap.Bool("changes", changes),
		zap.Int("live_nodes", mng.NodeCount()))
	return changes
}

// applyRules drives one node to a local fixpoint: a full pass over the
// candidate rules with no change. A replacement re-enters the loop in place
// of the original node.
func (o *LocalOptimizer) applyRules(mng *ir.Manager, n *ir.Node) (*ir.Node, bool) {
	changes := false
	for again := true; again; {
		again = false
		for _, rule := range o.rules.Get(n) {
			res := rule.Apply(mng, n)
			switch {
			case res.Changed && res.Replacement == nil:
				// In-place effect; no substitution, and no reason to restart
				// the candidate pass for an unchanged node shape.
				o.metrics.match(rule.Name())
				changes = true
			case res.Replacement != nil && res.Replacement != n:
				o.metrics.match(rule.Name())
				if err := mng.Replace(n, res.Replacement); err != nil {
					o.log.Warn("replacement skipped",
						zap.String("rule", rule.Name()),
						zap.Error(err))
					continue
				}
				o.metrics.rewrite(rule.Name())
				o.log.Debug("rewrite applied",
					zap.String("rule", rule.Name()),
					zap.Stringer("node", n),
					zap.Stringer("replacement", res.Replacement))
				n = res.Replacement
				changes = true
				again = true
			}
			if again {
				break
			}
		}
	}
	return n, changes
}

// nodeDeque is a small slice-backed double-ended queue. Queues stay tiny
// relative to graph size, so the O(n) pushFront is not worth a ring buffer.
type nodeDeque struct {
	items []*ir.Node
}

func (d *nodeDeque) len() int { return len(d.items) }

func (d *nodeDeque) pushBack(n *ir.Node) {
	d.items = append(d.items, n)
}

func (d *nodeDeque) pushFront(n *ir.Node) {
	d.items = append([]*ir.Node{n}, d.items...)
}

func (d *nodeDeque) popFront() *ir.Node {
	n := d.items[0]
	d.items = d.items[1:]
	return n
}
