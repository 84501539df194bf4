package opt

import (
	"go.uber.org/zap"

	"github.com/loom-lang/loom/ir"
)

// SweepOptimizer applies an ordered rule sequence rule-by-rule: each rule
// gets one pass over the live node index filtered to its interest, with
// exactly one application attempt per yielded node. Unlike the worklist
// strategy it never re-descends into replacements within the same pass;
// convergence across passes is the caller's responsibility (re-run until no
// changes).
type SweepOptimizer struct {
	log     *zap.Logger
	rules   []Rule
	metrics *Metrics
}

// NewSweepOptimizer creates a sweep optimizer over rules, applied in order.
// A nil logger disables logging.
func NewSweepOptimizer(log *zap.Logger, rules []Rule, opts ...OptimizerOption) *SweepOptimizer {
	if log == nil {
		log = zap.NewNop()
	}
	var cfg optimizerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SweepOptimizer{log: log, rules: rules, metrics: cfg.metrics}
}

// Run performs one pass of every rule over g's live nodes and reports
// whether any change occurred. The live index is built for the duration of
// the run and detached before returning.
func (o *SweepOptimizer) Run(mng *ir.Manager, g *ir.Graph) bool {
	mng.AddGraph(g)
	o.metrics.pass("sweep")

	amap := NewApplyMap(mng)
	defer amap.Detach()

	changes := false
	for _, rule := range o.rules {
		if o.pass(mng, amap, rule) {
			changes = true
		}
	}
	o.log.Debug("sweep finished",
		zap.String("graph", g.Name()),
		zap.Bool("changes", changes),
		zap.Int("live_nodes", mng.NodeCount()))
	return changes
}

func (o *SweepOptimizer) pass(mng *ir.Manager, amap *ApplyMap, rule Rule) bool {
	changes := false
	for n := range amap.Nodes(rule.Interest()) {
		if !mng.Contains(n) {
			continue
		}
		res := rule.Apply(mng, n)
		switch {
		case res.Changed && res.Replacement == nil:
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
			changes = true
		}
	}
	return changes
}
