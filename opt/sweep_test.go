package opt_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loom-lang/loom/ir"
	"github.com/loom-lang/loom/opt"
)

func TestSweepOptimizerAddZero(t *testing.T) {
	g := ir.NewGraph("main")
	p := g.AddParameter()
	g.SetOutput(apply(g, addP, p, ir.NewConstant(0)))

	mng := ir.NewManager(zaptest.NewLogger(t))
	o := opt.NewSweepOptimizer(zaptest.NewLogger(t), []opt.Rule{addZeroRule()})

	require.True(t, o.Run(mng, g))
	assert.Same(t, p, g.Output())

	assert.False(t, o.Run(mng, g), "a second pass makes no further change")
}

func TestSweepOptimizerNoRedescent(t *testing.T) {
	// twice(p) -> add(p, p) in the first rule's pass; the second rule then
	// sees the freshly created add during its own pass. Within one rule's
	// pass there is no recursive re-descent into replacements.
	twiceP := ir.NewPrimitive("twice")
	x := opt.NewVar("x")
	expand := opt.MustPatternRule("expand-twice", opt.S(twiceP, x), opt.S(addP, x, x))
	strength := opt.MustPatternRule("double-to-shift", opt.S(addP, x, x), opt.S(mulP, 2, x))

	g := ir.NewGraph("main")
	p := g.AddParameter()
	g.SetOutput(ir.NewApply(g, ir.NewConstant(twiceP), p))

	mng := ir.NewManager(zaptest.NewLogger(t))
	o := opt.NewSweepOptimizer(zaptest.NewLogger(t), []opt.Rule{expand, strength})

	require.True(t, o.Run(mng, g))

	out := g.Output()
	require.True(t, out.IsApply())
	assert.Same(t, mulP, out.Operator().ConstantPrimitive(),
		"later rules see nodes created by earlier rules in the same run")
	assert.Same(t, p, out.Args()[1])
}

func TestSweepOptimizerDeterminism(t *testing.T) {
	build := func() (*ir.Manager, *ir.Graph) {
		g := ir.NewGraph("main")
		p := g.AddParameter()
		q := g.AddParameter()
		left := apply(g, addP, p, ir.NewConstant(0))
		right := apply(g, mulP, q, ir.NewConstant(1))
		g.SetOutput(apply(g, subP, apply(g, addP, left, right), apply(g, mulP, left, right)))
		return ir.NewManager(nil), g
	}

	run := func() string {
		mng, g := build()
		o := opt.NewSweepOptimizer(nil, []opt.Rule{addZeroRule(), mulOneRule()})
		for o.Run(mng, g) {
		}
		return ir.Format(g)
	}

	first := run()
	for i := 0; i < 5; i++ {
		got := run()
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("sweep runs diverged -want/+got:\n%s", diff)
		}
	}
}

func TestSweepOptimizerInterestFiltering(t *testing.T) {
	// A rule indexed under mul is never attempted on add nodes: its
	// callback observes every node the sweep offers it.
	g := ir.NewGraph("main")
	p := g.AddParameter()
	addNode := apply(g, addP, p, ir.NewConstant(0))
	mulNode := apply(g, mulP, addNode, p)
	g.SetOutput(mulNode)

	var offered []*ir.Node
	x := opt.NewVar("x")
	spy, err := opt.NewCallbackRule("spy", opt.S(mulP, x, opt.NewVar("y")),
		func(_ *ir.Manager, n *ir.Node, _ opt.Bindings) opt.Result {
			offered = append(offered, n)
			return opt.Result{}
		})
	require.NoError(t, err)

	mng := ir.NewManager(zaptest.NewLogger(t))
	o := opt.NewSweepOptimizer(zaptest.NewLogger(t), []opt.Rule{spy})

	assert.False(t, o.Run(mng, g))
	assert.Equal(t, []*ir.Node{mulNode}, offered)
}

func TestSweepOptimizerInPlaceResult(t *testing.T) {
	g := ir.NewGraph("main")
	p := g.AddParameter()
	g.SetOutput(apply(g, addP, p, p))

	calls := 0
	x := opt.NewVar("x")
	inPlace, err := opt.NewCallbackRule("annotate", opt.S(addP, x, x),
		func(*ir.Manager, *ir.Node, opt.Bindings) opt.Result {
			calls++
			return opt.Result{Changed: true}
		})
	require.NoError(t, err)

	mng := ir.NewManager(zaptest.NewLogger(t))
	o := opt.NewSweepOptimizer(zaptest.NewLogger(t), []opt.Rule{inPlace})

	assert.True(t, o.Run(mng, g), "in-place effects count as changes")
	assert.Equal(t, 1, calls, "one attempt per rule and node within a pass")
}

func TestSweepOptimizerSkipsStaleNodes(t *testing.T) {
	// Rewriting the outer add drops the inner one (its only user goes
	// away). The sweep must skip the stale node rather than act on it.
	g := ir.NewGraph("main")
	p := g.AddParameter()
	inner := apply(g, addP, p, ir.NewConstant(0))
	outer := apply(g, addP, ir.NewConstant(0), inner)
	g.SetOutput(outer)

	var offered []*ir.Node
	x := opt.NewVar("x")
	absorb, err := opt.NewCallbackRule("absorb-zero", opt.S(addP, opt.NewVar("y"), x),
		func(m *ir.Manager, n *ir.Node, b opt.Bindings) opt.Result {
			offered = append(offered, n)
			if n != outer {
				return opt.Result{}
			}
			return opt.Result{Replacement: ir.NewConstant(0), Changed: true}
		})
	require.NoError(t, err)

	mng := ir.NewManager(zaptest.NewLogger(t))
	o := opt.NewSweepOptimizer(zaptest.NewLogger(t), []opt.Rule{absorb})

	require.True(t, o.Run(mng, g))
	assert.Equal(t, 0, g.Output().Value())
	assert.NotContains(t, offered, inner,
		"inner was dropped when outer collapsed and must not be offered afterwards")
}

func BenchmarkSweepOptimizer(b *testing.B) {
	rules := []opt.Rule{addZeroRule(), mulOneRule()}
	o := opt.NewSweepOptimizer(nil, rules)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		g := ir.NewGraph("bench")
		cur := g.AddParameter()
		for i := 0; i < 64; i++ {
			cur = apply(g, addP, cur, ir.NewConstant(0))
		}
		g.SetOutput(cur)

		mng := ir.NewManager(nil)
		for o.Run(mng, g) {
		}
	}
}
