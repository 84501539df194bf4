package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loom-lang/loom/ir"
)

var (
	addP = ir.NewPrimitive("add")
	mulP = ir.NewPrimitive("mul")
)

func TestManagerAddGraph(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	y := g.AddParameter()
	add := ir.NewConstant(addP)
	out := ir.NewApply(g, add, x, y)
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	require.True(t, mng.HasGraph(g))
	for _, n := range []*ir.Node{x, y, add, out} {
		assert.True(t, mng.Contains(n), "expected %s to be live", n)
	}
	require.Equal(t, 4, mng.NodeCount())

	require.Equal(t, []ir.Use{{User: out, Index: 1}}, mng.Uses(x))
	require.Equal(t, []ir.Use{{User: out, Index: 2}}, mng.Uses(y))
	require.Equal(t, []ir.Use{{User: out, Index: 0}}, mng.Uses(add))

	// Adding the same graph again changes nothing.
	mng.AddGraph(g)
	require.Equal(t, 4, mng.NodeCount())
}

func TestManagerReplaceOutput(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	zero := ir.NewConstant(0)
	out := ir.NewApply(g, ir.NewConstant(addP), x, zero)
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	var dropped []*ir.Node
	mng.Events.DropNode.Register(func(n *ir.Node) {
		dropped = append(dropped, n)
	})

	require.NoError(t, mng.Replace(out, x))

	assert.Same(t, x, g.Output())
	assert.False(t, mng.Contains(out), "replaced output should be dropped")
	assert.False(t, mng.Contains(zero), "orphaned constant should be dropped")
	assert.True(t, mng.Contains(x), "parameter must stay live")
	assert.Contains(t, dropped, out)
	assert.Contains(t, dropped, zero)
}

func TestManagerReplaceRewiresAllUses(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	shared := ir.NewApply(g, ir.NewConstant(mulP), x, x)
	u1 := ir.NewApply(g, ir.NewConstant(addP), shared, x)
	u2 := ir.NewApply(g, ir.NewConstant(addP), u1, shared)
	g.SetOutput(u2)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	repl := ir.NewApply(g, ir.NewConstant(addP), x, x)
	require.NoError(t, mng.Replace(shared, repl))

	assert.Same(t, repl, u1.Args()[0])
	assert.Same(t, repl, u2.Args()[1])
	assert.False(t, mng.Contains(shared))
	require.Len(t, mng.Uses(repl), 2)
	require.Equal(t, []*ir.Node{u1, u2}, mng.Users(repl))
}

func TestManagerReplaceNotLive(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	out := ir.NewApply(g, ir.NewConstant(addP), x, ir.NewConstant(1))
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)
	require.NoError(t, mng.Replace(out, x))

	err := mng.Replace(out, x)
	require.ErrorIs(t, err, ir.ErrNotLive)
}

func TestManagerReplaceKeepsSharedSubtrees(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	inner := ir.NewApply(g, ir.NewConstant(mulP), x, x)
	out := ir.NewApply(g, ir.NewConstant(addP), inner, ir.NewConstant(0))
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	// add(inner, 0) -> inner: the replacement is a node inside the subtree
	// being released; it must survive because the output keeps it alive.
	require.NoError(t, mng.Replace(out, inner))

	assert.Same(t, inner, g.Output())
	assert.True(t, mng.Contains(inner))
	assert.False(t, mng.Contains(out))
}

func TestManagerReplaceWithWrappingNode(t *testing.T) {
	negP := ir.NewPrimitive("neg")
	g := ir.NewGraph("main")
	x := g.AddParameter()
	out := ir.NewApply(g, ir.NewConstant(addP), x, x)
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	// add(x, x) -> neg(add(x, x)): the wrapper references the node being
	// replaced. Its own edge must stay on the wrapped node instead of being
	// rewired into a self-cycle.
	wrap := ir.NewApply(g, ir.NewConstant(negP), out)
	require.NoError(t, mng.Replace(out, wrap))

	assert.Same(t, wrap, g.Output())
	assert.Same(t, out, wrap.Args()[0])
	assert.True(t, mng.Contains(out), "the wrapped node stays live under the wrapper")
	require.Equal(t, []ir.Use{{User: wrap, Index: 1}}, mng.Uses(out))
	assert.Equal(t, []*ir.Node{wrap}, mng.Users(out))
}

func TestManagerAdoptsConstantGraphs(t *testing.T) {
	outer := ir.NewGraph("outer")
	p := outer.AddParameter()

	inner := ir.NewClosure("inner", outer)
	q := inner.AddParameter()
	inner.SetOutput(ir.NewApply(inner, ir.NewConstant(addP), q, p))

	call := ir.NewApply(outer, ir.NewConstant(inner), p)
	outer.SetOutput(call)

	mng := ir.Manage(zaptest.NewLogger(t), outer)

	assert.True(t, mng.HasGraph(inner), "graphs referenced by constants are adopted")
	assert.True(t, mng.Contains(inner.Output()))
	assert.True(t, mng.Contains(q))
	assert.True(t, inner.HasAncestor(outer))
}

func TestManagerListenerDeregister(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	out := ir.NewApply(g, ir.NewConstant(addP), x, ir.NewConstant(0))
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	fired := 0
	id := mng.Events.AddNode.Register(func(*ir.Node) { fired++ })
	mng.Events.AddNode.Deregister(id)

	repl := ir.NewApply(g, ir.NewConstant(mulP), x, x)
	require.NoError(t, mng.Replace(out, repl))
	assert.Zero(t, fired, "deregistered listener must not fire")
}

func TestManagerAddNotifiesNewSubtree(t *testing.T) {
	g := ir.NewGraph("main")
	x := g.AddParameter()
	out := ir.NewApply(g, ir.NewConstant(addP), x, ir.NewConstant(0))
	g.SetOutput(out)

	mng := ir.Manage(zaptest.NewLogger(t), g)

	var added []*ir.Node
	mng.Events.AddNode.Register(func(n *ir.Node) { added = append(added, n) })

	two := ir.NewConstant(2)
	repl := ir.NewApply(g, ir.NewConstant(mulP), two, x)
	require.NoError(t, mng.Replace(out, repl))

	assert.Contains(t, added, repl)
	assert.Contains(t, added, two)
	assert.NotContains(t, added, x, "already-live nodes are not re-announced")
}
