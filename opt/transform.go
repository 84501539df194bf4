package opt

import (
	"fmt"
	"runtime"
	"sync"
	"weak"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-lang/loom/ir"
)

// ComputeFunc derives a new graph from a source graph and static arguments.
// It must be pure: the cache assumes equal inputs produce equivalent output.
type ComputeFunc func(g *ir.Graph, args ...any) *ir.Graph

// GraphTransform memoizes derived graphs keyed by (source graph identity,
// argument tuple). The association to the source graph is weak: once the
// graph is otherwise unreachable its cache entries go away with it, so the
// cache never keeps a dead graph alive.
type GraphTransform struct {
	// The engine is single-threaded, but cleanups run on the garbage
	// collector's goroutine, so cache access is locked.
	mu      sync.Mutex
	compute ComputeFunc
	cache   map[weak.Pointer[ir.Graph]]*transformEntries
}

type transformEntries struct {
	buckets map[uint64][]transformEntry
}

type transformEntry struct {
	args    []any
	derived *ir.Graph
}

// NewGraphTransform creates a cache around compute.
func NewGraphTransform(compute ComputeFunc) *GraphTransform {
	return &GraphTransform{
		compute: compute,
		cache:   make(map[weak.Pointer[ir.Graph]]*transformEntries),
	}
}

// Get returns the transform of g for args, computing it on first use. Later
// calls with the identical graph and equal args return the cached graph
// without invoking the compute function again.
func (t *GraphTransform) Get(g *ir.Graph, args ...any) *ir.Graph {
	key := weak.Make(g)
	sum := hashArgs(args)

	t.mu.Lock()
	if derived, ok := t.lookup(key, sum, args); ok {
		t.mu.Unlock()
		return derived
	}
	t.mu.Unlock()

	// Compute outside the lock: rule callbacks may recurse into Get.
	derived := t.compute(g, args...)

	t.mu.Lock()
	defer t.mu.Unlock()
	if cached, ok := t.lookup(key, sum, args); ok {
		return cached
	}
	entries := t.cache[key]
	if entries == nil {
		entries = &transformEntries{buckets: make(map[uint64][]transformEntry)}
		t.cache[key] = entries
		runtime.AddCleanup(g, func(k weak.Pointer[ir.Graph]) {
			t.mu.Lock()
			delete(t.cache, k)
			t.mu.Unlock()
		}, key)
	}
	entries.buckets[sum] = append(entries.buckets[sum], transformEntry{args: args, derived: derived})
	return derived
}

func (t *GraphTransform) lookup(key weak.Pointer[ir.Graph], sum uint64, args []any) (*ir.Graph, bool) {
	entries := t.cache[key]
	if entries == nil {
		return nil, false
	}
	for _, e := range entries.buckets[sum] {
		if argsEqual(e.args, args) {
			return e.derived, true
		}
	}
	return nil, false
}

func argsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ir.ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// hashArgs folds a type-tagged rendering of the argument tuple into one
// key. Hash collisions are harmless: buckets store the original tuples and
// compare exactly.
func hashArgs(args []any) uint64 {
	d := xxhash.New()
	for _, a := range args {
		switch v := a.(type) {
		case *ir.Graph:
			fmt.Fprintf(d, "graph\x1f%p\x1f", v)
		case *ir.Primitive:
			fmt.Fprintf(d, "prim\x1f%p\x1f", v)
		case *ir.Node:
			fmt.Fprintf(d, "node\x1f%p\x1f", v)
		default:
			fmt.Fprintf(d, "%T\x1f%v\x1f", a, a)
		}
	}
	return d.Sum64()
}
