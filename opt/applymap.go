package opt

import (
	"iter"
	"slices"

	"github.com/loom-lang/loom/ir"
)

// ApplyMap incrementally mirrors a manager's live application nodes,
// bucketed by interest. It subscribes to the manager's add/drop events on
// construction and stays consistent through arbitrary graph mutation; call
// Detach when done to release the subscription.
//
// Nodes enumerates a bucket while the graph is being rewritten: every node
// live at the start is produced at least once, nodes added mid-enumeration
// are produced before it finishes (unless dropped first), and a node is
// never produced after its drop has been observed. While an enumeration is
// active the map records newly added nodes into a pending list and drains it
// to a fixpoint. Recording is not reentrant: only one enumeration may be
// active at a time.
//
// A node is bucketed by the interest it had when it became live. Replace can
// rewire an operator-position use in place, changing a surviving user's
// interest with no add/drop event; that user keeps its old bucket until the
// map is rebuilt. The sweep optimizer builds a fresh map per run, so the
// staleness is bounded by one run.
type ApplyMap struct {
	mng      *ir.Manager
	registry map[Interest]*ir.NodeSet

	addID  ir.ListenerID
	dropID ir.ListenerID

	recording      bool
	recordInterest Interest
	pending        []*ir.Node
}

// NewApplyMap builds the index from the manager's current live set and
// subscribes to its change events.
func NewApplyMap(mng *ir.Manager) *ApplyMap {
	m := &ApplyMap{
		mng:      mng,
		registry: make(map[Interest]*ir.NodeSet),
	}
	for _, n := range mng.Nodes() {
		m.onAdd(n)
	}
	m.addID = mng.Events.AddNode.Register(m.onAdd)
	m.dropID = mng.Events.DropNode.Register(m.onDrop)
	return m
}

// Detach unsubscribes from the manager and drops the index contents. The
// map must not be used afterwards.
func (m *ApplyMap) Detach() {
	m.mng.Events.AddNode.Deregister(m.addID)
	m.mng.Events.DropNode.Deregister(m.dropID)
	m.registry = nil
	m.mng = nil
}

// Count returns the current size of one interest bucket.
func (m *ApplyMap) Count(interest Interest) int {
	if set := m.registry[interest]; set != nil {
		return set.Len()
	}
	return 0
}

// Nodes enumerates the live nodes of one interest bucket. Wildcard falls
// back to the manager's full live set, including non-application nodes.
func (m *ApplyMap) Nodes(interest Interest) iter.Seq[*ir.Node] {
	return func(yield func(*ir.Node) bool) {
		m.startRecording(interest)
		defer m.stopRecording()

		var snapshot []*ir.Node
		if interest == Wildcard {
			snapshot = m.mng.Nodes()
		} else if set := m.registry[interest]; set != nil {
			snapshot = set.Snapshot()
		}
		for _, n := range snapshot {
			if !m.mng.Contains(n) {
				continue
			}
			if !yield(n) {
				return
			}
		}
		for len(m.pending) > 0 {
			batch := m.pending
			m.pending = nil
			for _, n := range batch {
				if !m.mng.Contains(n) {
					continue
				}
				if !yield(n) {
					return
				}
			}
		}
	}
}

func (m *ApplyMap) startRecording(interest Interest) {
	if m.recording {
		panic("opt: ApplyMap enumeration is not reentrant")
	}
	m.recording = true
	m.recordInterest = interest
	m.pending = nil
}

func (m *ApplyMap) stopRecording() {
	m.recording = false
	m.pending = nil
}

func (m *ApplyMap) onAdd(n *ir.Node) {
	i, ok := nodeInterest(n)
	if ok {
		set := m.registry[i]
		if set == nil {
			set = ir.NewNodeSet()
			m.registry[i] = set
		}
		set.Add(n)
	}
	if m.recording && m.recorded(i, ok) {
		m.pending = append(m.pending, n)
	}
}

func (m *ApplyMap) onDrop(n *ir.Node) {
	if i, ok := nodeInterest(n); ok {
		if set := m.registry[i]; set != nil {
			set.Remove(n)
		}
	}
	if m.recording {
		if idx := slices.Index(m.pending, n); idx >= 0 {
			m.pending = slices.Delete(m.pending, idx, idx+1)
		}
	}
}

// recorded reports whether a newly added node belongs to the bucket being
// enumerated.
func (m *ApplyMap) recorded(i Interest, ok bool) bool {
	if m.recordInterest == Wildcard {
		return true
	}
	return ok && i == m.recordInterest
}
