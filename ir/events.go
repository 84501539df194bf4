package ir

// NodeListener receives a node add or drop notification.
type NodeListener func(*Node)

// ListenerID identifies a registered listener so it can be deregistered.
type ListenerID int

type listenerEntry struct {
	id ListenerID
	fn NodeListener
}

// Event is an ordered registry of listeners for one kind of graph change.
// Listeners fire synchronously, in registration order, on the mutating call.
type Event struct {
	next    ListenerID
	entries []listenerEntry
}

// Register adds fn and returns a handle for Deregister.
func (e *Event) Register(fn NodeListener) ListenerID {
	e.next++
	e.entries = append(e.entries, listenerEntry{id: e.next, fn: fn})
	return e.next
}

// Deregister removes the listener registered under id. Unknown ids are a no-op.
func (e *Event) Deregister(id ListenerID) {
	for i, ent := range e.entries {
		if ent.id == id {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

func (e *Event) emit(n *Node) {
	for _, ent := range e.entries {
		ent.fn(n)
	}
}

// Events groups the change notifications a Manager emits.
type Events struct {
	// AddNode fires after a node enters the live set.
	AddNode Event
	// DropNode fires after a node leaves the live set.
	DropNode Event
}
