package matchmaking

import "github.com/mcdev12/pairtalk/go/internal/realtime/protocol"

// Conn is the outbound side of a live client connection. Implementations
// must not block: the engine calls them while holding its state lock.
type Conn interface {
	Send(msg protocol.Outbound)
	Close(code int, reason string)
}

// Binding ties an identity to its current connection
type Binding struct {
	Identity string
	Seq      uint64
	Conn     Conn
	MatchID  string // empty when not in a match
}

// Registry maps each identity to exactly one live connection. Sequence
// numbers increase monotonically across all registrations so a stale
// connection's close can be told apart from a fresh one.
//
// The registry is not safe for concurrent use; the Engine serializes access.
type Registry struct {
	nextSeq  uint64
	bindings map[string]*Binding
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Register makes conn the canonical connection for identity and returns
// its sequence number along with the binding it superseded, if any.
func (r *Registry) Register(identity string, conn Conn) (*Binding, *Binding) {
	r.nextSeq++
	previous := r.bindings[identity]
	binding := &Binding{Identity: identity, Seq: r.nextSeq, Conn: conn}
	r.bindings[identity] = binding
	return binding, previous
}

// Unregister removes the binding only if seq still matches the current
// registration. It returns the match id the binding referenced.
func (r *Registry) Unregister(identity string, seq uint64) (string, bool) {
	binding, ok := r.bindings[identity]
	if !ok || binding.Seq != seq {
		return "", false
	}
	delete(r.bindings, identity)
	return binding.MatchID, true
}

// Lookup returns the live binding for identity
func (r *Registry) Lookup(identity string) (*Binding, bool) {
	binding, ok := r.bindings[identity]
	return binding, ok
}

// Current returns the binding for identity only if seq is the live one
func (r *Registry) Current(identity string, seq uint64) (*Binding, bool) {
	binding, ok := r.bindings[identity]
	if !ok || binding.Seq != seq {
		return nil, false
	}
	return binding, true
}

// Send delivers msg to identity's live connection, reporting whether one
// existed.
func (r *Registry) Send(identity string, msg protocol.Outbound) bool {
	binding, ok := r.bindings[identity]
	if !ok {
		return false
	}
	binding.Conn.Send(msg)
	return true
}

// Len returns the number of live bindings
func (r *Registry) Len() int {
	return len(r.bindings)
}
