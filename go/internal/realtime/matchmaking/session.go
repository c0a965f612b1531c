package matchmaking

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pairtalk/go/internal/realtime/protocol"
)

// SessionState is the lifecycle state of a live session. Ended sessions are
// removed from the session table rather than stored.
type SessionState int

const (
	StateActive SessionState = iota
	StateDecisionWindow
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDecisionWindow:
		return "decision_window"
	default:
		return "unknown"
	}
}

// graceTimer is a pending disconnect grace for one participant. The pointer
// itself is the identity checked by the callback.
type graceTimer struct {
	timer clockwork.Timer
}

// Session is one pairing between two distinct participants.
//
// Every field except extendMu is guarded by the Engine lock. extendMu
// serializes extend processing for this match while balance calls are in
// flight, and is always taken before the Engine lock, never while holding it.
type Session struct {
	ID        string
	A         string
	B         string
	StartedAt time.Time
	Deadline  time.Time
	State     SessionState

	// WindowDeadline is set while State is StateDecisionWindow
	WindowDeadline time.Time

	votes map[string]struct{}
	grace map[string]*graceTimer

	countdown clockwork.Timer
	window    clockwork.Timer

	// epoch changes on every state transition and on removal; timer
	// callbacks carry the epoch they were scheduled under.
	epoch uint64

	settling      bool
	windowElapsed bool
	ended         bool
	endReason     protocol.EndReason

	extendMu sync.Mutex
}

func newSession(id, a, b string, startedAt, deadline time.Time) *Session {
	return &Session{
		ID:        id,
		A:         a,
		B:         b,
		StartedAt: startedAt,
		Deadline:  deadline,
		State:     StateActive,
		votes:     make(map[string]struct{}),
		grace:     make(map[string]*graceTimer),
	}
}

// Has reports whether identity is one of the two participants
func (s *Session) Has(identity string) bool {
	return identity == s.A || identity == s.B
}

// Peer returns the other participant
func (s *Session) Peer(identity string) string {
	if identity == s.A {
		return s.B
	}
	return s.A
}

// Role returns "A" or "B"
func (s *Session) Role(identity string) string {
	if identity == s.A {
		return "A"
	}
	return "B"
}

// Participants returns both identities in creation order
func (s *Session) Participants() [2]string {
	return [2]string{s.A, s.B}
}

func (s *Session) hasVote(identity string) bool {
	_, ok := s.votes[identity]
	return ok
}

func (s *Session) recordVote(identity string) {
	s.votes[identity] = struct{}{}
}

func (s *Session) bothVoted() bool {
	return s.hasVote(s.A) && s.hasVote(s.B)
}

func (s *Session) clearVotes() {
	for id := range s.votes {
		delete(s.votes, id)
	}
}

// VoteCount returns the number of recorded extend votes
func (s *Session) VoteCount() int {
	return len(s.votes)
}

// stopTimers cancels every timer owned by the session
func (s *Session) stopTimers() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	if s.window != nil {
		s.window.Stop()
		s.window = nil
	}
	for id, g := range s.grace {
		g.timer.Stop()
		delete(s.grace, id)
	}
}
