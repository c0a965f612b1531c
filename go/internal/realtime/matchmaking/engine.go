package matchmaking

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pairtalk/go/internal/realtime/events"
	"github.com/mcdev12/pairtalk/go/internal/realtime/protocol"
	"github.com/rs/zerolog/log"
)

// BalanceAuthority is the gem ledger as seen by the engine. Each call is a
// single attempt; the engine never retries.
type BalanceAuthority interface {
	CanAfford(ctx context.Context, identity string) (bool, error)
	// Charge returns false when the balance is insufficient
	Charge(ctx context.Context, identity string) (bool, error)
}

// Config holds the durations that drive matchmaking and sessions
type Config struct {
	InitialDuration   time.Duration
	ExtensionDuration time.Duration
	DecisionWindow    time.Duration
	DisconnectGrace   time.Duration
	PairCooldown      time.Duration
	ChatMaxLength     int
	PurgeInterval     time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		InitialDuration:   120 * time.Second,
		ExtensionDuration: 300 * time.Second,
		DecisionWindow:    15 * time.Second,
		DisconnectGrace:   15 * time.Second,
		PairCooldown:      16 * time.Hour,
		ChatMaxLength:     500,
		PurgeInterval:     10 * time.Minute,
	}
}

// Engine owns the registry, the waiting pool, the cooldown ledger and the
// session table. All of them are mutated under mu only.
type Engine struct {
	mu sync.Mutex

	config  Config
	clock   clockwork.Clock
	balance BalanceAuthority
	sink    events.Sink
	newID   func() string

	registry      *Registry
	pool          *Pool
	cooldowns     *CooldownLedger
	sessions      map[string]*Session
	byParticipant map[string]*Session

	// stopped is set once Run returns; no timers are armed afterwards
	stopped bool
}

// Option customises an Engine
type Option func(*Engine)

// WithClock replaces the real clock, mainly for tests
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithEventSink publishes lifecycle events to sink
func WithEventSink(sink events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithIDGenerator overrides match id generation
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates a matchmaking engine
func NewEngine(config Config, balance BalanceAuthority, opts ...Option) *Engine {
	e := &Engine{
		config:        config,
		clock:         clockwork.NewRealClock(),
		balance:       balance,
		sink:          events.NopSink{},
		newID:         func() string { return "m_" + uuid.New().String() },
		registry:      NewRegistry(),
		pool:          NewPool(),
		cooldowns:     NewCooldownLedger(config.PairCooldown),
		sessions:      make(map[string]*Session),
		byParticipant: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect registers conn as the canonical connection for identity and
// returns its sequence number. A previous connection is closed and dropped
// from the pool. If identity is inside a live session the match is
// re-announced so the client can resynchronise.
func (e *Engine) Connect(identity string, conn Conn) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	binding, previous := e.registry.Register(identity, conn)
	if previous != nil {
		previous.Conn.Close(protocol.CloseSuperseded, "Reconnected")
		e.pool.Remove(identity)
		log.Info().
			Str("user_id", identity).
			Uint64("old_seq", previous.Seq).
			Uint64("seq", binding.Seq).
			Msg("connection superseded")
	}

	conn.Send(protocol.Ready())

	if s := e.byParticipant[identity]; s != nil {
		binding.MatchID = s.ID
		e.resumeParticipant(s, identity)
		e.announceMatch(s, identity)
		if s.State == StateDecisionWindow {
			conn.Send(protocol.MatchEnded(s.ID, protocol.ReasonTimeout))
		}
	}

	log.Debug().Str("user_id", identity).Uint64("seq", binding.Seq).Msg("connection registered")
	return binding.Seq
}

// Disconnect handles a closed connection. Closes from superseded
// connections are ignored.
func (e *Engine) Disconnect(identity string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	matchID, ok := e.registry.Unregister(identity, seq)
	if !ok {
		log.Debug().Str("user_id", identity).Uint64("seq", seq).Msg("ignoring stale close")
		return
	}
	e.pool.Remove(identity)
	if e.stopped {
		return
	}

	s := e.sessions[matchID]
	if s == nil {
		s = e.byParticipant[identity]
	}
	if s == nil {
		log.Debug().Str("user_id", identity).Uint64("seq", seq).Msg("connection unregistered")
		return
	}
	e.startGrace(s, identity)
}

// Handle decodes one client frame and dispatches it
func (e *Engine) Handle(ctx context.Context, identity string, seq uint64, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Debug().Err(err).Str("user_id", identity).Msg("rejecting client message")
		e.reply(identity, seq, protocol.Error(protocol.ErrUnknownType))
		return
	}

	switch msg.Type {
	case protocol.InboundPoolJoin:
		e.JoinPool(identity, seq)
	case protocol.InboundPoolLeave:
		e.LeavePool(identity, seq)
	case protocol.InboundChatSend:
		if msg.MatchID == "" {
			e.reply(identity, seq, protocol.Error(protocol.ErrMissingMatchID))
			return
		}
		e.SendChat(identity, seq, msg.MatchID, msg.Text)
	case protocol.InboundMatchExtend:
		if msg.MatchID == "" {
			e.reply(identity, seq, protocol.Error(protocol.ErrMissingMatchID))
			return
		}
		e.Extend(ctx, identity, seq, msg.MatchID)
	}
}

// JoinPool queues identity and runs the pairing algorithm
func (e *Engine) JoinPool(identity string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	binding, ok := e.registry.Current(identity, seq)
	if !ok {
		return
	}
	if e.byParticipant[identity] != nil {
		binding.Conn.Send(protocol.Error(protocol.ErrAlreadyInMatch))
		return
	}

	e.pool.Enqueue(identity)
	binding.Conn.Send(protocol.PoolJoined())
	e.tryMatchmake()
}

// LeavePool removes identity from the pool and ends its match, if any
func (e *Engine) LeavePool(identity string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	binding, ok := e.registry.Current(identity, seq)
	if !ok {
		return
	}
	e.pool.Remove(identity)
	if s := e.byParticipant[identity]; s != nil {
		e.endSession(s, protocol.ReasonLeave)
	}
	binding.Conn.Send(protocol.PoolLeft())
}

// SendChat relays text to the peer and echoes it to the sender. Messages
// for a match that is not Active, or that is not the sender's match, are
// dropped without a reply.
func (e *Engine) SendChat(identity string, seq uint64, matchID, text string) {
	text = truncateRunes(text, e.config.ChatMaxLength)
	if strings.TrimSpace(text) == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	binding, ok := e.registry.Current(identity, seq)
	if !ok || binding.MatchID != matchID {
		return
	}
	s := e.sessions[matchID]
	if s == nil || !s.Has(identity) || s.State != StateActive {
		return
	}

	peer, ok := e.registry.Lookup(s.Peer(identity))
	if !ok {
		binding.Conn.Send(protocol.Error(protocol.ErrPeerOffline))
		return
	}

	msg := protocol.ChatMsg(matchID, identity, text, e.clock.Now())
	binding.Conn.Send(msg)
	peer.Conn.Send(msg)
}

// Run purges expired cooldowns until ctx is cancelled, then cancels every
// session timer.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.config.PurgeInterval
	if interval <= 0 {
		interval = DefaultConfig().PurgeInterval
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("purge_interval", interval).Msg("matchmaking engine started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			log.Info().Msg("matchmaking engine stopped")
			return nil
		case <-ticker.Chan():
			e.mu.Lock()
			removed := e.cooldowns.Purge(e.clock.Now())
			e.mu.Unlock()
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("purged expired cooldowns")
			}
		}
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for id, s := range e.sessions {
		s.stopTimers()
		log.Debug().Str("match_id", id).Msg("cancelled session timers on shutdown")
	}
}

// Stats is a point-in-time view of the engine
type Stats struct {
	Connections     int `json:"connections"`
	Waiting         int `json:"waiting"`
	ActiveMatches   int `json:"active_matches"`
	DecisionWindows int `json:"decision_windows"`
	Cooldowns       int `json:"cooldowns"`
}

// Stats returns counters for monitoring
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		Connections: e.registry.Len(),
		Waiting:     e.pool.Len(),
		Cooldowns:   e.cooldowns.Len(),
	}
	for _, s := range e.sessions {
		if s.State == StateDecisionWindow {
			stats.DecisionWindows++
		} else {
			stats.ActiveMatches++
		}
	}
	return stats
}

// tryMatchmake drains the pool greedily: the head is paired with the first
// later entry it is not cooling down with.
func (e *Engine) tryMatchmake() {
	for !e.stopped && e.pool.Len() >= 2 {
		now := e.clock.Now()
		a, b, ok := e.pool.PopPair(func(a, b string) bool {
			return !e.cooldowns.Active(a, b, now)
		})
		if !ok {
			return
		}

		bindingA, okA := e.registry.Lookup(a)
		bindingB, okB := e.registry.Lookup(b)
		switch {
		case !okA && !okB:
			continue
		case !okA:
			e.pool.PushFront(b)
			continue
		case !okB:
			e.pool.PushFront(a)
			continue
		}

		e.createSession(bindingA, bindingB, now)
	}
}

func (e *Engine) createSession(bindingA, bindingB *Binding, now time.Time) {
	a, b := bindingA.Identity, bindingB.Identity
	cooldownUntil := e.cooldowns.Set(a, b, now)

	s := newSession(e.newID(), a, b, now, now.Add(e.config.InitialDuration))
	e.sessions[s.ID] = s
	e.byParticipant[a] = s
	e.byParticipant[b] = s
	bindingA.MatchID = s.ID
	bindingB.MatchID = s.ID

	e.scheduleCountdown(s)

	e.announceMatch(s, a)
	e.announceMatch(s, b)

	e.sink.Publish(events.New(events.EventTypeMatchCreated, s.ID, now, events.MatchCreatedPayload{
		ParticipantA:  a,
		ParticipantB:  b,
		StartedAt:     s.StartedAt,
		EndsAt:        s.Deadline,
		CooldownUntil: cooldownUntil,
	}))

	log.Info().
		Str("match_id", s.ID).
		Str("user_a", a).
		Str("user_b", b).
		Time("ends_at", s.Deadline).
		Msg("match created")
}

func (e *Engine) announceMatch(s *Session, identity string) {
	chatSeconds := int(s.Deadline.Sub(s.StartedAt) / time.Second)
	e.registry.Send(identity, protocol.MatchFound(s.ID, s.Peer(identity), s.Role(identity), s.StartedAt, s.Deadline, chatSeconds))
}

// endSession removes s, cancels its timers and tells every still-connected
// participant why. A session removed after its decision window elapsed has
// already announced the timeout, so participants are not told twice.
func (e *Engine) endSession(s *Session, reason protocol.EndReason) {
	notify := !(reason == protocol.ReasonTimeout && s.State == StateDecisionWindow)

	s.stopTimers()
	s.clearVotes()
	s.epoch++
	s.ended = true
	s.endReason = reason

	delete(e.sessions, s.ID)
	for _, id := range s.Participants() {
		if e.byParticipant[id] == s {
			delete(e.byParticipant, id)
		}
	}

	for _, id := range s.Participants() {
		binding, ok := e.registry.Lookup(id)
		if !ok || binding.MatchID != s.ID {
			continue
		}
		binding.MatchID = ""
		if notify {
			binding.Conn.Send(protocol.MatchEnded(s.ID, reason))
		}
	}

	now := e.clock.Now()
	e.sink.Publish(events.New(events.EventTypeMatchEnded, s.ID, now, events.MatchEndedPayload{
		Reason:   string(reason),
		Duration: now.Sub(s.StartedAt),
	}))

	log.Info().
		Str("match_id", s.ID).
		Str("reason", string(reason)).
		Msg("match ended")
}

// reply sends msg to identity if seq is still its live connection
func (e *Engine) reply(identity string, seq uint64, msg protocol.Outbound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if binding, ok := e.registry.Current(identity, seq); ok {
		binding.Conn.Send(msg)
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
