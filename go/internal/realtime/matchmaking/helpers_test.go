package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pairtalk/go/internal/realtime/events"
	"github.com/mcdev12/pairtalk/go/internal/realtime/protocol"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	msgs      []protocol.Outbound
	closed    bool
	closeCode int
}

func (c *fakeConn) Send(msg protocol.Outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
}

func (c *fakeConn) messages() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Outbound, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeConn) ofType(t protocol.OutboundType) []protocol.Outbound {
	var out []protocol.Outbound
	for _, m := range c.messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// messagesAfter returns everything received after the last message of type t
func (c *fakeConn) messagesAfter(t protocol.OutboundType) []protocol.Outbound {
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == t {
			return msgs[i+1:]
		}
	}
	return msgs
}

func (c *fakeConn) errors() []protocol.ErrorCode {
	var out []protocol.ErrorCode
	for _, m := range c.ofType(protocol.OutboundError) {
		out = append(out, m.Code)
	}
	return out
}

func (c *fakeConn) isClosed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

// fakeBalance holds whole gem counts; each extension costs one.
type fakeBalance struct {
	mu         sync.Mutex
	gems       map[string]int
	failCharge map[string]bool
	charges    map[string]int
	onCheck    func(identity string)
}

func newFakeBalance() *fakeBalance {
	return &fakeBalance{
		gems:       make(map[string]int),
		failCharge: make(map[string]bool),
		charges:    make(map[string]int),
	}
}

func (b *fakeBalance) set(identity string, gems int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gems[identity] = gems
}

func (b *fakeBalance) balance(identity string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gems[identity]
}

func (b *fakeBalance) chargeCount(identity string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.charges[identity]
}

func (b *fakeBalance) CanAfford(ctx context.Context, identity string) (bool, error) {
	b.mu.Lock()
	hook := b.onCheck
	b.mu.Unlock()
	if hook != nil {
		hook(identity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gems[identity] >= 1, nil
}

func (b *fakeBalance) Charge(ctx context.Context, identity string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCharge[identity] || b.gems[identity] < 1 {
		return false, nil
	}
	b.gems[identity]--
	b.charges[identity]++
	return true, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.MatchEvent
}

func (s *recordingSink) Publish(event events.MatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.EventType
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

var testConfig = Config{
	InitialDuration:   2 * time.Minute,
	ExtensionDuration: 5 * time.Minute,
	DecisionWindow:    15 * time.Second,
	DisconnectGrace:   10 * time.Second,
	PairCooldown:      time.Hour,
	ChatMaxLength:     10,
	PurgeInterval:     time.Minute,
}

type harness struct {
	engine  *Engine
	clock   *clockwork.FakeClock
	balance *fakeBalance
	sink    *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	balance := newFakeBalance()
	sink := &recordingSink{}

	var n int
	engine := NewEngine(testConfig, balance,
		WithClock(clock),
		WithEventSink(sink),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("m%d", n)
		}),
	)
	return &harness{engine: engine, clock: clock, balance: balance, sink: sink}
}

type client struct {
	id   string
	seq  uint64
	conn *fakeConn
}

func (h *harness) connect(id string) *client {
	conn := &fakeConn{}
	seq := h.engine.Connect(id, conn)
	return &client{id: id, seq: seq, conn: conn}
}

func (h *harness) join(c *client) {
	h.engine.JoinPool(c.id, c.seq)
}

// pair connects two clients and matches them, returning the match id
func (h *harness) pair(t *testing.T, a, b string) (*client, *client, string) {
	t.Helper()
	ca := h.connect(a)
	cb := h.connect(b)
	h.join(ca)
	h.join(cb)

	found := ca.conn.ofType(protocol.OutboundMatchFound)
	require.Len(t, found, 1)
	return ca, cb, found[0].MatchID
}

func (h *harness) session(matchID string) *Session {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.engine.sessions[matchID]
}

func (h *harness) state(matchID string) (SessionState, bool) {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	s := h.engine.sessions[matchID]
	if s == nil {
		return 0, false
	}
	return s.State, true
}

// expire advances to the countdown deadline and waits for the decision
// window to open
func (h *harness) expire(t *testing.T, matchID string) {
	t.Helper()
	h.clock.Advance(testConfig.InitialDuration)
	require.Eventually(t, func() bool {
		state, ok := h.state(matchID)
		return ok && state == StateDecisionWindow
	}, time.Second, time.Millisecond)
}

func (h *harness) waitRemoved(t *testing.T, matchID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := h.state(matchID)
		return !ok
	}, time.Second, time.Millisecond)
}
