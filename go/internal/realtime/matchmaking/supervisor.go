package matchmaking

import (
	"context"
	"time"

	"github.com/mcdev12/pairtalk/go/internal/realtime/events"
	"github.com/mcdev12/pairtalk/go/internal/realtime/protocol"
	"github.com/rs/zerolog/log"
)

// live reports whether s is still in the session table under epoch
func (e *Engine) live(s *Session, epoch uint64) bool {
	return e.sessions[s.ID] == s && s.epoch == epoch
}

// scheduleCountdown arms the countdown timer for s.Deadline
func (e *Engine) scheduleCountdown(s *Session) {
	if s.countdown != nil {
		s.countdown.Stop()
	}
	epoch := s.epoch
	wait := s.Deadline.Sub(e.clock.Now())
	s.countdown = e.clock.AfterFunc(wait, func() {
		e.onCountdownExpired(s, epoch)
	})
}

func (e *Engine) onCountdownExpired(s *Session, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.live(s, epoch) || s.State != StateActive {
		return
	}
	now := e.clock.Now()
	if now.Before(s.Deadline) {
		e.scheduleCountdown(s)
		return
	}
	e.enterDecisionWindow(s, now)
}

// enterDecisionWindow moves s from Active to DecisionWindow
func (e *Engine) enterDecisionWindow(s *Session, now time.Time) {
	s.State = StateDecisionWindow
	s.epoch++
	s.clearVotes()
	s.countdown = nil
	s.windowElapsed = false
	s.WindowDeadline = now.Add(e.config.DecisionWindow)

	epoch := s.epoch
	s.window = e.clock.AfterFunc(e.config.DecisionWindow, func() {
		e.onDecisionWindowExpired(s, epoch)
	})

	for _, id := range s.Participants() {
		e.registry.Send(id, protocol.MatchEnded(s.ID, protocol.ReasonTimeout))
	}

	e.sink.Publish(events.New(events.EventTypeMatchTimedOut, s.ID, now, events.MatchTimedOutPayload{
		DecisionEndsAt: s.WindowDeadline,
	}))

	log.Info().
		Str("match_id", s.ID).
		Time("decision_ends_at", s.WindowDeadline).
		Msg("countdown elapsed, decision window open")
}

func (e *Engine) onDecisionWindowExpired(s *Session, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.live(s, epoch) || s.State != StateDecisionWindow {
		return
	}
	s.window = nil
	if s.settling {
		// Both votes arrived in time; the settlement decides the outcome.
		s.windowElapsed = true
		return
	}
	e.endSession(s, protocol.ReasonTimeout)
}

// startGrace holds the session open while identity is away
func (e *Engine) startGrace(s *Session, identity string) {
	if g := s.grace[identity]; g != nil {
		g.timer.Stop()
	}
	g := &graceTimer{}
	g.timer = e.clock.AfterFunc(e.config.DisconnectGrace, func() {
		e.onGraceExpired(s, identity, g)
	})
	s.grace[identity] = g

	peer := s.Peer(identity)
	e.registry.Send(peer, protocol.PeerStatusMsg(s.ID, identity, protocol.PeerReconnecting))

	log.Info().
		Str("match_id", s.ID).
		Str("user_id", identity).
		Dur("grace", e.config.DisconnectGrace).
		Msg("participant disconnected, holding match")
}

func (e *Engine) onGraceExpired(s *Session, identity string, g *graceTimer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions[s.ID] != s || s.grace[identity] != g {
		return
	}
	delete(s.grace, identity)
	e.endSession(s, protocol.ReasonDisconnect)
}

// resumeParticipant cancels a pending grace for identity and tells the peer
func (e *Engine) resumeParticipant(s *Session, identity string) {
	g := s.grace[identity]
	if g == nil {
		return
	}
	g.timer.Stop()
	delete(s.grace, identity)

	e.registry.Send(s.Peer(identity), protocol.PeerStatusMsg(s.ID, identity, protocol.PeerConnected))

	log.Info().Str("match_id", s.ID).Str("user_id", identity).Msg("participant reconnected within grace")
}

// Extend records identity's extend vote for matchID. Votes are accepted
// only during the decision window and only from participants who can pay.
// Once both participants have voted the settlement checks and charges both.
func (e *Engine) Extend(ctx context.Context, identity string, seq uint64, matchID string) {
	e.mu.Lock()
	s, code := e.extendTarget(identity, seq, matchID)
	if s == nil {
		if code != "" {
			e.registry.Send(identity, protocol.Error(code))
		}
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	s.extendMu.Lock()
	defer s.extendMu.Unlock()

	e.mu.Lock()
	if code := e.checkWindow(s, identity); code != "" {
		e.registry.Send(identity, protocol.Error(code))
		e.mu.Unlock()
		return
	}
	if s.hasVote(identity) {
		e.registry.Send(identity, protocol.ExtendPending(s.ID))
		e.mu.Unlock()
		return
	}
	epoch := s.epoch
	e.mu.Unlock()

	affordable := e.canAfford(ctx, s.ID, identity)

	e.mu.Lock()
	if code := e.checkWindow(s, identity); code != "" || s.epoch != epoch {
		if code == "" {
			code = protocol.ErrNotExtendable
		}
		e.registry.Send(identity, protocol.Error(code))
		e.mu.Unlock()
		return
	}
	if !affordable {
		e.registry.Send(identity, protocol.Error(protocol.ErrNotEnoughGems))
		e.mu.Unlock()
		return
	}
	s.recordVote(identity)
	e.registry.Send(identity, protocol.ExtendPending(s.ID))
	if !s.bothVoted() {
		e.mu.Unlock()
		return
	}
	s.settling = true
	e.mu.Unlock()

	e.settleExtend(ctx, s, epoch, identity)
}

// extendTarget resolves the session an extend request refers to
func (e *Engine) extendTarget(identity string, seq uint64, matchID string) (*Session, protocol.ErrorCode) {
	binding, ok := e.registry.Current(identity, seq)
	if !ok {
		return nil, ""
	}
	s := e.sessions[matchID]
	if s == nil {
		return nil, protocol.ErrNoSuchMatch
	}
	if !s.Has(identity) || binding.MatchID != matchID {
		return nil, protocol.ErrNotInMatch
	}
	if code := e.checkWindow(s, identity); code != "" {
		return nil, code
	}
	return s, ""
}

// checkWindow validates that s accepts extend votes right now
func (e *Engine) checkWindow(s *Session, identity string) protocol.ErrorCode {
	if e.sessions[s.ID] != s {
		if s.ended && s.endReason == protocol.ReasonTimeout {
			return protocol.ErrExtendWindowExpired
		}
		return protocol.ErrNoSuchMatch
	}
	if !s.Has(identity) {
		return protocol.ErrNotInMatch
	}
	if s.State != StateDecisionWindow {
		return protocol.ErrNotExtendable
	}
	if s.windowElapsed || !e.clock.Now().Before(s.WindowDeadline) {
		return protocol.ErrExtendWindowExpired
	}
	return ""
}

// settleExtend re-checks both balances, then charges both. The caller holds
// s.extendMu and has set s.settling.
func (e *Engine) settleExtend(ctx context.Context, s *Session, epoch uint64, triggeredBy string) {
	participants := s.Participants()

	var failed []string
	for _, id := range participants {
		if !e.canAfford(ctx, s.ID, id) {
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		for _, id := range participants {
			if !e.charge(ctx, s.ID, id) {
				failed = append(failed, id)
				break
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s.settling = false

	if !e.live(s, epoch) || s.State != StateDecisionWindow {
		if len(failed) == 0 {
			log.Warn().
				Str("match_id", s.ID).
				Msg("extension charged but match ended during settlement")
		}
		return
	}

	if len(failed) > 0 {
		s.clearVotes()
		for _, id := range failed {
			e.registry.Send(id, protocol.Error(protocol.ErrNotEnoughGems))
		}
		log.Info().
			Str("match_id", s.ID).
			Strs("failed", failed).
			Msg("extension settlement failed")
		if s.windowElapsed {
			e.endSession(s, protocol.ReasonTimeout)
		}
		return
	}

	e.extendSession(s, triggeredBy)
}

// extendSession moves s from DecisionWindow back to Active with a later
// deadline
func (e *Engine) extendSession(s *Session, triggeredBy string) {
	now := e.clock.Now()
	if s.window != nil {
		s.window.Stop()
		s.window = nil
	}

	base := s.Deadline
	if now.After(base) {
		base = now
	}
	s.Deadline = base.Add(e.config.ExtensionDuration)
	s.State = StateActive
	s.epoch++
	s.clearVotes()
	s.WindowDeadline = time.Time{}
	s.windowElapsed = false

	e.scheduleCountdown(s)

	for _, id := range s.Participants() {
		e.registry.Send(id, protocol.TimerUpdate(s.ID, s.Deadline, triggeredBy))
	}

	e.sink.Publish(events.New(events.EventTypeMatchExtended, s.ID, now, events.MatchExtendedPayload{
		EndsAt:      s.Deadline,
		TriggeredBy: triggeredBy,
	}))

	log.Info().
		Str("match_id", s.ID).
		Str("by", triggeredBy).
		Time("ends_at", s.Deadline).
		Msg("match extended")
}

func (e *Engine) canAfford(ctx context.Context, matchID, identity string) bool {
	ok, err := e.balance.CanAfford(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID).Str("user_id", identity).Msg("balance check failed")
		return false
	}
	return ok
}

func (e *Engine) charge(ctx context.Context, matchID, identity string) bool {
	ok, err := e.balance.Charge(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID).Str("user_id", identity).Msg("balance charge failed")
		return false
	}
	return ok
}
