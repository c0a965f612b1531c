package protocol

import "time"

// Ready acknowledges a freshly registered connection
func Ready() Outbound { return Outbound{Type: OutboundReady} }

// PoolJoined acknowledges POOL_JOIN
func PoolJoined() Outbound { return Outbound{Type: OutboundPoolJoined} }

// PoolLeft acknowledges POOL_LEAVE
func PoolLeft() Outbound { return Outbound{Type: OutboundPoolLeft} }

// Error builds an ERROR message
func Error(code ErrorCode) Outbound { return Outbound{Type: OutboundError, Code: code} }

// MatchFound announces (or re-announces) a pairing to one participant
func MatchFound(matchID, peerID, youAre string, startedAt, endsAt time.Time, chatSeconds int) Outbound {
	return Outbound{
		Type:        OutboundMatchFound,
		MatchID:     matchID,
		PeerID:      peerID,
		YouAre:      youAre,
		StartedAt:   startedAt.UnixMilli(),
		EndsAt:      endsAt.UnixMilli(),
		ChatSeconds: chatSeconds,
	}
}

// TimerUpdate broadcasts a new deadline after a successful extension
func TimerUpdate(matchID string, endsAt time.Time, by string) Outbound {
	return Outbound{Type: OutboundTimerUpdate, MatchID: matchID, EndsAt: endsAt.UnixMilli(), By: by}
}

// ChatMsg is the relayed chat line, identical for sender echo and peer
func ChatMsg(matchID, from, text string, at time.Time) Outbound {
	return Outbound{Type: OutboundChatMsg, MatchID: matchID, From: from, Text: text, At: timePtr(at)}
}

// PeerStatusMsg reports the peer's connectivity
func PeerStatusMsg(matchID, peerID string, status PeerStatus) Outbound {
	return Outbound{Type: OutboundPeerStatus, MatchID: matchID, PeerID: peerID, Status: status}
}

// MatchEnded reports a countdown expiry or a teardown
func MatchEnded(matchID string, reason EndReason) Outbound {
	return Outbound{Type: OutboundMatchEnded, MatchID: matchID, Reason: reason}
}

// ExtendPending privately acknowledges a recorded extend vote
func ExtendPending(matchID string) Outbound {
	return Outbound{Type: OutboundExtendPending, MatchID: matchID}
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
