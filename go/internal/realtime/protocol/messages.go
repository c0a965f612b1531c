package protocol

import (
	"encoding/json"
	"time"
)

// InboundType is the tag of a client to server message
type InboundType string

const (
	InboundPoolJoin    InboundType = "POOL_JOIN"
	InboundPoolLeave   InboundType = "POOL_LEAVE"
	InboundChatSend    InboundType = "CHAT_SEND"
	InboundMatchExtend InboundType = "MATCH_EXTEND"
)

// OutboundType is the tag of a server to client message
type OutboundType string

const (
	OutboundReady         OutboundType = "READY"
	OutboundPoolJoined    OutboundType = "POOL_JOINED"
	OutboundPoolLeft      OutboundType = "POOL_LEFT"
	OutboundMatchFound    OutboundType = "MATCH_FOUND"
	OutboundTimerUpdate   OutboundType = "TIMER_UPDATE"
	OutboundChatMsg       OutboundType = "CHAT_MSG"
	OutboundPeerStatus    OutboundType = "PEER_STATUS"
	OutboundMatchEnded    OutboundType = "MATCH_ENDED"
	OutboundExtendPending OutboundType = "EXTEND_PENDING"
	OutboundError         OutboundType = "ERROR"
)

// ErrorCode is carried by ERROR messages
type ErrorCode string

const (
	ErrUnknownType         ErrorCode = "UNKNOWN_TYPE"
	ErrMissingMatchID      ErrorCode = "MISSING_MATCH_ID"
	ErrNotInMatch          ErrorCode = "NOT_IN_MATCH"
	ErrNoSuchMatch         ErrorCode = "NO_SUCH_MATCH"
	ErrNotExtendable       ErrorCode = "NOT_EXTENDABLE"
	ErrExtendWindowExpired ErrorCode = "EXTEND_WINDOW_EXPIRED"
	ErrAlreadyInMatch      ErrorCode = "ALREADY_IN_MATCH"
	ErrNotEnoughGems       ErrorCode = "NOT_ENOUGH_GEMS"
	ErrPeerOffline         ErrorCode = "PEER_OFFLINE"
)

// EndReason explains why a match was torn down
type EndReason string

const (
	ReasonLeave      EndReason = "leave"
	ReasonDisconnect EndReason = "disconnect"
	ReasonTimeout    EndReason = "timeout"
)

// PeerStatus is reported to the remaining participant while the other one
// drops and comes back.
type PeerStatus string

const (
	PeerReconnecting PeerStatus = "reconnecting"
	PeerConnected    PeerStatus = "connected"
)

// WebSocket close codes sent to clients.
const (
	CloseSuperseded   = 4400
	CloseMissingToken = 4401
	CloseInvalidToken = 4403
)

// Inbound is the decoded client envelope. Only the fields relevant to the
// tag are populated.
type Inbound struct {
	Type    InboundType `json:"type"`
	MatchID string      `json:"matchId,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Outbound is the server envelope. Every message shares the same shape so a
// single json.Marshal serves all tags; empty fields are omitted. StartedAt
// and EndsAt are Unix milliseconds, At is an RFC 3339 timestamp.
type Outbound struct {
	Type        OutboundType `json:"type"`
	MatchID     string       `json:"matchId,omitempty"`
	PeerID      string       `json:"peerId,omitempty"`
	YouAre      string       `json:"youAre,omitempty"`
	StartedAt   int64        `json:"startedAt,omitempty"`
	EndsAt      int64        `json:"endsAt,omitempty"`
	ChatSeconds int          `json:"chatSeconds,omitempty"`
	By          string       `json:"by,omitempty"`
	From        string       `json:"from,omitempty"`
	Text        string       `json:"text,omitempty"`
	At          *time.Time   `json:"at,omitempty"`
	Status      PeerStatus   `json:"status,omitempty"`
	Reason      EndReason    `json:"reason,omitempty"`
	Code        ErrorCode    `json:"code,omitempty"`
}

// Decode parses a raw client frame. A frame that is not a JSON object, or
// whose tag is unknown, yields ErrMalformed or ErrUnknownTag.
func Decode(raw []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, ErrMalformed
	}
	switch msg.Type {
	case InboundPoolJoin, InboundPoolLeave, InboundChatSend, InboundMatchExtend:
		return msg, nil
	default:
		return msg, ErrUnknownTag
	}
}

// Encode marshals an outbound message for the wire.
func Encode(msg Outbound) ([]byte, error) {
	return json.Marshal(msg)
}
