package protocol

import "errors"

var (
	// ErrMalformed is returned for frames that are not a JSON envelope
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownTag is returned for envelopes with an unrecognised type
	ErrUnknownTag = errors.New("unknown message type")
)
