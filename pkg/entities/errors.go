package entities

import "errors"

var (
	// ErrCapabilityUnavailable is returned by a platform client that cannot
	// serve a request at all, e.g. thread replies for a peer without threads
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrInvalidPeer indicates that the conversation cannot be addressed
	ErrInvalidPeer = errors.New("invalid peer")

	// ErrTimeout indicates that a request did not complete in time
	ErrTimeout = errors.New("request timeout")

	// ErrChatNotFound indicates that an identifier does not resolve to a conversation
	ErrChatNotFound = errors.New("chat not found")
)
