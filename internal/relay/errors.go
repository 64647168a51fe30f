package relay

import "errors"

// Sentinel errors returned by Relay operations.
var (
	// ErrAlreadyStarted indicates Start was called on a running relay.
	ErrAlreadyStarted = errors.New("relay: already started")

	// ErrNotStarted indicates Stop was called before Start.
	ErrNotStarted = errors.New("relay: not started")

	// ErrBrokerUnavailable indicates a side was not connected when the
	// relay tried to subscribe.
	ErrBrokerUnavailable = errors.New("relay: broker not connected")
)
