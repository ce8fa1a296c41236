package notifier

import "errors"

var (
	// ErrSessionDeactivated is returned for operations on a session that was
	// torn down, the client is expected to subscribe again.
	ErrSessionDeactivated = errors.New("session is deactivated")
	// ErrTooManySessions is returned when a new address can't get a session
	// because the limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrMalformedEventToken is returned for event tokens not following the
	// Family.Member[.Account] grammar.
	ErrMalformedEventToken = errors.New("malformed event token")
	// ErrUnknownEvent is returned for event tokens naming unknown families or
	// members.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMutuallyExclusiveParameters is returned when both add and replace
	// subscription modes are requested.
	ErrMutuallyExclusiveParameters = errors.New("add and replace are mutually exclusive")
	// ErrNoSessionRegistered is returned when there is no session for the
	// client address.
	ErrNoSessionRegistered = errors.New("no session registered for this address")
	// ErrShuttingDown is returned to all waiters when the service stops.
	ErrShuttingDown = errors.New("service is shutting down")
)
