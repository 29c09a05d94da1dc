package authz

import "errors"

var (
	// ErrPageNotFound is returned by the store when a page does not exist.
	// The resolver converts it to a denial so that existence and permission
	// are indistinguishable to unprivileged callers.
	ErrPageNotFound = errors.New("page not found")

	// ErrSpaceNotFound is returned by the store when a space does not exist
	ErrSpaceNotFound = errors.New("space not found")

	// ErrUnknownAgentKind is returned when a grant row carries an agent kind
	// the engine does not recognize
	ErrUnknownAgentKind = errors.New("unknown grant agent kind")

	// ErrUnknownEvent is returned when the router receives an event type it
	// has no handler for
	ErrUnknownEvent = errors.New("unknown invalidation event")

	// ErrUnknownVisibilityKind is returned when a visibility kind outside the
	// two known values reaches the set builder
	ErrUnknownVisibilityKind = errors.New("unknown visibility kind")

	// ErrCacheMiss is returned when a visibility cache key is not found
	ErrCacheMiss = errors.New("cache miss")
)
