package authz

import "context"

// LegacyAuthority is an optional external authority consulted as the final
// grant path, after every local source has failed to grant. It is an injected
// capability: when absent the resolver falls through to deny, and when it
// fails the resolver treats it as unreachable and denies. It can never widen
// access past an active scope restriction because it is only consulted after
// the restriction check has passed.
type LegacyAuthority interface {
	// CanViewPage reports whether the legacy system would grant the user
	// access to the page.
	CanViewPage(ctx context.Context, userID, pageID int64) (bool, error)
}
