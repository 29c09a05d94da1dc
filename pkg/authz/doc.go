// Package authz implements the authorization resolution engine for the Hearth
// content platform.
//
// # Overview
//
// The engine answers two questions for the content and tool layers above it:
// "can this user view this page" and "which spaces can this user see". Both
// answers are fail-closed: the only way to grant access is to reach an
// explicit grant step, and any unhandled path is a denial.
//
// # Architecture
//
// The engine consists of five components:
//
//  1. Store: read-only queries over users, spaces, pages, role assignments,
//     and space grants. All mutation happens in the content layer, which is
//     required to route mutations through the invalidation Router.
//  2. Builder: computes the set of spaces a user can see by unioning every
//     authorization source (global admin, space role sets, space grants,
//     authored pages, page relations).
//  3. Resolver: an ordered, short-circuiting decision procedure for a single
//     page. Cheap relation checks run before the space-level aggregate.
//  4. VisibilityCache: per-user cached visibility sets with a TTL safety net.
//     Invalidation is immediate removal, never lazy marking.
//  5. Router: receives typed mutation events from writers and evicts exactly
//     the cache entries those mutations could have produced, falling back to
//     a full flush where precise eviction is not possible.
//
// # Visibility kinds
//
// Space visibility and page visibility are tracked separately because they
// are backed by different grant permissions:
//
//	VisibilitySpaces - the user may open the space itself ("view_space")
//	VisibilityPages  - the user may browse pages filed in it ("view_pages")
//
// # Scope restrictions
//
// A ScopeRestriction is an externally issued allow-list of space ids bound to
// the calling session (for example a delegated partner integration). It is
// intersected with every answer and can only narrow visibility. A nil
// restriction means no restriction; a non-nil restriction with an empty
// allow-list denies everything. The two states are never conflated.
//
// # Usage
//
//	engine := authz.New(db, authz.DefaultConfig())
//	if err := engine.Initialize(ctx); err != nil {
//		return err
//	}
//
//	ok, err := engine.CanView(ctx, userID, pageID, nil)
//	if err != nil {
//		return err
//	}
//
// Writers must report mutations so that cached visibility cannot outlive the
// data that produced it:
//
//	err := engine.Invalidate(ctx, authz.RoleSetChangedEvent{
//		SpaceID: spaceID,
//		Role:    authz.SpaceRoleModerator,
//		Old:     oldMembers,
//		New:     newMembers,
//	})
//
// The invalidation must happen in the same critical section as the write (or
// before the write becomes durable). A window where a write is durable but a
// stale cached answer is still served is the one coherence hazard this
// package is built to prevent.
//
// # Error semantics
//
// A query for a page or space that does not exist resolves to a denial, not
// an error, so that existence and permission are indistinguishable to an
// unprivileged caller. Storage failures are returned to the caller unchanged
// so that outages are not masked as denials.
package authz
