package authz

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Event is a typed notification that authorization-relevant state changed.
// The set of variants is closed; the Router has one handler per variant and
// treats anything else as an error.
//
// Writers must route the event in the same critical section as the mutation
// (or before it becomes durable). A window in which a write is durable but
// the matching cache entries still exist is the coherence hazard the router
// exists to prevent.
type Event interface {
	eventName() string
}

// RoleSetChangedEvent reports that one of a space's role-assignment sets
// (moderators, champions, or experts) was replaced.
type RoleSetChangedEvent struct {
	SpaceID int64
	Role    SpaceRole
	Old     []int64
	New     []int64
}

func (RoleSetChangedEvent) eventName() string { return "role_set_changed" }

// SpaceSavedEvent reports a space-level administrative save, which can alter
// grant-adjacent state not tracked field by field.
type SpaceSavedEvent struct {
	SpaceID int64
}

func (SpaceSavedEvent) eventName() string { return "space_saved" }

// PageRelationChangedEvent reports that one of a page's relation fields was
// replaced. For the single-valued co-author field, Old and New carry zero or
// one element.
type PageRelationChangedEvent struct {
	PageID int64
	Field  RelationField
	Old    []int64
	New    []int64
}

func (PageRelationChangedEvent) eventName() string { return "page_relation_changed" }

// GrantTableChangedEvent reports an external mutation of the space grant
// table. Grants are not user-addressable without a full scan, so no precise
// invalidation is attempted.
type GrantTableChangedEvent struct{}

func (GrantTableChangedEvent) eventName() string { return "grant_table_changed" }

// Router translates mutation events into cache evictions.
type Router struct {
	cache   VisibilityCache
	log     *logrus.Logger
	metrics *Metrics
}

// NewRouter creates an invalidation event router.
func NewRouter(cache VisibilityCache, log *logrus.Logger, metrics *Metrics) *Router {
	if log == nil {
		log = logrus.New()
	}
	return &Router{
		cache:   cache,
		log:     log,
		metrics: metrics,
	}
}

// Route applies the cache invalidation for one event, synchronously.
//
// Failures are logged at error level and returned, but a caller's write path
// must not be rolled back on a returned error: the mutation already happened,
// and the only mitigation left for a dropped invalidation is the cache TTL.
// An unroutable event is an ErrUnknownEvent, never a silent no-op.
func (r *Router) Route(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrUnknownEvent)
	}

	name := event.eventName()

	var err error
	switch e := event.(type) {
	case RoleSetChangedEvent:
		err = r.handleRoleSetChanged(ctx, e)
	case SpaceSavedEvent:
		err = r.cache.Flush(ctx)
	case PageRelationChangedEvent:
		err = r.cache.Invalidate(ctx, unionIDs(e.Old, e.New)...)
	case GrantTableChangedEvent:
		err = r.cache.Flush(ctx)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if err != nil {
		// A dropped invalidation leaves a stale grant alive until the TTL
		// safety net fires.
		r.metrics.recordInvalidationError(name)
		r.log.WithError(err).WithField("event", name).Error("cache invalidation failed")
		return fmt.Errorf("failed to route %s event: %w", name, err)
	}

	r.metrics.recordInvalidation(name)
	return nil
}

// handleRoleSetChanged evicts every user present in the old or new set value,
// covering both newly granted and newly revoked users, then flushes the whole
// namespace as a conservative fallback. Over-invalidation costs a cache miss;
// under-invalidation costs a stale grant.
func (r *Router) handleRoleSetChanged(ctx context.Context, event RoleSetChangedEvent) error {
	if err := r.cache.Invalidate(ctx, unionIDs(event.Old, event.New)...); err != nil {
		return err
	}
	return r.cache.Flush(ctx)
}

// unionIDs returns the deduplicated union of the two id slices.
func unionIDs(old, updated []int64) []int64 {
	seen := make(map[int64]struct{}, len(old)+len(updated))
	var out []int64
	for _, ids := range [][]int64{old, updated} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
