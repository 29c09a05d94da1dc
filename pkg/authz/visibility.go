package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Builder computes per-user visibility sets by unioning every authorization
// source, consulting the cache first and writing back on miss.
type Builder struct {
	store   *Store
	cache   VisibilityCache
	log     *logrus.Logger
	metrics *Metrics
}

// NewBuilder creates a visibility set builder.
func NewBuilder(store *Store, cache VisibilityCache, log *logrus.Logger, metrics *Metrics) *Builder {
	if log == nil {
		log = logrus.New()
	}
	return &Builder{
		store:   store,
		cache:   cache,
		log:     log,
		metrics: metrics,
	}
}

// VisibleSpaces returns the set of spaces the user may see for the given
// visibility kind, intersected with the restriction when one is active.
//
// The cache stores the pre-restriction union: cache keys carry no session
// state, so the cached value must not either. The restriction is applied on
// every return path.
func (b *Builder) VisibleSpaces(ctx context.Context, userID int64, kind VisibilityKind, restriction *ScopeRestriction) (SpaceSet, error) {
	if b.cache != nil {
		set, err := b.cache.Get(ctx, userID, kind)
		if err == nil {
			b.metrics.recordCacheHit(kind)
			return restriction.Apply(set), nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			// A broken cache degrades to recomputation, never to a wrong
			// answer.
			b.log.WithError(err).WithField("user_id", userID).Warn("visibility cache read failed")
		}
		b.metrics.recordCacheMiss(kind)
	}

	set, err := b.compute(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, userID, kind, set); err != nil {
			b.log.WithError(err).WithField("user_id", userID).Warn("visibility cache write failed")
		}
	}

	return restriction.Apply(set), nil
}

// compute unions every authorization source for the user. Order does not
// affect the result.
func (b *Builder) compute(ctx context.Context, userID int64, kind VisibilityKind) (SpaceSet, error) {
	b.metrics.recordCompute(kind)

	roles, err := b.store.GetUserGlobalRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A global admin sees every space; the scope restriction still applies
	// downstream.
	for _, role := range roles {
		if role == GlobalRoleAdmin {
			all, err := b.store.ListSpaceIDs(ctx)
			if err != nil {
				return nil, err
			}
			return NewSpaceSet(all...), nil
		}
	}

	set := NewSpaceSet()

	roleSpaces, err := b.store.SpacesWithRoleMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	set.AddAll(roleSpaces)

	granted, err := b.grantedSpaces(ctx, userID, roles, kind)
	if err != nil {
		return nil, err
	}
	for id := range granted {
		set.Add(id)
	}

	authored, err := b.store.SpacesWithAuthoredPages(ctx, userID)
	if err != nil {
		return nil, err
	}
	set.AddAll(authored)

	related, err := b.store.SpacesWithRelatedPages(ctx, userID)
	if err != nil {
		return nil, err
	}
	set.AddAll(related)

	return set, nil
}

// grantedSpaces returns the spaces covered by grant rows matching the user
// directly, one of the user's global roles, or one of the user's group
// memberships, filtered to the permission backing the visibility kind.
func (b *Builder) grantedSpaces(ctx context.Context, userID int64, roles []string, kind VisibilityKind) (SpaceSet, error) {
	permission, err := kind.Permission()
	if err != nil {
		return nil, err
	}

	grants, err := b.store.ListGrantsByPermission(ctx, permission)
	if err != nil {
		return nil, err
	}

	set := NewSpaceSet()
	if len(grants) == 0 {
		return set, nil
	}

	groups, err := b.store.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, grant := range grants {
		match, err := grantMatches(grant, userID, roles, groups)
		if err != nil {
			return nil, fmt.Errorf("failed to match grant: %w", err)
		}
		if match {
			set.Add(grant.SpaceID)
		}
	}

	return set, nil
}
