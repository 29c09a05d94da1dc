package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCache(t *testing.T, cache VisibilityCache, userIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, userID := range userIDs {
		require.NoError(t, cache.Set(ctx, userID, VisibilitySpaces, NewSpaceSet(1)))
		require.NoError(t, cache.Set(ctx, userID, VisibilityPages, NewSpaceSet(1)))
	}
}

func assertEvicted(t *testing.T, cache VisibilityCache, userID int64) {
	t.Helper()
	_, err := cache.Get(context.Background(), userID, VisibilitySpaces)
	assert.ErrorIs(t, err, ErrCacheMiss, "user %d space-kind entry should be evicted", userID)
	_, err = cache.Get(context.Background(), userID, VisibilityPages)
	assert.ErrorIs(t, err, ErrCacheMiss, "user %d page-kind entry should be evicted", userID)
}

func TestRouter_RoleSetChanged(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(64, time.Minute)
	router := NewRouter(cache, nil, nil)

	seedCache(t, cache, 1, 2, 3)

	// Old and new members are both evicted: 1 was revoked, 2 stays, 3 was
	// granted. The conservative namespace flush takes the bystanders too.
	err := router.Route(ctx, RoleSetChangedEvent{
		SpaceID: 7,
		Role:    SpaceRoleModerator,
		Old:     []int64{1, 2},
		New:     []int64{2, 3},
	})
	require.NoError(t, err)

	assertEvicted(t, cache, 1)
	assertEvicted(t, cache, 2)
	assertEvicted(t, cache, 3)
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestRouter_SpaceSavedFlushesEverything(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(64, time.Minute)
	router := NewRouter(cache, nil, nil)

	seedCache(t, cache, 1, 2)

	require.NoError(t, router.Route(ctx, SpaceSavedEvent{SpaceID: 7}))

	assertEvicted(t, cache, 1)
	assertEvicted(t, cache, 2)
}

func TestRouter_PageRelationChangedIsPrecise(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(64, time.Minute)
	router := NewRouter(cache, nil, nil)

	seedCache(t, cache, 1, 2, 3)

	err := router.Route(ctx, PageRelationChangedEvent{
		PageID: 9,
		Field:  RelationTeamMember,
		Old:    []int64{1},
		New:    []int64{2},
	})
	require.NoError(t, err)

	assertEvicted(t, cache, 1)
	assertEvicted(t, cache, 2)

	// User 3 was referenced by neither value and keeps their entries.
	_, err = cache.Get(ctx, 3, VisibilityPages)
	require.NoError(t, err)
}

func TestRouter_CoAuthorChangeCarriesSingleValues(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(64, time.Minute)
	router := NewRouter(cache, nil, nil)

	seedCache(t, cache, 4, 5)

	// The single-valued co-author field is reported as zero-or-one element
	// slices.
	err := router.Route(ctx, PageRelationChangedEvent{
		PageID: 9,
		Field:  RelationCoAuthor,
		Old:    []int64{4},
		New:    []int64{5},
	})
	require.NoError(t, err)

	assertEvicted(t, cache, 4)
	assertEvicted(t, cache, 5)
}

func TestRouter_GrantTableChangedFlushesEverything(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(64, time.Minute)
	router := NewRouter(cache, nil, nil)

	seedCache(t, cache, 1, 2)

	require.NoError(t, router.Route(ctx, GrantTableChangedEvent{}))

	assertEvicted(t, cache, 1)
	assertEvicted(t, cache, 2)
}

func TestRouter_NilEventIsAnError(t *testing.T) {
	router := NewRouter(NewMemoryCache(64, time.Minute), nil, nil)

	err := router.Route(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

type rogueEvent struct{}

func (rogueEvent) eventName() string { return "rogue" }

func TestRouter_UnroutableEventFailsLoud(t *testing.T) {
	router := NewRouter(NewMemoryCache(64, time.Minute), nil, nil)

	err := router.Route(context.Background(), rogueEvent{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

type failingCache struct {
	err error
}

func (f *failingCache) Get(ctx context.Context, userID int64, kind VisibilityKind) (SpaceSet, error) {
	return nil, ErrCacheMiss
}

func (f *failingCache) Set(ctx context.Context, userID int64, kind VisibilityKind, spaces SpaceSet) error {
	return f.err
}

func (f *failingCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	return f.err
}

func (f *failingCache) Flush(ctx context.Context) error {
	return f.err
}

func TestRouter_CacheFailureIsSurfacedNotSwallowed(t *testing.T) {
	boom := errors.New("redis down")
	router := NewRouter(&failingCache{err: boom}, nil, nil)

	err := router.Route(context.Background(), SpaceSavedEvent{SpaceID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
