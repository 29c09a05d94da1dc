package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds engine configuration.
type Config struct {
	// CacheTTL is the safety-net TTL on cached visibility sets. Event-driven
	// invalidation is the primary coherence mechanism; the TTL only bounds
	// the damage of a dropped event.
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached visibility sets when the
	// default in-process cache is used.
	CacheSize int

	// Cache overrides the default in-process cache, e.g. with a RedisCache
	// for multi-replica deployments.
	Cache VisibilityCache

	// Legacy is an optional external authority consulted as the final grant
	// path. Nil means the path is skipped.
	Legacy LegacyAuthority

	// Logger is the structured logger used by the engine. Nil gets a default
	// logrus logger.
	Logger *logrus.Logger

	// Metrics enables Prometheus instrumentation when set.
	Metrics *Metrics
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:  5 * time.Minute,
		CacheSize: 4096,
	}
}

// Engine wires the store, visibility builder, page resolver, cache, and
// invalidation router behind the three calls collaborators use: CanView,
// VisibleSpaces, and Invalidate.
type Engine struct {
	store    *Store
	builder  *Builder
	resolver *Resolver
	router   *Router
	cache    VisibilityCache
	config   Config
	log      *logrus.Logger
}

// New creates an authorization engine over the given database.
func New(db *sql.DB, config Config) *Engine {
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	// A zero TTL would make the expirable LRU keep entries forever, silently
	// removing the safety net against dropped invalidation events.
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultConfig().CacheSize
	}

	cache := config.Cache
	if cache == nil {
		cache = NewMemoryCache(config.CacheSize, config.CacheTTL)
	}

	store := NewStore(db)
	builder := NewBuilder(store, cache, log, config.Metrics)
	resolver := NewResolver(store, builder, config.Legacy, log, config.Metrics)
	router := NewRouter(cache, log, config.Metrics)

	return &Engine{
		store:    store,
		builder:  builder,
		resolver: resolver,
		router:   router,
		cache:    cache,
		config:   config,
		log:      log,
	}
}

// Initialize runs the schema migrations for the tables the engine reads.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := RunMigrations(ctx, e.store.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CanView reports whether the user may view the page. A nonexistent page is
// a denial; storage failures are returned as errors, never coerced to deny.
func (e *Engine) CanView(ctx context.Context, userID, pageID int64, restriction *ScopeRestriction) (bool, error) {
	decision, err := e.resolver.CheckPageView(ctx, PageViewCheck{
		UserID:      userID,
		PageID:      pageID,
		Restriction: restriction,
	})
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// CheckPageView runs the full decision procedure and returns the decision
// with its granting or denying step, for callers that need the reason.
func (e *Engine) CheckPageView(ctx context.Context, check PageViewCheck) (*Decision, error) {
	return e.resolver.CheckPageView(ctx, check)
}

// CanViewSpace reports whether the user may open the space itself: a
// membership test against the space-kind visibility set. A nonexistent space
// is simply not a member of any source, so it resolves to a denial.
func (e *Engine) CanViewSpace(ctx context.Context, userID, spaceID int64, restriction *ScopeRestriction) (bool, error) {
	if !restriction.Allows(spaceID) {
		return false, nil
	}
	visible, err := e.builder.VisibleSpaces(ctx, userID, VisibilitySpaces, restriction)
	if err != nil {
		return false, err
	}
	return visible.Contains(spaceID), nil
}

// VisibleSpaces returns the set of spaces the user may see for the given
// kind, intersected with the restriction when one is active.
func (e *Engine) VisibleSpaces(ctx context.Context, userID int64, kind VisibilityKind, restriction *ScopeRestriction) (SpaceSet, error) {
	return e.builder.VisibleSpaces(ctx, userID, kind, restriction)
}

// Invalidate routes one mutation event to the cache. Writers must call this
// in the same critical section as the mutation; see Router.Route for the
// error contract.
func (e *Engine) Invalidate(ctx context.Context, event Event) error {
	return e.router.Route(ctx, event)
}

// Store returns the engine's read-only store.
func (e *Engine) Store() *Store {
	return e.store
}
