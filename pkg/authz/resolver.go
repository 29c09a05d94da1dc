package authz

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Decision reasons, one per grant or deny path in the resolver.
const (
	ReasonScopeDenied  = "scope_restriction"
	ReasonAdmin        = "global_admin"
	ReasonAuthor       = "author"
	ReasonCoAuthor     = "co_author"
	ReasonTeamMember   = "team_member"
	ReasonPageExpert   = "page_expert"
	ReasonInvited      = "invited"
	ReasonSocialGroup  = "social_group"
	ReasonPublic       = "public"
	ReasonOrphan       = "orphan_page"
	ReasonSpaceRole    = "space_role"
	ReasonVisibleSpace = "visible_space"
	ReasonLegacy       = "legacy_authority"
	ReasonDefaultDeny  = "default_deny"
	ReasonPageNotFound = "page_not_found"
)

// Resolver decides whether a user may view a single page.
//
// The checks run in a fixed order: the scope restriction first and absolute,
// then the O(1) relation fields on the page row, then the space role sets,
// and only then the space-level visibility aggregate, which may have to build
// the user's full visible-space set. The legacy authority, when configured,
// is the last grant path before the default denial.
type Resolver struct {
	store   *Store
	builder *Builder
	legacy  LegacyAuthority
	log     *logrus.Logger
	metrics *Metrics
}

// NewResolver creates a page access resolver. legacy may be nil.
func NewResolver(store *Store, builder *Builder, legacy LegacyAuthority, log *logrus.Logger, metrics *Metrics) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{
		store:   store,
		builder: builder,
		legacy:  legacy,
		log:     log,
		metrics: metrics,
	}
}

// CheckPageView runs the ordered decision procedure for a single page.
//
// A nonexistent page resolves to a denial rather than an error so that
// existence and permission are indistinguishable to unprivileged callers.
// Storage failures are returned unchanged.
func (r *Resolver) CheckPageView(ctx context.Context, check PageViewCheck) (*Decision, error) {
	decision, err := r.decide(ctx, check)
	if err != nil {
		return nil, err
	}

	r.metrics.recordDecision(decision.Allowed, decision.Reason)
	r.log.WithFields(logrus.Fields{
		"user_id": check.UserID,
		"page_id": check.PageID,
		"allowed": decision.Allowed,
		"reason":  decision.Reason,
	}).Debug("page view decision")

	return decision, nil
}

func (r *Resolver) decide(ctx context.Context, check PageViewCheck) (*Decision, error) {
	page, err := r.store.GetPage(ctx, check.PageID)
	if errors.Is(err, ErrPageNotFound) {
		return deny(ReasonPageNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	// The scope restriction is checked first and overrides every later
	// grant; no cheaper check may leak access outside a delegated session's
	// boundary. An orphan page cannot be inside any allow-list.
	if check.Restriction != nil {
		if page.SpaceID == nil || !check.Restriction.Allows(*page.SpaceID) {
			return deny(ReasonScopeDenied), nil
		}
	}

	roles, err := r.store.GetUserGlobalRoles(ctx, check.UserID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role == GlobalRoleAdmin {
			return grant(ReasonAdmin), nil
		}
	}

	// Relation fields on the page row: O(1) reads that catch the bulk of
	// real traffic before any space-level work.
	if page.AuthorID == check.UserID {
		return grant(ReasonAuthor), nil
	}
	if page.CoAuthorID != nil && *page.CoAuthorID == check.UserID {
		return grant(ReasonCoAuthor), nil
	}
	if containsID(page.TeamMemberIDs, check.UserID) {
		return grant(ReasonTeamMember), nil
	}
	if containsID(page.ExpertIDs, check.UserID) {
		return grant(ReasonPageExpert), nil
	}
	if containsID(page.InvitedIDs, check.UserID) {
		return grant(ReasonInvited), nil
	}

	if page.SocialGroupID != nil {
		member, err := r.store.IsGroupMember(ctx, check.UserID, *page.SocialGroupID)
		if err != nil {
			return nil, err
		}
		if member {
			return grant(ReasonSocialGroup), nil
		}
	}

	// The public flag is the last chance for an orphan page.
	if page.IsPublic {
		return grant(ReasonPublic), nil
	}
	if page.SpaceID == nil {
		return deny(ReasonOrphan), nil
	}

	hasRole, err := r.store.HasSpaceRole(ctx, *page.SpaceID, check.UserID)
	if err != nil {
		return nil, err
	}
	if hasRole {
		return grant(ReasonSpaceRole), nil
	}

	visible, err := r.builder.VisibleSpaces(ctx, check.UserID, VisibilityPages, check.Restriction)
	if err != nil {
		return nil, err
	}
	if visible.Contains(*page.SpaceID) {
		return grant(ReasonVisibleSpace), nil
	}

	if r.legacy != nil {
		allowed, err := r.legacy.CanViewPage(ctx, check.UserID, check.PageID)
		if err != nil {
			// An unreachable legacy authority is skipped, not turned into a
			// grant or a hard failure; the default denial below still holds.
			r.log.WithError(err).WithFields(logrus.Fields{
				"user_id": check.UserID,
				"page_id": check.PageID,
			}).Warn("legacy authority unreachable")
		} else if allowed {
			return grant(ReasonLegacy), nil
		}
	}

	return deny(ReasonDefaultDeny), nil
}

func grant(reason string) *Decision {
	return &Decision{Allowed: true, Reason: reason, CheckedAt: time.Now()}
}

func deny(reason string) *Decision {
	return &Decision{Allowed: false, Reason: reason, CheckedAt: time.Now()}
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
