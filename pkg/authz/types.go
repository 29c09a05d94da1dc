package authz

import (
	"fmt"
	"sort"
	"time"
)

// GlobalRoleAdmin is the global role that bypasses all downstream checks.
const GlobalRoleAdmin = "admin"

// SpaceRole identifies one of a space's role-assignment sets.
type SpaceRole string

const (
	SpaceRoleModerator SpaceRole = "moderator"
	SpaceRoleChampion  SpaceRole = "champion"
	SpaceRoleExpert    SpaceRole = "expert"
)

// AgentKind identifies what a space grant's agent value refers to.
//
// The set of kinds is closed: grant matching has one arm per kind, and an
// unknown kind is an error rather than a silently ignored branch.
type AgentKind string

const (
	AgentUser  AgentKind = "user"
	AgentRole  AgentKind = "role"
	AgentGroup AgentKind = "group"
)

// Permission distinguishes what a space grant allows.
type Permission string

const (
	// PermissionViewSpace allows seeing the space itself.
	PermissionViewSpace Permission = "view_space"

	// PermissionViewPages allows seeing pages filed in the space.
	PermissionViewPages Permission = "view_pages"
)

// VisibilityKind selects which visibility set to compute or cache.
type VisibilityKind string

const (
	// VisibilitySpaces is the set of spaces the user may open.
	VisibilitySpaces VisibilityKind = "spaces"

	// VisibilityPages is the set of spaces whose pages the user may browse.
	VisibilityPages VisibilityKind = "pages"
)

// Permission returns the grant permission backing this visibility kind.
// An unrecognized kind is an error, never a silent default.
func (k VisibilityKind) Permission() (Permission, error) {
	switch k {
	case VisibilitySpaces:
		return PermissionViewSpace, nil
	case VisibilityPages:
		return PermissionViewPages, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVisibilityKind, k)
	}
}

// RelationField identifies a page relation field in a mutation event.
type RelationField string

const (
	RelationCoAuthor   RelationField = "co_author"
	RelationTeamMember RelationField = "team_member"
	RelationExpert     RelationField = "expert"
	RelationInvited    RelationField = "invited"
)

// Space is a grouping entity that pages are filed under.
type Space struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpaceRoleSets holds a space's three role-assignment sets.
type SpaceRoleSets struct {
	Moderators []int64 `json:"moderators"`
	Champions  []int64 `json:"champions"`
	Experts    []int64 `json:"experts"`
}

// Contains reports whether the user appears in any of the three sets.
func (s SpaceRoleSets) Contains(userID int64) bool {
	for _, set := range [][]int64{s.Moderators, s.Champions, s.Experts} {
		for _, id := range set {
			if id == userID {
				return true
			}
		}
	}
	return false
}

// Page is a content item with explicit relation fields.
//
// CoAuthorID is a single optional user despite the plural-sounding name; the
// data model is 1:1 and must stay that way until product says otherwise.
type Page struct {
	ID            int64   `json:"id"`
	SpaceID       *int64  `json:"space_id,omitempty"` // nil for orphan pages
	AuthorID      int64   `json:"author_id"`
	CoAuthorID    *int64  `json:"co_author_id,omitempty"`
	TeamMemberIDs []int64 `json:"team_member_ids,omitempty"`
	ExpertIDs     []int64 `json:"expert_ids,omitempty"`
	InvitedIDs    []int64 `json:"invited_ids,omitempty"`
	SocialGroupID *string `json:"social_group_id,omitempty"`
	IsPublic      bool    `json:"is_public"`
}

// Grant is a generic authorization row for a space.
type Grant struct {
	ID         int64      `json:"id"`
	SpaceID    int64      `json:"space_id"`
	Permission Permission `json:"permission"`
	AgentKind  AgentKind  `json:"agent_kind"`
	Agent      string     `json:"agent"` // user id, role name, or group id
}

// SpaceSet is a set of space ids.
type SpaceSet map[int64]struct{}

// NewSpaceSet builds a set from the given ids.
func NewSpaceSet(ids ...int64) SpaceSet {
	s := make(SpaceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an id into the set.
func (s SpaceSet) Add(id int64) {
	s[id] = struct{}{}
}

// AddAll inserts every id into the set.
func (s SpaceSet) AddAll(ids []int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Contains reports whether the id is a member of the set.
func (s SpaceSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of the set.
func (s SpaceSet) Clone() SpaceSet {
	out := make(SpaceSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns the members of s that are also in other.
func (s SpaceSet) Intersect(other SpaceSet) SpaceSet {
	out := make(SpaceSet)
	for id := range s {
		if other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// IDs returns the members as a sorted slice.
func (s SpaceSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScopeRestriction is an externally issued allow-list of space ids bound to
// the calling session. A nil *ScopeRestriction means no restriction is
// active. A non-nil restriction with an empty allow-list denies everything;
// the two states must not be conflated.
type ScopeRestriction struct {
	AllowedSpaceIDs SpaceSet `json:"allowed_space_ids"`
}

// NewScopeRestriction builds a restriction allowing exactly the given spaces.
func NewScopeRestriction(spaceIDs ...int64) *ScopeRestriction {
	return &ScopeRestriction{AllowedSpaceIDs: NewSpaceSet(spaceIDs...)}
}

// Decision is the outcome of a single page view check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// PageViewCheck is a request to check whether a user may view a page.
type PageViewCheck struct {
	UserID      int64             `json:"user_id"`
	PageID      int64             `json:"page_id"`
	Restriction *ScopeRestriction `json:"restriction,omitempty"`
}
