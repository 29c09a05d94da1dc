package authz

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Store provides the read-only view over the authorization data model.
//
// All mutation happens in the content layer; writers there are responsible
// for routing mutations through the Router so cached visibility stays
// coherent.
type Store struct {
	db *sql.DB
}

// NewStore creates a new authorization store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetPage retrieves a page and its relation fields.
// Returns ErrPageNotFound if no such page exists.
func (s *Store) GetPage(ctx context.Context, pageID int64) (*Page, error) {
	query := `
		SELECT id, space_id, author_id, co_author_id, social_group_id, is_public
		FROM pages
		WHERE id = $1
	`

	var page Page
	var spaceID, coAuthorID sql.NullInt64
	var socialGroupID sql.NullString

	err := s.db.QueryRowContext(ctx, query, pageID).Scan(
		&page.ID,
		&spaceID,
		&page.AuthorID,
		&coAuthorID,
		&socialGroupID,
		&page.IsPublic,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	if spaceID.Valid {
		id := spaceID.Int64
		page.SpaceID = &id
	}
	if coAuthorID.Valid {
		id := coAuthorID.Int64
		page.CoAuthorID = &id
	}
	if socialGroupID.Valid {
		id := socialGroupID.String
		page.SocialGroupID = &id
	}

	relations, err := s.getPageRelations(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	page.TeamMemberIDs = relations[RelationTeamMember]
	page.ExpertIDs = relations[RelationExpert]
	page.InvitedIDs = relations[RelationInvited]

	return &page, nil
}

// getPageRelations loads a page's set-valued relation fields.
func (s *Store) getPageRelations(ctx context.Context, pageID int64) (map[RelationField][]int64, error) {
	query := `
		SELECT relation, user_id
		FROM page_relations
		WHERE page_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get page relations: %w", err)
	}
	defer rows.Close()

	relations := make(map[RelationField][]int64)
	for rows.Next() {
		var relation string
		var userID int64
		if err := rows.Scan(&relation, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan page relation: %w", err)
		}
		field := RelationField(relation)
		relations[field] = append(relations[field], userID)
	}

	return relations, rows.Err()
}

// GetSpace retrieves a space by id.
// Returns ErrSpaceNotFound if no such space exists.
func (s *Store) GetSpace(ctx context.Context, spaceID int64) (*Space, error) {
	query := `
		SELECT id, name, owner_id, created_at, updated_at
		FROM spaces
		WHERE id = $1
	`

	var space Space
	err := s.db.QueryRowContext(ctx, query, spaceID).Scan(
		&space.ID,
		&space.Name,
		&space.OwnerID,
		&space.CreatedAt,
		&space.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	return &space, nil
}

// GetSpaceRoleSets retrieves a space's moderator, champion, and expert sets.
func (s *Store) GetSpaceRoleSets(ctx context.Context, spaceID int64) (*SpaceRoleSets, error) {
	query := `
		SELECT role, user_id
		FROM space_roles
		WHERE space_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space role sets: %w", err)
	}
	defer rows.Close()

	var sets SpaceRoleSets
	for rows.Next() {
		var role string
		var userID int64
		if err := rows.Scan(&role, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan space role: %w", err)
		}
		switch SpaceRole(role) {
		case SpaceRoleModerator:
			sets.Moderators = append(sets.Moderators, userID)
		case SpaceRoleChampion:
			sets.Champions = append(sets.Champions, userID)
		case SpaceRoleExpert:
			sets.Experts = append(sets.Experts, userID)
		}
	}

	return &sets, rows.Err()
}

// HasSpaceRole reports whether the user appears in any of the space's
// role-assignment sets.
func (s *Store) HasSpaceRole(ctx context.Context, spaceID, userID int64) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM space_roles
		WHERE space_id = $1 AND user_id = $2
	`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, spaceID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check space role: %w", err)
	}
	return count > 0, nil
}

// GetUserGlobalRoles returns the user's global roles (e.g. "admin").
func (s *Store) GetUserGlobalRoles(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT role
		FROM user_global_roles
		WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get global roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan global role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// GetUserGroups returns the ids of the external social groups the user
// belongs to.
func (s *Store) GetUserGroups(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT group_id
		FROM group_members
		WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("failed to scan group membership: %w", err)
		}
		groups = append(groups, groupID)
	}

	return groups, rows.Err()
}

// IsGroupMember reports whether the user is a member of the external group.
func (s *Store) IsGroupMember(ctx context.Context, userID int64, groupID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM group_members
		WHERE user_id = $1 AND group_id = $2
	`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, userID, groupID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

// ListSpaceIDs returns the ids of every space. Used for the global admin's
// universal visibility set.
func (s *Store) ListSpaceIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM spaces`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// SpacesWithRoleMember returns the spaces whose moderator, champion, or
// expert set contains the user.
func (s *Store) SpacesWithRoleMember(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT space_id
		FROM space_roles
		WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role memberships: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// SpacesWithAuthoredPages returns the spaces containing at least one page the
// user authored.
func (s *Store) SpacesWithAuthoredPages(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT space_id
		FROM pages
		WHERE author_id = $1 AND space_id IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authored spaces: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// SpacesWithRelatedPages returns the spaces containing at least one page
// where the user is the co-author or appears in the team member, expert, or
// invited set.
func (s *Store) SpacesWithRelatedPages(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT p.space_id
		FROM pages p
		WHERE p.co_author_id = $1 AND p.space_id IS NOT NULL
		UNION
		SELECT DISTINCT p.space_id
		FROM pages p
		JOIN page_relations pr ON pr.page_id = p.id
		WHERE pr.user_id = $2 AND p.space_id IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get related spaces: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ListGrantsByPermission returns every grant row carrying the permission.
func (s *Store) ListGrantsByPermission(ctx context.Context, permission Permission) ([]Grant, error) {
	query := `
		SELECT id, space_id, permission, agent_kind, agent
		FROM space_grants
		WHERE permission = $1
	`

	rows, err := s.db.QueryContext(ctx, query, string(permission))
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var grant Grant
		var perm, kind string
		if err := rows.Scan(&grant.ID, &grant.SpaceID, &perm, &kind, &grant.Agent); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grant.Permission = Permission(perm)
		grant.AgentKind = AgentKind(kind)
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

// grantMatches reports whether a grant applies to the user, given the user's
// global roles and group memberships. The switch is the single place agent
// kinds are interpreted; an unrecognized kind is an error, never a silent
// non-match.
func grantMatches(grant Grant, userID int64, roles []string, groups []string) (bool, error) {
	switch grant.AgentKind {
	case AgentUser:
		id, err := strconv.ParseInt(grant.Agent, 10, 64)
		if err != nil {
			return false, fmt.Errorf("grant %d has non-numeric user agent %q", grant.ID, grant.Agent)
		}
		return id == userID, nil
	case AgentRole:
		for _, role := range roles {
			if role == grant.Agent {
				return true, nil
			}
		}
		return false, nil
	case AgentGroup:
		for _, group := range groups {
			if group == grant.Agent {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q on grant %d", ErrUnknownAgentKind, grant.AgentKind, grant.ID)
	}
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
