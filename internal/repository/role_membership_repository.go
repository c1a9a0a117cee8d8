package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

// RoleMembershipRepository resolves reviewer roles from the advisor and
// committee membership tables maintained outside this service.
type RoleMembershipRepository struct {
	db *sqlx.DB
}

// NewRoleMembershipRepository constructs the repository.
func NewRoleMembershipRepository(db *sqlx.DB) *RoleMembershipRepository {
	return &RoleMembershipRepository{db: db}
}

const resolveRoleQuery = `SELECT
	EXISTS (SELECT 1 FROM advisor_memberships WHERE reviewer_id = $1 AND course_section_id = $2) AS is_advisor,
	EXISTS (SELECT 1 FROM committee_memberships WHERE reviewer_id = $1 AND course_section_id = $2) AS is_committee`

// Resolve reports the roles the reviewer holds for the course section.
func (r *RoleMembershipRepository) Resolve(ctx context.Context, reviewerID, courseSectionID int64) (models.RoleMembership, error) {
	return r.ResolveWith(ctx, r.db, reviewerID, courseSectionID)
}

// ResolveWith resolves roles through q, letting callers reuse an open snapshot.
func (r *RoleMembershipRepository) ResolveWith(ctx context.Context, q sqlx.QueryerContext, reviewerID, courseSectionID int64) (models.RoleMembership, error) {
	var membership models.RoleMembership
	if err := sqlx.GetContext(ctx, q, &membership, resolveRoleQuery, reviewerID, courseSectionID); err != nil {
		return models.RoleMembership{}, fmt.Errorf("resolve reviewer role: %w", err)
	}
	return membership, nil
}
