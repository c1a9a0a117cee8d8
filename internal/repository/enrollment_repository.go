package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

// findEnrollment reads an enrollment owned by the registration system.
func findEnrollment(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_section_id, term_id, status, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}
