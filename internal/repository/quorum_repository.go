package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

var snapshotOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// QuorumRepository reads every record feeding an enrollment decision inside
// one repeatable-read snapshot, so concurrent transitions never interleave
// with the count.
type QuorumRepository struct {
	db    *sqlx.DB
	roles *RoleMembershipRepository
}

// NewQuorumRepository constructs the repository.
func NewQuorumRepository(db *sqlx.DB, roles *RoleMembershipRepository) *QuorumRepository {
	if roles == nil {
		roles = NewRoleMembershipRepository(db)
	}
	return &QuorumRepository{db: db, roles: roles}
}

// SnapshotEnrollment reads one enrollment, its records and their roles. The
// enrollment is returned whatever its status; callers decide what an inactive
// enrollment means.
func (r *QuorumRepository) SnapshotEnrollment(ctx context.Context, enrollmentID int64) (snapshot *models.EnrollmentSnapshot, err error) {
	tx, err := r.db.BeginTxx(ctx, snapshotOptions)
	if err != nil {
		return nil, fmt.Errorf("begin quorum snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := findEnrollment(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	records, err := listEnrollmentRecords(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}

	snapshot = &models.EnrollmentSnapshot{
		Enrollment: *enrollment,
		Records:    records,
		Rows:       make([]models.QuorumRow, 0, len(records)),
	}
	for _, record := range records {
		membership, resolveErr := r.roles.ResolveWith(ctx, tx, record.ReviewerID, enrollment.CourseSectionID)
		if resolveErr != nil {
			err = resolveErr
			return nil, err
		}
		snapshot.Rows = append(snapshot.Rows, models.QuorumRow{
			EnrollmentID:   enrollmentID,
			RecordID:       record.ID,
			ReviewerID:     record.ReviewerID,
			Status:         record.Status,
			RoleMembership: membership,
		})
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit quorum snapshot: %w", err)
	}
	return snapshot, nil
}

// snapshotAllRow carries nullable record columns so an enrollment without
// records still yields one row.
type snapshotAllRow struct {
	EnrollmentID     int64                   `db:"enrollment_id"`
	EnrollmentStatus models.EnrollmentStatus `db:"enrollment_status"`
	RecordID         sql.NullInt64           `db:"record_id"`
	ReviewerID       sql.NullInt64           `db:"reviewer_id"`
	Status           sql.NullString          `db:"status"`
	IsAdvisor        bool                    `db:"is_advisor"`
	IsCommittee      bool                    `db:"is_committee"`
}

// SnapshotAll returns one snapshot per active enrollment, ordered by id,
// including enrollments that have no records yet. Roles are resolved in the
// same statement with the same membership predicates.
func (r *QuorumRepository) SnapshotAll(ctx context.Context) (snapshots []models.EnrollmentSnapshot, err error) {
	tx, err := r.db.BeginTxx(ctx, snapshotOptions)
	if err != nil {
		return nil, fmt.Errorf("begin quorum snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
SELECT e.id AS enrollment_id, e.status AS enrollment_status,
	r.id AS record_id, r.reviewer_id, r.status,
	EXISTS (SELECT 1 FROM advisor_memberships am
		WHERE am.reviewer_id = r.reviewer_id AND am.course_section_id = e.course_section_id) AS is_advisor,
	EXISTS (SELECT 1 FROM committee_memberships cm
		WHERE cm.reviewer_id = r.reviewer_id AND cm.course_section_id = e.course_section_id) AS is_committee
FROM enrollments e
LEFT JOIN reviewer_status_records r ON r.enrollment_id = e.id
WHERE e.status = $1
ORDER BY e.id ASC, r.id ASC`
	var rows []snapshotAllRow
	if err = tx.SelectContext(ctx, &rows, query, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("snapshot all reviewer records: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit quorum snapshot: %w", err)
	}
	return groupSnapshotRows(rows), nil
}

func groupSnapshotRows(rows []snapshotAllRow) []models.EnrollmentSnapshot {
	snapshots := make([]models.EnrollmentSnapshot, 0)
	for _, row := range rows {
		if n := len(snapshots); n == 0 || snapshots[n-1].Enrollment.ID != row.EnrollmentID {
			snapshots = append(snapshots, models.EnrollmentSnapshot{
				Enrollment: models.Enrollment{ID: row.EnrollmentID, Status: row.EnrollmentStatus},
				Rows:       make([]models.QuorumRow, 0),
			})
		}
		if !row.RecordID.Valid {
			continue
		}
		current := &snapshots[len(snapshots)-1]
		current.Rows = append(current.Rows, models.QuorumRow{
			EnrollmentID:   row.EnrollmentID,
			RecordID:       row.RecordID.Int64,
			ReviewerID:     row.ReviewerID.Int64,
			Status:         models.ReviewStatus(row.Status.String),
			RoleMembership: models.RoleMembership{IsAdvisor: row.IsAdvisor, IsCommittee: row.IsCommittee},
		})
	}
	return snapshots
}
