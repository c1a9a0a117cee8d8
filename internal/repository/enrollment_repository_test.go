package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

var enrollmentColumns = []string{"id", "student_id", "course_section_id", "term_id", "status", "created_at"}

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFindEnrollment(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(enrollmentColumns).AddRow(10, 300, 20, 1, "ACTIVE", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_section_id, term_id, status, created_at FROM enrollments WHERE id = $1")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	enrollment, err := findEnrollment(context.Background(), db, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(20), enrollment.CourseSectionID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindEnrollmentMissing(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(enrollmentColumns))

	_, err := findEnrollment(context.Background(), db, 11)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
