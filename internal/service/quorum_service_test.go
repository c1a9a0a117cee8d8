package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
	"github.com/noah-isme/placement-approval-api/pkg/export"
)

type quorumSnapshotStub struct {
	byEnrollment map[int64]models.EnrollmentSnapshot
	all          []models.EnrollmentSnapshot
	err          error
}

func (s *quorumSnapshotStub) SnapshotEnrollment(ctx context.Context, enrollmentID int64) (*models.EnrollmentSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snapshot, ok := s.byEnrollment[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &snapshot, nil
}

func (s *quorumSnapshotStub) SnapshotAll(ctx context.Context) ([]models.EnrollmentSnapshot, error) {
	return s.all, s.err
}

func activeSnapshot(enrollmentID int64, rows ...models.QuorumRow) models.EnrollmentSnapshot {
	return models.EnrollmentSnapshot{
		Enrollment: models.Enrollment{ID: enrollmentID, Status: models.EnrollmentStatusActive},
		Rows:       rows,
	}
}

type pdfRendererStub struct {
	title string
	rows  int
}

func (p *pdfRendererStub) Render(data export.Dataset, title string) ([]byte, error) {
	p.title = title
	p.rows = len(data.Rows)
	return []byte("%PDF-stub"), nil
}

func quorumRow(enrollmentID, recordID int64, status models.ReviewStatus, advisor, committee bool) models.QuorumRow {
	return models.QuorumRow{
		EnrollmentID:   enrollmentID,
		RecordID:       recordID,
		ReviewerID:     recordID + 100,
		Status:         status,
		RoleMembership: models.RoleMembership{IsAdvisor: advisor, IsCommittee: committee},
	}
}

func TestQuorumServiceCompute(t *testing.T) {
	snapshots := &quorumSnapshotStub{byEnrollment: map[int64]models.EnrollmentSnapshot{
		10: activeSnapshot(10,
			quorumRow(10, 1, models.StatusAdvisorApproved, true, false),
			quorumRow(10, 2, models.StatusCommitteeApproved, false, true),
			quorumRow(10, 3, models.StatusCommitteeApproved, false, true),
			quorumRow(10, 4, models.StatusRegistered, false, true),
			quorumRow(10, 5, models.StatusDenied, false, true),
			quorumRow(10, 6, models.StatusDocumentApproved, false, true),
		),
	}}
	svc := NewQuorumService(snapshots, nil, nil, "", NewMetricsService(), nil)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	report, err := svc.Compute(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Committee.Total)
	assert.Equal(t, 3, report.Committee.Approved)
	assert.Equal(t, 1, report.Committee.Rejected)
	assert.Equal(t, 3, report.RequiredCommittee)
	assert.Equal(t, 0, report.NeededToPass)
	assert.True(t, report.Passed)
	assert.Equal(t, now, report.ComputedAt)
}

func TestQuorumServiceComputeMissingEnrollment(t *testing.T) {
	svc := NewQuorumService(&quorumSnapshotStub{}, nil, nil, "", nil, nil)
	_, err := svc.Compute(context.Background(), 404)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewQuorumService(&quorumSnapshotStub{err: errors.New("serialization failure")}, nil, nil, "", nil, nil)
	_, err = svc.Compute(context.Background(), 1)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func passingFixture() *quorumSnapshotStub {
	return &quorumSnapshotStub{all: []models.EnrollmentSnapshot{
		activeSnapshot(10,
			quorumRow(10, 1, models.StatusAdvisorApproved, true, false),
			quorumRow(10, 2, models.StatusCommitteeApproved, false, true),
		),
		activeSnapshot(11,
			quorumRow(11, 3, models.StatusRegistered, true, false),
			quorumRow(11, 4, models.StatusCommitteeApproved, false, true),
		),
		activeSnapshot(12, quorumRow(12, 5, models.StatusDocumentApproved, true, true)),
	}}
}

func TestQuorumServiceListPassing(t *testing.T) {
	svc := NewQuorumService(passingFixture(), nil, nil, "", nil, nil)

	reports, err := svc.ListPassing(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(10), reports[0].EnrollmentID)
	assert.Equal(t, int64(12), reports[1].EnrollmentID)
}

func TestQuorumServiceListPassingIncludesEnrollmentsWithoutRecords(t *testing.T) {
	empty := activeSnapshot(13)
	snapshots := &quorumSnapshotStub{
		all: []models.EnrollmentSnapshot{
			activeSnapshot(10, quorumRow(10, 1, models.StatusRegistered, true, false)),
			empty,
		},
		byEnrollment: map[int64]models.EnrollmentSnapshot{13: empty},
	}
	svc := NewQuorumService(snapshots, nil, nil, "", nil, nil)

	reports, err := svc.ListPassing(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(13), reports[0].EnrollmentID)
	assert.Zero(t, reports[0].Advisors.Total)
	assert.Zero(t, reports[0].Committee.Total)

	report, err := svc.Compute(context.Background(), 13)
	require.NoError(t, err)
	assert.Equal(t, reports[0].Passed, report.Passed)
}

func TestQuorumServiceInactiveEnrollmentNeverPasses(t *testing.T) {
	cancelled := models.EnrollmentSnapshot{
		Enrollment: models.Enrollment{ID: 20, Status: models.EnrollmentStatusCancelled},
		Rows: []models.QuorumRow{
			quorumRow(20, 1, models.StatusAdvisorApproved, true, false),
			quorumRow(20, 2, models.StatusCommitteeApproved, false, true),
		},
	}
	svc := NewQuorumService(&quorumSnapshotStub{byEnrollment: map[int64]models.EnrollmentSnapshot{20: cancelled}}, nil, nil, "", nil, nil)

	report, err := svc.Compute(context.Background(), 20)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Equal(t, models.EnrollmentStatusCancelled, report.EnrollmentStatus)
	assert.Equal(t, 1, report.Committee.Approved)
}

func TestQuorumServiceDecideReadsOneSnapshot(t *testing.T) {
	snapshot := activeSnapshot(10,
		quorumRow(10, 1, models.StatusAdvisorApproved, true, false),
		quorumRow(10, 2, models.StatusRegistered, false, true),
	)
	snapshot.Enrollment.CourseSectionID = 5
	snapshot.Records = []models.ReviewerStatusRecord{
		{ID: 1, EnrollmentID: 10, ReviewerID: 101, Status: models.StatusAdvisorApproved},
		{ID: 2, EnrollmentID: 10, ReviewerID: 102, Status: models.StatusRegistered},
	}
	svc := NewQuorumService(&quorumSnapshotStub{byEnrollment: map[int64]models.EnrollmentSnapshot{10: snapshot}}, nil, nil, "", nil, nil)

	decision, err := svc.Decide(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), decision.Enrollment.CourseSectionID)
	require.Len(t, decision.Records, 2)
	assert.Equal(t, models.StatusRegistered, decision.Records[1].Status)
	assert.Equal(t, 1, decision.Quorum.NeededToPass)
	assert.False(t, decision.Quorum.Passed)
}

func TestQuorumServiceExportPassing(t *testing.T) {
	pdf := &pdfRendererStub{}
	svc := NewQuorumService(passingFixture(), nil, pdf, "Cleared placements", nil, nil)
	svc.now = fixedClock(time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC))

	file, err := svc.ExportPassing(context.Background(), models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "passing-enrollments-20260401-103000.csv", file.Filename)
	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "10,1/1,1/1,1,"))

	file, err = svc.ExportPassing(context.Background(), "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "Cleared placements", pdf.title)
	assert.Equal(t, 2, pdf.rows)

	_, err = svc.ExportPassing(context.Background(), "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
