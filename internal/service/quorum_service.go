package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
	"github.com/noah-isme/placement-approval-api/pkg/export"
)

type quorumSnapshotter interface {
	SnapshotEnrollment(ctx context.Context, enrollmentID int64) (*models.EnrollmentSnapshot, error)
	SnapshotAll(ctx context.Context) ([]models.EnrollmentSnapshot, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var passingHeaders = []string{"Enrollment", "Advisors Approved", "Committee Approved", "Committee Required", "Computed At"}

// QuorumService derives enrollment decisions from reviewer records. It keeps
// no state; every call reads a fresh snapshot.
type QuorumService struct {
	snapshots   quorumSnapshotter
	csv         csvRenderer
	pdf         pdfRenderer
	metrics     *MetricsService
	logger      *zap.Logger
	exportTitle string
	now         func() time.Time
}

// NewQuorumService constructs the service. Nil renderers fall back to the defaults.
func NewQuorumService(snapshots quorumSnapshotter, csv csvRenderer, pdf pdfRenderer, exportTitle string, metrics *MetricsService, logger *zap.Logger) *QuorumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if exportTitle == "" {
		exportTitle = "Passing enrollments"
	}
	return &QuorumService{
		snapshots:   snapshots,
		csv:         csv,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
		exportTitle: exportTitle,
		now:         utcNow,
	}
}

// Compute returns the decision for one enrollment.
func (s *QuorumService) Compute(ctx context.Context, enrollmentID int64) (models.QuorumReport, error) {
	decision, err := s.Decide(ctx, enrollmentID)
	if err != nil {
		return models.QuorumReport{}, err
	}
	return decision.Quorum, nil
}

// Decide returns the enrollment, its records and the decision, all read from
// the same snapshot.
func (s *QuorumService) Decide(ctx context.Context, enrollmentID int64) (*models.EnrollmentDecision, error) {
	snapshot, err := s.snapshots.SnapshotEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute quorum")
	}
	report := snapshot.Decide()
	report.ComputedAt = s.now()
	s.metrics.RecordQuorum(report.Passed)
	s.logger.Debug("quorum computed",
		zap.Int64("enrollment_id", enrollmentID),
		zap.String("enrollment_status", string(report.EnrollmentStatus)),
		zap.Bool("passed", report.Passed),
		zap.Int("needed_to_pass", report.NeededToPass),
	)
	enrollment := snapshot.Enrollment
	return &models.EnrollmentDecision{Enrollment: &enrollment, Records: snapshot.Records, Quorum: report}, nil
}

// ListPassing returns every active enrollment that currently passes, ordered
// by id. An active enrollment with no records passes vacuously, as it does in
// Compute.
func (s *QuorumService) ListPassing(ctx context.Context) ([]models.QuorumReport, error) {
	snapshots, err := s.snapshots.SnapshotAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list passing enrollments")
	}
	computedAt := s.now()
	passing := make([]models.QuorumReport, 0, len(snapshots))
	for _, snapshot := range snapshots {
		report := snapshot.Decide()
		if !report.Passed {
			continue
		}
		report.ComputedAt = computedAt
		passing = append(passing, report)
	}
	return passing, nil
}

// ExportPassing renders the passing list as CSV or PDF.
func (s *QuorumService) ExportPassing(ctx context.Context, format models.ExportFormat) (*models.ExportFile, error) {
	format = models.ExportFormat(strings.ToLower(string(format)))
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	reports, err := s.ListPassing(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: passingHeaders, Rows: make([]map[string]string, 0, len(reports))}
	for _, report := range reports {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Enrollment":         strconv.FormatInt(report.EnrollmentID, 10),
			"Advisors Approved":  fmt.Sprintf("%d/%d", report.Advisors.Approved, report.Advisors.Total),
			"Committee Approved": fmt.Sprintf("%d/%d", report.Committee.Approved, report.Committee.Total),
			"Committee Required": strconv.Itoa(report.RequiredCommittee),
			"Computed At":        report.ComputedAt.Format(time.RFC3339),
		})
	}

	stamp := s.now().Format("20060102-150405")
	file := &models.ExportFile{Filename: fmt.Sprintf("passing-enrollments-%s.%s", stamp, format)}
	switch format {
	case models.ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset, s.exportTitle)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render passing export")
	}
	s.logger.Info("passing enrollments exported", zap.String("format", string(format)), zap.Int("rows", len(reports)))
	return file, nil
}
