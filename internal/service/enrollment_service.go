package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

type enrollmentDecider interface {
	Decide(ctx context.Context, enrollmentID int64) (*models.EnrollmentDecision, error)
}

// EnrollmentService reads enrollments owned by the registration system and
// attaches their current decision.
type EnrollmentService struct {
	quorum enrollmentDecider
	logger *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(quorum enrollmentDecider, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{quorum: quorum, logger: logger}
}

// Get returns the enrollment, its reviewer records without sub-collections
// and a freshly computed quorum decision, all read from one snapshot.
// Cancelled enrollments still report their tallies but never pass.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.EnrollmentDecision, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id must be positive")
	}
	decision, err := s.quorum.Decide(ctx, id)
	if err != nil {
		return nil, err
	}
	if decision.Enrollment.Status != models.EnrollmentStatusActive {
		s.logger.Debug("decision computed for inactive enrollment", zap.Int64("enrollment_id", id), zap.String("status", string(decision.Enrollment.Status)))
	}
	return decision, nil
}
