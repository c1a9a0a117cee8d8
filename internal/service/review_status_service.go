package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/dto"
	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/internal/repository"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

type reviewerRecordStore interface {
	GetByID(ctx context.Context, id int64) (*models.ReviewerStatusRecord, error)
	Mutate(ctx context.Context, id int64, fn repository.RecordMutation) (*models.ReviewerStatusRecord, error)
}

// ReviewStatusService drives the status state machine of reviewer records.
type ReviewStatusService struct {
	records   reviewerRecordStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewStatusService constructs the service.
func NewReviewStatusService(records reviewerRecordStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewStatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewStatusService{records: records, metrics: metrics, validator: validate, logger: logger, now: utcNow}
}

// Get returns a record with its history, ledger and assignment trail.
func (s *ReviewStatusService) Get(ctx context.Context, recordID int64) (*models.ReviewerStatusRecord, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, recordError(err, "failed to load reviewer record")
	}
	return record, nil
}

// Transition moves the record to target under a row lock. A refused move
// returns INVALID_TRANSITION and leaves the record untouched.
func (s *ReviewStatusService) Transition(ctx context.Context, recordID int64, target models.ReviewStatus, actorID int64, reason *string) (*models.ReviewerStatusRecord, error) {
	if err := validateRequest(s.validator, dto.TransitionRequest{Status: target, Reason: reason}, "invalid transition payload"); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(target))
	}
	var from models.ReviewStatus
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		from = rec.Status
		return rec.TransitionTo(target, actorID, reason, s.now())
	})
	s.metrics.RecordWorkflowOperation("transition", err)
	if err != nil {
		return nil, recordError(err, "failed to transition reviewer record")
	}
	s.logger.Info("reviewer record transitioned",
		zap.Int64("record_id", recordID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Int64("actor_id", actorID),
	)
	return record, nil
}

// MigrateLegacy moves a legacy status onto the staged pipeline.
func (s *ReviewStatusService) MigrateLegacy(ctx context.Context, recordID, actorID int64) (*models.ReviewerStatusRecord, error) {
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		return rec.MigrateLegacy(actorID, s.now())
	})
	s.metrics.RecordWorkflowOperation("migrate_legacy", err)
	if err != nil {
		return nil, recordError(err, "failed to migrate reviewer record")
	}
	s.logger.Info("legacy status migrated", zap.Int64("record_id", recordID), zap.String("status", string(record.Status)))
	return record, nil
}

// NextStatuses lists the statuses reachable from status.
func (s *ReviewStatusService) NextStatuses(status models.ReviewStatus) ([]models.ReviewStatus, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
	}
	return status.NextStatuses(), nil
}

func validateRequest(v *validator.Validate, req interface{}, message string) error {
	if err := v.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// recordError maps persistence failures onto the typed taxonomy; typed
// rejections raised by the record itself pass through unchanged.
func recordError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "reviewer record not found")
	case errors.Is(err, repository.ErrDuplicateAssignment):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "reviewer already assigned to enrollment")
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
