package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/dto"
	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/internal/repository"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

type assignmentStore interface {
	reviewerRecordStore
	CountActiveByReviewer(ctx context.Context, reviewerID int64) (int, error)
	BulkAssign(ctx context.Context, params repository.BulkAssignParams) (models.BulkAssignResult, error)
}

// ReassignmentPublisher receives reassignments that still need a notification.
type ReassignmentPublisher interface {
	Publish(notice models.ReassignmentNotice) error
}

// AssignmentConfig tunes reviewer assignment.
type AssignmentConfig struct {
	ReviewerCapacity     int
	DefaultRequiredVotes int
	WorkloadCacheTTL     time.Duration
}

// ReviewerAssignmentService owns reviewer reassignment, its audit trail and
// bulk assignment.
type ReviewerAssignmentService struct {
	records   assignmentStore
	cache     *CacheService
	publisher ReassignmentPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AssignmentConfig
	now       func() time.Time
}

// NewReviewerAssignmentService constructs the service. cache and publisher may be nil.
func NewReviewerAssignmentService(records assignmentStore, cache *CacheService, publisher ReassignmentPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AssignmentConfig) *ReviewerAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReviewerCapacity <= 0 {
		cfg.ReviewerCapacity = 10
	}
	if cfg.DefaultRequiredVotes <= 0 {
		cfg.DefaultRequiredVotes = 3
	}
	return &ReviewerAssignmentService{
		records:   records,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       utcNow,
	}
}

// ChangeReviewer reassigns the record and appends an audit entry pending
// notification. The returned workload is advisory and never blocks the change.
func (s *ReviewerAssignmentService) ChangeReviewer(ctx context.Context, recordID, newReviewerID, actorID int64, reason *string) (*models.ReviewerStatusRecord, models.ReviewerWorkload, error) {
	if err := validateRequest(s.validator, dto.ChangeReviewerRequest{ReviewerID: newReviewerID, Reason: reason}, "invalid reassignment payload"); err != nil {
		return nil, models.ReviewerWorkload{}, err
	}
	var previous int64
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		previous = rec.ReviewerID
		return rec.ChangeInstructor(newReviewerID, actorID, reason, s.now())
	})
	s.metrics.RecordWorkflowOperation("change_reviewer", err)
	if err != nil {
		return nil, models.ReviewerWorkload{}, recordError(err, "failed to change reviewer")
	}

	_ = s.cache.Invalidate(ctx, workloadCacheKey(previous), workloadCacheKey(newReviewerID))
	s.logger.Info("reviewer reassigned",
		zap.Int64("record_id", recordID),
		zap.Int64("previous_reviewer_id", previous),
		zap.Int64("new_reviewer_id", newReviewerID),
		zap.Int64("actor_id", actorID),
	)

	if s.publisher != nil {
		if latest := record.LatestChange(); latest != nil {
			notice := models.ReassignmentNotice{RecordID: record.ID, EnrollmentID: record.EnrollmentID, Change: *latest}
			if err := s.publisher.Publish(notice); err != nil {
				s.logger.Warn("reassignment notice not queued", zap.Int64("record_id", recordID), zap.Error(err))
			}
		}
	}

	workload, err := s.Workload(ctx, newReviewerID)
	if err != nil {
		s.logger.Warn("workload advisory unavailable", zap.Int64("reviewer_id", newReviewerID), zap.Error(err))
		workload = models.ReviewerWorkload{ReviewerID: newReviewerID, Capacity: s.cfg.ReviewerCapacity}
	}
	if workload.Warning != "" {
		s.logger.Warn("reviewer workload advisory",
			zap.Int64("reviewer_id", newReviewerID),
			zap.Int("active", workload.Active),
			zap.Int("capacity", workload.Capacity),
			zap.String("warning", workload.Warning),
		)
	}
	return record, workload, nil
}

// LatestChange returns the most recent reassignment of a record, or nil.
func (s *ReviewerAssignmentService) LatestChange(ctx context.Context, recordID int64) (*models.AssignmentChange, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, recordError(err, "failed to load reviewer record")
	}
	return record.LatestChange(), nil
}

// UnnotifiedChanges returns reassignment entries still pending notification.
func (s *ReviewerAssignmentService) UnnotifiedChanges(ctx context.Context, recordID int64) ([]models.AssignmentChange, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, recordError(err, "failed to load reviewer record")
	}
	return record.UnnotifiedChanges(), nil
}

// MarkNotificationSent flags the last reassignment entry as notified. The
// boolean reports whether the flag changed.
func (s *ReviewerAssignmentService) MarkNotificationSent(ctx context.Context, recordID int64) (*models.ReviewerStatusRecord, bool, error) {
	var changed bool
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		changed = rec.MarkNotificationSent()
		return nil
	})
	if err != nil {
		return nil, false, recordError(err, "failed to mark notification sent")
	}
	return record, changed, nil
}

// Workload returns the advisory capacity signal for a reviewer.
func (s *ReviewerAssignmentService) Workload(ctx context.Context, reviewerID int64) (models.ReviewerWorkload, error) {
	if reviewerID <= 0 {
		return models.ReviewerWorkload{}, appErrors.ErrInvalidReviewer
	}
	key := workloadCacheKey(reviewerID)
	var cached models.ReviewerWorkload
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	active, err := s.records.CountActiveByReviewer(ctx, reviewerID)
	if err != nil {
		return models.ReviewerWorkload{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reviewer workload")
	}
	workload := models.NewReviewerWorkload(reviewerID, active, s.cfg.ReviewerCapacity)
	_ = s.cache.Set(ctx, key, workload, s.cfg.WorkloadCacheTTL)
	return workload, nil
}

// BulkAssign creates registered records for the reviewer across enrollments in
// a single transaction.
func (s *ReviewerAssignmentService) BulkAssign(ctx context.Context, req dto.BulkAssignRequest, actorID int64) (models.BulkAssignResult, error) {
	if err := validateRequest(s.validator, req, "invalid bulk assignment payload"); err != nil {
		return models.BulkAssignResult{}, err
	}
	requiredVotes := req.RequiredVotes
	if requiredVotes == 0 {
		requiredVotes = s.cfg.DefaultRequiredVotes
	}

	result, err := s.records.BulkAssign(ctx, repository.BulkAssignParams{
		ReviewerID:    req.ReviewerID,
		EnrollmentIDs: req.EnrollmentIDs,
		RequiredVotes: requiredVotes,
		Now:           s.now(),
	})
	s.metrics.RecordWorkflowOperation("bulk_assign", err)
	if err != nil {
		return models.BulkAssignResult{}, recordError(err, "failed to bulk assign reviewer")
	}
	s.metrics.RecordBulkAssign(result)
	_ = s.cache.Invalidate(ctx, workloadCacheKey(req.ReviewerID))

	s.logger.Info("reviewer bulk assigned",
		zap.Int64("reviewer_id", req.ReviewerID),
		zap.Int64("actor_id", actorID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped_existing", len(result.SkippedExisting)),
		zap.Int("not_found", len(result.NotFound)),
	)
	return result, nil
}

func workloadCacheKey(reviewerID int64) string {
	return fmt.Sprintf("workload:%d", reviewerID)
}
