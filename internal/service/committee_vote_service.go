package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/dto"
	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

// CommitteeVoteService manages the voting ledger embedded in a reviewer record.
// The ledger is a per-record tally; the enrollment decision comes from QuorumService.
type CommitteeVoteService struct {
	records       reviewerRecordStore
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	defaultQuorum int
	now           func() time.Time
}

// NewCommitteeVoteService constructs the service.
func NewCommitteeVoteService(records reviewerRecordStore, defaultRequiredVotes int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CommitteeVoteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultRequiredVotes <= 0 {
		defaultRequiredVotes = 3
	}
	return &CommitteeVoteService{
		records:       records,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		defaultQuorum: defaultRequiredVotes,
		now:           utcNow,
	}
}

// CastVote appends a ballot and returns the updated tally.
func (s *CommitteeVoteService) CastVote(ctx context.Context, recordID, voterID int64, vote models.VoteChoice, remarks *string) (*models.ReviewerStatusRecord, models.VotingResult, error) {
	if voterID <= 0 {
		return nil, models.VotingResult{}, appErrors.Clone(appErrors.ErrValidation, "voter id must be positive")
	}
	if err := validateRequest(s.validator, dto.CastVoteRequest{Vote: vote, Remarks: remarks}, "invalid vote payload"); err != nil {
		return nil, models.VotingResult{}, err
	}
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		return rec.AddVote(voterID, vote, remarks, s.now())
	})
	s.metrics.RecordWorkflowOperation("cast_vote", err)
	if err != nil {
		return nil, models.VotingResult{}, recordError(err, "failed to record committee vote")
	}
	result := record.VotingResult()
	s.logger.Info("committee vote recorded",
		zap.Int64("record_id", recordID),
		zap.Int64("voter_id", voterID),
		zap.String("vote", string(vote)),
		zap.Bool("complete", result.Complete),
	)
	return record, result, nil
}

// ConfigureVoting sets the threshold and deadline. A zero threshold falls back
// to the configured default.
func (s *CommitteeVoteService) ConfigureVoting(ctx context.Context, recordID int64, requiredVotes int, deadline *time.Time) (*models.ReviewerStatusRecord, error) {
	if err := validateRequest(s.validator, dto.ConfigureVotingRequest{RequiredVotes: requiredVotes, Deadline: deadline}, "invalid voting settings"); err != nil {
		return nil, err
	}
	if requiredVotes == 0 {
		requiredVotes = s.defaultQuorum
	}
	record, err := s.records.Mutate(ctx, recordID, func(rec *models.ReviewerStatusRecord) error {
		return rec.ConfigureVoting(requiredVotes, deadline, s.now())
	})
	s.metrics.RecordWorkflowOperation("configure_voting", err)
	if err != nil {
		return nil, recordError(err, "failed to configure voting")
	}
	return record, nil
}

// Result tallies the ledger of a record.
func (s *CommitteeVoteService) Result(ctx context.Context, recordID int64) (models.VotingResult, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return models.VotingResult{}, recordError(err, "failed to load reviewer record")
	}
	return record.VotingResult(), nil
}

// HasVoted reports whether the voter already cast a ballot on the record.
func (s *CommitteeVoteService) HasVoted(ctx context.Context, recordID, voterID int64) (bool, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return false, recordError(err, "failed to load reviewer record")
	}
	return record.HasVoted(voterID), nil
}
