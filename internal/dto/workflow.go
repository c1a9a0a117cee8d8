package dto

import (
	"time"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

// TransitionRequest asks for a status move on a reviewer record.
type TransitionRequest struct {
	Status models.ReviewStatus `json:"status" validate:"required"`
	Reason *string             `json:"reason" validate:"omitempty,max=500"`
}

// CastVoteRequest is a committee ballot. The choice itself is checked by the
// ledger so an unknown value reports INVALID_VOTE.
type CastVoteRequest struct {
	Vote    models.VoteChoice `json:"vote" validate:"required"`
	Remarks *string           `json:"remarks" validate:"omitempty,max=1000"`
}

// ConfigureVotingRequest sets the ledger threshold and deadline. Zero
// requiredVotes applies the configured default.
type ConfigureVotingRequest struct {
	RequiredVotes int        `json:"requiredVotes" validate:"gte=0,lte=50"`
	Deadline      *time.Time `json:"deadline"`
}

// ChangeReviewerRequest reassigns a reviewer record. A non-positive reviewer
// id is rejected by the record as INVALID_REVIEWER.
type ChangeReviewerRequest struct {
	ReviewerID int64   `json:"reviewerId"`
	Reason     *string `json:"reason" validate:"omitempty,max=500"`
}

// BulkAssignRequest assigns one reviewer to many enrollments.
type BulkAssignRequest struct {
	ReviewerID    int64   `json:"reviewerId" validate:"required,gt=0"`
	EnrollmentIDs []int64 `json:"enrollmentIds" validate:"required,min=1,max=500,dive,gt=0"`
	RequiredVotes int     `json:"requiredVotes" validate:"gte=0,lte=50"`
}

// ChangeReviewerResponse carries the updated record plus the advisory
// workload of the new reviewer.
type ChangeReviewerResponse struct {
	Record   *models.ReviewerStatusRecord `json:"record"`
	Workload models.ReviewerWorkload      `json:"workload"`
}

// VoteResponse carries the updated ledger tally.
type VoteResponse struct {
	Record *models.ReviewerStatusRecord `json:"record"`
	Result models.VotingResult          `json:"result"`
}
