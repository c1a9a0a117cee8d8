package models

import (
	"time"

	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

// VoteChoice is a committee member's ballot.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
)

// Valid reports whether the vote is a known choice.
func (v VoteChoice) Valid() bool {
	return v == VoteApprove || v == VoteReject
}

// StatusHistoryEntry is one accepted status transition.
type StatusHistoryEntry struct {
	RecordID   int64        `db:"record_id" json:"-"`
	Seq        int          `db:"seq" json:"seq"`
	FromStatus ReviewStatus `db:"from_status" json:"fromStatus"`
	ToStatus   ReviewStatus `db:"to_status" json:"toStatus"`
	ActorID    int64        `db:"actor_id" json:"actorId"`
	Reason     *string      `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
}

// CommitteeVote is one ballot in a record's embedded voting ledger.
type CommitteeVote struct {
	RecordID  int64      `db:"record_id" json:"-"`
	Seq       int        `db:"seq" json:"seq"`
	VoterID   int64      `db:"voter_id" json:"voterId"`
	Vote      VoteChoice `db:"vote" json:"vote"`
	Remarks   *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// AssignmentChange is one reviewer reassignment on a record.
type AssignmentChange struct {
	RecordID           int64     `db:"record_id" json:"-"`
	Seq                int       `db:"seq" json:"seq"`
	PreviousReviewerID *int64    `db:"previous_reviewer_id" json:"previousReviewerId,omitempty"`
	NewReviewerID      int64     `db:"new_reviewer_id" json:"newReviewerId"`
	ActorID            int64     `db:"actor_id" json:"actorId"`
	Reason             *string   `db:"reason" json:"reason,omitempty"`
	NotificationSent   bool      `db:"notification_sent" json:"notificationSent"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}

// VotingResult tallies a voting ledger. Ties resolve to not approved.
type VotingResult struct {
	Approved     bool `json:"approved"`
	ApproveCount int  `json:"approveCount"`
	RejectCount  int  `json:"rejectCount"`
	Complete     bool `json:"complete"`
}

// ReviewerStatusRecord tracks one reviewer's decision on one enrollment along
// with its append-only sub-collections.
type ReviewerStatusRecord struct {
	ID             int64        `db:"id" json:"id"`
	EnrollmentID   int64        `db:"enrollment_id" json:"enrollmentId"`
	ReviewerID     int64        `db:"reviewer_id" json:"reviewerId"`
	Status         ReviewStatus `db:"status" json:"status"`
	Remarks        *string      `db:"remarks" json:"remarks,omitempty"`
	VoteCount      int          `db:"vote_count" json:"voteCount"`
	RequiredVotes  int          `db:"required_votes" json:"requiredVotes"`
	VotingDeadline *time.Time   `db:"voting_deadline" json:"votingDeadline,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`

	StatusHistory     []StatusHistoryEntry `db:"-" json:"statusHistory"`
	CommitteeVotes    []CommitteeVote      `db:"-" json:"committeeVotes"`
	AssignmentHistory []AssignmentChange   `db:"-" json:"assignmentHistory"`
}

// CanTransitionTo reports whether the current status may move to target.
func (r *ReviewerStatusRecord) CanTransitionTo(target ReviewStatus) bool {
	return r.Status.CanTransitionTo(target)
}

// TransitionTo moves the record to target and appends a history entry. A
// rejected attempt leaves the record untouched.
func (r *ReviewerStatusRecord) TransitionTo(target ReviewStatus, actorID int64, reason *string, now time.Time) error {
	if !r.CanTransitionTo(target) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move from "+string(r.Status)+" to "+string(target))
	}
	r.appendHistory(target, actorID, reason, now)
	return nil
}

// MigrateLegacy moves a legacy status onto its staged replacement.
func (r *ReviewerStatusRecord) MigrateLegacy(actorID int64, now time.Time) error {
	target, ok := r.Status.MigrationTarget()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotLegacy, "status "+string(r.Status)+" is not a legacy value")
	}
	reason := "legacy migration"
	r.appendHistory(target, actorID, &reason, now)
	return nil
}

func (r *ReviewerStatusRecord) appendHistory(target ReviewStatus, actorID int64, reason *string, now time.Time) {
	r.StatusHistory = append(r.StatusHistory, StatusHistoryEntry{
		RecordID:   r.ID,
		Seq:        len(r.StatusHistory) + 1,
		FromStatus: r.Status,
		ToStatus:   target,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  now,
	})
	r.Status = target
	r.UpdatedAt = now
}

// HasVoted reports whether voterID already has a ballot on the ledger.
func (r *ReviewerStatusRecord) HasVoted(voterID int64) bool {
	for _, v := range r.CommitteeVotes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}

// AddVote appends a ballot unless the voter already voted or the deadline passed.
func (r *ReviewerStatusRecord) AddVote(voterID int64, vote VoteChoice, remarks *string, now time.Time) error {
	if !vote.Valid() {
		return appErrors.ErrInvalidVote
	}
	if r.HasVoted(voterID) {
		return appErrors.ErrAlreadyVoted
	}
	if r.VotingDeadline != nil && now.After(*r.VotingDeadline) {
		return appErrors.ErrDeadlinePassed
	}
	r.CommitteeVotes = append(r.CommitteeVotes, CommitteeVote{
		RecordID:  r.ID,
		Seq:       len(r.CommitteeVotes) + 1,
		VoterID:   voterID,
		Vote:      vote,
		Remarks:   remarks,
		CreatedAt: now,
	})
	r.VoteCount++
	r.UpdatedAt = now
	return nil
}

// IsVotingComplete reports whether the required number of ballots is in.
func (r *ReviewerStatusRecord) IsVotingComplete() bool {
	return r.VoteCount >= r.RequiredVotes
}

// VotingResult tallies the ledger.
func (r *ReviewerStatusRecord) VotingResult() VotingResult {
	result := VotingResult{Complete: r.IsVotingComplete()}
	for _, v := range r.CommitteeVotes {
		switch v.Vote {
		case VoteApprove:
			result.ApproveCount++
		case VoteReject:
			result.RejectCount++
		}
	}
	result.Approved = result.ApproveCount > result.RejectCount
	return result
}

// ConfigureVoting sets the ballot threshold and optional deadline.
func (r *ReviewerStatusRecord) ConfigureVoting(requiredVotes int, deadline *time.Time, now time.Time) error {
	if requiredVotes < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "required votes must be at least 1")
	}
	r.RequiredVotes = requiredVotes
	r.VotingDeadline = deadline
	r.UpdatedAt = now
	return nil
}

// CanChangeInstructor checks reassignment preconditions.
func (r *ReviewerStatusRecord) CanChangeInstructor(newReviewerID int64) error {
	if newReviewerID <= 0 {
		return appErrors.ErrInvalidReviewer
	}
	if newReviewerID == r.ReviewerID {
		return appErrors.ErrSameReviewer
	}
	if r.Status == StatusDocumentCancelled {
		return appErrors.ErrTerminalState
	}
	return nil
}

// ChangeInstructor reassigns the record and appends an audit entry pending notification.
func (r *ReviewerStatusRecord) ChangeInstructor(newReviewerID, actorID int64, reason *string, now time.Time) error {
	if err := r.CanChangeInstructor(newReviewerID); err != nil {
		return err
	}
	previous := r.ReviewerID
	r.AssignmentHistory = append(r.AssignmentHistory, AssignmentChange{
		RecordID:           r.ID,
		Seq:                len(r.AssignmentHistory) + 1,
		PreviousReviewerID: &previous,
		NewReviewerID:      newReviewerID,
		ActorID:            actorID,
		Reason:             reason,
		NotificationSent:   false,
		CreatedAt:          now,
	})
	r.ReviewerID = newReviewerID
	r.UpdatedAt = now
	return nil
}

// LatestChange returns the most recent reassignment, if any.
func (r *ReviewerStatusRecord) LatestChange() *AssignmentChange {
	if len(r.AssignmentHistory) == 0 {
		return nil
	}
	latest := r.AssignmentHistory[len(r.AssignmentHistory)-1]
	return &latest
}

// UnnotifiedChanges returns reassignment entries still pending notification.
func (r *ReviewerStatusRecord) UnnotifiedChanges() []AssignmentChange {
	pending := make([]AssignmentChange, 0)
	for _, change := range r.AssignmentHistory {
		if !change.NotificationSent {
			pending = append(pending, change)
		}
	}
	return pending
}

// MarkNotificationSent flags the last reassignment entry as notified. Earlier
// entries are never touched. It reports whether anything changed.
func (r *ReviewerStatusRecord) MarkNotificationSent() bool {
	if len(r.AssignmentHistory) == 0 {
		return false
	}
	last := &r.AssignmentHistory[len(r.AssignmentHistory)-1]
	if last.NotificationSent {
		return false
	}
	last.NotificationSent = true
	return true
}
