package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

func newRecord(status ReviewStatus) *ReviewerStatusRecord {
	return &ReviewerStatusRecord{ID: 1, EnrollmentID: 10, ReviewerID: 7, Status: status, RequiredVotes: 3}
}

func TestRecordTransitionInvalidLeavesStateUntouched(t *testing.T) {
	rec := newRecord(StatusRegistered)
	err := rec.TransitionTo(StatusDocumentApproved, 99, nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, StatusRegistered, rec.Status)
	assert.Empty(t, rec.StatusHistory)
}

func TestRecordTransitionSequenceAppendsHistory(t *testing.T) {
	rec := newRecord(StatusRegistered)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reason := "portfolio reviewed"

	require.NoError(t, rec.TransitionTo(StatusAdvisorApproved, 5, &reason, now))
	require.NoError(t, rec.TransitionTo(StatusCommitteeApproved, 6, nil, now.Add(time.Hour)))

	require.Len(t, rec.StatusHistory, 2)
	assert.Equal(t, StatusRegistered, rec.StatusHistory[0].FromStatus)
	assert.Equal(t, StatusAdvisorApproved, rec.StatusHistory[0].ToStatus)
	assert.Equal(t, int64(5), rec.StatusHistory[0].ActorID)
	assert.Equal(t, &reason, rec.StatusHistory[0].Reason)
	assert.Equal(t, StatusAdvisorApproved, rec.StatusHistory[1].FromStatus)
	assert.Equal(t, StatusCommitteeApproved, rec.StatusHistory[1].ToStatus)
	assert.Equal(t, 2, rec.StatusHistory[1].Seq)
	assert.Equal(t, StatusCommitteeApproved, rec.Status)
}

func TestRecordDeniedCanBeResubmitted(t *testing.T) {
	rec := newRecord(StatusDenied)
	require.NoError(t, rec.TransitionTo(StatusRegistered, 1, nil, time.Now()))
	assert.Equal(t, StatusRegistered, rec.Status)
}

func TestRecordMigrateLegacy(t *testing.T) {
	rec := newRecord(StatusApprove)
	require.NoError(t, rec.MigrateLegacy(3, time.Now()))
	assert.Equal(t, StatusAdvisorApproved, rec.Status)
	require.Len(t, rec.StatusHistory, 1)
	assert.Equal(t, StatusApprove, rec.StatusHistory[0].FromStatus)

	err := rec.MigrateLegacy(3, time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrNotLegacy))
	assert.Len(t, rec.StatusHistory, 1)
}

func TestRecordAddVoteRejectsDuplicateVoter(t *testing.T) {
	rec := newRecord(StatusAdvisorApproved)
	now := time.Now()
	require.NoError(t, rec.AddVote(1, VoteApprove, nil, now))

	err := rec.AddVote(1, VoteReject, nil, now)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyVoted))
	assert.Len(t, rec.CommitteeVotes, 1)
	assert.Equal(t, 1, rec.VoteCount)
	assert.True(t, rec.HasVoted(1))
	assert.False(t, rec.HasVoted(2))
}

func TestRecordAddVoteAfterDeadline(t *testing.T) {
	rec := newRecord(StatusAdvisorApproved)
	deadline := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rec.VotingDeadline = &deadline

	err := rec.AddVote(1, VoteApprove, nil, deadline.Add(time.Second))
	assert.True(t, errors.Is(err, appErrors.ErrDeadlinePassed))
	assert.Empty(t, rec.CommitteeVotes)
	assert.Zero(t, rec.VoteCount)

	require.NoError(t, rec.AddVote(1, VoteApprove, nil, deadline))
}

func TestRecordAddVoteInvalidChoice(t *testing.T) {
	rec := newRecord(StatusAdvisorApproved)
	err := rec.AddVote(1, VoteChoice("abstain"), nil, time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrInvalidVote))
}

func TestRecordVotingResultTieRejects(t *testing.T) {
	rec := newRecord(StatusAdvisorApproved)
	now := time.Now()
	require.NoError(t, rec.AddVote(1, VoteApprove, nil, now))
	require.NoError(t, rec.AddVote(2, VoteApprove, nil, now))
	require.NoError(t, rec.AddVote(3, VoteReject, nil, now))

	result := rec.VotingResult()
	assert.Equal(t, VotingResult{Approved: true, ApproveCount: 2, RejectCount: 1, Complete: true}, result)
	assert.True(t, rec.IsVotingComplete())

	require.NoError(t, rec.AddVote(4, VoteReject, nil, now))
	result = rec.VotingResult()
	assert.False(t, result.Approved)
	assert.Equal(t, 2, result.ApproveCount)
	assert.Equal(t, 2, result.RejectCount)
}

func TestRecordConfigureVoting(t *testing.T) {
	rec := newRecord(StatusRegistered)
	err := rec.ConfigureVoting(0, nil, time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	deadline := time.Now().Add(48 * time.Hour)
	require.NoError(t, rec.ConfigureVoting(5, &deadline, time.Now()))
	assert.Equal(t, 5, rec.RequiredVotes)
	assert.Equal(t, &deadline, rec.VotingDeadline)
}

func TestRecordChangeInstructorPreconditions(t *testing.T) {
	rec := newRecord(StatusRegistered)
	assert.True(t, errors.Is(rec.ChangeInstructor(7, 1, nil, time.Now()), appErrors.ErrSameReviewer))
	assert.True(t, errors.Is(rec.ChangeInstructor(0, 1, nil, time.Now()), appErrors.ErrInvalidReviewer))
	assert.True(t, errors.Is(rec.ChangeInstructor(-4, 1, nil, time.Now()), appErrors.ErrInvalidReviewer))

	cancelled := newRecord(StatusDocumentCancelled)
	assert.True(t, errors.Is(cancelled.ChangeInstructor(8, 1, nil, time.Now()), appErrors.ErrTerminalState))
	assert.Empty(t, cancelled.AssignmentHistory)
	assert.Equal(t, int64(7), cancelled.ReviewerID)
}

func TestRecordChangeInstructorAppendsAudit(t *testing.T) {
	rec := newRecord(StatusAdvisorApproved)
	reason := "sabbatical"
	require.NoError(t, rec.ChangeInstructor(8, 2, &reason, time.Now()))

	require.Len(t, rec.AssignmentHistory, 1)
	change := rec.AssignmentHistory[0]
	require.NotNil(t, change.PreviousReviewerID)
	assert.Equal(t, int64(7), *change.PreviousReviewerID)
	assert.Equal(t, int64(8), change.NewReviewerID)
	assert.False(t, change.NotificationSent)
	assert.Equal(t, int64(8), rec.ReviewerID)
	assert.Equal(t, &change, rec.LatestChange())
}

func TestRecordMarkNotificationSentOnlyTouchesLast(t *testing.T) {
	rec := newRecord(StatusRegistered)
	assert.False(t, rec.MarkNotificationSent())
	assert.Nil(t, rec.LatestChange())

	require.NoError(t, rec.ChangeInstructor(8, 1, nil, time.Now()))
	require.NoError(t, rec.ChangeInstructor(9, 1, nil, time.Now()))
	require.Len(t, rec.UnnotifiedChanges(), 2)

	assert.True(t, rec.MarkNotificationSent())
	assert.False(t, rec.AssignmentHistory[0].NotificationSent)
	assert.True(t, rec.AssignmentHistory[1].NotificationSent)
	assert.Len(t, rec.UnnotifiedChanges(), 1)
	assert.False(t, rec.MarkNotificationSent())
}
