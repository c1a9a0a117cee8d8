package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

func TestCommitteeVoteServiceTally(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, Status: models.StatusAdvisorApproved, RequiredVotes: 3})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.CastVote(ctx, 1, 101, models.VoteApprove, nil)
	require.NoError(t, err)
	_, _, err = svc.CastVote(ctx, 1, 102, models.VoteApprove, strPtr("solid placement"))
	require.NoError(t, err)
	record, result, err := svc.CastVote(ctx, 1, 103, models.VoteReject, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, record.VoteCount)
	assert.Equal(t, models.VotingResult{Approved: true, ApproveCount: 2, RejectCount: 1, Complete: true}, result)

	voted, err := svc.HasVoted(ctx, 1, 102)
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = svc.HasVoted(ctx, 1, 999)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestCommitteeVoteServiceTieRejects(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 2})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.CastVote(ctx, 1, 1, models.VoteApprove, nil)
	require.NoError(t, err)
	_, _, err = svc.CastVote(ctx, 1, 2, models.VoteReject, nil)
	require.NoError(t, err)

	result, err := svc.Result(ctx, 1)
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.True(t, result.Complete)
}

func TestCommitteeVoteServiceDuplicateVote(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 3})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.CastVote(ctx, 1, 5, models.VoteApprove, nil)
	require.NoError(t, err)
	_, _, err = svc.CastVote(ctx, 1, 5, models.VoteReject, nil)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyVoted))

	stored := store.get(1)
	assert.Equal(t, 1, stored.VoteCount)
	assert.Len(t, stored.CommitteeVotes, 1)
}

func TestCommitteeVoteServiceDeadline(t *testing.T) {
	deadline := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 3, VotingDeadline: &deadline})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)

	svc.now = fixedClock(deadline)
	_, _, err := svc.CastVote(context.Background(), 1, 1, models.VoteApprove, nil)
	require.NoError(t, err, "a vote at the deadline instant is still accepted")

	svc.now = fixedClock(deadline.Add(time.Second))
	_, _, err = svc.CastVote(context.Background(), 1, 2, models.VoteApprove, nil)
	assert.True(t, errors.Is(err, appErrors.ErrDeadlinePassed))
}

func TestCommitteeVoteServiceInvalidInput(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 3})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)

	_, _, err := svc.CastVote(context.Background(), 1, 1, models.VoteChoice("abstain"), nil)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidVote))

	_, _, err = svc.CastVote(context.Background(), 1, 0, models.VoteApprove, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCommitteeVoteServiceConfigureVoting(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 1})
	svc := NewCommitteeVoteService(store, 5, nil, nil, nil)
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	record, err := svc.ConfigureVoting(context.Background(), 1, 0, &deadline)
	require.NoError(t, err)
	assert.Equal(t, 5, record.RequiredVotes)
	require.NotNil(t, record.VotingDeadline)
	assert.True(t, deadline.Equal(*record.VotingDeadline))

	_, err = svc.ConfigureVoting(context.Background(), 1, -2, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCommitteeVoteServiceValidatesSettingsAndRemarks(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, RequiredVotes: 3})
	svc := NewCommitteeVoteService(store, 3, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ConfigureVoting(ctx, 1, 1000, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 3, store.get(1).RequiredVotes)

	record, err := svc.ConfigureVoting(ctx, 1, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, record.RequiredVotes)

	_, _, err = svc.CastVote(ctx, 1, 7, models.VoteApprove, strPtr(strings.Repeat("r", 1001)))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.get(1).CommitteeVotes)
}
