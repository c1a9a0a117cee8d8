package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
)

func TestReviewStatusServiceTransition(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, EnrollmentID: 10, ReviewerID: 7, Status: models.StatusRegistered})
	svc := NewReviewStatusService(store, NewMetricsService(), validator.New(), zap.NewNop())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	record, err := svc.Transition(context.Background(), 1, models.StatusAdvisorApproved, 42, strPtr("looks good"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdvisorApproved, record.Status)
	require.Len(t, record.StatusHistory, 1)
	entry := record.StatusHistory[0]
	assert.Equal(t, models.StatusRegistered, entry.FromStatus)
	assert.Equal(t, models.StatusAdvisorApproved, entry.ToStatus)
	assert.Equal(t, int64(42), entry.ActorID)
	assert.Equal(t, now, entry.CreatedAt)

	record, err = svc.Transition(context.Background(), 1, models.StatusCommitteeApproved, 43, nil)
	require.NoError(t, err)
	assert.Len(t, record.StatusHistory, 2)
}

func TestReviewStatusServiceRejectedTransitionLeavesRecord(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, Status: models.StatusDocumentCancelled})
	svc := NewReviewStatusService(store, nil, nil, nil)

	_, err := svc.Transition(context.Background(), 1, models.StatusRegistered, 42, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, "INVALID_TRANSITION", appErrors.Code(err))

	stored := store.get(1)
	assert.Equal(t, models.StatusDocumentCancelled, stored.Status)
	assert.Empty(t, stored.StatusHistory)
}

func TestReviewStatusServiceUnknownStatus(t *testing.T) {
	svc := NewReviewStatusService(newRecordStoreStub(), nil, nil, nil)
	_, err := svc.Transition(context.Background(), 1, models.ReviewStatus("archived"), 1, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReviewStatusServiceNotFound(t *testing.T) {
	svc := NewReviewStatusService(newRecordStoreStub(), nil, nil, nil)
	_, err := svc.Get(context.Background(), 99)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Transition(context.Background(), 99, models.StatusDenied, 1, nil)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReviewStatusServiceWrapsStoreFailure(t *testing.T) {
	store := newRecordStoreStub()
	store.err = errors.New("connection reset")
	svc := NewReviewStatusService(store, nil, nil, nil)

	_, err := svc.Transition(context.Background(), 1, models.StatusDenied, 1, nil)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestReviewStatusServiceMigrateLegacy(t *testing.T) {
	store := newRecordStoreStub(
		models.ReviewerStatusRecord{ID: 1, Status: models.StatusPending},
		models.ReviewerStatusRecord{ID: 2, Status: models.StatusApprove},
		models.ReviewerStatusRecord{ID: 3, Status: models.StatusRegistered},
	)
	svc := NewReviewStatusService(store, nil, nil, nil)

	record, err := svc.MigrateLegacy(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, record.Status)
	require.Len(t, record.StatusHistory, 1)
	assert.Equal(t, "legacy migration", *record.StatusHistory[0].Reason)

	record, err = svc.MigrateLegacy(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdvisorApproved, record.Status)

	_, err = svc.MigrateLegacy(context.Background(), 3, 5)
	assert.True(t, errors.Is(err, appErrors.ErrNotLegacy))
}

func TestReviewStatusServiceNextStatuses(t *testing.T) {
	svc := NewReviewStatusService(newRecordStoreStub(), nil, nil, nil)
	next, err := svc.NextStatuses(models.StatusCommitteeApproved)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ReviewStatus{models.StatusDocumentApproved, models.StatusDocumentCancelled}, next)

	_, err = svc.NextStatuses("bogus")
	assert.Error(t, err)
}

func TestReviewStatusServiceRejectsOversizedReason(t *testing.T) {
	store := newRecordStoreStub(models.ReviewerStatusRecord{ID: 1, Status: models.StatusRegistered})
	svc := NewReviewStatusService(store, nil, nil, nil)

	_, err := svc.Transition(context.Background(), 1, models.StatusAdvisorApproved, 42, strPtr(strings.Repeat("x", 501)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	stored := store.get(1)
	assert.Equal(t, models.StatusRegistered, stored.Status)
	assert.Empty(t, stored.StatusHistory)

	_, err = svc.Transition(context.Background(), 1, models.StatusAdvisorApproved, 42, strPtr(strings.Repeat("x", 500)))
	require.NoError(t, err)
}
