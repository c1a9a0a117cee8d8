package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/pkg/jobs"
)

type notifierStub struct {
	mu      sync.Mutex
	notices []models.ReassignmentNotice
	err     error
	done    chan struct{}
}

func (n *notifierStub) NotifyReassignment(ctx context.Context, notice models.ReassignmentNotice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	if n.done != nil {
		n.done <- struct{}{}
	}
	return n.err
}

func reassignedRecord() models.ReviewerStatusRecord {
	prev := int64(5)
	return models.ReviewerStatusRecord{
		ID:           1,
		EnrollmentID: 10,
		ReviewerID:   6,
		Status:       models.StatusRegistered,
		AssignmentHistory: []models.AssignmentChange{
			{RecordID: 1, Seq: 1, PreviousReviewerID: &prev, NewReviewerID: 6},
		},
	}
}

func TestNotificationDispatcherHandleMarksLastEntry(t *testing.T) {
	store := newRecordStoreStub(reassignedRecord())
	notifier := &notifierStub{}
	d := NewNotificationDispatcher(store, notifier, nil, nil, DispatcherConfig{})

	notice := models.ReassignmentNotice{RecordID: 1, EnrollmentID: 10, Change: store.get(1).AssignmentHistory[0]}
	require.NoError(t, d.handle(context.Background(), jobs.Job{ID: "j", Payload: notice}))

	assert.Len(t, notifier.notices, 1)
	assert.True(t, store.get(1).AssignmentHistory[0].NotificationSent)
}

func TestNotificationDispatcherSupersededNotice(t *testing.T) {
	rec := reassignedRecord()
	prev := int64(6)
	rec.AssignmentHistory = append(rec.AssignmentHistory, models.AssignmentChange{RecordID: 1, Seq: 2, PreviousReviewerID: &prev, NewReviewerID: 7})
	store := newRecordStoreStub(rec)
	d := NewNotificationDispatcher(store, &notifierStub{}, nil, nil, DispatcherConfig{})

	stale := models.ReassignmentNotice{RecordID: 1, Change: rec.AssignmentHistory[0]}
	require.NoError(t, d.handle(context.Background(), jobs.Job{ID: "j", Payload: stale}))

	stored := store.get(1)
	assert.False(t, stored.AssignmentHistory[0].NotificationSent)
	assert.False(t, stored.AssignmentHistory[1].NotificationSent)
}

func TestNotificationDispatcherNotifierFailureKeepsFlag(t *testing.T) {
	store := newRecordStoreStub(reassignedRecord())
	d := NewNotificationDispatcher(store, &notifierStub{err: errors.New("smtp down")}, nil, nil, DispatcherConfig{})

	notice := models.ReassignmentNotice{RecordID: 1, Change: store.get(1).AssignmentHistory[0]}
	assert.Error(t, d.handle(context.Background(), jobs.Job{ID: "j", Payload: notice}))
	assert.False(t, store.get(1).AssignmentHistory[0].NotificationSent)
}

func TestNotificationDispatcherSweep(t *testing.T) {
	store := newRecordStoreStub(reassignedRecord())
	rec := store.get(1)
	store.pending = []models.ReassignmentNotice{{RecordID: 1, EnrollmentID: 10, Change: rec.AssignmentHistory[0]}}
	notifier := &notifierStub{done: make(chan struct{}, 1)}
	d := NewNotificationDispatcher(store, notifier, nil, nil, DispatcherConfig{Workers: 1, SweepInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	queued, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notice was not delivered")
	}
	assert.Eventually(t, func() bool {
		return store.get(1).AssignmentHistory[0].NotificationSent
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationDispatcherPublishDeduplicates(t *testing.T) {
	store := newRecordStoreStub(reassignedRecord())
	d := NewNotificationDispatcher(store, &notifierStub{}, nil, nil, DispatcherConfig{})
	notice := models.ReassignmentNotice{RecordID: 1, Change: models.AssignmentChange{Seq: 1}}

	assert.ErrorIs(t, d.Publish(notice), jobs.ErrQueueStopped)
	assert.True(t, d.claim(notice), "a failed publish releases the claim")
	assert.False(t, d.claim(notice))
}
