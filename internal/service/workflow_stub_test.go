package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/internal/repository"
)

// recordStoreStub mimics the locked read-modify-write of the repository: a
// failing mutation leaves the stored record untouched.
type recordStoreStub struct {
	mu         sync.Mutex
	records    map[int64]*models.ReviewerStatusRecord
	active     map[int64]int
	countCalls int
	bulkParams *repository.BulkAssignParams
	bulkResult models.BulkAssignResult
	bulkErr    error
	pending    []models.ReassignmentNotice
	err        error
}

func newRecordStoreStub(records ...models.ReviewerStatusRecord) *recordStoreStub {
	stub := &recordStoreStub{records: make(map[int64]*models.ReviewerStatusRecord), active: make(map[int64]int)}
	for i := range records {
		rec := cloneRecord(&records[i])
		stub.records[rec.ID] = rec
	}
	return stub
}

func cloneRecord(rec *models.ReviewerStatusRecord) *models.ReviewerStatusRecord {
	out := *rec
	out.StatusHistory = append([]models.StatusHistoryEntry(nil), rec.StatusHistory...)
	out.CommitteeVotes = append([]models.CommitteeVote(nil), rec.CommitteeVotes...)
	out.AssignmentHistory = append([]models.AssignmentChange(nil), rec.AssignmentHistory...)
	return &out
}

func (s *recordStoreStub) GetByID(ctx context.Context, id int64) (*models.ReviewerStatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneRecord(rec), nil
}

func (s *recordStoreStub) Mutate(ctx context.Context, id int64, fn repository.RecordMutation) (*models.ReviewerStatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	working := cloneRecord(rec)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.records[id] = working
	return cloneRecord(working), nil
}

func (s *recordStoreStub) CountActiveByReviewer(ctx context.Context, reviewerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	return s.active[reviewerID], nil
}

func (s *recordStoreStub) BulkAssign(ctx context.Context, params repository.BulkAssignParams) (models.BulkAssignResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkParams = &params
	return s.bulkResult, s.bulkErr
}

func (s *recordStoreStub) ListPendingNotices(ctx context.Context, limit int) ([]models.ReassignmentNotice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ReassignmentNotice(nil), s.pending...), nil
}

func (s *recordStoreStub) get(id int64) *models.ReviewerStatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.records[id])
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
