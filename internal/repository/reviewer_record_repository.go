package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/placement-approval-api/internal/models"
)

// ErrDuplicateAssignment is returned when the (enrollment, reviewer) unique
// constraint rejects an insert raced by a concurrent assignment.
var ErrDuplicateAssignment = errors.New("reviewer already assigned to enrollment")

// errAppendOnly guards against a mutation shrinking a sub-collection.
var errAppendOnly = errors.New("append-only collection was truncated")

const uniqueViolation = "23505"

const selectRecordColumns = `SELECT id, enrollment_id, reviewer_id, status, remarks, vote_count, required_votes,
       voting_deadline, created_at, updated_at
FROM reviewer_status_records`

// RecordMutation changes a locked record in memory. Returning an error aborts
// the transaction without persisting anything.
type RecordMutation func(record *models.ReviewerStatusRecord) error

// ReviewerRecordRepository persists reviewer status records and their
// append-only sub-collections keyed by (record_id, seq).
type ReviewerRecordRepository struct {
	db *sqlx.DB
}

// NewReviewerRecordRepository constructs the repository.
func NewReviewerRecordRepository(db *sqlx.DB) *ReviewerRecordRepository {
	return &ReviewerRecordRepository{db: db}
}

// GetByID loads a record with its history, votes and assignment trail.
func (r *ReviewerRecordRepository) GetByID(ctx context.Context, id int64) (*models.ReviewerStatusRecord, error) {
	var record models.ReviewerStatusRecord
	if err := r.db.GetContext(ctx, &record, selectRecordColumns+" WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get reviewer record: %w", err)
	}
	if err := loadCollections(ctx, r.db, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func listEnrollmentRecords(ctx context.Context, q sqlx.QueryerContext, enrollmentID int64) ([]models.ReviewerStatusRecord, error) {
	var records []models.ReviewerStatusRecord
	if err := sqlx.SelectContext(ctx, q, &records, selectRecordColumns+" WHERE enrollment_id = $1 ORDER BY id ASC", enrollmentID); err != nil {
		return nil, fmt.Errorf("list reviewer records: %w", err)
	}
	return records, nil
}

// Mutate locks the record row, applies fn and persists the outcome in one
// transaction. Only entries appended by fn are inserted; the single in-place
// update allowed is the last assignment entry's notification flag.
func (r *ReviewerRecordRepository) Mutate(ctx context.Context, id int64, fn RecordMutation) (record *models.ReviewerStatusRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reviewer record transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.ReviewerStatusRecord
	if err = tx.GetContext(ctx, &locked, selectRecordColumns+" WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock reviewer record: %w", err)
	}
	if err = loadCollections(ctx, tx, &locked); err != nil {
		return nil, err
	}

	before := takeMark(&locked)
	if err = fn(&locked); err != nil {
		return nil, err
	}
	if err = persistRecord(ctx, tx, &locked, before); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reviewer record: %w", err)
	}
	return &locked, nil
}

// CountActiveByReviewer counts records of the reviewer that still demand work.
func (r *ReviewerRecordRepository) CountActiveByReviewer(ctx context.Context, reviewerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM reviewer_status_records WHERE reviewer_id = $1 AND status NOT IN ($2, $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, reviewerID, models.StatusDocumentCancelled, models.StatusDenied); err != nil {
		return 0, fmt.Errorf("count active reviewer records: %w", err)
	}
	return count, nil
}

type pendingNoticeRow struct {
	EnrollmentID int64 `db:"enrollment_id"`
	models.AssignmentChange
}

// ListPendingNotices returns records whose latest reassignment has not been notified.
func (r *ReviewerRecordRepository) ListPendingNotices(ctx context.Context, limit int) ([]models.ReassignmentNotice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `
SELECT r.enrollment_id, h.record_id, h.seq, h.previous_reviewer_id, h.new_reviewer_id, h.actor_id,
       h.reason, h.notification_sent, h.created_at
FROM reviewer_assignment_history h
JOIN reviewer_status_records r ON r.id = h.record_id
WHERE h.notification_sent = FALSE
	AND h.seq = (SELECT MAX(x.seq) FROM reviewer_assignment_history x WHERE x.record_id = h.record_id)
ORDER BY h.created_at ASC
LIMIT $1`
	var rows []pendingNoticeRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list pending reassignment notices: %w", err)
	}
	notices := make([]models.ReassignmentNotice, 0, len(rows))
	for _, row := range rows {
		notices = append(notices, models.ReassignmentNotice{
			RecordID:     row.RecordID,
			EnrollmentID: row.EnrollmentID,
			Change:       row.AssignmentChange,
		})
	}
	return notices, nil
}

// BulkAssignParams describes a bulk reviewer assignment.
type BulkAssignParams struct {
	ReviewerID    int64
	EnrollmentIDs []int64
	RequiredVotes int
	Now           time.Time
}

// BulkAssign creates one registered record per eligible enrollment and seeds
// its evaluation rows. Either every insert commits or none do.
func (r *ReviewerRecordRepository) BulkAssign(ctx context.Context, params BulkAssignParams) (result models.BulkAssignResult, err error) {
	result = models.BulkAssignResult{Created: []int64{}, SkippedExisting: []int64{}, NotFound: []int64{}}
	ids := dedupeIDs(params.EnrollmentIDs)
	if len(ids) == 0 {
		return result, nil
	}
	if params.Now.IsZero() {
		params.Now = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin bulk assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var found []int64
	if err = tx.SelectContext(ctx, &found, `SELECT id FROM enrollments WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return result, fmt.Errorf("resolve bulk enrollments: %w", err)
	}
	var assigned []int64
	const assignedQuery = `SELECT enrollment_id FROM reviewer_status_records WHERE reviewer_id = $1 AND enrollment_id = ANY($2)`
	if err = tx.SelectContext(ctx, &assigned, assignedQuery, params.ReviewerID, pq.Array(ids)); err != nil {
		return result, fmt.Errorf("resolve existing assignments: %w", err)
	}
	var questions []models.EvaluationQuestion
	const questionQuery = `SELECT id, question, weight, active, sort_order FROM evaluation_questions WHERE active = TRUE ORDER BY sort_order ASC, id ASC`
	if err = tx.SelectContext(ctx, &questions, questionQuery); err != nil {
		return result, fmt.Errorf("load evaluation questions: %w", err)
	}

	foundSet := toSet(found)
	assignedSet := toSet(assigned)
	const insertRecord = `INSERT INTO reviewer_status_records
	(enrollment_id, reviewer_id, status, vote_count, required_votes, created_at, updated_at)
	VALUES ($1, $2, $3, 0, $4, $5, $5) RETURNING id`
	const insertEvaluation = `INSERT INTO reviewer_evaluations (record_id, question_id, created_at) VALUES ($1, $2, $3)`

	for _, enrollmentID := range ids {
		if _, ok := foundSet[enrollmentID]; !ok {
			result.NotFound = append(result.NotFound, enrollmentID)
			continue
		}
		if _, ok := assignedSet[enrollmentID]; ok {
			result.SkippedExisting = append(result.SkippedExisting, enrollmentID)
			continue
		}
		var recordID int64
		if err = tx.QueryRowxContext(ctx, insertRecord, enrollmentID, params.ReviewerID, models.StatusRegistered, params.RequiredVotes, params.Now).Scan(&recordID); err != nil {
			if isUniqueViolation(err) {
				err = ErrDuplicateAssignment
				return result, err
			}
			return result, fmt.Errorf("insert reviewer record for enrollment %d: %w", enrollmentID, err)
		}
		for _, question := range questions {
			if _, err = tx.ExecContext(ctx, insertEvaluation, recordID, question.ID, params.Now); err != nil {
				return result, fmt.Errorf("seed evaluation %d for record %d: %w", question.ID, recordID, err)
			}
		}
		result.Created = append(result.Created, enrollmentID)
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit bulk assignment: %w", err)
	}
	return result, nil
}

type collectionMark struct {
	history      int
	votes        int
	assignments  int
	lastNotified bool
}

func takeMark(record *models.ReviewerStatusRecord) collectionMark {
	mark := collectionMark{
		history:     len(record.StatusHistory),
		votes:       len(record.CommitteeVotes),
		assignments: len(record.AssignmentHistory),
	}
	if mark.assignments > 0 {
		mark.lastNotified = record.AssignmentHistory[mark.assignments-1].NotificationSent
	}
	return mark
}

func loadCollections(ctx context.Context, q sqlx.QueryerContext, record *models.ReviewerStatusRecord) error {
	const historyQuery = `SELECT record_id, seq, from_status, to_status, actor_id, reason, created_at
FROM reviewer_status_history WHERE record_id = $1 ORDER BY seq ASC`
	record.StatusHistory = []models.StatusHistoryEntry{}
	if err := sqlx.SelectContext(ctx, q, &record.StatusHistory, historyQuery, record.ID); err != nil {
		return fmt.Errorf("load status history: %w", err)
	}

	const votesQuery = `SELECT record_id, seq, voter_id, vote, remarks, created_at
FROM reviewer_committee_votes WHERE record_id = $1 ORDER BY seq ASC`
	record.CommitteeVotes = []models.CommitteeVote{}
	if err := sqlx.SelectContext(ctx, q, &record.CommitteeVotes, votesQuery, record.ID); err != nil {
		return fmt.Errorf("load committee votes: %w", err)
	}

	const assignmentQuery = `SELECT record_id, seq, previous_reviewer_id, new_reviewer_id, actor_id, reason, notification_sent, created_at
FROM reviewer_assignment_history WHERE record_id = $1 ORDER BY seq ASC`
	record.AssignmentHistory = []models.AssignmentChange{}
	if err := sqlx.SelectContext(ctx, q, &record.AssignmentHistory, assignmentQuery, record.ID); err != nil {
		return fmt.Errorf("load assignment history: %w", err)
	}
	return nil
}

func persistRecord(ctx context.Context, tx *sqlx.Tx, record *models.ReviewerStatusRecord, before collectionMark) error {
	if len(record.StatusHistory) < before.history ||
		len(record.CommitteeVotes) < before.votes ||
		len(record.AssignmentHistory) < before.assignments {
		return errAppendOnly
	}

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	const updateQuery = `UPDATE reviewer_status_records SET
	reviewer_id = :reviewer_id,
	status = :status,
	remarks = :remarks,
	vote_count = :vote_count,
	required_votes = :required_votes,
	voting_deadline = :voting_deadline,
	updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuery, record); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAssignment
		}
		return fmt.Errorf("update reviewer record: %w", err)
	}

	const insertHistory = `INSERT INTO reviewer_status_history (record_id, seq, from_status, to_status, actor_id, reason, created_at)
	VALUES (:record_id, :seq, :from_status, :to_status, :actor_id, :reason, :created_at)`
	for i := before.history; i < len(record.StatusHistory); i++ {
		if _, err := tx.NamedExecContext(ctx, insertHistory, record.StatusHistory[i]); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
	}

	const insertVote = `INSERT INTO reviewer_committee_votes (record_id, seq, voter_id, vote, remarks, created_at)
	VALUES (:record_id, :seq, :voter_id, :vote, :remarks, :created_at)`
	for i := before.votes; i < len(record.CommitteeVotes); i++ {
		if _, err := tx.NamedExecContext(ctx, insertVote, record.CommitteeVotes[i]); err != nil {
			return fmt.Errorf("append committee vote: %w", err)
		}
	}

	const insertAssignment = `INSERT INTO reviewer_assignment_history
	(record_id, seq, previous_reviewer_id, new_reviewer_id, actor_id, reason, notification_sent, created_at)
	VALUES (:record_id, :seq, :previous_reviewer_id, :new_reviewer_id, :actor_id, :reason, :notification_sent, :created_at)`
	for i := before.assignments; i < len(record.AssignmentHistory); i++ {
		if _, err := tx.NamedExecContext(ctx, insertAssignment, record.AssignmentHistory[i]); err != nil {
			return fmt.Errorf("append assignment history: %w", err)
		}
	}

	if before.assignments > 0 && len(record.AssignmentHistory) == before.assignments {
		last := record.AssignmentHistory[before.assignments-1]
		if last.NotificationSent && !before.lastNotified {
			const markQuery = `UPDATE reviewer_assignment_history SET notification_sent = TRUE WHERE record_id = $1 AND seq = $2`
			if _, err := tx.ExecContext(ctx, markQuery, record.ID, last.Seq); err != nil {
				return fmt.Errorf("mark assignment notified: %w", err)
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
