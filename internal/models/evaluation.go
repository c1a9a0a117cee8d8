package models

import "time"

// EvaluationQuestion is a template question seeded for every new reviewer record.
type EvaluationQuestion struct {
	ID        int64   `db:"id" json:"id"`
	Question  string  `db:"question" json:"question"`
	Weight    float64 `db:"weight" json:"weight"`
	Active    bool    `db:"active" json:"active"`
	SortOrder int     `db:"sort_order" json:"sortOrder"`
}

// ReviewerEvaluation is a reviewer's (initially unscored) answer to a question.
type ReviewerEvaluation struct {
	ID         int64     `db:"id" json:"id"`
	RecordID   int64     `db:"record_id" json:"recordId"`
	QuestionID int64     `db:"question_id" json:"questionId"`
	Score      *float64  `db:"score" json:"score,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// BulkAssignResult partitions a bulk assignment request into three disjoint sets.
type BulkAssignResult struct {
	Created         []int64 `json:"created"`
	SkippedExisting []int64 `json:"skippedExisting"`
	NotFound        []int64 `json:"notFound"`
}
