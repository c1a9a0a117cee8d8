package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures a student's registration into a course section for a term.
type Enrollment struct {
	ID              int64            `db:"id" json:"id"`
	StudentID       int64            `db:"student_id" json:"studentId"`
	CourseSectionID int64            `db:"course_section_id" json:"courseSectionId"`
	TermID          int64            `db:"term_id" json:"termId"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
}

// EnrollmentDecision pairs an enrollment with its reviewer records and the
// derived quorum decision.
type EnrollmentDecision struct {
	Enrollment *Enrollment            `json:"enrollment"`
	Records    []ReviewerStatusRecord `json:"records"`
	Quorum     QuorumReport           `json:"quorum"`
}
