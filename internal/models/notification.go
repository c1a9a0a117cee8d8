package models

// ReassignmentNotice is handed to the external notifier for a pending reassignment.
type ReassignmentNotice struct {
	RecordID     int64            `json:"recordId"`
	EnrollmentID int64            `json:"enrollmentId"`
	Change       AssignmentChange `json:"change"`
}
