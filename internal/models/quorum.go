package models

import "time"

// QuorumRow is one record's contribution to an enrollment decision, read
// inside a single snapshot.
type QuorumRow struct {
	EnrollmentID int64        `db:"enrollment_id"`
	RecordID     int64        `db:"record_id"`
	ReviewerID   int64        `db:"reviewer_id"`
	Status       ReviewStatus `db:"status"`
	RoleMembership
}

// RoleTally counts records for one role.
type RoleTally struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// QuorumReport is the derived pass/fail decision for one enrollment.
type QuorumReport struct {
	EnrollmentID      int64            `json:"enrollmentId"`
	EnrollmentStatus  EnrollmentStatus `json:"enrollmentStatus,omitempty"`
	Advisors          RoleTally        `json:"advisors"`
	Committee         RoleTally        `json:"committee"`
	RequiredCommittee int              `json:"requiredCommittee"`
	NeededToPass      int              `json:"neededToPass"`
	Passed            bool             `json:"passed"`
	ComputedAt        time.Time        `json:"computedAt"`
}

// ComputeQuorum derives the decision from the rows of one enrollment. A
// record holding both roles counts towards both tallies independently.
func ComputeQuorum(enrollmentID int64, rows []QuorumRow) QuorumReport {
	report := QuorumReport{EnrollmentID: enrollmentID}
	for _, row := range rows {
		if row.IsAdvisor {
			report.Advisors.Total++
			if row.Status.ApprovedAsAdvisor() {
				report.Advisors.Approved++
			}
			if row.Status.IsRejected() {
				report.Advisors.Rejected++
			}
		}
		if row.IsCommittee {
			report.Committee.Total++
			if row.Status.ApprovedAsCommittee() {
				report.Committee.Approved++
			}
			if row.Status.IsRejected() {
				report.Committee.Rejected++
			}
		}
	}
	report.RequiredCommittee = (report.Committee.Total + 1) / 2
	report.NeededToPass = report.RequiredCommittee - report.Committee.Approved
	if report.NeededToPass < 0 {
		report.NeededToPass = 0
	}
	report.Passed = report.Advisors.Approved == report.Advisors.Total &&
		report.Committee.Approved >= report.RequiredCommittee
	return report
}

// EnrollmentSnapshot is everything one decision reads, taken inside a single
// snapshot. Records is only filled for single-enrollment reads.
type EnrollmentSnapshot struct {
	Enrollment Enrollment
	Records    []ReviewerStatusRecord
	Rows       []QuorumRow
}

// Decide computes the decision for the snapshot. Only an active enrollment
// can pass; an inactive one still reports its tallies.
func (s EnrollmentSnapshot) Decide() QuorumReport {
	report := ComputeQuorum(s.Enrollment.ID, s.Rows)
	report.EnrollmentStatus = s.Enrollment.Status
	if s.Enrollment.Status != EnrollmentStatusActive {
		report.Passed = false
	}
	return report
}
