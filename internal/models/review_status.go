package models

// ReviewStatus is the approval state of one reviewer on one enrollment.
type ReviewStatus string

// StatusEra tags which vocabulary a status belongs to.
type StatusEra string

const (
	StatusEraStaged StatusEra = "STAGED"
	StatusEraLegacy StatusEra = "LEGACY"
)

// Staged pipeline statuses.
const (
	StatusRegistered        ReviewStatus = "registered"
	StatusAdvisorApproved   ReviewStatus = "advisor_approved"
	StatusCommitteeApproved ReviewStatus = "committee_approved"
	StatusDocumentApproved  ReviewStatus = "document_approved"
	StatusDocumentCancelled ReviewStatus = "document_cancelled"
	StatusDenied            ReviewStatus = "denied"
)

// Legacy flat statuses. They keep their own edges and are moved onto the
// staged pipeline only through MigrateLegacy.
const (
	StatusApprove ReviewStatus = "approve"
	StatusPending ReviewStatus = "pending"
)

var statusTransitions = map[ReviewStatus][]ReviewStatus{
	StatusRegistered:        {StatusAdvisorApproved, StatusDenied},
	StatusAdvisorApproved:   {StatusCommitteeApproved, StatusDenied},
	StatusCommitteeApproved: {StatusDocumentApproved, StatusDocumentCancelled},
	StatusDocumentApproved:  {StatusDocumentCancelled},
	StatusDocumentCancelled: {},
	StatusApprove:           {StatusDenied},
	StatusDenied:            {StatusRegistered},
	StatusPending:           {StatusApprove, StatusDenied},
}

var legacyMigrations = map[ReviewStatus]ReviewStatus{
	StatusPending: StatusRegistered,
	StatusApprove: StatusAdvisorApproved,
}

// AllReviewStatuses lists every known status in table order.
func AllReviewStatuses() []ReviewStatus {
	return []ReviewStatus{
		StatusRegistered,
		StatusAdvisorApproved,
		StatusCommitteeApproved,
		StatusDocumentApproved,
		StatusDocumentCancelled,
		StatusApprove,
		StatusDenied,
		StatusPending,
	}
}

// Valid reports whether the status is part of the known vocabulary.
func (s ReviewStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Era returns the vocabulary the status belongs to. Denied is shared by both
// eras and reported as staged.
func (s ReviewStatus) Era() StatusEra {
	if _, ok := legacyMigrations[s]; ok {
		return StatusEraLegacy
	}
	return StatusEraStaged
}

// NextStatuses returns a copy of the adjacency list for s.
func (s ReviewStatus) NextStatuses() []ReviewStatus {
	next := statusTransitions[s]
	out := make([]ReviewStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is adjacent to s.
func (s ReviewStatus) CanTransitionTo(target ReviewStatus) bool {
	for _, candidate := range statusTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s ReviewStatus) IsTerminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// IsActive reports whether the record still counts towards reviewer workload.
func (s ReviewStatus) IsActive() bool {
	return s != StatusDocumentCancelled && s != StatusDenied
}

// ApprovedAsAdvisor reports whether the advisor stage has been cleared.
func (s ReviewStatus) ApprovedAsAdvisor() bool {
	switch s {
	case StatusAdvisorApproved, StatusCommitteeApproved, StatusDocumentApproved, StatusApprove:
		return true
	}
	return false
}

// ApprovedAsCommittee reports whether the committee stage has been cleared.
func (s ReviewStatus) ApprovedAsCommittee() bool {
	switch s {
	case StatusCommitteeApproved, StatusDocumentApproved, StatusApprove:
		return true
	}
	return false
}

// IsRejected reports the explicit reject terminal only.
func (s ReviewStatus) IsRejected() bool {
	return s == StatusDenied
}

// MigrationTarget returns the staged replacement for a legacy status.
func (s ReviewStatus) MigrationTarget() (ReviewStatus, bool) {
	target, ok := legacyMigrations[s]
	return target, ok
}
