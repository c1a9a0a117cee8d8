package models

// RoleMembership describes how a reviewer acts for a course section. Both
// flags may be set at once.
type RoleMembership struct {
	IsAdvisor   bool `db:"is_advisor" json:"isAdvisor"`
	IsCommittee bool `db:"is_committee" json:"isCommittee"`
}
