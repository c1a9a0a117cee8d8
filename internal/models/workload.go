package models

// nearCapacityRatio marks the advisory warning threshold.
const nearCapacityRatio = 0.8

// ReviewerWorkload is an advisory capacity signal used when picking a
// reviewer. It never blocks an assignment.
type ReviewerWorkload struct {
	ReviewerID   int64   `json:"reviewerId"`
	Active       int     `json:"active"`
	Capacity     int     `json:"capacity"`
	Utilisation  float64 `json:"utilisation"`
	NearCapacity bool    `json:"nearCapacity"`
	OverCapacity bool    `json:"overCapacity"`
	Warning      string  `json:"warning,omitempty"`
}

// NewReviewerWorkload derives warnings from an active record count.
func NewReviewerWorkload(reviewerID int64, active, capacity int) ReviewerWorkload {
	w := ReviewerWorkload{ReviewerID: reviewerID, Active: active, Capacity: capacity}
	if capacity <= 0 {
		return w
	}
	w.Utilisation = float64(active) / float64(capacity)
	switch {
	case active > capacity:
		w.OverCapacity = true
		w.Warning = "reviewer is over capacity"
	case w.Utilisation > nearCapacityRatio:
		w.NearCapacity = true
		w.Warning = "reviewer is near capacity"
	}
	return w
}
