package registry

// TrainingStatus tracks the external training pipeline for a project.
type TrainingStatus string

// Training statuses, in transition order. FAILED and COMPLETED are terminal.
const (
	StatusPending   TrainingStatus = "PENDING"
	StatusTraining  TrainingStatus = "TRAINING"
	StatusCompleted TrainingStatus = "COMPLETED"
	StatusFailed    TrainingStatus = "FAILED"
)

// statusRank orders statuses for monotonicity checks. COMPLETED and FAILED
// share a rank: both are terminal and neither can follow the other.
var statusRank = map[TrainingStatus]int{
	StatusPending:   0,
	StatusTraining:  1,
	StatusCompleted: 2,
	StatusFailed:    2,
}

// Valid reports whether s is a known status.
func (s TrainingStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s TrainingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canTransition reports whether from -> to is a legal forward transition.
// Re-asserting the current status is allowed while training is in flight,
// but terminal statuses accept nothing further, not even themselves.
func canTransition(from, to TrainingStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	return statusRank[to] > statusRank[from]
}
