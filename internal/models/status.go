package models

// MissionStatus is a user's progress state for a mission.
//
// The zero value means the status is unknown (the backend sent null).
type MissionStatus string

const (
	StatusUnknown     MissionStatus = ""
	StatusUncompleted MissionStatus = "UNCOMPLETED"
	StatusCompleted   MissionStatus = "COMPLETED"
	StatusDelivered   MissionStatus = "DELIVERED"
)

// Rank orders statuses: unknown < UNCOMPLETED < COMPLETED < DELIVERED.
func (s MissionStatus) Rank() int {
	switch s {
	case StatusUncompleted:
		return 1
	case StatusCompleted:
		return 2
	case StatusDelivered:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the three backend statuses.
func (s MissionStatus) Valid() bool {
	return s.Rank() > 0
}

// Done reports whether the mission has at least been completed.
func (s MissionStatus) Done() bool {
	return s.Rank() >= StatusCompleted.Rank()
}

func (s MissionStatus) String() string {
	if s == StatusUnknown {
		return "UNKNOWN"
	}
	return string(s)
}

// StatusFromRank is the inverse of [MissionStatus.Rank].
func StatusFromRank(rank int) MissionStatus {
	switch rank {
	case 1:
		return StatusUncompleted
	case 2:
		return StatusCompleted
	case 3:
		return StatusDelivered
	default:
		return StatusUnknown
	}
}

// MaxStatus returns the more advanced of a and b. Invalid values rank as unknown.
func MaxStatus(a, b MissionStatus) MissionStatus {
	if b.Rank() > a.Rank() {
		return b
	}
	if !a.Valid() {
		return StatusUnknown
	}
	return a
}

// MissionProgress is a user's watch position and status for one mission.
type MissionProgress struct {
	MissionID            int64         `json:"missionId"`
	Status               MissionStatus `json:"status"`
	WatchPositionSeconds int           `json:"watchPositionSeconds"`
}

// DefaultProgress is the progress of a mission the user never started.
func DefaultProgress(missionID int64) MissionProgress {
	return MissionProgress{MissionID: missionID, Status: StatusUncompleted}
}
