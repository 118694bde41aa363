package journey

import (
	"slices"

	"github.com/desertthunder/journeyx/internal/models"
)

// FindMission locates a mission summary in the tree.
func FindMission(j *models.JourneyDetail, missionID int64) (*models.MissionSummary, bool) {
	return j.Mission(missionID)
}

// Statuses collects the known status of every mission. Unknown statuses are left out.
func Statuses(j *models.JourneyDetail) map[int64]models.MissionStatus {
	out := make(map[int64]models.MissionStatus)
	if j == nil {
		return out
	}
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			if m.Status.Valid() {
				out[m.ID] = m.Status
			}
		}
	}
	return out
}

// WithMissionStatus returns j with one mission advanced to status.
//
// Only the path to the mission is copied: the journey, its chapter list, the owning chapter and the
// mission itself. Every other chapter and mission keeps its pointer. When the status would not move
// the mission forward, j itself is returned.
func WithMissionStatus(j *models.JourneyDetail, missionID int64, status models.MissionStatus) *models.JourneyDetail {
	if j == nil || !status.Valid() {
		return j
	}
	for ci, c := range j.Chapters {
		for mi, m := range c.Missions {
			if m.ID != missionID {
				continue
			}
			if status.Rank() <= m.Status.Rank() {
				return j
			}

			mission := *m
			mission.Status = status
			return replaceMission(j, ci, mi, &mission)
		}
	}
	return j
}

// WithMissionStatuses applies [WithMissionStatus] for every entry.
func WithMissionStatuses(j *models.JourneyDetail, statuses map[int64]models.MissionStatus) *models.JourneyDetail {
	for id, status := range statuses {
		j = WithMissionStatus(j, id, status)
	}
	return j
}

// WithUserStatus returns j carrying the given purchase facts, or j itself when they are unchanged.
func WithUserStatus(j *models.JourneyDetail, status *models.UserStatus) *models.JourneyDetail {
	if j == nil || sameUserStatus(j.UserStatus, status) {
		return j
	}
	next := *j
	if status != nil {
		us := *status
		next.UserStatus = &us
	} else {
		next.UserStatus = nil
	}
	return &next
}

// WithLocks returns j with every mission's Locked flag set by isLocked. Missions whose flag does not
// change keep their pointer; if none change, j itself is returned.
func WithLocks(j *models.JourneyDetail, isLocked func(models.AccessLevel) bool) *models.JourneyDetail {
	if j == nil || isLocked == nil {
		return j
	}
	for ci, c := range j.Chapters {
		for mi, m := range c.Missions {
			locked := isLocked(m.AccessLevel)
			if locked == m.Locked {
				continue
			}
			mission := *m
			mission.Locked = locked
			j = replaceMission(j, ci, mi, &mission)
		}
	}
	return j
}

func replaceMission(j *models.JourneyDetail, ci, mi int, m *models.MissionSummary) *models.JourneyDetail {
	chapter := *j.Chapters[ci]
	chapter.Missions = slices.Clone(chapter.Missions)
	chapter.Missions[mi] = m

	next := *j
	next.Chapters = slices.Clone(j.Chapters)
	next.Chapters[ci] = &chapter
	return &next
}

func sameUserStatus(a, b *models.UserStatus) bool {
	switch {
	case a == nil || b == nil:
		return a == b
	case a.HasPurchased != b.HasPurchased || a.HasUnpaidOrder != b.HasUnpaidOrder:
		return false
	case a.UnpaidOrderID == nil || b.UnpaidOrderID == nil:
		return a.UnpaidOrderID == b.UnpaidOrderID
	default:
		return *a.UnpaidOrderID == *b.UnpaidOrderID
	}
}
