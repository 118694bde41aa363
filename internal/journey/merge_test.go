package journey

import (
	"testing"

	"github.com/desertthunder/journeyx/internal/models"
)

func tree() *models.JourneyDetail {
	return &models.JourneyDetail{
		ID:   7,
		Slug: "go-basics",
		Chapters: []*models.Chapter{
			{ID: 1, Missions: []*models.MissionSummary{
				{ID: 11, AccessLevel: models.AccessPublic, Status: models.StatusUncompleted},
				{ID: 12, AccessLevel: models.AccessPurchased},
			}},
			{ID: 2, Missions: []*models.MissionSummary{
				{ID: 21, AccessLevel: models.AccessAuthenticated, Status: models.StatusCompleted},
			}},
		},
	}
}

func TestWithMissionStatus(t *testing.T) {
	t.Run("Replaces Only The Target", func(t *testing.T) {
		j := tree()
		next := WithMissionStatus(j, 11, models.StatusCompleted)

		if next == j {
			t.Fatal("expected a new snapshot")
		}
		if m, _ := FindMission(next, 11); m.Status != models.StatusCompleted {
			t.Errorf("expected COMPLETED, got %s", m.Status)
		}
		if m, _ := FindMission(j, 11); m.Status != models.StatusUncompleted {
			t.Error("expected input to stay unmodified")
		}
		if next.Chapters[1] != j.Chapters[1] {
			t.Error("expected unrelated chapter to keep its pointer")
		}
		if next.Chapters[0].Missions[1] != j.Chapters[0].Missions[1] {
			t.Error("expected sibling mission to keep its pointer")
		}
		if next.Chapters[0] == j.Chapters[0] {
			t.Error("expected owning chapter to be copied")
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		once := WithMissionStatus(tree(), 11, models.StatusDelivered)
		twice := WithMissionStatus(once, 11, models.StatusDelivered)
		if twice != once {
			t.Error("expected second application to return the same snapshot")
		}
	})

	t.Run("Never Regresses", func(t *testing.T) {
		j := tree()
		if got := WithMissionStatus(j, 21, models.StatusUncompleted); got != j {
			t.Error("expected lower status to be ignored")
		}
	})

	t.Run("Unknown Mission And Status", func(t *testing.T) {
		j := tree()
		if WithMissionStatus(j, 99, models.StatusCompleted) != j {
			t.Error("expected unknown mission to be a no-op")
		}
		if WithMissionStatus(j, 11, models.StatusUnknown) != j {
			t.Error("expected unknown status to be a no-op")
		}
		if WithMissionStatus(nil, 11, models.StatusCompleted) != nil {
			t.Error("expected nil journey to stay nil")
		}
	})

	t.Run("Unknown Advances To Uncompleted", func(t *testing.T) {
		next := WithMissionStatus(tree(), 12, models.StatusUncompleted)
		if m, _ := FindMission(next, 12); m.Status != models.StatusUncompleted {
			t.Errorf("expected UNCOMPLETED, got %q", m.Status)
		}
	})
}

func TestWithMissionStatuses(t *testing.T) {
	j := tree()
	next := WithMissionStatuses(j, map[int64]models.MissionStatus{
		11: models.StatusDelivered,
		21: models.StatusUncompleted,
	})

	got := Statuses(next)
	if got[11] != models.StatusDelivered || got[21] != models.StatusCompleted {
		t.Errorf("unexpected statuses %v", got)
	}
	if _, ok := got[12]; ok {
		t.Error("expected unknown status to be left out")
	}
	if next.Chapters[1] != j.Chapters[1] {
		t.Error("expected chapter without changes to keep its pointer")
	}
}

func TestWithLocks(t *testing.T) {
	locked := func(level models.AccessLevel) bool { return level == models.AccessPurchased }

	j := tree()
	next := WithLocks(j, locked)
	m, _ := FindMission(next, 12)
	if !m.Locked {
		t.Error("expected purchased mission to be locked")
	}
	if next.Chapters[1] != j.Chapters[1] {
		t.Error("expected chapter without purchased missions to keep its pointer")
	}
	if WithLocks(next, locked) != next {
		t.Error("expected unchanged locks to return the same snapshot")
	}

	open := WithLocks(next, func(models.AccessLevel) bool { return false })
	if m, _ := FindMission(open, 12); m.Locked {
		t.Error("expected mission to unlock")
	}
}

func TestWithUserStatus(t *testing.T) {
	j := tree()
	id := int64(50)
	next := WithUserStatus(j, &models.UserStatus{HasUnpaidOrder: true, UnpaidOrderID: &id})
	if next == j || next.UserStatus == nil || *next.UserStatus.UnpaidOrderID != 50 {
		t.Fatalf("unexpected user status %+v", next.UserStatus)
	}
	if next.Chapters[0] != j.Chapters[0] {
		t.Error("expected chapters to be shared")
	}

	same := int64(50)
	if WithUserStatus(next, &models.UserStatus{HasUnpaidOrder: true, UnpaidOrderID: &same}) != next {
		t.Error("expected equal user status to be a no-op")
	}
	if WithUserStatus(next, nil).UserStatus != nil {
		t.Error("expected user status to be cleared")
	}
}
