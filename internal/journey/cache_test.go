package journey

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/journeyx/internal/mission"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/purchase"
	"github.com/desertthunder/journeyx/internal/services"
	"github.com/desertthunder/journeyx/internal/shared"
	tu "github.com/desertthunder/journeyx/internal/testing"
)

func setup(t *testing.T) (*Cache, *purchase.Gate, *tu.Backend) {
	t.Helper()
	backend := tu.NewBackend(t)
	backend.AddJourney(tree())
	api := services.NewAPIService(backend.URL, nil)
	gate := purchase.NewGate(purchase.GateOpts{UserID: backend.UserID, API: api})
	cache := NewCache(Options{API: api, Gate: gate})
	gate.OnChange(cache.Relock)
	return cache, gate, backend
}

func TestCacheLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymous", func(t *testing.T) {
		cache, _, backend := setup(t)
		j, err := cache.Load(ctx, "7", 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if backend.CallCount("GET /users/") != 0 {
			t.Error("expected no progress reads without a user")
		}
		if m, _ := FindMission(j, 21); m.Status != models.StatusCompleted {
			t.Errorf("expected structural status, got %q", m.Status)
		}
		if cache.Current() != j {
			t.Error("expected snapshot to be stored")
		}
	})

	t.Run("Merges Progress", func(t *testing.T) {
		cache, _, backend := setup(t)
		backend.SetProgress(models.MissionProgress{MissionID: 11, Status: models.StatusDelivered})

		j, err := cache.Load(ctx, "7", backend.UserID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := Statuses(j)
		if got[11] != models.StatusDelivered {
			t.Errorf("expected DELIVERED for 11, got %q", got[11])
		}
		if got[12] != models.StatusUncompleted {
			t.Errorf("expected 404 to mean UNCOMPLETED, got %q", got[12])
		}
		if got[21] != models.StatusCompleted {
			t.Errorf("expected backend 404 not to regress 21, got %q", got[21])
		}
		if n := backend.CallCount("GET /users/1/missions/"); n != 3 {
			t.Errorf("expected 3 progress reads, got %d", n)
		}
	})

	t.Run("Failed Progress Keeps Structure", func(t *testing.T) {
		cache, _, backend := setup(t)
		backend.Fail(http.MethodGet, "/users/1/missions/12/progress", http.StatusInternalServerError)

		j, err := cache.Load(ctx, "7", backend.UserID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if m, _ := FindMission(j, 12); m.Status != models.StatusUnknown {
			t.Errorf("expected structural status, got %q", m.Status)
		}
	})

	t.Run("Unauthorized Aborts", func(t *testing.T) {
		cache, _, backend := setup(t)
		backend.Fail(http.MethodGet, "/users/1/missions/11/progress", http.StatusUnauthorized)

		if _, err := cache.Load(ctx, "7", backend.UserID); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if cache.Current() != nil {
			t.Error("expected no snapshot after an aborted load")
		}
	})

	t.Run("Unknown Journey", func(t *testing.T) {
		cache, _, _ := setup(t)
		if _, err := cache.Load(ctx, "404", 0); !errors.Is(err, shared.ErrJourneyNotFound) {
			t.Errorf("expected ErrJourneyNotFound, got %v", err)
		}
	})

	t.Run("Reload Never Regresses", func(t *testing.T) {
		cache, _, backend := setup(t)
		if _, err := cache.Load(ctx, "7", backend.UserID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.UpdateMissionStatus(11, models.StatusDelivered)

		j, err := cache.Load(ctx, "7", backend.UserID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if m, _ := FindMission(j, 11); m.Status != models.StatusDelivered {
			t.Errorf("expected DELIVERED to survive reload, got %q", m.Status)
		}
	})

	t.Run("Locks Before Purchases Load", func(t *testing.T) {
		cache, _, _ := setup(t)
		j, _ := cache.Load(ctx, "7", 0)
		if m, _ := FindMission(j, 12); !m.Locked {
			t.Error("expected purchased mission to be locked")
		}
		if m, _ := FindMission(j, 11); m.Locked {
			t.Error("expected public mission to be open")
		}
	})
}

func TestCacheUpdateMissionStatus(t *testing.T) {
	ctx := context.Background()
	cache, _, backend := setup(t)
	if _, err := cache.Load(ctx, "7", backend.UserID); err != nil {
		t.Fatalf("load: %v", err)
	}

	var seen []*models.JourneyDetail
	cancel := cache.Subscribe(func(j *models.JourneyDetail) { seen = append(seen, j) })

	t.Run("Advances And Notifies", func(t *testing.T) {
		before := cache.Current()
		if !cache.UpdateMissionStatus(11, models.StatusCompleted) {
			t.Fatal("expected update to apply")
		}
		after := cache.Current()
		if len(seen) != 1 || seen[0] != after {
			t.Fatalf("expected one notification with the new snapshot, got %d", len(seen))
		}
		if after.Chapters[1] != before.Chapters[1] {
			t.Error("expected unrelated chapter to keep its pointer")
		}
	})

	t.Run("Repeat Is A No-op", func(t *testing.T) {
		before := cache.Current()
		if cache.UpdateMissionStatus(11, models.StatusCompleted) {
			t.Error("expected repeat to change nothing")
		}
		if cache.UpdateMissionStatus(11, models.StatusUncompleted) {
			t.Error("expected regression to change nothing")
		}
		if cache.Current() != before || len(seen) != 1 {
			t.Error("expected no swap and no notification")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		cancel()
		cache.UpdateMissionStatus(11, models.StatusDelivered)
		if len(seen) != 1 {
			t.Errorf("expected no notification after cancel, got %d", len(seen))
		}
	})

	t.Run("As Machine Sink", func(t *testing.T) {
		machine := mission.NewMachine(mission.MachineOpts{UserID: backend.UserID, Sink: cache})
		machine.Seed(Statuses(cache.Current()))
		machine.MarkCompleted(12)

		if m, _ := FindMission(cache.Current(), 12); m.Status != models.StatusCompleted {
			t.Errorf("expected machine transition to reach the cache, got %q", m.Status)
		}
	})
}

func TestCacheRefreshPurchaseStatus(t *testing.T) {
	ctx := context.Background()
	cache, _, backend := setup(t)
	if _, err := cache.Load(ctx, "7", backend.UserID); err != nil {
		t.Fatalf("load: %v", err)
	}
	structural := backend.CallCount("GET /journeys/7")

	backend.SetPurchased(7, true)
	if err := cache.RefreshPurchaseStatus(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	j := cache.Current()
	if m, _ := FindMission(j, 12); m.Locked {
		t.Error("expected mission to unlock after purchase")
	}
	if j.UserStatus == nil || !j.UserStatus.HasPurchased {
		t.Errorf("expected purchased user status, got %+v", j.UserStatus)
	}
	if backend.CallCount("GET /journeys/7") != structural {
		t.Error("expected structure not to be fetched again")
	}

	t.Run("Failure Keeps Facts", func(t *testing.T) {
		backend.Fail(http.MethodGet, "/users/1/journeys", http.StatusServiceUnavailable)
		if err := cache.RefreshPurchaseStatus(ctx); err == nil {
			t.Fatal("expected an error")
		}
		if m, _ := FindMission(cache.Current(), 12); m.Locked {
			t.Error("expected mission to stay unlocked")
		}
	})
}

type slowAPI struct {
	journey *models.JourneyDetail
	active  atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
}

func (s *slowAPI) Journey(context.Context, string) (*models.JourneyDetail, error) {
	return s.journey, nil
}

func (s *slowAPI) MissionProgress(_ context.Context, _, missionID int64) (models.MissionProgress, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)

	s.mu.Lock()
	if n > s.peak.Load() {
		s.peak.Store(n)
	}
	s.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	return models.DefaultProgress(missionID), nil
}

func TestCacheLoadConcurrencyLimit(t *testing.T) {
	var missions []*models.MissionSummary
	for i := range 12 {
		missions = append(missions, &models.MissionSummary{ID: int64(i + 1)})
	}
	api := &slowAPI{journey: &models.JourneyDetail{ID: 1, Chapters: []*models.Chapter{{ID: 1, Missions: missions}}}}
	cache := NewCache(Options{API: api, MaxConcurrency: 3})

	j, err := cache.Load(context.Background(), "1", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(Statuses(j)) != 12 {
		t.Errorf("expected 12 statuses, got %d", len(Statuses(j)))
	}
	if peak := api.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent reads, got %d", peak)
	}
}

func TestCacheMergeStatuses(t *testing.T) {
	cache, _, backend := setup(t)
	if _, err := cache.Load(context.Background(), "7", backend.UserID); err != nil {
		t.Fatalf("load: %v", err)
	}

	notified := 0
	cache.Subscribe(func(*models.JourneyDetail) { notified++ })

	changed := cache.MergeStatuses(map[int64]models.MissionStatus{
		11: models.StatusCompleted,
		12: models.StatusDelivered,
	})
	if !changed || notified != 1 {
		t.Errorf("expected one swap and one notification, got %v and %d", changed, notified)
	}
	if cache.MergeStatuses(map[int64]models.MissionStatus{11: models.StatusUncompleted}) {
		t.Error("expected lower statuses to change nothing")
	}
}
