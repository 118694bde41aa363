package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	tu "github.com/desertthunder/journeyx/internal/testing"
)

func sampleJourney() *models.JourneyDetail {
	return &models.JourneyDetail{
		ID:    7,
		Slug:  "go-basics",
		Title: "Go Basics",
		Chapters: []*models.Chapter{
			{ID: 1, Title: "Intro", Missions: []*models.MissionSummary{
				{ID: 11, Type: models.MissionVideo, Title: "Welcome", AccessLevel: models.AccessPublic},
				{ID: 12, Type: models.MissionVideo, Title: "Paid", AccessLevel: models.AccessPurchased},
			}},
		},
	}
}

func TestJourneyEndpoints(t *testing.T) {
	backend := tu.NewBackend(t)
	backend.AddJourney(sampleJourney())
	srv := NewAPIService(backend.URL, nil)
	ctx := context.Background()

	t.Run("Journeys", func(t *testing.T) {
		list, err := srv.Journeys(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list) != 1 || list[0].Slug != "go-basics" {
			t.Errorf("unexpected journey list %+v", list)
		}
	})

	t.Run("Journey By ID", func(t *testing.T) {
		j, err := srv.Journey(ctx, "7")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(j.MissionIDs()) != 2 {
			t.Errorf("expected 2 missions, got %v", j.MissionIDs())
		}
	})

	t.Run("Journey By Slug Falls Back To List", func(t *testing.T) {
		j, err := srv.Journey(ctx, "go-basics")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if j.ID != 7 {
			t.Errorf("expected journey 7, got %d", j.ID)
		}
	})

	t.Run("Unknown Journey", func(t *testing.T) {
		if _, err := srv.Journey(ctx, "nope"); !errors.Is(err, shared.ErrJourneyNotFound) {
			t.Errorf("expected ErrJourneyNotFound for slug, got %v", err)
		}
		if _, err := srv.Journey(ctx, "99"); !errors.Is(err, shared.ErrJourneyNotFound) {
			t.Errorf("expected ErrJourneyNotFound for id, got %v", err)
		}
	})

	t.Run("MissionDetail", func(t *testing.T) {
		d, err := srv.MissionDetail(ctx, 7, 11)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if d.DurationSeconds() != 60 || d.VideoID() != "vid11" {
			t.Errorf("unexpected mission detail %+v", d)
		}

		if _, err := srv.MissionDetail(ctx, 7, 404); !errors.Is(err, shared.ErrMissionNotFound) {
			t.Errorf("expected ErrMissionNotFound, got %v", err)
		}
	})
}

func TestMissionEndpoints(t *testing.T) {
	backend := tu.NewBackend(t)
	backend.AddJourney(sampleJourney())
	srv := NewAPIService(backend.URL, nil)
	ctx := context.Background()

	t.Run("Missing Progress Is Default", func(t *testing.T) {
		p, err := srv.MissionProgress(ctx, 1, 11)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p != models.DefaultProgress(11) {
			t.Errorf("expected default progress, got %+v", p)
		}
	})

	t.Run("Update Returns Derived Status", func(t *testing.T) {
		p, err := srv.UpdateMissionProgress(ctx, 1, 11, 30)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Status != models.StatusUncompleted || p.WatchPositionSeconds != 30 {
			t.Errorf("unexpected progress %+v", p)
		}

		p, err = srv.UpdateMissionProgress(ctx, 1, 11, 60)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Status != models.StatusCompleted {
			t.Errorf("expected COMPLETED at full duration, got %s", p.Status)
		}
	})

	t.Run("Negative Position Rejected Locally", func(t *testing.T) {
		before := backend.CallCount("PUT ")
		if _, err := srv.UpdateMissionProgress(ctx, 1, 11, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if backend.CallCount("PUT ") != before {
			t.Error("expected no request for a negative position")
		}
	})

	t.Run("Deliver Then Conflict", func(t *testing.T) {
		res, err := srv.DeliverMission(ctx, 1, 11)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.ExperienceGained != 100 {
			t.Errorf("expected 100 exp, got %d", res.ExperienceGained)
		}

		_, err = srv.DeliverMission(ctx, 1, 11)
		if !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict on second delivery, got %v", err)
		}
	})
}

func TestOrderEndpoints(t *testing.T) {
	backend := tu.NewBackend(t)
	backend.AddJourney(sampleJourney())
	srv := NewAPIService(backend.URL, nil)
	ctx := context.Background()

	order, err := srv.CreateOrder(ctx, 7, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.Status != models.OrderUnpaid || !order.Covers(7) {
		t.Fatalf("unexpected order %+v", order)
	}

	t.Run("Unpaid Orders Filter", func(t *testing.T) {
		page, err := srv.UserOrders(ctx, 1, OrdersParams{Page: 1, Limit: 50, Status: models.OrderUnpaid})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Orders) != 1 {
			t.Errorf("expected 1 unpaid order, got %d", len(page.Orders))
		}
	})

	t.Run("Pay Then Conflict", func(t *testing.T) {
		paid, err := srv.PayOrder(ctx, order.OrderNumber)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if paid.Status != models.OrderPaid {
			t.Errorf("expected PAID, got %s", paid.Status)
		}

		if _, err := srv.PayOrder(ctx, order.OrderNumber); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("Purchased Journeys", func(t *testing.T) {
		list, err := srv.PurchasedJourneys(ctx, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list) != 1 || list[0].JourneyID != 7 {
			t.Errorf("unexpected purchased list %+v", list)
		}
	})

	t.Run("Create For Purchased Journey Conflicts", func(t *testing.T) {
		if _, err := srv.CreateOrder(ctx, 7, 1); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("Expired Order Is Gone", func(t *testing.T) {
		expired := &models.Order{OrderNumber: "OLD1", Status: models.OrderExpired}
		backend.AddOrder(expired)
		if _, err := srv.PayOrder(ctx, "OLD1"); !errors.Is(err, shared.ErrGone) {
			t.Errorf("expected ErrGone, got %v", err)
		}
	})

	t.Run("Missing Order Id", func(t *testing.T) {
		if _, err := srv.Order(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestAuthEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("Login Builds Session From Claims", func(t *testing.T) {
		backend := tu.NewBackend(t)
		s, err := NewAPIService(backend.URL, nil).Login(ctx, "learner", "pw")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s.UserID != 1 || s.Username != "learner" {
			t.Errorf("unexpected session %+v", s)
		}
		if time.Until(s.ExpiresAt) < 50*time.Minute {
			t.Errorf("expected expiry about an hour out, got %v", s.ExpiresAt)
		}
	})

	t.Run("Bad Credentials", func(t *testing.T) {
		backend := tu.NewBackend(t)
		_, err := NewAPIService(backend.URL, nil).Login(ctx, "someone", "pw")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Expired Token Is Refreshed Once", func(t *testing.T) {
		backend := tu.NewBackend(t)
		backend.RequireAuth = true
		backend.AddJourney(sampleJourney())

		jar, _ := cookiejar.New(nil)
		base := &http.Client{Jar: jar}
		plain := NewAPIService(backend.URL, base)

		if _, err := plain.Login(ctx, "learner", "pw"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		stale, err := NewSession(backend.Token(-time.Minute), models.UserInfo{})
		if err != nil {
			t.Fatalf("expected session, got %v", err)
		}

		var refreshed *Session
		ts := plain.TokenSource(ctx, stale, func(s *Session) { refreshed = s })
		authed := NewAPIService(backend.URL, AuthenticatedClient(base, ts))

		for range 3 {
			if _, err := authed.MissionProgress(ctx, 1, 11); err != nil {
				t.Fatalf("expected authed request to succeed, got %v", err)
			}
		}
		if backend.Refreshes() != 1 {
			t.Errorf("expected a single refresh, got %d", backend.Refreshes())
		}
		if refreshed == nil || refreshed.UserID != 1 {
			t.Errorf("expected refresh callback with session, got %+v", refreshed)
		}
	})

	t.Run("Failed Refresh Is Not Authenticated", func(t *testing.T) {
		backend := tu.NewBackend(t)
		backend.RequireAuth = true

		plain := NewAPIService(backend.URL, nil)
		stale, _ := NewSession(backend.Token(-time.Minute), models.UserInfo{})

		hooked := false
		authed := NewAPIServiceWithOpts(APIOpts{
			BaseURL:        backend.URL,
			HTTPClient:     AuthenticatedClient(nil, plain.TokenSource(ctx, stale, nil)),
			OnUnauthorized: func() { hooked = true },
		})

		_, err := authed.MissionProgress(ctx, 1, 11)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if !hooked {
			t.Error("expected unauthorized hook")
		}
	})

	t.Run("Health", func(t *testing.T) {
		backend := tu.NewBackend(t)
		h, err := NewAPIService(backend.URL, nil).Health(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !h.Up() {
			t.Errorf("expected healthy backend, got %+v", h)
		}
	})
}
