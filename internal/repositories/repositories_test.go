package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestSessionRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		s := &StoredSession{UserID: 1, Username: "learner", AccessToken: "tok"}
		if err := repo.Create(s); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if s.ID == "" || s.Sequence != 1 {
			t.Errorf("expected id and sequence 1, got %q and %d", s.ID, s.Sequence)
		}
	})

	t.Run("Active Is Newest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		_ = repo.Create(&StoredSession{UserID: 1, Username: "learner", AccessToken: "old"})
		_ = repo.Create(&StoredSession{UserID: 1, Username: "learner", AccessToken: "new", ExpiresAt: &exp})

		active, err := repo.Active()
		if err != nil {
			t.Fatalf("failed to get active session: %v", err)
		}
		if active.AccessToken != "new" {
			t.Errorf("expected newest session, got %q", active.AccessToken)
		}
		if active.ExpiresAt == nil || !active.ExpiresAt.Equal(exp) {
			t.Errorf("expected expiry %v, got %v", exp, active.ExpiresAt)
		}
		if active.Expired(time.Now()) {
			t.Error("expected session to be live")
		}
	})

	t.Run("UpdateToken", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		s := &StoredSession{UserID: 1, Username: "learner", AccessToken: "old"}
		_ = repo.Create(s)

		if err := repo.UpdateToken(s.ID, "fresh", nil); err != nil {
			t.Fatalf("failed to update token: %v", err)
		}
		active, _ := repo.Active()
		if active.AccessToken != "fresh" {
			t.Errorf("expected refreshed token, got %q", active.AccessToken)
		}
		if err := repo.UpdateToken("missing", "x", nil); err == nil {
			t.Error("expected error for unknown session")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		s := &StoredSession{UserID: 1, Username: "learner", AccessToken: "tok"}
		_ = repo.Create(s)

		if err := repo.Delete(s.ID); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if _, err := repo.Active(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if err := repo.Delete(s.ID); err == nil {
			t.Error("expected error deleting twice")
		}
	})

	t.Run("DeleteAll And List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		_ = repo.Create(&StoredSession{UserID: 1, Username: "a", AccessToken: "1"})
		_ = repo.Create(&StoredSession{UserID: 2, Username: "b", AccessToken: "2"})

		list, err := repo.List()
		if err != nil || len(list) != 2 || list[0].Username != "b" {
			t.Fatalf("expected 2 sessions newest first, got %v (%v)", list, err)
		}

		if err := repo.DeleteAll(); err != nil {
			t.Fatalf("failed to delete sessions: %v", err)
		}
		if list, _ := repo.List(); len(list) != 0 {
			t.Errorf("expected no sessions, got %d", len(list))
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewSessionRepository(db).Create(&StoredSession{UserID: 1}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestProgressRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Status Only Moves Forward", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewProgressRepository(db)
		steps := []models.MissionStatus{
			models.StatusCompleted,
			models.StatusUncompleted,
			models.StatusDelivered,
			models.StatusCompleted,
		}
		for _, s := range steps {
			if err := repo.SaveStatus(ctx, 1, 11, s); err != nil {
				t.Fatalf("failed to save %s: %v", s, err)
			}
		}

		p, err := repo.Get(ctx, 1, 11)
		if err != nil {
			t.Fatalf("failed to get progress: %v", err)
		}
		if p.Status != models.StatusDelivered {
			t.Errorf("expected DELIVERED, got %s", p.Status)
		}
	})

	t.Run("Position", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewProgressRepository(db)
		_ = repo.SaveStatus(ctx, 1, 11, models.StatusCompleted)
		if err := repo.SavePosition(ctx, 1, 11, 42); err != nil {
			t.Fatalf("failed to save position: %v", err)
		}

		p, _ := repo.Get(ctx, 1, 11)
		if p.WatchPositionSeconds != 42 || p.Status != models.StatusCompleted {
			t.Errorf("unexpected progress %+v", p)
		}
		if err := repo.SavePosition(ctx, 1, 11, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Statuses Per User", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewProgressRepository(db)
		_ = repo.SaveStatus(ctx, 1, 11, models.StatusCompleted)
		_ = repo.SaveStatus(ctx, 1, 12, models.StatusDelivered)
		_ = repo.SaveStatus(ctx, 2, 11, models.StatusDelivered)

		got, err := repo.Statuses(ctx, 1)
		if err != nil {
			t.Fatalf("failed to list statuses: %v", err)
		}
		if len(got) != 2 || got[11] != models.StatusCompleted || got[12] != models.StatusDelivered {
			t.Errorf("unexpected statuses %v", got)
		}

		if err := repo.Clear(ctx, 1); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if got, _ := repo.Statuses(ctx, 1); len(got) != 0 {
			t.Errorf("expected user 1 cleared, got %v", got)
		}
		if got, _ := repo.Statuses(ctx, 2); len(got) != 1 {
			t.Errorf("expected user 2 untouched, got %v", got)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewProgressRepository(db)
		if _, err := repo.Get(ctx, 1, 99); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.SaveStatus(ctx, 1, 11, models.StatusUnknown); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "sessions")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nope"); err == nil {
		t.Error("expected error for a table without sequence")
	}
}
