package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/tasks"
)

type fakeCache struct {
	mu   sync.Mutex
	j    *models.JourneyDetail
	subs []func(*models.JourneyDetail)
}

func (c *fakeCache) Current() *models.JourneyDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.j
}

func (c *fakeCache) Subscribe(fn func(*models.JourneyDetail)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	return func() {}
}

func (c *fakeCache) publish(j *models.JourneyDetail) {
	c.mu.Lock()
	c.j = j
	subs := c.subs
	c.mu.Unlock()
	for _, fn := range subs {
		fn(j)
	}
}

type fakeEngine struct {
	delivered []int64
}

func (e *fakeEngine) Deliver(_ context.Context, _ chan<- tasks.ProgressUpdate, missionID int64) (*models.DeliverResult, error) {
	e.delivered = append(e.delivered, missionID)
	return &models.DeliverResult{ExperienceGained: 10}, nil
}

func (e *fakeEngine) DeliverAll(_ context.Context, prog chan<- tasks.ProgressUpdate, _ tasks.BulkDeliverOpts) (*tasks.BulkDeliverResult, error) {
	prog <- tasks.ProgressUpdate{Phase: tasks.BulkDeliver, Step: 1, Total: 1, Message: "[1/1] ✓ Setup"}
	return &tasks.BulkDeliverResult{Total: 1, Delivered: 1, Experience: 10}, nil
}

func journeyWith(status models.MissionStatus) *models.JourneyDetail {
	return &models.JourneyDetail{
		ID:    1,
		Title: "Go Basics",
		Chapters: []*models.Chapter{{Title: "Intro", Missions: []*models.MissionSummary{
			{ID: 11, Type: models.MissionArticle, Title: "Setup", Status: status},
			{ID: 12, Type: models.MissionVideo, Title: "Paid", AccessLevel: models.AccessPurchased, Locked: true},
		}}},
	}
}

func newTestModel(t *testing.T, j *models.JourneyDetail) (*Model, *fakeCache, *fakeEngine) {
	t.Helper()
	cache := &fakeCache{j: j}
	engine := &fakeEngine{}
	m := NewModel(context.Background(), cache, engine, tasks.BulkDeliverOpts{})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m.Update(snapshotMsg{journey: cache.Current()})
	return m, cache, engine
}

func press(m *Model, k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestModel(t *testing.T) {
	t.Run("lists missions with status icons", func(t *testing.T) {
		m, _, _ := newTestModel(t, journeyWith(models.StatusCompleted))
		if n := len(m.missions.Items()); n != 2 {
			t.Fatalf("items = %d, want 2", n)
		}
		view := m.View()
		for _, want := range []string{"◐ Setup", "🔒 Paid", "1/2 completed"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})

	t.Run("delivers the selected completed mission", func(t *testing.T) {
		m, _, engine := newTestModel(t, journeyWith(models.StatusCompleted))
		cmd := press(m, "enter")
		if cmd == nil {
			t.Fatal("expected a delivery command")
		}
		m.Update(cmd())
		if len(engine.delivered) != 1 || engine.delivered[0] != 11 {
			t.Errorf("delivered = %v", engine.delivered)
		}
		if !strings.Contains(m.notice, "+10 exp") {
			t.Errorf("notice = %q", m.notice)
		}
	})

	t.Run("refuses uncompleted missions", func(t *testing.T) {
		m, _, engine := newTestModel(t, journeyWith(models.StatusUncompleted))
		if cmd := press(m, "enter"); cmd != nil {
			t.Error("no command expected")
		}
		if len(engine.delivered) != 0 {
			t.Errorf("delivered = %v", engine.delivered)
		}
		if !strings.Contains(m.notice, "not completed") {
			t.Errorf("notice = %q", m.notice)
		}
	})

	t.Run("follows cache snapshots", func(t *testing.T) {
		m, cache, _ := newTestModel(t, journeyWith(models.StatusCompleted))
		wait := m.waitForSnapshot()
		cache.publish(journeyWith(models.StatusDelivered))

		msg := wait()
		if _, ok := msg.(changeMsg); !ok {
			t.Fatalf("msg = %T, want changeMsg", msg)
		}
		m.Update(msg)
		item := m.missions.Items()[0].(missionItem)
		if item.mission.Status != models.StatusDelivered {
			t.Errorf("status = %s, want DELIVERED", item.mission.Status)
		}
	})

	t.Run("delivers all after confirmation", func(t *testing.T) {
		m, _, _ := newTestModel(t, journeyWith(models.StatusCompleted))
		press(m, "a")
		if m.view != ConfirmView {
			t.Fatalf("view = %d, want ConfirmView", m.view)
		}

		cmd := press(m, "y")
		if m.view != DeliverView {
			t.Fatalf("view = %d, want DeliverView", m.view)
		}
		for cmd != nil {
			msg := cmd()
			_, cmd = m.Update(msg)
			if _, done := msg.(bulkCompleteMsg); done {
				break
			}
		}

		if m.view != ResultView {
			t.Fatalf("view = %d, want ResultView", m.view)
		}
		if view := m.View(); !strings.Contains(view, "Delivered: 1/1") {
			t.Errorf("result view:\n%s", view)
		}
	})

	t.Run("nothing to deliver", func(t *testing.T) {
		m, _, _ := newTestModel(t, journeyWith(models.StatusDelivered))
		press(m, "a")
		if m.view != MissionListView {
			t.Errorf("view = %d, want MissionListView", m.view)
		}
	})
}
