package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/desertthunder/journeyx/internal/tasks"
)

var styles = formatter.Styles

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MissionListView ViewState = iota
	ConfirmView
	DeliverView
	ResultView
)

// Snapshots is the journey cache as the TUI sees it.
type Snapshots interface {
	Current() *models.JourneyDetail
	Subscribe(fn func(*models.JourneyDetail)) (cancel func())
}

// Deliverer claims mission rewards. [tasks.MissionEngine] implements it.
type Deliverer interface {
	Deliver(ctx context.Context, prog chan<- tasks.ProgressUpdate, missionID int64) (*models.DeliverResult, error)
	DeliverAll(ctx context.Context, prog chan<- tasks.ProgressUpdate, opts tasks.BulkDeliverOpts) (*tasks.BulkDeliverResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	cache    Snapshots
	engine   Deliverer
	bulkOpts tasks.BulkDeliverOpts
	changes  chan struct{}
	unsub    func()
	journey  *models.JourneyDetail
	missions list.Model
	width    int
	height   int
	notice   string
	progChan chan tasks.ProgressUpdate
	doneChan chan bulkCompleteMsg
	progress tasks.ProgressUpdate
	result   *tasks.BulkDeliverResult
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI over an already loaded journey cache. Call [Model.Close] when the program exits.
func NewModel(ctx context.Context, cache Snapshots, engine Deliverer, opts tasks.BulkDeliverOpts) *Model {
	m := &Model{
		ctx:      ctx,
		view:     MissionListView,
		cache:    cache,
		engine:   engine,
		bulkOpts: opts,
		changes:  make(chan struct{}, 1),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.missions = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.missions.SetShowHelp(false)
	m.unsub = cache.Subscribe(func(*models.JourneyDetail) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Close stops listening to the cache.
func (m *Model) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Init shows the current snapshot and starts listening for changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.currentSnapshot(), m.waitForSnapshot())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.missions.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MissionListView:
			return m.handleListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DeliverView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case snapshotMsg:
		m.setJourney(msg.journey)
		return m, nil

	case changeMsg:
		m.setJourney(m.cache.Current())
		return m, m.waitForSnapshot()

	case deliveredMsg:
		switch {
		case msg.err != nil:
			m.notice = styles.Err.Render(fmt.Sprintf("Mission %d: %v", msg.missionID, msg.err))
		default:
			m.notice = formatter.RenderDeliverResult(msg.missionID, msg.result)
		}
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case bulkCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progChan = nil
		m.doneChan = nil
		return m, nil
	}

	var cmd tea.Cmd
	if m.view == MissionListView {
		m.missions, cmd = m.missions.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MissionListView:
		return m.renderList()
	case ConfirmView:
		return m.renderConfirm()
	case DeliverView:
		return m.renderDeliver()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// setJourney replaces the list items, keeping the cursor where it was.
func (m *Model) setJourney(j *models.JourneyDetail) {
	if j == nil {
		return
	}
	idx := m.missions.Index()
	m.journey = j
	m.missions.Title = j.Title
	m.missions.SetItems(missionItems(j))
	if n := len(m.missions.Items()); idx < n {
		m.missions.Select(idx)
	}
}

func (m *Model) selected() (missionItem, bool) {
	item, ok := m.missions.SelectedItem().(missionItem)
	return item, ok
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.missions.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.missions, cmd = m.missions.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.deliver):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !item.deliverable() {
			m.notice = styles.Warn.Render(notDeliverable(item.mission))
			return m, nil
		}
		m.notice = styles.Help.Render(fmt.Sprintf("Delivering %s...", item.mission.Title))
		return m, m.deliver(item.mission.ID)
	case key.Matches(msg, m.keys.all):
		if m.countDeliverable() == 0 {
			m.notice = styles.Warn.Render("Nothing to deliver")
			return m, nil
		}
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.missions, cmd = m.missions.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		m.view = MissionListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = DeliverView
		return m, m.startBulk()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = MissionListView
		m.result = nil
		m.err = nil
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) countDeliverable() int {
	n := 0
	for _, it := range m.missions.Items() {
		if item, ok := it.(missionItem); ok && item.deliverable() {
			n++
		}
	}
	return n
}

func (m *Model) currentSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{journey: m.cache.Current()}
	}
}

func (m *Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changeMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) deliver(missionID int64) tea.Cmd {
	return func() tea.Msg {
		res, err := m.engine.Deliver(m.ctx, nil, missionID)
		return deliveredMsg{missionID: missionID, result: res, err: err}
	}
}

func (m *Model) startBulk() tea.Cmd {
	m.progChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan bulkCompleteMsg, 1)
	prog, done := m.progChan, m.doneChan

	go func() {
		result, err := m.engine.DeliverAll(m.ctx, prog, m.bulkOpts)
		close(prog)
		done <- bulkCompleteMsg{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog, done := m.progChan, m.doneChan
	return func() tea.Msg {
		if prog == nil {
			return bulkCompleteMsg{err: errors.New("no delivery running")}
		}
		update, ok := <-prog
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderList() string {
	var b strings.Builder
	b.WriteString(m.missions.View())
	if m.journey != nil {
		b.WriteString("\n" + formatter.Summary(m.journey))
	}
	if m.notice != "" {
		b.WriteString("\n" + m.notice)
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.Title.Render(fmt.Sprintf("Deliver %d completed missions?", m.countDeliverable()))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n\n%s", title, helpView)
}

func (m *Model) renderDeliver() string {
	title := styles.Title.Render("Delivering missions")
	phase := "Starting..."
	if m.progress.Total > 0 {
		phase = fmt.Sprintf("Delivered %d/%d", m.progress.Step, m.progress.Total)
	}
	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	if m.err != nil {
		return styles.Err.Render(fmt.Sprintf("Delivery failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.Err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.OK.Render("✓ Delivery Complete!")
	info := fmt.Sprintf("\nDelivered: %d/%d\nExperience gained: %d", m.result.Delivered, m.result.Total, m.result.Experience)

	var failed string
	if m.result.Failed > 0 {
		failed = "\n\n" + styles.Warn.Render(fmt.Sprintf("Failed to deliver %d missions:", m.result.Failed))
		for _, r := range m.result.Results {
			if r.Error != nil {
				failed += fmt.Sprintf("\n  • %s: %v", r.Title, r.Error)
			}
		}
	}
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}

func notDeliverable(m *models.MissionSummary) string {
	switch {
	case m.Locked:
		return fmt.Sprintf("%s requires purchase", m.Title)
	case m.Status == models.StatusDelivered:
		return fmt.Sprintf("%s was already delivered", m.Title)
	default:
		return fmt.Sprintf("%s is not completed yet (%s)", m.Title, shared.ErrNotCompleted)
	}
}
