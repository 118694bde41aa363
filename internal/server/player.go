package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/progress"
	"github.com/desertthunder/journeyx/internal/shared"
)

var _ progress.Player = (*BridgePlayer)(nil)
var _ Handler = (*PlayerHandler)(nil)

// BridgePlayer is a [progress.Player] whose position is pushed by a remote page.
// Seeks requested by the tracker are held until the page collects them.
type BridgePlayer struct {
	mu       sync.Mutex
	position float64
	seek     *float64
}

func (p *BridgePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *BridgePlayer) SeekTo(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	p.seek = &seconds
}

// SetPosition records the position the page reported.
func (p *BridgePlayer) SetPosition(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
}

// PendingSeek returns the last requested seek without clearing it.
func (p *BridgePlayer) PendingSeek() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seek == nil {
		return 0, false
	}
	return *p.seek, true
}

// TakeSeek returns and clears the pending seek.
func (p *BridgePlayer) TakeSeek() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seek == nil {
		return 0, false
	}
	s := *p.seek
	p.seek = nil
	return s, true
}

// PlayerEvent is the body of POST /player/events.
type PlayerEvent struct {
	Event    string  `json:"event"`
	Position float64 `json:"position"`
	Message  string  `json:"message,omitempty"`
}

// PlayerState is the body of GET /player/state.
type PlayerState struct {
	MissionID int64                `json:"missionId"`
	Tracker   string               `json:"tracker"`
	Status    models.MissionStatus `json:"status"`
	Locked    bool                 `json:"locked"`
	Position  float64              `json:"position"`
	Seek      *float64             `json:"seek,omitempty"`
}

// PlayerHandlerOpts configures a [PlayerHandler].
type PlayerHandlerOpts struct {
	MissionID int64
	// Tracker is nil when the mission is locked or the user is anonymous.
	Tracker *progress.Tracker
	Player  *BridgePlayer
	Status  func() models.MissionStatus
	Locked  bool
	// Events receives every accepted event. Sends never block.
	Events chan<- PlayerEvent
	Logger *log.Logger
}

// PlayerHandler relays playback events from a browser page to a mission's tracker.
type PlayerHandler struct {
	opts   PlayerHandlerOpts
	mux    *http.ServeMux
	logger *log.Logger
}

// NewPlayerHandler creates the handler. A nil Player is replaced with a fresh [BridgePlayer].
func NewPlayerHandler(opts PlayerHandlerOpts) *PlayerHandler {
	if opts.Player == nil {
		opts.Player = &BridgePlayer{}
	}
	h := &PlayerHandler{
		opts:   opts,
		mux:    http.NewServeMux(),
		logger: shared.WithLogger(opts.Logger, "component", "player", "mission", opts.MissionID),
	}
	h.mux.HandleFunc("POST /player/events", h.handleEvent)
	h.mux.HandleFunc("GET /player/state", h.handleState)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h
}

// Player returns the bridged player.
func (h *PlayerHandler) Player() *BridgePlayer { return h.opts.Player }

// Routes implements [Handler].
func (h *PlayerHandler) Routes() []string {
	return []string{"POST /player/events", "GET /player/state", "GET /healthz"}
}

// ServeHTTP implements [http.Handler].
func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *PlayerHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	if h.opts.Locked {
		writeError(w, http.StatusForbidden, shared.ErrMissionLocked)
		return
	}
	if h.opts.Tracker == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("%w: nothing is being tracked", shared.ErrNotAuthenticated))
		return
	}

	var ev PlayerEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err))
		return
	}
	if err := h.apply(ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if h.opts.Events != nil {
		select {
		case h.opts.Events <- ev:
		default:
		}
	}
	h.writeState(w)
}

// apply forwards one event to the player and tracker.
func (h *PlayerHandler) apply(ev PlayerEvent) error {
	t := h.opts.Tracker
	p := h.opts.Player
	switch ev.Event {
	case "play":
		p.SetPosition(ev.Position)
		t.Play()
	case "pause":
		p.SetPosition(ev.Position)
		t.Pause()
	case "end":
		p.SetPosition(ev.Position)
		t.End()
	case "unload":
		p.SetPosition(ev.Position)
		t.Unload()
	case "position":
		p.SetPosition(ev.Position)
	case "error":
		msg := ev.Message
		if msg == "" {
			msg = "playback failed"
		}
		t.ReportPlayerError(errors.New(msg))
	default:
		return fmt.Errorf("%w: unknown event %q", shared.ErrInvalidArgument, ev.Event)
	}
	h.logger.Debug("player event", "event", ev.Event, "position", ev.Position)
	return nil
}

func (h *PlayerHandler) handleState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w)
}

func (h *PlayerHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// State reports what the page needs to render.
func (h *PlayerHandler) State() PlayerState {
	state := PlayerState{
		MissionID: h.opts.MissionID,
		Tracker:   "none",
		Locked:    h.opts.Locked,
		Position:  h.opts.Player.CurrentTime(),
	}
	if h.opts.Tracker != nil {
		state.Tracker = h.opts.Tracker.State().String()
	}
	if h.opts.Status != nil {
		state.Status = h.opts.Status()
	}
	if s, ok := h.opts.Player.PendingSeek(); ok {
		state.Seek = &s
	}
	return state
}

// writeState answers with the current state and hands over any pending seek once.
func (h *PlayerHandler) writeState(w http.ResponseWriter) {
	state := h.State()
	if state.Seek != nil {
		h.opts.Player.TakeSeek()
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
