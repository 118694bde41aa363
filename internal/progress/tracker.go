package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/shared"
)

// DefaultInterval is the heartbeat period while playing.
const DefaultInterval = 10 * time.Second

// DefaultUnloadTimeout bounds the final report made by [Tracker.Unload].
const DefaultUnloadTimeout = 5 * time.Second

var ErrAlreadyStarted = errors.New("tracker already started")

// Player is the video playback surface.
type Player interface {
	CurrentTime() float64 // seconds, fractional
	SeekTo(seconds float64)
}

// Reason tags why an emission happened.
type Reason int

const (
	Heartbeat Reason = iota
	Pause
	Unload
	Completion
)

func (r Reason) String() string {
	switch r {
	case Heartbeat:
		return "heartbeat"
	case Pause:
		return "pause"
	case Unload:
		return "unload"
	case Completion:
		return "completion"
	default:
		return ""
	}
}

// Emission is one progress report.
type Emission struct {
	Seconds int
	Reason  Reason
}

// Reporter receives emissions. Errors are logged by the tracker and never retried.
type Reporter interface {
	Report(ctx context.Context, e Emission) error
}

// ReporterFunc adapts a function to [Reporter].
type ReporterFunc func(ctx context.Context, e Emission) error

func (f ReporterFunc) Report(ctx context.Context, e Emission) error { return f(ctx, e) }

// State is the tracker lifecycle.
type State int

const (
	Idle State = iota
	Tracking
	Completed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Completed:
		return "completed"
	case Closed:
		return "closed"
	default:
		return ""
	}
}

// Options configures a [Tracker].
type Options struct {
	Player   Player
	Reporter Reporter
	// OnComplete runs at most once per tracker, before the completion emission is sent.
	OnComplete func()
	// DurationSeconds is the full video length. Zero disables completion detection.
	DurationSeconds int
	Interval        time.Duration
	Clock           Clock
	// Notify shows a message to the user. Used for player errors.
	Notify func(msg string)
	Logger *log.Logger
	// Context bounds every emission. Defaults to [context.Background].
	// Its cancellation does not stop the unload report, which is bounded by UnloadTimeout instead.
	Context       context.Context
	UnloadTimeout time.Duration
}

// Tracker turns playback events into bounded-frequency progress reports for one mission view.
//
// At most one heartbeat timer exists at a time. Every stop bumps the generation so a tick that was
// already in flight when the timer was replaced or stopped does not emit.
type Tracker struct {
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	state     State
	started   bool
	completed bool
	gen       uint64
	ticker    Ticker
	done      chan struct{}

	// emitMu keeps emissions in event order.
	emitMu sync.Mutex
}

// NewTracker creates an idle tracker.
func NewTracker(opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.UnloadTimeout <= 0 {
		opts.UnloadTimeout = DefaultUnloadTimeout
	}
	if opts.DurationSeconds < 0 {
		opts.DurationSeconds = 0
	}
	return &Tracker{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "tracker")}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start seeks the player to the stored position. It may be called once.
func (t *Tracker) Start(initialSeconds int) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if initialSeconds < 0 {
		initialSeconds = 0
	}
	if t.opts.Player != nil {
		t.opts.Player.SeekTo(float64(initialSeconds))
	}
	return nil
}

// Play starts the heartbeat, replacing any running timer.
func (t *Tracker) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Closed {
		return
	}

	t.stopLocked()
	t.ticker = t.opts.Clock.NewTicker(t.opts.Interval)
	t.done = make(chan struct{})
	t.state = Tracking
	go t.loop(t.ticker, t.done, t.gen)
}

// Pause stops the heartbeat and reports the current position.
func (t *Tracker) Pause() {
	t.mu.Lock()
	if t.state == Closed {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	if t.state == Tracking {
		t.state = Idle
	}
	t.mu.Unlock()

	t.emitPosition(Pause)
}

// Unload makes one last best-effort report and closes the tracker. Later events are ignored.
func (t *Tracker) Unload() {
	t.mu.Lock()
	if t.state == Closed {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.state = Closed
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.opts.Context), t.opts.UnloadTimeout)
	defer cancel()
	t.emitPositionContext(ctx, Unload)
}

// End handles the natural end of the video. OnComplete is called once and the full duration is
// reported; repeated ends only stop the timer. Without a known duration it behaves like [Tracker.Pause].
func (t *Tracker) End() {
	t.mu.Lock()
	if t.state == Closed {
		t.mu.Unlock()
		return
	}
	t.stopLocked()

	if t.opts.DurationSeconds == 0 {
		if t.state == Tracking {
			t.state = Idle
		}
		t.mu.Unlock()
		t.emitPosition(Pause)
		return
	}

	t.state = Completed
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.mu.Unlock()

	if t.opts.OnComplete != nil {
		t.opts.OnComplete()
	}
	t.emit(Emission{Seconds: t.opts.DurationSeconds, Reason: Completion})
}

// ReportPlayerError shows a notice for a playback failure. Tracked state is left alone.
func (t *Tracker) ReportPlayerError(err error) {
	if err == nil {
		return
	}
	t.logger.Warn("player error", "err", err)
	if t.opts.Notify != nil {
		t.opts.Notify("Video unavailable: " + err.Error())
	}
}

// Close stops the heartbeat without reporting.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.state = Closed
}

func (t *Tracker) stopLocked() {
	t.gen++
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *Tracker) loop(ticker Ticker, done <-chan struct{}, gen uint64) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			t.tick(gen)
		}
	}
}

func (t *Tracker) tick(gen uint64) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	current := t.gen == gen && t.state == Tracking
	t.mu.Unlock()
	if !current {
		return
	}

	if secs := t.sample(); secs > 0 {
		t.report(t.opts.Context, Emission{Seconds: secs, Reason: Heartbeat})
	}
}

func (t *Tracker) sample() int {
	if t.opts.Player == nil {
		return 0
	}
	return shared.FloorSeconds(t.opts.Player.CurrentTime())
}

func (t *Tracker) emitPosition(reason Reason) {
	t.emitPositionContext(t.opts.Context, reason)
}

func (t *Tracker) emitPositionContext(ctx context.Context, reason Reason) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if secs := t.sample(); secs > 0 {
		t.report(ctx, Emission{Seconds: secs, Reason: reason})
	}
}

func (t *Tracker) emit(e Emission) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.report(t.opts.Context, e)
}

func (t *Tracker) report(ctx context.Context, e Emission) {
	if t.opts.Reporter == nil {
		return
	}
	if err := t.opts.Reporter.Report(ctx, e); err != nil {
		t.logger.Warn("progress report dropped", "reason", e.Reason, "seconds", e.Seconds, "err", err)
		return
	}
	t.logger.Debug("progress reported", "reason", e.Reason, "seconds", e.Seconds)
}
