package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tu "github.com/desertthunder/journeyx/internal/testing"
)

type recorder struct {
	mu    sync.Mutex
	got   []Emission
	fail  error
	calls int
}

func (r *recorder) Report(_ context.Context, e Emission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) emissions() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emission(nil), r.got...)
}

type manualClock struct {
	mu      sync.Mutex
	tickers []*tu.ManualTicker
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := tu.NewManualTicker()
	c.tickers = append(c.tickers, tk)
	return tk
}

func (c *manualClock) latest() *tu.ManualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

func newTestTracker(duration int) (*Tracker, *tu.FakePlayer, *recorder, *manualClock, *int) {
	player := &tu.FakePlayer{}
	rec := &recorder{}
	clock := &manualClock{}
	completions := 0
	tr := NewTracker(Options{
		Player:          player,
		Reporter:        rec,
		DurationSeconds: duration,
		Clock:           clock,
		OnComplete:      func() { completions++ },
	})
	return tr, player, rec, clock, &completions
}

func TestTracker(t *testing.T) {
	t.Run("Start Seeks Once", func(t *testing.T) {
		tr, player, _, _, _ := newTestTracker(60)

		if err := tr.Start(42); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := tr.Start(10); !errors.Is(err, ErrAlreadyStarted) {
			t.Errorf("expected ErrAlreadyStarted, got %v", err)
		}
		if seeks := player.Seeks(); len(seeks) != 1 || seeks[0] != 42 {
			t.Errorf("expected a single seek to 42, got %v", seeks)
		}
	})

	t.Run("Heartbeat Floors Position", func(t *testing.T) {
		tr, player, rec, clock, _ := newTestTracker(60)
		player.SetPosition(12.97)

		tr.Play()
		clock.latest().Tick()

		tu.Eventually(t, time.Second, func() bool { return len(rec.emissions()) == 1 }, "heartbeat emitted")
		if got := rec.emissions()[0]; got.Seconds != 12 || got.Reason != Heartbeat {
			t.Errorf("expected heartbeat at 12, got %+v", got)
		}
		tr.Close()
	})

	t.Run("Heartbeat Skips Zero Position", func(t *testing.T) {
		tr, _, rec, clock, _ := newTestTracker(60)

		tr.Play()
		clock.latest().Tick()
		clock.latest().Tick()
		tr.Pause()

		if n := len(rec.emissions()); n != 0 {
			t.Errorf("expected no emissions at position 0, got %d", n)
		}
	})

	t.Run("Second Play Replaces Timer", func(t *testing.T) {
		tr, player, rec, clock, _ := newTestTracker(60)
		player.SetPosition(5)

		tr.Play()
		first := clock.latest()
		tr.Play()
		second := clock.latest()

		if first == second {
			t.Fatal("expected a new ticker on second play")
		}
		if !first.Stopped() {
			t.Error("expected first ticker to be stopped")
		}

		first.Tick()
		second.Tick()
		tu.Eventually(t, time.Second, func() bool { return len(rec.emissions()) >= 1 }, "heartbeat emitted")
		time.Sleep(20 * time.Millisecond)

		if n := len(rec.emissions()); n != 1 {
			t.Errorf("expected exactly one emission per interval, got %d", n)
		}
		tr.Close()
	})

	t.Run("Pause Stops Timer And Reports", func(t *testing.T) {
		tr, player, rec, clock, _ := newTestTracker(60)
		player.SetPosition(33.4)

		tr.Play()
		tk := clock.latest()
		tr.Pause()

		if !tk.Stopped() {
			t.Error("expected ticker to be stopped on pause")
		}
		if tr.State() != Idle {
			t.Errorf("expected idle, got %s", tr.State())
		}
		got := rec.emissions()
		if len(got) != 1 || got[0] != (Emission{Seconds: 33, Reason: Pause}) {
			t.Errorf("expected pause emission at 33, got %+v", got)
		}

		tk.Tick()
		time.Sleep(20 * time.Millisecond)
		if n := len(rec.emissions()); n != 1 {
			t.Errorf("expected stale tick to be ignored, got %d emissions", n)
		}
	})

	t.Run("End Completes Exactly Once", func(t *testing.T) {
		tr, player, rec, _, completions := newTestTracker(90)
		player.SetPosition(89.6)

		tr.Play()
		for range 3 {
			tr.End()
		}

		got := rec.emissions()
		if len(got) != 1 || got[0] != (Emission{Seconds: 90, Reason: Completion}) {
			t.Errorf("expected one completion emission of the full duration, got %+v", got)
		}
		if *completions != 1 {
			t.Errorf("expected one completion, got %d", *completions)
		}
		if tr.State() != Completed {
			t.Errorf("expected completed, got %s", tr.State())
		}
	})

	t.Run("Replay After End Does Not Complete Again", func(t *testing.T) {
		tr, player, rec, clock, completions := newTestTracker(90)

		tr.End()
		player.SetPosition(10)
		tr.Play()
		clock.latest().Tick()
		tu.Eventually(t, time.Second, func() bool { return len(rec.emissions()) == 2 }, "heartbeat after replay")
		tr.End()

		if *completions != 1 {
			t.Errorf("expected one completion across replays, got %d", *completions)
		}
	})

	t.Run("Zero Duration Disables Completion", func(t *testing.T) {
		tr, player, rec, _, completions := newTestTracker(0)
		player.SetPosition(14.2)

		tr.Play()
		tr.End()

		if *completions != 0 {
			t.Errorf("expected no completion, got %d", *completions)
		}
		got := rec.emissions()
		if len(got) != 1 || got[0] != (Emission{Seconds: 14, Reason: Pause}) {
			t.Errorf("expected end to flush like pause, got %+v", got)
		}
	})

	t.Run("Unload Reports Once And Closes", func(t *testing.T) {
		tr, player, rec, _, completions := newTestTracker(60)
		player.SetPosition(21.9)

		tr.Play()
		tr.Unload()
		tr.Unload()
		tr.Play()
		tr.End()

		got := rec.emissions()
		if len(got) != 1 || got[0] != (Emission{Seconds: 21, Reason: Unload}) {
			t.Errorf("expected one unload emission, got %+v", got)
		}
		if *completions != 0 {
			t.Error("expected events after unload to be ignored")
		}
		if tr.State() != Closed {
			t.Errorf("expected closed, got %s", tr.State())
		}
	})

	t.Run("Report Failures Are Swallowed", func(t *testing.T) {
		tr, player, rec, _, completions := newTestTracker(60)
		rec.fail = errors.New("offline")
		player.SetPosition(30)

		tr.Pause()
		tr.End()

		if rec.calls != 2 {
			t.Errorf("expected both reports attempted, got %d", rec.calls)
		}
		if *completions != 1 {
			t.Error("expected completion to fire even when the report fails")
		}
	})

	t.Run("Unload Survives A Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		player := &tu.FakePlayer{}
		var gotErr error
		rec := ReporterFunc(func(ctx context.Context, e Emission) error {
			gotErr = ctx.Err()
			return gotErr
		})
		tr := NewTracker(Options{Player: player, Reporter: rec, Clock: &manualClock{}, Context: ctx})
		player.SetPosition(77.4)

		tr.Play()
		cancel()
		tr.Unload()

		if gotErr != nil {
			t.Errorf("expected a live context for the unload report, got %v", gotErr)
		}
	})

	t.Run("Completion Does Not Wait For The Report", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		var completed atomic.Bool
		tr := NewTracker(Options{
			Player:          &tu.FakePlayer{},
			Reporter:        ReporterFunc(func(context.Context, Emission) error { <-release; return nil }),
			DurationSeconds: 60,
			Clock:           &manualClock{},
			OnComplete:      func() { completed.Store(true) },
		})

		tr.Play()
		go tr.End()

		tu.Eventually(t, time.Second, completed.Load, "completion signalled while the report is in flight")
		if tr.State() != Completed {
			t.Errorf("expected completed, got %s", tr.State())
		}
	})

	t.Run("Player Error Notifies Without State Change", func(t *testing.T) {
		var notices []string
		tr := NewTracker(Options{Player: &tu.FakePlayer{}, Clock: &manualClock{}, Notify: func(m string) { notices = append(notices, m) }})
		tr.Play()
		tr.ReportPlayerError(errors.New("embedding blocked"))

		if len(notices) != 1 {
			t.Errorf("expected one notice, got %v", notices)
		}
		if tr.State() != Tracking {
			t.Errorf("expected tracking, got %s", tr.State())
		}
		tr.Close()
	})
}

func TestReasonString(t *testing.T) {
	for r, want := range map[Reason]string{Heartbeat: "heartbeat", Pause: "pause", Unload: "unload", Completion: "completion"} {
		if r.String() != want {
			t.Errorf("expected %s, got %s", want, r.String())
		}
	}
}
