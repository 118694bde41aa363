package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/journeyx/internal/mission"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/progress"
	"github.com/desertthunder/journeyx/internal/shared"
)

// MissionView is one opened mission. Detail is nil when Locked is set.
type MissionView struct {
	engine *MissionEngine

	Journey     *models.JourneyDetail
	Summary     *models.MissionSummary
	Locked      bool
	UnpaidOrder *models.Order
	Detail      *models.MissionDetail
	Progress    models.MissionProgress
	// Controller is nil for anonymous views.
	Controller *mission.Controller

	mu      sync.Mutex
	tracker *progress.Tracker
}

// Status is the live status of the mission.
func (v *MissionView) Status() models.MissionStatus {
	if v.Controller != nil {
		return v.Controller.Status()
	}
	return v.Progress.Status
}

// Tracker returns the view's tracker, or nil before [MissionView.Track].
func (v *MissionView) Tracker() *progress.Tracker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tracker
}

// Track attaches a player and starts tracking from the stored position.
// Only missions with a video can be tracked, and only for a signed in user. A view tracks one player.
func (v *MissionView) Track(ctx context.Context, player progress.Player) (*progress.Tracker, error) {
	switch {
	case v.Locked:
		return nil, shared.ErrMissionLocked
	case v.Controller == nil:
		return nil, shared.ErrNotAuthenticated
	case v.Detail == nil:
		return nil, shared.ErrInvalidInput
	}
	if _, ok := v.Detail.Video(); !ok {
		return nil, fmt.Errorf("%w: mission %d has no video", shared.ErrInvalidInput, v.Detail.ID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tracker != nil {
		return nil, progress.ErrAlreadyStarted
	}

	e := v.engine
	t := progress.NewTracker(progress.Options{
		Player:          player,
		Reporter:        v.reporter(),
		OnComplete:      v.Controller.Complete,
		DurationSeconds: v.Detail.DurationSeconds(),
		Interval:        e.opts.Interval,
		Clock:           e.opts.Clock,
		Notify:          e.opts.Notify,
		Logger:          e.opts.Logger,
		Context:         ctx,
		UnloadTimeout:   e.opts.Timeout,
	})
	if err := t.Start(v.Progress.WatchPositionSeconds); err != nil {
		return nil, err
	}
	v.tracker = t
	return t, nil
}

// reporter writes through the controller and mirrors acknowledged positions into the local store.
func (v *MissionView) reporter() progress.Reporter {
	e := v.engine
	if e.opts.Store == nil {
		return v.Controller
	}
	return progress.ReporterFunc(func(ctx context.Context, em progress.Emission) error {
		if err := v.Controller.Report(ctx, em); err != nil {
			return err
		}
		if err := e.opts.Store.SavePosition(ctx, e.userID(), v.Controller.MissionID(), v.Controller.Position()); err != nil {
			e.logger.Warn("failed to save watch position", "err", err)
		}
		return nil
	})
}

// Deliver claims the reward of this mission.
func (v *MissionView) Deliver(ctx context.Context) (*models.DeliverResult, error) {
	if v.Controller == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return v.Controller.Deliver(ctx)
}

// Close stops tracking, flushing the current position.
func (v *MissionView) Close() {
	if t := v.Tracker(); t != nil {
		t.Unload()
	}
}
