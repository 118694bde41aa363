package mission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/progress"
	"github.com/desertthunder/journeyx/internal/shared"
)

// ProgressAPI reads and writes watch progress on the backend.
type ProgressAPI interface {
	MissionProgress(ctx context.Context, userID, missionID int64) (models.MissionProgress, error)
	UpdateMissionProgress(ctx context.Context, userID, missionID int64, seconds int) (models.MissionProgress, error)
}

// ControllerOpts configures a [Controller].
type ControllerOpts struct {
	Machine   *Machine
	API       ProgressAPI
	MissionID int64
	// Timeout bounds each progress write. Zero leaves the caller's context alone.
	Timeout time.Duration
	Notify  func(msg string)
	Logger  *log.Logger
}

// Controller connects a mission view's tracker to the backend and the [Machine].
//
// It is the tracker's [progress.Reporter] and completion handler.
type Controller struct {
	machine   *Machine
	api       ProgressAPI
	missionID int64
	timeout   time.Duration
	notify    func(string)
	logger    *log.Logger

	mu         sync.Mutex
	position   int
	doneAtLoad bool
	notified   bool
}

var _ progress.Reporter = (*Controller)(nil)

// NewController creates a controller for one mission.
func NewController(opts ControllerOpts) *Controller {
	return &Controller{
		machine:   opts.Machine,
		api:       opts.API,
		missionID: opts.MissionID,
		timeout:   opts.Timeout,
		notify:    opts.Notify,
		logger:    shared.WithLogger(opts.Logger, "component", "controller", "mission", opts.MissionID),
	}
}

// MissionID returns the controlled mission.
func (c *Controller) MissionID() int64 { return c.missionID }

// Load reads the stored progress and feeds its status to the machine.
// A mission without progress yields the default (UNCOMPLETED at 0).
func (c *Controller) Load(ctx context.Context) (models.MissionProgress, error) {
	p, err := c.api.MissionProgress(ctx, c.machine.UserID(), c.missionID)
	if err != nil {
		return models.MissionProgress{}, fmt.Errorf("failed to load progress for mission %d: %w", c.missionID, err)
	}
	c.machine.Observe(c.missionID, p.Status)

	c.mu.Lock()
	c.position = p.WatchPositionSeconds
	c.doneAtLoad = c.machine.Status(c.missionID).Done()
	c.mu.Unlock()

	p.Status = models.MaxStatus(p.Status, c.machine.Status(c.missionID))
	return p, nil
}

// Report writes a watch position and observes the status the backend derives from it.
func (c *Controller) Report(ctx context.Context, e progress.Emission) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	p, err := c.api.UpdateMissionProgress(ctx, c.machine.UserID(), c.missionID, e.Seconds)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.position = p.WatchPositionSeconds
	c.mu.Unlock()

	c.machine.Observe(c.missionID, p.Status)
	return nil
}

// Complete handles the end of the video: a provisional COMPLETED and a single notice.
// No notice is shown for missions that were already done when the view loaded.
func (c *Controller) Complete() {
	c.machine.MarkCompleted(c.missionID)

	c.mu.Lock()
	first := !c.notified && !c.doneAtLoad
	c.notified = true
	c.mu.Unlock()
	if !first {
		return
	}

	c.logger.Info("video completed")
	if c.notify != nil {
		c.notify("Video finished. Deliver the mission to claim your reward.")
	}
}

// Deliver claims the mission reward through the machine.
func (c *Controller) Deliver(ctx context.Context) (*models.DeliverResult, error) {
	return c.machine.Deliver(ctx, c.missionID)
}

// Status is the machine's status for the mission.
func (c *Controller) Status() models.MissionStatus {
	return c.machine.Status(c.missionID)
}

// Position is the last watch position acknowledged by the backend.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}
