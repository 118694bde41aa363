package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/journey"
	"github.com/desertthunder/journeyx/internal/mission"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/progress"
	"github.com/desertthunder/journeyx/internal/purchase"
	"github.com/desertthunder/journeyx/internal/shared"
)

// Engine defines the mission operations driven by the CLI and the player bridge.
type Engine interface {
	// Open resolves a mission inside its journey. Locked missions come back without content.
	Open(ctx context.Context, progress chan<- ProgressUpdate, journeyRef string, missionID int64) (*MissionView, error)

	// Deliver claims the reward of a completed mission.
	Deliver(ctx context.Context, progress chan<- ProgressUpdate, missionID int64) (*models.DeliverResult, error)

	// Checkout creates an order for a journey and pays it.
	Checkout(ctx context.Context, progress chan<- ProgressUpdate, journeyID int64) (*CheckoutResult, error)

	// DeliverAll claims every completed, undelivered mission of the loaded journey.
	DeliverAll(ctx context.Context, progress chan<- ProgressUpdate, opts BulkDeliverOpts) (*BulkDeliverResult, error)
}

// ContentAPI is the backend surface the engine reads mission content and progress from.
type ContentAPI interface {
	MissionDetail(ctx context.Context, journeyID, missionID int64) (*models.MissionDetail, error)
	mission.ProgressAPI
}

// StatusStore is the local record of mission statuses and watch positions.
type StatusStore interface {
	Statuses(ctx context.Context, userID int64) (map[int64]models.MissionStatus, error)
	SavePosition(ctx context.Context, userID, missionID int64, seconds int) error
}

// EngineOpts wires a [MissionEngine]. Gate, Checkout and Store are optional.
type EngineOpts struct {
	API      ContentAPI
	Cache    *journey.Cache
	Gate     *purchase.Gate
	Machine  *mission.Machine
	Checkout *purchase.Checkout
	Store    StatusStore

	// Interval is the heartbeat period of trackers built by views.
	Interval time.Duration
	Clock    progress.Clock
	// Timeout bounds each progress write.
	Timeout time.Duration
	Notify  func(msg string)
	Logger  *log.Logger
}

// MissionEngine implements [Engine] on top of the journey cache, the purchase gate and the mission machine.
type MissionEngine struct {
	opts   EngineOpts
	logger *log.Logger
}

// CheckoutResult is the outcome of [MissionEngine.Checkout].
type CheckoutResult struct {
	Order            *models.Order
	AlreadyPurchased bool
	AlreadyPaid      bool
}

// NewMissionEngine creates an engine from its collaborators.
func NewMissionEngine(opts EngineOpts) *MissionEngine {
	return &MissionEngine{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "engine")}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *MissionEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *MissionEngine) userID() int64 {
	if e.opts.Machine == nil {
		return 0
	}
	return e.opts.Machine.UserID()
}

// Open loads the journey, decides access and, only when access is granted, fetches the mission content
// and its progress.
//
// The purchase decision is made before any content request: a locked mission returns a view with Locked
// set, its unpaid order if any, and no detail. Missions above PUBLIC need a signed in user.
func (e *MissionEngine) Open(ctx context.Context, prog chan<- ProgressUpdate, journeyRef string, missionID int64) (*MissionView, error) {
	if e.opts.Cache == nil || e.opts.API == nil {
		return nil, fmt.Errorf("%w: engine not initialized", shared.ErrServiceUnavailable)
	}
	userID := e.userID()

	e.sendProgress(prog, loadJourneyUpdate(journeyRef))
	e.seedFromStore(ctx, userID)

	j, err := e.opts.Cache.Load(ctx, journeyRef, userID)
	if err != nil {
		return nil, err
	}
	if e.opts.Machine != nil {
		e.opts.Machine.Seed(journey.Statuses(j))
		if e.opts.Cache.MergeStatuses(e.opts.Machine.Snapshot()) {
			j = e.opts.Cache.Current()
		}
	}
	e.sendProgress(prog, journeyLoadedUpdate(j))

	summary, ok := journey.FindMission(j, missionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d in journey %s", shared.ErrMissionNotFound, missionID, journeyRef)
	}
	if summary.AccessLevel != models.AccessPublic && userID == 0 {
		return nil, fmt.Errorf("%w: mission %d needs a signed in user", shared.ErrNotAuthenticated, missionID)
	}

	locked := e.locked(ctx, j, summary)
	if cur := e.opts.Cache.Current(); cur != nil && cur.ID == j.ID {
		j = cur
		summary, _ = journey.FindMission(j, missionID)
	}

	view := &MissionView{engine: e, Journey: j, Summary: summary}
	if locked {
		view.Locked = true
		if e.opts.Gate != nil {
			if o, ok := e.opts.Gate.UnpaidOrderFor(j.ID); ok {
				view.UnpaidOrder = &o
			}
		}
		e.sendProgress(prog, lockedUpdate(summary))
		return view, nil
	}

	e.sendProgress(prog, fetchMissionUpdate(summary))
	detail, err := e.opts.API.MissionDetail(ctx, j.ID, missionID)
	if err != nil {
		return nil, err
	}
	view.Detail = detail
	view.Progress = models.DefaultProgress(missionID)

	if userID == 0 || e.opts.Machine == nil {
		return view, nil
	}

	view.Controller = mission.NewController(mission.ControllerOpts{
		Machine:   e.opts.Machine,
		API:       e.opts.API,
		MissionID: missionID,
		Timeout:   e.opts.Timeout,
		Notify:    e.opts.Notify,
		Logger:    e.opts.Logger,
	})
	p, err := view.Controller.Load(ctx)
	switch {
	case err == nil:
		view.Progress = p
	case errors.Is(err, shared.ErrNotAuthenticated):
		return nil, err
	default:
		e.logger.Warn("progress unavailable, starting from the beginning", "mission", missionID, "err", err)
		view.Progress.Status = models.MaxStatus(view.Progress.Status, e.opts.Machine.Status(missionID))
	}
	e.sendProgress(prog, progressLoadedUpdate(view.Progress))
	return view, nil
}

// locked asks the gate, loading purchases first when it never has. Without a gate purchased content stays locked.
func (e *MissionEngine) locked(ctx context.Context, j *models.JourneyDetail, m *models.MissionSummary) bool {
	if m.AccessLevel != models.AccessPurchased {
		return false
	}
	gate := e.opts.Gate
	if gate == nil {
		return true
	}
	if !gate.Loaded() {
		if err := gate.Refresh(ctx); err != nil {
			e.logger.Warn("purchase check failed, keeping mission locked", "journey", j.ID, "err", err)
		}
		e.opts.Cache.Relock()
	}
	return gate.IsLocked(m.AccessLevel, j.ID)
}

func (e *MissionEngine) seedFromStore(ctx context.Context, userID int64) {
	if e.opts.Store == nil || e.opts.Machine == nil || userID == 0 {
		return
	}
	statuses, err := e.opts.Store.Statuses(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to read local statuses", "err", err)
		return
	}
	e.opts.Machine.Seed(statuses)
}

// Deliver claims a mission reward. When this session has not seen the mission yet its progress is read first.
func (e *MissionEngine) Deliver(ctx context.Context, prog chan<- ProgressUpdate, missionID int64) (*models.DeliverResult, error) {
	if e.opts.Machine == nil || e.userID() == 0 {
		return nil, shared.ErrNotAuthenticated
	}
	m := e.opts.Machine

	if !m.Status(missionID).Done() && e.opts.API != nil {
		p, err := e.opts.API.MissionProgress(ctx, m.UserID(), missionID)
		if err != nil {
			return nil, fmt.Errorf("failed to read progress for mission %d: %w", missionID, err)
		}
		m.Observe(missionID, p.Status)
	}

	e.sendProgress(prog, deliverUpdate(missionID, nil))
	res, err := m.Deliver(ctx, missionID)
	if err != nil {
		return nil, err
	}
	e.sendProgress(prog, deliverUpdate(missionID, res))
	return res, nil
}

// Checkout creates or reuses the journey's unpaid order and pays it.
// A journey that is already bought is reported through AlreadyPurchased, not as an error.
func (e *MissionEngine) Checkout(ctx context.Context, prog chan<- ProgressUpdate, journeyID int64) (*CheckoutResult, error) {
	if e.opts.Checkout == nil {
		return nil, fmt.Errorf("%w: checkout not configured", shared.ErrServiceUnavailable)
	}

	e.sendProgress(prog, createOrderUpdate(journeyID, nil))
	order, err := e.opts.Checkout.CreateOrder(ctx, journeyID)
	if errors.Is(err, shared.ErrAlreadyPurchased) {
		return &CheckoutResult{AlreadyPurchased: true}, nil
	}
	if err != nil {
		return nil, err
	}
	e.sendProgress(prog, createOrderUpdate(journeyID, order))

	ref := order.OrderNumber
	if ref == "" {
		ref = fmt.Sprint(order.ID)
	}
	e.sendProgress(prog, payOrderUpdate(order, false))
	paid, err := e.opts.Checkout.Pay(ctx, ref)
	if err != nil {
		return nil, err
	}
	if paid.Order != nil {
		order = paid.Order
	}
	e.sendProgress(prog, payOrderUpdate(order, true))
	return &CheckoutResult{Order: order, AlreadyPaid: paid.AlreadyPaid}, nil
}
