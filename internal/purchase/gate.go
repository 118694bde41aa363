package purchase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/services"
	"github.com/desertthunder/journeyx/internal/shared"
	"golang.org/x/sync/errgroup"
)

// unpaidPageSize is large enough to see every open order of a user.
const unpaidPageSize = 50

// API is the subset of the backend the gate reads.
type API interface {
	PurchasedJourneys(ctx context.Context, userID int64) ([]models.PurchasedJourney, error)
	UserOrders(ctx context.Context, userID int64, params services.OrdersParams) (*services.OrdersPage, error)
}

// GateOpts configures a [Gate].
type GateOpts struct {
	UserID int64
	API    API
	// Bus is optional. Without one, purchases are not shared with other sessions.
	Bus    Bus
	Logger *log.Logger
}

// Gate decides whether a mission's content may be shown, based on the user's purchases.
//
// Facts only change on a successful fetch. A failed refresh keeps what was known, so an outage never
// unlocks content and never relocks content that was already bought. Before the first successful fetch
// every PURCHASED mission is locked.
type Gate struct {
	userID int64
	api    API
	bus    Bus
	origin string
	logger *log.Logger

	mu        sync.RWMutex
	purchased map[int64]struct{}
	unpaid    []models.Order
	loaded    bool
	listeners []func()
}

// NewGate creates a gate that has not loaded yet.
func NewGate(opts GateOpts) *Gate {
	return &Gate{
		userID:    opts.UserID,
		api:       opts.API,
		bus:       opts.Bus,
		origin:    shared.GenerateID(),
		logger:    shared.WithLogger(opts.Logger, "component", "gate"),
		purchased: make(map[int64]struct{}),
	}
}

// Origin identifies this session on the bus.
func (g *Gate) Origin() string { return g.origin }

// Loaded reports whether purchases were fetched successfully at least once.
func (g *Gate) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

// HasPurchased reports whether the journey is bought.
func (g *Gate) HasPurchased(journeyID int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.purchased[journeyID]
	return ok
}

// IsLocked reports whether content at the given access level is withheld.
func (g *Gate) IsLocked(level models.AccessLevel, journeyID int64) bool {
	return level == models.AccessPurchased && !g.HasPurchased(journeyID)
}

// PurchasedIDs lists bought journeys in ascending order.
func (g *Gate) PurchasedIDs() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int64, 0, len(g.purchased))
	for id := range g.purchased {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// UnpaidOrderFor returns the open order covering the journey, if any.
func (g *Gate) UnpaidOrderFor(journeyID int64) (models.Order, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, o := range g.unpaid {
		if o.Covers(journeyID) {
			return o, true
		}
	}
	return models.Order{}, false
}

// UserStatus summarizes the gate's facts for a journey.
func (g *Gate) UserStatus(journeyID int64) models.UserStatus {
	status := models.UserStatus{HasPurchased: g.HasPurchased(journeyID)}
	if o, ok := g.UnpaidOrderFor(journeyID); ok {
		id := o.ID
		status.HasUnpaidOrder = true
		status.UnpaidOrderID = &id
	}
	return status
}

// OnChange registers fn to run after every successful refresh.
func (g *Gate) OnChange(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Refresh fetches purchases and unpaid orders in parallel. Each part is applied on its own success;
// failed parts keep their previous value and are returned as an error.
func (g *Gate) Refresh(ctx context.Context) error {
	if g.api == nil || g.userID == 0 {
		return fmt.Errorf("%w: purchase gate has no user", shared.ErrNotAuthenticated)
	}

	var (
		purchased []models.PurchasedJourney
		page      *services.OrdersPage
		errs      [2]error
		eg        errgroup.Group
	)
	eg.Go(func() error {
		purchased, errs[0] = g.api.PurchasedJourneys(ctx, g.userID)
		return nil
	})
	eg.Go(func() error {
		page, errs[1] = g.api.UserOrders(ctx, g.userID, services.OrdersParams{Page: 1, Limit: unpaidPageSize, Status: models.OrderUnpaid})
		return nil
	})
	_ = eg.Wait()

	g.mu.Lock()
	if errs[0] == nil {
		next := make(map[int64]struct{}, len(purchased))
		for _, p := range purchased {
			next[p.JourneyID] = struct{}{}
		}
		g.purchased = next
		g.loaded = true
	}
	if errs[1] == nil {
		var unpaid []models.Order
		for _, o := range page.Orders {
			if o.Status == models.OrderUnpaid {
				unpaid = append(unpaid, o)
			}
		}
		g.unpaid = unpaid
	}
	listeners := slices.Clone(g.listeners)
	g.mu.Unlock()

	err := errors.Join(errs[0], errs[1])
	if err != nil {
		g.logger.Warn("purchase refresh failed, keeping previous state", "err", err)
	}
	if errs[0] == nil || errs[1] == nil {
		for _, fn := range listeners {
			fn()
		}
	}
	return err
}

// Invalidate refreshes and then tells the user's other sessions to refresh too.
// The event is published even when the local refresh fails.
func (g *Gate) Invalidate(ctx context.Context, journeyID int64) error {
	err := g.Refresh(ctx)
	if g.bus != nil {
		ev := Event{UserID: g.userID, JourneyID: journeyID, Origin: g.origin, At: time.Now()}
		if pubErr := g.bus.Publish(ctx, ev); pubErr != nil {
			g.logger.Warn("failed to broadcast purchase", "err", pubErr)
		}
	}
	return err
}

// Listen refreshes whenever another session of the same user announces a purchase.
// It returns once subscribed; delivery stops when ctx is done.
func (g *Gate) Listen(ctx context.Context) error {
	if g.bus == nil {
		return nil
	}
	return g.bus.Subscribe(ctx, func(ev Event) {
		if ev.UserID != g.userID || ev.Origin == g.origin {
			return
		}
		g.logger.Debug("purchase event from another session", "origin", ev.Origin, "journey", ev.JourneyID)
		if err := g.Refresh(ctx); err != nil {
			g.logger.Warn("refresh after purchase event failed", "err", err)
		}
	})
}

// Reset forgets every fact, as on logout.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.purchased = make(map[int64]struct{})
	g.unpaid = nil
	g.loaded = false
}
