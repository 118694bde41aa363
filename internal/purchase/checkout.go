package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/services"
	"github.com/desertthunder/journeyx/internal/shared"
)

// CheckoutAPI is the order surface of the backend.
type CheckoutAPI interface {
	CreateOrder(ctx context.Context, journeyID int64, quantity int) (*models.Order, error)
	Order(ctx context.Context, orderID string) (*models.Order, error)
	PayOrder(ctx context.Context, orderID string) (*models.Order, error)
	UserOrders(ctx context.Context, userID int64, params services.OrdersParams) (*services.OrdersPage, error)
}

// PurchaseRefresher re-reads purchase facts into a view. The journey cache implements it.
type PurchaseRefresher interface {
	RefreshPurchaseStatus(ctx context.Context) error
}

// CheckoutOpts configures a [Checkout].
type CheckoutOpts struct {
	API    CheckoutAPI
	Gate   *Gate
	Cache  PurchaseRefresher
	Logger *log.Logger
}

// PayResult is the outcome of a payment. AlreadyPaid is set when the backend reported the order paid before.
type PayResult struct {
	Order       *models.Order
	AlreadyPaid bool
}

// Checkout runs the order flow and keeps the gate and cache in step with it.
type Checkout struct {
	api    CheckoutAPI
	gate   *Gate
	cache  PurchaseRefresher
	logger *log.Logger
}

func NewCheckout(opts CheckoutOpts) *Checkout {
	return &Checkout{
		api:    opts.API,
		gate:   opts.Gate,
		cache:  opts.Cache,
		logger: shared.WithLogger(opts.Logger, "component", "checkout"),
	}
}

// CreateOrder opens an order for a journey. A 409 means it is already bought: purchases are
// resynchronized and [shared.ErrAlreadyPurchased] returned.
func (c *Checkout) CreateOrder(ctx context.Context, journeyID int64) (*models.Order, error) {
	order, err := c.api.CreateOrder(ctx, journeyID, 1)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			c.resync(ctx, journeyID, false)
			return nil, fmt.Errorf("%w: journey %d", shared.ErrAlreadyPurchased, journeyID)
		}
		return nil, err
	}

	c.logger.Info("order created", "order", order.OrderNumber, "journey", journeyID)
	c.resync(ctx, journeyID, false)
	return order, nil
}

// Pay completes payment. Success and 409 both end with the journey bought, so both invalidate
// purchases across sessions. 404 is [shared.ErrOrderNotFound]; 410 and 400 are [shared.ErrOrderExpired]
// and the order cannot be retried.
func (c *Checkout) Pay(ctx context.Context, orderID string) (*PayResult, error) {
	order, err := c.api.PayOrder(ctx, orderID)
	switch {
	case err == nil:
		c.logger.Info("order paid", "order", orderID)
		c.resync(ctx, firstJourney(order), true)
		return &PayResult{Order: order}, nil
	case errors.Is(err, shared.ErrConflict):
		if order, err = c.api.Order(ctx, orderID); err != nil {
			c.logger.Warn("failed to read paid order", "order", orderID, "err", err)
		}
		c.resync(ctx, firstJourney(order), true)
		return &PayResult{Order: order, AlreadyPaid: true}, nil
	case errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", shared.ErrOrderNotFound, orderID)
	case errors.Is(err, shared.ErrGone), errors.Is(err, shared.ErrBadRequest):
		return nil, fmt.Errorf("%w: %s", shared.ErrOrderExpired, orderID)
	default:
		return nil, err
	}
}

// Order fetches one order.
func (c *Checkout) Order(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := c.api.Order(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrOrderNotFound, orderID)
	}
	return order, err
}

// Orders lists the user's orders, optionally by status.
func (c *Checkout) Orders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if c.gate == nil {
		return nil, shared.ErrNotAuthenticated
	}
	page, err := c.api.UserOrders(ctx, c.gate.userID, services.OrdersParams{Page: 1, Limit: unpaidPageSize, Status: status})
	if err != nil {
		return nil, err
	}
	return page.Orders, nil
}

// resync refreshes purchase facts. With broadcast, other sessions are told as well.
// Failures are logged: the order itself already went through.
func (c *Checkout) resync(ctx context.Context, journeyID int64, broadcast bool) {
	if c.gate != nil {
		var err error
		if broadcast {
			err = c.gate.Invalidate(ctx, journeyID)
		} else {
			err = c.gate.Refresh(ctx)
		}
		if err != nil {
			c.logger.Warn("purchase resync failed", "err", err)
		}
	}
	if c.cache != nil {
		if err := c.cache.RefreshPurchaseStatus(ctx); err != nil {
			c.logger.Warn("journey purchase status refresh failed", "err", err)
		}
	}
}

func firstJourney(o *models.Order) int64 {
	if o == nil || len(o.Items) == 0 {
		return 0
	}
	return o.Items[0].JourneyID
}
