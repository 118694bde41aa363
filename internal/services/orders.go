package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

// OrdersParams filters [APIService.UserOrders]. Zero values are left out of the query.
type OrdersParams struct {
	Page   int
	Limit  int
	Status models.OrderStatus
}

func (p OrdersParams) query() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// OrdersPage is one page of a user's orders.
type OrdersPage struct {
	Orders     []models.Order    `json:"orders"`
	Pagination models.Pagination `json:"pagination"`
}

type purchasedResponse struct {
	Journeys []models.PurchasedJourney `json:"journeys"`
}

type orderItemRequest struct {
	JourneyID int64 `json:"journeyId"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

// PurchasedJourneys lists the journeys covered by the user's paid orders.
func (a *APIService) PurchasedJourneys(ctx context.Context, userID int64) ([]models.PurchasedJourney, error) {
	var out purchasedResponse
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/journeys", userID), nil, &out); err != nil {
		return nil, err
	}
	return out.Journeys, nil
}

// UserOrders lists the user's orders.
func (a *APIService) UserOrders(ctx context.Context, userID int64, params OrdersParams) (*OrdersPage, error) {
	var out OrdersPage
	path := fmt.Sprintf("/users/%d/orders", userID) + params.query()
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder opens an order for one journey. The backend answers 409 when the journey is already purchased.
func (a *APIService) CreateOrder(ctx context.Context, journeyID int64, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		quantity = 1
	}

	var out models.Order
	body := createOrderRequest{Items: []orderItemRequest{{JourneyID: journeyID, Quantity: quantity}}}
	if err := a.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Order fetches an order by id or order number.
func (a *APIService) Order(ctx context.Context, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id", shared.ErrMissingArgument)
	}

	var out models.Order
	if err := a.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PayOrder completes payment of an order.
func (a *APIService) PayOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id", shared.ErrMissingArgument)
	}

	var out models.Order
	if err := a.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/action/pay", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
