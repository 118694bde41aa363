package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/desertthunder/journeyx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// OrderCreate opens an order for a journey and, with --pay, pays it.
func (r *Runner) OrderCreate(ctx context.Context, cmd *cli.Command) error {
	journeyID, err := int64Arg(cmd, "journey-id")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	if cmd.Bool("pay") {
		var result *tasks.CheckoutResult
		if err := r.withProgress(func(prog chan<- tasks.ProgressUpdate) error {
			result, err = w.engine.Checkout(ctx, prog, journeyID)
			return err
		}); err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(result, true)
		}
		switch {
		case result.AlreadyPurchased:
			return r.writePlainln("Journey %d is already purchased", journeyID)
		case result.AlreadyPaid:
			r.writePlainln("Order %s was already paid", result.Order.OrderNumber)
		default:
			r.writePlainln("✓ Order %s paid", result.Order.OrderNumber)
		}
		return r.writePlain("%s", formatter.RenderOrder(result.Order))
	}

	order, err := w.checkout.CreateOrder(ctx, journeyID)
	if errors.Is(err, shared.ErrAlreadyPurchased) {
		return r.writePlainln("Journey %d is already purchased", journeyID)
	}
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(order, true)
	}
	r.writePlain("%s", formatter.RenderOrder(order))
	return r.writePlainln("Pay it with: journeyx order pay %s", order.OrderNumber)
}

// OrderPay pays an existing order.
func (r *Runner) OrderPay(ctx context.Context, cmd *cli.Command) error {
	orderID, err := stringArg(cmd, "order-id")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := w.checkout.Pay(ctx, orderID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(res.Order, true)
	}
	if res.AlreadyPaid {
		r.writePlainln("Order %s was already paid", orderID)
	} else {
		r.writePlainln("✓ Order %s paid", orderID)
	}
	return r.writePlain("%s", formatter.RenderOrder(res.Order))
}

// OrderShow prints one order.
func (r *Runner) OrderShow(ctx context.Context, cmd *cli.Command) error {
	orderID, err := stringArg(cmd, "order-id")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	order, err := w.checkout.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(order, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.RenderOrder(order))
}

// OrderList lists the signed in user's orders.
func (r *Runner) OrderList(ctx context.Context, cmd *cli.Command) error {
	status, err := parseOrderStatus(cmd.String("status"))
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	orders, err := w.checkout.Orders(ctx, status)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(orders, cmd.Bool("pretty"))
	}
	if len(orders) == 0 {
		return r.writePlainln("No orders")
	}
	return r.writePlainln("%s", formatter.RenderOrders(orders))
}

func parseOrderStatus(s string) (models.OrderStatus, error) {
	switch status := models.OrderStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case "", models.OrderUnpaid, models.OrderPaid, models.OrderExpired:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", shared.ErrInvalidArgument, s)
	}
}
