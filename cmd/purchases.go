package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// PurchasesList prints the journeys the user has bought.
func (r *Runner) PurchasesList(ctx context.Context, cmd *cli.Command) error {
	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	items, err := w.api.PurchasedJourneys(ctx, w.userID())
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	if len(items) == 0 {
		return r.writePlainln("No purchases yet")
	}
	return r.writePlainln("%s", formatter.RenderPurchases(items))
}

// PurchasesListen prints the purchased journeys whenever another session buys something, until interrupted.
func (r *Runner) PurchasesListen(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.gate.Refresh(ctx); err != nil {
		r.logger.Warn("initial purchase refresh failed", "err", err)
	}
	r.writePlainln("Purchased journeys: %v", w.gate.PurchasedIDs())

	w.gate.OnChange(func() {
		r.writePlainln("Purchases updated: %v", w.gate.PurchasedIDs())
	})
	if err := w.gate.Listen(ctx); err != nil {
		return err
	}
	r.writePlainln("Listening for purchases from other sessions (Ctrl+C to stop)")

	<-ctx.Done()
	return nil
}

// Health checks the backend and its database.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api.Health(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(status, false)
	}
	if status.Up() {
		return r.writePlainln("✓ Backend is up (database %s)", status.Database)
	}
	return r.writePlainln("✗ Backend is degraded (service %s, database %s)", status.Status, status.Database)
}
