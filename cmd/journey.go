package main

import (
	"context"

	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/urfave/cli/v3"
)

// JourneyList prints the catalogue.
func (r *Runner) JourneyList(ctx context.Context, cmd *cli.Command) error {
	items, err := r.api.Journeys(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	if len(items) == 0 {
		return r.writePlain("No journeys\n")
	}
	return r.writePlain("%s\n", formatter.RenderJourneys(items))
}

// loadJourney loads a journey into the workspace cache. Signed in users get purchases checked first,
// so locks and user status are known when the tree is drawn.
func (r *Runner) loadJourney(ctx context.Context, w *workspace, ref string) (*models.JourneyDetail, error) {
	if w.userID() != 0 {
		if err := w.gate.Refresh(ctx); err != nil {
			r.logger.Warn("purchase check failed, purchased missions stay locked", "err", err)
		}
	}
	return w.cache.Load(ctx, ref, w.userID())
}

// JourneyShow prints a journey's chapter tree with mission status.
func (r *Runner) JourneyShow(ctx context.Context, cmd *cli.Command) error {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	j, err := r.loadJourney(ctx, w, ref)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(j, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.RenderJourney(j))
}

// JourneyExport writes a journey's progress to a file.
func (r *Runner) JourneyExport(ctx context.Context, cmd *cli.Command) error {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	j, err := r.loadJourney(ctx, w, ref)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(j, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("journey exported", "journey", j.Slug, "path", path)
	return r.writePlain("✓ Exported %s to %s\n", j.Title, path)
}
