package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/desertthunder/journeyx/internal/journey"
	"github.com/desertthunder/journeyx/internal/server"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/desertthunder/journeyx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// missionView is the JSON shape of an opened mission.
type missionView struct {
	JourneyID   int64  `json:"journeyId"`
	MissionID   int64  `json:"missionId"`
	Title       string `json:"title"`
	Locked      bool   `json:"locked"`
	Status      string `json:"status"`
	Position    int    `json:"watchPositionSeconds"`
	UnpaidOrder string `json:"unpaidOrder,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
	Duration    int    `json:"durationSeconds,omitempty"`
}

func toMissionView(v *tasks.MissionView) missionView {
	out := missionView{
		JourneyID: v.Journey.ID,
		MissionID: v.Summary.ID,
		Title:     v.Summary.Title,
		Locked:    v.Locked,
		Status:    v.Status().String(),
		Position:  v.Progress.WatchPositionSeconds,
	}
	if v.UnpaidOrder != nil {
		out.UnpaidOrder = v.UnpaidOrder.OrderNumber
	}
	if v.Detail != nil {
		out.VideoID = v.Detail.VideoID()
		out.Duration = v.Detail.DurationSeconds()
	}
	return out
}

// openMission parses the journey and mission arguments and opens the mission.
func (r *Runner) openMission(ctx context.Context, cmd *cli.Command, w *workspace, prog chan<- tasks.ProgressUpdate) (*tasks.MissionView, error) {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return nil, err
	}
	missionID, err := int64Arg(cmd, "mission")
	if err != nil {
		return nil, err
	}
	return w.engine.Open(ctx, prog, ref, missionID)
}

func (r *Runner) writeLocked(v *tasks.MissionView) {
	r.writePlain("🔒 %s requires purchase of %s\n", v.Summary.Title, v.Journey.Title)
	if v.UnpaidOrder != nil {
		r.writePlain("Unpaid order %s is waiting: journeyx order pay %s\n", v.UnpaidOrder.OrderNumber, v.UnpaidOrder.OrderNumber)
		return
	}
	r.writePlain("Buy it with: journeyx order create %d --pay\n", v.Journey.ID)
}

// MissionOpen opens a mission and prints its content and progress.
func (r *Runner) MissionOpen(ctx context.Context, cmd *cli.Command) error {
	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	var view *tasks.MissionView
	asJSON := cmd.Bool("json")
	open := func(prog chan<- tasks.ProgressUpdate) error {
		view, err = r.openMission(ctx, cmd, w, prog)
		return err
	}
	if asJSON {
		err = open(nil)
	} else {
		err = r.withProgress(open)
	}
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(toMissionView(view), cmd.Bool("pretty"))
	}
	if view.Locked {
		r.writeLocked(view)
		return nil
	}

	d := view.Detail
	r.writePlainln("%s", formatter.Styles.Title.Render(d.Title))
	if d.Description != "" {
		r.writePlain("%s\n", d.Description)
	}
	r.writePlain("Type: %s  Reward: %d exp\n", d.Type, d.Reward.Exp)
	if id := d.VideoID(); id != "" {
		r.writePlain("Video: %s (%ds)\n", id, d.DurationSeconds())
	}
	r.writePlain("Status: %s %s at %ds\n", formatter.StatusIcon(view.Status(), false), view.Status(), view.Progress.WatchPositionSeconds)
	return nil
}

// MissionWatch opens a mission and serves the player bridge until the page unloads or the command is interrupted.
func (r *Runner) MissionWatch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	var view *tasks.MissionView
	if err := r.withProgress(func(prog chan<- tasks.ProgressUpdate) error {
		view, err = r.openMission(ctx, cmd, w, prog)
		return err
	}); err != nil {
		return err
	}
	if view.Locked {
		r.writeLocked(view)
		return shared.ErrMissionLocked
	}
	r.listen(ctx, w)

	player := &server.BridgePlayer{}
	tracker, err := view.Track(ctx, player)
	if err != nil {
		return err
	}
	defer view.Close()

	events := make(chan server.PlayerEvent, 16)
	handler := server.NewPlayerHandler(server.PlayerHandlerOpts{
		MissionID: view.Summary.ID,
		Tracker:   tracker,
		Player:    player,
		Status:    view.Status,
		Events:    events,
		Logger:    r.logger,
	})
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger), server.Recoverer(r.logger))
	if err := router.Handler(handler); err != nil {
		return err
	}
	r.logger.Debug("player bridge routes", "routes", router.Routes())

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	r.writePlain("▶ Tracking %s from %ds\n", view.Summary.Title, view.Progress.WatchPositionSeconds)
	r.writePlain("Player bridge listening on http://%s/player/events\n", addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("player bridge failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				r.writePlain("  %s at %.0fs (%s)\n", ev.Event, ev.Position, view.Status())
				if ev.Event == "unload" {
					return nil
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	r.writePlain("■ %s: %s\n", view.Summary.Title, view.Status())
	return nil
}

// MissionDeliver claims a mission's reward.
func (r *Runner) MissionDeliver(ctx context.Context, cmd *cli.Command) error {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return err
	}
	missionID, err := int64Arg(cmd, "mission")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := r.loadJourney(ctx, w, ref); err != nil {
		return err
	}
	res, err := w.engine.Deliver(ctx, nil, missionID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(res, true)
	}
	return r.writePlain("%s\n", formatter.RenderDeliverResult(missionID, res))
}

// MissionDeliverAll claims every completed mission of a journey.
func (r *Runner) MissionDeliverAll(ctx context.Context, cmd *cli.Command) error {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return err
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	j, err := r.loadJourney(ctx, w, ref)
	if err != nil {
		return err
	}
	w.machine.Seed(journey.Statuses(j))

	opts := tasks.BulkDeliverOpts{NumWorkers: int(cmd.Int("workers")), RateLimit: cmd.Float("rate")}
	var result *tasks.BulkDeliverResult
	if err := r.withProgress(func(prog chan<- tasks.ProgressUpdate) error {
		result, err = w.engine.DeliverAll(ctx, prog, opts)
		return err
	}); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	r.writePlainln("Delivered %d/%d missions, +%d exp", result.Delivered, result.Total, result.Experience)
	if result.Failed > 0 {
		r.writePlain("Failed to deliver %d missions:\n", result.Failed)
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.Title, res.Error)
			}
		}
	}
	return nil
}
