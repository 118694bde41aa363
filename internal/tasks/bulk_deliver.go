package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	"golang.org/x/time/rate"
)

// BulkDeliverOpts contains configuration for delivering many missions at once.
type BulkDeliverOpts struct {
	NumWorkers int     // Concurrent workers (default: 3)
	RateLimit  float64 // Requests per second (default: 5)
}

// MissionDeliverResult is the outcome for one mission of a bulk delivery.
type MissionDeliverResult struct {
	MissionID int64                 `json:"missionId"`
	Title     string                `json:"title"`
	Result    *models.DeliverResult `json:"result,omitempty"`
	Error     error                 `json:"-"`
	ErrorText string                `json:"error,omitempty"`
}

// BulkDeliverResult summarizes a bulk delivery.
type BulkDeliverResult struct {
	JourneyID  int64                  `json:"journeyId"`
	Total      int                    `json:"total"`
	Delivered  int                    `json:"delivered"`
	Failed     int                    `json:"failed"`
	Experience int                    `json:"experience"`
	Results    []MissionDeliverResult `json:"results"`
}

// DeliverAll delivers every COMPLETED mission of the journey in the cache, using a rate limited worker pool.
// Failures are collected per mission. The call itself fails only when ctx ends before anything was delivered.
func (e *MissionEngine) DeliverAll(ctx context.Context, prog chan<- ProgressUpdate, opts BulkDeliverOpts) (*BulkDeliverResult, error) {
	if e.opts.Machine == nil || e.userID() == 0 {
		return nil, shared.ErrNotAuthenticated
	}
	j := e.opts.Cache.Current()
	if j == nil {
		return nil, fmt.Errorf("%w: no journey loaded", shared.ErrJourneyNotFound)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	var pending []*models.MissionSummary
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			if e.opts.Machine.Status(m.ID) == models.StatusCompleted && !m.Locked {
				pending = append(pending, m)
			}
		}
	}

	result := &BulkDeliverResult{
		JourneyID: j.ID,
		Total:     len(pending),
		Results:   make([]MissionDeliverResult, 0, len(pending)),
	}
	if len(pending) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan *models.MissionSummary, len(pending))
	results := make(chan MissionDeliverResult, len(pending))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.deliverWorker(ctx, &wg, limiter, jobs, results)
	}

	for _, m := range pending {
		jobs <- m
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Error != nil {
			result.Failed++
		} else {
			result.Delivered++
			result.Experience += res.Result.ExperienceGained
		}
		e.sendProgress(prog, bulkDeliverUpdate(completed, result.Total, res))
	}

	if result.Delivered == 0 && ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// deliverWorker delivers missions from the jobs channel until it is drained or ctx ends.
func (e *MissionEngine) deliverWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan *models.MissionSummary,
	results chan<- MissionDeliverResult,
) {
	defer wg.Done()

	for m := range jobs {
		res := MissionDeliverResult{MissionID: m.ID, Title: m.Title}
		if err := limiter.Wait(ctx); err != nil {
			res.Error = err
		} else {
			res.Result, res.Error = e.opts.Machine.Deliver(ctx, m.ID)
		}
		if errors.Is(res.Error, shared.ErrAlreadyDelivered) {
			res.Result, res.Error = &models.DeliverResult{AlreadyDelivered: true}, nil
		}
		if res.Error != nil {
			res.ErrorText = res.Error.Error()
		}
		results <- res
	}
}
