package journey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds progress reads during a load.
const DefaultMaxConcurrency = 6

// API is the subset of the backend the cache reads.
type API interface {
	Journey(ctx context.Context, idOrSlug string) (*models.JourneyDetail, error)
	MissionProgress(ctx context.Context, userID, missionID int64) (models.MissionProgress, error)
}

// Gate supplies purchase facts. The purchase gate implements it.
type Gate interface {
	Loaded() bool
	IsLocked(level models.AccessLevel, journeyID int64) bool
	UserStatus(journeyID int64) models.UserStatus
	Refresh(ctx context.Context) error
}

// Options configures a [Cache].
type Options struct {
	API API
	// Gate is optional. Without one, lock flags are left as fetched.
	Gate           Gate
	MaxConcurrency int
	Logger         *log.Logger
}

// Cache holds the current journey and is the one place every view reads mission status from.
//
// Readers get immutable snapshots. Writers are serialized and swap in a new snapshot built by the
// merge functions, so a snapshot handed out is never modified afterwards.
type Cache struct {
	api    API
	gate   Gate
	limit  int
	logger *log.Logger

	snap atomic.Pointer[models.JourneyDetail]

	mu     sync.Mutex
	userID int64

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]func(*models.JourneyDetail)
}

func NewCache(opts Options) *Cache {
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	return &Cache{
		api:    opts.API,
		gate:   opts.Gate,
		limit:  limit,
		logger: shared.WithLogger(opts.Logger, "component", "journey"),
		subs:   make(map[int]func(*models.JourneyDetail)),
	}
}

// Current returns the latest snapshot, or nil before the first load.
func (c *Cache) Current() *models.JourneyDetail {
	return c.snap.Load()
}

// Load fetches a journey and, for a signed in user, the status of every mission in it.
//
// A 404 on a progress read means UNCOMPLETED. A 401 aborts the load. Other per-mission failures keep
// the status from the structure. Statuses already known for the same journey and user never go back.
func (c *Cache) Load(ctx context.Context, slugOrID string, userID int64) (*models.JourneyDetail, error) {
	j, err := c.api.Journey(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	if userID != 0 {
		statuses, err := c.fetchStatuses(ctx, userID, j.MissionIDs())
		if err != nil {
			return nil, err
		}
		j = WithMissionStatuses(j, statuses)
	}

	c.mu.Lock()
	if prev := c.snap.Load(); prev != nil && prev.ID == j.ID && c.userID == userID {
		j = WithMissionStatuses(j, Statuses(prev))
	}
	c.userID = userID
	j = c.applyGate(j)
	c.snap.Store(j)
	c.mu.Unlock()

	c.logger.Debug("journey loaded", "journey", j.Slug, "missions", len(j.MissionIDs()))
	c.notify(j)
	return j, nil
}

func (c *Cache) fetchStatuses(ctx context.Context, userID int64, ids []int64) (map[int64]models.MissionStatus, error) {
	results := make([]models.MissionStatus, len(ids))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.limit)
	for i, id := range ids {
		eg.Go(func() error {
			p, err := c.api.MissionProgress(egCtx, userID, id)
			switch {
			case err == nil:
				results[i] = p.Status
			case errors.Is(err, shared.ErrNotFound):
				results[i] = models.StatusUncompleted
			case errors.Is(err, shared.ErrNotAuthenticated):
				return fmt.Errorf("progress for mission %d: %w", id, err)
			default:
				c.logger.Warn("progress read failed, keeping structural status", "mission", id, "err", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int64]models.MissionStatus, len(ids))
	for i, id := range ids {
		if results[i].Valid() {
			out[id] = results[i]
		}
	}
	return out, nil
}

// UpdateMissionStatus advances one mission in the current snapshot. Updates that would not move the
// mission forward change nothing and notify nobody.
func (c *Cache) UpdateMissionStatus(missionID int64, status models.MissionStatus) bool {
	c.mu.Lock()
	cur := c.snap.Load()
	next := WithMissionStatus(cur, missionID, status)
	if next == cur {
		c.mu.Unlock()
		return false
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
	return true
}

// MergeStatuses advances several missions in one swap. It reports whether anything changed.
func (c *Cache) MergeStatuses(statuses map[int64]models.MissionStatus) bool {
	c.mu.Lock()
	cur := c.snap.Load()
	next := WithMissionStatuses(cur, statuses)
	if next == cur {
		c.mu.Unlock()
		return false
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
	return true
}

// RefreshPurchaseStatus re-reads purchases through the gate and recomputes lock flags and user status.
// The chapter tree is not fetched again. When the gate refresh fails the last known facts are applied.
func (c *Cache) RefreshPurchaseStatus(ctx context.Context) error {
	if c.gate == nil {
		return nil
	}
	err := c.gate.Refresh(ctx)
	c.Relock()
	return err
}

// Relock recomputes purchase-derived fields from the gate's current facts.
func (c *Cache) Relock() {
	c.mu.Lock()
	cur := c.snap.Load()
	next := c.applyGate(cur)
	if next == cur {
		c.mu.Unlock()
		return
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
}

// Reset drops the snapshot, as on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Store(nil)
	c.userID = 0
}

// Subscribe registers fn to receive every new snapshot. Calling the returned func unsubscribes.
// fn runs on the writer's goroutine and must not block.
func (c *Cache) Subscribe(fn func(*models.JourneyDetail)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Cache) notify(j *models.JourneyDetail) {
	c.subsMu.Lock()
	fns := make([]func(*models.JourneyDetail), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(j)
	}
}

// applyGate derives lock flags and, once the gate has loaded, user status.
func (c *Cache) applyGate(j *models.JourneyDetail) *models.JourneyDetail {
	if j == nil || c.gate == nil {
		return j
	}
	id := j.ID
	j = WithLocks(j, func(level models.AccessLevel) bool { return c.gate.IsLocked(level, id) })
	if c.gate.Loaded() {
		us := c.gate.UserStatus(id)
		j = WithUserStatus(j, &us)
	}
	return j
}
