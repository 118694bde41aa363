package mission

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

// StatusSink receives every status transition, in order. The journey cache implements it.
type StatusSink interface {
	UpdateMissionStatus(missionID int64, status models.MissionStatus) bool
}

// Store persists the highest status seen per mission.
type Store interface {
	SaveStatus(ctx context.Context, userID, missionID int64, status models.MissionStatus) error
}

// Deliverer claims mission rewards on the backend.
type Deliverer interface {
	DeliverMission(ctx context.Context, userID, missionID int64) (*models.DeliverResult, error)
}

type entry struct {
	status      models.MissionStatus
	provisional bool
	delivering  bool
}

// MachineOpts configures a [Machine].
type MachineOpts struct {
	UserID int64
	API    Deliverer
	Sink   StatusSink
	Store  Store
	Logger *log.Logger
}

// Machine is the client-side authority on mission status for one user session.
//
// Status only moves forward: UNCOMPLETED, COMPLETED, DELIVERED. Lower statuses reported later are ignored.
// Transitions are pushed to the sink and store while the machine lock is held, so observers see them in order.
type Machine struct {
	userID int64
	api    Deliverer
	sink   StatusSink
	store  Store
	logger *log.Logger

	mu      sync.Mutex
	entries map[int64]*entry
}

// NewMachine creates an empty machine.
func NewMachine(opts MachineOpts) *Machine {
	return &Machine{
		userID:  opts.UserID,
		api:     opts.API,
		sink:    opts.Sink,
		store:   opts.Store,
		logger:  shared.WithLogger(opts.Logger, "component", "mission"),
		entries: make(map[int64]*entry),
	}
}

// UserID returns the session user.
func (m *Machine) UserID() int64 { return m.userID }

// Status returns the known status, or [models.StatusUnknown].
func (m *Machine) Status(missionID int64) models.MissionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[missionID]; ok {
		return e.status
	}
	return models.StatusUnknown
}

// Provisional reports whether COMPLETED was set locally and is not yet confirmed by the backend.
func (m *Machine) Provisional(missionID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[missionID]
	return ok && e.provisional
}

// Snapshot copies all known statuses.
func (m *Machine) Snapshot() map[int64]models.MissionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]models.MissionStatus, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.status
	}
	return out
}

// Seed loads statuses from a persisted or cached source. It is forward only and not written back to the store.
func (m *Machine) Seed(statuses map[int64]models.MissionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range slices.Sorted(maps.Keys(statuses)) {
		m.advanceLocked(id, statuses[id], false)
	}
}

// Observe applies a backend-reported status and reports whether it advanced.
func (m *Machine) Observe(missionID int64, status models.MissionStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(missionID)
	if status.Done() {
		e.provisional = false
	}
	return m.advanceLocked(missionID, status, true)
}

// MarkCompleted sets a provisional COMPLETED on video end, ahead of backend confirmation.
// It is never rolled back. Returns false when the mission was already COMPLETED or DELIVERED.
func (m *Machine) MarkCompleted(missionID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.advanceLocked(missionID, models.StatusCompleted, true) {
		return false
	}
	m.entries[missionID].provisional = true
	return true
}

// Deliver claims the reward of a completed mission.
//
// DELIVERED missions fail fast with [shared.ErrAlreadyDelivered] and incomplete ones with [shared.ErrNotCompleted],
// both without a request. A backend 409 is taken as proof of delivery and yields a result with AlreadyDelivered set.
// Other failures keep the mission COMPLETED and wrap [shared.ErrDeliveryFailed].
func (m *Machine) Deliver(ctx context.Context, missionID int64) (*models.DeliverResult, error) {
	m.mu.Lock()
	e := m.entryLocked(missionID)
	switch {
	case e.status == models.StatusDelivered:
		m.mu.Unlock()
		return nil, shared.ErrAlreadyDelivered
	case !e.status.Done():
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: mission %d is %s", shared.ErrNotCompleted, missionID, e.status)
	case e.delivering:
		m.mu.Unlock()
		return nil, shared.ErrDeliveryInProgress
	}
	e.delivering = true
	m.mu.Unlock()

	if m.api == nil {
		m.finishDelivery(missionID, false)
		return nil, fmt.Errorf("%w: no backend", shared.ErrDeliveryFailed)
	}

	res, err := m.api.DeliverMission(ctx, m.userID, missionID)
	switch {
	case err == nil:
		m.finishDelivery(missionID, true)
		m.logger.Info("mission delivered", "mission", missionID, "exp", res.ExperienceGained)
		return res, nil
	case errors.Is(err, shared.ErrConflict):
		m.finishDelivery(missionID, true)
		m.logger.Info("mission already delivered", "mission", missionID)
		return &models.DeliverResult{Message: "already delivered", AlreadyDelivered: true}, nil
	default:
		m.finishDelivery(missionID, false)
		m.logger.Warn("delivery failed", "mission", missionID, "err", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrDeliveryFailed, err)
	}
}

func (m *Machine) finishDelivery(missionID int64, delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entryLocked(missionID)
	e.delivering = false
	if delivered {
		e.provisional = false
		m.advanceLocked(missionID, models.StatusDelivered, true)
	}
}

func (m *Machine) entryLocked(missionID int64) *entry {
	e, ok := m.entries[missionID]
	if !ok {
		e = &entry{}
		m.entries[missionID] = e
	}
	return e
}

// advanceLocked moves the mission forward and publishes the transition. Caller holds m.mu.
func (m *Machine) advanceLocked(missionID int64, status models.MissionStatus, persist bool) bool {
	if !status.Valid() {
		return false
	}
	e := m.entryLocked(missionID)
	if status.Rank() <= e.status.Rank() {
		return false
	}
	e.status = status

	if m.sink != nil {
		m.sink.UpdateMissionStatus(missionID, status)
	}
	if persist && m.store != nil {
		if err := m.store.SaveStatus(context.Background(), m.userID, missionID, status); err != nil {
			m.logger.Warn("failed to persist status", "mission", missionID, "status", status, "err", err)
		}
	}
	m.logger.Debug("status advanced", "mission", missionID, "status", status)
	return true
}
