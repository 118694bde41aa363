package tasks

import (
	"fmt"

	"github.com/desertthunder/journeyx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or the player bridge for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadJourney Phase = iota
	CheckAccess
	FetchMission
	LoadProgress
	DeliverMission
	CreateOrder
	PayOrder
	BulkDeliver
)

func (p Phase) String() string {
	switch p {
	case LoadJourney:
		return "load_journey"
	case CheckAccess:
		return "check_access"
	case FetchMission:
		return "fetch_mission"
	case LoadProgress:
		return "load_progress"
	case DeliverMission:
		return "deliver_mission"
	case CreateOrder:
		return "create_order"
	case PayOrder:
		return "pay_order"
	case BulkDeliver:
		return "bulk_deliver"
	default:
		return ""
	}
}

func loadJourneyUpdate(ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadJourney,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading journey %s...", ref),
	}
}

func journeyLoadedUpdate(j *models.JourneyDetail) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadJourney,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %s (%d missions)", j.Title, len(j.MissionIDs())),
		Data:    j,
	}
}

func lockedUpdate(m *models.MissionSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckAccess,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s requires purchase", m.Title),
		Data:    m,
	}
}

func fetchMissionUpdate(m *models.MissionSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMission,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching mission %s...", m.Title),
	}
}

func progressLoadedUpdate(p models.MissionProgress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadProgress,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Status %s at %ds", p.Status, p.WatchPositionSeconds),
		Data:    p,
	}
}

func deliverUpdate(missionID int64, res *models.DeliverResult) ProgressUpdate {
	msg := fmt.Sprintf("Delivering mission %d...", missionID)
	if res != nil {
		msg = fmt.Sprintf("Mission %d delivered: +%d exp", missionID, res.ExperienceGained)
		if res.AlreadyDelivered {
			msg = fmt.Sprintf("Mission %d was already delivered", missionID)
		}
	}
	return ProgressUpdate{Phase: DeliverMission, Step: 1, Total: 1, Message: msg, Data: res}
}

func createOrderUpdate(journeyID int64, o *models.Order) ProgressUpdate {
	msg := fmt.Sprintf("Creating order for journey %d...", journeyID)
	if o != nil {
		msg = fmt.Sprintf("Order %s created (%s)", o.OrderNumber, o.Status)
	}
	return ProgressUpdate{Phase: CreateOrder, Step: 1, Total: 2, Message: msg, Data: o}
}

func payOrderUpdate(o *models.Order, done bool) ProgressUpdate {
	msg := fmt.Sprintf("Paying order %s...", o.OrderNumber)
	if done {
		msg = fmt.Sprintf("Order %s paid", o.OrderNumber)
	}
	return ProgressUpdate{Phase: PayOrder, Step: 2, Total: 2, Message: msg, Data: o}
}

func bulkDeliverUpdate(step, total int, res MissionDeliverResult) ProgressUpdate {
	if res.Error != nil {
		return ProgressUpdate{
			Phase:   BulkDeliver,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Title, res.Error),
		}
	}
	return ProgressUpdate{
		Phase:   BulkDeliver,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Title),
		Data:    res.Result,
	}
}
