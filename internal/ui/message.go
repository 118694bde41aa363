package ui

import (
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/tasks"
)

// snapshotMsg carries a new journey snapshot from the cache.
type snapshotMsg struct {
	journey *models.JourneyDetail
}

// changeMsg signals that the cache published a new snapshot.
type changeMsg struct{}

// deliveredMsg is the outcome of a single delivery.
type deliveredMsg struct {
	missionID int64
	result    *models.DeliverResult
	err       error
}

type progressUpdateMsg tasks.ProgressUpdate

// bulkCompleteMsg ends a deliver-all run.
type bulkCompleteMsg struct {
	result *tasks.BulkDeliverResult
	err    error
}
