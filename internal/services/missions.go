package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

func progressPath(userID, missionID int64) string {
	return fmt.Sprintf("/users/%d/missions/%d/progress", userID, missionID)
}

type updateProgressRequest struct {
	WatchPositionSeconds int `json:"watchPositionSeconds"`
}

// MissionProgress reads the user's progress on a mission.
//
// A 404 means no progress was ever recorded and yields [models.DefaultProgress] with a nil error.
func (a *APIService) MissionProgress(ctx context.Context, userID, missionID int64) (models.MissionProgress, error) {
	var out models.MissionProgress
	if err := a.do(ctx, http.MethodGet, progressPath(userID, missionID), nil, &out); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return models.DefaultProgress(missionID), nil
		}
		return models.MissionProgress{}, err
	}
	if out.MissionID == 0 {
		out.MissionID = missionID
	}
	return out, nil
}

// UpdateMissionProgress records a watch position. The answer carries the status the backend derived from it.
func (a *APIService) UpdateMissionProgress(ctx context.Context, userID, missionID int64, seconds int) (models.MissionProgress, error) {
	if seconds < 0 {
		return models.MissionProgress{}, fmt.Errorf("%w: negative watch position %d", shared.ErrInvalidArgument, seconds)
	}

	var out models.MissionProgress
	body := updateProgressRequest{WatchPositionSeconds: seconds}
	if err := a.do(ctx, http.MethodPut, progressPath(userID, missionID), body, &out); err != nil {
		return models.MissionProgress{}, err
	}
	if out.MissionID == 0 {
		out.MissionID = missionID
	}
	return out, nil
}

// DeliverMission claims the reward of a completed mission.
//
// The raw [*APIError] is returned on failure so callers can tell 409 (already delivered) apart.
func (a *APIService) DeliverMission(ctx context.Context, userID, missionID int64) (*models.DeliverResult, error) {
	var out models.DeliverResult
	if err := a.do(ctx, http.MethodPost, progressPath(userID, missionID)+"/deliver", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
