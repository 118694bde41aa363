package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

type journeyListResponse struct {
	Journeys []models.JourneyListItem `json:"journeys"`
}

// Journeys lists every published journey.
func (a *APIService) Journeys(ctx context.Context) ([]models.JourneyListItem, error) {
	var out journeyListResponse
	if err := a.do(ctx, http.MethodGet, "/journeys", nil, &out); err != nil {
		return nil, err
	}
	return out.Journeys, nil
}

// Journey fetches the full structure of a journey by numeric id or slug.
//
// Backends that only route numeric ids answer 404 for a slug; the slug is then resolved through the journey
// list and fetched again by id. A journey that cannot be found either way returns [shared.ErrJourneyNotFound].
func (a *APIService) Journey(ctx context.Context, idOrSlug string) (*models.JourneyDetail, error) {
	if idOrSlug == "" {
		return nil, fmt.Errorf("%w: journey id or slug", shared.ErrMissingArgument)
	}

	detail, err := a.journeyByID(ctx, idOrSlug)
	if err == nil || !errors.Is(err, shared.ErrNotFound) {
		return detail, err
	}
	if _, numErr := strconv.ParseInt(idOrSlug, 10, 64); numErr == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrJourneyNotFound, idOrSlug)
	}

	list, err := a.Journeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range list {
		if item.Slug == idOrSlug {
			detail, err := a.journeyByID(ctx, strconv.FormatInt(item.ID, 10))
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", shared.ErrJourneyNotFound, idOrSlug)
			}
			return detail, err
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrJourneyNotFound, idOrSlug)
}

func (a *APIService) journeyByID(ctx context.Context, id string) (*models.JourneyDetail, error) {
	var detail models.JourneyDetail
	if err := a.do(ctx, http.MethodGet, "/journeys/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MissionDetail fetches a mission's content. Locked content is refused by the backend as well,
// callers are expected to consult the purchase gate before asking.
func (a *APIService) MissionDetail(ctx context.Context, journeyID, missionID int64) (*models.MissionDetail, error) {
	var detail models.MissionDetail
	path := fmt.Sprintf("/journeys/%d/missions/%d", journeyID, missionID)
	if err := a.do(ctx, http.MethodGet, path, nil, &detail); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", shared.ErrMissionNotFound, missionID)
		}
		return nil, err
	}
	return &detail, nil
}
