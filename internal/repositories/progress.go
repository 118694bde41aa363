package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

// ProgressRepository keeps the highest mission status and the last watch position seen per user.
//
// It backs the mission state machine so a status reached in one run is not lost when the next run
// starts from a backend that has not caught up yet.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new [ProgressRepository] with the given database connection
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// SaveStatus records status for a mission. A status lower than the stored one is ignored.
func (r *ProgressRepository) SaveStatus(ctx context.Context, userID, missionID int64, status models.MissionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, status)
	}

	query := `
		INSERT INTO mission_progress (user_id, mission_id, status, status_rank, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, mission_id) DO UPDATE
		SET status = excluded.status, status_rank = excluded.status_rank, updated_at = excluded.updated_at
		WHERE excluded.status_rank > mission_progress.status_rank
	`

	if _, err := r.db.ExecContext(ctx, query, userID, missionID, string(status), status.Rank(), time.Now()); err != nil {
		return fmt.Errorf("failed to save mission status: %w", err)
	}
	return nil
}

// SavePosition records the last reported watch position.
func (r *ProgressRepository) SavePosition(ctx context.Context, userID, missionID int64, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative position %d", shared.ErrInvalidArgument, seconds)
	}

	query := `
		INSERT INTO mission_progress (user_id, mission_id, status, status_rank, watch_position_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, mission_id) DO UPDATE
		SET watch_position_seconds = excluded.watch_position_seconds, updated_at = excluded.updated_at
	`

	uncompleted := models.StatusUncompleted
	_, err := r.db.ExecContext(ctx, query, userID, missionID, string(uncompleted), uncompleted.Rank(), seconds, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save watch position: %w", err)
	}
	return nil
}

// Get returns the stored progress for a mission, or [shared.ErrNotFound].
func (r *ProgressRepository) Get(ctx context.Context, userID, missionID int64) (models.MissionProgress, error) {
	var (
		status   string
		position int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT status, watch_position_seconds
		FROM mission_progress
		WHERE user_id = ? AND mission_id = ?
	`, userID, missionID).Scan(&status, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MissionProgress{}, fmt.Errorf("%w: progress for mission %d", shared.ErrNotFound, missionID)
	}
	if err != nil {
		return models.MissionProgress{}, fmt.Errorf("failed to query progress: %w", err)
	}

	return models.MissionProgress{
		MissionID:            missionID,
		Status:               models.MissionStatus(status),
		WatchPositionSeconds: position,
	}, nil
}

// Statuses returns every stored status for a user, keyed by mission.
func (r *ProgressRepository) Statuses(ctx context.Context, userID int64) (map[int64]models.MissionStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mission_id, status
		FROM mission_progress
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]models.MissionStatus)
	for rows.Next() {
		var (
			missionID int64
			status    string
		)
		if err := rows.Scan(&missionID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		out[missionID] = models.MissionStatus(status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Clear removes every row of a user.
func (r *ProgressRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mission_progress WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}
