package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"signagehub/internal/model"
)

type scheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a read-only schedule repository
func NewScheduleRepository(db *sqlx.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) ListByDisplay(ctx context.Context, displayID string) ([]model.Schedule, error) {
	query := `
		SELECT id, series_id, playlist_id, display_id, start_time, end_time, day_of_week,
		       start_date, end_date, priority, is_active, created_at
		FROM schedules
		WHERE display_id = $1
	`
	var schedules []model.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, displayID); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}
