package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimeSlotRepository manages the legal time slots of a schedule.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository builds repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func (r *TimeSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch registers time slots for a schedule, ignoring ones already present.
func (r *TimeSlotRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.ScheduleTimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO schedule_time_slots (id, schedule_id, day_of_week, start_minute, end_minute)
VALUES (:id, :schedule_id, :day_of_week, :start_minute, :end_minute)
ON CONFLICT (schedule_id, day_of_week, start_minute, end_minute) DO NOTHING`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("upsert schedule time slot: %w", err)
		}
	}
	return nil
}

// ListBySchedule returns slots ordered by day/time for a schedule.
func (r *TimeSlotRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.TimeSlot, error) {
	const query = `SELECT id, schedule_id, day_of_week, start_minute, end_minute
FROM schedule_time_slots WHERE schedule_id = $1 ORDER BY day_of_week ASC, start_minute ASC, end_minute ASC`
	var rows []models.ScheduleTimeSlot
	if err := r.db.SelectContext(ctx, &rows, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule time slots: %w", err)
	}
	slots := make([]models.TimeSlot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, row.TimeSlot)
	}
	return slots, nil
}
