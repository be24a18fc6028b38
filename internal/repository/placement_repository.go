package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PlacementRepository persists schedule entries (lesson placements).
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository builds repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

// placementRow mirrors schedule_entries where classroom and slot columns are nullable.
type placementRow struct {
	ID          string         `db:"id"`
	ScheduleID  string         `db:"schedule_id"`
	ClassID     string         `db:"class_id"`
	SubjectID   string         `db:"subject_id"`
	TeacherID   string         `db:"teacher_id"`
	ClassroomID sql.NullString `db:"classroom_id"`
	DayOfWeek   sql.NullInt64  `db:"day_of_week"`
	StartMinute sql.NullInt64  `db:"start_minute"`
	EndMinute   sql.NullInt64  `db:"end_minute"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newPlacementRow(p models.Placement) placementRow {
	row := placementRow{
		ID:         p.ID,
		ScheduleID: p.ScheduleID,
		ClassID:    p.ClassID,
		SubjectID:  p.SubjectID,
		TeacherID:  p.TeacherID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.HasClassroom() {
		row.ClassroomID = sql.NullString{String: *p.ClassroomID, Valid: true}
	}
	if p.Slot != nil {
		row.DayOfWeek = sql.NullInt64{Int64: int64(p.Slot.DayOfWeek), Valid: true}
		row.StartMinute = sql.NullInt64{Int64: int64(p.Slot.Start), Valid: true}
		row.EndMinute = sql.NullInt64{Int64: int64(p.Slot.End), Valid: true}
	}
	return row
}

func (row placementRow) toModel() models.Placement {
	p := models.Placement{
		ID:         row.ID,
		ScheduleID: row.ScheduleID,
		LessonRequirement: models.LessonRequirement{
			ClassID:   row.ClassID,
			SubjectID: row.SubjectID,
			TeacherID: row.TeacherID,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.ClassroomID.Valid {
		p.ClassroomID = models.StringPtr(row.ClassroomID.String)
	}
	if row.DayOfWeek.Valid && row.StartMinute.Valid && row.EndMinute.Valid {
		p.Slot = &models.TimeSlot{
			DayOfWeek: int(row.DayOfWeek.Int64),
			Start:     models.ClockTime(row.StartMinute.Int64),
			End:       models.ClockTime(row.EndMinute.Int64),
		}
	}
	return p
}

const placementColumns = `id, schedule_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_minute, end_minute, created_at, updated_at`

const insertPlacementQuery = `
INSERT INTO schedule_entries (id, schedule_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_minute, end_minute, created_at, updated_at)
VALUES (:id, :schedule_id, :class_id, :subject_id, :teacher_id, :classroom_id, :day_of_week, :start_minute, :end_minute, :created_at, :updated_at)`

func (r *PlacementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListBySchedule returns placements of a schedule in creation order, which is the order scoring visits them.
func (r *PlacementRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Placement, error) {
	query := `SELECT ` + placementColumns + ` FROM schedule_entries WHERE schedule_id = $1 ORDER BY created_at ASC, id ASC`
	var rows []placementRow
	if err := r.db.SelectContext(ctx, &rows, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	placements := make([]models.Placement, 0, len(rows))
	for _, row := range rows {
		placements = append(placements, row.toModel())
	}
	return placements, nil
}

// FindByID loads a single placement of a schedule.
func (r *PlacementRepository) FindByID(ctx context.Context, scheduleID, id string) (*models.Placement, error) {
	query := `SELECT ` + placementColumns + ` FROM schedule_entries WHERE schedule_id = $1 AND id = $2`
	var row placementRow
	if err := r.db.GetContext(ctx, &row, query, scheduleID, id); err != nil {
		return nil, err
	}
	placement := row.toModel()
	return &placement, nil
}

// Create inserts a placement, assigning id and timestamps when missing.
func (r *PlacementRepository) Create(ctx context.Context, placement *models.Placement) error {
	now := time.Now().UTC()
	if placement.ID == "" {
		placement.ID = uuid.NewString()
	}
	if placement.CreatedAt.IsZero() {
		placement.CreatedAt = now
	}
	placement.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, insertPlacementQuery, newPlacementRow(*placement)); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// Update rewrites the classroom and slot of a placement along with its lesson fields.
func (r *PlacementRepository) Update(ctx context.Context, placement *models.Placement) error {
	placement.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE schedule_entries
SET class_id = :class_id,
    subject_id = :subject_id,
    teacher_id = :teacher_id,
    classroom_id = :classroom_id,
    day_of_week = :day_of_week,
    start_minute = :start_minute,
    end_minute = :end_minute,
    updated_at = :updated_at
WHERE id = :id AND schedule_id = :schedule_id`
	res, err := r.db.NamedExecContext(ctx, query, newPlacementRow(*placement))
	if err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return ensureAffected(res)
}

// Delete removes a placement from a schedule.
func (r *PlacementRepository) Delete(ctx context.Context, scheduleID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE schedule_id = $1 AND id = $2`, scheduleID, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return ensureAffected(res)
}

// ReplaceForSchedule swaps the full placement list of a schedule. Pass a transaction to make it atomic.
func (r *PlacementRepository) ReplaceForSchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string, placements []models.Placement) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM schedule_entries WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("clear schedule entries: %w", err)
	}

	now := time.Now().UTC()
	for i := range placements {
		p := placements[i]
		p.ScheduleID = scheduleID
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, insertPlacementQuery, newPlacementRow(p)); err != nil {
			return fmt.Errorf("insert schedule entry %s: %w", p.ID, err)
		}
	}
	return nil
}

func ensureAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
