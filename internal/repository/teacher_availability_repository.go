package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherAvailabilityRepository persists teacher availability windows.
type TeacherAvailabilityRepository struct {
	db *sqlx.DB
}

// NewTeacherAvailabilityRepository constructs the repository.
func NewTeacherAvailabilityRepository(db *sqlx.DB) *TeacherAvailabilityRepository {
	return &TeacherAvailabilityRepository{db: db}
}

// ListByTeachers returns the windows of the given teachers.
func (r *TeacherAvailabilityRepository) ListByTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherAvailabilityWindow, error) {
	if len(teacherIDs) == 0 {
		return []models.TeacherAvailabilityWindow{}, nil
	}
	const query = `SELECT id, teacher_id, day_of_week, start_minute, end_minute, created_at
FROM teacher_availability_windows WHERE teacher_id = ANY($1) ORDER BY teacher_id ASC, day_of_week ASC, start_minute ASC`
	var windows []models.TeacherAvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list teacher availability: %w", err)
	}
	return windows, nil
}

// Create stores a new availability window.
func (r *TeacherAvailabilityRepository) Create(ctx context.Context, window *models.TeacherAvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_availability_windows (id, teacher_id, day_of_week, start_minute, end_minute, created_at)
		VALUES (:id, :teacher_id, :day_of_week, :start_minute, :end_minute, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create teacher availability: %w", err)
	}
	return nil
}
