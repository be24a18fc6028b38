package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// seed creates a schedule with a regular grid of periods and gives the listed teachers
// availability over the whole school day.
func main() {
	var (
		name     string
		termID   string
		days     int
		dayStart string
		periods  int
		length   time.Duration
		breakLen time.Duration
		teachers string
	)
	flag.StringVar(&name, "name", "Draft timetable", "schedule name")
	flag.StringVar(&termID, "term", "", "term id the schedule belongs to")
	flag.IntVar(&days, "days", 5, "school days per week, starting Monday")
	flag.StringVar(&dayStart, "start", "07:00", "first period start (HH:MM)")
	flag.IntVar(&periods, "periods", 8, "periods per day")
	flag.DurationVar(&length, "length", 45*time.Minute, "period length")
	flag.DurationVar(&breakLen, "break", 0, "gap between periods")
	flag.StringVar(&teachers, "teachers", "", "comma separated teacher ids to mark available")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	first, err := models.ParseClock(dayStart)
	if err != nil {
		logr.Fatal("invalid start", zap.Error(err))
	}
	grid, err := buildGrid(days, first, periods, length, breakLen)
	if err != nil {
		logr.Fatal("invalid grid", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	schedules := repository.NewScheduleRepository(db)
	slots := repository.NewTimeSlotRepository(db)
	classrooms := repository.NewClassroomRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	availability := repository.NewTeacherAvailabilityRepository(db)

	schedule := &models.Schedule{TermID: termID, Name: name}
	if err := schedules.Create(ctx, schedule); err != nil {
		logr.Fatal("failed to create schedule", zap.Error(err))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		logr.Fatal("failed to begin transaction", zap.Error(err))
	}
	rows := make([]models.ScheduleTimeSlot, 0, len(grid))
	for _, slot := range grid {
		rows = append(rows, models.ScheduleTimeSlot{ScheduleID: schedule.ID, TimeSlot: slot})
	}
	if err := slots.UpsertBatch(ctx, tx, rows); err != nil {
		_ = tx.Rollback()
		logr.Fatal("failed to register time slots", zap.Error(err))
	}
	if err := tx.Commit(); err != nil {
		logr.Fatal("failed to commit time slots", zap.Error(err))
	}

	rooms, err := classrooms.List(ctx)
	if err != nil {
		logr.Fatal("failed to list classrooms", zap.Error(err))
	}
	if len(rooms) == 0 {
		logr.Warn("no classrooms registered; entries can only be placed without a room")
	}

	dayEnd := grid[len(grid)-1].End
	marked := 0
	for _, teacherID := range splitIDs(teachers) {
		teacher, err := teacherRepo.FindByID(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				logr.Warn("teacher not found, skipping", zap.String("teacher_id", teacherID))
				continue
			}
			logr.Fatal("failed to load teacher", zap.String("teacher_id", teacherID), zap.Error(err))
		}
		for day := 1; day <= days; day++ {
			window := &models.TeacherAvailabilityWindow{TeacherID: teacher.ID, DayOfWeek: day, Start: first, End: dayEnd}
			if err := availability.Create(ctx, window); err != nil {
				logr.Fatal("failed to create availability", zap.String("teacher_id", teacher.ID), zap.Error(err))
			}
		}
		marked++
	}

	if cfg.Cache.Enabled {
		if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
			logr.Warn("skipping cache flush", zap.Error(err))
		} else {
			defer client.Close()
			cacheSvc := service.NewCacheService(repository.NewCacheRepository(client, logr), nil, cfg.Cache.TTL, logr, true)
			if err := cacheSvc.Invalidate(ctx, service.UniverseCacheKey("*")); err != nil {
				logr.Warn("failed to flush cached universes", zap.Error(err))
			}
		}
	}

	logr.Info("schedule seeded",
		zap.String("schedule_id", schedule.ID),
		zap.Int("time_slots", len(rows)),
		zap.Int("classrooms", len(rooms)),
		zap.Int("teachers", marked),
	)
}

func buildGrid(days int, first models.ClockTime, periods int, length, gap time.Duration) ([]models.TimeSlot, error) {
	if days < 1 || days > 7 {
		return nil, errors.New("days must be between 1 and 7")
	}
	if periods < 1 {
		return nil, errors.New("periods must be positive")
	}
	step := int(length / time.Minute)
	pause := int(gap / time.Minute)
	if step <= 0 || pause < 0 {
		return nil, errors.New("period length must be at least a minute")
	}

	grid := make([]models.TimeSlot, 0, days*periods)
	for day := 1; day <= days; day++ {
		start := first
		for p := 0; p < periods; p++ {
			slot := models.TimeSlot{DayOfWeek: day, Start: start, End: start + models.ClockTime(step)}
			if !slot.Valid() {
				return nil, errors.New("periods run past midnight")
			}
			grid = append(grid, slot)
			start = slot.End + models.ClockTime(pause)
		}
	}
	return grid, nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
