package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const universeCacheKeyPrefix = "timetable:universe:"

type scheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type classroomLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type teacherLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type timeSlotLister interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.TimeSlot, error)
}

type availabilityLister interface {
	ListByTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherAvailabilityWindow, error)
}

type universeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ResourceLoader assembles the resource universe of a schedule and caches it.
type ResourceLoader struct {
	schedules    scheduleReader
	classrooms   classroomLister
	teachers     teacherLister
	slots        timeSlotLister
	availability availabilityLister
	cache        universeCache
	metrics      *MetricsService
	logger       *zap.Logger
	ttl          time.Duration
}

// ResourceLoaderConfig bundles the loader's collaborators.
type ResourceLoaderConfig struct {
	Schedules    scheduleReader
	Classrooms   classroomLister
	Teachers     teacherLister
	TimeSlots    timeSlotLister
	Availability availabilityLister
	Cache        universeCache
	Metrics      *MetricsService
	Logger       *zap.Logger
	TTL          time.Duration
}

// NewResourceLoader constructs a ResourceLoader. Cache and Metrics may be nil.
func NewResourceLoader(cfg ResourceLoaderConfig) *ResourceLoader {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ResourceLoader{
		schedules:    cfg.Schedules,
		classrooms:   cfg.Classrooms,
		teachers:     cfg.Teachers,
		slots:        cfg.TimeSlots,
		availability: cfg.Availability,
		cache:        cfg.Cache,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		ttl:          cfg.TTL,
	}
}

// EnsureSchedule returns the schedule or NOT_FOUND.
func (l *ResourceLoader) EnsureSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	schedule, err := l.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// Universe returns the classrooms, legal slots, teachers and availability windows for a schedule.
func (l *ResourceLoader) Universe(ctx context.Context, scheduleID string) (models.ResourceUniverse, error) {
	key := UniverseCacheKey(scheduleID)
	if l.cache != nil {
		var cached models.ResourceUniverse
		if hit, err := l.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	universe, err := l.load(ctx, scheduleID)
	if err != nil {
		return models.ResourceUniverse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule resources")
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, universe, l.ttl); err != nil {
			l.logger.Warn("resource universe not cached", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
	}
	return universe, nil
}

// Invalidate drops the cached universe of a schedule.
func (l *ResourceLoader) Invalidate(ctx context.Context, scheduleID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, UniverseCacheKey(scheduleID)); err != nil {
		l.logger.Warn("resource universe invalidation failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

func (l *ResourceLoader) load(ctx context.Context, scheduleID string) (models.ResourceUniverse, error) {
	start := time.Now()
	defer func() {
		l.metrics.ObserveDBQuery("resource_universe", time.Since(start))
	}()

	rooms, err := l.classrooms.ListIDs(ctx)
	if err != nil {
		return models.ResourceUniverse{}, err
	}
	teachers, err := l.teachers.ListActiveIDs(ctx)
	if err != nil {
		return models.ResourceUniverse{}, err
	}
	slots, err := l.slots.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return models.ResourceUniverse{}, err
	}
	windows, err := l.availability.ListByTeachers(ctx, teachers)
	if err != nil {
		return models.ResourceUniverse{}, err
	}

	return models.ResourceUniverse{
		Classrooms:   rooms,
		TimeSlots:    slots,
		Teachers:     teachers,
		Availability: models.NewTeacherAvailability(teachers, windows),
	}, nil
}

// UniverseCacheKey is the cache key of a schedule's resource universe. A "*" id yields the pattern for all of them.
func UniverseCacheKey(scheduleID string) string {
	return fmt.Sprintf("%s%s", universeCacheKeyPrefix, scheduleID)
}
