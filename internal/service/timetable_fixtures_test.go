package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func mkSlot(day int, start, end string) models.TimeSlot {
	return models.TimeSlot{DayOfWeek: day, Start: models.MustClock(start), End: models.MustClock(end)}
}

func mkSlotPtr(day int, start, end string) *models.TimeSlot {
	s := mkSlot(day, start, end)
	return &s
}

func mkPlacement(id, class, teacher, room string, slot *models.TimeSlot) models.Placement {
	p := models.Placement{
		ID:                id,
		ScheduleID:        "sched-1",
		LessonRequirement: models.LessonRequirement{ClassID: class, SubjectID: "subj-" + id, TeacherID: teacher},
		Slot:              slot,
	}
	if room != "" {
		p.ClassroomID = models.StringPtr(room)
	}
	return p
}

func window(teacher string, day int, start, end string) models.TeacherAvailabilityWindow {
	return models.TeacherAvailabilityWindow{TeacherID: teacher, DayOfWeek: day, Start: models.MustClock(start), End: models.MustClock(end)}
}

// weekdayAvailability makes every listed teacher available Monday to Friday 07:00-17:00.
func weekdayAvailability(teachers ...string) models.TeacherAvailability {
	windows := make([]models.TeacherAvailabilityWindow, 0, len(teachers)*5)
	for _, teacher := range teachers {
		for day := 1; day <= 5; day++ {
			windows = append(windows, window(teacher, day, "07:00", "17:00"))
		}
	}
	return models.NewTeacherAvailability(teachers, windows)
}

func hourlySlots(days []int, fromHour, toHour int) []models.TimeSlot {
	slots := make([]models.TimeSlot, 0)
	for _, day := range days {
		for hour := fromHour; hour < toHour; hour++ {
			slots = append(slots, models.TimeSlot{
				DayOfWeek: day,
				Start:     models.ClockTime(hour * 60),
				End:       models.ClockTime((hour + 1) * 60),
			})
		}
	}
	return slots
}
