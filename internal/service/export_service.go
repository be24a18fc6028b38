package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type placementLister interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Placement, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered timetable ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Score       models.Score
	Entries     int
}

// ExportService renders the committed placements of a schedule as CSV or PDF.
type ExportService struct {
	placements placementLister
	resources  universeProvider
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
}

var timetableHeaders = []string{"Day", "Start", "End", "Class", "Subject", "Teacher", "Classroom"}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(placements placementLister, resources universeProvider, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		placements: placements,
		resources:  resources,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
		now:        time.Now,
	}
}

// Export renders the schedule in the requested format. An empty format means CSV.
func (s *ExportService) Export(ctx context.Context, scheduleID string, format ExportFormat) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	schedule, err := s.resources.EnsureSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	placements, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	universe, err := s.resources.Universe(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	breakdown := ScoreBreakdownOf(models.ScheduleSolution{ScheduleID: scheduleID, Placements: placements, Universe: universe})
	score := breakdown.Score()
	generatedAt := s.now().UTC()

	dataset := timetableDataset(schedule, placements, breakdown, generatedAt)

	result := &ExportResult{Score: score, Entries: len(placements)}
	switch format {
	case ExportFormatCSV:
		result.Data, err = s.csv.Render(dataset)
		result.ContentType = "text/csv"
	case ExportFormatPDF:
		result.Data, err = s.pdf.Render(dataset)
		result.ContentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	result.Filename = buildExportFilename(schedule, format, generatedAt)

	s.logger.Sugar().Debugw("timetable exported", "schedule_id", scheduleID, "format", format, "entries", len(placements), "bytes", len(result.Data))
	return result, nil
}

func timetableDataset(schedule *models.Schedule, placements []models.Placement, breakdown models.ScoreBreakdown, generatedAt time.Time) export.Dataset {
	sorted := sortedForTimetable(placements)
	rows := make([]map[string]string, 0, len(sorted))
	for _, p := range sorted {
		row := map[string]string{
			"Day":       "-",
			"Start":     "-",
			"End":       "-",
			"Class":     p.ClassID,
			"Subject":   p.SubjectID,
			"Teacher":   p.TeacherID,
			"Classroom": p.Classroom(),
		}
		if p.Slot != nil {
			row["Day"] = models.DayName(p.Slot.DayOfWeek)
			row["Start"] = p.Slot.Start.String()
			row["End"] = p.Slot.End.String()
		}
		rows = append(rows, row)
	}

	score := breakdown.Score()
	name := schedule.Name
	if name == "" {
		name = schedule.ID
	}
	return export.Dataset{
		Title: fmt.Sprintf("Timetable %s", name),
		Meta: []export.Field{
			{Label: "Score", Value: score.String()},
			{Label: "Feasible", Value: fmt.Sprintf("%t", score.Feasible())},
			{Label: "Hard violations", Value: fmt.Sprintf("%d", breakdown.HardViolations())},
			{Label: "Idle minutes", Value: fmt.Sprintf("%d", breakdown.IdleMinutes)},
			{Label: "Entries", Value: fmt.Sprintf("%d", len(placements))},
			{Label: "Generated", Value: generatedAt.Format(time.RFC3339)},
		},
		Headers: timetableHeaders,
		Rows:    rows,
	}
}

// sortedForTimetable orders placements by day, start and class. Unplaced entries go last.
func sortedForTimetable(placements []models.Placement) []models.Placement {
	sorted := models.ClonePlacements(placements)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.Slot == nil) != (b.Slot == nil) {
			return b.Slot == nil
		}
		if a.Slot != nil {
			if a.Slot.DayOfWeek != b.Slot.DayOfWeek {
				return a.Slot.DayOfWeek < b.Slot.DayOfWeek
			}
			if a.Slot.Start != b.Slot.Start {
				return a.Slot.Start < b.Slot.Start
			}
		}
		return a.ClassID < b.ClassID
	})
	return sorted
}

func buildExportFilename(schedule *models.Schedule, format ExportFormat, at time.Time) string {
	name := schedule.Name
	if name == "" {
		name = schedule.ID
	}
	return fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(strings.ToLower(name)), at.Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
