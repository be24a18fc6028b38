package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("font missing")
}

func newExportFixture(items ...models.Placement) *ExportService {
	svc := NewExportService(&placementStoreStub{items: items}, &universeStub{universe: testUniverse()}, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceCSVSortsByDayAndStart(t *testing.T) {
	svc := newExportFixture(
		mkPlacement("e1", "C2", "T1", "R1", mkSlotPtr(2, "08:00", "09:00")),
		mkPlacement("e2", "C1", "T2", "", nil),
		mkPlacement("e3", "C1", "T1", "R2", mkSlotPtr(1, "10:00", "11:00")),
		mkPlacement("e4", "C2", "T2", "R1", mkSlotPtr(1, "08:00", "09:00")),
	)

	result, err := svc.Export(context.Background(), "sched-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "timetable_semester_1_20240715_093000.csv", result.Filename)
	assert.Equal(t, 4, result.Entries)

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, timetableHeaders, records[0])
	assert.Equal(t, []string{"MONDAY", "08:00", "09:00", "C2", "subj-e4", "T2", "R1"}, records[1])
	assert.Equal(t, []string{"MONDAY", "10:00", "11:00", "C1", "subj-e3", "T1", "R2"}, records[2])
	assert.Equal(t, "TUESDAY", records[3][0])
	assert.Equal(t, []string{"-", "-", "-", "C1", "subj-e2", "T2", ""}, records[4])
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportFixture(mkPlacement("e1", "C1", "T1", "R1", mkSlotPtr(1, "08:00", "09:00")))

	result, err := svc.Export(context.Background(), "sched-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
	assert.True(t, result.Score.Feasible())
}

func TestExportServiceDefaultsToCSV(t *testing.T) {
	svc := newExportFixture()

	result, err := svc.Export(context.Background(), "sched-1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, 0, result.Entries)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture()

	_, err := svc.Export(context.Background(), "sched-1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePropagatesFailures(t *testing.T) {
	missing := NewExportService(&placementStoreStub{}, &universeStub{scheduleErr: appErrors.Clone(appErrors.ErrNotFound, "schedule not found")}, nil, nil, nil)
	_, err := missing.Export(context.Background(), "sched-9", ExportFormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	broken := NewExportService(&placementStoreStub{}, &universeStub{universe: testUniverse()}, nil, nil, failingRenderer{})
	_, err = broken.Export(context.Background(), "sched-1", ExportFormatPDF)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "x_ii-a", sanitizeFilename("x ii/a"))
	assert.Len(t, sanitizeFilename(strings.Repeat("a", 150)), 100)
}
