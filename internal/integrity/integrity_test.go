package integrity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/balu-16/certificate-place-final/internal/certificates"
	"github.com/balu-16/certificate-place-final/pkg/bytea"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListApproved(ctx context.Context, afterID int64, limit int) ([]certificates.Student, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]certificates.Student), args.Error(1)
}

func strPtr(s string) *string { return &s }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func fixtures(t *testing.T) []certificates.Student {
	img := pngBytes(t)
	return []certificates.Student{
		{ID: 1, Name: "PDF Student", CertificateID: strPtr("C-1"),
			Certificate: strPtr(bytea.HexPrefix + hex.EncodeToString([]byte("%PDF-1.4\n%%EOF")))},
		{ID: 2, Name: "Image Student",
			Certificate: strPtr(base64.StdEncoding.EncodeToString(img))},
		{ID: 3, Name: "Broken Student",
			Certificate: strPtr(`\x2550zz`)},
		{ID: 4, Name: "Data URL Student",
			Certificate: strPtr("data:image/png;base64," + base64.StdEncoding.EncodeToString(img))},
		{ID: 5, Name: "Text Student",
			Certificate: strPtr("pending upload")},
		{ID: 6, Name: "Stored Data URL Student",
			Certificate: strPtr(bytea.HexPrefix + hex.EncodeToString([]byte("data:image/png;base64,"+base64.StdEncoding.EncodeToString(img))))},
		{ID: 7, Name: "Broken Image Student",
			Certificate: strPtr("data:image/png;base64," + base64.StdEncoding.EncodeToString(img[:16]))},
	}
}

func TestScanner_Scan(t *testing.T) {
	students := fixtures(t)
	source := new(MockSource)
	ctx := context.Background()

	source.On("ListApproved", ctx, int64(0), 2).Return(students[0:2], nil)
	source.On("ListApproved", ctx, int64(2), 2).Return(students[2:4], nil)
	source.On("ListApproved", ctx, int64(4), 2).Return(students[4:6], nil)
	source.On("ListApproved", ctx, int64(6), 2).Return(students[6:7], nil)

	scanner := NewScanner(source, nil, 2, nil)
	summary, err := scanner.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 1, summary.ValidPDF)
	assert.Equal(t, 3, summary.Images)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Unreadable)
	assert.Equal(t, 4, summary.Healthy())

	byID := map[int64]Row{}
	for _, row := range summary.Rows {
		byID[row.StudentID] = row
	}
	assert.Equal(t, bytea.FormatHex, byID[1].Format)
	assert.Equal(t, "C-1", byID[1].CertificateID)
	assert.True(t, byID[1].Valid)
	assert.Equal(t, "image/png", byID[2].ContentType)
	assert.Contains(t, byID[3].Error, "invalid hex character")
	assert.Equal(t, "image/png", byID[4].ContentType)
	assert.Equal(t, bytea.FormatBase64, byID[4].Format)
	assert.False(t, byID[5].Healthy())
	assert.True(t, byID[6].DataURL)
	assert.Equal(t, bytea.FormatHex, byID[6].Format)
	assert.Equal(t, "image/png", byID[6].ContentType)
	assert.True(t, byID[6].Healthy())
	assert.True(t, byID[7].DataURL)
	assert.Contains(t, byID[7].Error, "failed to load image data")

	source.AssertExpectations(t)
}

func TestScanner_SourceError(t *testing.T) {
	source := new(MockSource)
	ctx := context.Background()
	source.On("ListApproved", ctx, int64(0), 10).Return(nil, errors.New("connection refused"))

	summary, err := NewScanner(source, nil, 10, nil).Scan(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, summary.Total)
}

func TestScanner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := new(MockSource)
	_, err := NewScanner(source, nil, 10, nil).Scan(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	source.AssertNotCalled(t, "ListApproved", mock.Anything, mock.Anything, mock.Anything)
}

func sampleSummary() *Summary {
	start := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	summary := &Summary{StartedAt: start, FinishedAt: start.Add(2 * time.Second)}
	summary.add(Row{StudentID: 1, Name: "A", Format: bytea.FormatHex, Valid: true, DecodedLength: 14})
	summary.add(Row{StudentID: 2, Name: "B", Format: bytea.FormatHex, Error: "invalid hex character"})
	return summary
}

func TestExcelExporter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(DefaultExcelOptions()).Write(sampleSummary(), &buf))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{rowsSheet, summarySheet}, file.GetSheetList())

	rows, err := file.GetRows(rowsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, rowColumns, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "pdf", rows[1][8])
	assert.Equal(t, "failed", rows[2][8])
	assert.Equal(t, "invalid hex character", rows[2][9])

	total, err := file.GetCellValue(summarySheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

func TestExcelExporter_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := NewExcelExporter(DefaultExcelOptions()).Save(sampleSummary(), dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "certificate-scan-20261016-030000.xlsx"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"0 0 3 * * *", true},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_RunNow(t *testing.T) {
	source := new(MockSource)
	source.On("ListApproved", mock.Anything, int64(0), 10).Return(fixtures(t)[:1], nil)

	dir := t.TempDir()
	scheduler := NewScheduler(NewScanner(source, nil, 10, nil), nil, dir, nil)

	result, err := scheduler.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.ValidPDF)
	assert.Equal(t, dir, filepath.Dir(result.ReportPath))
	assert.Same(t, result, scheduler.LastResult())
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(NewScanner(new(MockSource), nil, 10, nil), nil, "", nil)

	assert.Error(t, scheduler.Start("bogus"))
	assert.True(t, scheduler.NextRun().IsZero())

	require.NoError(t, scheduler.Start("@hourly"))
	assert.Error(t, scheduler.Start("@hourly"))
	assert.True(t, scheduler.NextRun().After(time.Now()))

	scheduler.Stop()
	assert.True(t, scheduler.NextRun().IsZero())
}
