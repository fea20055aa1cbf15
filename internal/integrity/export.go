package integrity

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	rowsSheet    = "Certificates"
	summarySheet = "Summary"
)

var rowColumns = []string{
	"Student ID", "Name", "Certificate ID", "Input Type", "Format",
	"Valid PDF", "Decoded Bytes", "Content Type", "Status", "Error",
}

// ExcelOptions controls the scan workbook layout.
type ExcelOptions struct {
	HeaderFill   string
	HeaderFont   string
	FailureFill  string
	FreezeHeader bool
	AutoFilter   bool
	MinWidth     float64
	MaxWidth     float64
}

func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		HeaderFill:   "4472C4",
		HeaderFont:   "FFFFFF",
		FailureFill:  "F8CBAD",
		FreezeHeader: true,
		AutoFilter:   true,
		MinWidth:     10,
		MaxWidth:     50,
	}
}

// ExcelExporter writes scan summaries as XLSX workbooks.
type ExcelExporter struct {
	options ExcelOptions
}

func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{options: options}
}

// ReportFilename names a workbook after the scan start time.
func ReportFilename(startedAt time.Time) string {
	return fmt.Sprintf("certificate-scan-%s.xlsx", startedAt.UTC().Format("20060102-150405"))
}

// Write renders summary into w.
func (e *ExcelExporter) Write(summary *Summary, w io.Writer) error {
	file, err := e.build(summary)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Write(w)
}

// Save writes the workbook into dir and returns its path.
func (e *ExcelExporter) Save(summary *Summary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := e.build(summary)
	if err != nil {
		return "", err
	}
	defer file.Close()

	path := filepath.Join(dir, ReportFilename(summary.StartedAt))
	if err := file.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save scan report: %w", err)
	}
	return path, nil
}

func (e *ExcelExporter) build(summary *Summary) (*excelize.File, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", rowsSheet); err != nil {
		file.Close()
		return nil, err
	}
	if err := e.writeRows(file, summary.Rows); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write scan rows: %w", err)
	}
	if err := e.writeSummary(file, summary); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write scan summary: %w", err)
	}
	return file, nil
}

func (e *ExcelExporter) writeRows(file *excelize.File, rows []Row) error {
	headerStyle, err := e.headerStyle(file)
	if err != nil {
		return err
	}
	failureStyle, err := file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.FailureFill}},
	})
	if err != nil {
		return err
	}

	widths := make([]float64, len(rowColumns))
	for i, col := range rowColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(rowsSheet, cell, col); err != nil {
			return err
		}
		widths[i] = estimateWidth(col)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(rowColumns), 1)
	if err := file.SetCellStyle(rowsSheet, first, last, headerStyle); err != nil {
		return err
	}

	for r, row := range rows {
		rowNum := r + 2
		values := []interface{}{
			row.StudentID,
			row.Name,
			row.CertificateID,
			row.InputType,
			string(row.Format),
			row.Valid,
			row.DecodedLength,
			row.ContentType,
			rowStatus(row),
			row.Error,
		}
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := file.SetSheetRow(rowsSheet, start, &values); err != nil {
			return err
		}
		for i, v := range values {
			if w := estimateWidth(v); w > widths[i] {
				widths[i] = w
			}
		}
		if !row.Healthy() {
			end, _ := excelize.CoordinatesToCellName(len(rowColumns), rowNum)
			if err := file.SetCellStyle(rowsSheet, start, end, failureStyle); err != nil {
				return err
			}
		}
	}

	if e.options.FreezeHeader {
		if err := file.SetPanes(rowsSheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	if e.options.AutoFilter && len(rows) > 0 {
		if err := file.AutoFilter(rowsSheet, first+":"+last, nil); err != nil {
			return err
		}
	}
	return e.applyWidths(file, rowsSheet, widths)
}

func (e *ExcelExporter) writeSummary(file *excelize.File, summary *Summary) error {
	if _, err := file.NewSheet(summarySheet); err != nil {
		return err
	}
	headerStyle, err := e.headerStyle(file)
	if err != nil {
		return err
	}

	pairs := [][]interface{}{
		{"Metric", "Value"},
		{"Started", summary.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished", summary.FinishedAt.UTC().Format(time.RFC3339)},
		{"Duration", summary.Duration().String()},
		{"Total", summary.Total},
		{"Valid PDF", summary.ValidPDF},
		{"Images", summary.Images},
		{"Unreadable", summary.Unreadable},
		{"Failed", summary.Failed},
	}
	for i, pair := range pairs {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow(summarySheet, cell, &pair); err != nil {
			return err
		}
	}
	if err := file.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return file.SetColWidth(summarySheet, "A", "B", 24)
}

func (e *ExcelExporter) headerStyle(file *excelize.File) (int, error) {
	return file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: e.options.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

func (e *ExcelExporter) applyWidths(file *excelize.File, sheet string, widths []float64) error {
	for i, width := range widths {
		if width < e.options.MinWidth {
			width = e.options.MinWidth
		}
		if width > e.options.MaxWidth {
			width = e.options.MaxWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := file.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func rowStatus(row Row) string {
	switch {
	case row.Error != "":
		return "failed"
	case row.Valid:
		return "pdf"
	case isImage(row.ContentType):
		return "image"
	default:
		return "unreadable"
	}
}

// estimateWidth approximates the display width of a cell value.
func estimateWidth(val interface{}) float64 {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return float64(len(s)) * 1.2
}
