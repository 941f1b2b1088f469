package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jbb1988/VF4Tester/internal/models"
	"github.com/xuri/excelize/v2"
)

// DateLayout is the locale-stable short date+time representation used
// by the CSV and report exporters. JSON keeps RFC3339 for round-tripping.
const DateLayout = "2006-01-02 15:04"

// CSVHeader is the fixed column order of the CSV export
const CSVHeader = "Test Type,Small Start,Small End,Large Start,Large End,Total Volume,Flow Rate,Accuracy,Notes,Date"

// ReportTitle is the first line of the text report model
const ReportTitle = "Water Meter Test Report"

// ExportService serializes already-filtered, already-sorted result
// sequences; it never re-filters its input.
type ExportService struct{}

// NewExportService creates a new export service instance
func NewExportService() *ExportService {
	return &ExportService{}
}

// ExportMetadata contains information about an export
type ExportMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	DateRange   string    `json:"date_range"`
	TotalTests  int       `json:"total_tests"`
}

// csvRow formats one result as a CSV data row. Fields are not
// quote-escaped: notes containing commas will misalign columns. That is
// the shipped file format, kept as a documented limitation.
func csvRow(result models.TestResult) string {
	r := result.Reading
	fields := []string{
		result.TestType.Label(),
		strconv.FormatFloat(r.SmallMeterStart, 'f', 2, 64),
		strconv.FormatFloat(r.SmallMeterEnd, 'f', 2, 64),
		strconv.FormatFloat(r.LargeMeterStart, 'f', 2, 64),
		strconv.FormatFloat(r.LargeMeterEnd, 'f', 2, 64),
		strconv.FormatFloat(r.TotalVolume, 'f', 2, 64),
		strconv.FormatFloat(r.FlowRate, 'f', 2, 64),
		strconv.FormatFloat(r.Accuracy(), 'f', 1, 64),
		result.Notes,
		result.Date.Format(DateLayout),
	}
	return strings.Join(fields, ",")
}

// GenerateCSV creates the CSV export: header row plus one row per
// result, UTF-8, \n line endings, no trailing metadata.
func (es *ExportService) GenerateCSV(results []models.TestResult) ([]byte, error) {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')

	for _, result := range results {
		b.WriteString(csvRow(result))
		b.WriteByte('\n')
	}

	return []byte(b.String()), nil
}

// GenerateDetailCSV creates the single-result detail export using the
// identical column order as the full export
func (es *ExportService) GenerateDetailCSV(result models.TestResult) ([]byte, error) {
	return es.GenerateCSV([]models.TestResult{result})
}

// GenerateJSON creates a full round-trippable JSON encoding of the
// result sequence, including IDs and RFC3339 timestamps
func (es *ExportService) GenerateJSON(results []models.TestResult) ([]byte, error) {
	if results == nil {
		results = []models.TestResult{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results as JSON: %w", err)
	}
	return data, nil
}

// GenerateReport produces the text report model: a title line followed
// by one summary line per result. Pagination is the rendering
// collaborator's concern.
func (es *ExportService) GenerateReport(results []models.TestResult) []string {
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, ReportTitle)

	for _, result := range results {
		lines = append(lines, fmt.Sprintf("%s | %.1f%% | %s",
			result.TestType.Label(),
			result.Reading.Accuracy(),
			result.Date.Format(DateLayout)))
	}

	return lines
}

// GenerateExcel creates an Excel workbook with a summary sheet and a
// test results sheet. Volume columns are labeled with the preferred
// display unit; the stored numbers are unit-agnostic and not converted.
func (es *ExportService) GenerateExcel(results []models.TestResult, prefs models.Preferences, meta ExportMetadata) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetDocProps(&excelize.DocProperties{
		Category:       "VF4 Water Meter Testing",
		Created:        meta.GeneratedAt.Format(time.RFC3339),
		Creator:        "VF4Tester",
		Description:    "Field calibration test history export",
		LastModifiedBy: "VF4Tester Backend",
		Modified:       meta.GeneratedAt.Format(time.RFC3339),
		Subject:        "Meter Accuracy Test History",
		Title:          "VF4 Test Report",
		Version:        "1.0",
	})

	if err := es.createSummarySheet(f, results, meta); err != nil {
		return nil, err
	}
	if err := es.createResultsSheet(f, results, prefs); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	return f, nil
}

// createSummarySheet creates the summary overview sheet
func (es *ExportService) createSummarySheet(f *excelize.File, results []models.TestResult, meta ExportMetadata) error {
	sheetName := "Summary"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", "VF4 Water Meter Test Report")
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "D1", headerStyle)
	f.SetRowHeight(sheetName, 1, 25)

	f.SetCellValue(sheetName, "A3", "Generated At:")
	f.SetCellValue(sheetName, "B3", meta.GeneratedAt.Format(DateLayout))
	f.SetCellValue(sheetName, "A4", "Date Range:")
	f.SetCellValue(sheetName, "B4", meta.DateRange)
	f.SetCellValue(sheetName, "A5", "Total Tests:")
	f.SetCellValue(sheetName, "B5", meta.TotalTests)

	passing := 0
	for _, result := range results {
		if result.IsPassing() {
			passing++
		}
	}

	f.SetCellValue(sheetName, "A7", "Passing Tests:")
	f.SetCellValue(sheetName, "B7", passing)
	f.SetCellValue(sheetName, "A8", "Failing Tests:")
	f.SetCellValue(sheetName, "B8", len(results)-passing)

	f.SetCellValue(sheetName, "A9", "Average Accuracy:")
	if mean, ok := averageAccuracy(results); ok {
		f.SetCellValue(sheetName, "B9", fmt.Sprintf("%.2f%%", mean))
	} else {
		f.SetCellValue(sheetName, "B9", "No data")
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "D", 15)

	return nil
}

// createResultsSheet creates the test results sheet
func (es *ExportService) createResultsSheet(f *excelize.File, results []models.TestResult, prefs models.Preferences) error {
	sheetName := "Test Results"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create results sheet: %w", err)
	}

	unit := prefs.PreferredUnit.Label()
	headers := []string{
		"Date", "Test Type",
		"Small Start", "Small End", "Large Start", "Large End",
		fmt.Sprintf("Total Volume (%s)", unit), "Flow Rate (GPM)",
		"Accuracy (%)", "Result", "Notes",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"70AD47"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "K1", headerStyle)

	for i, result := range results {
		row := i + 2
		verdict := "FAIL"
		if result.IsPassing() {
			verdict = "PASS"
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), result.Date.Format(DateLayout))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), result.TestType.Label())
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), result.Reading.SmallMeterStart)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), result.Reading.SmallMeterEnd)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), result.Reading.LargeMeterStart)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), result.Reading.LargeMeterEnd)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), result.Reading.TotalVolume)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), result.Reading.FlowRate)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), result.Reading.Accuracy())
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), verdict)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), result.Notes)
	}

	f.SetColWidth(sheetName, "A", "A", 18)
	f.SetColWidth(sheetName, "B", "J", 13)
	f.SetColWidth(sheetName, "K", "K", 30)

	return nil
}

// GenerateExcelBytes renders the workbook to bytes; either the full
// file is returned or nothing at all
func (es *ExportService) GenerateExcelBytes(results []models.TestResult, prefs models.Preferences, meta ExportMetadata) ([]byte, error) {
	f, err := es.GenerateExcel(results, prefs, meta)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// averageAccuracy mirrors the store aggregation without importing it,
// keeping the exporters free of storage dependencies
func averageAccuracy(results []models.TestResult) (float64, bool) {
	if len(results) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range results {
		sum += r.Reading.Accuracy()
	}
	return sum / float64(len(results)), true
}
