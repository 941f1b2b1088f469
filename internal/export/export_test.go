package export

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jbb1988/VF4Tester/internal/models"
)

func sampleResults() []models.TestResult {
	first := models.NewTestResult(models.TestTypeLowFlow, models.MeterReading{
		SmallMeterStart: 10, SmallMeterEnd: 20,
		TotalVolume: 10, FlowRate: 5,
	}, "bench 1")
	first.Date = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	second := models.NewTestResult(models.TestTypeHighFlow, models.MeterReading{
		SmallMeterStart: 15, SmallMeterEnd: 25,
		TotalVolume: 50, FlowRate: 30,
	}, "hydrant run")
	second.Date = time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)

	return []models.TestResult{*first, *second}
}

func TestGenerateCSV_HeaderAndRows(t *testing.T) {
	es := NewExportService()
	results := sampleResults()

	data, err := es.GenerateCSV(results)
	if err != nil {
		t.Fatalf("Expected CSV generation to succeed, got: %v", err)
	}

	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		t.Error("Expected every record line to end with \\n")
	}
	if strings.Contains(text, "\r\n") {
		t.Error("Expected plain \\n line endings")
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}

	if lines[0] != CSVHeader {
		t.Errorf("Expected header '%s', got '%s'", CSVHeader, lines[0])
	}

	row := strings.Split(lines[1], ",")
	if len(row) != 10 {
		t.Fatalf("Expected 10 columns, got %d", len(row))
	}
	if row[0] != "Low Flow" {
		t.Errorf("Expected test type 'Low Flow', got '%s'", row[0])
	}
	if row[7] != "100.0" {
		t.Errorf("Expected one-decimal accuracy '100.0', got '%s'", row[7])
	}
	if row[9] != "2025-03-14 09:30" {
		t.Errorf("Expected short date+time, got '%s'", row[9])
	}
}

func TestGenerateCSV_RoundTrip(t *testing.T) {
	es := NewExportService()
	results := sampleResults()

	data, _ := es.GenerateCSV(results)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	for i, result := range results {
		row := strings.Split(lines[i+1], ",")

		if row[0] != result.TestType.Label() {
			t.Errorf("Row %d: expected type %s, got %s", i, result.TestType.Label(), row[0])
		}

		values := []struct {
			column   int
			expected float64
		}{
			{1, result.Reading.SmallMeterStart},
			{2, result.Reading.SmallMeterEnd},
			{3, result.Reading.LargeMeterStart},
			{4, result.Reading.LargeMeterEnd},
			{5, result.Reading.TotalVolume},
			{6, result.Reading.FlowRate},
		}
		for _, v := range values {
			parsed, err := strconv.ParseFloat(row[v.column], 64)
			if err != nil {
				t.Fatalf("Row %d column %d: expected a number, got '%s'", i, v.column, row[v.column])
			}
			if parsed != v.expected {
				t.Errorf("Row %d column %d: expected %v, got %v", i, v.column, v.expected, parsed)
			}
		}

		accuracy, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			t.Fatalf("Row %d: expected numeric accuracy, got '%s'", i, row[7])
		}
		wantAccuracy, _ := strconv.ParseFloat(strconv.FormatFloat(result.Reading.Accuracy(), 'f', 1, 64), 64)
		if accuracy != wantAccuracy {
			t.Errorf("Row %d: expected accuracy %v, got %v", i, wantAccuracy, accuracy)
		}
	}
}

func TestGenerateCSV_UnescapedCommaLimitation(t *testing.T) {
	es := NewExportService()

	result := models.NewTestResult(models.TestTypeLowFlow, models.MeterReading{TotalVolume: 10}, "pit 7, east side")
	data, _ := es.GenerateCSV([]models.TestResult{*result})

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	row := strings.Split(lines[1], ",")

	// Notes are not quote-escaped, so a comma in notes widens the row.
	// This is the shipped format; consumers are warned, not protected.
	if len(row) != 11 {
		t.Errorf("Expected comma in notes to widen row to 11 fields, got %d", len(row))
	}
	if strings.Contains(lines[1], `"`) {
		t.Error("Expected no quote-escaping in CSV output")
	}
}

func TestGenerateCSV_Empty(t *testing.T) {
	es := NewExportService()

	data, err := es.GenerateCSV(nil)
	if err != nil {
		t.Fatalf("Expected empty export to succeed, got: %v", err)
	}
	if string(data) != CSVHeader+"\n" {
		t.Errorf("Expected header only, got '%s'", string(data))
	}
}

func TestGenerateDetailCSV(t *testing.T) {
	es := NewExportService()
	results := sampleResults()

	data, err := es.GenerateDetailCSV(results[0])
	if err != nil {
		t.Fatalf("Expected detail export to succeed, got: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != CSVHeader {
		t.Error("Expected detail export to use the identical column order")
	}
}

func TestGenerateJSON_RoundTrip(t *testing.T) {
	es := NewExportService()
	results := sampleResults()

	data, err := es.GenerateJSON(results)
	if err != nil {
		t.Fatalf("Expected JSON generation to succeed, got: %v", err)
	}

	var decoded []models.TestResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected generated JSON to decode, got: %v", err)
	}

	if len(decoded) != len(results) {
		t.Fatalf("Expected %d results, got %d", len(results), len(decoded))
	}

	for i, want := range results {
		got := decoded[i]
		if got.ID != want.ID {
			t.Errorf("Result %d: expected ID %s, got %s", i, want.ID, got.ID)
		}
		if got.TestType != want.TestType {
			t.Errorf("Result %d: expected type %v, got %v", i, want.TestType, got.TestType)
		}
		if got.Reading != want.Reading {
			t.Errorf("Result %d: expected reading %+v, got %+v", i, want.Reading, got.Reading)
		}
		if got.Notes != want.Notes {
			t.Errorf("Result %d: expected notes '%s', got '%s'", i, want.Notes, got.Notes)
		}
		if !got.Date.Equal(want.Date) {
			t.Errorf("Result %d: expected date %v, got %v", i, want.Date, got.Date)
		}
		if got.IsPassing() != want.IsPassing() {
			t.Errorf("Result %d: expected same verdict after round trip", i)
		}
	}
}

func TestGenerateJSON_TimestampsAreRFC3339(t *testing.T) {
	es := NewExportService()
	data, _ := es.GenerateJSON(sampleResults())

	if !strings.Contains(string(data), `"2025-03-14T09:30:00Z"`) {
		t.Error("Expected RFC3339 timestamps in JSON export")
	}
}

func TestGenerateJSON_Empty(t *testing.T) {
	es := NewExportService()

	data, err := es.GenerateJSON(nil)
	if err != nil {
		t.Fatalf("Expected empty export to succeed, got: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Expected empty array, got '%s'", string(data))
	}
}

func TestGenerateReport(t *testing.T) {
	es := NewExportService()
	results := sampleResults()

	lines := es.GenerateReport(results)
	if len(lines) != 3 {
		t.Fatalf("Expected title + 2 summary lines, got %d", len(lines))
	}

	if lines[0] != ReportTitle {
		t.Errorf("Expected title line '%s', got '%s'", ReportTitle, lines[0])
	}
	if lines[1] != "Low Flow | 100.0% | 2025-03-14 09:30" {
		t.Errorf("Unexpected summary line: '%s'", lines[1])
	}
	if lines[2] != "High Flow | 20.0% | 2025-03-14 11:00" {
		t.Errorf("Unexpected summary line: '%s'", lines[2])
	}
}

func TestGenerateReport_EmptyHasTitleOnly(t *testing.T) {
	es := NewExportService()

	lines := es.GenerateReport(nil)
	if len(lines) != 1 || lines[0] != ReportTitle {
		t.Errorf("Expected title only for empty results, got %v", lines)
	}
}

func TestGenerateExcel(t *testing.T) {
	es := NewExportService()
	results := sampleResults()
	prefs := models.Preferences{PreferredUnit: models.UnitLiters, Appearance: models.AppearanceSystem}
	meta := ExportMetadata{
		GeneratedAt: time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC),
		DateRange:   "2025-03-14 to 2025-03-14",
		TotalTests:  len(results),
	}

	f, err := es.GenerateExcel(results, prefs, meta)
	if err != nil {
		t.Fatalf("Expected workbook generation to succeed, got: %v", err)
	}
	defer f.Close()

	unitHeader, err := f.GetCellValue("Test Results", "G1")
	if err != nil {
		t.Fatalf("Expected results sheet to exist, got: %v", err)
	}
	if unitHeader != "Total Volume (Liters)" {
		t.Errorf("Expected preferred-unit column label, got '%s'", unitHeader)
	}

	verdict, _ := f.GetCellValue("Test Results", "J2")
	if verdict != "PASS" {
		t.Errorf("Expected first result to be PASS, got '%s'", verdict)
	}
	verdict, _ = f.GetCellValue("Test Results", "J3")
	if verdict != "FAIL" {
		t.Errorf("Expected second result to be FAIL, got '%s'", verdict)
	}

	total, _ := f.GetCellValue("Summary", "B5")
	if total != "2" {
		t.Errorf("Expected total tests 2 on summary sheet, got '%s'", total)
	}
}

func TestGenerateExcelBytes_CompleteOrNothing(t *testing.T) {
	es := NewExportService()

	data, err := es.GenerateExcelBytes(sampleResults(), models.DefaultPreferences(), ExportMetadata{
		GeneratedAt: time.Now(),
		TotalTests:  2,
	})
	if err != nil {
		t.Fatalf("Expected workbook bytes, got: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected non-empty workbook bytes")
	}

	// XLSX files are zip archives
	if string(data[:2]) != "PK" {
		t.Error("Expected rendered bytes to be a complete xlsx archive")
	}
}
