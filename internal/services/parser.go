package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbb1988/VF4Tester/internal/models"
)

// SubmissionParser builds test results from the raw input the UI or a
// field test kit supplies
type SubmissionParser struct{}

// NewSubmissionParser creates a new instance of SubmissionParser
func NewSubmissionParser() *SubmissionParser {
	return &SubmissionParser{}
}

// ParseValue converts a free-text numeric field to a float. Empty or
// unparsable text is recovered locally as 0.0, never an error; the
// advisory check is where suspicious input gets surfaced.
func (sp *SubmissionParser) ParseValue(text string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0.0
	}
	return value
}

// BuildReading constructs a MeterReading from free-text field values
func (sp *SubmissionParser) BuildReading(smallStart, smallEnd, largeStart, largeEnd, totalVolume, flowRate string) models.MeterReading {
	return models.MeterReading{
		SmallMeterStart: sp.ParseValue(smallStart),
		SmallMeterEnd:   sp.ParseValue(smallEnd),
		LargeMeterStart: sp.ParseValue(largeStart),
		LargeMeterEnd:   sp.ParseValue(largeEnd),
		TotalVolume:     sp.ParseValue(totalVolume),
		FlowRate:        sp.ParseValue(flowRate),
	}
}

// Advisories returns non-blocking warnings about a reading. They are
// shown to the operator but never prevent recording the test.
func (sp *SubmissionParser) Advisories(reading models.MeterReading) []string {
	var warnings []string

	if reading.SmallMeterEnd < reading.SmallMeterStart {
		warnings = append(warnings, "small meter end reading is below its start reading")
	}
	if reading.LargeMeterEnd < reading.LargeMeterStart {
		warnings = append(warnings, "large meter end reading is below its start reading")
	}
	if reading.TotalVolume == 0 {
		warnings = append(warnings, "reference volume is zero; accuracy will be reported as 0")
	}
	if reading.TotalVolume < 0 {
		warnings = append(warnings, "reference volume is negative")
	}

	return warnings
}

// ParseSubmissionJSON parses a JSON test submission from a field test
// kit or the UI and constructs a TestResult
func (sp *SubmissionParser) ParseSubmissionJSON(payload []byte) (*models.TestResult, []string, error) {
	var submission models.TestSubmission

	if err := json.Unmarshal(payload, &submission); err != nil {
		return nil, nil, fmt.Errorf("failed to parse test submission JSON: %w", err)
	}

	testType := models.TestType(submission.TestType)
	if !testType.IsValid() {
		return nil, nil, fmt.Errorf("invalid test type: %q (use 'low_flow' or 'high_flow')", submission.TestType)
	}

	reading := models.MeterReading{
		SmallMeterStart: submission.SmallMeterStart,
		SmallMeterEnd:   submission.SmallMeterEnd,
		LargeMeterStart: submission.LargeMeterStart,
		LargeMeterEnd:   submission.LargeMeterEnd,
		TotalVolume:     submission.TotalVolume,
		FlowRate:        submission.FlowRate,
	}

	result := models.NewTestResult(testType, reading, submission.Notes)
	return result, sp.Advisories(reading), nil
}

// ParseSubmissionString parses comma-separated submission values
// (fallback format used by older kit firmware).
// Expected format: "test_type,smallStart,smallEnd,largeStart,largeEnd,totalVolume,flowRate"
func (sp *SubmissionParser) ParseSubmissionString(payload string) (*models.TestResult, []string, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 7 {
		return nil, nil, fmt.Errorf("failed to parse submission string: expected 7 values, got %d", len(parts))
	}

	testType := models.TestType(strings.TrimSpace(parts[0]))
	if !testType.IsValid() {
		return nil, nil, fmt.Errorf("invalid test type: %q (use 'low_flow' or 'high_flow')", parts[0])
	}

	reading := sp.BuildReading(parts[1], parts[2], parts[3], parts[4], parts[5], parts[6])

	result := models.NewTestResult(testType, reading, "")
	return result, sp.Advisories(reading), nil
}

// FormatResult formats a test result for logging or debugging
func (sp *SubmissionParser) FormatResult(result *models.TestResult) string {
	verdict := "FAIL"
	if result.IsPassing() {
		verdict = "PASS"
	}
	return fmt.Sprintf("Test: %s, Accuracy: %.2f%%, Verdict: %s, Volume: %.2f, Flow: %.2f GPM",
		result.TestType.Label(),
		result.Reading.Accuracy(),
		verdict,
		result.Reading.TotalVolume,
		result.Reading.FlowRate)
}
