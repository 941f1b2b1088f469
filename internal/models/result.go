package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TestType represents the flow regime a calibration test was run at
type TestType string

const (
	TestTypeLowFlow  TestType = "low_flow"
	TestTypeHighFlow TestType = "high_flow"

	// TestTypeAll is a filter selector only, never a recordable type
	TestTypeAll TestType = "all"
)

// Accuracy bands per flow regime, inclusive on both ends
const (
	LowFlowMinAccuracy  = 95.0
	LowFlowMaxAccuracy  = 101.0
	HighFlowMinAccuracy = 98.5
	HighFlowMaxAccuracy = 101.5
)

// IsValid checks if the test type is one of the known flow regimes
func (t TestType) IsValid() bool {
	return t == TestTypeLowFlow || t == TestTypeHighFlow
}

// Label returns the display label used in exports and free-text search
func (t TestType) Label() string {
	switch t {
	case TestTypeLowFlow:
		return "Low Flow"
	case TestTypeHighFlow:
		return "High Flow"
	default:
		return string(t)
	}
}

// VolumeUnit represents the display unit for volumes
type VolumeUnit string

const (
	UnitGallons   VolumeUnit = "gallons"
	UnitLiters    VolumeUnit = "liters"
	UnitCubicFeet VolumeUnit = "cubic_feet"
)

// IsValid checks if the volume unit is one of the supported units
func (u VolumeUnit) IsValid() bool {
	return u == UnitGallons || u == UnitLiters || u == UnitCubicFeet
}

// Label returns the display label for the unit
func (u VolumeUnit) Label() string {
	switch u {
	case UnitGallons:
		return "Gallons"
	case UnitLiters:
		return "Liters"
	case UnitCubicFeet:
		return "Cubic Feet"
	default:
		return string(u)
	}
}

// Appearance represents the UI appearance option carried in preferences
type Appearance string

const (
	AppearanceSystem Appearance = "system"
	AppearanceLight  Appearance = "light"
	AppearanceDark   Appearance = "dark"
)

// IsValid checks if the appearance is one of the supported options
func (a Appearance) IsValid() bool {
	return a == AppearanceSystem || a == AppearanceLight || a == AppearanceDark
}

// Preferences holds the user-adjustable session settings
type Preferences struct {
	PreferredUnit VolumeUnit `json:"preferred_unit"`
	Appearance    Appearance `json:"appearance"`
}

// DefaultPreferences returns the initial preference values
func DefaultPreferences() Preferences {
	return Preferences{
		PreferredUnit: UnitGallons,
		Appearance:    AppearanceSystem,
	}
}

// MeterReading represents the raw values captured during one calibration test.
// The four meter values are cumulative totalizer readings; TotalVolume is the
// independently measured reference volume, not derived from the meters.
type MeterReading struct {
	SmallMeterStart float64 `json:"small_meter_start"`
	SmallMeterEnd   float64 `json:"small_meter_end"`
	LargeMeterStart float64 `json:"large_meter_start"`
	LargeMeterEnd   float64 `json:"large_meter_end"`
	TotalVolume     float64 `json:"total_volume"`
	FlowRate        float64 `json:"flow_rate"` // GPM, informational only
}

// MeterDelta returns the total volume registered by both meters
func (r MeterReading) MeterDelta() float64 {
	return (r.SmallMeterEnd - r.SmallMeterStart) + (r.LargeMeterEnd - r.LargeMeterStart)
}

// Accuracy returns the meter accuracy as a percentage of the reference
// volume, rounded to two decimals. A zero reference volume yields 0,
// which fails every pass band.
func (r MeterReading) Accuracy() float64 {
	if r.TotalVolume == 0 {
		return 0
	}
	raw := (r.MeterDelta() / r.TotalVolume) * 100
	return math.Round(raw*100) / 100
}

// TestResult represents one recorded calibration test. Everything except
// Notes is immutable after creation; identity is by ID.
type TestResult struct {
	ID       string       `json:"id"`
	TestType TestType     `json:"test_type"`
	Reading  MeterReading `json:"reading"`
	Notes    string       `json:"notes"`
	Date     time.Time    `json:"date"`
	Image    []byte       `json:"image,omitempty"` // optional attached photo, opaque to the core
}

// NewTestResult creates a test result with a generated ID and current timestamp
func NewTestResult(testType TestType, reading MeterReading, notes string) *TestResult {
	return &TestResult{
		ID:       uuid.NewString(),
		TestType: testType,
		Reading:  reading,
		Notes:    notes,
		Date:     time.Now(),
	}
}

// IsPassing reports whether the test accuracy falls inside the pass band
// for its flow regime
func (t *TestResult) IsPassing() bool {
	accuracy := t.Reading.Accuracy()
	switch t.TestType {
	case TestTypeLowFlow:
		return accuracy >= LowFlowMinAccuracy && accuracy <= LowFlowMaxAccuracy
	case TestTypeHighFlow:
		return accuracy >= HighFlowMinAccuracy && accuracy <= HighFlowMaxAccuracy
	default:
		return false
	}
}

// TestEvaluation represents the derived verdict view of a test result
type TestEvaluation struct {
	ID       string    `json:"id"`
	TestType TestType  `json:"test_type"`
	Accuracy float64   `json:"accuracy"`
	Passing  bool      `json:"passing"`
	Date     time.Time `json:"date"`
}

// ToEvaluation converts a TestResult to its evaluation view
func (t *TestResult) ToEvaluation() TestEvaluation {
	return TestEvaluation{
		ID:       t.ID,
		TestType: t.TestType,
		Accuracy: t.Reading.Accuracy(),
		Passing:  t.IsPassing(),
		Date:     t.Date,
	}
}

// TestSubmission represents the raw JSON structure received from a field
// test kit or the UI before a TestResult is constructed
type TestSubmission struct {
	TestType        string  `json:"test_type"`
	SmallMeterStart float64 `json:"small_meter_start"`
	SmallMeterEnd   float64 `json:"small_meter_end"`
	LargeMeterStart float64 `json:"large_meter_start"`
	LargeMeterEnd   float64 `json:"large_meter_end"`
	TotalVolume     float64 `json:"total_volume"`
	FlowRate        float64 `json:"flow_rate"`
	Notes           string  `json:"notes"`
}

// TrendPoint represents one point of the accuracy trend series
type TrendPoint struct {
	Date     time.Time `json:"date"`
	Accuracy float64   `json:"accuracy"`
}

// ChartType represents the chart style hint carried on analytics responses
type ChartType string

const (
	ChartTypeLine ChartType = "line"
	ChartTypeBar  ChartType = "bar"
)

// ExportFormat identifies one of the supported export renderings
type ExportFormat string

const (
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatExcel  ExportFormat = "xlsx"
	ExportFormatReport ExportFormat = "report"
)

// IsValid checks whether the export format is supported
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatExcel, ExportFormatReport:
		return true
	}
	return false
}

// ContentType returns the MIME type served for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case ExportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json; charset=utf-8"
	}
}

// Filename returns the download filename for the format
func (f ExportFormat) Filename() string {
	return "test_results." + string(f)
}
