package store

import (
	"github.com/jbb1988/VF4Tester/internal/models"
)

// DataStore defines the interface for test result storage operations
type DataStore interface {
	// Health check
	Ping() error

	Append(result models.TestResult)
	GetAll() []models.TestResult
	GetByID(id string) (models.TestResult, bool)
	UpdateNotes(id string, notes string) bool
	FilterByType(testType models.TestType) []models.TestResult
	FilterByText(needle string) []models.TestResult
	Recent(limit int) []models.TestResult
	Count() int

	// Session preferences
	GetPreferences() models.Preferences
	SetPreferredUnit(unit models.VolumeUnit) error
	SetAppearance(appearance models.Appearance) error
}
