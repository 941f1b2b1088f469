package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/jbb1988/VF4Tester/internal/models"
)

// DatabaseStore implements persistent test result storage using PostgreSQL
type DatabaseStore struct {
	db *sql.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(db *sql.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Ping reports database health
func (s *DatabaseStore) Ping() error {
	return s.db.Ping()
}

const resultColumns = "id, test_type, small_meter_start, small_meter_end, large_meter_start, large_meter_end, total_volume, flow_rate, notes, image, recorded_at"

// scanResult reads one test result row
func scanResult(row interface{ Scan(...interface{}) error }) (models.TestResult, error) {
	var result models.TestResult
	var image []byte

	err := row.Scan(
		&result.ID, &result.TestType,
		&result.Reading.SmallMeterStart, &result.Reading.SmallMeterEnd,
		&result.Reading.LargeMeterStart, &result.Reading.LargeMeterEnd,
		&result.Reading.TotalVolume, &result.Reading.FlowRate,
		&result.Notes, &image, &result.Date)
	if err != nil {
		return models.TestResult{}, err
	}

	result.Image = image
	return result, nil
}

// Append stores a test result. Write failures are logged rather than
// surfaced, matching the in-memory store's never-fails append contract.
func (s *DatabaseStore) Append(result models.TestResult) {
	query := `
		INSERT INTO test_results (id, test_type, small_meter_start, small_meter_end,
			large_meter_start, large_meter_end, total_volume, flow_rate, notes, image, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(query, result.ID, result.TestType,
		result.Reading.SmallMeterStart, result.Reading.SmallMeterEnd,
		result.Reading.LargeMeterStart, result.Reading.LargeMeterEnd,
		result.Reading.TotalVolume, result.Reading.FlowRate,
		result.Notes, result.Image, result.Date)
	if err != nil {
		log.Printf("❌ Error storing test result: %v", err)
	}
}

// queryResults runs a query returning full result rows
func (s *DatabaseStore) queryResults(query string, args ...interface{}) []models.TestResult {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("❌ Error querying test results: %v", err)
		return nil
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			log.Printf("⚠️  Warning: Error scanning test result: %v", err)
			continue
		}
		results = append(results, result)
	}
	return results
}

// GetAll returns all recorded results in record order
func (s *DatabaseStore) GetAll() []models.TestResult {
	return s.queryResults(fmt.Sprintf(
		"SELECT %s FROM test_results ORDER BY seq", resultColumns))
}

// GetByID returns the result with the given ID
func (s *DatabaseStore) GetByID(id string) (models.TestResult, bool) {
	row := s.db.QueryRow(fmt.Sprintf(
		"SELECT %s FROM test_results WHERE id = $1", resultColumns), id)

	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return models.TestResult{}, false
	}
	if err != nil {
		log.Printf("❌ Error getting test result by id: %v", err)
		return models.TestResult{}, false
	}
	return result, true
}

// UpdateNotes replaces the notes of the result with the given ID
func (s *DatabaseStore) UpdateNotes(id string, notes string) bool {
	res, err := s.db.Exec("UPDATE test_results SET notes = $1 WHERE id = $2", notes, id)
	if err != nil {
		log.Printf("❌ Error updating notes: %v", err)
		return false
	}

	affected, err := res.RowsAffected()
	if err != nil {
		log.Printf("⚠️  Warning: Could not read affected rows: %v", err)
		return false
	}
	return affected > 0
}

// FilterByType returns the results matching the given test type in
// record order. models.TestTypeAll returns everything.
func (s *DatabaseStore) FilterByType(testType models.TestType) []models.TestResult {
	if testType == models.TestTypeAll {
		return s.GetAll()
	}

	return s.queryResults(fmt.Sprintf(
		"SELECT %s FROM test_results WHERE test_type = $1 ORDER BY seq", resultColumns),
		string(testType))
}

// FilterByText returns the results whose notes or test type label
// contain the needle, case-insensitively. Label matching uses the same
// display labels as the in-memory store, so the filtering is done here
// rather than in SQL.
func (s *DatabaseStore) FilterByText(needle string) []models.TestResult {
	all := s.GetAll()
	if needle == "" {
		return all
	}

	needle = strings.ToLower(needle)

	var results []models.TestResult
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.TestType.Label()), needle) ||
			strings.Contains(strings.ToLower(r.Notes), needle) {
			results = append(results, r)
		}
	}
	return results
}

// Recent returns the most recent N results, newest first
func (s *DatabaseStore) Recent(limit int) []models.TestResult {
	query := fmt.Sprintf("SELECT %s FROM test_results ORDER BY recorded_at DESC", resultColumns)
	if limit > 0 {
		return s.queryResults(query+" LIMIT $1", limit)
	}
	return s.queryResults(query)
}

// Count returns the total number of recorded results
func (s *DatabaseStore) Count() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM test_results").Scan(&count); err != nil {
		log.Printf("❌ Error counting test results: %v", err)
		return 0
	}
	return count
}

// Preference keys used in the preferences table
const (
	prefKeyUnit       = "preferred_unit"
	prefKeyAppearance = "appearance"
)

// GetPreferences returns the stored preferences, falling back to
// defaults for missing or invalid values
func (s *DatabaseStore) GetPreferences() models.Preferences {
	prefs := models.DefaultPreferences()

	rows, err := s.db.Query("SELECT key, value FROM preferences WHERE key IN ($1, $2)",
		prefKeyUnit, prefKeyAppearance)
	if err != nil {
		log.Printf("❌ Error loading preferences: %v", err)
		return prefs
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			log.Printf("⚠️  Warning: Error scanning preference: %v", err)
			continue
		}

		switch key {
		case prefKeyUnit:
			if unit := models.VolumeUnit(value); unit.IsValid() {
				prefs.PreferredUnit = unit
			}
		case prefKeyAppearance:
			if appearance := models.Appearance(value); appearance.IsValid() {
				prefs.Appearance = appearance
			}
		}
	}

	return prefs
}

// setPreference upserts one preference key
func (s *DatabaseStore) setPreference(key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to store preference %s: %w", key, err)
	}
	return nil
}

// SetPreferredUnit sets the preferred display volume unit
func (s *DatabaseStore) SetPreferredUnit(unit models.VolumeUnit) error {
	if !unit.IsValid() {
		return fmt.Errorf("invalid volume unit: %s", unit)
	}
	return s.setPreference(prefKeyUnit, string(unit))
}

// SetAppearance sets the appearance option
func (s *DatabaseStore) SetAppearance(appearance models.Appearance) error {
	if !appearance.IsValid() {
		return fmt.Errorf("invalid appearance: %s", appearance)
	}
	return s.setPreference(prefKeyAppearance, string(appearance))
}
