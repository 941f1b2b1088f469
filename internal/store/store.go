package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jbb1988/VF4Tester/internal/models"
)

// Store manages in-memory storage of recorded calibration tests.
// Results are kept in insertion order, which is the chronological
// record order; there is no delete operation.
type Store struct {
	mu      sync.RWMutex
	results []models.TestResult
	prefs   models.Preferences
}

// NewStore creates a new in-memory store with default preferences
func NewStore() *Store {
	return &Store{
		results: make([]models.TestResult, 0, 256),
		prefs:   models.DefaultPreferences(),
	}
}

// Ping reports store health (always healthy for the in-memory store)
func (s *Store) Ping() error {
	return nil
}

// Append adds a test result to the end of the record sequence
func (s *Store) Append(result models.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)
}

// GetAll returns all recorded results in record order
func (s *Store) GetAll() []models.TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.TestResult, len(s.results))
	copy(results, s.results)
	return results
}

// GetByID returns the result with the given ID
func (s *Store) GetByID(id string) (models.TestResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, result := range s.results {
		if result.ID == id {
			return result, true
		}
	}
	return models.TestResult{}, false
}

// UpdateNotes replaces the notes of the result with the given ID.
// Notes are the only mutable field of a recorded test.
func (s *Store) UpdateNotes(id string, notes string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.results {
		if s.results[i].ID == id {
			s.results[i].Notes = notes
			return true
		}
	}
	return false
}

// FilterByType returns the results matching the given test type in
// record order. models.TestTypeAll returns everything.
func (s *Store) FilterByType(testType models.TestType) []models.TestResult {
	if testType == models.TestTypeAll {
		return s.GetAll()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.TestResult
	for _, r := range s.results {
		if r.TestType == testType {
			result = append(result, r)
		}
	}
	return result
}

// FilterByText returns the results whose notes or test type label
// contain the needle, case-insensitively, in record order. An empty
// needle matches everything.
func (s *Store) FilterByText(needle string) []models.TestResult {
	if needle == "" {
		return s.GetAll()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle = strings.ToLower(needle)

	var result []models.TestResult
	for _, r := range s.results {
		if strings.Contains(strings.ToLower(r.TestType.Label()), needle) ||
			strings.Contains(strings.ToLower(r.Notes), needle) {
			result = append(result, r)
		}
	}
	return result
}

// Recent returns the most recent N results, newest first
func (s *Store) Recent(limit int) []models.TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.TestResult, len(s.results))
	copy(results, s.results)

	sort.Slice(results, func(i, j int) bool {
		return results[i].Date.After(results[j].Date)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Count returns the total number of recorded results
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.results)
}

// GetPreferences returns the current session preferences
func (s *Store) GetPreferences() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.prefs
}

// SetPreferredUnit sets the preferred display volume unit
func (s *Store) SetPreferredUnit(unit models.VolumeUnit) error {
	if !unit.IsValid() {
		return fmt.Errorf("invalid volume unit: %s", unit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.PreferredUnit = unit
	return nil
}

// SetAppearance sets the appearance option
func (s *Store) SetAppearance(appearance models.Appearance) error {
	if !appearance.IsValid() {
		return fmt.Errorf("invalid appearance: %s", appearance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.Appearance = appearance
	return nil
}

// AverageAccuracy returns the arithmetic mean accuracy over the given
// results. The second return value is false when the subset is empty;
// callers must branch on it before formatting.
func AverageAccuracy(results []models.TestResult) (float64, bool) {
	if len(results) == 0 {
		return 0, false
	}

	var sum float64
	for _, r := range results {
		sum += r.Reading.Accuracy()
	}
	return sum / float64(len(results)), true
}

// TrendSeries returns the accuracy trend over the given results, sorted
// by date ascending. Each point carries the flat mean accuracy of the
// whole subset rather than a rolling average; this matches the shipped
// chart behavior.
func TrendSeries(results []models.TestResult) []models.TrendPoint {
	if len(results) == 0 {
		return nil
	}

	sorted := make([]models.TestResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	mean, _ := AverageAccuracy(sorted)

	points := make([]models.TrendPoint, len(sorted))
	for i, r := range sorted {
		points[i] = models.TrendPoint{Date: r.Date, Accuracy: mean}
	}
	return points
}
