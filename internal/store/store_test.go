package store

import (
	"math"
	"testing"
	"time"

	"github.com/jbb1988/VF4Tester/internal/models"
)

func reading(accuracy float64) models.MeterReading {
	return models.MeterReading{
		SmallMeterStart: 0,
		SmallMeterEnd:   accuracy,
		TotalVolume:     100,
	}
}

func recordTest(s *Store, testType models.TestType, accuracy float64, notes string) models.TestResult {
	result := models.NewTestResult(testType, reading(accuracy), notes)
	s.Append(*result)
	return *result
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := NewStore()

	first := recordTest(s, models.TestTypeLowFlow, 100, "first")
	second := recordTest(s, models.TestTypeHighFlow, 99, "second")
	third := recordTest(s, models.TestTypeLowFlow, 98, "third")

	all := s.GetAll()
	if len(all) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(all))
	}

	expected := []string{first.ID, second.ID, third.ID}
	for i, id := range expected {
		if all[i].ID != id {
			t.Errorf("Expected result %d to be %s, got %s", i, id, all[i].ID)
		}
	}

	if s.Count() != 3 {
		t.Errorf("Expected count 3, got %d", s.Count())
	}
}

func TestStore_GetAllReturnsCopy(t *testing.T) {
	s := NewStore()
	recordTest(s, models.TestTypeLowFlow, 100, "original")

	all := s.GetAll()
	all[0].Notes = "mutated"

	if s.GetAll()[0].Notes != "original" {
		t.Error("Expected GetAll to return a copy, not a reference")
	}
}

func TestStore_GetByID(t *testing.T) {
	s := NewStore()
	recorded := recordTest(s, models.TestTypeHighFlow, 99, "bench 2")

	result, exists := s.GetByID(recorded.ID)
	if !exists {
		t.Fatal("Expected to find recorded result by ID")
	}
	if result.Notes != "bench 2" {
		t.Errorf("Expected notes 'bench 2', got '%s'", result.Notes)
	}

	_, exists = s.GetByID("missing")
	if exists {
		t.Error("Expected lookup of unknown ID to fail")
	}
}

func TestStore_UpdateNotes(t *testing.T) {
	s := NewStore()
	recorded := recordTest(s, models.TestTypeLowFlow, 100, "before")

	if !s.UpdateNotes(recorded.ID, "after") {
		t.Fatal("Expected UpdateNotes to find the result")
	}

	result, _ := s.GetByID(recorded.ID)
	if result.Notes != "after" {
		t.Errorf("Expected notes 'after', got '%s'", result.Notes)
	}

	// Everything except notes stays untouched
	if result.Reading.Accuracy() != 100.0 {
		t.Errorf("Expected accuracy unchanged at 100.0, got %v", result.Reading.Accuracy())
	}

	if s.UpdateNotes("missing", "x") {
		t.Error("Expected UpdateNotes to report unknown ID")
	}
}

func TestStore_FilterByType_PartitionsSequence(t *testing.T) {
	s := NewStore()
	recordTest(s, models.TestTypeLowFlow, 100, "")
	recordTest(s, models.TestTypeHighFlow, 99, "")
	recordTest(s, models.TestTypeLowFlow, 98, "")
	recordTest(s, models.TestTypeHighFlow, 97, "")

	all := s.FilterByType(models.TestTypeAll)
	if len(all) != 4 {
		t.Fatalf("Expected all filter to return 4 results, got %d", len(all))
	}

	low := s.FilterByType(models.TestTypeLowFlow)
	high := s.FilterByType(models.TestTypeHighFlow)

	if len(low)+len(high) != len(all) {
		t.Errorf("Expected partition with no omission, got %d + %d of %d",
			len(low), len(high), len(all))
	}

	seen := make(map[string]bool)
	for _, r := range append(low, high...) {
		if seen[r.ID] {
			t.Errorf("Expected partition with no overlap, result %s appears twice", r.ID)
		}
		seen[r.ID] = true
	}

	// Order within each subsequence follows record order
	for i := 1; i < len(low); i++ {
		if low[i].Date.Before(low[i-1].Date) {
			t.Error("Expected filtered results to preserve record order")
		}
	}
}

func TestStore_FilterByText(t *testing.T) {
	s := NewStore()
	recordTest(s, models.TestTypeLowFlow, 100, "meter pit 7")
	recordTest(s, models.TestTypeHighFlow, 99, "recalibrated bench")
	recordTest(s, models.TestTypeLowFlow, 98, "")

	tests := []struct {
		name     string
		needle   string
		expected int
	}{
		{"Empty needle matches everything", "", 3},
		{"Notes substring match", "pit 7", 1},
		{"Case-insensitive notes match", "RECALIBRATED", 1},
		{"Test type label match", "low flow", 2},
		{"Mixed-case label match", "High Flow", 1},
		{"No match", "flume", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.FilterByText(tt.needle)
			if len(got) != tt.expected {
				t.Errorf("Expected %d results for needle '%s', got %d",
					tt.expected, tt.needle, len(got))
			}
		})
	}
}

func TestStore_Recent(t *testing.T) {
	s := NewStore()

	old := models.NewTestResult(models.TestTypeLowFlow, reading(100), "old")
	old.Date = time.Now().Add(-2 * time.Hour)
	s.Append(*old)

	newer := models.NewTestResult(models.TestTypeLowFlow, reading(99), "newer")
	newer.Date = time.Now().Add(-1 * time.Hour)
	s.Append(*newer)

	newest := recordTest(s, models.TestTypeHighFlow, 98, "newest")

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(recent))
	}
	if recent[0].ID != newest.ID {
		t.Errorf("Expected newest result first, got %s", recent[0].Notes)
	}
	if recent[1].ID != newer.ID {
		t.Errorf("Expected second newest result, got %s", recent[1].Notes)
	}
}

func TestAverageAccuracy(t *testing.T) {
	s := NewStore()
	recordTest(s, models.TestTypeLowFlow, 100, "")
	recordTest(s, models.TestTypeLowFlow, 98, "")
	recordTest(s, models.TestTypeHighFlow, 96, "")

	mean, ok := AverageAccuracy(s.GetAll())
	if !ok {
		t.Fatal("Expected average over non-empty subset to be defined")
	}
	if math.Abs(mean-98.0) > 1e-9 {
		t.Errorf("Expected mean 98.0, got %v", mean)
	}
}

func TestAverageAccuracy_EmptySignalsAbsence(t *testing.T) {
	mean, ok := AverageAccuracy(nil)
	if ok {
		t.Error("Expected average of empty subset to signal absence")
	}
	if mean != 0 {
		t.Errorf("Expected zero placeholder value, got %v", mean)
	}

	mean, ok = AverageAccuracy([]models.TestResult{})
	if ok {
		t.Error("Expected average of empty slice to signal absence")
	}
	_ = mean
}

func TestTrendSeries_FlatMeanSortedByDate(t *testing.T) {
	base := time.Now()

	// Deliberately out of date order
	results := []models.TestResult{
		*models.NewTestResult(models.TestTypeLowFlow, reading(100), ""),
		*models.NewTestResult(models.TestTypeLowFlow, reading(90), ""),
		*models.NewTestResult(models.TestTypeLowFlow, reading(95), ""),
	}
	results[0].Date = base
	results[1].Date = base.Add(-2 * time.Hour)
	results[2].Date = base.Add(-1 * time.Hour)

	points := TrendSeries(results)
	if len(points) != 3 {
		t.Fatalf("Expected 3 trend points, got %d", len(points))
	}

	for i := 1; i < len(points); i++ {
		if points[i].Date.Before(points[i-1].Date) {
			t.Error("Expected trend points sorted by date ascending")
		}
	}

	// Every point carries the same flat subset mean
	expectedMean := (100.0 + 90.0 + 95.0) / 3
	for i, p := range points {
		if math.Abs(p.Accuracy-expectedMean) > 1e-9 {
			t.Errorf("Expected point %d to carry the flat mean %v, got %v",
				i, expectedMean, p.Accuracy)
		}
	}
}

func TestTrendSeries_Empty(t *testing.T) {
	if points := TrendSeries(nil); points != nil {
		t.Errorf("Expected nil series for empty subset, got %v", points)
	}
}

func TestStore_Preferences(t *testing.T) {
	s := NewStore()

	prefs := s.GetPreferences()
	if prefs.PreferredUnit != models.UnitGallons {
		t.Errorf("Expected default unit gallons, got %v", prefs.PreferredUnit)
	}
	if prefs.Appearance != models.AppearanceSystem {
		t.Errorf("Expected default appearance system, got %v", prefs.Appearance)
	}

	if err := s.SetPreferredUnit(models.UnitLiters); err != nil {
		t.Fatalf("Expected to set valid unit, got error: %v", err)
	}
	if err := s.SetAppearance(models.AppearanceDark); err != nil {
		t.Fatalf("Expected to set valid appearance, got error: %v", err)
	}

	prefs = s.GetPreferences()
	if prefs.PreferredUnit != models.UnitLiters {
		t.Errorf("Expected unit liters, got %v", prefs.PreferredUnit)
	}
	if prefs.Appearance != models.AppearanceDark {
		t.Errorf("Expected dark appearance, got %v", prefs.Appearance)
	}

	// Invalid values are rejected and state stays valid
	if err := s.SetPreferredUnit("barrels"); err == nil {
		t.Error("Expected error for invalid unit")
	}
	if err := s.SetAppearance("sepia"); err == nil {
		t.Error("Expected error for invalid appearance")
	}
	if s.GetPreferences().PreferredUnit != models.UnitLiters {
		t.Error("Expected rejected update to leave preferences unchanged")
	}
}

func TestStore_ConcurrentAppendAndRead(t *testing.T) {
	s := NewStore()

	done := make(chan bool, 2)

	go func() {
		for i := 0; i < 50; i++ {
			recordTest(s, models.TestTypeLowFlow, 100, "writer")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 50; i++ {
			s.GetAll()
			s.FilterByText("writer")
			s.Count()
		}
		done <- true
	}()

	<-done
	<-done

	if s.Count() != 50 {
		t.Errorf("Expected 50 results after concurrent access, got %d", s.Count())
	}
}
