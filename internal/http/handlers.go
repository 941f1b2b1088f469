package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jbb1988/VF4Tester/internal/export"
	"github.com/jbb1988/VF4Tester/internal/models"
	"github.com/jbb1988/VF4Tester/internal/services"
	"github.com/jbb1988/VF4Tester/internal/store"
	"github.com/jbb1988/VF4Tester/internal/ws"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	store         store.DataStore
	exportService *export.ExportService
	parser        *services.SubmissionParser
	wsHub         *ws.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(dataStore store.DataStore, wsHub *ws.Hub) *Handlers {
	return &Handlers{
		store:         dataStore,
		exportService: export.NewExportService(),
		parser:        services.NewSubmissionParser(),
		wsHub:         wsHub,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// sendJSON sends a JSON response with the given status code
func (h *Handlers) sendJSON(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse sends a standardized error response
func (h *Handlers) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

// filteredResults applies the type and q query parameters to the
// record sequence. Both filters preserve record order.
func (h *Handlers) filteredResults(r *http.Request) ([]models.TestResult, error) {
	typeStr := r.URL.Query().Get("type")
	needle := r.URL.Query().Get("q")

	testType := models.TestTypeAll
	if typeStr != "" && typeStr != string(models.TestTypeAll) {
		testType = models.TestType(typeStr)
		if !testType.IsValid() {
			return nil, fmt.Errorf("invalid type %q: use 'low_flow', 'high_flow' or 'all'", typeStr)
		}
	}

	results := h.store.FilterByType(testType)
	if needle == "" {
		return results, nil
	}

	// Text filtering reuses the store semantics over the already
	// type-filtered subset
	sub := store.NewStore()
	for _, result := range results {
		sub.Append(result)
	}
	return sub.FilterByText(needle), nil
}

// RecordTest handles POST requests to record a new calibration test.
// Field kits submit numeric JSON; the UI submits free-text field values
// where empty or unparsable text is treated as 0.0.
func (h *Handlers) RecordTest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	result, warnings, err := h.parser.ParseSubmissionJSON(body)
	if err != nil {
		// Fallback to the free-text field form used by the UI
		var form struct {
			TestType        string `json:"test_type"`
			SmallMeterStart string `json:"small_meter_start"`
			SmallMeterEnd   string `json:"small_meter_end"`
			LargeMeterStart string `json:"large_meter_start"`
			LargeMeterEnd   string `json:"large_meter_end"`
			TotalVolume     string `json:"total_volume"`
			FlowRate        string `json:"flow_rate"`
			Notes           string `json:"notes"`
		}
		if jsonErr := json.Unmarshal(body, &form); jsonErr != nil {
			h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		testType := models.TestType(form.TestType)
		if !testType.IsValid() {
			h.sendErrorResponse(w, "Invalid test_type. Use 'low_flow' or 'high_flow'", http.StatusBadRequest)
			return
		}

		reading := h.parser.BuildReading(form.SmallMeterStart, form.SmallMeterEnd,
			form.LargeMeterStart, form.LargeMeterEnd, form.TotalVolume, form.FlowRate)
		result = models.NewTestResult(testType, reading, form.Notes)
		warnings = h.parser.Advisories(reading)
	}

	h.store.Append(*result)

	if h.wsHub != nil {
		h.wsHub.BroadcastTestResult(result)
	}

	h.sendJSON(w, http.StatusCreated, APIResponse{
		Success:  true,
		Data:     map[string]interface{}{"result": result, "evaluation": result.ToEvaluation()},
		Warnings: warnings,
	})
}

// GetTests returns recorded tests, optionally filtered by type and
// free-text query
func (h *Handlers) GetTests(w http.ResponseWriter, r *http.Request) {
	results, err := h.filteredResults(r)
	if err != nil {
		h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"count":   len(results),
			"results": results,
		},
	})
}

// GetRecentTests returns the most recent N tests, newest first
func (h *Handlers) GetRecentTests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if _, err := fmt.Sscanf(limitStr, "%d", &limit); err != nil || limit <= 0 {
			h.sendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
	}

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    h.store.Recent(limit),
	})
}

// GetTest returns one test by ID
func (h *Handlers) GetTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, exists := h.store.GetByID(id)
	if !exists {
		h.sendErrorResponse(w, "Test result not found", http.StatusNotFound)
		return
	}

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"result": result, "evaluation": result.ToEvaluation()},
	})
}

// UpdateTestNotes handles PATCH requests to replace a test's notes,
// the only mutable field of a recorded result
func (h *Handlers) UpdateTestNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var request struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.store.UpdateNotes(id, request.Notes) {
		h.sendErrorResponse(w, "Test result not found", http.StatusNotFound)
		return
	}

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Notes updated",
	})
}

// GetTestStats returns aggregate statistics over the (optionally
// filtered) record sequence
func (h *Handlers) GetTestStats(w http.ResponseWriter, r *http.Request) {
	results, err := h.filteredResults(r)
	if err != nil {
		h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats := map[string]interface{}{
		"count": len(results),
	}

	if mean, ok := store.AverageAccuracy(results); ok {
		stats["average_accuracy"] = mean
	} else {
		// Absence value, not a disguised zero; callers branch on this
		stats["average_accuracy"] = nil
	}

	passing := 0
	for _, result := range results {
		if result.IsPassing() {
			passing++
		}
	}
	stats["pass_count"] = passing
	stats["fail_count"] = len(results) - passing
	if len(results) > 0 {
		stats["pass_rate"] = float64(passing) / float64(len(results))
	} else {
		stats["pass_rate"] = nil
	}

	byType := make(map[string]interface{})
	for _, testType := range []models.TestType{models.TestTypeLowFlow, models.TestTypeHighFlow} {
		var subset []models.TestResult
		for _, result := range results {
			if result.TestType == testType {
				subset = append(subset, result)
			}
		}

		typeStats := map[string]interface{}{"count": len(subset)}
		if mean, ok := store.AverageAccuracy(subset); ok {
			typeStats["average_accuracy"] = mean
		} else {
			typeStats["average_accuracy"] = nil
		}
		byType[string(testType)] = typeStats
	}
	stats["by_type"] = byType

	h.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: stats})
}

// GetTestTrend returns the accuracy trend series over the (optionally
// filtered) record sequence
func (h *Handlers) GetTestTrend(w http.ResponseWriter, r *http.Request) {
	results, err := h.filteredResults(r)
	if err != nil {
		h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"chart_type": models.ChartTypeLine,
			"points":     store.TrendSeries(results),
		},
	})
}

// GetPreferences returns the session preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    h.store.GetPreferences(),
	})
}

// UpdatePreferences handles PUT requests to change the preferred volume
// unit and/or appearance option
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var request struct {
		PreferredUnit string `json:"preferred_unit"`
		Appearance    string `json:"appearance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if request.PreferredUnit != "" {
		if err := h.store.SetPreferredUnit(models.VolumeUnit(request.PreferredUnit)); err != nil {
			h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if request.Appearance != "" {
		if err := h.store.SetAppearance(models.Appearance(request.Appearance)); err != nil {
			h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	prefs := h.store.GetPreferences()

	if h.wsHub != nil {
		h.wsHub.BroadcastPreferences(prefs)
	}

	h.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: prefs})
}

// GetSystemStats returns system statistics
func (h *Handlers) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"total_tests": h.store.Count(),
		"server_time": time.Now(),
	}

	if h.wsHub != nil {
		stats["connected_clients"] = h.wsHub.GetConnectedClientsCount()
	}

	h.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: stats})
}

// exportMetadata builds export metadata for the given results
func exportMetadata(results []models.TestResult) export.ExportMetadata {
	meta := export.ExportMetadata{
		GeneratedAt: time.Now(),
		TotalTests:  len(results),
	}

	if len(results) > 0 {
		earliest, latest := results[0].Date, results[0].Date
		for _, result := range results[1:] {
			if result.Date.Before(earliest) {
				earliest = result.Date
			}
			if result.Date.After(latest) {
				latest = result.Date
			}
		}
		meta.DateRange = fmt.Sprintf("%s to %s",
			earliest.Format("2006-01-02"), latest.Format("2006-01-02"))
	}

	return meta
}

// serveExport renders the (optionally filtered) record sequence in the
// given format and streams it as a download. Exports are
// complete-or-nothing: a serialization failure produces a plain export
// unavailable error and no partial bytes.
func (h *Handlers) serveExport(w http.ResponseWriter, r *http.Request, format models.ExportFormat) {
	results, err := h.filteredResults(r)
	if err != nil {
		h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var data []byte
	switch format {
	case models.ExportFormatCSV:
		data, err = h.exportService.GenerateCSV(results)
	case models.ExportFormatJSON:
		data, err = h.exportService.GenerateJSON(results)
	case models.ExportFormatExcel:
		data, err = h.exportService.GenerateExcelBytes(results, h.store.GetPreferences(), exportMetadata(results))
	default:
		h.sendErrorResponse(w, "Unsupported export format", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.sendErrorResponse(w, "Export unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.Write(data)
}

// ExportCSV handles GET requests for the CSV export
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, models.ExportFormatCSV)
}

// ExportJSON handles GET requests for the JSON export
func (h *Handlers) ExportJSON(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, models.ExportFormatJSON)
}

// ExportExcel handles GET requests for the Excel export
func (h *Handlers) ExportExcel(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, models.ExportFormatExcel)
}

// ExportTestCSV handles GET requests for the single-result detail CSV
func (h *Handlers) ExportTestCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, exists := h.store.GetByID(id)
	if !exists {
		h.sendErrorResponse(w, "Test result not found", http.StatusNotFound)
		return
	}

	data, err := h.exportService.GenerateDetailCSV(result)
	if err != nil {
		h.sendErrorResponse(w, "Export unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", models.ExportFormatCSV.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "test_"+id+".csv"))
	w.Write(data)
}

// ExportReport handles GET requests for the text report model consumed
// by the page-rendering collaborator
func (h *Handlers) ExportReport(w http.ResponseWriter, r *http.Request) {
	results, err := h.filteredResults(r)
	if err != nil {
		h.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	lines := h.exportService.GenerateReport(results)

	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"lines": lines},
	})
}
