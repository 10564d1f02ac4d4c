package http

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartgrow/irrigation-edge/internal/export"
	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/services"
	"github.com/smartgrow/irrigation-edge/internal/store"
	"github.com/smartgrow/irrigation-edge/internal/ws"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	store         store.DataStore
	loop          *services.ControlLoop
	engine        *ml.DecisionEngine
	safety        *safety.Controller
	hub           *ws.Hub
	exportService *export.ExportService
}

// NewHandlers creates a new handlers instance
func NewHandlers(dataStore store.DataStore, loop *services.ControlLoop, engine *ml.DecisionEngine, safetyCtl *safety.Controller, hub *ws.Hub) *Handlers {
	return &Handlers{
		store:         dataStore,
		loop:          loop,
		engine:        engine,
		safety:        safetyCtl,
		hub:           hub,
		exportService: export.NewExportService(),
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse sends a standardized error response
func (h *Handlers) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// parseChannelParam resolves the {channel} path parameter.
func (h *Handlers) parseChannelParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	channel, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil || channel < 0 || channel >= models.NumChannels {
		h.sendErrorResponse(w, fmt.Sprintf("Invalid channel. Use 0-%d", models.NumChannels-1), http.StatusBadRequest)
		return 0, false
	}
	return channel, true
}

// parseLimitQuery reads the optional limit query parameter with a default.
func parseLimitQuery(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

// parseRangeQuery reads required start/end RFC3339 query parameters.
func (h *Handlers) parseRangeQuery(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		h.sendErrorResponse(w, "Both start and end time parameters are required", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		h.sendErrorResponse(w, "Invalid start time format. Use RFC3339 format", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		h.sendErrorResponse(w, "Invalid end time format. Use RFC3339 format", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	if end.Before(start) {
		h.sendErrorResponse(w, "End time must be after start time", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

// GetSystemStats returns system statistics
func (h *Handlers) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"total_samples":     h.store.GetSampleCount(),
		"total_decisions":   h.store.GetDecisionEventCount(),
		"total_anomalies":   h.store.GetAnomalyEventCount(),
		"engine":            h.engine.Stats(),
		"loop_running":      h.loop.IsRunning(),
		"uptime_seconds":    h.loop.Uptime().Seconds(),
		"connected_clients": h.hub.GetConnectedClientsCount(),
		"server_time":       time.Now(),
	}

	h.sendJSON(w, APIResponse{Success: true, Data: stats})
}

// GetLatestSamples returns the latest sample per channel, or for one channel
// when the channel query parameter is set.
func (h *Handlers) GetLatestSamples(w http.ResponseWriter, r *http.Request) {
	if channelStr := r.URL.Query().Get("channel"); channelStr != "" {
		channel, err := strconv.Atoi(channelStr)
		if err != nil || channel < 0 || channel >= models.NumChannels {
			h.sendErrorResponse(w, fmt.Sprintf("Invalid channel. Use 0-%d", models.NumChannels-1), http.StatusBadRequest)
			return
		}

		sample, exists := h.store.GetLatestSample(channel)
		if !exists {
			h.sendErrorResponse(w, "No sensor data available for specified channel", http.StatusNotFound)
			return
		}

		h.sendJSON(w, APIResponse{Success: true, Data: sample})
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetAllLatestSamples()})
}

// GetRecentSamples returns recent samples for one channel
func (h *Handlers) GetRecentSamples(w http.ResponseWriter, r *http.Request) {
	channelStr := r.URL.Query().Get("channel")
	channel, err := strconv.Atoi(channelStr)
	if channelStr == "" || err != nil || channel < 0 || channel >= models.NumChannels {
		h.sendErrorResponse(w, fmt.Sprintf("channel query parameter is required (0-%d)", models.NumChannels-1), http.StatusBadRequest)
		return
	}

	limit := parseLimitQuery(r, 50)
	samples := h.store.GetRecentSamples(channel, limit)

	h.sendJSON(w, APIResponse{Success: true, Data: samples})
}

// AddSample handles POST requests to inject a sensor sample (for testing
// without the MQTT feed). The sample goes through the same rate limiting
// and processing as samples from the sensor node.
func (h *Handlers) AddSample(w http.ResponseWriter, r *http.Request) {
	var sample models.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if sample.Channel < 0 || sample.Channel >= models.NumChannels {
		h.sendErrorResponse(w, fmt.Sprintf("Invalid channel. Use 0-%d", models.NumChannels-1), http.StatusBadRequest)
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	if !h.loop.Submit(sample) {
		h.sendErrorResponse(w, "Sample rejected (rate limited or queue full)", http.StatusTooManyRequests)
		return
	}

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Sample accepted",
		Data:    sample,
	})
}

// GetRecentDecisions returns recent decision events (optionally per channel)
func (h *Handlers) GetRecentDecisions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimitQuery(r, 50)

	if channelStr := r.URL.Query().Get("channel"); channelStr != "" {
		channel, err := strconv.Atoi(channelStr)
		if err != nil || channel < 0 || channel >= models.NumChannels {
			h.sendErrorResponse(w, fmt.Sprintf("Invalid channel. Use 0-%d", models.NumChannels-1), http.StatusBadRequest)
			return
		}
		h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetDecisionEventsByChannel(channel, limit)})
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetRecentDecisionEvents(limit)})
}

// GetDecisionsInRange returns decision events within a time range
func (h *Handlers) GetDecisionsInRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.parseRangeQuery(w, r)
	if !ok {
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetDecisionEventsInRange(start, end)})
}

// GetRecentAnomalies returns recent anomaly events
func (h *Handlers) GetRecentAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := parseLimitQuery(r, 50)
	h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetRecentAnomalyEvents(limit)})
}

// GetAnomaliesInRange returns anomaly events within a time range
func (h *Handlers) GetAnomaliesInRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.parseRangeQuery(w, r)
	if !ok {
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.store.GetAnomalyEventsInRange(start, end)})
}

// GetAllPumpStatuses returns the status of every pump
func (h *Handlers) GetAllPumpStatuses(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, APIResponse{Success: true, Data: h.safety.AllPumpStatuses()})
}

// GetPumpStatus returns the status of one pump
func (h *Handlers) GetPumpStatus(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.parseChannelParam(w, r)
	if !ok {
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.safety.PumpStatus(channel)})
}

// EmergencyStopPump handles POST requests to stop one pump immediately
func (h *Handlers) EmergencyStopPump(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.parseChannelParam(w, r)
	if !ok {
		return
	}

	h.safety.EmergencyStop(channel)
	log.Printf("🛑 API: Emergency stop requested for channel %d from %s", channel, r.RemoteAddr)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Emergency stop issued for channel %d", channel),
		Data:    h.safety.PumpStatus(channel),
	})
}

// EmergencyStopAll handles POST requests to stop all pumps immediately
func (h *Handlers) EmergencyStopAll(w http.ResponseWriter, r *http.Request) {
	h.safety.EmergencyStopAll()
	log.Printf("🛑 API: Emergency stop ALL requested from %s", r.RemoteAddr)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Emergency stop issued for all channels",
		Data:    h.safety.AllPumpStatuses(),
	})
}

// GetSystemHealth returns the safety controller health snapshot
func (h *Handlers) GetSystemHealth(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, APIResponse{Success: true, Data: h.safety.Health()})
}

// ResetFailsafe handles POST requests to clear system failsafe mode and
// latched actuator faults after a manual inspection.
func (h *Handlers) ResetFailsafe(w http.ResponseWriter, r *http.Request) {
	h.safety.ResetSystemFailsafe()
	log.Printf("✅ API: Failsafe reset requested from %s", r.RemoteAddr)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "System failsafe cleared",
		Data:    h.safety.Health(),
	})
}

// SetFailsafeMode handles POST requests to toggle failsafe watering
func (h *Handlers) SetFailsafeMode(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Enabled *bool `json:"enabled"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Enabled == nil {
		h.sendErrorResponse(w, "Request body must contain an 'enabled' boolean", http.StatusBadRequest)
		return
	}

	h.engine.SetFailsafeMode(*request.Enabled)
	log.Printf("⚙️  API: Failsafe watering mode set to %v from %s", *request.Enabled, r.RemoteAddr)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Failsafe watering mode enabled=%v", *request.Enabled),
	})
}

// plantProfileView is the API representation of one plant profile.
type plantProfileView struct {
	Plant              string  `json:"plant"`
	Name               string  `json:"name"`
	MoistureThreshold  float64 `json:"moisture_threshold"`
	TemperatureOptimal float64 `json:"temperature_optimal"`
	HumidityOptimal    float64 `json:"humidity_optimal"`
	LightRequirement   float64 `json:"light_requirement"`
	BaseWaterAmount    float64 `json:"base_water_amount"`
	HasOverride        bool    `json:"has_override"`
}

func (h *Handlers) profileView(plant models.PlantType) plantProfileView {
	table := h.engine.Table()
	profile := table.Profile(plant)
	return plantProfileView{
		Plant:              plant.String(),
		Name:               profile.Name,
		MoistureThreshold:  profile.MoistureThreshold,
		TemperatureOptimal: profile.TemperatureOptimal,
		HumidityOptimal:    profile.HumidityOptimal,
		LightRequirement:   profile.LightRequirement,
		BaseWaterAmount:    profile.BaseWaterAmount,
		HasOverride:        table.HasOverride(plant),
	}
}

// GetPlantProfiles returns the full plant profile table
func (h *Handlers) GetPlantProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := make([]plantProfileView, 0, models.PlantTypeCount)
	for p := models.PlantType(0); p < models.PlantTypeCount; p++ {
		profiles = append(profiles, h.profileView(p))
	}

	h.sendJSON(w, APIResponse{Success: true, Data: profiles})
}

// GetPlantProfile returns the profile for one plant type
func (h *Handlers) GetPlantProfile(w http.ResponseWriter, r *http.Request) {
	plant, ok := models.ParsePlantType(chi.URLParam(r, "plant"))
	if !ok {
		h.sendErrorResponse(w, "Unknown plant type", http.StatusNotFound)
		return
	}

	h.sendJSON(w, APIResponse{Success: true, Data: h.profileView(plant)})
}

// SetPlantThresholds handles POST requests to override thresholds for a
// plant type at runtime.
func (h *Handlers) SetPlantThresholds(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Plant       string  `json:"plant"`
		Moisture    float64 `json:"moisture_threshold"`
		Temperature float64 `json:"temperature_optimal"`
		Humidity    float64 `json:"humidity_optimal"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plant, ok := models.ParsePlantType(request.Plant)
	if !ok {
		h.sendErrorResponse(w, "Unknown plant type", http.StatusBadRequest)
		return
	}
	if request.Moisture < models.MinMoisture || request.Moisture > models.MaxMoisture {
		h.sendErrorResponse(w, fmt.Sprintf("moisture_threshold must be in [%.0f,%.0f]", models.MinMoisture, models.MaxMoisture), http.StatusBadRequest)
		return
	}

	h.engine.Table().UpdateThresholds(plant, request.Moisture, request.Temperature, request.Humidity)
	log.Printf("🌿 API: Threshold override for %s: moisture %.0f", plant, request.Moisture)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Thresholds updated",
		Data:    h.profileView(plant),
	})
}

// ResetPlantThresholds handles POST requests to drop runtime overrides.
// Without a plant query parameter every override is dropped.
func (h *Handlers) ResetPlantThresholds(w http.ResponseWriter, r *http.Request) {
	plantStr := r.URL.Query().Get("plant")
	if plantStr == "" {
		h.engine.Table().ResetAllToDefaults()
		h.sendJSON(w, APIResponse{Success: true, Message: "All thresholds reset to defaults"})
		return
	}

	plant, ok := models.ParsePlantType(plantStr)
	if !ok {
		h.sendErrorResponse(w, "Unknown plant type", http.StatusBadRequest)
		return
	}

	h.engine.Table().ResetToDefaults(plant)
	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Thresholds reset to defaults",
		Data:    h.profileView(plant),
	})
}

// channelConfigView is the API representation of one channel's plant setup.
type channelConfigView struct {
	Channel     int    `json:"channel"`
	Plant       string `json:"plant"`
	GrowthStage string `json:"growth_stage"`
}

// GetChannelConfigs returns the plant assignment of every channel
func (h *Handlers) GetChannelConfigs(w http.ResponseWriter, r *http.Request) {
	configs := make([]channelConfigView, 0, models.NumChannels)
	for channel := 0; channel < models.NumChannels; channel++ {
		plant, stage := h.engine.PlantConfig(channel)
		configs = append(configs, channelConfigView{
			Channel:     channel,
			Plant:       plant.String(),
			GrowthStage: stage.String(),
		})
	}

	h.sendJSON(w, APIResponse{Success: true, Data: configs})
}

// SetChannelConfig handles PUT requests to assign a plant to a channel
func (h *Handlers) SetChannelConfig(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.parseChannelParam(w, r)
	if !ok {
		return
	}

	var request struct {
		Plant       string `json:"plant"`
		GrowthStage string `json:"growth_stage"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plant, ok := models.ParsePlantType(request.Plant)
	if !ok {
		h.sendErrorResponse(w, "Unknown plant type", http.StatusBadRequest)
		return
	}
	stage, ok := models.ParseGrowthStage(request.GrowthStage)
	if !ok {
		h.sendErrorResponse(w, "Unknown growth stage", http.StatusBadRequest)
		return
	}

	h.engine.SetPlantConfig(channel, plant, stage)
	log.Printf("🌿 API: Channel %d set to %s (%s)", channel, plant, stage)

	h.sendJSON(w, APIResponse{
		Success: true,
		Message: "Channel configuration updated",
		Data: channelConfigView{
			Channel:     channel,
			Plant:       plant.String(),
			GrowthStage: stage.String(),
		},
	})
}

// exportRange resolves the export time range, defaulting to the last 30 days.
func (h *Handlers) exportRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	var start, end time.Time
	var err error

	if startStr == "" {
		start = time.Now().AddDate(0, 0, -30)
	} else {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			h.sendErrorResponse(w, "Invalid start date format. Use RFC3339 format", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			h.sendErrorResponse(w, "Invalid end date format. Use RFC3339 format", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}

	return start, end, true
}

// ExportHistoryExcel handles GET requests to export irrigation history as Excel
func (h *Handlers) ExportHistoryExcel(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.exportRange(w, r)
	if !ok {
		return
	}

	decisions := h.store.GetDecisionEventsInRange(start, end)
	anomalies := h.store.GetAnomalyEventsInRange(start, end)

	exportData := export.ExportData{
		DecisionEvents: decisions,
		AnomalyEvents:  anomalies,
		Metadata: export.Metadata{
			GeneratedAt:    time.Now(),
			DateRange:      fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
			TotalDecisions: len(decisions),
			TotalAnomalies: len(anomalies),
			DeviceInfo:     "SmartGrow Irrigation Edge Controller",
		},
	}

	excelFile, err := h.exportService.GenerateExcel(exportData)
	if err != nil {
		h.sendErrorResponse(w, "Failed to generate Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("irrigation_history_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := excelFile.Write(w); err != nil {
		h.sendErrorResponse(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}
}

// ExportHistoryCSV handles GET requests to export irrigation history as CSV
func (h *Handlers) ExportHistoryCSV(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.exportRange(w, r)
	if !ok {
		return
	}

	decisions := h.store.GetDecisionEventsInRange(start, end)

	csvData, err := h.exportService.GenerateCSV(decisions)
	if err != nil {
		h.sendErrorResponse(w, "Failed to generate CSV data", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("irrigation_history_%s_to_%s.csv",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	csvWriter := csv.NewWriter(w)
	if err := h.exportService.WriteCSV(csvWriter, csvData); err != nil {
		h.sendErrorResponse(w, "Failed to write CSV data", http.StatusInternalServerError)
		return
	}
}
