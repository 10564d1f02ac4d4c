package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/services"
	"github.com/smartgrow/irrigation-edge/internal/store"
	"github.com/smartgrow/irrigation-edge/internal/ws"
)

func newTestRouter(t *testing.T) (*chi.Mux, *store.Store) {
	t.Helper()

	dataStore := store.NewStore(100)
	engine := ml.NewDecisionEngine()
	controller, err := safety.NewController(safety.DefaultConfig(), safety.SystemClock{}, safety.LogDriver{}, safety.NopWatchdog{})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	loop, err := services.NewControlLoop(services.DefaultControlLoopConfig(), engine, controller, dataStore, nil, nil)
	if err != nil {
		t.Fatalf("NewControlLoop() error = %v", err)
	}
	hub := ws.NewHub()

	return SetupRoutes(dataStore, hub, loop, engine, controller), dataStore
}

func doRequest(t *testing.T, router *chi.Mux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var response APIResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return response
}

func TestGetSystemStats(t *testing.T) {
	router, dataStore := newTestRouter(t)
	dataStore.AddSample(models.Sample{Channel: 0, Moisture: 400, Timestamp: time.Now()})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/stats", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	response := decodeResponse(t, recorder)
	if !response.Success {
		t.Errorf("success = false: %s", response.Error)
	}
	stats, ok := response.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is not an object: %T", response.Data)
	}
	if stats["total_samples"].(float64) != 1 {
		t.Errorf("total_samples = %v, want 1", stats["total_samples"])
	}
	if stats["connected_clients"].(float64) != 0 {
		t.Errorf("connected_clients = %v, want 0", stats["connected_clients"])
	}
}

func TestGetLatestSamples(t *testing.T) {
	router, dataStore := newTestRouter(t)

	// Empty channel returns 404.
	recorder := doRequest(t, router, http.MethodGet, "/api/v1/sensors/latest?channel=2", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("empty channel status = %d, want %d", recorder.Code, http.StatusNotFound)
	}

	dataStore.AddSample(models.Sample{Channel: 2, Moisture: 333, Timestamp: time.Now()})

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/sensors/latest?channel=2", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	sample, ok := response.Data.(map[string]interface{})
	if !ok || sample["moisture"].(float64) != 333 {
		t.Errorf("unexpected sample payload: %+v", response.Data)
	}

	// Out-of-range channel is rejected.
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/sensors/latest?channel=9", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad channel status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestAddSample(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]interface{}{"channel": 1, "moisture": 420, "temperature": 22, "humidity": 55, "light": 600}
	recorder := doRequest(t, router, http.MethodPost, "/api/v1/sensors/data", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", recorder.Code, http.StatusOK, recorder.Body.String())
	}

	// A second sample for the same channel hits the rate limit.
	recorder = doRequest(t, router, http.MethodPost, "/api/v1/sensors/data", body)
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("rate-limited status = %d, want %d", recorder.Code, http.StatusTooManyRequests)
	}

	// Bad channel is rejected before submission.
	body["channel"] = 12
	recorder = doRequest(t, router, http.MethodPost, "/api/v1/sensors/data", body)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad channel status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestDecisionHistoryEndpoints(t *testing.T) {
	router, dataStore := newTestRouter(t)

	now := time.Now()
	dataStore.AddDecisionEvent(&models.DecisionEvent{Channel: 0, Timestamp: now})
	dataStore.AddDecisionEvent(&models.DecisionEvent{Channel: 1, Timestamp: now})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/decisions/recent?channel=1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	events, ok := response.Data.([]interface{})
	if !ok || len(events) != 1 {
		t.Errorf("channel-filtered events = %+v, want 1 event", response.Data)
	}

	// Missing range parameters are rejected.
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/decisions/history", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("missing range status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}

	start := now.Add(-time.Hour).Format(time.RFC3339)
	end := now.Add(time.Hour).Format(time.RFC3339)
	recorder = doRequest(t, router, http.MethodGet, "/api/v1/decisions/history?start="+start+"&end="+end, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("range status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response = decodeResponse(t, recorder)
	if events, ok := response.Data.([]interface{}); !ok || len(events) != 2 {
		t.Errorf("in-range events = %+v, want 2 events", response.Data)
	}
}

func TestPumpEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/pumps/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	statuses, ok := response.Data.([]interface{})
	if !ok || len(statuses) != models.NumChannels {
		t.Errorf("pump statuses = %+v, want %d entries", response.Data, models.NumChannels)
	}

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/pumps/1/stop", nil)
	if recorder.Code != http.StatusOK {
		t.Errorf("emergency stop status = %d, want %d", recorder.Code, http.StatusOK)
	}

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/pumps/stop", nil)
	if recorder.Code != http.StatusOK {
		t.Errorf("emergency stop all status = %d, want %d", recorder.Code, http.StatusOK)
	}

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/pumps/7", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad channel status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestSafetyEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/safety/health", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	health, ok := response.Data.(map[string]interface{})
	if !ok || health["system_failsafe_active"].(bool) {
		t.Errorf("unexpected health payload: %+v", response.Data)
	}

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/safety/reset", nil)
	if recorder.Code != http.StatusOK {
		t.Errorf("reset status = %d, want %d", recorder.Code, http.StatusOK)
	}

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/safety/failsafe-mode", map[string]interface{}{"enabled": false})
	if recorder.Code != http.StatusOK {
		t.Errorf("failsafe-mode status = %d, want %d", recorder.Code, http.StatusOK)
	}

	// Missing enabled field is rejected.
	recorder = doRequest(t, router, http.MethodPost, "/api/v1/safety/failsafe-mode", map[string]interface{}{})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("missing enabled status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestPlantEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/plants/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("profiles status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	profiles, ok := response.Data.([]interface{})
	if !ok || len(profiles) != int(models.PlantTypeCount) {
		t.Errorf("profiles = %d entries, want %d", len(profiles), models.PlantTypeCount)
	}

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/plants/cactus", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("cactus status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response = decodeResponse(t, recorder)
	profile, ok := response.Data.(map[string]interface{})
	if !ok || profile["moisture_threshold"].(float64) != 800 {
		t.Errorf("cactus profile = %+v", response.Data)
	}

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/plants/triffid", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("unknown plant status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestSetPlantThresholds(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]interface{}{"plant": "tomato", "moisture_threshold": 550, "temperature_optimal": 21, "humidity_optimal": 55}
	recorder := doRequest(t, router, http.MethodPost, "/api/v1/plants/thresholds", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", recorder.Code, http.StatusOK, recorder.Body.String())
	}
	response := decodeResponse(t, recorder)
	profile := response.Data.(map[string]interface{})
	if profile["moisture_threshold"].(float64) != 550 || !profile["has_override"].(bool) {
		t.Errorf("override profile = %+v", response.Data)
	}

	// Out-of-range moisture is rejected.
	body["moisture_threshold"] = 5000
	recorder = doRequest(t, router, http.MethodPost, "/api/v1/plants/thresholds", body)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("out-of-range status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}

	recorder = doRequest(t, router, http.MethodPost, "/api/v1/plants/thresholds/reset?plant=tomato", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response = decodeResponse(t, recorder)
	profile = response.Data.(map[string]interface{})
	if profile["has_override"].(bool) {
		t.Error("override survived reset")
	}
}

func TestChannelConfigEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]interface{}{"plant": "fern", "growth_stage": "seedling"}
	recorder := doRequest(t, router, http.MethodPut, "/api/v1/plants/channels/2", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", recorder.Code, http.StatusOK, recorder.Body.String())
	}

	recorder = doRequest(t, router, http.MethodGet, "/api/v1/plants/channels", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("configs status = %d, want %d", recorder.Code, http.StatusOK)
	}
	response := decodeResponse(t, recorder)
	configs := response.Data.([]interface{})
	config := configs[2].(map[string]interface{})
	if config["plant"].(string) != "fern" || config["growth_stage"].(string) != "seedling" {
		t.Errorf("channel 2 config = %+v", config)
	}

	// Unknown plant is rejected.
	body["plant"] = "triffid"
	recorder = doRequest(t, router, http.MethodPut, "/api/v1/plants/channels/2", body)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("unknown plant status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestExportCSV(t *testing.T) {
	router, dataStore := newTestRouter(t)

	dataStore.AddDecisionEvent(&models.DecisionEvent{
		Channel:   0,
		Timestamp: time.Now(),
		Sample:    models.Sample{Moisture: 200, Temperature: 25},
		Action:    models.WaterAction{ShouldWater: true, Tier: models.TierLow, DurationMs: 500, AmountMl: 50},
		Executed:  true,
	})

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/export/history.csv", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", contentType)
	}
	bodyStr := recorder.Body.String()
	if !strings.Contains(bodyStr, "Timestamp") || !strings.Contains(bodyStr, "low") {
		t.Errorf("CSV body missing expected content:\n%s", bodyStr)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodGet, "/metrics", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
}
