package services

import (
	"testing"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/store"
)

func newTestLoop(t *testing.T) (*ControlLoop, *store.Store) {
	t.Helper()

	engine := ml.NewDecisionEngine()
	controller, err := safety.NewController(safety.DefaultConfig(), safety.SystemClock{}, safety.LogDriver{}, safety.NopWatchdog{})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	dataStore := store.NewStore(100)

	loop, err := NewControlLoop(DefaultControlLoopConfig(), engine, controller, dataStore, nil, nil)
	if err != nil {
		t.Fatalf("NewControlLoop() error = %v", err)
	}
	return loop, dataStore
}

func drySample(channel int) models.Sample {
	return models.Sample{
		Channel:     channel,
		Moisture:    200,
		Temperature: 25,
		Humidity:    50,
		LightLevel:  500,
		Timestamp:   time.Now(),
	}
}

func TestControlLoopConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ControlLoopConfig)
		wantErr bool
	}{
		{"defaults", func(c *ControlLoopConfig) {}, false},
		{"zero tick", func(c *ControlLoopConfig) { c.TickInterval = 0 }, true},
		{"tick past watchdog", func(c *ControlLoopConfig) { c.TickInterval = safety.WatchdogTimeout }, true},
		{"zero rate limit", func(c *ControlLoopConfig) { c.MinSampleInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultControlLoopConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitRateLimit(t *testing.T) {
	loop, _ := newTestLoop(t)

	if !loop.Submit(drySample(0)) {
		t.Fatal("first sample rejected")
	}
	if loop.Submit(drySample(0)) {
		t.Error("second sample within the rate limit accepted")
	}
	// Other channels have their own limit window.
	if !loop.Submit(drySample(1)) {
		t.Error("sample for a different channel rejected")
	}
}

func TestSubmitRejectsBadChannel(t *testing.T) {
	loop, _ := newTestLoop(t)

	if loop.Submit(drySample(-1)) {
		t.Error("negative channel accepted")
	}
	if loop.Submit(drySample(models.NumChannels)) {
		t.Error("out-of-range channel accepted")
	}
}

func TestProcessSampleExecutesWatering(t *testing.T) {
	loop, dataStore := newTestLoop(t)
	now := time.Now()

	loop.processSample(drySample(0), now)

	events := dataStore.GetRecentDecisionEvents(0)
	if len(events) != 1 {
		t.Fatalf("decision events = %d, want 1", len(events))
	}
	event := events[0]
	if !event.Action.ShouldWater {
		t.Error("dry sample produced a no-op action")
	}
	if !event.Executed {
		t.Errorf("action not executed: %s", event.RefusalReason)
	}
	if event.SensorFault {
		t.Error("healthy sample flagged as sensor fault")
	}
	if dataStore.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", dataStore.GetSampleCount())
	}
}

func TestProcessSampleInvalidMoistureBlocksChannel(t *testing.T) {
	loop, dataStore := newTestLoop(t)
	now := time.Now()

	bad := drySample(0)
	bad.Moisture = -5
	loop.processSample(bad, now)

	if dataStore.GetDecisionEventCount() != 0 {
		t.Error("invalid moisture produced a decision event")
	}
	anomalies := dataStore.GetRecentAnomalyEvents(0)
	if len(anomalies) != 1 || anomalies[0].Kind != models.AnomalyKindRange {
		t.Fatalf("anomaly events = %+v, want one range anomaly", anomalies)
	}

	// The channel stays blocked until a valid reading arrives: even a dry
	// sample on the blocked channel is refused by the safety controller.
	loop.processSample(drySample(0), now)
	events := dataStore.GetRecentDecisionEvents(0)
	if len(events) != 1 {
		t.Fatalf("decision events = %d, want 1", len(events))
	}
	if !events[0].Executed {
		t.Error("valid reading did not unblock the channel")
	}
}

func TestProcessSampleFallbackSubstitution(t *testing.T) {
	loop, dataStore := newTestLoop(t)
	now := time.Now()

	weird := drySample(0)
	weird.Temperature = 999 // broken temperature sensor
	loop.processSample(weird, now)

	events := dataStore.GetRecentDecisionEvents(0)
	if len(events) != 1 {
		t.Fatalf("decision events = %d, want 1", len(events))
	}
	if events[0].Sample.Temperature != models.FallbackTemperature {
		t.Errorf("temperature = %v, want fallback %v", events[0].Sample.Temperature, models.FallbackTemperature)
	}
}

func TestProcessSampleFaultRecordsAnomaly(t *testing.T) {
	loop, dataStore := newTestLoop(t)
	now := time.Now()

	railed := drySample(0)
	railed.Moisture = 1023
	loop.processSample(railed, now)

	anomalies := dataStore.GetRecentAnomalyEvents(0)
	if len(anomalies) != 1 || anomalies[0].Kind != models.AnomalyKindSensorFault {
		t.Fatalf("anomaly events = %+v, want one sensor fault", anomalies)
	}

	// The failsafe branch still waters: 1023 reads far above the threshold.
	events := dataStore.GetRecentDecisionEvents(0)
	if len(events) != 1 {
		t.Fatalf("decision events = %d, want 1", len(events))
	}
	if !events[0].Action.IsFailsafe {
		t.Error("fault decision not marked failsafe")
	}
	if !events[0].Executed {
		t.Errorf("failsafe watering refused: %s", events[0].RefusalReason)
	}
}

func TestApplyCommands(t *testing.T) {
	loop, _ := newTestLoop(t)
	ch := 1

	if err := loop.applyCommand(models.OperatorCommand{
		Action:  models.CommandSetPlant,
		Channel: &ch,
		Plant:   "cactus",
		Stage:   "mature",
	}); err != nil {
		t.Errorf("set_plant failed: %v", err)
	}
	plant, stage := loop.engine.PlantConfig(ch)
	if plant != models.PlantCactus || stage != models.StageMature {
		t.Errorf("PlantConfig = %v/%v, want cactus/mature", plant, stage)
	}

	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandSetPlant, Channel: &ch, Plant: "triffid", Stage: "mature"}); err == nil {
		t.Error("unknown plant type accepted")
	}

	enabled := false
	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandSetFailsafeMode, Enabled: &enabled}); err != nil {
		t.Errorf("set_failsafe_mode failed: %v", err)
	}
	if loop.engine.FailsafeMode() {
		t.Error("failsafe mode still enabled")
	}

	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandSetThresholds, Plant: "tomato", Moisture: 550, Temperature: 21, Humidity: 55}); err != nil {
		t.Errorf("set_thresholds failed: %v", err)
	}
	if !loop.engine.Table().HasOverride(models.PlantTomato) {
		t.Error("threshold override not set")
	}

	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandResetThresholds}); err != nil {
		t.Errorf("reset_thresholds failed: %v", err)
	}
	if loop.engine.Table().HasOverride(models.PlantTomato) {
		t.Error("threshold override survived reset")
	}

	if err := loop.applyCommand(models.OperatorCommand{Action: "defenestrate"}); err == nil {
		t.Error("unknown action accepted")
	}

	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandEmergencyStop, Channel: &ch}); err != nil {
		t.Errorf("emergency_stop failed: %v", err)
	}
	if err := loop.applyCommand(models.OperatorCommand{Action: models.CommandResetFailsafe}); err != nil {
		t.Errorf("reset_failsafe failed: %v", err)
	}
}
