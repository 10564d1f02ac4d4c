package ml

import (
	"math"
	"testing"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

func TestMapToWaterAmountBoundaries(t *testing.T) {
	e := NewDecisionEngine()

	tests := []struct {
		prediction float64
		wantTier   models.WaterTier
	}{
		{0.0, models.TierNone},
		{0.2, models.TierNone},
		{0.25, models.TierNone}, // boundary is exclusive
		{0.26, models.TierLow},
		{0.5, models.TierLow}, // boundary is exclusive
		{0.51, models.TierMedium},
		{0.75, models.TierMedium}, // boundary is exclusive
		{0.76, models.TierHigh},
		{1.0, models.TierHigh},
	}

	for _, tt := range tests {
		action := e.MapToWaterAmount(tt.prediction)
		if action.Tier != tt.wantTier {
			t.Errorf("MapToWaterAmount(%v) tier = %v, want %v", tt.prediction, action.Tier, tt.wantTier)
		}
		if tt.wantTier == models.TierNone {
			if action.ShouldWater {
				t.Errorf("MapToWaterAmount(%v) ShouldWater = true, want false", tt.prediction)
			}
			continue
		}
		if !action.ShouldWater {
			t.Errorf("MapToWaterAmount(%v) ShouldWater = false", tt.prediction)
		}
		wantMl := float64(tt.wantTier) * MlPerTierUnit
		if action.AmountMl != wantMl {
			t.Errorf("MapToWaterAmount(%v) AmountMl = %v, want %v", tt.prediction, action.AmountMl, wantMl)
		}
	}
}

func TestTierDurations(t *testing.T) {
	e := NewDecisionEngine()

	if got := e.MapToWaterAmount(0.3).DurationMs; got != TierDurationLowMs {
		t.Errorf("LOW duration = %d, want %d", got, TierDurationLowMs)
	}
	if got := e.MapToWaterAmount(0.6).DurationMs; got != TierDurationMediumMs {
		t.Errorf("MEDIUM duration = %d, want %d", got, TierDurationMediumMs)
	}
	if got := e.MapToWaterAmount(0.9).DurationMs; got != TierDurationHighMs {
		t.Errorf("HIGH duration = %d, want %d", got, TierDurationHighMs)
	}
}

func TestComputeFeatureScore(t *testing.T) {
	e := NewDecisionEngine()

	s := models.Sample{
		Moisture:        200,
		Temperature:     25,
		Humidity:        50,
		LightLevel:      500,
		HoursSinceWater: 0,
	}

	want := (200.0/1023.0)*0.4 + 0.5*0.2 + 0.5*0.2 + (500.0/1023.0)*0.1
	if got := e.computeFeatureScore(s); math.Abs(got-want) > 1e-9 {
		t.Errorf("computeFeatureScore() = %v, want %v", got, want)
	}

	// Components saturate rather than leave [0,1].
	extreme := models.Sample{
		Moisture:        1023,
		Temperature:     100,
		Humidity:        100,
		LightLevel:      1023,
		HoursSinceWater: 500,
	}
	if got := e.computeFeatureScore(extreme); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("computeFeatureScore(extreme) = %v, want 1.0", got)
	}
}

func TestPredictWaterNeedBounded(t *testing.T) {
	e := NewDecisionEngine()

	for _, moisture := range []float64{0, 200, 500, 800, 1023} {
		s := models.Sample{Moisture: moisture, Temperature: 25, Humidity: 50, LightLevel: 500}
		got := e.PredictWaterNeed(s, models.PlantTomato, models.StageVegetative)
		if got < 0 || got > 1 {
			t.Errorf("PredictWaterNeed(moisture=%v) = %v, outside [0,1]", moisture, got)
		}
	}
}

func TestGetImmediateActionDrySoil(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	dry := models.Sample{
		Channel:     0,
		Moisture:    200,
		Temperature: 25,
		Humidity:    50,
		LightLevel:  500,
		Timestamp:   now,
	}

	// Feed enough identical samples for statistics to settle, then decide.
	var action models.WaterAction
	for i := 0; i < 30; i++ {
		action = e.GetImmediateAction(0, dry, now)
		if action.ShouldWater {
			break
		}
		now = now.Add(time.Minute)
	}

	if !action.ShouldWater {
		t.Fatal("GetImmediateAction() never decided to water dry soil")
	}
	if action.IsFailsafe {
		t.Error("IsFailsafe = true for a healthy dry reading")
	}
	if action.Tier < models.TierLow {
		t.Errorf("Tier = %v, want at least LOW", action.Tier)
	}
	if action.DurationMs <= 0 || action.DurationMs > TierDurationHighMs {
		t.Errorf("DurationMs = %d, out of expected range", action.DurationMs)
	}

	if _, watered := e.LastWatering(0); !watered {
		t.Error("LastWatering() not recorded after a normal watering")
	}
}

func TestGetImmediateActionRespectsInterval(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	dry := models.Sample{Moisture: 200, Temperature: 25, Humidity: 50, LightLevel: 500}

	var first models.WaterAction
	for i := 0; i < 30; i++ {
		first = e.GetImmediateAction(0, dry, now)
		if first.ShouldWater {
			break
		}
		now = now.Add(time.Minute)
	}
	if !first.ShouldWater {
		t.Fatal("setup: engine never watered")
	}

	// Within the re-watering interval the same conditions are refused.
	again := e.GetImmediateAction(0, dry, now.Add(time.Hour))
	if again.ShouldWater {
		t.Error("watered again within the minimum interval")
	}

	// After the interval elapses the decision is allowed once more.
	later := e.GetImmediateAction(0, dry, now.Add(MinWateringInterval+time.Minute))
	if !later.ShouldWater {
		t.Error("refused to water after the minimum interval elapsed")
	}
}

func TestGetImmediateActionFailsafeBranch(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// A railed moisture reading is a sensor fault; 1023 is also well above
	// the tomato threshold times the dryness factor, so the failsafe
	// branch waters a bounded MEDIUM.
	railed := models.Sample{Moisture: 1023, Temperature: 25, Humidity: 50, LightLevel: 500}

	action := e.GetImmediateAction(0, railed, now)
	if !action.ShouldWater {
		t.Fatal("failsafe branch did not water despite a dry-reading fault")
	}
	if !action.IsFailsafe {
		t.Error("IsFailsafe = false on the failsafe branch")
	}
	if action.Tier != models.TierMedium {
		t.Errorf("Tier = %v, want MEDIUM", action.Tier)
	}
	if action.DurationMs != TierDurationMediumMs {
		t.Errorf("DurationMs = %d, want %d", action.DurationMs, TierDurationMediumMs)
	}

	// Failsafe waterings never record a watering time.
	if _, watered := e.LastWatering(0); watered {
		t.Error("failsafe watering recorded a last-watering time")
	}

	// The failsafe branch ignores the re-watering interval: an immediate
	// repeat still waters.
	repeat := e.GetImmediateAction(0, railed, now.Add(time.Second))
	if !repeat.ShouldWater || !repeat.IsFailsafe {
		t.Error("failsafe branch blocked by the re-watering interval")
	}
}

func TestFailsafeBranchRequiresDryReading(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Railed low: a fault, but the reading does not suggest dryness.
	railedLow := models.Sample{Moisture: 2, Temperature: 25, Humidity: 50, LightLevel: 500}
	if action := e.GetImmediateAction(0, railedLow, now); action.ShouldWater {
		t.Error("failsafe branch watered on a wet-reading fault")
	}
}

func TestFailsafeModeDisabled(t *testing.T) {
	e := NewDecisionEngine()
	e.SetFailsafeMode(false)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	railed := models.Sample{Moisture: 1023, Temperature: 25, Humidity: 50, LightLevel: 500}
	if action := e.GetImmediateAction(0, railed, now); action.ShouldWater {
		t.Error("failsafe branch watered with failsafe mode disabled")
	}
}

func TestGetImmediateActionInvalidChannel(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Now()
	dry := models.Sample{Moisture: 200, Temperature: 25, Humidity: 50, LightLevel: 500}

	for _, ch := range []int{-1, models.NumChannels, 99} {
		if action := e.GetImmediateAction(ch, dry, now); action.ShouldWater {
			t.Errorf("GetImmediateAction(channel=%d) watered, want no-op", ch)
		}
	}
}

func TestSetPlantConfig(t *testing.T) {
	e := NewDecisionEngine()

	e.SetPlantConfig(1, models.PlantCactus, models.StageMature)
	plant, stage := e.PlantConfig(1)
	if plant != models.PlantCactus || stage != models.StageMature {
		t.Errorf("PlantConfig(1) = %v/%v, want cactus/mature", plant, stage)
	}

	// Invalid assignments are ignored.
	e.SetPlantConfig(1, models.PlantType(99), models.StageMature)
	plant, _ = e.PlantConfig(1)
	if plant != models.PlantCactus {
		t.Errorf("invalid SetPlantConfig changed the assignment to %v", plant)
	}
	e.SetPlantConfig(-1, models.PlantRose, models.StageSeedling)
	e.SetPlantConfig(models.NumChannels, models.PlantRose, models.StageSeedling)
}

func TestEngineStats(t *testing.T) {
	e := NewDecisionEngine()
	now := time.Now()

	dry := models.Sample{Moisture: 200, Temperature: 25, Humidity: 50, LightLevel: 500}
	railed := models.Sample{Moisture: 1023, Temperature: 25, Humidity: 50, LightLevel: 500}

	e.GetImmediateAction(0, dry, now)
	e.GetImmediateAction(0, railed, now)

	stats := e.Stats()
	if stats.TotalInferences != 2 {
		t.Errorf("TotalInferences = %d, want 2", stats.TotalInferences)
	}
	if stats.AnomaliesDetected != 1 {
		t.Errorf("AnomaliesDetected = %d, want 1", stats.AnomaliesDetected)
	}
	if stats.FailsafeActivations != 1 {
		t.Errorf("FailsafeActivations = %d, want 1", stats.FailsafeActivations)
	}

	e.ResetStats()
	if s := e.Stats(); s.TotalInferences != 0 || s.AnomaliesDetected != 0 {
		t.Errorf("Stats() after reset = %+v, want zeros", s)
	}
}
