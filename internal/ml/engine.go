package ml

import (
	"sync"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Feature score weights. Each component is clamped to [0,1] before weighting
// so the combined score stays in [0,1].
const (
	WeightMoisture    = 0.4
	WeightTemperature = 0.2
	WeightHumidity    = 0.2
	WeightLight       = 0.1
	WeightTime        = 0.1

	// Temperature is mapped linearly from this band onto [0,1].
	TemperatureBandLow  = 10.0
	TemperatureBandHigh = 40.0

	// Hours-since-watering saturates at this cap.
	MaxHoursSinceWater = 48.0
)

// Watering tier mapping constants.
const (
	TierDurationLowMs    = 500
	TierDurationMediumMs = 1000
	TierDurationHighMs   = 2000

	// Milliliters delivered per tier unit at the assumed pump flow rate.
	MlPerTierUnit = 50.0
)

// MinWateringInterval is the minimum time between two normal waterings of
// the same channel. Failsafe waterings bypass it.
const MinWateringInterval = 6 * time.Hour

// FailsafeMoistureFactor gates the failsafe watering branch: with a faulted
// sensor the engine only waters when the moisture reading is at least 20%
// above the plant's threshold, i.e. the plant still plausibly reads dry.
const FailsafeMoistureFactor = 1.2

// channelState carries the per-channel plant assignment and watering history.
type channelState struct {
	plantType    models.PlantType
	growthStage  models.GrowthStage
	lastWatering time.Time
	hasWatered   bool
}

// EngineStats is a snapshot of the engine's inference counters.
type EngineStats struct {
	TotalInferences        uint64  `json:"total_inferences"`
	AnomaliesDetected      uint64  `json:"anomalies_detected"`
	FailsafeActivations    uint64  `json:"failsafe_activations"`
	AverageInferenceMicros float64 `json:"average_inference_micros"`
}

// DecisionEngine composes the anomaly detector, plant profile table and
// decision tree into per-channel watering decisions.
type DecisionEngine struct {
	mu       sync.RWMutex
	table    *LookupTable
	tree     *DecisionTree
	detector *AnomalyDetector

	channels     [models.NumChannels]channelState
	failsafeMode bool

	totalInferences     uint64
	anomaliesDetected   uint64
	failsafeActivations uint64
	inferenceMicros     uint64
}

// NewDecisionEngine creates an engine with the default tree installed,
// an empty history and every channel assigned Tomato at vegetative stage.
func NewDecisionEngine() *DecisionEngine {
	e := &DecisionEngine{
		table:        NewLookupTable(),
		tree:         NewDecisionTree(),
		detector:     NewAnomalyDetector(),
		failsafeMode: true,
	}
	for i := range e.channels {
		e.channels[i] = channelState{
			plantType:   models.PlantTomato,
			growthStage: models.StageVegetative,
		}
	}
	return e
}

// Table returns the plant profile table for configuration calls.
func (e *DecisionEngine) Table() *LookupTable {
	return e.table
}

// Detector returns the anomaly detector for statistics queries.
func (e *DecisionEngine) Detector() *AnomalyDetector {
	return e.detector
}

// SetPlantConfig assigns a plant type and growth stage to a channel.
// Invalid channels or enum values are ignored.
func (e *DecisionEngine) SetPlantConfig(channel int, plant models.PlantType, stage models.GrowthStage) {
	if channel < 0 || channel >= models.NumChannels || !plant.Valid() || !stage.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[channel].plantType = plant
	e.channels[channel].growthStage = stage
}

// PlantConfig returns the plant type and growth stage assigned to a channel.
func (e *DecisionEngine) PlantConfig(channel int) (models.PlantType, models.GrowthStage) {
	if channel < 0 || channel >= models.NumChannels {
		return models.PlantTomato, models.StageVegetative
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.channels[channel].plantType, e.channels[channel].growthStage
}

// SetFailsafeMode enables or disables the failsafe watering branch taken
// on sensor faults.
func (e *DecisionEngine) SetFailsafeMode(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failsafeMode = enabled
}

// FailsafeMode reports whether the failsafe watering branch is enabled.
func (e *DecisionEngine) FailsafeMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failsafeMode
}

// LastWatering returns the last recorded normal watering time for a channel
// and whether one has been recorded at all.
func (e *DecisionEngine) LastWatering(channel int) (time.Time, bool) {
	if channel < 0 || channel >= models.NumChannels {
		return time.Time{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.channels[channel].lastWatering, e.channels[channel].hasWatered
}

// RecordSample adds a sample to the shared statistics history. Invalid
// samples are rejected and not recorded.
func (e *DecisionEngine) RecordSample(s models.Sample) bool {
	return e.detector.Record(s)
}

// DetectAnomaly scores a sample against the history and reports whether it
// matches a sensor-fault pattern.
func (e *DecisionEngine) DetectAnomaly(s models.Sample) (score float64, fault bool) {
	fault = e.detector.IsSensorFault(s)
	if !fault {
		score = e.detector.Score(s)
	}
	return score, fault
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// computeFeatureScore folds a raw sample into the single normalized score
// the default tree splits on.
func (e *DecisionEngine) computeFeatureScore(s models.Sample) float64 {
	moisture := clamp01(s.Moisture / models.MaxMoisture)
	temperature := clamp01((s.Temperature - TemperatureBandLow) / (TemperatureBandHigh - TemperatureBandLow))
	humidity := clamp01(s.Humidity / models.MaxHumidity)
	light := clamp01(s.LightLevel / models.MaxLight)
	hours := clamp01(s.HoursSinceWater / MaxHoursSinceWater)

	return moisture*WeightMoisture +
		temperature*WeightTemperature +
		humidity*WeightHumidity +
		light*WeightLight +
		hours*WeightTime
}

// PredictWaterNeed evaluates the decision tree on a sample's feature score
// and scales the prediction by the plant's normalized moisture threshold.
// The result is in [0,1].
func (e *DecisionEngine) PredictWaterNeed(s models.Sample, plant models.PlantType, stage models.GrowthStage) float64 {
	featureScore := e.computeFeatureScore(s)
	raw := e.tree.PredictScore(featureScore)

	// Thresholds live on the raw ADC scale; normalize so the prediction
	// stays a probability-like value.
	threshold := e.table.MoistureThreshold(plant, stage) / models.MaxMoisture
	return clamp01(raw * threshold)
}

// MapToWaterAmount converts a prediction into a discrete watering action.
// Tier boundaries are exclusive: exactly 0.25 is still NONE.
func (e *DecisionEngine) MapToWaterAmount(prediction float64) models.WaterAction {
	var tier models.WaterTier
	switch {
	case prediction > 0.75:
		tier = models.TierHigh
	case prediction > 0.5:
		tier = models.TierMedium
	case prediction > 0.25:
		tier = models.TierLow
	default:
		return models.WaterAction{}
	}

	return models.WaterAction{
		ShouldWater: true,
		Tier:        tier,
		DurationMs:  tierDurationMs(tier),
		AmountMl:    float64(tier) * MlPerTierUnit,
	}
}

func tierDurationMs(tier models.WaterTier) int64 {
	switch tier {
	case models.TierLow:
		return TierDurationLowMs
	case models.TierMedium:
		return TierDurationMediumMs
	case models.TierHigh:
		return TierDurationHighMs
	default:
		return 0
	}
}

// GetImmediateAction runs the full decision pipeline for one channel and
// returns the resulting action. Unknown channels return a no-op, never an
// error. The caller supplies the decision time so tests can drive the clock.
func (e *DecisionEngine) GetImmediateAction(channel int, s models.Sample, now time.Time) models.WaterAction {
	if channel < 0 || channel >= models.NumChannels {
		return models.WaterAction{}
	}

	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	state := &e.channels[channel]
	s.PlantType = state.plantType
	s.GrowthStage = state.growthStage
	if state.hasWatered {
		s.HoursSinceWater = now.Sub(state.lastWatering).Hours()
	} else {
		s.HoursSinceWater = MaxHoursSinceWater
	}

	defer func() {
		e.totalInferences++
		e.inferenceMicros += uint64(time.Since(started).Microseconds())
	}()

	if e.detector.IsSensorFault(s) {
		e.anomaliesDetected++
		// Faulted sensor: water a bounded MEDIUM only when the reading
		// itself still suggests dryness. Never records a watering time
		// and never checks the re-watering interval.
		threshold := e.table.MoistureThreshold(state.plantType, state.growthStage)
		if e.failsafeMode && s.Moisture > threshold*FailsafeMoistureFactor {
			e.failsafeActivations++
			return models.WaterAction{
				ShouldWater: true,
				Tier:        models.TierMedium,
				DurationMs:  TierDurationMediumMs,
				AmountMl:    float64(models.TierMedium) * MlPerTierUnit,
				IsFailsafe:  true,
			}
		}
		return models.WaterAction{}
	}

	e.detector.Record(s)

	prediction := e.PredictWaterNeed(s, state.plantType, state.growthStage)
	action := e.MapToWaterAmount(prediction)
	if !action.ShouldWater {
		return models.WaterAction{}
	}

	if state.hasWatered && now.Sub(state.lastWatering) < MinWateringInterval {
		return models.WaterAction{}
	}

	state.lastWatering = now
	state.hasWatered = true
	return action
}

// Stats returns a snapshot of the inference counters.
func (e *DecisionEngine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := EngineStats{
		TotalInferences:     e.totalInferences,
		AnomaliesDetected:   e.anomaliesDetected,
		FailsafeActivations: e.failsafeActivations,
	}
	if e.totalInferences > 0 {
		stats.AverageInferenceMicros = float64(e.inferenceMicros) / float64(e.totalInferences)
	}
	return stats
}

// ResetStats zeroes the inference counters.
func (e *DecisionEngine) ResetStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalInferences = 0
	e.anomaliesDetected = 0
	e.failsafeActivations = 0
	e.inferenceMicros = 0
}
