package ml

import (
	"sync"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Sentinel defaults returned for invalid plant types or stages. The profile
// table must never be the reason a decision fails.
const (
	DefaultMoistureThreshold  = 400.0
	DefaultTemperatureOptimal = 22.0
	DefaultHumidityOptimal    = 60.0
	DefaultLightRequirement   = 500.0
	DefaultWaterAmount        = 100.0
	DefaultStageModifier      = 1.0
)

// plantDatabase is the static profile table for all supported plant types.
// Stage modifiers are ordered seedling/vegetative/flowering/fruiting/mature.
var plantDatabase = [models.PlantTypeCount]models.PlantProfile{
	// Vegetables
	{Name: "Tomato", MoistureThreshold: 400, TemperatureOptimal: 24, HumidityOptimal: 60, LightRequirement: 700, BaseWaterAmount: 150, StageModifiers: [5]float64{0.8, 1.0, 1.2, 1.3, 1.0}},
	{Name: "Lettuce", MoistureThreshold: 350, TemperatureOptimal: 18, HumidityOptimal: 70, LightRequirement: 500, BaseWaterAmount: 100, StageModifiers: [5]float64{0.9, 1.0, 1.1, 0.8, 0.7}},
	{Name: "Basil", MoistureThreshold: 380, TemperatureOptimal: 22, HumidityOptimal: 65, LightRequirement: 600, BaseWaterAmount: 120, StageModifiers: [5]float64{0.8, 1.0, 1.2, 1.1, 0.9}},
	{Name: "Mint", MoistureThreshold: 300, TemperatureOptimal: 20, HumidityOptimal: 75, LightRequirement: 450, BaseWaterAmount: 130, StageModifiers: [5]float64{0.9, 1.0, 1.1, 1.0, 0.8}},
	{Name: "Pepper", MoistureThreshold: 420, TemperatureOptimal: 26, HumidityOptimal: 55, LightRequirement: 750, BaseWaterAmount: 140, StageModifiers: [5]float64{0.8, 1.0, 1.3, 1.4, 1.1}},

	// Flowers
	{Name: "Rose", MoistureThreshold: 450, TemperatureOptimal: 22, HumidityOptimal: 60, LightRequirement: 650, BaseWaterAmount: 160, StageModifiers: [5]float64{0.7, 1.0, 1.4, 1.2, 1.0}},
	{Name: "Sunflower", MoistureThreshold: 500, TemperatureOptimal: 25, HumidityOptimal: 50, LightRequirement: 800, BaseWaterAmount: 200, StageModifiers: [5]float64{0.8, 1.0, 1.5, 1.3, 1.1}},
	{Name: "Marigold", MoistureThreshold: 400, TemperatureOptimal: 21, HumidityOptimal: 55, LightRequirement: 600, BaseWaterAmount: 110, StageModifiers: [5]float64{0.9, 1.0, 1.2, 1.1, 0.8}},
	{Name: "Petunia", MoistureThreshold: 350, TemperatureOptimal: 20, HumidityOptimal: 65, LightRequirement: 550, BaseWaterAmount: 105, StageModifiers: [5]float64{0.8, 1.0, 1.3, 1.1, 0.9}},
	{Name: "Daisy", MoistureThreshold: 370, TemperatureOptimal: 19, HumidityOptimal: 60, LightRequirement: 500, BaseWaterAmount: 95, StageModifiers: [5]float64{0.9, 1.0, 1.1, 1.0, 0.8}},

	// Fruits
	{Name: "Strawberry", MoistureThreshold: 380, TemperatureOptimal: 20, HumidityOptimal: 70, LightRequirement: 550, BaseWaterAmount: 125, StageModifiers: [5]float64{0.8, 1.0, 1.2, 1.4, 1.2}},
	{Name: "Blueberry", MoistureThreshold: 400, TemperatureOptimal: 22, HumidityOptimal: 65, LightRequirement: 600, BaseWaterAmount: 140, StageModifiers: [5]float64{0.7, 1.0, 1.3, 1.5, 1.3}},
	{Name: "Raspberry", MoistureThreshold: 390, TemperatureOptimal: 21, HumidityOptimal: 68, LightRequirement: 580, BaseWaterAmount: 135, StageModifiers: [5]float64{0.8, 1.0, 1.2, 1.4, 1.2}},
	{Name: "Grape", MoistureThreshold: 450, TemperatureOptimal: 24, HumidityOptimal: 60, LightRequirement: 700, BaseWaterAmount: 180, StageModifiers: [5]float64{0.6, 1.0, 1.4, 1.6, 1.4}},

	// Specialty plants
	{Name: "Cactus", MoistureThreshold: 800, TemperatureOptimal: 28, HumidityOptimal: 30, LightRequirement: 900, BaseWaterAmount: 30, StageModifiers: [5]float64{0.5, 1.0, 1.1, 1.0, 0.9}},
	{Name: "Succulent", MoistureThreshold: 750, TemperatureOptimal: 26, HumidityOptimal: 35, LightRequirement: 850, BaseWaterAmount: 35, StageModifiers: [5]float64{0.6, 1.0, 1.0, 0.9, 0.8}},
	{Name: "Fern", MoistureThreshold: 250, TemperatureOptimal: 18, HumidityOptimal: 85, LightRequirement: 300, BaseWaterAmount: 90, StageModifiers: [5]float64{1.0, 1.0, 1.0, 0.9, 0.8}},
	{Name: "Orchid", MoistureThreshold: 300, TemperatureOptimal: 23, HumidityOptimal: 80, LightRequirement: 400, BaseWaterAmount: 80, StageModifiers: [5]float64{0.9, 1.0, 1.2, 1.1, 1.0}},
	{Name: "Bamboo", MoistureThreshold: 350, TemperatureOptimal: 22, HumidityOptimal: 70, LightRequirement: 550, BaseWaterAmount: 150, StageModifiers: [5]float64{0.8, 1.0, 1.1, 1.0, 0.9}},
	{Name: "Lavender", MoistureThreshold: 500, TemperatureOptimal: 25, HumidityOptimal: 45, LightRequirement: 750, BaseWaterAmount: 100, StageModifiers: [5]float64{0.7, 1.0, 1.3, 1.2, 1.0}},
}

// thresholdOverride shadows the static table for one plant type.
type thresholdOverride struct {
	moisture    float64
	temperature float64
	humidity    float64
	present     bool
}

// LookupTable resolves per-plant characteristics: the static profile table,
// optionally shadowed by runtime threshold overrides.
type LookupTable struct {
	mu        sync.RWMutex
	overrides [models.PlantTypeCount]thresholdOverride
}

// NewLookupTable creates a lookup table with no overrides set.
func NewLookupTable() *LookupTable {
	return &LookupTable{}
}

// MoistureThreshold returns the moisture threshold for a plant type at a
// growth stage: the override value if present, else the static table value,
// scaled by the stage modifier. Invalid inputs return the sentinel default.
func (t *LookupTable) MoistureThreshold(plant models.PlantType, stage models.GrowthStage) float64 {
	if !plant.Valid() {
		return DefaultMoistureThreshold
	}

	t.mu.RLock()
	override := t.overrides[plant]
	t.mu.RUnlock()

	base := plantDatabase[plant].MoistureThreshold
	if override.present {
		base = override.moisture
	}

	return base * t.StageModifier(plant, stage)
}

// TemperatureOptimal returns the optimal temperature for a plant type.
func (t *LookupTable) TemperatureOptimal(plant models.PlantType) float64 {
	if !plant.Valid() {
		return DefaultTemperatureOptimal
	}

	t.mu.RLock()
	override := t.overrides[plant]
	t.mu.RUnlock()

	if override.present {
		return override.temperature
	}
	return plantDatabase[plant].TemperatureOptimal
}

// HumidityOptimal returns the optimal humidity for a plant type.
func (t *LookupTable) HumidityOptimal(plant models.PlantType) float64 {
	if !plant.Valid() {
		return DefaultHumidityOptimal
	}

	t.mu.RLock()
	override := t.overrides[plant]
	t.mu.RUnlock()

	if override.present {
		return override.humidity
	}
	return plantDatabase[plant].HumidityOptimal
}

// LightRequirement returns the light requirement for a plant type.
// Light has no override slot.
func (t *LookupTable) LightRequirement(plant models.PlantType) float64 {
	if !plant.Valid() {
		return DefaultLightRequirement
	}
	return plantDatabase[plant].LightRequirement
}

// WaterAmount returns the base water amount for a plant type scaled by the
// growth stage modifier.
func (t *LookupTable) WaterAmount(plant models.PlantType, stage models.GrowthStage) float64 {
	if !plant.Valid() {
		return DefaultWaterAmount
	}
	return plantDatabase[plant].BaseWaterAmount * t.StageModifier(plant, stage)
}

// StageModifier returns the growth stage modifier, or 1.0 for invalid input.
func (t *LookupTable) StageModifier(plant models.PlantType, stage models.GrowthStage) float64 {
	if !plant.Valid() || !stage.Valid() {
		return DefaultStageModifier
	}
	return plantDatabase[plant].StageModifiers[stage]
}

// PlantName returns the display name for a plant type.
func (t *LookupTable) PlantName(plant models.PlantType) string {
	if !plant.Valid() {
		return "Unknown"
	}
	return plantDatabase[plant].Name
}

// Profile returns the full profile for a plant type with any overrides
// applied. Invalid types return the sentinel default profile.
func (t *LookupTable) Profile(plant models.PlantType) models.PlantProfile {
	if !plant.Valid() {
		return models.PlantProfile{
			Name:               "Unknown",
			MoistureThreshold:  DefaultMoistureThreshold,
			TemperatureOptimal: DefaultTemperatureOptimal,
			HumidityOptimal:    DefaultHumidityOptimal,
			LightRequirement:   DefaultLightRequirement,
			BaseWaterAmount:    DefaultWaterAmount,
			StageModifiers:     [5]float64{1, 1, 1, 1, 1},
		}
	}

	profile := plantDatabase[plant]

	t.mu.RLock()
	override := t.overrides[plant]
	t.mu.RUnlock()

	if override.present {
		profile.MoistureThreshold = override.moisture
		profile.TemperatureOptimal = override.temperature
		profile.HumidityOptimal = override.humidity
	}
	return profile
}

// HasOverride reports whether a custom threshold override is set for the type.
func (t *LookupTable) HasOverride(plant models.PlantType) bool {
	if !plant.Valid() {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.overrides[plant].present
}

// UpdateThresholds sets a custom threshold override for one plant type.
// Invalid types are ignored.
func (t *LookupTable) UpdateThresholds(plant models.PlantType, moisture, temperature, humidity float64) {
	if !plant.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[plant] = thresholdOverride{
		moisture:    moisture,
		temperature: temperature,
		humidity:    humidity,
		present:     true,
	}
}

// ResetToDefaults clears the override for one plant type.
func (t *LookupTable) ResetToDefaults(plant models.PlantType) {
	if !plant.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[plant] = thresholdOverride{}
}

// ResetAllToDefaults clears every override.
func (t *LookupTable) ResetAllToDefaults() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.overrides {
		t.overrides[i] = thresholdOverride{}
	}
}
