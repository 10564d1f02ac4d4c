package models

import (
	"time"
)

// NumChannels is the number of actuator channels the controller drives.
// Each channel pairs one moisture sensor with one pump.
const NumChannels = 4

// Physical sensor ranges. Readings outside these bounds are rejected at
// ingestion and never reach statistics or decisions.
const (
	MinMoisture = 0.0
	MaxMoisture = 1023.0

	MinTemperature = -40.0
	MaxTemperature = 80.0

	MinHumidity = 0.0
	MaxHumidity = 100.0

	MinLight = 0.0
	MaxLight = 1023.0
)

// Fallback values substituted when a non-critical sensor reads invalid.
// An invalid moisture reading has no fallback: it blocks the channel.
const (
	FallbackTemperature = 22.5
	FallbackHumidity    = 60.0
	FallbackLight       = 500.0
)

// Sample is one synchronized reading across moisture/temperature/humidity/light
// for a single actuator channel, plus optional time-of-day metadata.
type Sample struct {
	Channel     int       `json:"channel"`
	Moisture    float64   `json:"moisture"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	LightLevel  float64   `json:"light"`
	Timestamp   time.Time `json:"timestamp"`

	// Optional temporal features (0 when the upstream feed has no clock).
	Hour      int `json:"hour,omitempty"`
	DayOfWeek int `json:"day_of_week,omitempty"`
	Month     int `json:"month,omitempty"`

	// Plant context resolved by the decision engine before inference.
	PlantType       PlantType   `json:"plant_type,omitempty"`
	GrowthStage     GrowthStage `json:"growth_stage,omitempty"`
	HoursSinceWater float64     `json:"hours_since_water,omitempty"`
}

// ValidateReading checks if all sensor values are within physically
// plausible ranges.
func (s *Sample) ValidateReading() bool {
	return s.ValidMoisture() && s.ValidTemperature() && s.ValidHumidity() && s.ValidLight()
}

// ValidMoisture reports whether the moisture reading is physically plausible.
func (s *Sample) ValidMoisture() bool {
	return s.Moisture >= MinMoisture && s.Moisture <= MaxMoisture
}

// ValidTemperature reports whether the temperature reading is physically plausible.
func (s *Sample) ValidTemperature() bool {
	return s.Temperature >= MinTemperature && s.Temperature <= MaxTemperature
}

// ValidHumidity reports whether the humidity reading is physically plausible.
func (s *Sample) ValidHumidity() bool {
	return s.Humidity >= MinHumidity && s.Humidity <= MaxHumidity
}

// ValidLight reports whether the light reading is physically plausible.
func (s *Sample) ValidLight() bool {
	return s.LightLevel >= MinLight && s.LightLevel <= MaxLight
}

// ApplyFallbacks substitutes safe defaults for invalid non-critical readings
// and reports which fields were replaced. Moisture is never substituted.
func (s *Sample) ApplyFallbacks() []string {
	var replaced []string
	if !s.ValidTemperature() {
		s.Temperature = FallbackTemperature
		replaced = append(replaced, "temperature")
	}
	if !s.ValidHumidity() {
		s.Humidity = FallbackHumidity
		replaced = append(replaced, "humidity")
	}
	if !s.ValidLight() {
		s.LightLevel = FallbackLight
		replaced = append(replaced, "light")
	}
	return replaced
}

// FeatureIndex identifies one tracked feature within a Sample.
type FeatureIndex int

// Feature indices used by the statistics buffer and the decision tree.
const (
	FeatureMoisture FeatureIndex = iota
	FeatureTemperature
	FeatureHumidity
	FeatureLight
	FeatureTime
	FeaturePlantType
	FeatureGrowthStage

	FeatureCount = 7

	// PrimaryFeatureCount covers the four physical sensors tracked by the
	// rolling statistics buffer.
	PrimaryFeatureCount = 4
)

// String returns the feature name for logs and exports.
func (f FeatureIndex) String() string {
	switch f {
	case FeatureMoisture:
		return "moisture"
	case FeatureTemperature:
		return "temperature"
	case FeatureHumidity:
		return "humidity"
	case FeatureLight:
		return "light"
	case FeatureTime:
		return "time"
	case FeaturePlantType:
		return "plant_type"
	case FeatureGrowthStage:
		return "growth_stage"
	default:
		return "unknown"
	}
}

// FeatureValue extracts the value of a primary feature from the sample.
// Non-primary indices return 0.
func (s *Sample) FeatureValue(f FeatureIndex) float64 {
	switch f {
	case FeatureMoisture:
		return s.Moisture
	case FeatureTemperature:
		return s.Temperature
	case FeatureHumidity:
		return s.Humidity
	case FeatureLight:
		return s.LightLevel
	default:
		return 0
	}
}

// FeatureStatistics holds the derived statistics of one feature over the
// current history window. Recomputed whenever the window changes; never
// persisted across a reset.
type FeatureStatistics struct {
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SampleCount int     `json:"sample_count"`
}
