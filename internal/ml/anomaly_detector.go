package ml

import (
	"math"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Anomaly detection thresholds.
const (
	// AnomalyZScoreThreshold flags a single feature as anomalous beyond
	// this many standard deviations.
	AnomalyZScoreThreshold = 3.0

	// AnomalyProbabilityThreshold is the combined-score equivalent of the
	// 3-sigma rule (99.7% confidence).
	AnomalyProbabilityThreshold = 0.997
)

// Sensor rail constants. Readings at or near the electrical rails are the
// typical signature of a disconnected sensor.
const (
	moistureRailLow  = 5.0
	moistureRailHigh = 1018.0
	tempRailLow      = -50.0
	tempRailHigh     = 80.0
	humidityRailLow  = 1.0
	humidityRailHigh = 99.0
	lightRailLow     = 5.0
	lightRailHigh    = 1018.0
)

// AnomalyDetector scores samples against the rolling statistics of recent
// history and flags sensor fault patterns.
type AnomalyDetector struct {
	history *HistoryBuffer
}

// NewAnomalyDetector creates a detector with the default history window.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{
		history: NewHistoryBuffer(DefaultHistoryCapacity),
	}
}

// NewAnomalyDetectorWithCapacity creates a detector with a custom history window.
func NewAnomalyDetectorWithCapacity(capacity int) *AnomalyDetector {
	return &AnomalyDetector{
		history: NewHistoryBuffer(capacity),
	}
}

// Record adds a sample to the rolling history. Out-of-range samples are
// rejected so they never poison the statistics.
func (d *AnomalyDetector) Record(s models.Sample) bool {
	return d.history.AddSample(s)
}

// Score converts a sample into a bounded anomaly probability in [0,1].
// It returns 0 while fewer than the minimum samples are available: anomalies
// are never flagged before statistics are trustworthy.
func (d *AnomalyDetector) Score(s models.Sample) float64 {
	if !d.history.HasMinimumData() {
		return 0
	}

	maxZ := 0.0
	for f := models.FeatureIndex(0); int(f) < models.PrimaryFeatureCount; f++ {
		stats, err := d.history.Statistics(f)
		if err != nil {
			continue
		}
		z := math.Abs(zScore(s.FeatureValue(f), stats))
		if z > maxZ {
			maxZ = z
		}
	}

	// Smooth, saturating CDF approximation: monotonic in z, 0.5 at z=0,
	// asymptotes to 1.
	return 0.5 * (1.0 + math.Tanh(maxZ/math.Sqrt2))
}

// zScore computes (value - mean) / stdDev. A zero-variance history is treated
// as "no deviation possible" rather than infinite anomaly.
func zScore(value float64, stats models.FeatureStatistics) float64 {
	if stats.StdDev == 0 {
		return 0
	}
	return (value - stats.Mean) / stats.StdDev
}

// IsFeatureAnomaly reports whether a single feature value deviates beyond
// the z-score threshold from its rolling history.
func (d *AnomalyDetector) IsFeatureAnomaly(feature models.FeatureIndex, value float64) bool {
	if !d.history.HasMinimumData() {
		return false
	}
	stats, err := d.history.Statistics(feature)
	if err != nil {
		return false
	}
	return math.Abs(zScore(value, stats)) > AnomalyZScoreThreshold
}

// IsSensorFault reports whether the sample shows a sensor fault: a
// disconnection pattern, a physically impossible value, or a combined
// anomaly score beyond the 3-sigma equivalent. Rail and range checks run
// first so a railed sensor is classified as a fault, not scored as an
// ordinary statistical anomaly.
func (d *AnomalyDetector) IsSensorFault(s models.Sample) bool {
	if d.IsSensorDisconnected(s) {
		return true
	}
	if d.IsSensorOutOfRange(s) {
		return true
	}
	return d.Score(s) > AnomalyProbabilityThreshold
}

// IsSensorDisconnected checks for typical disconnection patterns: readings
// pinned at the electrical rails.
func (d *AnomalyDetector) IsSensorDisconnected(s models.Sample) bool {
	if s.Moisture <= moistureRailLow || s.Moisture >= moistureRailHigh {
		return true
	}
	if s.Temperature <= tempRailLow || s.Temperature >= tempRailHigh {
		return true
	}
	if s.Humidity <= humidityRailLow || s.Humidity >= humidityRailHigh {
		return true
	}
	if s.LightLevel <= lightRailLow || s.LightLevel >= lightRailHigh {
		return true
	}
	return false
}

// IsSensorOutOfRange checks for physically impossible values.
func (d *AnomalyDetector) IsSensorOutOfRange(s models.Sample) bool {
	return !s.ValidateReading()
}

// Statistics exposes the rolling statistics of one feature.
func (d *AnomalyDetector) Statistics(feature models.FeatureIndex) (models.FeatureStatistics, error) {
	return d.history.Statistics(feature)
}

// HistoryCount returns the number of recorded samples.
func (d *AnomalyDetector) HistoryCount() int {
	return d.history.Size()
}

// HasEnoughData reports whether the detector has seen enough samples to score.
func (d *AnomalyDetector) HasEnoughData() bool {
	return d.history.HasMinimumData()
}

// ClearHistory discards all recorded samples and statistics.
func (d *AnomalyDetector) ClearHistory() {
	d.history.Clear()
}
