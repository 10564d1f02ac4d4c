package ml

import (
	"fmt"
	"math"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Default history buffer sizing. 24 slots covers a day of hourly samples.
const (
	DefaultHistoryCapacity = 24

	// MinSamplesForStats is the minimum window size below which statistics
	// are considered unreliable and anomaly checks short-circuit.
	MinSamplesForStats = 5
)

// HistoryBuffer is a fixed-capacity circular buffer of sensor samples with
// lazily computed per-feature statistics. The buffer owns its samples; the
// oldest entries are overwritten as new ones arrive.
type HistoryBuffer struct {
	samples    []models.Sample
	capacity   int
	size       int
	writeIndex int

	stats      [models.PrimaryFeatureCount]models.FeatureStatistics
	statsValid bool
}

// NewHistoryBuffer creates a buffer holding up to capacity samples.
// Non-positive capacities fall back to the default.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryBuffer{
		samples:  make([]models.Sample, capacity),
		capacity: capacity,
	}
}

// AddSample validates and stores a sample, overwriting the oldest entry once
// the buffer is full. Samples with any field outside its physical range are
// rejected and the buffer is left untouched.
func (b *HistoryBuffer) AddSample(s models.Sample) bool {
	if !s.ValidateReading() {
		return false
	}

	b.samples[b.writeIndex] = s
	b.writeIndex = (b.writeIndex + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}

	b.statsValid = false
	return true
}

// Statistics returns the statistics of one primary feature over the current
// window. Statistics are recomputed only when the window changed since the
// last query.
func (b *HistoryBuffer) Statistics(feature models.FeatureIndex) (models.FeatureStatistics, error) {
	if feature < 0 || int(feature) >= models.PrimaryFeatureCount {
		return models.FeatureStatistics{}, fmt.Errorf("feature index %d out of range", feature)
	}

	if !b.statsValid {
		b.recomputeStatistics()
	}

	return b.stats[feature], nil
}

// recomputeStatistics recalculates all primary feature statistics in two
// passes: sum/min/max/mean first, then population variance.
func (b *HistoryBuffer) recomputeStatistics() {
	for f := 0; f < models.PrimaryFeatureCount; f++ {
		feature := models.FeatureIndex(f)

		if b.size == 0 {
			b.stats[f] = models.FeatureStatistics{}
			continue
		}

		first := b.sampleAt(0).FeatureValue(feature)
		sum := 0.0
		min := first
		max := first

		for i := 0; i < b.size; i++ {
			v := b.sampleAt(i).FeatureValue(feature)
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		mean := sum / float64(b.size)

		varianceSum := 0.0
		for i := 0; i < b.size; i++ {
			diff := b.sampleAt(i).FeatureValue(feature) - mean
			varianceSum += diff * diff
		}
		variance := varianceSum / float64(b.size)

		b.stats[f] = models.FeatureStatistics{
			Mean:        mean,
			Variance:    variance,
			StdDev:      math.Sqrt(variance),
			Min:         min,
			Max:         max,
			SampleCount: b.size,
		}
	}

	b.statsValid = true
}

// sampleAt returns the stored sample at logical position i, oldest first.
func (b *HistoryBuffer) sampleAt(i int) *models.Sample {
	if b.size < b.capacity {
		return &b.samples[i]
	}
	return &b.samples[(b.writeIndex+i)%b.capacity]
}

// Window returns the values of one feature over the most recent size samples,
// oldest first. It fails when more samples are requested than are stored.
func (b *HistoryBuffer) Window(size int, feature models.FeatureIndex) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if size > b.size {
		return nil, fmt.Errorf("window size %d exceeds stored sample count %d", size, b.size)
	}

	window := make([]float64, size)
	offset := b.size - size
	for i := 0; i < size; i++ {
		window[i] = b.sampleAt(offset + i).FeatureValue(feature)
	}
	return window, nil
}

// Latest returns the most recently stored sample.
func (b *HistoryBuffer) Latest() (models.Sample, bool) {
	if b.size == 0 {
		return models.Sample{}, false
	}
	return *b.sampleAt(b.size - 1), true
}

// Size returns the number of samples currently stored.
func (b *HistoryBuffer) Size() int {
	return b.size
}

// Capacity returns the fixed capacity of the buffer.
func (b *HistoryBuffer) Capacity() int {
	return b.capacity
}

// HasMinimumData reports whether enough samples are stored for statistics
// to be trustworthy.
func (b *HistoryBuffer) HasMinimumData() bool {
	return b.size >= MinSamplesForStats
}

// Clear discards all samples and statistics.
func (b *HistoryBuffer) Clear() {
	b.size = 0
	b.writeIndex = 0
	b.statsValid = false
	for i := range b.samples {
		b.samples[i] = models.Sample{}
	}
}
