// Package parse turns inbound wire payloads into samples.
package parse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// SampleParser handles parsing of sensor samples from various sources
type SampleParser struct{}

// NewSampleParser creates a new instance of SampleParser
func NewSampleParser() *SampleParser {
	return &SampleParser{}
}

// ParseSampleJSON parses a JSON payload from the sensor node. The channel
// argument wins over any channel field in the payload when non-negative.
// Readings are not range-checked here: the control loop decides what an
// out-of-range value means (an invalid moisture reading blocks the channel),
// so the parser must deliver it, not drop it.
func (sp *SampleParser) ParseSampleJSON(payload []byte, channel int) (*models.Sample, error) {
	var sample models.Sample

	if err := json.Unmarshal(payload, &sample); err != nil {
		return nil, fmt.Errorf("failed to parse sample JSON: %w", err)
	}

	if channel >= 0 {
		sample.Channel = channel
	}
	if sample.Channel < 0 || sample.Channel >= models.NumChannels {
		return nil, fmt.Errorf("sample channel %d out of range [0,%d)", sample.Channel, models.NumChannels)
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	sp.fillTimeFields(&sample)

	return &sample, nil
}

// ParseSampleString parses comma-separated sensor values (fallback format)
// Expected format: "channel,moisture,temperature,humidity,light"
func (sp *SampleParser) ParseSampleString(payload string) (*models.Sample, error) {
	var channel int
	var moisture, temperature, humidity, light float64

	n, err := fmt.Sscanf(payload, "%d,%f,%f,%f,%f", &channel, &moisture, &temperature, &humidity, &light)
	if err != nil || n != 5 {
		return nil, fmt.Errorf("failed to parse sample string: expected 5 values (channel,moisture,temperature,humidity,light), got %d", n)
	}

	if channel < 0 || channel >= models.NumChannels {
		return nil, fmt.Errorf("sample channel %d out of range [0,%d)", channel, models.NumChannels)
	}

	sample := &models.Sample{
		Channel:     channel,
		Moisture:    moisture,
		Temperature: temperature,
		Humidity:    humidity,
		LightLevel:  light,
		Timestamp:   time.Now(),
	}
	sp.fillTimeFields(sample)

	return sample, nil
}

// fillTimeFields derives the categorical time features from the timestamp
// when the upstream feed did not set them.
func (sp *SampleParser) fillTimeFields(sample *models.Sample) {
	if sample.Hour == 0 && sample.DayOfWeek == 0 && sample.Month == 0 {
		sample.Hour = sample.Timestamp.Hour()
		sample.DayOfWeek = int(sample.Timestamp.Weekday())
		sample.Month = int(sample.Timestamp.Month())
	}
}
