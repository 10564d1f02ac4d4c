package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// PlantsFile is the on-disk channel-to-plant assignment, loaded at startup
// from plants.yaml. Threshold overrides listed here are applied on top of
// the built-in plant profiles.
type PlantsFile struct {
	Channels   []ChannelAssignment `yaml:"channels"`
	Thresholds []ThresholdOverride `yaml:"thresholds"`
}

// ChannelAssignment binds one actuator channel to a plant and growth stage.
type ChannelAssignment struct {
	Channel int    `yaml:"channel"`
	Plant   string `yaml:"plant"`
	Stage   string `yaml:"stage"`
}

// ThresholdOverride replaces the default thresholds for one plant type.
type ThresholdOverride struct {
	Plant       string  `yaml:"plant"`
	Moisture    float64 `yaml:"moisture"`
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
}

// LoadPlantsFile reads and validates a plants.yaml file. A missing file is
// not an error: the controller falls back to the built-in defaults.
func LoadPlantsFile(path string) (*PlantsFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &PlantsFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plants file: %w", err)
	}

	var plants PlantsFile
	if err := yaml.Unmarshal(data, &plants); err != nil {
		return nil, fmt.Errorf("failed to parse plants file: %w", err)
	}

	if err := plants.Validate(); err != nil {
		return nil, err
	}
	return &plants, nil
}

// Validate checks channel ranges and plant/stage names.
func (p *PlantsFile) Validate() error {
	for _, assignment := range p.Channels {
		if assignment.Channel < 0 || assignment.Channel >= models.NumChannels {
			return fmt.Errorf("plants file: channel %d out of range [0,%d)", assignment.Channel, models.NumChannels)
		}
		if _, ok := models.ParsePlantType(assignment.Plant); !ok {
			return fmt.Errorf("plants file: unknown plant %q on channel %d", assignment.Plant, assignment.Channel)
		}
		if _, ok := models.ParseGrowthStage(assignment.Stage); !ok {
			return fmt.Errorf("plants file: unknown growth stage %q on channel %d", assignment.Stage, assignment.Channel)
		}
	}

	for _, override := range p.Thresholds {
		if _, ok := models.ParsePlantType(override.Plant); !ok {
			return fmt.Errorf("plants file: unknown plant %q in thresholds", override.Plant)
		}
		if override.Moisture < models.MinMoisture || override.Moisture > models.MaxMoisture {
			return fmt.Errorf("plants file: moisture threshold %.1f for %q out of range [%.0f,%.0f]",
				override.Moisture, override.Plant, models.MinMoisture, models.MaxMoisture)
		}
	}

	return nil
}
