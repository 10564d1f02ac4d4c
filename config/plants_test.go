package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writePlantsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plants.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plants file: %v", err)
	}
	return path
}

func TestLoadPlantsFile(t *testing.T) {
	path := writePlantsFile(t, `
channels:
  - channel: 0
    plant: tomato
    stage: vegetative
  - channel: 1
    plant: cactus
    stage: mature
thresholds:
  - plant: tomato
    moisture: 550
    temperature: 22
    humidity: 55
`)

	plants, err := LoadPlantsFile(path)
	if err != nil {
		t.Fatalf("LoadPlantsFile() error = %v", err)
	}
	if len(plants.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(plants.Channels))
	}
	if plants.Channels[1].Plant != "cactus" || plants.Channels[1].Stage != "mature" {
		t.Errorf("channel 1 = %+v", plants.Channels[1])
	}
	if len(plants.Thresholds) != 1 || plants.Thresholds[0].Moisture != 550 {
		t.Errorf("thresholds = %+v", plants.Thresholds)
	}
}

func TestLoadPlantsFileMissing(t *testing.T) {
	plants, err := LoadPlantsFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(plants.Channels) != 0 || len(plants.Thresholds) != 0 {
		t.Errorf("missing file should load empty, got %+v", plants)
	}
}

func TestLoadPlantsFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown plant", "channels:\n  - channel: 0\n    plant: triffid\n    stage: mature\n"},
		{"bad channel", "channels:\n  - channel: 9\n    plant: tomato\n    stage: mature\n"},
		{"bad stage", "channels:\n  - channel: 0\n    plant: tomato\n    stage: ancient\n"},
		{"threshold out of range", "thresholds:\n  - plant: tomato\n    moisture: 5000\n"},
		{"malformed yaml", "channels: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePlantsFile(t, tt.content)
			if _, err := LoadPlantsFile(path); err == nil {
				t.Error("LoadPlantsFile() accepted invalid file")
			}
		})
	}
}
