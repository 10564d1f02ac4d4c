package models

import (
	"time"
)

// WaterTier is the discrete watering magnitude of a decision.
type WaterTier int

// Water tiers, ordered by magnitude. The integer value doubles as the
// volume multiplier (tier x 50ml).
const (
	TierNone WaterTier = iota
	TierLow
	TierMedium
	TierHigh
)

// String returns the tier name for logs and telemetry.
func (t WaterTier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// WaterAction is the watering recommendation produced by one decision.
// It is created fresh per decision and never mutated by its producer; the
// safety controller may clamp DurationMs downward before acting, and the
// clamped value is what gets recorded as the executed duration.
type WaterAction struct {
	ShouldWater bool      `json:"should_water"`
	Tier        WaterTier `json:"tier"`
	DurationMs  int64     `json:"duration_ms"`
	AmountMl    float64   `json:"amount_ml"`
	IsFailsafe  bool      `json:"is_failsafe"`
}

// PumpStatus is a read-only snapshot of one actuator's state machine,
// exposed over the API and telemetry.
type PumpStatus struct {
	Channel              int       `json:"channel"`
	IsActive             bool      `json:"is_active"`
	StartTime            time.Time `json:"start_time,omitempty"`
	CommandedDurationMs  int64     `json:"commanded_duration_ms"`
	LastActivationEnd    time.Time `json:"last_activation_end,omitempty"`
	EmergencyStopPending bool      `json:"emergency_stop_pending"`
	FailsafeLatched      bool      `json:"failsafe_latched"`
	ActivationsToday     int       `json:"activations_today"`
}

// SystemHealth is a snapshot of the process-wide safety state.
type SystemHealth struct {
	SystemFailsafeActive bool      `json:"system_failsafe_active"`
	FailedSensors        []bool    `json:"failed_sensors"`
	FailedActuatorCount  int       `json:"failed_actuator_count"`
	LastWatchdogReset    time.Time `json:"last_watchdog_reset"`
}
