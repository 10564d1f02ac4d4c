package models

// Operator command actions accepted over MQTT and the REST API.
const (
	CommandEmergencyStop   = "emergency_stop"
	CommandResetFailsafe   = "reset_failsafe"
	CommandSetPlant        = "set_plant"
	CommandSetThresholds   = "set_thresholds"
	CommandResetThresholds = "reset_thresholds"
	CommandSetFailsafeMode = "set_failsafe_mode"
	CommandStatus          = "status"
)

// OperatorCommand is an inbound control command. Channel is a pointer so
// "all channels" (nil) is distinguishable from channel 0.
type OperatorCommand struct {
	Action      string  `json:"action"`
	Channel     *int    `json:"channel,omitempty"`
	Plant       string  `json:"plant,omitempty"`
	Stage       string  `json:"stage,omitempty"`
	Moisture    float64 `json:"moisture,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Humidity    float64 `json:"humidity,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}
