package models

import (
	"time"
)

// DecisionEvent records one pass of the decision pipeline for a channel:
// the sample that was scored, the resulting action and whether the safety
// controller accepted it.
type DecisionEvent struct {
	ID              int         `json:"id,omitempty"`
	Channel         int         `json:"channel"`
	Timestamp       time.Time   `json:"timestamp"`
	Sample          Sample      `json:"sample"`
	Action          WaterAction `json:"action"`
	Executed        bool        `json:"executed"`
	RefusalReason   string      `json:"refusal_reason,omitempty"`
	AnomalyScore    float64     `json:"anomaly_score"`
	SensorFault     bool        `json:"sensor_fault"`
	InferenceMicros int64       `json:"inference_us"`
}

// AnomalyEvent records a sensor fault or statistical anomaly verdict.
type AnomalyEvent struct {
	ID          int       `json:"id,omitempty"`
	Channel     int       `json:"channel"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"` // "sensor_fault", "statistical", "range"
	Score       float64   `json:"score"`
	Description string    `json:"description"`
	Sample      Sample    `json:"sample"`
}

// Anomaly event kinds.
const (
	AnomalyKindSensorFault = "sensor_fault"
	AnomalyKindStatistical = "statistical"
	AnomalyKindRange       = "range"
)
