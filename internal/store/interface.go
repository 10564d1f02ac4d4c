package store

import (
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// DataStore defines the interface for event storage operations.
type DataStore interface {
	// Health check
	Ping() error

	// Sample history
	AddSample(models.Sample)
	GetLatestSample(channel int) (*models.Sample, bool)
	GetAllLatestSamples() []models.Sample
	GetRecentSamples(channel int, limit int) []models.Sample
	GetSampleCount() int

	// Decision events
	AddDecisionEvent(*models.DecisionEvent)
	GetRecentDecisionEvents(limit int) []models.DecisionEvent
	GetDecisionEventsByChannel(channel int, limit int) []models.DecisionEvent
	GetDecisionEventsInRange(start, end time.Time) []models.DecisionEvent
	GetDecisionEventCount() int

	// Anomaly events
	AddAnomalyEvent(*models.AnomalyEvent)
	GetRecentAnomalyEvents(limit int) []models.AnomalyEvent
	GetAnomalyEventsInRange(start, end time.Time) []models.AnomalyEvent
	GetAnomalyEventCount() int
}
