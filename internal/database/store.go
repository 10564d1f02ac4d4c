package database

import (
	"database/sql"
	"log"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// DatabaseStore implements persistent storage using PostgreSQL
type DatabaseStore struct {
	db *sql.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(db *sql.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Ping verifies the database connection is alive
func (s *DatabaseStore) Ping() error {
	return s.db.Ping()
}

// AddSample stores a sensor sample in the database
func (s *DatabaseStore) AddSample(sample models.Sample) {
	query := `
		INSERT INTO samples (channel, timestamp, moisture, temperature, humidity, light)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(query, sample.Channel, sample.Timestamp, sample.Moisture,
		sample.Temperature, sample.Humidity, sample.LightLevel)
	if err != nil {
		log.Printf("❌ Error storing sample: %v", err)
	}
}

func scanSample(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Sample, error) {
	var sample models.Sample
	err := scanner.Scan(&sample.Channel, &sample.Timestamp, &sample.Moisture,
		&sample.Temperature, &sample.Humidity, &sample.LightLevel)
	return sample, err
}

// GetLatestSample returns the most recent sample for a channel
func (s *DatabaseStore) GetLatestSample(channel int) (*models.Sample, bool) {
	query := `
		SELECT channel, timestamp, moisture, temperature, humidity, light
		FROM samples
		WHERE channel = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	sample, err := scanSample(s.db.QueryRow(query, channel))
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		log.Printf("❌ Error getting latest sample: %v", err)
		return nil, false
	}

	return &sample, true
}

// GetAllLatestSamples returns the latest sample for each channel
func (s *DatabaseStore) GetAllLatestSamples() []models.Sample {
	query := `
		SELECT DISTINCT ON (channel)
			channel, timestamp, moisture, temperature, humidity, light
		FROM samples
		ORDER BY channel, timestamp DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		log.Printf("❌ Error getting latest samples: %v", err)
		return []models.Sample{}
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			log.Printf("⚠️  Warning: Error scanning sample: %v", err)
			continue
		}
		samples = append(samples, sample)
	}

	return samples
}

// GetRecentSamples returns the N most recent samples for a channel,
// oldest first.
func (s *DatabaseStore) GetRecentSamples(channel int, limit int) []models.Sample {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT channel, timestamp, moisture, temperature, humidity, light
		FROM samples
		WHERE channel = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.Query(query, channel, limit)
	if err != nil {
		log.Printf("❌ Error getting recent samples: %v", err)
		return []models.Sample{}
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			log.Printf("⚠️  Warning: Error scanning sample: %v", err)
			continue
		}
		samples = append(samples, sample)
	}

	reverseSamples(samples)
	return samples
}

// GetSampleCount returns the total number of samples stored
func (s *DatabaseStore) GetSampleCount() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		log.Printf("❌ Error getting sample count: %v", err)
		return 0
	}
	return count
}

// AddDecisionEvent stores a watering decision and assigns its ID
func (s *DatabaseStore) AddDecisionEvent(event *models.DecisionEvent) {
	query := `
		INSERT INTO decision_events (
			channel, timestamp, moisture, temperature, humidity, light,
			should_water, tier, duration_ms, amount_ml, is_failsafe,
			executed, refusal_reason, anomaly_score, sensor_fault, inference_micros)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	err := s.db.QueryRow(query,
		event.Channel, event.Timestamp,
		event.Sample.Moisture, event.Sample.Temperature, event.Sample.Humidity, event.Sample.LightLevel,
		event.Action.ShouldWater, int(event.Action.Tier), event.Action.DurationMs, event.Action.AmountMl, event.Action.IsFailsafe,
		event.Executed, event.RefusalReason, event.AnomalyScore, event.SensorFault, event.InferenceMicros,
	).Scan(&event.ID)
	if err != nil {
		log.Printf("❌ Error storing decision event: %v", err)
	}
}

func scanDecisionEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (models.DecisionEvent, error) {
	var event models.DecisionEvent
	var tier int
	err := scanner.Scan(
		&event.ID, &event.Channel, &event.Timestamp,
		&event.Sample.Moisture, &event.Sample.Temperature, &event.Sample.Humidity, &event.Sample.LightLevel,
		&event.Action.ShouldWater, &tier, &event.Action.DurationMs, &event.Action.AmountMl, &event.Action.IsFailsafe,
		&event.Executed, &event.RefusalReason, &event.AnomalyScore, &event.SensorFault, &event.InferenceMicros)
	event.Action.Tier = models.WaterTier(tier)
	event.Sample.Channel = event.Channel
	event.Sample.Timestamp = event.Timestamp
	return event, err
}

const decisionEventColumns = `
	id, channel, timestamp, moisture, temperature, humidity, light,
	should_water, tier, duration_ms, amount_ml, is_failsafe,
	executed, refusal_reason, anomaly_score, sensor_fault, inference_micros`

func (s *DatabaseStore) queryDecisionEvents(query string, args ...interface{}) []models.DecisionEvent {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("❌ Error getting decision events: %v", err)
		return []models.DecisionEvent{}
	}
	defer rows.Close()

	var events []models.DecisionEvent
	for rows.Next() {
		event, err := scanDecisionEvent(rows)
		if err != nil {
			log.Printf("⚠️  Warning: Error scanning decision event: %v", err)
			continue
		}
		events = append(events, event)
	}

	return events
}

// GetRecentDecisionEvents returns the N most recent decision events,
// oldest first.
func (s *DatabaseStore) GetRecentDecisionEvents(limit int) []models.DecisionEvent {
	if limit <= 0 {
		limit = 50
	}

	events := s.queryDecisionEvents(`
		SELECT `+decisionEventColumns+`
		FROM decision_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	reverseDecisions(events)
	return events
}

// GetDecisionEventsByChannel returns recent decision events for one channel,
// oldest first.
func (s *DatabaseStore) GetDecisionEventsByChannel(channel int, limit int) []models.DecisionEvent {
	if limit <= 0 {
		limit = 50
	}

	events := s.queryDecisionEvents(`
		SELECT `+decisionEventColumns+`
		FROM decision_events
		WHERE channel = $1
		ORDER BY timestamp DESC
		LIMIT $2`, channel, limit)
	reverseDecisions(events)
	return events
}

// GetDecisionEventsInRange returns decision events within a time range
func (s *DatabaseStore) GetDecisionEventsInRange(start, end time.Time) []models.DecisionEvent {
	return s.queryDecisionEvents(`
		SELECT `+decisionEventColumns+`
		FROM decision_events
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp ASC`, start, end)
}

// GetDecisionEventCount returns the total number of decision events stored
func (s *DatabaseStore) GetDecisionEventCount() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM decision_events").Scan(&count); err != nil {
		log.Printf("❌ Error getting decision event count: %v", err)
		return 0
	}
	return count
}

// AddAnomalyEvent stores an anomaly event and assigns its ID
func (s *DatabaseStore) AddAnomalyEvent(event *models.AnomalyEvent) {
	query := `
		INSERT INTO anomaly_events (
			channel, timestamp, kind, score, description,
			moisture, temperature, humidity, light)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := s.db.QueryRow(query,
		event.Channel, event.Timestamp, event.Kind, event.Score, event.Description,
		event.Sample.Moisture, event.Sample.Temperature, event.Sample.Humidity, event.Sample.LightLevel,
	).Scan(&event.ID)
	if err != nil {
		log.Printf("❌ Error storing anomaly event: %v", err)
	}
}

func scanAnomalyEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (models.AnomalyEvent, error) {
	var event models.AnomalyEvent
	err := scanner.Scan(
		&event.ID, &event.Channel, &event.Timestamp, &event.Kind, &event.Score, &event.Description,
		&event.Sample.Moisture, &event.Sample.Temperature, &event.Sample.Humidity, &event.Sample.LightLevel)
	event.Sample.Channel = event.Channel
	event.Sample.Timestamp = event.Timestamp
	return event, err
}

const anomalyEventColumns = `
	id, channel, timestamp, kind, score, description,
	moisture, temperature, humidity, light`

func (s *DatabaseStore) queryAnomalyEvents(query string, args ...interface{}) []models.AnomalyEvent {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("❌ Error getting anomaly events: %v", err)
		return []models.AnomalyEvent{}
	}
	defer rows.Close()

	var events []models.AnomalyEvent
	for rows.Next() {
		event, err := scanAnomalyEvent(rows)
		if err != nil {
			log.Printf("⚠️  Warning: Error scanning anomaly event: %v", err)
			continue
		}
		events = append(events, event)
	}

	return events
}

// GetRecentAnomalyEvents returns the N most recent anomaly events,
// oldest first.
func (s *DatabaseStore) GetRecentAnomalyEvents(limit int) []models.AnomalyEvent {
	if limit <= 0 {
		limit = 50
	}

	events := s.queryAnomalyEvents(`
		SELECT `+anomalyEventColumns+`
		FROM anomaly_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	reverseAnomalies(events)
	return events
}

// GetAnomalyEventsInRange returns anomaly events within a time range
func (s *DatabaseStore) GetAnomalyEventsInRange(start, end time.Time) []models.AnomalyEvent {
	return s.queryAnomalyEvents(`
		SELECT `+anomalyEventColumns+`
		FROM anomaly_events
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp ASC`, start, end)
}

// GetAnomalyEventCount returns the total number of anomaly events stored
func (s *DatabaseStore) GetAnomalyEventCount() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM anomaly_events").Scan(&count); err != nil {
		log.Printf("❌ Error getting anomaly event count: %v", err)
		return 0
	}
	return count
}

func reverseSamples(s []models.Sample) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseDecisions(s []models.DecisionEvent) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseAnomalies(s []models.AnomalyEvent) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
