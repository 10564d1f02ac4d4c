package store

import (
	"sort"
	"sync"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Store is the in-memory event store. It is the fallback when no database
// is reachable and the authoritative store on boxes without one.
type Store struct {
	mu             sync.RWMutex
	samples        []models.Sample
	latestByChan   map[int]*models.Sample
	decisionEvents []models.DecisionEvent
	anomalyEvents  []models.AnomalyEvent
	nextDecisionID int
	nextAnomalyID  int
	maxEvents      int
}

// NewStore creates a new in-memory store bounded to maxEvents entries per
// event kind.
func NewStore(maxEvents int) *Store {
	if maxEvents <= 0 {
		maxEvents = 1000 // Default to the last 1000 events
	}

	return &Store{
		samples:        make([]models.Sample, 0, maxEvents),
		latestByChan:   make(map[int]*models.Sample),
		decisionEvents: make([]models.DecisionEvent, 0, maxEvents),
		anomalyEvents:  make([]models.AnomalyEvent, 0, maxEvents),
		nextDecisionID: 1,
		nextAnomalyID:  1,
		maxEvents:      maxEvents,
	}
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping() error {
	return nil
}

// AddSample stores a new sensor sample.
func (s *Store) AddSample(sample models.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)
	if len(s.samples) > s.maxEvents {
		s.samples = s.samples[1:]
	}

	sampleCopy := sample
	s.latestByChan[sample.Channel] = &sampleCopy
}

// GetLatestSample returns the most recent sample for a channel.
func (s *Store) GetLatestSample(channel int) (*models.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest, ok := s.latestByChan[channel]
	if !ok {
		return nil, false
	}

	// Return a copy to avoid race conditions
	sample := *latest
	return &sample, true
}

// GetAllLatestSamples returns the latest sample of every channel that has
// reported, ordered by channel.
func (s *Store) GetAllLatestSamples() []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Sample, 0, len(s.latestByChan))
	for _, sample := range s.latestByChan {
		result = append(result, *sample)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Channel < result[j].Channel
	})
	return result
}

// GetRecentSamples returns up to limit samples for one channel, newest last.
func (s *Store) GetRecentSamples(channel int, limit int) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Sample
	for _, sample := range s.samples {
		if sample.Channel == channel {
			result = append(result, sample)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// GetSampleCount returns the number of stored samples.
func (s *Store) GetSampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// AddDecisionEvent stores a decision event and assigns its ID.
func (s *Store) AddDecisionEvent(event *models.DecisionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextDecisionID
	s.nextDecisionID++

	s.decisionEvents = append(s.decisionEvents, *event)
	if len(s.decisionEvents) > s.maxEvents {
		s.decisionEvents = s.decisionEvents[1:]
	}
}

// GetRecentDecisionEvents returns up to limit decision events, newest last.
func (s *Store) GetRecentDecisionEvents(limit int) []models.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.decisionEvents
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	result := make([]models.DecisionEvent, len(events))
	copy(result, events)
	return result
}

// GetDecisionEventsByChannel returns up to limit decision events for one
// channel, newest last.
func (s *Store) GetDecisionEventsByChannel(channel int, limit int) []models.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.DecisionEvent
	for _, event := range s.decisionEvents {
		if event.Channel == channel {
			result = append(result, event)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// GetDecisionEventsInRange returns decision events within a time range,
// sorted by timestamp.
func (s *Store) GetDecisionEventsInRange(start, end time.Time) []models.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.DecisionEvent
	for _, event := range s.decisionEvents {
		if event.Timestamp.After(start) && event.Timestamp.Before(end) {
			result = append(result, event)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// GetDecisionEventCount returns the number of stored decision events.
func (s *Store) GetDecisionEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisionEvents)
}

// AddAnomalyEvent stores an anomaly event and assigns its ID.
func (s *Store) AddAnomalyEvent(event *models.AnomalyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextAnomalyID
	s.nextAnomalyID++

	s.anomalyEvents = append(s.anomalyEvents, *event)
	if len(s.anomalyEvents) > s.maxEvents {
		s.anomalyEvents = s.anomalyEvents[1:]
	}
}

// GetRecentAnomalyEvents returns up to limit anomaly events, newest last.
func (s *Store) GetRecentAnomalyEvents(limit int) []models.AnomalyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.anomalyEvents
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	result := make([]models.AnomalyEvent, len(events))
	copy(result, events)
	return result
}

// GetAnomalyEventsInRange returns anomaly events within a time range,
// sorted by timestamp.
func (s *Store) GetAnomalyEventsInRange(start, end time.Time) []models.AnomalyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.AnomalyEvent
	for _, event := range s.anomalyEvents {
		if event.Timestamp.After(start) && event.Timestamp.Before(end) {
			result = append(result, event)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// GetAnomalyEventCount returns the number of stored anomaly events.
func (s *Store) GetAnomalyEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anomalyEvents)
}
