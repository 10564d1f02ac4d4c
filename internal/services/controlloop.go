package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/metrics"
	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/mqtt"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/store"
	"github.com/smartgrow/irrigation-edge/internal/ws"
)

// ControlLoopConfig holds the loop cadences. The tick drives the actuator
// state machines; everything else runs on its own interval on top of it.
type ControlLoopConfig struct {
	TickInterval      time.Duration
	HealthInterval    time.Duration
	ReportInterval    time.Duration
	MinSampleInterval time.Duration // per-channel inbound rate limit
}

// DefaultControlLoopConfig returns the standard cadences.
func DefaultControlLoopConfig() ControlLoopConfig {
	return ControlLoopConfig{
		TickInterval:      100 * time.Millisecond,
		HealthInterval:    5 * time.Second,
		ReportInterval:    10 * time.Second,
		MinSampleInterval: 1 * time.Second,
	}
}

// Validate checks the cadence invariants.
func (c ControlLoopConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	if c.TickInterval >= safety.WatchdogTimeout {
		return fmt.Errorf("tick interval %v must be well below the watchdog timeout %v",
			c.TickInterval, safety.WatchdogTimeout)
	}
	if c.HealthInterval <= 0 || c.ReportInterval <= 0 {
		return fmt.Errorf("health and report intervals must be positive")
	}
	if c.MinSampleInterval <= 0 {
		return fmt.Errorf("sample rate limit must be positive, got %v", c.MinSampleInterval)
	}
	return nil
}

// ControlLoop is the single goroutine that owns the decision pipeline and
// the actuator state machines. Samples and commands arrive over channels;
// every tick services the watchdog and the safety controller first, then
// drains pending work.
type ControlLoop struct {
	cfg    ControlLoopConfig
	engine *ml.DecisionEngine
	safety *safety.Controller
	store  store.DataStore

	// Optional collaborators, nil when not wired.
	mqttClient *mqtt.Client
	hub        *ws.Hub

	sampleCh  chan models.Sample
	commandCh chan models.OperatorCommand

	ticker   *time.Ticker
	stopChan chan bool

	mu           sync.RWMutex
	isRunning    bool
	startTime    time.Time
	lastAccepted [models.NumChannels]time.Time

	tickCount         uint64
	decisionsExecuted uint64
	decisionsRefused  uint64
	lastHealthCheck   time.Time
	lastReport        time.Time
	wasFailsafe       bool
	wasLatched        [models.NumChannels]bool
}

// NewControlLoop creates the control loop. The MQTT client and websocket
// hub may be nil.
func NewControlLoop(cfg ControlLoopConfig, engine *ml.DecisionEngine, safetyCtl *safety.Controller, dataStore store.DataStore, mqttClient *mqtt.Client, hub *ws.Hub) (*ControlLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("control loop config: %w", err)
	}
	return &ControlLoop{
		cfg:        cfg,
		engine:     engine,
		safety:     safetyCtl,
		store:      dataStore,
		mqttClient: mqttClient,
		hub:        hub,
		sampleCh:   make(chan models.Sample, 64),
		commandCh:  make(chan models.OperatorCommand, 16),
		stopChan:   make(chan bool),
	}, nil
}

// Start begins the control loop background process
func (c *ControlLoop) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isRunning {
		log.Println("⚠️  ControlLoop: Already running")
		return
	}

	c.ticker = time.NewTicker(c.cfg.TickInterval)
	c.isRunning = true
	c.startTime = time.Now()

	log.Printf("🌱 ControlLoop: Started - tick every %v", c.cfg.TickInterval)

	go c.run()
}

// Stop halts the control loop and stops every pump.
func (c *ControlLoop) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning {
		return
	}

	c.ticker.Stop()
	c.stopChan <- true
	c.isRunning = false

	c.safety.EmergencyStopAll()
	log.Println("🛑 ControlLoop: Stopped - all pumps off")
}

// IsRunning reports whether the loop is active.
func (c *ControlLoop) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}

// Uptime returns how long the loop has been running.
func (c *ControlLoop) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.isRunning {
		return 0
	}
	return time.Since(c.startTime)
}

// Submit queues a sample for the next tick. Samples arriving within the
// per-channel rate limit are dropped, as are samples for unknown channels.
func (c *ControlLoop) Submit(sample models.Sample) bool {
	if sample.Channel < 0 || sample.Channel >= models.NumChannels {
		metrics.SamplesRejectedTotal.WithLabelValues("bad_channel").Inc()
		return false
	}

	c.mu.Lock()
	now := time.Now()
	if !c.lastAccepted[sample.Channel].IsZero() && now.Sub(c.lastAccepted[sample.Channel]) < c.cfg.MinSampleInterval {
		c.mu.Unlock()
		metrics.SamplesRejectedTotal.WithLabelValues("rate_limited").Inc()
		return false
	}
	c.lastAccepted[sample.Channel] = now
	c.mu.Unlock()

	select {
	case c.sampleCh <- sample:
		metrics.SamplesTotal.WithLabelValues(fmt.Sprint(sample.Channel)).Inc()
		return true
	default:
		metrics.SamplesRejectedTotal.WithLabelValues("queue_full").Inc()
		return false
	}
}

// SubmitCommand queues an operator command for the next tick.
func (c *ControlLoop) SubmitCommand(command models.OperatorCommand) bool {
	select {
	case c.commandCh <- command:
		return true
	default:
		return false
	}
}

// run is the main control loop
func (c *ControlLoop) run() {
	for {
		select {
		case <-c.ticker.C:
			c.tick()
		case <-c.stopChan:
			return
		}
	}
}

// tick is one pass of the control loop. Order matters: the watchdog and
// every actuator state machine are serviced before any new decision, so a
// pump can never be stopped and re-armed out of order within one tick.
func (c *ControlLoop) tick() {
	started := time.Now()
	c.tickCount++

	c.safety.Tick()
	metrics.WatchdogServicesTotal.Inc()

	now := time.Now()

	if now.Sub(c.lastHealthCheck) >= c.cfg.HealthInterval {
		c.lastHealthCheck = now
		c.healthCheck()
	}

	c.drainCommands()
	c.drainSamples(now)

	if now.Sub(c.lastReport) >= c.cfg.ReportInterval {
		c.lastReport = now
		c.statusReport()
	}

	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// drainSamples processes every queued sample without blocking.
func (c *ControlLoop) drainSamples(now time.Time) {
	for {
		select {
		case sample := <-c.sampleCh:
			c.processSample(sample, now)
		default:
			return
		}
	}
}

// drainCommands applies every queued operator command without blocking.
func (c *ControlLoop) drainCommands() {
	for {
		select {
		case command := <-c.commandCh:
			if err := c.applyCommand(command); err != nil {
				log.Printf("❌ ControlLoop: Command %q failed: %v", command.Action, err)
			}
		default:
			return
		}
	}
}

// processSample runs one sample through the decision pipeline and executes
// the resulting action through the safety controller.
func (c *ControlLoop) processSample(sample models.Sample, now time.Time) {
	channel := sample.Channel

	// Moisture is the safety-critical sensor: an invalid reading blocks the
	// channel and never reaches the statistics.
	if !sample.ValidMoisture() {
		log.Printf("⚠️  ControlLoop: Invalid moisture %.1f on channel %d - channel blocked", sample.Moisture, channel)
		c.safety.RecordSensorStatus(channel, false)
		c.recordAnomaly(&models.AnomalyEvent{
			Channel:     channel,
			Timestamp:   now,
			Kind:        models.AnomalyKindRange,
			Description: fmt.Sprintf("moisture reading %.1f outside [%.0f,%.0f]", sample.Moisture, models.MinMoisture, models.MaxMoisture),
			Sample:      sample,
		})
		return
	}

	// Non-critical sensors fall back to safe defaults instead of blocking.
	if replaced := sample.ApplyFallbacks(); len(replaced) > 0 {
		log.Printf("⚠️  ControlLoop: Substituted fallback values for %v on channel %d", replaced, channel)
	}

	c.safety.RecordSensorStatus(channel, true)
	c.store.AddSample(sample)
	if c.hub != nil {
		c.hub.BroadcastSample(&sample)
	}

	score, fault := c.engine.DetectAnomaly(sample)
	if fault {
		c.recordAnomaly(&models.AnomalyEvent{
			Channel:     channel,
			Timestamp:   now,
			Kind:        models.AnomalyKindSensorFault,
			Score:       score,
			Description: "sensor fault pattern detected",
			Sample:      sample,
		})
	} else if score > ml.AnomalyProbabilityThreshold {
		c.recordAnomaly(&models.AnomalyEvent{
			Channel:     channel,
			Timestamp:   now,
			Kind:        models.AnomalyKindStatistical,
			Score:       score,
			Description: "statistical anomaly in sensor readings",
			Sample:      sample,
		})
	}

	inferenceStart := time.Now()
	action := c.engine.GetImmediateAction(channel, sample, now)
	inferenceMicros := time.Since(inferenceStart).Microseconds()

	executed := false
	reason := ""
	if action.ShouldWater {
		executed, reason = c.safety.ExecuteWateringAction(channel, action)
		if executed {
			c.decisionsExecuted++
			metrics.WateringsTotal.WithLabelValues(fmt.Sprint(channel), action.Tier.String()).Inc()
			if action.IsFailsafe {
				metrics.FailsafeWateringsTotal.Inc()
				log.Printf("🚨 ControlLoop: Failsafe watering on channel %d (%dms)", channel, action.DurationMs)
			} else {
				log.Printf("💧 ControlLoop: Watering channel %d - tier %s, %dms, %.0fml",
					channel, action.Tier, action.DurationMs, action.AmountMl)
			}
		} else {
			c.decisionsRefused++
			metrics.WateringRefusalsTotal.WithLabelValues(reason).Inc()
			log.Printf("⛔ ControlLoop: Watering refused on channel %d: %s", channel, reason)
		}
	}

	event := &models.DecisionEvent{
		Channel:         channel,
		Timestamp:       now,
		Sample:          sample,
		Action:          action,
		Executed:        executed,
		RefusalReason:   reason,
		AnomalyScore:    score,
		SensorFault:     fault,
		InferenceMicros: inferenceMicros,
	}
	c.store.AddDecisionEvent(event)
	metrics.DecisionsTotal.WithLabelValues(fmt.Sprint(channel)).Inc()

	if c.hub != nil {
		c.hub.BroadcastDecisionEvent(event)
	}
	if c.mqttClient != nil && c.mqttClient.IsConnected() {
		if err := c.mqttClient.PublishDecisionEvent(event); err != nil {
			log.Printf("❌ ControlLoop: Failed to publish decision event: %v", err)
		}
	}
}

// recordAnomaly stores, broadcasts and publishes one anomaly event.
func (c *ControlLoop) recordAnomaly(event *models.AnomalyEvent) {
	c.store.AddAnomalyEvent(event)
	metrics.AnomaliesTotal.WithLabelValues(event.Kind).Inc()

	if c.hub != nil {
		c.hub.BroadcastAnomalyEvent(event)
	}
	if c.mqttClient != nil && c.mqttClient.IsConnected() {
		if err := c.mqttClient.PublishAnomalyEvent(event); err != nil {
			log.Printf("❌ ControlLoop: Failed to publish anomaly event: %v", err)
		}
	}
}

// healthCheck refreshes the safety gauges and announces failsafe
// transitions.
func (c *ControlLoop) healthCheck() {
	health := c.safety.Health()

	if health.SystemFailsafeActive {
		metrics.SystemFailsafeActive.Set(1)
	} else {
		metrics.SystemFailsafeActive.Set(0)
	}

	active := 0
	for _, status := range c.safety.AllPumpStatuses() {
		if status.IsActive {
			active++
		}
		if status.FailsafeLatched && !c.wasLatched[status.Channel] {
			metrics.FailsafeLatchesTotal.Inc()
		}
		c.wasLatched[status.Channel] = status.FailsafeLatched
	}
	metrics.ActivePumps.Set(float64(active))

	if health.SystemFailsafeActive != c.wasFailsafe {
		c.wasFailsafe = health.SystemFailsafeActive
		if health.SystemFailsafeActive {
			log.Println("🚨 ControlLoop: SYSTEM FAILSAFE MODE ACTIVE")
		} else {
			log.Println("✅ ControlLoop: System failsafe cleared")
		}
		if c.hub != nil {
			c.hub.BroadcastSystemHealth(&health)
		}
		if c.mqttClient != nil && c.mqttClient.IsConnected() {
			if err := c.mqttClient.PublishSystemHealth(&health); err != nil {
				log.Printf("❌ ControlLoop: Failed to publish health: %v", err)
			}
		}
	}
}

// statusReport logs the periodic status line and publishes the pump
// snapshots.
func (c *ControlLoop) statusReport() {
	stats := c.engine.Stats()
	statuses := c.safety.AllPumpStatuses()

	active := 0
	for _, status := range statuses {
		if status.IsActive {
			active++
		}
	}

	log.Printf("📊 ControlLoop: up %v | ticks %d | decisions %d (executed %d, refused %d) | anomalies %d | pumps active %d",
		time.Since(c.startTime).Round(time.Second),
		c.tickCount,
		stats.TotalInferences,
		c.decisionsExecuted,
		c.decisionsRefused,
		stats.AnomaliesDetected,
		active)

	if c.hub != nil {
		for i := range statuses {
			c.hub.BroadcastPumpStatus(&statuses[i])
		}
	}
	if c.mqttClient != nil && c.mqttClient.IsConnected() {
		if err := c.mqttClient.PublishPumpStatuses(statuses); err != nil {
			log.Printf("❌ ControlLoop: Failed to publish pump statuses: %v", err)
		}
	}
}

// applyCommand executes one operator command inside the control goroutine.
func (c *ControlLoop) applyCommand(command models.OperatorCommand) error {
	switch command.Action {
	case models.CommandEmergencyStop:
		if command.Channel != nil {
			c.safety.EmergencyStop(*command.Channel)
			log.Printf("🛑 ControlLoop: Emergency stop on channel %d", *command.Channel)
		} else {
			c.safety.EmergencyStopAll()
			log.Println("🛑 ControlLoop: Emergency stop on all channels")
		}
		return nil

	case models.CommandResetFailsafe:
		c.safety.ResetSystemFailsafe()
		return nil

	case models.CommandSetPlant:
		if command.Channel == nil {
			return fmt.Errorf("set_plant requires a channel")
		}
		plant, ok := models.ParsePlantType(command.Plant)
		if !ok {
			return fmt.Errorf("unknown plant type %q", command.Plant)
		}
		stage, ok := models.ParseGrowthStage(command.Stage)
		if !ok {
			return fmt.Errorf("unknown growth stage %q", command.Stage)
		}
		c.engine.SetPlantConfig(*command.Channel, plant, stage)
		log.Printf("🌿 ControlLoop: Channel %d set to %s (%s)", *command.Channel, plant, stage)
		return nil

	case models.CommandSetThresholds:
		plant, ok := models.ParsePlantType(command.Plant)
		if !ok {
			return fmt.Errorf("unknown plant type %q", command.Plant)
		}
		c.engine.Table().UpdateThresholds(plant, command.Moisture, command.Temperature, command.Humidity)
		log.Printf("🌿 ControlLoop: Threshold override for %s: moisture %.0f", plant, command.Moisture)
		return nil

	case models.CommandResetThresholds:
		if command.Plant == "" {
			c.engine.Table().ResetAllToDefaults()
			return nil
		}
		plant, ok := models.ParsePlantType(command.Plant)
		if !ok {
			return fmt.Errorf("unknown plant type %q", command.Plant)
		}
		c.engine.Table().ResetToDefaults(plant)
		return nil

	case models.CommandSetFailsafeMode:
		if command.Enabled == nil {
			return fmt.Errorf("set_failsafe_mode requires enabled")
		}
		c.engine.SetFailsafeMode(*command.Enabled)
		log.Printf("⚙️  ControlLoop: Failsafe watering mode enabled=%v", *command.Enabled)
		return nil

	case models.CommandStatus:
		c.statusReport()
		return nil

	default:
		return fmt.Errorf("unknown command action %q", command.Action)
	}
}
