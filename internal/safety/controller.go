package safety

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Hard safety limits. MaxPumpDuration bounds what a decision may command;
// FailsafePumpDuration is the absolute hardware ceiling enforced
// independently of any commanded duration.
const (
	MaxPumpDuration      = 5 * time.Second
	FailsafePumpDuration = 8 * time.Second
	StuckPumpGrace       = 1 * time.Second
	PumpCooldown         = 30 * time.Minute
	MaxDailyActivations  = 8
	WatchdogTimeout      = 8 * time.Second

	// FailedActuatorLimit latched actuators escalate to system failsafe.
	FailedActuatorLimit = 2
)

// Config holds the safety limits. Zero values are filled from the defaults
// above so a zero Config is usable after Validate.
type Config struct {
	MaxPumpDuration      time.Duration
	FailsafePumpDuration time.Duration
	StuckGrace           time.Duration
	Cooldown             time.Duration
	MaxDailyActivations  int
	FailedActuatorLimit  int
}

// DefaultConfig returns the built-in safety limits.
func DefaultConfig() Config {
	return Config{
		MaxPumpDuration:      MaxPumpDuration,
		FailsafePumpDuration: FailsafePumpDuration,
		StuckGrace:           StuckPumpGrace,
		Cooldown:             PumpCooldown,
		MaxDailyActivations:  MaxDailyActivations,
		FailedActuatorLimit:  FailedActuatorLimit,
	}
}

// Validate checks the invariants the safety net depends on.
func (c Config) Validate() error {
	if c.MaxPumpDuration <= 0 {
		return fmt.Errorf("max pump duration must be positive, got %v", c.MaxPumpDuration)
	}
	if c.MaxPumpDuration >= c.FailsafePumpDuration {
		return fmt.Errorf("max pump duration %v must be below the failsafe ceiling %v",
			c.MaxPumpDuration, c.FailsafePumpDuration)
	}
	if c.StuckGrace <= 0 {
		return fmt.Errorf("stuck grace must be positive, got %v", c.StuckGrace)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %v", c.Cooldown)
	}
	if c.MaxDailyActivations <= 0 {
		return fmt.Errorf("daily activation limit must be positive, got %d", c.MaxDailyActivations)
	}
	if c.FailedActuatorLimit <= 0 || c.FailedActuatorLimit > models.NumChannels {
		return fmt.Errorf("failed actuator limit %d out of range", c.FailedActuatorLimit)
	}
	return nil
}

// pumpState is the per-actuator state machine. Exclusively owned by the
// controller; snapshots leave through PumpStatus only.
type pumpState struct {
	isActive          bool
	startTime         time.Time
	commandedDuration time.Duration
	lastActivationEnd time.Time
	hasEnded          bool
	emergencyStop     bool
	failsafeLatched   bool
	activationsToday  int
	dayWindowStart    time.Time
}

// Controller validates, bounds and monitors every pump activation. It is
// the single owner of all actuator state; concurrent callers (HTTP, MQTT)
// go through its mutex.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	driver   PumpDriver
	watchdog Watchdog

	pumps             [models.NumChannels]pumpState
	failedSensors     [models.NumChannels]bool
	systemFailsafe    bool
	failedActuators   int
	lastWatchdogReset time.Time
}

// NewController creates a controller after validating the limits.
func NewController(cfg Config, clock Clock, driver PumpDriver, watchdog Watchdog) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("safety config: %w", err)
	}
	return &Controller{
		cfg:      cfg,
		clock:    clock,
		driver:   driver,
		watchdog: watchdog,
	}, nil
}

// ExecuteWateringAction validates an action against the safety limits and
// starts the pump when every check passes. Refusals are reported as a
// reason string, never an error: a refused request is a normal outcome.
// The commanded duration is the action's duration clamped to the hard
// maximum, never the raw requested value.
func (c *Controller) ExecuteWateringAction(channel int, action models.WaterAction) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channel < 0 || channel >= models.NumChannels {
		return false, "invalid channel"
	}
	if !action.ShouldWater {
		return false, "no-op action"
	}
	if c.systemFailsafe {
		return false, "system failsafe active"
	}

	now := c.clock.Now()
	p := &c.pumps[channel]

	if p.failsafeLatched {
		return false, "actuator failsafe-latched"
	}
	if p.isActive {
		return false, "pump already active"
	}
	if c.failedSensors[channel] {
		return false, "sensor failed"
	}
	if p.hasEnded && now.Sub(p.lastActivationEnd) < c.cfg.Cooldown {
		return false, "cooldown not elapsed"
	}

	if p.dayWindowStart.IsZero() || now.Sub(p.dayWindowStart) >= 24*time.Hour {
		p.dayWindowStart = now
		p.activationsToday = 0
	}
	if p.activationsToday >= c.cfg.MaxDailyActivations {
		return false, "daily activation limit reached"
	}

	duration := time.Duration(action.DurationMs) * time.Millisecond
	if duration <= 0 {
		return false, "non-positive duration"
	}
	if duration > c.cfg.MaxPumpDuration {
		duration = c.cfg.MaxPumpDuration
	}

	if err := c.driver.PumpOn(channel); err != nil {
		return false, fmt.Sprintf("driver: %v", err)
	}

	p.isActive = true
	p.startTime = now
	p.commandedDuration = duration
	p.emergencyStop = false
	p.activationsToday++
	return true, ""
}

// Tick services the watchdog and advances every pump's state machine.
// It must run every control-loop tick, before any new decision is made.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.watchdog.Service()
	c.lastWatchdogReset = now

	for ch := range c.pumps {
		c.updatePump(ch, now)
	}
}

// updatePump runs one state-machine step. The failsafe checks come before
// the normal-stop check so a pump that blew past its ceiling latches even
// when the normal stop would also apply. Caller holds the mutex.
func (c *Controller) updatePump(channel int, now time.Time) {
	p := &c.pumps[channel]
	if !p.isActive {
		return
	}

	elapsed := now.Sub(p.startTime)

	if elapsed > c.cfg.FailsafePumpDuration || elapsed > p.commandedDuration+c.cfg.StuckGrace {
		c.latchFailsafe(channel, now)
		return
	}

	if p.emergencyStop || elapsed >= p.commandedDuration {
		c.stopPump(channel, now)
	}
}

// stopPump is the normal Active → Idle transition. Caller holds the mutex.
func (c *Controller) stopPump(channel int, now time.Time) {
	p := &c.pumps[channel]
	if err := c.driver.PumpOff(channel); err != nil {
		log.Printf("⚠️ pump %d off failed: %v", channel, err)
	}
	p.isActive = false
	p.emergencyStop = false
	p.lastActivationEnd = now
	p.hasEnded = true
}

// latchFailsafe is the Active → Failsafe-Latched transition: hardware off
// immediately, the latch set, and the process-wide failure count advanced.
// Caller holds the mutex.
func (c *Controller) latchFailsafe(channel int, now time.Time) {
	p := &c.pumps[channel]
	if err := c.driver.PumpOff(channel); err != nil {
		log.Printf("⚠️ pump %d off failed during failsafe latch: %v", channel, err)
	}
	p.isActive = false
	p.emergencyStop = false
	p.lastActivationEnd = now
	p.hasEnded = true

	if !p.failsafeLatched {
		p.failsafeLatched = true
		c.failedActuators++
		log.Printf("🚨 Pump %d failsafe-latched (%d/%d failed actuators)",
			channel, c.failedActuators, c.cfg.FailedActuatorLimit)
	}

	if c.failedActuators >= c.cfg.FailedActuatorLimit {
		c.enterSystemFailsafe(now)
	}
}

// enterSystemFailsafe force-stops everything and blocks all future
// activations until an explicit external reset. Idempotent. Caller holds
// the mutex.
func (c *Controller) enterSystemFailsafe(now time.Time) {
	if c.systemFailsafe {
		return
	}
	c.systemFailsafe = true
	log.Printf("🚨 SYSTEM FAILSAFE MODE — all actuators stopped, explicit reset required")

	for ch := range c.pumps {
		if c.pumps[ch].isActive {
			c.stopPump(ch, now)
		}
	}
}

// EmergencyStop stops one pump immediately. Always succeeds and is
// idempotent: stopping an idle pump is a no-op.
func (c *Controller) EmergencyStop(channel int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channel < 0 || channel >= models.NumChannels {
		return
	}
	p := &c.pumps[channel]
	p.emergencyStop = true
	if p.isActive {
		c.stopPump(channel, c.clock.Now())
	}
}

// EmergencyStopAll stops every pump immediately.
func (c *Controller) EmergencyStopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for ch := range c.pumps {
		p := &c.pumps[ch]
		p.emergencyStop = true
		if p.isActive {
			c.stopPump(ch, now)
		}
	}
}

// RecordSensorStatus updates the failed flag for a channel's sensor. A
// single invalid reading blocks that actuator until a valid reading
// arrives; a majority of failed channels escalates to system failsafe.
func (c *Controller) RecordSensorStatus(channel int, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channel < 0 || channel >= models.NumChannels {
		return
	}
	c.failedSensors[channel] = !healthy

	failed := 0
	for _, f := range c.failedSensors {
		if f {
			failed++
		}
	}
	if failed > models.NumChannels/2 {
		c.enterSystemFailsafe(c.clock.Now())
	}
}

// ResetSystemFailsafe clears system failsafe mode and every actuator
// latch. Only an explicit external operator action calls this; the
// controller never clears the mode by itself.
func (c *Controller) ResetSystemFailsafe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.systemFailsafe = false
	c.failedActuators = 0
	for ch := range c.pumps {
		c.pumps[ch].failsafeLatched = false
		c.pumps[ch].emergencyStop = false
	}
	log.Printf("✅ System failsafe cleared by external reset")
}

// SystemFailsafeActive reports whether system failsafe mode is latched.
func (c *Controller) SystemFailsafeActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemFailsafe
}

// PumpStatus returns a snapshot of one actuator's state.
func (c *Controller) PumpStatus(channel int) models.PumpStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channel < 0 || channel >= models.NumChannels {
		return models.PumpStatus{Channel: channel}
	}
	return c.pumpStatusLocked(channel)
}

// AllPumpStatuses returns snapshots for every actuator.
func (c *Controller) AllPumpStatuses() []models.PumpStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]models.PumpStatus, models.NumChannels)
	for ch := range c.pumps {
		statuses[ch] = c.pumpStatusLocked(ch)
	}
	return statuses
}

func (c *Controller) pumpStatusLocked(channel int) models.PumpStatus {
	p := &c.pumps[channel]
	return models.PumpStatus{
		Channel:              channel,
		IsActive:             p.isActive,
		StartTime:            p.startTime,
		CommandedDurationMs:  p.commandedDuration.Milliseconds(),
		LastActivationEnd:    p.lastActivationEnd,
		EmergencyStopPending: p.emergencyStop && p.isActive,
		FailsafeLatched:      p.failsafeLatched,
		ActivationsToday:     p.activationsToday,
	}
}

// Health returns a snapshot of the process-wide safety state.
func (c *Controller) Health() models.SystemHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	sensors := make([]bool, models.NumChannels)
	copy(sensors, c.failedSensors[:])
	return models.SystemHealth{
		SystemFailsafeActive: c.systemFailsafe,
		FailedSensors:        sensors,
		FailedActuatorCount:  c.failedActuators,
		LastWatchdogReset:    c.lastWatchdogReset,
	}
}
