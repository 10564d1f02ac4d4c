package safety

import (
	"testing"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakePump records on/off transitions per channel.
type fakePump struct {
	on       [models.NumChannels]bool
	onCount  [models.NumChannels]int
	offCount [models.NumChannels]int
}

func (p *fakePump) PumpOn(channel int) error {
	p.on[channel] = true
	p.onCount[channel]++
	return nil
}

func (p *fakePump) PumpOff(channel int) error {
	p.on[channel] = false
	p.offCount[channel]++
	return nil
}

// fakeWatchdog counts services.
type fakeWatchdog struct {
	services int
}

func (w *fakeWatchdog) Service() {
	w.services++
}

func newTestController(t *testing.T) (*Controller, *fakeClock, *fakePump, *fakeWatchdog) {
	t.Helper()
	clock := newFakeClock()
	pump := &fakePump{}
	dog := &fakeWatchdog{}
	c, err := NewController(DefaultConfig(), clock, pump, dog)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c, clock, pump, dog
}

func wateringAction(durationMs int64) models.WaterAction {
	return models.WaterAction{
		ShouldWater: true,
		Tier:        models.TierMedium,
		DurationMs:  durationMs,
		AmountMl:    100,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"max at ceiling", func(c *Config) { c.MaxPumpDuration = c.FailsafePumpDuration }, true},
		{"max above ceiling", func(c *Config) { c.MaxPumpDuration = 10 * time.Second }, true},
		{"zero max", func(c *Config) { c.MaxPumpDuration = 0 }, true},
		{"zero cooldown", func(c *Config) { c.Cooldown = 0 }, true},
		{"zero daily limit", func(c *Config) { c.MaxDailyActivations = 0 }, true},
		{"actuator limit too high", func(c *Config) { c.FailedActuatorLimit = models.NumChannels + 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationClamp(t *testing.T) {
	c, _, pump, _ := newTestController(t)

	ok, reason := c.ExecuteWateringAction(0, wateringAction(999999))
	if !ok {
		t.Fatalf("ExecuteWateringAction() refused: %s", reason)
	}
	if !pump.on[0] {
		t.Fatal("pump not driven on")
	}

	status := c.PumpStatus(0)
	if status.CommandedDurationMs > MaxPumpDuration.Milliseconds() {
		t.Errorf("commanded duration %dms exceeds the %v cap",
			status.CommandedDurationMs, MaxPumpDuration)
	}
	if status.CommandedDurationMs == 999999 {
		t.Error("raw requested duration stored unclamped")
	}
}

func TestNormalStopAtCommandedDuration(t *testing.T) {
	c, clock, pump, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Fatalf("refused: %s", reason)
	}

	clock.Advance(500 * time.Millisecond)
	c.Tick()
	if !c.PumpStatus(0).IsActive {
		t.Fatal("pump stopped before the commanded duration")
	}

	clock.Advance(600 * time.Millisecond)
	c.Tick()

	status := c.PumpStatus(0)
	if status.IsActive {
		t.Error("pump still active after the commanded duration")
	}
	if pump.on[0] {
		t.Error("hardware still on after the normal stop")
	}
	if status.FailsafeLatched {
		t.Error("normal stop latched the failsafe")
	}
	if status.LastActivationEnd.IsZero() {
		t.Error("last activation end not recorded")
	}
}

func TestFailsafeLatchPastCeiling(t *testing.T) {
	c, clock, pump, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(5000)); !ok {
		t.Fatalf("refused: %s", reason)
	}

	// Jump the clock straight past the absolute ceiling with no
	// intermediate ticks: the latch must still fire.
	clock.Advance(FailsafePumpDuration + time.Second)
	c.Tick()

	status := c.PumpStatus(0)
	if !status.FailsafeLatched {
		t.Error("pump not failsafe-latched past the ceiling")
	}
	if status.IsActive {
		t.Error("pump still active after the latch")
	}
	if pump.on[0] {
		t.Error("hardware still on after the latch")
	}
}

func TestStuckDetectionBeyondGrace(t *testing.T) {
	c, clock, _, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Fatalf("refused: %s", reason)
	}

	// Past commanded+grace but below the absolute ceiling.
	clock.Advance(1000*time.Millisecond + StuckPumpGrace + 100*time.Millisecond)
	c.Tick()

	if !c.PumpStatus(0).FailsafeLatched {
		t.Error("stuck pump not latched beyond the grace period")
	}
}

func TestSystemFailsafeEscalation(t *testing.T) {
	c, clock, _, _ := newTestController(t)

	// Latch two actuators by driving each past the ceiling.
	for _, ch := range []int{0, 1} {
		if ok, reason := c.ExecuteWateringAction(ch, wateringAction(5000)); !ok {
			t.Fatalf("channel %d refused: %s", ch, reason)
		}
		clock.Advance(FailsafePumpDuration + time.Second)
		c.Tick()
		if !c.PumpStatus(ch).FailsafeLatched {
			t.Fatalf("channel %d not latched", ch)
		}
		clock.Advance(PumpCooldown)
	}

	if !c.SystemFailsafeActive() {
		t.Fatal("system failsafe not active after two latched actuators")
	}

	// A healthy third actuator is refused while the mode is active.
	ok, reason := c.ExecuteWateringAction(2, wateringAction(1000))
	if ok {
		t.Error("activation allowed during system failsafe")
	}
	if reason != "system failsafe active" {
		t.Errorf("refusal reason = %q", reason)
	}

	// After the explicit reset the same request succeeds.
	c.ResetSystemFailsafe()
	if c.SystemFailsafeActive() {
		t.Fatal("system failsafe still active after reset")
	}
	if ok, reason := c.ExecuteWateringAction(2, wateringAction(1000)); !ok {
		t.Errorf("activation refused after reset: %s", reason)
	}
}

func TestCooldownGatesOnEndTime(t *testing.T) {
	c, clock, _, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Fatalf("refused: %s", reason)
	}
	clock.Advance(1100 * time.Millisecond)
	c.Tick()

	// Cooldown runs from the activation end, not the start.
	clock.Advance(PumpCooldown - 2*time.Second)
	if ok, _ := c.ExecuteWateringAction(0, wateringAction(1000)); ok {
		t.Error("activation allowed during cooldown")
	}

	clock.Advance(3 * time.Second)
	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Errorf("activation refused after cooldown: %s", reason)
	}
}

func TestDailyActivationLimit(t *testing.T) {
	c, clock, _, _ := newTestController(t)

	for i := 0; i < MaxDailyActivations; i++ {
		ok, reason := c.ExecuteWateringAction(0, wateringAction(1000))
		if !ok {
			t.Fatalf("activation %d refused: %s", i, reason)
		}
		clock.Advance(1100 * time.Millisecond)
		c.Tick()
		clock.Advance(PumpCooldown)
	}

	ok, reason := c.ExecuteWateringAction(0, wateringAction(1000))
	if ok {
		t.Fatal("activation allowed over the daily limit")
	}
	if reason != "daily activation limit reached" {
		t.Errorf("refusal reason = %q", reason)
	}

	// A new 24h window resets the count.
	clock.Advance(24 * time.Hour)
	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Errorf("activation refused in a new window: %s", reason)
	}
}

func TestFailedSensorBlocksChannel(t *testing.T) {
	c, _, _, _ := newTestController(t)

	c.RecordSensorStatus(0, false)
	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); ok || reason != "sensor failed" {
		t.Errorf("ExecuteWateringAction() = %v/%q, want refusal for failed sensor", ok, reason)
	}

	// Other channels are unaffected.
	if ok, reason := c.ExecuteWateringAction(1, wateringAction(1000)); !ok {
		t.Errorf("healthy channel refused: %s", reason)
	}

	// A valid reading unblocks the channel.
	c.RecordSensorStatus(0, true)
	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Errorf("recovered channel refused: %s", reason)
	}
}

func TestMajoritySensorFailureEscalates(t *testing.T) {
	c, _, _, _ := newTestController(t)

	c.RecordSensorStatus(0, false)
	c.RecordSensorStatus(1, false)
	if c.SystemFailsafeActive() {
		t.Fatal("escalated below a majority")
	}
	c.RecordSensorStatus(2, false)
	if !c.SystemFailsafeActive() {
		t.Error("majority sensor failure did not escalate")
	}
}

func TestEmergencyStop(t *testing.T) {
	c, _, pump, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(5000)); !ok {
		t.Fatalf("refused: %s", reason)
	}

	c.EmergencyStop(0)
	if c.PumpStatus(0).IsActive {
		t.Error("pump active after emergency stop")
	}
	if pump.on[0] {
		t.Error("hardware still on after emergency stop")
	}

	// Idempotent on an idle pump.
	c.EmergencyStop(0)
	c.EmergencyStop(99)
}

func TestEmergencyStopAll(t *testing.T) {
	c, _, pump, _ := newTestController(t)

	for ch := 0; ch < 3; ch++ {
		if ok, reason := c.ExecuteWateringAction(ch, wateringAction(5000)); !ok {
			t.Fatalf("channel %d refused: %s", ch, reason)
		}
	}

	c.EmergencyStopAll()
	for ch := 0; ch < models.NumChannels; ch++ {
		if pump.on[ch] {
			t.Errorf("pump %d still on after emergency stop all", ch)
		}
	}
}

func TestActiveRefusesSecondActivation(t *testing.T) {
	c, _, _, _ := newTestController(t)

	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); !ok {
		t.Fatalf("refused: %s", reason)
	}
	if ok, reason := c.ExecuteWateringAction(0, wateringAction(1000)); ok || reason != "pump already active" {
		t.Errorf("second activation = %v/%q, want refusal", ok, reason)
	}
}

func TestWatchdogServicedEveryTick(t *testing.T) {
	c, _, _, dog := newTestController(t)

	for i := 0; i < 5; i++ {
		c.Tick()
	}
	if dog.services != 5 {
		t.Errorf("watchdog serviced %d times over 5 ticks", dog.services)
	}
	if c.Health().LastWatchdogReset.IsZero() {
		t.Error("last watchdog reset not recorded")
	}
}

func TestRejectsInvalidInputs(t *testing.T) {
	c, _, _, _ := newTestController(t)

	if ok, _ := c.ExecuteWateringAction(-1, wateringAction(1000)); ok {
		t.Error("negative channel accepted")
	}
	if ok, _ := c.ExecuteWateringAction(models.NumChannels, wateringAction(1000)); ok {
		t.Error("out-of-range channel accepted")
	}
	if ok, _ := c.ExecuteWateringAction(0, models.WaterAction{}); ok {
		t.Error("no-op action accepted")
	}
	if ok, _ := c.ExecuteWateringAction(0, wateringAction(0)); ok {
		t.Error("zero duration accepted")
	}
}

func TestHealthSnapshot(t *testing.T) {
	c, _, _, _ := newTestController(t)

	c.RecordSensorStatus(1, false)
	health := c.Health()
	if health.SystemFailsafeActive {
		t.Error("system failsafe active on a fresh controller")
	}
	if len(health.FailedSensors) != models.NumChannels || !health.FailedSensors[1] {
		t.Errorf("FailedSensors = %v, want channel 1 failed", health.FailedSensors)
	}
}
