package safety

import (
	"log"
	"time"
)

// Clock abstracts wall-clock reads so the controller's timeouts can be
// driven by a simulated clock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// PumpDriver drives the actuation hardware for one pump channel.
// Implementations must be non-blocking: the control loop calls them on
// every tick and cannot wait on hardware.
type PumpDriver interface {
	PumpOn(channel int) error
	PumpOff(channel int) error
}

// LogDriver is a PumpDriver that only logs transitions. It stands in when
// no relay hardware is attached, e.g. in development or dry-run mode.
type LogDriver struct{}

// PumpOn logs the activation.
func (LogDriver) PumpOn(channel int) error {
	log.Printf("💧 Pump %d ON", channel)
	return nil
}

// PumpOff logs the deactivation.
func (LogDriver) PumpOff(channel int) error {
	log.Printf("🛑 Pump %d OFF", channel)
	return nil
}

// Watchdog is the external liveness watchdog. Service must be called at
// least once per watchdog timeout or the device resets.
type Watchdog interface {
	Service()
}

// NopWatchdog satisfies Watchdog where no hardware watchdog exists.
type NopWatchdog struct{}

// Service does nothing.
func (NopWatchdog) Service() {}
