// Package metrics exposes the controller's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts decision pipeline runs per channel.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_decisions_total",
		Help: "Number of watering decisions evaluated, by channel.",
	}, []string{"channel"})

	// WateringsTotal counts executed watering actions per channel and tier.
	WateringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_waterings_total",
		Help: "Number of executed watering actions, by channel and tier.",
	}, []string{"channel", "tier"})

	// WateringRefusalsTotal counts safety refusals by reason.
	WateringRefusalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_watering_refusals_total",
		Help: "Number of watering actions refused by the safety controller, by reason.",
	}, []string{"reason"})

	// AnomaliesTotal counts detected anomalies and sensor faults.
	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_anomalies_total",
		Help: "Number of detected anomalies, by kind.",
	}, []string{"kind"})

	// FailsafeWateringsTotal counts failsafe-branch waterings.
	FailsafeWateringsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irrigation_failsafe_waterings_total",
		Help: "Number of watering actions issued on the failsafe branch.",
	})

	// FailsafeLatchesTotal counts actuator failsafe latches.
	FailsafeLatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irrigation_failsafe_latches_total",
		Help: "Number of actuator failsafe-latch events.",
	})

	// SystemFailsafeActive is 1 while system failsafe mode is latched.
	SystemFailsafeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "irrigation_system_failsafe_active",
		Help: "Whether system failsafe mode is active (1) or not (0).",
	})

	// ActivePumps is the number of currently running pumps.
	ActivePumps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "irrigation_active_pumps",
		Help: "Number of pumps currently running.",
	})

	// SamplesTotal counts accepted inbound samples per channel.
	SamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_samples_total",
		Help: "Number of accepted sensor samples, by channel.",
	}, []string{"channel"})

	// SamplesRejectedTotal counts rejected inbound samples.
	SamplesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_samples_rejected_total",
		Help: "Number of rejected sensor samples, by reason.",
	}, []string{"reason"})

	// WatchdogServicesTotal counts watchdog services.
	WatchdogServicesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irrigation_watchdog_services_total",
		Help: "Number of times the control loop serviced the watchdog.",
	})

	// TickDuration observes how long one control tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "irrigation_tick_duration_seconds",
		Help:    "Duration of one control loop tick.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)
