package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded on armctl_commands_dropped_total.
const (
	dropUnknownJoint = "unknown_joint"
	dropInvalid      = "invalid"
)

// Metrics are the loop's prometheus collectors.
type Metrics struct {
	Ticks           prometheus.Counter
	FramesPublished prometheus.Counter
	PublishFailures prometheus.Counter
	CommandsApplied prometheus.Counter
	CommandsDropped *prometheus.CounterVec
	TickOverruns    prometheus.Counter
	ControlEnabled  prometheus.Gauge
	TickDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armctl_ticks_total",
			Help: "Control loop ticks executed.",
		}),
		FramesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armctl_frames_published_total",
			Help: "Actuator frames published successfully.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armctl_publish_failures_total",
			Help: "Actuator frames the transport failed to send.",
		}),
		CommandsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armctl_commands_applied_total",
			Help: "Motor commands written into the target cache.",
		}),
		CommandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "armctl_commands_dropped_total",
			Help: "Motor commands dropped by the control loop.",
		}, []string{"reason"}),
		TickOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armctl_tick_overruns_total",
			Help: "Ticks whose processing exceeded the control interval.",
		}),
		ControlEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "armctl_control_enabled",
			Help: "1 while frames carry authority weight 1.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "armctl_tick_duration_seconds",
			Help:    "Processing time of one control tick.",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .02, .05},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Ticks,
			m.FramesPublished,
			m.PublishFailures,
			m.CommandsApplied,
			m.CommandsDropped,
			m.TickOverruns,
			m.ControlEnabled,
			m.TickDuration,
		)
	}
	return m
}
