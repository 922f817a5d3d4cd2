package timedrobot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records loop timing for the runner.
type Metrics struct {
	loopSeconds prometheus.Histogram
	overruns    prometheus.Counter
	mode        prometheus.Gauge
	modeChanges *prometheus.CounterVec
}

// NewMetrics creates the runner's collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loopSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "testbot",
			Name:      "loop_duration_seconds",
			Help:      "Time spent running the robot callbacks each period.",
			Buckets:   []float64{.001, .002, .005, .010, .015, .020, .030, .050, .100},
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "testbot",
			Name:      "loop_overruns_total",
			Help:      "Iterations that took longer than the loop period.",
		}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "testbot",
			Name:      "mode",
			Help:      "Current mode: 0 disabled, 1 autonomous, 2 teleop, 3 test.",
		}),
		modeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testbot",
			Name:      "mode_changes_total",
			Help:      "Mode transitions, by the mode entered.",
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(m.loopSeconds, m.overruns, m.mode, m.modeChanges)
	}
	return m
}
