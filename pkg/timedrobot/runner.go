package timedrobot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// OutputGate turns every actuator output on or off.
type OutputGate interface {
	SetOutputsEnabled(enabled bool)
}

// SafetyChecker is polled once per iteration; active is false while
// disabled or in test mode, when no checks apply.
type SafetyChecker interface {
	CheckSafety(now time.Time, active bool) bool
}

// ModeButtons is the gamepad's pair of mode-cycling buttons.
type ModeButtons interface {
	StartButton() bool
	BackButton() bool
}

type Option func(*Runner)

func WithPeriod(period time.Duration) Option {
	return func(r *Runner) { r.period = period }
}

func WithSimulation(sim bool) Option {
	return func(r *Runner) { r.simulation = sim }
}

func WithOutputGate(gate OutputGate) Option {
	return func(r *Runner) { r.gate = gate }
}

func WithSafety(checkers ...SafetyChecker) Option {
	return func(r *Runner) { r.safety = append(r.safety, checkers...) }
}

func WithModeButtons(b ModeButtons) Option {
	return func(r *Runner) { r.buttons = b }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithModeChange registers a hook called on the runner goroutine each time
// a new mode is entered, before the mode's Init callback.
func WithModeChange(hook func(Mode)) Option {
	return func(r *Runner) { r.hooks = append(r.hooks, hook) }
}

type Runner struct {
	robot      Robot
	period     time.Duration
	simulation bool
	gate       OutputGate
	safety     []SafetyChecker
	buttons    ModeButtons
	metrics    *Metrics
	hooks      []func(Mode)

	lock      sync.Mutex
	requested Mode

	// Owned by the runner goroutine.
	current     Mode
	initialised bool
	lastStart   bool
	lastBack    bool
	epochs      []epoch
}

type epoch struct {
	name string
	took time.Duration
}

func NewRunner(robot Robot, opts ...Option) *Runner {
	r := &Runner{
		robot:     robot,
		period:    DefaultPeriod,
		requested: Disabled,
		current:   modeNone,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	return r
}

func (r *Runner) Period() time.Duration {
	return r.period
}

// SetMode requests a mode; it takes effect at the start of the next
// iteration.  Safe to call from any goroutine.
func (r *Runner) SetMode(m Mode) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if m != r.requested {
		log.WithField("mode", m).Info("Mode requested")
	}
	r.requested = m
}

// Mode returns the most recently requested mode.
func (r *Runner) Mode() Mode {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.requested
}

// CycleMode steps the requested mode forwards (delta > 0) or backwards.
func (r *Runner) CycleMode(delta int) Mode {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.requested = Cycle(r.requested, delta)
	log.WithField("mode", r.requested).Info("Mode requested")
	return r.requested
}

// Init runs the one-off initialisation callbacks.  Run calls it; tests
// driving Step directly call it themselves.
func (r *Runner) Init() {
	if r.initialised {
		return
	}
	r.initialised = true
	if r.gate != nil {
		r.gate.SetOutputsEnabled(false)
	}
	r.robot.RobotInit()
	if r.simulation {
		r.robot.SimulationInit()
	}
}

// Run calls Init then iterates every period until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.Init()
	log.WithField("period", r.period).Info("Robot loop starting")

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	defer func() {
		if r.gate != nil {
			r.gate.SetOutputsEnabled(false)
		}
	}()

	r.Step(time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Info("Robot loop stopping")
			return ctx.Err()
		case now := <-ticker.C:
			r.Step(now)
		}
	}
}

// Step runs one iteration of the loop.
func (r *Runner) Step(now time.Time) {
	start := time.Now()
	r.epochs = r.epochs[:0]

	r.pollButtons()
	mode := r.Mode()
	if mode != r.current {
		r.enter(mode)
	}

	switch mode {
	case Disabled:
		r.track("DisabledPeriodic()", r.robot.DisabledPeriodic)
	case Autonomous:
		r.track("AutonomousPeriodic()", r.robot.AutonomousPeriodic)
	case Teleop:
		r.track("TeleopPeriodic()", r.robot.TeleopPeriodic)
	case Test:
		r.track("TestPeriodic()", r.robot.TestPeriodic)
	}
	r.track("RobotPeriodic()", r.robot.RobotPeriodic)
	if r.simulation {
		r.track("SimulationPeriodic()", r.robot.SimulationPeriodic)
	}

	active := mode == Teleop || mode == Autonomous
	for _, s := range r.safety {
		s.CheckSafety(now, active)
	}

	took := time.Since(start)
	r.metrics.loopSeconds.Observe(took.Seconds())
	if took > r.period {
		r.metrics.overruns.Inc()
		log.WithFields(log.Fields{
			"period": r.period,
			"took":   took,
		}).Warnf("Loop time overrun\n%s", r.epochReport())
	}
}

func (r *Runner) enter(mode Mode) {
	log.WithFields(log.Fields{"from": r.current, "to": mode}).Info("Entering mode")
	r.current = mode
	r.metrics.mode.Set(float64(mode))
	r.metrics.modeChanges.WithLabelValues(mode.String()).Inc()

	if r.gate != nil {
		r.gate.SetOutputsEnabled(mode.Enabled())
	}
	for _, h := range r.hooks {
		h(mode)
	}

	switch mode {
	case Disabled:
		r.track("DisabledInit()", r.robot.DisabledInit)
	case Autonomous:
		r.track("AutonomousInit()", r.robot.AutonomousInit)
	case Teleop:
		r.track("TeleopInit()", r.robot.TeleopInit)
	case Test:
		r.track("TestInit()", r.robot.TestInit)
	}
}

func (r *Runner) pollButtons() {
	if r.buttons == nil {
		return
	}
	start := r.buttons.StartButton()
	back := r.buttons.BackButton()
	if start && !r.lastStart {
		r.CycleMode(1)
	} else if back && !r.lastBack {
		r.CycleMode(-1)
	}
	r.lastStart = start
	r.lastBack = back
}

func (r *Runner) track(name string, f func()) {
	start := time.Now()
	f()
	r.epochs = append(r.epochs, epoch{name: name, took: time.Since(start)})
}

func (r *Runner) epochReport() string {
	var b strings.Builder
	for _, e := range r.epochs {
		fmt.Fprintf(&b, "\t%s: %.6fs\n", e.name, e.took.Seconds())
	}
	return b.String()
}
