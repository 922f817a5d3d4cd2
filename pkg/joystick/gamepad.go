package joystick

import (
	"sync"
	"time"
)

const axisFullScale = 32767.0

// Gamepad holds the latest known state of a controller.  It is fed by a
// background reader (Apply) or a remote driver station (SetState) and
// sampled from the robot loop, so all access is guarded.
type Gamepad struct {
	lock       sync.Mutex
	axes       [NumAxes]float64
	buttons    [NumButtons]bool
	lastUpdate time.Time
}

// State is a copy of the gamepad state at one instant.
type State struct {
	Axes       [NumAxes]float64
	Buttons    [NumButtons]bool
	LastUpdate time.Time
}

func NewGamepad() *Gamepad {
	return &Gamepad{}
}

// Apply folds a device event into the state.  Unknown axes and buttons are
// ignored.
func (g *Gamepad) Apply(event *Event) {
	g.lock.Lock()
	defer g.lock.Unlock()

	switch event.Type {
	case EventTypeAxis:
		if int(event.Number) < NumAxes {
			g.axes[event.Number] = normaliseAxis(event.Value)
		}
	case EventTypeButton:
		if int(event.Number) < NumButtons {
			g.buttons[event.Number] = event.Value != 0
		}
	default:
		return
	}
	g.lastUpdate = event.Time
}

// SetState replaces the whole state, as reported by a remote source.  Missing
// trailing entries are treated as centred/released; extras are dropped.
func (g *Gamepad) SetState(axes []float64, buttons []bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.axes = [NumAxes]float64{}
	for i := 0; i < len(axes) && i < NumAxes; i++ {
		g.axes[i] = clampAxis(axes[i])
	}
	g.buttons = [NumButtons]bool{}
	for i := 0; i < len(buttons) && i < NumButtons; i++ {
		g.buttons[i] = buttons[i]
	}
	g.lastUpdate = time.Now()
}

// Reset centres every axis and releases every button, used when the source
// disconnects.
func (g *Gamepad) Reset() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.axes = [NumAxes]float64{}
	g.buttons = [NumButtons]bool{}
	g.lastUpdate = time.Now()
}

func (g *Gamepad) Snapshot() State {
	g.lock.Lock()
	defer g.lock.Unlock()
	return State{
		Axes:       g.axes,
		Buttons:    g.buttons,
		LastUpdate: g.lastUpdate,
	}
}

func (g *Gamepad) Axis(n int) float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	if n < 0 || n >= NumAxes {
		return 0
	}
	return g.axes[n]
}

func (g *Gamepad) Button(n int) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	if n < 0 || n >= NumButtons {
		return false
	}
	return g.buttons[n]
}

// Stick axes are in [-1, 1].  As on the device, Y is positive when the stick
// is pushed down (towards the driver).
func (g *Gamepad) LeftX() float64  { return g.Axis(AxisLStickX) }
func (g *Gamepad) LeftY() float64  { return g.Axis(AxisLStickY) }
func (g *Gamepad) RightX() float64 { return g.Axis(AxisRStickX) }
func (g *Gamepad) RightY() float64 { return g.Axis(AxisRStickY) }

func (g *Gamepad) AButton() bool     { return g.Button(ButtonA) }
func (g *Gamepad) BButton() bool     { return g.Button(ButtonB) }
func (g *Gamepad) XButton() bool     { return g.Button(ButtonX) }
func (g *Gamepad) YButton() bool     { return g.Button(ButtonY) }
func (g *Gamepad) LeftBumper() bool  { return g.Button(ButtonLB) }
func (g *Gamepad) RightBumper() bool { return g.Button(ButtonRB) }
func (g *Gamepad) BackButton() bool  { return g.Button(ButtonBack) }
func (g *Gamepad) StartButton() bool { return g.Button(ButtonStart) }

func normaliseAxis(v int16) float64 {
	return clampAxis(float64(v) / axisFullScale)
}

func clampAxis(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
