// Package timedrobot calls a robot program's lifecycle callbacks on a fixed
// period, tracking which operating mode the robot is in.
package timedrobot

import (
	"fmt"
	"strings"
	"time"
)

const DefaultPeriod = 20 * time.Millisecond

// Robot is a robot program.  The Init callback of a mode runs once each
// time the mode is entered, then its Periodic callback runs every period,
// followed by RobotPeriodic.  Simulation callbacks run only when simulating.
type Robot interface {
	RobotInit()
	RobotPeriodic()
	AutonomousInit()
	AutonomousPeriodic()
	DisabledInit()
	DisabledPeriodic()
	TeleopInit()
	TeleopPeriodic()
	TestInit()
	TestPeriodic()
	SimulationInit()
	SimulationPeriodic()
}

type Mode int

const (
	Disabled Mode = iota
	Autonomous
	Teleop
	Test

	// modeNone is the mode before the first iteration, so that the first
	// mode entered gets its Init call.
	modeNone Mode = -1
)

// cycleOrder is the order the gamepad steps through modes.
var cycleOrder = []Mode{Disabled, Teleop, Autonomous, Test}

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Autonomous:
		return "autonomous"
	case Teleop:
		return "teleop"
	case Test:
		return "test"
	case modeNone:
		return "none"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Enabled reports whether outputs are live in this mode.
func (m Mode) Enabled() bool {
	return m == Autonomous || m == Teleop || m == Test
}

func ParseMode(s string) (Mode, error) {
	for _, m := range cycleOrder {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Disabled, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Cycle returns the mode delta steps away from m in the gamepad order.
func Cycle(m Mode, delta int) Mode {
	idx := 0
	for i, c := range cycleOrder {
		if c == m {
			idx = i
		}
	}
	n := len(cycleOrder)
	idx = ((idx+delta)%n + n) % n
	return cycleOrder[idx]
}
