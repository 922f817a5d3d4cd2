package testbot

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jagwires7443/Defense/pkg/camera"
	"github.com/Jagwires7443/Defense/pkg/config"
	"github.com/Jagwires7443/Defense/pkg/drive"
	"github.com/Jagwires7443/Defense/pkg/hardware"
	"github.com/Jagwires7443/Defense/pkg/joystick"
	"github.com/Jagwires7443/Defense/pkg/shaping"
	"github.com/Jagwires7443/Defense/pkg/timedrobot"
)

const (
	forwardPin    = "GPIO13"
	reversePin    = "GPIO19"
	compressorPin = "GPIO12"
	switchPin     = "GPIO25"
)

type rig struct {
	hw     *hardware.Dummy
	pad    *joystick.Gamepad
	robot  *Robot
	runner *timedrobot.Runner
}

func newRig(t *testing.T, mutate func(*config.Config)) *rig {
	cfg := config.Default()
	cfg.Camera.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	hw := hardware.NewDummy()
	pad := joystick.NewGamepad()
	robot, err := New(context.Background(), cfg, hw, pad)
	require.NoError(t, err)
	runner := timedrobot.NewRunner(robot,
		timedrobot.WithOutputGate(hw),
		timedrobot.WithSafety(robot.Drive()))
	runner.Init()
	runner.Step(time.Now())
	return &rig{hw: hw, pad: pad, robot: robot, runner: runner}
}

func (r *rig) enter(m timedrobot.Mode) {
	r.runner.SetMode(m)
	r.runner.Step(time.Now())
}

// hold sets the left stick and the held buttons, then runs one iteration.
func (r *rig) hold(leftX, leftY float64, buttons ...int) {
	pressed := make([]bool, joystick.NumButtons)
	for _, b := range buttons {
		pressed[b] = true
	}
	r.pad.SetState([]float64{leftX, leftY}, pressed)
	r.runner.Step(time.Now())
}

func (r *rig) outputs() [4]float64 {
	return [4]float64{
		r.hw.MotorOutput(1),
		r.hw.MotorOutput(2),
		r.hw.MotorOutput(3),
		r.hw.MotorOutput(4),
	}
}

// driven is what reaches a side of the drive for a raw stick value.
func driven(raw float64, turbo bool) float64 {
	shaped := shaping.Limit(shaping.Shape(raw, shaping.DefaultMixer), turbo)
	return shaping.ApplyDeadband(shaped, drive.DefaultDeadband, 1)
}

func TestRobotInit(t *testing.T) {
	r := newRig(t, nil)
	assert.False(t, r.hw.OutputsEnabled())

	s := r.robot.Status()
	assert.Equal(t, "Off", s.Solenoid)
	require.NotNil(t, s.Compressor)
	assert.True(t, s.Compressor.Enabled)
	assert.True(t, s.Compressor.Running)
	for _, m := range s.Motors {
		assert.Equal(t, "None", m.Inverted)
		assert.Zero(t, m.Follows)
	}

	// Disabled: relay demanded but held off.
	assert.False(t, r.hw.Pin(compressorPin))
	r.enter(timedrobot.Teleop)
	assert.True(t, r.hw.Pin(compressorPin))
}

func TestTeleopForward(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)

	// Stick pushed fully forward reads negative.
	r.hold(0, -1)
	want, _ := drive.ArcadeDriveIK(driven(1, false), 0, true)
	assert.InDelta(t, 0.633, want, 0.001)
	out := r.outputs()
	assert.InDelta(t, want, out[0], 1e-9)
	assert.InDelta(t, want, out[1], 1e-9)
	assert.InDelta(t, -want, out[2], 1e-9)
	assert.InDelta(t, -want, out[3], 1e-9)

	s := r.robot.Status()
	assert.Equal(t, LeftAID, s.Motors["left_b"].Follows)
	assert.Equal(t, RightAID, s.Motors["right_b"].Follows)
	assert.Equal(t, "InvertMotorOutput", s.Motors["right_a"].Inverted)
	assert.Equal(t, "FollowMaster", s.Motors["right_b"].Inverted)
}

func TestTeleopTurbo(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)

	r.hold(0, -1, joystick.ButtonLB)
	assert.Equal(t, [4]float64{1, 1, -1, -1}, r.outputs())

	r.hold(0, -1, joystick.ButtonRB)
	assert.Equal(t, [4]float64{1, 1, -1, -1}, r.outputs())

	r.hold(0, 1, joystick.ButtonRB)
	assert.Equal(t, [4]float64{-1, -1, 1, 1}, r.outputs())
}

func TestTeleopTurn(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)

	r.hold(1, 0)
	left, right := drive.ArcadeDriveIK(0, driven(1, false), true)
	assert.Greater(t, left, 0.0)
	assert.Less(t, right, 0.0)
	out := r.outputs()
	assert.InDelta(t, left, out[0], 1e-9)
	assert.InDelta(t, left, out[1], 1e-9)
	assert.InDelta(t, -right, out[2], 1e-9)
	assert.InDelta(t, -right, out[3], 1e-9)
}

func TestTeleopDeadband(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)

	r.hold(0.04, -0.04)
	assert.Equal(t, [4]float64{}, r.outputs())
}

func TestTeleopSolenoid(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)

	r.hold(0, 0, joystick.ButtonX)
	assert.True(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(reversePin))

	// X wins over Y.
	r.hold(0, 0, joystick.ButtonX, joystick.ButtonY)
	assert.True(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(reversePin))

	r.hold(0, 0, joystick.ButtonY)
	assert.False(t, r.hw.Pin(forwardPin))
	assert.True(t, r.hw.Pin(reversePin))
	assert.Equal(t, "Reverse", r.robot.Status().Solenoid)

	r.hold(0, 0)
	assert.False(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(reversePin))
}

func TestTestMode(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)
	r.hold(0, -1)
	r.enter(timedrobot.Test)

	s := r.robot.Status()
	for _, m := range s.Motors {
		assert.Equal(t, "Coast", m.Neutral)
	}
	assert.Equal(t, "InvertMotorOutput", s.Motors["right_b"].Inverted)

	r.hold(0, 0, joystick.ButtonA)
	assert.Equal(t, [4]float64{0.2, 0, 0, 0}, r.outputs())

	r.hold(0, 0, joystick.ButtonB)
	assert.Equal(t, [4]float64{0, 0, -0.2, 0}, r.outputs())

	r.hold(0, 0, joystick.ButtonX)
	assert.Equal(t, [4]float64{0, 0.2, 0, 0}, r.outputs())

	r.hold(0, 0, joystick.ButtonY)
	assert.Equal(t, [4]float64{0, 0, 0, -0.2}, r.outputs())

	r.hold(0, 0, joystick.ButtonA, joystick.ButtonB, joystick.ButtonX, joystick.ButtonY)
	assert.Equal(t, [4]float64{0.2, 0.2, -0.2, -0.2}, r.outputs())

	// Followers were released by the direct commands.
	s = r.robot.Status()
	assert.Zero(t, s.Motors["left_b"].Follows)
	assert.Zero(t, s.Motors["right_b"].Follows)

	r.hold(0, 0)
	assert.Equal(t, [4]float64{}, r.outputs())
}

func TestTestModeSolenoid(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Test)

	r.hold(0, 0, joystick.ButtonLB, joystick.ButtonRB)
	assert.True(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(reversePin))

	r.hold(0, 0, joystick.ButtonRB)
	assert.False(t, r.hw.Pin(forwardPin))
	assert.True(t, r.hw.Pin(reversePin))

	// X and Y drive motors in test mode, not the valve.
	r.hold(0, 0, joystick.ButtonX)
	assert.False(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(reversePin))
}

func TestDisabledHoldsOutputsOff(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)
	r.hold(0, -1, joystick.ButtonLB, joystick.ButtonX)
	assert.True(t, r.hw.MotorPulsing(1))

	r.enter(timedrobot.Disabled)
	for n := 1; n <= 4; n++ {
		assert.False(t, r.hw.MotorPulsing(n))
	}
	assert.False(t, r.hw.Pin(forwardPin))
	assert.False(t, r.hw.Pin(compressorPin))
}

func TestCompressorStopsWhenFull(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)
	assert.True(t, r.hw.Pin(compressorPin))

	r.hw.Input(switchPin).Set(true)
	r.hold(0, 0)
	assert.False(t, r.hw.Pin(compressorPin))
	assert.True(t, r.robot.Status().Compressor.Full)

	r.hw.Input(switchPin).Set(false)
	r.hold(0, 0)
	assert.True(t, r.hw.Pin(compressorPin))
}

func TestMotorSafetyStopsStaleDrive(t *testing.T) {
	r := newRig(t, nil)
	r.enter(timedrobot.Teleop)
	r.hold(0, -1, joystick.ButtonLB)
	require.Equal(t, 1.0, r.hw.MotorOutput(1))

	assert.True(t, r.robot.Drive().CheckSafety(time.Now().Add(time.Second), true))
	assert.Equal(t, [4]float64{}, r.outputs())
}

func TestWithoutPneumatics(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) { cfg.Pneumatics.Enabled = false })
	r.enter(timedrobot.Teleop)
	r.hold(0, 0, joystick.ButtonX)
	s := r.robot.Status()
	assert.Empty(t, s.Solenoid)
	assert.Nil(t, s.Compressor)
	assert.False(t, r.hw.Pin(forwardPin))
}

func TestBadSolenoidChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Pneumatics.ReverseChannel = cfg.Pneumatics.ForwardChannel
	_, err := New(context.Background(), cfg, hardware.NewDummy(), joystick.NewGamepad())
	assert.Error(t, err)
}

type stillSource struct{}

func (stillSource) ReadJPEG() ([]byte, error) { return []byte{0xff, 0xd8, 0xff, 0xd9}, nil }
func (stillSource) Close() error              { return nil }

func TestCameraStartedInRobotInit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got camera.Config
	starter := func(ctx context.Context, cfg camera.Config) (*camera.Camera, error) {
		got = cfg
		return camera.Start(ctx, cfg.Name, stillSource{}, 100), nil
	}
	robot, err := New(ctx, config.Default(), hardware.NewDummy(), joystick.NewGamepad(), WithCameraStarter(starter))
	require.NoError(t, err)
	assert.Nil(t, robot.Camera())

	robot.RobotInit()
	require.NotNil(t, robot.Camera())
	assert.Equal(t, "USB Camera 0", got.Name)
	assert.Equal(t, 0, got.Device)
	assert.Eventually(t, func() bool { return robot.Camera().Frames() > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "USB Camera 0", robot.Status().Camera.Name)
}

func TestCameraFailureIsNotFatal(t *testing.T) {
	starter := func(ctx context.Context, cfg camera.Config) (*camera.Camera, error) {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "no camera")
	}
	robot, err := New(context.Background(), config.Default(), hardware.NewDummy(), joystick.NewGamepad(), WithCameraStarter(starter))
	require.NoError(t, err)
	robot.RobotInit()
	assert.Nil(t, robot.Camera())
	assert.Nil(t, robot.Status().Camera)
}
