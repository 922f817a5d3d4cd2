// Package testbot is the robot program: a four-motor tank drive with a
// compressor, one double solenoid, a gamepad and a driver camera.
package testbot

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/camera"
	"github.com/Jagwires7443/Defense/pkg/config"
	"github.com/Jagwires7443/Defense/pkg/drive"
	"github.com/Jagwires7443/Defense/pkg/hardware"
	"github.com/Jagwires7443/Defense/pkg/joystick"
	"github.com/Jagwires7443/Defense/pkg/motor"
	"github.com/Jagwires7443/Defense/pkg/pneumatics"
	"github.com/Jagwires7443/Defense/pkg/shaping"
	"github.com/Jagwires7443/Defense/pkg/timedrobot"
)

// Motor controller ids.
const (
	LeftAID  = 1
	LeftBID  = 2
	RightAID = 3
	RightBID = 4
)

// CameraStarter begins capture from a USB camera.
type CameraStarter func(ctx context.Context, cfg camera.Config) (*camera.Camera, error)

type Option func(*Robot)

func WithCameraStarter(s CameraStarter) Option {
	return func(r *Robot) { r.startCamera = s }
}

type Robot struct {
	ctx context.Context
	cfg config.Config
	hw  hardware.Interface
	pad *joystick.Gamepad

	leftA, leftB, rightA, rightB *motor.Controller
	drive                        *drive.DifferentialDrive

	compressor *pneumatics.Compressor
	solenoid   *pneumatics.DoubleSolenoid

	startCamera CameraStarter
	cameraLock  sync.Mutex
	cam         *camera.Camera

	lastCompressorErr string
}

var _ timedrobot.Robot = (*Robot)(nil)

// New builds the robot on top of hw.  Camera capture starts in RobotInit and
// stops when ctx is cancelled.
func New(ctx context.Context, cfg config.Config, hw hardware.Interface, pad *joystick.Gamepad, opts ...Option) (*Robot, error) {
	r := &Robot{
		ctx:         ctx,
		cfg:         cfg,
		hw:          hw,
		pad:         pad,
		startCamera: camera.StartAutomaticCapture,
	}
	for _, o := range opts {
		o(r)
	}

	r.leftA = motor.New(LeftAID, hw.Motor(cfg.Motors.LeftA))
	r.leftB = motor.New(LeftBID, hw.Motor(cfg.Motors.LeftB))
	r.rightA = motor.New(RightAID, hw.Motor(cfg.Motors.RightA))
	r.rightB = motor.New(RightBID, hw.Motor(cfg.Motors.RightB))

	r.drive = drive.New(r.leftA, r.rightA)
	r.drive.SetExpiration(cfg.Drive.Expiration)

	if cfg.Pneumatics.Enabled {
		if err := r.initPneumatics(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Robot) initPneumatics() error {
	pc := r.cfg.Pneumatics
	module := pneumatics.NewModule()
	for n, pin := range pc.Channels {
		out, err := r.hw.DigitalOutput(pin)
		if err != nil {
			return errors.Wrapf(err, "solenoid channel %d", n)
		}
		if err := module.Attach(n, out); err != nil {
			return err
		}
	}
	sol, err := module.NewDoubleSolenoid(pc.ForwardChannel, pc.ReverseChannel)
	if err != nil {
		return errors.Wrap(err, "creating double solenoid")
	}
	r.solenoid = sol

	relay, err := r.hw.DigitalOutput(pc.CompressorPin)
	if err != nil {
		return errors.Wrap(err, "compressor relay")
	}
	var pressureSwitch pneumatics.DigitalInput
	if pc.PressureSwitch != "" {
		in, err := r.hw.DigitalInput(pc.PressureSwitch)
		if err != nil {
			return errors.Wrap(err, "pressure switch")
		}
		pressureSwitch = in
	}
	r.compressor = pneumatics.NewCompressor(relay, pressureSwitch)
	return nil
}

// Drive is the differential drive, which the runner polls for motor safety.
func (r *Robot) Drive() *drive.DifferentialDrive {
	return r.drive
}

// Camera returns the running camera, or nil if there isn't one.
func (r *Robot) Camera() *camera.Camera {
	r.cameraLock.Lock()
	defer r.cameraLock.Unlock()
	return r.cam
}

func (r *Robot) RobotInit() {
	if r.cfg.Camera.Enabled {
		r.initCamera()
	}

	r.leftA.ConfigFactoryDefault()
	r.leftB.ConfigFactoryDefault()
	r.rightA.ConfigFactoryDefault()
	r.rightB.ConfigFactoryDefault()

	if r.compressor != nil {
		if err := r.compressor.EnableDigital(); err != nil {
			log.WithError(err).Warn("Failed to enable compressor")
		}
	}
	r.setSolenoid(pneumatics.Off)
}

func (r *Robot) initCamera() {
	cc := r.cfg.Camera
	cam, err := r.startCamera(r.ctx, camera.Config{
		Name:    cc.Name,
		Device:  cc.Device,
		Width:   cc.Width,
		Height:  cc.Height,
		FPS:     cc.FPS,
		Quality: cc.Quality,
	})
	if err != nil {
		// Driving doesn't need the camera.
		log.WithError(err).WithField("camera", cc.Name).Error("Failed to start camera")
		return
	}
	r.cameraLock.Lock()
	r.cam = cam
	r.cameraLock.Unlock()
}

func (r *Robot) RobotPeriodic() {
	if r.compressor == nil {
		return
	}
	if err := r.compressor.Update(); err != nil {
		// Log each distinct failure once rather than every 20ms.
		if msg := err.Error(); msg != r.lastCompressorErr {
			log.WithError(err).Warn("Compressor update failed")
			r.lastCompressorErr = msg
		}
		return
	}
	r.lastCompressorErr = ""
}

func (r *Robot) DisabledInit()     {}
func (r *Robot) DisabledPeriodic() {}

func (r *Robot) AutonomousInit() {
	r.setupFollowers()
}

func (r *Robot) AutonomousPeriodic() {}

func (r *Robot) TeleopInit() {
	r.setupFollowers()
}

func (r *Robot) setupFollowers() {
	r.leftB.Follow(r.leftA)
	r.rightB.Follow(r.rightA)

	r.leftA.SetInverted(motor.None)
	r.rightA.SetInverted(motor.InvertMotorOutput)
	r.leftB.SetInverted(motor.FollowMaster)
	r.rightB.SetInverted(motor.FollowMaster)
}

func (r *Robot) TeleopPeriodic() {
	// Forward is negative Y on the stick.
	x := -r.pad.LeftY()
	y := r.pad.LeftX()
	turbo := r.pad.LeftBumper() || r.pad.RightBumper()

	x = shaping.Limit(shaping.Shape(x, r.cfg.Drive.Mixer), turbo)
	y = shaping.Limit(shaping.Shape(y, r.cfg.Drive.Mixer), turbo)

	r.drive.ArcadeDrive(x, y)

	switch {
	case r.pad.XButton():
		r.setSolenoid(pneumatics.Forward)
	case r.pad.YButton():
		r.setSolenoid(pneumatics.Reverse)
	default:
		r.setSolenoid(pneumatics.Off)
	}
}

func (r *Robot) TestInit() {
	r.rightA.SetInverted(motor.InvertMotorOutput)
	r.rightB.SetInverted(motor.InvertMotorOutput)

	r.leftA.SetNeutralMode(motor.Coast)
	r.leftB.SetNeutralMode(motor.Coast)
	r.rightA.SetNeutralMode(motor.Coast)
	r.rightB.SetNeutralMode(motor.Coast)
}

func (r *Robot) TestPeriodic() {
	speed := r.cfg.Drive.TestSpeed
	runWhileHeld(r.leftA, r.pad.AButton(), speed)
	runWhileHeld(r.rightA, r.pad.BButton(), speed)
	runWhileHeld(r.leftB, r.pad.XButton(), speed)
	runWhileHeld(r.rightB, r.pad.YButton(), speed)

	switch {
	case r.pad.LeftBumper():
		r.setSolenoid(pneumatics.Forward)
	case r.pad.RightBumper():
		r.setSolenoid(pneumatics.Reverse)
	default:
		r.setSolenoid(pneumatics.Off)
	}
}

func runWhileHeld(m *motor.Controller, held bool, speed float64) {
	if held {
		m.Set(speed)
	} else {
		m.StopMotor()
	}
}

func (r *Robot) SimulationInit() {
	log.Info("Running in simulation")
}

func (r *Robot) SimulationPeriodic() {}

func (r *Robot) setSolenoid(v pneumatics.Value) {
	if r.solenoid == nil {
		return
	}
	if err := r.solenoid.Set(v); err != nil {
		log.WithError(err).WithField("value", v).Warn("Failed to set solenoid")
	}
}
