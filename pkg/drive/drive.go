// Package drive turns driver demands into left/right speeds for a tank
// (differential) chassis.
package drive

import (
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/shaping"
)

const (
	DefaultDeadband   = 0.02
	DefaultMaxOutput  = 1.0
	DefaultExpiration = 100 * time.Millisecond
)

// SpeedController is one side of the drive, usually a leader with followers
// attached.
type SpeedController interface {
	Set(percent float64)
	StopMotor()
}

type DifferentialDrive struct {
	left, right SpeedController

	lock      sync.Mutex
	deadband  float64
	maxOutput float64

	// Motor safety.
	safetyEnabled bool
	expiration    time.Duration
	stopTime      time.Time
	safetyStopped bool
	now           func() time.Time
}

// New returns a drive whose safety timer is already running, so it must be
// fed within the expiration once a driving mode starts.
func New(left, right SpeedController) *DifferentialDrive {
	d := &DifferentialDrive{
		left:          left,
		right:         right,
		deadband:      DefaultDeadband,
		maxOutput:     DefaultMaxOutput,
		safetyEnabled: true,
		expiration:    DefaultExpiration,
		now:           time.Now,
	}
	d.stopTime = d.now().Add(d.expiration)
	return d
}

func (d *DifferentialDrive) SetDeadband(deadband float64) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.deadband = deadband
}

func (d *DifferentialDrive) SetMaxOutput(maxOutput float64) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.maxOutput = maxOutput
}

// ArcadeDrive drives with a forward speed and a rotation rate, both in
// [-1, 1], positive rotation turning clockwise.  Inputs are squared to soften
// the response near centre.
func (d *DifferentialDrive) ArcadeDrive(xSpeed, zRotation float64) {
	d.ArcadeDriveSquared(xSpeed, zRotation, true)
}

func (d *DifferentialDrive) ArcadeDriveSquared(xSpeed, zRotation float64, squareInputs bool) {
	d.lock.Lock()
	deadband, maxOutput := d.deadband, d.maxOutput
	d.lock.Unlock()

	xSpeed = shaping.ApplyDeadband(xSpeed, deadband, 1)
	zRotation = shaping.ApplyDeadband(zRotation, deadband, 1)

	left, right := ArcadeDriveIK(xSpeed, zRotation, squareInputs)
	d.left.Set(left * maxOutput)
	d.right.Set(right * maxOutput)
	d.Feed()
}

// TankDrive drives each side directly.
func (d *DifferentialDrive) TankDrive(leftSpeed, rightSpeed float64, squareInputs bool) {
	d.lock.Lock()
	deadband, maxOutput := d.deadband, d.maxOutput
	d.lock.Unlock()

	leftSpeed = shaping.Clamp(shaping.ApplyDeadband(leftSpeed, deadband, 1))
	rightSpeed = shaping.Clamp(shaping.ApplyDeadband(rightSpeed, deadband, 1))
	if squareInputs {
		leftSpeed = shaping.CopySignSquare(leftSpeed)
		rightSpeed = shaping.CopySignSquare(rightSpeed)
	}
	d.left.Set(leftSpeed * maxOutput)
	d.right.Set(rightSpeed * maxOutput)
	d.Feed()
}

func (d *DifferentialDrive) StopMotor() {
	d.left.StopMotor()
	d.right.StopMotor()
	d.Feed()
}

func (d *DifferentialDrive) safetyStop() {
	d.left.StopMotor()
	d.right.StopMotor()
}

// ArcadeDriveIK computes wheel speeds for arcade drive.  The side "ahead" in
// the turn is given the larger of the two inputs so that full stick in any
// direction reaches full speed; the result is then normalised into [-1, 1].
func ArcadeDriveIK(xSpeed, zRotation float64, squareInputs bool) (left, right float64) {
	xSpeed = shaping.Clamp(xSpeed)
	zRotation = shaping.Clamp(zRotation)

	if squareInputs {
		xSpeed = shaping.CopySignSquare(xSpeed)
		zRotation = shaping.CopySignSquare(zRotation)
	}

	maxInput := math.Copysign(math.Max(math.Abs(xSpeed), math.Abs(zRotation)), xSpeed)

	if xSpeed >= 0 {
		if zRotation >= 0 {
			left = maxInput
			right = xSpeed - zRotation
		} else {
			left = xSpeed + zRotation
			right = maxInput
		}
	} else {
		if zRotation >= 0 {
			left = xSpeed + zRotation
			right = maxInput
		} else {
			left = maxInput
			right = xSpeed - zRotation
		}
	}

	if m := math.Max(math.Abs(left), math.Abs(right)); m > 1 {
		left /= m
		right /= m
	}
	return
}

// Feed resets the safety timer.
func (d *DifferentialDrive) Feed() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.stopTime = d.now().Add(d.expiration)
	d.safetyStopped = false
}

func (d *DifferentialDrive) SetSafetyEnabled(enabled bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.safetyEnabled = enabled
}

func (d *DifferentialDrive) SetExpiration(expiration time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.expiration = expiration
}

// CheckSafety stops the motors if nothing has driven them within the
// expiration.  Callers pass active=false while disabled or in test mode,
// where the check is skipped.  It reports whether it stopped the motors.
func (d *DifferentialDrive) CheckSafety(now time.Time, active bool) bool {
	if !active {
		return false
	}
	d.lock.Lock()
	expired := d.safetyEnabled && !d.safetyStopped && now.After(d.stopTime)
	if expired {
		d.safetyStopped = true
	}
	d.lock.Unlock()
	if expired {
		log.Println("DifferentialDrive: Output not updated often enough; stopping motors")
		d.safetyStop()
	}
	return expired
}
