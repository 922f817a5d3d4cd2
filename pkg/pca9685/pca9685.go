package pca9685

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	NumPorts = 16

	PWMPeriod = 20 * time.Millisecond

	// RC-style motor controllers read a 1-2ms pulse; 1.5ms is neutral.
	PulseMin     = 1000 * time.Microsecond
	PulseNeutral = 1500 * time.Microsecond
	PulseMax     = 2000 * time.Microsecond

	PWMMax = 4095

	// Bit 4 of the OFF high byte holds the output fully off: no pulse at all.
	fullOffBit = 0x10
)

type Interface interface {
	Configure() error
	SetPulse(port int, width time.Duration) error
	SetThrottle(port int, value float64) error
	SetPWM(port int, value float64) error
	Off(port int) error
	Close() error
}

// port is the subset of an I2C device the driver needs.
type port interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev port
}

func New(deviceFile string, addr int) (Interface, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 at %#02x on %s", addr, deviceFile)
	}
	return &PCA9685{
		dev: dev,
	}, nil
}

func (p *PCA9685) Configure() (err error) {
	// Put device to sleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	// Update pre-scaler for 50Hz.
	err = p.dev.WriteReg(RegPreScale, []byte{0x79})
	if err != nil {
		return
	}
	// Trigger a reset
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable, with register auto-increment.
	err = p.dev.WriteReg(RegMode1, []byte{0xa1})
	return
}

// SetPulse sets the high time of the output's 20ms frame.
func (p *PCA9685) SetPulse(port int, width time.Duration) error {
	if width < 0 {
		width = 0
	} else if width > PWMPeriod {
		width = PWMPeriod
	}
	return p.write(port, uint16(PWMMax*width/PWMPeriod), 0)
}

// SetThrottle maps a demand in [-1, 1] onto the 1-2ms motor controller pulse.
func (p *PCA9685) SetThrottle(port int, value float64) error {
	return p.SetPulse(port, ThrottlePulse(value))
}

func (p *PCA9685) SetPWM(port int, value float64) error {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}
	return p.write(port, uint16(PWMMax*value), 0)
}

// Off stops the pulse train on port entirely.
func (p *PCA9685) Off(port int) error {
	return p.write(port, 0, fullOffBit)
}

func (p *PCA9685) write(port int, offCount uint16, offFlags byte) error {
	if port < 0 || port >= NumPorts {
		log.Println("PWM port out of range: ", port)
		return errors.Errorf("PWM port %d out of range", port)
	}
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(offCount & 0xff), byte(offCount>>8) | offFlags})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

// ThrottlePulse converts a demand in [-1, 1] to a pulse width, 1.5ms being
// neutral.
func ThrottlePulse(value float64) time.Duration {
	if value < -1 {
		value = -1
	} else if value > 1 {
		value = 1
	}
	halfRange := float64(PulseMax - PulseNeutral)
	return PulseNeutral + time.Duration(value*halfRange)
}

func Dummy() Interface {
	return &dummyPWM{}
}

type dummyPWM struct {
}

func (*dummyPWM) Configure() error {
	return nil
}

func (*dummyPWM) SetPulse(port int, width time.Duration) error {
	return nil
}

func (*dummyPWM) SetThrottle(port int, value float64) error {
	return nil
}

func (*dummyPWM) SetPWM(port int, value float64) error {
	return nil
}

func (*dummyPWM) Off(port int) error {
	return nil
}

func (*dummyPWM) Close() error {
	return nil
}
