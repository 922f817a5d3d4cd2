// Package pneumatics drives a compressor and double-acting solenoid valves
// from digital outputs, in the way a pneumatics control module would.
package pneumatics

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NumChannels is the number of solenoid channels on the module.
const NumChannels = 8

type DigitalOutput interface {
	Set(on bool) error
	Get() bool
}

type DigitalInput interface {
	Get() (bool, error)
}

type Value int

const (
	Off Value = iota
	Forward
	Reverse
)

func (v Value) String() string {
	switch v {
	case Off:
		return "Off"
	case Forward:
		return "Forward"
	case Reverse:
		return "Reverse"
	default:
		return fmt.Sprintf("Value(%d)", int(v))
	}
}

// Module maps solenoid channels onto output pins.
type Module struct {
	lock     sync.Mutex
	channels [NumChannels]DigitalOutput
	inUse    [NumChannels]bool
}

func NewModule() *Module {
	return &Module{}
}

// Attach wires channel n to out.
func (m *Module) Attach(n int, out DigitalOutput) error {
	if n < 0 || n >= NumChannels {
		return errors.Errorf("solenoid channel %d out of range 0..%d", n, NumChannels-1)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.channels[n] = out
	return nil
}

func (m *Module) claim(n int) (DigitalOutput, error) {
	if n < 0 || n >= NumChannels {
		return nil, errors.Errorf("solenoid channel %d out of range 0..%d", n, NumChannels-1)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.channels[n] == nil {
		return nil, errors.Errorf("solenoid channel %d has no output attached", n)
	}
	if m.inUse[n] {
		return nil, errors.Errorf("solenoid channel %d already in use", n)
	}
	m.inUse[n] = true
	return m.channels[n], nil
}

func (m *Module) release(n int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.inUse[n] = false
}

// DoubleSolenoid drives a double-acting valve with one channel per
// direction.  The two channels are never on together.
type DoubleSolenoid struct {
	lock             sync.Mutex
	module           *Module
	forwardChannel   int
	reverseChannel   int
	forward, reverse DigitalOutput
	value            Value
}

func (m *Module) NewDoubleSolenoid(forwardChannel, reverseChannel int) (*DoubleSolenoid, error) {
	if forwardChannel == reverseChannel {
		return nil, errors.Errorf("double solenoid needs two distinct channels, got %d twice", forwardChannel)
	}
	fwd, err := m.claim(forwardChannel)
	if err != nil {
		return nil, err
	}
	rev, err := m.claim(reverseChannel)
	if err != nil {
		m.release(forwardChannel)
		return nil, err
	}
	s := &DoubleSolenoid{
		module:         m,
		forwardChannel: forwardChannel,
		reverseChannel: reverseChannel,
		forward:        fwd,
		reverse:        rev,
	}
	if err := s.Set(Off); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *DoubleSolenoid) Set(v Value) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if v != s.value {
		log.WithFields(log.Fields{"forward": s.forwardChannel, "reverse": s.reverseChannel}).Debugf("Solenoid: %v", v)
	}
	var fwd, rev bool
	switch v {
	case Off:
	case Forward:
		fwd = true
	case Reverse:
		rev = true
	default:
		return errors.Errorf("invalid solenoid value %d", int(v))
	}
	s.value = v
	// Drop the side being released first so both are never on at once.
	if fwd {
		if err := s.reverse.Set(false); err != nil {
			return err
		}
		return s.forward.Set(true)
	}
	if err := s.forward.Set(false); err != nil {
		return err
	}
	return s.reverse.Set(rev)
}

func (s *DoubleSolenoid) Get() Value {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.value
}

// Toggle swaps Forward and Reverse; Off stays Off.
func (s *DoubleSolenoid) Toggle() error {
	switch s.Get() {
	case Forward:
		return s.Set(Reverse)
	case Reverse:
		return s.Set(Forward)
	}
	return nil
}

// Close turns the valve off and frees its channels.
func (s *DoubleSolenoid) Close() {
	_ = s.Set(Off)
	s.module.release(s.forwardChannel)
	s.module.release(s.reverseChannel)
}

// Compressor runs a compressor relay.  In digital (closed loop) mode it runs
// while the pressure switch reports low pressure.  With no switch fitted it
// runs whenever enabled.
type Compressor struct {
	lock           sync.Mutex
	relay          DigitalOutput
	pressureSwitch DigitalInput
	enabled        bool
}

// NewCompressor takes the relay output and an optional pressure switch that
// reads true once the system is full.
func NewCompressor(relay DigitalOutput, pressureSwitch DigitalInput) *Compressor {
	return &Compressor{
		relay:          relay,
		pressureSwitch: pressureSwitch,
	}
}

// EnableDigital turns on closed loop control from the pressure switch.
func (c *Compressor) EnableDigital() error {
	c.lock.Lock()
	c.enabled = true
	c.lock.Unlock()
	log.Println("Compressor: closed loop control enabled")
	return c.Update()
}

func (c *Compressor) Disable() error {
	c.lock.Lock()
	c.enabled = false
	c.lock.Unlock()
	log.Println("Compressor: disabled")
	return c.Update()
}

func (c *Compressor) Enabled() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.enabled
}

// Running reports whether the relay is currently demanded on.
func (c *Compressor) Running() bool {
	return c.relay.Get()
}

// PressureSwitchValue reports whether the switch says the tanks are full.
func (c *Compressor) PressureSwitchValue() (bool, error) {
	if c.pressureSwitch == nil {
		return false, nil
	}
	return c.pressureSwitch.Get()
}

// Update runs one step of the control loop.
func (c *Compressor) Update() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	run := c.enabled
	if run && c.pressureSwitch != nil {
		full, err := c.pressureSwitch.Get()
		if err != nil {
			// Relay off on a bad reading.
			_ = c.relay.Set(false)
			return errors.Wrap(err, "reading pressure switch")
		}
		run = !full
	}
	if run != c.relay.Get() {
		log.WithField("running", run).Debug("Compressor: relay change")
	}
	return c.relay.Set(run)
}
