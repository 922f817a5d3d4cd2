package hardware

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// outputs owns the enable gate shared by every motor and digital output.
type outputs struct {
	lock    sync.Mutex
	enabled bool

	motorDev motorBackend
	motors   map[int]*motorChannel
	digitals map[string]*digitalOutput
}

func newOutputs(dev motorBackend) *outputs {
	return &outputs{
		motorDev: dev,
		motors:   map[int]*motorChannel{},
		digitals: map[string]*digitalOutput{},
	}
}

func (o *outputs) motor(channel int) *motorChannel {
	o.lock.Lock()
	defer o.lock.Unlock()
	if m, ok := o.motors[channel]; ok {
		return m
	}
	m := &motorChannel{
		outputs: o,
		channel: channel,
	}
	o.motors[channel] = m
	return m
}

func (o *outputs) digital(name string, pin pinBackend) *digitalOutput {
	o.lock.Lock()
	defer o.lock.Unlock()
	if d, ok := o.digitals[name]; ok {
		return d
	}
	d := &digitalOutput{
		outputs: o,
		name:    name,
		pin:     pin,
	}
	o.digitals[name] = d
	return d
}

func (o *outputs) existingDigital(name string) *digitalOutput {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.digitals[name]
}

func (o *outputs) setEnabled(enabled bool) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.enabled == enabled {
		return nil
	}
	o.enabled = enabled
	log.WithField("enabled", enabled).Info("HW: Outputs gated")

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, m := range o.motors {
		note(m.writeLocked())
	}
	for _, d := range o.digitals {
		note(d.writeLocked())
	}
	return firstErr
}

func (o *outputs) isEnabled() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.enabled
}

// neutralAll drops every output regardless of the gate; used on shutdown.
func (o *outputs) neutralAll() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.enabled = false
	for _, m := range o.motors {
		m.demand = 0
		_ = m.writeLocked()
	}
	for _, d := range o.digitals {
		d.demand = false
		_ = d.writeLocked()
	}
}

type motorChannel struct {
	outputs *outputs
	channel int
	demand  float64
	brake   bool
}

func (m *motorChannel) Set(value float64) error {
	m.outputs.lock.Lock()
	defer m.outputs.lock.Unlock()
	m.demand = value
	return m.writeLocked()
}

func (m *motorChannel) SetBrake(brake bool) {
	m.outputs.lock.Lock()
	defer m.outputs.lock.Unlock()
	if m.brake != brake {
		// A PWM-driven controller takes its neutral mode from its own
		// jumper/config; all we can do is note the request.
		log.WithFields(log.Fields{"channel": m.channel, "brake": brake}).Debug("HW: Neutral mode requested")
	}
	m.brake = brake
	if b, ok := m.outputs.motorDev.(interface{ SetBrake(port int, brake bool) }); ok {
		b.SetBrake(m.channel, brake)
	}
}

func (m *motorChannel) writeLocked() error {
	var err error
	if m.outputs.enabled {
		err = m.outputs.motorDev.SetThrottle(m.channel, m.demand)
	} else {
		err = m.outputs.motorDev.Off(m.channel)
	}
	return errors.Wrapf(err, "writing motor channel %d", m.channel)
}

type digitalOutput struct {
	outputs *outputs
	name    string
	pin     pinBackend
	demand  bool
}

func (d *digitalOutput) Set(on bool) error {
	d.outputs.lock.Lock()
	defer d.outputs.lock.Unlock()
	d.demand = on
	return d.writeLocked()
}

func (d *digitalOutput) Get() bool {
	d.outputs.lock.Lock()
	defer d.outputs.lock.Unlock()
	return d.demand
}

func (d *digitalOutput) writeLocked() error {
	err := d.pin.Out(d.demand && d.outputs.enabled)
	return errors.Wrapf(err, "writing digital output %s", d.name)
}
