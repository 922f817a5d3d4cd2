package hardware

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Dummy is an in-memory stand-in for the robot's hardware, used for
// simulation and tests.  It records what would have reached the wires.
type Dummy struct {
	*outputs
	dev *dummyDevice

	lock   sync.Mutex
	inputs map[string]*DummyInput
	sounds []string
	mode   string
}

func NewDummy() *Dummy {
	dev := &dummyDevice{
		throttles: map[int]float64{},
		brakes:    map[int]bool{},
		pulsing:   map[int]bool{},
		pins:      map[string]bool{},
	}
	return &Dummy{
		outputs: newOutputs(dev),
		dev:     dev,
		inputs:  map[string]*DummyInput{},
	}
}

var _ Interface = (*Dummy)(nil)

func (d *Dummy) Motor(channel int) MotorChannel {
	return d.motor(channel)
}

func (d *Dummy) DigitalOutput(name string) (DigitalOutput, error) {
	return d.digital(name, &dummyPin{dev: d.dev, name: name}), nil
}

func (d *Dummy) DigitalInput(name string) (DigitalInput, error) {
	return d.Input(name), nil
}

// Input returns the named input so a test can drive it.
func (d *Dummy) Input(name string) *DummyInput {
	d.lock.Lock()
	defer d.lock.Unlock()
	in, ok := d.inputs[name]
	if !ok {
		in = &DummyInput{}
		d.inputs[name] = in
	}
	return in
}

func (d *Dummy) SetOutputsEnabled(enabled bool) {
	if err := d.setEnabled(enabled); err != nil {
		log.Println("DHW: Failed to update outputs:", err)
	}
}

func (d *Dummy) OutputsEnabled() bool {
	return d.isEnabled()
}

func (d *Dummy) SetStatus(mode string, enabled bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.mode = mode
}

func (d *Dummy) PlaySound(path string) {
	log.Debugf("DHW: PlaySound path=%v", path)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sounds = append(d.sounds, path)
}

func (d *Dummy) Shutdown() {
	log.Println("DHW: Shutdown")
	d.neutralAll()
}

// MotorOutput is the value reaching motor channel n: 0 while it gets no
// pulse.
func (d *Dummy) MotorOutput(n int) float64 {
	return d.dev.throttle(n)
}

// MotorPulsing reports whether channel n is receiving pulses at all.
func (d *Dummy) MotorPulsing(n int) bool {
	d.dev.lock.Lock()
	defer d.dev.lock.Unlock()
	return d.dev.pulsing[n]
}

func (d *Dummy) MotorBrake(n int) bool {
	d.dev.lock.Lock()
	defer d.dev.lock.Unlock()
	return d.dev.brakes[n]
}

// Pin is the level currently driven on the named output.
func (d *Dummy) Pin(name string) bool {
	d.dev.lock.Lock()
	defer d.dev.lock.Unlock()
	return d.dev.pins[name]
}

func (d *Dummy) Sounds() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.sounds...)
}

func (d *Dummy) Mode() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.mode
}

type dummyDevice struct {
	lock      sync.Mutex
	throttles map[int]float64
	brakes    map[int]bool
	pulsing   map[int]bool
	pins      map[string]bool
}

func (d *dummyDevice) SetThrottle(port int, value float64) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.throttles[port] = value
	d.pulsing[port] = true
	return nil
}

func (d *dummyDevice) Off(port int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.throttles[port] = 0
	d.pulsing[port] = false
	return nil
}

func (d *dummyDevice) SetBrake(port int, brake bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.brakes[port] = brake
}

func (d *dummyDevice) throttle(port int) float64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.throttles[port]
}

type dummyPin struct {
	dev  *dummyDevice
	name string
}

func (p *dummyPin) Out(on bool) error {
	p.dev.lock.Lock()
	defer p.dev.lock.Unlock()
	p.dev.pins[p.name] = on
	return nil
}

type DummyInput struct {
	lock  sync.Mutex
	value bool
}

func (i *DummyInput) Set(v bool) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.value = v
}

func (i *DummyInput) Get() (bool, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.value, nil
}
