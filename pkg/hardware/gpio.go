package hardware

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

func initHost() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	return hostInitErr
}

type gpioOut struct {
	pin gpio.PinIO
}

func (g *gpioOut) Out(on bool) error {
	return g.pin.Out(gpio.Level(on))
}

type gpioIn struct {
	pin gpio.PinIO
	// activeLow inverts the reading, e.g. for a switch wired to ground.
	activeLow bool
}

func (g *gpioIn) Get() (bool, error) {
	return bool(g.pin.Read()) != g.activeLow, nil
}

func lookupPin(name string) (gpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, errors.Wrap(err, "initialising periph host drivers")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such GPIO pin %q", name)
	}
	return p, nil
}

func openOutputPin(name string) (*gpioOut, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "configuring %s as output", name)
	}
	return &gpioOut{pin: p}, nil
}

func openInputPin(name string) (*gpioIn, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "configuring %s as input", name)
	}
	return &gpioIn{pin: p, activeLow: true}, nil
}
