package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/pca9685"
	"github.com/Jagwires7443/Defense/pkg/screen"
	"github.com/Jagwires7443/Defense/pkg/sound"
)

type Config struct {
	I2CBus     string
	PWMAddr    int
	ScreenFile string
}

type Hardware struct {
	cfg Config
	pwm pca9685.Interface

	*outputs

	inputLock sync.Mutex
	inputs    map[string]DigitalInput

	soundsToPlay chan string
}

var _ Interface = (*Hardware)(nil)

func New(cfg Config) (*Hardware, error) {
	pwm, err := pca9685.New(cfg.I2CBus, cfg.PWMAddr)
	if err != nil {
		return nil, err
	}
	if err := pwm.Configure(); err != nil {
		_ = pwm.Close()
		return nil, errors.Wrap(err, "configuring PWM board")
	}
	for port := 0; port < pca9685.NumPorts; port++ {
		if err := pwm.Off(port); err != nil {
			_ = pwm.Close()
			return nil, errors.Wrap(err, "silencing PWM outputs")
		}
	}
	return &Hardware{
		cfg:          cfg,
		pwm:          pwm,
		outputs:      newOutputs(pwm),
		inputs:       map[string]DigitalInput{},
		soundsToPlay: sound.InitSound(),
	}, nil
}

// Start kicks off the background status screen.
func (h *Hardware) Start(ctx context.Context) {
	if h.cfg.ScreenFile != "" {
		go screen.LoopUpdatingScreen(ctx, h.cfg.ScreenFile)
	}
}

func (h *Hardware) Motor(channel int) MotorChannel {
	return h.motor(channel)
}

func (h *Hardware) DigitalOutput(name string) (DigitalOutput, error) {
	if d := h.existingDigital(name); d != nil {
		return d, nil
	}
	pin, err := openOutputPin(name)
	if err != nil {
		return nil, err
	}
	return h.digital(name, pin), nil
}

func (h *Hardware) DigitalInput(name string) (DigitalInput, error) {
	h.inputLock.Lock()
	defer h.inputLock.Unlock()
	if in, ok := h.inputs[name]; ok {
		return in, nil
	}
	in, err := openInputPin(name)
	if err != nil {
		return nil, err
	}
	h.inputs[name] = in
	return in, nil
}

func (h *Hardware) SetOutputsEnabled(enabled bool) {
	if err := h.setEnabled(enabled); err != nil {
		log.Println("HW: Failed to update outputs:", err)
	}
	screen.SetEnabled(enabled)
}

func (h *Hardware) OutputsEnabled() bool {
	return h.isEnabled()
}

func (h *Hardware) SetStatus(mode string, enabled bool) {
	screen.SetMode(mode)
	screen.SetEnabled(enabled)
}

func (h *Hardware) PlaySound(path string) {
	if path == "" {
		return
	}
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	select {
	case h.soundsToPlay <- path:
		return
	case <-time.After(10 * time.Millisecond):
		log.Println("Timed out trying to play sound: ", path)
	}
}

func (h *Hardware) Shutdown() {
	log.Println("HW: Shutdown, zeroing outputs")
	h.neutralAll()
	_ = h.pwm.Close()
	close(h.soundsToPlay)
}
