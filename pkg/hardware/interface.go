package hardware

type Interface interface {
	// Motor returns the output for a motor controller on the given PWM
	// channel.  Repeated calls return the same channel.
	Motor(channel int) MotorChannel
	// DigitalOutput and DigitalInput look up a pin by name.
	DigitalOutput(name string) (DigitalOutput, error)
	DigitalInput(name string) (DigitalInput, error)

	// SetOutputsEnabled gates every output.  While disabled, motors get no
	// pulse (controllers go neutral) and digital outputs are held low; the
	// demanded values are kept and restored on enable.
	SetOutputsEnabled(enabled bool)
	OutputsEnabled() bool

	SetStatus(mode string, enabled bool)
	PlaySound(path string)

	Shutdown()
}

type MotorChannel interface {
	// Set demands a speed in [-1, 1].
	Set(value float64) error
	// SetBrake selects brake (true) or coast (false) when neutral, where the
	// controller supports it.
	SetBrake(brake bool)
}

type DigitalOutput interface {
	Set(on bool) error
	Get() bool
}

type DigitalInput interface {
	Get() (bool, error)
}

// motorBackend is the device actually producing motor pulses.
type motorBackend interface {
	SetThrottle(port int, value float64) error
	Off(port int) error
}

// pinBackend drives one physical output pin.
type pinBackend interface {
	Out(on bool) error
}
