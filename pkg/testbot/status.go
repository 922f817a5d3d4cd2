package testbot

import "github.com/Jagwires7443/Defense/pkg/motor"

// MotorStatus is one controller as seen from outside.
type MotorStatus struct {
	ID       int     `json:"id"`
	Demand   float64 `json:"demand"`
	Output   float64 `json:"output"`
	Inverted string  `json:"inverted"`
	Neutral  string  `json:"neutral"`
	Follows  int     `json:"follows,omitempty"`
}

type CompressorStatus struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
	Full    bool `json:"full"`
}

type CameraStatus struct {
	Name   string `json:"name"`
	Frames uint64 `json:"frames"`
}

type Status struct {
	Motors     map[string]MotorStatus `json:"motors"`
	Solenoid   string                 `json:"solenoid,omitempty"`
	Compressor *CompressorStatus      `json:"compressor,omitempty"`
	Camera     *CameraStatus          `json:"camera,omitempty"`
}

// Status reports the state of the robot's actuators.  Safe to call from any
// goroutine.
func (r *Robot) Status() Status {
	s := Status{Motors: map[string]MotorStatus{}}
	for _, e := range []struct {
		name string
		c    *motor.Controller
	}{
		{"left_a", r.leftA},
		{"left_b", r.leftB},
		{"right_a", r.rightA},
		{"right_b", r.rightB},
	} {
		ms := MotorStatus{
			ID:       e.c.ID,
			Demand:   e.c.Get(),
			Output:   e.c.Output(),
			Inverted: e.c.Inverted().String(),
			Neutral:  e.c.NeutralMode().String(),
		}
		if l := e.c.Leader(); l != nil {
			ms.Follows = l.ID
		}
		s.Motors[e.name] = ms
	}
	if r.solenoid != nil {
		s.Solenoid = r.solenoid.Get().String()
	}
	if r.compressor != nil {
		full, _ := r.compressor.PressureSwitchValue()
		s.Compressor = &CompressorStatus{
			Enabled: r.compressor.Enabled(),
			Running: r.compressor.Running(),
			Full:    full,
		}
	}
	if cam := r.Camera(); cam != nil {
		s.Camera = &CameraStatus{Name: r.cfg.Camera.Name, Frames: cam.Frames()}
	}
	return s
}
