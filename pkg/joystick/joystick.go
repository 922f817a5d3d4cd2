package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Button and pad mappings for an Xbox-style controller on the Linux xpad
// driver:
//
// Buttons
//
//    A         = 0
//    B         = 1
//    X         = 2
//    Y         = 3
//    LB        = 4
//    RB        = 5
//    Back      = 6
//    Start     = 7
//    Guide     = 8
//    L stick   = 9
//    R stick   = 10
//
// Axes
//
//    L stick l/r = 0 (left = -32767; right = +32767)
//            u/d = 1 (up = -32767; down = +32767)
//    LT          = 2 (unpressed = -32767; fully-pressed = 32767)
//    R stick l/r = 3 (left = -32767; right = +32767)
//            u/d = 4 (up = -32767; down = +32767)
//    RT          = 5 (unpressed = -32767; fully-pressed = 32767)
//    D-pad   l/r = 6 (left = -32767; right = +32767)
//            u/d = 7 (up = -32767; down = +32767)

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2

	// eventTypeInit is or-ed into the type of the synthetic events the driver
	// sends on open to report the initial state.
	eventTypeInit = 0x80
)

const (
	ButtonA      = 0
	ButtonB      = 1
	ButtonX      = 2
	ButtonY      = 3
	ButtonLB     = 4
	ButtonRB     = 5
	ButtonBack   = 6
	ButtonStart  = 7
	ButtonGuide  = 8
	ButtonLStick = 9
	ButtonRStick = 10

	AxisLStickX = 0
	AxisLStickY = 1
	AxisLT      = 2
	AxisRStickX = 3
	AxisRStickY = 4
	AxisRT      = 5
	AxisDPadX   = 6
	AxisDPadY   = 7

	NumButtons = 11
	NumAxes    = 8
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device    io.ReadCloser
	closeOnce sync.Once
	closeErr  error

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
	// Initial is set on the synthetic events reporting state at open time.
	Initial bool
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return FromReader(f), nil
}

// FromReader wraps an already-open event stream, for example a device file or
// a test buffer.
func FromReader(r io.ReadCloser) *Joystick {
	return &Joystick{
		device: r,
	}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var rawEvent rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &rawEvent)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = rawEvent.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:    j.wallclockEpoch.Add(time.Duration(rawEvent.Time-j.deviceEpoch) * time.Millisecond),
		Value:   rawEvent.Value,
		Type:    EventType(rawEvent.Type & 0x7f),
		Number:  rawEvent.Number,
		Initial: rawEvent.Type&eventTypeInit != 0,
	}, nil
}

// Close closes the device.  Only the first call has any effect.
func (j *Joystick) Close() error {
	j.closeOnce.Do(func() {
		j.closeErr = j.device.Close()
	})
	return j.closeErr
}

// Loop reads events from j and sends them on events until the device fails or
// ctx is cancelled.  events is closed on return.
func Loop(ctx context.Context, j *Joystick, events chan<- *Event) error {
	defer close(events)
	defer j.Close()

	// Closing the device is the only way to unblock a pending read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = j.Close()
		case <-done:
		}
	}()

	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Println("Failed to read from joystick:", err)
			return err
		}
		log.Debugf("Joy: %s", event)
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}
