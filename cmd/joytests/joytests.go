package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/joystick"
	"github.com/Jagwires7443/Defense/pkg/shaping"
)

var CLI struct {
	Device string  `help:"Joystick device." default:"/dev/input/js0" env:"JOYSTICK_DEVICE"`
	Mixer  float64 `help:"Cubic/linear mix for the shaped values." default:"0.75"`
	Raw    bool    `help:"Print every raw event too."`
}

func main() {
	kong.Parse(&CLI, kong.Description("Print gamepad state and the drive demands it would produce."))

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	// Wait for the joystick and kick off a background thread to read from it.
	joystickEvents := initJoystick(ctx, cancel)
	pad := joystick.NewGamepad()
	for je := range joystickEvents {
		if CLI.Raw {
			fmt.Println(je)
		}
		pad.Apply(je)
		if je.Initial {
			continue
		}
		printState(pad)
	}
}

func printState(pad *joystick.Gamepad) {
	turbo := pad.LeftBumper() || pad.RightBumper()
	x := shaping.Limit(shaping.Shape(-pad.LeftY(), CLI.Mixer), turbo)
	y := shaping.Limit(shaping.Shape(pad.LeftX(), CLI.Mixer), turbo)
	fmt.Printf("stick x=%+.3f y=%+.3f  shaped fwd=%+.3f rot=%+.3f  turbo=%-5v  A=%d B=%d X=%d Y=%d\n",
		pad.LeftX(), pad.LeftY(), x, y, turbo,
		b2i(pad.AButton()), b2i(pad.BButton()), b2i(pad.XButton()), b2i(pad.YButton()))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func initJoystick(ctx context.Context, cancel context.CancelFunc) chan *joystick.Event {
	joystickEvents := make(chan *joystick.Event)
	firstLog := true
	for {
		j, err := joystick.NewJoystick(CLI.Device)
		if err != nil {
			if firstLog {
				fmt.Printf("Waiting for joystick: %v.\n", err)
				firstLog = false
			}
			time.Sleep(1 * time.Second)
			continue
		}

		fmt.Printf("Opened joystick\n")
		go func() {
			defer cancel()
			err := joystick.Loop(ctx, j, joystickEvents)
			fmt.Printf("Joystick failed: %v\n", err)
		}()
		break
	}
	return joystickEvents
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
