package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/config"
	"github.com/Jagwires7443/Defense/pkg/hardware"
	"github.com/Jagwires7443/Defense/pkg/joystick"
	"github.com/Jagwires7443/Defense/pkg/screen"
	"github.com/Jagwires7443/Defense/pkg/server"
	"github.com/Jagwires7443/Defense/pkg/testbot"
	"github.com/Jagwires7443/Defense/pkg/timedrobot"
)

var CLI struct {
	Config   string `help:"Config file." default:"/cfg/testbot.yaml" type:"path"`
	Sim      bool   `help:"Run against simulated hardware."`
	Joystick string `help:"Joystick device; defaults to the config file's." env:"JOYSTICK_DEVICE"`
	Listen   string `help:"HTTP listen address; defaults to the config file's."`
	LogLevel string `help:"Log level; defaults to the config file's."`
}

func main() {
	fmt.Println("---- testbot ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	kong.Parse(&CLI,
		kong.Name("testbot"),
		kong.Description("Tank drive test robot."))

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("Bad configuration")
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	hw, err := initHardware(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise hardware")
	}
	defer func() {
		fmt.Println("Zeroing outputs for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	hw.PlaySound(cfg.Sounds["start"])

	pad := joystick.NewGamepad()
	robot, err := testbot.New(ctx, cfg, hw, pad)
	if err != nil {
		log.WithError(err).Error("Failed to create robot")
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runner := timedrobot.NewRunner(robot,
		timedrobot.WithPeriod(cfg.Period),
		timedrobot.WithSimulation(CLI.Sim),
		timedrobot.WithOutputGate(hw),
		timedrobot.WithSafety(robot.Drive()),
		timedrobot.WithModeButtons(pad),
		timedrobot.WithMetrics(timedrobot.NewMetrics(reg)),
		timedrobot.WithModeChange(func(m timedrobot.Mode) {
			fmt.Printf("----- %s -----\n", m)
			hw.SetStatus(m.String(), m.Enabled())
			hw.PlaySound(cfg.Sounds[m.String()])
		}),
	)

	go loopReadingJoystick(ctx, cfg.Joystick.Device, pad, runner)

	srv := server.New(server.Config{
		Modes:    runner,
		Robot:    robot,
		Gamepad:  pad,
		Outputs:  hw,
		Gatherer: reg,
		Timeout:  cfg.Server.DriverStationTimeout,
	})
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
			log.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Error("Robot loop failed")
	}
	fmt.Println("Context done, shutting down")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return cfg, err
	}
	if CLI.Joystick != "" {
		cfg.Joystick.Device = CLI.Joystick
	}
	if CLI.Listen != "" {
		cfg.Server.Listen = CLI.Listen
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := config.WriteInUse(config.InUsePath(CLI.Config), cfg); err != nil {
		log.WithError(err).Warn("Failed to record config in use")
	}
	return cfg, nil
}

func initHardware(ctx context.Context, cfg config.Config) (hardware.Interface, error) {
	if CLI.Sim {
		log.Info("Using simulated hardware")
		return hardware.NewDummy(), nil
	}
	hw, err := hardware.New(hardware.Config{
		I2CBus:     cfg.Hardware.I2CBus,
		PWMAddr:    cfg.Hardware.PWMAddr,
		ScreenFile: cfg.Hardware.Screen,
	})
	if err != nil {
		return nil, err
	}
	hw.Start(ctx)
	return hw, nil
}

// loopReadingJoystick feeds the gamepad from the joystick device, reopening
// it if it goes away.  Losing the joystick disables the robot.
func loopReadingJoystick(ctx context.Context, device string, pad *joystick.Gamepad, modes *timedrobot.Runner) {
	const noJoy = "NO JOY"
	firstLog := true
	for ctx.Err() == nil {
		j, err := joystick.NewJoystick(device)
		if err != nil {
			if firstLog {
				screen.SetNotice(noJoy, screen.LevelErr)
				log.Warnf("Waiting for joystick: %v.", err)
				firstLog = false
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
			}
			continue
		}

		screen.ClearNotice(noJoy)
		log.WithField("device", device).Info("Opened joystick")
		firstLog = true

		events := make(chan *joystick.Event, 16)
		go func() {
			err := joystick.Loop(ctx, j, events)
			if ctx.Err() == nil {
				log.WithError(err).Warn("Joystick failed")
			}
		}()
		for event := range events {
			pad.Apply(event)
		}

		pad.Reset()
		if ctx.Err() == nil {
			modes.SetMode(timedrobot.Disabled)
		}
	}
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
