// Package config loads the robot's YAML configuration over built-in defaults.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const DefaultPath = "/cfg/testbot.yaml"

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Period   time.Duration `yaml:"period"`

	Joystick   JoystickConfig    `yaml:"joystick"`
	Hardware   HardwareConfig    `yaml:"hardware"`
	Motors     MotorConfig       `yaml:"motors"`
	Drive      DriveConfig       `yaml:"drive"`
	Pneumatics PneumaticsConfig  `yaml:"pneumatics"`
	Camera     CameraConfig      `yaml:"camera"`
	Server     ServerConfig      `yaml:"server"`
	Sounds     map[string]string `yaml:"sounds"`
}

type JoystickConfig struct {
	Device string `yaml:"device"`
}

type HardwareConfig struct {
	I2CBus  string `yaml:"i2c_bus"`
	PWMAddr int    `yaml:"pwm_addr"`
	Screen  string `yaml:"screen"`
}

// MotorConfig gives the PWM channel of each drive motor controller.
type MotorConfig struct {
	LeftA  int `yaml:"left_a"`
	LeftB  int `yaml:"left_b"`
	RightA int `yaml:"right_a"`
	RightB int `yaml:"right_b"`
}

type DriveConfig struct {
	Mixer      float64       `yaml:"mixer"`
	TestSpeed  float64       `yaml:"test_speed"`
	Expiration time.Duration `yaml:"expiration"`
}

type PneumaticsConfig struct {
	Enabled        bool           `yaml:"enabled"`
	ForwardChannel int            `yaml:"forward_channel"`
	ReverseChannel int            `yaml:"reverse_channel"`
	Channels       map[int]string `yaml:"channels"`
	CompressorPin  string         `yaml:"compressor_pin"`
	PressureSwitch string         `yaml:"pressure_switch_pin"`
}

type CameraConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	Device  int    `yaml:"device"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Quality int    `yaml:"quality"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	// DriverStationTimeout disables the robot when the driver station sends
	// nothing (not even a ping) for this long.
	DriverStationTimeout time.Duration `yaml:"ds_timeout"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Period:   20 * time.Millisecond,
		Joystick: JoystickConfig{
			Device: "/dev/input/js0",
		},
		Hardware: HardwareConfig{
			I2CBus:  "/dev/i2c-1",
			PWMAddr: 0x40,
			Screen:  "/dev/fb1",
		},
		Motors: MotorConfig{
			LeftA:  1,
			LeftB:  2,
			RightA: 3,
			RightB: 4,
		},
		Drive: DriveConfig{
			Mixer:      0.75,
			TestSpeed:  0.2,
			Expiration: 100 * time.Millisecond,
		},
		Pneumatics: PneumaticsConfig{
			Enabled:        true,
			ForwardChannel: 2,
			ReverseChannel: 3,
			Channels: map[int]string{
				0: "GPIO5",
				1: "GPIO6",
				2: "GPIO13",
				3: "GPIO19",
				4: "GPIO26",
				5: "GPIO16",
				6: "GPIO20",
				7: "GPIO21",
			},
			CompressorPin:  "GPIO12",
			PressureSwitch: "GPIO25",
		},
		Camera: CameraConfig{
			Enabled: true,
			Name:    "USB Camera 0",
			Device:  0,
			Width:   320,
			Height:  240,
			FPS:     15,
			Quality: 80,
		},
		Server: ServerConfig{
			Listen:               ":1181",
			DriverStationTimeout: 500 * time.Millisecond,
		},
		Sounds: map[string]string{
			"start":      "/sounds/start.wav",
			"disabled":   "/sounds/disabled.wav",
			"autonomous": "/sounds/autonomous.wav",
			"teleop":     "/sounds/teleop.wav",
			"test":       "/sounds/test.wav",
		},
	}
}

// Load reads path over the defaults.  A missing file is not an error: the
// defaults are used as they are.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		log.WithField("path", path).Println("No config file, using defaults")
		return cfg, nil
	} else if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Period <= 0 {
		return errors.Errorf("period must be positive, got %v", c.Period)
	}
	if c.Server.DriverStationTimeout <= 0 {
		return errors.Errorf("server ds_timeout must be positive, got %v", c.Server.DriverStationTimeout)
	}
	seen := map[int]string{}
	for name, ch := range map[string]int{
		"left_a":  c.Motors.LeftA,
		"left_b":  c.Motors.LeftB,
		"right_a": c.Motors.RightA,
		"right_b": c.Motors.RightB,
	} {
		if ch < 0 || ch > 15 {
			return errors.Errorf("motor %s: PWM channel %d out of range 0..15", name, ch)
		}
		if other, ok := seen[ch]; ok {
			return errors.Errorf("motors %s and %s share PWM channel %d", name, other, ch)
		}
		seen[ch] = name
	}
	if c.Drive.Mixer < 0 || c.Drive.Mixer > 1 {
		return errors.Errorf("drive mixer %v out of range 0..1", c.Drive.Mixer)
	}
	if c.Drive.TestSpeed < -1 || c.Drive.TestSpeed > 1 {
		return errors.Errorf("drive test speed %v out of range -1..1", c.Drive.TestSpeed)
	}
	if c.Pneumatics.Enabled {
		p := c.Pneumatics
		if p.ForwardChannel == p.ReverseChannel {
			return errors.Errorf("solenoid forward and reverse channels are both %d", p.ForwardChannel)
		}
		for _, ch := range []int{p.ForwardChannel, p.ReverseChannel} {
			if _, ok := p.Channels[ch]; !ok {
				return errors.Errorf("solenoid channel %d has no pin", ch)
			}
		}
		if p.CompressorPin == "" {
			return errors.New("compressor_pin is required when pneumatics are enabled")
		}
	}
	if c.Camera.Enabled && (c.Camera.Width <= 0 || c.Camera.Height <= 0 || c.Camera.FPS <= 0) {
		return errors.Errorf("camera size %dx%d@%d is invalid", c.Camera.Width, c.Camera.Height, c.Camera.FPS)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// InUsePath is where the effective config is written: testbot.yaml becomes
// testbot-in-use.yaml alongside it.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse records the config actually being used.
func WriteInUse(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0666), "writing %s", path)
}
