package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Millisecond, cfg.Period)
	assert.Equal(t, 0.75, cfg.Drive.Mixer)
	assert.Equal(t, 2, cfg.Pneumatics.ForwardChannel)
	assert.Equal(t, 3, cfg.Pneumatics.ReverseChannel)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.DriverStationTimeout)
}

func TestDriverStationTimeoutMustBePositive(t *testing.T) {
	cfg := Default()
	cfg.Server.DriverStationTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testbot.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
period: 10ms
motors:
  left_a: 5
drive:
  mixer: 0.5
camera:
  enabled: false
pneumatics:
  enabled: false
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Period)
	assert.Equal(t, 5, cfg.Motors.LeftA)
	assert.Equal(t, 2, cfg.Motors.LeftB, "untouched fields keep defaults")
	assert.Equal(t, 0.5, cfg.Drive.Mixer)
	assert.False(t, cfg.Camera.Enabled)
	assert.False(t, cfg.Pneumatics.Enabled)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	for name, doc := range map[string]string{
		"shared channel": "motors:\n  left_a: 3\n",
		"bad channel":    "motors:\n  right_b: 16\n",
		"mixer":          "drive:\n  mixer: 2\n",
		"same solenoid":  "pneumatics:\n  reverse_channel: 2\n",
		"unknown field":  "wheels: 6\n",
		"log level":      "log_level: shouty\n",
		"period":         "period: 0s\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Parse([]byte(doc), &cfg))
		})
	}
}

func TestWriteInUseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := InUsePath(filepath.Join(dir, "testbot.yaml"))
	assert.Equal(t, filepath.Join(dir, "testbot-in-use.yaml"), path)

	require.NoError(t, WriteInUse(path, Default()))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
