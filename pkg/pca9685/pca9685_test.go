package pca9685

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	reg  byte
	data []byte
}

type fakePort struct {
	writes []write
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	f.writes = append(f.writes, write{reg, append([]byte(nil), buf...)})
	return nil
}

func (f *fakePort) Close() error { return nil }

func TestThrottlePulse(t *testing.T) {
	assert.Equal(t, PulseNeutral, ThrottlePulse(0))
	assert.Equal(t, PulseMax, ThrottlePulse(1))
	assert.Equal(t, PulseMin, ThrottlePulse(-1))
	assert.Equal(t, PulseMax, ThrottlePulse(3))
	assert.Equal(t, 1600*time.Microsecond, ThrottlePulse(0.2))
}

func TestSetThrottleWritesRegisters(t *testing.T) {
	f := &fakePort{}
	p := &PCA9685{dev: f}

	require.NoError(t, p.SetThrottle(2, 0))
	require.Len(t, f.writes, 1)
	assert.Equal(t, byte(RegLEDBase+2*4), f.writes[0].reg)
	// 1.5ms of 20ms at 12 bits.
	count := uint16(PWMMax * PulseNeutral / PWMPeriod)
	assert.Equal(t, []byte{0, 0, byte(count & 0xff), byte(count >> 8)}, f.writes[0].data)
}

func TestOffSetsFullOffBit(t *testing.T) {
	f := &fakePort{}
	p := &PCA9685{dev: f}
	require.NoError(t, p.Off(0))
	assert.Equal(t, []byte{0, 0, 0, fullOffBit}, f.writes[0].data)
}

func TestPortRange(t *testing.T) {
	f := &fakePort{}
	p := &PCA9685{dev: f}
	assert.Error(t, p.SetPWM(16, 0.5))
	assert.Error(t, p.SetPulse(-1, PulseNeutral))
	assert.Empty(t, f.writes)
}

func TestConfigure(t *testing.T) {
	f := &fakePort{}
	p := &PCA9685{dev: f}
	require.NoError(t, p.Configure())
	require.Len(t, f.writes, 4)
	assert.Equal(t, byte(RegPreScale), f.writes[1].reg)
	assert.Equal(t, []byte{0x79}, f.writes[1].data)
}
