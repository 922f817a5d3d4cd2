package drive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSide struct {
	value float64
	stops int
}

func (f *fakeSide) Set(v float64) { f.value = v }
func (f *fakeSide) StopMotor()    { f.value = 0; f.stops++ }

func TestArcadeDriveIK(t *testing.T) {
	for _, tc := range []struct {
		x, z        float64
		left, right float64
	}{
		{0, 0, 0, 0},
		{1, 0, 1, 1},
		{-1, 0, -1, -1},
		{0, 1, 1, -1},
		{0, -1, -1, 1},
		{0.5, 0.5, 0.5, 0},
		{0.5, -0.5, 0, 0.5},
		{-0.5, 0.5, 0, -0.5},
		{-0.5, -0.5, -0.5, 0},
		{1, 1, 1, 0},
		{2, 0, 1, 1},
	} {
		l, r := ArcadeDriveIK(tc.x, tc.z, false)
		assert.InDelta(t, tc.left, l, 1e-9, "left for x=%v z=%v", tc.x, tc.z)
		assert.InDelta(t, tc.right, r, 1e-9, "right for x=%v z=%v", tc.x, tc.z)
	}
}

func TestArcadeDriveIKSquared(t *testing.T) {
	l, r := ArcadeDriveIK(0.5, 0, true)
	assert.InDelta(t, 0.25, l, 1e-9)
	assert.InDelta(t, 0.25, r, 1e-9)
	l, r = ArcadeDriveIK(-0.5, 0, true)
	assert.InDelta(t, -0.25, l, 1e-9)
	assert.InDelta(t, -0.25, r, 1e-9)
}

func TestArcadeDriveAppliesDeadbandAndSquares(t *testing.T) {
	left, right := &fakeSide{}, &fakeSide{}
	d := New(left, right)

	d.ArcadeDrive(0.01, 0.015)
	assert.Equal(t, 0.0, left.value)
	assert.Equal(t, 0.0, right.value)

	d.ArcadeDrive(1, 0)
	assert.InDelta(t, 1, left.value, 1e-9)
	assert.InDelta(t, 1, right.value, 1e-9)

	d.SetMaxOutput(0.5)
	d.ArcadeDrive(-1, 0)
	assert.InDelta(t, -0.5, left.value, 1e-9)
	assert.InDelta(t, -0.5, right.value, 1e-9)
}

func TestTankDrive(t *testing.T) {
	left, right := &fakeSide{}, &fakeSide{}
	d := New(left, right)
	d.TankDrive(1, -1, false)
	assert.Equal(t, 1.0, left.value)
	assert.Equal(t, -1.0, right.value)
	d.TankDrive(0.01, 0.5, true)
	assert.Equal(t, 0.0, left.value)
	assert.Less(t, right.value, 0.5)
}

func TestMotorSafety(t *testing.T) {
	left, right := &fakeSide{}, &fakeSide{}
	d := New(left, right)
	start := time.Unix(1000, 0)
	d.now = func() time.Time { return start }

	d.ArcadeDrive(1, 0)
	assert.False(t, d.CheckSafety(start.Add(50*time.Millisecond), true))
	assert.Equal(t, 1.0, left.value)

	assert.False(t, d.CheckSafety(start.Add(200*time.Millisecond), false), "skipped while inactive")
	assert.Equal(t, 1.0, left.value)

	assert.True(t, d.CheckSafety(start.Add(200*time.Millisecond), true))
	assert.Equal(t, 0.0, left.value)
	assert.Equal(t, 0.0, right.value)
	assert.False(t, d.CheckSafety(start.Add(400*time.Millisecond), true), "only stops once per lapse")
	assert.Equal(t, 1, left.stops)

	d.SetSafetyEnabled(false)
	d.ArcadeDrive(1, 0)
	assert.False(t, d.CheckSafety(start.Add(time.Hour), true))
	assert.Equal(t, 1.0, left.value)
}

func TestMotorSafetyArmedFromConstruction(t *testing.T) {
	left, right := &fakeSide{}, &fakeSide{}
	d := New(left, right)

	assert.False(t, d.CheckSafety(time.Now(), true))
	assert.True(t, d.CheckSafety(time.Now().Add(time.Second), true), "never fed")
	assert.Equal(t, 1, left.stops)
	assert.Equal(t, 1, right.stops)
}
