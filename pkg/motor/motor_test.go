package motor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeOutput struct {
	value  float64
	brake  bool
	writes int
	fail   bool
}

func (f *fakeOutput) Set(v float64) error {
	if f.fail {
		return errors.New("i2c write failed")
	}
	f.value = v
	f.writes++
	return nil
}

func (f *fakeOutput) SetBrake(b bool) { f.brake = b }

func TestSetAndInvert(t *testing.T) {
	out := &fakeOutput{}
	c := New(1, out)
	c.Set(0.5)
	assert.Equal(t, 0.5, out.value)

	c.SetInverted(InvertMotorOutput)
	assert.Equal(t, -0.5, out.value, "inversion applies to the current demand")
	assert.Equal(t, 0.5, c.Get())
	assert.Equal(t, -0.5, c.Output())

	c.Set(2)
	assert.Equal(t, -1.0, out.value, "demand is clamped")

	c.StopMotor()
	assert.Equal(t, 0.0, out.value)
}

func TestFollowMaster(t *testing.T) {
	leaderOut, followerOut := &fakeOutput{}, &fakeOutput{}
	leader, follower := New(3, leaderOut), New(4, followerOut)

	follower.Follow(leader)
	leader.SetInverted(InvertMotorOutput)
	follower.SetInverted(FollowMaster)

	leader.Set(0.6)
	assert.Equal(t, -0.6, leaderOut.value)
	assert.Equal(t, -0.6, followerOut.value)
	assert.Same(t, leader, follower.Leader())

	follower.SetInverted(OpposeMaster)
	assert.Equal(t, 0.6, followerOut.value)

	follower.SetInverted(None)
	assert.Equal(t, 0.6, followerOut.value)
	follower.SetInverted(InvertMotorOutput)
	assert.Equal(t, -0.6, followerOut.value)
}

func TestFollowerSetStopsFollowing(t *testing.T) {
	leaderOut, followerOut := &fakeOutput{}, &fakeOutput{}
	leader, follower := New(1, leaderOut), New(2, followerOut)
	follower.Follow(leader)
	leader.Set(0.3)
	assert.Equal(t, 0.3, followerOut.value)

	follower.Set(0.2)
	assert.Nil(t, follower.Leader())
	leader.Set(-0.7)
	assert.Equal(t, 0.2, followerOut.value)

	// FollowMaster without a leader behaves like None.
	follower.SetInverted(FollowMaster)
	follower.Set(0.2)
	assert.Equal(t, 0.2, followerOut.value)
}

func TestFollowPicksUpLeaderDemand(t *testing.T) {
	leaderOut, followerOut := &fakeOutput{}, &fakeOutput{}
	leader, follower := New(1, leaderOut), New(2, followerOut)
	leader.Set(0.4)
	follower.Follow(leader)
	assert.Equal(t, 0.4, followerOut.value)
}

func TestConfigFactoryDefault(t *testing.T) {
	leaderOut, followerOut := &fakeOutput{}, &fakeOutput{}
	leader, follower := New(1, leaderOut), New(2, followerOut)
	follower.Follow(leader)
	follower.SetInverted(OpposeMaster)
	follower.SetNeutralMode(Brake)
	leader.Set(0.5)

	follower.ConfigFactoryDefault()
	assert.Nil(t, follower.Leader())
	assert.Equal(t, None, follower.Inverted())
	assert.Equal(t, EEPROMSetting, follower.NeutralMode())
	assert.Equal(t, 0.0, followerOut.value)

	leader.Set(0.9)
	assert.Equal(t, 0.0, followerOut.value)
}

func TestNeutralMode(t *testing.T) {
	out := &fakeOutput{}
	c := New(1, out)
	c.SetNeutralMode(Brake)
	assert.True(t, out.brake)
	c.SetNeutralMode(Coast)
	assert.False(t, out.brake)
	assert.Equal(t, Coast, c.NeutralMode())
}

func TestUnchangedOutputNotRewritten(t *testing.T) {
	out := &fakeOutput{}
	c := New(1, out)
	c.Set(0.2)
	c.Set(0.2)
	c.Set(0.2)
	assert.Equal(t, 1, out.writes)
}

func TestFailedWriteRetried(t *testing.T) {
	out := &fakeOutput{}
	c := New(1, out)
	c.Set(0.8)
	assert.Equal(t, 0.8, c.Output())

	out.fail = true
	c.StopMotor()
	assert.Equal(t, 0.8, out.value)
	assert.Equal(t, 0.8, c.Output(), "output reports what the hardware last accepted")

	out.fail = false
	c.StopMotor()
	assert.Equal(t, 0.0, out.value)
	assert.Equal(t, 0.0, c.Output())

	writes := out.writes
	c.StopMotor()
	assert.Equal(t, writes, out.writes)
}

func TestSelfFollowIgnored(t *testing.T) {
	c := New(1, &fakeOutput{})
	c.Follow(c)
	assert.Nil(t, c.Leader())
}
