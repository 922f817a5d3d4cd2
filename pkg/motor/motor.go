// Package motor models a smart motor controller in percent-output mode:
// inversion, neutral mode, and leader/follower pairing.
package motor

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type InvertType int

const (
	// None drives the output as demanded.
	None InvertType = iota
	// InvertMotorOutput negates the demand.
	InvertMotorOutput
	// FollowMaster matches the leader's inversion while following.
	FollowMaster
	// OpposeMaster is the opposite of the leader's inversion while following.
	OpposeMaster
)

func (i InvertType) String() string {
	switch i {
	case None:
		return "None"
	case InvertMotorOutput:
		return "InvertMotorOutput"
	case FollowMaster:
		return "FollowMaster"
	case OpposeMaster:
		return "OpposeMaster"
	default:
		return fmt.Sprintf("InvertType(%d)", int(i))
	}
}

type NeutralMode int

const (
	// EEPROMSetting leaves the controller's stored neutral mode alone.
	EEPROMSetting NeutralMode = iota
	Coast
	Brake
)

func (n NeutralMode) String() string {
	switch n {
	case EEPROMSetting:
		return "EEPROMSetting"
	case Coast:
		return "Coast"
	case Brake:
		return "Brake"
	default:
		return fmt.Sprintf("NeutralMode(%d)", int(n))
	}
}

// Output is where a controller's signed output ends up.
type Output interface {
	Set(value float64) error
	SetBrake(brake bool)
}

// Controller mirrors the handful of operations the robot uses on its motor
// controllers.  All methods are safe for concurrent use.
type Controller struct {
	ID int

	lock      sync.Mutex
	out       Output
	inverted  InvertType
	neutral   NeutralMode
	leader    *Controller
	followers []*Controller
	demand    float64
	output    float64
	written   bool
}

func New(id int, out Output) *Controller {
	return &Controller{
		ID:  id,
		out: out,
	}
}

// ConfigFactoryDefault puts the controller back into a known state: not
// following, not inverted, stored neutral mode, output neutral.
func (c *Controller) ConfigFactoryDefault() {
	c.detach()
	c.lock.Lock()
	c.inverted = None
	c.neutral = EEPROMSetting
	c.lock.Unlock()
	c.apply(0)
}

func (c *Controller) SetInverted(i InvertType) {
	c.lock.Lock()
	c.inverted = i
	demand := c.demand
	leader := c.leader
	c.lock.Unlock()
	log.WithFields(log.Fields{"id": c.ID, "invert": i}).Debug("Motor: inversion set")
	if leader != nil {
		c.follow(demand, leader.Inverted())
		return
	}
	c.apply(demand)
}

func (c *Controller) Inverted() InvertType {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.inverted
}

func (c *Controller) SetNeutralMode(n NeutralMode) {
	c.lock.Lock()
	c.neutral = n
	c.lock.Unlock()
	if n != EEPROMSetting {
		c.out.SetBrake(n == Brake)
	}
}

func (c *Controller) NeutralMode() NeutralMode {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.neutral
}

// Follow makes c mirror every demand applied to leader.
func (c *Controller) Follow(leader *Controller) {
	if leader == c {
		return
	}
	c.detach()
	leader.lock.Lock()
	leader.followers = append(leader.followers, c)
	demand := leader.demand
	leaderInverted := leader.inverted
	leader.lock.Unlock()

	c.lock.Lock()
	c.leader = leader
	c.lock.Unlock()
	log.WithFields(log.Fields{"id": c.ID, "leader": leader.ID}).Debug("Motor: following")
	c.follow(demand, leaderInverted)
}

// Leader returns the controller c follows, or nil.
func (c *Controller) Leader() *Controller {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.leader
}

// Set demands a percent output in [-1, 1].  A follower stops following.
func (c *Controller) Set(percent float64) {
	c.detach()
	c.apply(percent)
}

// StopMotor sets the output to neutral.  A follower stops following.
func (c *Controller) StopMotor() {
	c.Set(0)
}

// Get returns the last demand, before inversion.
func (c *Controller) Get() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.demand
}

// Output returns the signed value last sent to the hardware.
func (c *Controller) Output() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.output
}

func (c *Controller) detach() {
	c.lock.Lock()
	leader := c.leader
	c.leader = nil
	c.lock.Unlock()
	if leader == nil {
		return
	}
	leader.lock.Lock()
	defer leader.lock.Unlock()
	for i, f := range leader.followers {
		if f == c {
			leader.followers = append(leader.followers[:i], leader.followers[i+1:]...)
			break
		}
	}
}

// apply writes a new demand, then passes it on to any followers.
func (c *Controller) apply(demand float64) {
	demand = clamp(demand)

	c.lock.Lock()
	c.demand = demand
	inverted := c.inverted
	if c.leader != nil {
		// A follower's own demand comes from its leader; nothing else to do
		// here.
		c.lock.Unlock()
		return
	}
	c.writeLocked(signed(demand, inverted == InvertMotorOutput))
	followers := append([]*Controller(nil), c.followers...)
	c.lock.Unlock()

	for _, f := range followers {
		f.follow(demand, inverted)
	}
}

func (c *Controller) follow(demand float64, leaderInverted InvertType) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.demand = demand
	var invert bool
	switch c.inverted {
	case InvertMotorOutput:
		invert = true
	case FollowMaster:
		invert = leaderInverted == InvertMotorOutput
	case OpposeMaster:
		invert = leaderInverted != InvertMotorOutput
	}
	c.writeLocked(signed(demand, invert))
}

func (c *Controller) writeLocked(output float64) {
	if c.written && output == c.output {
		return
	}
	if err := c.out.Set(output); err != nil {
		// Forget the cached value so the next write goes out again.
		c.written = false
		log.WithField("id", c.ID).Println("Motor: failed to set output:", err)
		return
	}
	c.output = output
	c.written = true
}

func signed(v float64, invert bool) float64 {
	if invert && v != 0 {
		return -v
	}
	return v
}

func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
