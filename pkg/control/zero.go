// Package control provides classical controllers for the actuators.
package control

import (
	"time"

	"github.com/golang/glog"

	"github.com/atspaeth/Neurobot/pkg/drive"
	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/session"
)

// PI holds proportional-integral gains with a leaky integral: the
// integral error decays toward the present error with time constant
// Tau (ms), which keeps wind-up bounded on a stalled actuator.
type PI struct {
	KP  float32
	KI  float32
	Tau float32
}

// DefaultPI matches the gains the rig is usually zeroed with.
var DefaultPI = PI{KP: 3, KI: 6, Tau: 1000}

// Zeroer drives every actuator toward mid-scale. Used to park the
// robot in a known pose before or after an experiment.
type Zeroer struct {
	Session *session.Session
	PI      PI
	// Target position, default mid-scale.
	Target float32
	// LogEvery reports progress every N iterations; 0 disables.
	LogEvery int

	pos    [4]float32
	interr [4]float32
	have   bool
	ticks  int
}

// NewZeroer creates a Zeroer with default gains.
func NewZeroer(sess *session.Session) *Zeroer {
	return &Zeroer{Session: sess, PI: DefaultPI, Target: 0.5, LogEvery: 1000}
}

// AddToLoop implements framework.LoopAdder.
func (z *Zeroer) AddToLoop(l *fx.Loop) {
	l.At(fx.StageSense, z)
	l.At(fx.StageActuate, z)
}

// Settled reports whether every actuator is within tol of the target.
func (z *Zeroer) Settled(tol float32) bool {
	if !z.have {
		return false
	}
	for _, p := range z.pos {
		if d := p - z.Target; d > tol || d < -tol {
			return false
		}
	}
	return true
}

// Control implements framework.Controller.
func (z *Zeroer) Control(cc fx.ControlContext) error {
	switch cc.Stage() {
	case fx.StageSense:
		smp, err := z.Session.ReadLatest()
		if err != nil {
			return err
		}
		if smp != nil {
			z.pos = smp.ADC
			z.have = true
		}
	case fx.StageActuate:
		if !z.have {
			return nil
		}
		dtMs := float32(cc.Dt()) / float32(time.Millisecond)
		var cmd drive.Command
		for i := range z.pos {
			err := z.pos[i] - z.Target
			cmd.Duty[i] = -z.PI.KP*err - z.PI.KI*z.interr[i]
			z.interr[i] += dtMs / z.PI.Tau * (err - z.interr[i])
		}
		z.ticks++
		if z.LogEvery > 0 && z.ticks%z.LogEvery == 0 {
			glog.Infof("zeroing: pos=%v control=%v", z.pos, cmd.Duty)
		}
		return z.Session.WriteCommand(cmd)
	}
	return nil
}
