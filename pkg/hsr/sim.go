package hsr

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Sim emulates the PRU firmware loop against an in-memory region.
// Actuators are modeled as integrators: each PWM duty moves the
// corresponding analog position at Rate full-scale units per second,
// and the analog channels read the positions back, which is how the
// physical robot's potentiometers behave.
type Sim struct {
	Region *Region
	Period time.Duration
	Rate   float64

	pos   [PWMChannels]float64
	duty  [PWMChannels]float64
	dout  uint32
	clock time.Duration
}

// NewSim creates a simulator over a fresh in-memory region with all
// positions centered.
func NewSim(period time.Duration) *Sim {
	s := &Sim{
		Region: NewMemRegion(),
		Period: period,
		Rate:   1.0,
	}
	for i := range s.pos {
		s.pos[i] = 0.5
	}
	return s
}

// Step advances the simulated firmware by dt: applies any pending
// command frame, integrates the plant, and publishes a sample frame.
func (s *Sim) Step(dt time.Duration) {
	if cmd, ok := s.Region.LoadCommand(); ok {
		for i := 0; i < PWMChannels; i++ {
			s.duty[i] = float64(cmd.Duty[i]) / 32767
		}
		s.dout = cmd.Digital
	}
	sec := dt.Seconds()
	for i := 0; i < PWMChannels; i++ {
		s.pos[i] += s.duty[i] * s.Rate * sec
		if s.pos[i] < 0 {
			s.pos[i] = 0
		} else if s.pos[i] > 1 {
			s.pos[i] = 1
		}
	}
	s.clock += dt

	var f SampleFrame
	f.TimeUS = uint64(s.clock / time.Microsecond)
	for i := 0; i < AnalogChannels; i++ {
		f.ADC[i] = uint16(s.pos[i] * 4095)
	}
	f.Digital = s.dout
	s.Region.StoreSample(f)
}

// Run implements framework.Runnable. The loop honors the run flag and
// the period in the control block, like the firmware does.
func (s *Sim) Run(ctx context.Context) error {
	period := s.Period
	if period == 0 {
		period = 500 * time.Microsecond
	}
	glog.V(2).Infof("sim coprocessor loop, period %v", period)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ctl := s.Region.GetControl()
			if !ctl.Run {
				continue
			}
			if p := time.Duration(ctl.PeriodUS) * time.Microsecond; p != 0 && p != period {
				period = p
				ticker.Reset(period)
			}
			s.Region.SetPeriodEcho(uint32(period / time.Microsecond))
			s.Step(period)
		}
	}
}
