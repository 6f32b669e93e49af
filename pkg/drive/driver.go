// Package drive bridges the raw shared-memory layout to typed samples
// and commands, and owns the coprocessor run state.
package drive

import (
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/atspaeth/Neurobot/pkg/hsr"
)

// Driver errors.
var (
	ErrAlreadyRunning      = errors.New("already running")
	ErrNotRunning          = errors.New("not running")
	ErrNotConfigured       = errors.New("not configured")
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	ErrClosed              = errors.New("driver closed")
)

// Firmware controls the coprocessor core hosting the sampling loop.
// A nil Firmware means the region is driven externally (simulator).
type Firmware interface {
	StartFirmware() error
	StopFirmware() error
}

// Driver converts between the shared region's byte layout and typed
// Sample/Command values, and enforces the configured sample period.
// It is not safe for concurrent use; the poll loop is its only caller
// while running.
type Driver struct {
	region *hsr.Region
	fw     Firmware

	conf       ChannelConfig
	configured bool
	running    bool
	closed     bool
	epoch      time.Time
}

// New creates a Driver over a validated region.
func New(region *hsr.Region, fw Firmware) *Driver {
	return &Driver{region: region, fw: fw}
}

// Config returns the active channel configuration.
func (d *Driver) Config() ChannelConfig {
	return d.conf
}

// Configure validates the configuration and writes the control block.
// Valid only while stopped.
func (d *Driver) Configure(conf ChannelConfig) error {
	if d.closed {
		return ErrClosed
	}
	if d.running {
		return ErrAlreadyRunning
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	d.region.SetControl(hsr.Control{
		PeriodUS:   uint32(conf.Period / time.Microsecond),
		EnableMask: conf.EnableMask(),
		PWMMax:     uint16(conf.PWMMax * 100),
	})
	d.conf = conf
	d.configured = true
	return nil
}

// Start arms the coprocessor loop.
func (d *Driver) Start() error {
	if d.closed {
		return ErrClosed
	}
	if d.running {
		return ErrAlreadyRunning
	}
	if !d.configured {
		return ErrNotConfigured
	}
	if err := d.region.Validate(); err != nil {
		glog.Errorf("region validation: %v", err)
		return ErrHardwareUnavailable
	}
	d.region.ResetSampleGen()
	d.region.SetRun(true)
	if d.fw != nil {
		if err := d.fw.StartFirmware(); err != nil {
			d.region.SetRun(false)
			glog.Errorf("firmware start: %v", err)
			return ErrHardwareUnavailable
		}
	}
	d.epoch = time.Now()
	d.running = true
	glog.V(1).Infof("driver started, period %v", d.conf.Period)
	return nil
}

// PollOnce reads the sample slot without blocking. It returns a sample
// only when a new stable generation has been published since the last
// poll, nil otherwise.
func (d *Driver) PollOnce() *Sample {
	if !d.running {
		return nil
	}
	f, ok := d.region.LoadSample()
	if !ok {
		return nil
	}
	s := &Sample{
		Time:    d.epoch.Add(time.Duration(f.TimeUS) * time.Microsecond),
		Gen:     f.Gen,
		Raw:     f.ADC,
		Digital: f.Digital,
	}
	for i, raw := range f.ADC {
		if d.conf.Analog[i].Enabled {
			s.ADC[i] = float32(raw) / 4095
		}
	}
	return s
}

// PushCommand scales the setpoints by the PWM ceiling and writes them
// to the command slot, superseding any unconsumed command.
func (d *Driver) PushCommand(cmd Command) error {
	if !d.running {
		return ErrNotRunning
	}
	var f hsr.CommandFrame
	scale := d.conf.PWMMax / 100
	for i, duty := range cmd.Duty {
		if !d.conf.PWM[i].Enabled {
			continue
		}
		if duty > 1 {
			duty = 1
		} else if duty < -1 {
			duty = -1
		}
		f.Duty[i] = int16(duty * scale * 32767)
	}
	f.Digital = cmd.Digital
	d.region.StoreCommand(f)
	return nil
}

// Stop disarms the coprocessor loop. Idempotent.
func (d *Driver) Stop() error {
	if !d.running {
		return nil
	}
	d.region.StoreCommand(hsr.CommandFrame{}) // leave actuators idle
	d.region.SetRun(false)
	if d.fw != nil {
		if err := d.fw.StopFirmware(); err != nil {
			glog.Warningf("firmware stop: %v", err)
		}
	}
	d.running = false
	glog.V(1).Info("driver stopped")
	return nil
}

// Close stops the loop and marks the driver unusable. Idempotent.
// The region mapping itself belongs to the session and is released
// there.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.Stop()
	d.closed = true
	d.configured = false
	return nil
}

// Running reports whether the loop is armed.
func (d *Driver) Running() bool {
	return d.running
}
