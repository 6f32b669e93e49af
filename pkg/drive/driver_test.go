package drive

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atspaeth/Neurobot/pkg/hsr"
)

type testFirmware struct {
	starts, stops int
	startErr      error
}

func (f *testFirmware) StartFirmware() error {
	f.starts++
	return f.startErr
}

func (f *testFirmware) StopFirmware() error {
	f.stops++
	return nil
}

func TestDriverLifecycle(t *testing.T) {
	region := hsr.NewMemRegion()
	fw := &testFirmware{}
	d := New(region, fw)

	require.Equal(t, ErrNotConfigured, d.Start())

	require.NoError(t, d.Configure(DefaultConfig()))
	ctl := region.GetControl()
	require.Equal(t, uint32(500), ctl.PeriodUS)
	require.Equal(t, uint32(0x0f0f), ctl.EnableMask)
	require.Equal(t, uint16(2000), ctl.PWMMax)
	require.False(t, ctl.Run)

	require.NoError(t, d.Start())
	require.True(t, d.Running())
	require.True(t, region.GetControl().Run)
	require.Equal(t, 1, fw.starts)

	require.Equal(t, ErrAlreadyRunning, d.Start())
	require.Equal(t, ErrAlreadyRunning, d.Configure(DefaultConfig()))

	require.NoError(t, d.Stop())
	require.False(t, d.Running())
	require.False(t, region.GetControl().Run)
	require.Equal(t, 1, fw.stops)
	require.NoError(t, d.Stop(), "stop is idempotent")

	require.NoError(t, d.Start(), "restart keeps the configuration")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	require.Equal(t, ErrClosed, d.Configure(DefaultConfig()))
	require.Equal(t, ErrClosed, d.Start())
}

func TestDriverStartFailures(t *testing.T) {
	// Unstamped region: the firmware never initialized it.
	region, err := hsr.NewRegion(make([]byte, hsr.RegionSize))
	require.NoError(t, err)
	d := New(region, nil)
	require.NoError(t, d.Configure(DefaultConfig()))
	require.Equal(t, ErrHardwareUnavailable, d.Start())

	// Firmware refuses to start: the run flag must not stay set.
	region = hsr.NewMemRegion()
	fw := &testFirmware{startErr: errors.New("rproc boot failed")}
	d = New(region, fw)
	require.NoError(t, d.Configure(DefaultConfig()))
	require.Equal(t, ErrHardwareUnavailable, d.Start())
	require.False(t, region.GetControl().Run)
}

func TestDriverPollOnce(t *testing.T) {
	region := hsr.NewMemRegion()
	d := New(region, nil)

	require.Nil(t, d.PollOnce(), "not running")

	conf := DefaultConfig()
	conf.Analog[3].Enabled = false
	require.NoError(t, d.Configure(conf))
	require.NoError(t, d.Start())

	require.Nil(t, d.PollOnce(), "nothing published yet")

	region.StoreSample(hsr.SampleFrame{
		TimeUS:  1000,
		ADC:     [4]uint16{0, 2047, 4095, 4095},
		Digital: 0x3,
	})
	s := d.PollOnce()
	require.NotNil(t, s)
	require.Equal(t, [4]uint16{0, 2047, 4095, 4095}, s.Raw)
	require.Equal(t, float32(0), s.ADC[0])
	require.InDelta(t, 0.5, float64(s.ADC[1]), 0.001)
	require.Equal(t, float32(1), s.ADC[2])
	require.Equal(t, float32(0), s.ADC[3], "disabled channel reads zero")
	require.Equal(t, uint32(0x3), s.Digital)
	require.Equal(t, time.Millisecond, s.Time.Sub(d.epoch))

	require.Nil(t, d.PollOnce(), "same generation is not delivered twice")
}

func TestDriverPushCommand(t *testing.T) {
	region := hsr.NewMemRegion()
	d := New(region, nil)

	require.Equal(t, ErrNotRunning, d.PushCommand(Command{}))

	conf := DefaultConfig()
	conf.PWMMax = 20
	conf.PWM[3].Enabled = false
	require.NoError(t, d.Configure(conf))
	require.NoError(t, d.Start())

	require.NoError(t, d.PushCommand(Command{
		Duty:    [4]float32{1, -1, 2, 1}, // overdrive clamps to ±1
		Digital: 0x1,
	}))
	f, ok := region.LoadCommand()
	require.True(t, ok)
	scale := conf.PWMMax / 100
	full := int16(scale * 32767)
	require.Equal(t, full, f.Duty[0])
	require.Equal(t, -full, f.Duty[1])
	require.Equal(t, full, f.Duty[2])
	require.Equal(t, int16(0), f.Duty[3], "disabled channel stays idle")
	require.Equal(t, uint32(0x1), f.Digital)

	// Stop zeroes the command slot so actuators do not keep the last
	// setpoint.
	require.NoError(t, d.Stop())
	f, ok = region.LoadCommand()
	require.True(t, ok)
	require.Equal(t, hsr.CommandFrame{}, f)
}
