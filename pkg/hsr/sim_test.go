package hsr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimStep(t *testing.T) {
	s := NewSim(time.Millisecond)

	s.Step(time.Millisecond)
	f, ok := s.Region.LoadSample()
	require.True(t, ok)
	require.Equal(t, uint64(1000), f.TimeUS)
	for i := range f.ADC {
		require.Equal(t, uint16(2047), f.ADC[i], "actuators start centered")
	}

	// Full positive duty moves the position at Rate units per second.
	s.Region.StoreCommand(CommandFrame{Duty: [4]int16{32767, 0, 0, 0}})
	s.Step(100 * time.Millisecond)
	f, ok = s.Region.LoadSample()
	require.True(t, ok)
	require.InDelta(t, 0.6*4095, float64(f.ADC[0]), 2)
	require.Equal(t, uint16(2047), f.ADC[1])

	// Position saturates at full scale.
	for i := 0; i < 20; i++ {
		s.Step(time.Second)
	}
	f, ok = s.Region.LoadSample()
	require.True(t, ok)
	require.Equal(t, uint16(4095), f.ADC[0])
}

func TestSimRunHonorsRunFlag(t *testing.T) {
	s := NewSim(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Not armed: no samples appear.
	time.Sleep(50 * time.Millisecond)
	_, ok := s.Region.LoadSample()
	require.False(t, ok)

	s.Region.SetControl(Control{PeriodUS: 1000, Run: true})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok = s.Region.LoadSample(); ok {
			break
		}
		require.True(t, time.Now().Before(deadline), "no sample from armed sim")
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, uint32(1000), s.Region.PeriodEcho())
}
