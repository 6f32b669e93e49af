package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atspaeth/Neurobot/pkg/drive"
)

func TestSampleSlot(t *testing.T) {
	var slot SampleSlot

	smp, gen := slot.Peek()
	require.Nil(t, smp)
	require.Equal(t, uint64(0), gen)

	first := &drive.Sample{Gen: 1}
	slot.Put(first)
	smp, gen = slot.Peek()
	require.Equal(t, first, smp)
	require.Equal(t, uint64(1), gen)

	// Peek never consumes.
	smp, _ = slot.Peek()
	require.Equal(t, first, smp)

	// A burst of puts keeps only the newest.
	second := &drive.Sample{Gen: 2}
	third := &drive.Sample{Gen: 3}
	slot.Put(second)
	slot.Put(third)
	smp, gen = slot.Peek()
	require.Equal(t, third, smp)
	require.Equal(t, uint64(3), gen)
	require.Equal(t, uint64(3), slot.Generation())

	// Reset clears the value but not the count.
	slot.Reset()
	smp, _ = slot.Peek()
	require.Nil(t, smp)
	require.Equal(t, uint64(3), slot.Generation())
}

func TestCommandSlot(t *testing.T) {
	var slot CommandSlot

	_, ok := slot.Take()
	require.False(t, ok)

	slot.Put(drive.Command{Duty: [4]float32{1, 0, 0, 0}})
	cmd, ok := slot.Take()
	require.True(t, ok)
	require.Equal(t, float32(1), cmd.Duty[0])

	_, ok = slot.Take()
	require.False(t, ok, "a command is taken at most once")

	// Last write wins.
	slot.Put(drive.Command{Duty: [4]float32{0.1, 0, 0, 0}})
	slot.Put(drive.Command{Duty: [4]float32{0.2, 0, 0, 0}})
	cmd, ok = slot.Take()
	require.True(t, ok)
	require.Equal(t, float32(0.2), cmd.Duty[0])
	require.Equal(t, uint64(3), slot.Generation())

	slot.Put(drive.Command{})
	slot.Reset()
	_, ok = slot.Take()
	require.False(t, ok)
}
