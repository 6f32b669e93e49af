package neuro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func single(kind string) *Organoid {
	return NewOrganoid([][]float32{{0}}, []CellParams{CellTypes[kind]})
}

func TestOrganoidResting(t *testing.T) {
	o := single("rs")
	require.Equal(t, CellTypes["rs"].Vr, o.V[0])

	// No input: the cell stays near rest and never fires.
	for i := 0; i < 2000; i++ {
		o.Step(0.5, []float32{0})
		require.False(t, o.Fired[0])
	}
	require.InDelta(t, float64(CellTypes["rs"].Vr), float64(o.V[0]), 1)
}

func TestOrganoidSpikes(t *testing.T) {
	o := single("rs")

	// A strong step current makes a regular-spiking cell fire
	// repeatedly within a second.
	spikes := 0
	for i := 0; i < 2000; i++ {
		o.Step(0.5, []float32{300})
		if o.Fired[0] {
			spikes++
			require.Equal(t, CellTypes["rs"].Vp, o.V[0], "spike clips at the peak")
		}
	}
	require.True(t, spikes > 2, "got %d spikes", spikes)

	o.Reset()
	require.Equal(t, CellTypes["rs"].Vr, o.V[0])
	require.Equal(t, float32(0), o.U[0])
	require.False(t, o.Fired[0])
}

func TestOrganoidSynapse(t *testing.T) {
	// Excitatory cell 0 drives cell 1; cell 1 gets no direct input but
	// its synaptic drive must rise when 0 fires.
	g := [][]float32{{0, 0}, {3, 0}}
	params := []CellParams{CellTypes["rs"], CellTypes["rs"]}
	o := NewOrganoid(g, params)

	var maxA float32
	for i := 0; i < 2000; i++ {
		o.Step(0.5, []float32{400, 0})
		if o.A[0] > maxA {
			maxA = o.A[0]
		}
	}
	require.True(t, maxA > 0.1, "presynaptic activation never rose: %g", maxA)
}

func TestSTDPTraces(t *testing.T) {
	o := single("rs")
	stdp := DefaultSTDP
	o.STDP = &stdp

	// Force a spike and let the plasticity step run: the traces bump by
	// one on a spike and then decay.
	o.Fired[0] = true
	o.Step(0.5, []float32{0})
	first := o.traces[0][0]
	require.True(t, first > 0.9 && first <= 1)

	for i := 0; i < 100; i++ {
		o.Step(0.5, []float32{0})
	}
	require.True(t, o.traces[0][0] < first, "trace did not decay")
}

func TestSTDPWeightChange(t *testing.T) {
	// Two disconnected cells with a forced pre-post-post triplet: the
	// weight onto the postsynaptic cell must potentiate. A single
	// pre-post pairing changes nothing because the slow postsynaptic
	// trace is still zero at the first post spike.
	g := [][]float32{{0, 0}, {0, 0}}
	o := NewOrganoid(g, []CellParams{CellTypes["rs"], CellTypes["rs"]})
	stdp := DefaultSTDP
	o.STDP = &stdp

	o.Fired[0] = true // presynaptic spike
	o.Step(0.5, []float32{0, 0})
	o.Fired[1] = true // first postsynaptic spike
	o.Step(0.5, []float32{0, 0})
	require.Equal(t, float32(0), o.G[1][0])

	o.Fired[1] = true // second postsynaptic spike completes the triplet
	o.Step(0.5, []float32{0, 0})
	require.True(t, o.G[1][0] > 0, "triplet pairing should potentiate, got %g", o.G[1][0])
}
