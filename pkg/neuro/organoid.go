// Package neuro simulates a small culture of spiking neurons and
// derives actuator patterns from it.
package neuro

import "math"

// CellParams are the per-cell excitability constants:
// a 1/ms recovery time constant, b nS steady-state recovery
// conductance, c mV post-spike reset voltage, d pA post-spike recovery
// bump, Cap pF membrane capacitance, K nS/mV Na+ channel conductance,
// Vr/Vt mV resting and threshold voltages, Vp mV spike peak,
// Vn mV synaptic reversal potential, Tau ms synaptic time constant.
type CellParams struct {
	A, B, C, D, Cap, K, Vr, Vt, Vp, Vn, Tau float32
}

// CellTypes maps type abbreviations to parameter presets: regular
// spiking, intrinsically bursting, chattering, low-threshold spiking
// and late spiking cells.
var CellTypes = map[string]CellParams{
	"rs":  {A: 0.03, B: -2, C: -50, D: 100, Cap: 100, K: 0.7, Vr: -60, Vt: -40, Vp: 35, Vn: 0, Tau: 5},
	"ib":  {A: 0.01, B: 5, C: -56, D: 130, Cap: 150, K: 1.2, Vr: -75, Vt: -45, Vp: 50, Vn: 0, Tau: 5},
	"ch":  {A: 0.03, B: 1, C: -40, D: 150, Cap: 50, K: 1.5, Vr: -60, Vt: -40, Vp: 25, Vn: 0, Tau: 5},
	"lts": {A: 0.03, B: 8, C: -53, D: 20, Cap: 100, K: 1.0, Vr: -56, Vt: -42, Vp: 20, Vn: -70, Tau: 20},
	"ls":  {A: 0.17, B: 5, C: -45, D: 100, Cap: 20, K: 0.3, Vr: -66, Vt: -40, Vp: 30, Vn: -70, Tau: 20},
}

// STDPParams configure the optional triplet plasticity rule.
type STDPParams struct {
	TauPlus, TauMinus, TauY float32 // ms
	APlus, AMinus           float32
}

// DefaultSTDP are the published fit to V1 recordings.
var DefaultSTDP = STDPParams{
	TauPlus:  15,
	TauMinus: 35,
	TauY:     115,
	APlus:    6.5e-3,
	AMinus:   7e-3,
}

// Organoid is a simulated culture of cells with conductance-type
// synapses whose activation follows an alpha function. Synaptic
// activation pulls each postsynaptic cell toward the presynaptic
// cell's reversal potential.
type Organoid struct {
	N int
	// G[i][j] is the peak conductance from presynaptic j onto i.
	G [][]float32

	a, b, c, d, cap, k, vr, vt, vp, vn, tau []float32

	// Phase variables: membrane voltage (mV), recovery current (pA),
	// synaptic activation and its derivative.
	V, U, A, Adot []float32

	Fired []bool

	STDP   *STDPParams
	traces [3][]float32

	// scratch for the integrator
	dv, du, da, dad [4][]float32
}

// NewOrganoid creates a culture with per-cell parameters.
// len(params) fixes N; g must be N×N.
func NewOrganoid(g [][]float32, params []CellParams) *Organoid {
	n := len(params)
	o := &Organoid{N: n, G: g}
	alloc := func() []float32 { return make([]float32, n) }
	o.a, o.b, o.c, o.d, o.cap = alloc(), alloc(), alloc(), alloc(), alloc()
	o.k, o.vr, o.vt, o.vp, o.vn, o.tau = alloc(), alloc(), alloc(), alloc(), alloc(), alloc()
	o.V, o.U, o.A, o.Adot = alloc(), alloc(), alloc(), alloc()
	o.Fired = make([]bool, n)
	for i := range o.traces {
		o.traces[i] = alloc()
	}
	for i := range o.dv {
		o.dv[i], o.du[i], o.da[i], o.dad[i] = alloc(), alloc(), alloc(), alloc()
	}
	for i, p := range params {
		o.a[i], o.b[i], o.c[i], o.d[i], o.cap[i] = p.A, p.B, p.C, p.D, p.Cap
		o.k[i], o.vr[i], o.vt[i], o.vp[i], o.vn[i], o.tau[i] = p.K, p.Vr, p.Vt, p.Vp, p.Vn, p.Tau
	}
	o.Reset()
	return o
}

// Reset restores the resting state.
func (o *Organoid) Reset() {
	for i := 0; i < o.N; i++ {
		o.V[i] = o.vr[i]
		o.U[i], o.A[i], o.Adot[i] = 0, 0, 0
		o.Fired[i] = o.V[i] >= o.vp[i]
		for t := range o.traces {
			o.traces[t][i] = 0
		}
	}
}

// derive computes phase derivatives into the given scratch slices.
func (o *Organoid) derive(iin []float32, dv, du, da, dad []float32) {
	for i := 0; i < o.N; i++ {
		var gav, ga float32
		for j := 0; j < o.N; j++ {
			gav += o.G[i][j] * o.A[j] * o.vn[j]
			ga += o.G[i][j] * o.A[j]
		}
		na := o.k[i] * (o.V[i] - o.vr[i]) * (o.V[i] - o.vt[i])
		syn := gav - ga*o.V[i]
		dv[i] = (na - o.U[i] + syn + iin[i]) / o.cap[i]
		du[i] = o.a[i] * (o.b[i]*(o.V[i]-o.vr[i]) - o.U[i])
		da[i] = o.Adot[i] / o.tau[i]
		dad[i] = -(o.A[i] + 2*o.Adot[i]) / o.tau[i]
	}
}

// Step advances the culture by dt milliseconds under input currents
// iin (pA, len N). Midpoint integration: second order at the cost of a
// halved-timestep forward Euler.
func (o *Organoid) Step(dt float32, iin []float32) {
	// Finish the downstroke of any cell that crossed the peak last
	// step, so this step starts its refractory period.
	for i := 0; i < o.N; i++ {
		if o.Fired[i] {
			o.V[i] = o.c[i]
			o.U[i] += o.d[i]
			o.Adot[i]++
		}
	}

	if o.STDP != nil {
		o.applySTDP(dt)
	}

	k1v, k1u, k1a, k1d := o.dv[0], o.du[0], o.da[0], o.dad[0]
	k2v, k2u, k2a, k2d := o.dv[1], o.du[1], o.da[1], o.dad[1]
	o.derive(iin, k1v, k1u, k1a, k1d)
	for i := 0; i < o.N; i++ {
		o.V[i] += k1v[i] * dt / 2
		o.U[i] += k1u[i] * dt / 2
		o.A[i] += k1a[i] * dt / 2
		o.Adot[i] += k1d[i] * dt / 2
	}
	o.derive(iin, k2v, k2u, k2a, k2d)
	for i := 0; i < o.N; i++ {
		o.V[i] += k2v[i]*dt - k1v[i]*dt/2
		o.U[i] += k2u[i]*dt - k1u[i]*dt/2
		o.A[i] += k2a[i]*dt - k1a[i]*dt/2
		o.Adot[i] += k2d[i]*dt - k1d[i]*dt/2
	}

	for i := 0; i < o.N; i++ {
		if o.Fired[i] = o.V[i] >= o.vp[i]; o.Fired[i] {
			o.V[i] = o.vp[i]
		}
	}
}

func (o *Organoid) applySTDP(dt float32) {
	p := o.STDP
	anyFired := false
	for i := 0; i < o.N; i++ {
		if o.Fired[i] {
			anyFired = true
			break
		}
	}
	if anyFired {
		for j := 0; j < o.N; j++ {
			if !o.Fired[j] {
				continue
			}
			// Presynaptic spike: depress inputs through j.
			mod := p.AMinus * o.traces[1][j]
			for i := 0; i < o.N; i++ {
				o.G[i][j] -= mod
			}
		}
		for i := 0; i < o.N; i++ {
			if !o.Fired[i] {
				continue
			}
			// Postsynaptic spike: potentiate inputs onto i.
			y := o.traces[2][i]
			for j := 0; j < o.N; j++ {
				o.G[i][j] += p.APlus * o.traces[0][j] * y
			}
		}
	}
	taus := [3]float32{p.TauPlus, p.TauMinus, p.TauY}
	for t := range o.traces {
		decay := expf(-dt / taus[t])
		for i := 0; i < o.N; i++ {
			o.traces[t][i] *= decay
			if o.Fired[i] {
				o.traces[t][i]++
			}
		}
	}
}

func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
