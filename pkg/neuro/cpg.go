package neuro

// CPG is a central pattern generator producing rhythmic drive for the
// four leg actuators. Four half-center oscillators (mutually
// inhibiting low-threshold-spiking pairs) phase-lock through weak
// cross-coupling; each half drives a regular-spiking motor cell, and
// each actuator integrates its motor pair into a signed muscle
// activation.
type CPG struct {
	Net *Organoid

	// Drive is the tonic excitation current (pA) keeping the
	// oscillators running.
	Drive float32
	// Feedback scales the proprioceptive current injected from the
	// position error of each actuator.
	Feedback float32
	// MuscleTau is the muscle activation time constant in ms.
	MuscleTau float32

	muscle [4]float32
	iin    []float32
}

// Cell index helpers: oscillator halves come first (flexor, extensor
// per actuator), motor cells after.
const (
	cpgOscCells   = 8
	cpgMotorCells = 4
	cpgCells      = cpgOscCells + cpgMotorCells
)

// NewCPG builds the walker network.
func NewCPG() *CPG {
	params := make([]CellParams, cpgCells)
	for i := 0; i < cpgOscCells; i++ {
		params[i] = CellTypes["lts"]
	}
	for i := cpgOscCells; i < cpgCells; i++ {
		params[i] = CellTypes["rs"]
	}

	g := make([][]float32, cpgCells)
	for i := range g {
		g[i] = make([]float32, cpgCells)
	}
	for leg := 0; leg < 4; leg++ {
		fl, ex := 2*leg, 2*leg+1
		// Half-center: strong mutual inhibition.
		g[fl][ex], g[ex][fl] = 8, 8
		// Motor cell follows the flexor half.
		g[cpgOscCells+leg][fl] = 5
		// Weak coupling to the next leg, shifted half a phase, keeps
		// the gait diagonal.
		nfl, nex := (2*leg+2)%cpgOscCells, (2*leg+3)%cpgOscCells
		g[nfl][ex] += 1.5
		g[nex][fl] += 1.5
	}

	return &CPG{
		Net:       NewOrganoid(g, params),
		Drive:     150,
		Feedback:  5,
		MuscleTau: 30,
		iin:       make([]float32, cpgCells),
	}
}

// Muscles returns the current muscle activations.
func (c *CPG) Muscles() [4]float32 {
	return c.muscle
}

// Step advances the generator by dt milliseconds given the measured
// actuator positions in [0,1], and returns signed fractional
// activations for the four actuators.
func (c *CPG) Step(dt float32, pos [4]float32) [4]float32 {
	for leg := 0; leg < 4; leg++ {
		// Positive position error excites the extensor half and
		// inhibits the flexor half, pulling the leg back to center.
		perr := (pos[leg] - 0.5) * c.Feedback * 40
		c.iin[2*leg] = c.Drive - perr
		c.iin[2*leg+1] = c.Drive + perr
	}
	for i := cpgOscCells; i < cpgCells; i++ {
		c.iin[i] = 0
	}
	c.Net.Step(dt, c.iin)

	var out [4]float32
	for leg := 0; leg < 4; leg++ {
		// Muscle follows motor-cell synaptic activation with a slow
		// leak; the extensor half pulls it negative.
		target := c.Net.A[cpgOscCells+leg] - c.Net.A[2*leg+1]
		c.muscle[leg] += dt / c.MuscleTau * (target - c.muscle[leg])
		out[leg] = clamp1(c.muscle[leg])
	}
	return out
}

func clamp1(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
