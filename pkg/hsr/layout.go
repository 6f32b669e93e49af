package hsr

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Order is the byte order of everything in the shared region.
var Order = binary.LittleEndian

// Layout identification.
const (
	Magic         uint32 = 0x4e424f54 // "NBOT"
	LayoutVersion uint16 = 1
)

// Channel counts are fixed by the board wiring.
const (
	AnalogChannels = 4
	PWMChannels    = 4
)

// Region layout offsets.
const (
	offMagic   = 0x00
	offVersion = 0x04
	offFlags   = 0x06
	offEcho    = 0x08 // period echoed back by the firmware, µs

	offCtlPeriod = 0x20 // uint32 µs
	offCtlEnable = 0x24 // uint32 channel enable mask
	offCtlPWMMax = 0x28 // uint16 percent ×100
	offCtlRun    = 0x2a // uint16, 1 = firmware loop armed

	offSampleGen  = 0x40 // uint32, odd = write in progress
	offSampleTime = 0x44 // uint64 µs on the coprocessor clock
	offSampleADC  = 0x4c // [4]uint16 raw 12-bit readings
	offSampleDin  = 0x54 // uint32 digital input bits

	offCmdGen  = 0x80 // uint32, odd = write in progress
	offCmdDuty = 0x84 // [4]int16 signed fractional duty ×32767
	offCmdDout = 0x8c // uint32 digital output bits

	// RegionSize is the portion of shared RAM covered by this layout.
	RegionSize = 0x100
)

// Enable mask bits: analog channels occupy the low nibble,
// PWM channels bits 8..11.
const (
	EnableAnalogShift = 0
	EnablePWMShift    = 8
)

// SampleFrame is one stable snapshot of the sample slot.
type SampleFrame struct {
	Gen     uint32
	TimeUS  uint64
	ADC     [AnalogChannels]uint16
	Digital uint32
}

// CommandFrame is the actuator setpoint tuple written to the command slot.
type CommandFrame struct {
	Duty    [PWMChannels]int16
	Digital uint32
}

// Control mirrors the control block the host configures before start.
type Control struct {
	PeriodUS   uint32
	EnableMask uint32
	PWMMax     uint16 // percent ×100
	Run        bool
}

// Region provides typed access to a mapped shared-memory block.
// The backing slice may be device memory or a plain buffer; the codec
// is identical either way.
type Region struct {
	mem []byte

	// mu serializes host-side accessors. The coprocessor does not
	// take it, which is why the generation counters exist; it only
	// matters when both ends of the region live in this process
	// (simulator, tests). Critical sections are O(slot size).
	mu sync.Mutex

	lastSampleGen uint32
	cmdGen        uint32
}

// NewRegion wraps a memory block. The block must be at least RegionSize
// bytes long.
func NewRegion(mem []byte) (*Region, error) {
	if len(mem) < RegionSize {
		return nil, fmt.Errorf("region too small: %d < %d", len(mem), RegionSize)
	}
	return &Region{mem: mem}, nil
}

// Init stamps the layout header. Called by whoever owns the block
// initially: the firmware on real hardware, the simulator otherwise.
func (r *Region) Init() {
	Order.PutUint32(r.mem[offMagic:], Magic)
	Order.PutUint16(r.mem[offVersion:], LayoutVersion)
	Order.PutUint16(r.mem[offFlags:], 0)
}

// Validate checks the layout header.
func (r *Region) Validate() error {
	if m := Order.Uint32(r.mem[offMagic:]); m != Magic {
		return fmt.Errorf("bad region magic %#x", m)
	}
	if v := Order.Uint16(r.mem[offVersion:]); v != LayoutVersion {
		return fmt.Errorf("unsupported layout version %d", v)
	}
	return nil
}

// SetControl writes the control block.
func (r *Region) SetControl(c Control) {
	r.mu.Lock()
	defer r.mu.Unlock()

	Order.PutUint32(r.mem[offCtlPeriod:], c.PeriodUS)
	Order.PutUint32(r.mem[offCtlEnable:], c.EnableMask)
	Order.PutUint16(r.mem[offCtlPWMMax:], c.PWMMax)
	var run uint16
	if c.Run {
		run = 1
	}
	Order.PutUint16(r.mem[offCtlRun:], run)
}

// GetControl reads the control block back.
func (r *Region) GetControl() Control {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Control{
		PeriodUS:   Order.Uint32(r.mem[offCtlPeriod:]),
		EnableMask: Order.Uint32(r.mem[offCtlEnable:]),
		PWMMax:     Order.Uint16(r.mem[offCtlPWMMax:]),
		Run:        Order.Uint16(r.mem[offCtlRun:]) != 0,
	}
}

// SetRun flips only the run flag.
func (r *Region) SetRun(run bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var v uint16
	if run {
		v = 1
	}
	Order.PutUint16(r.mem[offCtlRun:], v)
}

// PeriodEcho returns the sample period the firmware reports it is
// actually using, in µs. Zero until the firmware loop starts.
func (r *Region) PeriodEcho() uint32 {
	return Order.Uint32(r.mem[offEcho:])
}

// SetPeriodEcho is the firmware side of PeriodEcho.
func (r *Region) SetPeriodEcho(us uint32) {
	Order.PutUint32(r.mem[offEcho:], us)
}

// LoadSample copies the sample slot if a new stable generation is
// available since the previous call. It never blocks and never
// returns a torn frame.
func (r *Region) LoadSample() (SampleFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g1 := Order.Uint32(r.mem[offSampleGen:])
	if g1&1 != 0 || g1 == r.lastSampleGen {
		return SampleFrame{}, false
	}
	var f SampleFrame
	f.Gen = g1
	f.TimeUS = Order.Uint64(r.mem[offSampleTime:])
	for i := 0; i < AnalogChannels; i++ {
		f.ADC[i] = Order.Uint16(r.mem[offSampleADC+2*i:])
	}
	f.Digital = Order.Uint32(r.mem[offSampleDin:])
	if g2 := Order.Uint32(r.mem[offSampleGen:]); g2 != g1 {
		// Overwritten mid-copy. Skip; the next poll sees the newer one.
		return SampleFrame{}, false
	}
	r.lastSampleGen = g1
	return f, true
}

// ResetSampleGen forgets the last observed generation so the next
// LoadSample delivers whatever is current. Used on restart.
func (r *Region) ResetSampleGen() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSampleGen = Order.Uint32(r.mem[offSampleGen:])
}

// StoreSample publishes a sample frame. This is the firmware side of
// the contract; on the host it is exercised by the simulator.
func (r *Region) StoreSample(f SampleFrame) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := Order.Uint32(r.mem[offSampleGen:])
	Order.PutUint32(r.mem[offSampleGen:], gen+1) // odd: write in progress
	Order.PutUint64(r.mem[offSampleTime:], f.TimeUS)
	for i := 0; i < AnalogChannels; i++ {
		Order.PutUint16(r.mem[offSampleADC+2*i:], f.ADC[i])
	}
	Order.PutUint32(r.mem[offSampleDin:], f.Digital)
	gen += 2
	Order.PutUint32(r.mem[offSampleGen:], gen)
	return gen
}

// StoreCommand publishes a command frame, superseding any unconsumed
// previous one.
func (r *Region) StoreCommand(f CommandFrame) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := Order.Uint32(r.mem[offCmdGen:])
	Order.PutUint32(r.mem[offCmdGen:], gen+1)
	for i := 0; i < PWMChannels; i++ {
		Order.PutUint16(r.mem[offCmdDuty+2*i:], uint16(f.Duty[i]))
	}
	Order.PutUint32(r.mem[offCmdDout:], f.Digital)
	gen += 2
	Order.PutUint32(r.mem[offCmdGen:], gen)
	return gen
}

// LoadCommand copies the command slot if a new stable generation is
// available. This is the firmware side; the simulator uses it to apply
// host commands.
func (r *Region) LoadCommand() (CommandFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g1 := Order.Uint32(r.mem[offCmdGen:])
	if g1&1 != 0 || g1 == r.cmdGen {
		return CommandFrame{}, false
	}
	var f CommandFrame
	for i := 0; i < PWMChannels; i++ {
		f.Duty[i] = int16(Order.Uint16(r.mem[offCmdDuty+2*i:]))
	}
	f.Digital = Order.Uint32(r.mem[offCmdDout:])
	if g2 := Order.Uint32(r.mem[offCmdGen:]); g2 != g1 {
		return CommandFrame{}, false
	}
	r.cmdGen = g1
	return f, true
}

// NewMemRegion creates a Region over a fresh in-memory block with the
// header stamped. Used by tests and the simulator.
func NewMemRegion() *Region {
	r, _ := NewRegion(make([]byte, RegionSize))
	r.Init()
	return r
}
