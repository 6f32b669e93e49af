package neuro

import (
	"fmt"
	"time"

	"github.com/atspaeth/Neurobot/pkg/datalog"
	"github.com/atspaeth/Neurobot/pkg/drive"
	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/session"
)

// WalkController runs a CPG against a live session: it senses the
// actuator positions, steps the network, applies the muscle drives,
// and optionally datalogs every tick.
type WalkController struct {
	Session  *session.Session
	CPG      *CPG
	Recorder datalog.Recorder

	start time.Time
	pos   [4]float32
	out   [4]float32
	have  bool
}

// NewWalkController creates a controller around a fresh CPG.
func NewWalkController(sess *session.Session) *WalkController {
	return &WalkController{Session: sess, CPG: NewCPG()}
}

// Columns names the datalogged variables: actuator positions, neuron
// voltages, muscle activations.
func (w *WalkController) Columns() []string {
	cols := make([]string, 0, 4+cpgCells+4)
	for i := 0; i < 4; i++ {
		cols = append(cols, fmt.Sprintf("A%d", i))
	}
	for i := 0; i < cpgCells; i++ {
		cols = append(cols, fmt.Sprintf("V%d", i))
	}
	for i := 0; i < 4; i++ {
		cols = append(cols, fmt.Sprintf("M%d", i))
	}
	return cols
}

// AddToLoop implements framework.LoopAdder.
func (w *WalkController) AddToLoop(l *fx.Loop) {
	l.At(fx.StageSense, w)
	l.At(fx.StageControl, w)
	l.At(fx.StageActuate, w)
	if w.Recorder != nil {
		l.At(fx.StagePost, w)
	}
}

// Control implements framework.Controller for every stage it is
// registered at.
func (w *WalkController) Control(cc fx.ControlContext) error {
	switch cc.Stage() {
	case fx.StageSense:
		smp, err := w.Session.ReadLatest()
		if err != nil {
			return err
		}
		if smp != nil {
			w.pos = smp.ADC
			w.have = true
		}
	case fx.StageControl:
		if !w.have {
			return nil
		}
		dtMs := float32(cc.Dt()) / float32(time.Millisecond)
		w.out = w.CPG.Step(dtMs, w.pos)
	case fx.StageActuate:
		if !w.have {
			return nil
		}
		return w.Session.WriteCommand(drive.Command{Duty: w.out})
	case fx.StagePost:
		if !w.have {
			return nil
		}
		if w.start.IsZero() {
			w.start = cc.Time()
		}
		vals := make([]float64, 0, 4+cpgCells+4)
		for _, p := range w.pos {
			vals = append(vals, float64(p))
		}
		for _, v := range w.CPG.Net.V {
			vals = append(vals, float64(v))
		}
		for _, m := range w.CPG.Muscles() {
			vals = append(vals, float64(m))
		}
		return w.Recorder.Append(cc.Time().Sub(w.start).Seconds(), vals)
	}
	return nil
}
