package framework

import (
	"context"
	"log"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is used when Loop.Interval is unset.
const DefaultInterval = 100 * time.Millisecond

// Loop executes controllers stage by stage at a fixed period.
// Sensing, control and actuation run in a deterministic order
// within each iteration so that a controller always sees the
// freshest sensor values and its output is applied in the same
// iteration it was computed.
type Loop struct {
	Interval time.Duration

	stages  [NumStages][]Controller
	runners []Runnable
}

type loopIteration struct {
	ctx   context.Context
	time  time.Time
	dt    time.Duration
	stage Stage
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) Dt() time.Duration        { return t.dt }
func (t *loopIteration) Stage() Stage             { return t.stage }

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// At registers controllers at the specified stage.
func (l *Loop) At(stage Stage, ctls ...Controller) *Loop {
	l.stages[stage] = append(l.stages[stage], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementations.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.runIteration(ctx, now, interval)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := l.Run(context.TODO()); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

func (l *Loop) runIteration(ctx context.Context, now time.Time, dt time.Duration) {
	iter := &loopIteration{ctx: ctx, time: now, dt: dt}
	for i := 0; i < NumStages; i++ {
		iter.stage = Stage(i)
		for _, ctl := range l.stages[i] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error: %v", err)
			}
		}
	}
}
