package framework

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stageRecorder struct {
	mu     sync.Mutex
	stages []Stage
}

func (r *stageRecorder) Control(cc ControlContext) error {
	r.mu.Lock()
	r.stages = append(r.stages, cc.Stage())
	r.mu.Unlock()
	return nil
}

func (r *stageRecorder) recorded() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Stage(nil), r.stages...)
}

func TestLoopStageOrder(t *testing.T) {
	rec := &stageRecorder{}
	l := NewLoop()
	l.Interval = time.Millisecond
	l.At(StageSense, rec)
	l.At(StageControl, rec)
	l.At(StageActuate, rec)
	l.At(StagePost, rec)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(rec.recorded()) < 3*NumStages {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	require.Equal(t, context.Canceled, l.Run(ctx))

	stages := rec.recorded()
	require.True(t, len(stages) >= 3*NumStages)
	for i, stage := range stages[:3*NumStages] {
		require.Equal(t, Stage(i%NumStages), stage,
			"stages must run in declaration order every iteration")
	}
}

type addedController struct {
	stage Stage
}

func (a *addedController) AddToLoop(l *Loop) {
	l.At(a.stage, ControlFunc(func(ControlContext) error { return nil }))
}

func TestLoopAdd(t *testing.T) {
	l := NewLoop()
	l.Add(&addedController{stage: StageSense}, &addedController{stage: StageActuate})
	require.Len(t, l.stages[StageSense], 1)
	require.Len(t, l.stages[StageActuate], 1)
	require.Len(t, l.stages[StageControl], 0)
}

func TestLoopRunsRunnables(t *testing.T) {
	started := make(chan struct{})
	l := NewLoop()
	l.Interval = time.Millisecond
	l.AddRunnable(RunnableFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("runnable never started")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestControlContext(t *testing.T) {
	var got struct {
		dt    time.Duration
		ctx   context.Context
		valid bool
	}
	l := NewLoop()
	l.Interval = time.Millisecond
	l.At(StageSense, ControlFunc(func(cc ControlContext) error {
		got.dt = cc.Dt()
		got.ctx = cc.Context()
		got.valid = !cc.Time().IsZero()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	l.Run(ctx)

	require.Equal(t, time.Millisecond, got.dt)
	require.Equal(t, ctx, got.ctx)
	require.True(t, got.valid)
}
