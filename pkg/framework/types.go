package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller defines one piece of controlling logic executed
// every loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext provides the context of the current iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is the start time of this iteration.
	Time() time.Time
	// Dt is the nominal duration between iterations.
	Dt() time.Duration
	// Stage gets the stage being executed.
	Stage() Stage
}

// Stage identifies a phase within one loop iteration.
// Stages always execute in declaration order.
type Stage int

// Loop stages.
const (
	StageSense Stage = iota
	StageControl
	StageActuate
	StagePost

	NumStages int = iota
)

// LoopAdder provides specific logic to add components to a loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}
