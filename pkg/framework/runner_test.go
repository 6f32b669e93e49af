package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Aggregate())

	errs.Add(nil, errors.New("first"), nil, errors.New("second"))
	err := errs.Aggregate()
	require.Error(t, err)
	require.Equal(t, "Multiple errors:\nfirst\nsecond", err.Error())
}

func TestRunnerWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)

	r.Go(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Go(NamedRun("boom", RunnableFunc(func(context.Context) error {
		return errors.New("boom")
	})))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Wait()
	require.Error(t, err)
	// context.Canceled is filtered out, only the real failure remains.
	require.Equal(t, "Multiple errors:\nboom", err.Error())
}

func TestRunWithContextCloser(t *testing.T) {
	// The closer unblocks fn when the context is canceled.
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	closed := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := RunWithContextCloser(ctx, closerFunc(func() error {
		closed++
		close(unblock)
		return nil
	}), func() error {
		<-unblock
		return errors.New("listener closed")
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closed, "closer must run exactly once")

	// fn returning on its own also closes.
	closed = 0
	err = RunWithContextCloser(context.Background(), closerFunc(func() error {
		closed++
		return nil
	}), func() error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, closed)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
