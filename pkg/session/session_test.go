package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atspaeth/Neurobot/pkg/drive"
)

// simSession opens a session against a running simulated coprocessor
// and tears both down when the test finishes.
func simSession(t *testing.T) *Session {
	sess, sim := OpenSim(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go sim.Run(ctx)
	t.Cleanup(func() {
		sess.Close()
		cancel()
	})
	return sess
}

func testConfig() drive.ChannelConfig {
	conf := drive.DefaultConfig()
	conf.Period = time.Millisecond
	return conf
}

// waitSample polls until the first sample arrives.
func waitSample(t *testing.T, sess *Session) *drive.Sample {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		smp, err := sess.ReadLatest()
		require.NoError(t, err)
		if smp != nil {
			return smp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no sample arrived")
	return nil
}

func TestStateString(t *testing.T) {
	require.Equal(t, "opened", Opened.String())
	require.Equal(t, "faulted", Faulted.String())
	require.Equal(t, "state(42)", State(42).String())
	require.Equal(t, "start invalid in state opened",
		(&InvalidStateError{Op: "start", State: Opened}).Error())
}

func TestInvalidTransitions(t *testing.T) {
	sess := simSession(t)
	require.Equal(t, Opened, sess.State())

	// Nothing but configure is valid in Opened.
	requireInvalid(t, sess.Start())
	_, err := sess.ReadLatest()
	requireInvalid(t, err)
	requireInvalid(t, sess.WriteCommand(drive.Command{}))
	require.NoError(t, sess.Stop(), "stop before start is a no-op")
	require.Equal(t, Opened, sess.State())

	require.NoError(t, sess.Configure(testConfig()))
	require.Equal(t, Configured, sess.State())
	requireInvalid(t, sess.Configure(testConfig()))
	require.Equal(t, Configured, sess.State(), "rejected configure leaves the state alone")

	require.NoError(t, sess.Start())
	require.Equal(t, Running, sess.State())
	requireInvalid(t, sess.Start())
	requireInvalid(t, sess.Configure(testConfig()))

	require.NoError(t, sess.Stop())
	require.Equal(t, Stopped, sess.State())
	require.NoError(t, sess.Stop(), "stop is idempotent")
	_, err = sess.ReadLatest()
	requireInvalid(t, err)

	// Stopped sessions accept a new configure/start cycle.
	require.NoError(t, sess.Configure(testConfig()))
	require.NoError(t, sess.Start())
	require.NoError(t, sess.Stop())

	require.NoError(t, sess.Close())
	require.Equal(t, Closed, sess.State())
	require.NoError(t, sess.Close(), "close is idempotent")
	requireInvalid(t, sess.Configure(testConfig()))
}

func requireInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	_, ok := err.(*InvalidStateError)
	require.True(t, ok, "want InvalidStateError, got %v", err)
}

func TestConfigureRejectsBadConfig(t *testing.T) {
	sess := simSession(t)
	conf := testConfig()
	conf.PWMMax = 200
	err := sess.Configure(conf)
	require.Error(t, err)
	_, ok := err.(*drive.ConfigError)
	require.True(t, ok)
	require.Equal(t, Opened, sess.State(), "failed configure leaves the state alone")
}

func TestEndToEnd(t *testing.T) {
	sess := simSession(t)
	conf := testConfig()
	conf.PWMMax = 100
	require.NoError(t, sess.Configure(conf))
	require.NoError(t, sess.Start())

	smp := waitSample(t, sess)
	require.InDelta(t, 0.5, float64(smp.ADC[0]), 0.01, "actuators start centered")

	// Repeated reads between updates return the same sample.
	again, err := sess.ReadLatest()
	require.NoError(t, err)
	require.True(t, again.Gen >= smp.Gen)

	// Drive actuator 0 up and watch the position follow.
	require.NoError(t, sess.WriteCommand(drive.Command{Duty: [4]float32{1, 0, 0, 0}}))
	deadline := time.Now().Add(5 * time.Second)
	for {
		smp, err = sess.ReadLatest()
		require.NoError(t, err)
		if smp.ADC[0] > 0.6 {
			break
		}
		require.True(t, time.Now().Before(deadline), "actuator did not move")
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, sess.SampleGeneration() > 0)

	require.NoError(t, sess.Stop())

	// Stopped sessions restart cleanly and deliver fresh samples.
	require.NoError(t, sess.Configure(conf))
	require.NoError(t, sess.Start())
	waitSample(t, sess)
	require.NoError(t, sess.Stop())
}

func TestWatcher(t *testing.T) {
	sess := simSession(t)

	var mu sync.Mutex
	var transitions []State
	sess.Watch(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	})

	require.NoError(t, sess.Configure(testConfig()))
	require.NoError(t, sess.Start())
	require.NoError(t, sess.Stop())
	require.NoError(t, sess.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{Configured, Running, Stopped, Closed}, transitions)
}

func TestWatchdogFault(t *testing.T) {
	// The sim is never run, so the generation counter stays stuck and
	// the poll loop watchdog latches a fault.
	sess, _ := OpenSim(time.Millisecond)
	defer sess.Close()
	require.NoError(t, sess.Configure(testConfig()))
	require.NoError(t, sess.Start())

	deadline := time.Now().Add(5 * time.Second)
	for sess.State() != Faulted {
		require.True(t, time.Now().Before(deadline), "watchdog never fired")
		time.Sleep(20 * time.Millisecond)
	}

	_, err := sess.ReadLatest()
	require.Equal(t, ErrFaulted, err)
	require.Equal(t, ErrFaulted, sess.WriteCommand(drive.Command{}))
	require.Equal(t, ErrFaulted, sess.Stop())
	require.Equal(t, ErrFaulted, sess.Configure(testConfig()))

	// Close always works.
	require.NoError(t, sess.Close())
	require.Equal(t, Closed, sess.State())
}
