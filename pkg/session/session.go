// Package session exposes one open hardware session with typed
// read/write operations and an explicit lifecycle.
package session

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/atspaeth/Neurobot/pkg/drive"
	"github.com/atspaeth/Neurobot/pkg/exchange"
	"github.com/atspaeth/Neurobot/pkg/hsr"
)

// DefaultStopTimeout bounds the wait for poll-loop quiescence.
const DefaultStopTimeout = time.Second

// Session owns one exclusive hardware mapping and runs the poll loop
// while Running. All data exchange flows through the sample/command
// slots; lifecycle calls are the only state mutations.
//
// Samples have peek-latest semantics: ReadLatest never consumes, and a
// repeated read between coprocessor updates returns the same sample.
type Session struct {
	// StopTimeout bounds Stop's wait for the poll loop to quiesce.
	StopTimeout time.Duration

	mu     sync.Mutex
	state  int32 // atomic; read concurrently for diagnostics
	driver *drive.Driver
	device io.Closer // nil when the region is externally owned (sim)

	samples  exchange.SampleSlot
	commands exchange.CommandSlot

	stopCh chan struct{}
	doneCh chan struct{}

	// faultMu guards fault and watcher. The poll loop takes it, so it
	// must never nest inside mu waiting on the loop.
	faultMu sync.Mutex
	fault   error
	watcher Watcher
}

// Open maps the device at path and returns a session in Opened state.
// Opening a device that is already mapped, by this process or another,
// fails with hsr.ErrBusy.
func Open(path string) (*Session, error) {
	dev, err := hsr.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	s := newSession(dev.Region, dev, dev)
	glog.V(1).Infof("session opened on %s", path)
	return s, nil
}

// OpenSim creates a session against a simulated coprocessor. The
// returned Sim must be run (framework.Runner works) for samples to
// flow.
func OpenSim(period time.Duration) (*Session, *hsr.Sim) {
	sim := hsr.NewSim(period)
	return newSession(sim.Region, nil, nil), sim
}

func newSession(region *hsr.Region, fw drive.Firmware, device io.Closer) *Session {
	s := &Session{
		StopTimeout: DefaultStopTimeout,
		driver:      drive.New(region, fw),
		device:      device,
	}
	s.setState(Opened)
	return s
}

// Watch installs a state transition observer.
func (s *Session) Watch(w Watcher) {
	s.faultMu.Lock()
	s.watcher = w
	s.faultMu.Unlock()
}

// State returns the current state. Safe to call concurrently with any
// operation.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(to State) {
	from := State(atomic.SwapInt32(&s.state, int32(to)))
	if from == to {
		return
	}
	glog.V(2).Infof("session %s -> %s", from, to)
	s.faultMu.Lock()
	w := s.watcher
	s.faultMu.Unlock()
	if w != nil {
		w(from, to)
	}
}

// Config returns the active channel configuration.
func (s *Session) Config() drive.ChannelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Config()
}

// Configure validates and applies a channel configuration. Valid from
// Opened or Stopped.
func (s *Session) Configure(conf drive.ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st := s.State(); st {
	case Opened, Stopped:
	case Faulted:
		return ErrFaulted
	default:
		return &InvalidStateError{Op: "configure", State: st}
	}
	if err := s.driver.Configure(conf); err != nil {
		return err
	}
	s.setState(Configured)
	return nil
}

// Start arms the hardware and spawns the poll loop. Valid from
// Configured.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st := s.State(); st {
	case Configured:
	case Faulted:
		return ErrFaulted
	default:
		return &InvalidStateError{Op: "start", State: st}
	}
	s.samples.Reset()
	s.commands.Reset()
	if err := s.driver.Start(); err != nil {
		return err
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.pollLoop(s.driver.Config().Period, s.stopCh, s.doneCh)
	s.setState(Running)
	return nil
}

// ReadLatest returns the most recent sample, or nil before the first
// one arrives. Valid from Running.
func (s *Session) ReadLatest() (*drive.Sample, error) {
	switch st := s.State(); st {
	case Running:
	case Faulted:
		return nil, s.faultErr()
	default:
		return nil, &InvalidStateError{Op: "read", State: st}
	}
	smp, _ := s.samples.Peek()
	return smp, nil
}

// SampleGeneration counts samples delivered so far; callers use it to
// detect arrival of a fresh sample without consuming anything.
func (s *Session) SampleGeneration() uint64 {
	return s.samples.Generation()
}

// WriteCommand stores actuator setpoints for the poll loop to apply.
// An unconsumed previous command is superseded. Valid from Running.
func (s *Session) WriteCommand(cmd drive.Command) error {
	switch st := s.State(); st {
	case Running:
	case Faulted:
		return s.faultErr()
	default:
		return &InvalidStateError{Op: "write", State: st}
	}
	s.commands.Put(cmd)
	return nil
}

// Stop disarms the hardware after the poll loop acknowledges
// quiescence. Idempotent from Stopped, Configured and Opened.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st := s.State(); st {
	case Running:
	case Stopped, Configured, Opened:
		return nil
	case Faulted:
		return ErrFaulted
	default:
		return &InvalidStateError{Op: "stop", State: st}
	}
	if err := s.quiesce(); err != nil {
		// The loop may still touch the region; do not disarm under it.
		s.faultMu.Lock()
		s.fault = err
		s.faultMu.Unlock()
		s.setState(Faulted)
		return err
	}
	s.driver.Stop()
	s.setState(Stopped)
	return nil
}

// Close force-tears the session down from any state. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == Closed {
		return nil
	}
	if err := s.quiesce(); err != nil {
		// Leak the mapping rather than unmap under a live poll loop.
		glog.Errorf("close: poll loop did not quiesce, leaking mapping")
		s.setState(Closed)
		return err
	}
	s.driver.Close()
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			glog.Warningf("device close: %v", err)
		}
	}
	s.setState(Closed)
	glog.V(1).Info("session closed")
	return nil
}

// quiesce signals the poll loop and waits for its acknowledgment.
// Caller holds mu.
func (s *Session) quiesce() error {
	if s.stopCh == nil {
		return nil
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	timeout := s.StopTimeout
	if timeout == 0 {
		timeout = DefaultStopTimeout
	}
	select {
	case <-s.doneCh:
		s.stopCh, s.doneCh = nil, nil
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (s *Session) faultErr() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if s.fault != nil {
		return s.fault
	}
	return ErrFaulted
}

// latchFault is called from the poll loop. It deliberately avoids mu:
// Stop may hold mu while waiting for the loop to quiesce.
func (s *Session) latchFault(err error) {
	s.faultMu.Lock()
	if s.fault == nil {
		s.fault = err
	}
	s.faultMu.Unlock()
	s.setState(Faulted)
	glog.Errorf("session fault: %v", err)
}

// pollLoop runs on its own goroutine for the Running lifetime. It
// performs only bounded, non-blocking work per tick so it can always
// observe a stop request promptly.
func (s *Session) pollLoop(period time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	watchdog := 100 * period
	if watchdog < 250*time.Millisecond {
		watchdog = 250 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	lastProgress := time.Now()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if smp := s.driver.PollOnce(); smp != nil {
				s.samples.Put(smp)
				lastProgress = time.Now()
			}
			if cmd, ok := s.commands.Take(); ok {
				if err := s.driver.PushCommand(cmd); err != nil {
					glog.Warningf("push command: %v", err)
				}
			}
			if time.Since(lastProgress) > watchdog {
				// Generation counter stuck: the coprocessor stopped
				// publishing. Surfaced on the caller's next operation.
				s.latchFault(ErrFaulted)
				return
			}
		}
	}
}
