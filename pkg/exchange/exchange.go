// Package exchange decouples the poll loop's cadence from the
// caller's with a pair of single-value slots.
package exchange

import (
	"sync"

	"github.com/atspaeth/Neurobot/pkg/drive"
)

// Only the most recent value matters on either side: a slow consumer
// must never back-pressure the hardware-facing producer, and a burst
// of commands written before the next poll collapses to the last one.
// Each slot therefore holds at most one value, and writing overwrites
// whatever was there. Every operation is a short mutex-guarded copy,
// so neither side can stall the other.

// SampleSlot holds the most recently produced sample.
// Single producer (the poll loop), single consumer (the session).
type SampleSlot struct {
	mu     sync.Mutex
	sample *drive.Sample
	gen    uint64
}

// Put publishes a sample, superseding any unconsumed one. It always
// succeeds.
func (s *SampleSlot) Put(sample *drive.Sample) {
	s.mu.Lock()
	s.sample = sample
	s.gen++
	s.mu.Unlock()
}

// Peek returns the latest sample without consuming it, and the slot
// generation it was published at. Returns nil before the first Put.
func (s *SampleSlot) Peek() (*drive.Sample, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.gen
}

// Generation returns the number of samples published so far.
func (s *SampleSlot) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Reset clears the slot. Called between runs so a stale sample from a
// previous run is never delivered.
func (s *SampleSlot) Reset() {
	s.mu.Lock()
	s.sample = nil
	s.mu.Unlock()
}

// CommandSlot holds the most recently written command.
// Single producer (the session), single consumer (the poll loop).
type CommandSlot struct {
	mu      sync.Mutex
	cmd     drive.Command
	pending bool
	gen     uint64
}

// Put stores a command, superseding any unconsumed one
// (last-write-wins). It always succeeds.
func (s *CommandSlot) Put(cmd drive.Command) {
	s.mu.Lock()
	s.cmd = cmd
	s.pending = true
	s.gen++
	s.mu.Unlock()
}

// Take consumes the pending command, if any. A command is taken at
// most once.
func (s *CommandSlot) Take() (drive.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return drive.Command{}, false
	}
	s.pending = false
	return s.cmd, true
}

// Generation returns the number of commands written so far.
func (s *CommandSlot) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Reset drops any pending command.
func (s *CommandSlot) Reset() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}
