// Package hsr defines the shared-memory contract between the host and
// the PRU coprocessor.
package hsr

// The PRU firmware and the host exchange data through a fixed-layout
// block at the start of the AM335x PRU shared RAM. There is no
// mutual-exclusion primitive across the host/coprocessor boundary, so
// each exchange slot carries a generation counter: the writer bumps it
// to an odd value before touching the slot and to the next even value
// after, and the reader re-checks it after copying. A torn or unchanged
// generation yields no frame.
//
// Producer of the sample slot: PRU firmware.
// Producer of the command slot: host driver.
