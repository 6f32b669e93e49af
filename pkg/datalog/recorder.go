// Package datalog records per-tick variables from a run for offline
// analysis.
package datalog

import "fmt"

// Recorder receives one row of values per control tick.
type Recorder interface {
	// Begin declares the value columns. The time column is implicit.
	Begin(columns []string) error
	// Append records one row at time t (seconds since run start).
	Append(t float64, values []float64) error
	Close() error
}

// New creates a recorder. Supported kinds: "" (discard), "csv",
// "sqlite".
func New(kind, path string) (Recorder, error) {
	switch kind {
	case "":
		return discard{}, nil
	case "csv":
		return NewCSV(path)
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported datalog kind: %s", kind)
	}
}

type discard struct{}

func (discard) Begin([]string) error           { return nil }
func (discard) Append(float64, []float64) error { return nil }
func (discard) Close() error                    { return nil }
