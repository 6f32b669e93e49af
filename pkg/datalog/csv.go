package datalog

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CSV writes one header row and one data row per tick. The format is
// what the analysis notebooks already expect: a "t" column followed by
// the declared variables.
type CSV struct {
	f *os.File
	w *bufio.Writer
}

// NewCSV creates a CSV recorder writing to path.
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CSV{f: f, w: bufio.NewWriter(f)}, nil
}

// Begin implements Recorder.
func (c *CSV) Begin(columns []string) error {
	_, err := fmt.Fprintf(c.w, "t,%s\n", strings.Join(columns, ","))
	return err
}

// Append implements Recorder.
func (c *CSV) Append(t float64, values []float64) error {
	if _, err := c.w.WriteString(strconv.FormatFloat(t, 'g', -1, 64)); err != nil {
		return err
	}
	for _, v := range values {
		if err := c.w.WriteByte(','); err != nil {
			return err
		}
		if _, err := c.w.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return c.w.WriteByte('\n')
}

// Close implements Recorder. Idempotent.
func (c *CSV) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.w.Flush()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	c.f = nil
	return err
}
