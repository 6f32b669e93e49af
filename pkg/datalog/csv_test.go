package datalog

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	rec, err := New("csv", path)
	require.NoError(t, err)

	require.NoError(t, rec.Begin([]string{"A0", "V0"}))
	require.NoError(t, rec.Append(0, []float64{0.5, -60}))
	require.NoError(t, rec.Append(0.0005, []float64{0.25, -52.125}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close(), "close is idempotent")

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "t,A0,V0\n0,0.5,-60\n0.0005,0.25,-52.125\n", string(data))
}

func TestDiscard(t *testing.T) {
	rec, err := New("", "")
	require.NoError(t, err)
	require.NoError(t, rec.Begin(nil))
	require.NoError(t, rec.Append(0, nil))
	require.NoError(t, rec.Close())

	_, err = New("parquet", "x")
	require.Error(t, err)
}

func TestCSVCreateFailure(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "run.csv"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}
