package hsr

import (
	"errors"
	"sync"
)

// DefaultDevicePath is the memory device the PRU shared RAM is mapped
// through.
const DefaultDevicePath = "/dev/mem"

// ErrBusy indicates the device is already exclusively owned.
var ErrBusy = errors.New("device busy")

// Process-local registry of exclusively owned device paths. The
// advisory lock taken on the open file extends the exclusivity to
// other processes.
var (
	devicesLock sync.Mutex
	devices     = map[string]bool{}
)

// claimDevice registers exclusive ownership of path.
func claimDevice(path string) error {
	devicesLock.Lock()
	defer devicesLock.Unlock()
	if devices[path] {
		return ErrBusy
	}
	devices[path] = true
	return nil
}

// releaseDevice gives ownership of path back.
func releaseDevice(path string) {
	devicesLock.Lock()
	delete(devices, path)
	devicesLock.Unlock()
}
