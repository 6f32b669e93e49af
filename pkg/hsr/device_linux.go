//go:build linux

package hsr

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// AM335x PRU subsystem physical layout.
const (
	am3xxAddress   = 0x4A300000
	am3xxSize      = 0x80000
	am3xxSharedRam = 0x00010000
	sharedRamSize  = 12 * 1024
)

const rprocBase = "/sys/class/remoteproc/remoteproc%d/%s"

// Device is an exclusively owned mapping of the PRU shared RAM.
// At most one Device per path may exist in a process, and an advisory
// lock keeps other processes out while it is open.
type Device struct {
	Region *Region

	path      string
	file      *os.File
	mem       []byte
	rprocUnit int
}

// OpenDevice maps the PRU shared RAM through the named memory device
// and takes exclusive ownership of it.
func OpenDevice(path string) (*Device, error) {
	if path == "" {
		path = DefaultDevicePath
	}
	if err := claimDevice(path); err != nil {
		return nil, err
	}
	d, err := openDevice(path)
	if err != nil {
		releaseDevice(path)
		return nil, err
	}
	return d, nil
}

func openDevice(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0660)
	if err != nil {
		return nil, err
	}
	if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrBusy
		}
		return nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), am3xxAddress, am3xxSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	region, err := NewRegion(mem[am3xxSharedRam : am3xxSharedRam+sharedRamSize])
	if err != nil {
		unix.Munmap(mem)
		f.Close()
		return nil, err
	}
	return &Device{
		Region:    region,
		path:      path,
		file:      f,
		mem:       mem,
		rprocUnit: 1, // remoteproc1 hosts PRU core 0
	}, nil
}

// Close releases the mapping and the exclusive lock. Idempotent.
func (d *Device) Close() error {
	if d.file == nil {
		return nil
	}
	unix.Munmap(d.mem)
	err := d.file.Close()
	d.file, d.mem = nil, nil
	releaseDevice(d.path)
	return err
}

// LoadFirmware writes the firmware name for the PRU core to load.
// The file must reside in /lib/firmware.
func (d *Device) LoadFirmware(name string) error {
	return d.rprocWrite("firmware", name)
}

// StartFirmware arms the PRU core.
func (d *Device) StartFirmware() error {
	return d.rprocWrite("state", "start")
}

// StopFirmware halts the PRU core. Stopping a stopped core is not an
// error.
func (d *Device) StopFirmware() error {
	err := d.rprocWrite("state", "stop")
	if err != nil && errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}

func (d *Device) rprocWrite(name, value string) error {
	f := fmt.Sprintf(rprocBase, d.rprocUnit, name)
	fd, err := os.OpenFile(f, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = fd.WriteString(value)
	return err
}
