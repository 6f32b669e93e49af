//go:build !linux

package hsr

import "errors"

var errUnsupported = errors.New("pru devices are only supported on linux")

// Device is only functional on Linux, where the PRU shared RAM can be
// mapped through a memory device.
type Device struct {
	Region *Region
}

// OpenDevice fails on platforms without PRU support.
func OpenDevice(path string) (*Device, error) {
	return nil, errUnsupported
}

// Close implements io.Closer.
func (d *Device) Close() error { return nil }

// LoadFirmware fails on platforms without PRU support.
func (d *Device) LoadFirmware(name string) error { return errUnsupported }

// StartFirmware fails on platforms without PRU support.
func (d *Device) StartFirmware() error { return errUnsupported }

// StopFirmware fails on platforms without PRU support.
func (d *Device) StopFirmware() error { return errUnsupported }
