package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens hardware ports with go.bug.st/serial.
var RealPortFactory SerialPortFactory = SerialPortOpener(func(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
})

// NewRealSerialMux opens the port at path and wraps it.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port), nil
}

// Open uses factory to open path and wraps the result. Tests pass a
// MockSerialPortFactory.
func Open(factory SerialPortFactory, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	if _, err := opts.Normalize(); err != nil {
		return nil, err
	}
	port, err := factory.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return NewSerialMux(port), nil
}

// ListPorts returns the serial devices present on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
