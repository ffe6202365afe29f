package serialmux

import "io"

// SerialPorter is the minimal interface needed for a serial port, so the
// mux can be driven by an in-memory port in tests.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// GRBL realtime commands.
const (
	CycleStart  byte = '~'
	FeedHold    byte = '!'
	StatusQuery byte = '?'
	SoftReset   byte = 0x18
)

// SerialPortFactory opens ports by path.
type SerialPortFactory interface {
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// SerialPortOpener adapts a function to SerialPortFactory.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)

func (f SerialPortOpener) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}
