package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter. Reads block until data
// is queued with AddReadData or the port is closed. When Respond is set it
// is called with every write and whatever it returns is queued for reading,
// which lets a test script a controller.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error

	// ShortWrites makes Write report one byte fewer than it was given.
	ShortWrites bool

	// Respond produces the controller's reply to a write.
	Respond func(written []byte) []byte

	Closed     bool
	WriteCalls int

	readCond *sync.Cond
}

func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// NewScriptedPort returns a port that answers every newline-terminated
// write with "ok" and ignores realtime bytes.
func NewScriptedPort() *TestableSerialPort {
	p := NewTestableSerialPort()
	p.Respond = func(written []byte) []byte {
		if bytes.HasSuffix(written, []byte("\n")) {
			return []byte("ok\r\n")
		}
		return nil
	}
	return p
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.Closed && t.ReadBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, ErrPortClosed
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, ErrPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, _ := t.WriteBuffer.Write(p)
	if t.Respond != nil {
		if reply := t.Respond(bytes.Clone(p)); len(reply) > 0 {
			t.ReadBuffer.Write(reply)
			t.readCond.Broadcast()
		}
	}
	if t.ShortWrites && n > 0 {
		n--
	}
	return n, nil
}

// Close wakes any blocked reader.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues data for Read.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// Written returns a copy of everything written so far.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}

// MockSerialPortFactory records Open calls and returns a fixed port.
type MockSerialPortFactory struct {
	mu sync.Mutex

	Port  SerialPorter
	Error error

	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path    string
	Options PortOptions
}

func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

func (f *MockSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Options: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
