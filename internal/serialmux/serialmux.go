// Package serialmux shares one serial connection to the motion controller
// between several readers. Every line the controller prints is fanned out
// to all subscribers; writes are serialized.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/pointillist/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// SubscriberBuffer is the number of lines held for a subscriber that is not
// reading. Further lines are dropped for that subscriber only.
const SubscriberBuffer = 64

// WakeSequence is written by Initialize. GRBL prints its banner after the
// blank lines.
const WakeSequence = "\r\n\r\n"

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// SerialMux multiplexes a single port of type T.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface is what the controller client and the HTTP layer need
// from a port. DisabledSerialMux satisfies it for hosts without hardware.
type SerialMuxInterface interface {
	// Subscribe returns a channel that receives every line read from the
	// port. The ID is passed to Unsubscribe.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one newline-terminated line.
	SendCommand(string) error
	// SendRealtime writes a single byte with no line ending. GRBL acts on
	// these immediately, outside its line buffer.
	SendRealtime(byte) error
	// Monitor reads lines until ctx is cancelled or the port fails.
	Monitor(context.Context) error
	Close() error
	Initialize() error
	// AttachAdminRoutes adds a command console and live tail under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps an already opened port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, SubscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.closingMu.Lock()
	closing := s.closing
	s.closingMu.Unlock()
	if closing {
		// Closed channel so readers never block after shutdown.
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize wakes the controller. Any banner it prints arrives through
// Monitor like every other line.
func (s *SerialMux[T]) Initialize() error {
	if err := s.write([]byte(WakeSequence)); err != nil {
		return fmt.Errorf("failed to wake controller: %w", err)
	}
	return nil
}

// SendCommand writes command followed by a newline.
func (s *SerialMux[T]) SendCommand(command string) error {
	command = strings.TrimRight(command, "\r\n") + "\n"
	return s.write([]byte(command))
}

func (s *SerialMux[T]) SendRealtime(b byte) error {
	return s.write([]byte{b})
}

func (s *SerialMux[T]) write(p []byte) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and hands them to subscribers. Trailing
// carriage returns are removed and blank lines are not delivered.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Scan blocks in its own goroutine so cancellation is observed promptly.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.broadcast(line)
		}
	}
}

func (s *SerialMux[T]) broadcast(line string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			monitoring.Logf("serialmux: subscriber %s is full, dropped %q", id, line)
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Close ends every subscription and closes the port.
func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

func attachAdminRoutes(mux *http.ServeMux, s SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a line to the motion controller", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		_, _ = io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		var err error
		if rt, ok := realtimeCommands[command]; ok {
			err = s.SendRealtime(rt)
		} else {
			err = s.SendCommand(command)
		}
		if err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	// Server-sent events, one per line read from the port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		_, _ = w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		_, _ = io.Copy(w, f)
	})
}

// realtimeCommands are typed into the console by name and sent as a single
// byte.
var realtimeCommands = map[string]byte{
	"~":      CycleStart,
	"!":      FeedHold,
	"?":      StatusQuery,
	"ctrl-x": SoftReset,
}
