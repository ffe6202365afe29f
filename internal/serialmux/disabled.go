package serialmux

import (
	"context"
	"net/http"
	"sync"

	"github.com/banshee-data/pointillist/internal/monitoring"
)

// DisabledSerialMux stands in for the controller when no hardware is
// attached (--debug). Writes are logged instead of sent and, unless
// Silent is set, every line is acknowledged with "ok" and status queries
// report an idle machine at the origin.
type DisabledSerialMux struct {
	// Silent suppresses the automatic acknowledgements.
	Silent bool

	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	sent        []string
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, SubscriberBuffer)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// Closed channel so readers never block after shutdown.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledSerialMux) SendCommand(command string) error {
	monitoring.Logf("[debug] would send: %s", command)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, command)
	if !d.Silent {
		d.reply("ok")
	}
	return nil
}

// idleStatus answers status queries.
const idleStatus = "<Idle|MPos:0.000,0.000,0.000|FS:0,0>"

func (d *DisabledSerialMux) reply(line string) {
	for _, ch := range d.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (d *DisabledSerialMux) SendRealtime(b byte) error {
	monitoring.Logf("[debug] would send realtime byte %q", b)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, string([]byte{b}))
	if b == StatusQuery && !d.Silent {
		d.reply(idleStatus)
	}
	return nil
}

// Sent returns everything written so far, one entry per call.
func (d *DisabledSerialMux) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) Initialize() error {
	monitoring.Logf("[debug] serial port disabled")
	return nil
}

// AttachAdminRoutes serves the same console as a real port; commands are
// logged.
func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, d)
}
