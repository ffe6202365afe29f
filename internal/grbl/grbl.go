// Package grbl talks to a GRBL 1.1 motion controller over a shared serial
// connection. Lines are sent one at a time and each waits for the
// controller's acknowledgement; realtime commands bypass that queue.
package grbl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/monitoring"
	"github.com/banshee-data/pointillist/internal/serialmux"
	"github.com/banshee-data/pointillist/internal/timeutil"
)

// ErrTransport wraps every failure to deliver a line or hear back about it.
var ErrTransport = errors.New("controller transport failure")

// ErrLineTooLong is returned for a line the controller would overflow on.
var ErrLineTooLong = errors.New("line too long")

// DefaultTimeout bounds the wait for an acknowledgement.
const DefaultTimeout = 5 * time.Second

// ResetDelay is how long the controller needs after a soft reset before it
// accepts commands again.
const ResetDelay = time.Second

// Response is the controller's answer to one line.
type Response struct {
	Command string `json:"command"`
	// Messages holds any non-terminal lines printed before the
	// acknowledgement, such as the output of "$$".
	Messages []string `json:"messages,omitempty"`
}

// ResponseError reports a line the controller rejected or that raised an
// alarm.
type ResponseError struct {
	Command string `json:"command"`
	Kind    serialmux.ResponseKind
	Code    int
}

func (e *ResponseError) Error() string {
	prefix, desc := "error", errorCodes[e.Code]
	if e.Kind == serialmux.ResponseAlarm {
		prefix, desc = "ALARM", alarmCodes[e.Code]
	}
	msg := fmt.Sprintf("controller answered %q with %s:%d", e.Command, prefix, e.Code)
	if desc != "" {
		msg += " (" + desc + ")"
	}
	return msg
}

// Controller serializes access to one controller.
type Controller struct {
	mux serialmux.SerialMuxInterface

	// Timeout bounds each Send. Zero means DefaultTimeout.
	Timeout time.Duration
	Clock   timeutil.Clock

	mu sync.Mutex
}

// NewController returns a client for the controller behind mux. The caller
// runs mux.Monitor.
func NewController(mux serialmux.SerialMuxInterface) *Controller {
	return &Controller{mux: mux, Timeout: DefaultTimeout, Clock: timeutil.RealClock{}}
}

func (c *Controller) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Send writes one line and waits for "ok". Comments are stripped; sending a
// line with nothing left is a no-op. A line still longer than MaxLineLength
// is refused with ErrLineTooLong. A rejection is returned as a
// *ResponseError; anything else that goes wrong wraps ErrTransport.
func (c *Controller) Send(ctx context.Context, line string) (Response, error) {
	line = gcode.StripComment(line)
	resp := Response{Command: line}
	if line == "" {
		return resp, nil
	}
	if len(line) > MaxLineLength {
		return resp, fmt.Errorf("%w: %d characters, limit %d", ErrLineTooLong, len(line), MaxLineLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, ch := c.mux.Subscribe()
	defer c.mux.Unsubscribe(id)

	if err := c.mux.SendCommand(line); err != nil {
		return resp, fmt.Errorf("%w: sending %q: %w", ErrTransport, line, err)
	}

	timer := c.Clock.NewTimer(c.timeout())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-timer.C():
			return resp, fmt.Errorf("%w: no response to %q within %v", ErrTransport, line, c.timeout())
		case reply, ok := <-ch:
			if !ok {
				return resp, fmt.Errorf("%w: port closed while waiting for %q", ErrTransport, line)
			}
			kind, code := serialmux.ClassifyResponse(reply)
			switch kind {
			case serialmux.ResponseOK:
				return resp, nil
			case serialmux.ResponseError, serialmux.ResponseAlarm:
				return resp, &ResponseError{Command: line, Kind: kind, Code: code}
			default:
				resp.Messages = append(resp.Messages, reply)
			}
		}
	}
}

// Resume releases a feed hold or an M0 program pause.
func (c *Controller) Resume() error { return c.realtime(serialmux.CycleStart) }

// FeedHold decelerates to a stop without losing position.
func (c *Controller) FeedHold() error { return c.realtime(serialmux.FeedHold) }

func (c *Controller) realtime(b byte) error {
	if err := c.mux.SendRealtime(b); err != nil {
		return fmt.Errorf("%w: realtime %q: %w", ErrTransport, b, err)
	}
	return nil
}

// Home runs the homing cycle.
func (c *Controller) Home(ctx context.Context) error {
	_, err := c.Send(ctx, "$H")
	return err
}

// Unlock clears an alarm lock.
func (c *Controller) Unlock(ctx context.Context) error {
	_, err := c.Send(ctx, "$X")
	return err
}

// ZeroAll makes the current position the work origin on every axis.
func (c *Controller) ZeroAll(ctx context.Context) error {
	_, err := c.Send(ctx, "G10 L20 P1 X0 Y0 Z0")
	return err
}

// SoftReset aborts motion, waits for the controller to restart and clears
// the resulting alarm lock.
func (c *Controller) SoftReset(ctx context.Context) error {
	if err := c.realtime(serialmux.SoftReset); err != nil {
		return err
	}
	c.Clock.Sleep(ResetDelay)
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Unlock(ctx)
}

// Setup writes each setting in turn. Rejected settings are logged and
// reported together; a transport failure stops immediately.
func (c *Controller) Setup(ctx context.Context, settings []string) error {
	var rejected []error
	for _, s := range settings {
		monitoring.Logf("configuring controller: %s", s)
		_, err := c.Send(ctx, s)
		var re *ResponseError
		switch {
		case err == nil:
		case errors.As(err, &re):
			monitoring.Logf("controller rejected %s: %v", s, err)
			rejected = append(rejected, err)
		default:
			return err
		}
	}
	return errors.Join(rejected...)
}
