package grbl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pointillist/internal/serialmux"
)

// Status is a parsed "<State|MPos:x,y,z|...>" report.
type Status struct {
	State string     `json:"state"`
	MPos  [3]float64 `json:"mpos"`
	Raw   string     `json:"raw"`
}

// ParseStatus reads the machine state and position from a status report.
func ParseStatus(line string) (Status, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "<") || !strings.HasSuffix(line, ">") {
		return Status{}, fmt.Errorf("not a status report: %q", line)
	}
	fields := strings.Split(line[1:len(line)-1], "|")
	st := Status{State: fields[0], Raw: line}
	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(f, ":")
		if !ok || (key != "MPos" && key != "WPos") {
			continue
		}
		parts := strings.Split(val, ",")
		for i := 0; i < len(parts) && i < 3; i++ {
			v, err := strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return Status{}, fmt.Errorf("bad position in %q: %w", line, err)
			}
			st.MPos[i] = v
		}
	}
	return st, nil
}

// Status asks for a status report. It does not take the line lock, so it
// can be used while a program is running.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	id, ch := c.mux.Subscribe()
	defer c.mux.Unsubscribe(id)

	if err := c.realtime(serialmux.StatusQuery); err != nil {
		return Status{}, err
	}
	timer := c.Clock.NewTimer(c.timeout())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Status{}, ctx.Err()
		case <-timer.C():
			return Status{}, fmt.Errorf("%w: no status report within %v", ErrTransport, c.timeout())
		case line, ok := <-ch:
			if !ok {
				return Status{}, fmt.Errorf("%w: port closed while waiting for status", ErrTransport)
			}
			if kind, _ := serialmux.ClassifyResponse(line); kind == serialmux.ResponseStatus {
				return ParseStatus(line)
			}
		}
	}
}
