package serialmux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/pointillist/internal/monitoring"
)

func TestDisabledSerialMux_AcknowledgesCommands(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.RestoreLogger)

	d := NewDisabledSerialMux()
	_, ch := d.Subscribe()
	if err := d.SendCommand("G90"); err != nil {
		t.Fatal(err)
	}
	if got := recv(t, ch); got != "ok" {
		t.Errorf("reply = %q, want ok", got)
	}
	if err := d.SendRealtime(CycleStart); err != nil {
		t.Fatal(err)
	}
	if got := d.Sent(); len(got) != 2 || got[0] != "G90" || got[1] != "~" {
		t.Errorf("Sent() = %q", got)
	}
}

func TestDisabledSerialMux_Silent(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.RestoreLogger)

	d := NewDisabledSerialMux()
	d.Silent = true
	_, ch := d.Subscribe()
	_ = d.SendCommand("G90")
	select {
	case line := <-ch:
		t.Errorf("silent mux replied %q", line)
	default:
	}
}

func TestDisabledSerialMux_Close(t *testing.T) {
	d := NewDisabledSerialMux()
	_, ch := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Error("Close should close subscriber channels")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	_, late := d.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestDisabledSerialMux_MonitorWaitsForCancel(t *testing.T) {
	d := NewDisabledSerialMux()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Monitor(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Monitor() = %v", err)
	}
}
