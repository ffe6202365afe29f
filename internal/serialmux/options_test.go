package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_NormalizeParityAliases(t *testing.T) {
	for in, want := range map[string]string{"none": "N", " even ": "E", "o": "O", "ODD": "O"} {
		got, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", in, err)
		}
		if got.Parity != want {
			t.Errorf("Normalize(%q).Parity = %q, want %q", in, got.Parity, want)
		}
	}
}

func TestPortOptions_NormalizeRejects(t *testing.T) {
	for _, opts := range []PortOptions{
		{DataBits: 9},
		{DataBits: 4},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		if _, err := opts.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) accepted invalid options", opts)
		}
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 115200, Parity: "none"}) {
		t.Error("defaults should equal explicit GRBL settings")
	}
	if (PortOptions{}).Equal(PortOptions{BaudRate: 9600}) {
		t.Error("different baud rates reported equal")
	}
	if (PortOptions{Parity: "bad"}).Equal(PortOptions{Parity: "bad"}) {
		t.Error("invalid options should never be equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 57600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}

	if _, err := (PortOptions{StopBits: 5}).SerialMode(); err == nil {
		t.Error("SerialMode() accepted invalid stop bits")
	}
}
