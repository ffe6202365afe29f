package pump

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultPinNames are the BCM lines wired to IN1..IN4 on the driver board.
var DefaultPinNames = [4]string{"GPIO17", "GPIO18", "GPIO27", "GPIO22"}

type gpioPin struct {
	pin gpio.PinIO
}

func (p gpioPin) Out(high bool) error {
	return p.pin.Out(gpio.Level(high))
}

// OpenGPIO initialises the host drivers and returns the four named pins,
// all driven low.
func OpenGPIO(names [4]string) ([4]Pin, error) {
	var pins [4]Pin
	if _, err := host.Init(); err != nil {
		return pins, fmt.Errorf("failed to initialise GPIO host: %w", err)
	}
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return pins, fmt.Errorf("no GPIO pin named %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return pins, fmt.Errorf("failed to set %s low: %w", name, err)
		}
		pins[i] = gpioPin{pin: p}
	}
	return pins, nil
}

// LogPins returns pins that only remember their last level, for hosts with
// no GPIO header. The stepper still logs each move.
func LogPins() [4]Pin {
	var pins [4]Pin
	for i := range pins {
		pins[i] = &MemoryPin{}
	}
	return pins
}

// MemoryPin records the level it was last driven to and how many times it
// was written.
type MemoryPin struct {
	High   bool
	Writes int
	// Fail, when set, is returned from Out once Writes reaches FailAfter.
	Fail      error
	FailAfter int
}

func (m *MemoryPin) Out(high bool) error {
	if m.Fail != nil && m.Writes >= m.FailAfter {
		m.High = high
		return m.Fail
	}
	m.Writes++
	m.High = high
	return nil
}
