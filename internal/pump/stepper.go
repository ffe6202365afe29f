// Package pump drives the syringe dispenser: a 28BYJ-48 stepper behind a
// ULN2003 board, wired to four GPIO lines.
package pump

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/pointillist/internal/monitoring"
	"github.com/banshee-data/pointillist/internal/timeutil"
)

// Direction of plunger travel.
type Direction int

const (
	// Up pushes paint out.
	Up Direction = iota
	// Down draws the plunger back.
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "":
		return Up, nil
	case "down":
		return Down, nil
	}
	return Up, fmt.Errorf("unknown direction %q", s)
}

const (
	DefaultStepsPerUnit = 512
	DefaultStepDelay    = 2 * time.Millisecond
)

// halfStep is the eight-phase coil sequence for one step.
var halfStep = [8][4]bool{
	{true, false, false, true},
	{true, false, false, false},
	{true, true, false, false},
	{false, true, false, false},
	{false, true, true, false},
	{false, false, true, false},
	{false, false, true, true},
	{false, false, false, true},
}

// Pin is one digital output.
type Pin interface {
	Out(high bool) error
}

// Stepper moves the plunger. One unit is whatever volume StepsPerUnit
// steps displace; the plotter is calibrated so that a unit is roughly one
// millilitre.
type Stepper struct {
	Pins         [4]Pin
	StepsPerUnit float64
	// StepDelay is held after every phase.
	StepDelay time.Duration
	Clock     timeutil.Clock

	mu sync.Mutex
}

// NewStepper returns a stepper with the default calibration.
func NewStepper(pins [4]Pin) *Stepper {
	return &Stepper{
		Pins:         pins,
		StepsPerUnit: DefaultStepsPerUnit,
		StepDelay:    DefaultStepDelay,
		Clock:        timeutil.RealClock{},
	}
}

// Steps returns the whole number of steps Move takes for units.
func (s *Stepper) Steps(units float64) int {
	return int(units * s.StepsPerUnit)
}

// Move turns the motor by units in direction dir. Every pin is driven low
// before Move returns, including when ctx is cancelled part way.
func (s *Stepper) Move(ctx context.Context, units float64, dir Direction) (err error) {
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		return fmt.Errorf("invalid pump amount %v", units)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.Steps(units)
	monitoring.Logf("pump: moving %s for %v units -> %d steps", dir, units, steps)

	defer func() {
		err = errors.Join(err, s.release())
	}()

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for p := range halfStep {
			if dir == Down {
				p = len(halfStep) - 1 - p
			}
			if err := s.drive(halfStep[p]); err != nil {
				return err
			}
			if s.StepDelay > 0 {
				s.Clock.Sleep(s.StepDelay)
			}
		}
	}
	return nil
}

// Dispense is Move under the name the program streamer expects.
func (s *Stepper) Dispense(ctx context.Context, units float64, dir Direction) error {
	return s.Move(ctx, units, dir)
}

func (s *Stepper) drive(phase [4]bool) error {
	for i, pin := range s.Pins {
		if err := pin.Out(phase[i]); err != nil {
			return fmt.Errorf("pump pin %d: %w", i, err)
		}
	}
	return nil
}

// release drives every pin low so the coils do not hold current.
func (s *Stepper) release() error {
	var errs []error
	for i, pin := range s.Pins {
		if err := pin.Out(false); err != nil {
			errs = append(errs, fmt.Errorf("pump pin %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
