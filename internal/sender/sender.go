// Package sender streams a dot-painting program to the plotter. Motion
// lines go to the controller one at a time; dispense markers drive the
// syringe pump; pauses hand control to the operator for a paint change.
package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/pump"
)

// DefaultDispenseUnits is pushed for every bare dispense marker.
const DefaultDispenseUnits = 10

// SyncLine waits for the motion planner to drain before answering.
const SyncLine = "G4 P0"

var ErrInvalidProgram = errors.New("invalid program")

// Controller is the part of grbl.Controller the streamer uses.
type Controller interface {
	Send(ctx context.Context, line string) (grbl.Response, error)
	Resume() error
}

// Dispenser pushes paint. pump.Stepper implements it.
type Dispenser interface {
	Dispense(ctx context.Context, units float64, dir pump.Direction) error
}

// Operator is consulted at every pause. It may move the pump while the
// machine is stopped and returns once the operator is ready to continue.
type Operator interface {
	AwaitResume(ctx context.Context, d Dispenser) error
}

// Streamer holds the collaborators for one run.
type Streamer struct {
	Controller Controller
	Dispenser  Dispenser
	Operator   Operator
	// DispenseUnits is used for markers without an explicit amount. Zero
	// means DefaultDispenseUnits.
	DispenseUnits float64
	// Sync sends SyncLine before every dispense and pause so nothing
	// happens while the machine is still moving.
	Sync bool
	// OnLine, if set, is called before each line is acted on. n is the
	// zero-based line number.
	OnLine func(n int, line string, kind gcode.Kind)
}

// Result counts what a run did.
type Result struct {
	Sent      int `json:"sent"`
	Dispensed int `json:"dispensed"`
	Pauses    int `json:"pauses"`
	Skipped   int `json:"skipped"`
}

// Stream runs lines through s. The whole program is checked before the
// first byte is written. The first controller, pump or operator failure
// stops the run; the returned Result covers the lines completed until then.
func Stream(ctx context.Context, lines []string, s Streamer) (Result, error) {
	kinds, bodies, err := s.check(lines)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for n, line := range lines {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		kind := kinds[n]
		if s.OnLine != nil {
			s.OnLine(n, line, kind)
		}
		switch kind {
		case gcode.KindBlank, gcode.KindComment:
			res.Skipped++

		case gcode.KindDispense:
			if err := s.sync(ctx, &res); err != nil {
				return res, fmt.Errorf("line %d: %w", n+1, err)
			}
			units, ok := gcode.DispenseUnits(line)
			if !ok {
				units = s.dispenseUnits()
			}
			if err := s.Dispenser.Dispense(ctx, units, pump.Up); err != nil {
				return res, fmt.Errorf("line %d: dispense: %w", n+1, err)
			}
			res.Dispensed++

		case gcode.KindPause:
			if err := s.sync(ctx, &res); err != nil {
				return res, fmt.Errorf("line %d: %w", n+1, err)
			}
			if err := s.Operator.AwaitResume(ctx, s.Dispenser); err != nil {
				return res, fmt.Errorf("line %d: pause: %w", n+1, err)
			}
			if err := s.Controller.Resume(); err != nil {
				return res, fmt.Errorf("line %d: resume: %w", n+1, err)
			}
			res.Pauses++

		default:
			if _, err := s.Controller.Send(ctx, bodies[n]); err != nil {
				return res, fmt.Errorf("line %d: %w", n+1, err)
			}
			res.Sent++
		}
	}
	return res, nil
}

func (s Streamer) dispenseUnits() float64 {
	if s.DispenseUnits > 0 {
		return s.DispenseUnits
	}
	return DefaultDispenseUnits
}

func (s Streamer) sync(ctx context.Context, res *Result) error {
	if !s.Sync {
		return nil
	}
	if _, err := s.Controller.Send(ctx, SyncLine); err != nil {
		return err
	}
	res.Sent++
	return nil
}

// check classifies every line and returns the comment-free text of each
// command, which is what the controller is sent.
func (s Streamer) check(lines []string) ([]gcode.Kind, []string, error) {
	if s.Controller == nil {
		return nil, nil, fmt.Errorf("%w: no controller", ErrInvalidProgram)
	}
	kinds := make([]gcode.Kind, len(lines))
	bodies := make([]string, len(lines))
	for n, line := range lines {
		kind := gcode.Classify(line)
		kinds[n] = kind
		switch kind {
		case gcode.KindDispense:
			if s.Dispenser == nil {
				return nil, nil, fmt.Errorf("%w: line %d dispenses but no pump is attached", ErrInvalidProgram, n+1)
			}
		case gcode.KindPause:
			if s.Operator == nil {
				return nil, nil, fmt.Errorf("%w: line %d pauses but no operator is attached", ErrInvalidProgram, n+1)
			}
		case gcode.KindCommand:
			bodies[n] = gcode.StripComment(line)
			if len(bodies[n]) > grbl.MaxLineLength {
				return nil, nil, fmt.Errorf("%w: line %d is longer than %d characters", ErrInvalidProgram, n+1, grbl.MaxLineLength)
			}
		}
	}
	return kinds, bodies, nil
}
