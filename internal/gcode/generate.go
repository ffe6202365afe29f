// Package gcode turns a grid of palette identifiers into a dot-painting
// program for a GRBL motion controller.
//
// Work is grouped by colour: every cell of one paint is visited before the
// next paint is loaded, so the operator changes colour once per paint rather
// than once per dot. Within a colour, cells are visited in row-major order.
package gcode

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/quantize"
)

// ErrInvalidInput is returned when the grid or options cannot produce a
// program. No lines are produced in that case.
var ErrInvalidInput = errors.New("invalid program input")

// gridError is a grid the palette cannot paint. It matches both
// ErrInvalidInput and the grid's own validation error, and reads as the
// latter.
type gridError struct {
	cause error
}

func (e *gridError) Error() string   { return e.cause.Error() }
func (e *gridError) Unwrap() []error { return []error{ErrInvalidInput, e.cause} }

// Generate emits the program for ids. The result depends only on its inputs:
// calling Generate twice with the same arguments yields identical lines.
func Generate(ids *quantize.IDGrid, p palette.Palette, opts Options) (*Program, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if p.Len() < 1 {
		return nil, fmt.Errorf("%w: empty palette", ErrInvalidInput)
	}
	if err := ids.Validate(p); err != nil {
		return nil, &gridError{cause: err}
	}

	counts := ids.Count()
	e := emitter{opts: opts}
	e.preamble()

	for block, id := range Paints(p) {
		if counts[id] > 0 || opts.EmptyBlocks == EmitEmptyBlocks {
			e.colorBlock(ids, id, p.Name(id), block)
		}
	}
	return &Program{Lines: e.lines}, nil
}

// Paints returns the identifiers that get a colour block, in emission
// order. The index of an identifier in the result is its block index.
func Paints(p palette.Palette) []palette.ID {
	var out []palette.ID
	for _, id := range p.IDs() {
		if id != p.Background() {
			out = append(out, id)
		}
	}
	return out
}

type emitter struct {
	opts  Options
	lines []string
}

func (e *emitter) emit(format string, args ...any) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func (e *emitter) preamble() {
	o := e.opts
	e.emit("G90")
	e.emit("G10 L20 P1 X0 Y0 Z0")
	e.emit("G1 Z%s F%s", coord(o.RetractHeight), feed(o.PlungeFeed))
	e.emit("G0 X%s F%s", coord(o.Park.X), feed(o.FeedRate))
	e.emit(PauseLine)
}

func (e *emitter) colorBlock(ids *quantize.IDGrid, id palette.ID, name string, block int) {
	o := e.opts
	e.emit("%s", BlockHeader(name))
	for r := 0; r < ids.Rows; r++ {
		for c, cell := range ids.Row(r) {
			if cell != id {
				continue
			}
			pos := o.Layout.Position(r, c, block)
			e.emit("G0 X%s F%s", coord(pos.X), feed(o.FeedRate))
			e.emit("G0 Y%s F%s", coord(pos.Y), feed(o.FeedRate))
			e.emit(DispenseMarker)
			e.emit("G1 Z%s F%s", coord(o.EngageHeight), feed(o.PlungeFeed))
			e.emit("G1 Z%s F%s", coord(o.RetractHeight), feed(o.PlungeFeed))
		}
	}
	e.emit("G1 Z%s F%s", coord(o.SafeHeight), feed(o.RaiseFeed))
	e.emit("G0 X%s F%s", coord(o.Park.X), feed(o.FeedRate))
	e.emit("G0 Y%s F%s", coord(o.Park.Y), feed(o.FeedRate))
	e.emit(PauseLine)
}

// BlockHeader is the comment that opens the block for the named paint.
func BlockHeader(name string) string {
	return blockPrefix + name + blockSuffix
}

const (
	blockPrefix = "; --- Starting color: "
	blockSuffix = " ---"
)

// coord formats a position with two decimals and no negative zero.
func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

func feed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
