package gcode

import (
	"fmt"
	"math"
)

// EmptyBlockPolicy controls what happens to colours with no matching cells.
type EmptyBlockPolicy int

const (
	// EmitEmptyBlocks writes a comment and pause for every non-background
	// colour so the operator always sees the same number of colour changes.
	EmitEmptyBlocks EmptyBlockPolicy = iota
	// SkipEmptyBlocks omits colours that have no cells.
	SkipEmptyBlocks
)

// Point is a position in machine units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout maps grid cells to machine coordinates:
//
//	x = OriginX + XDir*col*CellSpacing
//	y = OriginY + YDir*(row*CellSpacing + block*BlockOffset)
//
// where block is the zero-based index of the colour block being emitted.
type Layout struct {
	CellSpacing float64 `json:"cell_spacing"`
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	// XDir and YDir are +1 or -1. The default pairs increasing columns with
	// +X and increasing rows with -Y, so image rows run down the canvas.
	XDir int `json:"x_dir"`
	YDir int `json:"y_dir"`
	// BlockOffset shifts each successive colour block further along YDir.
	BlockOffset float64 `json:"block_offset"`
}

// Position returns the machine coordinate of cell (row, col) in the given
// colour block.
func (l Layout) Position(row, col, block int) Point {
	return Point{
		X: l.OriginX + float64(l.XDir)*float64(col)*l.CellSpacing,
		Y: l.OriginY + float64(l.YDir)*(float64(row)*l.CellSpacing+float64(block)*l.BlockOffset),
	}
}

// Options configures program generation. Heights are Z positions, feeds are
// in machine units per minute.
type Options struct {
	FeedRate      float64          `json:"feed_rate"`
	EngageHeight  float64          `json:"engage_height"`
	RetractHeight float64          `json:"retract_height"`
	SafeHeight    float64          `json:"safe_height"`
	PlungeFeed    float64          `json:"plunge_feed"`
	RaiseFeed     float64          `json:"raise_feed"`
	Park          Point            `json:"park"`
	Layout        Layout           `json:"layout"`
	EmptyBlocks   EmptyBlockPolicy `json:"empty_blocks"`
}

// DefaultOptions returns the settings used on the plotter: 5 mm dot pitch
// starting half a cell in from the machine zero.
func DefaultOptions() Options {
	return Options{
		FeedRate:      800,
		EngageHeight:  0,
		RetractHeight: 3,
		SafeHeight:    5,
		PlungeFeed:    500,
		RaiseFeed:     1000,
		Park:          Point{X: -100, Y: 0},
		Layout: Layout{
			CellSpacing: 5,
			OriginX:     2.5,
			OriginY:     -2.5,
			XDir:        1,
			YDir:        -1,
		},
	}
}

// Validate reports the first setting that cannot produce a program.
func (o Options) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"feed rate", o.FeedRate},
		{"plunge feed", o.PlungeFeed},
		{"raise feed", o.RaiseFeed},
		{"cell spacing", o.Layout.CellSpacing},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be a positive finite number, got %v", ErrInvalidInput, f.name, f.v)
		}
	}
	finite := []struct {
		name string
		v    float64
	}{
		{"engage height", o.EngageHeight},
		{"retract height", o.RetractHeight},
		{"safe height", o.SafeHeight},
		{"park x", o.Park.X},
		{"park y", o.Park.Y},
		{"origin x", o.Layout.OriginX},
		{"origin y", o.Layout.OriginY},
		{"block offset", o.Layout.BlockOffset},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidInput, f.name, f.v)
		}
	}
	for _, d := range []int{o.Layout.XDir, o.Layout.YDir} {
		if d != 1 && d != -1 {
			return fmt.Errorf("%w: axis direction must be +1 or -1, got %d", ErrInvalidInput, d)
		}
	}
	if o.EmptyBlocks != EmitEmptyBlocks && o.EmptyBlocks != SkipEmptyBlocks {
		return fmt.Errorf("%w: unknown empty block policy %d", ErrInvalidInput, o.EmptyBlocks)
	}
	return nil
}
